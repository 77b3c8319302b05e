// Package algo defines the contract between the trading client and a
// user algorithm, plus the deterministic algorithms used by harness
// runs.
package algo

import (
	"errors"
	"time"
)

// Row is one sid's latest market state inside a frame.
type Row struct {
	SID    int64
	Price  float64
	Volume int64
	DT     time.Time
}

// Frame is the batch of market data delivered to the algorithm: the
// most recent row per sid accumulated since the previous flush.
type Frame struct {
	DT   time.Time
	Rows map[int64]Row
}

// OrderFunc places an order for the given sid. Implementations stamp
// the simulation time and relay to the order source.
type OrderFunc func(sid, amount int64) error

// Algorithm is driven by the trading client: SetOrder is called once
// during pipeline setup, HandleFrame once per flushed frame. SIDFilter
// limits which sids reach the algorithm; nil admits all.
type Algorithm interface {
	SetOrder(fn OrderFunc)
	HandleFrame(frame *Frame) error
	SIDFilter() []int64
}

// TestAlgorithm orders a fixed amount of one sid on every frame until
// its order budget is spent.
type TestAlgorithm struct {
	SID    int64
	Amount int64
	Count  int

	order  OrderFunc
	placed int
	frames int
}

var _ Algorithm = (*TestAlgorithm)(nil)

// NewTestAlgorithm builds the fixed-amount orderer.
func NewTestAlgorithm(sid, amount int64, count int) *TestAlgorithm {
	return &TestAlgorithm{SID: sid, Amount: amount, Count: count}
}

// SetOrder implements Algorithm.
func (a *TestAlgorithm) SetOrder(fn OrderFunc) { a.order = fn }

// SIDFilter implements Algorithm.
func (a *TestAlgorithm) SIDFilter() []int64 { return []int64{a.SID} }

// HandleFrame implements Algorithm.
func (a *TestAlgorithm) HandleFrame(frame *Frame) error {
	a.frames++
	if a.placed >= a.Count {
		return nil
	}
	if err := a.order(a.SID, a.Amount); err != nil {
		return err
	}
	a.placed++
	return nil
}

// Frames is the number of frames delivered so far.
func (a *TestAlgorithm) Frames() int { return a.frames }

// Placed is the number of orders placed so far.
func (a *TestAlgorithm) Placed() int { return a.placed }

// NoopAlgorithm consumes frames and never orders.
type NoopAlgorithm struct {
	Filter []int64
	frames int
}

var _ Algorithm = (*NoopAlgorithm)(nil)

// SetOrder implements Algorithm.
func (a *NoopAlgorithm) SetOrder(fn OrderFunc) {}

// SIDFilter implements Algorithm.
func (a *NoopAlgorithm) SIDFilter() []int64 { return a.Filter }

// HandleFrame implements Algorithm.
func (a *NoopAlgorithm) HandleFrame(frame *Frame) error {
	a.frames++
	return nil
}

// Frames is the number of frames delivered so far.
func (a *NoopAlgorithm) Frames() int { return a.frames }

// ErrAlgorithmPanic is what ExceptionAlgorithm raises on its first frame.
var ErrAlgorithmPanic = errors.New("algorithm raised")

// ExceptionAlgorithm fails on the first frame it sees; harness runs use
// it to exercise the controller's failure path.
type ExceptionAlgorithm struct{}

var _ Algorithm = (*ExceptionAlgorithm)(nil)

// SetOrder implements Algorithm.
func (a *ExceptionAlgorithm) SetOrder(fn OrderFunc) {}

// SIDFilter implements Algorithm.
func (a *ExceptionAlgorithm) SIDFilter() []int64 { return nil }

// HandleFrame implements Algorithm.
func (a *ExceptionAlgorithm) HandleFrame(frame *Frame) error {
	return ErrAlgorithmPanic
}
