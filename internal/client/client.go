// Package client hosts the user algorithm at the end of the pipeline:
// it feeds every merged record to the performance tracker, batches
// market data into frames on a simulated clock, relays the algorithm's
// orders back to the order source, and closes the books at end of
// stream.
package client

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"backtest-lab/internal/algo"
	"backtest-lab/internal/component"
	"backtest-lab/internal/domain"
	"backtest-lab/internal/observability"
	"backtest-lab/internal/perf"
	"backtest-lab/internal/risk"
)

// ErrInvalidOrder is returned for zero-amount orders.
var ErrInvalidOrder = errors.New("order amount must be non-zero")

// Options configures a TradingClient.
type Options struct {
	ID        string
	Logger    *log.Logger
	Tracker   *perf.Tracker
	Algorithm algo.Algorithm
	In        <-chan *domain.Event
	Orders    chan<- *domain.Order
}

// TradingClient is the pipeline's sink. The performance tracker always
// sees an event before the algorithm does; frames flush when an event's
// dt catches up with the simulation clock, and the clock then advances
// by the algorithm callback's measured wall time, modeling the latency
// a live strategy would exhibit.
type TradingClient struct {
	id        string
	logger    *log.Logger
	tracker   *perf.Tracker
	algorithm algo.Algorithm
	in        <-chan *domain.Event
	orders    chan<- *domain.Order

	filter map[int64]bool // nil admits all sids

	simulationDT time.Time
	currentDT    time.Time
	pending      map[int64]algo.Row
	pendingDT    time.Time

	eventCount int64
	frameCount int64
	orderCount int64

	report *risk.Report

	killOnce sync.Once
	killed   chan struct{}
}

// New builds a trading client over the merged stream.
func New(opts Options) *TradingClient {
	id := opts.ID
	if id == "" {
		id = "trading-client"
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &TradingClient{
		id:        id,
		logger:    logger,
		tracker:   opts.Tracker,
		algorithm: opts.Algorithm,
		in:        opts.In,
		orders:    opts.Orders,
		pending:   make(map[int64]algo.Row),
		killed:    make(chan struct{}),
	}
}

// ID implements component.Component.
func (c *TradingClient) ID() string { return c.id }

// Kind implements component.Component.
func (c *TradingClient) Kind() component.Kind { return component.KindSink }

// Kill implements component.Component.
func (c *TradingClient) Kill() {
	c.killOnce.Do(func() { close(c.killed) })
}

// Open wires the order function into the algorithm and builds the sid
// filter.
func (c *TradingClient) Open(ctx context.Context) error {
	if sids := c.algorithm.SIDFilter(); sids != nil {
		c.filter = make(map[int64]bool, len(sids))
		for _, sid := range sids {
			c.filter[sid] = true
		}
	}
	c.algorithm.SetOrder(c.order)
	return nil
}

// DoWork consumes one merged record; end of stream closes the books.
func (c *TradingClient) DoWork(ctx context.Context) (component.State, error) {
	select {
	case ev, ok := <-c.in:
		if !ok {
			if err := c.finish(); err != nil {
				return component.StateException, err
			}
			return component.StateDone, nil
		}
		if err := c.process(ev); err != nil {
			return component.StateException, fmt.Errorf("%s: %w", c.id, err)
		}
		return component.StateOK, nil
	case <-ctx.Done():
		return component.StateException, ctx.Err()
	case <-c.killed:
		return component.StateException, context.Canceled
	}
}

func (c *TradingClient) process(ev *domain.Event) error {
	// accounting strictly precedes the algorithm
	if err := c.tracker.ProcessEvent(ev); err != nil {
		return err
	}

	c.eventCount++
	c.currentDT = ev.DT

	if ev.Type == domain.EventTypeTrade && ev.Trade != nil && c.admits(ev.Trade.SID) {
		c.pending[ev.Trade.SID] = algo.Row{
			SID:    ev.Trade.SID,
			Price:  ev.Trade.Price,
			Volume: ev.Trade.Volume,
			DT:     ev.DT,
		}
		c.pendingDT = ev.DT
	}

	if len(c.pending) > 0 && !ev.DT.Before(c.simulationDT) {
		return c.flushFrame(ev.DT)
	}
	return nil
}

// flushFrame hands the batched rows to the algorithm and advances the
// simulation clock by the callback's wall time.
func (c *TradingClient) flushFrame(dt time.Time) error {
	frame := &algo.Frame{DT: c.pendingDT, Rows: c.pending}
	c.pending = make(map[int64]algo.Row)

	started := time.Now()
	err := c.algorithm.HandleFrame(frame)
	elapsed := time.Since(started)
	c.frameCount++
	c.simulationDT = dt.Add(elapsed)
	observability.RecordFrameLatency(elapsed)

	if err != nil {
		return fmt.Errorf("handle frame: %w", err)
	}
	return nil
}

// order stamps the current simulation time and relays to the order
// source.
func (c *TradingClient) order(sid, amount int64) error {
	if amount == 0 {
		return ErrInvalidOrder
	}
	o := &domain.Order{SID: sid, Amount: amount, DT: c.currentDT}
	select {
	case c.orders <- o:
		c.orderCount++
		return nil
	case <-c.killed:
		return context.Canceled
	}
}

// finish flushes any buffered frame, releases the order source, and
// closes the books.
func (c *TradingClient) finish() error {
	if len(c.pending) > 0 {
		if err := c.flushFrame(c.currentDT); err != nil {
			close(c.orders)
			return err
		}
	}
	close(c.orders)

	report, err := c.tracker.OnComplete()
	if err != nil {
		return fmt.Errorf("close books: %w", err)
	}
	c.report = report
	c.logger.Printf("[%s] run complete: %d events, %d frames, %d orders",
		c.id, c.eventCount, c.frameCount, c.orderCount)
	return nil
}

func (c *TradingClient) admits(sid int64) bool {
	return c.filter == nil || c.filter[sid]
}

// Report is the terminal risk report, available after the stream ends.
func (c *TradingClient) Report() *risk.Report { return c.report }

// FrameCount is the number of frames delivered to the algorithm.
func (c *TradingClient) FrameCount() int64 { return c.frameCount }

// EventCount is the number of merged records consumed.
func (c *TradingClient) EventCount() int64 { return c.eventCount }

// OrderCount is the number of orders the algorithm placed.
func (c *TradingClient) OrderCount() int64 { return c.orderCount }
