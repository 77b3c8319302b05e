// Package sources provides the pipeline's event producers: fixed-stream
// replay sources, the order relay pseudo-source, and factory helpers
// that generate synthetic trade and order histories for harness runs.
package sources

import (
	"context"
	"log"
	"sync"

	"backtest-lab/internal/component"
	"backtest-lab/internal/domain"
)

// DefaultBufferSize is the capacity of a source's output channel.
const DefaultBufferSize = 64

// SpecificTrades replays a fixed slice of events in order. It is the
// deterministic source used by harness runs; the slice may also carry
// pre-generated order events.
type SpecificTrades struct {
	id     string
	logger *log.Logger
	events []*domain.Event
	next   int
	out    chan *domain.Event

	killOnce sync.Once
	killed   chan struct{}
}

// NewSpecificTrades builds a replay source over the given events, which
// must be sorted by dt ascending.
func NewSpecificTrades(id string, events []*domain.Event, logger *log.Logger) *SpecificTrades {
	if logger == nil {
		logger = log.Default()
	}
	return &SpecificTrades{
		id:     id,
		logger: logger,
		events: events,
		out:    make(chan *domain.Event, DefaultBufferSize),
		killed: make(chan struct{}),
	}
}

// Out is the source's event stream, closed at end of replay.
func (s *SpecificTrades) Out() <-chan *domain.Event {
	return s.out
}

// ID implements component.Component.
func (s *SpecificTrades) ID() string { return s.id }

// Kind implements component.Component.
func (s *SpecificTrades) Kind() component.Kind { return component.KindSource }

// Open implements component.Component.
func (s *SpecificTrades) Open(ctx context.Context) error { return nil }

// Kill implements component.Component.
func (s *SpecificTrades) Kill() {
	s.killOnce.Do(func() { close(s.killed) })
}

// DoWork emits the next event, closing the stream when exhausted.
func (s *SpecificTrades) DoWork(ctx context.Context) (component.State, error) {
	if s.next >= len(s.events) {
		close(s.out)
		s.logger.Printf("[%s] replay complete: %d events", s.id, len(s.events))
		return component.StateDone, nil
	}

	ev := s.events[s.next]
	select {
	case s.out <- ev:
		s.next++
		return component.StateOK, nil
	case <-ctx.Done():
		return component.StateException, ctx.Err()
	case <-s.killed:
		return component.StateException, context.Canceled
	}
}
