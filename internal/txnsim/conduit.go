package txnsim

import (
	"context"
	"sync"

	"backtest-lab/internal/component"
	"backtest-lab/internal/domain"
)

// conduitBufferSize is the capacity of the conduit's output channels.
const conduitBufferSize = 64

// Conduit drives a Simulator inside the pipeline. For every feed event
// it forwards the event unchanged on the passthrough channel and the
// simulator's result on the transform channel, keeping the two streams
// in positional lockstep for the merge stage.
type Conduit struct {
	sim  *Simulator
	in   <-chan *domain.Event
	base chan *domain.Event
	out  chan *domain.Event

	killOnce sync.Once
	killed   chan struct{}
}

// NewConduit wraps a simulator over the feed's output stream.
func NewConduit(sim *Simulator, in <-chan *domain.Event) *Conduit {
	return &Conduit{
		sim:    sim,
		in:     in,
		base:   make(chan *domain.Event, conduitBufferSize),
		out:    make(chan *domain.Event, conduitBufferSize),
		killed: make(chan struct{}),
	}
}

// Base is the passthrough replica of the feed stream.
func (c *Conduit) Base() <-chan *domain.Event { return c.base }

// Out is the simulator's result stream, one event per input.
func (c *Conduit) Out() <-chan *domain.Event { return c.out }

// ID implements component.Component.
func (c *Conduit) ID() string { return c.sim.SourceID() }

// Kind implements component.Component.
func (c *Conduit) Kind() component.Kind { return component.KindConduit }

// Open implements component.Component.
func (c *Conduit) Open(ctx context.Context) error { return nil }

// Kill implements component.Component.
func (c *Conduit) Kill() {
	c.killOnce.Do(func() { close(c.killed) })
}

// DoWork consumes one feed event; the simulator must run before the
// passthrough copy is released so the merge stage never observes an
// event ahead of its fill.
func (c *Conduit) DoWork(ctx context.Context) (component.State, error) {
	var ev *domain.Event
	select {
	case e, ok := <-c.in:
		if !ok {
			close(c.base)
			close(c.out)
			return component.StateDone, nil
		}
		ev = e
	case <-ctx.Done():
		return component.StateException, ctx.Err()
	case <-c.killed:
		return component.StateException, context.Canceled
	}

	result := c.sim.Transform(ev)

	select {
	case c.out <- result:
	case <-ctx.Done():
		return component.StateException, ctx.Err()
	case <-c.killed:
		return component.StateException, context.Canceled
	}
	select {
	case c.base <- ev:
	case <-ctx.Done():
		return component.StateException, ctx.Err()
	case <-c.killed:
		return component.StateException, context.Canceled
	}
	return component.StateOK, nil
}

// Simulator exposes the wrapped simulator for end-of-run assertions.
func (c *Conduit) Simulator() *Simulator { return c.sim }
