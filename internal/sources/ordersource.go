package sources

import (
	"context"
	"log"
	"sync"
	"time"

	"backtest-lab/internal/component"
	"backtest-lab/internal/domain"
)

// DefaultPollInterval is how often the order relay emits a filler when
// no order is pending.
const DefaultPollInterval = time.Millisecond

// OrderSource re-injects the algorithm's orders into the feed. It is
// registered as a non-blocking source: it emits an Empty filler on
// every poll tick so the feed's fullness predicate keeps advancing even
// when the algorithm is quiet, and the feed stops waiting on it once
// all blocking sources have finished. The source itself finishes when
// the client closes the order channel at end of stream.
type OrderSource struct {
	id     string
	logger *log.Logger
	in     <-chan *domain.Order
	out    chan *domain.Event
	poll   time.Duration
	ticker *time.Ticker

	orderCount int64

	killOnce sync.Once
	killed   chan struct{}
}

// OrderSourceOptions configures an OrderSource.
type OrderSourceOptions struct {
	ID           string
	Logger       *log.Logger
	Orders       <-chan *domain.Order
	PollInterval time.Duration
}

// NewOrderSource builds the relay over the client's order channel.
func NewOrderSource(opts OrderSourceOptions) *OrderSource {
	id := opts.ID
	if id == "" {
		id = "order-source"
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	poll := opts.PollInterval
	if poll <= 0 {
		poll = DefaultPollInterval
	}
	return &OrderSource{
		id:     id,
		logger: logger,
		in:     opts.Orders,
		out:    make(chan *domain.Event, DefaultBufferSize),
		poll:   poll,
		killed: make(chan struct{}),
	}
}

// Out is the relayed stream of order events and fillers.
func (o *OrderSource) Out() <-chan *domain.Event {
	return o.out
}

// ID implements component.Component.
func (o *OrderSource) ID() string { return o.id }

// Kind implements component.Component.
func (o *OrderSource) Kind() component.Kind { return component.KindSource }

// Open implements component.Component.
func (o *OrderSource) Open(ctx context.Context) error {
	o.ticker = time.NewTicker(o.poll)
	return nil
}

// Kill implements component.Component.
func (o *OrderSource) Kill() {
	o.killOnce.Do(func() { close(o.killed) })
}

// DoWork forwards one pending order, or a filler on the poll tick.
func (o *OrderSource) DoWork(ctx context.Context) (component.State, error) {
	select {
	case order, ok := <-o.in:
		if !ok {
			o.ticker.Stop()
			close(o.out)
			o.logger.Printf("[%s] order stream complete: %d orders relayed", o.id, o.orderCount)
			return component.StateDone, nil
		}
		ev := &domain.Event{
			Type:     domain.EventTypeOrder,
			SourceID: o.id,
			DT:       order.DT,
			Order:    order,
		}
		return o.emit(ctx, ev, true)

	case <-o.ticker.C:
		return o.emit(ctx, domain.NewEmptyEvent(o.id), false)

	case <-ctx.Done():
		return component.StateException, ctx.Err()
	case <-o.killed:
		return component.StateException, context.Canceled
	}
}

func (o *OrderSource) emit(ctx context.Context, ev *domain.Event, isOrder bool) (component.State, error) {
	select {
	case o.out <- ev:
		if isOrder {
			o.orderCount++
		}
		return component.StateOK, nil
	case <-ctx.Done():
		return component.StateException, ctx.Err()
	case <-o.killed:
		return component.StateException, context.Canceled
	}
}
