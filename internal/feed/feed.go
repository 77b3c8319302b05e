// Package feed merges the event streams of multiple sources into a
// single chronologically ordered stream, and pairs that stream with the
// transaction simulator's output downstream.
package feed

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"sync"

	"backtest-lab/internal/component"
	"backtest-lab/internal/domain"
)

// ErrDuplicateSource is returned when a source id is registered twice.
var ErrDuplicateSource = errors.New("duplicate source id")

// DefaultBufferSize is the capacity of a feed's output channel.
const DefaultBufferSize = 64

type sourceState struct {
	id       string
	ch       <-chan *domain.Event
	blocking bool
	queue    []*domain.Event
	done     bool
}

// Feed implements the chronological merge. It may emit only when every
// live source has contributed to the current round (an event, a
// discarded filler, or end-of-stream); among the buffered heads it
// emits the smallest dt, breaking ties by lexicographic source id.
// Non-blocking sources are excluded from the fullness requirement once
// every blocking source has finished, which lets the feed drain and
// close even while a non-blocking source is still live.
type Feed struct {
	id     string
	logger *log.Logger

	sources map[string]*sourceState
	order   []string // source ids, lexicographic
	out     chan *domain.Event

	emitted   int64
	discarded int64

	killOnce sync.Once
	killed   chan struct{}
}

// Options configures a Feed.
type Options struct {
	ID         string
	Logger     *log.Logger
	BufferSize int
}

// NewFeed creates an empty feed; sources are attached with AddSource
// before the first DoWork call.
func NewFeed(opts Options) *Feed {
	id := opts.ID
	if id == "" {
		id = "feed"
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	size := opts.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Feed{
		id:      id,
		logger:  logger,
		sources: make(map[string]*sourceState),
		out:     make(chan *domain.Event, size),
		killed:  make(chan struct{}),
	}
}

// AddSource registers a source's output channel. Blocking sources gate
// the merge; non-blocking sources are drained opportunistically.
func (f *Feed) AddSource(id string, ch <-chan *domain.Event, blocking bool) error {
	if _, exists := f.sources[id]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateSource, id)
	}
	f.sources[id] = &sourceState{id: id, ch: ch, blocking: blocking}
	f.order = append(f.order, id)
	sort.Strings(f.order)
	return nil
}

// Out is the merged, dt-ordered stream. Closed when all blocking
// sources have finished and their events are drained.
func (f *Feed) Out() <-chan *domain.Event {
	return f.out
}

// ID implements component.Component.
func (f *Feed) ID() string { return f.id }

// Kind implements component.Component.
func (f *Feed) Kind() component.Kind { return component.KindConduit }

// Open implements component.Component.
func (f *Feed) Open(ctx context.Context) error { return nil }

// Kill implements component.Component.
func (f *Feed) Kill() {
	f.killOnce.Do(func() { close(f.killed) })
}

// DoWork emits one merged event, or finishes the stream.
func (f *Feed) DoWork(ctx context.Context) (component.State, error) {
	ev, done, err := f.next(ctx)
	if err != nil {
		return component.StateException, err
	}
	if done {
		close(f.out)
		f.drainNonBlocking()
		f.logger.Printf("[%s] stream complete: %d events emitted, %d fillers discarded",
			f.id, f.emitted, f.discarded)
		return component.StateDone, nil
	}

	select {
	case f.out <- ev:
		f.emitted++
		return component.StateOK, nil
	case <-ctx.Done():
		return component.StateException, ctx.Err()
	case <-f.killed:
		return component.StateException, context.Canceled
	}
}

// next runs fill rounds until an event can be emitted or the feed is
// exhausted.
func (f *Feed) next(ctx context.Context) (*domain.Event, bool, error) {
	for {
		// fullness: every live gating source must contribute one
		// message this round; once all blocking sources are done the
		// feed stops waiting on non-blocking ones
		for _, id := range f.order {
			s := f.sources[id]
			if s.done || len(s.queue) > 0 {
				continue
			}
			if !s.blocking && f.allBlockingDone() {
				continue
			}
			select {
			case ev, ok := <-s.ch:
				if !ok {
					s.done = true
					continue
				}
				if ev.IsFiller() {
					f.discarded++
					continue
				}
				s.queue = append(s.queue, ev)
			case <-ctx.Done():
				return nil, false, ctx.Err()
			case <-f.killed:
				return nil, false, context.Canceled
			}
		}

		// lexicographic iteration plus strict Before keeps the
		// earlier source id on dt ties
		var best *sourceState
		for _, id := range f.order {
			s := f.sources[id]
			if len(s.queue) == 0 {
				continue
			}
			if best == nil || s.queue[0].DT.Before(best.queue[0].DT) {
				best = s
			}
		}
		if best != nil {
			ev := best.queue[0]
			best.queue = best.queue[1:]
			return ev, false, nil
		}

		if f.allBlockingDone() && f.allQueuesEmpty() {
			return nil, true, nil
		}
		// the round produced only fillers; go again
	}
}

func (f *Feed) allBlockingDone() bool {
	for _, s := range f.sources {
		if s.blocking && !s.done {
			return false
		}
	}
	return true
}

func (f *Feed) allQueuesEmpty() bool {
	for _, s := range f.sources {
		if len(s.queue) > 0 {
			return false
		}
	}
	return true
}

// drainNonBlocking keeps consuming still-live non-blocking sources so
// their senders never wedge after the merged stream has closed.
func (f *Feed) drainNonBlocking() {
	for _, s := range f.sources {
		if s.done || s.blocking {
			continue
		}
		go func(ch <-chan *domain.Event) {
			for range ch {
			}
		}(s.ch)
	}
}

// Emitted is the number of events merged so far.
func (f *Feed) Emitted() int64 { return f.emitted }

// Discarded is the number of filler events dropped so far.
func (f *Feed) Discarded() int64 { return f.discarded }
