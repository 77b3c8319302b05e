package feed

import (
	"context"
	"log"
	"sync"

	"backtest-lab/internal/component"
	"backtest-lab/internal/domain"
)

// Merge pairs the passthrough stream with each transform's output.
// Transforms emit exactly one event per passthrough event, so pairing
// is positional: the passthrough event is the base record and any
// transaction a transform produced for it rides along on the base. The
// merged stream preserves the feed's dt order.
type Merge struct {
	id     string
	logger *log.Logger

	base       <-chan *domain.Event
	transforms []<-chan *domain.Event
	out        chan *domain.Event

	emitted int64

	killOnce sync.Once
	killed   chan struct{}
}

// MergeOptions configures a Merge.
type MergeOptions struct {
	ID         string
	Logger     *log.Logger
	BufferSize int
	Base       <-chan *domain.Event
}

// NewMerge creates a merge stage over the passthrough stream.
func NewMerge(opts MergeOptions) *Merge {
	id := opts.ID
	if id == "" {
		id = "merge"
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	size := opts.BufferSize
	if size <= 0 {
		size = DefaultBufferSize
	}
	return &Merge{
		id:     id,
		logger: logger,
		base:   opts.Base,
		out:    make(chan *domain.Event, size),
		killed: make(chan struct{}),
	}
}

// AddTransform registers a transform's output channel.
func (m *Merge) AddTransform(ch <-chan *domain.Event) {
	m.transforms = append(m.transforms, ch)
}

// Out is the merged stream of base records with attached fills.
func (m *Merge) Out() <-chan *domain.Event {
	return m.out
}

// ID implements component.Component.
func (m *Merge) ID() string { return m.id }

// Kind implements component.Component.
func (m *Merge) Kind() component.Kind { return component.KindConduit }

// Open implements component.Component.
func (m *Merge) Open(ctx context.Context) error { return nil }

// Kill implements component.Component.
func (m *Merge) Kill() {
	m.killOnce.Do(func() { close(m.killed) })
}

// DoWork pairs one passthrough event with its transform outputs and
// emits the combined record.
func (m *Merge) DoWork(ctx context.Context) (component.State, error) {
	var base *domain.Event
	select {
	case ev, ok := <-m.base:
		if !ok {
			close(m.out)
			m.logger.Printf("[%s] stream complete: %d records emitted", m.id, m.emitted)
			return component.StateDone, nil
		}
		base = ev
	case <-ctx.Done():
		return component.StateException, ctx.Err()
	case <-m.killed:
		return component.StateException, context.Canceled
	}

	merged := base
	for _, tch := range m.transforms {
		select {
		case tev, ok := <-tch:
			if !ok {
				continue
			}
			if tev.Txn != nil {
				record := *base
				record.Txn = tev.Txn
				merged = &record
			}
		case <-ctx.Done():
			return component.StateException, ctx.Err()
		case <-m.killed:
			return component.StateException, context.Canceled
		}
	}

	select {
	case m.out <- merged:
		m.emitted++
		return component.StateOK, nil
	case <-ctx.Done():
		return component.StateException, ctx.Err()
	case <-m.killed:
		return component.StateException, context.Canceled
	}
}

// Emitted is the number of merged records emitted so far.
func (m *Merge) Emitted() int64 { return m.emitted }
