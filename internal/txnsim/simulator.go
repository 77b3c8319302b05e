package txnsim

import (
	"log"

	"backtest-lab/internal/domain"
)

// DefaultOrderTTLDays is how many trading dates an order stays open.
const DefaultOrderTTLDays = 1

// Options configures a Simulator.
type Options struct {
	SourceID string
	Model    SlippageModel
	TTLDays  int
	Logger   *log.Logger
}

// Simulator is the transform stage of the pipeline: it absorbs Order
// events into the open-order book and executes the book against Trade
// events. Every input event yields exactly one output event, a
// Transaction when a fill occurred and an Empty placeholder otherwise,
// so the merge stage can pair the transformed stream with the
// passthrough positionally.
type Simulator struct {
	sourceID string
	model    SlippageModel
	ttlDays  int
	logger   *log.Logger
	orders   *OpenOrders

	txnCount int64
}

// NewSimulator builds a Simulator; a nil model defaults to VolumeShare.
func NewSimulator(opts Options) *Simulator {
	model := opts.Model
	if model == nil {
		model = NewVolumeShare()
	}
	ttl := opts.TTLDays
	if ttl <= 0 {
		ttl = DefaultOrderTTLDays
	}
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}
	id := opts.SourceID
	if id == "" {
		id = "txnsim"
	}
	return &Simulator{
		sourceID: id,
		model:    model,
		ttlDays:  ttl,
		logger:   logger,
		orders:   NewOpenOrders(),
	}
}

// Transform processes one event and returns exactly one output event.
func (s *Simulator) Transform(ev *domain.Event) *domain.Event {
	switch ev.Type {
	case domain.EventTypeOrder:
		if ev.Order != nil {
			s.orders.Add(ev.Order)
		}
	case domain.EventTypeTrade:
		if ev.Trade != nil {
			if txn := s.executeTrade(ev); txn != nil {
				s.txnCount++
				return domain.NewTransactionEvent(s.sourceID, txn)
			}
		}
	}
	return domain.NewEmptyEvent(s.sourceID)
}

// executeTrade garbage-collects the sid's expired orders, runs the
// slippage model against the survivors, and drops whatever the fill
// completed.
func (s *Simulator) executeTrade(ev *domain.Event) *domain.Transaction {
	sid := ev.Trade.SID
	s.orders.Retain(sid, ev.DT, s.ttlDays)

	open := s.orders.Get(sid)
	if len(open) == 0 {
		return nil
	}

	txn := s.model.Simulate(ev.DT, ev.Trade, open)
	s.orders.Retain(sid, ev.DT, s.ttlDays)
	return txn
}

// SourceID identifies the simulator's output stream.
func (s *Simulator) SourceID() string {
	return s.sourceID
}

// OpenOrders exposes the book for end-of-run assertions.
func (s *Simulator) OpenOrders() *OpenOrders {
	return s.orders
}

// TransactionCount is the number of fills emitted so far.
func (s *Simulator) TransactionCount() int64 {
	return s.txnCount
}
