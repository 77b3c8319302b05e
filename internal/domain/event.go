package domain

import "time"

// EventType discriminates the payload carried by an Event.
type EventType string

// Event type constants.
const (
	EventTypeTrade       EventType = "TRADE"
	EventTypeOrder       EventType = "ORDER"
	EventTypeTransaction EventType = "TRANSACTION"
	EventTypeEmpty       EventType = "EMPTY"
)

// Event is the universal message carried through the pipeline.
// Exactly one of Trade, Order, Txn is set based on Type; Empty events
// carry no payload and an unset DT (they exist purely for flow control).
type Event struct {
	Type     EventType
	SourceID string
	DT       time.Time // UTC, microsecond precision; zero for Empty
	Trade    *Trade
	Order    *Order
	Txn      *Transaction
}

// Trade is an observed market print: price x volume at a timestamp.
type Trade struct {
	SID    int64
	Price  float64
	Volume int64 // always >= 0
}

// Order is an instruction to buy (positive amount) or sell (negative)
// shares of a sid. Filled is mutated in place as trades execute against it.
type Order struct {
	SID    int64
	Amount int64 // signed; positive buy, negative sell
	Filled int64
	DT     time.Time // creation time
}

// Open returns the unfilled quantity of the order (signed).
func (o *Order) Open() int64 {
	return o.Amount - o.Filled
}

// Transaction is a simulated fill: the portion of an order executed
// against a trade, at an impact-adjusted price.
type Transaction struct {
	SID        int64
	Amount     int64 // signed, carries the direction of the filling orders
	Price      float64
	Commission float64
	DT         time.Time
}

// IsFiller reports whether the event is a dateless flow-control
// placeholder. Fillers are discarded by the feed without comparison.
func (e *Event) IsFiller() bool {
	return e.Type == EventTypeEmpty || e.DT.IsZero()
}

// NewTradeEvent builds a Trade event.
func NewTradeEvent(sourceID string, sid int64, price float64, volume int64, dt time.Time) *Event {
	return &Event{
		Type:     EventTypeTrade,
		SourceID: sourceID,
		DT:       dt.UTC(),
		Trade:    &Trade{SID: sid, Price: price, Volume: volume},
	}
}

// NewOrderEvent builds an Order event.
func NewOrderEvent(sourceID string, sid, amount int64, dt time.Time) *Event {
	return &Event{
		Type:     EventTypeOrder,
		SourceID: sourceID,
		DT:       dt.UTC(),
		Order:    &Order{SID: sid, Amount: amount, DT: dt.UTC()},
	}
}

// NewTransactionEvent wraps a transaction for transport between the
// simulator and the merge stage.
func NewTransactionEvent(sourceID string, txn *Transaction) *Event {
	return &Event{
		Type:     EventTypeTransaction,
		SourceID: sourceID,
		DT:       txn.DT,
		Txn:      txn,
	}
}

// NewEmptyEvent builds a dateless filler event for the given source.
func NewEmptyEvent(sourceID string) *Event {
	return &Event{Type: EventTypeEmpty, SourceID: sourceID}
}
