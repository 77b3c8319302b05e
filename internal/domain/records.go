package domain

import "time"

// TradeRecord is the persisted form of a market print, keyed by (sid, dt).
type TradeRecord struct {
	SID    int64
	Price  float64
	Volume int64
	DT     time.Time // UTC, microsecond precision
}

// Event converts the record back into a pipeline trade event attributed
// to the given source.
func (r *TradeRecord) Event(sourceID string) *Event {
	return NewTradeEvent(sourceID, r.SID, r.Price, r.Volume, r.DT)
}
