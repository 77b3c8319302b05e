// Package wire is the single encode/decode boundary for event frames.
// Timestamps travel as int64 microseconds since epoch UTC and round-trip
// exactly at microsecond precision.
package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"backtest-lab/internal/domain"
)

// ErrFrameDecode is returned for malformed wire messages. Per policy the
// receiving component drops the frame, logs it, and continues.
var ErrFrameDecode = errors.New("malformed event frame")

// frame is the typed envelope. Only the fields relevant to the
// discriminator are populated.
type frame struct {
	Type     string `json:"type"`
	SourceID string `json:"source_id"`
	DT       *int64 `json:"dt_us,omitempty"` // nil for filler events

	SID        int64   `json:"sid,omitempty"`
	Price      float64 `json:"price,omitempty"`
	Volume     int64   `json:"volume,omitempty"`
	Amount     int64   `json:"amount,omitempty"`
	Filled     int64   `json:"filled,omitempty"`
	Commission float64 `json:"commission,omitempty"`
}

// Encode serializes an event into its wire frame.
func Encode(e *domain.Event) ([]byte, error) {
	if e == nil {
		return nil, fmt.Errorf("encode: nil event")
	}

	f := frame{
		Type:     string(e.Type),
		SourceID: e.SourceID,
	}
	if !e.DT.IsZero() {
		us := e.DT.UTC().UnixMicro()
		f.DT = &us
	}

	switch e.Type {
	case domain.EventTypeTrade:
		if e.Trade == nil {
			return nil, fmt.Errorf("encode: trade event without payload")
		}
		f.SID = e.Trade.SID
		f.Price = e.Trade.Price
		f.Volume = e.Trade.Volume
	case domain.EventTypeOrder:
		if e.Order == nil {
			return nil, fmt.Errorf("encode: order event without payload")
		}
		f.SID = e.Order.SID
		f.Amount = e.Order.Amount
		f.Filled = e.Order.Filled
	case domain.EventTypeTransaction:
		if e.Txn == nil {
			return nil, fmt.Errorf("encode: transaction event without payload")
		}
		f.SID = e.Txn.SID
		f.Amount = e.Txn.Amount
		f.Price = e.Txn.Price
		f.Commission = e.Txn.Commission
	case domain.EventTypeEmpty:
		// no payload beyond source_id and type tag
	default:
		return nil, fmt.Errorf("encode: unknown event type %q", e.Type)
	}

	return json.Marshal(f)
}

// Decode parses a wire frame back into an event. Malformed input yields
// an error wrapping ErrFrameDecode.
func Decode(data []byte) (*domain.Event, error) {
	var f frame
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFrameDecode, err)
	}

	var dt time.Time
	if f.DT != nil {
		dt = time.UnixMicro(*f.DT).UTC()
	}

	e := &domain.Event{
		Type:     domain.EventType(f.Type),
		SourceID: f.SourceID,
		DT:       dt,
	}

	switch e.Type {
	case domain.EventTypeTrade:
		if f.Volume < 0 {
			return nil, fmt.Errorf("%w: negative trade volume %d", ErrFrameDecode, f.Volume)
		}
		e.Trade = &domain.Trade{SID: f.SID, Price: f.Price, Volume: f.Volume}
	case domain.EventTypeOrder:
		e.Order = &domain.Order{SID: f.SID, Amount: f.Amount, Filled: f.Filled, DT: dt}
	case domain.EventTypeTransaction:
		e.Txn = &domain.Transaction{
			SID:        f.SID,
			Amount:     f.Amount,
			Price:      f.Price,
			Commission: f.Commission,
			DT:         dt,
		}
	case domain.EventTypeEmpty:
		// fillers carry no payload
	default:
		return nil, fmt.Errorf("%w: unknown event type %q", ErrFrameDecode, f.Type)
	}

	return e, nil
}
