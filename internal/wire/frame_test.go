package wire

import (
	"errors"
	"testing"
	"time"

	"backtest-lab/internal/domain"
)

func TestRoundTrip(t *testing.T) {
	dt := time.Date(2006, 1, 3, 14, 30, 0, 123456000, time.UTC)

	events := []*domain.Event{
		domain.NewTradeEvent("trades-133", 133, 10.1, 100, dt),
		domain.NewOrderEvent("ORDER_SOURCE", 133, -250, dt.Add(time.Minute)),
		domain.NewTransactionEvent("TRANSACTION_SIM", &domain.Transaction{
			SID:        133,
			Amount:     25,
			Price:      10.163125,
			Commission: 0.75,
			DT:         dt.Add(2 * time.Minute),
		}),
		domain.NewEmptyEvent("ORDER_SOURCE"),
	}

	for _, want := range events {
		t.Run(string(want.Type), func(t *testing.T) {
			data, err := Encode(want)
			if err != nil {
				t.Fatalf("Encode: %v", err)
			}
			got, err := Decode(data)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}

			if got.Type != want.Type || got.SourceID != want.SourceID {
				t.Errorf("envelope mismatch: got (%s, %s), want (%s, %s)",
					got.Type, got.SourceID, want.Type, want.SourceID)
			}
			if !got.DT.Equal(want.DT.Truncate(time.Microsecond)) {
				t.Errorf("dt mismatch: got %v, want %v", got.DT, want.DT)
			}

			switch want.Type {
			case domain.EventTypeTrade:
				if *got.Trade != *want.Trade {
					t.Errorf("trade mismatch: got %+v, want %+v", got.Trade, want.Trade)
				}
			case domain.EventTypeOrder:
				if got.Order.SID != want.Order.SID || got.Order.Amount != want.Order.Amount ||
					got.Order.Filled != want.Order.Filled || !got.Order.DT.Equal(want.Order.DT) {
					t.Errorf("order mismatch: got %+v, want %+v", got.Order, want.Order)
				}
			case domain.EventTypeTransaction:
				if got.Txn.SID != want.Txn.SID || got.Txn.Amount != want.Txn.Amount ||
					got.Txn.Price != want.Txn.Price || got.Txn.Commission != want.Txn.Commission ||
					!got.Txn.DT.Equal(want.Txn.DT) {
					t.Errorf("txn mismatch: got %+v, want %+v", got.Txn, want.Txn)
				}
			case domain.EventTypeEmpty:
				if !got.IsFiller() {
					t.Error("decoded empty event is not a filler")
				}
			}
		})
	}
}

func TestRoundTripMicrosecondPrecision(t *testing.T) {
	// Nanosecond tails below microsecond precision do not survive the
	// wire; everything down to the microsecond must.
	dt := time.Date(2008, 6, 2, 15, 45, 1, 999999999, time.UTC)
	e := domain.NewTradeEvent("src", 1, 99.5, 10, dt)

	data, err := Encode(e)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}

	want := dt.Truncate(time.Microsecond)
	if !got.DT.Equal(want) {
		t.Errorf("dt = %v, want %v", got.DT, want)
	}
}

func TestDecodeErrors(t *testing.T) {
	cases := []struct {
		name string
		data string
	}{
		{"not json", "{{{"},
		{"unknown type", `{"type":"BOGUS","source_id":"x"}`},
		{"negative volume", `{"type":"TRADE","source_id":"x","sid":1,"volume":-5}`},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.data))
			if !errors.Is(err, ErrFrameDecode) {
				t.Errorf("err = %v, want ErrFrameDecode", err)
			}
		})
	}
}
