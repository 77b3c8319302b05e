package txnsim

import (
	"math"
	"testing"
	"time"

	"backtest-lab/internal/domain"
)

const epsilon = 1e-9

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < epsilon
}

var sessionStart = time.Date(2006, 1, 3, 14, 30, 0, 0, time.UTC)

func tradeEvent(sid int64, price float64, volume int64, dt time.Time) *domain.Event {
	return domain.NewTradeEvent("src-a", sid, price, volume, dt)
}

func orderEvent(sid, amount int64, dt time.Time) *domain.Event {
	return domain.NewOrderEvent("ord-a", sid, amount, dt)
}

// drive feeds events through the simulator and collects the fills.
func drive(sim *Simulator, events []*domain.Event) []*domain.Transaction {
	var txns []*domain.Transaction
	for _, ev := range events {
		out := sim.Transform(ev)
		if out.Type == domain.EventTypeTransaction {
			txns = append(txns, out.Txn)
		}
	}
	return txns
}

func TestVolumeShareCapAcrossTrades(t *testing.T) {
	cases := []struct {
		name        string
		orderAmount int64
		wantFill    int64
	}{
		{"long", 100, 25},
		{"short", -100, -25},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			sim := NewSimulator(Options{})

			// two orders placed a minute apart, then a stream of
			// 100-share prints every minute
			var events []*domain.Event
			events = append(events,
				orderEvent(133, tc.orderAmount, sessionStart),
				orderEvent(133, tc.orderAmount, sessionStart.Add(time.Minute)),
			)
			dt := sessionStart.Add(2 * time.Minute)
			for i := 0; i < 360; i++ {
				events = append(events, tradeEvent(133, 10.1, 100, dt))
				dt = dt.Add(time.Minute)
			}

			txns := drive(sim, events)
			if len(txns) != 8 {
				t.Fatalf("transactions = %d, want 8", len(txns))
			}
			var total int64
			for _, txn := range txns {
				if txn.Amount != tc.wantFill {
					t.Errorf("fill = %d, want %d", txn.Amount, tc.wantFill)
				}
				total += txn.Amount
			}
			if total != 2*tc.orderAmount {
				t.Errorf("total volume = %d, want %d", total, 2*tc.orderAmount)
			}
			if open := sim.OpenOrders().TotalOpen(); open != 0 {
				t.Errorf("open interest after full fill = %d, want 0", open)
			}
		})
	}
}

func TestVolumeShareAggregatesSmallOrders(t *testing.T) {
	sim := NewSimulator(Options{})

	// 24 one-share orders a minute apart against hourly 100-share prints
	var events []*domain.Event
	tradeDT := sessionStart
	orderDT := sessionStart
	for i := 0; i < 6; i++ {
		events = append(events, tradeEvent(133, 10.1, 100, tradeDT))
		tradeDT = tradeDT.Add(time.Hour)
	}
	var orders []*domain.Event
	for i := 0; i < 24; i++ {
		orders = append(orders, orderEvent(133, 1, orderDT))
		orderDT = orderDT.Add(time.Minute)
	}
	// orders interleave ahead of the second print
	events = append(events[:1], append(orders, events[1:]...)...)

	txns := drive(sim, events)
	if len(txns) != 1 {
		t.Fatalf("transactions = %d, want 1", len(txns))
	}
	if txns[0].Amount != 24 {
		t.Errorf("fill = %d, want 24", txns[0].Amount)
	}
}

func TestVolumeSharePriceImpactAndCommission(t *testing.T) {
	sim := NewSimulator(Options{})
	events := []*domain.Event{
		orderEvent(133, 100, sessionStart),
		tradeEvent(133, 10.0, 100, sessionStart.Add(time.Minute)),
	}

	txns := drive(sim, events)
	if len(txns) != 1 {
		t.Fatalf("transactions = %d, want 1", len(txns))
	}
	txn := txns[0]
	if txn.Amount != 25 {
		t.Errorf("fill = %d, want 25", txn.Amount)
	}
	// volume share capped at 0.25: impact = 0.25^2 * 0.1 * 10
	if !almostEqual(txn.Price, 10.0625) {
		t.Errorf("price = %v, want 10.0625", txn.Price)
	}
	if !almostEqual(txn.Commission, 0.75) {
		t.Errorf("commission = %v, want 0.75", txn.Commission)
	}
}

func TestOrderExpiryByTradingDate(t *testing.T) {
	sim := NewSimulator(Options{})

	// three 1000-share orders placed half an hour apart on day one;
	// prints land five minutes after each day's open
	var events []*domain.Event
	events = append(events,
		orderEvent(133, 1000, sessionStart),
		tradeEvent(133, 10.1, 100, sessionStart.Add(5*time.Minute)),
		orderEvent(133, 1000, sessionStart.Add(30*time.Minute)),
		orderEvent(133, 1000, sessionStart.Add(60*time.Minute)),
	)
	dt := sessionStart.AddDate(0, 0, 1).Add(5 * time.Minute)
	for i := 0; i < 99; i++ {
		events = append(events, tradeEvent(133, 10.1, 100, dt))
		dt = dt.AddDate(0, 0, 1)
	}

	txns := drive(sim, events)
	if len(txns) != 1 {
		t.Fatalf("transactions = %d, want 1", len(txns))
	}
	if txns[0].Amount != 25 {
		t.Errorf("fill = %d, want 25", txns[0].Amount)
	}
	if open := sim.OpenOrders().TotalOpen(); open != 0 {
		t.Errorf("expired orders left open interest %d, want 0", open)
	}
}

func TestFixedSlippageCompleteFills(t *testing.T) {
	sim := NewSimulator(Options{Model: &FixedSlippage{Spread: 0.1, Commission: DefaultCommission}})

	// alternating-sign orders a day apart, each against the next print
	var events []*domain.Event
	amount := int64(10)
	dt := sessionStart
	for i := 0; i < 4; i++ {
		events = append(events,
			orderEvent(133, amount, dt),
			tradeEvent(133, 10.0, 100, dt.Add(time.Minute)),
		)
		amount = -amount
		dt = dt.AddDate(0, 0, 1)
	}

	txns := drive(sim, events)
	if len(txns) != 4 {
		t.Fatalf("transactions = %d, want 4", len(txns))
	}
	var net int64
	for i, txn := range txns {
		if abs(txn.Amount) != 10 {
			t.Errorf("txn %d: fill = %d, want complete fill of 10", i, txn.Amount)
		}
		net += txn.Amount
		wantPrice := 10.0 + 0.05
		if txn.Amount < 0 {
			wantPrice = 10.0 - 0.05
		}
		if !almostEqual(txn.Price, wantPrice) {
			t.Errorf("txn %d: price = %v, want %v", i, txn.Price, wantPrice)
		}
	}
	if net != 0 {
		t.Errorf("net volume = %d, want 0", net)
	}
	if open := sim.OpenOrders().TotalOpen(); open != 0 {
		t.Errorf("open interest = %d, want 0", open)
	}
}

func TestOrderAtTradeTimestampIneligible(t *testing.T) {
	sim := NewSimulator(Options{})
	events := []*domain.Event{
		orderEvent(133, 100, sessionStart),
		tradeEvent(133, 10.0, 100, sessionStart), // same dt: no fill
	}
	if txns := drive(sim, events); len(txns) != 0 {
		t.Fatalf("order at trade timestamp filled: %d transactions", len(txns))
	}

	// the next print picks it up
	out := sim.Transform(tradeEvent(133, 10.0, 100, sessionStart.Add(time.Minute)))
	if out.Type != domain.EventTypeTransaction {
		t.Fatalf("expected fill on the following print, got %s", out.Type)
	}
}

func TestZeroVolumeAndZeroAmount(t *testing.T) {
	sim := NewSimulator(Options{})

	sim.Transform(orderEvent(133, 0, sessionStart)) // ignored
	if sim.OpenOrders().TotalOpen() != 0 {
		t.Error("zero-amount order entered the book")
	}

	sim.Transform(orderEvent(133, 100, sessionStart))
	out := sim.Transform(tradeEvent(133, 10.0, 0, sessionStart.Add(time.Minute)))
	if out.Type != domain.EventTypeEmpty {
		t.Errorf("zero-volume trade produced %s, want EMPTY", out.Type)
	}
}

func TestTransformEmitsOneOutputPerInput(t *testing.T) {
	sim := NewSimulator(Options{SourceID: "sim-1"})

	inputs := []*domain.Event{
		orderEvent(133, 100, sessionStart),
		domain.NewEmptyEvent("ord-a"),
		tradeEvent(133, 10.0, 100, sessionStart.Add(time.Minute)),
		tradeEvent(999, 10.0, 100, sessionStart.Add(2*time.Minute)), // no orders for sid
	}
	wantTypes := []domain.EventType{
		domain.EventTypeEmpty,
		domain.EventTypeEmpty,
		domain.EventTypeTransaction,
		domain.EventTypeEmpty,
	}

	for i, ev := range inputs {
		out := sim.Transform(ev)
		if out == nil {
			t.Fatalf("input %d: nil output", i)
		}
		if out.Type != wantTypes[i] {
			t.Errorf("input %d: output type %s, want %s", i, out.Type, wantTypes[i])
		}
		if out.SourceID != "sim-1" {
			t.Errorf("input %d: source id %q", i, out.SourceID)
		}
	}
}

func abs(v int64) int64 {
	if v < 0 {
		return -v
	}
	return v
}
