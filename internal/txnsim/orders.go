// Package txnsim turns the algorithm's orders into simulated fills by
// executing them against the trade stream through a pluggable slippage
// model.
package txnsim

import (
	"sort"
	"time"

	"backtest-lab/internal/calendar"
	"backtest-lab/internal/domain"
)

// OpenOrders holds the outstanding orders per sid, in creation order.
type OpenOrders struct {
	bySID map[int64][]*domain.Order
}

// NewOpenOrders creates an empty order book.
func NewOpenOrders() *OpenOrders {
	return &OpenOrders{bySID: make(map[int64][]*domain.Order)}
}

// Add appends an order to its sid's queue. Zero-amount orders are
// ignored.
func (o *OpenOrders) Add(order *domain.Order) {
	if order == nil || order.Amount == 0 {
		return
	}
	o.bySID[order.SID] = append(o.bySID[order.SID], order)
}

// Get returns the sid's outstanding orders sorted by creation time.
func (o *OpenOrders) Get(sid int64) []*domain.Order {
	orders := o.bySID[sid]
	sort.SliceStable(orders, func(i, j int) bool {
		return orders[i].DT.Before(orders[j].DT)
	})
	return orders
}

// Retain drops fully-filled orders and orders expired as of asOf.
func (o *OpenOrders) Retain(sid int64, asOf time.Time, ttlDays int) {
	orders := o.bySID[sid]
	kept := orders[:0]
	for _, order := range orders {
		if order.Open() == 0 || orderExpired(order, asOf, ttlDays) {
			continue
		}
		kept = append(kept, order)
	}
	if len(kept) == 0 {
		delete(o.bySID, sid)
		return
	}
	o.bySID[sid] = kept
}

// TotalOpen sums the outstanding (signed) quantity across all sids.
func (o *OpenOrders) TotalOpen() int64 {
	var total int64
	for _, orders := range o.bySID {
		for _, order := range orders {
			total += order.Open()
		}
	}
	return total
}

// orderExpired reports whether the order's trading-date TTL has lapsed
// as of the given timestamp. Expiry compares dates, not durations: an
// order placed any time on day N survives through day N+ttl-1.
func orderExpired(order *domain.Order, asOf time.Time, ttlDays int) bool {
	deadline := calendar.NormalizeDate(order.DT).AddDate(0, 0, ttlDays)
	return !calendar.NormalizeDate(asOf).Before(deadline)
}
