// Package perf tracks positions, cash, and returns through a simulated
// trading run: per-sid cost-basis accounting, two nested accounting
// periods (cumulative and current day), capital-use tracking, and the
// daily rollover anchored to the trading calendar.
package perf

import (
	"errors"
	"fmt"
	"time"

	"backtest-lab/internal/domain"
)

// ErrAccounting indicates a pipeline bug: a transaction was applied to
// the wrong position. Fatal.
var ErrAccounting = errors.New("accounting violation")

// Position is the holding in a single sid. Amount may be zero or
// negative (short). CostBasis is the weighted per-share average.
type Position struct {
	SID           int64
	Amount        int64
	CostBasis     float64
	LastSalePrice *float64
	LastSaleDate  *time.Time
}

// NewPosition creates an empty position for the sid.
func NewPosition(sid int64) *Position {
	return &Position{SID: sid}
}

// Update applies a transaction to the position. Closing to zero (or
// covering a short exactly) resets the cost basis.
func (p *Position) Update(txn *domain.Transaction) error {
	if p.SID != txn.SID {
		return fmt.Errorf("%w: transaction for sid %d applied to position in sid %d",
			ErrAccounting, txn.SID, p.SID)
	}

	if p.Amount+txn.Amount == 0 {
		p.CostBasis = 0.0
		p.Amount = 0
		return nil
	}

	prevCost := p.CostBasis * float64(p.Amount)
	txnCost := float64(txn.Amount) * txn.Price
	totalShares := p.Amount + txn.Amount
	p.CostBasis = (prevCost + txnCost) / float64(totalShares)
	p.Amount = totalShares
	return nil
}

// CurrentValue is the mark-to-market value at the last sale price, 0
// until a trade has printed for the sid.
func (p *Position) CurrentValue() float64 {
	if p.LastSalePrice == nil {
		return 0.0
	}
	return float64(p.Amount) * *p.LastSalePrice
}

// State serializes the position for snapshots.
func (p *Position) State() domain.PositionState {
	s := domain.PositionState{
		SID:       p.SID,
		Amount:    p.Amount,
		CostBasis: p.CostBasis,
	}
	if p.LastSalePrice != nil {
		price := *p.LastSalePrice
		s.LastSalePrice = &price
	}
	if p.LastSaleDate != nil {
		date := *p.LastSaleDate
		s.LastSaleDate = &date
	}
	return s
}
