package perf

import (
	"sort"

	"backtest-lab/internal/domain"
)

// PerformancePeriod is a rolling accounting window. The same position
// map may be shared with the succeeding day's period; positions are
// single-writer (the tracker).
type PerformancePeriod struct {
	Positions map[int64]*Position

	StartingValue     float64
	StartingCash      float64
	EndingValue       float64
	EndingCash        float64
	PeriodCapitalUsed float64 // net capital consumed, negative means spent
	PnL               float64
	Returns           float64
}

// NewPeriod opens an accounting window seeded with the given positions
// and starting balances.
func NewPeriod(positions map[int64]*Position, startingValue, startingCash float64) *PerformancePeriod {
	if positions == nil {
		positions = make(map[int64]*Position)
	}
	return &PerformancePeriod{
		Positions:     positions,
		StartingValue: startingValue,
		StartingCash:  startingCash,
		EndingCash:    startingCash,
	}
}

// ExecuteTransaction applies a fill to the period's position for its sid
// and records the capital it consumed.
func (p *PerformancePeriod) ExecuteTransaction(txn *domain.Transaction) error {
	pos, ok := p.Positions[txn.SID]
	if !ok {
		pos = NewPosition(txn.SID)
		p.Positions[txn.SID] = pos
	}
	if err := pos.Update(txn); err != nil {
		return err
	}
	p.PeriodCapitalUsed += -1 * txn.Price * float64(txn.Amount)
	return nil
}

// UpdateLastSale refreshes the mark price for a held sid. Only trade
// events move the mark.
func (p *PerformancePeriod) UpdateLastSale(ev *domain.Event) {
	if ev.Type != domain.EventTypeTrade || ev.Trade == nil {
		return
	}
	pos, ok := p.Positions[ev.Trade.SID]
	if !ok {
		return
	}
	price := ev.Trade.Price
	dt := ev.DT
	pos.LastSalePrice = &price
	pos.LastSaleDate = &dt
}

// CalculatePerformance closes the books as of the latest event:
// ending_cash = starting_cash + period_capital_used; pnl is the change
// in total value; returns = pnl over starting total (0 when starting
// total is 0).
func (p *PerformancePeriod) CalculatePerformance() {
	p.EndingValue = p.PositionsValue()

	totalAtStart := p.StartingCash + p.StartingValue
	p.EndingCash = p.StartingCash + p.PeriodCapitalUsed
	totalAtEnd := p.EndingCash + p.EndingValue

	p.PnL = totalAtEnd - totalAtStart
	if totalAtStart != 0 {
		p.Returns = p.PnL / totalAtStart
	} else {
		p.Returns = 0.0
	}
}

// PositionsValue is the mark-to-market value of all held positions.
func (p *PerformancePeriod) PositionsValue() float64 {
	value := 0.0
	for _, pos := range p.Positions {
		value += pos.CurrentValue()
	}
	return value
}

// State serializes the period for snapshots, positions ordered by sid.
func (p *PerformancePeriod) State() domain.PeriodState {
	sids := make([]int64, 0, len(p.Positions))
	for sid := range p.Positions {
		sids = append(sids, sid)
	}
	sort.Slice(sids, func(i, j int) bool { return sids[i] < sids[j] })

	positions := make([]domain.PositionState, 0, len(sids))
	for _, sid := range sids {
		positions = append(positions, p.Positions[sid].State())
	}

	return domain.PeriodState{
		StartingValue: p.StartingValue,
		StartingCash:  p.StartingCash,
		EndingValue:   p.EndingValue,
		EndingCash:    p.EndingCash,
		CapitalUsed:   p.PeriodCapitalUsed,
		PnL:           p.PnL,
		Returns:       p.Returns,
		Positions:     positions,
	}
}
