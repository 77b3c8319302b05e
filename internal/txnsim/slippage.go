package txnsim

import (
	"math"
	"time"

	"backtest-lab/internal/domain"
)

// Default execution model parameters.
const (
	DefaultVolumeLimit = 0.25
	DefaultPriceImpact = 0.1
	DefaultCommission  = 0.03 // per share
	DefaultSpread      = 0.0
)

// SlippageModel decides how much of the outstanding open interest a
// trade fills and at what price. Implementations mutate order fill
// counters; orders arrive sorted by creation time and already filtered
// for expiry.
type SlippageModel interface {
	Simulate(dt time.Time, trade *domain.Trade, orders []*domain.Order) *domain.Transaction
}

// VolumeShare caps each fill at a fraction of the trade's printed
// volume and applies a quadratic price impact.
type VolumeShare struct {
	VolumeLimit float64
	PriceImpact float64
	Commission  float64 // per share
}

var _ SlippageModel = (*VolumeShare)(nil)

// NewVolumeShare builds the model with the standard parameters.
func NewVolumeShare() *VolumeShare {
	return &VolumeShare{
		VolumeLimit: DefaultVolumeLimit,
		PriceImpact: DefaultPriceImpact,
		Commission:  DefaultCommission,
	}
}

// Simulate walks the open orders oldest-first, allocating volume until
// the cap is reached. An order participates only when created strictly
// before the trade. Fill quantities truncate toward zero; the last
// processed order's impact prices the whole fill.
func (m *VolumeShare) Simulate(dt time.Time, trade *domain.Trade, orders []*domain.Order) *domain.Transaction {
	if trade.Volume <= 0 {
		return nil
	}

	var totalOrder int64
	var impact float64

	for _, order := range orders {
		if !order.DT.Before(dt) {
			continue
		}

		open := order.Open()
		direction := 1.0
		if open < 0 {
			direction = -1.0
		}

		desired := totalOrder + open
		volumeShare := math.Min(direction*float64(desired)/float64(trade.Volume), m.VolumeLimit)
		fill := int64(volumeShare * float64(trade.Volume) * direction)
		impact = volumeShare * volumeShare * m.PriceImpact * direction * trade.Price

		order.Filled += fill - totalOrder
		totalOrder = fill

		if volumeShare == m.VolumeLimit {
			break
		}
	}

	if totalOrder == 0 {
		return nil
	}

	direction := 1.0
	if totalOrder < 0 {
		direction = -1.0
	}
	return &domain.Transaction{
		SID:        trade.SID,
		Amount:     totalOrder,
		Price:      trade.Price + impact,
		Commission: m.Commission * float64(totalOrder) * direction,
		DT:         dt,
	}
}

// FixedSlippage fills the entire outstanding quantity at the trade
// price plus half the configured spread in the direction of the fill.
type FixedSlippage struct {
	Spread     float64
	Commission float64 // per share
}

var _ SlippageModel = (*FixedSlippage)(nil)

// NewFixedSlippage builds the model with the standard parameters.
func NewFixedSlippage() *FixedSlippage {
	return &FixedSlippage{Spread: DefaultSpread, Commission: DefaultCommission}
}

// Simulate fills every eligible open order completely.
func (m *FixedSlippage) Simulate(dt time.Time, trade *domain.Trade, orders []*domain.Order) *domain.Transaction {
	var amount int64
	for _, order := range orders {
		if !order.DT.Before(dt) {
			continue
		}
		amount += order.Open()
		order.Filled = order.Amount
	}
	if amount == 0 {
		return nil
	}

	direction := 1.0
	if amount < 0 {
		direction = -1.0
	}
	return &domain.Transaction{
		SID:        trade.SID,
		Amount:     amount,
		Price:      trade.Price + direction*m.Spread/2,
		Commission: m.Commission * float64(amount) * direction,
		DT:         dt,
	}
}
