package domain

import "time"

// SimulationStyle selects the fill model used by the transaction simulator.
type SimulationStyle string

// Simulation style constants.
const (
	StyleVolumeShare   SimulationStyle = "VOLUME_SHARE"
	StyleFixedSlippage SimulationStyle = "FIXED_SLIPPAGE"
)

// SimulationConfig enumerates every configurable option of a simulated
// trading run, including the deterministic test-harness knobs used to
// generate synthetic trade and order streams.
type SimulationConfig struct {
	SID         int64
	CapitalBase float64
	PeriodStart time.Time
	PeriodEnd   time.Time
	MaxDrawdown float64 // fraction
	Style       SimulationStyle

	// Test harness: synthetic trade stream
	TradeCount    int
	TradeAmount   int64 // volume per trade
	TradePrice    float64
	TradeInterval time.Duration
	TradeDelay    time.Duration // shifts every trade after generation

	// Test harness: synthetic order stream
	OrderCount    int
	OrderAmount   int64
	OrderInterval time.Duration
	Alternate     bool // alternate buy/sell sign per order

	// Expectations asserted by harness runs
	CompleteFill      bool // each transaction matches its order exactly
	ExpectedTxnCount  int
	ExpectedTxnVolume int64
}

// DefaultSimulationConfig returns the canonical harness defaults.
func DefaultSimulationConfig() SimulationConfig {
	return SimulationConfig{
		SID:           133,
		CapitalBase:   100000.0,
		MaxDrawdown:   0.50,
		Style:         StyleVolumeShare,
		TradeCount:    100,
		TradeAmount:   100,
		TradePrice:    10.1,
		TradeInterval: time.Minute,
		OrderCount:    100,
		OrderAmount:   100,
		OrderInterval: time.Minute,
	}
}
