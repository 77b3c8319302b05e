package domain

import "time"

// PositionState is the serialized form of a tracked position.
type PositionState struct {
	SID           int64
	Amount        int64
	CostBasis     float64 // per-share average
	LastSalePrice *float64
	LastSaleDate  *time.Time
}

// PeriodState is the serialized form of a performance period.
type PeriodState struct {
	StartingValue float64
	StartingCash  float64
	EndingValue   float64
	EndingCash    float64
	CapitalUsed   float64 // net capital consumed in the period
	PnL           float64
	Returns       float64
	Positions     []PositionState
}

// RiskMetricsState is the serialized form of one risk window.
type RiskMetricsState struct {
	StartDate              time.Time
	EndDate                time.Time
	TradingDays            int
	AlgorithmPeriodReturns float64
	BenchmarkPeriodReturns float64
	TreasuryPeriodReturn   float64
	ExcessReturn           float64
	AlgorithmVolatility    float64
	BenchmarkVolatility    float64
	Sharpe                 float64
	Beta                   float64
	Alpha                  float64
	MaxDrawdown            float64
}

// PerformanceSnapshot is the per-day state of a performance tracker,
// emitted at every market close and at end of run.
type PerformanceSnapshot struct {
	RunID                 string
	Date                  time.Time // the day this snapshot closes
	PeriodStart           time.Time
	PeriodEnd             time.Time
	Progress              float64
	CumulativeCapitalUsed float64
	MaxCapitalUsed        float64
	MaxLeverage           float64
	LastOpen              time.Time
	LastClose             time.Time
	CapitalBase           float64
	Returns               []DailyReturn
	Cumulative            PeriodState
	Today                 PeriodState
	CumulativeRisk        *RiskMetricsState
}
