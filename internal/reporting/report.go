// Package reporting renders completed simulation runs as Markdown
// summaries and CSV return series.
package reporting

import (
	"time"

	"backtest-lab/internal/domain"
)

// Summary is the renderable form of a completed run.
type Summary struct {
	GeneratedAt time.Time
	RunID       string

	PeriodStart time.Time
	PeriodEnd   time.Time
	Progress    float64
	TradingDays int

	CapitalBase           float64
	CumulativeCapitalUsed float64
	MaxCapitalUsed        float64
	MaxLeverage           float64

	PnL               float64
	CumulativeReturns float64

	Positions []PositionRow
	Returns   []domain.DailyReturn

	// CumulativeRisk is the whole-period risk window from the final
	// snapshot, nil when the run closed no trading day.
	CumulativeRisk *domain.RiskMetricsState

	// RiskWindows lists the rolling windows of the terminal risk
	// report, when one is available.
	RiskWindows []RiskWindowRow
}

// PositionRow is one open position at end of run.
type PositionRow struct {
	SID           int64
	Amount        int64
	CostBasis     float64
	LastSalePrice *float64
}

// RiskWindowRow is one rolling risk window.
type RiskWindowRow struct {
	Duration         string // "1-month", "3-month", "6-month", "12-month"
	StartDate        time.Time
	EndDate          time.Time
	AlgorithmReturns float64
	BenchmarkReturns float64
	ExcessReturn     float64
	Sharpe           float64
	Beta             float64
	Alpha            float64
	MaxDrawdown      float64
}
