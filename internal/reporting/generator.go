package reporting

import (
	"context"
	"fmt"
	"time"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/risk"
	"backtest-lab/internal/storage"
)

// Generator produces run summaries from stored snapshots.
type Generator struct {
	snapshots storage.SnapshotStore
	now       func() time.Time // injectable clock for deterministic output
}

// NewGenerator creates a new report generator.
func NewGenerator(snapshots storage.SnapshotStore) *Generator {
	return &Generator{
		snapshots: snapshots,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// WithClock sets a custom clock function for deterministic output.
func (g *Generator) WithClock(now func() time.Time) *Generator {
	g.now = now
	return g
}

// Generate builds a summary for a run from its latest stored snapshot.
// The risk report is optional; when present its rolling windows are
// included.
func (g *Generator) Generate(ctx context.Context, runID string, report *risk.Report) (*Summary, error) {
	latest, err := g.snapshots.GetLatest(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load snapshot for run %s: %w", runID, err)
	}
	return BuildSummary(latest, report, g.now()), nil
}

// BuildSummary assembles a summary from a final snapshot and an
// optional terminal risk report.
func BuildSummary(snap *domain.PerformanceSnapshot, report *risk.Report, now time.Time) *Summary {
	s := &Summary{
		GeneratedAt:           now,
		RunID:                 snap.RunID,
		PeriodStart:           snap.PeriodStart,
		PeriodEnd:             snap.PeriodEnd,
		Progress:              snap.Progress,
		TradingDays:           len(snap.Returns),
		CapitalBase:           snap.CapitalBase,
		CumulativeCapitalUsed: snap.CumulativeCapitalUsed,
		MaxCapitalUsed:        snap.MaxCapitalUsed,
		MaxLeverage:           snap.MaxLeverage,
		PnL:                   snap.Cumulative.PnL,
		CumulativeReturns:     snap.Cumulative.Returns,
		Returns:               snap.Returns,
		CumulativeRisk:        snap.CumulativeRisk,
	}

	for _, pos := range snap.Cumulative.Positions {
		if pos.Amount == 0 {
			continue
		}
		s.Positions = append(s.Positions, PositionRow{
			SID:           pos.SID,
			Amount:        pos.Amount,
			CostBasis:     pos.CostBasis,
			LastSalePrice: pos.LastSalePrice,
		})
	}

	if report != nil {
		s.RiskWindows = append(s.RiskWindows, windowRows("1-month", report.MonthPeriods)...)
		s.RiskWindows = append(s.RiskWindows, windowRows("3-month", report.ThreeMonthPeriods)...)
		s.RiskWindows = append(s.RiskWindows, windowRows("6-month", report.SixMonthPeriods)...)
		s.RiskWindows = append(s.RiskWindows, windowRows("12-month", report.YearPeriods)...)
	}
	return s
}

func windowRows(duration string, windows []*risk.Metrics) []RiskWindowRow {
	rows := make([]RiskWindowRow, 0, len(windows))
	for _, m := range windows {
		rows = append(rows, RiskWindowRow{
			Duration:         duration,
			StartDate:        m.StartDate,
			EndDate:          m.EndDate,
			AlgorithmReturns: m.AlgorithmPeriodReturns,
			BenchmarkReturns: m.BenchmarkPeriodReturns,
			ExcessReturn:     m.ExcessReturn,
			Sharpe:           m.Sharpe,
			Beta:             m.Beta,
			Alpha:            m.Alpha,
			MaxDrawdown:      m.MaxDrawdown,
		})
	}
	return rows
}
