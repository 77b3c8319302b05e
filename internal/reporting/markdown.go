package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders a run summary as a Markdown string.
func RenderMarkdown(s *Summary) string {
	var sb strings.Builder

	sb.WriteString("# Simulation Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", s.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Run: `%s`\n\n", s.RunID))

	sb.WriteString("## Run\n\n")
	sb.WriteString("| Metric | Value |\n")
	sb.WriteString("|--------|-------|\n")
	sb.WriteString(fmt.Sprintf("| Period Start | %s |\n", s.PeriodStart.Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("| Period End | %s |\n", s.PeriodEnd.Format("2006-01-02")))
	sb.WriteString(fmt.Sprintf("| Progress | %.2f%% |\n", s.Progress*100))
	sb.WriteString(fmt.Sprintf("| Trading Days | %d |\n", s.TradingDays))
	sb.WriteString(fmt.Sprintf("| Capital Base | %.2f |\n", s.CapitalBase))
	sb.WriteString(fmt.Sprintf("| Cumulative Capital Used | %.2f |\n", s.CumulativeCapitalUsed))
	sb.WriteString(fmt.Sprintf("| Max Capital Used | %.2f |\n", s.MaxCapitalUsed))
	sb.WriteString(fmt.Sprintf("| Max Leverage | %.4f |\n", s.MaxLeverage))
	sb.WriteString(fmt.Sprintf("| PnL | %.2f |\n", s.PnL))
	sb.WriteString(fmt.Sprintf("| Cumulative Returns | %.6f |\n", s.CumulativeReturns))
	sb.WriteString("\n")

	if len(s.Positions) > 0 {
		sb.WriteString("## Open Positions\n\n")
		sb.WriteString("| SID | Amount | Cost Basis | Last Sale |\n")
		sb.WriteString("|-----|--------|------------|----------|\n")
		for _, pos := range s.Positions {
			lastSale := "-"
			if pos.LastSalePrice != nil {
				lastSale = fmt.Sprintf("%.4f", *pos.LastSalePrice)
			}
			sb.WriteString(fmt.Sprintf("| %d | %d | %.4f | %s |\n",
				pos.SID, pos.Amount, pos.CostBasis, lastSale))
		}
		sb.WriteString("\n")
	}

	if s.CumulativeRisk != nil {
		r := s.CumulativeRisk
		sb.WriteString("## Cumulative Risk\n\n")
		sb.WriteString("| Metric | Value |\n")
		sb.WriteString("|--------|-------|\n")
		sb.WriteString(fmt.Sprintf("| Algorithm Period Returns | %.6f |\n", r.AlgorithmPeriodReturns))
		sb.WriteString(fmt.Sprintf("| Benchmark Period Returns | %.6f |\n", r.BenchmarkPeriodReturns))
		sb.WriteString(fmt.Sprintf("| Excess Return | %.6f |\n", r.ExcessReturn))
		sb.WriteString(fmt.Sprintf("| Algorithm Volatility | %.6f |\n", r.AlgorithmVolatility))
		sb.WriteString(fmt.Sprintf("| Sharpe | %.4f |\n", r.Sharpe))
		sb.WriteString(fmt.Sprintf("| Beta | %.4f |\n", r.Beta))
		sb.WriteString(fmt.Sprintf("| Alpha | %.6f |\n", r.Alpha))
		sb.WriteString(fmt.Sprintf("| Max Drawdown | %.6f |\n", r.MaxDrawdown))
		sb.WriteString("\n")
	}

	if len(s.RiskWindows) > 0 {
		sb.WriteString("## Rolling Risk Windows\n\n")
		sb.WriteString("| Window | Start | End | Algo Return | Bench Return | Sharpe | Beta | Max Drawdown |\n")
		sb.WriteString("|--------|-------|-----|-------------|--------------|--------|------|--------------|\n")
		for _, w := range s.RiskWindows {
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %.6f | %.6f | %.4f | %.4f | %.6f |\n",
				w.Duration,
				w.StartDate.Format("2006-01-02"),
				w.EndDate.Format("2006-01-02"),
				w.AlgorithmReturns,
				w.BenchmarkReturns,
				w.Sharpe,
				w.Beta,
				w.MaxDrawdown,
			))
		}
		sb.WriteString("\n")
	}

	return sb.String()
}
