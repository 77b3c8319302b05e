package reporting

import (
	"fmt"
	"strings"

	"backtest-lab/internal/domain"
)

// RenderReturnsCSV renders a daily return series as a CSV string.
func RenderReturnsCSV(returns []domain.DailyReturn) string {
	var sb strings.Builder

	sb.WriteString("date,returns\n")
	for _, r := range returns {
		sb.WriteString(fmt.Sprintf("%s,%.6f\n", r.Date.Format("2006-01-02"), r.Returns))
	}

	return sb.String()
}
