package risk

import (
	"fmt"
	"time"

	"backtest-lab/internal/calendar"
	"backtest-lab/internal/domain"
)

// Report aggregates risk metrics over month-aligned rolling windows of
// 1, 3, 6 and 12 months, each advancing one month at a time.
type Report struct {
	MonthPeriods      []*Metrics
	ThreeMonthPeriods []*Metrics
	SixMonthPeriods   []*Metrics
	YearPeriods       []*Metrics
}

// NewReport builds the terminal risk report from the full daily return
// series, which must be sorted by date ascending.
func NewReport(returns []domain.DailyReturn, env *calendar.Environment) (*Report, error) {
	if len(returns) == 0 {
		return &Report{}, nil
	}

	start := calendar.NormalizeDate(returns[0].Date)
	end := calendar.NormalizeDate(returns[len(returns)-1].Date)

	r := &Report{}
	var err error
	if r.MonthPeriods, err = periodsInRange(1, start, end, returns, env); err != nil {
		return nil, fmt.Errorf("1-month windows: %w", err)
	}
	if r.ThreeMonthPeriods, err = periodsInRange(3, start, end, returns, env); err != nil {
		return nil, fmt.Errorf("3-month windows: %w", err)
	}
	if r.SixMonthPeriods, err = periodsInRange(6, start, end, returns, env); err != nil {
		return nil, fmt.Errorf("6-month windows: %w", err)
	}
	if r.YearPeriods, err = periodsInRange(12, start, end, returns, env); err != nil {
		return nil, fmt.Errorf("12-month windows: %w", err)
	}

	return r, nil
}

// periodsInRange computes a metrics window of monthsPer months for every
// month-aligned start position whose window fits inside [start, end].
func periodsInRange(monthsPer int, start, end time.Time, returns []domain.DailyReturn, env *calendar.Environment) ([]*Metrics, error) {
	oneDay := 24 * time.Hour
	curStart := firstOfMonth(start)
	// extend to the end of the final calendar month so a series ending
	// mid-month still closes its last window
	theEnd := advanceByMonths(firstOfMonth(end), 1).Add(-oneDay)

	var windows []*Metrics
	for {
		curEnd := advanceByMonths(curStart, monthsPer).Add(-oneDay)
		if curEnd.After(theEnd) {
			break
		}
		m, err := NewMetrics(curStart, curEnd, returns, env)
		if err != nil {
			return nil, err
		}
		windows = append(windows, m)
		curStart = advanceByMonths(curStart, 1)
	}

	return windows, nil
}

func firstOfMonth(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// advanceByMonths moves a date forward by whole months, clamping nothing:
// callers always pass first-of-month dates.
func advanceByMonths(t time.Time, months int) time.Time {
	return time.Date(t.Year(), t.Month()+time.Month(months), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FindByEnd returns the metric window of the given duration ("month",
// "three_month", "six_month", "year") ending exactly on endDate, or nil.
func (r *Report) FindByEnd(duration string, endDate time.Time) *Metrics {
	var col []*Metrics
	switch duration {
	case "month":
		col = r.MonthPeriods
	case "three_month":
		col = r.ThreeMonthPeriods
	case "six_month":
		col = r.SixMonthPeriods
	case "year":
		col = r.YearPeriods
	}

	endDate = calendar.NormalizeDate(endDate)
	for _, m := range col {
		if m.EndDate.Equal(endDate) {
			return m
		}
	}
	return nil
}
