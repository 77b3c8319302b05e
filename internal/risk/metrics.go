// Package risk computes risk/return metrics over windows of daily
// returns: period returns, annualized volatility, Sharpe ratio, beta and
// alpha against a benchmark, and max drawdown, plus the rolling-window
// report emitted at end of simulation.
package risk

import (
	"fmt"
	"math"
	"time"

	"backtest-lab/internal/calendar"
	"backtest-lab/internal/domain"
)

// Metrics is one risk window: the annualized/aggregated measures for
// algorithm returns against the benchmark between StartDate and EndDate.
type Metrics struct {
	StartDate        time.Time
	EndDate          time.Time
	TradingDays      int
	AlgorithmReturns []float64 // daily, trading days only
	BenchmarkReturns []float64

	AlgorithmPeriodReturns float64
	BenchmarkPeriodReturns float64
	TreasuryPeriodReturn   float64
	TreasuryDuration       string
	ExcessReturn           float64
	AlgorithmVolatility    float64
	BenchmarkVolatility    float64
	Sharpe                 float64
	Beta                   float64
	Alpha                  float64
	MaxDrawdown            float64
}

// NewMetrics computes a risk window over the given daily returns, which
// must be sorted by date ascending. Non-trading days are excluded.
// Windows with no trading-day returns yield zeroed metrics.
func NewMetrics(start, end time.Time, returns []domain.DailyReturn, env *calendar.Environment) (*Metrics, error) {
	m := &Metrics{
		StartDate: calendar.NormalizeDate(start),
		EndDate:   calendar.NormalizeDate(end),
	}

	if len(returns) == 0 {
		return m, nil
	}

	// benchmark days clipped to the span actually covered by the
	// algorithm's return series
	first := calendar.NormalizeDate(returns[0].Date)
	last := calendar.NormalizeDate(returns[len(returns)-1].Date)
	var bmReturns []domain.DailyReturn
	for _, bm := range env.BenchmarkReturns {
		day := calendar.NormalizeDate(bm.Date)
		if !day.Before(first) && !day.After(last) {
			bmReturns = append(bmReturns, bm)
		}
	}

	m.AlgorithmPeriodReturns, m.AlgorithmReturns = m.periodReturns(returns, env)
	m.BenchmarkPeriodReturns, m.BenchmarkReturns = m.periodReturns(bmReturns, env)

	if len(m.AlgorithmReturns) != len(m.BenchmarkReturns) {
		return nil, fmt.Errorf(
			"benchmark returns (%d) and algorithm returns (%d) mismatch in range %s : %s",
			len(m.BenchmarkReturns), len(m.AlgorithmReturns),
			m.StartDate.Format("2006-01-02"), m.EndDate.Format("2006-01-02"))
	}

	m.TradingDays = len(m.BenchmarkReturns)
	if m.TradingDays == 0 {
		return m, nil
	}

	m.AlgorithmVolatility = m.volatility(m.AlgorithmReturns)
	m.BenchmarkVolatility = m.volatility(m.BenchmarkReturns)
	m.TreasuryPeriodReturn = m.chooseTreasury(env)
	m.Sharpe = m.sharpe()
	m.Beta = computeBeta(m.AlgorithmReturns, m.BenchmarkReturns)
	m.Alpha = m.AlgorithmPeriodReturns -
		(m.TreasuryPeriodReturn + m.Beta*(m.BenchmarkPeriodReturns-m.TreasuryPeriodReturn))
	m.ExcessReturn = m.AlgorithmPeriodReturns - m.TreasuryPeriodReturn
	m.MaxDrawdown = computeMaxDrawdown(m.AlgorithmReturns)

	return m, nil
}

// periodReturns filters the series to trading days inside the window and
// compounds them into a single period return.
func (m *Metrics) periodReturns(daily []domain.DailyReturn, env *calendar.Environment) (float64, []float64) {
	var returns []float64
	for _, d := range daily {
		day := calendar.NormalizeDate(d.Date)
		if day.Before(m.StartDate) || day.After(m.EndDate) {
			continue
		}
		if !env.IsTradingDay(day) {
			continue
		}
		returns = append(returns, d.Returns)
	}
	return compoundReturns(returns), returns
}

// volatility annualizes the sample standard deviation by the square root
// of the window's trading days.
func (m *Metrics) volatility(returns []float64) float64 {
	return computeStddev(returns, computeMean(returns)) * math.Sqrt(float64(m.TradingDays))
}

func (m *Metrics) sharpe() float64 {
	if m.AlgorithmVolatility == 0 {
		return 0
	}
	return (m.AlgorithmPeriodReturns - m.TreasuryPeriodReturn) / m.AlgorithmVolatility
}

// varianceEpsilon is the floor below which a benchmark series counts as
// constant; float rounding leaves a constant series with a tiny nonzero
// sample variance.
const varianceEpsilon = 1e-12

// computeBeta is the sample covariance of the algorithm against the
// benchmark over the benchmark's variance. Returns 0 below two days or
// for a flat benchmark.
func computeBeta(algo, benchmark []float64) float64 {
	if len(algo) < 2 {
		return 0
	}
	variance := computeCovariance(benchmark, benchmark)
	if variance < varianceEpsilon {
		return 0
	}
	return computeCovariance(algo, benchmark) / variance
}

// treasuryDurations orders the duration labels by the period length that
// selects them.
var treasuryDurations = []struct {
	maxDays  int
	duration string
}{
	{31, "1month"},
	{93, "3month"},
	{186, "6month"},
	{366, "1year"},
	{365*2 + 1, "2year"},
	{365*3 + 1, "3year"},
	{365*5 + 2, "5year"},
	{365*7 + 2, "7year"},
	{365*10 + 2, "10year"},
}

// chooseTreasury picks the treasury rate whose duration matches the
// window length, scaled to the window: rate * (days+1) / 365. Windows
// with no published curve fall back to zero.
func (m *Metrics) chooseTreasury(env *calendar.Environment) float64 {
	days := int(m.EndDate.Sub(m.StartDate).Hours() / 24)

	m.TreasuryDuration = "30year"
	for _, td := range treasuryDurations {
		if days <= td.maxDays {
			m.TreasuryDuration = td.duration
			break
		}
	}

	curve, ok := env.TreasuryCurve(m.EndDate)
	if !ok {
		return 0
	}

	rate := curve[m.TreasuryDuration]
	// 1-month note data has gaps; degrade to the 3-month rate
	if rate == nil && m.TreasuryDuration == "1month" {
		rate = curve["3month"]
	}
	if rate == nil {
		return 0
	}

	return *rate * float64(days+1) / 365.0
}

// State serializes the window for snapshots.
func (m *Metrics) State() *domain.RiskMetricsState {
	return &domain.RiskMetricsState{
		StartDate:              m.StartDate,
		EndDate:                m.EndDate,
		TradingDays:            m.TradingDays,
		AlgorithmPeriodReturns: m.AlgorithmPeriodReturns,
		BenchmarkPeriodReturns: m.BenchmarkPeriodReturns,
		TreasuryPeriodReturn:   m.TreasuryPeriodReturn,
		ExcessReturn:           m.ExcessReturn,
		AlgorithmVolatility:    m.AlgorithmVolatility,
		BenchmarkVolatility:    m.BenchmarkVolatility,
		Sharpe:                 m.Sharpe,
		Beta:                   m.Beta,
		Alpha:                  m.Alpha,
		MaxDrawdown:            m.MaxDrawdown,
	}
}
