// Package calendar provides the trading environment: the exchange
// calendar, benchmark and treasury reference series, and the simulation
// period parameters. An Environment is immutable after construction and
// may be shared freely across components.
package calendar

import (
	"errors"
	"time"

	"backtest-lab/internal/domain"
)

// ErrExhausted is returned when the simulation attempts to advance past
// the last known trading day.
var ErrExhausted = errors.New("attempt to backtest beyond available trading history")

// Market hours, UTC (09:30-16:00 New York).
const (
	MarketOpenHour   = 14
	MarketOpenMinute = 30
	MarketCloseHour  = 21
)

// TradingDay is the span of one trading session; CalendarDay advances
// the market-open marker during rollover.
const (
	TradingDay  = 6*time.Hour + 30*time.Minute
	CalendarDay = 24 * time.Hour
)

// Environment supplies the calendar, benchmark daily returns, treasury
// curves, and the simulation period. FrameIndex is the column schema for
// frames handed to the algorithm.
type Environment struct {
	TradingDays      []time.Time // sorted, normalized to midnight UTC
	BenchmarkReturns []domain.DailyReturn
	TreasuryCurves   map[time.Time]domain.TreasuryCurve
	PeriodStart      time.Time
	PeriodEnd        time.Time
	CapitalBase      float64
	MaxDrawdown      float64 // fraction
	FrameIndex       []string

	dayMap map[time.Time]domain.DailyReturn
}

// Options configures a new Environment.
type Options struct {
	BenchmarkReturns []domain.DailyReturn
	TreasuryCurves   map[time.Time]domain.TreasuryCurve
	PeriodStart      time.Time
	PeriodEnd        time.Time
	CapitalBase      float64
	MaxDrawdown      float64
	FrameIndex       []string
}

// DefaultFrameIndex is the standard frame schema.
var DefaultFrameIndex = []string{"sid", "price", "volume", "dt"}

// New builds an Environment. Trading days are derived from the benchmark
// return series, which is assumed sorted by date ascending.
func New(opts Options) *Environment {
	frameIndex := opts.FrameIndex
	if len(frameIndex) == 0 {
		frameIndex = DefaultFrameIndex
	}

	env := &Environment{
		BenchmarkReturns: opts.BenchmarkReturns,
		TreasuryCurves:   opts.TreasuryCurves,
		PeriodStart:      opts.PeriodStart.UTC(),
		PeriodEnd:        opts.PeriodEnd.UTC(),
		CapitalBase:      opts.CapitalBase,
		MaxDrawdown:      opts.MaxDrawdown,
		FrameIndex:       frameIndex,
		dayMap:           make(map[time.Time]domain.DailyReturn, len(opts.BenchmarkReturns)),
	}

	for _, bm := range opts.BenchmarkReturns {
		day := NormalizeDate(bm.Date)
		env.TradingDays = append(env.TradingDays, day)
		env.dayMap[day] = bm
	}

	return env
}

// NormalizeDate truncates a timestamp to midnight UTC.
func NormalizeDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IsTradingDay reports whether the exchange is open on the given date.
func (e *Environment) IsTradingDay(t time.Time) bool {
	_, ok := e.dayMap[NormalizeDate(t)]
	return ok
}

// BenchmarkReturn returns the benchmark's daily return for the date, or
// 0 when the date is not a trading day.
func (e *Environment) BenchmarkReturn(t time.Time) float64 {
	if bm, ok := e.dayMap[NormalizeDate(t)]; ok {
		return bm.Returns
	}
	return 0.0
}

// MarketOpen returns the session open on the given date.
func MarketOpen(day time.Time) time.Time {
	day = NormalizeDate(day)
	return day.Add(MarketOpenHour*time.Hour + MarketOpenMinute*time.Minute)
}

// IsMarketHours reports whether t falls inside a trading session:
// a trading day, at or after the open and strictly before the close.
func (e *Environment) IsMarketHours(t time.Time) bool {
	t = t.UTC()
	if !e.IsTradingDay(t) {
		return false
	}
	open := MarketOpen(t)
	close := NormalizeDate(t).Add(MarketCloseHour * time.Hour)
	return !t.Before(open) && t.Before(close)
}

// FirstOpen returns the market open of the first trading day at or after
// PeriodStart.
func (e *Environment) FirstOpen() time.Time {
	for _, day := range e.TradingDays {
		if !day.Before(NormalizeDate(e.PeriodStart)) {
			return MarketOpen(day)
		}
	}
	return MarketOpen(e.PeriodStart)
}

// LastTradingDay returns the final date in the calendar, zero when the
// calendar is empty.
func (e *Environment) LastTradingDay() time.Time {
	if len(e.TradingDays) == 0 {
		return time.Time{}
	}
	return e.TradingDays[len(e.TradingDays)-1]
}

// NextTradingDT steps current forward by interval until it lands inside
// market hours. Returns ErrExhausted when the step walks past the
// calendar's last trading day.
func (e *Environment) NextTradingDT(current time.Time, interval time.Duration) (time.Time, error) {
	next := current
	for {
		next = next.Add(interval)
		if e.IsMarketHours(next) {
			return next, nil
		}
		if NormalizeDate(next).After(e.LastTradingDay()) {
			return time.Time{}, ErrExhausted
		}
	}
}

// NextTradingDay advances a market-open marker by whole calendar days
// until it lands on a trading day. Returns ErrExhausted when the advance
// passes the calendar's last day.
func (e *Environment) NextTradingDay(open time.Time) (time.Time, error) {
	next := open.Add(CalendarDay)
	for !e.IsTradingDay(next) {
		if next.After(e.LastTradingDay()) {
			return time.Time{}, ErrExhausted
		}
		next = next.Add(CalendarDay)
	}
	return next, nil
}

// TreasuryCurve returns the curve published on the given date, searching
// forward up to a week when the date itself has none (weekends,
// holidays).
func (e *Environment) TreasuryCurve(date time.Time) (domain.TreasuryCurve, bool) {
	day := NormalizeDate(date)
	for i := 0; i < 7; i++ {
		if curve, ok := e.TreasuryCurves[day.Add(time.Duration(i)*CalendarDay)]; ok {
			return curve, true
		}
	}
	return nil, false
}
