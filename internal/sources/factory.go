package sources

import (
	"fmt"
	"time"

	"backtest-lab/internal/calendar"
	"backtest-lab/internal/domain"
)

// defaultPeriodStart anchors harness runs that do not pin a period.
var defaultPeriodStart = time.Date(2006, 1, 1, 0, 0, 0, 0, time.UTC)

// NormalizeConfig fills the period bounds of a harness config so the
// generated trade and order histories fit inside the calendar.
func NormalizeConfig(cfg *domain.SimulationConfig) {
	if cfg.PeriodStart.IsZero() {
		cfg.PeriodStart = defaultPeriodStart
	}
	if !cfg.PeriodEnd.IsZero() {
		return
	}

	tradingDays := sessionsFor(cfg.TradeCount, cfg.TradeInterval)
	if o := sessionsFor(cfg.OrderCount, cfg.OrderInterval); o > tradingDays {
		tradingDays = o
	}
	// weekday calendar: 5 trading days per 7, plus slack
	calendarDays := tradingDays*7/5 + 7
	cfg.PeriodEnd = cfg.PeriodStart.AddDate(0, 0, calendarDays)
}

// sessionsFor estimates how many trading sessions a generated stream of
// count events at the given spacing spans.
func sessionsFor(count int, interval time.Duration) int {
	if count == 0 || interval <= 0 {
		return 0
	}
	if interval >= calendar.CalendarDay {
		return count + 2
	}
	total := time.Duration(count) * interval
	return int(total/calendar.TradingDay) + 2
}

// CreateTestEnvironment builds a synthetic weekday trading environment
// for the config's period: flat benchmark returns and a constant
// treasury curve.
func CreateTestEnvironment(cfg domain.SimulationConfig) *calendar.Environment {
	rate := 0.045
	var returns []domain.DailyReturn
	curves := make(map[time.Time]domain.TreasuryCurve)

	for day := calendar.NormalizeDate(cfg.PeriodStart); !day.After(cfg.PeriodEnd); day = day.AddDate(0, 0, 1) {
		if day.Weekday() == time.Saturday || day.Weekday() == time.Sunday {
			continue
		}
		returns = append(returns, domain.DailyReturn{Date: day, Returns: 0.0})
		curves[day] = domain.TreasuryCurve{
			"1month": &rate, "3month": &rate, "6month": &rate, "1year": &rate,
		}
	}

	return calendar.New(calendar.Options{
		BenchmarkReturns: returns,
		TreasuryCurves:   curves,
		PeriodStart:      cfg.PeriodStart,
		PeriodEnd:        cfg.PeriodEnd,
		CapitalBase:      cfg.CapitalBase,
		MaxDrawdown:      cfg.MaxDrawdown,
	})
}

// CreateTradeHistory generates the synthetic trade stream: prints of
// the configured size and price, spaced by the trade interval stepping
// only through market hours. The delay shifts each print after its slot
// is chosen. A trade count that outruns the environment's calendar is
// calendar.ErrExhausted.
func CreateTradeHistory(sourceID string, cfg domain.SimulationConfig, env *calendar.Environment) ([]*domain.Event, error) {
	events := make([]*domain.Event, 0, cfg.TradeCount)
	dt := env.FirstOpen()
	for i := 0; i < cfg.TradeCount; i++ {
		events = append(events, domain.NewTradeEvent(
			sourceID, cfg.SID, cfg.TradePrice, cfg.TradeAmount, dt.Add(cfg.TradeDelay)))
		if i < cfg.TradeCount-1 {
			next, err := env.NextTradingDT(dt, cfg.TradeInterval)
			if err != nil {
				return nil, fmt.Errorf("trade %d of %d: %w", i+2, cfg.TradeCount, err)
			}
			dt = next
		}
	}
	return events, nil
}

// CreateOrderHistory generates the synthetic order stream. Order dates
// falling outside market hours are pushed to the next session's open.
func CreateOrderHistory(sourceID string, cfg domain.SimulationConfig, env *calendar.Environment) []*domain.Event {
	events := make([]*domain.Event, 0, cfg.OrderCount)
	amount := cfg.OrderAmount
	dt := env.FirstOpen()
	for i := 0; i < cfg.OrderCount; i++ {
		events = append(events, domain.NewOrderEvent(sourceID, cfg.SID, amount, dt))
		if cfg.Alternate {
			amount = -amount
		}
		dt = pushToMarketHours(env, dt.Add(cfg.OrderInterval))
	}
	return events
}

// pushToMarketHours moves an after-hours timestamp to the next 14:30
// open.
func pushToMarketHours(env *calendar.Environment, t time.Time) time.Time {
	if env.IsMarketHours(t) {
		return t
	}
	day := calendar.NormalizeDate(t)
	if env.IsTradingDay(day) && t.Before(calendar.MarketOpen(day)) {
		return calendar.MarketOpen(day)
	}
	next, err := env.NextTradingDay(calendar.MarketOpen(day))
	if err != nil {
		return t
	}
	return next
}
