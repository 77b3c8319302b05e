package perf

import (
	"fmt"
	"log"
	"math"
	"time"

	"backtest-lab/internal/calendar"
	"backtest-lab/internal/domain"
	"backtest-lab/internal/risk"
)

// capitalCushionBase is the granularity of the max-capital watermark.
const capitalCushionBase = 5000.0

// Options configures a Tracker.
type Options struct {
	Environment *calendar.Environment
	Logger      *log.Logger
	RunID       string

	// OnSnapshot, when set, receives the snapshot emitted at every
	// market close and at end of run.
	OnSnapshot func(*domain.PerformanceSnapshot)
}

// Tracker maintains cumulative and current-day accounting for a
// simulation run. It consumes the merged event stream in order and
// rolls the day over whenever an event lands at or past the market
// close. Not safe for concurrent use.
type Tracker struct {
	env        *calendar.Environment
	logger     *log.Logger
	runID      string
	onSnapshot func(*domain.PerformanceSnapshot)

	periodStart time.Time
	periodEnd   time.Time
	marketOpen  time.Time
	marketClose time.Time

	totalDays int
	dayCount  int
	progress  float64

	capitalBase           float64
	cumulativeCapitalUsed float64
	maxCapitalUsed        float64
	maxLeverage           float64

	returns    []domain.DailyReturn
	eventCount int64
	txnCount   int64

	Cumulative *PerformancePeriod
	Today      *PerformancePeriod

	cumulativeRisk *risk.Metrics
}

// NewTracker builds a tracker positioned at the first trading session of
// the environment's period.
func NewTracker(opts Options) *Tracker {
	env := opts.Environment
	logger := opts.Logger
	if logger == nil {
		logger = log.Default()
	}

	open := env.FirstOpen()
	t := &Tracker{
		env:         env,
		logger:      logger,
		runID:       opts.RunID,
		onSnapshot:  opts.OnSnapshot,
		periodStart: env.PeriodStart,
		periodEnd:   env.PeriodEnd,
		marketOpen:  open,
		marketClose: open.Add(calendar.TradingDay),
		totalDays:   int(env.PeriodEnd.Sub(env.PeriodStart).Hours() / 24),
		capitalBase: env.CapitalBase,
	}

	// each period keeps its own positions; a fill is applied to both,
	// so sharing one map would double every update
	t.Cumulative = NewPeriod(make(map[int64]*Position), 0.0, env.CapitalBase)
	t.Today = NewPeriod(make(map[int64]*Position), 0.0, env.CapitalBase)

	return t
}

// ProcessEvent folds one event into the books. Events must arrive in
// chronological order; an event at or past the market close rolls the
// day over first.
func (t *Tracker) ProcessEvent(ev *domain.Event) error {
	if !ev.DT.Before(t.marketClose) {
		if err := t.handleMarketClose(); err != nil {
			return err
		}
	}

	t.eventCount++

	// merged records carry fills attached to the base event
	if ev.Txn != nil {
		if err := t.executeTransaction(ev.Txn); err != nil {
			return err
		}
	}

	t.Cumulative.UpdateLastSale(ev)
	t.Today.UpdateLastSale(ev)

	t.Cumulative.CalculatePerformance()
	t.Today.CalculatePerformance()

	return nil
}

// executeTransaction applies a fill to both accounting periods and
// advances the capital-use watermark.
func (t *Tracker) executeTransaction(txn *domain.Transaction) error {
	if err := t.Cumulative.ExecuteTransaction(txn); err != nil {
		return err
	}
	if err := t.Today.ExecuteTransaction(txn); err != nil {
		return err
	}

	t.txnCount++
	t.cumulativeCapitalUsed += txn.Price * float64(txn.Amount)

	// watermark carries a 10% cushion, rounded to the nearest 5000
	if math.Abs(t.cumulativeCapitalUsed) > t.maxCapitalUsed {
		t.maxCapitalUsed = roundToNearest(1.1*math.Abs(t.cumulativeCapitalUsed), capitalCushionBase)
		if t.capitalBase != 0 {
			t.maxLeverage = t.maxCapitalUsed / t.capitalBase
		}
	}

	return nil
}

// handleMarketClose records the day's return, recomputes cumulative
// risk, advances the session markers, and reseeds the day's period.
func (t *Tracker) handleMarketClose() error {
	t.Today.CalculatePerformance()
	t.returns = append(t.returns, domain.DailyReturn{
		Date:    calendar.NormalizeDate(t.marketClose),
		Returns: t.Today.Returns,
	})

	metrics, err := risk.NewMetrics(t.periodStart, t.marketClose, t.returns, t.env)
	if err != nil {
		return fmt.Errorf("cumulative risk: %w", err)
	}
	t.cumulativeRisk = metrics

	nextOpen, err := t.env.NextTradingDay(t.marketOpen)
	if err != nil {
		return err
	}
	t.marketOpen = nextOpen
	t.marketClose = nextOpen.Add(calendar.TradingDay)

	t.dayCount++
	if t.totalDays > 0 {
		t.progress = float64(t.dayCount) / float64(t.totalDays)
	}

	// carry positions forward; the new day starts where the old one ended
	t.Today = NewPeriod(t.Today.Positions, t.Today.EndingValue, t.Today.EndingCash)

	t.emitSnapshot()
	return nil
}

// OnComplete closes the books at end of stream and builds the terminal
// rolling-window risk report.
func (t *Tracker) OnComplete() (*risk.Report, error) {
	t.Cumulative.CalculatePerformance()
	t.Today.CalculatePerformance()

	report, err := risk.NewReport(t.returns, t.env)
	if err != nil {
		return nil, fmt.Errorf("risk report: %w", err)
	}

	t.logger.Printf("[perf] run %s complete: %d events, %d transactions, %d trading days",
		t.runID, t.eventCount, t.txnCount, t.dayCount)
	t.emitSnapshot()

	return report, nil
}

// Snapshot captures the tracker's current state.
func (t *Tracker) Snapshot() *domain.PerformanceSnapshot {
	returns := make([]domain.DailyReturn, len(t.returns))
	copy(returns, t.returns)

	snap := &domain.PerformanceSnapshot{
		RunID:                 t.runID,
		Date:                  calendar.NormalizeDate(t.marketClose),
		PeriodStart:           t.periodStart,
		PeriodEnd:             t.periodEnd,
		Progress:              t.progress,
		CumulativeCapitalUsed: t.cumulativeCapitalUsed,
		MaxCapitalUsed:        t.maxCapitalUsed,
		MaxLeverage:           t.maxLeverage,
		LastOpen:              t.marketOpen,
		LastClose:             t.marketClose,
		CapitalBase:           t.capitalBase,
		Returns:               returns,
		Cumulative:            t.Cumulative.State(),
		Today:                 t.Today.State(),
	}
	if t.cumulativeRisk != nil {
		snap.CumulativeRisk = t.cumulativeRisk.State()
	}
	return snap
}

// Returns is the daily return series recorded so far.
func (t *Tracker) Returns() []domain.DailyReturn {
	return t.returns
}

// TransactionCount is the number of fills folded in so far.
func (t *Tracker) TransactionCount() int64 {
	return t.txnCount
}

func (t *Tracker) emitSnapshot() {
	if t.onSnapshot != nil {
		t.onSnapshot(t.Snapshot())
	}
}

// roundToNearest rounds to the closest multiple of base, halves away
// from zero.
func roundToNearest(x, base float64) float64 {
	return math.Round(x/base) * base
}
