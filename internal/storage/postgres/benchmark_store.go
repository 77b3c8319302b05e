package postgres

import (
	"context"
	"fmt"
	"sort"
	"time"

	"backtest-lab/internal/calendar"
	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

// BenchmarkStore implements storage.BenchmarkStore using PostgreSQL.
type BenchmarkStore struct {
	pool *Pool
}

// NewBenchmarkStore creates a new BenchmarkStore.
func NewBenchmarkStore(pool *Pool) *BenchmarkStore {
	return &BenchmarkStore{pool: pool}
}

// Compile-time interface check.
var _ storage.BenchmarkStore = (*BenchmarkStore)(nil)

// InsertReturns adds daily benchmark returns atomically. Fails entire
// batch on any duplicate date.
func (s *BenchmarkStore) InsertReturns(ctx context.Context, returns []domain.DailyReturn) error {
	if len(returns) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO benchmark_returns (day, returns)
		VALUES ($1, $2)
	`

	for _, r := range returns {
		_, err := tx.Exec(ctx, query, calendar.NormalizeDate(r.Date), r.Returns)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert benchmark return: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetReturns retrieves daily returns within [start, end] (inclusive),
// ordered by date ASC.
func (s *BenchmarkStore) GetReturns(ctx context.Context, start, end time.Time) ([]domain.DailyReturn, error) {
	query := `
		SELECT day, returns
		FROM benchmark_returns
		WHERE day >= $1 AND day <= $2
		ORDER BY day ASC
	`

	rows, err := s.pool.Query(ctx, query, calendar.NormalizeDate(start), calendar.NormalizeDate(end))
	if err != nil {
		return nil, fmt.Errorf("get benchmark returns: %w", err)
	}
	defer rows.Close()

	var returns []domain.DailyReturn
	for rows.Next() {
		var r domain.DailyReturn
		if err := rows.Scan(&r.Date, &r.Returns); err != nil {
			return nil, fmt.Errorf("scan benchmark return row: %w", err)
		}
		r.Date = calendar.NormalizeDate(r.Date)
		returns = append(returns, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate benchmark return rows: %w", err)
	}
	return returns, nil
}

// InsertTreasuryCurves adds per-day treasury curves atomically. Fails
// entire batch on any duplicate (date, duration).
func (s *BenchmarkStore) InsertTreasuryCurves(ctx context.Context, curves map[time.Time]domain.TreasuryCurve) error {
	if len(curves) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO treasury_curves (day, duration, rate)
		VALUES ($1, $2, $3)
	`

	// Deterministic insert order keeps duplicate reporting stable.
	days := make([]time.Time, 0, len(curves))
	for date := range curves {
		days = append(days, date)
	}
	sort.Slice(days, func(i, j int) bool { return days[i].Before(days[j]) })

	for _, date := range days {
		curve := curves[date]
		durations := make([]string, 0, len(curve))
		for duration := range curve {
			durations = append(durations, duration)
		}
		sort.Strings(durations)

		for _, duration := range durations {
			_, err := tx.Exec(ctx, query, calendar.NormalizeDate(date), duration, curve[duration])
			if err != nil {
				if isDuplicateKeyError(err) {
					return storage.ErrDuplicateKey
				}
				return fmt.Errorf("insert treasury rate: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetTreasuryCurves retrieves curves within [start, end] (inclusive).
func (s *BenchmarkStore) GetTreasuryCurves(ctx context.Context, start, end time.Time) (map[time.Time]domain.TreasuryCurve, error) {
	query := `
		SELECT day, duration, rate
		FROM treasury_curves
		WHERE day >= $1 AND day <= $2
		ORDER BY day ASC, duration ASC
	`

	rows, err := s.pool.Query(ctx, query, calendar.NormalizeDate(start), calendar.NormalizeDate(end))
	if err != nil {
		return nil, fmt.Errorf("get treasury curves: %w", err)
	}
	defer rows.Close()

	curves := make(map[time.Time]domain.TreasuryCurve)
	for rows.Next() {
		var (
			date     time.Time
			duration string
			rate     *float64
		)
		if err := rows.Scan(&date, &duration, &rate); err != nil {
			return nil, fmt.Errorf("scan treasury rate row: %w", err)
		}
		date = calendar.NormalizeDate(date)
		if curves[date] == nil {
			curves[date] = make(domain.TreasuryCurve)
		}
		curves[date][duration] = rate
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate treasury rate rows: %w", err)
	}
	return curves, nil
}
