package storage

import (
	"context"
	"time"

	"backtest-lab/internal/domain"
)

// TradeStore provides access to historical trade prints.
type TradeStore interface {
	// InsertBulk adds multiple trades atomically. Fails entire batch on
	// any duplicate (sid, dt).
	InsertBulk(ctx context.Context, trades []*domain.TradeRecord) error

	// GetBySID retrieves all trades for a sid, ordered by dt ASC.
	GetBySID(ctx context.Context, sid int64) ([]*domain.TradeRecord, error)

	// GetByTimeRange retrieves trades for a sid within [start, end]
	// (inclusive), ordered by dt ASC.
	GetByTimeRange(ctx context.Context, sid int64, start, end time.Time) ([]*domain.TradeRecord, error)
}

// BenchmarkStore provides access to benchmark returns and treasury
// curve reference data.
type BenchmarkStore interface {
	// InsertReturns adds daily benchmark returns atomically. Fails
	// entire batch on any duplicate date.
	InsertReturns(ctx context.Context, returns []domain.DailyReturn) error

	// GetReturns retrieves daily returns within [start, end]
	// (inclusive, dates normalized to midnight UTC), ordered by date ASC.
	GetReturns(ctx context.Context, start, end time.Time) ([]domain.DailyReturn, error)

	// InsertTreasuryCurves adds per-day treasury curves atomically.
	// Fails entire batch on any duplicate (date, duration).
	InsertTreasuryCurves(ctx context.Context, curves map[time.Time]domain.TreasuryCurve) error

	// GetTreasuryCurves retrieves curves within [start, end]
	// (inclusive, dates normalized to midnight UTC).
	GetTreasuryCurves(ctx context.Context, start, end time.Time) (map[time.Time]domain.TreasuryCurve, error)
}

// SnapshotStore provides access to per-day performance snapshots.
type SnapshotStore interface {
	// Insert adds a snapshot. Returns ErrDuplicateKey if (run_id, date)
	// exists.
	Insert(ctx context.Context, s *domain.PerformanceSnapshot) error

	// GetByRunID retrieves all snapshots for a run, ordered by date ASC.
	GetByRunID(ctx context.Context, runID string) ([]*domain.PerformanceSnapshot, error)

	// GetLatest retrieves the most recent snapshot for a run. Returns
	// ErrNotFound if the run has no snapshots.
	GetLatest(ctx context.Context, runID string) (*domain.PerformanceSnapshot, error)
}
