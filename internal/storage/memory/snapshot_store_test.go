package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

func snapshot(runID string, date time.Time) *domain.PerformanceSnapshot {
	price := 10.5
	return &domain.PerformanceSnapshot{
		RunID:       runID,
		Date:        date,
		PeriodStart: day(2006, 1, 1),
		PeriodEnd:   day(2006, 4, 1),
		Progress:    0.5,
		CapitalBase: 100000.0,
		Returns:     []domain.DailyReturn{{Date: date, Returns: 0.01}},
		Cumulative: domain.PeriodState{
			EndingCash:  90000.0,
			EndingValue: 11000.0,
			Positions: []domain.PositionState{
				{SID: 133, Amount: 100, CostBasis: 10.0, LastSalePrice: &price},
			},
		},
		CumulativeRisk: &domain.RiskMetricsState{Sharpe: 1.2, TradingDays: 60},
	}
}

func TestSnapshotStore_InsertAndGet(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	if err := store.Insert(ctx, snapshot("run-1", day(2006, 1, 4))); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, snapshot("run-1", day(2006, 1, 3))); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := store.Insert(ctx, snapshot("run-2", day(2006, 1, 3))); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}

	result, err := store.GetByRunID(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetByRunID failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("Expected 2 snapshots, got %d", len(result))
	}
	if !result[0].Date.Equal(day(2006, 1, 3)) {
		t.Errorf("Snapshots not ordered by date: %v", result[0].Date)
	}
	if len(result[0].Cumulative.Positions) != 1 || result[0].Cumulative.Positions[0].SID != 133 {
		t.Errorf("Positions not preserved: %+v", result[0].Cumulative.Positions)
	}
}

func TestSnapshotStore_DuplicateKey(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	if err := store.Insert(ctx, snapshot("run-1", day(2006, 1, 3))); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	err := store.Insert(ctx, snapshot("run-1", day(2006, 1, 3)))
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}
}

func TestSnapshotStore_GetLatest(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	if _, err := store.GetLatest(ctx, "run-1"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("Expected ErrNotFound, got %v", err)
	}

	for d := 3; d <= 6; d++ {
		if err := store.Insert(ctx, snapshot("run-1", day(2006, 1, d))); err != nil {
			t.Fatalf("Insert failed: %v", err)
		}
	}

	latest, err := store.GetLatest(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if !latest.Date.Equal(day(2006, 1, 6)) {
		t.Errorf("Latest date = %v, want 2006-01-06", latest.Date)
	}
}

func TestSnapshotStore_DefensiveCopy(t *testing.T) {
	store := NewSnapshotStore()
	ctx := context.Background()

	original := snapshot("run-1", day(2006, 1, 3))
	if err := store.Insert(ctx, original); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	original.Returns[0].Returns = 99.0
	*original.Cumulative.Positions[0].LastSalePrice = 0
	original.CumulativeRisk.Sharpe = 0

	stored, err := store.GetLatest(ctx, "run-1")
	if err != nil {
		t.Fatalf("GetLatest failed: %v", err)
	}
	if stored.Returns[0].Returns != 0.01 {
		t.Errorf("Returns slice shared with caller: %f", stored.Returns[0].Returns)
	}
	if *stored.Cumulative.Positions[0].LastSalePrice != 10.5 {
		t.Errorf("Position pointer shared with caller")
	}
	if stored.CumulativeRisk.Sharpe != 1.2 {
		t.Errorf("Risk metrics shared with caller: %f", stored.CumulativeRisk.Sharpe)
	}

	if err := store.Insert(ctx, snapshot("run-1", day(2006, 1, 4))); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
}
