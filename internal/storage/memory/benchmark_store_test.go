package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestBenchmarkStore_ReturnsRoundTrip(t *testing.T) {
	store := NewBenchmarkStore()
	ctx := context.Background()

	err := store.InsertReturns(ctx, []domain.DailyReturn{
		{Date: day(2006, 1, 4), Returns: 0.02},
		{Date: day(2006, 1, 3), Returns: 0.01},
	})
	if err != nil {
		t.Fatalf("InsertReturns failed: %v", err)
	}

	result, err := store.GetReturns(ctx, day(2006, 1, 1), day(2006, 1, 31))
	if err != nil {
		t.Fatalf("GetReturns failed: %v", err)
	}
	if len(result) != 2 {
		t.Fatalf("Expected 2 returns, got %d", len(result))
	}
	if !result[0].Date.Equal(day(2006, 1, 3)) || result[0].Returns != 0.01 {
		t.Errorf("First return mismatch: %+v", result[0])
	}
}

func TestBenchmarkStore_ReturnsNormalizeDate(t *testing.T) {
	store := NewBenchmarkStore()
	ctx := context.Background()

	// Mid-day timestamps collapse to the same date key.
	err := store.InsertReturns(ctx, []domain.DailyReturn{
		{Date: time.Date(2006, 1, 3, 15, 0, 0, 0, time.UTC), Returns: 0.01},
	})
	if err != nil {
		t.Fatalf("InsertReturns failed: %v", err)
	}

	err = store.InsertReturns(ctx, []domain.DailyReturn{
		{Date: time.Date(2006, 1, 3, 21, 0, 0, 0, time.UTC), Returns: 0.02},
	})
	if !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}

	result, err := store.GetReturns(ctx, day(2006, 1, 3), day(2006, 1, 3))
	if err != nil {
		t.Fatalf("GetReturns failed: %v", err)
	}
	if len(result) != 1 || !result[0].Date.Equal(day(2006, 1, 3)) {
		t.Errorf("Normalized lookup failed: %+v", result)
	}
}

func TestBenchmarkStore_TreasuryCurves(t *testing.T) {
	store := NewBenchmarkStore()
	ctx := context.Background()

	rate := 0.045
	curves := map[time.Time]domain.TreasuryCurve{
		day(2006, 1, 3): {"1month": &rate, "1year": nil},
	}
	if err := store.InsertTreasuryCurves(ctx, curves); err != nil {
		t.Fatalf("InsertTreasuryCurves failed: %v", err)
	}

	// Mutating the caller's map must not affect the store.
	rate = 0.0

	result, err := store.GetTreasuryCurves(ctx, day(2006, 1, 1), day(2006, 1, 31))
	if err != nil {
		t.Fatalf("GetTreasuryCurves failed: %v", err)
	}
	curve, ok := result[day(2006, 1, 3)]
	if !ok {
		t.Fatal("Curve missing for 2006-01-03")
	}
	if curve["1month"] == nil || *curve["1month"] != 0.045 {
		t.Errorf("Rate mismatch: %v", curve["1month"])
	}
	if v, present := curve["1year"]; !present || v != nil {
		t.Errorf("Nil rate not preserved: %v present=%v", v, present)
	}

	if err := store.InsertTreasuryCurves(ctx, curves); !errors.Is(err, storage.ErrDuplicateKey) {
		t.Fatalf("Expected ErrDuplicateKey, got %v", err)
	}
}
