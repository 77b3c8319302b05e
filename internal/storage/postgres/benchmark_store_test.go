package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

func benchDay(d int) time.Time {
	return time.Date(2006, 1, d, 0, 0, 0, 0, time.UTC)
}

func TestBenchmarkStore_Integration(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewBenchmarkStore(pool)
	ctx := context.Background()

	t.Run("returns round trip", func(t *testing.T) {
		err := store.InsertReturns(ctx, []domain.DailyReturn{
			{Date: benchDay(3), Returns: 0.01},
			{Date: benchDay(4), Returns: -0.02},
		})
		require.NoError(t, err)

		result, err := store.GetReturns(ctx, benchDay(1), benchDay(31))
		require.NoError(t, err)
		require.Len(t, result, 2)
		require.True(t, result[0].Date.Equal(benchDay(3)))
		require.Equal(t, 0.01, result[0].Returns)
		require.Equal(t, -0.02, result[1].Returns)
	})

	t.Run("duplicate date rejected", func(t *testing.T) {
		err := store.InsertReturns(ctx, []domain.DailyReturn{
			{Date: benchDay(3).Add(15 * time.Hour), Returns: 0.05},
		})
		require.ErrorIs(t, err, storage.ErrDuplicateKey, "mid-day timestamp normalizes to an existing date")
	})

	t.Run("treasury curves with missing rates", func(t *testing.T) {
		rate := 0.045
		err := store.InsertTreasuryCurves(ctx, map[time.Time]domain.TreasuryCurve{
			benchDay(3): {"1month": &rate, "1year": nil},
		})
		require.NoError(t, err)

		curves, err := store.GetTreasuryCurves(ctx, benchDay(1), benchDay(31))
		require.NoError(t, err)
		require.Len(t, curves, 1)

		curve := curves[benchDay(3)]
		require.NotNil(t, curve["1month"])
		require.Equal(t, 0.045, *curve["1month"])
		require.Contains(t, curve, "1year")
		require.Nil(t, curve["1year"], "unpublished rate stays nil")

		err = store.InsertTreasuryCurves(ctx, map[time.Time]domain.TreasuryCurve{
			benchDay(3): {"1month": &rate},
		})
		require.ErrorIs(t, err, storage.ErrDuplicateKey)
	})
}
