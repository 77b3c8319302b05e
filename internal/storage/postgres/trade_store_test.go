package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

func TestTradeStore_Integration(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewTradeStore(pool)
	ctx := context.Background()
	dt := time.Date(2006, 1, 3, 14, 30, 0, 0, time.UTC)

	t.Run("insert and get by sid", func(t *testing.T) {
		trades := []*domain.TradeRecord{
			{SID: 133, Price: 10.2, Volume: 50, DT: dt.Add(time.Minute)},
			{SID: 133, Price: 10.1, Volume: 100, DT: dt},
			{SID: 134, Price: 99.0, Volume: 10, DT: dt},
		}
		require.NoError(t, store.InsertBulk(ctx, trades))

		result, err := store.GetBySID(ctx, 133)
		require.NoError(t, err)
		require.Len(t, result, 2)
		require.True(t, result[0].DT.Equal(dt), "trades must be ordered by dt")
		require.Equal(t, 10.1, result[0].Price)
		require.Equal(t, int64(100), result[0].Volume)
	})

	t.Run("duplicate key aborts batch", func(t *testing.T) {
		err := store.InsertBulk(ctx, []*domain.TradeRecord{
			{SID: 133, Price: 10.3, Volume: 200, DT: dt.Add(2 * time.Minute)},
			{SID: 133, Price: 10.4, Volume: 300, DT: dt},
		})
		require.ErrorIs(t, err, storage.ErrDuplicateKey)

		result, err := store.GetBySID(ctx, 133)
		require.NoError(t, err)
		require.Len(t, result, 2, "failed batch must not insert anything")
	})

	t.Run("time range is inclusive", func(t *testing.T) {
		result, err := store.GetByTimeRange(ctx, 133, dt, dt.Add(time.Minute))
		require.NoError(t, err)
		require.Len(t, result, 2)
	})

	t.Run("microsecond precision round trip", func(t *testing.T) {
		precise := dt.Add(time.Hour).Add(123456 * time.Microsecond)
		require.NoError(t, store.InsertBulk(ctx, []*domain.TradeRecord{
			{SID: 135, Price: 1.0, Volume: 1, DT: precise},
		}))

		result, err := store.GetBySID(ctx, 135)
		require.NoError(t, err)
		require.Len(t, result, 1)
		require.True(t, result[0].DT.Equal(precise), "got %v want %v", result[0].DT, precise)
	})
}
