package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

// TradeStore implements storage.TradeStore using PostgreSQL.
type TradeStore struct {
	pool *Pool
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore(pool *Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

// InsertBulk adds multiple trades atomically. Fails entire batch on any
// duplicate (sid, dt).
func (s *TradeStore) InsertBulk(ctx context.Context, trades []*domain.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	query := `
		INSERT INTO trades (sid, dt, price, volume)
		VALUES ($1, $2, $3, $4)
	`

	for _, t := range trades {
		if t == nil {
			return storage.ErrInvalidInput
		}
		_, err := tx.Exec(ctx, query, t.SID, t.DT.UTC(), t.Price, t.Volume)
		if err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert trade in bulk: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetBySID retrieves all trades for a sid, ordered by dt ASC.
func (s *TradeStore) GetBySID(ctx context.Context, sid int64) ([]*domain.TradeRecord, error) {
	query := `
		SELECT sid, dt, price, volume
		FROM trades
		WHERE sid = $1
		ORDER BY dt ASC
	`

	rows, err := s.pool.Query(ctx, query, sid)
	if err != nil {
		return nil, fmt.Errorf("get trades by sid: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// GetByTimeRange retrieves trades for a sid within [start, end]
// (inclusive), ordered by dt ASC.
func (s *TradeStore) GetByTimeRange(ctx context.Context, sid int64, start, end time.Time) ([]*domain.TradeRecord, error) {
	query := `
		SELECT sid, dt, price, volume
		FROM trades
		WHERE sid = $1 AND dt >= $2 AND dt <= $3
		ORDER BY dt ASC
	`

	rows, err := s.pool.Query(ctx, query, sid, start.UTC(), end.UTC())
	if err != nil {
		return nil, fmt.Errorf("get trades by time range: %w", err)
	}
	defer rows.Close()

	return scanTrades(rows)
}

// scanTrades scans multiple rows into a slice of TradeRecord.
func scanTrades(rows pgx.Rows) ([]*domain.TradeRecord, error) {
	var trades []*domain.TradeRecord

	for rows.Next() {
		var t domain.TradeRecord
		if err := rows.Scan(&t.SID, &t.DT, &t.Price, &t.Volume); err != nil {
			return nil, fmt.Errorf("scan trade row: %w", err)
		}
		t.DT = t.DT.UTC()
		trades = append(trades, &t)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate trade rows: %w", err)
	}
	return trades, nil
}
