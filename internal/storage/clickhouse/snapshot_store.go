package clickhouse

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ClickHouse/clickhouse-go/v2/lib/driver"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using ClickHouse.
// Scalar tracker state is flattened into columns for analytical queries;
// the nested period states, daily returns, and risk metrics are carried
// as JSON.
type SnapshotStore struct {
	conn *Conn
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore(conn *Conn) *SnapshotStore {
	return &SnapshotStore{conn: conn}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

// Insert adds a snapshot. Returns ErrDuplicateKey if (run_id, date)
// exists. MergeTree does not enforce uniqueness, so the check is
// explicit.
func (s *SnapshotStore) Insert(ctx context.Context, snap *domain.PerformanceSnapshot) error {
	if snap == nil || snap.RunID == "" {
		return storage.ErrInvalidInput
	}

	exists, err := s.exists(ctx, snap.RunID, snap)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	returnsJSON, err := json.Marshal(snap.Returns)
	if err != nil {
		return fmt.Errorf("encode returns: %w", err)
	}
	cumulativeJSON, err := json.Marshal(snap.Cumulative)
	if err != nil {
		return fmt.Errorf("encode cumulative period: %w", err)
	}
	todayJSON, err := json.Marshal(snap.Today)
	if err != nil {
		return fmt.Errorf("encode today period: %w", err)
	}
	riskJSON := []byte("")
	if snap.CumulativeRisk != nil {
		riskJSON, err = json.Marshal(snap.CumulativeRisk)
		if err != nil {
			return fmt.Errorf("encode risk metrics: %w", err)
		}
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO performance_snapshots (
			run_id, snap_date, period_start, period_end, progress,
			cumulative_capital_used, max_capital_used, max_leverage,
			last_open, last_close, capital_base,
			returns, cumulative, today, cumulative_risk
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	err = batch.Append(
		snap.RunID, snap.Date.UTC(), snap.PeriodStart.UTC(), snap.PeriodEnd.UTC(), snap.Progress,
		snap.CumulativeCapitalUsed, snap.MaxCapitalUsed, snap.MaxLeverage,
		snap.LastOpen.UTC(), snap.LastClose.UTC(), snap.CapitalBase,
		string(returnsJSON), string(cumulativeJSON), string(todayJSON), string(riskJSON),
	)
	if err != nil {
		return fmt.Errorf("append to batch: %w", err)
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByRunID retrieves all snapshots for a run, ordered by date ASC.
func (s *SnapshotStore) GetByRunID(ctx context.Context, runID string) ([]*domain.PerformanceSnapshot, error) {
	query := selectSnapshots + `
		WHERE run_id = ?
		ORDER BY snap_date ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query snapshots by run id: %w", err)
	}
	defer rows.Close()

	return scanSnapshots(rows)
}

// GetLatest retrieves the most recent snapshot for a run. Returns
// ErrNotFound if the run has no snapshots.
func (s *SnapshotStore) GetLatest(ctx context.Context, runID string) (*domain.PerformanceSnapshot, error) {
	query := selectSnapshots + `
		WHERE run_id = ?
		ORDER BY snap_date DESC
		LIMIT 1
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query latest snapshot: %w", err)
	}
	defer rows.Close()

	snaps, err := scanSnapshots(rows)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, storage.ErrNotFound
	}
	return snaps[0], nil
}

const selectSnapshots = `
	SELECT
		run_id, snap_date, period_start, period_end, progress,
		cumulative_capital_used, max_capital_used, max_leverage,
		last_open, last_close, capital_base,
		returns, cumulative, today, cumulative_risk
	FROM performance_snapshots
`

// exists checks if a snapshot with the given key exists.
func (s *SnapshotStore) exists(ctx context.Context, runID string, snap *domain.PerformanceSnapshot) (bool, error) {
	query := `
		SELECT count(*) FROM performance_snapshots
		WHERE run_id = ? AND snap_date = ?
	`

	var count uint64
	err := s.conn.QueryRow(ctx, query, runID, snap.Date.UTC()).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// scanSnapshots scans multiple rows, decoding the JSON columns.
func scanSnapshots(rows driver.Rows) ([]*domain.PerformanceSnapshot, error) {
	var snaps []*domain.PerformanceSnapshot

	for rows.Next() {
		var (
			snap                                             domain.PerformanceSnapshot
			returnsJSON, cumulativeJSON, todayJSON, riskJSON string
		)

		err := rows.Scan(
			&snap.RunID, &snap.Date, &snap.PeriodStart, &snap.PeriodEnd, &snap.Progress,
			&snap.CumulativeCapitalUsed, &snap.MaxCapitalUsed, &snap.MaxLeverage,
			&snap.LastOpen, &snap.LastClose, &snap.CapitalBase,
			&returnsJSON, &cumulativeJSON, &todayJSON, &riskJSON,
		)
		if err != nil {
			return nil, fmt.Errorf("scan snapshot row: %w", err)
		}

		if err := json.Unmarshal([]byte(returnsJSON), &snap.Returns); err != nil {
			return nil, fmt.Errorf("decode returns: %w", err)
		}
		if err := json.Unmarshal([]byte(cumulativeJSON), &snap.Cumulative); err != nil {
			return nil, fmt.Errorf("decode cumulative period: %w", err)
		}
		if err := json.Unmarshal([]byte(todayJSON), &snap.Today); err != nil {
			return nil, fmt.Errorf("decode today period: %w", err)
		}
		if riskJSON != "" {
			snap.CumulativeRisk = &domain.RiskMetricsState{}
			if err := json.Unmarshal([]byte(riskJSON), snap.CumulativeRisk); err != nil {
				return nil, fmt.Errorf("decode risk metrics: %w", err)
			}
		}

		snap.Date = snap.Date.UTC()
		snap.PeriodStart = snap.PeriodStart.UTC()
		snap.PeriodEnd = snap.PeriodEnd.UTC()
		snap.LastOpen = snap.LastOpen.UTC()
		snap.LastClose = snap.LastClose.UTC()
		snaps = append(snaps, &snap)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate snapshot rows: %w", err)
	}
	return snaps, nil
}
