package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

// SnapshotStore implements storage.SnapshotStore using in-memory maps.
type SnapshotStore struct {
	mu      sync.RWMutex
	byKey   map[string]*domain.PerformanceSnapshot
	byRunID map[string][]*domain.PerformanceSnapshot
}

// NewSnapshotStore creates a new SnapshotStore.
func NewSnapshotStore() *SnapshotStore {
	return &SnapshotStore{
		byKey:   make(map[string]*domain.PerformanceSnapshot),
		byRunID: make(map[string][]*domain.PerformanceSnapshot),
	}
}

// Compile-time interface check.
var _ storage.SnapshotStore = (*SnapshotStore)(nil)

func snapshotKey(runID string, date time.Time) string {
	return fmt.Sprintf("%s|%d", runID, date.UTC().UnixMicro())
}

// Insert adds a snapshot. Returns ErrDuplicateKey if (run_id, date) exists.
func (s *SnapshotStore) Insert(ctx context.Context, snap *domain.PerformanceSnapshot) error {
	if snap == nil || snap.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	k := snapshotKey(snap.RunID, snap.Date)
	if _, dup := s.byKey[k]; dup {
		return storage.ErrDuplicateKey
	}

	record := cloneSnapshot(snap)
	s.byKey[k] = record
	s.byRunID[snap.RunID] = append(s.byRunID[snap.RunID], record)
	return nil
}

// GetByRunID retrieves all snapshots for a run, ordered by date ASC.
func (s *SnapshotStore) GetByRunID(ctx context.Context, runID string) ([]*domain.PerformanceSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.PerformanceSnapshot, 0, len(s.byRunID[runID]))
	for _, snap := range s.byRunID[runID] {
		result = append(result, cloneSnapshot(snap))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

// GetLatest retrieves the most recent snapshot for a run. Returns
// ErrNotFound if the run has no snapshots.
func (s *SnapshotStore) GetLatest(ctx context.Context, runID string) (*domain.PerformanceSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snaps := s.byRunID[runID]
	if len(snaps) == 0 {
		return nil, storage.ErrNotFound
	}
	latest := snaps[0]
	for _, snap := range snaps[1:] {
		if snap.Date.After(latest.Date) {
			latest = snap
		}
	}
	return cloneSnapshot(latest), nil
}

// cloneSnapshot deep-copies a snapshot so callers never share slices or
// pointers with the store.
func cloneSnapshot(snap *domain.PerformanceSnapshot) *domain.PerformanceSnapshot {
	out := *snap
	out.Returns = append([]domain.DailyReturn(nil), snap.Returns...)
	out.Cumulative = clonePeriodState(snap.Cumulative)
	out.Today = clonePeriodState(snap.Today)
	if snap.CumulativeRisk != nil {
		risk := *snap.CumulativeRisk
		out.CumulativeRisk = &risk
	}
	return &out
}

func clonePeriodState(p domain.PeriodState) domain.PeriodState {
	out := p
	out.Positions = make([]domain.PositionState, len(p.Positions))
	for i, pos := range p.Positions {
		out.Positions[i] = pos
		if pos.LastSalePrice != nil {
			v := *pos.LastSalePrice
			out.Positions[i].LastSalePrice = &v
		}
		if pos.LastSaleDate != nil {
			v := *pos.LastSaleDate
			out.Positions[i].LastSaleDate = &v
		}
	}
	return out
}
