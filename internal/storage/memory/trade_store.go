// Package memory provides in-memory storage implementations backed by
// maps under an RWMutex, used by tests and single-process runs.
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

// TradeStore implements storage.TradeStore using in-memory maps.
type TradeStore struct {
	mu    sync.RWMutex
	byKey map[string]*domain.TradeRecord
	bySID map[int64][]*domain.TradeRecord
}

// NewTradeStore creates a new TradeStore.
func NewTradeStore() *TradeStore {
	return &TradeStore{
		byKey: make(map[string]*domain.TradeRecord),
		bySID: make(map[int64][]*domain.TradeRecord),
	}
}

// Compile-time interface check.
var _ storage.TradeStore = (*TradeStore)(nil)

func tradeKey(sid int64, dt time.Time) string {
	return fmt.Sprintf("%d|%d", sid, dt.UTC().UnixMicro())
}

// InsertBulk adds multiple trades atomically. Fails entire batch on any
// duplicate (sid, dt).
func (s *TradeStore) InsertBulk(ctx context.Context, trades []*domain.TradeRecord) error {
	if len(trades) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate the whole batch before touching the maps.
	seen := make(map[string]struct{}, len(trades))
	for _, t := range trades {
		if t == nil {
			return storage.ErrInvalidInput
		}
		k := tradeKey(t.SID, t.DT)
		if _, dup := seen[k]; dup {
			return storage.ErrDuplicateKey
		}
		if _, dup := s.byKey[k]; dup {
			return storage.ErrDuplicateKey
		}
		seen[k] = struct{}{}
	}

	for _, t := range trades {
		record := *t
		record.DT = record.DT.UTC()
		s.byKey[tradeKey(record.SID, record.DT)] = &record
		s.bySID[record.SID] = append(s.bySID[record.SID], &record)
	}
	return nil
}

// GetBySID retrieves all trades for a sid, ordered by dt ASC.
func (s *TradeStore) GetBySID(ctx context.Context, sid int64) ([]*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.TradeRecord, 0, len(s.bySID[sid]))
	for _, t := range s.bySID[sid] {
		record := *t
		result = append(result, &record)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].DT.Before(result[j].DT)
	})
	return result, nil
}

// GetByTimeRange retrieves trades for a sid within [start, end]
// (inclusive), ordered by dt ASC.
func (s *TradeStore) GetByTimeRange(ctx context.Context, sid int64, start, end time.Time) ([]*domain.TradeRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TradeRecord
	for _, t := range s.bySID[sid] {
		if t.DT.Before(start) || t.DT.After(end) {
			continue
		}
		record := *t
		result = append(result, &record)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].DT.Before(result[j].DT)
	})
	return result, nil
}
