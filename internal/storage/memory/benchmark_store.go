package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"backtest-lab/internal/calendar"
	"backtest-lab/internal/domain"
	"backtest-lab/internal/storage"
)

// BenchmarkStore implements storage.BenchmarkStore using in-memory maps.
type BenchmarkStore struct {
	mu      sync.RWMutex
	returns map[time.Time]domain.DailyReturn
	curves  map[time.Time]domain.TreasuryCurve
}

// NewBenchmarkStore creates a new BenchmarkStore.
func NewBenchmarkStore() *BenchmarkStore {
	return &BenchmarkStore{
		returns: make(map[time.Time]domain.DailyReturn),
		curves:  make(map[time.Time]domain.TreasuryCurve),
	}
}

// Compile-time interface check.
var _ storage.BenchmarkStore = (*BenchmarkStore)(nil)

// InsertReturns adds daily benchmark returns atomically. Fails entire
// batch on any duplicate date.
func (s *BenchmarkStore) InsertReturns(ctx context.Context, returns []domain.DailyReturn) error {
	if len(returns) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	seen := make(map[time.Time]struct{}, len(returns))
	for _, r := range returns {
		day := calendar.NormalizeDate(r.Date)
		if _, dup := seen[day]; dup {
			return storage.ErrDuplicateKey
		}
		if _, dup := s.returns[day]; dup {
			return storage.ErrDuplicateKey
		}
		seen[day] = struct{}{}
	}

	for _, r := range returns {
		day := calendar.NormalizeDate(r.Date)
		s.returns[day] = domain.DailyReturn{Date: day, Returns: r.Returns}
	}
	return nil
}

// GetReturns retrieves daily returns within [start, end] (inclusive),
// ordered by date ASC.
func (s *BenchmarkStore) GetReturns(ctx context.Context, start, end time.Time) ([]domain.DailyReturn, error) {
	startDay := calendar.NormalizeDate(start)
	endDay := calendar.NormalizeDate(end)

	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.DailyReturn
	for day, r := range s.returns {
		if day.Before(startDay) || day.After(endDay) {
			continue
		}
		result = append(result, r)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Date.Before(result[j].Date)
	})
	return result, nil
}

// InsertTreasuryCurves adds per-day treasury curves atomically. Fails
// entire batch on any duplicate date.
func (s *BenchmarkStore) InsertTreasuryCurves(ctx context.Context, curves map[time.Time]domain.TreasuryCurve) error {
	if len(curves) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for date := range curves {
		if _, dup := s.curves[calendar.NormalizeDate(date)]; dup {
			return storage.ErrDuplicateKey
		}
	}

	for date, curve := range curves {
		s.curves[calendar.NormalizeDate(date)] = copyCurve(curve)
	}
	return nil
}

// GetTreasuryCurves retrieves curves within [start, end] (inclusive).
func (s *BenchmarkStore) GetTreasuryCurves(ctx context.Context, start, end time.Time) (map[time.Time]domain.TreasuryCurve, error) {
	startDay := calendar.NormalizeDate(start)
	endDay := calendar.NormalizeDate(end)

	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[time.Time]domain.TreasuryCurve)
	for day, curve := range s.curves {
		if day.Before(startDay) || day.After(endDay) {
			continue
		}
		result[day] = copyCurve(curve)
	}
	return result, nil
}

// copyCurve clones a curve including its rate pointers so callers never
// share memory with the store.
func copyCurve(curve domain.TreasuryCurve) domain.TreasuryCurve {
	out := make(domain.TreasuryCurve, len(curve))
	for duration, rate := range curve {
		if rate == nil {
			out[duration] = nil
			continue
		}
		v := *rate
		out[duration] = &v
	}
	return out
}
