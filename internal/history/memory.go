package history

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/airsentry/airsentry/internal/station"
)

// MemoryStore is an in-memory Store for tests and for running without a
// database. Safe for concurrent use.
type MemoryStore struct {
	mu       sync.RWMutex
	readings []station.Reading
	alerts   []AlertRecord
	now      func() time.Time
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{now: func() time.Time { return time.Now().UTC() }}
}

// SetClock overrides the store's clock. Test use only.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

func (s *MemoryStore) RecordReading(_ context.Context, r station.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = append(s.readings, r)
	return nil
}

func (s *MemoryStore) RecordReadings(_ context.Context, readings []station.Reading) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.readings = append(s.readings, readings...)
	return nil
}

func (s *MemoryStore) RecordAlert(_ context.Context, rec AlertRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.ID == "" {
		rec.ID = uuid.New().String()
	}
	rec.SentAt = rec.SentAt.UTC()
	s.alerts = append(s.alerts, rec)
	return nil
}

func (s *MemoryStore) RecentAverage(_ context.Context, window time.Duration) (*float64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.now().Add(-window)
	var sum float64
	var n int
	for _, r := range s.readings {
		if !r.ObservedAt.Before(cutoff) {
			sum += r.AQI
			n++
		}
	}
	if n == 0 {
		return nil, nil
	}
	avg := sum / float64(n)
	return &avg, nil
}

func (s *MemoryStore) WasAlertSentRecently(_ context.Context, recipient string, cooldown time.Duration) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	cutoff := s.now().Add(-cooldown)
	for _, a := range s.alerts {
		if a.Recipient == recipient && !a.SentAt.Before(cutoff) {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) LastAlert(_ context.Context, recipient string) (*AlertRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var last *AlertRecord
	for i := range s.alerts {
		a := s.alerts[i]
		if a.Recipient != recipient {
			continue
		}
		if last == nil || a.SentAt.After(last.SentAt) {
			last = &a
		}
	}
	if last == nil {
		return nil, nil
	}
	cp := *last
	return &cp, nil
}

func (s *MemoryStore) RecentAlerts(_ context.Context, limit int) ([]AlertRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 20
	}

	// Alerts are appended in time order; walk backwards for newest first.
	records := make([]AlertRecord, 0, limit)
	for i := len(s.alerts) - 1; i >= 0 && len(records) < limit; i-- {
		records = append(records, s.alerts[i])
	}
	return records, nil
}

func (s *MemoryStore) PruneBefore(_ context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var pruned int64

	kept := s.readings[:0]
	for _, r := range s.readings {
		if r.ObservedAt.Before(cutoff) {
			pruned++
			continue
		}
		kept = append(kept, r)
	}
	s.readings = kept

	keptAlerts := s.alerts[:0]
	for _, a := range s.alerts {
		if a.SentAt.Before(cutoff) {
			pruned++
			continue
		}
		keptAlerts = append(keptAlerts, a)
	}
	s.alerts = keptAlerts

	return pruned, nil
}
