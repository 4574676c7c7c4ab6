package alert

import (
	"sync"
	"time"
)

// RecipientState tracks per-recipient send times and last observed values
// for the lifetime of the process. It is a cache over the durable history
// store, never the authority: it resets on restart and the engine falls
// back to the store when an entry is missing.
type RecipientState struct {
	mu      sync.RWMutex
	entries map[string]*recipientEntry
}

type recipientEntry struct {
	lastSentAt time.Time
	lastValue  *float64
}

// NewRecipientState creates an empty state table.
func NewRecipientState() *RecipientState {
	return &RecipientState{entries: make(map[string]*recipientEntry)}
}

// MarkSent records a successful send. Cooldown windows are measured from
// this moment, not from decision time.
func (s *RecipientState) MarkSent(recipient string, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entry(recipient).lastSentAt = at
}

// Observe records the latest evaluated value for trend detection.
func (s *RecipientState) Observe(recipient string, value float64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := value
	s.entry(recipient).lastValue = &v
}

// LastSentAt returns the in-process last send time, if any.
func (s *RecipientState) LastSentAt(recipient string) (time.Time, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[recipient]
	if !ok || e.lastSentAt.IsZero() {
		return time.Time{}, false
	}
	return e.lastSentAt, true
}

// LastValue returns the previously observed value, if any.
func (s *RecipientState) LastValue(recipient string) (float64, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	e, ok := s.entries[recipient]
	if !ok || e.lastValue == nil {
		return 0, false
	}
	return *e.lastValue, true
}

func (s *RecipientState) entry(recipient string) *recipientEntry {
	e, ok := s.entries[recipient]
	if !ok {
		e = &recipientEntry{}
		s.entries[recipient] = e
	}
	return e
}
