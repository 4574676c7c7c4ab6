// Package station defines the normalized station reading model and the
// boundary adapter that produces it from raw feed payloads.
package station

import (
	"errors"
	"time"
)

// Feed errors.
var (
	ErrNoReadings      = errors.New("no station readings available")
	ErrFeedUnavailable = errors.New("station feed unavailable")
)

// Reading is a single normalized station observation. Immutable once
// created; station names are not required to be unique.
type Reading struct {
	Station    string
	Lat        float64
	Lon        float64
	AQI        float64
	ObservedAt time.Time
}

// Snapshot is a point-in-time set of readings from one feed fetch.
type Snapshot struct {
	Readings  []Reading
	FetchedAt time.Time
	Provider  string
}

// NewSnapshot creates an empty snapshot stamped with the current UTC time.
func NewSnapshot(provider string) *Snapshot {
	return &Snapshot{
		FetchedAt: time.Now().UTC(),
		Provider:  provider,
	}
}

// Values returns the AQI values of all readings, in snapshot order.
func (s *Snapshot) Values() []float64 {
	values := make([]float64, len(s.Readings))
	for i, r := range s.Readings {
		values[i] = r.AQI
	}
	return values
}
