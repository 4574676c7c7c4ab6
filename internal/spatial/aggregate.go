// Package spatial turns sparse point readings into area estimates: a
// nearest-weighted aggregate for single query points and an optional kriged
// grid surface for regions.
package spatial

import (
	"errors"
	"math"
	"sort"

	"github.com/airsentry/airsentry/internal/aqi"
	"github.com/airsentry/airsentry/internal/station"
)

// Aggregation errors.
var (
	ErrNoStations = errors.New("no stations within radius")
)

const (
	// earthRadiusKM is the Earth radius used for haversine distances.
	earthRadiusKM = 6371

	// distanceEpsilonKM keeps the inverse-distance weight finite for a query
	// point sitting exactly on a station.
	distanceEpsilonKM = 0.01
)

// Contribution pairs a selected station reading with its distance and
// normalized weight.
type Contribution struct {
	Reading    station.Reading
	DistanceKM float64
	Weight     float64
}

// Aggregate is the inverse-distance-weighted composite at a query point.
// Contributing stations are ordered by distance ascending. Derived, never
// persisted; recomputed per query.
type Aggregate struct {
	Lat         float64
	Lon         float64
	Stations    []Contribution
	WeightedAQI float64
	Level       aqi.Level
}

// AggregatorConfig bounds station selection for the aggregate.
type AggregatorConfig struct {
	// RadiusKM is the maximum station distance. Default: 50.
	RadiusKM float64

	// MaxStations caps the nearest stations used. Default: 5.
	MaxStations int
}

// DefaultAggregatorConfig returns the default selection bounds.
func DefaultAggregatorConfig() AggregatorConfig {
	return AggregatorConfig{RadiusKM: 50, MaxStations: 5}
}

// Aggregator computes nearest-weighted composites over station readings.
type Aggregator struct {
	config AggregatorConfig
}

// NewAggregator creates an Aggregator, filling zero config fields with
// defaults.
func NewAggregator(cfg AggregatorConfig) *Aggregator {
	if cfg.RadiusKM <= 0 {
		cfg.RadiusKM = DefaultAggregatorConfig().RadiusKM
	}
	if cfg.MaxStations <= 0 {
		cfg.MaxStations = DefaultAggregatorConfig().MaxStations
	}
	return &Aggregator{config: cfg}
}

// Aggregate selects the stations within the radius, nearest first and capped
// at MaxStations, and returns their inverse-distance-weighted AQI. An empty
// selection returns ErrNoStations; callers must treat that as "no data",
// never as zero.
func (a *Aggregator) Aggregate(readings []station.Reading, lat, lon float64) (*Aggregate, error) {
	selected := make([]Contribution, 0, len(readings))
	for _, r := range readings {
		dist := HaversineKM(lat, lon, r.Lat, r.Lon)
		if dist <= a.config.RadiusKM {
			selected = append(selected, Contribution{Reading: r, DistanceKM: dist})
		}
	}
	if len(selected) == 0 {
		return nil, ErrNoStations
	}

	sort.Slice(selected, func(i, j int) bool {
		return selected[i].DistanceKM < selected[j].DistanceKM
	})
	if len(selected) > a.config.MaxStations {
		selected = selected[:a.config.MaxStations]
	}

	var weightedSum, totalWeight float64
	for i := range selected {
		w := 1 / (selected[i].DistanceKM + distanceEpsilonKM)
		selected[i].Weight = w
		weightedSum += selected[i].Reading.AQI * w
		totalWeight += w
	}

	weighted := weightedSum / totalWeight
	for i := range selected {
		selected[i].Weight /= totalWeight
	}

	return &Aggregate{
		Lat:         lat,
		Lon:         lon,
		Stations:    selected,
		WeightedAQI: weighted,
		Level:       aqi.Classify(weighted),
	}, nil
}

// HaversineKM returns the great-circle distance between two points in
// kilometers.
func HaversineKM(lat1, lon1, lat2, lon2 float64) float64 {
	lat1Rad := lat1 * math.Pi / 180
	lat2Rad := lat2 * math.Pi / 180
	deltaLat := (lat2 - lat1) * math.Pi / 180
	deltaLon := (lon2 - lon1) * math.Pi / 180

	h := math.Sin(deltaLat/2)*math.Sin(deltaLat/2) +
		math.Cos(lat1Rad)*math.Cos(lat2Rad)*
			math.Sin(deltaLon/2)*math.Sin(deltaLon/2)
	c := 2 * math.Atan2(math.Sqrt(h), math.Sqrt(1-h))

	return earthRadiusKM * c
}
