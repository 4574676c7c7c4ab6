package alert

import (
	"time"

	"github.com/airsentry/airsentry/internal/aqi"
)

// Policy selects the decision rule applied once the signal is at or above
// the target threshold.
type Policy string

const (
	// PolicySimpleThreshold alerts whenever the signal meets the threshold.
	PolicySimpleThreshold Policy = "simple_threshold"
	// PolicyCorroborated additionally requires a minimum number of stations
	// individually above the threshold.
	PolicyCorroborated Policy = "corroborated"
	// PolicyCrossingFromPrevious alerts only when the signal crosses the
	// threshold from below, suppressing repeats while severity holds.
	PolicyCrossingFromPrevious Policy = "crossing_from_previous"
)

// Config bundles the tunable decision parameters.
type Config struct {
	Policy Policy

	// Thresholds overrides the built-in per-category lower bounds. Absent
	// categories fall back to aqi.Threshold.
	Thresholds map[aqi.Category]float64

	// MinCorroborating is the station count required by PolicyCorroborated.
	MinCorroborating int

	// Cooldown is the minimum gap between alerts to one recipient.
	Cooldown time.Duration

	// SustainedWindow is the averaging window used when the signal is built
	// from stored readings.
	SustainedWindow time.Duration

	// TrendDelta is the sensitivity band for Rising/Improving detection.
	TrendDelta float64

	Recipients []string
	DryRun     bool
}

// DefaultConfig returns the standard decision parameters.
func DefaultConfig() Config {
	return Config{
		Policy:           PolicySimpleThreshold,
		MinCorroborating: 1,
		Cooldown:         2 * time.Hour,
		SustainedWindow:  time.Hour,
		TrendDelta:       10,
	}
}

// ThresholdFor resolves the alerting lower bound for a category.
func (c Config) ThresholdFor(target aqi.Category) float64 {
	if v, ok := c.Thresholds[target]; ok {
		return v
	}
	return aqi.Threshold(target)
}
