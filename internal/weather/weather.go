// Package weather enriches alert messages with current conditions. The
// alerting pipeline works without it; a missing or failing provider
// degrades to "N/A" in the message text.
package weather

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var ErrProviderUnavailable = errors.New("weather provider unavailable")

// Observation is a point-in-time weather reading.
type Observation struct {
	Lat         float64
	Lon         float64
	Temperature float64 // Celsius
	Humidity    float64 // percent
	WindSpeed   float64 // m/s
	Description string
	ObservedAt  time.Time
}

// Summary renders the one-line form used in alert messages.
func (o Observation) Summary() string {
	desc := o.Description
	if desc == "" {
		desc = "n/a"
	}
	return fmt.Sprintf("%.0f°C, %.0f%% humidity, %s", o.Temperature, o.Humidity, desc)
}

// Provider fetches current conditions for a point.
type Provider interface {
	CurrentWeather(ctx context.Context, lat, lon float64) (*Observation, error)
}

// SummaryOrNA fetches and renders conditions, degrading to "N/A" when the
// provider is nil or unavailable.
func SummaryOrNA(ctx context.Context, p Provider, lat, lon float64) string {
	if p == nil {
		return "N/A"
	}
	obs, err := p.CurrentWeather(ctx, lat, lon)
	if err != nil || obs == nil {
		return "N/A"
	}
	return obs.Summary()
}
