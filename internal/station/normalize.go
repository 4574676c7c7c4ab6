package station

import (
	"encoding/json"
	"strconv"
	"time"

	"github.com/airsentry/airsentry/internal/aqi"
)

// RawReading is the loosely-typed shape station feeds deliver. Numeric
// fields arrive as numbers or strings depending on the upstream API, and the
// pollutant value may be a PM2.5 concentration rather than an AQI. All shape
// tolerance lives here; nothing past this adapter sees raw payloads.
type RawReading struct {
	Station    string          `json:"station"`
	Lat        json.RawMessage `json:"lat"`
	Lon        json.RawMessage `json:"lon"`
	AQI        json.RawMessage `json:"aqi,omitempty"`
	PM25       json.RawMessage `json:"pm25,omitempty"`
	ObservedAt string          `json:"observed_at,omitempty"`
}

// Normalize converts a raw payload record into a strict Reading. Records
// with missing coordinates or no usable pollutant value are rejected with
// ok=false rather than an error, matching the feed's row-skipping contract.
func Normalize(raw RawReading, now time.Time) (Reading, bool) {
	lat, latOK := looseFloat(raw.Lat)
	lon, lonOK := looseFloat(raw.Lon)
	if !latOK || !lonOK || lat < -90 || lat > 90 || lon < -180 || lon > 180 {
		return Reading{}, false
	}

	value, ok := looseFloat(raw.AQI)
	if !ok {
		pm25, pmOK := looseFloat(raw.PM25)
		if !pmOK {
			return Reading{}, false
		}
		converted, err := aqi.PM25ToAQI(pm25)
		if err != nil {
			return Reading{}, false
		}
		value = converted
	}
	if value < 0 {
		return Reading{}, false
	}

	observedAt := now.UTC()
	if raw.ObservedAt != "" {
		if ts, err := time.Parse(time.RFC3339, raw.ObservedAt); err == nil {
			observedAt = ts.UTC()
		}
	}

	name := raw.Station
	if name == "" {
		name = "unknown"
	}

	return Reading{
		Station:    name,
		Lat:        lat,
		Lon:        lon,
		AQI:        value,
		ObservedAt: observedAt,
	}, true
}

// NormalizeAll converts a batch of raw records, dropping unusable rows.
func NormalizeAll(raws []RawReading, now time.Time) []Reading {
	readings := make([]Reading, 0, len(raws))
	for _, raw := range raws {
		if r, ok := Normalize(raw, now); ok {
			readings = append(readings, r)
		}
	}
	return readings
}

// looseFloat accepts a JSON number, a numeric string, or null.
func looseFloat(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 {
		return 0, false
	}

	var n float64
	if err := json.Unmarshal(raw, &n); err == nil {
		return n, true
	}

	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return 0, false
		}
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	}

	return 0, false
}
