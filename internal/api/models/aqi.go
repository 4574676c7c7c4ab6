package models

// StationReading is one normalized station observation.
type StationReading struct {
	Station    string    `json:"station"`
	Lat        float64   `json:"lat"`
	Lon        float64   `json:"lon"`
	AQI        float64   `json:"aqi"`
	Category   string    `json:"category"`
	Color      string    `json:"color"`
	Advice     string    `json:"advice"`
	ObservedAt Timestamp `json:"observedAt"`
}

// StationsResponse is the station listing payload.
type StationsResponse struct {
	City      string           `json:"city"`
	Provider  string           `json:"provider"`
	FetchedAt Timestamp        `json:"fetchedAt"`
	Stations  []StationReading `json:"stations"`
}

// AggregateResponse is the nearest-weighted AQI for a query point.
type AggregateResponse struct {
	Point       Point                   `json:"point"`
	WeightedAQI float64                 `json:"weightedAqi"`
	Category    string                  `json:"category"`
	Color       string                  `json:"color"`
	Advice      string                  `json:"advice"`
	Stations    []AggregateContribution `json:"stations"`
}

// AggregateContribution is one station's share of the aggregate.
type AggregateContribution struct {
	Station    string  `json:"station"`
	AQI        float64 `json:"aqi"`
	DistanceKM float64 `json:"distanceKm"`
	Weight     float64 `json:"weight"`
}

// InterpolateRequest asks for a kriged AQI surface. Boundary is optional;
// when present, grid cells outside the polygon are masked out.
type InterpolateRequest struct {
	Bounds   *GeoBox `json:"bounds,omitempty"`
	NX       int     `json:"nx,omitempty"`
	NY       int     `json:"ny,omitempty"`
	Boundary []Point `json:"boundary,omitempty"`
}

// InterpolateResponse carries the interpolated grid. Masked or undefined
// cells are null.
type InterpolateResponse struct {
	Bounds GeoBox       `json:"bounds"`
	Lats   []float64    `json:"lats"`
	Lons   []float64    `json:"lons"`
	Values [][]*float64 `json:"values"`
}

// AlertCheckRequest triggers an on-demand alert evaluation.
type AlertCheckRequest struct {
	Recipient string `json:"recipient"`
	// TargetSeverity is a category name; empty uses the configured default.
	TargetSeverity string `json:"targetSeverity,omitempty"`
	// DryRun forces simulation regardless of configuration.
	DryRun bool `json:"dryRun,omitempty"`
}

// AlertCheckResponse reports the decision and, when sent, the dispatch
// outcome.
type AlertCheckResponse struct {
	Recipient string   `json:"recipient"`
	Decision  Decision `json:"decision"`
	Sent      bool     `json:"sent"`
	Provider  string   `json:"provider,omitempty"`
	Detail    string   `json:"detail,omitempty"`
}

// Decision mirrors the alert engine's verdict.
type Decision struct {
	Send      bool     `json:"send"`
	Reason    string   `json:"reason"`
	Trend     string   `json:"trend"`
	Value     *float64 `json:"value,omitempty"`
	Threshold float64  `json:"threshold"`
}

// AlertRecord is one audit row from the history store.
type AlertRecord struct {
	ID        string    `json:"id"`
	Recipient string    `json:"recipient"`
	Severity  string    `json:"severity"`
	SentAt    Timestamp `json:"sentAt"`
	Message   string    `json:"message"`
}

// AlertsResponse lists recent alerts, newest first.
type AlertsResponse struct {
	Alerts []AlertRecord `json:"alerts"`
}
