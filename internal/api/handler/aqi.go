package handler

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/airsentry/airsentry/internal/api/models"
	"github.com/airsentry/airsentry/internal/api/response"
	"github.com/airsentry/airsentry/internal/aqi"
	"github.com/airsentry/airsentry/internal/spatial"
	"github.com/airsentry/airsentry/internal/station"
)

// SnapshotSource is the station feed boundary for the API.
type SnapshotSource interface {
	FetchSnapshot(ctx context.Context) (*station.Snapshot, error)
}

// AQIHandler serves station listings, spatial aggregates, and grid
// interpolation.
type AQIHandler struct {
	source        SnapshotSource
	city          string
	aggregator    *spatial.Aggregator
	interpolator  spatial.GridInterpolator
	defaultBounds spatial.Bounds
	defaultNX     int
	defaultNY     int
}

// AQIHandlerConfig wires the AQIHandler.
type AQIHandlerConfig struct {
	Source        SnapshotSource
	City          string
	Aggregator    *spatial.Aggregator
	Interpolator  spatial.GridInterpolator
	DefaultBounds spatial.Bounds
	DefaultNX     int
	DefaultNY     int
}

// NewAQIHandler creates an AQIHandler.
func NewAQIHandler(cfg AQIHandlerConfig) *AQIHandler {
	if cfg.DefaultNX <= 0 {
		cfg.DefaultNX = 24
	}
	if cfg.DefaultNY <= 0 {
		cfg.DefaultNY = 24
	}
	return &AQIHandler{
		source:        cfg.Source,
		city:          cfg.City,
		aggregator:    cfg.Aggregator,
		interpolator:  cfg.Interpolator,
		defaultBounds: cfg.DefaultBounds,
		defaultNX:     cfg.DefaultNX,
		defaultNY:     cfg.DefaultNY,
	}
}

// feedError writes the problem response for a failed snapshot fetch. An
// empty feed is a data gap (422), anything else is an upstream outage.
func feedError(w http.ResponseWriter, r *http.Request, err error) {
	if errors.Is(err, station.ErrNoReadings) {
		response.NoData(w, r, "station feed returned no usable readings")
		return
	}
	response.ServiceUnavailable(w, r, "station feed unavailable")
}

// ListStations handles GET /v1/stations.
func (h *AQIHandler) ListStations(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.source.FetchSnapshot(r.Context())
	if err != nil {
		feedError(w, r, err)
		return
	}

	out := models.StationsResponse{
		City:      h.city,
		Provider:  snapshot.Provider,
		FetchedAt: models.Timestamp(snapshot.FetchedAt),
		Stations:  make([]models.StationReading, 0, len(snapshot.Readings)),
	}
	for _, reading := range snapshot.Readings {
		level := aqi.Classify(reading.AQI)
		out.Stations = append(out.Stations, models.StationReading{
			Station:    reading.Station,
			Lat:        reading.Lat,
			Lon:        reading.Lon,
			AQI:        reading.AQI,
			Category:   string(level.Category),
			Color:      level.Color,
			Advice:     level.Advice,
			ObservedAt: models.Timestamp(reading.ObservedAt),
		})
	}

	response.JSON(w, r, http.StatusOK, out)
}

// Aggregate handles GET /v1/aqi/aggregate?lat=&lon=.
func (h *AQIHandler) Aggregate(w http.ResponseWriter, r *http.Request) {
	lat, err := parseCoord(r.URL.Query().Get("lat"), 90)
	if err != nil {
		response.BadRequest(w, r, "invalid lat", []models.FieldError{{Field: "lat", Message: err.Error()}})
		return
	}
	lon, err := parseCoord(r.URL.Query().Get("lon"), 180)
	if err != nil {
		response.BadRequest(w, r, "invalid lon", []models.FieldError{{Field: "lon", Message: err.Error()}})
		return
	}

	snapshot, err := h.source.FetchSnapshot(r.Context())
	if err != nil {
		feedError(w, r, err)
		return
	}

	agg, err := h.aggregator.Aggregate(snapshot.Readings, lat, lon)
	if err != nil {
		if errors.Is(err, spatial.ErrNoStations) {
			response.NoData(w, r, "no stations within radius of the query point")
			return
		}
		response.InternalError(w, r, "aggregation failed")
		return
	}

	level := aqi.Classify(agg.WeightedAQI)
	out := models.AggregateResponse{
		Point:       models.Point{Lat: lat, Lon: lon},
		WeightedAQI: agg.WeightedAQI,
		Category:    string(level.Category),
		Color:       level.Color,
		Advice:      level.Advice,
		Stations:    make([]models.AggregateContribution, 0, len(agg.Stations)),
	}
	for _, c := range agg.Stations {
		out.Stations = append(out.Stations, models.AggregateContribution{
			Station:    c.Reading.Station,
			AQI:        c.Reading.AQI,
			DistanceKM: c.DistanceKM,
			Weight:     c.Weight,
		})
	}

	response.JSON(w, r, http.StatusOK, out)
}

// Interpolate handles POST /v1/aqi/interpolate.
func (h *AQIHandler) Interpolate(w http.ResponseWriter, r *http.Request) {
	var req models.InterpolateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid request body", nil)
		return
	}

	bounds := h.defaultBounds
	if req.Bounds != nil {
		bounds = spatial.Bounds{
			MinLat: req.Bounds.MinLat,
			MinLon: req.Bounds.MinLon,
			MaxLat: req.Bounds.MaxLat,
			MaxLon: req.Bounds.MaxLon,
		}
	}
	if bounds.MinLat >= bounds.MaxLat || bounds.MinLon >= bounds.MaxLon {
		response.BadRequest(w, r, "bounds must span a non-empty box", nil)
		return
	}

	nx, ny := h.defaultNX, h.defaultNY
	if req.NX > 0 {
		nx = req.NX
	}
	if req.NY > 0 {
		ny = req.NY
	}
	if nx > 128 || ny > 128 {
		response.BadRequest(w, r, "grid resolution limited to 128x128", nil)
		return
	}

	var boundary []spatial.Point
	for _, p := range req.Boundary {
		boundary = append(boundary, spatial.Point{Lat: p.Lat, Lon: p.Lon})
	}

	snapshot, err := h.source.FetchSnapshot(r.Context())
	if err != nil {
		feedError(w, r, err)
		return
	}

	grid, err := h.interpolator.InterpolateGrid(r.Context(), snapshot.Readings, bounds, nx, ny, boundary)
	if err != nil {
		switch {
		case errors.Is(err, spatial.ErrTooFewStations),
			errors.Is(err, spatial.ErrZeroVariance),
			errors.Is(err, spatial.ErrInterpolationUnavailable):
			response.NoData(w, r, err.Error())
		default:
			response.InternalError(w, r, "interpolation failed")
		}
		return
	}

	out := models.InterpolateResponse{
		Bounds: models.GeoBox{
			MinLat: grid.Bounds.MinLat,
			MinLon: grid.Bounds.MinLon,
			MaxLat: grid.Bounds.MaxLat,
			MaxLon: grid.Bounds.MaxLon,
		},
		Lats:   grid.Lats,
		Lons:   grid.Lons,
		Values: make([][]*float64, len(grid.Values)),
	}
	for y, row := range grid.Values {
		out.Values[y] = make([]*float64, len(row))
		for x, v := range row {
			if !math.IsNaN(v) {
				value := v
				out.Values[y][x] = &value
			}
		}
	}

	response.JSON(w, r, http.StatusOK, out)
}

func parseCoord(raw string, bound float64) (float64, error) {
	if raw == "" {
		return 0, errors.New("required")
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, errors.New("must be a number")
	}
	if v < -bound || v > bound {
		return 0, errors.New("out of range")
	}
	return v, nil
}
