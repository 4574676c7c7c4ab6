// Package openaq provides a client for the OpenAQ v2 API.
package openaq

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/airsentry/airsentry/internal/aqi"
	"github.com/airsentry/airsentry/internal/resilience"
	"github.com/airsentry/airsentry/internal/station"
)

const (
	// DefaultBaseURL is the base URL for the OpenAQ v2 API.
	DefaultBaseURL = "https://api.openaq.org/v2"

	// ProviderName identifies this feed.
	ProviderName = "openaq"

	// DefaultLimit is the maximum number of stations requested per fetch.
	DefaultLimit = 1000
)

// ClientConfig holds configuration for the OpenAQ client.
type ClientConfig struct {
	// BaseURL overrides the API base URL (defaults to DefaultBaseURL).
	BaseURL string

	// City scopes the latest-readings query (defaults to "Delhi").
	City string

	// HTTPClient executes requests. Nil creates a resilient client.
	HTTPClient HTTPDoer

	// Timeout for individual API requests (default: 12s).
	Timeout time.Duration

	// Registry tracks upstream health when non-nil (optional).
	Registry *resilience.Registry
}

// HTTPDoer abstracts HTTP request execution.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client fetches the latest per-station readings for a city.
type Client struct {
	baseURL    string
	city       string
	httpClient HTTPDoer
}

// NewClient creates an OpenAQ client.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	city := cfg.City
	if city == "" {
		city = "Delhi"
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 12 * time.Second
		}
		httpClient = resilience.NewClient(resilience.ClientConfig{
			Name:            ProviderName,
			Timeout:         timeout,
			MaxRetries:      3,
			InitialInterval: 200 * time.Millisecond,
			MaxInterval:     5 * time.Second,
			Registry:        cfg.Registry,
		})
	}

	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		city:       city,
		httpClient: httpClient,
	}
}

// API response types (from the OpenAQ v2 /latest endpoint).

type latestResponse struct {
	Results []latestResult `json:"results"`
}

type latestResult struct {
	Location     string              `json:"location"`
	Coordinates  *coordinates        `json:"coordinates"`
	Measurements []latestMeasurement `json:"measurements"`
}

type coordinates struct {
	Latitude  *float64 `json:"latitude"`
	Longitude *float64 `json:"longitude"`
}

type latestMeasurement struct {
	Parameter   string  `json:"parameter"`
	Value       float64 `json:"value"`
	LastUpdated string  `json:"lastUpdated"`
}

// FetchSnapshot retrieves the latest station readings and normalizes them.
// Stations without coordinates or without a usable pollutant value are
// skipped, never surfaced as errors. A feed that yields no usable
// readings at all returns station.ErrNoReadings.
func (c *Client) FetchSnapshot(ctx context.Context) (*station.Snapshot, error) {
	params := url.Values{}
	params.Set("city", c.city)
	params.Set("limit", fmt.Sprintf("%d", DefaultLimit))

	reqURL := fmt.Sprintf("%s/latest?%s", c.baseURL, params.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch latest readings: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: unexpected status %d from latest endpoint", station.ErrFeedUnavailable, resp.StatusCode)
	}

	var result latestResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode latest response: %w", err)
	}

	snapshot := station.NewSnapshot(ProviderName)
	for i := range result.Results {
		if r, ok := c.toReading(&result.Results[i], snapshot.FetchedAt); ok {
			snapshot.Readings = append(snapshot.Readings, r)
		}
	}
	if len(snapshot.Readings) == 0 {
		return nil, fmt.Errorf("%w for city %q", station.ErrNoReadings, c.city)
	}

	return snapshot, nil
}

// toReading converts one API result to a normalized Reading. PM2.5 is
// preferred; the first measurement is the fallback, matching the feed's
// loosely specified payloads.
func (c *Client) toReading(res *latestResult, fetchedAt time.Time) (station.Reading, bool) {
	if res.Coordinates == nil || res.Coordinates.Latitude == nil || res.Coordinates.Longitude == nil {
		return station.Reading{}, false
	}

	var m *latestMeasurement
	for i := range res.Measurements {
		if strings.EqualFold(res.Measurements[i].Parameter, "pm25") {
			m = &res.Measurements[i]
			break
		}
	}
	if m == nil && len(res.Measurements) > 0 {
		m = &res.Measurements[0]
	}
	if m == nil {
		return station.Reading{}, false
	}

	value, err := aqi.PM25ToAQI(m.Value)
	if err != nil {
		return station.Reading{}, false
	}

	observedAt := fetchedAt
	if ts, parseErr := time.Parse(time.RFC3339, m.LastUpdated); parseErr == nil {
		observedAt = ts.UTC()
	}

	name := res.Location
	if name == "" {
		name = "unknown"
	}

	return station.Reading{
		Station:    name,
		Lat:        *res.Coordinates.Latitude,
		Lon:        *res.Coordinates.Longitude,
		AQI:        value,
		ObservedAt: observedAt,
	}, true
}
