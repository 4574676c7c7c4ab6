// Package openweathermap fetches current conditions from the
// OpenWeatherMap API.
package openweathermap

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/airsentry/airsentry/internal/resilience"
	"github.com/airsentry/airsentry/internal/weather"
)

const defaultBaseURL = "https://api.openweathermap.org/data/2.5"

// ClientConfig holds the OpenWeatherMap client settings.
type ClientConfig struct {
	// APIKey is required; an empty key leaves every fetch failing with
	// weather.ErrProviderUnavailable.
	APIKey  string
	BaseURL string
	// HTTPClient overrides the resilient default. Tests inject one here.
	HTTPClient resilience.Doer

	// Registry tracks upstream health when non-nil (optional).
	Registry *resilience.Registry
}

// Client is an OpenWeatherMap current-weather client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient resilience.Doer
}

// NewClient creates a Client with circuit-broken retrying transport.
func NewClient(cfg ClientConfig) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		clientCfg := resilience.DefaultClientConfig("openweathermap")
		clientCfg.Registry = cfg.Registry
		httpClient = resilience.NewClient(clientCfg)
	}
	return &Client{apiKey: cfg.APIKey, baseURL: baseURL, httpClient: httpClient}
}

type currentWeatherResponse struct {
	Weather []struct {
		Description string `json:"description"`
	} `json:"weather"`
	Main struct {
		Temp     float64 `json:"temp"`
		Humidity float64 `json:"humidity"`
	} `json:"main"`
	Wind struct {
		Speed float64 `json:"speed"`
	} `json:"wind"`
	Dt int64 `json:"dt"`
}

// CurrentWeather fetches conditions for a point.
func (c *Client) CurrentWeather(ctx context.Context, lat, lon float64) (*weather.Observation, error) {
	if c.apiKey == "" {
		return nil, weather.ErrProviderUnavailable
	}

	url := fmt.Sprintf("%s/weather?lat=%.6f&lon=%.6f&appid=%s&units=metric", c.baseURL, lat, lon, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", weather.ErrProviderUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", weather.ErrProviderUnavailable, resp.StatusCode)
	}

	var payload currentWeatherResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding response: %w", err)
	}

	obs := &weather.Observation{
		Lat:         lat,
		Lon:         lon,
		Temperature: payload.Main.Temp,
		Humidity:    payload.Main.Humidity,
		WindSpeed:   payload.Wind.Speed,
		ObservedAt:  time.Unix(payload.Dt, 0).UTC(),
	}
	if len(payload.Weather) > 0 {
		obs.Description = payload.Weather[0].Description
	}
	return obs, nil
}
