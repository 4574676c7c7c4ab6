// Package config assembles runtime configuration from the environment. A
// local .env file is honored when present; real environment variables win.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/airsentry/airsentry/internal/alert"
	"github.com/airsentry/airsentry/internal/aqi"
	"github.com/airsentry/airsentry/internal/notify"
	"github.com/airsentry/airsentry/internal/spatial"
)

// App is the full configuration for either binary.
type App struct {
	Env          string
	Port         string
	OTLPEndpoint string
	OTELEnabled  bool

	// Station feed.
	OpenAQBaseURL string
	City          string
	CityLat       float64
	CityLon       float64

	// WeatherAPIKey enables OpenWeatherMap context in alert messages.
	// Empty degrades the weather line to "N/A".
	WeatherAPIKey string

	// Monitoring.
	CheckSchedule  string
	TargetSeverity aqi.Category
	RetentionDays  int
	PubsubProject  string
	PubsubSub      string

	// Aggregation defaults for the query surface.
	RadiusKM    float64
	MaxStations int

	Alert    alert.Config
	Dispatch notify.DispatcherConfig

	Twilio TwilioConfig
	Krige  KrigeConfig
}

// TwilioConfig carries provider credentials. All-empty means unconfigured
// and the dispatcher simulates sends.
type TwilioConfig struct {
	AccountSID string
	AuthToken  string
	From       string
}

// KrigeConfig bounds the interpolation surface.
type KrigeConfig struct {
	Bounds spatial.Bounds
	NX     int
	NY     int
}

// Load reads .env (if any) and the environment. It never fails: missing
// values fall back to defaults so a bare process still starts in dry-run.
func Load(logger zerolog.Logger) App {
	if err := godotenv.Load(); err == nil {
		logger.Debug().Msg("loaded .env file")
	}

	target, ok := aqi.ParseCategory(envOr("ALERT_TARGET_SEVERITY", "Unhealthy"))
	if !ok {
		logger.Warn().Str("value", os.Getenv("ALERT_TARGET_SEVERITY")).
			Msg("unknown target severity, using Unhealthy")
		target = aqi.CategoryUnhealthy
	}

	alertCfg := alert.DefaultConfig()
	alertCfg.Policy = alert.Policy(envOr("ALERT_POLICY", string(alert.PolicySimpleThreshold)))
	alertCfg.MinCorroborating = envInt("ALERT_MIN_CORROBORATING", 1)
	alertCfg.Cooldown = envDuration("ALERT_COOLDOWN", 2*time.Hour)
	alertCfg.SustainedWindow = envDuration("ALERT_SUSTAINED_WINDOW", time.Hour)
	alertCfg.TrendDelta = envFloat("ALERT_TREND_DELTA", 10)
	alertCfg.Recipients = envList("ALERT_RECIPIENTS")
	alertCfg.DryRun = envBool("ALERT_DRY_RUN", true)

	dispatch := notify.DefaultDispatcherConfig()
	dispatch.MaxRetries = envInt("NOTIFY_MAX_RETRIES", 3)
	dispatch.BaseDelay = envDuration("NOTIFY_BASE_DELAY", time.Second)
	dispatch.DryRun = alertCfg.DryRun

	return App{
		Env:          envOr("APP_ENV", "development"),
		Port:         envOr("APP_PORT", "8080"),
		OTLPEndpoint: envOr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELEnabled:  envBool("OTEL_ENABLED", false),

		OpenAQBaseURL: envOr("OPENAQ_BASE_URL", ""),
		City:          envOr("OPENAQ_CITY", "Delhi"),
		CityLat:       envFloat("CITY_LAT", 28.6139),
		CityLon:       envFloat("CITY_LON", 77.2090),
		WeatherAPIKey: os.Getenv("OWM_API_KEY"),

		CheckSchedule:  envOr("CHECK_SCHEDULE", "*/30 * * * *"),
		TargetSeverity: target,
		RetentionDays:  envInt("HISTORY_RETENTION_DAYS", 30),
		PubsubProject:  os.Getenv("PUBSUB_PROJECT"),
		PubsubSub:      os.Getenv("PUBSUB_SUBSCRIPTION"),

		RadiusKM:    envFloat("AGGREGATE_RADIUS_KM", 50),
		MaxStations: envInt("AGGREGATE_MAX_STATIONS", 5),

		Alert:    alertCfg,
		Dispatch: dispatch,

		Twilio: TwilioConfig{
			AccountSID: os.Getenv("TWILIO_ACCOUNT_SID"),
			AuthToken:  os.Getenv("TWILIO_AUTH_TOKEN"),
			From:       os.Getenv("TWILIO_FROM"),
		},

		Krige: KrigeConfig{
			Bounds: spatial.Bounds{
				MinLat: envFloat("GRID_MIN_LAT", 28.40),
				MinLon: envFloat("GRID_MIN_LON", 76.85),
				MaxLat: envFloat("GRID_MAX_LAT", 28.90),
				MaxLon: envFloat("GRID_MAX_LON", 77.35),
			},
			NX: envInt("GRID_NX", 24),
			NY: envInt("GRID_NY", 24),
		},
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envList(key string) []string {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
