// Package main is the entrypoint for the AirSentry API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/airsentry/airsentry/internal/alert"
	"github.com/airsentry/airsentry/internal/api"
	"github.com/airsentry/airsentry/internal/api/handler"
	"github.com/airsentry/airsentry/internal/api/middleware"
	"github.com/airsentry/airsentry/internal/config"
	"github.com/airsentry/airsentry/internal/database"
	"github.com/airsentry/airsentry/internal/history"
	"github.com/airsentry/airsentry/internal/notify"
	"github.com/airsentry/airsentry/internal/notify/twilio"
	"github.com/airsentry/airsentry/internal/resilience"
	"github.com/airsentry/airsentry/internal/spatial"
	"github.com/airsentry/airsentry/internal/station/openaq"
	"github.com/airsentry/airsentry/internal/telemetry"
)

const serviceName = "airsentry-api"

// Version and BuildTime are injected via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	log := zerolog.New(os.Stdout).With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().Str("build_time", BuildTime).Msg("starting AirSentry API")

	ctx := context.Background()
	cfg := config.Load(log)

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    cfg.Env,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.OTELEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		flushCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(flushCtx); err != nil {
			log.Error().Err(err).Msg("failed to shutdown telemetry")
		}
	}()
	if cfg.OTELEnabled {
		log.Info().Str("otlp_endpoint", cfg.OTLPEndpoint).Msg("OpenTelemetry initialized")
	}

	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	store, pinger, closeStore := openHistoryStore(ctx, log)
	defer closeStore()

	registry := resilience.NewRegistry()
	source := openaq.NewClient(openaq.ClientConfig{
		BaseURL:  cfg.OpenAQBaseURL,
		City:     cfg.City,
		Registry: registry,
	})
	log.Info().Str("city", cfg.City).Msg("station feed initialized")

	// Shared recipient state keeps the engine's cooldown view and the
	// dispatcher's send bookkeeping consistent.
	state := alert.NewRecipientState()
	engine := alert.NewEngine(cfg.Alert, store, state, log)
	dispatcher := notify.NewDispatcher(cfg.Dispatch, smsProviders(cfg, log), store, state, log)

	router := api.NewRouter(api.RouterConfig{
		Version:     Version,
		BuildTime:   BuildTime,
		Logger:      log,
		ServiceName: serviceName,
		Metrics:     metrics,
		Ops:         handler.NewOpsHandler(Version, BuildTime, pinger, registry, nil),
		AQI: handler.NewAQIHandler(handler.AQIHandlerConfig{
			Source: source,
			City:   cfg.City,
			Aggregator: spatial.NewAggregator(spatial.AggregatorConfig{
				RadiusKM:    cfg.RadiusKM,
				MaxStations: cfg.MaxStations,
			}),
			Interpolator:  spatial.NewKriging(),
			DefaultBounds: cfg.Krige.Bounds,
			DefaultNX:     cfg.Krige.NX,
			DefaultNY:     cfg.Krige.NY,
		}),
		Alerts: handler.NewAlertsHandler(handler.AlertsHandlerConfig{
			Source:     source,
			Store:      store,
			Engine:     engine,
			Dispatcher: dispatcher,
			AlertCfg:   cfg.Alert,
			Target:     cfg.TargetSeverity,
		}),
	})

	serve(log, cfg.Port, router)
}

// openHistoryStore connects Postgres and runs migrations. A missing
// database degrades to the in-memory store so the query surface stays up;
// history then resets on restart.
func openHistoryStore(ctx context.Context, log zerolog.Logger) (history.Store, handler.Pinger, func()) {
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Warn().Err(err).Msg("database unavailable, using in-memory history store")
		return history.NewMemoryStore(), nil, func() {}
	}

	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("database connected")

	pg := history.NewPostgresStore(pool)
	if err := pg.Migrate(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}
	return pg, pool, pool.Close
}

// smsProviders builds the outbound provider chain from configuration. An
// empty chain leaves the dispatcher in simulation mode.
func smsProviders(cfg config.App, log zerolog.Logger) []notify.Provider {
	if cfg.Twilio.AccountSID == "" || cfg.Twilio.AuthToken == "" || cfg.Twilio.From == "" {
		log.Warn().Msg("no SMS provider configured, alerts will be simulated")
		return nil
	}

	log.Info().Msg("Twilio SMS provider initialized")
	return []notify.Provider{twilio.New(twilio.Config{
		AccountSID: cfg.Twilio.AccountSID,
		AuthToken:  cfg.Twilio.AuthToken,
		From:       cfg.Twilio.From,
	})}
}

// serve runs the HTTP server until SIGINT or SIGTERM, then drains it.
func serve(log zerolog.Logger, port string, router http.Handler) {
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	drainCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(drainCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
