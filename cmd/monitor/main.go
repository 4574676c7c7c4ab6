// Package main provides the entrypoint for the AirSentry monitor, the
// scheduled process that fetches readings, evaluates alert policy, and
// dispatches notifications.
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/airsentry/airsentry/internal/alert"
	"github.com/airsentry/airsentry/internal/config"
	"github.com/airsentry/airsentry/internal/database"
	"github.com/airsentry/airsentry/internal/history"
	"github.com/airsentry/airsentry/internal/notify"
	"github.com/airsentry/airsentry/internal/notify/twilio"
	"github.com/airsentry/airsentry/internal/resilience"
	"github.com/airsentry/airsentry/internal/station/openaq"
	"github.com/airsentry/airsentry/internal/telemetry"
	"github.com/airsentry/airsentry/internal/weather"
	"github.com/airsentry/airsentry/internal/weather/openweathermap"
	"github.com/airsentry/airsentry/internal/worker"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "airsentry-monitor"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting AirSentry monitor")

	cfg := config.Load(log)

	// Initialize OpenTelemetry
	ctx := context.Background()

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
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	// Connect to database. The monitor degrades to an in-memory store when
	// the database is away, losing cooldown durability across restarts.
	var store history.Store

	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Warn().Err(err).Msg("database unavailable, using in-memory history store")
		store = history.NewMemoryStore()
	} else {
		defer pool.Close()
		log.Info().
			Str("host", dbConfig.Host).
			Str("database", dbConfig.Database).
			Msg("database connected")

		pg := history.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			log.Fatal().Err(err).Msg("failed to run migrations")
		}
		store = pg
	}

	registry := resilience.NewRegistry()

	source := openaq.NewClient(openaq.ClientConfig{
		BaseURL:  cfg.OpenAQBaseURL,
		City:     cfg.City,
		Registry: registry,
	})

	var weatherProvider weather.Provider
	if cfg.WeatherAPIKey != "" {
		weatherProvider = openweathermap.NewClient(openweathermap.ClientConfig{
			APIKey:   cfg.WeatherAPIKey,
			Registry: registry,
		})
		log.Info().Msg("weather provider initialized")
	}

	state := alert.NewRecipientState()
	engine := alert.NewEngine(cfg.Alert, store, state, log)

	var providers []notify.Provider
	if cfg.Twilio.AccountSID != "" && cfg.Twilio.AuthToken != "" && cfg.Twilio.From != "" {
		providers = append(providers, twilio.New(twilio.Config{
			AccountSID: cfg.Twilio.AccountSID,
			AuthToken:  cfg.Twilio.AuthToken,
			From:       cfg.Twilio.From,
		}))
		log.Info().Msg("Twilio SMS provider initialized")
	} else {
		log.Warn().Msg("no SMS provider configured, alerts will be simulated")
	}

	dispatcher := notify.NewDispatcher(cfg.Dispatch, providers, store, state, log)

	checkJob := worker.NewCheckJob(worker.CheckJobConfig{
		Fetcher:         source,
		Store:           store,
		Engine:          engine,
		Dispatcher:      dispatcher,
		Weather:         weatherProvider,
		Target:          cfg.TargetSeverity,
		Recipients:      cfg.Alert.Recipients,
		SustainedWindow: cfg.Alert.SustainedWindow,
		Lat:             cfg.CityLat,
		Lon:             cfg.CityLon,
		Logger:          log,
	})
	pruneJob := worker.NewPruneJob(store, time.Duration(cfg.RetentionDays)*24*time.Hour, log)

	runCheck := func() {
		if _, err := checkJob.Run(context.Background()); err != nil {
			log.Error().Err(err).Msg("check cycle failed")
		}
	}
	runPrune := func() {
		pruneCtx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()
		if _, err := pruneJob.Run(pruneCtx); err != nil {
			log.Error().Err(err).Msg("history prune failed")
		}
	}

	// Schedule the cycles
	scheduler := cron.New()
	if _, err := scheduler.AddFunc(cfg.CheckSchedule, runCheck); err != nil {
		log.Fatal().Err(err).Str("schedule", cfg.CheckSchedule).Msg("invalid check schedule")
	}
	if _, err := scheduler.AddFunc("0 3 * * *", runPrune); err != nil {
		log.Fatal().Err(err).Msg("invalid prune schedule")
	}
	scheduler.Start()
	log.Info().Str("schedule", cfg.CheckSchedule).Msg("scheduler started")

	// First cycle immediately so a fresh deployment alerts without waiting
	// for the next cron tick.
	go runCheck()

	// Optional Pub/Sub trigger for out-of-band runs
	var pubsubHandler *worker.PubSubHandler
	if cfg.PubsubProject != "" && cfg.PubsubSub != "" {
		pubsubHandler, err = worker.NewPubSubHandler(ctx, worker.PubSubConfig{
			ProjectID:        cfg.PubsubProject,
			SubscriptionName: cfg.PubsubSub,
			CheckJob:         checkJob,
			PruneJob:         pruneJob,
			Logger:           log,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("failed to create pub/sub handler")
		}
		go func() {
			if err := pubsubHandler.Start(ctx); err != nil {
				log.Error().Err(err).Msg("pub/sub receive stopped")
			}
		}()
		log.Info().
			Str("project", cfg.PubsubProject).
			Str("subscription", cfg.PubsubSub).
			Msg("pub/sub trigger listening")
	}

	// Health endpoint for orchestration probes
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "OK",
			"version": Version,
			"metrics": checkJob.MetricsSnapshot(),
		})
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		log.Info().Str("addr", server.Addr).Msg("health endpoint listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("health server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down monitor")

	stopCtx := scheduler.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(30 * time.Second):
		log.Warn().Msg("running jobs did not finish before shutdown deadline")
	}

	if pubsubHandler != nil {
		if err := pubsubHandler.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close pub/sub handler")
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("health server forced to shutdown")
	}

	log.Info().Msg("monitor stopped")
}
