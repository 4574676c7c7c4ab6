// Package worker runs the scheduled monitoring cycle: fetch readings,
// persist them, evaluate the alert decision per recipient, and dispatch.
package worker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/airsentry/airsentry/internal/alert"
	"github.com/airsentry/airsentry/internal/aqi"
	"github.com/airsentry/airsentry/internal/history"
	"github.com/airsentry/airsentry/internal/notify"
	"github.com/airsentry/airsentry/internal/station"
	"github.com/airsentry/airsentry/internal/telemetry"
	"github.com/airsentry/airsentry/internal/weather"
)

// SnapshotFetcher is the station feed boundary.
type SnapshotFetcher interface {
	FetchSnapshot(ctx context.Context) (*station.Snapshot, error)
}

// CheckJobConfig wires one monitoring cycle.
type CheckJobConfig struct {
	Fetcher    SnapshotFetcher
	Store      history.Store
	Engine     *alert.Engine
	Dispatcher *notify.Dispatcher
	// Weather is optional; nil degrades the message to "N/A".
	Weather weather.Provider

	Target          aqi.Category
	Recipients      []string
	SustainedWindow time.Duration

	// Concurrency bounds the per-recipient evaluation pool. Default: 4.
	Concurrency int
	// Timeout bounds one whole cycle. Default: 2m.
	Timeout time.Duration

	// Lat, Lon locate the weather lookup (city center).
	Lat float64
	Lon float64

	Logger zerolog.Logger
}

// CheckMetrics tracks monitoring cycle statistics.
type CheckMetrics struct {
	mu sync.RWMutex

	TotalChecks       int64
	FailedChecks      int64
	ReadingsRecorded  int64
	AlertsSent        int64
	AlertsSuppressed  int64
	SendFailures      int64
	LastCheckAt       time.Time
	LastCheckDuration time.Duration
}

// CheckJob is the scheduled alert check.
type CheckJob struct {
	cfg     CheckJobConfig
	logger  zerolog.Logger
	metrics *CheckMetrics

	checksCounter metric.Int64Counter
	alertsCounter metric.Int64Counter
}

// NewCheckJob creates a CheckJob.
func NewCheckJob(cfg CheckJobConfig) *CheckJob {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 4
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 2 * time.Minute
	}
	if cfg.SustainedWindow <= 0 {
		cfg.SustainedWindow = time.Hour
	}

	meter := telemetry.Meter("airsentry.worker")
	checks, _ := meter.Int64Counter("airsentry.checks.total",
		metric.WithDescription("Completed monitoring cycles"))
	alerts, _ := meter.Int64Counter("airsentry.alerts.total",
		metric.WithDescription("Alert dispatch outcomes"))

	return &CheckJob{
		cfg:           cfg,
		logger:        cfg.Logger.With().Str("component", "check_job").Logger(),
		metrics:       &CheckMetrics{},
		checksCounter: checks,
		alertsCounter: alerts,
	}
}

// CheckResult summarizes one cycle.
type CheckResult struct {
	StartTime  time.Time
	Duration   time.Duration
	Readings   int
	Evaluated  int
	Sent       int
	Suppressed int
	Failures   int
	Signal     *float64
}

// Run executes one monitoring cycle. A feed or store failure degrades the
// cycle rather than aborting it; only a completely absent signal skips the
// per-recipient evaluation.
func (j *CheckJob) Run(ctx context.Context) (*CheckResult, error) {
	ctx, cancel := context.WithTimeout(ctx, j.cfg.Timeout)
	defer cancel()

	start := time.Now()
	result := &CheckResult{StartTime: start}

	snapshot, err := j.cfg.Fetcher.FetchSnapshot(ctx)
	if err != nil {
		j.logger.Error().Err(err).Msg("station feed unavailable, relying on stored history")
	} else {
		result.Readings = len(snapshot.Readings)
		if err := j.cfg.Store.RecordReadings(ctx, snapshot.Readings); err != nil {
			j.logger.Error().Err(err).Msg("failed to persist readings, decision uses fresh snapshot only")
		}
	}

	signal := j.buildSignal(ctx, snapshot)
	result.Signal = signal.Value

	if signal.Value == nil {
		j.logger.Warn().Msg("no signal available, skipping alert evaluation")
		j.finish(result, start)
		return result, nil
	}

	j.logger.Info().
		Float64("signal", *signal.Value).
		Int("stations", len(signal.StationValues)).
		Str("source", signal.Source).
		Msg("signal computed")

	j.evaluateRecipients(ctx, signal, result)

	j.finish(result, start)
	return result, nil
}

// buildSignal prefers the sustained average from the store and falls back
// to the mean of the fresh snapshot when history is unavailable.
func (j *CheckJob) buildSignal(ctx context.Context, snapshot *station.Snapshot) alert.Signal {
	var stationValues []float64
	if snapshot != nil {
		stationValues = snapshot.Values()
	}

	avg, err := j.cfg.Store.RecentAverage(ctx, j.cfg.SustainedWindow)
	if err == nil && avg != nil {
		return alert.Signal{Value: avg, StationValues: stationValues, Source: "sustained_average"}
	}
	if err != nil {
		j.logger.Error().Err(err).Msg("sustained average unavailable")
	}

	if len(stationValues) == 0 {
		return alert.Signal{}
	}
	var sum float64
	for _, v := range stationValues {
		sum += v
	}
	mean := sum / float64(len(stationValues))
	return alert.Signal{Value: &mean, StationValues: stationValues, Source: "snapshot_mean"}
}

func (j *CheckJob) evaluateRecipients(ctx context.Context, signal alert.Signal, result *CheckResult) {
	recipients := make(chan string, len(j.cfg.Recipients))
	outcomes := make(chan recipientOutcome, len(j.cfg.Recipients))

	var wg sync.WaitGroup
	for i := 0; i < j.cfg.Concurrency; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for recipient := range recipients {
				outcomes <- j.checkRecipient(ctx, recipient, signal)
			}
		}()
	}

	for _, r := range j.cfg.Recipients {
		recipients <- r
	}
	close(recipients)

	go func() {
		wg.Wait()
		close(outcomes)
	}()

	for out := range outcomes {
		result.Evaluated++
		switch {
		case out.failed:
			result.Failures++
		case out.sent:
			result.Sent++
		default:
			result.Suppressed++
		}
	}
}

type recipientOutcome struct {
	sent   bool
	failed bool
}

func (j *CheckJob) checkRecipient(ctx context.Context, recipient string, signal alert.Signal) recipientOutcome {
	logger := j.logger.With().Str("recipient", recipient).Logger()

	decision, err := j.cfg.Engine.Evaluate(ctx, recipient, j.cfg.Target, signal)
	if err != nil {
		logger.Error().Err(err).Msg("evaluation failed")
		return recipientOutcome{failed: true}
	}
	if !decision.Send {
		logger.Info().Str("reason", decision.Reason).Msg("alert suppressed")
		j.alertsCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "suppressed")))
		return recipientOutcome{}
	}

	body := j.composeMessage(ctx, decision)
	res, err := j.cfg.Dispatcher.Send(ctx, recipient, j.cfg.Target, body)
	if err != nil {
		logger.Error().Err(err).Str("detail", res.Detail).Msg("dispatch failed")
		j.alertsCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "failed")))
		return recipientOutcome{failed: true}
	}

	logger.Info().
		Str("provider", res.Provider).
		Str("reason", decision.Reason).
		Msg("alert sent")
	j.alertsCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", "sent")))
	return recipientOutcome{sent: true}
}

func (j *CheckJob) composeMessage(ctx context.Context, decision alert.Decision) string {
	level := aqi.Classify(decision.Value)
	conditions := weather.SummaryOrNA(ctx, j.cfg.Weather, j.cfg.Lat, j.cfg.Lon)

	msg := fmt.Sprintf("Air quality alert: %s (AQI %.0f). %s Weather: %s.",
		level.Category, decision.Value, level.Advice, conditions)
	if decision.Trend == alert.TrendRising {
		msg += " Conditions are worsening."
	}
	return msg
}

func (j *CheckJob) finish(result *CheckResult, start time.Time) {
	result.Duration = time.Since(start)

	j.metrics.mu.Lock()
	j.metrics.TotalChecks++
	j.metrics.ReadingsRecorded += int64(result.Readings)
	j.metrics.AlertsSent += int64(result.Sent)
	j.metrics.AlertsSuppressed += int64(result.Suppressed)
	j.metrics.SendFailures += int64(result.Failures)
	j.metrics.LastCheckAt = time.Now()
	j.metrics.LastCheckDuration = result.Duration
	j.metrics.mu.Unlock()

	j.checksCounter.Add(context.Background(), 1)

	j.logger.Info().
		Dur("duration", result.Duration).
		Int("readings", result.Readings).
		Int("sent", result.Sent).
		Int("suppressed", result.Suppressed).
		Int("failures", result.Failures).
		Msg("monitoring cycle completed")
}

// Metrics returns a copy of the current cycle statistics.
func (j *CheckJob) Metrics() CheckMetrics {
	j.metrics.mu.RLock()
	defer j.metrics.mu.RUnlock()
	return CheckMetrics{
		TotalChecks:       j.metrics.TotalChecks,
		FailedChecks:      j.metrics.FailedChecks,
		ReadingsRecorded:  j.metrics.ReadingsRecorded,
		AlertsSent:        j.metrics.AlertsSent,
		AlertsSuppressed:  j.metrics.AlertsSuppressed,
		SendFailures:      j.metrics.SendFailures,
		LastCheckAt:       j.metrics.LastCheckAt,
		LastCheckDuration: j.metrics.LastCheckDuration,
	}
}

// MetricsSnapshot returns the statistics as a map for the ops endpoint.
func (j *CheckJob) MetricsSnapshot() map[string]any {
	m := j.Metrics()
	return map[string]any{
		"total_checks":        m.TotalChecks,
		"readings_recorded":   m.ReadingsRecorded,
		"alerts_sent":         m.AlertsSent,
		"alerts_suppressed":   m.AlertsSuppressed,
		"send_failures":       m.SendFailures,
		"last_check_at":       m.LastCheckAt,
		"last_check_duration": m.LastCheckDuration.String(),
	}
}
