package alert

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airsentry/airsentry/internal/aqi"
	"github.com/airsentry/airsentry/internal/history"
)

const testRecipient = "+14155550100"

func newTestEngine(t *testing.T, cfg Config, now time.Time) (*Engine, *history.MemoryStore, *RecipientState) {
	t.Helper()
	store := history.NewMemoryStore()
	store.SetClock(func() time.Time { return now })
	state := NewRecipientState()
	engine := NewEngine(cfg, store, state, zerolog.Nop())
	engine.SetClock(func() time.Time { return now })
	return engine, store, state
}

func floatPtr(v float64) *float64 { return &v }

func TestEvaluateAboveThresholdNoHistory(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	engine, _, _ := newTestEngine(t, DefaultConfig(), now)

	d, err := engine.Evaluate(context.Background(), testRecipient, aqi.CategoryUnhealthy, Signal{Value: floatPtr(160)})
	require.NoError(t, err)
	assert.True(t, d.Send)
	assert.Contains(t, d.Reason, "160 >= 151")
	assert.Equal(t, 151.0, d.Threshold)
}

func TestEvaluateBelowThreshold(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	engine, _, _ := newTestEngine(t, DefaultConfig(), now)

	d, err := engine.Evaluate(context.Background(), testRecipient, aqi.CategoryUnhealthy, Signal{Value: floatPtr(120)})
	require.NoError(t, err)
	assert.False(t, d.Send)
	assert.Contains(t, d.Reason, "120")
	assert.Contains(t, d.Reason, "151")
}

func TestEvaluateNoData(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	engine, _, _ := newTestEngine(t, DefaultConfig(), now)

	d, err := engine.Evaluate(context.Background(), testRecipient, aqi.CategoryUnhealthy, Signal{})
	require.NoError(t, err)
	assert.False(t, d.Send)
	assert.Contains(t, d.Reason, "no data")
}

func TestEvaluateCooldownActive(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()
	cfg.Cooldown = 120 * time.Minute
	engine, store, _ := newTestEngine(t, cfg, now)

	require.NoError(t, store.RecordAlert(context.Background(), history.AlertRecord{
		Recipient: testRecipient,
		Severity:  aqi.CategoryUnhealthy,
		SentAt:    now.Add(-30 * time.Minute),
	}))

	d, err := engine.Evaluate(context.Background(), testRecipient, aqi.CategoryUnhealthy, Signal{Value: floatPtr(160)})
	require.NoError(t, err)
	assert.False(t, d.Send)
	assert.Contains(t, d.Reason, "cooldown active")
	assert.Contains(t, d.Reason, "1h30m", "remaining time should be about 90 minutes")
}

func TestEvaluateCooldownBoundary(t *testing.T) {
	sentAt := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()
	cfg.Cooldown = 120 * time.Minute

	t.Run("one second before expiry", func(t *testing.T) {
		now := sentAt.Add(cfg.Cooldown - time.Second)
		engine, _, state := newTestEngine(t, cfg, now)
		state.MarkSent(testRecipient, sentAt)

		d, err := engine.Evaluate(context.Background(), testRecipient, aqi.CategoryUnhealthy, Signal{Value: floatPtr(160)})
		require.NoError(t, err)
		assert.False(t, d.Send)
	})

	t.Run("one second after expiry", func(t *testing.T) {
		now := sentAt.Add(cfg.Cooldown + time.Second)
		engine, _, state := newTestEngine(t, cfg, now)
		state.MarkSent(testRecipient, sentAt)

		d, err := engine.Evaluate(context.Background(), testRecipient, aqi.CategoryUnhealthy, Signal{Value: floatPtr(160)})
		require.NoError(t, err)
		assert.True(t, d.Send)
	})
}

func TestEvaluateCorroboration(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()
	cfg.Policy = PolicyCorroborated
	cfg.MinCorroborating = 2

	engine, _, _ := newTestEngine(t, cfg, now)

	d, err := engine.Evaluate(context.Background(), testRecipient, aqi.CategoryUnhealthy, Signal{
		Value:         floatPtr(160),
		StationValues: []float64{170, 120, 95},
	})
	require.NoError(t, err)
	assert.False(t, d.Send, "only one station above threshold")
	assert.Contains(t, d.Reason, "corroborating")

	d, err = engine.Evaluate(context.Background(), testRecipient, aqi.CategoryUnhealthy, Signal{
		Value:         floatPtr(160),
		StationValues: []float64{170, 165, 95},
	})
	require.NoError(t, err)
	assert.True(t, d.Send)
}

func TestEvaluateCrossingFromPrevious(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()
	cfg.Policy = PolicyCrossingFromPrevious

	engine, _, _ := newTestEngine(t, cfg, now)
	ctx := context.Background()

	// First evaluation has no previous value and alerts normally.
	d, err := engine.Evaluate(ctx, testRecipient, aqi.CategoryUnhealthy, Signal{Value: floatPtr(160)})
	require.NoError(t, err)
	assert.True(t, d.Send)

	// Still above threshold with no new crossing: suppressed.
	d, err = engine.Evaluate(ctx, testRecipient, aqi.CategoryUnhealthy, Signal{Value: floatPtr(165)})
	require.NoError(t, err)
	assert.False(t, d.Send)
	assert.Contains(t, d.Reason, "no new crossing")

	// Dip below, then cross again: alert.
	d, err = engine.Evaluate(ctx, testRecipient, aqi.CategoryUnhealthy, Signal{Value: floatPtr(140)})
	require.NoError(t, err)
	assert.False(t, d.Send)

	d, err = engine.Evaluate(ctx, testRecipient, aqi.CategoryUnhealthy, Signal{Value: floatPtr(170)})
	require.NoError(t, err)
	assert.True(t, d.Send)
}

func TestEvaluateTrend(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()
	cfg.TrendDelta = 10
	engine, _, _ := newTestEngine(t, cfg, now)
	ctx := context.Background()

	d, err := engine.Evaluate(ctx, testRecipient, aqi.CategoryUnhealthy, Signal{Value: floatPtr(100)})
	require.NoError(t, err)
	assert.Equal(t, TrendUnknown, d.Trend)

	d, err = engine.Evaluate(ctx, testRecipient, aqi.CategoryUnhealthy, Signal{Value: floatPtr(160)})
	require.NoError(t, err)
	assert.Equal(t, TrendRising, d.Trend)

	d, err = engine.Evaluate(ctx, testRecipient, aqi.CategoryUnhealthy, Signal{Value: floatPtr(158)})
	require.NoError(t, err)
	assert.Equal(t, TrendStable, d.Trend)

	d, err = engine.Evaluate(ctx, testRecipient, aqi.CategoryUnhealthy, Signal{Value: floatPtr(90)})
	require.NoError(t, err)
	assert.Equal(t, TrendImproving, d.Trend)
}

func TestEvaluateThresholdOverride(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	cfg := DefaultConfig()
	cfg.Thresholds = map[aqi.Category]float64{aqi.CategoryUnhealthy: 175}
	engine, _, _ := newTestEngine(t, cfg, now)

	d, err := engine.Evaluate(context.Background(), testRecipient, aqi.CategoryUnhealthy, Signal{Value: floatPtr(160)})
	require.NoError(t, err)
	assert.False(t, d.Send)
	assert.Equal(t, 175.0, d.Threshold)
}
