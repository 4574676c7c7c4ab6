package notify

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/airsentry/airsentry/internal/alert"
	"github.com/airsentry/airsentry/internal/aqi"
	"github.com/airsentry/airsentry/internal/history"
)

type fakeProvider struct {
	name    string
	results []error
	calls   int
}

func (p *fakeProvider) Name() string { return p.name }

func (p *fakeProvider) Send(_ context.Context, _, _ string) (string, error) {
	idx := p.calls
	p.calls++
	if idx >= len(p.results) {
		idx = len(p.results) - 1
	}
	if err := p.results[idx]; err != nil {
		return "", err
	}
	return "ok", nil
}

func noSleep(_ context.Context, _ time.Duration) error { return nil }

func newTestDispatcher(t *testing.T, cfg DispatcherConfig, providers ...Provider) (*Dispatcher, *history.MemoryStore, *alert.RecipientState) {
	t.Helper()
	store := history.NewMemoryStore()
	state := alert.NewRecipientState()
	d := NewDispatcher(cfg, providers, store, state, zerolog.Nop())
	d.SetSleep(noSleep)
	return d, store, state
}

func TestSendRejectsInvalidRecipient(t *testing.T) {
	d, store, _ := newTestDispatcher(t, DefaultDispatcherConfig(), &fakeProvider{name: "sms", results: []error{nil}})

	for _, bad := range []string{"", "12345", "+0123456789", "555-0100", "+1 415 555 0100"} {
		_, err := d.Send(context.Background(), bad, aqi.CategoryUnhealthy, "AQI 160")
		assert.ErrorIs(t, err, ErrInvalidRecipient, "recipient %q", bad)
	}

	records, err := store.RecentAlerts(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, records, "validation failures must not record alerts")
}

func TestSendDryRunRecordsSimulated(t *testing.T) {
	cfg := DefaultDispatcherConfig()
	cfg.DryRun = true
	provider := &fakeProvider{name: "sms", results: []error{nil}}
	d, store, state := newTestDispatcher(t, cfg, provider)

	res, err := d.Send(context.Background(), "+14155550100", aqi.CategoryUnhealthy, "AQI 160")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, ProviderSimulated, res.Provider)
	assert.Zero(t, provider.calls, "dry run must not reach providers")

	records, err := store.RecentAlerts(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Contains(t, records[0].Message, "SIMULATED")

	_, sent := state.LastSentAt("+14155550100")
	assert.True(t, sent, "cooldown must start even on simulated sends")
}

func TestSendEmptyChainBehavesLikeDryRun(t *testing.T) {
	d, store, _ := newTestDispatcher(t, DefaultDispatcherConfig())

	res, err := d.Send(context.Background(), "+14155550100", aqi.CategoryUnhealthy, "AQI 160")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, ProviderSimulated, res.Provider)

	records, err := store.RecentAlerts(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
}

func TestSendRetriesThenSucceeds(t *testing.T) {
	transient := errors.New("status 503")
	provider := &fakeProvider{name: "sms", results: []error{transient, transient, nil}}
	d, store, state := newTestDispatcher(t, DefaultDispatcherConfig(), provider)

	res, err := d.Send(context.Background(), "+14155550100", aqi.CategoryUnhealthy, "AQI 160")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "sms", res.Provider)
	assert.Equal(t, 3, provider.calls)

	records, err := store.RecentAlerts(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.NotContains(t, records[0].Message, "SIMULATED")

	_, sent := state.LastSentAt("+14155550100")
	assert.True(t, sent)
}

func TestSendFallsBackToNextProvider(t *testing.T) {
	transient := errors.New("status 500")
	first := &fakeProvider{name: "primary", results: []error{transient}}
	second := &fakeProvider{name: "backup", results: []error{nil}}
	d, _, _ := newTestDispatcher(t, DefaultDispatcherConfig(), first, second)

	res, err := d.Send(context.Background(), "+14155550100", aqi.CategoryUnhealthy, "AQI 160")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "backup", res.Provider)
	assert.Equal(t, 3, first.calls, "primary exhausts its retry budget first")
}

func TestSendSkipsUnconfiguredProviderWithoutRetry(t *testing.T) {
	unconfigured := &fakeProvider{name: "primary", results: []error{ErrNotConfigured}}
	second := &fakeProvider{name: "backup", results: []error{nil}}
	d, _, _ := newTestDispatcher(t, DefaultDispatcherConfig(), unconfigured, second)

	res, err := d.Send(context.Background(), "+14155550100", aqi.CategoryUnhealthy, "AQI 160")
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, 1, unconfigured.calls, "configuration errors are not retried")
}

func TestSendAllProvidersFail(t *testing.T) {
	first := &fakeProvider{name: "primary", results: []error{errors.New("timeout")}}
	second := &fakeProvider{name: "backup", results: []error{errors.New("status 502")}}
	d, store, state := newTestDispatcher(t, DefaultDispatcherConfig(), first, second)

	res, err := d.Send(context.Background(), "+14155550100", aqi.CategoryUnhealthy, "AQI 160")
	require.ErrorIs(t, err, ErrAllProvidersFailed)
	assert.False(t, res.Success)
	assert.Contains(t, res.Detail, "primary")
	assert.Contains(t, res.Detail, "backup")

	records, recErr := store.RecentAlerts(context.Background(), 10)
	require.NoError(t, recErr)
	assert.Empty(t, records, "failed sends must not register cooldown")

	_, sent := state.LastSentAt("+14155550100")
	assert.False(t, sent)
}

func TestSendBackoffDelays(t *testing.T) {
	cfg := DefaultDispatcherConfig()
	cfg.BaseDelay = 2 * time.Second
	provider := &fakeProvider{name: "sms", results: []error{errors.New("x"), errors.New("x"), nil}}

	d, _, _ := newTestDispatcher(t, cfg, provider)
	var delays []time.Duration
	d.SetSleep(func(_ context.Context, dur time.Duration) error {
		delays = append(delays, dur)
		return nil
	})

	_, err := d.Send(context.Background(), "+14155550100", aqi.CategoryUnhealthy, "AQI 160")
	require.NoError(t, err)
	assert.Equal(t, []time.Duration{2 * time.Second, 4 * time.Second}, delays)
}
