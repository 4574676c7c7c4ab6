package notify

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/airsentry/airsentry/internal/alert"
	"github.com/airsentry/airsentry/internal/aqi"
	"github.com/airsentry/airsentry/internal/history"
)

var (
	// ErrInvalidRecipient marks a recipient that fails E.164 validation.
	// Never retried and never counted against a provider.
	ErrInvalidRecipient = errors.New("notify: invalid recipient phone number")

	// ErrNotConfigured is returned by a provider whose credentials are
	// absent. The dispatcher skips it without retrying.
	ErrNotConfigured = errors.New("notify: provider not configured")

	// ErrAllProvidersFailed is returned once every provider has exhausted
	// its retries.
	ErrAllProvidersFailed = errors.New("notify: all providers failed")
)

var phonePattern = regexp.MustCompile(`^\+[1-9]\d{6,14}$`)

// ProviderSimulated is the provider name recorded for dry-run sends.
const ProviderSimulated = "simulated"

// Result reports the outcome of one dispatch.
type Result struct {
	Success  bool
	Provider string
	Detail   string
}

// DispatcherConfig tunes retry behaviour.
type DispatcherConfig struct {
	// MaxRetries is the attempt budget per provider.
	MaxRetries int
	// BaseDelay seeds the per-provider backoff: delay = BaseDelay * 2^(attempt-1).
	BaseDelay time.Duration
	// DryRun disables transmission; sends are logged as simulated.
	DryRun bool
}

// DefaultDispatcherConfig returns the standard retry parameters.
func DefaultDispatcherConfig() DispatcherConfig {
	return DispatcherConfig{MaxRetries: 3, BaseDelay: time.Second}
}

// Dispatcher walks a fixed provider chain and registers successful sends so
// the alert engine's cooldown starts at send time.
type Dispatcher struct {
	cfg       DispatcherConfig
	providers []Provider
	store     history.Store
	state     *alert.RecipientState
	logger    zerolog.Logger
	now       func() time.Time
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewDispatcher creates a Dispatcher. Providers are attempted in the order
// given. An empty chain behaves like DryRun.
func NewDispatcher(cfg DispatcherConfig, providers []Provider, store history.Store, state *alert.RecipientState, logger zerolog.Logger) *Dispatcher {
	if cfg.MaxRetries < 1 {
		cfg.MaxRetries = 3
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	return &Dispatcher{
		cfg:       cfg,
		providers: providers,
		store:     store,
		state:     state,
		logger:    logger.With().Str("component", "dispatcher").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
		sleep:     sleepCtx,
	}
}

// SetClock overrides the dispatcher's clock. Test use only.
func (d *Dispatcher) SetClock(now func() time.Time) { d.now = now }

// SetSleep overrides the backoff sleeper. Test use only.
func (d *Dispatcher) SetSleep(sleep func(ctx context.Context, dur time.Duration) error) {
	d.sleep = sleep
}

// Send validates the recipient, walks the provider chain with per-provider
// backoff, and on any success records the alert and marks the recipient
// state.
func (d *Dispatcher) Send(ctx context.Context, recipient string, severity aqi.Category, body string) (Result, error) {
	if !phonePattern.MatchString(recipient) {
		return Result{}, fmt.Errorf("%w: %q", ErrInvalidRecipient, recipient)
	}

	if d.cfg.DryRun || len(d.providers) == 0 {
		d.recordSend(ctx, recipient, severity, "SIMULATED: "+body)
		d.logger.Info().Str("recipient", recipient).Msg("dry run, send simulated")
		return Result{Success: true, Provider: ProviderSimulated, Detail: "not transmitted"}, nil
	}

	var diagnostics []string
	for _, p := range d.providers {
		detail, err := d.attempt(ctx, p, recipient, body, &diagnostics)
		if err == nil {
			d.recordSend(ctx, recipient, severity, body)
			return Result{Success: true, Provider: p.Name(), Detail: detail}, nil
		}
		if ctx.Err() != nil {
			return Result{Detail: strings.Join(diagnostics, "; ")}, ctx.Err()
		}
	}

	detail := strings.Join(diagnostics, "; ")
	return Result{Detail: detail}, fmt.Errorf("%w: %s", ErrAllProvidersFailed, detail)
}

// attempt runs one provider through its retry budget.
func (d *Dispatcher) attempt(ctx context.Context, p Provider, recipient, body string, diagnostics *[]string) (string, error) {
	var lastErr error
	for try := 1; try <= d.cfg.MaxRetries; try++ {
		detail, err := p.Send(ctx, recipient, body)
		if err == nil {
			return detail, nil
		}
		lastErr = err

		if errors.Is(err, ErrNotConfigured) {
			*diagnostics = append(*diagnostics, fmt.Sprintf("%s: not configured", p.Name()))
			return "", err
		}

		d.logger.Warn().Err(err).Str("provider", p.Name()).Int("attempt", try).
			Msg("send attempt failed")

		if try < d.cfg.MaxRetries {
			delay := d.cfg.BaseDelay * (1 << (try - 1))
			if err := d.sleep(ctx, delay); err != nil {
				*diagnostics = append(*diagnostics, fmt.Sprintf("%s: %v", p.Name(), lastErr))
				return "", err
			}
		}
	}
	*diagnostics = append(*diagnostics, fmt.Sprintf("%s: %v", p.Name(), lastErr))
	return "", lastErr
}

// recordSend appends the alert record and starts the cooldown. A store
// failure weakens the cooldown guarantee but does not fail the send; the
// in-process state still covers it.
func (d *Dispatcher) recordSend(ctx context.Context, recipient string, severity aqi.Category, body string) {
	sentAt := d.now()
	rec := history.AlertRecord{
		ID:        uuid.New().String(),
		Recipient: recipient,
		Severity:  severity,
		SentAt:    sentAt,
		Message:   body,
	}
	if err := d.store.RecordAlert(ctx, rec); err != nil {
		d.logger.Error().Err(err).Str("recipient", recipient).
			Msg("alert sent but not persisted, cooldown held in memory only")
	}
	d.state.MarkSent(recipient, sentAt)
}

func sleepCtx(ctx context.Context, dur time.Duration) error {
	timer := time.NewTimer(dur)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
