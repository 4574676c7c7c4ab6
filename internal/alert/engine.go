package alert

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/airsentry/airsentry/internal/aqi"
	"github.com/airsentry/airsentry/internal/history"
)

// Trend describes how the signal moved since the previous evaluation.
type Trend string

const (
	TrendRising    Trend = "rising"
	TrendImproving Trend = "improving"
	TrendStable    Trend = "stable"
	TrendUnknown   Trend = "unknown"
)

// Signal is the evaluated input: either a sustained average from the
// history store or a spatial aggregate. A nil Value means no data.
type Signal struct {
	Value *float64
	// StationValues are the per-station AQI values behind the signal, used
	// by the corroboration policy. May be empty for averaged signals.
	StationValues []float64
	Source        string
}

// Decision is the outcome of one evaluation. Reason is always set and is
// meant for logs and audit, not machine parsing.
type Decision struct {
	Send      bool
	Reason    string
	Trend     Trend
	Value     float64
	Threshold float64
}

// Engine applies the decision rules for one target severity against a
// recipient's history. It never sends anything itself.
type Engine struct {
	cfg    Config
	store  history.Store
	state  *RecipientState
	logger zerolog.Logger
	now    func() time.Time
}

// NewEngine creates an Engine. The state table is shared with the
// dispatcher, which marks sends into it.
func NewEngine(cfg Config, store history.Store, state *RecipientState, logger zerolog.Logger) *Engine {
	if cfg.Policy == "" {
		cfg.Policy = PolicySimpleThreshold
	}
	if cfg.MinCorroborating < 1 {
		cfg.MinCorroborating = 1
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = 2 * time.Hour
	}
	if cfg.TrendDelta <= 0 {
		cfg.TrendDelta = 10
	}
	return &Engine{
		cfg:    cfg,
		store:  store,
		state:  state,
		logger: logger.With().Str("component", "alert_engine").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// SetClock overrides the engine's clock. Test use only.
func (e *Engine) SetClock(now func() time.Time) {
	e.now = now
}

// Evaluate decides whether an alert should fire for one recipient and
// target severity. Missing data never counts as a zero reading.
func (e *Engine) Evaluate(ctx context.Context, recipient string, target aqi.Category, sig Signal) (Decision, error) {
	if err := ctx.Err(); err != nil {
		return Decision{}, err
	}

	threshold := e.cfg.ThresholdFor(target)

	if sig.Value == nil {
		return Decision{Reason: "no data in window", Trend: TrendUnknown, Threshold: threshold}, nil
	}

	value := *sig.Value
	prev, hasPrev := e.state.LastValue(recipient)
	e.state.Observe(recipient, value)

	trend := TrendUnknown
	if hasPrev {
		switch {
		case value > prev+e.cfg.TrendDelta:
			trend = TrendRising
		case value < prev-e.cfg.TrendDelta:
			trend = TrendImproving
		default:
			trend = TrendStable
		}
	}

	d := Decision{Trend: trend, Value: value, Threshold: threshold}

	if value < threshold {
		d.Reason = fmt.Sprintf("AQI %.0f below %s threshold %.0f", value, target, threshold)
		return d, nil
	}

	if e.cfg.Policy == PolicyCorroborated {
		above := 0
		for _, v := range sig.StationValues {
			if v > threshold {
				above++
			}
		}
		if above < e.cfg.MinCorroborating {
			d.Reason = fmt.Sprintf("only %d stations above %.0f, need %d corroborating", above, threshold, e.cfg.MinCorroborating)
			return d, nil
		}
	}

	if remaining, cooling := e.cooldownRemaining(ctx, recipient); cooling {
		d.Reason = fmt.Sprintf("cooldown active, %s remaining", remaining.Round(time.Minute))
		return d, nil
	}

	if e.cfg.Policy == PolicyCrossingFromPrevious && hasPrev && prev >= threshold {
		d.Reason = fmt.Sprintf("already above threshold since previous check (%.0f), no new crossing", prev)
		return d, nil
	}

	d.Send = true
	d.Reason = fmt.Sprintf("AQI %.0f >= %.0f (%s)", value, threshold, target)
	return d, nil
}

// cooldownRemaining reports whether the recipient is still cooling down and
// how long is left. The in-process state is consulted first; the durable
// store is the authority when the process has no entry. A store failure is
// logged and the decision proceeds on in-memory data alone.
func (e *Engine) cooldownRemaining(ctx context.Context, recipient string) (time.Duration, bool) {
	now := e.now()

	if sentAt, ok := e.state.LastSentAt(recipient); ok {
		if elapsed := now.Sub(sentAt); elapsed < e.cfg.Cooldown {
			return e.cfg.Cooldown - elapsed, true
		}
		return 0, false
	}

	sent, err := e.store.WasAlertSentRecently(ctx, recipient, e.cfg.Cooldown)
	if err != nil {
		e.logger.Error().Err(err).Str("recipient", recipient).
			Msg("cooldown lookup failed, proceeding without history")
		return 0, false
	}
	if !sent {
		return 0, false
	}

	remaining := e.cfg.Cooldown
	if last, err := e.store.LastAlert(ctx, recipient); err == nil && last != nil {
		remaining = e.cfg.Cooldown - now.Sub(last.SentAt)
		// Warm the cache so repeat checks skip the store.
		e.state.MarkSent(recipient, last.SentAt)
	}
	return remaining, true
}
