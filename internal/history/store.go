// Package history persists station readings and sent-alert records, and
// answers the windowed queries the alert engine depends on.
package history

import (
	"context"
	"errors"
	"time"

	"github.com/airsentry/airsentry/internal/aqi"
	"github.com/airsentry/airsentry/internal/station"
)

// ErrStoreUnavailable wraps persistence failures. Callers log it and degrade
// rather than abort the decision pipeline.
var ErrStoreUnavailable = errors.New("history store unavailable")

// AlertRecord is one sent (or simulated) alert. Append-only; used for
// cooldown lookups and the audit listing, never mutated.
type AlertRecord struct {
	ID        string
	Recipient string
	Severity  aqi.Category
	SentAt    time.Time
	Message   string
}

// Store is the append-only history contract. Writes are atomic appends;
// reads reflect a consistent snapshot at call time. All timestamps are UTC.
type Store interface {
	// RecordReading appends one station reading.
	RecordReading(ctx context.Context, r station.Reading) error

	// RecordReadings appends a batch of readings in one transaction.
	RecordReadings(ctx context.Context, readings []station.Reading) error

	// RecordAlert appends one sent-alert record.
	RecordAlert(ctx context.Context, rec AlertRecord) error

	// RecentAverage returns the mean AQI of readings observed within the
	// window, or nil when the window is empty. Nil is "no data", not zero.
	RecentAverage(ctx context.Context, window time.Duration) (*float64, error)

	// WasAlertSentRecently reports whether any alert for the recipient was
	// sent within the cooldown window.
	WasAlertSentRecently(ctx context.Context, recipient string, cooldown time.Duration) (bool, error)

	// LastAlert returns the most recent alert for the recipient, or nil.
	LastAlert(ctx context.Context, recipient string) (*AlertRecord, error)

	// RecentAlerts returns up to limit alerts, newest first.
	RecentAlerts(ctx context.Context, limit int) ([]AlertRecord, error)

	// PruneBefore deletes readings and alerts older than cutoff, returning
	// the number of rows removed. Administrative; the core never deletes
	// individual records.
	PruneBefore(ctx context.Context, cutoff time.Time) (int64, error)
}
