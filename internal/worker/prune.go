package worker

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/airsentry/airsentry/internal/history"
)

// PruneJob removes readings and alert records past the retention horizon.
type PruneJob struct {
	store     history.Store
	retention time.Duration
	logger    zerolog.Logger
}

// NewPruneJob creates a PruneJob. Retention must be positive; zero keeps
// the default of 30 days.
func NewPruneJob(store history.Store, retention time.Duration, logger zerolog.Logger) *PruneJob {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &PruneJob{
		store:     store,
		retention: retention,
		logger:    logger.With().Str("component", "prune_job").Logger(),
	}
}

// Run deletes rows older than the retention horizon.
func (j *PruneJob) Run(ctx context.Context) (int64, error) {
	cutoff := time.Now().UTC().Add(-j.retention)

	pruned, err := j.store.PruneBefore(ctx, cutoff)
	if err != nil {
		j.logger.Error().Err(err).Time("cutoff", cutoff).Msg("prune failed")
		return 0, err
	}

	j.logger.Info().Int64("pruned", pruned).Time("cutoff", cutoff).Msg("history pruned")
	return pruned, nil
}
