package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
)

// CachePruner removes cache entries older than a given age
type CachePruner interface {
	Prune(ctx context.Context, maxAge time.Duration) (int64, error)
}

// ExportRotator deletes old exported reports
type ExportRotator interface {
	Enabled() bool
	Rotate(ctx context.Context, retentionDays, keep int) (int, error)
}

// PruneCacheJob drops persisted analytics older than maxAge and rotates
// exported reports
type PruneCacheJob struct {
	cache         CachePruner
	exports       ExportRotator
	maxAge        time.Duration
	retentionDays int
	keep          int
	log           zerolog.Logger
}

// NewPruneCacheJob creates a new PruneCacheJob. exports may be nil.
func NewPruneCacheJob(cache CachePruner, exports ExportRotator, maxAge time.Duration, retentionDays, keep int, log zerolog.Logger) *PruneCacheJob {
	return &PruneCacheJob{
		cache:         cache,
		exports:       exports,
		maxAge:        maxAge,
		retentionDays: retentionDays,
		keep:          keep,
		log:           log.With().Str("job", "prune_cache").Logger(),
	}
}

// Name returns the job name
func (j *PruneCacheJob) Name() string {
	return "prune_cache"
}

// Run executes the prune
func (j *PruneCacheJob) Run() error {
	ctx := context.Background()

	removed, err := j.cache.Prune(ctx, j.maxAge)
	if err != nil {
		return fmt.Errorf("failed to prune cache: %w", err)
	}
	j.log.Info().Int64("removed", removed).Dur("max_age", j.maxAge).Msg("Cache pruned")

	if j.exports == nil || !j.exports.Enabled() {
		return nil
	}
	deleted, err := j.exports.Rotate(ctx, j.retentionDays, j.keep)
	if err != nil {
		return fmt.Errorf("failed to rotate exports: %w", err)
	}
	j.log.Info().Int("deleted", deleted).Msg("Exported reports rotated")
	return nil
}
