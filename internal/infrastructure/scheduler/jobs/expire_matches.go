// Package jobs contains the scheduled jobs of the matching engine.
package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/alem-hub/mentorship-engine/internal/application/command"
)

// ══════════════════════════════════════════════════════════════════════════════
// EXPIRE MATCHES JOB
// ══════════════════════════════════════════════════════════════════════════════

// Sweeper runs one expiry sweep.
type Sweeper interface {
	Handle(ctx context.Context) (*command.ExpireMatchesResult, error)
}

// ExpireMatchesJob auto-rejects pending matches whose response window has
// elapsed and hands them to the reassignment cascade.
type ExpireMatchesJob struct {
	sweeper Sweeper
	logger  *slog.Logger

	lastResult atomic.Pointer[command.ExpireMatchesResult]
	runs       atomic.Int64
}

// NewExpireMatchesJob creates a new expire matches job.
func NewExpireMatchesJob(sweeper Sweeper, logger *slog.Logger) *ExpireMatchesJob {
	if logger == nil {
		logger = slog.Default()
	}
	return &ExpireMatchesJob{
		sweeper: sweeper,
		logger:  logger.With("job", "expire_matches"),
	}
}

// Name returns the job name.
func (j *ExpireMatchesJob) Name() string {
	return "expire_matches"
}

// Description returns a human-readable description.
func (j *ExpireMatchesJob) Description() string {
	return "Auto-rejects overdue pending matches and cascades to the next candidate"
}

// Run executes one sweep. Per-match failures are counted, not returned.
func (j *ExpireMatchesJob) Run(ctx context.Context) error {
	j.runs.Add(1)

	result, err := j.sweeper.Handle(ctx)
	if result != nil {
		j.lastResult.Store(result)
	}
	if err != nil {
		return fmt.Errorf("expire matches: %w", err)
	}

	if result.LockContended {
		j.logger.Debug("sweep skipped, another worker holds the lock")
		return nil
	}
	if result.Errors > 0 {
		j.logger.Warn("sweep finished with errors",
			"scanned", result.Scanned,
			"expired", result.Expired,
			"errors", result.Errors,
		)
	}
	return nil
}

// LastResult returns the result of the most recent sweep, nil before the first run.
func (j *ExpireMatchesJob) LastResult() *command.ExpireMatchesResult {
	return j.lastResult.Load()
}

// Runs returns how many times the job ran.
func (j *ExpireMatchesJob) Runs() int64 {
	return j.runs.Load()
}
