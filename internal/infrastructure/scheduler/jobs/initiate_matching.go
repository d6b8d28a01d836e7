package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alem-hub/mentorship-engine/internal/application/command"
	"github.com/alem-hub/mentorship-engine/internal/domain/mentorship"
	"github.com/alem-hub/mentorship-engine/internal/domain/shared"
	"github.com/alem-hub/mentorship-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// INITIATE MATCHING JOB
// ══════════════════════════════════════════════════════════════════════════════

// Initiator runs batch matching for one program.
type Initiator interface {
	Handle(ctx context.Context, cmd command.InitiateMatchingCommand) (*command.InitiateMatchingResult, error)
}

// ProgramLister lists programs still open for matching.
type ProgramLister interface {
	ListPrograms(ctx context.Context, now time.Time) ([]mentorship.Program, error)
}

// InitiateMatchingConfig contains configuration for the job.
type InitiateMatchingConfig struct {
	// Programs restricts the job to these IDs; empty means every open program.
	Programs []string

	// Enabled decides per program whether the job may run it. Nil allows all.
	Enabled func(programID string) bool
}

// InitiateMatchingJob runs batch matching for every open program whose
// matching window is active. Programs outside the window are skipped quietly.
type InitiateMatchingJob struct {
	initiator Initiator
	programs  ProgramLister
	clock     timeutil.Clock
	logger    *slog.Logger
	config    InitiateMatchingConfig

	mu        sync.Mutex
	lastStats InitiateStats
}

// InitiateStats summarizes one run across programs.
type InitiateStats struct {
	StartedAt       time.Time
	Duration        time.Duration
	Programs        int
	OutsideWindow   int
	Disabled        int
	Failed          int
	Pending         int
	NeedingManual   int
	MenteeErrors    int
	ProgramFailures map[string]error
}

// NewInitiateMatchingJob creates a new initiate matching job.
func NewInitiateMatchingJob(
	initiator Initiator,
	programs ProgramLister,
	clock timeutil.Clock,
	logger *slog.Logger,
	config InitiateMatchingConfig,
) *InitiateMatchingJob {
	if logger == nil {
		logger = slog.Default()
	}
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	return &InitiateMatchingJob{
		initiator: initiator,
		programs:  programs,
		clock:     clock,
		logger:    logger.With("job", "initiate_matching"),
		config:    config,
	}
}

// Name returns the job name.
func (j *InitiateMatchingJob) Name() string {
	return "initiate_matching"
}

// Description returns a human-readable description.
func (j *InitiateMatchingJob) Description() string {
	return "Creates pending matches for unmatched mentees of open programs"
}

// Run executes the job. It fails only when every attempted program failed.
func (j *InitiateMatchingJob) Run(ctx context.Context) error {
	now := j.clock.Now()
	stats := InitiateStats{StartedAt: now, ProgramFailures: make(map[string]error)}
	correlationID := uuid.NewString()

	ids, err := j.targets(ctx, now)
	if err != nil {
		return fmt.Errorf("initiate matching: list programs: %w", err)
	}

	for _, id := range ids {
		if err := ctx.Err(); err != nil {
			return err
		}
		stats.Programs++

		if j.config.Enabled != nil && !j.config.Enabled(id) {
			stats.Disabled++
			continue
		}

		result, err := j.initiator.Handle(ctx, command.InitiateMatchingCommand{
			ProgramID:     id,
			CorrelationID: correlationID,
		})
		switch {
		case errors.Is(err, shared.ErrMatchingWindowClosed):
			stats.OutsideWindow++
			j.logger.Debug("program outside matching window", "program_id", id)
		case err != nil:
			stats.Failed++
			stats.ProgramFailures[id] = err
			j.logger.Error("batch matching failed", "program_id", id, "error", err)
		default:
			stats.Pending += result.Pending
			stats.NeedingManual += result.NeedingManual
			stats.MenteeErrors += result.Errors
		}
	}

	stats.Duration = j.clock.Now().Sub(now)
	j.mu.Lock()
	j.lastStats = stats
	j.mu.Unlock()

	j.logger.Info("initiate matching finished",
		"programs", stats.Programs,
		"outside_window", stats.OutsideWindow,
		"disabled", stats.Disabled,
		"failed", stats.Failed,
		"pending", stats.Pending,
		"needing_manual", stats.NeedingManual,
		"correlation_id", correlationID,
	)

	attempted := stats.Programs - stats.Disabled - stats.OutsideWindow
	if attempted > 0 && stats.Failed == attempted {
		return fmt.Errorf("initiate matching: all %d programs failed", attempted)
	}
	return nil
}

func (j *InitiateMatchingJob) targets(ctx context.Context, now time.Time) ([]string, error) {
	if len(j.config.Programs) > 0 {
		return j.config.Programs, nil
	}
	programs, err := j.programs.ListPrograms(ctx, now)
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(programs))
	for _, p := range programs {
		ids = append(ids, p.ID)
	}
	return ids, nil
}

// LastStats returns statistics of the most recent run.
func (j *InitiateMatchingJob) LastStats() InitiateStats {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastStats
}
