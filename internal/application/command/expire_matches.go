package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alem-hub/mentorship-engine/internal/domain/mentorship"
	"github.com/alem-hub/mentorship-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// EXPIRE MATCHES COMMAND
// Periodic sweep: pending matches past their response deadline become
// AUTO_REJECTED and are handed to the cascade. The transition is conditional,
// so overlapping or repeated sweeps never process a match twice.
// ══════════════════════════════════════════════════════════════════════════════

// SweepLock prevents overlapping sweeps across worker instances.
type SweepLock interface {
	// TryLock returns acquired=false when another instance holds the lock.
	TryLock(ctx context.Context, name string, ttl time.Duration) (release func(), acquired bool, err error)
}

// sweepLockName is the lock key used for the expiry sweep.
const sweepLockName = "expire-matches"

// ExpireMatchesResult contains sweep counts.
type ExpireMatchesResult struct {
	// Scanned is the number of overdue pending matches found.
	Scanned int `json:"scanned"`

	// Expired is the number of matches transitioned to AUTO_REJECTED by this run.
	Expired int `json:"expired"`

	// AlreadyProcessed is the number of matches another writer transitioned first.
	AlreadyProcessed int `json:"already_processed"`

	// Cascaded is the number of expired matches handed to the cascade.
	Cascaded int `json:"cascaded"`

	// Errors is the number of matches that failed and were skipped.
	Errors int `json:"errors"`

	// LockContended is true when another instance was already sweeping.
	LockContended bool `json:"lock_contended"`

	// Duration is how long the sweep took.
	Duration time.Duration `json:"duration"`
}

// Counts returns the result as a flat map for events and logs.
func (r ExpireMatchesResult) Counts() map[string]int {
	return map[string]int{
		"scanned":           r.Scanned,
		"expired":           r.Expired,
		"already_processed": r.AlreadyProcessed,
		"cascaded":          r.Cascaded,
		"errors":            r.Errors,
	}
}

// ExpireMatchesHandler runs the expiry sweep.
type ExpireMatchesHandler struct {
	deps       Dependencies
	reassigner Reassigner
	lock       SweepLock
	lockTTL    time.Duration
}

// NewExpireMatchesHandler creates a new ExpireMatchesHandler. lock may be nil.
func NewExpireMatchesHandler(deps Dependencies, reassigner Reassigner, lock SweepLock) *ExpireMatchesHandler {
	return &ExpireMatchesHandler{
		deps:       deps.withDefaults(),
		reassigner: reassigner,
		lock:       lock,
		lockTTL:    5 * time.Minute,
	}
}

// Handle runs one sweep.
func (h *ExpireMatchesHandler) Handle(ctx context.Context) (*ExpireMatchesResult, error) {
	start := h.deps.Clock.Now()
	result := &ExpireMatchesResult{}

	if h.lock != nil {
		release, acquired, err := h.lock.TryLock(ctx, sweepLockName, h.lockTTL)
		if err != nil {
			return nil, fmt.Errorf("expire_matches: acquire lock: %w", err)
		}
		if !acquired {
			result.LockContended = true
			h.deps.Logger.Debug("expiry sweep already running elsewhere")
			return result, nil
		}
		defer release()
	}

	// Keyset paging: failed matches stay pending but are never listed twice in one run.
	now := h.deps.Clock.Now()
	var cursor mentorship.ExpiryCursor
	for {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		batch, err := h.deps.Matches.ListExpiredPending(ctx, now, cursor, h.deps.Config.SweepBatchSize)
		if err != nil {
			return result, fmt.Errorf("expire_matches: list overdue: %w", err)
		}

		for _, match := range batch {
			result.Scanned++
			if err := h.expire(ctx, match, now, result); err != nil {
				result.Errors++
				h.deps.Logger.Error("failed to expire match", "match_id", match.ID, "error", err)
			}
		}

		if len(batch) < h.deps.Config.SweepBatchSize {
			break
		}
		cursor = mentorship.CursorAfter(batch[len(batch)-1])
	}

	result.Duration = h.deps.Clock.Now().Sub(start)
	if result.Scanned > 0 {
		h.deps.Logger.Info("expiry sweep completed",
			"scanned", result.Scanned,
			"expired", result.Expired,
			"already_processed", result.AlreadyProcessed,
			"cascaded", result.Cascaded,
			"errors", result.Errors,
		)
		h.deps.publish(shared.NewBatchCompletedEvent(
			shared.EventSweepCompleted, sweepLockName, result.Counts(), result.Duration, h.deps.Clock.Now(),
		))
	}
	return result, nil
}

// expire transitions one match and hands it to the cascade.
func (h *ExpireMatchesHandler) expire(ctx context.Context, match *mentorship.Match, now time.Time, result *ExpireMatchesResult) error {
	if err := match.AutoReject(now); err != nil {
		if errors.Is(err, shared.ErrInvalidMatchState) {
			result.AlreadyProcessed++
			return nil
		}
		return err
	}

	if err := h.deps.Matches.Transition(ctx, match, mentorship.StatusPending); err != nil {
		if errors.Is(err, shared.ErrInvalidMatchState) {
			result.AlreadyProcessed++
			return nil
		}
		return err
	}

	result.Expired++
	h.deps.Logger.Info("match auto-rejected",
		"match_id", match.ID,
		"mentor_id", match.MentorID,
		"mentee_id", match.MenteeID,
		"match_type", match.Type,
	)
	h.deps.publish(mentorship.NewMatchEvent(shared.EventMatchAutoRejected, match, now))

	if h.reassigner != nil && match.ShouldCascade(h.deps.Config.CascadeAlgorithmMatches) {
		result.Cascaded++
		if err := h.reassigner.Reassign(ctx, match); err != nil {
			h.deps.Logger.Error("reassignment failed",
				"match_id", match.ID,
				"mentee_id", match.MenteeID,
				"error", err,
			)
		}
	}
	return nil
}
