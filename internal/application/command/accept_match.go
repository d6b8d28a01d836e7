package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/alem-hub/mentorship-engine/internal/domain/mentorship"
	"github.com/alem-hub/mentorship-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACCEPT MATCH COMMAND
// The assigned mentor accepts a pending match. Capacity is re-checked
// atomically by the store while the mentor is locked.
// ══════════════════════════════════════════════════════════════════════════════

// AcceptMatchCommand contains the data to accept a match.
type AcceptMatchCommand struct {
	// MatchID is the match to accept.
	MatchID string

	// ActorID is the user performing the action; must be the assigned mentor.
	ActorID string
}

// Validate validates the command.
func (c AcceptMatchCommand) Validate() error {
	if err := shared.ValidateID("match_id", c.MatchID); err != nil {
		return err
	}
	return shared.ValidateID("actor_id", c.ActorID)
}

// AcceptMatchHandler handles the AcceptMatchCommand.
type AcceptMatchHandler struct {
	deps Dependencies
}

// NewAcceptMatchHandler creates a new AcceptMatchHandler.
func NewAcceptMatchHandler(deps Dependencies) *AcceptMatchHandler {
	return &AcceptMatchHandler{deps: deps.withDefaults()}
}

// Handle executes the accept command and returns the updated match.
func (h *AcceptMatchHandler) Handle(ctx context.Context, cmd AcceptMatchCommand) (*mentorship.Match, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("accept_match: validation failed: %w", err)
	}

	match, err := h.deps.Matches.GetByID(ctx, cmd.MatchID)
	if err != nil {
		return nil, fmt.Errorf("accept_match: %w", err)
	}

	// Fail fast on authorization and state before touching the lock.
	if err := match.Authorize(cmd.ActorID); err != nil {
		return nil, fmt.Errorf("accept_match: %w", err)
	}
	if match.Status != mentorship.StatusPending {
		return nil, fmt.Errorf("accept_match: %w", shared.ErrInvalidMatchState)
	}

	program, err := h.deps.Programs.GetProgram(ctx, match.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("accept_match: %w", err)
	}
	capacity := program.Capacity(h.deps.Config.MaxMenteesPerMentor)

	unlock, err := h.deps.Locker.LockMentor(ctx, match.ProgramID, match.MentorID)
	if err != nil {
		return nil, fmt.Errorf("accept_match: lock mentor: %w", err)
	}
	defer unlock()

	now := h.deps.Clock.Now()
	if err := match.Accept(cmd.ActorID, now); err != nil {
		return nil, fmt.Errorf("accept_match: %w", err)
	}

	if err := h.deps.Matches.Accept(ctx, match, capacity); err != nil {
		if errors.Is(err, shared.ErrCapacityExceeded) {
			h.deps.Logger.Warn("mentor at capacity, acceptance refused",
				"match_id", match.ID,
				"mentor_id", match.MentorID,
				"capacity", capacity,
			)
		}
		return nil, fmt.Errorf("accept_match: %w", err)
	}

	h.deps.Logger.Info("match accepted",
		"match_id", match.ID,
		"program_id", match.ProgramID,
		"mentor_id", match.MentorID,
		"mentee_id", match.MenteeID,
	)
	h.deps.publish(mentorship.NewMatchEvent(shared.EventMatchAccepted, match, now))

	completeAcceptance(ctx, h.deps, match)
	return match, nil
}

// completeAcceptance runs best-effort side effects of an accepted match.
// Failures are logged and never roll back the acceptance.
func completeAcceptance(ctx context.Context, deps Dependencies, match *mentorship.Match) {
	spaceID, err := deps.Spaces.CreateCollaborationSpace(ctx, match.ID)
	switch {
	case err != nil:
		deps.Logger.Warn("failed to create collaboration space", "match_id", match.ID, "error", err)
	case spaceID != "":
		if err := deps.Matches.SetCollaborationSpace(ctx, match.ID, spaceID); err != nil {
			deps.Logger.Warn("failed to store collaboration space", "match_id", match.ID, "space_id", spaceID, "error", err)
		} else {
			match.CollaborationSpaceID = spaceID
		}
	}

	if err := deps.Notifier.NotifyMenteeOfAcceptance(ctx, match); err != nil {
		deps.Logger.Warn("failed to notify mentee of acceptance",
			"match_id", match.ID,
			"mentee_id", match.MenteeID,
			"error", err,
		)
	}
}
