package command

import (
	"context"
	"fmt"

	"github.com/alem-hub/mentorship-engine/internal/domain/mentorship"
	"github.com/alem-hub/mentorship-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REJECT MATCH COMMAND
// The assigned mentor declines a pending match. Preference-originated matches
// are handed to the reassignment cascade.
// ══════════════════════════════════════════════════════════════════════════════

// Reassigner looks for a replacement mentor after a failed match.
// Implemented by the reassignment saga.
type Reassigner interface {
	Reassign(ctx context.Context, failed *mentorship.Match) error
}

// RejectMatchCommand contains the data to reject a match.
type RejectMatchCommand struct {
	// MatchID is the match to reject.
	MatchID string

	// ActorID is the user performing the action; must be the assigned mentor.
	ActorID string

	// Reason is the mentor's explanation.
	Reason string
}

// Validate validates the command.
func (c RejectMatchCommand) Validate() error {
	if err := shared.ValidateID("match_id", c.MatchID); err != nil {
		return err
	}
	return shared.ValidateID("actor_id", c.ActorID)
}

// RejectMatchHandler handles the RejectMatchCommand.
type RejectMatchHandler struct {
	deps       Dependencies
	reassigner Reassigner
}

// NewRejectMatchHandler creates a new RejectMatchHandler.
func NewRejectMatchHandler(deps Dependencies, reassigner Reassigner) *RejectMatchHandler {
	return &RejectMatchHandler{deps: deps.withDefaults(), reassigner: reassigner}
}

// Handle executes the reject command and returns the updated match.
func (h *RejectMatchHandler) Handle(ctx context.Context, cmd RejectMatchCommand) (*mentorship.Match, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("reject_match: validation failed: %w", err)
	}

	match, err := h.deps.Matches.GetByID(ctx, cmd.MatchID)
	if err != nil {
		return nil, fmt.Errorf("reject_match: %w", err)
	}

	now := h.deps.Clock.Now()
	if err := match.Reject(cmd.ActorID, cmd.Reason, now); err != nil {
		return nil, fmt.Errorf("reject_match: %w", err)
	}

	if err := h.deps.Matches.Transition(ctx, match, mentorship.StatusPending); err != nil {
		return nil, fmt.Errorf("reject_match: %w", err)
	}

	h.deps.Logger.Info("match rejected",
		"match_id", match.ID,
		"program_id", match.ProgramID,
		"mentor_id", match.MentorID,
		"mentee_id", match.MenteeID,
		"match_type", match.Type,
	)
	h.deps.publish(mentorship.NewMatchEvent(shared.EventMatchRejected, match, now))

	h.cascade(ctx, match)
	return match, nil
}

// cascade hands the failed match to the reassigner when policy allows.
// The rejection is already committed; cascade failures are logged only.
// The caller going away must not cancel the cascade, so it runs detached.
func (h *RejectMatchHandler) cascade(ctx context.Context, match *mentorship.Match) {
	if h.reassigner == nil || !match.ShouldCascade(h.deps.Config.CascadeAlgorithmMatches) {
		return
	}
	if err := h.reassigner.Reassign(context.WithoutCancel(ctx), match); err != nil {
		h.deps.Logger.Error("reassignment failed",
			"match_id", match.ID,
			"mentee_id", match.MenteeID,
			"error", err,
		)
	}
}
