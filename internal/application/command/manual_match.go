package command

import (
	"context"
	"fmt"

	"github.com/alem-hub/mentorship-engine/internal/domain/mentorship"
	"github.com/alem-hub/mentorship-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MANUAL MATCH COMMAND
// A coordinator pairs a mentee with a mentor directly. The match is created
// accepted, bypassing mentor acceptance, but capacity still applies.
// ══════════════════════════════════════════════════════════════════════════════

// ManualMatchCommand contains the data to create a manual match.
type ManualMatchCommand struct {
	// ProgramID is the program.
	ProgramID string

	// MenteeID is the mentee to pair.
	MenteeID string

	// MentorID is the mentor to pair.
	MentorID string

	// CoordinatorID is the staff member creating the match.
	CoordinatorID string
}

// Validate validates the command.
func (c ManualMatchCommand) Validate() error {
	for _, id := range [][2]string{
		{"program_id", c.ProgramID},
		{"mentee_id", c.MenteeID},
		{"mentor_id", c.MentorID},
		{"coordinator_id", c.CoordinatorID},
	} {
		if err := shared.ValidateID(id[0], id[1]); err != nil {
			return err
		}
	}
	return nil
}

// ManualMatchHandler handles the ManualMatchCommand.
type ManualMatchHandler struct {
	deps  Dependencies
	calc  *mentorship.Calculator
	guard *mentorship.CapacityGuard
}

// NewManualMatchHandler creates a new ManualMatchHandler.
func NewManualMatchHandler(deps Dependencies) *ManualMatchHandler {
	deps = deps.withDefaults()
	return &ManualMatchHandler{
		deps:  deps,
		calc:  mentorship.NewCalculator(deps.Config.Weights),
		guard: mentorship.NewCapacityGuard(deps.Matches),
	}
}

// Handle creates the manual match.
func (h *ManualMatchHandler) Handle(ctx context.Context, cmd ManualMatchCommand) (*mentorship.Match, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("manual_match: validation failed: %w", err)
	}

	program, err := h.deps.Programs.GetProgram(ctx, cmd.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("manual_match: %w", err)
	}
	mentee, err := h.deps.Registrations.GetMentee(ctx, program.ID, cmd.MenteeID)
	if err != nil {
		return nil, fmt.Errorf("manual_match: %w", err)
	}
	mentor, err := h.deps.Registrations.GetMentor(ctx, program.ID, cmd.MentorID)
	if err != nil {
		return nil, fmt.Errorf("manual_match: %w", err)
	}

	capacity := program.Capacity(h.deps.Config.MaxMenteesPerMentor)

	unlock, err := h.deps.Locker.LockMentor(ctx, program.ID, mentor.ID)
	if err != nil {
		return nil, fmt.Errorf("manual_match: lock mentor: %w", err)
	}
	defer unlock()

	if err := h.guard.Check(ctx, program.ID, mentor.ID, capacity); err != nil {
		return nil, fmt.Errorf("manual_match: %w", err)
	}

	now := h.deps.Clock.Now()
	match, err := mentorship.NewManualMatch(mentorship.NewMatchParams{
		ID:                    h.deps.IDs.GenerateID(),
		ProgramID:             program.ID,
		Mentee:                mentee,
		Mentor:                mentor,
		Breakdown:             h.calc.Score(mentee, mentor, mentee.Preferences),
		MenteeSelectedMentors: mentee.Preferences,
		Now:                   now,
		CreatedBy:             cmd.CoordinatorID,
	})
	if err != nil {
		return nil, fmt.Errorf("manual_match: %w", err)
	}

	if err := h.deps.Matches.CreateAccepted(ctx, match, capacity); err != nil {
		return nil, fmt.Errorf("manual_match: %w", err)
	}

	h.deps.Logger.Info("manual match created",
		"match_id", match.ID,
		"program_id", match.ProgramID,
		"mentor_id", match.MentorID,
		"mentee_id", match.MenteeID,
		"coordinator_id", cmd.CoordinatorID,
	)
	h.deps.publish(mentorship.NewMatchEvent(shared.EventManualMatchCreated, match, now))

	completeAcceptance(ctx, h.deps, match)
	return match, nil
}
