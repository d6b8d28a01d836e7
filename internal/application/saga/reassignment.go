// Package saga contains business processes that orchestrate several domain
// operations in sequence and decide what happens when a step has no outcome.
package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alem-hub/mentorship-engine/internal/application/command"
	"github.com/alem-hub/mentorship-engine/internal/domain/mentorship"
	"github.com/alem-hub/mentorship-engine/internal/domain/shared"
	"github.com/alem-hub/mentorship-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// REASSIGNMENT SAGA
// Runs after a match was rejected or auto-rejected.
// Flow: Check Active Match → Collect Attempted Mentors → Rank With Snapshot →
//
//	Create Pending Match | Notify Coordinators (manual matching required)
//
// ══════════════════════════════════════════════════════════════════════════════

// Outcome describes how a reassignment ended.
type Outcome string

const (
	// OutcomeReassigned - a new pending match was created.
	OutcomeReassigned Outcome = "reassigned"

	// OutcomeAlreadyMatched - the mentee already has an active match.
	OutcomeAlreadyMatched Outcome = "already_matched"

	// OutcomeManualRequired - no candidate left; coordinators were notified.
	OutcomeManualRequired Outcome = "manual_required"
)

// ReassignmentResult contains the result of one reassignment.
type ReassignmentResult struct {
	// Outcome is how the reassignment ended.
	Outcome Outcome

	// Match is the new pending match when Outcome is OutcomeReassigned.
	Match *mentorship.Match

	// Attempted is the number of mentors excluded from ranking.
	Attempted int
}

// ReassignmentDependencies contains the collaborators of the saga.
type ReassignmentDependencies struct {
	Matches       mentorship.MatchRepository
	Registrations mentorship.RegistrationReader
	Programs      mentorship.ProgramReader
	Notifier      mentorship.Notifier
	Events        shared.EventPublisher
	Proposer      *command.Proposer
	Clock         timeutil.Clock
	Logger        *slog.Logger
}

// ReassignmentSaga looks for a replacement mentor after a failed match.
type ReassignmentSaga struct {
	deps ReassignmentDependencies
}

// NewReassignmentSaga creates a new ReassignmentSaga.
func NewReassignmentSaga(deps ReassignmentDependencies) *ReassignmentSaga {
	if deps.Events == nil {
		deps.Events = shared.NoopPublisher{}
	}
	if deps.Notifier == nil {
		deps.Notifier = command.NoopNotifier{}
	}
	if deps.Clock == nil {
		deps.Clock = timeutil.SystemClock{}
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	return &ReassignmentSaga{deps: deps}
}

// Reassign implements command.Reassigner.
func (s *ReassignmentSaga) Reassign(ctx context.Context, failed *mentorship.Match) error {
	_, err := s.Execute(ctx, failed)
	return err
}

// Execute runs the saga for a failed match and reports the outcome.
func (s *ReassignmentSaga) Execute(ctx context.Context, failed *mentorship.Match) (*ReassignmentResult, error) {
	if failed == nil || !failed.Status.IsFailed() {
		return nil, fmt.Errorf("reassignment: %w", shared.ErrInvalidMatchState)
	}

	log := s.deps.Logger.With(
		"failed_match_id", failed.ID,
		"program_id", failed.ProgramID,
		"mentee_id", failed.MenteeID,
	)

	// Step 1: a coordinator or another cascade may have matched the mentee already.
	active, err := s.deps.Matches.GetActiveForMentee(ctx, failed.ProgramID, failed.MenteeID)
	switch {
	case err == nil:
		log.Info("mentee already has an active match, cascade stopped", "active_match_id", active.ID)
		return &ReassignmentResult{Outcome: OutcomeAlreadyMatched}, nil
	case !errors.Is(err, shared.ErrMatchNotFound):
		return nil, fmt.Errorf("reassignment: check active match: %w", err)
	}

	program, err := s.deps.Programs.GetProgram(ctx, failed.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("reassignment: %w", err)
	}
	mentee, err := s.deps.Registrations.GetMentee(ctx, failed.ProgramID, failed.MenteeID)
	if err != nil {
		return nil, fmt.Errorf("reassignment: %w", err)
	}

	// Step 2: every mentor ever proposed to this mentee in this program is out.
	attempted, err := s.deps.Matches.ListAttemptedMentors(ctx, failed.ProgramID, failed.MenteeID)
	if err != nil {
		return nil, fmt.Errorf("reassignment: list attempted mentors: %w", err)
	}
	excluded := mentorship.ExclusionSet(append(attempted, failed.MentorID)...)

	mentors, err := s.deps.Proposer.LoadMentors(ctx, failed.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("reassignment: load mentors: %w", err)
	}

	// Step 3: rank with the preference snapshot taken when the first match was made.
	prefs := failed.MenteeSelectedMentors
	if len(prefs) == 0 {
		prefs = mentee.Preferences
	}

	out, err := s.deps.Proposer.Propose(ctx, command.ProposeInput{
		Program:     program,
		Mentee:      mentee,
		Preferences: prefs,
		Mentors:     mentors,
		Excluded:    excluded,
	})
	if err != nil {
		if errors.Is(err, shared.ErrActiveMatchExists) {
			log.Info("mentee matched concurrently, cascade stopped")
			return &ReassignmentResult{Outcome: OutcomeAlreadyMatched, Attempted: len(excluded)}, nil
		}
		return nil, fmt.Errorf("reassignment: %w", err)
	}

	if out.Match != nil {
		log.Info("mentee reassigned",
			"new_match_id", out.Match.ID,
			"mentor_id", out.Match.MentorID,
			"match_type", out.Match.Type,
			"preferred_choice_order", out.Match.PreferredChoiceOrder,
		)
		return &ReassignmentResult{Outcome: OutcomeReassigned, Match: out.Match, Attempted: len(excluded)}, nil
	}

	// Step 4: nobody left. Staff must step in.
	s.requestManualMatching(ctx, program, failed.MenteeID, len(excluded), log)
	return &ReassignmentResult{Outcome: OutcomeManualRequired, Attempted: len(excluded)}, nil
}

// requestManualMatching notifies coordinators and publishes the signal.
func (s *ReassignmentSaga) requestManualMatching(ctx context.Context, program mentorship.Program, menteeID string, attempted int, log *slog.Logger) {
	log.Warn("no candidate available, manual matching required", "attempted", attempted)

	if err := s.deps.Notifier.NotifyCoordinatorsManualMatchingRequired(ctx, program, menteeID); err != nil {
		log.Warn("failed to notify coordinators", "error", err)
	}

	event := shared.NewManualMatchingRequiredEvent(program.ID, menteeID, attempted, s.deps.Clock.Now())
	if err := s.deps.Events.Publish(event); err != nil {
		log.Warn("failed to publish event", "event_type", event.EventType(), "error", err)
	}
}
