package command

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alem-hub/mentorship-engine/internal/domain/mentorship"
	"github.com/alem-hub/mentorship-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// INITIATE MATCHING COMMAND
// Runs the Candidate Ranker for every approved mentee of a program that has no
// active match and creates pending matches. Safe to run repeatedly: mentees
// with an active match are skipped, mentors already tried are excluded.
// ══════════════════════════════════════════════════════════════════════════════

// InitiateMatchingCommand contains the data to run batch matching for a program.
type InitiateMatchingCommand struct {
	// ProgramID is the program to match.
	ProgramID string

	// Force ignores the program's matching window.
	Force bool

	// CorrelationID for tracing.
	CorrelationID string
}

// Validate validates the command.
func (c InitiateMatchingCommand) Validate() error {
	return shared.ValidateID("program_id", c.ProgramID)
}

// InitiateMatchingResult contains batch counts.
type InitiateMatchingResult struct {
	// ProgramID is the matched program.
	ProgramID string `json:"program_id"`

	// Considered is the number of mentees without an active match that were processed.
	Considered int `json:"considered"`

	// Pending is the number of newly created pending matches.
	Pending int `json:"pending"`

	// NeedingManual is the number of mentees with no candidate at all.
	NeedingManual int `json:"needing_manual"`

	// Errors is the number of mentees that failed and were skipped.
	Errors int `json:"errors"`

	// Skipped is the number of mentees that already had an active match.
	Skipped int `json:"skipped"`

	// NeedingManualMentees lists mentees that require coordinator action.
	NeedingManualMentees []string `json:"needing_manual_mentees,omitempty"`

	// Duration is how long the batch took.
	Duration time.Duration `json:"duration"`
}

// Counts returns the result as a flat map for events and logs.
func (r InitiateMatchingResult) Counts() map[string]int {
	return map[string]int{
		"considered":     r.Considered,
		"pending":        r.Pending,
		"needing_manual": r.NeedingManual,
		"errors":         r.Errors,
		"skipped":        r.Skipped,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// HANDLER
// ══════════════════════════════════════════════════════════════════════════════

// InitiateMatchingHandler handles the InitiateMatchingCommand.
type InitiateMatchingHandler struct {
	deps     Dependencies
	proposer *Proposer
}

// NewInitiateMatchingHandler creates a new InitiateMatchingHandler.
func NewInitiateMatchingHandler(deps Dependencies, proposer *Proposer) *InitiateMatchingHandler {
	deps = deps.withDefaults()
	if proposer == nil {
		proposer = NewProposer(deps)
	}
	return &InitiateMatchingHandler{deps: deps, proposer: proposer}
}

// menteeOutcome classifies the processing of a single mentee.
type menteeOutcome int

const (
	outcomeSkipped menteeOutcome = iota
	outcomePending
	outcomeNeedsManual
)

// Handle executes batch matching for the program.
func (h *InitiateMatchingHandler) Handle(ctx context.Context, cmd InitiateMatchingCommand) (*InitiateMatchingResult, error) {
	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("initiate_matching: validation failed: %w", err)
	}

	start := h.deps.Clock.Now()
	log := h.deps.Logger.With("program_id", cmd.ProgramID, "correlation_id", cmd.CorrelationID)

	program, err := h.deps.Programs.GetProgram(ctx, cmd.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("initiate_matching: %w", err)
	}
	if !cmd.Force {
		if err := program.CheckMatchingWindow(start); err != nil {
			return nil, fmt.Errorf("initiate_matching: %w", err)
		}
	}

	mentees, err := h.deps.Registrations.GetApprovedMentees(ctx, program.ID)
	if err != nil {
		return nil, fmt.Errorf("initiate_matching: load mentees: %w", err)
	}
	mentors, err := h.proposer.LoadMentors(ctx, program.ID)
	if err != nil {
		return nil, fmt.Errorf("initiate_matching: load mentors: %w", err)
	}

	log.Info("initiating matching", "mentees", len(mentees), "mentors", len(mentors))

	result := &InitiateMatchingResult{ProgramID: program.ID}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.deps.Config.Concurrency)

	for _, mentee := range mentees {
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}

			outcome, err := h.processMentee(gctx, program, mentee, mentors)

			mu.Lock()
			defer mu.Unlock()

			if err != nil {
				result.Considered++
				result.Errors++
				log.Error("failed to match mentee", "mentee_id", mentee.ID, "error", err)
				return nil
			}
			switch outcome {
			case outcomeSkipped:
				result.Skipped++
			case outcomePending:
				result.Considered++
				result.Pending++
			case outcomeNeedsManual:
				result.Considered++
				result.NeedingManual++
				result.NeedingManualMentees = append(result.NeedingManualMentees, mentee.ID)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("initiate_matching: %w", err)
	}

	sort.Strings(result.NeedingManualMentees)
	result.Duration = h.deps.Clock.Now().Sub(start)

	h.deps.publish(shared.NewBatchCompletedEvent(
		shared.EventMatchingInitiated, program.ID, result.Counts(), result.Duration, h.deps.Clock.Now(),
	))

	log.Info("matching initiated",
		"considered", result.Considered,
		"pending", result.Pending,
		"needing_manual", result.NeedingManual,
		"errors", result.Errors,
		"skipped", result.Skipped,
		"duration", result.Duration,
	)

	return result, nil
}

// processMentee proposes a mentor for one mentee.
func (h *InitiateMatchingHandler) processMentee(
	ctx context.Context,
	program mentorship.Program,
	mentee mentorship.MenteeCandidate,
	mentors []mentorship.MentorCandidate,
) (menteeOutcome, error) {
	_, err := h.deps.Matches.GetActiveForMentee(ctx, program.ID, mentee.ID)
	switch {
	case err == nil:
		return outcomeSkipped, nil
	case !errors.Is(err, shared.ErrMatchNotFound):
		return 0, fmt.Errorf("check active match: %w", err)
	}

	if err := mentee.Validate(); err != nil {
		return 0, err
	}

	attempted, err := h.deps.Matches.ListAttemptedMentors(ctx, program.ID, mentee.ID)
	if err != nil {
		return 0, fmt.Errorf("list attempted mentors: %w", err)
	}

	out, err := h.proposer.Propose(ctx, ProposeInput{
		Program:     program,
		Mentee:      mentee,
		Preferences: mentee.Preferences,
		Mentors:     mentors,
		Excluded:    mentorship.ExclusionSet(attempted...),
	})
	if err != nil {
		if errors.Is(err, shared.ErrActiveMatchExists) {
			return outcomeSkipped, nil
		}
		return 0, err
	}
	if out.NoCandidate {
		return outcomeNeedsManual, nil
	}
	return outcomePending, nil
}
