package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/alem-hub/mentorship-engine/internal/domain/mentorship"
	"github.com/alem-hub/mentorship-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PROPOSER
// Runs the Candidate Ranker for one mentee and creates the pending match.
// Shared by the batch runner and the reassignment cascade.
// ══════════════════════════════════════════════════════════════════════════════

// ProposeInput contains everything needed to propose a mentor for one mentee.
type ProposeInput struct {
	// Program is the program being matched.
	Program mentorship.Program

	// Mentee is the mentee looking for a mentor.
	Mentee mentorship.MenteeCandidate

	// Preferences is the preference list to rank with (snapshot in the cascade).
	Preferences []string

	// Mentors is the approved mentor pool with accepted counts.
	Mentors []mentorship.MentorCandidate

	// Excluded are mentors already attempted for this mentee.
	Excluded map[string]struct{}
}

// ProposeOutcome is the result of a proposal.
type ProposeOutcome struct {
	// Match is the created pending match; nil when no candidate was available.
	Match *mentorship.Match

	// NoCandidate is true when ranking found nothing.
	NoCandidate bool
}

// Proposer ranks candidates and creates pending matches.
type Proposer struct {
	deps   Dependencies
	ranker *mentorship.Ranker
}

// NewProposer creates a new Proposer.
func NewProposer(deps Dependencies) *Proposer {
	deps = deps.withDefaults()
	return &Proposer{
		deps:   deps,
		ranker: mentorship.NewRanker(mentorship.NewCalculator(deps.Config.Weights)),
	}
}

// Ranker returns the underlying ranker.
func (p *Proposer) Ranker() *mentorship.Ranker {
	return p.ranker
}

// LoadMentors returns the approved mentor pool with a fresh capacity snapshot.
func (p *Proposer) LoadMentors(ctx context.Context, programID string) ([]mentorship.MentorCandidate, error) {
	return p.deps.loadMentors(ctx, programID)
}

// Propose selects the best candidate and persists a pending match.
// Returns shared.ErrActiveMatchExists if a concurrent writer already matched the mentee.
func (p *Proposer) Propose(ctx context.Context, in ProposeInput) (ProposeOutcome, error) {
	capacity := in.Program.Capacity(p.deps.Config.MaxMenteesPerMentor)

	cand, ok := p.ranker.Rank(mentorship.RankInput{
		Mentee:      in.Mentee,
		Preferences: in.Preferences,
		Mentors:     in.Mentors,
		Excluded:    in.Excluded,
		Capacity:    capacity,
	})
	if !ok {
		return ProposeOutcome{NoCandidate: true}, nil
	}

	now := p.deps.Clock.Now()
	match, err := mentorship.NewMatch(mentorship.NewMatchParams{
		ID:                    p.deps.IDs.GenerateID(),
		ProgramID:             in.Program.ID,
		Mentee:                in.Mentee,
		Mentor:                cand.Mentor,
		Breakdown:             cand.Breakdown,
		Type:                  cand.Type,
		PreferredChoiceOrder:  cand.PreferredChoiceOrder,
		MenteeSelectedMentors: in.Preferences,
		Now:                   now,
		ResponseWindow:        p.deps.Config.ResponseWindow,
	})
	if err != nil {
		return ProposeOutcome{}, fmt.Errorf("propose: build match: %w", err)
	}

	if err := p.deps.Matches.Create(ctx, match); err != nil {
		if errors.Is(err, shared.ErrActiveMatchExists) {
			return ProposeOutcome{}, err
		}
		return ProposeOutcome{}, fmt.Errorf("propose: save match: %w", err)
	}

	p.deps.Logger.Info("match proposed",
		"match_id", match.ID,
		"program_id", match.ProgramID,
		"mentee_id", match.MenteeID,
		"mentor_id", match.MentorID,
		"match_type", match.Type,
		"score", match.Score.Float64(),
	)

	p.deps.publish(mentorship.NewMatchEvent(shared.EventMatchProposed, match, now))

	if err := p.deps.Notifier.NotifyMentorOfMatch(ctx, match); err != nil {
		p.deps.Logger.Warn("failed to notify mentor of match",
			"match_id", match.ID,
			"mentor_id", match.MentorID,
			"error", err,
		)
	}

	return ProposeOutcome{Match: match}, nil
}
