package mentorship

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/mentorship-engine/internal/domain/shared"
)

func newTestRanker() *Ranker {
	return NewRanker(NewCalculator(DefaultWeights()))
}

func TestRanker_SkipsFullPreferencesAndPicksThirdChoice(t *testing.T) {
	r := newTestRanker()
	prefs := []string{"a", "b", "c"}
	tech := Profile{Industry: "Technology", Programme: "Computer Science", Tags: []string{"go"}}

	a := mentor("a", Profile{})
	a.AcceptedCount = 20
	b := mentor("b", Profile{})
	b.AcceptedCount = 20
	c := mentor("c", Profile{Industry: "Retail"})
	d := mentor("d", tech)

	got, ok := r.Rank(RankInput{
		Mentee:      mentee("m", prefs, tech),
		Preferences: prefs,
		Mentors:     []MentorCandidate{d, a, b, c},
		Capacity:    20,
	})

	require.True(t, ok)
	assert.Equal(t, "c", got.Mentor.ID)
	assert.Equal(t, TypePreferred, got.Type)
	assert.Equal(t, 3, got.PreferredChoiceOrder)
	assert.Equal(t, shared.Score(60), got.Breakdown.Preference)
}

func TestRanker_ExclusionFallsThroughToNextPreference(t *testing.T) {
	r := newTestRanker()
	prefs := []string{"a", "b", "c"}

	got, ok := r.Rank(RankInput{
		Mentee:      mentee("m", prefs, Profile{}),
		Preferences: prefs,
		Mentors:     []MentorCandidate{mentor("a", Profile{}), mentor("b", Profile{}), mentor("c", Profile{})},
		Excluded:    ExclusionSet("a"),
		Capacity:    20,
	})

	require.True(t, ok)
	assert.Equal(t, "b", got.Mentor.ID)
	assert.Equal(t, 2, got.PreferredChoiceOrder)
}

func TestRanker_AlgorithmPicksHighestTotal(t *testing.T) {
	r := newTestRanker()
	prefs := []string{"a", "b", "c"}
	profile := Profile{Industry: "Finance", Programme: "Economics", Tags: []string{"investing"}}

	got, ok := r.Rank(RankInput{
		Mentee:      mentee("m", prefs, profile),
		Preferences: prefs,
		Mentors: []MentorCandidate{
			mentor("x", Profile{Industry: "Retail"}),
			mentor("y", profile),
			mentor("z", Profile{Industry: "Banking"}),
		},
		Capacity: 20,
	})

	require.True(t, ok)
	assert.Equal(t, "y", got.Mentor.ID)
	assert.Equal(t, TypeAlgorithm, got.Type)
	assert.Zero(t, got.PreferredChoiceOrder)
}

func TestRanker_TiesKeepInputOrder(t *testing.T) {
	r := newTestRanker()
	same := Profile{Industry: "Technology"}

	got, ok := r.Rank(RankInput{
		Mentee:   mentee("m", []string{"a", "b", "c"}, same),
		Mentors:  []MentorCandidate{mentor("second", same), mentor("first", same)},
		Capacity: 20,
	})

	require.True(t, ok)
	assert.Equal(t, "second", got.Mentor.ID)
}

func TestRanker_NoCandidate(t *testing.T) {
	r := newTestRanker()
	prefs := []string{"a", "b", "c"}
	full := mentor("c", Profile{})
	full.AcceptedCount = 2

	_, ok := r.Rank(RankInput{
		Mentee:      mentee("m", prefs, Profile{}),
		Preferences: prefs,
		Mentors:     []MentorCandidate{mentor("a", Profile{}), mentor("b", Profile{}), full},
		Excluded:    ExclusionSet("a", "b"),
		Capacity:    2,
	})
	assert.False(t, ok)

	_, ok = r.Rank(RankInput{Mentee: mentee("m", prefs, Profile{}), Capacity: 20})
	assert.False(t, ok)
}

func TestRanker_ScoreAllMarksEligibility(t *testing.T) {
	r := newTestRanker()
	full := mentor("b", Profile{})
	full.AcceptedCount = 1

	scored := r.ScoreAll(RankInput{
		Mentee:   mentee("m", []string{"a", "b", "c"}, Profile{}),
		Mentors:  []MentorCandidate{mentor("a", Profile{}), full, mentor("c", Profile{})},
		Excluded: ExclusionSet("a"),
		Capacity: 1,
	})

	require.Len(t, scored, 3)
	assert.Equal(t, EligibilityExcluded, scored[0].Eligibility)
	assert.Equal(t, EligibilityAtCapacity, scored[1].Eligibility)
	assert.Equal(t, EligibilityEligible, scored[2].Eligibility)
}

func TestSortByTotal_IsStable(t *testing.T) {
	scored := []ScoredMentor{
		{Mentor: mentor("a", Profile{}), Breakdown: ScoreBreakdown{Total: 10}},
		{Mentor: mentor("b", Profile{}), Breakdown: ScoreBreakdown{Total: 50}},
		{Mentor: mentor("c", Profile{}), Breakdown: ScoreBreakdown{Total: 10}},
	}

	SortByTotal(scored)

	assert.Equal(t, "b", scored[0].Mentor.ID)
	assert.Equal(t, "a", scored[1].Mentor.ID)
	assert.Equal(t, "c", scored[2].Mentor.ID)
}

type stubCounter struct {
	count int
	err   error
}

func (s stubCounter) CountAccepted(context.Context, string, string) (int, error) {
	return s.count, s.err
}

func (s stubCounter) CountAcceptedByMentor(context.Context, string) (map[string]int, error) {
	return nil, s.err
}

func TestCapacityGuard_Check(t *testing.T) {
	ctx := context.Background()

	assert.NoError(t, NewCapacityGuard(stubCounter{count: 19}).Check(ctx, "p", "m", 20))

	err := NewCapacityGuard(stubCounter{count: 20}).Check(ctx, "p", "m", 20)
	assert.True(t, errors.Is(err, shared.ErrCapacityExceeded))

	boom := errors.New("db down")
	err = NewCapacityGuard(stubCounter{err: boom}).Check(ctx, "p", "m", 20)
	assert.ErrorIs(t, err, boom)
}
