package query

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/mentorship-engine/internal/domain/mentorship"
	"github.com/alem-hub/mentorship-engine/internal/domain/shared"
	"github.com/alem-hub/mentorship-engine/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/mentorship-engine/pkg/timeutil"
)

var at = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func seed(t *testing.T) *memory.Store {
	t.Helper()
	s := memory.NewStore()
	s.AddProgram(mentorship.Program{ID: "prog", MaxMenteesPerMentor: 3})
	s.AddMentor("prog", mentorship.MentorCandidate{ID: "A", RegistrationID: "ra", Profile: mentorship.Profile{Industry: "Finance", Company: "Acme Bank"}})
	s.AddMentor("prog", mentorship.MentorCandidate{ID: "B", RegistrationID: "rb", Profile: mentorship.Profile{Industry: "Technology"}})
	s.AddMentor("prog", mentorship.MentorCandidate{ID: "C", RegistrationID: "rc", Profile: mentorship.Profile{Industry: "Media"}})
	s.AddMentee("prog", mentorship.MenteeCandidate{
		ID: "mentee", RegistrationID: "rm",
		Preferences: []string{"A", "B", "C"},
		Profile:     mentorship.Profile{Industry: "Technology"},
	})
	return s
}

func create(t *testing.T, s *memory.Store, id, menteeID, mentorID string, order int, when time.Time) *mentorship.Match {
	t.Helper()
	m, err := mentorship.NewMatch(mentorship.NewMatchParams{
		ID:        id,
		ProgramID: "prog",
		Mentee: mentorship.MenteeCandidate{
			ID: menteeID, RegistrationID: "r-" + menteeID,
			Preferences: []string{"A", "B", "C"},
		},
		Mentor:               mentorship.MentorCandidate{ID: mentorID, RegistrationID: "r-" + mentorID},
		Type:                 mentorship.TypePreferred,
		PreferredChoiceOrder: order,
		Now:                  when,
	})
	require.NoError(t, err)
	require.NoError(t, s.Create(context.Background(), m))
	return m
}

func TestListMatches(t *testing.T) {
	s := seed(t)
	ctx := context.Background()

	first := create(t, s, "m1", "mentee", "A", 1, at)
	require.NoError(t, first.Reject("A", "", at))
	require.NoError(t, s.Transition(ctx, first, mentorship.StatusPending))
	create(t, s, "m2", "mentee", "B", 2, at.Add(time.Hour))
	create(t, s, "m3", "other", "A", 1, at)

	h := NewListMatchesHandler(s)

	res, err := h.Handle(ctx, ListMatchesQuery{MenteeID: "mentee"})
	require.NoError(t, err)
	require.Len(t, res.Matches, 2)
	assert.Equal(t, defaultListLimit, res.Limit)

	res, err = h.Handle(ctx, ListMatchesQuery{ProgramID: "prog", Statuses: []string{"pending_mentor_acceptance"}})
	require.NoError(t, err)
	assert.Len(t, res.Matches, 2)

	res, err = h.Handle(ctx, ListMatchesQuery{MentorID: "A", Statuses: []string{"REJECTED"}})
	require.NoError(t, err)
	require.Len(t, res.Matches, 1)
	assert.Equal(t, "m1", res.Matches[0].ID)
	require.NotNil(t, res.Matches[0].PreferredChoiceOrder)
	assert.Equal(t, 1, *res.Matches[0].PreferredChoiceOrder)

	_, err = h.Handle(ctx, ListMatchesQuery{ProgramID: "prog", Statuses: []string{"WAITING"}})
	assert.True(t, shared.IsValidation(err))

	_, err = h.Handle(ctx, ListMatchesQuery{})
	assert.True(t, shared.IsValidation(err))

	q := ListMatchesQuery{ProgramID: "prog", Limit: 10_000}
	require.NoError(t, q.Validate())
	assert.Equal(t, maxListLimit, q.Limit)
}

func TestGetMatch(t *testing.T) {
	s := seed(t)
	create(t, s, "m1", "mentee", "B", 2, at)

	h := NewGetMatchHandler(s)
	dto, err := h.Handle(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, "PREFERRED", dto.Type)
	assert.Equal(t, "PENDING_MENTOR_ACCEPTANCE", dto.Status)
	assert.Equal(t, at.Add(72*time.Hour), dto.AutoRejectAt)

	_, err = h.Handle(context.Background(), "nope")
	assert.ErrorIs(t, err, shared.ErrMatchNotFound)
}

type mapStatsCache struct {
	mu          sync.Mutex
	items       map[string]*ProgramStatsDTO
	hits        int
	invalidated []string
}

func (c *mapStatsCache) GetStats(_ context.Context, programID string) (*ProgramStatsDTO, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.items[programID]
	if ok {
		c.hits++
	}
	return v, ok, nil
}

func (c *mapStatsCache) SetStats(_ context.Context, stats *ProgramStatsDTO) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items[stats.ProgramID] = stats
	return nil
}

func (c *mapStatsCache) InvalidateStats(_ context.Context, programID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.items, programID)
	c.invalidated = append(c.invalidated, programID)
	return nil
}

func TestProgramStats(t *testing.T) {
	s := seed(t)
	ctx := context.Background()

	m1 := create(t, s, "m1", "e1", "A", 1, at)
	require.NoError(t, m1.Accept("A", at))
	require.NoError(t, s.Accept(ctx, m1, 3))
	create(t, s, "m2", "e2", "A", 1, at)

	cache := &mapStatsCache{items: map[string]*ProgramStatsDTO{}}
	h := NewGetProgramStatsHandler(s, s, cache, mentorship.DefaultConfig(), timeutil.NewFixedClock(at), nil)

	stats, err := h.Handle(ctx, "prog")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ByStatus["ACCEPTED"])
	assert.Equal(t, 1, stats.ByStatus["PENDING_MENTOR_ACCEPTANCE"])
	assert.Equal(t, 0, stats.ByStatus["AUTO_REJECTED"])
	assert.Equal(t, 2, stats.ByType["PREFERRED"])
	assert.Equal(t, []MentorLoadDTO{{MentorID: "A", Accepted: 1, Capacity: 3, Remaining: 2}}, stats.MentorLoad)

	_, err = h.Handle(ctx, "prog")
	require.NoError(t, err)
	assert.Equal(t, 1, cache.hits)

	inv := NewStatsInvalidator(cache, nil)
	require.NoError(t, inv.Handle(mentorship.NewMatchEvent(shared.EventMatchAccepted, m1, at)))
	assert.Equal(t, []string{"prog"}, cache.invalidated)

	_, found, _ := cache.GetStats(ctx, "prog")
	assert.False(t, found)
}

func TestPreviewCandidates(t *testing.T) {
	s := seed(t)
	ctx := context.Background()

	first := create(t, s, "m1", "mentee", "A", 1, at)
	require.NoError(t, first.Reject("A", "", at))
	require.NoError(t, s.Transition(ctx, first, mentorship.StatusPending))

	h := NewPreviewCandidatesHandler(s, s, s, mentorship.DefaultConfig())
	res, err := h.Handle(ctx, PreviewCandidatesQuery{ProgramID: "prog", MenteeID: "mentee"})
	require.NoError(t, err)

	require.Len(t, res.Candidates, 3)
	assert.Equal(t, []string{"A", "B", "C"}, res.Preferences)

	byID := map[string]CandidateDTO{}
	for _, c := range res.Candidates {
		byID[c.MentorID] = c
	}
	assert.Equal(t, string(mentorship.EligibilityExcluded), byID["A"].Eligibility)
	assert.Equal(t, string(mentorship.EligibilityEligible), byID["B"].Eligibility)

	require.NotNil(t, res.Next)
	assert.Equal(t, "B", res.Next.MentorID)
	assert.Equal(t, "PREFERRED", res.NextType)

	for i := 1; i < len(res.Candidates); i++ {
		assert.GreaterOrEqual(t, res.Candidates[i-1].Breakdown.Total.Float64(), res.Candidates[i].Breakdown.Total.Float64())
	}

	_, err = h.Handle(ctx, PreviewCandidatesQuery{ProgramID: "prog", MenteeID: "ghost"})
	assert.ErrorIs(t, err, shared.ErrMenteeNotFound)
}
