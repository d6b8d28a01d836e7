package mentorship

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/mentorship-engine/internal/domain/shared"
)

var t0 = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)

func pendingMatch(t *testing.T, typ Type, order int) *Match {
	t.Helper()
	m, err := NewMatch(NewMatchParams{
		ID:                   "match-1",
		ProgramID:            "prog-1",
		Mentee:               mentee("mentee-1", []string{"a", "b", "c"}, Profile{}),
		Mentor:               mentor("a", Profile{}),
		Breakdown:            ScoreBreakdown{Preference: 100, PreferenceRank: 1, Total: 40},
		Type:                 typ,
		PreferredChoiceOrder: order,
		Now:                  t0,
	})
	require.NoError(t, err)
	return m
}

func TestNewMatch_Pending(t *testing.T) {
	m := pendingMatch(t, TypePreferred, 1)

	assert.Equal(t, StatusPending, m.Status)
	assert.Equal(t, t0, m.MatchedAt)
	assert.Equal(t, t0.Add(72*time.Hour), m.AutoRejectAt)
	assert.Equal(t, []string{"a", "b", "c"}, m.MenteeSelectedMentors)
	assert.Equal(t, shared.Score(40), m.Score)
	assert.Nil(t, m.MentorResponseAt)
	assert.True(t, m.IsActive())
}

func TestNewMatch_ChoiceOrderOnlyForPreferred(t *testing.T) {
	base := NewMatchParams{
		ID:        "m",
		ProgramID: "p",
		Mentee:    mentee("x", []string{"a", "b", "c"}, Profile{}),
		Mentor:    mentor("a", Profile{}),
		Now:       t0,
	}

	p := base
	p.Type = TypePreferred
	_, err := NewMatch(p)
	assert.Error(t, err, "preferred without order")

	p.PreferredChoiceOrder = 4
	_, err = NewMatch(p)
	assert.Error(t, err, "order out of range")

	p = base
	p.Type = TypeAlgorithm
	p.PreferredChoiceOrder = 2
	_, err = NewMatch(p)
	assert.Error(t, err, "algorithm with order")

	p.PreferredChoiceOrder = 0
	_, err = NewMatch(p)
	assert.NoError(t, err)

	p.Type = TypeManual
	_, err = NewMatch(p)
	assert.Error(t, err, "manual must go through NewManualMatch")
}

func TestNewMatch_RequiresIDs(t *testing.T) {
	_, err := NewMatch(NewMatchParams{
		ID:     "m",
		Mentee: mentee("x", nil, Profile{}),
		Mentor: mentor("a", Profile{}),
		Type:   TypeAlgorithm,
		Now:    t0,
	})
	require.Error(t, err)
	assert.True(t, shared.IsValidation(err))
}

func TestMatch_Accept(t *testing.T) {
	m := pendingMatch(t, TypePreferred, 1)
	now := t0.Add(time.Hour)

	err := m.Accept("someone-else", now)
	assert.True(t, errors.Is(err, shared.ErrNotAssignedMentor))
	assert.Equal(t, StatusPending, m.Status)

	require.NoError(t, m.Accept("a", now))
	assert.Equal(t, StatusAccepted, m.Status)
	require.NotNil(t, m.MentorResponseAt)
	assert.Equal(t, now, *m.MentorResponseAt)
	assert.Equal(t, 2, m.Version)

	err = m.Accept("a", now)
	assert.True(t, errors.Is(err, shared.ErrInvalidMatchState))
}

func TestMatch_Reject(t *testing.T) {
	m := pendingMatch(t, TypePreferred, 1)
	now := t0.Add(2 * time.Hour)

	require.NoError(t, m.Reject("a", "  no availability  ", now))
	assert.Equal(t, StatusRejected, m.Status)
	assert.Equal(t, "no availability", m.RejectionReason)
	assert.True(t, m.ShouldCascade(false))

	err := m.Reject("a", "again", now)
	assert.True(t, shared.IsInvalidState(err))
}

func TestMatch_AutoReject(t *testing.T) {
	m := pendingMatch(t, TypeAlgorithm, 0)

	err := m.AutoReject(t0.Add(72 * time.Hour))
	assert.Error(t, err, "deadline is exclusive")
	assert.Equal(t, StatusPending, m.Status)

	require.NoError(t, m.AutoReject(t0.Add(72*time.Hour+time.Second)))
	assert.Equal(t, StatusAutoRejected, m.Status)
	assert.Equal(t, AutoRejectReason, m.RejectionReason)
	assert.Nil(t, m.MentorResponseAt)

	assert.False(t, m.ShouldCascade(false))
	assert.True(t, m.ShouldCascade(true))
}

func TestNewManualMatch(t *testing.T) {
	m, err := NewManualMatch(NewMatchParams{
		ID:                   "m",
		ProgramID:            "p",
		Mentee:               mentee("x", []string{"a", "b", "c"}, Profile{}),
		Mentor:               mentor("z", Profile{}),
		PreferredChoiceOrder: 2,
		Now:                  t0,
		CreatedBy:            "coord-1",
	})
	require.NoError(t, err)

	assert.Equal(t, TypeManual, m.Type)
	assert.Equal(t, StatusAccepted, m.Status)
	assert.Zero(t, m.PreferredChoiceOrder)
	assert.NotNil(t, m.MentorResponseAt)
	assert.False(t, m.ShouldCascade(true))

	_, err = NewManualMatch(NewMatchParams{
		ID: "m", ProgramID: "p",
		Mentee: mentee("x", nil, Profile{}), Mentor: mentor("z", Profile{}),
		Now: t0,
	})
	assert.Error(t, err, "coordinator required")
}

func TestMatch_Clone(t *testing.T) {
	m := pendingMatch(t, TypePreferred, 1)
	require.NoError(t, m.Accept("a", t0))

	c := m.Clone()
	c.MenteeSelectedMentors[0] = "changed"
	*c.MentorResponseAt = t0.Add(time.Hour)

	assert.Equal(t, "a", m.MenteeSelectedMentors[0])
	assert.Equal(t, t0, *m.MentorResponseAt)
}

func TestValidatePreferences(t *testing.T) {
	assert.NoError(t, ValidatePreferences([]string{"a", "b", "c"}))
	assert.Error(t, ValidatePreferences([]string{"a", "b"}))
	assert.Error(t, ValidatePreferences([]string{"a", "b", "a"}))
	assert.Error(t, ValidatePreferences([]string{"a", "", "c"}))
	assert.Error(t, ValidatePreferences([]string{"a", "b", "c", "d"}))
}

func TestParseStatusAndType(t *testing.T) {
	s, err := ParseStatus("accepted")
	require.NoError(t, err)
	assert.Equal(t, StatusAccepted, s)

	_, err = ParseStatus("done")
	assert.Error(t, err)

	typ, err := ParseType(" preferred ")
	require.NoError(t, err)
	assert.Equal(t, TypePreferred, typ)
}

func TestProgram_CapacityAndWindow(t *testing.T) {
	p := Program{ID: "p"}
	assert.Equal(t, 20, p.Capacity(0))
	assert.Equal(t, 5, p.Capacity(5))

	p.MaxMenteesPerMentor = 3
	assert.Equal(t, 3, p.Capacity(5))

	p.MenteeRegistrationDeadline = t0
	p.MentorRegistrationDeadline = t0.Add(24 * time.Hour)
	p.MatchingDeadline = t0.Add(7 * 24 * time.Hour)

	assert.ErrorIs(t, p.CheckMatchingWindow(t0.Add(time.Hour)), shared.ErrMatchingWindowClosed)
	assert.NoError(t, p.CheckMatchingWindow(t0.Add(48*time.Hour)))
	assert.ErrorIs(t, p.CheckMatchingWindow(t0.Add(8*24*time.Hour)), shared.ErrMatchingWindowClosed)
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())

	cfg := DefaultConfig()
	cfg.MaxMenteesPerMentor = 0
	cfg.Concurrency = -1
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max mentees per mentor")
	assert.Contains(t, err.Error(), "concurrency")
}
