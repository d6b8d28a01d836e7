package command

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/mentorship-engine/internal/domain/mentorship"
	"github.com/alem-hub/mentorship-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// ACCEPT
// ══════════════════════════════════════════════════════════════════════════════

func TestAcceptMatch(t *testing.T) {
	f := newFixture(20)
	f.pending("m-1", "mentee", "mentor", mentorship.TypePreferred, 1)

	h := NewAcceptMatchHandler(f.deps)
	match, err := h.Handle(context.Background(), AcceptMatchCommand{MatchID: "m-1", ActorID: "mentor"})
	require.NoError(t, err)

	assert.Equal(t, mentorship.StatusAccepted, match.Status)
	assert.Equal(t, "space-m-1", match.CollaborationSpaceID)
	assert.Equal(t, []string{"m-1"}, f.notifier.mentee)

	stored, err := f.store.GetByID(context.Background(), "m-1")
	require.NoError(t, err)
	assert.Equal(t, mentorship.StatusAccepted, stored.Status)
	assert.Equal(t, "space-m-1", stored.CollaborationSpaceID)
	require.NotNil(t, stored.MentorResponseAt)
	assert.Equal(t, testNow, *stored.MentorResponseAt)
}

func TestAcceptMatch_Errors(t *testing.T) {
	f := newFixture(20)
	f.pending("m-1", "mentee", "mentor", mentorship.TypePreferred, 1)
	h := NewAcceptMatchHandler(f.deps)
	ctx := context.Background()

	_, err := h.Handle(ctx, AcceptMatchCommand{MatchID: "missing", ActorID: "mentor"})
	assert.ErrorIs(t, err, shared.ErrMatchNotFound)

	_, err = h.Handle(ctx, AcceptMatchCommand{MatchID: "m-1", ActorID: "someone-else"})
	assert.ErrorIs(t, err, shared.ErrNotAssignedMentor)

	_, err = h.Handle(ctx, AcceptMatchCommand{MatchID: "m-1"})
	assert.True(t, shared.IsValidation(err))

	_, err = h.Handle(ctx, AcceptMatchCommand{MatchID: "m-1", ActorID: "mentor"})
	require.NoError(t, err)

	_, err = h.Handle(ctx, AcceptMatchCommand{MatchID: "m-1", ActorID: "mentor"})
	assert.ErrorIs(t, err, shared.ErrInvalidMatchState)
}

func TestAcceptMatch_CollaborationSpaceFailureIsNotFatal(t *testing.T) {
	f := newFixture(20)
	f.deps.Spaces = stubSpaces{err: errors.New("workspace api down")}
	f.pending("m-1", "mentee", "mentor", mentorship.TypePreferred, 1)

	match, err := NewAcceptMatchHandler(f.deps).Handle(context.Background(), AcceptMatchCommand{MatchID: "m-1", ActorID: "mentor"})
	require.NoError(t, err)

	assert.Equal(t, mentorship.StatusAccepted, match.Status)
	assert.Empty(t, match.CollaborationSpaceID)
	assert.Len(t, f.notifier.mentee, 1)
}

func TestAcceptMatch_ConcurrentAcceptsNeverExceedCapacity(t *testing.T) {
	const capacity = 2
	const pending = 5

	f := newFixture(capacity)
	for i := 0; i < pending; i++ {
		f.pending(fmt.Sprintf("m-%d", i), fmt.Sprintf("mentee-%d", i), "mentor", mentorship.TypePreferred, 1)
	}

	h := NewAcceptMatchHandler(f.deps)

	var (
		wg         sync.WaitGroup
		mu         sync.Mutex
		accepted   int
		refused    int
		unexpected []error
	)
	for i := 0; i < pending; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := h.Handle(context.Background(), AcceptMatchCommand{MatchID: fmt.Sprintf("m-%d", i), ActorID: "mentor"})

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, shared.ErrCapacityExceeded):
				refused++
			default:
				unexpected = append(unexpected, err)
			}
		}(i)
	}
	wg.Wait()

	assert.Empty(t, unexpected)
	assert.Equal(t, capacity, accepted)
	assert.Equal(t, pending-capacity, refused)

	count, err := f.store.CountAccepted(context.Background(), "prog", "mentor")
	require.NoError(t, err)
	assert.Equal(t, capacity, count)

	stillPending, err := f.store.List(context.Background(), mentorship.MatchFilter{
		ProgramID: "prog",
		Statuses:  []mentorship.Status{mentorship.StatusPending},
	})
	require.NoError(t, err)
	assert.Len(t, stillPending, pending-capacity)
}

// ══════════════════════════════════════════════════════════════════════════════
// REJECT
// ══════════════════════════════════════════════════════════════════════════════

func TestRejectMatch_CascadesPreferredOnly(t *testing.T) {
	f := newFixture(20)
	f.pending("pref", "mentee-1", "mentor", mentorship.TypePreferred, 1)
	f.pending("algo", "mentee-2", "mentor", mentorship.TypeAlgorithm, 0)

	reassigner := &recordingReassigner{}
	h := NewRejectMatchHandler(f.deps, reassigner)
	ctx := context.Background()

	match, err := h.Handle(ctx, RejectMatchCommand{MatchID: "pref", ActorID: "mentor", Reason: "  no time this quarter  "})
	require.NoError(t, err)
	assert.Equal(t, mentorship.StatusRejected, match.Status)
	assert.Equal(t, "no time this quarter", match.RejectionReason)

	_, err = h.Handle(ctx, RejectMatchCommand{MatchID: "algo", ActorID: "mentor"})
	require.NoError(t, err)

	assert.Equal(t, []string{"pref"}, reassigner.calls)

	stored, err := f.store.GetByID(ctx, "algo")
	require.NoError(t, err)
	assert.Equal(t, mentorship.StatusRejected, stored.Status)
}

// cancelOnCommit cancels the request context right after the status change is stored.
type cancelOnCommit struct {
	mentorship.MatchRepository
	cancel context.CancelFunc
}

func (c cancelOnCommit) Transition(ctx context.Context, m *mentorship.Match, from mentorship.Status) error {
	err := c.MatchRepository.Transition(ctx, m, from)
	c.cancel()
	return err
}

func TestRejectMatch_CascadeSurvivesCallerCancellation(t *testing.T) {
	f := newFixture(20)
	f.pending("pref", "mentee", "mentor", mentorship.TypePreferred, 1)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	f.deps.Matches = cancelOnCommit{MatchRepository: f.store, cancel: cancel}

	reassigner := &recordingReassigner{}
	_, err := NewRejectMatchHandler(f.deps, reassigner).Handle(ctx, RejectMatchCommand{MatchID: "pref", ActorID: "mentor"})
	require.NoError(t, err)
	require.Error(t, ctx.Err())

	assert.Equal(t, []string{"pref"}, reassigner.calls)
	assert.Equal(t, []error{nil}, reassigner.ctxErrs)
}

func TestRejectMatch_AlgorithmCascadeWhenEnabled(t *testing.T) {
	f := newFixture(20)
	f.deps.Config.CascadeAlgorithmMatches = true
	f.pending("algo", "mentee", "mentor", mentorship.TypeAlgorithm, 0)

	reassigner := &recordingReassigner{}
	_, err := NewRejectMatchHandler(f.deps, reassigner).Handle(context.Background(), RejectMatchCommand{MatchID: "algo", ActorID: "mentor"})
	require.NoError(t, err)

	assert.Equal(t, []string{"algo"}, reassigner.calls)
}

func TestRejectMatch_Errors(t *testing.T) {
	f := newFixture(20)
	f.pending("m-1", "mentee", "mentor", mentorship.TypePreferred, 1)
	reassigner := &recordingReassigner{}
	h := NewRejectMatchHandler(f.deps, reassigner)
	ctx := context.Background()

	_, err := h.Handle(ctx, RejectMatchCommand{MatchID: "m-1", ActorID: "intruder"})
	assert.ErrorIs(t, err, shared.ErrNotAssignedMentor)

	_, err = NewAcceptMatchHandler(f.deps).Handle(ctx, AcceptMatchCommand{MatchID: "m-1", ActorID: "mentor"})
	require.NoError(t, err)

	_, err = h.Handle(ctx, RejectMatchCommand{MatchID: "m-1", ActorID: "mentor"})
	assert.ErrorIs(t, err, shared.ErrInvalidMatchState)
	assert.Empty(t, reassigner.calls)
}

// ══════════════════════════════════════════════════════════════════════════════
// MANUAL
// ══════════════════════════════════════════════════════════════════════════════

func TestManualMatch(t *testing.T) {
	f := newFixture(20)
	f.mentor("mentor", mentorship.Profile{Industry: "Technology"})
	f.mentee("mentee", "mentor", "b", "c")

	match, err := NewManualMatchHandler(f.deps).Handle(context.Background(), ManualMatchCommand{
		ProgramID:     "prog",
		MenteeID:      "mentee",
		MentorID:      "mentor",
		CoordinatorID: "coordinator-1",
	})
	require.NoError(t, err)

	assert.Equal(t, mentorship.TypeManual, match.Type)
	assert.Equal(t, mentorship.StatusAccepted, match.Status)
	assert.Zero(t, match.PreferredChoiceOrder)
	assert.Equal(t, "coordinator-1", match.CreatedBy)
	assert.Equal(t, "space-"+match.ID, match.CollaborationSpaceID)
	assert.Equal(t, []string{match.ID}, f.notifier.mentee)
	assert.Empty(t, f.notifier.mentor)
}

func TestManualMatch_Errors(t *testing.T) {
	f := newFixture(1)
	f.mentor("mentor", mentorship.Profile{})
	f.mentee("mentee-1", "mentor", "b", "c")
	f.mentee("mentee-2", "mentor", "b", "c")
	f.mentee("mentee-3", "mentor", "b", "c")
	h := NewManualMatchHandler(f.deps)
	ctx := context.Background()

	cmd := func(menteeID, mentorID string) ManualMatchCommand {
		return ManualMatchCommand{ProgramID: "prog", MenteeID: menteeID, MentorID: mentorID, CoordinatorID: "coord"}
	}

	_, err := h.Handle(ctx, cmd("mentee-1", "ghost"))
	assert.ErrorIs(t, err, shared.ErrMentorNotFound)

	_, err = h.Handle(ctx, cmd("ghost", "mentor"))
	assert.ErrorIs(t, err, shared.ErrMenteeNotFound)

	_, err = h.Handle(ctx, cmd("mentee-1", "mentor"))
	require.NoError(t, err)

	_, err = h.Handle(ctx, cmd("mentee-2", "mentor"))
	assert.ErrorIs(t, err, shared.ErrCapacityExceeded)

	// mentee-3 already waits on a pending match with another mentor.
	f.pending("p-3", "mentee-3", "other", mentorship.TypePreferred, 1)
	f.deps.Config.MaxMenteesPerMentor = 5
	f.store.AddProgram(mentorship.Program{ID: "prog", MaxMenteesPerMentor: 5})
	_, err = NewManualMatchHandler(f.deps).Handle(ctx, cmd("mentee-3", "mentor"))
	assert.ErrorIs(t, err, shared.ErrActiveMatchExists)
}
