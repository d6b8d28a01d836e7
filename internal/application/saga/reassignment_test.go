package saga

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/mentorship-engine/internal/application/command"
	"github.com/alem-hub/mentorship-engine/internal/domain/mentorship"
	"github.com/alem-hub/mentorship-engine/internal/domain/shared"
	"github.com/alem-hub/mentorship-engine/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/mentorship-engine/pkg/timeutil"
)

var now = time.Date(2026, 5, 11, 14, 30, 0, 0, time.UTC)

type counterIDs struct{ n atomic.Int64 }

func (c *counterIDs) GenerateID() string { return fmt.Sprintf("match-%d", c.n.Add(1)) }

type coordinatorInbox struct {
	mu       sync.Mutex
	requests []string
	proposed []string
}

func (c *coordinatorInbox) NotifyMentorOfMatch(_ context.Context, m *mentorship.Match) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.proposed = append(c.proposed, m.MentorID)
	return nil
}

func (c *coordinatorInbox) NotifyMenteeOfAcceptance(context.Context, *mentorship.Match) error {
	return nil
}

func (c *coordinatorInbox) NotifyCoordinatorsManualMatchingRequired(_ context.Context, p mentorship.Program, menteeID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.requests = append(c.requests, p.ID+"/"+menteeID)
	return nil
}

type capturedEvents struct {
	mu    sync.Mutex
	types []shared.EventType
}

func (c *capturedEvents) Publish(e shared.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.types = append(c.types, e.EventType())
	return nil
}

type env struct {
	store  *memory.Store
	inbox  *coordinatorInbox
	events *capturedEvents
	deps   command.Dependencies
	saga   *ReassignmentSaga
}

func newEnv(mentorIDs ...string) *env {
	store := memory.NewStore()
	store.AddProgram(mentorship.Program{ID: "prog", Coordinators: []string{"staff@example.org"}})
	for _, id := range mentorIDs {
		store.AddMentor("prog", mentorship.MentorCandidate{ID: id, RegistrationID: "reg-" + id})
	}
	store.AddMentee("prog", mentorship.MenteeCandidate{
		ID:             "mentee",
		RegistrationID: "reg-mentee",
		Preferences:    []string{"A", "B", "C"},
	})

	inbox := &coordinatorInbox{}
	events := &capturedEvents{}
	deps := command.Dependencies{
		Matches:       store,
		Registrations: store,
		Programs:      store,
		Notifier:      inbox,
		Events:        events,
		IDs:           &counterIDs{},
		Clock:         timeutil.NewFixedClock(now),
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		Config:        mentorship.DefaultConfig(),
	}

	saga := NewReassignmentSaga(ReassignmentDependencies{
		Matches:       store,
		Registrations: store,
		Programs:      store,
		Notifier:      inbox,
		Events:        events,
		Proposer:      command.NewProposer(deps),
		Clock:         deps.Clock,
		Logger:        deps.Logger,
	})

	return &env{store: store, inbox: inbox, events: events, deps: deps, saga: saga}
}

// initiate runs batch matching and returns the mentee's pending match.
func (e *env) initiate(t *testing.T) *mentorship.Match {
	t.Helper()
	_, err := command.NewInitiateMatchingHandler(e.deps, nil).Handle(context.Background(), command.InitiateMatchingCommand{ProgramID: "prog"})
	require.NoError(t, err)

	m, err := e.store.GetActiveForMentee(context.Background(), "prog", "mentee")
	require.NoError(t, err)
	return m
}

func (e *env) reject(t *testing.T, m *mentorship.Match) *mentorship.Match {
	t.Helper()
	rejected, err := command.NewRejectMatchHandler(e.deps, e.saga).Handle(context.Background(), command.RejectMatchCommand{
		MatchID: m.ID,
		ActorID: m.MentorID,
		Reason:  "not available",
	})
	require.NoError(t, err)
	return rejected
}

func TestReassignment_CascadesThroughPreferences(t *testing.T) {
	e := newEnv("A", "B", "C", "D")

	first := e.initiate(t)
	assert.Equal(t, "A", first.MentorID)
	assert.Equal(t, 1, first.PreferredChoiceOrder)

	e.reject(t, first)

	second, err := e.store.GetActiveForMentee(context.Background(), "prog", "mentee")
	require.NoError(t, err)
	assert.Equal(t, "B", second.MentorID)
	assert.Equal(t, mentorship.TypePreferred, second.Type)
	assert.Equal(t, 2, second.PreferredChoiceOrder)
	assert.Equal(t, first.MenteeSelectedMentors, second.MenteeSelectedMentors)

	e.reject(t, second)

	third, err := e.store.GetActiveForMentee(context.Background(), "prog", "mentee")
	require.NoError(t, err)
	assert.Equal(t, "C", third.MentorID)
	assert.Equal(t, 3, third.PreferredChoiceOrder)

	e.reject(t, third)

	fourth, err := e.store.GetActiveForMentee(context.Background(), "prog", "mentee")
	require.NoError(t, err)
	assert.Equal(t, "D", fourth.MentorID)
	assert.Equal(t, mentorship.TypeAlgorithm, fourth.Type)
	assert.Zero(t, fourth.PreferredChoiceOrder)

	// ALGORITHM matches do not cascade by default.
	e.reject(t, fourth)
	_, err = e.store.GetActiveForMentee(context.Background(), "prog", "mentee")
	assert.ErrorIs(t, err, shared.ErrMatchNotFound)
	assert.Empty(t, e.inbox.requests)

	assert.Equal(t, []string{"A", "B", "C", "D"}, e.inbox.proposed)
}

func TestReassignment_UsesSnapshotNotCurrentPreferences(t *testing.T) {
	e := newEnv("A", "B", "C", "Z")
	first := e.initiate(t)

	// The mentee edits preferences after the first proposal.
	e.store.AddMentee("prog", mentorship.MenteeCandidate{
		ID: "mentee", RegistrationID: "reg-mentee", Preferences: []string{"Z", "A", "B"},
	})

	e.reject(t, first)

	next, err := e.store.GetActiveForMentee(context.Background(), "prog", "mentee")
	require.NoError(t, err)
	assert.Equal(t, "B", next.MentorID)
	assert.Equal(t, []string{"A", "B", "C"}, next.MenteeSelectedMentors)
}

func TestReassignment_NoCandidateNotifiesCoordinatorsOnce(t *testing.T) {
	e := newEnv("A")
	first := e.initiate(t)

	e.reject(t, first)

	assert.Equal(t, []string{"prog/mentee"}, e.inbox.requests)
	assert.Contains(t, e.events.types, shared.EventManualMatchingRequired)

	_, err := e.store.GetActiveForMentee(context.Background(), "prog", "mentee")
	assert.ErrorIs(t, err, shared.ErrMatchNotFound)
}

func TestReassignment_StopsWhenMenteeAlreadyMatched(t *testing.T) {
	e := newEnv("A", "B")
	first := e.initiate(t)

	require.NoError(t, first.Reject("A", "", now))
	require.NoError(t, e.store.Transition(context.Background(), first, mentorship.StatusPending))

	// A coordinator matched the mentee manually in the meantime.
	_, err := command.NewManualMatchHandler(e.deps).Handle(context.Background(), command.ManualMatchCommand{
		ProgramID: "prog", MenteeID: "mentee", MentorID: "B", CoordinatorID: "staff",
	})
	require.NoError(t, err)

	res, err := e.saga.Execute(context.Background(), first)
	require.NoError(t, err)
	assert.Equal(t, OutcomeAlreadyMatched, res.Outcome)
	assert.Empty(t, e.inbox.requests)
}

func TestReassignment_RequiresFailedMatch(t *testing.T) {
	e := newEnv("A")
	first := e.initiate(t)

	_, err := e.saga.Execute(context.Background(), first)
	assert.ErrorIs(t, err, shared.ErrInvalidMatchState)
}

func TestReassignment_AfterAutoReject(t *testing.T) {
	e := newEnv("A", "B")
	first := e.initiate(t)

	clock := timeutil.NewFixedClock(now.Add(73 * time.Hour))
	e.deps.Clock = clock

	res, err := command.NewExpireMatchesHandler(e.deps, e.saga, nil).Handle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, res.Expired)
	assert.Equal(t, 1, res.Cascaded)

	expired, err := e.store.GetByID(context.Background(), first.ID)
	require.NoError(t, err)
	assert.Equal(t, mentorship.StatusAutoRejected, expired.Status)

	next, err := e.store.GetActiveForMentee(context.Background(), "prog", "mentee")
	require.NoError(t, err)
	assert.Equal(t, "B", next.MentorID)
}
