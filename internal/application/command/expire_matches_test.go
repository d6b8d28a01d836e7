package command

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/mentorship-engine/internal/domain/mentorship"
	"github.com/alem-hub/mentorship-engine/internal/infrastructure/persistence/memory"
)

type stubSweepLock struct {
	held     bool
	released int
}

func (l *stubSweepLock) TryLock(_ context.Context, _ string, _ time.Duration) (func(), bool, error) {
	if l.held {
		return nil, false, nil
	}
	l.held = true
	return func() {
		l.held = false
		l.released++
	}, true, nil
}

// failingTransitions rejects status changes of the listed matches.
type failingTransitions struct {
	*memory.Store
	fail map[string]bool
}

func (f failingTransitions) Transition(ctx context.Context, m *mentorship.Match, from mentorship.Status) error {
	if f.fail[m.ID] {
		return fmt.Errorf("connection reset")
	}
	return f.Store.Transition(ctx, m, from)
}

func TestExpireMatches(t *testing.T) {
	f := newFixture(20)
	f.pending("pref", "mentee-1", "mentor", mentorship.TypePreferred, 1)
	f.pending("algo", "mentee-2", "mentor", mentorship.TypeAlgorithm, 0)

	// proposed a day later, not overdue yet
	f.clock.Advance(24 * time.Hour)
	f.pending("fresh", "mentee-3", "mentor", mentorship.TypePreferred, 1)

	f.clock.Advance(48*time.Hour + time.Minute)

	reassigner := &recordingReassigner{}
	lock := &stubSweepLock{}
	h := NewExpireMatchesHandler(f.deps, reassigner, lock)

	res, err := h.Handle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, res.Scanned)
	assert.Equal(t, 2, res.Expired)
	assert.Equal(t, 1, res.Cascaded)
	assert.Zero(t, res.Errors)
	assert.Equal(t, []string{"pref"}, reassigner.calls)
	assert.Equal(t, 1, lock.released)

	for _, id := range []string{"pref", "algo"} {
		m, err := f.store.GetByID(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, mentorship.StatusAutoRejected, m.Status, id)
		assert.Equal(t, mentorship.AutoRejectReason, m.RejectionReason, id)
	}

	again, err := h.Handle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, again.Scanned)
	assert.Equal(t, []string{"pref"}, reassigner.calls)
}

func TestExpireMatches_DeadlineIsExclusive(t *testing.T) {
	f := newFixture(20)
	f.pending("m-1", "mentee", "mentor", mentorship.TypePreferred, 1)
	f.clock.Advance(72 * time.Hour)

	res, err := NewExpireMatchesHandler(f.deps, nil, nil).Handle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Expired)
}

func TestExpireMatches_PagesThroughBacklog(t *testing.T) {
	f := newFixture(20)
	f.deps.Config.SweepBatchSize = 2
	for i := 0; i < 5; i++ {
		f.pending(fmt.Sprintf("m-%d", i), fmt.Sprintf("mentee-%d", i), "mentor", mentorship.TypeAlgorithm, 0)
	}
	f.clock.Advance(100 * time.Hour)

	res, err := NewExpireMatchesHandler(f.deps, nil, nil).Handle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, res.Expired)
	assert.Zero(t, res.Cascaded)
}

func TestExpireMatches_LockContended(t *testing.T) {
	f := newFixture(20)
	f.pending("m-1", "mentee", "mentor", mentorship.TypePreferred, 1)
	f.clock.Advance(100 * time.Hour)

	lock := &stubSweepLock{held: true}
	res, err := NewExpireMatchesHandler(f.deps, &recordingReassigner{}, lock).Handle(context.Background())
	require.NoError(t, err)

	assert.True(t, res.LockContended)
	assert.Zero(t, res.Expired)

	m, err := f.store.GetByID(context.Background(), "m-1")
	require.NoError(t, err)
	assert.Equal(t, mentorship.StatusPending, m.Status)
}

func TestExpireMatches_RespondedMatchIsNotExpired(t *testing.T) {
	f := newFixture(20)
	f.pending("m-1", "mentee", "mentor", mentorship.TypePreferred, 1)

	_, err := NewAcceptMatchHandler(f.deps).Handle(context.Background(), AcceptMatchCommand{MatchID: "m-1", ActorID: "mentor"})
	require.NoError(t, err)

	f.clock.Advance(100 * time.Hour)
	res, err := NewExpireMatchesHandler(f.deps, nil, nil).Handle(context.Background())
	require.NoError(t, err)
	assert.Zero(t, res.Scanned)

	m, err := f.store.GetByID(context.Background(), "m-1")
	require.NoError(t, err)
	assert.Equal(t, mentorship.StatusAccepted, m.Status)
}

func TestExpireMatches_FailedPageDoesNotStopSweep(t *testing.T) {
	f := newFixture(20)
	f.deps.Config.SweepBatchSize = 2
	for i := 0; i < 5; i++ {
		f.pending(fmt.Sprintf("m-%d", i), fmt.Sprintf("mentee-%d", i), "mentor", mentorship.TypeAlgorithm, 0)
	}
	f.clock.Advance(100 * time.Hour)

	// the whole first page keeps failing
	f.deps.Matches = failingTransitions{Store: f.store, fail: map[string]bool{"m-0": true, "m-1": true}}

	res, err := NewExpireMatchesHandler(f.deps, nil, nil).Handle(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 5, res.Scanned)
	assert.Equal(t, 2, res.Errors)
	assert.Equal(t, 3, res.Expired)

	for i := 0; i < 5; i++ {
		id := fmt.Sprintf("m-%d", i)
		m, err := f.store.GetByID(context.Background(), id)
		require.NoError(t, err)
		if i < 2 {
			assert.Equal(t, mentorship.StatusPending, m.Status, id)
		} else {
			assert.Equal(t, mentorship.StatusAutoRejected, m.Status, id)
		}
	}

	// the failed matches are retried by the next run
	f.deps.Matches = f.store
	again, err := NewExpireMatchesHandler(f.deps, nil, nil).Handle(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, again.Scanned)
	assert.Equal(t, 2, again.Expired)
}
