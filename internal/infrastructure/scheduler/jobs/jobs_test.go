package jobs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
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

var (
	quiet = slog.New(slog.NewTextHandler(io.Discard, nil))
	now   = time.Date(2026, 6, 10, 8, 0, 0, 0, time.UTC)
)

type sweeperFunc func(ctx context.Context) (*command.ExpireMatchesResult, error)

func (f sweeperFunc) Handle(ctx context.Context) (*command.ExpireMatchesResult, error) {
	return f(ctx)
}

func TestExpireMatchesJob(t *testing.T) {
	result := &command.ExpireMatchesResult{Scanned: 3, Expired: 2, Errors: 1}
	job := NewExpireMatchesJob(sweeperFunc(func(context.Context) (*command.ExpireMatchesResult, error) {
		return result, nil
	}), quiet)

	assert.Equal(t, "expire_matches", job.Name())
	assert.NotEmpty(t, job.Description())
	assert.Nil(t, job.LastResult())

	require.NoError(t, job.Run(context.Background()))
	assert.Same(t, result, job.LastResult())
	assert.EqualValues(t, 1, job.Runs())

	failing := NewExpireMatchesJob(sweeperFunc(func(context.Context) (*command.ExpireMatchesResult, error) {
		return nil, errors.New("connection refused")
	}), quiet)
	err := failing.Run(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestExpireMatchesJobWithStore(t *testing.T) {
	store := memory.NewStore()
	store.AddProgram(mentorship.Program{ID: "prog"})
	m, err := mentorship.NewMatch(mentorship.NewMatchParams{
		ID:        "m1",
		ProgramID: "prog",
		Mentee: mentorship.MenteeCandidate{
			ID: "e1", RegistrationID: "re1", Preferences: []string{"A", "B", "C"},
		},
		Mentor:               mentorship.MentorCandidate{ID: "A", RegistrationID: "ra"},
		Type:                 mentorship.TypePreferred,
		PreferredChoiceOrder: 1,
		Now:                  now.Add(-100 * time.Hour),
	})
	require.NoError(t, err)
	require.NoError(t, store.Create(context.Background(), m))

	deps := command.Dependencies{
		Matches:       store,
		Registrations: store,
		Programs:      store,
		Clock:         timeutil.NewFixedClock(now),
		Logger:        quiet,
		Config:        mentorship.DefaultConfig(),
	}
	sweep := command.NewExpireMatchesHandler(deps, nil, nil)
	job := NewExpireMatchesJob(sweep, quiet)

	require.NoError(t, job.Run(context.Background()))
	require.NotNil(t, job.LastResult())
	assert.Equal(t, 1, job.LastResult().Expired)

	got, err := store.GetByID(context.Background(), "m1")
	require.NoError(t, err)
	assert.Equal(t, mentorship.StatusAutoRejected, got.Status)
}

type fakeInitiator struct {
	calls []string
	errs  map[string]error
}

func (f *fakeInitiator) Handle(_ context.Context, cmd command.InitiateMatchingCommand) (*command.InitiateMatchingResult, error) {
	f.calls = append(f.calls, cmd.ProgramID)
	if err := f.errs[cmd.ProgramID]; err != nil {
		return nil, err
	}
	return &command.InitiateMatchingResult{ProgramID: cmd.ProgramID, Pending: 2, NeedingManual: 1}, nil
}

type programList []mentorship.Program

func (p programList) ListPrograms(context.Context, time.Time) ([]mentorship.Program, error) {
	return p, nil
}

func TestInitiateMatchingJob(t *testing.T) {
	initiator := &fakeInitiator{errs: map[string]error{
		"closed": fmt.Errorf("initiate_matching: %w", shared.ErrMatchingWindowClosed),
		"broken": errors.New("db down"),
	}}
	programs := programList{{ID: "open"}, {ID: "closed"}, {ID: "broken"}, {ID: "off"}}

	job := NewInitiateMatchingJob(initiator, programs, timeutil.NewFixedClock(now), quiet, InitiateMatchingConfig{
		Enabled: func(id string) bool { return id != "off" },
	})
	require.NoError(t, job.Run(context.Background()))

	assert.Equal(t, []string{"open", "closed", "broken"}, initiator.calls)
	stats := job.LastStats()
	assert.Equal(t, 4, stats.Programs)
	assert.Equal(t, 1, stats.Disabled)
	assert.Equal(t, 1, stats.OutsideWindow)
	assert.Equal(t, 1, stats.Failed)
	assert.Equal(t, 2, stats.Pending)
	assert.Equal(t, 1, stats.NeedingManual)
	assert.Contains(t, stats.ProgramFailures, "broken")
}

func TestInitiateMatchingJobFailsWhenAllProgramsFail(t *testing.T) {
	initiator := &fakeInitiator{errs: map[string]error{"p1": errors.New("boom")}}
	job := NewInitiateMatchingJob(initiator, nil, timeutil.NewFixedClock(now), quiet, InitiateMatchingConfig{
		Programs: []string{"p1"},
	})

	err := job.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, []string{"p1"}, initiator.calls)
}
