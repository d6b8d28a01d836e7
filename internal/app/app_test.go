package app

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/mentorship-engine/config"
	"github.com/alem-hub/mentorship-engine/internal/application/command"
	"github.com/alem-hub/mentorship-engine/internal/application/query"
	"github.com/alem-hub/mentorship-engine/internal/domain/mentorship"
	"github.com/alem-hub/mentorship-engine/internal/domain/shared"
	"github.com/alem-hub/mentorship-engine/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/mentorship-engine/pkg/timeutil"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg, err := config.Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	cfg.Database.URL = ""
	return cfg
}

func TestContainerWithMemoryStore(t *testing.T) {
	store := memory.NewStore()
	store.AddProgram(mentorship.Program{ID: "prog", MaxMenteesPerMentor: 1})
	store.AddMentor("prog", mentorship.MentorCandidate{ID: "A", RegistrationID: "ra"})
	store.AddMentor("prog", mentorship.MentorCandidate{ID: "B", RegistrationID: "rb"})
	store.AddMentee("prog", mentorship.MenteeCandidate{ID: "e1", RegistrationID: "r1", Preferences: []string{"A", "B", "C"}})

	now := time.Date(2026, 4, 1, 12, 0, 0, 0, time.UTC)
	c, err := New(context.Background(), testConfig(t), Options{
		Logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		Store:      store,
		Clock:      timeutil.NewFixedClock(now),
		SyncEvents: true,
	})
	require.NoError(t, err)
	defer c.Close()

	assert.Nil(t, c.DB)
	assert.Nil(t, c.Cache)
	assert.Nil(t, c.Community)

	result, err := c.InitiateMatching.Handle(context.Background(), command.InitiateMatchingCommand{ProgramID: "prog"})
	require.NoError(t, err)
	assert.Equal(t, 1, result.Pending)
	assert.EqualValues(t, 1, c.Bus.Metrics().Published(shared.EventMatchProposed))

	page, err := c.ListMatches.Handle(context.Background(), query.ListMatchesQuery{ProgramID: "prog"})
	require.NoError(t, err)
	require.Len(t, page.Matches, 1)
	assert.Equal(t, "A", page.Matches[0].MentorID)

	_, err = c.RejectMatch.Handle(context.Background(), command.RejectMatchCommand{
		MatchID: page.Matches[0].ID,
		ActorID: "A",
	})
	require.NoError(t, err)

	// the saga is wired into rejection
	active, err := store.GetActiveForMentee(context.Background(), "prog", "e1")
	require.NoError(t, err)
	assert.Equal(t, "B", active.MentorID)

	stats, err := c.ProgramStats.Handle(context.Background(), "prog")
	require.NoError(t, err)
	assert.Equal(t, 2, stats.Total)

	programs, err := c.Programs.ListPrograms(context.Background(), now)
	require.NoError(t, err)
	assert.Len(t, programs, 1)

	require.NoError(t, c.Close())
	require.NoError(t, c.Close())
}

func TestContainerFallsBackToMemoryWithoutDatabase(t *testing.T) {
	cfg := testConfig(t)
	cfg.Redis.Disabled = true

	c, err := New(context.Background(), cfg, Options{Logger: slog.New(slog.NewTextHandler(io.Discard, nil))})
	require.NoError(t, err)
	defer c.Close()

	_, err = c.GetMatch.Handle(context.Background(), "missing")
	assert.True(t, shared.IsNotFound(err))
}

func TestContainerRejectsInvalidMatchingConfig(t *testing.T) {
	cfg := testConfig(t)
	cfg.Matching.MaxMenteesPerMentor = -1

	_, err := New(context.Background(), cfg, Options{
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Store:  memory.NewStore(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "matching config")
}
