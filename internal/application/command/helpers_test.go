package command

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alem-hub/mentorship-engine/internal/domain/mentorship"
	"github.com/alem-hub/mentorship-engine/internal/infrastructure/persistence/memory"
	"github.com/alem-hub/mentorship-engine/pkg/timeutil"
)

var testNow = time.Date(2026, 5, 4, 9, 0, 0, 0, time.UTC)

type seqIDs struct{ n atomic.Int64 }

func (s *seqIDs) GenerateID() string {
	return fmt.Sprintf("match-%d", s.n.Add(1))
}

type recordingNotifier struct {
	mu          sync.Mutex
	mentor      []string
	mentee      []string
	coordinator []string
	failMentor  bool
}

func (n *recordingNotifier) NotifyMentorOfMatch(_ context.Context, m *mentorship.Match) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.mentor = append(n.mentor, m.ID)
	if n.failMentor {
		return fmt.Errorf("smtp unavailable")
	}
	return nil
}

func (n *recordingNotifier) NotifyMenteeOfAcceptance(_ context.Context, m *mentorship.Match) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.mentee = append(n.mentee, m.ID)
	return nil
}

func (n *recordingNotifier) NotifyCoordinatorsManualMatchingRequired(_ context.Context, p mentorship.Program, menteeID string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.coordinator = append(n.coordinator, p.ID+"/"+menteeID)
	return nil
}

type stubSpaces struct {
	err error
}

func (s stubSpaces) CreateCollaborationSpace(_ context.Context, matchID string) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	return "space-" + matchID, nil
}

type recordingReassigner struct {
	mu      sync.Mutex
	calls   []string
	ctxErrs []error
}

func (r *recordingReassigner) Reassign(ctx context.Context, m *mentorship.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, m.ID)
	r.ctxErrs = append(r.ctxErrs, ctx.Err())
	return nil
}

type fixture struct {
	store    *memory.Store
	notifier *recordingNotifier
	clock    *timeutil.FixedClock
	deps     Dependencies
}

func newFixture(capacity int) *fixture {
	store := memory.NewStore()
	notifier := &recordingNotifier{}
	clock := timeutil.NewFixedClock(testNow)

	store.AddProgram(mentorship.Program{
		ID:                  "prog",
		Name:                "Alumni Mentoring 2026",
		MaxMenteesPerMentor: capacity,
		Coordinators:        []string{"coordinator@example.org"},
	})

	cfg := mentorship.DefaultConfig()
	cfg.Concurrency = 4

	return &fixture{
		store:    store,
		notifier: notifier,
		clock:    clock,
		deps: Dependencies{
			Matches:       store,
			Registrations: store,
			Programs:      store,
			Notifier:      notifier,
			Spaces:        stubSpaces{},
			IDs:           &seqIDs{},
			Clock:         clock,
			Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
			Config:        cfg,
		},
	}
}

func (f *fixture) mentor(id string, p mentorship.Profile) {
	f.store.AddMentor("prog", mentorship.MentorCandidate{ID: id, RegistrationID: "reg-" + id, Profile: p})
}

func (f *fixture) mentee(id string, prefs ...string) {
	f.store.AddMentee("prog", mentorship.MenteeCandidate{ID: id, RegistrationID: "reg-" + id, Preferences: prefs})
}

// pending inserts a pending match directly.
func (f *fixture) pending(id, menteeID, mentorID string, typ mentorship.Type, order int) *mentorship.Match {
	m, err := mentorship.NewMatch(mentorship.NewMatchParams{
		ID:        id,
		ProgramID: "prog",
		Mentee: mentorship.MenteeCandidate{
			ID: menteeID, RegistrationID: "reg-" + menteeID,
			Preferences: []string{mentorID, "x", "y"},
		},
		Mentor:               mentorship.MentorCandidate{ID: mentorID, RegistrationID: "reg-" + mentorID},
		Type:                 typ,
		PreferredChoiceOrder: order,
		Now:                  f.clock.Now(),
	})
	if err != nil {
		panic(err)
	}
	if err := f.store.Create(context.Background(), m); err != nil {
		panic(err)
	}
	return m
}
