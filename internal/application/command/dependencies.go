// Package command contains write operations (CQRS - Commands) of the matching engine.
// Every operation is a plain function over injected ports returning a result value;
// transport layers are thin adapters on top.
package command

import (
	"context"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/alem-hub/mentorship-engine/internal/domain/mentorship"
	"github.com/alem-hub/mentorship-engine/internal/domain/shared"
	"github.com/alem-hub/mentorship-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// SHARED DEPENDENCIES
// ══════════════════════════════════════════════════════════════════════════════

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	GenerateID() string
}

// UUIDGenerator generates random UUIDs.
type UUIDGenerator struct{}

// GenerateID implements IDGenerator.
func (UUIDGenerator) GenerateID() string {
	return uuid.New().String()
}

// Dependencies groups the ports every command handler needs.
type Dependencies struct {
	Matches       mentorship.MatchRepository
	Registrations mentorship.RegistrationReader
	Programs      mentorship.ProgramReader
	Notifier      mentorship.Notifier
	Spaces        mentorship.CollaborationSpaces
	Locker        mentorship.MentorLocker
	Events        shared.EventPublisher
	IDs           IDGenerator
	Clock         timeutil.Clock
	Logger        *slog.Logger
	Config        mentorship.Config
}

// withDefaults fills optional collaborators.
func (d Dependencies) withDefaults() Dependencies {
	if d.Events == nil {
		d.Events = shared.NoopPublisher{}
	}
	if d.IDs == nil {
		d.IDs = UUIDGenerator{}
	}
	if d.Clock == nil {
		d.Clock = timeutil.SystemClock{}
	}
	if d.Logger == nil {
		d.Logger = slog.Default()
	}
	if d.Notifier == nil {
		d.Notifier = NoopNotifier{}
	}
	if d.Spaces == nil {
		d.Spaces = NoopSpaces{}
	}
	if d.Locker == nil {
		d.Locker = NewLocalLocker()
	}
	if d.Config.MaxMenteesPerMentor <= 0 {
		d.Config.MaxMenteesPerMentor = mentorship.DefaultMaxMenteesPerMentor
	}
	if d.Config.ResponseWindow <= 0 {
		d.Config.ResponseWindow = mentorship.DefaultResponseWindow
	}
	if d.Config.Concurrency <= 0 {
		d.Config.Concurrency = 1
	}
	if d.Config.SweepBatchSize <= 0 {
		d.Config.SweepBatchSize = 200
	}
	if d.Config.Weights == (mentorship.Weights{}) {
		d.Config.Weights = mentorship.DefaultWeights()
	}
	return d
}

// NoopNotifier discards notifications.
type NoopNotifier struct{}

func (NoopNotifier) NotifyMentorOfMatch(context.Context, *mentorship.Match) error      { return nil }
func (NoopNotifier) NotifyMenteeOfAcceptance(context.Context, *mentorship.Match) error { return nil }
func (NoopNotifier) NotifyCoordinatorsManualMatchingRequired(context.Context, mentorship.Program, string) error {
	return nil
}

// NoopSpaces never creates collaboration spaces.
type NoopSpaces struct{}

func (NoopSpaces) CreateCollaborationSpace(context.Context, string) (string, error) { return "", nil }

// publish sends an event; failures are logged only.
func (d Dependencies) publish(event shared.Event) {
	if err := d.Events.Publish(event); err != nil {
		d.Logger.Warn("failed to publish event",
			"event_type", event.EventType(),
			"aggregate_id", event.AggregateID(),
			"error", err,
		)
	}
}

// loadMentors returns approved mentors with a fresh accepted-count snapshot.
func (d Dependencies) loadMentors(ctx context.Context, programID string) ([]mentorship.MentorCandidate, error) {
	mentors, err := d.Registrations.GetApprovedMentors(ctx, programID)
	if err != nil {
		return nil, err
	}
	counts, err := d.Matches.CountAcceptedByMentor(ctx, programID)
	if err != nil {
		return nil, err
	}
	return mentorship.WithAcceptedCounts(mentors, counts), nil
}

// ══════════════════════════════════════════════════════════════════════════════
// LOCAL LOCKER
// ══════════════════════════════════════════════════════════════════════════════

// LocalLocker serializes per-mentor decisions inside one process.
type LocalLocker struct {
	mu    sync.Mutex
	locks map[string]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

// NewLocalLocker creates a keyed in-process locker.
func NewLocalLocker() *LocalLocker {
	return &LocalLocker{locks: make(map[string]*lockEntry)}
}

// LockMentor implements mentorship.MentorLocker.
func (l *LocalLocker) LockMentor(ctx context.Context, programID, mentorID string) (func(), error) {
	key := programID + ":" + mentorID

	l.mu.Lock()
	e, ok := l.locks[key]
	if !ok {
		e = &lockEntry{}
		l.locks[key] = e
	}
	e.refs++
	l.mu.Unlock()

	e.mu.Lock()

	if err := ctx.Err(); err != nil {
		l.release(key, e)
		return nil, err
	}

	var once sync.Once
	return func() { once.Do(func() { l.release(key, e) }) }, nil
}

func (l *LocalLocker) release(key string, e *lockEntry) {
	e.mu.Unlock()

	l.mu.Lock()
	e.refs--
	if e.refs == 0 {
		delete(l.locks, key)
	}
	l.mu.Unlock()
}
