// Package memory provides an in-process implementation of the matching store.
// It enforces the same uniqueness and capacity rules as the Postgres schema under
// a single mutex and is used for tests, local development and the CLI dry-run.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/alem-hub/mentorship-engine/internal/domain/mentorship"
	"github.com/alem-hub/mentorship-engine/internal/domain/shared"
)

// Store keeps programs, approved registrations and matches in memory.
type Store struct {
	mu       sync.RWMutex
	programs map[string]mentorship.Program
	mentors  map[string][]mentorship.MentorCandidate
	mentees  map[string][]mentorship.MenteeCandidate
	matches  map[string]*mentorship.Match
	order    []string
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{
		programs: make(map[string]mentorship.Program),
		mentors:  make(map[string][]mentorship.MentorCandidate),
		mentees:  make(map[string][]mentorship.MenteeCandidate),
		matches:  make(map[string]*mentorship.Match),
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// SEEDING
// ══════════════════════════════════════════════════════════════════════════════

// AddProgram registers a program.
func (s *Store) AddProgram(p mentorship.Program) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.programs[p.ID] = p
}

// AddMentor registers an approved mentor for a program, replacing an earlier
// registration with the same ID.
func (s *Store) AddMentor(programID string, m mentorship.MentorCandidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	m.AcceptedCount = 0
	list := s.mentors[programID]
	for i := range list {
		if list[i].ID == m.ID {
			list[i] = m
			return
		}
	}
	s.mentors[programID] = append(list, m)
}

// AddMentee registers an approved mentee for a program, replacing an earlier
// registration with the same ID.
func (s *Store) AddMentee(programID string, m mentorship.MenteeCandidate) {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.mentees[programID]
	for i := range list {
		if list[i].ID == m.ID {
			list[i] = m
			return
		}
	}
	s.mentees[programID] = append(list, m)
}

// ══════════════════════════════════════════════════════════════════════════════
// PROGRAM / REGISTRATION READERS
// ══════════════════════════════════════════════════════════════════════════════

// GetProgram implements mentorship.ProgramReader.
func (s *Store) GetProgram(_ context.Context, programID string) (mentorship.Program, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.programs[programID]
	if !ok {
		return mentorship.Program{}, shared.ErrProgramNotFound
	}
	return p, nil
}

// ListPrograms returns programs whose matching deadline has not passed, by ID.
func (s *Store) ListPrograms(_ context.Context, now time.Time) ([]mentorship.Program, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]mentorship.Program, 0, len(s.programs))
	for _, p := range s.programs {
		if p.MatchingDeadline.IsZero() || !p.MatchingDeadline.Before(now) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// GetApprovedMentors implements mentorship.RegistrationReader.
func (s *Store) GetApprovedMentors(_ context.Context, programID string) ([]mentorship.MentorCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]mentorship.MentorCandidate(nil), s.mentors[programID]...), nil
}

// GetApprovedMentees implements mentorship.RegistrationReader.
func (s *Store) GetApprovedMentees(_ context.Context, programID string) ([]mentorship.MenteeCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]mentorship.MenteeCandidate(nil), s.mentees[programID]...), nil
}

// GetMentee implements mentorship.RegistrationReader.
func (s *Store) GetMentee(_ context.Context, programID, menteeID string) (mentorship.MenteeCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.mentees[programID] {
		if m.ID == menteeID {
			return m, nil
		}
	}
	return mentorship.MenteeCandidate{}, shared.ErrMenteeNotFound
}

// GetMentor implements mentorship.RegistrationReader.
func (s *Store) GetMentor(_ context.Context, programID, mentorID string) (mentorship.MentorCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, m := range s.mentors[programID] {
		if m.ID == mentorID {
			return m, nil
		}
	}
	return mentorship.MentorCandidate{}, shared.ErrMentorNotFound
}

// ══════════════════════════════════════════════════════════════════════════════
// MATCH REPOSITORY: COMMANDS
// ══════════════════════════════════════════════════════════════════════════════

// Create implements mentorship.MatchRepository.
func (s *Store) Create(_ context.Context, m *mentorship.Match) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertLocked(m)
}

// CreateAccepted implements mentorship.MatchRepository.
func (s *Store) CreateAccepted(_ context.Context, m *mentorship.Match, capacity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !mentorship.HasCapacity(s.countAcceptedLocked(m.ProgramID, m.MentorID), capacity) {
		return shared.ErrCapacityExceeded
	}
	return s.insertLocked(m)
}

func (s *Store) insertLocked(m *mentorship.Match) error {
	if _, exists := s.matches[m.ID]; exists {
		return shared.WrapError("mentorship", "CreateMatch", shared.ErrAlreadyExists, "duplicate match id", nil)
	}
	if m.Status.IsActive() && s.activeLocked(m.ProgramID, m.MenteeID) != nil {
		return shared.ErrActiveMatchExists
	}
	s.matches[m.ID] = m.Clone()
	s.order = append(s.order, m.ID)
	return nil
}

// Accept implements mentorship.MatchRepository.
func (s *Store) Accept(_ context.Context, m *mentorship.Match, capacity int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.matches[m.ID]
	if !ok {
		return shared.ErrMatchNotFound
	}
	if cur.Status != mentorship.StatusPending {
		return shared.ErrInvalidMatchState
	}
	if !mentorship.HasCapacity(s.countAcceptedLocked(cur.ProgramID, cur.MentorID), capacity) {
		return shared.ErrCapacityExceeded
	}
	s.matches[m.ID] = m.Clone()
	return nil
}

// Transition implements mentorship.MatchRepository.
func (s *Store) Transition(_ context.Context, m *mentorship.Match, from mentorship.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.matches[m.ID]
	if !ok {
		return shared.ErrMatchNotFound
	}
	if cur.Status != from {
		return shared.ErrInvalidMatchState
	}
	if m.Status.IsActive() && !from.IsActive() {
		if other := s.activeLocked(m.ProgramID, m.MenteeID); other != nil && other.ID != m.ID {
			return shared.ErrActiveMatchExists
		}
	}
	s.matches[m.ID] = m.Clone()
	return nil
}

// SetCollaborationSpace implements mentorship.MatchRepository.
func (s *Store) SetCollaborationSpace(_ context.Context, matchID, spaceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, ok := s.matches[matchID]
	if !ok {
		return shared.ErrMatchNotFound
	}
	cur.CollaborationSpaceID = spaceID
	return nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MATCH REPOSITORY: QUERIES
// ══════════════════════════════════════════════════════════════════════════════

// GetByID implements mentorship.MatchRepository.
func (s *Store) GetByID(_ context.Context, id string) (*mentorship.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.matches[id]
	if !ok {
		return nil, shared.ErrMatchNotFound
	}
	return m.Clone(), nil
}

// GetActiveForMentee implements mentorship.MatchRepository.
func (s *Store) GetActiveForMentee(_ context.Context, programID, menteeID string) (*mentorship.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if m := s.activeLocked(programID, menteeID); m != nil {
		return m.Clone(), nil
	}
	return nil, shared.ErrMatchNotFound
}

// ListAttemptedMentors implements mentorship.MatchRepository.
func (s *Store) ListAttemptedMentors(_ context.Context, programID, menteeID string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	seen := make(map[string]struct{})
	var out []string
	for _, id := range s.order {
		m := s.matches[id]
		if m.ProgramID != programID || m.MenteeID != menteeID {
			continue
		}
		if _, ok := seen[m.MentorID]; ok {
			continue
		}
		seen[m.MentorID] = struct{}{}
		out = append(out, m.MentorID)
	}
	return out, nil
}

// ListExpiredPending implements mentorship.MatchRepository.
func (s *Store) ListExpiredPending(_ context.Context, now time.Time, after mentorship.ExpiryCursor, limit int) ([]*mentorship.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*mentorship.Match
	for _, id := range s.order {
		m := s.matches[id]
		if m.Status == mentorship.StatusPending && m.AutoRejectAt.Before(now) && after.Before(m) {
			out = append(out, m.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return mentorship.CursorAfter(out[i]).Before(out[j])
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// List implements mentorship.MatchRepository.
func (s *Store) List(_ context.Context, f mentorship.MatchFilter) ([]*mentorship.Match, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []*mentorship.Match
	for i := len(s.order) - 1; i >= 0; i-- {
		m := s.matches[s.order[i]]
		if matchesFilter(m, f) {
			out = append(out, m.Clone())
		}
	}

	if f.Offset > 0 {
		if f.Offset >= len(out) {
			return nil, nil
		}
		out = out[f.Offset:]
	}
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

// CountAccepted implements mentorship.AcceptedCounter.
func (s *Store) CountAccepted(_ context.Context, programID, mentorID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.countAcceptedLocked(programID, mentorID), nil
}

// CountAcceptedByMentor implements mentorship.AcceptedCounter.
func (s *Store) CountAcceptedByMentor(_ context.Context, programID string) (map[string]int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	counts := make(map[string]int)
	for _, m := range s.matches {
		if m.ProgramID == programID && m.Status == mentorship.StatusAccepted {
			counts[m.MentorID]++
		}
	}
	return counts, nil
}

// Stats implements mentorship.MatchRepository.
func (s *Store) Stats(_ context.Context, programID string) (mentorship.ProgramStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := mentorship.ProgramStats{
		ProgramID:  programID,
		ByStatus:   make(map[mentorship.Status]int),
		ByType:     make(map[mentorship.Type]int),
		MentorLoad: make(map[string]int),
	}
	var sum float64
	for _, m := range s.matches {
		if m.ProgramID != programID {
			continue
		}
		stats.Total++
		stats.ByStatus[m.Status]++
		stats.ByType[m.Type]++
		sum += m.Score.Float64()
		if m.Status == mentorship.StatusAccepted {
			stats.MentorLoad[m.MentorID]++
		}
	}
	if stats.Total > 0 {
		stats.AverageScore = shared.Round1(sum / float64(stats.Total))
	}
	return stats, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// HELPERS
// ══════════════════════════════════════════════════════════════════════════════

func (s *Store) activeLocked(programID, menteeID string) *mentorship.Match {
	for _, m := range s.matches {
		if m.ProgramID == programID && m.MenteeID == menteeID && m.Status.IsActive() {
			return m
		}
	}
	return nil
}

func (s *Store) countAcceptedLocked(programID, mentorID string) int {
	n := 0
	for _, m := range s.matches {
		if m.ProgramID == programID && m.MentorID == mentorID && m.Status == mentorship.StatusAccepted {
			n++
		}
	}
	return n
}

func matchesFilter(m *mentorship.Match, f mentorship.MatchFilter) bool {
	if f.ProgramID != "" && m.ProgramID != f.ProgramID {
		return false
	}
	if f.MenteeID != "" && m.MenteeID != f.MenteeID {
		return false
	}
	if f.MentorID != "" && m.MentorID != f.MentorID {
		return false
	}
	if len(f.Statuses) > 0 && !containsStatus(f.Statuses, m.Status) {
		return false
	}
	if len(f.Types) > 0 && !containsType(f.Types, m.Type) {
		return false
	}
	return true
}

func containsStatus(list []mentorship.Status, s mentorship.Status) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}

func containsType(list []mentorship.Type, t mentorship.Type) bool {
	for _, v := range list {
		if v == t {
			return true
		}
	}
	return false
}
