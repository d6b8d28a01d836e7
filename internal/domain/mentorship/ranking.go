package mentorship

import (
	"context"
	"sort"

	"github.com/alem-hub/mentorship-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// CANDIDATE RANKER
//
// Порядок выбора:
//   1. оценить всех одобренных менторов программы;
//   2. исключить уже опробованных;
//   3. исключить заполненных (Capacity Guard);
//   4. первый ментор из списка менти, оставшийся в пуле -> PREFERRED;
//   5. иначе ментор с наибольшим итогом -> ALGORITHM.
// При равенстве итогов побеждает ментор, стоящий раньше во входном списке.
// Порядок детерминирован намеренно: повторный запуск даёт тот же результат.
// ══════════════════════════════════════════════════════════════════════════════

// RankInput - входные данные ранжирования.
type RankInput struct {
	// Mentee - менти, для которого ищем ментора.
	Mentee MenteeCandidate

	// Preferences - список предпочтений (снимок при каскаде).
	Preferences []string

	// Mentors - одобренные менторы программы с числом принятых менти.
	Mentors []MentorCandidate

	// Excluded - менторы, которых уже предлагали этому менти.
	Excluded map[string]struct{}

	// Capacity - ёмкость ментора.
	Capacity int
}

// Candidate - выбранный ментор.
type Candidate struct {
	Mentor               MentorCandidate
	Breakdown            ScoreBreakdown
	Type                 Type
	PreferredChoiceOrder int
}

// Eligibility - почему ментор допущен или исключён.
type Eligibility string

const (
	// EligibilityEligible - ментор доступен.
	EligibilityEligible Eligibility = "eligible"

	// EligibilityExcluded - ментора уже предлагали.
	EligibilityExcluded Eligibility = "already_attempted"

	// EligibilityAtCapacity - ментор заполнен.
	EligibilityAtCapacity Eligibility = "at_capacity"
)

// ScoredMentor - ментор с оценкой и допуском.
type ScoredMentor struct {
	Mentor      MentorCandidate
	Breakdown   ScoreBreakdown
	Eligibility Eligibility
}

// Ranker выбирает лучшего кандидата.
type Ranker struct {
	calc *Calculator
}

// NewRanker создаёт ранжировщик.
func NewRanker(calc *Calculator) *Ranker {
	return &Ranker{calc: calc}
}

// Calculator возвращает калькулятор совместимости.
func (r *Ranker) Calculator() *Calculator {
	return r.calc
}

// Rank возвращает лучшего кандидата; false - кандидатов нет.
func (r *Ranker) Rank(in RankInput) (Candidate, bool) {
	pool := make(map[string]ScoredMentor, len(in.Mentors))
	eligible := make([]ScoredMentor, 0, len(in.Mentors))

	for _, sm := range r.ScoreAll(in) {
		if sm.Eligibility != EligibilityEligible {
			continue
		}
		if _, dup := pool[sm.Mentor.ID]; dup {
			continue
		}
		pool[sm.Mentor.ID] = sm
		eligible = append(eligible, sm)
	}

	if len(eligible) == 0 {
		return Candidate{}, false
	}

	for i, id := range in.Preferences {
		if i >= PreferenceCount {
			break
		}
		if sm, ok := pool[id]; ok {
			return Candidate{
				Mentor:               sm.Mentor,
				Breakdown:            sm.Breakdown,
				Type:                 TypePreferred,
				PreferredChoiceOrder: i + 1,
			}, true
		}
	}

	best := eligible[0]
	for _, sm := range eligible[1:] {
		if sm.Breakdown.Total > best.Breakdown.Total {
			best = sm
		}
	}
	return Candidate{
		Mentor:    best.Mentor,
		Breakdown: best.Breakdown,
		Type:      TypeAlgorithm,
	}, true
}

// ScoreAll оценивает всех менторов во входном порядке и отмечает допуск.
func (r *Ranker) ScoreAll(in RankInput) []ScoredMentor {
	out := make([]ScoredMentor, 0, len(in.Mentors))
	for _, mentor := range in.Mentors {
		sm := ScoredMentor{
			Mentor:      mentor,
			Breakdown:   r.calc.Score(in.Mentee, mentor, in.Preferences),
			Eligibility: EligibilityEligible,
		}
		switch {
		case isExcluded(in.Excluded, mentor.ID):
			sm.Eligibility = EligibilityExcluded
		case !HasCapacity(mentor.AcceptedCount, in.Capacity):
			sm.Eligibility = EligibilityAtCapacity
		}
		out = append(out, sm)
	}
	return out
}

// SortByTotal сортирует оценки по убыванию итога, сохраняя входной порядок при равенстве.
func SortByTotal(scored []ScoredMentor) {
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Breakdown.Total > scored[j].Breakdown.Total
	})
}

func isExcluded(excluded map[string]struct{}, id string) bool {
	if excluded == nil {
		return false
	}
	_, ok := excluded[id]
	return ok
}

// ExclusionSet строит множество исключённых менторов.
func ExclusionSet(ids ...string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		if id != "" {
			set[id] = struct{}{}
		}
	}
	return set
}

// ══════════════════════════════════════════════════════════════════════════════
// CAPACITY GUARD
// ══════════════════════════════════════════════════════════════════════════════

// HasCapacity - ментор может принять ещё одного менти.
func HasCapacity(accepted, capacity int) bool {
	return accepted < capacity
}

// CapacityGuard проверяет ёмкость по актуальным данным хранилища.
// Окончательная проверка выполняется атомарно в хранилище при принятии.
type CapacityGuard struct {
	counter AcceptedCounter
}

// NewCapacityGuard создаёт проверку ёмкости.
func NewCapacityGuard(counter AcceptedCounter) *CapacityGuard {
	return &CapacityGuard{counter: counter}
}

// Check возвращает ErrCapacityExceeded, если ментор заполнен.
func (g *CapacityGuard) Check(ctx context.Context, programID, mentorID string, capacity int) error {
	n, err := g.counter.CountAccepted(ctx, programID, mentorID)
	if err != nil {
		return err
	}
	if !HasCapacity(n, capacity) {
		return shared.ErrCapacityExceeded
	}
	return nil
}
