package mentorship

import (
	"time"

	"github.com/alem-hub/mentorship-engine/internal/domain/shared"
)

// DefaultMaxMenteesPerMentor - ёмкость ментора по умолчанию.
const DefaultMaxMenteesPerMentor = 20

// Program - программа менторства, как её видит движок подбора.
type Program struct {
	// ID - идентификатор программы.
	ID string

	// Name - название.
	Name string

	// MenteeRegistrationDeadline - окончание регистрации менти.
	MenteeRegistrationDeadline time.Time

	// MentorRegistrationDeadline - окончание регистрации менторов.
	MentorRegistrationDeadline time.Time

	// MatchingDeadline - крайний срок подбора.
	MatchingDeadline time.Time

	// MaxMenteesPerMentor - ёмкость ментора (0 - значение из конфигурации).
	MaxMenteesPerMentor int

	// Coordinators - адреса координаторов для ручного подбора.
	Coordinators []string
}

// Capacity возвращает ёмкость ментора в программе.
func (p Program) Capacity(fallback int) int {
	if p.MaxMenteesPerMentor > 0 {
		return p.MaxMenteesPerMentor
	}
	if fallback > 0 {
		return fallback
	}
	return DefaultMaxMenteesPerMentor
}

// CheckMatchingWindow: обе регистрации закрыты, срок подбора не прошёл.
func (p Program) CheckMatchingWindow(now time.Time) error {
	if !p.MenteeRegistrationDeadline.IsZero() && now.Before(p.MenteeRegistrationDeadline) {
		return shared.ErrMatchingWindowClosed
	}
	if !p.MentorRegistrationDeadline.IsZero() && now.Before(p.MentorRegistrationDeadline) {
		return shared.ErrMatchingWindowClosed
	}
	if !p.MatchingDeadline.IsZero() && now.After(p.MatchingDeadline) {
		return shared.ErrMatchingWindowClosed
	}
	return nil
}
