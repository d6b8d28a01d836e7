package mentorship

import (
	"strings"

	"github.com/alem-hub/mentorship-engine/internal/domain/shared"
)

// PreferenceCount - сколько менторов менти выбирает при регистрации.
const PreferenceCount = 3

// Profile - атрибуты анкеты, участвующие в расчёте совместимости.
type Profile struct {
	// Company - компания (место работы).
	Company string

	// Industry - отрасль.
	Industry string

	// Programme - учебная программа или факультет.
	Programme string

	// Tags - интересы менти или области менторства ментора.
	Tags []string
}

// MenteeCandidate - проекция одобренной заявки менти для подбора.
type MenteeCandidate struct {
	// ID - идентификатор менти.
	ID string

	// RegistrationID - идентификатор заявки.
	RegistrationID string

	// Preferences - упорядоченный список из трёх менторов.
	Preferences []string

	// Profile - анкета.
	Profile Profile
}

// Validate проверяет заявку менти.
func (m MenteeCandidate) Validate() error {
	if err := shared.ValidateID("mentee_id", m.ID); err != nil {
		return err
	}
	if err := shared.ValidateID("mentee_registration_id", m.RegistrationID); err != nil {
		return err
	}
	return ValidatePreferences(m.Preferences)
}

// ValidatePreferences: ровно три непустых различных ментора.
func ValidatePreferences(prefs []string) error {
	if len(prefs) != PreferenceCount {
		return shared.ErrInvalidPreferences
	}
	seen := make(map[string]struct{}, len(prefs))
	for _, id := range prefs {
		id = strings.TrimSpace(id)
		if id == "" {
			return shared.ErrInvalidPreferences
		}
		if _, dup := seen[id]; dup {
			return shared.ErrInvalidPreferences
		}
		seen[id] = struct{}{}
	}
	return nil
}

// PreferenceRank возвращает позицию ментора (1..3) в списке или 0.
func PreferenceRank(prefs []string, mentorID string) int {
	for i, id := range prefs {
		if i >= PreferenceCount {
			break
		}
		if id == mentorID {
			return i + 1
		}
	}
	return 0
}

// MentorCandidate - проекция одобренной заявки ментора для подбора.
type MentorCandidate struct {
	// ID - идентификатор ментора.
	ID string

	// RegistrationID - идентификатор заявки.
	RegistrationID string

	// Profile - анкета.
	Profile Profile

	// AcceptedCount - число принятых менти в программе (вычисляется из пар).
	AcceptedCount int
}

// WithAcceptedCounts проставляет ментору число принятых менти из снимка.
func WithAcceptedCounts(mentors []MentorCandidate, counts map[string]int) []MentorCandidate {
	out := make([]MentorCandidate, len(mentors))
	for i, m := range mentors {
		m.AcceptedCount = counts[m.ID]
		out[i] = m
	}
	return out
}
