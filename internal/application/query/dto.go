// Package query contains read operations (CQRS - Queries).
package query

import (
	"time"

	"github.com/alem-hub/mentorship-engine/internal/domain/mentorship"
)

// ══════════════════════════════════════════════════════════════════════════════
// DTO
// Представление пары для HTTP, CLI и событий. Только чтение.
// ══════════════════════════════════════════════════════════════════════════════

// MatchDTO - пара ментор-менти.
type MatchDTO struct {
	// ─────────────────────────────────────────────────────────────────────────
	// Идентификация
	// ─────────────────────────────────────────────────────────────────────────

	// ID - идентификатор пары.
	ID string `json:"id"`

	// ProgramID - программа.
	ProgramID string `json:"program_id"`

	// MenteeID - менти.
	MenteeID string `json:"mentee_id"`

	// MentorID - ментор.
	MentorID string `json:"mentor_id"`

	// ─────────────────────────────────────────────────────────────────────────
	// Подбор
	// ─────────────────────────────────────────────────────────────────────────

	// Type - PREFERRED, ALGORITHM или MANUAL.
	Type string `json:"match_type"`

	// PreferredChoiceOrder - позиция ментора в списке менти (только PREFERRED).
	PreferredChoiceOrder *int `json:"preferred_choice_order,omitempty"`

	// Score - итоговая оценка совместимости.
	Score float64 `json:"compatibility_score"`

	// Breakdown - оценки по факторам.
	Breakdown mentorship.ScoreBreakdown `json:"score_breakdown"`

	// MenteeSelectedMentors - снимок предпочтений на момент подбора.
	MenteeSelectedMentors []string `json:"mentee_selected_mentors"`

	// ─────────────────────────────────────────────────────────────────────────
	// Жизненный цикл
	// ─────────────────────────────────────────────────────────────────────────

	// Status - текущий статус.
	Status string `json:"status"`

	// MatchedAt - время создания.
	MatchedAt time.Time `json:"matched_at"`

	// MentorResponseAt - время ответа ментора.
	MentorResponseAt *time.Time `json:"mentor_response_at,omitempty"`

	// AutoRejectAt - срок ответа.
	AutoRejectAt time.Time `json:"auto_reject_at"`

	// RejectionReason - причина отказа.
	RejectionReason string `json:"rejection_reason,omitempty"`

	// CollaborationSpaceID - рабочее пространство пары.
	CollaborationSpaceID string `json:"collaboration_space_id,omitempty"`

	// CreatedBy - координатор для ручной пары.
	CreatedBy string `json:"created_by,omitempty"`
}

// NewMatchDTO converts a domain match.
func NewMatchDTO(m *mentorship.Match) MatchDTO {
	dto := MatchDTO{
		ID:                    m.ID,
		ProgramID:             m.ProgramID,
		MenteeID:              m.MenteeID,
		MentorID:              m.MentorID,
		Type:                  m.Type.String(),
		Score:                 m.Score.Float64(),
		Breakdown:             m.Breakdown,
		MenteeSelectedMentors: append([]string(nil), m.MenteeSelectedMentors...),
		Status:                m.Status.String(),
		MatchedAt:             m.MatchedAt,
		MentorResponseAt:      m.MentorResponseAt,
		AutoRejectAt:          m.AutoRejectAt,
		RejectionReason:       m.RejectionReason,
		CollaborationSpaceID:  m.CollaborationSpaceID,
		CreatedBy:             m.CreatedBy,
	}
	if m.PreferredChoiceOrder > 0 {
		order := m.PreferredChoiceOrder
		dto.PreferredChoiceOrder = &order
	}
	return dto
}

// NewMatchDTOs converts a slice of domain matches.
func NewMatchDTOs(matches []*mentorship.Match) []MatchDTO {
	out := make([]MatchDTO, 0, len(matches))
	for _, m := range matches {
		out = append(out, NewMatchDTO(m))
	}
	return out
}
