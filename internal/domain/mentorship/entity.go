// Package mentorship содержит доменную модель подбора менторов:
// заявки на пару (Match), кандидатов, программу, расчёт совместимости и ранжирование.
// Пакет не зависит от инфраструктуры; хранилище и уведомления описаны интерфейсами.
package mentorship

import (
	"strings"
	"time"

	"github.com/alem-hub/mentorship-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MATCH STATUS
// ══════════════════════════════════════════════════════════════════════════════

// Status определяет состояние пары ментор-менти.
type Status string

const (
	// StatusPending - ожидает ответа ментора.
	StatusPending Status = "PENDING_MENTOR_ACCEPTANCE"

	// StatusAccepted - ментор принял менти (или пара создана координатором).
	StatusAccepted Status = "ACCEPTED"

	// StatusRejected - ментор отказался.
	StatusRejected Status = "REJECTED"

	// StatusAutoRejected - ментор не ответил в срок.
	StatusAutoRejected Status = "AUTO_REJECTED"
)

// AllStatuses перечисляет все состояния.
var AllStatuses = []Status{StatusPending, StatusAccepted, StatusRejected, StatusAutoRejected}

// IsValid проверяет корректность статуса.
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected, StatusAutoRejected:
		return true
	}
	return false
}

// IsActive - пара занимает менти (не более одной активной на программу).
func (s Status) IsActive() bool {
	return s == StatusPending || s == StatusAccepted
}

// IsFinal - терминальный статус для этой записи.
func (s Status) IsFinal() bool {
	return s == StatusAccepted || s == StatusRejected || s == StatusAutoRejected
}

// IsFailed - пара не состоялась.
func (s Status) IsFailed() bool {
	return s == StatusRejected || s == StatusAutoRejected
}

// String возвращает строковое представление.
func (s Status) String() string {
	return string(s)
}

// ParseStatus разбирает статус без учёта регистра.
func ParseStatus(v string) (Status, error) {
	s := Status(strings.ToUpper(strings.TrimSpace(v)))
	if !s.IsValid() {
		return "", shared.WrapError("mentorship", "ParseStatus", shared.ErrInvalidInput, "unknown match status "+v, nil)
	}
	return s, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MATCH TYPE
// ══════════════════════════════════════════════════════════════════════════════

// Type определяет происхождение пары.
type Type string

const (
	// TypePreferred - ментор из списка предпочтений менти.
	TypePreferred Type = "PREFERRED"

	// TypeAlgorithm - ментор выбран по наибольшей совместимости.
	TypeAlgorithm Type = "ALGORITHM"

	// TypeManual - пара создана координатором.
	TypeManual Type = "MANUAL"
)

// IsValid проверяет корректность типа.
func (t Type) IsValid() bool {
	return t == TypePreferred || t == TypeAlgorithm || t == TypeManual
}

// String возвращает строковое представление.
func (t Type) String() string {
	return string(t)
}

// ParseType разбирает тип без учёта регистра.
func ParseType(v string) (Type, error) {
	t := Type(strings.ToUpper(strings.TrimSpace(v)))
	if !t.IsValid() {
		return "", shared.WrapError("mentorship", "ParseType", shared.ErrInvalidInput, "unknown match type "+v, nil)
	}
	return t, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// MATCH
// ══════════════════════════════════════════════════════════════════════════════

// AutoRejectReason - причина, записываемая при истечении срока ответа.
const AutoRejectReason = "No response received within 3 days"

// DefaultResponseWindow - срок ответа ментора.
const DefaultResponseWindow = 72 * time.Hour

// Match представляет предложенную или состоявшуюся пару ментор-менти.
// Записи никогда не удаляются: терминальные состояния нужны для аудита и статистики.
type Match struct {
	// ID - уникальный идентификатор (UUID).
	ID string

	// ProgramID - программа менторства.
	ProgramID string

	// MenteeID - менти.
	MenteeID string

	// MenteeRegistrationID - заявка менти в программе.
	MenteeRegistrationID string

	// MentorID - ментор.
	MentorID string

	// MentorRegistrationID - заявка ментора в программе.
	MentorRegistrationID string

	// Score - итоговая совместимость (0-100).
	Score shared.Score

	// Breakdown - оценки по факторам.
	Breakdown ScoreBreakdown

	// Type - происхождение пары.
	Type Type

	// PreferredChoiceOrder - позиция ментора в списке менти (1..3), 0 если не из списка.
	PreferredChoiceOrder int

	// Status - текущее состояние.
	Status Status

	// MatchedAt - когда пара создана.
	MatchedAt time.Time

	// MentorResponseAt - когда ментор ответил (nil пока нет ответа).
	MentorResponseAt *time.Time

	// AutoRejectAt - крайний срок ответа ментора.
	AutoRejectAt time.Time

	// RejectionReason - причина отказа.
	RejectionReason string

	// MenteeSelectedMentors - снимок списка предпочтений на момент создания.
	MenteeSelectedMentors []string

	// CollaborationSpaceID - пространство для общения, созданное после принятия.
	CollaborationSpaceID string

	// CreatedBy - координатор, создавший ручную пару.
	CreatedBy string

	// Version - версия записи для условных обновлений.
	Version int

	// UpdatedAt - время последнего изменения.
	UpdatedAt time.Time
}

// NewMatchParams содержит параметры для создания пары.
type NewMatchParams struct {
	ID                    string
	ProgramID             string
	Mentee                MenteeCandidate
	Mentor                MentorCandidate
	Breakdown             ScoreBreakdown
	Type                  Type
	PreferredChoiceOrder  int
	MenteeSelectedMentors []string
	Now                   time.Time
	ResponseWindow        time.Duration
	CreatedBy             string
}

// Validate проверяет параметры создания пары.
func (p NewMatchParams) Validate() error {
	ids := [][2]string{
		{"match_id", p.ID},
		{"program_id", p.ProgramID},
		{"mentee_id", p.Mentee.ID},
		{"mentee_registration_id", p.Mentee.RegistrationID},
		{"mentor_id", p.Mentor.ID},
		{"mentor_registration_id", p.Mentor.RegistrationID},
	}
	for _, id := range ids {
		if err := shared.ValidateID(id[0], id[1]); err != nil {
			return err
		}
	}
	if !p.Type.IsValid() {
		return shared.WrapError("mentorship", "NewMatch", shared.ErrInvalidInput, "invalid match type", nil)
	}
	if p.Now.IsZero() {
		return shared.WrapError("mentorship", "NewMatch", shared.ErrInvalidInput, "matched_at is required", nil)
	}
	return validateChoiceOrder(p.Type, p.PreferredChoiceOrder)
}

// validateChoiceOrder: позиция в списке задана тогда и только тогда, когда тип PREFERRED.
func validateChoiceOrder(t Type, order int) error {
	if t == TypePreferred {
		if order < 1 || order > PreferenceCount {
			return shared.WrapError("mentorship", "NewMatch", shared.ErrValueOutOfRange,
				"preferred match requires choice order 1..3", nil)
		}
		return nil
	}
	if order != 0 {
		return shared.WrapError("mentorship", "NewMatch", shared.ErrInvalidInput,
			"choice order is only allowed for preferred matches", nil)
	}
	return nil
}

// NewMatch создаёт пару в состоянии ожидания ответа ментора.
func NewMatch(p NewMatchParams) (*Match, error) {
	if p.Type == TypeManual {
		return nil, shared.WrapError("mentorship", "NewMatch", shared.ErrInvalidInput,
			"manual matches are created accepted", nil)
	}
	if err := p.Validate(); err != nil {
		return nil, err
	}

	window := p.ResponseWindow
	if window <= 0 {
		window = DefaultResponseWindow
	}

	m := newMatch(p)
	m.Status = StatusPending
	m.AutoRejectAt = p.Now.Add(window)
	return m, nil
}

// NewManualMatch создаёт пару, назначенную координатором. Пара сразу принята,
// но по-прежнему подчиняется ограничению ёмкости ментора.
func NewManualMatch(p NewMatchParams) (*Match, error) {
	p.Type = TypeManual
	p.PreferredChoiceOrder = 0
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if strings.TrimSpace(p.CreatedBy) == "" {
		return nil, shared.WrapError("mentorship", "NewManualMatch", shared.ErrInvalidInput, "coordinator is required", nil)
	}

	m := newMatch(p)
	m.Status = StatusAccepted
	m.AutoRejectAt = p.Now
	now := p.Now
	m.MentorResponseAt = &now
	return m, nil
}

func newMatch(p NewMatchParams) *Match {
	selected := p.MenteeSelectedMentors
	if selected == nil {
		selected = p.Mentee.Preferences
	}
	return &Match{
		ID:                    p.ID,
		ProgramID:             p.ProgramID,
		MenteeID:              p.Mentee.ID,
		MenteeRegistrationID:  p.Mentee.RegistrationID,
		MentorID:              p.Mentor.ID,
		MentorRegistrationID:  p.Mentor.RegistrationID,
		Score:                 p.Breakdown.Total,
		Breakdown:             p.Breakdown,
		Type:                  p.Type,
		PreferredChoiceOrder:  p.PreferredChoiceOrder,
		MatchedAt:             p.Now,
		MenteeSelectedMentors: append([]string(nil), selected...),
		CreatedBy:             p.CreatedBy,
		Version:               1,
		UpdatedAt:             p.Now,
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// STATE TRANSITIONS
// ══════════════════════════════════════════════════════════════════════════════

// Authorize проверяет, что действие выполняет назначенный ментор.
func (m *Match) Authorize(actorID string) error {
	if actorID == "" || actorID != m.MentorID {
		return shared.ErrNotAssignedMentor
	}
	return nil
}

// Accept переводит пару в ACCEPTED по решению ментора.
func (m *Match) Accept(actorID string, now time.Time) error {
	if err := m.Authorize(actorID); err != nil {
		return err
	}
	if m.Status != StatusPending {
		return shared.ErrInvalidMatchState
	}

	m.Status = StatusAccepted
	m.MentorResponseAt = &now
	m.touch(now)
	return nil
}

// Reject переводит пару в REJECTED по решению ментора.
func (m *Match) Reject(actorID, reason string, now time.Time) error {
	if err := m.Authorize(actorID); err != nil {
		return err
	}
	if m.Status != StatusPending {
		return shared.ErrInvalidMatchState
	}

	m.Status = StatusRejected
	m.MentorResponseAt = &now
	m.RejectionReason = strings.TrimSpace(reason)
	m.touch(now)
	return nil
}

// AutoReject закрывает просроченную пару без ответа ментора.
func (m *Match) AutoReject(now time.Time) error {
	if m.Status != StatusPending {
		return shared.ErrInvalidMatchState
	}
	if !m.IsOverdue(now) {
		return shared.WrapError("mentorship", "AutoReject", shared.ErrInvalidState, "response deadline has not passed", nil)
	}

	m.Status = StatusAutoRejected
	m.RejectionReason = AutoRejectReason
	m.touch(now)
	return nil
}

// IsOverdue - срок ответа истёк, а ответа нет.
func (m *Match) IsOverdue(now time.Time) bool {
	return m.Status == StatusPending && m.AutoRejectAt.Before(now)
}

// IsActive - пара занимает менти.
func (m *Match) IsActive() bool {
	return m.Status.IsActive()
}

// ShouldCascade - нужно ли искать замену после отказа.
// По умолчанию замена ищется только для пар из списка предпочтений.
func (m *Match) ShouldCascade(includeAlgorithm bool) bool {
	if !m.Status.IsFailed() {
		return false
	}
	switch m.Type {
	case TypePreferred:
		return true
	case TypeAlgorithm:
		return includeAlgorithm
	default:
		return false
	}
}

// Clone возвращает независимую копию.
func (m *Match) Clone() *Match {
	c := *m
	c.MenteeSelectedMentors = append([]string(nil), m.MenteeSelectedMentors...)
	if m.MentorResponseAt != nil {
		t := *m.MentorResponseAt
		c.MentorResponseAt = &t
	}
	return &c
}

func (m *Match) touch(now time.Time) {
	m.Version++
	m.UpdatedAt = now
}

// ══════════════════════════════════════════════════════════════════════════════
// EVENTS
// ══════════════════════════════════════════════════════════════════════════════

// NewMatchEvent строит доменное событие по текущему состоянию пары.
func NewMatchEvent(eventType shared.EventType, m *Match, at time.Time) shared.MatchEvent {
	return shared.MatchEvent{
		BaseEvent:            shared.NewBaseEventAt(eventType, m.ID, at),
		ProgramID:            m.ProgramID,
		MenteeID:             m.MenteeID,
		MentorID:             m.MentorID,
		MatchType:            m.Type.String(),
		Status:               m.Status.String(),
		Score:                m.Score.Float64(),
		PreferredChoiceOrder: m.PreferredChoiceOrder,
		Reason:               m.RejectionReason,
	}
}
