package mentorship

import (
	"context"
	"time"
)

// ══════════════════════════════════════════════════════════════════════════════
// REPOSITORY INTERFACES
// Контракты хранилища и внешних участников. Реализации находятся в infrastructure.
//
// Движок зависит только от узких интерфейсов чтения (одобренные заявки, число
// принятых менти) и от атомарных условных записей пар.
// ══════════════════════════════════════════════════════════════════════════════

// ProgramReader читает программы.
type ProgramReader interface {
	// GetProgram возвращает программу.
	// Возвращает ErrProgramNotFound, если программа не найдена.
	GetProgram(ctx context.Context, programID string) (Program, error)
}

// RegistrationReader читает одобренные заявки программы.
type RegistrationReader interface {
	// GetApprovedMentors возвращает одобренных менторов в порядке регистрации.
	// AcceptedCount не заполняется.
	GetApprovedMentors(ctx context.Context, programID string) ([]MentorCandidate, error)

	// GetApprovedMentees возвращает одобренных менти в порядке регистрации.
	GetApprovedMentees(ctx context.Context, programID string) ([]MenteeCandidate, error)

	// GetMentee возвращает одобренного менти программы.
	// Возвращает ErrMenteeNotFound, если заявки нет или она не одобрена.
	GetMentee(ctx context.Context, programID, menteeID string) (MenteeCandidate, error)

	// GetMentor возвращает одобренного ментора программы.
	// Возвращает ErrMentorNotFound, если заявки нет или она не одобрена.
	GetMentor(ctx context.Context, programID, mentorID string) (MentorCandidate, error)
}

// AcceptedCounter считает принятых менти.
type AcceptedCounter interface {
	// CountAccepted возвращает число пар ACCEPTED для ментора в программе.
	CountAccepted(ctx context.Context, programID, mentorID string) (int, error)

	// CountAcceptedByMentor возвращает снимок числа пар ACCEPTED по всем менторам.
	CountAcceptedByMentor(ctx context.Context, programID string) (map[string]int, error)
}

// MatchFilter - фильтр выборки пар.
type MatchFilter struct {
	ProgramID string
	MenteeID  string
	MentorID  string
	Statuses  []Status
	Types     []Type
	Limit     int
	Offset    int
}

// ExpiryCursor - позиция в выборке просроченных пар, упорядоченной по
// (AutoRejectAt, ID). Нулевое значение означает начало выборки.
type ExpiryCursor struct {
	AutoRejectAt time.Time
	ID           string
}

// IsZero сообщает, что курсор указывает на начало выборки.
func (c ExpiryCursor) IsZero() bool {
	return c.ID == "" && c.AutoRejectAt.IsZero()
}

// Before сообщает, что пара m идёт в выборке после курсора.
func (c ExpiryCursor) Before(m *Match) bool {
	if !m.AutoRejectAt.Equal(c.AutoRejectAt) {
		return c.AutoRejectAt.Before(m.AutoRejectAt)
	}
	return c.ID < m.ID
}

// CursorAfter возвращает курсор, указывающий на пару m.
func CursorAfter(m *Match) ExpiryCursor {
	return ExpiryCursor{AutoRejectAt: m.AutoRejectAt, ID: m.ID}
}

// ProgramStats - агрегаты по парам программы.
type ProgramStats struct {
	ProgramID    string
	ByStatus     map[Status]int
	ByType       map[Type]int
	AverageScore float64
	MentorLoad   map[string]int
	Total        int
}

// MatchRepository хранит пары.
type MatchRepository interface {
	AcceptedCounter

	// ─────────────────────────────────────────────────────────────────────────
	// Commands
	// ─────────────────────────────────────────────────────────────────────────

	// Create сохраняет новую пару в состоянии ожидания.
	// Возвращает ErrActiveMatchExists, если у менти уже есть активная пара
	// (ограничение уникальности хранилища).
	Create(ctx context.Context, m *Match) error

	// CreateAccepted атомарно проверяет ёмкость ментора и сохраняет принятую пару.
	// Возвращает ErrCapacityExceeded или ErrActiveMatchExists.
	CreateAccepted(ctx context.Context, m *Match, capacity int) error

	// Accept атомарно переводит ожидающую пару в ACCEPTED, если ёмкость позволяет.
	// Возвращает ErrInvalidMatchState, если пара уже не ожидает ответа,
	// ErrCapacityExceeded, если ментор заполнен.
	Accept(ctx context.Context, m *Match, capacity int) error

	// Transition записывает новое состояние, только если текущее равно from.
	// Возвращает ErrInvalidMatchState, если состояние уже изменилось.
	Transition(ctx context.Context, m *Match, from Status) error

	// SetCollaborationSpace сохраняет идентификатор пространства общения.
	SetCollaborationSpace(ctx context.Context, matchID, spaceID string) error

	// ─────────────────────────────────────────────────────────────────────────
	// Queries
	// ─────────────────────────────────────────────────────────────────────────

	// GetByID возвращает пару.
	// Возвращает ErrMatchNotFound, если пара не найдена.
	GetByID(ctx context.Context, id string) (*Match, error)

	// GetActiveForMentee возвращает активную пару менти в программе.
	// Возвращает ErrMatchNotFound, если активной пары нет.
	GetActiveForMentee(ctx context.Context, programID, menteeID string) (*Match, error)

	// ListAttemptedMentors возвращает всех менторов, которым предлагали менти.
	ListAttemptedMentors(ctx context.Context, programID, menteeID string) ([]string, error)

	// ListExpiredPending возвращает ожидающие пары с истёкшим сроком ответа,
	// идущие после курсора, в порядке (AutoRejectAt, ID).
	ListExpiredPending(ctx context.Context, now time.Time, after ExpiryCursor, limit int) ([]*Match, error)

	// List возвращает пары по фильтру, новые первыми.
	List(ctx context.Context, filter MatchFilter) ([]*Match, error)

	// Stats возвращает агрегаты по программе.
	Stats(ctx context.Context, programID string) (ProgramStats, error)
}

// ══════════════════════════════════════════════════════════════════════════════
// EXTERNAL COLLABORATORS
// ══════════════════════════════════════════════════════════════════════════════

// Notifier отправляет уведомления участникам. Ошибки не откатывают переходы.
type Notifier interface {
	// NotifyMentorOfMatch сообщает ментору о новой паре.
	NotifyMentorOfMatch(ctx context.Context, m *Match) error

	// NotifyMenteeOfAcceptance сообщает менти, что ментор принял пару.
	NotifyMenteeOfAcceptance(ctx context.Context, m *Match) error

	// NotifyCoordinatorsManualMatchingRequired просит координаторов подобрать пару вручную.
	NotifyCoordinatorsManualMatchingRequired(ctx context.Context, program Program, menteeID string) error
}

// CollaborationSpaces создаёт пространство общения для принятой пары.
type CollaborationSpaces interface {
	// CreateCollaborationSpace возвращает идентификатор созданного пространства.
	CreateCollaborationSpace(ctx context.Context, matchID string) (string, error)
}

// MentorLocker сериализует решения по ёмкости одного ментора.
type MentorLocker interface {
	// LockMentor блокирует ментора в программе и возвращает функцию разблокировки.
	LockMentor(ctx context.Context, programID, mentorID string) (unlock func(), err error)
}

// Contact - адрес участника для уведомлений.
type Contact struct {
	Email string
	Name  string
}

// ContactDirectory отдаёт контакты участников по их заявкам.
type ContactDirectory interface {
	// MentorContact возвращает контакт ментора в программе.
	MentorContact(ctx context.Context, programID, mentorID string) (Contact, error)

	// MenteeContact возвращает контакт менти в программе.
	MenteeContact(ctx context.Context, programID, menteeID string) (Contact, error)
}
