package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/alem-hub/mentorship-engine/internal/domain/mentorship"
	"github.com/alem-hub/mentorship-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// LIST MATCHES QUERY
// Выборка пар по программе, менти или ментору с фильтром по статусу и типу.
// ══════════════════════════════════════════════════════════════════════════════

const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// ListMatchesQuery содержит параметры выборки.
type ListMatchesQuery struct {
	// ProgramID - программа.
	ProgramID string

	// MenteeID - только пары этого менти.
	MenteeID string

	// MentorID - только пары этого ментора.
	MentorID string

	// Statuses - допустимые статусы (пусто = все).
	Statuses []string

	// Types - допустимые типы (пусто = все).
	Types []string

	// Limit - размер страницы (по умолчанию 50, максимум 200).
	Limit int

	// Offset - смещение.
	Offset int
}

// Validate проверяет параметры и нормализует пагинацию.
func (q *ListMatchesQuery) Validate() error {
	if q.ProgramID == "" && q.MenteeID == "" && q.MentorID == "" {
		return shared.NewDomainError("query", "ListMatches", shared.ErrInvalidInput,
			"one of program_id, mentee_id or mentor_id is required")
	}
	if q.Offset < 0 {
		return shared.NewDomainError("query", "ListMatches", shared.ErrNegativeValue, "offset cannot be negative")
	}
	if q.Limit <= 0 {
		q.Limit = defaultListLimit
	}
	if q.Limit > maxListLimit {
		q.Limit = maxListLimit
	}
	return nil
}

func (q ListMatchesQuery) filter() (mentorship.MatchFilter, error) {
	f := mentorship.MatchFilter{
		ProgramID: q.ProgramID,
		MenteeID:  q.MenteeID,
		MentorID:  q.MentorID,
		Limit:     q.Limit,
		Offset:    q.Offset,
	}

	var errs []error
	for _, raw := range q.Statuses {
		s, err := mentorship.ParseStatus(raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		f.Statuses = append(f.Statuses, s)
	}
	for _, raw := range q.Types {
		t, err := mentorship.ParseType(raw)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		f.Types = append(f.Types, t)
	}
	return f, errors.Join(errs...)
}

// ListMatchesResult - страница пар.
type ListMatchesResult struct {
	Matches []MatchDTO `json:"matches"`
	Limit   int        `json:"limit"`
	Offset  int        `json:"offset"`
}

// ListMatchesHandler обрабатывает ListMatchesQuery.
type ListMatchesHandler struct {
	matches mentorship.MatchRepository
}

// NewListMatchesHandler создаёт обработчик.
func NewListMatchesHandler(matches mentorship.MatchRepository) *ListMatchesHandler {
	return &ListMatchesHandler{matches: matches}
}

// Handle выполняет запрос.
func (h *ListMatchesHandler) Handle(ctx context.Context, q ListMatchesQuery) (*ListMatchesResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("list_matches: %w", err)
	}
	f, err := q.filter()
	if err != nil {
		return nil, fmt.Errorf("list_matches: %w", err)
	}

	matches, err := h.matches.List(ctx, f)
	if err != nil {
		return nil, fmt.Errorf("list_matches: %w", err)
	}

	return &ListMatchesResult{
		Matches: NewMatchDTOs(matches),
		Limit:   q.Limit,
		Offset:  q.Offset,
	}, nil
}

// ══════════════════════════════════════════════════════════════════════════════
// GET MATCH QUERY
// ══════════════════════════════════════════════════════════════════════════════

// GetMatchHandler возвращает одну пару по ID.
type GetMatchHandler struct {
	matches mentorship.MatchRepository
}

// NewGetMatchHandler создаёт обработчик.
func NewGetMatchHandler(matches mentorship.MatchRepository) *GetMatchHandler {
	return &GetMatchHandler{matches: matches}
}

// Handle выполняет запрос.
func (h *GetMatchHandler) Handle(ctx context.Context, matchID string) (*MatchDTO, error) {
	if err := shared.ValidateID("match_id", matchID); err != nil {
		return nil, fmt.Errorf("get_match: %w", err)
	}
	m, err := h.matches.GetByID(ctx, matchID)
	if err != nil {
		return nil, fmt.Errorf("get_match: %w", err)
	}
	dto := NewMatchDTO(m)
	return &dto, nil
}
