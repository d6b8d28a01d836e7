package query

import (
	"context"
	"fmt"

	"github.com/alem-hub/mentorship-engine/internal/domain/mentorship"
	"github.com/alem-hub/mentorship-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// PREVIEW CANDIDATES QUERY
// Показывает координатору, как ранжировщик видит менторов для менти:
// оценки по факторам и причину исключения. Ничего не сохраняет.
// ══════════════════════════════════════════════════════════════════════════════

// PreviewCandidatesQuery содержит параметры предпросмотра.
type PreviewCandidatesQuery struct {
	ProgramID string
	MenteeID  string

	// Limit - сколько кандидатов вернуть (0 = все).
	Limit int
}

// Validate проверяет параметры.
func (q PreviewCandidatesQuery) Validate() error {
	if err := shared.ValidateID("program_id", q.ProgramID); err != nil {
		return err
	}
	if err := shared.ValidateID("mentee_id", q.MenteeID); err != nil {
		return err
	}
	if q.Limit < 0 {
		return shared.NewDomainError("query", "PreviewCandidates", shared.ErrNegativeValue, "limit cannot be negative")
	}
	return nil
}

// CandidateDTO - ментор глазами ранжировщика.
type CandidateDTO struct {
	MentorID    string                    `json:"mentor_id"`
	Company     string                    `json:"company,omitempty"`
	Industry    string                    `json:"industry,omitempty"`
	Breakdown   mentorship.ScoreBreakdown `json:"score_breakdown"`
	Eligibility string                    `json:"eligibility"`
	Accepted    int                       `json:"accepted"`
}

// PreviewCandidatesResult - результат предпросмотра.
type PreviewCandidatesResult struct {
	ProgramID string `json:"program_id"`
	MenteeID  string `json:"mentee_id"`

	// Preferences - снимок, с которым ранжирует каскад (или текущие предпочтения).
	Preferences []string `json:"preferences"`

	// Next - кого выберет ранжировщик прямо сейчас; nil если никого.
	Next *CandidateDTO `json:"next,omitempty"`

	// NextType - тип будущей пары.
	NextType string `json:"next_type,omitempty"`

	// Candidates - все менторы по убыванию итоговой оценки.
	Candidates []CandidateDTO `json:"candidates"`
}

// PreviewCandidatesHandler обрабатывает запрос предпросмотра.
type PreviewCandidatesHandler struct {
	programs      mentorship.ProgramReader
	registrations mentorship.RegistrationReader
	matches       mentorship.MatchRepository
	ranker        *mentorship.Ranker
	fallback      int
}

// NewPreviewCandidatesHandler создаёт обработчик.
func NewPreviewCandidatesHandler(
	programs mentorship.ProgramReader,
	registrations mentorship.RegistrationReader,
	matches mentorship.MatchRepository,
	cfg mentorship.Config,
) *PreviewCandidatesHandler {
	return &PreviewCandidatesHandler{
		programs:      programs,
		registrations: registrations,
		matches:       matches,
		ranker:        mentorship.NewRanker(mentorship.NewCalculator(cfg.Weights)),
		fallback:      cfg.MaxMenteesPerMentor,
	}
}

// Handle выполняет запрос.
func (h *PreviewCandidatesHandler) Handle(ctx context.Context, q PreviewCandidatesQuery) (*PreviewCandidatesResult, error) {
	if err := q.Validate(); err != nil {
		return nil, fmt.Errorf("preview_candidates: %w", err)
	}

	program, err := h.programs.GetProgram(ctx, q.ProgramID)
	if err != nil {
		return nil, fmt.Errorf("preview_candidates: %w", err)
	}
	mentee, err := h.registrations.GetMentee(ctx, program.ID, q.MenteeID)
	if err != nil {
		return nil, fmt.Errorf("preview_candidates: %w", err)
	}
	mentors, err := h.registrations.GetApprovedMentors(ctx, program.ID)
	if err != nil {
		return nil, fmt.Errorf("preview_candidates: %w", err)
	}
	counts, err := h.matches.CountAcceptedByMentor(ctx, program.ID)
	if err != nil {
		return nil, fmt.Errorf("preview_candidates: %w", err)
	}
	attempted, err := h.matches.ListAttemptedMentors(ctx, program.ID, mentee.ID)
	if err != nil {
		return nil, fmt.Errorf("preview_candidates: %w", err)
	}

	// The cascade ranks with the snapshot of the first match.
	prefs := mentee.Preferences
	history, err := h.matches.List(ctx, mentorship.MatchFilter{ProgramID: program.ID, MenteeID: mentee.ID})
	if err != nil {
		return nil, fmt.Errorf("preview_candidates: %w", err)
	}
	if n := len(history); n > 0 && len(history[n-1].MenteeSelectedMentors) > 0 {
		prefs = history[n-1].MenteeSelectedMentors
	}

	in := mentorship.RankInput{
		Mentee:      mentee,
		Preferences: prefs,
		Mentors:     mentorship.WithAcceptedCounts(mentors, counts),
		Excluded:    mentorship.ExclusionSet(attempted...),
		Capacity:    program.Capacity(h.fallback),
	}

	scored := h.ranker.ScoreAll(in)
	mentorship.SortByTotal(scored)

	result := &PreviewCandidatesResult{
		ProgramID:   program.ID,
		MenteeID:    mentee.ID,
		Preferences: append([]string(nil), prefs...),
		Candidates:  make([]CandidateDTO, 0, len(scored)),
	}
	for _, sm := range scored {
		result.Candidates = append(result.Candidates, toCandidateDTO(sm))
	}
	if q.Limit > 0 && len(result.Candidates) > q.Limit {
		result.Candidates = result.Candidates[:q.Limit]
	}

	if cand, ok := h.ranker.Rank(in); ok {
		next := toCandidateDTO(mentorship.ScoredMentor{
			Mentor:      cand.Mentor,
			Breakdown:   cand.Breakdown,
			Eligibility: mentorship.EligibilityEligible,
		})
		result.Next = &next
		result.NextType = cand.Type.String()
	}
	return result, nil
}

func toCandidateDTO(sm mentorship.ScoredMentor) CandidateDTO {
	return CandidateDTO{
		MentorID:    sm.Mentor.ID,
		Company:     sm.Mentor.Profile.Company,
		Industry:    sm.Mentor.Profile.Industry,
		Breakdown:   sm.Breakdown,
		Eligibility: string(sm.Eligibility),
		Accepted:    sm.Mentor.AcceptedCount,
	}
}
