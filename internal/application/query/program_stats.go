package query

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/alem-hub/mentorship-engine/internal/domain/mentorship"
	"github.com/alem-hub/mentorship-engine/internal/domain/shared"
	"github.com/alem-hub/mentorship-engine/pkg/timeutil"
)

// ══════════════════════════════════════════════════════════════════════════════
// GET PROGRAM STATS QUERY
// Агрегаты по программе: статусы, типы, средняя оценка, загрузка менторов.
// Результат кэшируется; кэш сбрасывается событиями пар.
// ══════════════════════════════════════════════════════════════════════════════

// MentorLoadDTO - загрузка одного ментора.
type MentorLoadDTO struct {
	MentorID  string `json:"mentor_id"`
	Accepted  int    `json:"accepted"`
	Capacity  int    `json:"capacity"`
	Remaining int    `json:"remaining"`
}

// ProgramStatsDTO - статистика подбора по программе.
type ProgramStatsDTO struct {
	// ProgramID - программа.
	ProgramID string `json:"program_id"`

	// Total - всего пар (включая отклонённые).
	Total int `json:"total"`

	// ByStatus - количество пар по статусу.
	ByStatus map[string]int `json:"by_status"`

	// ByType - количество пар по типу.
	ByType map[string]int `json:"by_type"`

	// AverageScore - средняя оценка совместимости.
	AverageScore float64 `json:"average_score"`

	// MentorLoad - загрузка менторов, самые загруженные первыми.
	MentorLoad []MentorLoadDTO `json:"mentor_load"`

	// GeneratedAt - когда посчитано.
	GeneratedAt time.Time `json:"generated_at"`
}

// StatsCache хранит посчитанную статистику.
type StatsCache interface {
	// GetStats возвращает found=false при промахе.
	GetStats(ctx context.Context, programID string) (stats *ProgramStatsDTO, found bool, err error)

	// SetStats сохраняет статистику.
	SetStats(ctx context.Context, stats *ProgramStatsDTO) error

	// InvalidateStats сбрасывает кэш программы.
	InvalidateStats(ctx context.Context, programID string) error
}

// GetProgramStatsHandler обрабатывает запрос статистики.
type GetProgramStatsHandler struct {
	programs mentorship.ProgramReader
	matches  mentorship.MatchRepository
	cache    StatsCache
	clock    timeutil.Clock
	fallback int
	logger   *slog.Logger
}

// NewGetProgramStatsHandler создаёт обработчик. cache может быть nil.
func NewGetProgramStatsHandler(
	programs mentorship.ProgramReader,
	matches mentorship.MatchRepository,
	cache StatsCache,
	cfg mentorship.Config,
	clock timeutil.Clock,
	logger *slog.Logger,
) *GetProgramStatsHandler {
	if clock == nil {
		clock = timeutil.SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &GetProgramStatsHandler{
		programs: programs,
		matches:  matches,
		cache:    cache,
		clock:    clock,
		fallback: cfg.MaxMenteesPerMentor,
		logger:   logger,
	}
}

// Handle выполняет запрос.
func (h *GetProgramStatsHandler) Handle(ctx context.Context, programID string) (*ProgramStatsDTO, error) {
	if err := shared.ValidateID("program_id", programID); err != nil {
		return nil, fmt.Errorf("program_stats: %w", err)
	}

	if h.cache != nil {
		cached, found, err := h.cache.GetStats(ctx, programID)
		if err != nil {
			h.logger.Warn("stats cache read failed", "program_id", programID, "error", err)
		} else if found {
			return cached, nil
		}
	}

	program, err := h.programs.GetProgram(ctx, programID)
	if err != nil {
		return nil, fmt.Errorf("program_stats: %w", err)
	}
	stats, err := h.matches.Stats(ctx, programID)
	if err != nil {
		return nil, fmt.Errorf("program_stats: %w", err)
	}

	dto := h.toDTO(stats, program.Capacity(h.fallback))

	if h.cache != nil {
		if err := h.cache.SetStats(ctx, dto); err != nil {
			h.logger.Warn("stats cache write failed", "program_id", programID, "error", err)
		}
	}
	return dto, nil
}

func (h *GetProgramStatsHandler) toDTO(stats mentorship.ProgramStats, capacity int) *ProgramStatsDTO {
	dto := &ProgramStatsDTO{
		ProgramID:    stats.ProgramID,
		Total:        stats.Total,
		ByStatus:     make(map[string]int, len(mentorship.AllStatuses)),
		ByType:       make(map[string]int, 3),
		AverageScore: stats.AverageScore,
		MentorLoad:   make([]MentorLoadDTO, 0, len(stats.MentorLoad)),
		GeneratedAt:  h.clock.Now(),
	}
	for _, s := range mentorship.AllStatuses {
		dto.ByStatus[s.String()] = stats.ByStatus[s]
	}
	for t, n := range stats.ByType {
		dto.ByType[t.String()] = n
	}
	for mentorID, accepted := range stats.MentorLoad {
		remaining := capacity - accepted
		if remaining < 0 {
			remaining = 0
		}
		dto.MentorLoad = append(dto.MentorLoad, MentorLoadDTO{
			MentorID:  mentorID,
			Accepted:  accepted,
			Capacity:  capacity,
			Remaining: remaining,
		})
	}
	sort.Slice(dto.MentorLoad, func(i, j int) bool {
		if dto.MentorLoad[i].Accepted != dto.MentorLoad[j].Accepted {
			return dto.MentorLoad[i].Accepted > dto.MentorLoad[j].Accepted
		}
		return dto.MentorLoad[i].MentorID < dto.MentorLoad[j].MentorID
	})
	return dto
}

// ══════════════════════════════════════════════════════════════════════════════
// CACHE INVALIDATION
// ══════════════════════════════════════════════════════════════════════════════

// StatsInvalidator drops cached stats when a match changes.
type StatsInvalidator struct {
	cache  StatsCache
	logger *slog.Logger
}

// NewStatsInvalidator creates an invalidator for the given cache.
func NewStatsInvalidator(cache StatsCache, logger *slog.Logger) *StatsInvalidator {
	if logger == nil {
		logger = slog.Default()
	}
	return &StatsInvalidator{cache: cache, logger: logger}
}

// Handle implements shared.EventHandler.
func (i *StatsInvalidator) Handle(event shared.Event) error {
	var programID string
	switch e := event.(type) {
	case shared.MatchEvent:
		programID = e.ProgramID
	case *shared.MatchEvent:
		programID = e.ProgramID
	default:
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := i.cache.InvalidateStats(ctx, programID); err != nil {
		i.logger.Warn("stats cache invalidation failed", "program_id", programID, "error", err)
		return err
	}
	return nil
}

// Register subscribes the invalidator to every event that changes program stats.
func (i *StatsInvalidator) Register(sub shared.EventSubscriber) error {
	for _, t := range []shared.EventType{
		shared.EventMatchProposed,
		shared.EventMatchAccepted,
		shared.EventMatchRejected,
		shared.EventMatchAutoRejected,
		shared.EventManualMatchCreated,
	} {
		if err := sub.Subscribe(t, i.Handle); err != nil {
			return err
		}
	}
	return nil
}
