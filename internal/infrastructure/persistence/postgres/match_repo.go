package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/mentorship-engine/internal/domain/mentorship"
	"github.com/alem-hub/mentorship-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// MATCH REPOSITORY
// Capacity decisions run in a transaction that locks the mentor registration
// row first, so concurrent accepts for one mentor are serialized by the
// database even when the application-level lock is unavailable.
// ══════════════════════════════════════════════════════════════════════════════

// constraint names from migration 003
const (
	uqActivePerMentee = "matches_one_active_per_mentee"
	chkChoiceOrder    = "matches_choice_order_chk"
)

// MatchRepository implements mentorship.MatchRepository for PostgreSQL.
type MatchRepository struct {
	conn *Connection
}

// NewMatchRepository creates a new MatchRepository.
func NewMatchRepository(conn *Connection) *MatchRepository {
	return &MatchRepository{conn: conn}
}

const matchColumns = `
	id, program_id, mentee_id, mentee_registration_id, mentor_id, mentor_registration_id,
	compatibility_score, score_breakdown, match_type, preferred_choice_order, status,
	matched_at, mentor_response_at, auto_reject_at, rejection_reason,
	mentee_selected_mentors, collaboration_space_id, created_by, version, updated_at`

// ─────────────────────────────────────────────────────────────────────────────
// Commands
// ─────────────────────────────────────────────────────────────────────────────

// Create implements mentorship.MatchRepository.
func (r *MatchRepository) Create(ctx context.Context, m *mentorship.Match) error {
	return r.insert(ctx, r.conn, m)
}

// CreateAccepted implements mentorship.MatchRepository.
func (r *MatchRepository) CreateAccepted(ctx context.Context, m *mentorship.Match, capacity int) error {
	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if err := lockMentor(ctx, tx, m.MentorRegistrationID); err != nil {
			return err
		}
		if err := checkCapacity(ctx, tx, m.ProgramID, m.MentorID, capacity); err != nil {
			return err
		}
		return r.insert(ctx, tx, m)
	})
}

// Accept implements mentorship.MatchRepository.
func (r *MatchRepository) Accept(ctx context.Context, m *mentorship.Match, capacity int) error {
	return r.conn.WithTx(ctx, func(tx pgx.Tx) error {
		if err := lockMentor(ctx, tx, m.MentorRegistrationID); err != nil {
			return err
		}

		var status string
		err := tx.QueryRow(ctx, `SELECT status FROM matches WHERE id = $1 FOR UPDATE`, m.ID).Scan(&status)
		if err != nil {
			if IsNoRows(err) {
				return shared.ErrMatchNotFound
			}
			return fmt.Errorf("failed to lock match: %w", err)
		}
		if mentorship.Status(status) != mentorship.StatusPending {
			return shared.ErrInvalidMatchState
		}

		if err := checkCapacity(ctx, tx, m.ProgramID, m.MentorID, capacity); err != nil {
			return err
		}
		return r.update(ctx, tx, m, mentorship.StatusPending)
	})
}

// Transition implements mentorship.MatchRepository.
func (r *MatchRepository) Transition(ctx context.Context, m *mentorship.Match, from mentorship.Status) error {
	return r.update(ctx, r.conn, m, from)
}

// SetCollaborationSpace implements mentorship.MatchRepository.
func (r *MatchRepository) SetCollaborationSpace(ctx context.Context, matchID, spaceID string) error {
	tag, err := r.conn.Exec(ctx,
		`UPDATE matches SET collaboration_space_id = $2, updated_at = NOW() WHERE id = $1`,
		matchID, spaceID,
	)
	if err != nil {
		return fmt.Errorf("failed to set collaboration space: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return shared.ErrMatchNotFound
	}
	return nil
}

func (r *MatchRepository) insert(ctx context.Context, q Querier, m *mentorship.Match) error {
	breakdown, err := json.Marshal(m.Breakdown)
	if err != nil {
		return fmt.Errorf("failed to marshal breakdown: %w", err)
	}

	_, err = q.Exec(ctx, `INSERT INTO matches (`+matchColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18, $19, $20)`,
		m.ID, m.ProgramID, m.MenteeID, m.MenteeRegistrationID, m.MentorID, m.MentorRegistrationID,
		m.Score.Float64(), breakdown, string(m.Type), choiceOrder(m.PreferredChoiceOrder), string(m.Status),
		m.MatchedAt, m.MentorResponseAt, m.AutoRejectAt, m.RejectionReason,
		nonNil(m.MenteeSelectedMentors), m.CollaborationSpaceID, m.CreatedBy, m.Version, m.UpdatedAt,
	)
	switch {
	case err == nil:
		return nil
	case IsUniqueViolation(err, uqActivePerMentee):
		return shared.ErrActiveMatchExists
	case IsUniqueViolation(err):
		return shared.WrapError("mentorship", "CreateMatch", shared.ErrAlreadyExists, "duplicate match id", err)
	case IsCheckViolation(err, chkChoiceOrder):
		return shared.WrapError("mentorship", "CreateMatch", shared.ErrInvalidInput, "choice order does not match type", err)
	default:
		return fmt.Errorf("failed to insert match: %w", err)
	}
}

// update writes the mutable lifecycle fields if the stored status still equals from.
func (r *MatchRepository) update(ctx context.Context, q Querier, m *mentorship.Match, from mentorship.Status) error {
	tag, err := q.Exec(ctx, `
		UPDATE matches SET
			status = $3,
			mentor_response_at = $4,
			rejection_reason = $5,
			version = $6,
			updated_at = $7
		WHERE id = $1 AND status = $2`,
		m.ID, string(from), string(m.Status), m.MentorResponseAt, m.RejectionReason, m.Version, m.UpdatedAt,
	)
	if err != nil {
		if IsUniqueViolation(err, uqActivePerMentee) {
			return shared.ErrActiveMatchExists
		}
		return fmt.Errorf("failed to update match: %w", err)
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM matches WHERE id = $1)`, m.ID).Scan(&exists); err != nil {
		return fmt.Errorf("failed to check match: %w", err)
	}
	if !exists {
		return shared.ErrMatchNotFound
	}
	return shared.ErrInvalidMatchState
}

func lockMentor(ctx context.Context, tx pgx.Tx, registrationID string) error {
	var id string
	err := tx.QueryRow(ctx, `SELECT id FROM mentor_registrations WHERE id = $1 FOR UPDATE`, registrationID).Scan(&id)
	if err != nil {
		if IsNoRows(err) {
			return shared.ErrMentorNotFound
		}
		return fmt.Errorf("failed to lock mentor: %w", err)
	}
	return nil
}

func checkCapacity(ctx context.Context, q Querier, programID, mentorID string, capacity int) error {
	n, err := countAccepted(ctx, q, programID, mentorID)
	if err != nil {
		return err
	}
	if !mentorship.HasCapacity(n, capacity) {
		return shared.ErrCapacityExceeded
	}
	return nil
}

func countAccepted(ctx context.Context, q Querier, programID, mentorID string) (int, error) {
	var n int
	err := q.QueryRow(ctx,
		`SELECT COUNT(*) FROM matches WHERE program_id = $1 AND mentor_id = $2 AND status = $3`,
		programID, mentorID, string(mentorship.StatusAccepted),
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count accepted: %w", err)
	}
	return n, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Queries
// ─────────────────────────────────────────────────────────────────────────────

// CountAccepted implements mentorship.AcceptedCounter.
func (r *MatchRepository) CountAccepted(ctx context.Context, programID, mentorID string) (int, error) {
	return countAccepted(ctx, r.conn, programID, mentorID)
}

// CountAcceptedByMentor implements mentorship.AcceptedCounter.
func (r *MatchRepository) CountAcceptedByMentor(ctx context.Context, programID string) (map[string]int, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT mentor_id, COUNT(*)
		FROM matches
		WHERE program_id = $1 AND status = $2
		GROUP BY mentor_id`,
		programID, string(mentorship.StatusAccepted),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count accepted by mentor: %w", err)
	}
	defer rows.Close()

	out := make(map[string]int)
	for rows.Next() {
		var (
			id string
			n  int
		)
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		out[id] = n
	}
	return out, rows.Err()
}

// GetByID implements mentorship.MatchRepository.
func (r *MatchRepository) GetByID(ctx context.Context, id string) (*mentorship.Match, error) {
	return r.one(ctx, `SELECT `+matchColumns+` FROM matches WHERE id = $1`, id)
}

// GetActiveForMentee implements mentorship.MatchRepository.
func (r *MatchRepository) GetActiveForMentee(ctx context.Context, programID, menteeID string) (*mentorship.Match, error) {
	return r.one(ctx, `SELECT `+matchColumns+` FROM matches
		WHERE program_id = $1 AND mentee_id = $2 AND status IN ($3, $4)`,
		programID, menteeID, string(mentorship.StatusPending), string(mentorship.StatusAccepted),
	)
}

// ListAttemptedMentors implements mentorship.MatchRepository.
func (r *MatchRepository) ListAttemptedMentors(ctx context.Context, programID, menteeID string) ([]string, error) {
	rows, err := r.conn.Query(ctx, `
		SELECT mentor_id
		FROM matches
		WHERE program_id = $1 AND mentee_id = $2
		GROUP BY mentor_id
		ORDER BY MIN(matched_at)`,
		programID, menteeID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list attempted mentors: %w", err)
	}
	return pgx.CollectRows(rows, pgx.RowTo[string])
}

// ListExpiredPending implements mentorship.MatchRepository.
func (r *MatchRepository) ListExpiredPending(ctx context.Context, now time.Time, after mentorship.ExpiryCursor, limit int) ([]*mentorship.Match, error) {
	if limit <= 0 {
		limit = 200
	}
	if after.IsZero() {
		return r.many(ctx, `SELECT `+matchColumns+` FROM matches
			WHERE status = $1 AND auto_reject_at < $2
			ORDER BY auto_reject_at, id
			LIMIT $3`,
			string(mentorship.StatusPending), now, limit,
		)
	}
	return r.many(ctx, `SELECT `+matchColumns+` FROM matches
		WHERE status = $1 AND auto_reject_at < $2
		  AND (auto_reject_at, id) > ($3, $4)
		ORDER BY auto_reject_at, id
		LIMIT $5`,
		string(mentorship.StatusPending), now, after.AutoRejectAt, after.ID, limit,
	)
}

// List implements mentorship.MatchRepository.
func (r *MatchRepository) List(ctx context.Context, f mentorship.MatchFilter) ([]*mentorship.Match, error) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, v any) {
		args = append(args, v)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if f.ProgramID != "" {
		add("program_id = $%d", f.ProgramID)
	}
	if f.MenteeID != "" {
		add("mentee_id = $%d", f.MenteeID)
	}
	if f.MentorID != "" {
		add("mentor_id = $%d", f.MentorID)
	}
	if len(f.Statuses) > 0 {
		statuses := make([]string, len(f.Statuses))
		for i, s := range f.Statuses {
			statuses[i] = string(s)
		}
		add("status = ANY($%d)", statuses)
	}
	if len(f.Types) > 0 {
		types := make([]string, len(f.Types))
		for i, t := range f.Types {
			types[i] = string(t)
		}
		add("match_type = ANY($%d)", types)
	}

	var sb strings.Builder
	sb.WriteString(`SELECT ` + matchColumns + ` FROM matches`)
	if len(where) > 0 {
		sb.WriteString(" WHERE " + strings.Join(where, " AND "))
	}
	sb.WriteString(" ORDER BY matched_at DESC, id DESC")
	if f.Limit > 0 {
		args = append(args, f.Limit)
		fmt.Fprintf(&sb, " LIMIT $%d", len(args))
	}
	if f.Offset > 0 {
		args = append(args, f.Offset)
		fmt.Fprintf(&sb, " OFFSET $%d", len(args))
	}

	return r.many(ctx, sb.String(), args...)
}

// Stats implements mentorship.MatchRepository.
func (r *MatchRepository) Stats(ctx context.Context, programID string) (mentorship.ProgramStats, error) {
	stats := mentorship.ProgramStats{
		ProgramID:  programID,
		ByStatus:   make(map[mentorship.Status]int),
		ByType:     make(map[mentorship.Type]int),
		MentorLoad: make(map[string]int),
	}

	rows, err := r.conn.Query(ctx, `
		SELECT status, match_type, COUNT(*), COALESCE(SUM(compatibility_score), 0)::float8
		FROM matches
		WHERE program_id = $1
		GROUP BY status, match_type`,
		programID,
	)
	if err != nil {
		return stats, fmt.Errorf("failed to aggregate matches: %w", err)
	}
	defer rows.Close()

	var sum float64
	for rows.Next() {
		var (
			status, typ string
			n           int
			s           float64
		)
		if err := rows.Scan(&status, &typ, &n, &s); err != nil {
			return stats, err
		}
		stats.ByStatus[mentorship.Status(status)] += n
		stats.ByType[mentorship.Type(typ)] += n
		stats.Total += n
		sum += s
	}
	if err := rows.Err(); err != nil {
		return stats, err
	}
	if stats.Total > 0 {
		stats.AverageScore = shared.Round1(sum / float64(stats.Total))
	}

	load, err := r.CountAcceptedByMentor(ctx, programID)
	if err != nil {
		return stats, err
	}
	stats.MentorLoad = load
	return stats, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

func (r *MatchRepository) one(ctx context.Context, query string, args ...any) (*mentorship.Match, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query match: %w", err)
	}
	m, err := pgx.CollectExactlyOneRow(rows, scanMatch)
	if err != nil {
		if IsNoRows(err) {
			return nil, shared.ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to scan match: %w", err)
	}
	return m, nil
}

func (r *MatchRepository) many(ctx context.Context, query string, args ...any) ([]*mentorship.Match, error) {
	rows, err := r.conn.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query matches: %w", err)
	}
	out, err := pgx.CollectRows(rows, scanMatch)
	if err != nil {
		return nil, fmt.Errorf("failed to scan matches: %w", err)
	}
	return out, nil
}

func scanMatch(row pgx.CollectableRow) (*mentorship.Match, error) {
	var (
		m         mentorship.Match
		score     float64
		breakdown []byte
		typ       string
		status    string
		order     *int
	)
	err := row.Scan(
		&m.ID, &m.ProgramID, &m.MenteeID, &m.MenteeRegistrationID, &m.MentorID, &m.MentorRegistrationID,
		&score, &breakdown, &typ, &order, &status,
		&m.MatchedAt, &m.MentorResponseAt, &m.AutoRejectAt, &m.RejectionReason,
		&m.MenteeSelectedMentors, &m.CollaborationSpaceID, &m.CreatedBy, &m.Version, &m.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	m.Score = shared.Score(score)
	m.Type = mentorship.Type(typ)
	m.Status = mentorship.Status(status)
	if order != nil {
		m.PreferredChoiceOrder = *order
	}
	if len(breakdown) > 0 {
		if err := json.Unmarshal(breakdown, &m.Breakdown); err != nil {
			return nil, fmt.Errorf("failed to unmarshal breakdown: %w", err)
		}
	}
	return &m, nil
}

func choiceOrder(order int) *int {
	if order <= 0 {
		return nil
	}
	return &order
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
