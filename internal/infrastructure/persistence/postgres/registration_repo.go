package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/alem-hub/mentorship-engine/internal/domain/mentorship"
	"github.com/alem-hub/mentorship-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// REGISTRATION REPOSITORY
// Read-only view of programs and approved registrations.
// Implements mentorship.ProgramReader, mentorship.RegistrationReader and
// mentorship.ContactDirectory.
// ══════════════════════════════════════════════════════════════════════════════

// RegistrationRepository reads programs and registrations.
type RegistrationRepository struct {
	conn *Connection
}

// NewRegistrationRepository creates a new RegistrationRepository.
func NewRegistrationRepository(conn *Connection) *RegistrationRepository {
	return &RegistrationRepository{conn: conn}
}

const statusApproved = "APPROVED"

// ─────────────────────────────────────────────────────────────────────────────
// Programs
// ─────────────────────────────────────────────────────────────────────────────

// GetProgram implements mentorship.ProgramReader.
func (r *RegistrationRepository) GetProgram(ctx context.Context, programID string) (mentorship.Program, error) {
	const query = `
		SELECT id, name, mentee_registration_deadline, mentor_registration_deadline,
		       matching_deadline, max_mentees_per_mentor, coordinators
		FROM programs
		WHERE id = $1
	`

	var (
		p                           mentorship.Program
		menteeDL, mentorDL, matchDL *time.Time
	)
	err := r.conn.QueryRow(ctx, query, programID).Scan(
		&p.ID, &p.Name, &menteeDL, &mentorDL, &matchDL, &p.MaxMenteesPerMentor, &p.Coordinators,
	)
	if err != nil {
		if IsNoRows(err) {
			return mentorship.Program{}, shared.ErrProgramNotFound
		}
		return mentorship.Program{}, fmt.Errorf("failed to get program: %w", err)
	}

	p.MenteeRegistrationDeadline = deref(menteeDL)
	p.MentorRegistrationDeadline = deref(mentorDL)
	p.MatchingDeadline = deref(matchDL)
	return p, nil
}

// ListPrograms returns programs whose matching deadline has not passed.
func (r *RegistrationRepository) ListPrograms(ctx context.Context, now time.Time) ([]mentorship.Program, error) {
	const query = `
		SELECT id, name, mentee_registration_deadline, mentor_registration_deadline,
		       matching_deadline, max_mentees_per_mentor, coordinators
		FROM programs
		WHERE matching_deadline IS NULL OR matching_deadline >= $1
		ORDER BY created_at
	`

	rows, err := r.conn.Query(ctx, query, now)
	if err != nil {
		return nil, fmt.Errorf("failed to list programs: %w", err)
	}
	defer rows.Close()

	var out []mentorship.Program
	for rows.Next() {
		var (
			p                           mentorship.Program
			menteeDL, mentorDL, matchDL *time.Time
		)
		if err := rows.Scan(&p.ID, &p.Name, &menteeDL, &mentorDL, &matchDL, &p.MaxMenteesPerMentor, &p.Coordinators); err != nil {
			return nil, fmt.Errorf("failed to scan program: %w", err)
		}
		p.MenteeRegistrationDeadline = deref(menteeDL)
		p.MentorRegistrationDeadline = deref(mentorDL)
		p.MatchingDeadline = deref(matchDL)
		out = append(out, p)
	}
	return out, rows.Err()
}

// ─────────────────────────────────────────────────────────────────────────────
// Registrations
// ─────────────────────────────────────────────────────────────────────────────

const mentorColumns = `user_id, id, company, industry, programme, areas`

const menteeColumns = `user_id, id, preferences, company, industry, programme, interests`

// GetApprovedMentors implements mentorship.RegistrationReader.
func (r *RegistrationRepository) GetApprovedMentors(ctx context.Context, programID string) ([]mentorship.MentorCandidate, error) {
	query := `SELECT ` + mentorColumns + `
		FROM mentor_registrations
		WHERE program_id = $1 AND status = $2
		ORDER BY created_at, id`

	rows, err := r.conn.Query(ctx, query, programID, statusApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to list mentors: %w", err)
	}
	return pgx.CollectRows(rows, scanMentor)
}

// GetApprovedMentees implements mentorship.RegistrationReader.
func (r *RegistrationRepository) GetApprovedMentees(ctx context.Context, programID string) ([]mentorship.MenteeCandidate, error) {
	query := `SELECT ` + menteeColumns + `
		FROM mentee_registrations
		WHERE program_id = $1 AND status = $2
		ORDER BY created_at, id`

	rows, err := r.conn.Query(ctx, query, programID, statusApproved)
	if err != nil {
		return nil, fmt.Errorf("failed to list mentees: %w", err)
	}
	return pgx.CollectRows(rows, scanMentee)
}

// GetMentee implements mentorship.RegistrationReader.
func (r *RegistrationRepository) GetMentee(ctx context.Context, programID, menteeID string) (mentorship.MenteeCandidate, error) {
	query := `SELECT ` + menteeColumns + `
		FROM mentee_registrations
		WHERE program_id = $1 AND user_id = $2 AND status = $3`

	rows, err := r.conn.Query(ctx, query, programID, menteeID, statusApproved)
	if err != nil {
		return mentorship.MenteeCandidate{}, fmt.Errorf("failed to get mentee: %w", err)
	}
	m, err := pgx.CollectExactlyOneRow(rows, scanMentee)
	if err != nil {
		if IsNoRows(err) {
			return mentorship.MenteeCandidate{}, shared.ErrMenteeNotFound
		}
		return mentorship.MenteeCandidate{}, fmt.Errorf("failed to get mentee: %w", err)
	}
	return m, nil
}

// GetMentor implements mentorship.RegistrationReader.
func (r *RegistrationRepository) GetMentor(ctx context.Context, programID, mentorID string) (mentorship.MentorCandidate, error) {
	query := `SELECT ` + mentorColumns + `
		FROM mentor_registrations
		WHERE program_id = $1 AND user_id = $2 AND status = $3`

	rows, err := r.conn.Query(ctx, query, programID, mentorID, statusApproved)
	if err != nil {
		return mentorship.MentorCandidate{}, fmt.Errorf("failed to get mentor: %w", err)
	}
	m, err := pgx.CollectExactlyOneRow(rows, scanMentor)
	if err != nil {
		if IsNoRows(err) {
			return mentorship.MentorCandidate{}, shared.ErrMentorNotFound
		}
		return mentorship.MentorCandidate{}, fmt.Errorf("failed to get mentor: %w", err)
	}
	return m, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Contacts
// ─────────────────────────────────────────────────────────────────────────────

// MentorContact implements mentorship.ContactDirectory.
func (r *RegistrationRepository) MentorContact(ctx context.Context, programID, mentorID string) (mentorship.Contact, error) {
	return r.contact(ctx, "mentor_registrations", programID, mentorID, shared.ErrMentorNotFound)
}

// MenteeContact implements mentorship.ContactDirectory.
func (r *RegistrationRepository) MenteeContact(ctx context.Context, programID, menteeID string) (mentorship.Contact, error) {
	return r.contact(ctx, "mentee_registrations", programID, menteeID, shared.ErrMenteeNotFound)
}

func (r *RegistrationRepository) contact(ctx context.Context, table, programID, userID string, notFound error) (mentorship.Contact, error) {
	query := `SELECT email, display_name FROM ` + table + ` WHERE program_id = $1 AND user_id = $2`

	var c mentorship.Contact
	if err := r.conn.QueryRow(ctx, query, programID, userID).Scan(&c.Email, &c.Name); err != nil {
		if IsNoRows(err) {
			return mentorship.Contact{}, notFound
		}
		return mentorship.Contact{}, fmt.Errorf("failed to get contact: %w", err)
	}
	return c, nil
}

// ─────────────────────────────────────────────────────────────────────────────
// Scanning
// ─────────────────────────────────────────────────────────────────────────────

func scanMentor(row pgx.CollectableRow) (mentorship.MentorCandidate, error) {
	var m mentorship.MentorCandidate
	err := row.Scan(&m.ID, &m.RegistrationID, &m.Profile.Company, &m.Profile.Industry, &m.Profile.Programme, &m.Profile.Tags)
	return m, err
}

func scanMentee(row pgx.CollectableRow) (mentorship.MenteeCandidate, error) {
	var m mentorship.MenteeCandidate
	err := row.Scan(&m.ID, &m.RegistrationID, &m.Preferences, &m.Profile.Company, &m.Profile.Industry, &m.Profile.Programme, &m.Profile.Tags)
	return m, err
}

func deref(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
