package postgres

// Migrations returns the embedded schema in version order.
func Migrations() []Migration {
	return []Migration{
		{Version: 1, Name: "create_programs", UpSQL: migration001Up, DownSQL: migration001Down},
		{Version: 2, Name: "create_registrations", UpSQL: migration002Up, DownSQL: migration002Down},
		{Version: 3, Name: "create_matches", UpSQL: migration003Up, DownSQL: migration003Down},
	}
}

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 001: PROGRAMS
// ══════════════════════════════════════════════════════════════════════════════

const migration001Up = `
CREATE TABLE IF NOT EXISTS programs (
    id                            TEXT PRIMARY KEY,
    name                          TEXT NOT NULL,
    mentee_registration_deadline  TIMESTAMPTZ,
    mentor_registration_deadline  TIMESTAMPTZ,
    matching_deadline             TIMESTAMPTZ,
    -- 0 means the engine default
    max_mentees_per_mentor        INTEGER NOT NULL DEFAULT 0,
    coordinators                  TEXT[] NOT NULL DEFAULT '{}',
    created_at                    TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT programs_capacity_chk CHECK (max_mentees_per_mentor >= 0)
);
`

const migration001Down = `
DROP TABLE IF EXISTS programs;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 002: REGISTRATIONS
// Registration CRUD lives in the registration service; the engine only reads
// approved rows and locks mentor rows while deciding capacity.
// ══════════════════════════════════════════════════════════════════════════════

const migration002Up = `
CREATE TABLE IF NOT EXISTS mentor_registrations (
    id            TEXT PRIMARY KEY,
    program_id    TEXT NOT NULL REFERENCES programs(id),
    user_id       TEXT NOT NULL,
    email         TEXT NOT NULL DEFAULT '',
    display_name  TEXT NOT NULL DEFAULT '',
    status        TEXT NOT NULL DEFAULT 'PENDING',
    company       TEXT NOT NULL DEFAULT '',
    industry      TEXT NOT NULL DEFAULT '',
    programme     TEXT NOT NULL DEFAULT '',
    areas         TEXT[] NOT NULL DEFAULT '{}',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT mentor_registrations_status_chk CHECK (status IN ('PENDING', 'APPROVED', 'REJECTED', 'WITHDRAWN')),
    CONSTRAINT mentor_registrations_user_uq UNIQUE (program_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_mentor_registrations_approved
    ON mentor_registrations(program_id) WHERE status = 'APPROVED';

CREATE TABLE IF NOT EXISTS mentee_registrations (
    id            TEXT PRIMARY KEY,
    program_id    TEXT NOT NULL REFERENCES programs(id),
    user_id       TEXT NOT NULL,
    email         TEXT NOT NULL DEFAULT '',
    display_name  TEXT NOT NULL DEFAULT '',
    status        TEXT NOT NULL DEFAULT 'PENDING',
    company       TEXT NOT NULL DEFAULT '',
    industry      TEXT NOT NULL DEFAULT '',
    programme     TEXT NOT NULL DEFAULT '',
    interests     TEXT[] NOT NULL DEFAULT '{}',
    -- ordered mentor user ids, first choice first
    preferences   TEXT[] NOT NULL DEFAULT '{}',
    created_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),
    updated_at    TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT mentee_registrations_status_chk CHECK (status IN ('PENDING', 'APPROVED', 'REJECTED', 'WITHDRAWN')),
    CONSTRAINT mentee_registrations_user_uq UNIQUE (program_id, user_id)
);

CREATE INDEX IF NOT EXISTS idx_mentee_registrations_approved
    ON mentee_registrations(program_id) WHERE status = 'APPROVED';
`

const migration002Down = `
DROP TABLE IF EXISTS mentee_registrations;
DROP TABLE IF EXISTS mentor_registrations;
`

// ══════════════════════════════════════════════════════════════════════════════
// MIGRATION 003: MATCHES
// ══════════════════════════════════════════════════════════════════════════════

const migration003Up = `
CREATE TABLE IF NOT EXISTS matches (
    id                        TEXT PRIMARY KEY,
    program_id                TEXT NOT NULL REFERENCES programs(id),
    mentee_id                 TEXT NOT NULL,
    mentee_registration_id    TEXT NOT NULL REFERENCES mentee_registrations(id),
    mentor_id                 TEXT NOT NULL,
    mentor_registration_id    TEXT NOT NULL REFERENCES mentor_registrations(id),
    compatibility_score       NUMERIC(4,1) NOT NULL,
    score_breakdown           JSONB NOT NULL DEFAULT '{}'::jsonb,
    match_type                TEXT NOT NULL,
    preferred_choice_order    SMALLINT,
    status                    TEXT NOT NULL,
    matched_at                TIMESTAMPTZ NOT NULL,
    mentor_response_at        TIMESTAMPTZ,
    auto_reject_at            TIMESTAMPTZ NOT NULL,
    rejection_reason          TEXT NOT NULL DEFAULT '',
    mentee_selected_mentors   TEXT[] NOT NULL DEFAULT '{}',
    collaboration_space_id    TEXT NOT NULL DEFAULT '',
    created_by                TEXT NOT NULL DEFAULT '',
    version                   INTEGER NOT NULL DEFAULT 1,
    updated_at                TIMESTAMPTZ NOT NULL DEFAULT NOW(),

    CONSTRAINT matches_status_chk CHECK (status IN ('PENDING_MENTOR_ACCEPTANCE', 'ACCEPTED', 'REJECTED', 'AUTO_REJECTED')),
    CONSTRAINT matches_type_chk CHECK (match_type IN ('PREFERRED', 'ALGORITHM', 'MANUAL')),
    CONSTRAINT matches_score_chk CHECK (compatibility_score BETWEEN 0 AND 100),
    CONSTRAINT matches_choice_order_chk CHECK (
        (match_type = 'PREFERRED') = (preferred_choice_order IS NOT NULL)
        AND (preferred_choice_order IS NULL OR preferred_choice_order BETWEEN 1 AND 3)
    )
);

-- At most one pending or accepted match per mentee per program.
CREATE UNIQUE INDEX IF NOT EXISTS matches_one_active_per_mentee
    ON matches(program_id, mentee_id)
    WHERE status IN ('PENDING_MENTOR_ACCEPTANCE', 'ACCEPTED');

CREATE INDEX IF NOT EXISTS idx_matches_pending_deadline
    ON matches(auto_reject_at) WHERE status = 'PENDING_MENTOR_ACCEPTANCE';

CREATE INDEX IF NOT EXISTS idx_matches_mentor_accepted
    ON matches(program_id, mentor_id) WHERE status = 'ACCEPTED';

CREATE INDEX IF NOT EXISTS idx_matches_mentee_history
    ON matches(program_id, mentee_id, matched_at);
`

const migration003Down = `
DROP TABLE IF EXISTS matches;
`
