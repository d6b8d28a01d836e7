package memory

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alem-hub/mentorship-engine/internal/domain/mentorship"
)

// ══════════════════════════════════════════════════════════════════════════════
// SEED FILE
// ══════════════════════════════════════════════════════════════════════════════

// Seed is the JSON layout accepted by LoadSeed.
//
//	{"programs": [{"id": "p1", "max_mentees_per_mentor": 2,
//	  "mentors": [{"id": "A", "tags": ["go"]}],
//	  "mentees": [{"id": "e1", "preferences": ["A", "B", "C"]}]}]}
type Seed struct {
	Programs []SeedProgram `json:"programs"`
}

// SeedProgram describes one program with its approved registrations.
type SeedProgram struct {
	ID                         string        `json:"id"`
	Name                       string        `json:"name"`
	MenteeRegistrationDeadline time.Time     `json:"mentee_registration_deadline"`
	MentorRegistrationDeadline time.Time     `json:"mentor_registration_deadline"`
	MatchingDeadline           time.Time     `json:"matching_deadline"`
	MaxMenteesPerMentor        int           `json:"max_mentees_per_mentor"`
	Coordinators               []string      `json:"coordinators"`
	Mentors                    []SeedProfile `json:"mentors"`
	Mentees                    []SeedProfile `json:"mentees"`
}

// SeedProfile describes a mentor or mentee registration.
// Preferences are ignored for mentors.
type SeedProfile struct {
	ID             string   `json:"id"`
	RegistrationID string   `json:"registration_id"`
	Preferences    []string `json:"preferences"`
	Company        string   `json:"company"`
	Industry       string   `json:"industry"`
	Programme      string   `json:"programme"`
	Tags           []string `json:"tags"`
}

func (p SeedProfile) profile() mentorship.Profile {
	return mentorship.Profile{
		Company:   p.Company,
		Industry:  p.Industry,
		Programme: p.Programme,
		Tags:      p.Tags,
	}
}

func (p SeedProfile) registrationID(programID string) string {
	if p.RegistrationID != "" {
		return p.RegistrationID
	}
	return programID + "/" + p.ID
}

// LoadSeed reads a seed document and registers its contents. It stops at the
// first invalid mentee application; entries added before it stay in the store.
func (s *Store) LoadSeed(r io.Reader) error {
	var seed Seed
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&seed); err != nil {
		return fmt.Errorf("decode seed: %w", err)
	}

	for i, sp := range seed.Programs {
		if sp.ID == "" {
			return fmt.Errorf("seed program #%d: id is required", i)
		}
		s.AddProgram(mentorship.Program{
			ID:                         sp.ID,
			Name:                       sp.Name,
			MenteeRegistrationDeadline: sp.MenteeRegistrationDeadline,
			MentorRegistrationDeadline: sp.MentorRegistrationDeadline,
			MatchingDeadline:           sp.MatchingDeadline,
			MaxMenteesPerMentor:        sp.MaxMenteesPerMentor,
			Coordinators:               sp.Coordinators,
		})

		for _, m := range sp.Mentors {
			if m.ID == "" {
				return fmt.Errorf("seed program %s: mentor id is required", sp.ID)
			}
			s.AddMentor(sp.ID, mentorship.MentorCandidate{
				ID:             m.ID,
				RegistrationID: m.registrationID(sp.ID),
				Profile:        m.profile(),
			})
		}

		for _, m := range sp.Mentees {
			mentee := mentorship.MenteeCandidate{
				ID:             m.ID,
				RegistrationID: m.registrationID(sp.ID),
				Preferences:    m.Preferences,
				Profile:        m.profile(),
			}
			if err := mentee.Validate(); err != nil {
				return fmt.Errorf("seed program %s mentee %q: %w", sp.ID, m.ID, err)
			}
			s.AddMentee(sp.ID, mentee)
		}
	}
	return nil
}

// LoadSeedFile opens path and passes it to LoadSeed.
func (s *Store) LoadSeedFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open seed: %w", err)
	}
	defer f.Close()
	return s.LoadSeed(f)
}
