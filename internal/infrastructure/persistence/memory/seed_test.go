package memory

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/mentorship-engine/internal/domain/shared"
)

const seedDoc = `{
  "programs": [{
    "id": "spring",
    "name": "Spring cohort",
    "max_mentees_per_mentor": 2,
    "coordinators": ["coord@example.com"],
    "mentors": [
      {"id": "A", "industry": "fintech", "tags": ["go", "kafka"]},
      {"id": "B", "registration_id": "reg-b"}
    ],
    "mentees": [
      {"id": "e1", "preferences": ["A", "B", "C"], "tags": ["go"]}
    ]
  }]
}`

func TestLoadSeed(t *testing.T) {
	s := NewStore()
	require.NoError(t, s.LoadSeed(strings.NewReader(seedDoc)))

	ctx := context.Background()
	p, err := s.GetProgram(ctx, "spring")
	require.NoError(t, err)
	assert.Equal(t, "Spring cohort", p.Name)
	assert.Equal(t, 2, p.MaxMenteesPerMentor)
	assert.Equal(t, []string{"coord@example.com"}, p.Coordinators)

	mentors, err := s.GetApprovedMentors(ctx, "spring")
	require.NoError(t, err)
	require.Len(t, mentors, 2)
	assert.Equal(t, "spring/A", mentors[0].RegistrationID)
	assert.Equal(t, "fintech", mentors[0].Profile.Industry)
	assert.Equal(t, "reg-b", mentors[1].RegistrationID)

	mentee, err := s.GetMentee(ctx, "spring", "e1")
	require.NoError(t, err)
	assert.Equal(t, []string{"A", "B", "C"}, mentee.Preferences)
	assert.Equal(t, []string{"go"}, mentee.Profile.Tags)
}

func TestLoadSeedRejectsInvalidInput(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr string
	}{
		{"malformed json", `{"programs": [`, "decode seed"},
		{"unknown field", `{"programs": [{"id": "p", "colour": "red"}]}`, "decode seed"},
		{"missing program id", `{"programs": [{"name": "x"}]}`, "id is required"},
		{"missing mentor id", `{"programs": [{"id": "p", "mentors": [{}]}]}`, "mentor id is required"},
		{"two preferences", `{"programs": [{"id": "p", "mentees": [{"id": "e", "preferences": ["A", "B"]}]}]}`, `mentee "e"`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewStore().LoadSeed(strings.NewReader(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadSeedPreferenceErrorIsValidation(t *testing.T) {
	doc := `{"programs": [{"id": "p", "mentees": [{"id": "e", "preferences": ["A", "A", "B"]}]}]}`
	err := NewStore().LoadSeed(strings.NewReader(doc))
	assert.ErrorIs(t, err, shared.ErrInvalidPreferences)
}

func TestLoadSeedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "seed.json")
	require.NoError(t, os.WriteFile(path, []byte(seedDoc), 0o600))

	s := NewStore()
	require.NoError(t, s.LoadSeedFile(path))
	programs, err := s.ListPrograms(context.Background(), t0)
	require.NoError(t, err)
	assert.Len(t, programs, 1)

	assert.Error(t, NewStore().LoadSeedFile(filepath.Join(t.TempDir(), "nope.json")))
}
