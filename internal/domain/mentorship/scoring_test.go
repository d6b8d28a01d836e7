package mentorship

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alem-hub/mentorship-engine/internal/domain/shared"
)

func mentee(id string, prefs []string, p Profile) MenteeCandidate {
	return MenteeCandidate{ID: id, RegistrationID: "reg-" + id, Preferences: prefs, Profile: p}
}

func mentor(id string, p Profile) MentorCandidate {
	return MentorCandidate{ID: id, RegistrationID: "reg-" + id, Profile: p}
}

func TestCalculator_PreferenceByRank(t *testing.T) {
	calc := NewCalculator(DefaultWeights())
	prefs := []string{"a", "b", "c"}
	m := mentee("m1", prefs, Profile{})

	tests := []struct {
		mentorID string
		score    shared.Score
		rank     int
	}{
		{"a", 100, 1},
		{"b", 80, 2},
		{"c", 60, 3},
		{"d", 0, 0},
	}

	for _, tt := range tests {
		t.Run(tt.mentorID, func(t *testing.T) {
			b := calc.Score(m, mentor(tt.mentorID, Profile{}), prefs)
			assert.Equal(t, tt.score, b.Preference)
			assert.Equal(t, tt.rank, b.PreferenceRank)
		})
	}
}

func TestCalculator_Industry(t *testing.T) {
	calc := NewCalculator(DefaultWeights())

	tests := []struct {
		name   string
		mentee Profile
		mentor Profile
		want   shared.Score
	}{
		{"exact industry ignores case and space", Profile{Industry: "Technology"}, Profile{Industry: " technology "}, 100},
		{"exact company", Profile{Company: "Acme", Industry: "Retail"}, Profile{Company: "ACME", Industry: "Finance"}, 100},
		{"related bucket", Profile{Industry: "Software"}, Profile{Industry: "Data Analytics"}, 60},
		{"shared long token", Profile{Industry: "Retail Logistics"}, Profile{Industry: "Logistics Services"}, 40},
		{"short token only", Profile{Industry: "Ops Retail"}, Profile{Industry: "Ops Farming"}, 0},
		{"unrelated", Profile{Industry: "Retail"}, Profile{Industry: "Agriculture"}, 0},
		{"empty", Profile{}, Profile{Industry: "Technology"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := calc.Score(mentee("m1", nil, tt.mentee), mentor("x", tt.mentor), nil)
			assert.Equal(t, tt.want, b.Industry)
		})
	}
}

func TestProgrammeScore(t *testing.T) {
	tests := []struct {
		name string
		a, b string
		want float64
	}{
		{"exact after punctuation", "Computer Science", "computer science!", 100},
		{"contains", "Computer Science", "B.Sc. Computer Science", 80},
		{"two shared tokens", "Applied Data Science", "Data Science and Engineering", 60},
		{"one shared token", "Business Management", "Management Accounting", 30},
		{"no overlap", "Law", "Medicine", 0},
		{"empty side", "", "Medicine", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, programmeScore(tt.a, tt.b))
		})
	}
}

func TestSkillsScore(t *testing.T) {
	got := skillsScore([]string{"Go", "Leadership"}, []string{"golang", "public speaking", "LEADERSHIP"})
	assert.InDelta(t, 83.33, got, 0.01)

	assert.Equal(t, 0.0, skillsScore(nil, []string{"go"}))
	assert.Equal(t, 0.0, skillsScore([]string{"go"}, []string{" "}))
	assert.Equal(t, 100.0, skillsScore([]string{"design"}, []string{"design"}))
}

func TestCalculator_Total(t *testing.T) {
	calc := NewCalculator(DefaultWeights())
	prefs := []string{"m1", "m2", "m3"}
	me := mentee("x", prefs, Profile{
		Industry:  "Technology",
		Programme: "Computer Science",
		Tags:      []string{"go", "leadership"},
	})
	mt := mentor("m2", Profile{
		Industry:  "Technology",
		Programme: "Computer Science",
		Tags:      []string{"golang", "public speaking", "leadership"},
	})

	b := calc.Score(me, mt, prefs)

	assert.Equal(t, shared.Score(100), b.Industry)
	assert.Equal(t, shared.Score(100), b.Programme)
	assert.Equal(t, shared.Score(83.3), b.Skills)
	assert.Equal(t, shared.Score(80), b.Preference)
	assert.Equal(t, shared.Score(90.3), b.Total)
}

func TestCalculator_ComponentsBoundedAndWeighted(t *testing.T) {
	calc := NewCalculator(DefaultWeights())
	prefs := []string{"a", "b", "c"}
	profiles := []Profile{
		{},
		{Industry: "Software", Programme: "Computer Science", Tags: []string{"ai", "ml", "cloud"}},
		{Industry: "Banking", Company: "First Bank", Programme: "Finance & Economics", Tags: []string{"investing"}},
		{Industry: "Healthcare Data", Programme: "Economics", Tags: []string{"data", "ai"}},
	}
	ids := []string{"a", "b", "c", "d"}

	for _, mp := range profiles {
		for i, tp := range profiles {
			b := calc.Score(mentee("x", prefs, mp), mentor(ids[i], tp), prefs)
			for _, s := range []shared.Score{b.Industry, b.Programme, b.Skills, b.Preference, b.Total} {
				assert.True(t, s.IsValid(), "score out of range: %v", s)
			}
			want := 0.30*b.Industry.Float64() + 0.20*b.Programme.Float64() +
				0.10*b.Skills.Float64() + 0.40*b.Preference.Float64()
			assert.LessOrEqual(t, math.Abs(want-b.Total.Float64()), 0.05+1e-9)
		}
	}
}

func TestWeights_Validate(t *testing.T) {
	require.NoError(t, DefaultWeights().Validate())
	assert.Error(t, Weights{Industry: 0.5, Programme: 0.5, Skills: 0.5}.Validate())
	assert.Error(t, Weights{Industry: -0.1, Programme: 0.6, Skills: 0.1, Preference: 0.4}.Validate())
}
