package shared

import (
	"fmt"
	"math"
	"strings"
)

// ═══════════════════════════════════════════════════════════════════════════
// Score
// ═══════════════════════════════════════════════════════════════════════════

// Score is a compatibility value on the 0..100 scale, kept at one decimal.
type Score float64

// MinScore and MaxScore bound every Score.
const (
	MinScore Score = 0
	MaxScore Score = 100
)

// NewScore clamps v into [0, 100] and rounds it to one decimal.
func NewScore(v float64) Score {
	if math.IsNaN(v) || v < 0 {
		return MinScore
	}
	if v > 100 {
		return MaxScore
	}
	return Score(Round1(v))
}

// Float64 returns the raw value.
func (s Score) Float64() float64 {
	return float64(s)
}

// IsValid reports whether the score lies within bounds.
func (s Score) IsValid() bool {
	return s >= MinScore && s <= MaxScore
}

// String formats the score with one decimal.
func (s Score) String() string {
	return fmt.Sprintf("%.1f", float64(s))
}

// Round1 rounds v to one decimal place, halves away from zero.
func Round1(v float64) float64 {
	return math.Round(v*10) / 10
}

// ═══════════════════════════════════════════════════════════════════════════
// Identifiers
// ═══════════════════════════════════════════════════════════════════════════

// ValidateID checks that an identifier is present.
func ValidateID(kind, id string) error {
	if strings.TrimSpace(id) == "" {
		return WrapError("mentorship", "Validate", ErrInvalidID, kind+" is required", ErrEmptyValue)
	}
	return nil
}
