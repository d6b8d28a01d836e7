package mentorship

import (
	"fmt"
	"math"
	"strings"
	"unicode"

	"github.com/alem-hub/mentorship-engine/internal/domain/shared"
)

// ══════════════════════════════════════════════════════════════════════════════
// SCORE CALCULATOR
//
// Совместимость менти и ментора складывается из четырёх факторов:
//   отрасль 30%, программа 20%, навыки 10%, предпочтение менти 40%.
// Все значения в диапазоне 0..100 и округляются до одного знака.
// ══════════════════════════════════════════════════════════════════════════════

// Weights - веса факторов совместимости.
type Weights struct {
	Industry   float64
	Programme  float64
	Skills     float64
	Preference float64
}

// DefaultWeights возвращает стандартные веса.
func DefaultWeights() Weights {
	return Weights{
		Industry:   0.30,
		Programme:  0.20,
		Skills:     0.10,
		Preference: 0.40,
	}
}

// Validate: веса неотрицательны и в сумме дают 1.
func (w Weights) Validate() error {
	if w.Industry < 0 || w.Programme < 0 || w.Skills < 0 || w.Preference < 0 {
		return fmt.Errorf("weights must be non-negative: %+v", w)
	}
	sum := w.Industry + w.Programme + w.Skills + w.Preference
	if math.Abs(sum-1) > 1e-9 {
		return fmt.Errorf("weights must sum to 1, got %.3f", sum)
	}
	return nil
}

// ScoreBreakdown - оценки по факторам и итог.
type ScoreBreakdown struct {
	Industry   shared.Score `json:"industry"`
	Programme  shared.Score `json:"programme"`
	Skills     shared.Score `json:"skills"`
	Preference shared.Score `json:"preference"`

	// PreferenceRank - позиция ментора в списке менти (0 если нет).
	PreferenceRank int `json:"preference_rank,omitempty"`

	Total shared.Score `json:"total"`
}

// Preference scores by rank.
var preferenceScores = [PreferenceCount + 1]float64{0, 100, 80, 60}

// industryBuckets - группы родственных отраслей.
var industryBuckets = map[string][]string{
	"technology":  {"technology", "tech", "software", "it", "ai", "data", "computing", "internet", "cloud"},
	"finance":     {"finance", "banking", "investment", "fintech", "insurance", "accounting"},
	"healthcare":  {"healthcare", "health", "medical", "pharma", "biotech", "hospital"},
	"consulting":  {"consulting", "advisory", "strategy", "management"},
	"education":   {"education", "academia", "university", "teaching", "research"},
	"engineering": {"engineering", "manufacturing", "automotive", "aerospace", "energy"},
	"media":       {"media", "marketing", "advertising", "communications", "publishing"},
	"legal":       {"legal", "law", "compliance"},
	"public":      {"government", "public", "policy", "nonprofit", "ngo"},
}

// Calculator считает совместимость. Чистая функция без состояния кроме весов.
type Calculator struct {
	weights Weights
	buckets map[string]map[string]struct{}
}

// NewCalculator создаёт калькулятор с заданными весами.
func NewCalculator(w Weights) *Calculator {
	buckets := make(map[string]map[string]struct{}, len(industryBuckets))
	for name, words := range industryBuckets {
		set := make(map[string]struct{}, len(words))
		for _, w := range words {
			set[w] = struct{}{}
		}
		buckets[name] = set
	}
	return &Calculator{weights: w, buckets: buckets}
}

// Weights возвращает веса калькулятора.
func (c *Calculator) Weights() Weights {
	return c.weights
}

// Score считает совместимость менти и ментора. prefs - список предпочтений менти
// (при каскаде используется снимок из исходной пары).
func (c *Calculator) Score(mentee MenteeCandidate, mentor MentorCandidate, prefs []string) ScoreBreakdown {
	rank := PreferenceRank(prefs, mentor.ID)

	b := ScoreBreakdown{
		Industry:       shared.NewScore(c.industryScore(mentee.Profile, mentor.Profile)),
		Programme:      shared.NewScore(programmeScore(mentee.Profile.Programme, mentor.Profile.Programme)),
		Skills:         shared.NewScore(skillsScore(mentee.Profile.Tags, mentor.Profile.Tags)),
		Preference:     shared.NewScore(preferenceScores[rank]),
		PreferenceRank: rank,
	}

	total := c.weights.Industry*b.Industry.Float64() +
		c.weights.Programme*b.Programme.Float64() +
		c.weights.Skills*b.Skills.Float64() +
		c.weights.Preference*b.Preference.Float64()
	b.Total = shared.NewScore(total)
	return b
}

// ─────────────────────────────────────────────────────────────────────────────
// Industry
// ─────────────────────────────────────────────────────────────────────────────

func (c *Calculator) industryScore(a, b Profile) float64 {
	ai, bi := normalize(a.Industry), normalize(b.Industry)
	ac, bc := normalize(a.Company), normalize(b.Company)

	if (ai != "" && ai == bi) || (ac != "" && ac == bc) {
		return 100
	}

	aTokens := tokens(ai + " " + ac)
	bTokens := tokens(bi + " " + bc)
	if len(aTokens) == 0 || len(bTokens) == 0 {
		return 0
	}

	for _, set := range c.buckets {
		if anyIn(aTokens, set) && anyIn(bTokens, set) {
			return 60
		}
	}

	if sharedTokens(aTokens, bTokens, 3) > 0 {
		return 40
	}
	return 0
}

func anyIn(toks []string, set map[string]struct{}) bool {
	for _, t := range toks {
		if _, ok := set[t]; ok {
			return true
		}
	}
	return false
}

// ─────────────────────────────────────────────────────────────────────────────
// Programme
// ─────────────────────────────────────────────────────────────────────────────

func programmeScore(a, b string) float64 {
	a, b = stripPunctuation(a), stripPunctuation(b)
	if a == "" || b == "" {
		return 0
	}
	if a == b {
		return 100
	}
	if strings.Contains(a, b) || strings.Contains(b, a) {
		return 80
	}

	switch n := sharedTokens(tokens(a), tokens(b), 3); {
	case n >= 2:
		return 60
	case n == 1:
		return 30
	default:
		return 0
	}
}

// ─────────────────────────────────────────────────────────────────────────────
// Skills
// ─────────────────────────────────────────────────────────────────────────────

func skillsScore(menteeTags, mentorTags []string) float64 {
	mentee := normalizeTags(menteeTags)
	mentor := normalizeTags(mentorTags)
	if len(mentee) == 0 || len(mentor) == 0 {
		return 0
	}

	matches := 0
	for _, want := range mentee {
		for _, have := range mentor {
			if want == have || strings.Contains(want, have) || strings.Contains(have, want) {
				matches++
				break
			}
		}
	}

	ratio := (float64(matches)/float64(len(mentee)) + float64(matches)/float64(len(mentor))) / 2
	return math.Min(ratio*100, 100)
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if t = normalize(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

// ─────────────────────────────────────────────────────────────────────────────
// Text helpers
// ─────────────────────────────────────────────────────────────────────────────

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// stripPunctuation приводит к нижнему регистру, заменяет пунктуацию пробелами
// и схлопывает пробелы.
func stripPunctuation(s string) string {
	s = strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return unicode.ToLower(r)
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(s), " ")
}

func tokens(s string) []string {
	return strings.Fields(stripPunctuation(s))
}

// sharedTokens считает общие токены длиннее minLen.
func sharedTokens(a, b []string, minLen int) int {
	set := make(map[string]struct{}, len(a))
	for _, t := range a {
		if len([]rune(t)) > minLen {
			set[t] = struct{}{}
		}
	}
	n := 0
	seen := make(map[string]struct{}, len(b))
	for _, t := range b {
		if _, ok := set[t]; !ok {
			continue
		}
		if _, dup := seen[t]; dup {
			continue
		}
		seen[t] = struct{}{}
		n++
	}
	return n
}
