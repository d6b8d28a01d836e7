package config

import (
	"hash/fnv"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"
)

// FeatureFlags manages matching feature toggles.
// Rollout below 100% is bucketed by program, so a program either has a
// feature for every mentee or for none.
type FeatureFlags struct {
	mu sync.RWMutex

	features map[string]*Feature

	// Override rules (for coordinators trying a feature on one program)
	programOverrides map[string]map[string]bool // programID -> feature -> enabled

	now func() time.Time
}

// Feature represents a single feature flag.
type Feature struct {
	Name        string
	Description string
	Enabled     bool

	// Rollout percentage (0-100), bucketed by program ID hash
	RolloutPercent int

	// Time-based activation
	EnabledFrom  *time.Time
	EnabledUntil *time.Time
}

// FeatureContext provides context for feature flag evaluation.
type FeatureContext struct {
	ProgramID string
}

// Predefined feature flag names.
const (
	// Cascade after rejection of an ALGORITHM match, not only PREFERRED ones
	FeatureCascadeAlgorithmMatches = "cascade_algorithm_matches"

	// Serialize per-mentor decisions through Redis across processes
	FeatureDistributedMentorLock = "distributed_mentor_lock"

	// Forward domain events to Kafka
	FeatureKafkaEvents = "kafka_events"

	// Run batch matching from the worker on MATCH_INITIATE_CRON
	FeatureAutoInitiateMatching = "auto_initiate_matching"

	// Create a collaboration space when a match is accepted
	FeatureCollaborationSpaces = "collaboration_spaces"
)

// LoadFeatureFlags loads feature flags from environment variables.
func LoadFeatureFlags() *FeatureFlags {
	ff := NewFeatureFlags()
	ff.loadFromEnvironment()
	return ff
}

// NewFeatureFlags returns flags with default values only.
func NewFeatureFlags() *FeatureFlags {
	ff := &FeatureFlags{
		features:         make(map[string]*Feature),
		programOverrides: make(map[string]map[string]bool),
		now:              time.Now,
	}
	ff.initializeDefaults()
	return ff
}

func (ff *FeatureFlags) initializeDefaults() {
	ff.features[FeatureCascadeAlgorithmMatches] = &Feature{
		Name:           FeatureCascadeAlgorithmMatches,
		Description:    "Reassign after rejection of an algorithm match",
		Enabled:        false,
		RolloutPercent: 0,
	}

	ff.features[FeatureDistributedMentorLock] = &Feature{
		Name:           FeatureDistributedMentorLock,
		Description:    "Redis lock around mentor capacity decisions",
		Enabled:        true,
		RolloutPercent: 100,
	}

	ff.features[FeatureKafkaEvents] = &Feature{
		Name:           FeatureKafkaEvents,
		Description:    "Publish match events to Kafka",
		Enabled:        false,
		RolloutPercent: 0,
	}

	ff.features[FeatureAutoInitiateMatching] = &Feature{
		Name:           FeatureAutoInitiateMatching,
		Description:    "Scheduled batch matching in the worker",
		Enabled:        false,
		RolloutPercent: 0,
	}

	ff.features[FeatureCollaborationSpaces] = &Feature{
		Name:           FeatureCollaborationSpaces,
		Description:    "Create a collaboration space on acceptance",
		Enabled:        true,
		RolloutPercent: 100,
	}
}

// loadFromEnvironment loads feature flag overrides from env vars.
// Format: FEATURE_<NAME>=true|false|<percent>
// Example: FEATURE_KAFKA_EVENTS=true
// Example: FEATURE_CASCADE_ALGORITHM_MATCHES=25 (25% of programs)
func (ff *FeatureFlags) loadFromEnvironment() {
	for name, feature := range ff.features {
		val := os.Getenv(featureNameToEnvKey(name))
		if val == "" {
			continue
		}

		if b, err := strconv.ParseBool(val); err == nil {
			feature.Enabled = b
			if b {
				feature.RolloutPercent = 100
			} else {
				feature.RolloutPercent = 0
			}
			continue
		}

		if p, err := strconv.Atoi(val); err == nil && p >= 0 && p <= 100 {
			feature.Enabled = p > 0
			feature.RolloutPercent = p
		}
	}
}

// featureNameToEnvKey converts feature name to environment variable key.
// "kafka_events" -> "FEATURE_KAFKA_EVENTS"
func featureNameToEnvKey(name string) string {
	key := strings.ToUpper(name)
	key = strings.ReplaceAll(key, ".", "_")
	return "FEATURE_" + key
}

// IsEnabled checks if a feature is enabled for the given context.
// A nil context evaluates the global switch: partial rollouts count as off.
func (ff *FeatureFlags) IsEnabled(featureName string, ctx *FeatureContext) bool {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	if ctx != nil && ctx.ProgramID != "" {
		if overrides, ok := ff.programOverrides[ctx.ProgramID]; ok {
			if enabled, ok := overrides[featureName]; ok {
				return enabled
			}
		}
	}

	feature, ok := ff.features[featureName]
	if !ok || !feature.Enabled {
		return false
	}

	now := ff.now()
	if feature.EnabledFrom != nil && now.Before(*feature.EnabledFrom) {
		return false
	}
	if feature.EnabledUntil != nil && now.After(*feature.EnabledUntil) {
		return false
	}

	if feature.RolloutPercent >= 100 {
		return true
	}
	if ctx == nil || ctx.ProgramID == "" {
		return false
	}
	return isInRollout(ctx.ProgramID, featureName, feature.RolloutPercent)
}

// isInRollout uses consistent hashing so programs stay in their bucket.
func isInRollout(programID, featureName string, percent int) bool {
	h := fnv.New32a()
	h.Write([]byte(featureName))
	h.Write([]byte(programID))
	return int(h.Sum32()%100) < percent
}

// SetProgramOverride forces a feature on or off for one program.
func (ff *FeatureFlags) SetProgramOverride(programID, featureName string, enabled bool) {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	if _, ok := ff.programOverrides[programID]; !ok {
		ff.programOverrides[programID] = make(map[string]bool)
	}
	ff.programOverrides[programID][featureName] = enabled
}

// ClearProgramOverrides removes all overrides for a program.
func (ff *FeatureFlags) ClearProgramOverrides(programID string) {
	ff.mu.Lock()
	defer ff.mu.Unlock()
	delete(ff.programOverrides, programID)
}

// SetRolloutPercent updates the rollout percentage for a feature.
func (ff *FeatureFlags) SetRolloutPercent(featureName string, percent int) error {
	ff.mu.Lock()
	defer ff.mu.Unlock()

	feature, ok := ff.features[featureName]
	if !ok {
		return ErrFeatureNotFound
	}
	if percent < 0 || percent > 100 {
		return ErrInvalidRolloutPercent
	}

	feature.RolloutPercent = percent
	feature.Enabled = percent > 0
	return nil
}

// EnableFeature enables a feature at 100% rollout.
func (ff *FeatureFlags) EnableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 100)
}

// DisableFeature disables a feature completely.
func (ff *FeatureFlags) DisableFeature(featureName string) error {
	return ff.SetRolloutPercent(featureName, 0)
}

// GetAllFeatures returns copies of all features sorted by name.
func (ff *FeatureFlags) GetAllFeatures() []Feature {
	ff.mu.RLock()
	defer ff.mu.RUnlock()

	result := make([]Feature, 0, len(ff.features))
	for _, v := range ff.features {
		result = append(result, *v)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

// --- Errors ---

var (
	ErrFeatureNotFound       = &FeatureFlagError{Message: "feature not found"}
	ErrInvalidRolloutPercent = &FeatureFlagError{Message: "rollout percent must be 0-100"}
)

// FeatureFlagError represents a feature flag error.
type FeatureFlagError struct {
	Message string
}

func (e *FeatureFlagError) Error() string {
	return e.Message
}
