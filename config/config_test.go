package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)

	engine := cfg.MatchingEngine()
	assert.Equal(t, 20, engine.MaxMenteesPerMentor)
	assert.Equal(t, 72*time.Hour, engine.ResponseWindow)
	assert.False(t, engine.CascadeAlgorithmMatches)
	require.NoError(t, engine.Validate())

	assert.Equal(t, "0.0.0.0:8080", cfg.HTTPAddr())
	assert.Equal(t, 5*time.Minute, cfg.Matching.SweepInterval)
	assert.Empty(t, cfg.Matching.InitiateCron)
	assert.True(t, cfg.IsDevelopment())
}

func TestLoadFromEnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	content := "MATCH_MAX_MENTEES_PER_MENTOR=5\n" +
		"MATCH_RESPONSE_WINDOW=48h\n" +
		"KAFKA_BROKERS=k1:9092, k2:9092\n" +
		"FEATURE_CASCADE_ALGORITHM_MATCHES=true\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	t.Cleanup(func() {
		for _, k := range []string{"MATCH_MAX_MENTEES_PER_MENTOR", "MATCH_RESPONSE_WINDOW", "KAFKA_BROKERS", "FEATURE_CASCADE_ALGORITHM_MATCHES"} {
			os.Unsetenv(k)
		}
	})

	// real env wins over the file
	t.Setenv("MATCH_CONCURRENCY", "3")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Matching.MaxMenteesPerMentor)
	assert.Equal(t, 48*time.Hour, cfg.Matching.ResponseWindow)
	assert.Equal(t, 3, cfg.Matching.Concurrency)
	assert.Equal(t, []string{"k1:9092", "k2:9092"}, cfg.Kafka.Brokers)
	assert.True(t, cfg.MatchingEngine().CascadeAlgorithmMatches)
}

func TestValidate(t *testing.T) {
	t.Setenv("APP_ENV", "production")
	t.Setenv("MATCH_CONCURRENCY", "0")
	t.Setenv("FEATURE_KAFKA_EVENTS", "true")
	t.Setenv("HTTP_PORT", "70000")

	_, err := Load(filepath.Join(t.TempDir(), "none.env"))
	require.Error(t, err)
	msg := err.Error()
	assert.Contains(t, msg, "DATABASE_URL is required")
	assert.Contains(t, msg, "concurrency must be positive")
	assert.Contains(t, msg, "KAFKA_BROKERS is required")
	assert.Contains(t, msg, "HTTP_PORT")
}

func TestFeatureFlags(t *testing.T) {
	t.Setenv("FEATURE_AUTO_INITIATE_MATCHING", "true")
	t.Setenv("FEATURE_KAFKA_EVENTS", "30")

	ff := LoadFeatureFlags()
	assert.True(t, ff.IsEnabled(FeatureAutoInitiateMatching, nil))
	assert.True(t, ff.IsEnabled(FeatureDistributedMentorLock, nil))
	assert.False(t, ff.IsEnabled(FeatureCascadeAlgorithmMatches, nil))
	assert.False(t, ff.IsEnabled("unknown", nil))

	// partial rollout is off globally and stable per program
	assert.False(t, ff.IsEnabled(FeatureKafkaEvents, nil))
	ctx := &FeatureContext{ProgramID: "spring-2026"}
	first := ff.IsEnabled(FeatureKafkaEvents, ctx)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, ff.IsEnabled(FeatureKafkaEvents, ctx))
	}

	ff.SetProgramOverride("spring-2026", FeatureCascadeAlgorithmMatches, true)
	assert.True(t, ff.IsEnabled(FeatureCascadeAlgorithmMatches, ctx))
	ff.ClearProgramOverrides("spring-2026")
	assert.False(t, ff.IsEnabled(FeatureCascadeAlgorithmMatches, ctx))

	assert.ErrorIs(t, ff.SetRolloutPercent("unknown", 10), ErrFeatureNotFound)
	assert.ErrorIs(t, ff.SetRolloutPercent(FeatureKafkaEvents, 101), ErrInvalidRolloutPercent)
	require.NoError(t, ff.DisableFeature(FeatureDistributedMentorLock))
	assert.False(t, ff.IsEnabled(FeatureDistributedMentorLock, nil))

	until := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	ff.features[FeatureCollaborationSpaces].EnabledUntil = &until
	ff.now = func() time.Time { return until.Add(time.Hour) }
	assert.False(t, ff.IsEnabled(FeatureCollaborationSpaces, nil))

	all := ff.GetAllFeatures()
	require.Len(t, all, 5)
	assert.Equal(t, FeatureAutoInitiateMatching, all[0].Name)
}

func TestFeatureNameToEnvKey(t *testing.T) {
	assert.Equal(t, "FEATURE_KAFKA_EVENTS", featureNameToEnvKey(FeatureKafkaEvents))
}
