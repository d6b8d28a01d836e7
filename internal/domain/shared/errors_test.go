package shared

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDomainError_Is(t *testing.T) {
	wrapped := fmt.Errorf("accept: %w", ErrMatchNotFound)

	assert.True(t, errors.Is(wrapped, ErrMatchNotFound))
	assert.True(t, IsNotFound(wrapped))
	assert.False(t, IsAlreadyExists(wrapped))
}

func TestErrorKinds(t *testing.T) {
	assert.True(t, IsInvalidState(ErrInvalidMatchState))
	assert.True(t, IsForbidden(ErrNotAssignedMentor))
	assert.True(t, IsCapacityExceeded(ErrCapacityExceeded))
	assert.True(t, IsAlreadyExists(ErrActiveMatchExists))
	assert.True(t, IsValidation(ErrInvalidPreferences))
	assert.True(t, errors.Is(ErrNoCandidateAvailable, ErrNoCandidate))
	assert.True(t, IsRetryable(ErrCommunityAPITimeout))
}

func TestWrapError_KeepsUnderlying(t *testing.T) {
	cause := errors.New("connection reset")
	err := WrapError("mentorship", "Accept", ErrServiceUnavailable, "store unavailable", cause)

	assert.True(t, errors.Is(err, cause))
	assert.True(t, errors.Is(err, ErrServiceUnavailable))
	assert.Equal(t, "mentorship.Accept: store unavailable: connection reset", err.Error())
}

func TestNewScore(t *testing.T) {
	assert.Equal(t, Score(0), NewScore(-5))
	assert.Equal(t, Score(100), NewScore(140))
	assert.Equal(t, Score(66.7), NewScore(66.666))
	assert.Equal(t, "42.0", NewScore(42).String())
}

func TestValidateID(t *testing.T) {
	assert.NoError(t, ValidateID("program_id", "p1"))

	err := ValidateID("program_id", "  ")
	assert.Error(t, err)
	assert.True(t, IsValidation(err))
}
