package domain

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDomainError_Error(t *testing.T) {
	err := NewDomainError(ErrCodeNotFound, "thing not found")
	assert.Equal(t, "[NOT_FOUND] thing not found", err.Error())

	wrapped := NewDomainErrorWithCause(ErrCodeInternalError, "boom", errors.New("cause"))
	assert.Equal(t, "[INTERNAL_ERROR] boom: cause", wrapped.Error())
}

func TestWrap_MatchesSentinel(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(ErrProcessingFailed, cause)

	assert.ErrorIs(t, err, ErrProcessingFailed)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrSynthesisFailed)
}

func TestAsDomainError_ThroughFmtWrap(t *testing.T) {
	err := fmt.Errorf("ingest: %w", Wrap(ErrBackendUnavailable, errors.New("timeout")))

	de, ok := AsDomainError(err)
	require.True(t, ok)
	assert.Equal(t, ErrCodeBackendUnavailable, de.Code)

	_, ok = AsDomainError(errors.New("plain"))
	assert.False(t, ok)
}
