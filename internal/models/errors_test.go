package models

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestError_IsMatchesKindSentinel(t *testing.T) {
	err := fmt.Errorf("upsert: %w", DimensionMismatch("default", 4, 3))
	assert.ErrorIs(t, err, ErrValidation)
	assert.NotErrorIs(t, err, ErrNotFound)
	assert.Equal(t, KindValidation, KindOf(err))

	assert.ErrorIs(t, CollectionNotFound("c"), ErrNotFound)
	assert.ErrorIs(t, CollectionExists("c"), ErrAlreadyExists)
	assert.ErrorIs(t, CollectionDeleted("c"), ErrState)
}

func TestKindOf_PlainError(t *testing.T) {
	assert.Equal(t, KindInternal, KindOf(errors.New("boom")))
}

func TestInternal_Unwrap(t *testing.T) {
	cause := errors.New("disk full")
	err := Internal("persist points", cause)
	assert.ErrorIs(t, err, cause)
	assert.ErrorIs(t, err, ErrInternal)
	assert.Contains(t, err.Error(), "disk full")
}
