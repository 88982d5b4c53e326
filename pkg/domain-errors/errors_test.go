package domainerrors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("direct code matches", func(t *testing.T) {
		err := New(CodeNotFound, "missing")
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeInternal))
	})

	t.Run("wrapped by fmt keeps code", func(t *testing.T) {
		err := errors.Join(errors.New("ctx"), New(CodeForbidden, "Insufficient permissions"))
		assert.True(t, HasCode(err, CodeForbidden))
	})

	t.Run("inner coded cause is visible", func(t *testing.T) {
		inner := New(CodeTimeout, "slow")
		err := Wrap(inner, CodeInternal, "failed")
		assert.True(t, HasCode(err, CodeInternal))
		assert.True(t, HasCode(err, CodeTimeout))
		assert.Equal(t, CodeInternal, CodeOf(err))
	})

	t.Run("plain error has no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
	})
}

func TestErrorIs(t *testing.T) {
	err := Wrap(errors.New("db down"), CodeInternal, "failed to save")
	require.ErrorIs(t, err, New(CodeInternal, "failed to save"))
	assert.NotErrorIs(t, err, New(CodeInternal, "other"))
}

func TestValidation(t *testing.T) {
	err := Validation("invalid request", FieldError{Field: "email", Message: "required"})
	de, ok := As(err)
	require.True(t, ok)
	assert.Equal(t, CodeValidation, de.Code)
	assert.Len(t, de.Fields, 1)
	assert.Nil(t, Wrap(nil, CodeInternal, "x"))
}
