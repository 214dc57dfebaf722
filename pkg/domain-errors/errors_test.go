package domainerrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWrapNilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(nil, CodeInternal, "should vanish"))
}

func TestCodeOf(t *testing.T) {
	t.Run("coded error returns its code", func(t *testing.T) {
		err := New(CodeNotFound, "ledger missing")
		assert.Equal(t, CodeNotFound, CodeOf(err))
	})

	t.Run("wrapped cause keeps outer code", func(t *testing.T) {
		inner := New(CodeUnavailable, "redis down")
		outer := Wrap(inner, CodeInternal, "status read failed")
		assert.Equal(t, CodeInternal, CodeOf(outer))
	})

	t.Run("plain error defaults to internal", func(t *testing.T) {
		assert.Equal(t, CodeInternal, CodeOf(errors.New("plain")))
	})
}

func TestHasCode(t *testing.T) {
	inner := New(CodeConflict, "write conflict")
	outer := Wrap(inner, CodeInternal, "reserve failed")

	assert.True(t, HasCode(outer, CodeInternal))
	assert.True(t, HasCode(outer, CodeConflict), "inner code should be visible through the chain")
	assert.False(t, HasCode(outer, CodeNotFound))
	assert.False(t, HasCode(nil, CodeInternal))
}

func TestUnwrapChain(t *testing.T) {
	cause := errors.New("connection refused")
	err := Wrap(fmt.Errorf("dial: %w", cause), CodeUnavailable, "tier unreachable")

	require.Error(t, err)
	assert.True(t, errors.Is(err, cause))
}
