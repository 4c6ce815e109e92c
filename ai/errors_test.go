package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProviderError(t *testing.T) {
	t.Run("error message includes operation", func(t *testing.T) {
		err := &ProviderError{Op: "embed", Err: errors.New("connection refused")}

		assert.Equal(t, "ai embed: connection refused", err.Error())
	})

	t.Run("unwrap exposes the underlying error", func(t *testing.T) {
		underlying := errors.New("boom")
		err := &ProviderError{Op: "generate", Err: underlying}

		assert.ErrorIs(t, err, underlying)
	})
}

func TestWrapProviderError(t *testing.T) {
	t.Run("remote failure is transient", func(t *testing.T) {
		err := WrapProviderError("embed", errors.New("502 bad gateway"))

		assert.True(t, err.Transient)
		assert.Equal(t, "embed", err.Op)
	})

	t.Run("context cancellation is permanent", func(t *testing.T) {
		err := WrapProviderError("embed", context.Canceled)

		assert.False(t, err.Transient)
	})

	t.Run("deadline expiry is transient", func(t *testing.T) {
		err := WrapProviderError("generate", context.DeadlineExceeded)

		assert.True(t, err.Transient)
	})

	t.Run("wrapped cancellation is still permanent", func(t *testing.T) {
		err := WrapProviderError("embed", fmt.Errorf("call failed: %w", context.Canceled))

		assert.False(t, err.Transient)
	})
}

func TestIsTransient(t *testing.T) {
	t.Run("transient provider error", func(t *testing.T) {
		err := WrapProviderError("embed", errors.New("timeout talking to upstream"))

		assert.True(t, IsTransient(err))
	})

	t.Run("permanent provider error", func(t *testing.T) {
		err := WrapProviderError("embed", context.Canceled)

		assert.False(t, IsTransient(err))
	})

	t.Run("wrapped provider error", func(t *testing.T) {
		err := fmt.Errorf("document 42: %w", WrapProviderError("embed", errors.New("eof")))

		assert.True(t, IsTransient(err))
	})

	t.Run("plain error is permanent", func(t *testing.T) {
		assert.False(t, IsTransient(errors.New("not a provider error")))
	})

	t.Run("nil is permanent", func(t *testing.T) {
		assert.False(t, IsTransient(nil))
	})
}
