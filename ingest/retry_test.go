package ingest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/poiesic/recollect/ai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWithBackoff_Success(t *testing.T) {
	attempts := 0
	operation := func() error {
		attempts++
		return nil
	}

	err := RetryWithBackoff(context.Background(), operation, 3, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 1, attempts, "should succeed on first try")
}

func TestRetryWithBackoff_EventualSuccess(t *testing.T) {
	attempts := 0
	operation := func() error {
		attempts++
		if attempts < 3 {
			return errors.New("temporary error")
		}
		return nil
	}

	err := RetryWithBackoff(context.Background(), operation, 5, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 3, attempts, "should succeed on third attempt")
}

func TestRetryWithBackoff_AllAttemptsFail(t *testing.T) {
	attempts := 0
	expectedErr := errors.New("persistent error")
	operation := func() error {
		attempts++
		return expectedErr
	}

	err := RetryWithBackoff(context.Background(), operation, 3, 10*time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, expectedErr, err, "should return the original error")
	assert.Equal(t, 3, attempts, "should attempt exactly maxAttempts times")
}

func TestRetryWithBackoff_PermanentError(t *testing.T) {
	attempts := 0
	permanent := &ai.ProviderError{Op: "embed", Err: errors.New("model not found"), Transient: false}
	operation := func() error {
		attempts++
		return permanent
	}

	err := RetryWithBackoff(context.Background(), operation, 5, 10*time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, 1, attempts, "permanent errors should not be retried")

	var pe *ai.ProviderError
	assert.ErrorAs(t, err, &pe)
}

func TestRetryWithBackoff_TransientProviderError(t *testing.T) {
	attempts := 0
	operation := func() error {
		attempts++
		if attempts < 2 {
			return &ai.ProviderError{Op: "embed", Err: errors.New("connection refused"), Transient: true}
		}
		return nil
	}

	err := RetryWithBackoff(context.Background(), operation, 3, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 2, attempts, "transient provider errors should be retried")
}

func TestRetryWithBackoff_ContextCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	attempts := 0
	operation := func() error {
		attempts++
		if attempts == 2 {
			cancel() // Cancel after second attempt
		}
		return errors.New("error")
	}

	err := RetryWithBackoff(ctx, operation, 10, 10*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled, "should return context.Canceled")
	assert.LessOrEqual(t, attempts, 2, "should stop when context is canceled")
}

func TestRetryWithBackoff_ContextTimeout(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	attempts := 0
	operation := func() error {
		attempts++
		time.Sleep(30 * time.Millisecond) // Slow operation
		return errors.New("error")
	}

	err := RetryWithBackoff(ctx, operation, 10, 10*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded, "should return context.DeadlineExceeded")
	assert.LessOrEqual(t, attempts, 3, "should stop when context times out")
}

func TestRetryWithBackoff_ExponentialBackoff(t *testing.T) {
	attempts := 0
	var delays []time.Duration
	lastTime := time.Now()

	operation := func() error {
		attempts++
		if attempts > 1 {
			delays = append(delays, time.Since(lastTime))
		}
		lastTime = time.Now()
		if attempts < 4 {
			return errors.New("error")
		}
		return nil
	}

	err := RetryWithBackoff(context.Background(), operation, 5, 10*time.Millisecond)
	require.NoError(t, err)
	assert.Equal(t, 4, attempts)

	// Verify exponential backoff (each delay should be roughly 2x the previous)
	require.Len(t, delays, 3, "should have 3 delays")

	// Allow some tolerance for timing variance
	assert.Greater(t, delays[1], delays[0], "second delay should be greater than first")
	assert.Greater(t, delays[2], delays[1], "third delay should be greater than second")
}

func TestRetryWithBackoff_ZeroMaxAttempts(t *testing.T) {
	attempts := 0
	operation := func() error {
		attempts++
		return errors.New("error")
	}

	err := RetryWithBackoff(context.Background(), operation, 0, 10*time.Millisecond)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidMaxAttempts)
	assert.Equal(t, 0, attempts, "should not attempt with maxAttempts=0")
}

func TestRetryWithBackoff_NegativeMaxAttempts(t *testing.T) {
	attempts := 0
	operation := func() error {
		attempts++
		return errors.New("error")
	}

	err := RetryWithBackoff(context.Background(), operation, -1, 10*time.Millisecond)
	require.Error(t, err)
	assert.Equal(t, 0, attempts, "should not attempt with negative maxAttempts")
}

func TestRetryDecision(t *testing.T) {
	base := 10 * time.Millisecond
	plainErr := errors.New("store unavailable")
	transientErr := &ai.ProviderError{Op: "embed", Err: errors.New("timeout"), Transient: true}
	permanentErr := &ai.ProviderError{Op: "embed", Err: errors.New("bad request"), Transient: false}

	tests := []struct {
		name        string
		attempt     int
		maxAttempts int
		err         error
		wantDelay   time.Duration
		wantRetry   bool
	}{
		{"nil error never retries", 1, 3, nil, 0, false},
		{"first failure waits base delay", 1, 3, plainErr, base, true},
		{"second failure doubles", 2, 3, plainErr, 2 * base, true},
		{"third failure doubles again", 3, 5, plainErr, 4 * base, true},
		{"budget exhausted", 3, 3, plainErr, 0, false},
		{"attempt beyond budget", 4, 3, plainErr, 0, false},
		{"transient provider error retries", 1, 3, transientErr, base, true},
		{"permanent provider error stops", 1, 3, permanentErr, 0, false},
		{"wrapped permanent provider error stops", 1, 3, fmt.Errorf("batch: %w", permanentErr), 0, false},
		{"context cancellation stops", 1, 3, context.Canceled, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delay, retry := RetryDecision(tt.attempt, tt.maxAttempts, tt.err, base)
			assert.Equal(t, tt.wantRetry, retry)
			assert.Equal(t, tt.wantDelay, delay)
		})
	}
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(errors.New("plain store failure")))
	assert.True(t, IsRetryable(&ai.ProviderError{Op: "embed", Err: errors.New("refused"), Transient: true}))
	assert.True(t, IsRetryable(context.DeadlineExceeded), "per-call deadline expiry is retryable")
	assert.False(t, IsRetryable(&ai.ProviderError{Op: "generate", Err: errors.New("bad model"), Transient: false}))
	assert.False(t, IsRetryable(context.Canceled))
}
