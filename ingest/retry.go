// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package ingest

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/poiesic/recollect/ai"
)

// IsRetryable reports whether err is worth another attempt. Provider errors
// carry their own classification; for everything else only context
// cancellation is permanent, since the remaining failure modes at the
// suspension points (store I/O, per-call timeouts) are transient.
func IsRetryable(err error) bool {
	var pe *ai.ProviderError
	if errors.As(err, &pe) {
		return pe.Transient
	}
	return !errors.Is(err, context.Canceled)
}

// RetryDecision is the retry policy as a pure function: given a failed
// attempt it reports whether another attempt should be made and how long to
// wait first. attempt is 1-based. Transient errors retry with exponential
// backoff (baseDelay doubling per attempt); permanent errors and exhausted
// budgets do not retry.
func RetryDecision(attempt, maxAttempts int, err error, baseDelay time.Duration) (time.Duration, bool) {
	if err == nil || attempt >= maxAttempts {
		return 0, false
	}
	if !IsRetryable(err) {
		return 0, false
	}

	delay := baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
	}
	return delay, true
}

// RetryWithBackoff retries an operation under the RetryDecision policy.
// maxAttempts: maximum number of attempts (must be > 0)
// baseDelay: base delay between retries (doubles on each retry)
// Returns the error from the last attempt if all attempts fail. The context
// is checked before each attempt and while waiting, so a canceled or expired
// run stops promptly regardless of how the last error was classified.
func RetryWithBackoff(ctx context.Context, operation func() error, maxAttempts int, baseDelay time.Duration) error {
	if maxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		// Check context before attempting
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		lastErr = operation()
		if lastErr == nil {
			if attempt > 1 {
				slog.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return nil // Success
		}

		delay, retry := RetryDecision(attempt, maxAttempts, lastErr, baseDelay)
		if !retry {
			break
		}

		slog.Debug("operation failed, will retry", "attempt", attempt, "maxAttempts", maxAttempts, "error", lastErr)

		// Sleep with context awareness
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
			// Continue to next attempt
		}
	}

	return lastErr
}
