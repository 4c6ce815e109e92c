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


package ai

import (
	"context"
	"errors"
	"fmt"
)

// ProviderError wraps an upstream AI service failure and records whether a
// retry could plausibly succeed. Request failures against a live service,
// including per-call deadline expiry, are transient; cancellation of the
// caller's context is not.
type ProviderError struct {
	// Op names the failed operation, "embed" or "generate".
	Op string

	// Err is the underlying client error.
	Err error

	// Transient reports whether retrying the same call may succeed.
	Transient bool
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("ai %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// WrapProviderError classifies err for the given operation. Context
// cancellation is permanent; everything else, deadline expiry included,
// is worth retrying. Retry loops check their own context separately, so a
// run whose deadline expired still stops after the current attempt.
func WrapProviderError(op string, err error) *ProviderError {
	transient := !errors.Is(err, context.Canceled)
	return &ProviderError{Op: op, Err: err, Transient: transient}
}

// IsTransient reports whether err is a provider failure worth retrying.
// Errors that are not ProviderError are permanent.
func IsTransient(err error) bool {
	var pe *ProviderError
	if errors.As(err, &pe) {
		return pe.Transient
	}
	return false
}
