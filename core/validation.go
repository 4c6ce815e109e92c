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


package core

import (
	"fmt"
	"strings"
)

// ValidateMessage validates a normalized Message according to domain rules.
//
// Validation rules:
//   - Timestamp must be set
//   - Sender identity must be present (name or id)
//   - Text must not be empty or whitespace-only
//
// NOT validated:
//   - ReplyToID (0 is valid; dangling references are legal and resolved
//     by the thread detector against the open thread only)
//   - ID (exports may omit ids for service records)
func ValidateMessage(m *Message) error {
	if m == nil {
		return fmt.Errorf("%w: message is nil", ErrInvalidMessage)
	}

	if m.Timestamp.IsZero() {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, ErrMissingTimestamp)
	}

	if m.SenderName == "" && m.SenderID == "" {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, ErrMissingSender)
	}

	if strings.TrimSpace(m.Text) == "" {
		return fmt.Errorf("%w: %w", ErrInvalidMessage, ErrEmptyContent)
	}

	return nil
}

// ValidateThread validates an emitted Thread according to domain rules.
//
// Validation rules:
//   - ThreadID must be set
//   - Messages must be non-empty
//   - StartTime must not be after EndTime
func ValidateThread(t *Thread) error {
	if t == nil {
		return fmt.Errorf("%w: thread is nil", ErrInvalidThread)
	}

	if t.ThreadID == "" {
		return fmt.Errorf("%w: thread id is empty", ErrInvalidThread)
	}

	if len(t.Messages) == 0 {
		return fmt.Errorf("%w: %w", ErrInvalidThread, ErrEmptyThread)
	}

	if t.StartTime.After(t.EndTime) {
		return fmt.Errorf("%w: start time after end time", ErrInvalidThread)
	}

	return nil
}

// ValidateDocument validates a Document before it is embedded or stored.
//
// Validation rules:
//   - Body must not be empty
//   - Metadata message count must be positive
//   - Metadata time span must be ordered
//
// NOT validated (populated by the orchestrator):
//   - Vector (empty until the embedding call runs)
func ValidateDocument(d *Document) error {
	if d == nil {
		return fmt.Errorf("%w: document is nil", ErrInvalidDocument)
	}

	if d.Body == "" {
		return fmt.Errorf("%w: %w", ErrInvalidDocument, ErrEmptyBody)
	}

	if d.Metadata.MessageCount <= 0 {
		return fmt.Errorf("%w: message count must be positive", ErrInvalidDocument)
	}

	if d.Metadata.StartTime.After(d.Metadata.EndTime) {
		return fmt.Errorf("%w: start time after end time", ErrInvalidDocument)
	}

	return nil
}
