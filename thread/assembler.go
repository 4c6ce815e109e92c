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


package thread

import (
	"fmt"
	"strings"
	"time"

	"github.com/poiesic/recollect/core"
)

type assembleOptions struct {
	sourceTag     string
	contextHeader bool
}

// AssembleOption configures document assembly.
type AssembleOption func(*assembleOptions)

// WithSourceTag records the upload source in the document metadata.
// The tag does not participate in the content fingerprint.
func WithSourceTag(tag string) AssembleOption {
	return func(o *assembleOptions) {
		o.sourceTag = tag
	}
}

// WithContextHeader prepends a participant summary line above the body,
// giving the embedding model conversation context. The header never
// reorders or rewrites the messages themselves.
func WithContextHeader() AssembleOption {
	return func(o *assembleOptions) {
		o.contextHeader = true
	}
}

// ContextHeader renders the summary line used above document bodies and in
// retrieval results.
func ContextHeader(participants []string, messageCount int) string {
	return fmt.Sprintf("[Thread with %s - %d messages]",
		strings.Join(participants, ", "), messageCount)
}

// Assemble renders a thread into its retrievable document: one line per
// message in the form "[RFC3339 timestamp] sender: text", whitespace-only
// content skipped, plus a structured metadata summary. The document ID is
// the content fingerprint, so Assemble is deterministic for a given thread
// and option set.
func Assemble(t *core.Thread, opts ...AssembleOption) (*core.Document, error) {
	if err := core.ValidateThread(t); err != nil {
		return nil, err
	}

	var options assembleOptions
	for _, opt := range opts {
		opt(&options)
	}

	meta := core.DocumentMetadata{
		MessageCount: len(t.Messages),
		StartTime:    t.StartTime,
		EndTime:      t.EndTime,
		SourceChat:   options.sourceTag,
	}

	lines := make([]string, 0, len(t.Messages))
	seen := make(map[string]struct{}, len(t.Participants))
	for i := range t.Messages {
		m := &t.Messages[i]

		name := displayName(m)
		if _, ok := seen[name]; !ok {
			seen[name] = struct{}{}
			meta.Participants = append(meta.Participants, name)
		}

		if strings.Contains(m.Text, "?") {
			meta.HasQuestions = true
		}
		if strings.Contains(m.Text, "http") {
			meta.HasLinks = true
		}
		if m.Service {
			meta.HasService = true
		}
		meta.WordCount += len(strings.Fields(m.Text))

		if strings.TrimSpace(m.Text) == "" {
			continue
		}
		lines = append(lines, fmt.Sprintf("[%s] %s: %s",
			m.Timestamp.UTC().Format(time.RFC3339), name, m.Text))
	}

	if len(lines) == 0 {
		return nil, fmt.Errorf("%w: thread %s", core.ErrEmptyBody, t.ThreadID)
	}

	body := strings.Join(lines, "\n")
	if options.contextHeader {
		body = ContextHeader(meta.Participants, meta.MessageCount) + "\n" + body
	}

	return &core.Document{
		ID:       core.Fingerprint(meta, body),
		ThreadID: t.ThreadID,
		Body:     body,
		Metadata: meta,
	}, nil
}

// AssembleAll renders every thread, collecting per-thread failures without
// aborting the batch.
func AssembleAll(threads []core.Thread, opts ...AssembleOption) ([]core.Document, []error) {
	docs := make([]core.Document, 0, len(threads))
	var errs []error
	for i := range threads {
		doc, err := Assemble(&threads[i], opts...)
		if err != nil {
			errs = append(errs, fmt.Errorf("thread %s: %w", threads[i].ThreadID, err))
			continue
		}
		docs = append(docs, *doc)
	}
	return docs, errs
}

// displayName resolves the name rendered in document bodies.
func displayName(m *core.Message) string {
	if m.SenderName != "" {
		return m.SenderName
	}
	if m.SenderID != "" {
		return m.SenderID
	}
	return "Unknown"
}
