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
	"log/slog"
	"time"

	"github.com/poiesic/recollect/core"
)

// Config holds the thread detection parameters.
type Config struct {
	// TimeWindow is the maximum gap between consecutive messages of a
	// thread unless they are reply-linked.
	TimeWindow time.Duration

	// MaxMessages caps the size of a single thread. A reply into a full
	// thread still starts a new one.
	MaxMessages int

	// MinMessages suppresses emission of smaller threads by merging their
	// messages into the following thread. The final thread of a stream is
	// always emitted.
	MinMessages int
}

// DefaultConfig returns the standard detection parameters.
func DefaultConfig() *Config {
	return &Config{
		TimeWindow:  5 * time.Minute,
		MaxMessages: 50,
		MinMessages: 1,
	}
}

// Validate checks the configuration for consistency.
func (c *Config) Validate() error {
	if c.TimeWindow <= 0 {
		return fmt.Errorf("%w: time window must be positive", ErrInvalidConfig)
	}
	if c.MaxMessages < 1 {
		return fmt.Errorf("%w: max messages must be at least 1", ErrInvalidConfig)
	}
	if c.MinMessages < 1 {
		return fmt.Errorf("%w: min messages must be at least 1", ErrInvalidConfig)
	}
	if c.MinMessages > c.MaxMessages {
		return fmt.Errorf("%w: min messages exceeds max messages", ErrInvalidConfig)
	}
	return nil
}

// DetectReport accounts for detector-level observations of one pass.
type DetectReport struct {
	Messages         int
	Threads          int
	MergedForward    int // undersized threads folded into their successor
	OrderingWarnings int
}

// Detector partitions time-ordered messages into threads.
type Detector struct {
	config *Config
	logger *slog.Logger
}

// NewDetector creates a Detector with the given configuration.
func NewDetector(config *Config) (*Detector, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &Detector{
		config: config,
		logger: slog.Default().With("component", "detector"),
	}, nil
}

// openThread is the mutable thread under construction.
type openThread struct {
	messages []core.Message
	ids      map[int64]struct{}
}

// foldState carries everything a continuation decision depends on. Detect
// threads nothing through package state; the whole pass is a reduce over
// this struct.
type foldState struct {
	open    *openThread
	last    time.Time // latest timestamp seen across all threads
	hasLast bool
	report  DetectReport
}

// Detect partitions messages into threads. Input must be ordered by
// timestamp; an out-of-order message does not violate monotonicity inside
// any emitted thread, it closes the open thread and starts a new one, and
// the occurrence is counted as an ordering warning.
func (d *Detector) Detect(messages []core.Message) ([]core.Thread, DetectReport) {
	var threads []core.Thread
	st := foldState{}
	st.report.Messages = len(messages)

	emit := func(t *core.Thread) {
		if t != nil {
			threads = append(threads, *t)
		}
	}

	for i := range messages {
		next, emitted := d.step(st, messages[i])
		st = next
		emit(emitted)
	}

	// Stream end: the final thread always emits, regardless of size.
	if st.open != nil {
		emit(d.seal(st.open, len(threads)+1))
	}

	st.report.Threads = len(threads)
	if st.report.OrderingWarnings > 0 {
		d.logger.Warn("out-of-order messages encountered",
			"count", st.report.OrderingWarnings)
	}
	return threads, st.report
}

// step processes one message and returns the successor state plus an
// emitted thread, if this message closed one.
func (d *Detector) step(st foldState, m core.Message) (foldState, *core.Thread) {
	outOfOrder := st.hasLast && m.Timestamp.Before(st.last)
	st.last = m.Timestamp
	st.hasLast = true

	if outOfOrder {
		st.report.OrderingWarnings++
		d.logger.Warn("message timestamp regressed, starting new thread",
			"message_id", m.ID,
			"timestamp", m.Timestamp)
		// Carrying older messages into the new thread would invert its
		// internal order, so the open thread emits even when undersized.
		var emitted *core.Thread
		if st.open != nil {
			emitted = d.seal(st.open, st.report.Threads+1)
			st.report.Threads++
		}
		st.open = d.openWith(nil, m)
		return st, emitted
	}

	if st.open == nil {
		st.open = d.openWith(nil, m)
		return st, nil
	}

	if len(st.open.messages) >= d.config.MaxMessages {
		return d.closeAndReopen(st, m)
	}

	if d.continues(st.open, m) {
		st.open.append(m)
		return st, nil
	}

	return d.closeAndReopen(st, m)
}

// continues decides whether m extends the open thread: reply linkage first
// (unbounded by time), then the time window.
func (d *Detector) continues(open *openThread, m core.Message) bool {
	if m.ReplyToID != 0 {
		if _, ok := open.ids[m.ReplyToID]; ok {
			return true
		}
	}

	last := open.messages[len(open.messages)-1]
	return m.Timestamp.Sub(last.Timestamp) <= d.config.TimeWindow
}

// closeAndReopen closes the open thread against MinMessages and starts a
// fresh one with m. Undersized threads are not emitted; their messages seed
// the new thread instead.
func (d *Detector) closeAndReopen(st foldState, m core.Message) (foldState, *core.Thread) {
	var emitted *core.Thread
	if len(st.open.messages) >= d.config.MinMessages {
		emitted = d.seal(st.open, st.report.Threads+1)
		st.report.Threads++
		st.open = d.openWith(nil, m)
	} else {
		st.report.MergedForward++
		st.open = d.openWith(st.open.messages, m)
	}
	return st, emitted
}

// openWith starts a thread seeded with any carried messages plus m.
func (d *Detector) openWith(carry []core.Message, m core.Message) *openThread {
	open := &openThread{
		messages: make([]core.Message, 0, len(carry)+1),
		ids:      make(map[int64]struct{}, len(carry)+1),
	}
	for _, c := range carry {
		open.append(c)
	}
	open.append(m)
	return open
}

func (o *openThread) append(m core.Message) {
	o.messages = append(o.messages, m)
	if m.ID != 0 {
		o.ids[m.ID] = struct{}{}
	}
}

// seal freezes an open thread into an immutable core.Thread. Thread IDs
// derive from the first message's timestamp and the running emission
// counter, so they are stable across re-runs of identical input.
func (d *Detector) seal(open *openThread, counter int) *core.Thread {
	first := open.messages[0]
	last := open.messages[len(open.messages)-1]

	var participants []string
	seen := make(map[string]struct{})
	for _, m := range open.messages {
		key := m.SenderID
		if key == "" {
			key = m.SenderName
		}
		if _, ok := seen[key]; !ok {
			seen[key] = struct{}{}
			participants = append(participants, key)
		}
	}

	return &core.Thread{
		ThreadID: fmt.Sprintf("thread_%s_%04d",
			first.Timestamp.UTC().Format("20060102_150405"), counter),
		Messages:     open.messages,
		Participants: participants,
		StartTime:    first.Timestamp,
		EndTime:      last.Timestamp,
	}
}
