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


package telegram

import (
	"log/slog"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/poiesic/recollect/core"
)

// membershipActions maps the service actions that change a chat's
// participant set to their rendered descriptions. Other service records
// (pins, photo edits, channel lifecycle) carry no conversational signal
// and are dropped during normalization.
var membershipActions = map[string]string{
	"join_channel":          "joined the channel",
	"leave_channel":         "left the channel",
	"invite_members":        "invited new members",
	"remove_members":        "removed members",
	"join_group_by_link":    "joined the group via invite link",
	"join_group_by_request": "joined the group by request",
}

// dateLayout is the fallback timestamp format Telegram writes alongside
// date_unixtime.
const dateLayout = "2006-01-02T15:04:05"

// NormalizeReport accounts for records the normalizer could not emit.
type NormalizeReport struct {
	Total          int
	Emitted        int
	Dropped        int
	ServiceKept    int
	ServiceDropped int
}

// Normalizer converts raw export records into canonical messages.
// The same input always yields the same output sequence.
type Normalizer struct {
	logger *slog.Logger
}

// NewNormalizer creates a Normalizer.
func NewNormalizer() *Normalizer {
	return &Normalizer{
		logger: slog.Default().With("component", "normalizer"),
	}
}

// Normalize converts an export's records into messages ordered by timestamp,
// ties keeping original export order. Records missing a timestamp or sender
// identity, records with no text content, and non-membership service records
// are dropped and counted, never fatal.
func (n *Normalizer) Normalize(export *Export) ([]core.Message, NormalizeReport) {
	report := NormalizeReport{Total: len(export.Messages)}
	messages := make([]core.Message, 0, len(export.Messages))

	for i := range export.Messages {
		raw := &export.Messages[i]

		msg, ok := n.normalizeOne(raw, &report)
		if !ok {
			report.Dropped++
			continue
		}
		messages = append(messages, msg)
	}

	// Stable: equal timestamps keep export order.
	sort.SliceStable(messages, func(i, j int) bool {
		return messages[i].Timestamp.Before(messages[j].Timestamp)
	})

	report.Emitted = len(messages)
	if report.Dropped > 0 {
		n.logger.Debug("normalization dropped records",
			"total", report.Total,
			"dropped", report.Dropped,
			"service_dropped", report.ServiceDropped)
	}
	return messages, report
}

func (n *Normalizer) normalizeOne(raw *RawMessage, report *NormalizeReport) (core.Message, bool) {
	ts, ok := parseTimestamp(raw)
	if !ok {
		return core.Message{}, false
	}

	msg := core.Message{
		ID:        raw.ID,
		Timestamp: ts,
		ReplyToID: raw.ReplyToMessageID,
	}

	switch raw.Type {
	case TypeService:
		verb, relevant := membershipActions[raw.Action]
		if !relevant {
			report.ServiceDropped++
			return core.Message{}, false
		}
		msg.SenderName = raw.Actor
		msg.SenderID = raw.ActorID
		if msg.SenderName == "" && msg.SenderID == "" {
			return core.Message{}, false
		}
		actor := msg.SenderName
		if actor == "" {
			actor = msg.SenderID
		}
		msg.Text = actor + " " + verb
		msg.Service = true
		report.ServiceKept++

	case TypeMessage:
		msg.SenderName = raw.From
		msg.SenderID = raw.FromID
		msg.Text = raw.Flatten()

	default:
		return core.Message{}, false
	}

	if err := core.ValidateMessage(&msg); err != nil {
		return core.Message{}, false
	}
	return msg, true
}

// parseTimestamp resolves the record timestamp, preferring the unix field.
func parseTimestamp(raw *RawMessage) (time.Time, bool) {
	if raw.DateUnix != "" {
		secs, err := strconv.ParseInt(strings.TrimSpace(raw.DateUnix), 10, 64)
		if err == nil && secs > 0 {
			return time.Unix(secs, 0).UTC(), true
		}
	}
	if raw.Date != "" {
		if ts, err := time.Parse(dateLayout, raw.Date); err == nil {
			return ts.UTC(), true
		}
	}
	return time.Time{}, false
}
