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
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/poiesic/recollect/core"
)

// RawMessage mirrors a single record of a Telegram Desktop export.
// Regular records carry from/from_id, service records actor/actor_id/action.
// The text field is either a plain string or a list of formatting entities;
// Flatten resolves both shapes.
type RawMessage struct {
	ID               int64           `json:"id"`
	Type             string          `json:"type"`
	Date             string          `json:"date"`
	DateUnix         string          `json:"date_unixtime"`
	From             string          `json:"from"`
	FromID           string          `json:"from_id"`
	Actor            string          `json:"actor"`
	ActorID          string          `json:"actor_id"`
	Action           string          `json:"action"`
	Text             json.RawMessage `json:"text"`
	ReplyToMessageID int64           `json:"reply_to_message_id"`
}

// Record kinds as written by Telegram Desktop.
const (
	TypeMessage = "message"
	TypeService = "service"
)

// Export is the top-level structure of a Telegram chat export file.
type Export struct {
	Name     string       `json:"name"`
	Type     string       `json:"type"`
	ID       int64        `json:"id"`
	Messages []RawMessage `json:"messages"`
}

// exportProbe distinguishes a missing messages key from an empty one.
type exportProbe struct {
	Name     string        `json:"name"`
	Type     string        `json:"type"`
	ID       int64         `json:"id"`
	Messages *[]RawMessage `json:"messages"`
}

// ParseExport decodes an export payload and validates its structure.
// It fails fast with core.ErrInvalidExport when the payload is not a JSON
// object and with core.ErrMissingMessages when no message collection is
// present; per-record problems are left to the Normalizer.
func ParseExport(r io.Reader) (*Export, error) {
	var probe exportProbe
	dec := json.NewDecoder(r)
	if err := dec.Decode(&probe); err != nil {
		return nil, fmt.Errorf("%w: %w", core.ErrInvalidExport, err)
	}

	if probe.Messages == nil {
		return nil, core.ErrMissingMessages
	}

	return &Export{
		Name:     probe.Name,
		Type:     probe.Type,
		ID:       probe.ID,
		Messages: *probe.Messages,
	}, nil
}

// ParseExportFile opens and parses an export file from disk.
func ParseExportFile(path string) (*Export, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open export file: %w", err)
	}
	defer f.Close()

	export, err := ParseExport(f)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return export, nil
}

// Flatten resolves the text field to plain text. Telegram writes either a
// string or a mixed array of strings and entity objects with a "text" key.
func (m *RawMessage) Flatten() string {
	if len(m.Text) == 0 {
		return ""
	}

	var s string
	if err := json.Unmarshal(m.Text, &s); err == nil {
		return s
	}

	var parts []any
	if err := json.Unmarshal(m.Text, &parts); err != nil {
		return ""
	}

	var out []byte
	for _, p := range parts {
		switch v := p.(type) {
		case string:
			out = append(out, v...)
		case map[string]any:
			if t, ok := v["text"].(string); ok {
				out = append(out, t...)
			}
		}
	}
	return string(out)
}
