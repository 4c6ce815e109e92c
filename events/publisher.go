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


// Package events publishes archive lifecycle events to NATS.
//
// Publishing is optional: a nil *Publisher is safe to call and does
// nothing, so callers wire events in unconditionally and configuration
// decides whether anything leaves the process. Publish failures are
// logged, never returned; eventing is advisory and must not fail a run.
package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/poiesic/recollect/core"
	"github.com/poiesic/recollect/ingest"
)

const (
	// SubjectRunCompleted carries run.completed events.
	SubjectRunCompleted = "recollect.runs.completed"

	// SubjectUploadApplied carries upload.applied events.
	SubjectUploadApplied = "recollect.uploads.applied"
)

// RunCompletedEvent summarizes a finished ingestion run.
type RunCompletedEvent struct {
	Event             string    `json:"event"`
	RunID             string    `json:"run_id"`
	Mode              string    `json:"mode"`
	SourceTag         string    `json:"source_tag,omitempty"`
	DocumentsEligible int       `json:"documents_eligible"`
	Attempted         int       `json:"attempted"`
	Succeeded         int       `json:"succeeded"`
	Failed            int       `json:"failed"`
	FinishedAt        time.Time `json:"finished_at"`
}

// UploadAppliedEvent summarizes an applied chat-export upload.
type UploadAppliedEvent struct {
	Event      string    `json:"event"`
	RunID      string    `json:"run_id"`
	Mode       string    `json:"mode"`
	SourceTag  string    `json:"source_tag,omitempty"`
	BackupPath string    `json:"backup_path,omitempty"`
	Succeeded  int       `json:"succeeded"`
	Skipped    int       `json:"skipped"`
	AppliedAt  time.Time `json:"applied_at"`
}

// Publisher publishes archive events to a NATS server.
type Publisher struct {
	conn   *nats.Conn
	logger *slog.Logger
}

// Connect dials the NATS server at url. The connection retries failed
// connects and reconnects in the background so a briefly absent broker
// does not block startup.
func Connect(url string, logger *slog.Logger) (*Publisher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts := []nats.Option{
		nats.RetryOnFailedConnect(true),
		nats.MaxReconnects(60),
		nats.ReconnectWait(2 * time.Second),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "err", err)
			}
		}),
		nats.ReconnectHandler(func(_ *nats.Conn) {
			logger.Info("nats reconnected")
		}),
	}

	conn, err := nats.Connect(url, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	return &Publisher{conn: conn, logger: logger}, nil
}

// PublishRunCompleted publishes a run.completed event.
// Safe on a nil publisher.
func (p *Publisher) PublishRunCompleted(report *core.RunReport) {
	if p == nil || report == nil {
		return
	}
	p.publish(SubjectRunCompleted, newRunCompletedEvent(report))
}

// PublishUploadApplied publishes an upload.applied event.
// Safe on a nil publisher.
func (p *Publisher) PublishUploadApplied(outcome *ingest.UploadOutcome) {
	if p == nil || outcome == nil || outcome.Report == nil {
		return
	}
	p.publish(SubjectUploadApplied, newUploadAppliedEvent(outcome))
}

func newRunCompletedEvent(report *core.RunReport) RunCompletedEvent {
	return RunCompletedEvent{
		Event:             "run.completed",
		RunID:             report.RunID,
		Mode:              report.Mode,
		SourceTag:         report.SourceTag,
		DocumentsEligible: report.DocumentsEligible,
		Attempted:         report.Attempted,
		Succeeded:         report.Succeeded,
		Failed:            report.Failed,
		FinishedAt:        report.FinishedAt,
	}
}

func newUploadAppliedEvent(outcome *ingest.UploadOutcome) UploadAppliedEvent {
	return UploadAppliedEvent{
		Event:      "upload.applied",
		RunID:      outcome.Report.RunID,
		Mode:       string(outcome.Mode),
		SourceTag:  outcome.Report.SourceTag,
		BackupPath: outcome.BackupPath,
		Succeeded:  outcome.Report.Succeeded,
		Skipped:    outcome.Report.DocumentsSkipped,
		AppliedAt:  outcome.Report.FinishedAt,
	}
}

// Close drains the connection. Safe on a nil publisher.
func (p *Publisher) Close() {
	if p == nil || p.conn == nil {
		return
	}
	p.conn.Close()
}

func (p *Publisher) publish(subject string, event any) {
	payload, err := json.Marshal(event)
	if err != nil {
		p.logger.Warn("marshal event", "subject", subject, "err", err)
		return
	}
	if err := p.conn.Publish(subject, payload); err != nil {
		p.logger.Warn("publish event", "subject", subject, "err", err)
	}
}
