package core

import (
	"encoding/binary"
	"time"

	"github.com/go-crypt/x/blake2b"
	"github.com/google/uuid"
)

// ID is a stable identifier for stored documents.
// Document IDs are content fingerprints: any change to a thread's membership
// or rendered body yields a different ID, so re-ingesting unchanged input is
// a no-op and replays after a crash cannot create duplicates.
type ID uint64

// IDFromContent generates a deterministic ID from text content using BLAKE2b hashing.
// This ensures that identical content produces identical IDs.
func IDFromContent(text string) ID {
	h, _ := blake2b.New(8, nil) // 8 bytes = 64 bits
	h.Write([]byte(text))
	sum := h.Sum(nil)
	return ID(binary.LittleEndian.Uint64(sum))
}

// Fingerprint computes a document's identity from its metadata and rendered
// body. The hash covers participants, message count, time span, and body;
// a source tag does not contribute, so the same conversation uploaded under
// two source names deduplicates to one document.
func Fingerprint(meta DocumentMetadata, body string) ID {
	h, _ := blake2b.New(8, nil)
	var buf [8]byte
	for _, p := range meta.Participants {
		h.Write([]byte(p))
		h.Write([]byte{0})
	}
	binary.LittleEndian.PutUint64(buf[:], uint64(meta.MessageCount))
	h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(meta.StartTime.UnixMicro()))
	h.Write(buf[:])
	binary.LittleEndian.PutUint64(buf[:], uint64(meta.EndTime.UnixMicro()))
	h.Write(buf[:])
	h.Write([]byte(body))
	return ID(binary.LittleEndian.Uint64(h.Sum(nil)))
}

// Message is a chat message in canonical normalized form.
// Service records survive normalization only when they describe a membership
// change; those carry synthetic text ("Alice joined the group") and Service=true.
type Message struct {
	ID         int64
	Timestamp  time.Time // always UTC
	SenderName string
	SenderID   string
	Text       string
	ReplyToID  int64 // 0 when the message is not a reply
	Service    bool
}

// IsReply reports whether the message references another message.
func (m *Message) IsReply() bool {
	return m.ReplyToID != 0
}

// Thread is a contiguous group of messages judged to belong to one
// conversation. It is owned by the detector while open and immutable once
// emitted.
type Thread struct {
	ThreadID     string
	Messages     []Message
	Participants []string // sender IDs in first-appearance order
	StartTime    time.Time
	EndTime      time.Time
}

// Duration returns the elapsed time between the first and last message.
func (t *Thread) Duration() time.Duration {
	return t.EndTime.Sub(t.StartTime)
}

// DocumentMetadata is the structured summary stored alongside a document body.
type DocumentMetadata struct {
	Participants []string // display names in first-appearance order
	MessageCount int
	StartTime    time.Time
	EndTime      time.Time
	SourceChat   string // merge-upload tag; empty for untagged corpora
	WordCount    int
	HasQuestions bool
	HasLinks     bool
	HasService   bool
}

// Document is the retrievable unit derived from a thread: a rendered text
// body plus metadata, keyed by content fingerprint. Vector is populated by
// the ingestion orchestrator before upsert.
type Document struct {
	ID       ID
	ThreadID string
	Body     string
	Metadata DocumentMetadata
	Vector   []float32
}

// IngestionState is the durable progress view an incremental run starts
// from. It is derived from the store (the store is ground truth), never
// cached separately, so a committed upsert is also the state update.
type IngestionState struct {
	HighWaterMark     time.Time
	HasHighWaterMark  bool
	KnownFingerprints map[ID]struct{}
}

// Knows reports whether the given fingerprint is already stored.
func (s *IngestionState) Knows(id ID) bool {
	_, ok := s.KnownFingerprints[id]
	return ok
}

// IngestError records why a single document failed to ingest.
type IngestError struct {
	DocumentID ID     `json:"document_id"`
	Reason     string `json:"reason"`
}

// RunReport accumulates the outcome of one ingestion run. The attempted,
// succeeded, and failed counters together with Errors are the caller-visible
// result; a run that started always produces a report, never a bare error.
type RunReport struct {
	RunID             string        `json:"run_id"`
	Mode              string        `json:"mode"`
	SourceTag         string        `json:"source_tag,omitempty"`
	StartedAt         time.Time     `json:"started_at"`
	FinishedAt        time.Time     `json:"finished_at"`
	MessagesTotal     int           `json:"messages_total"`
	MessagesDropped   int           `json:"messages_dropped"`
	ThreadsDetected   int           `json:"threads_detected"`
	DocumentsEligible int           `json:"documents_eligible"`
	DocumentsSkipped  int           `json:"documents_skipped"`
	Attempted         int           `json:"attempted"`
	Succeeded         int           `json:"succeeded"`
	Failed            int           `json:"failed"`
	OrderingWarnings  int           `json:"ordering_warnings"`
	Errors            []IngestError `json:"errors,omitempty"`
}

// NewRunReport creates a report for a starting run.
func NewRunReport(mode, sourceTag string) *RunReport {
	return &RunReport{
		RunID:     uuid.NewString(),
		Mode:      mode,
		SourceTag: sourceTag,
		StartedAt: time.Now().UTC(),
	}
}

// SearchResult represents a search result with the full document and
// blended relevance score.
type SearchResult struct {
	Document *Document
	Score    float32
}
