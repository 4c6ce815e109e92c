package storage

import (
	"context"
	"io"
	"time"

	"github.com/poiesic/recollect/core"
)

// Repository provides common storage operations shared across all repositories.
// Implementations must be thread-safe and support concurrent access.
type Repository interface {
	// FindSimilar finds documents similar to the given vector.
	// Returns documents with similarity >= minSimilarity, up to limit results.
	// Results are ordered by similarity score (highest first).
	// Documents without a stored vector are skipped.
	FindSimilar(ctx context.Context, vector []float32, minSimilarity float32, limit int) ([]*core.SearchResult, error)

	// WithTransaction executes a function within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// If fn returns nil, the transaction is committed.
	// The context passed to fn may contain transaction state.
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error

	// Close closes the storage backend and releases resources.
	Close() error
}

// DocumentRepository provides operations for managing conversation documents.
// Documents are keyed by their content fingerprint, so writing the same
// document twice is a no-op rather than a duplicate.
type DocumentRepository interface {
	Repository
	// UpsertDocuments inserts or replaces one or more documents.
	// A document whose ID already exists is overwritten in place; the
	// end-time index stays consistent because the ID pins the end time.
	UpsertDocuments(ctx context.Context, docs ...*core.Document) error

	// GetDocument retrieves a single document by ID.
	// Returns ErrNotFound if the document doesn't exist.
	GetDocument(ctx context.Context, id core.ID) (*core.Document, error)

	// HasDocument reports whether a document with the given ID exists.
	HasDocument(ctx context.Context, id core.ID) (bool, error)

	// ListDocumentIDs returns the IDs of all stored documents,
	// ordered by end time ascending.
	ListDocumentIDs(ctx context.Context) ([]core.ID, error)

	// GetRecentDocuments retrieves the N most recent documents,
	// ordered by end time descending.
	GetRecentDocuments(ctx context.Context, limit int) ([]*core.Document, error)

	// HighWaterMark returns the latest end time across all stored documents.
	// The second return is false when the store is empty.
	HighWaterMark(ctx context.Context) (time.Time, bool, error)

	// CountDocuments returns the number of stored documents.
	CountDocuments(ctx context.Context) (int, error)

	// ScanBodies invokes fn for every stored document's ID and body text.
	// Scanning stops at the first error fn returns.
	ScanBodies(ctx context.Context, fn func(id core.ID, body string) error) error

	// DeleteAllDocuments removes every document and its index entries.
	// Run reports are not touched.
	DeleteAllDocuments(ctx context.Context) error

	// Backup streams a full backup of the store to w.
	// Returns the backend version the backup represents.
	Backup(ctx context.Context, w io.Writer) (uint64, error)
}

// RunReportRepository provides operations for persisting ingestion run reports.
type RunReportRepository interface {
	// SaveRunReport persists a run report keyed by its start time.
	SaveRunReport(ctx context.Context, report *core.RunReport) error

	// GetLatestRunReport retrieves the most recently started run report.
	// Returns nil, nil if no report exists.
	GetLatestRunReport(ctx context.Context) (*core.RunReport, error)

	// GetRunReports retrieves up to limit run reports, newest first.
	GetRunReports(ctx context.Context, limit int) ([]*core.RunReport, error)
}
