package ingest

import "errors"

var (
	// ErrStoreRequired is returned when a document repository is not provided.
	ErrStoreRequired = errors.New("document repository required")

	// ErrEmbedderRequired is returned when an embedder is not provided.
	ErrEmbedderRequired = errors.New("embedder required")

	// ErrProviderRequired is returned when an AI provider is not provided.
	ErrProviderRequired = errors.New("AI provider required")

	// ErrInvalidMaxAttempts is returned when maxAttempts is <= 0
	ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

	// ErrAllBatchesFailed is returned when a run attempted documents and
	// none succeeded.
	ErrAllBatchesFailed = errors.New("all ingestion batches failed")

	// ErrInvalidMode is returned for an unrecognized ingestion or upload mode.
	ErrInvalidMode = errors.New("invalid mode")
)
