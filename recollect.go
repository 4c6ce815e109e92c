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


// Package recollect turns Telegram chat exports into a searchable archive
// of conversation documents: messages are normalized, grouped into
// threads, rendered, embedded, and stored with content-derived IDs so
// re-ingesting overlapping exports never duplicates. The Archive type is
// the top-level handle; the CLI and the HTTP API are thin layers over it.
package recollect

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/poiesic/recollect/ai"
	"github.com/poiesic/recollect/ai/ollama"
	"github.com/poiesic/recollect/ai/openai"
	"github.com/poiesic/recollect/api"
	"github.com/poiesic/recollect/config"
	"github.com/poiesic/recollect/core"
	"github.com/poiesic/recollect/events"
	"github.com/poiesic/recollect/ingest"
	"github.com/poiesic/recollect/search"
	"github.com/poiesic/recollect/storage"
	"github.com/poiesic/recollect/storage/badger"
)

var (
	// ErrConfigRequired is returned when Open is called without a config.
	ErrConfigRequired = errors.New("config required")

	// ErrNoExportPath is returned when an ingestion run is requested but
	// no export file is configured.
	ErrNoExportPath = errors.New("no export path configured")
)

// Archive bundles the store, AI provider, ingestion pipeline, upload
// coordinator, searcher, and event publisher behind one handle.
type Archive struct {
	cfg         *config.Config
	backend     *badger.Backend
	documents   storage.DocumentRepository
	runs        storage.RunReportRepository
	provider    ai.Provider
	pipeline    *ingest.Pipeline
	coordinator *ingest.Coordinator
	searcher    *search.Searcher
	events      *events.Publisher
	logger      *slog.Logger
}

var _ api.Archive = (*Archive)(nil)

// Option configures an Archive beyond what the config carries.
type Option func(*archiveOptions)

type archiveOptions struct {
	provider ai.Provider
}

// WithProvider overrides the config-selected AI provider. Embedding
// callers and tests use it to supply custom providers.
func WithProvider(provider ai.Provider) Option {
	return func(o *archiveOptions) {
		o.provider = provider
	}
}

// Open validates the config, opens the store (in memory when DBPath is
// empty), connects the configured AI provider, and wires the pipeline,
// coordinator, and searcher. Event publication is attached when a NATS
// URL is configured; a publisher that cannot be set up is logged and
// skipped rather than failing the open.
func Open(cfg *config.Config, opts ...Option) (*Archive, error) {
	if cfg == nil {
		return nil, ErrConfigRequired
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	options := &archiveOptions{}
	for _, opt := range opts {
		opt(options)
	}

	logger := slog.Default().With("component", "archive")

	backend, err := badger.OpenBackend(cfg.DBPath, cfg.DBPath == "")
	if err != nil {
		return nil, err
	}
	documents := badger.NewDocumentRepository(backend)
	runs := badger.NewRunReportRepository(backend)

	provider := options.provider
	if provider == nil {
		provider, err = newProvider(cfg)
		if err != nil {
			backend.Close()
			return nil, err
		}
	}

	pipeline, err := ingest.NewPipeline(documents, provider,
		ingest.WithDetectorConfig(cfg.DetectorConfig()),
		ingest.WithOrchestratorOptions(
			ingest.WithBatchSize(cfg.Ingest.BatchSize),
			ingest.WithConcurrency(cfg.Ingest.Concurrency),
			ingest.WithMaxRetries(cfg.Ingest.MaxRetries),
		),
	)
	if err != nil {
		provider.Close()
		backend.Close()
		return nil, err
	}

	coordinator, err := ingest.NewCoordinator(pipeline, documents, cfg.DBPath)
	if err != nil {
		pipeline.Release()
		provider.Close()
		backend.Close()
		return nil, err
	}

	searcher, err := search.NewSearcher(documents, provider,
		search.WithAlpha(cfg.Search.Alpha))
	if err != nil {
		pipeline.Release()
		provider.Close()
		backend.Close()
		return nil, err
	}

	a := &Archive{
		cfg:         cfg,
		backend:     backend,
		documents:   documents,
		runs:        runs,
		provider:    provider,
		pipeline:    pipeline,
		coordinator: coordinator,
		searcher:    searcher,
		logger:      logger,
	}

	if cfg.Events.NatsURL != "" {
		publisher, err := events.Connect(cfg.Events.NatsURL, logger)
		if err != nil {
			logger.Warn("event publication disabled", "url", cfg.Events.NatsURL, "err", err)
		} else {
			a.events = publisher
		}
	}

	return a, nil
}

// newProvider builds the AI provider the config selects. Validate has
// already restricted the provider name.
func newProvider(cfg *config.Config) (ai.Provider, error) {
	aiConfig := cfg.NewAIConfig()
	switch cfg.AI.Provider {
	case ai.ProviderOllama:
		return ollama.NewProvider(aiConfig)
	default:
		return openai.NewProvider(aiConfig)
	}
}

// Close releases the pipeline's worker pool, the provider, the event
// publisher, and the store.
func (a *Archive) Close() error {
	a.events.Close()
	a.pipeline.Release()

	if err := a.provider.Close(); err != nil {
		a.logger.Error("error closing AI provider", "err", err)
	}

	if err := a.backend.Close(); err != nil {
		a.logger.Error("error closing storage backend", "err", err)
		return err
	}
	return nil
}

// IngestFile parses and ingests the export file at path, persists the run
// report, and publishes a completion event.
func (a *Archive) IngestFile(ctx context.Context, path string, mode ingest.Mode, sourceTag string) (*core.RunReport, error) {
	report, err := a.pipeline.IngestFile(ctx, path, mode, sourceTag)
	a.finishRun(ctx, report)
	return report, err
}

// Ingest runs the pipeline over the configured export file.
func (a *Archive) Ingest(ctx context.Context, mode ingest.Mode) (*core.RunReport, error) {
	if a.cfg.Ingest.ExportPath == "" {
		return nil, ErrNoExportPath
	}
	return a.IngestFile(ctx, a.cfg.Ingest.ExportPath, mode, "")
}

// ApplyUpload validates and applies an uploaded export through the
// coordinator, persists the run report, and publishes an upload event.
// The outcome is returned alongside the error when the upload parsed but
// its ingestion failed partway.
func (a *Archive) ApplyUpload(ctx context.Context, r io.Reader, opts ingest.UploadOptions) (*ingest.UploadOutcome, error) {
	outcome, err := a.coordinator.ApplyUpload(ctx, r, opts)
	if outcome != nil && outcome.Report != nil {
		a.saveReport(ctx, outcome.Report)
		a.events.PublishUploadApplied(outcome)
	}
	return outcome, err
}

// Search runs hybrid retrieval over the stored documents.
func (a *Archive) Search(ctx context.Context, query string, topK int, threshold float32) ([]*core.SearchResult, error) {
	return a.searcher.Search(ctx, query, topK, threshold)
}

// CountDocuments reports how many documents the store holds.
func (a *Archive) CountDocuments(ctx context.Context) (int, error) {
	return a.documents.CountDocuments(ctx)
}

// LatestRun returns the most recent run report, nil when none exist.
func (a *Archive) LatestRun(ctx context.Context) (*core.RunReport, error) {
	return a.runs.GetLatestRunReport(ctx)
}

// RecentRuns returns up to limit run reports, newest first.
func (a *Archive) RecentRuns(ctx context.Context, limit int) ([]*core.RunReport, error) {
	return a.runs.GetRunReports(ctx, limit)
}

// Documents exposes the document repository for direct reads.
func (a *Archive) Documents() storage.DocumentRepository {
	return a.documents
}

// Generator exposes the provider's generation capability.
func (a *Archive) Generator() ai.Generator {
	return a.provider.Generator()
}

// finishRun persists a run report and announces it. Nil reports (runs
// that failed before starting) are skipped.
func (a *Archive) finishRun(ctx context.Context, report *core.RunReport) {
	if report == nil {
		return
	}
	a.saveReport(ctx, report)
	a.events.PublishRunCompleted(report)
}

func (a *Archive) saveReport(ctx context.Context, report *core.RunReport) {
	if err := a.runs.SaveRunReport(ctx, report); err != nil {
		a.logger.Error("failed to persist run report", "run_id", report.RunID, "err", err)
	}
}
