package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/poiesic/recollect/ai"
	"github.com/poiesic/recollect/core"
	"github.com/poiesic/recollect/storage"
	"github.com/poiesic/recollect/telegram"
	"github.com/poiesic/recollect/thread"
)

// Pipeline composes normalization, thread detection, document assembly,
// incremental selection, and batch orchestration behind one call.
type Pipeline struct {
	store        storage.DocumentRepository
	normalizer   *telegram.Normalizer
	detector     *thread.Detector
	orchestrator *Orchestrator
	orchOpts     []OrchestratorOption
	logger       *slog.Logger
}

// PipelineOption configures a Pipeline.
type PipelineOption func(*Pipeline) error

// WithDetectorConfig replaces the default thread detection parameters.
func WithDetectorConfig(config *thread.Config) PipelineOption {
	return func(p *Pipeline) error {
		detector, err := thread.NewDetector(config)
		if err != nil {
			return err
		}
		p.detector = detector
		return nil
	}
}

// WithOrchestratorOptions forwards options to the pipeline's orchestrator.
func WithOrchestratorOptions(opts ...OrchestratorOption) PipelineOption {
	return func(p *Pipeline) error {
		p.orchOpts = append(p.orchOpts, opts...)
		return nil
	}
}

// WithPipelineLogger sets a custom logger.
// Default is slog.Default().
func WithPipelineLogger(logger *slog.Logger) PipelineOption {
	return func(p *Pipeline) error {
		if logger == nil {
			logger = slog.Default()
		}
		p.logger = logger
		return nil
	}
}

// NewPipeline creates an ingestion pipeline over the given store and provider.
func NewPipeline(store storage.DocumentRepository, provider ai.Provider, opts ...PipelineOption) (*Pipeline, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if provider == nil {
		return nil, ErrProviderRequired
	}

	detector, err := thread.NewDetector(nil)
	if err != nil {
		return nil, err
	}

	p := &Pipeline{
		store:      store,
		normalizer: telegram.NewNormalizer(),
		detector:   detector,
		logger:     slog.Default().With("component", "pipeline"),
	}

	// Apply options (may override defaults)
	for _, opt := range opts {
		if optErr := opt(p); optErr != nil {
			return nil, optErr
		}
	}

	// Create the orchestrator after options are applied (so it gets final config)
	orchestrator, err := NewOrchestrator(store, provider.Embedder(), p.orchOpts...)
	if err != nil {
		return nil, err
	}
	p.orchestrator = orchestrator

	return p, nil
}

// IngestExport runs a parsed export through the full pipeline:
// normalize, detect threads, assemble documents, select per mode, then
// embed and upsert in batches. The returned report is filled whenever the
// run started, whether or not err is nil.
func (p *Pipeline) IngestExport(ctx context.Context, export *telegram.Export, mode Mode, sourceTag string) (*core.RunReport, error) {
	if export == nil {
		return nil, core.ErrInvalidExport
	}

	startedAt := time.Now().UTC()

	messages, nreport := p.normalizer.Normalize(export)
	threads, dreport := p.detector.Detect(messages)

	assembleOpts := []thread.AssembleOption{thread.WithContextHeader()}
	if sourceTag != "" {
		assembleOpts = append(assembleOpts, thread.WithSourceTag(sourceTag))
	}
	docs, assembleErrs := thread.AssembleAll(threads, assembleOpts...)
	for _, assembleErr := range assembleErrs {
		p.logger.Warn("thread not assembled", "err", assembleErr)
	}

	var state *core.IngestionState
	if mode == ModeIncremental {
		var err error
		state, err = LoadState(ctx, p.store)
		if err != nil {
			return nil, err
		}
	}
	eligible, skipped := SelectForIngestion(docs, state, mode)

	report, runErr := p.orchestrator.Run(ctx, eligible)
	report.Mode = string(mode)
	report.SourceTag = sourceTag
	report.StartedAt = startedAt
	report.MessagesTotal = nreport.Total
	report.MessagesDropped = nreport.Dropped
	report.ThreadsDetected = dreport.Threads
	report.DocumentsEligible = len(eligible)
	report.DocumentsSkipped = len(skipped)
	report.OrderingWarnings = dreport.OrderingWarnings

	p.logger.Info("ingestion run finished",
		"mode", mode,
		"eligible", len(eligible),
		"skipped", len(skipped),
		"succeeded", report.Succeeded,
		"failed", report.Failed,
		"ordering_warnings", report.OrderingWarnings)

	return report, runErr
}

// IngestFile parses an export file and ingests it.
func (p *Pipeline) IngestFile(ctx context.Context, path string, mode Mode, sourceTag string) (*core.RunReport, error) {
	export, err := telegram.ParseExportFile(path)
	if err != nil {
		return nil, err
	}
	return p.IngestExport(ctx, export, mode, sourceTag)
}

// Release releases resources including the orchestrator's worker pool.
// The pipeline should not be used after calling Release.
func (p *Pipeline) Release() {
	if p.orchestrator != nil {
		p.orchestrator.Release()
	}
}
