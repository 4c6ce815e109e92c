package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/poiesic/recollect/ai"
	"github.com/poiesic/recollect/core"
	"github.com/poiesic/recollect/storage"
)

// Orchestrator embeds and upserts documents in concurrent batches.
// Batches are independent: one batch exhausting its retries marks its
// documents failed in the report and the run continues.
type Orchestrator struct {
	store          storage.DocumentRepository
	embedder       ai.Embedder
	pool           *ants.Pool
	batchSize      int
	maxRetries     int
	baseDelay      time.Duration
	callTimeout    time.Duration
	progress       io.Writer
	reportInterval int
	logger         *slog.Logger
}

// OrchestratorOption configures an Orchestrator.
type OrchestratorOption func(*Orchestrator) error

// WithBatchSize sets how many documents each embed/upsert batch carries.
// Default is 100.
func WithBatchSize(size int) OrchestratorOption {
	return func(o *Orchestrator) error {
		if size < 1 {
			size = 1
		}
		o.batchSize = size
		return nil
	}
}

// WithConcurrency sets the worker pool size for concurrent batches.
// Default is 4.
func WithConcurrency(size int) OrchestratorOption {
	return func(o *Orchestrator) error {
		if size < 1 {
			size = 1
		}

		// Release old pool
		if o.pool != nil {
			o.pool.Release()
		}

		pool, err := ants.NewPool(size)
		if err != nil {
			return err
		}

		o.pool = pool
		return nil
	}
}

// WithMaxRetries sets the retry budget for provider and store calls.
// Default is 3.
func WithMaxRetries(attempts int) OrchestratorOption {
	return func(o *Orchestrator) error {
		if attempts < 1 {
			attempts = 1
		}
		o.maxRetries = attempts
		return nil
	}
}

// WithBaseDelay sets the base delay for exponential retry backoff.
// Default is 1s.
func WithBaseDelay(delay time.Duration) OrchestratorOption {
	return func(o *Orchestrator) error {
		if delay <= 0 {
			delay = time.Second
		}
		o.baseDelay = delay
		return nil
	}
}

// WithCallTimeout bounds each individual provider or store call.
// Default is 60s.
func WithCallTimeout(timeout time.Duration) OrchestratorOption {
	return func(o *Orchestrator) error {
		if timeout <= 0 {
			timeout = 60 * time.Second
		}
		o.callTimeout = timeout
		return nil
	}
}

// WithProgress sets where progress lines are written.
// Default is no progress output.
func WithProgress(w io.Writer) OrchestratorOption {
	return func(o *Orchestrator) error {
		if w == nil {
			w = io.Discard
		}
		o.progress = w
		return nil
	}
}

// WithReportInterval sets how many documents pass between progress lines.
// Default is 100.
func WithReportInterval(n int) OrchestratorOption {
	return func(o *Orchestrator) error {
		if n < 1 {
			n = 1
		}
		o.reportInterval = n
		return nil
	}
}

// WithOrchestratorLogger sets a custom logger.
// Default is slog.Default().
func WithOrchestratorLogger(logger *slog.Logger) OrchestratorOption {
	return func(o *Orchestrator) error {
		if logger == nil {
			logger = slog.Default()
		}
		o.logger = logger
		return nil
	}
}

// NewOrchestrator creates a batch ingestion orchestrator.
func NewOrchestrator(store storage.DocumentRepository, embedder ai.Embedder, opts ...OrchestratorOption) (*Orchestrator, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if embedder == nil {
		return nil, ErrEmbedderRequired
	}

	pool, err := ants.NewPool(4)
	if err != nil {
		return nil, err
	}

	o := &Orchestrator{
		store:          store,
		embedder:       embedder,
		pool:           pool,
		batchSize:      100,
		maxRetries:     3,
		baseDelay:      time.Second,
		callTimeout:    60 * time.Second,
		progress:       io.Discard,
		reportInterval: 100,
		logger:         slog.Default().With("component", "orchestrator"),
	}

	for _, opt := range opts {
		if optErr := opt(o); optErr != nil {
			o.Release()
			return nil, optErr
		}
	}

	return o, nil
}

// Run embeds and upserts the given documents. It always returns a filled
// report when the run started; the error is non-nil only when every batch
// failed. Cancellation stops new dispatch, lets in-flight batches finish,
// and shows up in the report as attempted < len(docs).
//
// Document vectors are populated in place before upsert, normalized to unit
// length.
func (o *Orchestrator) Run(ctx context.Context, docs []core.Document) (*core.RunReport, error) {
	report := core.NewRunReport("", "")

	if len(docs) == 0 {
		report.FinishedAt = time.Now().UTC()
		return report, nil
	}

	tracker := NewProgressTracker(o.progress, len(docs), o.reportInterval)
	tracker.Start()

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)

dispatch:
	for start := 0; start < len(docs); start += o.batchSize {
		select {
		case <-ctx.Done():
			o.logger.Warn("run canceled, stopping dispatch",
				"dispatched", report.Attempted, "total", len(docs))
			break dispatch
		default:
		}

		end := start + o.batchSize
		if end > len(docs) {
			end = len(docs)
		}
		batch := docs[start:end]

		mu.Lock()
		report.Attempted += len(batch)
		mu.Unlock()

		wg.Add(1)
		submitErr := o.pool.Submit(func() {
			defer wg.Done()

			err := o.processBatch(ctx, batch)

			mu.Lock()
			if err != nil {
				report.Failed += len(batch)
				for i := range batch {
					report.Errors = append(report.Errors, core.IngestError{
						DocumentID: batch[i].ID,
						Reason:     err.Error(),
					})
				}
			} else {
				report.Succeeded += len(batch)
			}
			mu.Unlock()

			if err != nil {
				o.logger.Error("batch failed", "size", len(batch), "err", err)
			}
			tracker.Increment(len(batch))
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			report.Failed += len(batch)
			for i := range batch {
				report.Errors = append(report.Errors, core.IngestError{
					DocumentID: batch[i].ID,
					Reason:     submitErr.Error(),
				})
			}
			mu.Unlock()
			o.logger.Error("failed to submit batch", "err", submitErr)
		}
	}

	wg.Wait()
	tracker.Finish()
	report.FinishedAt = time.Now().UTC()

	if report.Attempted > 0 && report.Succeeded == 0 {
		return report, ErrAllBatchesFailed
	}
	return report, nil
}

// processBatch embeds one batch atomically and upserts it. A partial
// embedding result is a whole-batch retry. Validation failures are
// permanent and fail the batch without touching the provider.
func (o *Orchestrator) processBatch(ctx context.Context, batch []core.Document) error {
	for i := range batch {
		if err := core.ValidateDocument(&batch[i]); err != nil {
			return err
		}
	}

	texts := make([]string, len(batch))
	for i := range batch {
		texts[i] = batch[i].Body
	}

	var vectors [][]float32
	err := RetryWithBackoff(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
		defer cancel()

		var embedErr error
		vectors, embedErr = o.embedder.EmbedTexts(callCtx, texts)
		return embedErr
	}, o.maxRetries, o.baseDelay)
	if err != nil {
		return fmt.Errorf("failed to generate embeddings after %d attempts: %w", o.maxRetries, err)
	}

	if len(vectors) != len(batch) {
		return fmt.Errorf("embedding count mismatch: expected %d, got %d", len(batch), len(vectors))
	}

	ptrs := make([]*core.Document, len(batch))
	for i := range batch {
		batch[i].Vector = NormalizeVector(vectors[i])
		ptrs[i] = &batch[i]
	}

	err = RetryWithBackoff(ctx, func() error {
		callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
		defer cancel()

		return o.store.UpsertDocuments(callCtx, ptrs...)
	}, o.maxRetries, o.baseDelay)
	if err != nil {
		return fmt.Errorf("failed to upsert documents: %w", err)
	}

	return nil
}

// Release releases the worker pool.
// The orchestrator should not be used after calling Release.
func (o *Orchestrator) Release() {
	if o.pool != nil {
		o.pool.Release()
	}
}
