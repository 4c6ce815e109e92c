package search

import (
	"context"
	"log/slog"
	"maps"
	"math"
	"sort"
	"strings"

	"github.com/poiesic/recollect/ai"
	"github.com/poiesic/recollect/core"
	"github.com/poiesic/recollect/storage"
)

const (
	// DefaultAlpha is the weight of the vector signal in the blended score.
	// The keyword signal gets the remaining 1 - alpha.
	DefaultAlpha float32 = 0.75

	// DefaultTopK is the result count used when the caller asks for zero
	// or fewer results.
	DefaultTopK = 5

	// MaxTopK caps the result count of a single search.
	MaxTopK = 20

	// candidateFactor widens the vector candidate pool beyond topK so
	// threshold filtering on the blended score still fills the results.
	candidateFactor = 2
)

// Searcher provides hybrid vector and keyword search over conversation documents.
type Searcher struct {
	store    storage.DocumentRepository
	embedder ai.Embedder
	alpha    float32
	logger   *slog.Logger
}

// Option configures a Searcher.
type Option func(*Searcher) error

// WithLogger sets a custom logger.
// Default is slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(s *Searcher) error {
		if logger == nil {
			logger = slog.Default()
		}
		s.logger = logger
		return nil
	}
}

// WithAlpha sets the vector weight of the blended score, in [0, 1].
// Alpha 1 ranks purely by vector similarity, alpha 0 purely by keyword
// overlap. Default is DefaultAlpha.
func WithAlpha(alpha float32) Option {
	return func(s *Searcher) error {
		if alpha < 0 || alpha > 1 {
			return ErrInvalidAlpha
		}
		s.alpha = alpha
		return nil
	}
}

// NewSearcher creates a new searcher.
func NewSearcher(store storage.DocumentRepository, provider ai.Provider, opts ...Option) (*Searcher, error) {
	if store == nil {
		return nil, ErrStoreRequired
	}
	if provider == nil {
		return nil, ErrProviderRequired
	}

	s := &Searcher{
		store:    store,
		embedder: provider.Embedder(),
		alpha:    DefaultAlpha,
		logger:   slog.Default(),
	}

	// Apply options
	for _, opt := range opts {
		if err := opt(s); err != nil {
			return nil, err
		}
	}

	return s, nil
}

// Search finds documents relevant to the query.
// Returns up to topK results with blended score >= threshold, ranked by
// score descending. A topK of zero or less falls back to DefaultTopK;
// values above MaxTopK are clamped.
func (s *Searcher) Search(ctx context.Context, query string, topK int, threshold float32) ([]*core.SearchResult, error) {
	return s.SearchWithMonitor(ctx, query, topK, threshold, nil)
}

// SearchWithMonitor finds documents relevant to the query with monitoring.
// The monitor receives callbacks at each stage of the search process.
func (s *Searcher) SearchWithMonitor(ctx context.Context, query string, topK int, threshold float32, monitor SearchMonitor) ([]*core.SearchResult, error) {
	// Use noop monitor if none provided
	if monitor == nil {
		monitor = &noopMonitor{}
	}

	if strings.TrimSpace(query) == "" {
		return nil, ErrEmptyQuery
	}
	if topK <= 0 {
		topK = DefaultTopK
	}
	if topK > MaxTopK {
		topK = MaxTopK
	}

	monitor.Start(query)

	// 1. Vector leg
	embedding, err := s.embedder.EmbedText(ctx, query)
	if err != nil {
		s.logger.Error("error generating embedding for query", "query", query, "err", err)
		return nil, err
	}
	// Stored vectors are unit length, so a normalized query makes the
	// store's dot product a cosine similarity.
	queryVector := normalize(embedding)

	matches, err := s.store.FindSimilar(ctx, queryVector, 0, topK*candidateFactor)
	if err != nil {
		s.logger.Error("error querying for similar documents", "err", err)
		return nil, err
	}

	candidates := make(map[core.ID]*core.Document, len(matches))
	vectorScores := make(map[core.ID]float32, len(matches))
	vectorIDs := make([]core.ID, 0, len(matches))
	for _, match := range matches {
		candidates[match.Document.ID] = match.Document
		vectorScores[match.Document.ID] = match.Score
		vectorIDs = append(vectorIDs, match.Document.ID)
	}
	monitor.AfterVectorSearch(vectorIDs)

	// 2. Keyword leg
	terms := queryTerms(query)
	keywordScores := make(map[core.ID]float32)
	if len(terms) > 0 {
		err = s.store.ScanBodies(ctx, func(id core.ID, body string) error {
			if score := overlapScore(terms, termSet(body)); score > 0 {
				keywordScores[id] = score
			}
			return nil
		})
		if err != nil {
			s.logger.Error("error scanning document bodies", "err", err)
			return nil, err
		}
	}
	monitor.AfterKeywordScan(maps.Keys(keywordScores))

	// Load keyword matches the vector leg didn't surface
	for id := range keywordScores {
		if _, ok := candidates[id]; ok {
			continue
		}
		doc, err := s.store.GetDocument(ctx, id)
		if err != nil {
			s.logger.Warn("failed to load keyword match", "id", id, "err", err)
			continue
		}
		candidates[id] = doc
	}

	if len(candidates) == 0 {
		return []*core.SearchResult{}, nil
	}

	// 3. Blend and score
	results := make([]*core.SearchResult, 0, len(candidates))

	for id, doc := range candidates {
		if doc == nil {
			continue
		}

		vectorScore, inVector := vectorScores[id]
		if !inVector {
			// Keyword matches outside the vector candidate pool still
			// get their true similarity, not an implicit zero.
			vectorScore = dotProduct(queryVector, doc.Vector)
		}
		if vectorScore < 0 {
			vectorScore = 0
		}
		keywordScore, inKeyword := keywordScores[id]

		switch {
		case inVector && inKeyword:
			monitor.HybridHit(doc)
		case inKeyword:
			monitor.KeywordHit(doc)
		default:
			monitor.VectorHit(doc)
		}

		score := s.alpha*vectorScore + (1-s.alpha)*keywordScore
		if score < threshold {
			continue
		}

		results = append(results, &core.SearchResult{
			Document: doc,
			Score:    score,
		})
	}

	// Sort by score descending
	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > topK {
		results = results[:topK]
	}
	monitor.Finish(results)

	return results, nil
}

// normalize scales a vector to unit length. Returns a new vector; a zero
// vector stays zero.
func normalize(v []float32) []float32 {
	if len(v) == 0 {
		return v
	}

	var magnitude float32
	for _, val := range v {
		magnitude += val * val
	}
	magnitude = float32(math.Sqrt(float64(magnitude)))

	result := make([]float32, len(v))
	if magnitude == 0 {
		return result
	}
	for i, val := range v {
		result[i] = val / magnitude
	}
	return result
}

func dotProduct(a, b []float32) float32 {
	if len(a) != len(b) {
		return 0
	}
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}
