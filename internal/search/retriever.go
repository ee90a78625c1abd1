package search

import (
	"context"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/hyperjump/kotae/internal/embedding"
	"github.com/hyperjump/kotae/internal/keyword"
	"github.com/hyperjump/kotae/internal/models"
	"github.com/hyperjump/kotae/internal/storage"
	"github.com/hyperjump/kotae/internal/vector"
)

// keywordFallbackScore is assigned to keyword-only hits when the weighted
// merge produced nothing; it keeps them ranked below any real hybrid score.
const keywordFallbackScore = 0.1

// CandidateSource loads embedding rows for in-process similarity scoring.
// *storage.SQLiteStorage satisfies it.
type CandidateSource interface {
	EmbeddingCandidates(ctx context.Context, userID models.UserID, docIDs []models.DocumentID, limit int) ([]storage.Candidate, error)
}

// KeywordSearcher is the lexical leg. *keyword.BleveIndex satisfies it.
type KeywordSearcher interface {
	Search(ctx context.Context, query string, userID models.UserID, docIDs []models.DocumentID, limit int) ([]*keyword.Hit, error)
}

// Config holds retrieval tunables.
type Config struct {
	// SemanticWeight is the hybrid weight of the semantic leg; the keyword
	// leg gets the complement.
	SemanticWeight float64
	// CandidateLimit caps how many embedding rows are loaded per query.
	CandidateLimit int
	// ModelName selects the embedding model used for queries.
	ModelName string
}

// Retriever runs the two retrieval legs and fuses them.
type Retriever struct {
	store    CandidateSource
	keyword  KeywordSearcher
	registry *embedding.Registry
	cfg      Config
	logger   *zap.Logger
}

// Option configures a Retriever.
type Option func(*Retriever)

// WithLogger sets the logger.
func WithLogger(logger *zap.Logger) Option {
	return func(r *Retriever) {
		r.logger = logger
	}
}

// NewRetriever creates a retriever over the given storage, keyword index,
// and embedding registry.
func NewRetriever(store CandidateSource, kw KeywordSearcher, registry *embedding.Registry, cfg Config, opts ...Option) *Retriever {
	if cfg.SemanticWeight <= 0 || cfg.SemanticWeight > 1 {
		cfg.SemanticWeight = 0.7
	}
	if cfg.CandidateLimit <= 0 {
		cfg.CandidateLimit = 1000
	}
	r := &Retriever{
		store:    store,
		keyword:  kw,
		registry: registry,
		cfg:      cfg,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// SemanticSearch embeds the question and ranks stored candidates by cosine
// similarity. Results above threshold win; when none clear it, the best
// topK are returned anyway so callers can decide how to treat weak matches.
// Ties keep candidate insertion order.
func (r *Retriever) SemanticSearch(ctx context.Context, question string, userID models.UserID, docIDs []models.DocumentID, topK int, threshold float64) ([]models.RetrievedChunk, error) {
	embedder, err := r.registry.Get(r.cfg.ModelName)
	if err != nil {
		return nil, fmt.Errorf("get embedder: %w", err)
	}
	queryVec, err := embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embed question: %w", err)
	}

	candidates, err := r.store.EmbeddingCandidates(ctx, userID, docIDs, r.cfg.CandidateLimit)
	if err != nil {
		return nil, fmt.Errorf("load candidates: %w", err)
	}
	if len(candidates) == 0 {
		return nil, nil
	}

	scored := make([]models.RetrievedChunk, 0, len(candidates))
	for _, cand := range candidates {
		scored = append(scored, models.RetrievedChunk{
			ChunkID:    cand.ChunkID,
			DocumentID: cand.DocumentID,
			Content:    cand.Content,
			Score:      vector.CosineSimilarity(queryVec, cand.Vector),
			Source:     models.SourceSemantic,
			Filename:   cand.Filename,
			ChunkIndex: cand.ChunkIndex,
		})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })

	above := make([]models.RetrievedChunk, 0, topK)
	for _, c := range scored {
		if c.Score >= threshold {
			above = append(above, c)
			if len(above) == topK {
				break
			}
		}
	}
	if len(above) > 0 {
		return above, nil
	}
	if len(scored) > topK {
		scored = scored[:topK]
	}
	return scored, nil
}

// KeywordSearch runs the lexical leg and adapts hits to retrieval results.
func (r *Retriever) KeywordSearch(ctx context.Context, question string, userID models.UserID, docIDs []models.DocumentID, topK int) ([]models.RetrievedChunk, error) {
	hits, err := r.keyword.Search(ctx, question, userID, docIDs, topK)
	if err != nil {
		return nil, fmt.Errorf("keyword search: %w", err)
	}
	out := make([]models.RetrievedChunk, 0, len(hits))
	for _, h := range hits {
		out = append(out, models.RetrievedChunk{
			ChunkID:    h.ChunkID,
			DocumentID: h.DocumentID,
			Content:    h.Content,
			Score:      h.Score,
			Source:     models.SourceKeyword,
			Filename:   h.Filename,
			ChunkIndex: h.ChunkIndex,
		})
	}
	return out, nil
}

// HybridSearch fuses both legs: semantic scores weighted by SemanticWeight,
// keyword hits contributing a linear rank decay weighted by the complement,
// summed per chunk. Negative similarities are clamped to zero before the
// merge so a dissimilar vector can never cancel a lexical hit on the same
// chunk. When the weighted merge is empty but keyword hits exist, those
// hits are returned with a fixed placeholder score.
func (r *Retriever) HybridSearch(ctx context.Context, question string, userID models.UserID, docIDs []models.DocumentID, topK int, threshold float64) Outcome {
	semantic, semErr := r.SemanticSearch(ctx, question, userID, docIDs, topK, threshold)
	if semErr != nil {
		r.logger.Warn("semantic leg failed", zap.Error(semErr))
	}
	keywordHits, kwErr := r.KeywordSearch(ctx, question, userID, docIDs, topK)
	if kwErr != nil {
		r.logger.Warn("keyword leg failed", zap.Error(kwErr))
	}
	if semErr != nil && kwErr != nil {
		return Errored(fmt.Errorf("hybrid search: %w", semErr))
	}

	semWeight := r.cfg.SemanticWeight
	kwWeight := 1 - semWeight

	merged := make(map[string]*models.RetrievedChunk)
	order := make([]string, 0, len(semantic)+len(keywordHits))

	for _, c := range semantic {
		c := c
		if c.Score < 0 {
			c.Score = 0
		}
		c.Score *= semWeight
		merged[c.ChunkID] = &c
		order = append(order, c.ChunkID)
	}
	for i, h := range keywordHits {
		decay := 1 - float64(i)/float64(len(keywordHits))
		contribution := decay * kwWeight
		if existing, ok := merged[h.ChunkID]; ok {
			existing.Score += contribution
			existing.Source = models.SourceHybrid
			continue
		}
		h := h
		h.Score = contribution
		merged[h.ChunkID] = &h
		order = append(order, h.ChunkID)
	}

	if len(merged) == 0 {
		if len(keywordHits) > 0 {
			fallback := keywordHits
			for i := range fallback {
				fallback[i].Score = keywordFallbackScore
			}
			if len(fallback) > topK {
				fallback = fallback[:topK]
			}
			return Found(fallback)
		}
		return Empty()
	}

	results := make([]models.RetrievedChunk, 0, len(merged))
	for _, id := range order {
		results = append(results, *merged[id])
	}
	sort.SliceStable(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > topK {
		results = results[:topK]
	}
	return Found(results)
}
