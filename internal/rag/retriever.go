package rag

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maresbv/prodscout-go/internal/catalog"
	"github.com/maresbv/prodscout-go/internal/logging"
)

// HybridRetriever implements Retriever by combining an Embedder and a
// VectorStore: the query is embedded once, dense and sparse searches run
// against an enlarged candidate pool, and the two ranked lists are fused by
// reciprocal rank fusion.
type HybridRetriever struct {
	// embedder converts query text to a dense vector.
	embedder Embedder

	// store executes the dense and sparse searches.
	store VectorStore

	// rrfK is the RRF rank constant.
	rrfK int

	// poolMultiplier scales the requested limit for each candidate list.
	poolMultiplier int

	// defaultLimit is the result count used when the caller passes 0.
	defaultLimit int
}

// RetrieverConfig holds the tuning parameters for a HybridRetriever.
// Zero values select the defaults (RRFK 60, PoolMultiplier 3, DefaultLimit 10).
type RetrieverConfig struct {
	// RRFK is the reciprocal-rank-fusion constant k.
	RRFK int

	// PoolMultiplier is the candidate-pool factor: each retrieval list
	// fetches PoolMultiplier×limit candidates before fusion.
	PoolMultiplier int

	// DefaultLimit is the fallback result count for limit=0 calls.
	DefaultLimit int
}

// NewHybridRetriever constructs a HybridRetriever from the given Embedder
// and VectorStore.
func NewHybridRetriever(embedder Embedder, store VectorStore, cfg *RetrieverConfig) (*HybridRetriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("rag: store must not be nil")
	}
	if cfg == nil {
		cfg = &RetrieverConfig{}
	}
	r := &HybridRetriever{
		embedder:       embedder,
		store:          store,
		rrfK:           cfg.RRFK,
		poolMultiplier: cfg.PoolMultiplier,
		defaultLimit:   cfg.DefaultLimit,
	}
	if r.rrfK <= 0 {
		r.rrfK = DefaultRRFK
	}
	if r.poolMultiplier <= 0 {
		r.poolMultiplier = 3
	}
	if r.defaultLimit <= 0 {
		r.defaultLimit = 10
	}
	return r, nil
}

// Search embeds the query, runs dense and sparse retrieval over a
// poolMultiplier×limit candidate pool each, fuses the two ranked lists by
// RRF, and returns the top limit products.
//
// A sparse-search failure degrades silently to dense-only ranking (logged at
// warn level); it never surfaces to the caller. No match returns an empty
// slice with a nil error. Embedding or dense-search failures are errors.
func (r *HybridRetriever) Search(ctx context.Context, query string, limit int, filter *SearchFilter) ([]*catalog.Product, error) {
	if limit <= 0 {
		limit = r.defaultLimit
	}
	pool := limit * r.poolMultiplier

	embedding, err := r.embedder.EmbedSingle(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	}

	dense, err := r.store.DenseSearch(ctx, embedding, pool, filter)
	if err != nil {
		return nil, err
	}

	sparse, err := r.store.SparseSearch(ctx, query, pool, filter)
	if err != nil {
		logging.FromContext(ctx).Warn("rag: sparse search unavailable, using dense-only ranking",
			slog.Any("error", err),
		)
		sparse = nil
	}

	byID := make(map[string]*catalog.Product, len(dense)+len(sparse))
	denseIDs := make([]string, 0, len(dense))
	for _, h := range dense {
		denseIDs = append(denseIDs, h.Product.ID)
		byID[h.Product.ID] = h.Product
	}
	sparseIDs := make([]string, 0, len(sparse))
	for _, h := range sparse {
		sparseIDs = append(sparseIDs, h.Product.ID)
		if _, ok := byID[h.Product.ID]; !ok {
			byID[h.Product.ID] = h.Product
		}
	}

	lists := [][]string{denseIDs}
	if len(sparseIDs) > 0 {
		lists = append(lists, sparseIDs)
	}
	ranked := fuseRRF(lists, r.rrfK)

	if len(ranked) > limit {
		ranked = ranked[:limit]
	}
	products := make([]*catalog.Product, 0, len(ranked))
	for _, id := range ranked {
		products = append(products, byID[id])
	}
	return products, nil
}
