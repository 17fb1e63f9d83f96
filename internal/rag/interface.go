// Package rag defines the retrieval interfaces backing the product-QA agent:
// vector storage, embedding, and the hybrid retriever that fuses dense
// similarity search with sparse keyword search. Concrete implementations
// (Qdrant, the HTTP embedders) satisfy these interfaces so the agent layer
// never depends on a specific backend.
package rag

import (
	"context"
	"fmt"

	"github.com/maresbv/prodscout-go/internal/catalog"
)

// SearchFilter restricts a retrieval query to a category and/or price range.
// Nil pointer fields mean "no bound".
type SearchFilter struct {
	// Category filters by exact category match. Empty means no filter.
	Category string

	// MinPrice is the inclusive lower price bound.
	MinPrice *float64

	// MaxPrice is the inclusive upper price bound.
	MaxPrice *float64
}

// Hit is a single search result with its backend-assigned relevance score.
type Hit struct {
	// Product is the matched catalog product (without its embedding).
	Product *catalog.Product

	// Score is the backend similarity score for the retrieval list this hit
	// came from. Scores from different lists are not comparable; the
	// retriever fuses by rank, not by score.
	Score float32
}

// VectorStore is the persistence boundary for catalog products and their
// search vectors. Implementations must be safe for concurrent reads; writes
// (ingestion) are operational tasks that run exclusively of heavy query
// traffic.
type VectorStore interface {
	// EnsureCollection creates the backing collection if it does not exist.
	EnsureCollection(ctx context.Context) error

	// Drop removes the backing collection if it exists.
	Drop(ctx context.Context) error

	// Insert stores a batch of products. Every product must have its
	// embedding pre-computed. Returns the number of products written.
	Insert(ctx context.Context, products []*catalog.Product) (int, error)

	// Upsert stores or replaces a batch of products by ID.
	Upsert(ctx context.Context, products []*catalog.Product) (int, error)

	// Delete removes products by their catalog IDs. Returns the number of
	// IDs submitted for deletion.
	Delete(ctx context.Context, ids []string) (int, error)

	// DenseSearch performs cosine similarity search over the dense vectors.
	DenseSearch(ctx context.Context, embedding []float32, limit int, filter *SearchFilter) ([]Hit, error)

	// SparseSearch performs keyword (BM25-weighted sparse vector) search
	// over the query text.
	SparseSearch(ctx context.Context, queryText string, limit int, filter *SearchFilter) ([]Hit, error)

	// ContentHashes returns the stored product ID → content hash map used
	// by incremental sync to detect changes.
	ContentHashes(ctx context.Context) (map[string]string, error)

	// Close releases any resources held by the store.
	Close() error
}

// Embedder converts text into dense vector embeddings with a fixed output
// dimensionality. Implementations must be safe for concurrent use.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// EmbedSingle converts one text into its embedding.
	EmbedSingle(ctx context.Context, text string) ([]float32, error)
}

// Retriever is the high-level interface the catalog-search tool uses to
// fetch relevant products for a query.
type Retriever interface {
	// Search returns up to limit products ranked by fused relevance.
	// An empty result is not an error; errors indicate transport failure.
	Search(ctx context.Context, query string, limit int, filter *SearchFilter) ([]*catalog.Product, error)
}

// RetrievalError indicates a store transport or backend failure during a
// retrieval operation. A query with no matches is not a RetrievalError;
// it returns an empty result.
type RetrievalError struct {
	// Op is the operation that failed (e.g. "dense_search", "upsert").
	Op string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *RetrievalError) Error() string {
	return fmt.Sprintf("rag: %s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying cause.
func (e *RetrievalError) Unwrap() error { return e.Err }
