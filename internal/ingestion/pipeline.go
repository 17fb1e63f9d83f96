// Package ingestion implements the catalog ingestion pipeline. It loads
// products from the source catalog, embeds their searchable text, and writes
// them into the vector store. Two modes are supported: a full rebuild that
// drops and recreates the collection, and an incremental sync that diffs
// content hashes and touches only what changed.
// The pipeline is invoked by the `prodscout ingest` CLI command.
package ingestion

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/maresbv/prodscout-go/internal/catalog"
	"github.com/maresbv/prodscout-go/internal/rag"
)

// Loader supplies the products to ingest. catalog.CSVLoader is the standard
// implementation.
type Loader interface {
	// Load reads the full product catalog from the source.
	Load() ([]*catalog.Product, error)
}

// PipelineError indicates a failure in a specific ingestion stage.
type PipelineError struct {
	// Stage names the pipeline stage that failed ("load", "embed", "store").
	Stage string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *PipelineError) Error() string {
	return fmt.Sprintf("ingestion: %s stage failed: %v", e.Stage, e.Err)
}

// Unwrap returns the underlying cause.
func (e *PipelineError) Unwrap() error { return e.Err }

// Pipeline orchestrates the load, embed, and store flow for the product
// catalog.
type Pipeline struct {
	// loader reads products from the source catalog.
	loader Loader

	// embedder converts product search text into dense vector embeddings.
	embedder rag.Embedder

	// store persists the embedded products.
	store rag.VectorStore

	// log receives progress and summary events.
	log *slog.Logger
}

// NewPipeline constructs a Pipeline from the provided dependencies.
func NewPipeline(loader Loader, embedder rag.Embedder, store rag.VectorStore, log *slog.Logger) (*Pipeline, error) {
	if loader == nil {
		return nil, fmt.Errorf("ingestion: loader must not be nil")
	}
	if embedder == nil {
		return nil, fmt.Errorf("ingestion: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("ingestion: store must not be nil")
	}
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{
		loader:   loader,
		embedder: embedder,
		store:    store,
		log:      log,
	}, nil
}

// IngestAll performs a full rebuild: the collection is dropped, recreated,
// and repopulated from the source catalog. All embeddings are computed
// before any point is written, so a mid-batch embedding failure leaves the
// store empty rather than half-filled. Returns the number of products
// written.
func (p *Pipeline) IngestAll(ctx context.Context) (int, error) {
	products, err := p.loader.Load()
	if err != nil {
		return 0, &PipelineError{Stage: "load", Err: err}
	}
	p.log.Info("ingestion: catalog loaded", slog.Int("products", len(products)))

	if err := p.embedProducts(ctx, products); err != nil {
		return 0, err
	}

	if err := p.store.Drop(ctx); err != nil {
		return 0, &PipelineError{Stage: "store", Err: err}
	}
	if err := p.store.EnsureCollection(ctx); err != nil {
		return 0, &PipelineError{Stage: "store", Err: err}
	}

	n, err := p.store.Insert(ctx, products)
	if err != nil {
		return 0, &PipelineError{Stage: "store", Err: err}
	}
	p.log.Info("ingestion: full rebuild complete", slog.Int("inserted", n))
	return n, nil
}

// embedProducts computes and attaches embeddings for every product that does
// not already carry one.
func (p *Pipeline) embedProducts(ctx context.Context, products []*catalog.Product) error {
	var pending []*catalog.Product
	for _, prod := range products {
		if prod.Embedding == nil {
			pending = append(pending, prod)
		}
	}
	if len(pending) == 0 {
		return nil
	}

	texts := make([]string, len(pending))
	for i, prod := range pending {
		texts[i] = prod.SearchText()
	}

	embeddings, err := p.embedder.Embed(ctx, texts)
	if err != nil {
		return &PipelineError{Stage: "embed", Err: err}
	}
	if len(embeddings) != len(pending) {
		return &PipelineError{Stage: "embed", Err: fmt.Errorf("expected %d embeddings, got %d", len(pending), len(embeddings))}
	}
	for i, prod := range pending {
		prod.Embedding = embeddings[i]
	}
	return nil
}
