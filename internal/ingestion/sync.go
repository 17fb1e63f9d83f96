package ingestion

import (
	"context"
	"log/slog"

	"github.com/maresbv/prodscout-go/internal/catalog"
)

// SyncResult summarizes what an incremental sync changed.
type SyncResult struct {
	// Inserted counts products new to the store.
	Inserted int `json:"inserted"`

	// Updated counts products whose content hash changed.
	Updated int `json:"updated"`

	// Unchanged counts products skipped because their hash matched.
	Unchanged int `json:"unchanged"`

	// Deleted counts stored products absent from the source catalog.
	Deleted int `json:"deleted"`
}

// Sync performs an incremental synchronization between the source catalog
// and the vector store. Products are diffed by content hash: new products
// are inserted, changed ones re-embedded and upserted, unchanged ones
// skipped without an embedding call, and stored products missing from the
// source deleted. Running Sync twice against an unchanged catalog reports
// everything unchanged on the second pass.
func (p *Pipeline) Sync(ctx context.Context) (*SyncResult, error) {
	products, err := p.loader.Load()
	if err != nil {
		return nil, &PipelineError{Stage: "load", Err: err}
	}

	if err := p.store.EnsureCollection(ctx); err != nil {
		return nil, &PipelineError{Stage: "store", Err: err}
	}

	stored, err := p.store.ContentHashes(ctx)
	if err != nil {
		return nil, &PipelineError{Stage: "store", Err: err}
	}

	var (
		inserts []*catalog.Product
		updates []*catalog.Product
		result  SyncResult
	)
	sourceIDs := make(map[string]bool, len(products))
	for _, prod := range products {
		sourceIDs[prod.ID] = true
		hash, ok := stored[prod.ID]
		switch {
		case !ok:
			inserts = append(inserts, prod)
		case hash != prod.ContentHash():
			updates = append(updates, prod)
		default:
			result.Unchanged++
		}
	}

	var deletes []string
	for id := range stored {
		if !sourceIDs[id] {
			deletes = append(deletes, id)
		}
	}

	// Only new and changed products are embedded; unchanged ones never
	// reach the embedder.
	changed := make([]*catalog.Product, 0, len(inserts)+len(updates))
	changed = append(changed, inserts...)
	changed = append(changed, updates...)
	if err := p.embedProducts(ctx, changed); err != nil {
		return nil, err
	}

	if len(inserts) > 0 {
		n, err := p.store.Insert(ctx, inserts)
		if err != nil {
			return nil, &PipelineError{Stage: "store", Err: err}
		}
		result.Inserted = n
	}
	if len(updates) > 0 {
		n, err := p.store.Upsert(ctx, updates)
		if err != nil {
			return nil, &PipelineError{Stage: "store", Err: err}
		}
		result.Updated = n
	}
	if len(deletes) > 0 {
		n, err := p.store.Delete(ctx, deletes)
		if err != nil {
			return nil, &PipelineError{Stage: "store", Err: err}
		}
		result.Deleted = n
	}

	p.log.Info("ingestion: sync complete",
		slog.Int("inserted", result.Inserted),
		slog.Int("updated", result.Updated),
		slog.Int("unchanged", result.Unchanged),
		slog.Int("deleted", result.Deleted),
	)
	return &result, nil
}
