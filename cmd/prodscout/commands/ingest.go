package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/maresbv/prodscout-go/internal/catalog"
	"github.com/maresbv/prodscout-go/internal/embedder"
	"github.com/maresbv/prodscout-go/internal/ingestion"
)

// NewIngestCmd constructs the `prodscout ingest` command, which loads the
// product catalog and indexes it into the vector store.
func NewIngestCmd() *cobra.Command {
	var catalogPath string
	var sync bool

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index the product catalog into the vector store",
		Long: `Load the product catalog CSV, embed each product, and index it into the
Qdrant vector store used for retrieval.

By default the catalog is re-indexed in full. With --sync, products are
diffed against the store by content hash: only new or changed products are
re-embedded, and products removed from the catalog are deleted from the
store. Running --sync twice against an unchanged catalog is a no-op.

Required environment variables:
  QDRANT_HOST          Qdrant server hostname (default: localhost)
  QDRANT_PORT          Qdrant gRPC port (default: 6334)
  QDRANT_COLLECTION    Collection name (default: prodscout-products)
  QDRANT_API_KEY       Optional API key for authenticated clusters
  MODEL_PROVIDER       Embedding backend: ollama, openai, azure (default: ollama)
  EMBEDDING_*          Provider-specific overrides (see README)

Examples:
  prodscout ingest --catalog ./catalog.csv
  prodscout ingest --sync
  PRODSCOUT_CATALOG_PATH=/data/catalog.csv prodscout ingest --sync`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := slog.Default()

			if !cmd.Flags().Changed("catalog") {
				catalogPath = getEnvOrDefault("PRODSCOUT_CATALOG_PATH", catalogPath)
			}
			if catalogPath == "" {
				return fmt.Errorf("ingest: a catalog path is required (--catalog or PRODSCOUT_CATALOG_PATH)")
			}
			if _, err := os.Stat(catalogPath); err != nil {
				return fmt.Errorf("ingest: catalog not readable: %w", err)
			}

			if err := embedder.Validate(log); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("ingest: failed to initialise embedder: %w", err)
			}
			log.Info("embedder initialised", slog.String("provider", getEnvOrDefault("EMBEDDING_PROVIDER", getEnvOrDefault("MODEL_PROVIDER", "ollama"))))

			store, err := buildVectorStore(ctx, log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer store.Close()

			loader := catalog.NewCSVLoader(catalogPath, log)

			pipeline, err := ingestion.NewPipeline(loader, emb, store, log)
			if err != nil {
				return fmt.Errorf("ingest: failed to create pipeline: %w", err)
			}

			if sync {
				log.Info("starting incremental sync", slog.String("catalog", catalogPath))
				result, err := pipeline.Sync(ctx)
				if err != nil {
					return fmt.Errorf("ingest: sync failed: %w", err)
				}
				log.Info("sync complete",
					slog.Int("inserted", result.Inserted),
					slog.Int("updated", result.Updated),
					slog.Int("unchanged", result.Unchanged),
					slog.Int("deleted", result.Deleted),
				)
				fmt.Printf("Sync complete: %d inserted, %d updated, %d unchanged, %d deleted\n",
					result.Inserted, result.Updated, result.Unchanged, result.Deleted)
				return nil
			}

			log.Info("starting full ingestion", slog.String("catalog", catalogPath))
			count, err := pipeline.IngestAll(ctx)
			if err != nil {
				return fmt.Errorf("ingest: pipeline failed: %w", err)
			}
			log.Info("ingestion complete", slog.Int("products", count))
			fmt.Printf("Indexed %d products\n", count)
			return nil
		},
	}

	cmd.Flags().StringVarP(&catalogPath, "catalog", "c", "", "Path to the product catalog CSV")
	cmd.Flags().BoolVar(&sync, "sync", false, "Incrementally sync instead of re-indexing everything")

	return cmd
}
