package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/cloudwego/eino/components/model"

	"github.com/maresbv/prodscout-go/internal/agent"
	"github.com/maresbv/prodscout-go/internal/embedder"
	"github.com/maresbv/prodscout-go/internal/rag"
	"github.com/maresbv/prodscout-go/internal/tools"
	"github.com/maresbv/prodscout-go/internal/websearch"
)

// defaultCollection is the Qdrant collection name used when
// QDRANT_COLLECTION is not set.
const defaultCollection = "prodscout-products"

// buildVectorStore connects to Qdrant using environment configuration and
// ensures the collection exists.
func buildVectorStore(ctx context.Context, log *slog.Logger) (*rag.QdrantStore, error) {
	host := getEnvOrDefault("QDRANT_HOST", "localhost")
	port := getEnvInt("QDRANT_PORT", 6334)
	collection := getEnvOrDefault("QDRANT_COLLECTION", defaultCollection)
	embBackend := getEnvOrDefault("EMBEDDING_PROVIDER", getEnvOrDefault("MODEL_PROVIDER", "ollama"))
	vectorSize := uint64(embedder.DefaultDimensions(embBackend)) //nolint:gosec // dimensions are bounded

	store, err := rag.NewQdrantStore(ctx, &rag.QdrantConfig{
		Host:       host,
		Port:       port,
		Collection: collection,
		VectorSize: vectorSize,
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
	}
	log.Info("qdrant store ready",
		slog.String("host", host),
		slog.Int("port", port),
		slog.String("collection", collection),
	)
	return store, nil
}

// buildRetriever constructs the hybrid retriever over Qdrant. The returned
// close function releases the underlying gRPC connection.
func buildRetriever(ctx context.Context, log *slog.Logger) (rag.Retriever, *rag.QdrantStore, func(), error) {
	if err := embedder.Validate(log); err != nil {
		return nil, nil, nil, err
	}
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}

	store, err := buildVectorStore(ctx, log)
	if err != nil {
		return nil, nil, nil, err
	}

	retriever, err := rag.NewHybridRetriever(emb, store, nil)
	if err != nil {
		_ = store.Close()
		return nil, nil, nil, fmt.Errorf("failed to create retriever: %w", err)
	}
	return retriever, store, func() { _ = store.Close() }, nil
}

// buildOrchestrator wires the planner, the two specialist workers with their
// tool registries, and the synthesizer. Web search is only registered when
// TAVILY_API_KEY is set.
func buildOrchestrator(chatModel model.ToolCallingChatModel, retriever rag.Retriever, log *slog.Logger) (*agent.Orchestrator, error) {
	toolList := []tools.Tool{
		tools.NewCatalogSearchTool(retriever, 0),
		tools.NewPriceAnalysisTool(retriever, 0, 0),
		tools.NewCalculatorTool(),
	}

	webSearchAvailable := false
	if os.Getenv("TAVILY_API_KEY") != "" {
		searcher, err := websearch.NewTavilyClient(&websearch.TavilyConfig{
			APIKey:   os.Getenv("TAVILY_API_KEY"),
			Endpoint: os.Getenv("TAVILY_ENDPOINT"),
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create web search client: %w", err)
		}
		toolList = append(toolList, tools.NewWebSearchTool(searcher, 0))
		webSearchAvailable = true
	} else {
		log.Info("web search disabled", slog.String("reason", "TAVILY_API_KEY not set"))
	}

	registry, err := tools.NewRegistry(toolList...)
	if err != nil {
		return nil, fmt.Errorf("failed to build tool registry: %w", err)
	}

	productQANames := []string{"catalog_search", "calculator", "price_analysis"}
	marketNames := []string{"catalog_search", "price_analysis", "calculator"}
	if webSearchAvailable {
		productQANames = append(productQANames, "web_search")
		marketNames = append(marketNames, "web_search")
	}

	productQARegistry, err := registry.Subset(productQANames...)
	if err != nil {
		return nil, fmt.Errorf("product_qa tools: %w", err)
	}
	marketRegistry, err := registry.Subset(marketNames...)
	if err != nil {
		return nil, fmt.Errorf("market_analysis tools: %w", err)
	}

	productQA, err := agent.NewProductQAWorker(chatModel, productQARegistry)
	if err != nil {
		return nil, fmt.Errorf("failed to create product_qa worker: %w", err)
	}
	market, err := agent.NewMarketAnalysisWorker(chatModel, marketRegistry)
	if err != nil {
		return nil, fmt.Errorf("failed to create market_analysis worker: %w", err)
	}

	planner, err := agent.NewPlanner(chatModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create planner: %w", err)
	}
	synthesizer, err := agent.NewSynthesizer(chatModel)
	if err != nil {
		return nil, fmt.Errorf("failed to create synthesizer: %w", err)
	}

	orch, err := agent.NewOrchestrator(planner, synthesizer, productQA, market)
	if err != nil {
		return nil, fmt.Errorf("failed to create orchestrator: %w", err)
	}
	return orch, nil
}

// getEnvOrDefault returns the env var value or fallback when unset.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the env var parsed as int, or fallback when unset or
// malformed.
func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
