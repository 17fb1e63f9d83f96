package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/maresbv/prodscout-go/internal/rag"
)

// CatalogSearchTool retrieves products from the vector store by hybrid
// semantic plus keyword search, with optional category and price filters.
type CatalogSearchTool struct {
	// retriever executes the hybrid search.
	retriever rag.Retriever

	// defaultLimit is used when the model omits limit.
	defaultLimit int
}

// catalogSearchInput is the JSON-serialisable input schema for CatalogSearchTool.
type catalogSearchInput struct {
	// Query is the natural-language product search query.
	Query string `json:"query"`

	// Category optionally restricts results to one category.
	Category string `json:"category,omitempty"`

	// MinPrice optionally sets an inclusive lower price bound.
	MinPrice *float64 `json:"min_price,omitempty"`

	// MaxPrice optionally sets an inclusive upper price bound.
	MaxPrice *float64 `json:"max_price,omitempty"`

	// Limit caps the number of results returned.
	Limit int `json:"limit,omitempty"`
}

// NewCatalogSearchTool constructs a CatalogSearchTool.
func NewCatalogSearchTool(retriever rag.Retriever, defaultLimit int) *CatalogSearchTool {
	if defaultLimit <= 0 {
		defaultLimit = 5
	}
	return &CatalogSearchTool{retriever: retriever, defaultLimit: defaultLimit}
}

// Name returns the tool name registered with the agents.
func (t *CatalogSearchTool) Name() string { return "catalog_search" }

// Description returns the LLM-facing description of this tool.
func (t *CatalogSearchTool) Description() string {
	return "Searches the product catalog by meaning and keywords. " +
		"Use this to find products matching a description, category, or price range. " +
		"Returns matching products with price, stock, rating, and margin data."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *CatalogSearchTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "Natural-language description of the products to find.",
				Required: true,
			},
			"category": {
				Type: schema.String,
				Desc: "Exact category name to filter by (e.g. 'Electronics').",
			},
			"min_price": {
				Type: schema.Number,
				Desc: "Inclusive lower price bound.",
			},
			"max_price": {
				Type: schema.Number,
				Desc: "Inclusive upper price bound.",
			},
			"limit": {
				Type: schema.Integer,
				Desc: "Maximum number of products to return (default 5).",
			},
		}),
	}, nil
}

// Execute runs the hybrid search and formats the matches.
func (t *CatalogSearchTool) Execute(ctx context.Context, argumentsInJSON string) *Result {
	var input catalogSearchInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return errorResult("catalog_search: invalid input: %v", err)
	}
	if strings.TrimSpace(input.Query) == "" {
		return errorResult("catalog_search: query is required")
	}

	limit := input.Limit
	if limit <= 0 {
		limit = t.defaultLimit
	}

	var filter *rag.SearchFilter
	if input.Category != "" || input.MinPrice != nil || input.MaxPrice != nil {
		filter = &rag.SearchFilter{
			Category: input.Category,
			MinPrice: input.MinPrice,
			MaxPrice: input.MaxPrice,
		}
	}

	products, err := t.retriever.Search(ctx, input.Query, limit, filter)
	if err != nil {
		return errorResult("catalog_search: search failed: %v", err)
	}

	if len(products) == 0 {
		return &Result{
			Answer:     "No products in the catalog match this query.",
			Confidence: 0.3,
			Metadata:   map[string]any{"count": 0},
		}
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Found %d matching product(s):\n", len(products))
	for _, p := range products {
		fmt.Fprintf(&sb, "- %s (%s): %s | price $%.2f | margin %.1f%% | stock %d | rating %.1f (%d reviews)\n",
			p.Name, p.ID, p.Category, p.Price, p.Margin(), p.StockQuantity, p.AverageRating, p.ReviewCount)
	}

	return &Result{
		Answer:     sb.String(),
		Products:   products,
		Confidence: 0.9,
		Metadata:   map[string]any{"count": len(products)},
	}
}
