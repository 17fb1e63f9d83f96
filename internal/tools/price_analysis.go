package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/maresbv/prodscout-go/internal/catalog"
	"github.com/maresbv/prodscout-go/internal/rag"
)

// PriceAnalysisTool computes margin statistics over catalog products matching
// a query. It fetches a wider candidate set than it reports so the statistics
// are not dominated by the top few semantic matches.
type PriceAnalysisTool struct {
	// retriever fetches the candidate products.
	retriever rag.Retriever

	// defaultLimit is the reported product count when the model omits limit.
	defaultLimit int

	// lowMarginThreshold is the percentage below which a margin counts as low.
	lowMarginThreshold float64
}

// priceAnalysisInput is the JSON-serialisable input schema for PriceAnalysisTool.
type priceAnalysisInput struct {
	// Query describes the product segment to analyze.
	Query string `json:"query"`

	// Category optionally restricts the analysis to one category.
	Category string `json:"category,omitempty"`

	// Limit caps the number of products included in the report.
	Limit int `json:"limit,omitempty"`
}

// NewPriceAnalysisTool constructs a PriceAnalysisTool.
func NewPriceAnalysisTool(retriever rag.Retriever, defaultLimit int, lowMarginThreshold float64) *PriceAnalysisTool {
	if defaultLimit <= 0 {
		defaultLimit = 10
	}
	if lowMarginThreshold <= 0 {
		lowMarginThreshold = 40
	}
	return &PriceAnalysisTool{
		retriever:          retriever,
		defaultLimit:       defaultLimit,
		lowMarginThreshold: lowMarginThreshold,
	}
}

// Name returns the tool name registered with the agents.
func (t *PriceAnalysisTool) Name() string { return "price_analysis" }

// Description returns the LLM-facing description of this tool.
func (t *PriceAnalysisTool) Description() string {
	return "Analyzes pricing and profit margins for catalog products matching a query. " +
		"Reports per-product margins sorted worst-first, the average margin, and how many products fall below the low-margin threshold. " +
		"Use this for questions about profitability, thin margins, or pricing strategy."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *PriceAnalysisTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "Description of the product segment to analyze, e.g. 'kitchen appliances'.",
				Required: true,
			},
			"category": {
				Type: schema.String,
				Desc: "Exact category name to filter by.",
			},
			"limit": {
				Type: schema.Integer,
				Desc: "Maximum number of products in the report (default 10).",
			},
		}),
	}, nil
}

// Execute fetches candidates and reports margin statistics.
func (t *PriceAnalysisTool) Execute(ctx context.Context, argumentsInJSON string) *Result {
	var input priceAnalysisInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return errorResult("price_analysis: invalid input: %v", err)
	}
	if strings.TrimSpace(input.Query) == "" {
		return errorResult("price_analysis: query is required")
	}

	limit := input.Limit
	if limit <= 0 {
		limit = t.defaultLimit
	}

	var filter *rag.SearchFilter
	if input.Category != "" {
		filter = &rag.SearchFilter{Category: input.Category}
	}

	// Fetch twice the reported count so the margin statistics reflect the
	// segment, not just the closest matches.
	candidates, err := t.retriever.Search(ctx, input.Query, limit*2, filter)
	if err != nil {
		return errorResult("price_analysis: search failed: %v", err)
	}
	if len(candidates) == 0 {
		return &Result{
			Answer:     "No products in the catalog match this query, so no price analysis is possible.",
			Confidence: 0.3,
			Metadata:   map[string]any{"count": 0},
		}
	}

	// Worst margins first.
	sorted := make([]*catalog.Product, len(candidates))
	copy(sorted, candidates)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Margin() < sorted[j].Margin()
	})
	if len(sorted) > limit {
		sorted = sorted[:limit]
	}

	var total float64
	lowCount := 0
	for _, p := range candidates {
		total += p.Margin()
		if p.LowMargin(t.lowMarginThreshold) {
			lowCount++
		}
	}
	avg := total / float64(len(candidates))

	var sb strings.Builder
	fmt.Fprintf(&sb, "Price analysis for %d product(s) (average margin %.1f%%, %d below %.0f%%):\n",
		len(candidates), avg, lowCount, t.lowMarginThreshold)
	for _, p := range sorted {
		flag := ""
		if p.LowMargin(t.lowMarginThreshold) {
			flag = " [LOW MARGIN]"
		}
		fmt.Fprintf(&sb, "- %s (%s): price $%.2f, cost $%.2f, margin %.1f%%%s\n",
			p.Name, p.ID, p.Price, p.Cost, p.Margin(), flag)
	}

	return &Result{
		Answer:     sb.String(),
		Products:   sorted,
		Confidence: 0.95,
		Metadata: map[string]any{
			"count":          len(candidates),
			"average_margin": avg,
			"low_margin":     lowCount,
			"threshold":      t.lowMarginThreshold,
		},
	}
}
