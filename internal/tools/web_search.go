package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/maresbv/prodscout-go/internal/websearch"
)

// WebSearchTool answers market questions that the catalog cannot: competitor
// pricing, demand trends, external reviews. It wraps the configured
// websearch.Searcher.
type WebSearchTool struct {
	// searcher runs the external search.
	searcher websearch.Searcher

	// maxResults caps the number of hits requested per search.
	maxResults int
}

// webSearchInput is the JSON-serialisable input schema for WebSearchTool.
type webSearchInput struct {
	// Query is the web search query.
	Query string `json:"query"`
}

// NewWebSearchTool constructs a WebSearchTool.
func NewWebSearchTool(searcher websearch.Searcher, maxResults int) *WebSearchTool {
	if maxResults <= 0 {
		maxResults = 5
	}
	return &WebSearchTool{searcher: searcher, maxResults: maxResults}
}

// Name returns the tool name registered with the agents.
func (t *WebSearchTool) Name() string { return "web_search" }

// Description returns the LLM-facing description of this tool.
func (t *WebSearchTool) Description() string {
	return "Searches the web for current market information: competitor prices, demand trends, reviews. " +
		"Use this for questions the product catalog cannot answer. Returns a summary with source URLs."
}

// Info returns the Eino tool metadata including the JSON input schema.
func (t *WebSearchTool) Info(ctx context.Context) (*schema.ToolInfo, error) {
	return &schema.ToolInfo{
		Name: t.Name(),
		Desc: t.Description(),
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"query": {
				Type:     schema.String,
				Desc:     "Web search query, e.g. 'average wireless mouse price 2026'.",
				Required: true,
			},
		}),
	}, nil
}

// Execute runs the web search and formats the answer with its sources.
func (t *WebSearchTool) Execute(ctx context.Context, argumentsInJSON string) *Result {
	var input webSearchInput
	if err := json.Unmarshal([]byte(argumentsInJSON), &input); err != nil {
		return errorResult("web_search: invalid input: %v", err)
	}
	if strings.TrimSpace(input.Query) == "" {
		return errorResult("web_search: query is required")
	}

	resp, err := t.searcher.Search(ctx, input.Query, t.maxResults)
	if err != nil {
		return errorResult("web_search: %v", err)
	}

	if len(resp.Results) == 0 && resp.Answer == "" {
		return &Result{
			Answer:     "The web search returned no results for this query.",
			Confidence: 0.2,
		}
	}

	var sb strings.Builder
	if resp.Answer != "" {
		sb.WriteString(resp.Answer)
		sb.WriteString("\n\n")
	}
	sb.WriteString("Sources:\n")
	sources := make([]string, 0, len(resp.Results))
	for _, r := range resp.Results {
		sources = append(sources, r.URL)
		fmt.Fprintf(&sb, "- %s (%s)\n", r.Title, r.URL)
	}

	return &Result{
		Answer:     sb.String(),
		Sources:    sources,
		Confidence: 0.8,
		Metadata:   map[string]any{"count": len(resp.Results)},
	}
}
