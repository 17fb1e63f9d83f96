// Package websearch provides the external web search client backing the
// market analysis agent. Tavily is the only supported backend; it is reached
// over plain HTTP with no SDK dependency.
package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// defaultEndpoint is the Tavily search API endpoint.
const defaultEndpoint = "https://api.tavily.com/search"

// SearchError indicates a web search backend failure.
type SearchError struct {
	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *SearchError) Error() string {
	return fmt.Sprintf("websearch: %v", e.Err)
}

// Unwrap returns the underlying cause.
func (e *SearchError) Unwrap() error { return e.Err }

// Result is a single web search hit.
type Result struct {
	// Title is the page title.
	Title string `json:"title"`

	// URL is the page address.
	URL string `json:"url"`

	// Content is the extracted page snippet.
	Content string `json:"content"`

	// Score is Tavily's relevance score.
	Score float64 `json:"score"`
}

// Response is the outcome of a web search: an optional synthesized answer
// plus the ranked result list.
type Response struct {
	// Answer is Tavily's synthesized answer, empty when unavailable.
	Answer string `json:"answer"`

	// Results are the ranked hits.
	Results []Result `json:"results"`
}

// Searcher is the interface the web search tool depends on.
type Searcher interface {
	// Search runs a web search and returns up to maxResults hits.
	Search(ctx context.Context, query string, maxResults int) (*Response, error)
}

// TavilyClient implements Searcher against the Tavily REST API. It is safe
// for concurrent use.
type TavilyClient struct {
	// endpoint is the search API URL.
	endpoint string
	// apiKey authenticates the request.
	apiKey string
	// client is the shared HTTP client with a sensible timeout.
	client *http.Client
}

// TavilyConfig holds the settings for constructing a TavilyClient.
type TavilyConfig struct {
	// APIKey is the Tavily API key (required).
	APIKey string

	// Endpoint overrides the API URL, mainly for tests.
	Endpoint string

	// Timeout bounds each search request (default 30s).
	Timeout time.Duration
}

// NewTavilyClient constructs a TavilyClient from the given config.
func NewTavilyClient(cfg *TavilyConfig) (*TavilyClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("websearch: tavily requires an API key")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &TavilyClient{
		endpoint: endpoint,
		apiKey:   cfg.APIKey,
		client:   &http.Client{Timeout: timeout},
	}, nil
}

// tavilyRequest is the JSON body sent to the search endpoint.
type tavilyRequest struct {
	APIKey        string `json:"api_key"`
	Query         string `json:"query"`
	SearchDepth   string `json:"search_depth"`
	IncludeAnswer bool   `json:"include_answer"`
	MaxResults    int    `json:"max_results"`
}

// tavilyResponse is the JSON body returned from the search endpoint.
type tavilyResponse struct {
	Answer  string   `json:"answer"`
	Results []Result `json:"results"`
	Error   string   `json:"error,omitempty"`
}

// Search runs a Tavily search with a synthesized answer enabled.
func (c *TavilyClient) Search(ctx context.Context, query string, maxResults int) (*Response, error) {
	if maxResults <= 0 {
		maxResults = 5
	}

	body := tavilyRequest{
		APIKey:        c.apiKey,
		Query:         query,
		SearchDepth:   "basic",
		IncludeAnswer: true,
		MaxResults:    maxResults,
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, &SearchError{Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &SearchError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, &SearchError{Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	var result tavilyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, &SearchError{Err: fmt.Errorf("decode response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg := fmt.Sprintf("HTTP %d", resp.StatusCode)
		if result.Error != "" {
			msg = result.Error
		}
		return nil, &SearchError{Err: fmt.Errorf("%s", msg)}
	}

	return &Response{Answer: result.Answer, Results: result.Results}, nil
}
