package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/maresbv/prodscout-go/internal/agent"
	"github.com/maresbv/prodscout-go/internal/history"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// QueryTimeout bounds a single /api/query research run.
	QueryTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// HistoryLimit is how many recent queries are offered to the planner as
	// context. Defaults to 5 if zero.
	HistoryLimit int
	// MetricsRegistry receives all Prometheus metric registrations. Defaults
	// to prometheus.DefaultRegisterer. Tests inject a fresh registry.
	MetricsRegistry prometheus.Registerer
	// MetricsGatherer backs GET /metrics. Defaults to prometheus.DefaultGatherer.
	MetricsGatherer prometheus.Gatherer
}

// querier is the interface handleQuery calls to run a research query.
// *agent.Orchestrator satisfies it; tests inject a fake.
type querier interface {
	// QueryWithHistory runs the full plan, execute, synthesize pipeline,
	// with prior turns offered to the planner as context.
	QueryWithHistory(ctx context.Context, query string, hist []*schema.Message) (*agent.Result, error)
}

// Server is the HTTP server that exposes the research assistant.
type Server struct {
	// querier runs research queries; set to the orchestrator in production,
	// overridden by a fake in tests.
	querier querier
	// history persists completed queries and feedback. May be nil, in which
	// case persistence and planner context seeding are disabled.
	history history.Store
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
	// metrics holds the Prometheus metrics owned by this server instance.
	metrics *serverMetrics
}

// queryRequest is the JSON body for POST /api/query.
type queryRequest struct {
	// Query is the user's natural language research question.
	Query string `json:"query"`
}

// queryResponse is the JSON response for POST /api/query.
type queryResponse struct {
	// ID is the persisted history record ID. Empty when history is disabled.
	ID string `json:"id,omitempty"`
	*agent.Result
}

// feedbackRequest is the JSON body for POST /api/feedback.
type feedbackRequest struct {
	// QueryID references the history record being rated.
	QueryID string `json:"query_id"`
	// Rating is the user's score, 1 through 5.
	Rating int `json:"rating"`
	// Comment is an optional free-text note.
	Comment string `json:"comment,omitempty"`
}

// feedbackResponse is the JSON response for POST /api/feedback.
type feedbackResponse struct {
	// ID is the persisted feedback record ID.
	ID string `json:"id"`
}

// historyResponse is the JSON response for GET /api/history.
type historyResponse struct {
	// Queries is one page of history records, newest-first.
	Queries []history.Record `json:"queries"`
	// Page is the 1-based page number served.
	Page int `json:"page"`
	// Size is the page size used.
	Size int `json:"page_size"`
	// Total is the total number of records across all pages.
	Total int `json:"total"`
}
