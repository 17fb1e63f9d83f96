// Package server implements the HTTP server that exposes the research
// assistant via a REST API. The server is started by the `prodscout serve`
// CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/cloudwego/eino/schema"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/maresbv/prodscout-go/internal/history"
	"github.com/maresbv/prodscout-go/internal/logging"
)

// defaultHistoryLimit is how many recent queries are offered to the planner
// when no explicit limit is configured.
const defaultHistoryLimit = 5

// New constructs a Server from the provided orchestrator, history store,
// and config. hist may be nil to disable persistence.
func New(orch querier, hist history.Store, cfg *Config) (*Server, error) {
	if orch == nil {
		return nil, fmt.Errorf("server: orchestrator must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// WriteTimeout must cover the full multi-step research run.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.QueryTimeout == 0 {
		cfg.QueryTimeout = 2 * time.Minute
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.HistoryLimit == 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.Logger == nil {
		cfg.Logger = logging.New()
	}
	if cfg.MetricsRegistry == nil {
		cfg.MetricsRegistry = prometheus.DefaultRegisterer
	}
	if cfg.MetricsGatherer == nil {
		cfg.MetricsGatherer = prometheus.DefaultGatherer
	}

	s := &Server{
		querier: orch,
		history: hist,
		cfg:     cfg,
		log:     cfg.Logger,
		pingers: cfg.Pingers,
		metrics: newServerMetrics(cfg.MetricsRegistry),
	}

	if cfg.APIKey == "" {
		s.log.Warn("server: API key not set, authentication disabled")
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, s.log)
	s.stopRL = stopRL

	// Protected routes get auth then per-IP rate limiting.
	protect := func(h http.Handler) http.Handler {
		return authMiddleware(cfg.APIKey, rl.middleware(h))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/query", protect(s.instrumented("query", s.handleQuery)))
	mux.Handle("POST /api/feedback", protect(s.instrumented("feedback", s.handleFeedback)))
	mux.Handle("GET /api/history", protect(s.instrumented("history", s.handleHistory)))
	mux.Handle("GET /api/health", s.instrumented("health", s.handleHealth))
	mux.Handle("GET /api/ready", s.instrumented("ready", s.handleReady))
	mux.Handle("GET /metrics", promhttp.HandlerFor(cfg.MetricsGatherer, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(s.log, mux),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server: listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleQuery handles POST /api/query. It seeds the planner with recent
// history, runs the full research pipeline, persists the result, and returns
// the synthesized answer as JSON.
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req queryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.Query == "" {
		http.Error(w, "query is required", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.cfg.QueryTimeout)
	defer cancel()

	s.metrics.queryActive.Inc()
	defer s.metrics.queryActive.Dec()
	start := time.Now()

	result, err := s.querier.QueryWithHistory(ctx, req.Query, s.plannerHistory(ctx))
	outcome := "ok"
	if err != nil {
		outcome = "error"
		if errors.Is(err, context.DeadlineExceeded) {
			outcome = "timeout"
		}
	}
	s.metrics.queryRequestsTotal.WithLabelValues(outcome).Inc()
	s.metrics.queryDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())

	if err != nil {
		log.Error("query failed", slog.Any("error", err))
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}

	resp := queryResponse{Result: result}
	if s.history != nil {
		id, saveErr := s.history.SaveQuery(r.Context(), &history.Record{
			Query:      req.Query,
			Answer:     result.Answer,
			Reasoning:  result.Reasoning,
			AgentsUsed: result.AgentsUsed,
			Confidence: result.Confidence,
		})
		if saveErr != nil {
			// Persistence failures degrade feedback linkage but never fail
			// the query itself.
			log.Warn("history save failed", slog.Any("error", saveErr))
		} else {
			resp.ID = id
		}
	}

	writeJSON(w, http.StatusOK, resp, log)
}

// plannerHistory loads the most recent persisted queries and converts them
// to chat turns for the planner. Returns nil when history is disabled or
// unavailable.
func (s *Server) plannerHistory(ctx context.Context) []*schema.Message {
	if s.history == nil {
		return nil
	}
	recs, err := s.history.Recent(ctx, s.cfg.HistoryLimit)
	if err != nil {
		logging.FromContext(ctx).Warn("history load failed", slog.Any("error", err))
		return nil
	}
	msgs := make([]*schema.Message, 0, len(recs)*2)
	for _, rec := range recs {
		msgs = append(msgs, schema.UserMessage(rec.Query))
		msgs = append(msgs, schema.AssistantMessage(rec.Answer, nil))
	}
	return msgs
}

// handleFeedback handles POST /api/feedback. Feedback must reference an
// existing query and carry a rating between 1 and 5.
func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	var req feedbackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if req.QueryID == "" {
		http.Error(w, "query_id is required", http.StatusBadRequest)
		return
	}
	if req.Rating < 1 || req.Rating > 5 {
		http.Error(w, "rating must be between 1 and 5", http.StatusBadRequest)
		return
	}
	if s.history == nil {
		http.Error(w, "history is disabled", http.StatusNotImplemented)
		return
	}

	id, err := s.history.SaveFeedback(r.Context(), &history.Feedback{
		QueryID: req.QueryID,
		Rating:  req.Rating,
		Comment: req.Comment,
	})
	if errors.Is(err, history.ErrNotFound) {
		http.Error(w, "unknown query_id", http.StatusNotFound)
		return
	}
	if err != nil {
		log.Error("feedback save failed", slog.Any("error", err))
		http.Error(w, "feedback save failed", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, feedbackResponse{ID: id}, log)
}

// handleHistory handles GET /api/history with ?page= and ?page_size=
// pagination.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())

	if s.history == nil {
		http.Error(w, "history is disabled", http.StatusNotImplemented)
		return
	}

	page := queryParamInt(r, "page", 1)
	size := queryParamInt(r, "page_size", 20)
	if page < 1 {
		page = 1
	}
	if size < 1 || size > 100 {
		size = 20
	}

	recs, total, err := s.history.List(r.Context(), page, size)
	if err != nil {
		log.Error("history list failed", slog.Any("error", err))
		http.Error(w, "history list failed", http.StatusInternalServerError)
		return
	}
	if recs == nil {
		recs = []history.Record{}
	}

	writeJSON(w, http.StatusOK, historyResponse{
		Queries: recs,
		Page:    page,
		Size:    size,
		Total:   total,
	}, log)
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	log := logging.FromContext(r.Context())
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"}, log)
}

// writeJSON encodes v as the JSON response body with the given status.
func writeJSON(w http.ResponseWriter, status int, v any, log *slog.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("response encode failed", slog.Any("error", err))
	}
}

// queryParamInt parses an integer query parameter, returning fallback when
// the parameter is absent or malformed.
func queryParamInt(r *http.Request, name string, fallback int) int {
	v := r.URL.Query().Get(name)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
