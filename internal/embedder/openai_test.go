package embedder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// newOpenAITestServer serves the embeddings endpoint, returning a small fixed
// vector per input and counting requests.
func newOpenAITestServer(t *testing.T, requests *atomic.Int32) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests.Add(1)
		if r.URL.Path != "/embeddings" {
			http.NotFound(w, r)
			return
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			http.Error(w, `{"error":{"message":"bad auth"}}`, http.StatusUnauthorized)
			return
		}

		var req openaiEmbedRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		var resp openaiEmbedResponse
		for i := range req.Input {
			resp.Data = append(resp.Data, struct {
				Embedding []float32 `json:"embedding"`
				Index     int       `json:"index"`
			}{Embedding: []float32{float32(i), 1, 2}, Index: i})
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func Test_OpenAIEmbedder_Embed(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	srv := newOpenAITestServer(t, &requests)

	emb := NewOpenAIEmbedder(&OpenAIConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Model:   "text-embedding-3-small",
	})

	got, err := emb.Embed(context.Background(), []string{"one", "two"})
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 embeddings, got %d", len(got))
	}
	if requests.Load() != 1 {
		t.Errorf("expected 1 request, got %d", requests.Load())
	}
}

func Test_OpenAIEmbedder_SplitsIntoBatches(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	srv := newOpenAITestServer(t, &requests)

	emb := NewOpenAIEmbedder(&OpenAIConfig{
		BaseURL:    srv.URL,
		APIKey:     "test-key",
		Model:      "text-embedding-3-small",
		BatchSize:  2,
		BatchDelay: 1, // effectively no pause in tests
	})

	texts := make([]string, 5)
	for i := range texts {
		texts[i] = fmt.Sprintf("product %d", i)
	}

	got, err := emb.Embed(context.Background(), texts)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(got) != 5 {
		t.Fatalf("expected 5 embeddings, got %d", len(got))
	}
	// 5 texts at batch size 2 is 3 requests.
	if requests.Load() != 3 {
		t.Errorf("expected 3 requests, got %d", requests.Load())
	}
	for i, vec := range got {
		if len(vec) != 3 {
			t.Errorf("embedding %d has dim %d, want 3", i, len(vec))
		}
	}
}

func Test_OpenAIEmbedder_EmbedSingle(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	srv := newOpenAITestServer(t, &requests)

	emb := NewOpenAIEmbedder(&OpenAIConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Model:   "text-embedding-3-small",
	})

	vec, err := emb.EmbedSingle(context.Background(), "wireless mouse")
	if err != nil {
		t.Fatalf("EmbedSingle: %v", err)
	}
	if len(vec) != 3 {
		t.Errorf("embedding dim %d, want 3", len(vec))
	}
}

func Test_OpenAIEmbedder_APIError(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	srv := newOpenAITestServer(t, &requests)

	emb := NewOpenAIEmbedder(&OpenAIConfig{
		BaseURL: srv.URL,
		APIKey:  "wrong-key",
		Model:   "text-embedding-3-small",
	})

	_, err := emb.Embed(context.Background(), []string{"one"})
	if err == nil {
		t.Fatal("expected error for bad API key")
	}
	var embErr *EmbeddingError
	if !errors.As(err, &embErr) {
		t.Fatalf("expected *EmbeddingError, got %T", err)
	}
	if embErr.Backend != "openai" {
		t.Errorf("backend = %q, want openai", embErr.Backend)
	}
}

func Test_OpenAIEmbedder_EmptyInput(t *testing.T) {
	t.Parallel()

	var requests atomic.Int32
	srv := newOpenAITestServer(t, &requests)

	emb := NewOpenAIEmbedder(&OpenAIConfig{
		BaseURL: srv.URL,
		APIKey:  "test-key",
		Model:   "text-embedding-3-small",
	})

	got, err := emb.Embed(context.Background(), nil)
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("expected no embeddings, got %d", len(got))
	}
	if requests.Load() != 0 {
		t.Errorf("expected no requests for empty input, got %d", requests.Load())
	}
}
