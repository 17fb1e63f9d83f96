// Package embedder provides implementations of the rag.Embedder interface for
// converting catalog text into dense vector embeddings. Each implementation
// talks to a different backend (OpenAI, Azure OpenAI, Ollama) via plain HTTP;
// no additional SDK dependencies are required.
//
// Large inputs are split into fixed-size batches with a short pause between
// requests so full-catalog ingestion stays inside provider rate limits.
package embedder

import (
	"context"
	"fmt"
	"time"
)

// Batch defaults shared by all backends.
const (
	// defaultBatchSize caps the number of texts per embedding request.
	defaultBatchSize = 100

	// defaultBatchDelay is the pause between consecutive batch requests.
	defaultBatchDelay = 100 * time.Millisecond
)

// EmbeddingError indicates a backend failure while computing embeddings.
type EmbeddingError struct {
	// Backend names the embedding backend ("openai", "ollama", ...).
	Backend string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *EmbeddingError) Error() string {
	return fmt.Sprintf("%s embedder: %v", e.Backend, e.Err)
}

// Unwrap returns the underlying cause.
func (e *EmbeddingError) Unwrap() error { return e.Err }

// embedBatched splits texts into batches of at most batchSize, calls embed
// for each batch in order, and pauses delay between batches. The returned
// slice is parallel to texts.
func embedBatched(ctx context.Context, texts []string, batchSize int, delay time.Duration,
	embed func(ctx context.Context, batch []string) ([][]float32, error),
) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}

		vecs, err := embed(ctx, texts[start:end])
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)

		if end < len(texts) && delay > 0 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}
	}
	return out, nil
}
