package rag

import (
	"hash/fnv"
	"strings"
	"unicode"
)

// BM25 term-frequency parameters. k1 controls term-frequency saturation and
// b controls document-length normalisation; the values are the standard
// defaults from the BM25 literature.
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// defaultAvgDocLen is the assumed average searchable-text length in tokens
// when the encoder is constructed without an explicit value. Catalog search
// texts (id + name + description + brand + category) are short.
const defaultAvgDocLen = 32.0

// SparseEncoder converts text into the sparse vector representation stored
// alongside the dense embedding. Documents are encoded with BM25 term
// frequency weighting; the inverse-document-frequency component is applied
// server-side by the store's IDF modifier, so encoded values only carry the
// TF part. Queries are encoded with weight 1 per unique token.
type SparseEncoder struct {
	// avgDocLen is the average document length in tokens used for BM25
	// length normalisation.
	avgDocLen float64
}

// NewSparseEncoder constructs a SparseEncoder. avgDocLen <= 0 selects the
// default average document length.
func NewSparseEncoder(avgDocLen float64) *SparseEncoder {
	if avgDocLen <= 0 {
		avgDocLen = defaultAvgDocLen
	}
	return &SparseEncoder{avgDocLen: avgDocLen}
}

// EncodeDocument returns the sparse vector for a document text: one entry
// per unique token, indexed by the token's 32-bit FNV-1a hash, weighted by
// the BM25 term-frequency formula.
func (e *SparseEncoder) EncodeDocument(text string) (indices []uint32, values []float32) {
	tokens := Tokenize(text)
	if len(tokens) == 0 {
		return nil, nil
	}

	counts := make(map[string]int, len(tokens))
	for _, tok := range tokens {
		counts[tok]++
	}

	docLen := float64(len(tokens))
	norm := bm25K1 * (1 - bm25B + bm25B*docLen/e.avgDocLen)

	indices = make([]uint32, 0, len(counts))
	values = make([]float32, 0, len(counts))
	for tok, n := range counts {
		tf := float64(n)
		weight := tf * (bm25K1 + 1) / (tf + norm)
		indices = append(indices, tokenIndex(tok))
		values = append(values, float32(weight))
	}
	return indices, values
}

// EncodeQuery returns the sparse vector for a query text: weight 1 per
// unique token. Relevance ordering comes from the document weights and the
// store-side IDF, so query-side term frequency is deliberately ignored.
func (e *SparseEncoder) EncodeQuery(text string) (indices []uint32, values []float32) {
	tokens := Tokenize(text)
	seen := make(map[uint32]bool, len(tokens))
	for _, tok := range tokens {
		idx := tokenIndex(tok)
		if seen[idx] {
			continue
		}
		seen[idx] = true
		indices = append(indices, idx)
		values = append(values, 1)
	}
	return indices, values
}

// Tokenize splits text into lowercase alphanumeric tokens, dropping
// single-character tokens. Hyphenated identifiers like "PROD-001" yield
// both halves, which is what lets keyword search match catalog IDs.
func Tokenize(text string) []string {
	var tokens []string
	var b strings.Builder
	flush := func() {
		if b.Len() > 1 {
			tokens = append(tokens, b.String())
		}
		b.Reset()
	}
	for _, r := range text {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(unicode.ToLower(r))
		default:
			flush()
		}
	}
	flush()
	return tokens
}

// tokenIndex maps a token to its sparse dimension via 32-bit FNV-1a.
func tokenIndex(token string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	return h.Sum32()
}
