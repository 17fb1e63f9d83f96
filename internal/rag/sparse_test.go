package rag

import (
	"testing"
)

func Test_Tokenize(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name  string
		input string
		want  []string
	}{
		{
			name:  "lowercases and splits on punctuation",
			input: "Wireless Mouse, 2.4GHz!",
			want:  []string{"wireless", "mouse", "4ghz"},
		},
		{
			name:  "drops single-character tokens",
			input: "a b cd",
			want:  []string{"cd"},
		},
		{
			name:  "empty input",
			input: "",
			want:  nil,
		},
		{
			name:  "keeps digits",
			input: "usb3 hub 2024",
			want:  []string{"usb3", "hub", "2024"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := Tokenize(tt.input)
			if len(got) != len(tt.want) {
				t.Fatalf("Tokenize(%q) = %v, want %v", tt.input, got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("token %d: got %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func Test_SparseEncoder_QueryWeightsAreUnit(t *testing.T) {
	t.Parallel()

	enc := NewSparseEncoder(0)
	indices, values := enc.EncodeQuery("wireless wireless mouse")
	if len(indices) != 2 {
		t.Fatalf("expected 2 unique terms, got %d", len(indices))
	}
	for i, v := range values {
		if v != 1 {
			t.Errorf("query weight %d = %f, want 1", i, v)
		}
	}
}

func Test_SparseEncoder_DocumentTermSaturation(t *testing.T) {
	t.Parallel()

	enc := NewSparseEncoder(0)

	weightOf := func(indices []uint32, values []float32, term string) float32 {
		idx := tokenIndex(term)
		for i, v := range indices {
			if v == idx {
				return values[i]
			}
		}
		return 0
	}

	i1, v1 := enc.EncodeDocument("mouse pad")
	w1 := weightOf(i1, v1, "mouse")
	i3, v3 := enc.EncodeDocument("mouse mouse mouse pad pad")
	w3 := weightOf(i3, v3, "mouse")

	if w3 <= w1 {
		t.Errorf("repeated term should weigh more: tf=3 weight %f <= tf=1 weight %f", w3, w1)
	}
	// BM25 saturates: tripling the term frequency must not triple the weight.
	if w3 >= 3*w1 {
		t.Errorf("term weight should saturate: tf=3 weight %f >= 3x tf=1 weight %f", w3, w1)
	}
}

func Test_SparseEncoder_Deterministic(t *testing.T) {
	t.Parallel()

	enc := NewSparseEncoder(0)
	text := "ergonomic wireless keyboard with backlight"

	i1, v1 := enc.EncodeDocument(text)
	i2, v2 := enc.EncodeDocument(text)

	if len(i1) != len(i2) {
		t.Fatalf("index counts differ: %d vs %d", len(i1), len(i2))
	}
	for n := range i1 {
		if i1[n] != i2[n] || v1[n] != v2[n] {
			t.Errorf("encoding not deterministic at position %d", n)
		}
	}
}

func Test_SparseEncoder_EmptyText(t *testing.T) {
	t.Parallel()

	enc := NewSparseEncoder(0)
	indices, values := enc.EncodeDocument("")
	if len(indices) != 0 || len(values) != 0 {
		t.Errorf("empty text should produce empty vectors, got %v / %v", indices, values)
	}
}
