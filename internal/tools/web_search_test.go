package tools

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/maresbv/prodscout-go/internal/websearch"
)

// fakeSearcher serves a canned web search response.
type fakeSearcher struct {
	resp *websearch.Response
	err  error
}

func (f *fakeSearcher) Search(_ context.Context, _ string, _ int) (*websearch.Response, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.resp, nil
}

func Test_WebSearch_AnswerWithSources(t *testing.T) {
	t.Parallel()

	tool := NewWebSearchTool(&fakeSearcher{resp: &websearch.Response{
		Answer: "Wireless mice average around $30.",
		Results: []websearch.Result{
			{Title: "Market report", URL: "https://example.com/report"},
			{Title: "Price roundup", URL: "https://example.com/roundup"},
		},
	}}, 5)

	res := tool.Execute(context.Background(), `{"query": "average mouse price"}`)
	if res.Failed() {
		t.Fatalf("Execute failed: %s", res.Err)
	}
	if res.Confidence != 0.8 {
		t.Errorf("confidence = %f, want 0.8", res.Confidence)
	}
	if len(res.Sources) != 2 {
		t.Errorf("sources = %d, want 2", len(res.Sources))
	}
	if !strings.Contains(res.Answer, "average around $30") {
		t.Errorf("answer missing synthesized text: %q", res.Answer)
	}
	if !strings.Contains(res.Answer, "https://example.com/report") {
		t.Errorf("answer missing source URL: %q", res.Answer)
	}
}

func Test_WebSearch_NoResults(t *testing.T) {
	t.Parallel()

	tool := NewWebSearchTool(&fakeSearcher{resp: &websearch.Response{}}, 5)

	res := tool.Execute(context.Background(), `{"query": "obscure query"}`)
	if res.Failed() {
		t.Fatalf("no results should not be an error: %s", res.Err)
	}
	if res.Confidence != 0.2 {
		t.Errorf("confidence = %f, want 0.2", res.Confidence)
	}
}

func Test_WebSearch_BackendFailure(t *testing.T) {
	t.Parallel()

	tool := NewWebSearchTool(&fakeSearcher{err: errors.New("rate limited")}, 5)

	res := tool.Execute(context.Background(), `{"query": "anything"}`)
	if !res.Failed() {
		t.Fatal("expected error envelope when search fails")
	}
	if res.Confidence != 0 {
		t.Errorf("confidence = %f, want 0", res.Confidence)
	}
}

func Test_WebSearch_RequiresQuery(t *testing.T) {
	t.Parallel()

	tool := NewWebSearchTool(&fakeSearcher{resp: &websearch.Response{}}, 5)

	if res := tool.Execute(context.Background(), `{"query": ""}`); !res.Failed() {
		t.Error("empty query should fail")
	}
}
