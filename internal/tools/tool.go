// Package tools defines the tool contract shared by the research agents and
// the concrete tool implementations: catalog search, calculator, price
// analysis, and web search. Each tool exposes Eino tool metadata so its
// schema can be bound to any ChatModel, while execution returns a structured
// envelope instead of a bare string so the agents can surface products,
// sources, and confidence to the synthesizer.
package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/cloudwego/eino/schema"

	"github.com/maresbv/prodscout-go/internal/catalog"
)

// Result is the structured envelope every tool execution returns. Failures
// are encoded in the envelope (Err set, Confidence 0) rather than returned
// as Go errors, so a broken tool call degrades a step instead of aborting
// the whole research run.
type Result struct {
	// Answer is the human-readable outcome sent back to the model.
	Answer string `json:"answer"`

	// Products holds catalog products surfaced by the tool, if any.
	Products []*catalog.Product `json:"products,omitempty"`

	// Sources lists external references (URLs) backing the answer.
	Sources []string `json:"sources,omitempty"`

	// Confidence is the tool's self-assessed reliability in [0, 1].
	Confidence float64 `json:"confidence"`

	// Metadata carries tool-specific extras (counts, statistics).
	Metadata map[string]any `json:"metadata,omitempty"`

	// Err describes the failure when the tool could not produce an answer.
	Err string `json:"error,omitempty"`
}

// Failed reports whether the execution produced an error envelope.
func (r *Result) Failed() bool { return r.Err != "" }

// JSON renders the envelope for use as a tool message body. Marshaling a
// Result cannot fail in practice; a marshal error is folded into an error
// envelope so the model always receives valid JSON.
func (r *Result) JSON() string {
	b, err := json.Marshal(r)
	if err != nil {
		return fmt.Sprintf(`{"answer":"","confidence":0,"error":%q}`, err.Error())
	}
	return string(b)
}

// errorResult builds the standard failure envelope.
func errorResult(format string, args ...any) *Result {
	return &Result{
		Answer:     "",
		Confidence: 0,
		Err:        fmt.Sprintf(format, args...),
	}
}

// Tool is the contract all research tools satisfy.
type Tool interface {
	// Name returns the unique tool name registered with the agents.
	Name() string

	// Description returns a human-readable description of what the tool does.
	// This text is sent to the LLM as part of the tool schema.
	Description() string

	// Info returns the Eino tool metadata including the JSON input schema.
	Info(ctx context.Context) (*schema.ToolInfo, error)

	// Execute runs the tool against LLM-supplied JSON arguments. Failures
	// are reported inside the returned Result, never as a Go error.
	Execute(ctx context.Context, argumentsInJSON string) *Result
}

// Registry holds the available tools keyed by name. The zero value is not
// usable; construct with NewRegistry.
type Registry struct {
	tools map[string]Tool
}

// NewRegistry constructs a Registry containing the given tools.
// Duplicate names return an error.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		if _, exists := r.tools[t.Name()]; exists {
			return nil, fmt.Errorf("tools: duplicate tool name %q", t.Name())
		}
		r.tools[t.Name()] = t
	}
	return r, nil
}

// Get returns the named tool, or nil when unknown.
func (r *Registry) Get(name string) Tool {
	return r.tools[name]
}

// Names returns the registered tool names in sorted order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.tools))
	for name := range r.tools {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Subset returns a new Registry limited to the named tools. Unknown names
// return an error so worker wiring mistakes fail at startup, not mid-query.
func (r *Registry) Subset(names ...string) (*Registry, error) {
	subset := make([]Tool, 0, len(names))
	for _, name := range names {
		t := r.tools[name]
		if t == nil {
			return nil, fmt.Errorf("tools: unknown tool %q", name)
		}
		subset = append(subset, t)
	}
	return NewRegistry(subset...)
}

// Infos collects the Eino tool metadata for every registered tool, in
// sorted name order, for binding to a ChatModel.
func (r *Registry) Infos(ctx context.Context) ([]*schema.ToolInfo, error) {
	infos := make([]*schema.ToolInfo, 0, len(r.tools))
	for _, name := range r.Names() {
		info, err := r.tools[name].Info(ctx)
		if err != nil {
			return nil, fmt.Errorf("tools: info for %q: %w", name, err)
		}
		infos = append(infos, info)
	}
	return infos, nil
}
