package agent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/maresbv/prodscout-go/internal/catalog"
	"github.com/maresbv/prodscout-go/internal/logging"
	"github.com/maresbv/prodscout-go/internal/tools"
)

// defaultMaxToolRounds bounds the tool loop per step so a looping model
// cannot spin forever.
const defaultMaxToolRounds = 6

// defaultNoResponse is the answer recorded when the model produced neither
// tool calls nor content.
const defaultNoResponse = "No response generated."

// StepResult is the structured outcome of one executed plan step.
type StepResult struct {
	// Worker names the worker that ran the step.
	Worker string `json:"worker"`

	// Action is the instruction the step executed.
	Action string `json:"action"`

	// Answer is the worker's final text.
	Answer string `json:"answer"`

	// Products are the catalog products surfaced during the step.
	Products []*catalog.Product `json:"products,omitempty"`

	// Sources are external references collected during the step.
	Sources []string `json:"sources,omitempty"`

	// Confidence is the step's reliability in [0, 1].
	Confidence float64 `json:"confidence"`

	// Err is set when the step failed outright.
	Err string `json:"error,omitempty"`
}

// Worker executes plan steps with a bounded tool loop: the model is invoked
// with its tool schemas bound, requested tool calls are executed and fed
// back as tool messages, and the loop ends when the model answers in plain
// text or the round limit is hit.
type Worker struct {
	// name is the routable worker name.
	name string

	// chatModel is the unbound chat model; tools are bound per Worker.
	chatModel model.ToolCallingChatModel

	// registry holds the tools available to this worker.
	registry *tools.Registry

	// systemPrompt establishes the worker's specialty.
	systemPrompt string

	// maxRounds bounds the tool loop.
	maxRounds int
}

// WorkerConfig holds the settings for constructing a Worker.
type WorkerConfig struct {
	// Name is the routable worker name.
	Name string

	// ChatModel is the LLM backend constructed by the provider factory.
	ChatModel model.ToolCallingChatModel

	// Registry holds the tools available to this worker.
	Registry *tools.Registry

	// SystemPrompt establishes the worker's specialty.
	SystemPrompt string

	// MaxToolRounds bounds the tool loop (default 6).
	MaxToolRounds int
}

// NewWorker constructs a Worker.
func NewWorker(cfg *WorkerConfig) (*Worker, error) {
	if cfg.Name == "" {
		return nil, fmt.Errorf("agent: worker name must not be empty")
	}
	if cfg.ChatModel == nil {
		return nil, fmt.Errorf("agent: worker %q chat model must not be nil", cfg.Name)
	}
	if cfg.Registry == nil {
		return nil, fmt.Errorf("agent: worker %q tool registry must not be nil", cfg.Name)
	}
	maxRounds := cfg.MaxToolRounds
	if maxRounds <= 0 {
		maxRounds = defaultMaxToolRounds
	}
	return &Worker{
		name:         cfg.Name,
		chatModel:    cfg.ChatModel,
		registry:     cfg.Registry,
		systemPrompt: cfg.SystemPrompt,
		maxRounds:    maxRounds,
	}, nil
}

// NewProductQAWorker constructs the product_qa worker with its standard
// system prompt.
func NewProductQAWorker(chatModel model.ToolCallingChatModel, registry *tools.Registry) (*Worker, error) {
	return NewWorker(&WorkerConfig{
		Name:         WorkerProductQA,
		ChatModel:    chatModel,
		Registry:     registry,
		SystemPrompt: productQASystemPrompt,
	})
}

// NewMarketAnalysisWorker constructs the market_analysis worker with its
// standard system prompt.
func NewMarketAnalysisWorker(chatModel model.ToolCallingChatModel, registry *tools.Registry) (*Worker, error) {
	return NewWorker(&WorkerConfig{
		Name:         WorkerMarketAnalysis,
		ChatModel:    chatModel,
		Registry:     registry,
		SystemPrompt: marketAnalysisSystemPrompt,
	})
}

// Name returns the routable worker name.
func (w *Worker) Name() string { return w.name }

// Run executes one plan step. priorContext, when non-empty, carries the
// earlier steps' findings and is injected as an extra system message.
// A model transport failure mid-loop ends the step with the placeholder
// answer instead of failing the whole query; tool failures drag the step's
// confidence down instead of aborting it.
func (w *Worker) Run(ctx context.Context, action, priorContext string) (*StepResult, error) {
	log := logging.FromContext(ctx)

	infos, err := w.registry.Infos(ctx)
	if err != nil {
		return nil, fmt.Errorf("agent: worker %q: %w", w.name, err)
	}
	toolModel, err := w.chatModel.WithTools(infos)
	if err != nil {
		return nil, fmt.Errorf("agent: worker %q failed to bind tools: %w", w.name, err)
	}

	messages := []*schema.Message{
		schema.SystemMessage(w.systemPrompt),
	}
	if priorContext != "" {
		messages = append(messages, schema.SystemMessage(priorContext))
	}
	messages = append(messages, schema.UserMessage(action))

	result := &StepResult{
		Worker: w.name,
		Action: action,
	}
	seenProducts := make(map[string]bool)
	seenSources := make(map[string]bool)
	var confidenceSum float64
	var toolCalls int

	for round := 0; round < w.maxRounds; round++ {
		resp, err := toolModel.Generate(ctx, messages)
		if err != nil {
			// An unreachable model ends the step with the placeholder rather
			// than failing the whole query.
			log.Warn("agent: worker generate failed",
				slog.String("worker", w.name),
				slog.Any("error", err),
			)
			result.Answer = defaultNoResponse
			result.Confidence = 0.5
			return result, nil
		}

		if len(resp.ToolCalls) == 0 {
			result.Answer = resp.Content
			break
		}

		messages = append(messages, resp)
		for _, call := range resp.ToolCalls {
			res := w.executeTool(ctx, call)
			if res.Failed() {
				log.Warn("agent: tool call failed",
					slog.String("worker", w.name),
					slog.String("tool", call.Function.Name),
					slog.String("error", res.Err),
				)
			}
			// Failed calls carry confidence 0 and count toward the mean.
			confidenceSum += res.Confidence
			toolCalls++
			for _, p := range res.Products {
				if !seenProducts[p.ID] {
					seenProducts[p.ID] = true
					result.Products = append(result.Products, p)
				}
			}
			for _, s := range res.Sources {
				if !seenSources[s] {
					seenSources[s] = true
					result.Sources = append(result.Sources, s)
				}
			}
			messages = append(messages, schema.ToolMessage(res.JSON(), call.ID))
		}
	}

	// The step's confidence is the mean of the per-tool confidences; a
	// tool-free answer carries middling confidence.
	if toolCalls > 0 {
		result.Confidence = confidenceSum / float64(toolCalls)
	} else {
		result.Confidence = 0.5
	}
	if result.Answer == "" {
		result.Answer = defaultNoResponse
	}
	return result, nil
}

// executeTool resolves and runs one tool call, converting an unknown tool
// name into an error envelope.
func (w *Worker) executeTool(ctx context.Context, call schema.ToolCall) *tools.Result {
	t := w.registry.Get(call.Function.Name)
	if t == nil {
		return &tools.Result{
			Confidence: 0,
			Err:        fmt.Sprintf("unknown tool %q", call.Function.Name),
		}
	}
	return t.Execute(ctx, call.Function.Arguments)
}
