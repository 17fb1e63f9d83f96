// Package agent implements the research orchestration graph: a planner that
// decomposes the user's question into routable steps, specialist workers
// that execute each step with their tools, and a synthesizer that composes
// the final answer. The LLM boundary is Eino's ChatModel abstraction; the
// loop itself lives here so routing, tool execution, and confidence
// accounting stay deterministic and testable.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/maresbv/prodscout-go/internal/budget"
	"github.com/maresbv/prodscout-go/internal/logging"
)

// maxPlanSteps caps how many steps a plan may contain. Longer model outputs
// are truncated rather than rejected.
const maxPlanSteps = 3

// fallbackPlanReasoning is used when the planner output cannot be parsed.
const fallbackPlanReasoning = "Could not parse plan, defaulting to product search."

// PlanStep is one routable unit of research work.
type PlanStep struct {
	// Step is the 1-based position in the plan.
	Step int `json:"step"`

	// Action is the self-contained instruction for the worker.
	Action string `json:"action"`

	// Agent names the worker that executes this step.
	Agent string `json:"agent"`
}

// Plan is the planner's decomposition of a user question.
type Plan struct {
	// Reasoning is the planner's one-line routing explanation.
	Reasoning string `json:"reasoning"`

	// Steps are the ordered research steps.
	Steps []PlanStep `json:"plan"`
}

// Planner turns a user question into a Plan by prompting the chat model for
// a JSON plan and normalizing the result.
type Planner struct {
	// chatModel produces the plan.
	chatModel model.BaseChatModel
}

// NewPlanner constructs a Planner.
func NewPlanner(chatModel model.BaseChatModel) (*Planner, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("agent: planner chat model must not be nil")
	}
	return &Planner{chatModel: chatModel}, nil
}

// Plan asks the model to decompose the query. A malformed model response is
// never an error: it falls back to a single product_qa step carrying the
// original query, so the pipeline always has something to execute. Only a
// model transport failure is returned as an error.
func (p *Planner) Plan(ctx context.Context, query string) (*Plan, error) {
	return p.PlanWithHistory(ctx, query, nil)
}

// PlanWithHistory plans with prior query/answer turns inserted between the
// system prompt and the current question. History is trimmed oldest-first to
// fit the context budget; the system prompt and current question are never
// trimmed.
func (p *Planner) PlanWithHistory(ctx context.Context, query string, history []*schema.Message) (*Plan, error) {
	fixed := []*schema.Message{
		schema.SystemMessage(plannerSystemPrompt),
		schema.UserMessage(query),
	}
	history = budget.TrimHistory(fixed, history, budget.DefaultMaxContextTokens)

	messages := make([]*schema.Message, 0, len(history)+2)
	messages = append(messages, schema.SystemMessage(plannerSystemPrompt))
	messages = append(messages, history...)
	messages = append(messages, schema.UserMessage(query))

	resp, err := p.chatModel.Generate(ctx, messages)
	if err != nil {
		return nil, fmt.Errorf("agent: planner generate failed: %w", err)
	}

	plan, err := parsePlan(resp.Content)
	if err != nil {
		logging.FromContext(ctx).Warn("agent: plan unparseable, falling back to product search",
			slog.Any("error", err),
		)
		return fallbackPlan(query), nil
	}

	normalizePlan(ctx, plan, query)
	return plan, nil
}

// fallbackPlan is the single-step plan used when planning fails.
func fallbackPlan(query string) *Plan {
	return &Plan{
		Reasoning: fallbackPlanReasoning,
		Steps: []PlanStep{
			{Step: 1, Action: query, Agent: WorkerProductQA},
		},
	}
}

// parsePlan extracts the JSON plan from the model output, tolerating
// markdown code fences around the object.
func parsePlan(content string) (*Plan, error) {
	raw := stripCodeFence(content)
	if raw == "" {
		return nil, fmt.Errorf("empty plan response")
	}

	var plan Plan
	if err := json.Unmarshal([]byte(raw), &plan); err != nil {
		return nil, fmt.Errorf("invalid plan JSON: %w", err)
	}
	if len(plan.Steps) == 0 {
		return nil, fmt.Errorf("plan has no steps")
	}
	return &plan, nil
}

// normalizePlan enforces the plan invariants: at most maxPlanSteps steps,
// known worker names, non-empty actions, and sequential 1-based numbering.
func normalizePlan(ctx context.Context, plan *Plan, query string) {
	if len(plan.Steps) > maxPlanSteps {
		logging.FromContext(ctx).Warn("agent: plan truncated",
			slog.Int("steps", len(plan.Steps)),
			slog.Int("max", maxPlanSteps),
		)
		plan.Steps = plan.Steps[:maxPlanSteps]
	}

	for i := range plan.Steps {
		step := &plan.Steps[i]
		if step.Agent != WorkerProductQA && step.Agent != WorkerMarketAnalysis {
			logging.FromContext(ctx).Warn("agent: unknown worker in plan, routing to product_qa",
				slog.String("agent", step.Agent),
			)
			step.Agent = WorkerProductQA
		}
		if strings.TrimSpace(step.Action) == "" {
			step.Action = query
		}
		step.Step = i + 1
	}
}

// stripCodeFence removes a surrounding markdown code fence (``` or ```json)
// from the model output, returning the trimmed inner text.
func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		// Drop the language tag line ("json").
		s = s[idx+1:]
	}
	if idx := strings.LastIndex(s, "```"); idx >= 0 {
		s = s[:idx]
	}
	return strings.TrimSpace(s)
}
