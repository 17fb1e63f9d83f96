package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/cloudwego/eino/schema"

	"github.com/maresbv/prodscout-go/internal/catalog"
	"github.com/maresbv/prodscout-go/internal/logging"
)

// Result is the full outcome of one research query.
type Result struct {
	// Answer is the synthesized user-facing answer.
	Answer string `json:"answer"`

	// Reasoning is the planner's routing explanation.
	Reasoning string `json:"reasoning"`

	// AgentsUsed lists the workers that ran, in execution order, deduplicated.
	AgentsUsed []string `json:"agents_used"`

	// Products are the catalog products surfaced across all steps.
	Products []*catalog.Product `json:"products,omitempty"`

	// Sources are the external references collected across all steps.
	Sources []string `json:"sources,omitempty"`

	// Confidence is the mean step confidence in [0, 1].
	Confidence float64 `json:"confidence"`

	// Steps are the per-step results, for callers that want the detail.
	Steps []*StepResult `json:"steps,omitempty"`
}

// Orchestrator runs the full plan, execute, synthesize graph. Each call to
// Query starts from fresh state; the orchestrator itself is safe for
// concurrent use.
type Orchestrator struct {
	// planner decomposes the question.
	planner *Planner

	// workers are the routable step executors, keyed by name.
	workers map[string]*Worker

	// synthesizer writes the final answer.
	synthesizer *Synthesizer
}

// NewOrchestrator constructs an Orchestrator. At minimum the product_qa
// worker must be present, since it is the fallback route.
func NewOrchestrator(planner *Planner, synthesizer *Synthesizer, workers ...*Worker) (*Orchestrator, error) {
	if planner == nil {
		return nil, fmt.Errorf("agent: planner must not be nil")
	}
	if synthesizer == nil {
		return nil, fmt.Errorf("agent: synthesizer must not be nil")
	}
	byName := make(map[string]*Worker, len(workers))
	for _, w := range workers {
		if _, exists := byName[w.Name()]; exists {
			return nil, fmt.Errorf("agent: duplicate worker %q", w.Name())
		}
		byName[w.Name()] = w
	}
	if byName[WorkerProductQA] == nil {
		return nil, fmt.Errorf("agent: the %s worker is required", WorkerProductQA)
	}
	return &Orchestrator{
		planner:     planner,
		workers:     byName,
		synthesizer: synthesizer,
	}, nil
}

// Query runs one research question end to end: plan, execute each step in
// order with all earlier steps' findings as context, then synthesize.
// A failed step is recorded with zero confidence and the run continues; only
// planner or synthesizer transport failures abort the query.
func (o *Orchestrator) Query(ctx context.Context, query string) (*Result, error) {
	return o.QueryWithHistory(ctx, query, nil)
}

// QueryWithHistory runs a query with prior query/answer turns offered to the
// planner as context. The worker and synthesizer stages are unaffected by
// history; only routing decisions see it.
func (o *Orchestrator) QueryWithHistory(ctx context.Context, query string, history []*schema.Message) (*Result, error) {
	log := logging.FromContext(ctx)

	plan, err := o.planner.PlanWithHistory(ctx, query, history)
	if err != nil {
		return nil, err
	}
	log.Info("agent: plan ready",
		slog.Int("steps", len(plan.Steps)),
		slog.String("reasoning", plan.Reasoning),
	)

	result := &Result{Reasoning: plan.Reasoning}
	seenWorkers := make(map[string]bool)
	seenProducts := make(map[string]bool)
	seenSources := make(map[string]bool)

	// Each completed step's findings are appended here so every later step
	// sees all of its predecessors, not just the most recent one.
	var contextLines []string

	for _, step := range plan.Steps {
		worker := o.workers[step.Agent]
		if worker == nil {
			// The planner normalizes worker names, but guard the map lookup
			// against workers that were never registered.
			worker = o.workers[WorkerProductQA]
		}

		stepResult, err := worker.Run(ctx, step.Action, strings.Join(contextLines, "\n"))
		if err != nil {
			log.Warn("agent: step failed",
				slog.Int("step", step.Step),
				slog.String("worker", worker.Name()),
				slog.Any("error", err),
			)
			stepResult = &StepResult{
				Worker:     worker.Name(),
				Action:     step.Action,
				Answer:     fmt.Sprintf("This research step could not be completed: %v", err),
				Confidence: 0,
				Err:        err.Error(),
			}
		}
		result.Steps = append(result.Steps, stepResult)

		if !seenWorkers[stepResult.Worker] {
			seenWorkers[stepResult.Worker] = true
			result.AgentsUsed = append(result.AgentsUsed, stepResult.Worker)
		}
		for _, p := range stepResult.Products {
			if !seenProducts[p.ID] {
				seenProducts[p.ID] = true
				result.Products = append(result.Products, p)
			}
		}
		for _, s := range stepResult.Sources {
			if !seenSources[s] {
				seenSources[s] = true
				result.Sources = append(result.Sources, s)
			}
		}

		if !stepFailed(stepResult) {
			contextLines = append(contextLines, fmt.Sprintf("Previous analysis (%s): %s", stepResult.Worker, stepResult.Answer))
		}
	}

	answer, confidence, err := o.synthesizer.Synthesize(ctx, query, result.Steps)
	if err != nil {
		return nil, err
	}
	result.Answer = answer
	result.Confidence = confidence
	return result, nil
}
