package agent

import (
	"context"
	"fmt"
	"strings"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
)

// Synthesizer composes the final user-facing answer from the executed step
// results.
type Synthesizer struct {
	// chatModel writes the final answer.
	chatModel model.BaseChatModel
}

// NewSynthesizer constructs a Synthesizer.
func NewSynthesizer(chatModel model.BaseChatModel) (*Synthesizer, error) {
	if chatModel == nil {
		return nil, fmt.Errorf("agent: synthesizer chat model must not be nil")
	}
	return &Synthesizer{chatModel: chatModel}, nil
}

// Synthesize writes one coherent answer from the step findings. The model
// call always runs, even for single-step plans, so the answer register is
// uniform. The overall confidence is the arithmetic mean of the step
// confidences; with no steps it is 0.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, steps []*StepResult) (string, float64, error) {
	messages := []*schema.Message{
		schema.SystemMessage(synthesizerSystemPrompt),
		schema.UserMessage(buildSynthesisPrompt(query, steps)),
	}
	resp, err := s.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", 0, fmt.Errorf("agent: synthesis failed: %w", err)
	}
	return resp.Content, meanConfidence(steps), nil
}

// buildSynthesisPrompt formats the original question and the tagged step
// findings for the writer model.
func buildSynthesisPrompt(query string, steps []*StepResult) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Original question: %s\n\nResearch findings:\n\n", query)
	for i, step := range steps {
		fmt.Fprintf(&sb, "[Step %d - %s]\n", i+1, step.Worker)
		if stepFailed(step) {
			fmt.Fprintf(&sb, "This step failed: %s\n\n", step.Err)
			continue
		}
		fmt.Fprintf(&sb, "%s\n\n", step.Answer)
	}
	return sb.String()
}

// meanConfidence is the arithmetic mean of the step confidences.
func meanConfidence(steps []*StepResult) float64 {
	if len(steps) == 0 {
		return 0
	}
	var total float64
	for _, step := range steps {
		total += step.Confidence
	}
	return total / float64(len(steps))
}

// stepFailed reports whether a step ended in an error.
func stepFailed(step *StepResult) bool { return step.Err != "" }
