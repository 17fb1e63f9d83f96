package agent

import (
	"context"
	"errors"
	"testing"

	"github.com/cloudwego/eino/schema"

	"github.com/maresbv/prodscout-go/internal/catalog"
	"github.com/maresbv/prodscout-go/internal/rag"
	"github.com/maresbv/prodscout-go/internal/tools"
)

// stubRetriever returns a fixed product list.
type stubRetriever struct {
	products []*catalog.Product
}

func (s *stubRetriever) Search(context.Context, string, int, *rag.SearchFilter) ([]*catalog.Product, error) {
	return s.products, nil
}

func catalogRegistry(t *testing.T, products []*catalog.Product) *tools.Registry {
	t.Helper()
	r, err := tools.NewRegistry(
		tools.NewCatalogSearchTool(&stubRetriever{products: products}, 5),
		tools.NewCalculatorTool(),
	)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

func toolCallMessage(id, name, args string) *schema.Message {
	return schema.AssistantMessage("", []schema.ToolCall{
		{ID: id, Function: schema.FunctionCall{Name: name, Arguments: args}},
	})
}

func newCatalogWorker(t *testing.T, chat *scriptedModel, products []*catalog.Product) *Worker {
	t.Helper()
	w, err := NewWorker(&WorkerConfig{
		Name:         WorkerProductQA,
		ChatModel:    chat,
		Registry:     catalogRegistry(t, products),
		SystemPrompt: productQASystemPrompt,
	})
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}
	return w
}

func Test_Worker_ToolLoop(t *testing.T) {
	t.Parallel()

	products := []*catalog.Product{
		{ID: "PROD-001", Name: "Wireless Mouse", Price: 29.99, Cost: 12.50},
	}
	chat := &scriptedModel{responses: []*schema.Message{
		toolCallMessage("call-1", "catalog_search", `{"query": "wireless mice"}`),
		assistantText("We sell one wireless mouse, PROD-001 at $29.99."),
	}}
	w := newCatalogWorker(t, chat, products)

	res, err := w.Run(context.Background(), "what wireless mice do we sell?", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Answer != "We sell one wireless mouse, PROD-001 at $29.99." {
		t.Errorf("answer = %q", res.Answer)
	}
	// A single successful catalog_search, so the mean is its confidence.
	if res.Confidence != 0.9 {
		t.Errorf("confidence = %f, want 0.9", res.Confidence)
	}
	if len(res.Products) != 1 || res.Products[0].ID != "PROD-001" {
		t.Errorf("products = %+v", res.Products)
	}

	// Second model call must include the assistant tool-call message and the
	// tool result message.
	if len(chat.calls) != 2 {
		t.Fatalf("model calls = %d, want 2", len(chat.calls))
	}
	last := chat.calls[1]
	if last[len(last)-1].Role != schema.Tool {
		t.Errorf("final message role = %q, want tool", last[len(last)-1].Role)
	}
}

func Test_Worker_ConfidenceIsMeanOfToolConfidences(t *testing.T) {
	t.Parallel()

	products := []*catalog.Product{
		{ID: "PROD-001", Name: "Wireless Mouse", Price: 29.99, Cost: 12.50},
	}
	// catalog_search reports 0.9 on a hit, calculator always reports 1.0.
	chat := &scriptedModel{responses: []*schema.Message{
		toolCallMessage("call-1", "catalog_search", `{"query": "wireless mice"}`),
		toolCallMessage("call-2", "calculator", `{"expression": "(29.99 - 12.50) / 29.99 * 100"}`),
		assistantText("The wireless mouse carries a 58.3% margin."),
	}}
	w := newCatalogWorker(t, chat, products)

	res, err := w.Run(context.Background(), "what margin does the wireless mouse carry?", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Confidence != 0.95 {
		t.Errorf("confidence = %f, want 0.95 (mean of 0.9 and 1.0)", res.Confidence)
	}
}

func Test_Worker_DirectAnswerWithoutTools(t *testing.T) {
	t.Parallel()

	chat := &scriptedModel{responses: []*schema.Message{
		assistantText("I need a more specific question."),
	}}
	w := newCatalogWorker(t, chat, nil)

	res, err := w.Run(context.Background(), "help", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Confidence != 0.5 {
		t.Errorf("tool-free confidence = %f, want 0.5", res.Confidence)
	}
}

func Test_Worker_BoundsToolRounds(t *testing.T) {
	t.Parallel()

	// The model keeps requesting tool calls forever.
	var responses []*schema.Message
	for i := 0; i < 20; i++ {
		responses = append(responses, toolCallMessage("call", "calculator", `{"expression": "1+1"}`))
	}
	chat := &scriptedModel{responses: responses}

	w, err := NewWorker(&WorkerConfig{
		Name:          WorkerProductQA,
		ChatModel:     chat,
		Registry:      catalogRegistry(t, nil),
		SystemPrompt:  productQASystemPrompt,
		MaxToolRounds: 3,
	})
	if err != nil {
		t.Fatalf("NewWorker: %v", err)
	}

	res, err := w.Run(context.Background(), "loop forever", "")
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(chat.calls) != 3 {
		t.Errorf("model calls = %d, want 3", len(chat.calls))
	}
	if res.Answer != defaultNoResponse {
		t.Errorf("answer = %q, want default", res.Answer)
	}
}

func Test_Worker_UnknownToolDegrades(t *testing.T) {
	t.Parallel()

	chat := &scriptedModel{responses: []*schema.Message{
		toolCallMessage("call-1", "teleport", `{}`),
		assistantText("Could not complete the request."),
	}}
	w := newCatalogWorker(t, chat, nil)

	res, err := w.Run(context.Background(), "task", "")
	if err != nil {
		t.Fatalf("unknown tool should not abort the step: %v", err)
	}
	// The only tool call failed with confidence 0, dragging the mean to 0.
	if res.Confidence != 0 {
		t.Errorf("confidence = %f, want 0", res.Confidence)
	}
}

func Test_Worker_InjectsPriorContext(t *testing.T) {
	t.Parallel()

	chat := &scriptedModel{responses: []*schema.Message{
		assistantText("done"),
	}}
	w := newCatalogWorker(t, chat, nil)

	if _, err := w.Run(context.Background(), "task", "Previous analysis (product_qa): found 3 mice"); err != nil {
		t.Fatalf("Run: %v", err)
	}
	msgs := chat.calls[0]
	if len(msgs) != 3 {
		t.Fatalf("messages = %d, want 3 (system, context, user)", len(msgs))
	}
	if msgs[1].Role != schema.System || msgs[1].Content != "Previous analysis (product_qa): found 3 mice" {
		t.Errorf("context message = %+v", msgs[1])
	}
}

func Test_Worker_ModelFailureYieldsPlaceholder(t *testing.T) {
	t.Parallel()

	w := newCatalogWorker(t, &scriptedModel{err: errors.New("timeout")}, nil)

	res, err := w.Run(context.Background(), "task", "")
	if err != nil {
		t.Fatalf("an unreachable model should not fail the step: %v", err)
	}
	if res.Answer != defaultNoResponse {
		t.Errorf("answer = %q, want the placeholder", res.Answer)
	}
	if res.Confidence != 0.5 {
		t.Errorf("confidence = %f, want 0.5", res.Confidence)
	}
	if res.Err != "" {
		t.Errorf("step error = %q, want empty (the step completed)", res.Err)
	}
}
