package assistant_test

import (
	"context"
	"strings"
	"testing"

	"github.com/craftwise/craftwise/backend/internal/ai"
	"github.com/craftwise/craftwise/backend/internal/assistant"
	"github.com/craftwise/craftwise/backend/internal/store"
	"github.com/craftwise/craftwise/backend/internal/tools"
	"github.com/craftwise/craftwise/backend/pkg/models"
)

type fakeGen struct {
	respond func(prompt string, shape map[string]any) map[string]any
}

func (f *fakeGen) Generate(_ context.Context, prompt string, shape map[string]any, _ *ai.Image) map[string]any {
	return f.respond(prompt, shape)
}

type fakeResearcher struct{}

func (fakeResearcher) GroundedSummary(context.Context, string, *ai.Image) (string, []models.Source) {
	return "", nil
}

type fakeImages struct{}

func (fakeImages) GenerateImage(context.Context, string, []string) []string { return nil }

func newAssistant(t *testing.T, gen *fakeGen) (*assistant.Assistant, *store.Store) {
	t.Helper()
	s, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open() error: %v", err)
	}
	a := assistant.New(s, gen, fakeResearcher{}, fakeImages{}, "en", "https://img.example/fallback.png")
	return a, s
}

func TestProcessTurnAppendsToHistory(t *testing.T) {
	gen := &fakeGen{respond: func(prompt string, shape map[string]any) map[string]any {
		if strings.Contains(prompt, "Analyze the user's intent") {
			return map[string]any{"tool_name": "general_conversation", "reasoning": "greeting"}
		}
		return map[string]any{"assistant_message": "Hello! I can help with posts, ads, and more."}
	}}
	a, s := newAssistant(t, gen)

	result, err := a.ProcessTurn(context.Background(), &tools.Turn{Message: "hi"})
	if err != nil {
		t.Fatalf("ProcessTurn() error: %v", err)
	}

	history, ok := result.([]map[string]any)
	if !ok {
		t.Fatalf("result = %T, want history slice", result)
	}
	if len(history) != 2 {
		t.Fatalf("history length = %d, want 2", len(history))
	}

	user, asst := history[0], history[1]
	if user["role"] != "user" || user["turn_id"] != "user_0" || user["content"] != "hi" {
		t.Errorf("user turn = %v", user)
	}
	if asst["role"] != "assistant" || asst["turn_id"] != "assistant_1" {
		t.Errorf("assistant turn = %v", asst)
	}
	if asst["tool_name"] != "general_conversation" {
		t.Errorf("tool_name = %v", asst["tool_name"])
	}
	if ts, ok := asst["timestamp"].(int64); !ok || ts == 0 {
		t.Errorf("timestamp = %v, want unix millis", asst["timestamp"])
	}

	// persisted
	if got := len(s.History()); got != 2 {
		t.Errorf("persisted history length = %d, want 2", got)
	}
}

func TestProcessTurnNoOpReturnsPreviousResponse(t *testing.T) {
	gen := &fakeGen{respond: func(prompt string, shape map[string]any) map[string]any {
		if strings.Contains(prompt, "Analyze the user's intent") {
			return map[string]any{"tool_name": "general_conversation"}
		}
		return map[string]any{"assistant_message": "..."}
	}}
	a, s := newAssistant(t, gen)

	seed := []map[string]any{
		{"role": "user", "turn_id": "user_0", "content": "hi"},
		{"role": "assistant", "turn_id": "assistant_1", "assistant_message": "Hello!"},
	}
	if err := s.SaveHistory(seed); err != nil {
		t.Fatal(err)
	}

	result, err := a.ProcessTurn(context.Background(), &tools.Turn{Message: ""})
	if err != nil {
		t.Fatalf("ProcessTurn() error: %v", err)
	}

	prev, ok := result.(map[string]any)
	if !ok {
		t.Fatalf("result = %T, want previous assistant response", result)
	}
	if prev["turn_id"] != "assistant_1" {
		t.Errorf("returned = %v, want the seeded assistant turn", prev)
	}
	if got := len(s.History()); got != 2 {
		t.Errorf("history grew to %d on a no-op turn", got)
	}
}

func TestRouteIgnoresToolNameOnDegradedDecision(t *testing.T) {
	// a degraded payload can still carry a tool_name from a partial reply;
	// the error marker wins and the turn degrades to conversation
	var executedPrompt string
	gen := &fakeGen{respond: func(prompt string, shape map[string]any) map[string]any {
		if strings.Contains(prompt, "Analyze the user's intent") {
			return map[string]any{"tool_name": "handle_post_creation", "error": "deadline exceeded"}
		}
		executedPrompt = prompt
		return map[string]any{"assistant_message": "Hi!"}
	}}
	a, _ := newAssistant(t, gen)

	if _, err := a.ProcessTurn(context.Background(), &tools.Turn{Message: "make a post"}); err != nil {
		t.Fatalf("ProcessTurn() error: %v", err)
	}
	if !strings.Contains(executedPrompt, "helpful and friendly") {
		t.Error("degraded decision with a tool_name was not routed to general conversation")
	}
}

func TestRouteFallsBackOnDegradedDecision(t *testing.T) {
	var executedPrompt string
	gen := &fakeGen{respond: func(prompt string, shape map[string]any) map[string]any {
		if strings.Contains(prompt, "Analyze the user's intent") {
			return map[string]any{"error": "model unavailable", "assistant_message": "Sorry"}
		}
		executedPrompt = prompt
		return map[string]any{"assistant_message": "Hi!"}
	}}
	a, _ := newAssistant(t, gen)

	if _, err := a.ProcessTurn(context.Background(), &tools.Turn{Message: "hello"}); err != nil {
		t.Fatalf("ProcessTurn() error: %v", err)
	}
	if !strings.Contains(executedPrompt, "helpful and friendly") {
		t.Error("degraded routing did not fall back to general conversation")
	}
}
