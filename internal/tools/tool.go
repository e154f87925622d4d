// Package tools implements the assistant's tool layer: four draft tools
// (post, ad, product, chat) sharing one generic draft pipeline, plus the
// market-research and general-conversation tools.
//
// Draft tools run a small state machine per invocation. The state is
// inferred from the previous assistant turn alone: a different tool name
// means first_turn, a carried replacement_of means optimize, otherwise new.
package tools

import (
	"context"
	"encoding/json"

	"github.com/craftwise/craftwise/backend/internal/ai"
	"github.com/craftwise/craftwise/backend/internal/store"
	"github.com/craftwise/craftwise/backend/pkg/models"
)

// TaskState is the per-invocation state of a draft tool.
type TaskState string

const (
	StateFirstTurn TaskState = "first_turn"
	StateNew       TaskState = "new"
	StateOptimize  TaskState = "optimize"
)

// Turn bundles everything a tool receives for one user turn.
type Turn struct {
	Message    string
	Selections []models.ResponseSelection
	Drafts     []map[string]any
	Image      *ai.Image
	ImageURL   string
}

// Tool handles one class of user intent. The previous assistant response is
// passed as the raw history map — tools read it leniently, the same way
// they read model output.
type Tool interface {
	Name() string
	Description() string
	Execute(ctx context.Context, turn *Turn, prev map[string]any) (*models.AssistantResponse, error)
}

// Deps is the shared collaborator set handed to every tool.
type Deps struct {
	Store    *store.Store
	Gen      ai.Generator
	Research ai.Researcher
	Images   ai.ImageGenerator

	NativeLanguage string

	// FallbackImage is the URL applied to drafts that declare images but
	// ended the image-resolution step without one. It is owned by the
	// assistant and threaded through explicitly; each successful
	// generation updates it so later fallbacks look less default.
	FallbackImage *string
}

// InferState computes the task state for a tool from the previous
// assistant response.
func InferState(toolName string, prev map[string]any) TaskState {
	if prevString(prev, "tool_name") != toolName {
		return StateFirstTurn
	}
	for _, draft := range prevDrafts(prev) {
		if repl, _ := draft["replacement_of"].(string); repl != "" {
			return StateOptimize
		}
	}
	return StateNew
}

// ── Lenient accessors for raw history maps ──────────────────

func prevString(prev map[string]any, key string) string {
	if prev == nil {
		return ""
	}
	s, _ := prev[key].(string)
	return s
}

func prevList(prev map[string]any, key string) []any {
	if prev == nil {
		return nil
	}
	items, _ := prev[key].([]any)
	return items
}

func prevDrafts(prev map[string]any) []map[string]any {
	var drafts []map[string]any
	for _, item := range prevList(prev, "drafts") {
		if m, ok := item.(map[string]any); ok {
			drafts = append(drafts, m)
		}
	}
	return drafts
}

// mustJSON renders a value for prompt interpolation. Prompts tolerate the
// "null" this produces for unmarshalable values.
func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(data)
}
