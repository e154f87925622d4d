package tools

import (
	"context"
	"time"

	"github.com/craftwise/craftwise/backend/internal/schema"
	"github.com/craftwise/craftwise/backend/pkg/models"
)

// NewChatTool builds the customer-chat tool. It is the structural outlier
// among the draft tools: publishing never creates a record — each confirmed
// reply is appended to its existing chat thread's conversation history,
// and the thread's analytics fields are refreshed in place.
func NewChatTool(deps *Deps) *DraftTool {
	return &DraftTool{
		name:        "handle_chat_interaction",
		description: "Use to reply to customer messages, or summarize recent chats.",
		collection:  deps.Store.Chats,
		deps:        deps,
		variant:     &chatVariant{deps: deps},
	}
}

type chatVariant struct {
	deps *Deps
}

func (v *chatVariant) DraftSample() any { return models.ChatDraft{} }

func (v *chatVariant) PromptFor(state TaskState) string {
	if state == StateFirstTurn {
		return `You are an expert assistant for chat interactions.

- Analyze the user's message and context to determine which chats they want a summary and suggested replies for.
- The summary goes in your reply, and the suggested replies in drafts.
- For each draft, use the full conversation history of its chat_id as context.
- Keep product_id as an empty string.
`
	}
	return `You are an expert assistant for chat interactions.

- For each draft, use the full conversation history of its chat_id as context.
- If the user asks for a summary, generate a concise summary of the conversation so far.
- If the user is editing, update only the relevant fields in the draft.
- If the user is finalizing the chat, set editing_enabled to false and reply minimally.
- Otherwise, regenerate drafts as needed.
`
}

// ContextFor narrows the context to the threads the current drafts point
// at; with no draft-referenced threads it falls back to everything.
func (v *chatVariant) ContextFor(state TaskState, turn *Turn, prev map[string]any) []ContextEntry {
	everything := []ContextEntry{
		{"All products", collectionJSON(v.deps.Store.Products)},
		{"All chats", collectionJSON(v.deps.Store.Chats)},
	}
	if state == StateFirstTurn {
		return everything
	}

	wanted := map[string]bool{}
	for _, d := range turn.Drafts {
		if id, _ := d["chat_id"].(string); id != "" {
			wanted[id] = true
		}
	}
	var relevant []map[string]any
	for _, chat := range v.deps.Store.Chats.Records() {
		if id, _ := chat["chat_id"].(string); wanted[id] {
			relevant = append(relevant, chat)
		}
	}
	if len(relevant) == 0 {
		return everything
	}
	return []ContextEntry{
		{"Relevant chats", mustJSON(relevant)},
		{"All products", collectionJSON(v.deps.Store.Products)},
	}
}

// Reshape is unused: the chat tool finalizes through Finalize.
func (v *chatVariant) Reshape(entry map[string]any, _ string) map[string]any { return entry }

// Finalize merges confirmed replies into their chat threads. For each draft
// the thread's insights, recommendations and stats are replaced, graphs
// cleared, and the reply appended to conversation_history as the artisan.
func (v *chatVariant) Finalize(ctx context.Context, drafts []map[string]any) error {
	typed, err := canonicalDrafts(models.ChatDraft{}, drafts)
	if err != nil {
		return err
	}

	filled := v.deps.Gen.Generate(ctx, v.enrichmentPrompt(typed), v.finalizedShape(), nil)
	insights := listOf(filled["insights"])
	recommendations := listOf(filled["recommendations"])
	stats := listOf(filled["stats"])

	chats := v.deps.Store.Chats
	now := time.Now().UTC().Format("2006-01-02T15:04:05.000000") + "Z"
	for idx, draft := range typed {
		chatID, _ := draft["chat_id"].(string)
		thread := chats.FindByID(chatID)
		if thread == nil {
			continue
		}
		thread["insights"] = pickRow(insights, idx)
		thread["recommendations"] = pickRow(recommendations, idx)
		thread["graphs"] = []any{}
		thread["stats"] = pickRow(stats, idx)

		history := listOf(thread["conversation_history"])
		history = append(history, map[string]any{
			"role":        "artisan",
			"message":     draft["message"],
			"timestamp":   now,
			"translation": draft["translation"],
		})
		thread["conversation_history"] = history
	}
	return chats.Save()
}

func (v *chatVariant) enrichmentPrompt(drafts []map[string]any) string {
	return `You are an expert assistant for chat interactions.

Your task:
- Fill in the following analytical fields for the provided chat drafts:
    - **insights**: Provide a list of lists of insights, one list per draft.
    - **recommendations**: Provide a list of lists of recommendations, one list per draft.
- Use all previous chats as context (attached below).
- Fill in realistic, plausible data for all fields.

Drafts to analyze:
` + mustJSON(drafts) + `

All previous chats:
` + collectionJSON(v.deps.Store.Chats)
}

// finalizedShape is the generic finalized-entry shape with graphs and
// created_at dropped and insights/recommendations widened to per-draft
// lists of lists.
func (v *chatVariant) finalizedShape() map[string]any {
	shape := schema.Derive(models.FinalizedEntry{})
	delete(shape, "graphs")
	delete(shape, "created_at")
	shape["insights"] = []any{[]any{schema.Derive(models.Insight{})}}
	shape["recommendations"] = []any{[]any{"string"}}
	return shape
}

func pickRow(rows []any, idx int) any {
	if idx < len(rows) && rows[idx] != nil {
		return rows[idx]
	}
	return []any{}
}
