package tools

import (
	"context"
	"fmt"

	"github.com/craftwise/craftwise/backend/pkg/models"
)

// ConversationTool handles greetings, small talk, and anything the router
// cannot place. It is also the registry's fallback when the router names an
// unknown tool.
type ConversationTool struct {
	deps *Deps
}

func NewConversationTool(deps *Deps) *ConversationTool {
	return &ConversationTool{deps: deps}
}

func (c *ConversationTool) Name() string { return "general_conversation" }

func (c *ConversationTool) Description() string {
	return "Use for greetings, farewells, or when the user's intent is unclear."
}

func (c *ConversationTool) Execute(ctx context.Context, turn *Turn, prev map[string]any) (*models.AssistantResponse, error) {
	prompt := fmt.Sprintf(`You are a helpful and friendly AI assistant for a local artisan.
The user has just said: %q.
This is the entire context you have: %s
Your task is to provide a natural, conversational response.
If the user is asking a follow-up question about a previous turn, answer it based on the history.
If it's a simple greeting, respond warmly. If it's a request, explain that you can help with posts, ads, products, market research, or chats.
Place your final response in the 'assistant_message' field.`,
		turn.Message, mustJSON(prev))

	result := c.deps.Gen.Generate(ctx, prompt, map[string]any{"assistant_message": "string"}, turn.Image)
	return decodeResponse(result, c.Name())
}
