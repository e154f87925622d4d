// Package assistant is the orchestration layer: it routes each user turn to
// a tool, stamps turn identity, and maintains the conversation history.
// Turns are strictly sequential; the HTTP layer serializes requests before
// they reach this package.
package assistant

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/craftwise/craftwise/backend/internal/ai"
	"github.com/craftwise/craftwise/backend/internal/record"
	"github.com/craftwise/craftwise/backend/internal/store"
	"github.com/craftwise/craftwise/backend/internal/tools"
	"github.com/craftwise/craftwise/backend/pkg/models"
)

// Assistant owns the tool registry and the conversation loop.
type Assistant struct {
	store    *store.Store
	gen      ai.Generator
	registry *tools.Registry

	// fallbackImage is threaded into the draft tools' image resolution;
	// see tools.Deps.FallbackImage.
	fallbackImage string
}

// New wires the assistant with its full tool set.
func New(st *store.Store, gen ai.Generator, research ai.Researcher, images ai.ImageGenerator, nativeLanguage, fallbackImageURL string) *Assistant {
	a := &Assistant{
		store:         st,
		gen:           gen,
		fallbackImage: fallbackImageURL,
	}
	a.registry = tools.NewRegistry(&tools.Deps{
		Store:          st,
		Gen:            gen,
		Research:       research,
		Images:         images,
		NativeLanguage: nativeLanguage,
		FallbackImage:  &a.fallbackImage,
	})
	return a
}

// ProcessTurn runs one full conversation turn: route, execute, summarize,
// persist. It returns the updated history. When the turn carries no
// meaningful input (no message, no answered selections, no edited draft)
// nothing is persisted and only the previous assistant response comes back.
func (a *Assistant) ProcessTurn(ctx context.Context, turn *tools.Turn) (any, error) {
	history := a.store.History()
	length := len(history)
	prev := a.store.LastTurn()

	toolName := a.route(ctx, turn, prev)
	tool := a.registry.Get(toolName)

	response, err := tool.Execute(ctx, turn, prev)
	if err != nil {
		return nil, fmt.Errorf("tool %s: %w", tool.Name(), err)
	}

	summary := Summarize(turn, prev)
	if summary == "" {
		if prev == nil {
			prev = map[string]any{}
		}
		return prev, nil
	}

	userTurn, _ := record.Encode(models.UserTurn{
		Role:       "user",
		Content:    summary,
		TurnID:     fmt.Sprintf("user_%d", length),
		Timestamp:  time.Now().UnixMilli(),
		Message:    turn.Message,
		ImageURL:   turn.ImageURL,
		Selections: turn.Selections,
		Drafts:     turn.Drafts,
	}).(map[string]any)
	history = append(history, userTurn)

	response.TurnID = fmt.Sprintf("assistant_%d", length+1)
	response.Timestamp = time.Now().UnixMilli()
	assistantTurn, _ := record.Encode(response).(map[string]any)
	history = append(history, assistantTurn)

	if err := a.store.SaveHistory(history); err != nil {
		log.Warn().Err(err).Msg("Failed to save chat history")
	}
	return history, nil
}

// route asks the model which tool should handle the turn. On a degraded or
// empty answer the conversation fallback is used.
func (a *Assistant) route(ctx context.Context, turn *tools.Turn, prev map[string]any) string {
	imageFlag := "No"
	if turn.Image != nil {
		imageFlag = "Yes"
	}
	prompt := fmt.Sprintf(`Analyze the user's intent and current context:

User message: %q
Current selections: %s
User uploaded image: %s
Previous assistant response: %s
Current tool: %s
Available tools: %s

Determine: which tool to use (consider context switching).

Rules:
- If the user says "publish", "launch", "go ahead" etc., they want to confirm the current task.
- If asking about a different topic, switch tools.
- If continuing the conversation, use the same tool.`,
		turn.Message,
		mustJSON(turn.Selections),
		imageFlag,
		mustJSON(stringAt(prev, "assistant_message")),
		orNone(stringAt(prev, "tool_name")),
		mustJSON(a.registry.Definitions()),
	)

	decision := a.gen.Generate(ctx, prompt, map[string]any{"tool_name": "string", "reasoning": "string"}, nil)
	name, _ := decision["tool_name"].(string)
	if ai.IsDegraded(decision) || name == "" {
		name = "general_conversation"
	}
	reasoning, _ := decision["reasoning"].(string)
	log.Info().Str("tool", name).Str("reasoning", reasoning).Msg("Routed turn")
	return name
}

func orNone(s string) string {
	if s == "" {
		return "None"
	}
	return s
}
