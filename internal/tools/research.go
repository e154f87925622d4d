package tools

import (
	"context"
	"fmt"

	"github.com/craftwise/craftwise/backend/internal/record"
	"github.com/craftwise/craftwise/backend/internal/schema"
	"github.com/craftwise/craftwise/backend/pkg/models"
	"github.com/rs/zerolog/log"
)

// ResearchTool answers market-analysis questions. A fresh question runs a
// search-grounded summary first and then synthesizes it into the structured
// response shape; a follow-up (same tool as the previous turn) skips the
// grounded call and builds on the previous answer instead.
type ResearchTool struct {
	deps *Deps
}

func NewResearchTool(deps *Deps) *ResearchTool {
	return &ResearchTool{deps: deps}
}

func (r *ResearchTool) Name() string { return "handle_market_research" }

func (r *ResearchTool) Description() string {
	return "Use for market analysis, finding trends, or checking what's popular."
}

func (r *ResearchTool) Execute(ctx context.Context, turn *Turn, prev map[string]any) (*models.AssistantResponse, error) {
	shape := schema.Derive(models.AssistantResponse{})
	for _, key := range []string{"role", "turn_id", "timestamp", "tool_name", "drafts", "selections_text"} {
		delete(shape, key)
	}

	if prevString(prev, "tool_name") == r.Name() {
		return r.followUp(ctx, turn, prev, shape)
	}

	summary, citations := r.deps.Research.GroundedSummary(ctx, turn.Message, turn.Image)
	log.Debug().Int("citations", len(citations)).Msg("Grounded research done")

	var urls []string
	for _, c := range citations {
		urls = append(urls, c.URL)
	}
	prompt := fmt.Sprintf(`You are a business research assistant. Synthesize the following research into a structured summary for an artisan:
Grounded summary: %s
Reference URLs: %s
Products: %s
Return a structured response with insights, recommendations, charts, and sources. If possible, include a chart of key trends. Use the schema provided; if needed, make the data up.`,
		summary, mustJSON(urls), collectionJSON(r.deps.Store.Products))

	synthesis := r.deps.Gen.Generate(ctx, prompt, shape, nil)
	// The grounded citations are authoritative: they override whatever
	// sources the synthesis call invented.
	if deduped := dedupeSources(citations); len(deduped) > 0 {
		synthesis["sources"] = record.Encode(deduped)
	} else {
		synthesis["sources"] = nil
	}
	return decodeResponse(synthesis, r.Name())
}

func (r *ResearchTool) followUp(ctx context.Context, turn *Turn, prev map[string]any, shape map[string]any) (*models.AssistantResponse, error) {
	imageLine := ""
	if turn.ImageURL != "" {
		imageLine = "The user uploaded an image with URL " + turn.ImageURL
	}
	prompt := fmt.Sprintf(`You are a business research assistant. The user previously received this market research summary:
---
%s
Insights: %s
Charts: %s
Sources: %s
Stats: %s
Selections: %s
---
The user now asked: '%s'
and gave these selections: '%s'
%s
Respond conversationally, referencing the above insights, recommendations, charts, and sources as needed. If the user asks for more detail, expand or clarify. If they ask for a chart or source, summarize or highlight from the above. If you can't answer, say so politely. Do not repeat the entire previous answer, but build on it.
Wherever needed, add new insights, recommendations, charts, or sources if relevant, or reuse previous ones.`,
		prevString(prev, "assistant_message"),
		prevJSON(prev, "insights"),
		prevJSON(prev, "charts"),
		prevJSON(prev, "sources"),
		prevJSON(prev, "stats"),
		prevJSON(prev, "selections"),
		turn.Message,
		mustJSON(nonNilSelections(turn.Selections)),
		imageLine,
	)

	result := r.deps.Gen.Generate(ctx, prompt, shape, turn.Image)
	return decodeResponse(result, r.Name())
}

func dedupeSources(sources []models.Source) []models.Source {
	seen := map[string]bool{}
	var out []models.Source
	for _, s := range sources {
		if s.URL == "" || seen[s.URL] {
			continue
		}
		seen[s.URL] = true
		out = append(out, s)
	}
	return out
}
