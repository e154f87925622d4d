package tools_test

import (
	"context"
	"strings"
	"testing"

	"github.com/craftwise/craftwise/backend/internal/ai"
	"github.com/craftwise/craftwise/backend/internal/store"
	"github.com/craftwise/craftwise/backend/internal/tools"
	"github.com/craftwise/craftwise/backend/pkg/models"
)

// fakeGen scripts structured-generation responses by prompt content.
type fakeGen struct {
	prompts []string
	respond func(prompt string, shape map[string]any) map[string]any
}

func (f *fakeGen) Generate(_ context.Context, prompt string, shape map[string]any, _ *ai.Image) map[string]any {
	f.prompts = append(f.prompts, prompt)
	return f.respond(prompt, shape)
}

func (f *fakeGen) countContaining(marker string) int {
	n := 0
	for _, p := range f.prompts {
		if strings.Contains(p, marker) {
			n++
		}
	}
	return n
}

type fakeResearcher struct {
	called  bool
	summary string
	sources []models.Source
}

func (f *fakeResearcher) GroundedSummary(context.Context, string, *ai.Image) (string, []models.Source) {
	f.called = true
	return f.summary, f.sources
}

type fakeImages struct {
	queued  [][]string
	prompts []string
}

func (f *fakeImages) GenerateImage(_ context.Context, prompt string, _ []string) []string {
	f.prompts = append(f.prompts, prompt)
	if len(f.queued) == 0 {
		return nil
	}
	next := f.queued[0]
	f.queued = f.queued[1:]
	return next
}

func newDeps(t *testing.T, gen *fakeGen) *tools.Deps {
	t.Helper()
	s, err := store.Open(t.TempDir())
	if err != nil {
		t.Fatalf("store.Open() error: %v", err)
	}
	fallback := "https://img.example/fallback.png"
	return &tools.Deps{
		Store:          s,
		Gen:            gen,
		Research:       &fakeResearcher{},
		Images:         &fakeImages{},
		NativeLanguage: "en",
		FallbackImage:  &fallback,
	}
}

// ── State inference ─────────────────────────────────────────

func TestInferState(t *testing.T) {
	cases := []struct {
		name string
		prev map[string]any
		want tools.TaskState
	}{
		{"no previous turn", nil, tools.StateFirstTurn},
		{"different tool", map[string]any{"tool_name": "handle_ad_creation"}, tools.StateFirstTurn},
		{"same tool no replacement", map[string]any{
			"tool_name": "handle_post_creation",
			"drafts":    []any{map[string]any{"draft_id": "d1", "replacement_of": ""}},
		}, tools.StateNew},
		{"same tool with replacement", map[string]any{
			"tool_name": "handle_post_creation",
			"drafts":    []any{map[string]any{"draft_id": "d1", "replacement_of": "post_42"}},
		}, tools.StateOptimize},
	}
	for _, tc := range cases {
		if got := tools.InferState("handle_post_creation", tc.prev); got != tc.want {
			t.Errorf("%s: InferState() = %v, want %v", tc.name, got, tc.want)
		}
	}
}

// ── Publish short-circuit ───────────────────────────────────

func TestPublishShortCircuit(t *testing.T) {
	gen := &fakeGen{}
	gen.respond = func(prompt string, shape map[string]any) map[string]any {
		switch {
		case strings.Contains(prompt, "wants to publish"):
			return map[string]any{"publish": true, "reason": "user confirmed"}
		case strings.Contains(prompt, "Drafts to analyze"):
			return map[string]any{
				"stats":           []any{[]any{map[string]any{"name": "reach", "value": 1200.0}}},
				"insights":        []any{map[string]any{"text": "strong weekend engagement"}},
				"recommendations": []any{"post in the evening"},
				"graphs":          []any{},
			}
		default:
			t.Errorf("unexpected generation call:\n%s", prompt)
			return map[string]any{}
		}
	}
	deps := newDeps(t, gen)
	tool := tools.NewPostTool(deps)

	prev := map[string]any{
		"tool_name":  "handle_post_creation",
		"product_id": "product_9",
		"drafts": []any{map[string]any{
			"draft_id": "d1", "caption": "Handmade vase", "language": "en", "replacement_of": "",
		}},
	}

	resp, err := tool.Execute(context.Background(), &tools.Turn{Message: "publish it"}, prev)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if resp.AssistantMessage != "Post published successfully." {
		t.Errorf("AssistantMessage = %q", resp.AssistantMessage)
	}
	if resp.EditingEnabled {
		t.Error("EditingEnabled = true after publish, want false")
	}
	if len(resp.Drafts) != 1 || resp.Drafts[0]["caption"] != "Handmade vase" {
		t.Errorf("Drafts = %v, want the carried draft", resp.Drafts)
	}
	if got := gen.countContaining("Drafts to analyze"); got != 1 {
		t.Errorf("enrichment calls = %d, want exactly 1", got)
	}

	if deps.Store.Posts.Len() != 1 {
		t.Fatalf("Posts.Len() = %d, want 1", deps.Store.Posts.Len())
	}
	rec := deps.Store.Posts.Records()[0]
	id, _ := rec["post_id"].(string)
	if !strings.HasPrefix(id, "post_") {
		t.Errorf("post_id = %q, want generated id", id)
	}
	if rec["product_id"] != "product_9" {
		t.Errorf("product_id = %v, want carried product_9", rec["product_id"])
	}
	locs, ok := rec["localizations"].([]any)
	if !ok || len(locs) != 1 {
		t.Fatalf("localizations = %v, want one entry", rec["localizations"])
	}
	loc := locs[0].(map[string]any)
	if loc["caption"] != "Handmade vase" {
		t.Errorf("localization caption = %v", loc["caption"])
	}
	if _, ok := loc["draft_id"]; ok {
		t.Error("draft_id survived persistence reshape")
	}
	if _, ok := loc["replacement_of"]; ok {
		t.Error("replacement_of survived persistence reshape")
	}
	if _, ok := loc["stats"]; !ok {
		t.Error("per-draft stats row missing from localization")
	}
	if _, ok := rec["drafts"]; ok {
		t.Error("transient drafts key survived persistence reshape")
	}
}

func TestPublishWithReplacementUpdatesInPlace(t *testing.T) {
	gen := &fakeGen{}
	gen.respond = func(prompt string, shape map[string]any) map[string]any {
		switch {
		case strings.Contains(prompt, "wants to publish"):
			return map[string]any{"publish": true}
		case strings.Contains(prompt, "Drafts to analyze"):
			return map[string]any{}
		default:
			return map[string]any{}
		}
	}
	deps := newDeps(t, gen)
	if err := deps.Store.Ads.Upsert(map[string]any{"ad_id": "ad_1", "status": "running", "product_id": "product_1", "localizations": []any{}, "created_at": ""}); err != nil {
		t.Fatal(err)
	}

	prev := map[string]any{
		"tool_name":  "handle_ad_creation",
		"product_id": "product_1",
		"drafts": []any{map[string]any{
			"draft_id": "d1", "headline": "New glaze line", "replacement_of": "ad_1",
		}},
	}

	if _, err := tools.NewAdTool(deps).Execute(context.Background(), &tools.Turn{Message: "launch it"}, prev); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if deps.Store.Ads.Len() != 1 {
		t.Fatalf("Ads.Len() = %d, want 1 (replacement, not append)", deps.Store.Ads.Len())
	}
	if got := deps.Store.Ads.Records()[0]["ad_id"]; got != "ad_1" {
		t.Errorf("ad_id = %v, want ad_1", got)
	}
	if got := deps.Store.Ads.Records()[0]["status"]; got != "running" {
		t.Errorf("status = %v, want running", got)
	}
}

// ── Cancel ──────────────────────────────────────────────────

func TestCancelRestartsFromFirstTurn(t *testing.T) {
	gen := &fakeGen{}
	var draftingPrompt string
	gen.respond = func(prompt string, shape map[string]any) map[string]any {
		switch {
		case strings.Contains(prompt, "wants to publish"):
			// publish=true is overridden by cancel
			return map[string]any{"publish": true, "cancel": true}
		case strings.Contains(prompt, "Drafts to analyze"):
			t.Error("cancel must not finalize")
			return map[string]any{}
		default:
			draftingPrompt = prompt
			return map[string]any{"assistant_message": "Okay, starting over. What would you like to post?"}
		}
	}
	deps := newDeps(t, gen)

	prev := map[string]any{
		"tool_name": "handle_post_creation",
		"drafts":    []any{map[string]any{"draft_id": "d1", "caption": "old"}},
	}

	resp, err := tools.NewPostTool(deps).Execute(context.Background(), &tools.Turn{Message: "forget it"}, prev)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if deps.Store.Posts.Len() != 0 {
		t.Errorf("Posts.Len() = %d, want 0", deps.Store.Posts.Len())
	}
	if !resp.EditingEnabled {
		t.Error("EditingEnabled = false, want true on a drafting turn")
	}
	if !strings.Contains(draftingPrompt, "creation and optimization") {
		t.Error("drafting prompt is not the first-turn prompt after cancel")
	}
	if !strings.Contains(draftingPrompt, "Previous drafts: []") {
		t.Error("cancelled context leaked into the drafting prompt")
	}
}

// ── Image resolution ────────────────────────────────────────

func TestImageResolutionThreadsFallback(t *testing.T) {
	gen := &fakeGen{}
	gen.respond = func(prompt string, shape map[string]any) map[string]any {
		if strings.Contains(prompt, "wants to publish") {
			return map[string]any{"publish": false}
		}
		return map[string]any{
			"assistant_message": "Here are two localizations.",
			"drafts": []any{
				map[string]any{"draft_id": "d1", "language": "en", "images": []any{}},
				map[string]any{"draft_id": "d2", "language": "hi", "images": []any{}},
			},
			"image_prompts": []any{
				map[string]any{"draft_id": "d1", "prompt": "a vase on a wooden table", "reference_images": []any{}},
			},
		}
	}
	deps := newDeps(t, gen)
	images := &fakeImages{queued: [][]string{{"/static/uploads/gen_1.png"}}}
	deps.Images = images

	resp, err := tools.NewPostTool(deps).Execute(context.Background(), &tools.Turn{Message: "make a post"}, nil)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	if len(images.prompts) != 1 || images.prompts[0] != "a vase on a wooden table" {
		t.Errorf("image prompts = %v", images.prompts)
	}
	if len(resp.Drafts) != 2 {
		t.Fatalf("Drafts = %v, want 2", resp.Drafts)
	}
	first := resp.Drafts[0]["images"].([]any)
	if len(first) != 1 || first[0] != "/static/uploads/gen_1.png" {
		t.Errorf("draft d1 images = %v, want generated image", first)
	}
	// the freshly generated image becomes the fallback for the second draft
	second := resp.Drafts[1]["images"].([]any)
	if len(second) != 1 || second[0] != "/static/uploads/gen_1.png" {
		t.Errorf("draft d2 images = %v, want threaded fallback", second)
	}
	if *deps.FallbackImage != "/static/uploads/gen_1.png" {
		t.Errorf("FallbackImage = %q, want updated to generated image", *deps.FallbackImage)
	}
	if !resp.EditingEnabled {
		t.Error("EditingEnabled = false on drafting turn")
	}
}

func TestImageResolutionUsesConfiguredFallbackWhenGenerationFails(t *testing.T) {
	gen := &fakeGen{}
	gen.respond = func(prompt string, shape map[string]any) map[string]any {
		if strings.Contains(prompt, "wants to publish") {
			return map[string]any{"publish": false}
		}
		return map[string]any{
			"drafts": []any{map[string]any{"draft_id": "d1", "images": []any{}}},
			"image_prompts": []any{
				map[string]any{"draft_id": "d1", "prompt": "x"},
			},
		}
	}
	deps := newDeps(t, gen) // fakeImages with nothing queued: generation fails

	resp, err := tools.NewPostTool(deps).Execute(context.Background(), &tools.Turn{Message: "post"}, nil)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	imgs := resp.Drafts[0]["images"].([]any)
	if len(imgs) != 1 || imgs[0] != "https://img.example/fallback.png" {
		t.Errorf("images = %v, want configured fallback", imgs)
	}
}

// ── Enum propagation ────────────────────────────────────────

func TestMalformedEnumFailsTheTurn(t *testing.T) {
	gen := &fakeGen{}
	gen.respond = func(prompt string, shape map[string]any) map[string]any {
		if strings.Contains(prompt, "wants to publish") {
			return map[string]any{"publish": false}
		}
		return map[string]any{
			"selections": []any{map[string]any{"prompt_id": "p1", "selection_type": "several"}},
		}
	}
	deps := newDeps(t, gen)

	_, err := tools.NewPostTool(deps).Execute(context.Background(), &tools.Turn{Message: "post"}, nil)
	if err == nil {
		t.Fatal("Execute() accepted an invalid selection_type")
	}
}

// ── Chat finalize ───────────────────────────────────────────

func TestChatPublishAppendsToThread(t *testing.T) {
	gen := &fakeGen{}
	gen.respond = func(prompt string, shape map[string]any) map[string]any {
		switch {
		case strings.Contains(prompt, "wants to publish"):
			return map[string]any{"publish": true}
		case strings.Contains(prompt, "Drafts to analyze"):
			return map[string]any{
				"insights":        []any{[]any{map[string]any{"text": "customer is price sensitive"}}},
				"recommendations": []any{[]any{"offer a bundle"}},
			}
		default:
			t.Errorf("unexpected generation call:\n%s", prompt)
			return map[string]any{}
		}
	}
	deps := newDeps(t, gen)
	if err := deps.Store.Chats.Upsert(map[string]any{
		"chat_id":       "chat_1",
		"customer_name": "Amina",
		"conversation_history": []any{
			map[string]any{"role": "customer", "message": "How much is the vase?"},
		},
		"insights": []any{}, "recommendations": []any{}, "graphs": []any{}, "stats": []any{},
	}); err != nil {
		t.Fatal(err)
	}

	prev := map[string]any{
		"tool_name": "handle_chat_interaction",
		"drafts": []any{map[string]any{
			"draft_id": "d1", "chat_id": "chat_1", "message": "It is 40 euros.", "translation": "", "language": "en",
		}},
	}

	resp, err := tools.NewChatTool(deps).Execute(context.Background(), &tools.Turn{Message: "send it"}, prev)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if resp.AssistantMessage != "Chat published successfully." {
		t.Errorf("AssistantMessage = %q", resp.AssistantMessage)
	}

	if deps.Store.Chats.Len() != 1 {
		t.Fatalf("Chats.Len() = %d, want 1 (no new record)", deps.Store.Chats.Len())
	}
	thread := deps.Store.Chats.FindByID("chat_1")
	history, _ := thread["conversation_history"].([]any)
	if len(history) != 2 {
		t.Fatalf("conversation_history = %v, want 2 entries", history)
	}
	last := history[1].(map[string]any)
	if last["role"] != "artisan" || last["message"] != "It is 40 euros." {
		t.Errorf("appended turn = %v", last)
	}
	if graphs, _ := thread["graphs"].([]any); len(graphs) != 0 {
		t.Errorf("graphs = %v, want empty", thread["graphs"])
	}
	insights, _ := thread["insights"].([]any)
	if len(insights) != 1 {
		t.Errorf("insights = %v, want the per-draft row", thread["insights"])
	}
}

func TestChatPublishIgnoresUnknownThread(t *testing.T) {
	gen := &fakeGen{}
	gen.respond = func(prompt string, shape map[string]any) map[string]any {
		switch {
		case strings.Contains(prompt, "wants to publish"):
			return map[string]any{"publish": true}
		case strings.Contains(prompt, "Drafts to analyze"):
			return map[string]any{
				"insights":        []any{[]any{map[string]any{"text": "n/a"}}},
				"recommendations": []any{[]any{"n/a"}},
			}
		default:
			t.Errorf("unexpected generation call:\n%s", prompt)
			return map[string]any{}
		}
	}
	deps := newDeps(t, gen)
	if err := deps.Store.Chats.Upsert(map[string]any{
		"chat_id":              "chat_1",
		"customer_name":        "Amina",
		"conversation_history": []any{map[string]any{"role": "customer", "message": "hi"}},
		"insights":             []any{}, "recommendations": []any{}, "graphs": []any{}, "stats": []any{},
	}); err != nil {
		t.Fatal(err)
	}

	prev := map[string]any{
		"tool_name": "handle_chat_interaction",
		"drafts": []any{map[string]any{
			"draft_id": "d1", "chat_id": "chat_404", "message": "Hello?", "translation": "", "language": "en",
		}},
	}

	if _, err := tools.NewChatTool(deps).Execute(context.Background(), &tools.Turn{Message: "send it"}, prev); err != nil {
		t.Fatalf("Execute() error: %v", err)
	}

	// an unmatched chat_id never creates a record
	if deps.Store.Chats.Len() != 1 {
		t.Fatalf("Chats.Len() = %d, want 1", deps.Store.Chats.Len())
	}
	thread := deps.Store.Chats.FindByID("chat_1")
	if history, _ := thread["conversation_history"].([]any); len(history) != 1 {
		t.Errorf("conversation_history = %v, want untouched single entry", thread["conversation_history"])
	}
	if insights, _ := thread["insights"].([]any); len(insights) != 0 {
		t.Errorf("insights = %v, want untouched empty list", thread["insights"])
	}
}

// ── Research ────────────────────────────────────────────────

func TestResearchGroundsAndOverridesSources(t *testing.T) {
	gen := &fakeGen{}
	gen.respond = func(prompt string, shape map[string]any) map[string]any {
		return map[string]any{
			"assistant_message": "The ceramics market is growing.",
			"sources":           []any{map[string]any{"title": "made up", "url": "https://invented.example"}},
		}
	}
	deps := newDeps(t, gen)
	research := &fakeResearcher{
		summary: "growing market",
		sources: []models.Source{
			{Title: "https://a.example", URL: "https://a.example"},
			{Title: "https://a.example", URL: "https://a.example"},
			{Title: "https://b.example", URL: "https://b.example"},
		},
	}
	deps.Research = research

	resp, err := tools.NewResearchTool(deps).Execute(context.Background(), &tools.Turn{Message: "ceramics trends"}, nil)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if !research.called {
		t.Error("grounded research was not called for a fresh question")
	}
	if len(resp.Sources) != 2 {
		t.Fatalf("Sources = %v, want 2 deduped citations", resp.Sources)
	}
	if resp.Sources[0].URL != "https://a.example" || resp.Sources[1].URL != "https://b.example" {
		t.Errorf("Sources = %v", resp.Sources)
	}
}

func TestResearchFollowUpSkipsGrounding(t *testing.T) {
	gen := &fakeGen{}
	gen.respond = func(prompt string, shape map[string]any) map[string]any {
		return map[string]any{"assistant_message": "As covered above, demand peaks in winter."}
	}
	deps := newDeps(t, gen)
	research := &fakeResearcher{}
	deps.Research = research

	prev := map[string]any{"tool_name": "handle_market_research", "assistant_message": "summary"}
	resp, err := tools.NewResearchTool(deps).Execute(context.Background(), &tools.Turn{Message: "what about winter?"}, prev)
	if err != nil {
		t.Fatalf("Execute() error: %v", err)
	}
	if research.called {
		t.Error("follow-up ran the grounded call again")
	}
	if resp.ToolName != "handle_market_research" {
		t.Errorf("ToolName = %q", resp.ToolName)
	}
}

// ── Registry ────────────────────────────────────────────────

func TestRegistryFallsBackToConversation(t *testing.T) {
	deps := newDeps(t, &fakeGen{respond: func(string, map[string]any) map[string]any { return map[string]any{} }})
	reg := tools.NewRegistry(deps)

	if got := reg.Get("handle_ad_creation").Name(); got != "handle_ad_creation" {
		t.Errorf("Get(handle_ad_creation).Name() = %q", got)
	}
	if got := reg.Get("made_up_tool").Name(); got != "general_conversation" {
		t.Errorf("fallback = %q, want general_conversation", got)
	}
	if defs := reg.Definitions(); len(defs) != 6 {
		t.Errorf("Definitions() = %d entries, want 6", len(defs))
	}
}
