package tools

import (
	"context"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/craftwise/craftwise/backend/internal/record"
	"github.com/craftwise/craftwise/backend/internal/schema"
	"github.com/craftwise/craftwise/backend/internal/store"
	"github.com/craftwise/craftwise/backend/pkg/models"
	"github.com/rs/zerolog/log"
)

// ContextEntry is one ordered "Key: Value" line of prompt context. Maps
// would randomize prompt layout between identical turns.
type ContextEntry struct {
	Key   string
	Value string
}

// DraftVariant supplies the tool-specific pieces of the generic draft
// pipeline: the draft type, the per-state prompt and context, and the final
// reshape from enriched entry to collection record.
type DraftVariant interface {
	DraftSample() any
	PromptFor(state TaskState) string
	ContextFor(state TaskState, turn *Turn, prev map[string]any) []ContextEntry
	Reshape(entry map[string]any, productID string) map[string]any
}

// customFinalizer replaces the generic publish path entirely. The chat tool
// uses it: chats update existing threads instead of producing new records.
type customFinalizer interface {
	Finalize(ctx context.Context, drafts []map[string]any) error
}

// DraftTool runs the shared draft lifecycle: classify publish/cancel intent,
// short-circuit on publish, otherwise regenerate drafts and resolve any
// requested images.
type DraftTool struct {
	name        string
	description string
	collection  *store.Collection
	deps        *Deps
	variant     DraftVariant
}

func (t *DraftTool) Name() string        { return t.name }
func (t *DraftTool) Description() string { return t.description }

func (t *DraftTool) Execute(ctx context.Context, turn *Turn, prev map[string]any) (*models.AssistantResponse, error) {
	carried := prevDrafts(prev)

	publishPrompt := fmt.Sprintf(`Decide if the user wants to publish/post/launch/confirm the current %s.
User message: %q
Selections: %s
Selections provided by the assistant: %s
Previous drafts: %s
Uploaded images: %s
Reply with publish=true if the user wants to publish/post, otherwise false.
Notes:
- Pending changes, or any changes still needed, mean the user does not want to publish yet.
- If the user expresses a desire to cancel the task, set "cancel" to true.
- If there are pending questions but the draft values are sensible, assume the user accepts them and wants to publish.`,
		t.collection.Singular,
		turn.Message,
		mustJSON(nonNilSelections(turn.Selections)),
		prevJSON(prev, "selections"),
		prevJSON(prev, "drafts"),
		turn.ImageURL,
	)
	decision := t.deps.Gen.Generate(ctx, publishPrompt, publishShape(), nil)
	wantsPublish, _ := decision["publish"].(bool)
	wantsCancel, _ := decision["cancel"].(bool)
	log.Debug().
		Str("tool", t.name).
		Bool("publish", wantsPublish).
		Bool("cancel", wantsCancel).
		Str("reason", prevString(decision, "reason")).
		Msg("Publish decision")

	if wantsPublish && !wantsCancel {
		if err := t.finalize(ctx, carried, prevString(prev, "product_id")); err != nil {
			return nil, err
		}
		published := map[string]any{
			"assistant_message": titleCase(t.collection.Singular) + " published successfully.",
			"editing_enabled":   false,
			"drafts":            anySlice(carried),
		}
		return t.toResponse(published)
	}

	// Cancelling drops the carried context; the tool starts over as if on
	// its first turn.
	if wantsCancel {
		prev = nil
	}
	state := InferState(t.name, prev)

	shape := schema.Derive(models.AssistantResponse{})
	for _, key := range []string{"role", "turn_id", "timestamp", "drafts", "selections_text"} {
		delete(shape, key)
	}
	shape["drafts"] = []any{schema.Derive(t.variant.DraftSample())}
	shape["image_prompts"] = []any{schema.Derive(models.ImagePrompt{})}

	var b strings.Builder
	b.WriteString(t.variant.PromptFor(state))
	b.WriteString("\nHere is the info you have:\n")
	for _, e := range t.commonContext(turn, prev) {
		b.WriteString(e.Key + ": " + e.Value + "\n")
	}
	for _, e := range t.variant.ContextFor(state, turn, prev) {
		b.WriteString(e.Key + ": " + e.Value + "\n")
	}
	b.WriteString(draftInstructions())

	response := t.deps.Gen.Generate(ctx, b.String(), shape, turn.Image)
	t.resolveImages(ctx, response, turn.Message)
	response["editing_enabled"] = true
	return t.toResponse(response)
}

func (t *DraftTool) commonContext(turn *Turn, prev map[string]any) []ContextEntry {
	return []ContextEntry{
		{"User uploaded image URL", turn.ImageURL},
		{"User native language", t.deps.NativeLanguage},
		{"User message", "'" + turn.Message + "'"},
		{"User drafts (current turn)", mustJSON(nonNilDrafts(turn.Drafts))},
		{"User selections (current turn)", mustJSON(nonNilSelections(turn.Selections))},
		{"Previous assistant message", prevString(prev, "assistant_message")},
		{"Previous drafts", prevJSON(prev, "drafts")},
		{"Previous insights", prevJSON(prev, "insights")},
		{"Previous charts", prevJSON(prev, "charts")},
		{"Previous sources", prevJSON(prev, "sources")},
		{"Previous selections", prevJSON(prev, "selections")},
		{"Previous stats", prevJSON(prev, "stats")},
	}
}

func draftInstructions() string {
	return `
# Translation Instructions:
- If the draft's language differs from the user's native language, provide a translation in the 'translation' field.
- If the draft's language matches the user's native language, set 'translation' to ''.
# Image Handling Instructions:
- Limit to 1 image per draft.
- If the user uploaded an image and wants to use it, replace the draft's image with it.
- If the user requests a new or changed image, or an image is needed per the draft, add an object to the 'image_prompts' array for it.
- Reference images can be the user's uploaded image, existing draft images, or both.
- Do this for each draft needing an image update or generation.
- Do not generate images yourself; just specify what is needed in 'image_prompts'. They will be generated afterwards, so assume any image prompts you fill have been generated.
- When an image is needed, request it, then ask the user if they want to change it; do not wait for them to ask.
# General Instructions:
- Ensure all drafts are complete and well-written.
- Use the user's message and selections to guide improvements.
- Maintain consistency in style and tone across drafts.
- The selections clarify user intent and should be considered when updating drafts.
- If selections are missing or unclear, generate appropriate selection prompts to clarify user intent.
- Include charts, stats, sources and insights as much as possible, making up their data if needed. They carry reasoning or general stats related to your response or task.
- Charts are graphs the user will see; stats are metrics that give the user an idea of popularity, searches, etc.
- For selections, use this heading: '` + models.SelectionsHeading + `'
- For anything you leave blank, do not use null; use an empty string, array, or whatever fits the schema.
- Fill sensible values for all fields (e.g. budget), then ask the user to confirm them, so the draft is in a publishable state.
`
}

func publishShape() map[string]any {
	return map[string]any{
		"publish": "boolean",
		"cancel":  "boolean(optional)",
		"reason":  "string",
	}
}

// resolveImages fulfils the model's image_prompts sequentially and patches
// the matching drafts. Drafts that declare an images field but end up
// without one get the threaded fallback URL; every successful generation
// becomes the new fallback.
func (t *DraftTool) resolveImages(ctx context.Context, response map[string]any, userMessage string) {
	defer delete(response, "image_prompts")

	drafts := listOf(response["drafts"])
	declaresImages := false
	for _, d := range drafts {
		if m, ok := d.(map[string]any); ok {
			if _, ok := m["images"]; ok {
				declaresImages = true
				break
			}
		}
	}
	if !declaresImages {
		return
	}

	fallback := *t.deps.FallbackImage
	for _, p := range listOf(response["image_prompts"]) {
		req, ok := p.(map[string]any)
		if !ok {
			continue
		}
		draftID, _ := req["draft_id"].(string)
		promptText, _ := req["prompt"].(string)
		if promptText == "" {
			promptText = userMessage
		}
		var refs []string
		for _, r := range listOf(req["reference_images"]) {
			if s, ok := r.(string); ok {
				refs = append(refs, s)
			}
		}

		urls := t.deps.Images.GenerateImage(ctx, promptText, refs)
		if len(urls) == 0 {
			continue
		}
		for _, d := range drafts {
			m, ok := d.(map[string]any)
			if !ok {
				continue
			}
			if m["draft_id"] == draftID {
				m["images"] = []any{urls[0]}
				fallback = urls[0]
			}
		}
	}
	for _, d := range drafts {
		m, ok := d.(map[string]any)
		if !ok {
			continue
		}
		if imgs, declared := m["images"]; declared && len(listOf(imgs)) == 0 {
			m["images"] = []any{fallback}
		}
	}
	*t.deps.FallbackImage = fallback
}

// toResponse converts raw model output into a typed assistant response.
// Drafts are canonicalized through the tool's draft type so unknown keys are
// shed and missing ones zeroed; a malformed enum anywhere is the one error.
func (t *DraftTool) toResponse(data map[string]any) (*models.AssistantResponse, error) {
	resp, err := decodeResponse(data, t.name)
	if err != nil {
		return nil, err
	}
	canonical, err := canonicalDrafts(t.variant.DraftSample(), resp.Drafts)
	if err != nil {
		return nil, err
	}
	resp.Drafts = canonical
	return resp, nil
}

// decodeResponse is the shared map-to-response conversion. Identity fields
// (role, tool name) are authoritative here, never model-supplied; turn id
// and timestamp are stamped later by the assistant loop.
func decodeResponse(data map[string]any, toolName string) (*models.AssistantResponse, error) {
	resp := &models.AssistantResponse{}
	if err := record.Decode(data, resp); err != nil {
		return nil, err
	}
	resp.Role = "assistant"
	resp.ToolName = toolName
	resp.TurnID = ""
	resp.Timestamp = 0
	return resp, nil
}

// ── Finalization (publish path) ─────────────────────────────

func (t *DraftTool) finalize(ctx context.Context, drafts []map[string]any, productID string) error {
	if len(drafts) == 0 {
		return nil
	}
	if f, ok := t.variant.(customFinalizer); ok {
		return f.Finalize(ctx, drafts)
	}

	typed, err := canonicalDrafts(t.variant.DraftSample(), drafts)
	if err != nil {
		return err
	}

	filled := t.deps.Gen.Generate(ctx, t.enrichmentPrompt(typed, productID), t.finalizedShape(), nil)

	stats, err := decodeStats(listOf(filled["stats"]))
	if err != nil {
		return err
	}
	insights, err := record.SliceAs[models.Insight](listOf(filled["insights"]))
	if err != nil {
		return err
	}
	graphs, err := record.SliceAs[models.Graph](listOf(filled["graphs"]))
	if err != nil {
		return err
	}

	entry, _ := record.Encode(models.FinalizedEntry{
		Drafts:          typed,
		Stats:           stats,
		Insights:        insights,
		Recommendations: stringsOf(filled["recommendations"]),
		Graphs:          graphs,
		CreatedAt:       time.Now().UTC().Format("2006-01-02T15:04:05.000000") + "Z",
	}).(map[string]any)

	entry = t.variant.Reshape(entry, productID)
	return t.collection.Upsert(entry)
}

func (t *DraftTool) enrichmentPrompt(drafts []map[string]any, productID string) string {
	reference := "None"
	if ref := t.collection.Reference(); ref != nil {
		reference = mustJSON(ref)
	}
	productBlock := ""
	if product := t.deps.Store.Products.FindByID(productID); product != nil {
		productBlock = "Product this content is for:\n" + mustJSON(product)
	}
	return fmt.Sprintf(`You are an expert assistant that analyzes and enhances %s content.

Your task:
- Fill in the following analytical fields for the provided drafts:
    - **stats**: Provide a list of stats for each draft (the number of stats lists must match the number of drafts).
    - **insights**, **recommendations**, and **graphs**: These are common to all drafts; if you refer to a specific draft, use its language or region to identify it.
- Fill in realistic, plausible data for all fields.
- A reference entry with filled data is attached as an example of how to fill these fields.

Drafts to analyze:
%s

Reference entry:
%s

%s`,
		t.collection.Singular, mustJSON(drafts), reference, productBlock)
}

// finalizedShape is the enrichment schema: the finalized-entry shape with
// created_at stripped and drafts retyped to this tool's draft class.
func (t *DraftTool) finalizedShape() map[string]any {
	shape := schema.Derive(models.FinalizedEntry{})
	delete(shape, "created_at")
	shape["drafts"] = []any{schema.Derive(t.variant.DraftSample())}
	return shape
}

// ── Shared helpers ──────────────────────────────────────────

// canonicalDrafts round-trips raw draft maps through the typed draft class:
// unknown keys are dropped, missing fields become typed zero values, and
// enum fields are validated.
func canonicalDrafts(sample any, raw []map[string]any) ([]map[string]any, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	sampleType := reflect.TypeOf(sample)
	out := make([]map[string]any, 0, len(raw))
	for _, d := range raw {
		ptr := reflect.New(sampleType)
		if err := record.Decode(d, ptr.Interface()); err != nil {
			return nil, err
		}
		m, ok := record.Encode(ptr.Elem().Interface()).(map[string]any)
		if !ok {
			continue
		}
		out = append(out, m)
	}
	return out, nil
}

func decodeStats(rows []any) ([][]models.Metric, error) {
	var stats [][]models.Metric
	for _, row := range rows {
		inner, ok := row.([]any)
		if !ok {
			continue
		}
		metrics, err := record.SliceAs[models.Metric](inner)
		if err != nil {
			return nil, err
		}
		stats = append(stats, metrics)
	}
	return stats, nil
}

func listOf(v any) []any {
	items, _ := v.([]any)
	return items
}

func stringsOf(v any) []string {
	var out []string
	for _, item := range listOf(v) {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func anySlice(maps []map[string]any) []any {
	out := make([]any, len(maps))
	for i, m := range maps {
		out[i] = m
	}
	return out
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func prevJSON(prev map[string]any, key string) string {
	items := prevList(prev, key)
	if items == nil {
		items = []any{}
	}
	return mustJSON(items)
}

func nonNilDrafts(drafts []map[string]any) []map[string]any {
	if drafts == nil {
		return []map[string]any{}
	}
	return drafts
}

func nonNilSelections(sels []models.ResponseSelection) []models.ResponseSelection {
	if sels == nil {
		return []models.ResponseSelection{}
	}
	return sels
}

// collectionJSON renders a whole collection for prompt context.
func collectionJSON(c *store.Collection) string {
	records := c.Records()
	if records == nil {
		records = []map[string]any{}
	}
	return mustJSON(records)
}

// firstReplacement returns the replacement_of of the first previous draft —
// the id of the record being optimized.
func firstReplacement(prev map[string]any) string {
	drafts := prevDrafts(prev)
	if len(drafts) == 0 {
		return ""
	}
	s, _ := drafts[0]["replacement_of"].(string)
	return s
}

// reshapeLocalizations is the post/ad persistence shape: the draft list
// becomes "localizations", each draft absorbing its per-draft stats row and
// shedding draft_id and replacement_of. A carried replacement_of becomes the
// record id, turning the merge into a replacement.
func reshapeLocalizations(c *store.Collection, entry map[string]any, productID, status string) map[string]any {
	draftsList := listOf(entry["drafts"])
	statsList := listOf(entry["stats"])
	replacementOf := ""

	localizations := make([]any, 0, len(draftsList))
	for i, d := range draftsList {
		m, ok := d.(map[string]any)
		if !ok {
			continue
		}
		if r, present := m["replacement_of"]; present {
			if s, ok := r.(string); ok {
				replacementOf = s
			}
			delete(m, "replacement_of")
		}
		delete(m, "draft_id")
		if i < len(statsList) {
			m["stats"] = statsList[i]
		} else {
			m["stats"] = []any{}
		}
		localizations = append(localizations, m)
	}

	entry["localizations"] = localizations
	delete(entry, "drafts")
	delete(entry, "stats")
	if replacementOf != "" {
		entry[c.IDKey()] = replacementOf
	} else {
		entry[c.IDKey()] = c.NewID()
	}
	entry["product_id"] = productID
	if status != "" {
		entry["status"] = status
	}
	return entry
}
