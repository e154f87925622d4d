// Package models defines the domain types shared across the Craftwise
// assistant backend: drafts, assistant turns, selection prompts, and the
// analytics shapes the model is asked to fill.
package models

// SelectionsHeading is the fixed heading the assistant uses when it returns
// clarification selections. The frontend renders it verbatim, so it must not
// vary between tools.
const SelectionsHeading = "Can you please clarify these for me before we proceed?"

// ── Enums ────────────────────────────────────────────────────

// SelectionType controls how the user answers a selection prompt.
type SelectionType string

const (
	SelectionSingle SelectionType = "single"
	SelectionMulti  SelectionType = "multi"
	SelectionNone   SelectionType = "none"
)

// XAxisType describes the x axis of a chart series.
type XAxisType string

const (
	XAxisDatetime XAxisType = "datetime"
	XAxisString   XAxisType = "string"
	XAxisInteger  XAxisType = "int"
	XAxisFloat    XAxisType = "float"
)

// ── Selections ───────────────────────────────────────────────

// Option is one selectable answer in a selection prompt.
type Option struct {
	Label string `json:"label"`
	ID    string `json:"id"`
}

// SelectionPrompt is a clarification question the assistant asks before it
// can finalize an artifact.
type SelectionPrompt struct {
	PromptID      string        `json:"prompt_id"`
	Prompt        string        `json:"prompt"`
	Options       []Option      `json:"options" ai:"optional"`
	SelectionType SelectionType `json:"selection_type" ai:"optional"`
}

// ResponseSelection is the user's answer to a SelectionPrompt.
type ResponseSelection struct {
	PromptID          string        `json:"prompt_id"`
	SelectedOptionIDs []string      `json:"selected_option_ids" ai:"optional"`
	SelectionType     SelectionType `json:"selection_type" ai:"optional"`
}

// ── Analytics shapes ─────────────────────────────────────────

// Metric is a single named stat, e.g. {name: "reach", value: 1200, unit: ""}.
type Metric struct {
	Name  string  `json:"name"`
	Value float64 `json:"value"`
	Unit  string  `json:"unit" ai:"optional"`
}

// Insight is a piece of analysis text with an optional supporting metric.
type Insight struct {
	Text   string  `json:"text"`
	Metric *Metric `json:"metric" ai:"optional"`
}

// GraphData is one point of a chart series.
type GraphData struct {
	X      string  `json:"x"`
	Y      float64 `json:"y"`
	Series string  `json:"series" ai:"optional"`
}

// Graph is chart metadata plus its data points. Type is bar, line or pie.
type Graph struct {
	Title string      `json:"title"`
	Type  string      `json:"type"`
	XType XAxisType   `json:"x_type"`
	Data  []GraphData `json:"data"`
}

// Source is a citation attached to research output.
type Source struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// ── Drafts ───────────────────────────────────────────────────

// PostDraft is one localization of a social media post.
type PostDraft struct {
	DraftID       string   `json:"draft_id"`
	Language      string   `json:"language"`
	Translation   string   `json:"translation" ai:"optional"`
	Images        []string `json:"images"`
	Hashtags      []string `json:"hashtags"`
	ReplacementOf string   `json:"replacement_of" ai:"optional"`
	Caption       string   `json:"caption"`
	Platforms     []string `json:"platforms"`
	Region        string   `json:"region"`
}

// AdDraft is one localization of a paid ad campaign.
type AdDraft struct {
	DraftID       string   `json:"draft_id"`
	Language      string   `json:"language"`
	Translation   string   `json:"translation" ai:"optional"`
	Images        []string `json:"images"`
	Hashtags      []string `json:"hashtags"`
	Budget        float64  `json:"budget"`
	Platforms     []string `json:"platforms"`
	ReplacementOf string   `json:"replacement_of" ai:"optional"`
	Headline      string   `json:"headline"`
	Region        string   `json:"region"`
	DurationDays  int      `json:"duration_days"`
}

// ProductDraft is a product listing draft.
type ProductDraft struct {
	DraftID       string   `json:"draft_id"`
	Language      string   `json:"language"`
	Translation   string   `json:"translation" ai:"optional"`
	Images        []string `json:"images"`
	Description   string   `json:"description"`
	Hashtags      []string `json:"hashtags"`
	ReplacementOf string   `json:"replacement_of" ai:"optional"`
	Name          string   `json:"name"`
	Price         float64  `json:"price"`
	Category      string   `json:"category"`
}

// ChatDraft is a suggested reply for an existing customer chat thread.
type ChatDraft struct {
	DraftID     string `json:"draft_id"`
	Language    string `json:"language"`
	Translation string `json:"translation" ai:"optional"`
	ChatID      string `json:"chat_id"`
	Message     string `json:"message"`
}

// ImagePrompt is the model's request for an image to be generated for a draft.
type ImagePrompt struct {
	DraftID         string   `json:"draft_id"`
	Prompt          string   `json:"prompt"`
	ReferenceImages []string `json:"reference_images"`
}

// ── Turns ────────────────────────────────────────────────────

// AssistantResponse is the complete shape of one assistant turn.
//
// Drafts stay as raw maps here: their concrete shape depends on which tool
// produced the turn (ToolName records that, so the next turn can re-infer
// state). Tools decode them through internal/record when they need typed
// access.
type AssistantResponse struct {
	Role             string            `json:"role"`
	TurnID           string            `json:"turn_id"`
	ToolName         string            `json:"tool_name"`
	AssistantMessage string            `json:"assistant_message"`
	Timestamp        int64             `json:"timestamp"`
	Drafts           []map[string]any  `json:"drafts" ai:"optional"`
	Insights         []Insight         `json:"insights" ai:"optional"`
	Charts           []Graph           `json:"charts" ai:"optional"`
	Sources          []Source          `json:"sources" ai:"optional"`
	EditingEnabled   bool              `json:"editing_enabled" ai:"optional"`
	Selections       []SelectionPrompt `json:"selections" ai:"optional"`
	Stats            []Metric          `json:"stats" ai:"optional"`
	SelectionsText   string            `json:"selections_text" ai:"optional"`
	ProductID        string            `json:"product_id" ai:"optional"`
}

// UserTurn is the user side of one conversation turn, as the HTTP layer
// hands it to the assistant and as it is appended to the history file.
type UserTurn struct {
	Role       string              `json:"role"`
	Content    string              `json:"content"`
	TurnID     string              `json:"turn_id"`
	Timestamp  int64               `json:"timestamp"`
	Message    string              `json:"message"`
	ImageURL   string              `json:"image_url"`
	Selections []ResponseSelection `json:"selections"`
	Drafts     []map[string]any    `json:"drafts"`
}

// FinalizedEntry is the transient, analytics-enriched bundle built from
// confirmed drafts on publish. It is reshaped per tool before it is merged
// into the persistent collection; it is never stored in this form.
type FinalizedEntry struct {
	Drafts          []map[string]any `json:"drafts"`
	Stats           [][]Metric       `json:"stats" ai:"optional"`
	Insights        []Insight        `json:"insights" ai:"optional"`
	Recommendations []string         `json:"recommendations" ai:"optional"`
	Graphs          []Graph          `json:"graphs" ai:"optional"`
	CreatedAt       string           `json:"created_at" ai:"optional"`
}
