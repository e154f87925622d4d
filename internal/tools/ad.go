package tools

import "github.com/craftwise/craftwise/backend/pkg/models"

// NewAdTool builds the paid-ad draft tool. Published ads carry a "running"
// status the dashboard surfaces.
func NewAdTool(deps *Deps) *DraftTool {
	return &DraftTool{
		name:        "handle_ad_creation",
		description: "Use to create a new paid advertisement, or to analyze, optimize, or edit an existing ad campaign.",
		collection:  deps.Store.Ads,
		deps:        deps,
		variant:     &adVariant{deps: deps},
	}
}

type adVariant struct {
	deps *Deps
}

func (v *adVariant) DraftSample() any { return models.AdDraft{} }

func (v *adVariant) PromptFor(state TaskState) string {
	switch state {
	case StateFirstTurn:
		return `You are an expert assistant for social media ad campaign creation and optimization.

- Analyze the user's message and context to determine if they want to create a new ad campaign or optimize an existing one.
- If the user wants to optimize an existing ad, identify which ad (if possible) and set the 'replacement_of' field to the ad_id of the ad being optimized. Retain any fields from the original draft that are not being changed.
- If the user wants to create a new ad, automatically detect which product the ad is for, based on their message and context.
- Present your detected product or ad to the user and ask for confirmation before proceeding.
- If you are unsure, make your best guess and ask the user to confirm or correct it.
- Once confirmed, proceed with the appropriate action (creation or optimization).
- Budget is total, always.

Be concise, clear, and ensure all required fields are filled.
`
	case StateOptimize:
		return `You are an expert assistant for social media ad campaign optimization.
- The user wants to optimize an existing ad campaign.
- Set the 'replacement_of' field to the ad_id of the ad being optimized.
- Retain any fields from the original draft that you are not changing.
- All drafts should have the same 'replacement_of' value.
- Your output will fully replace the original ad.
- You can also analyze ad performance and suggest improvements.
- Budget is total, always.
Be concise, clear, and ensure all required fields are filled.
`
	default:
		return `You are an expert assistant for social media ad campaign creation.
- Create a new ad campaign for the specified product (see the 'product_id' field).
- Only create or optimize one ad at a time. The 'drafts' list is for localizations (e.g., different languages or regions) of the same ad.
- You can also analyze ad performance and suggest improvements.
- Budget is total, always.
Be concise, clear, and ensure all required fields are filled.
`
	}
}

func (v *adVariant) ContextFor(state TaskState, turn *Turn, prev map[string]any) []ContextEntry {
	switch state {
	case StateFirstTurn:
		return []ContextEntry{
			{"All products", collectionJSON(v.deps.Store.Products)},
			{"All ads", collectionJSON(v.deps.Store.Ads)},
		}
	case StateOptimize:
		ad := v.deps.Store.Ads.FindByID(firstReplacement(prev))
		product := ""
		if ad != nil {
			id, _ := ad["product_id"].(string)
			product = mustJSON(v.deps.Store.Products.FindByID(id))
		}
		return []ContextEntry{
			{"Ad being optimized", mustJSON(ad)},
			{"Product this ad is for", product},
		}
	default:
		id := prevString(prev, "product_id")
		return []ContextEntry{
			{"Product this ad is for", mustJSON(v.deps.Store.Products.FindByID(id))},
		}
	}
}

func (v *adVariant) Reshape(entry map[string]any, productID string) map[string]any {
	return reshapeLocalizations(v.deps.Store.Ads, entry, productID, "running")
}
