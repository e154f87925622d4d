package tools

import "github.com/craftwise/craftwise/backend/pkg/models"

// NewProductTool builds the product-listing draft tool. Unlike posts and
// ads, a product record is flat: the first (and only) draft is merged into
// the entry instead of becoming a localizations list.
func NewProductTool(deps *Deps) *DraftTool {
	return &DraftTool{
		name:        "handle_product_helper",
		description: "Use to create, update, or optimize a product listing, its price, or description.",
		collection:  deps.Store.Products,
		deps:        deps,
		variant:     &productVariant{deps: deps},
	}
}

type productVariant struct {
	deps *Deps
}

func (v *productVariant) DraftSample() any { return models.ProductDraft{} }

func (v *productVariant) PromptFor(state TaskState) string {
	switch state {
	case StateFirstTurn:
		return `You are an expert assistant for product listing creation and optimization.

- Analyze the user's message and context to determine if they want to create a new product listing or optimize an existing one.
- If the user wants to optimize an existing product, identify which product (if possible) and set the 'replacement_of' field to the product_id of the product being optimized. Retain any fields from the original draft that are not being changed.
- If the user wants to create a new product, automatically detect the product details from the user's message and context.
- Present your detected product or product details to the user and ask for confirmation before proceeding.
- If you are unsure, make your best guess and ask the user to confirm or correct it.
- Once confirmed, proceed with the appropriate action (creation or optimization).

Be concise, clear, and ensure all required fields are filled.
`
	case StateOptimize:
		return `You are an expert assistant for product listing optimization.
- The user wants to optimize an existing product listing.
- Set the 'replacement_of' field to the product_id of the product being optimized.
- Retain any fields from the original draft that you are not changing.
- Your output will fully replace the original product listing.
- You can also analyze product performance and suggest improvements.
Be concise, clear, and ensure all required fields are filled.
`
	default:
		return `You are an expert assistant for product listing creation.
- Create a new product listing using the details provided (see the 'product_id' field).
- Only create or optimize one product at a time. The 'drafts' list is for localizations (e.g., different languages or regions) of the same product.
- You can also analyze product performance and suggest improvements.
Be concise, clear, and ensure all required fields are filled.
`
	}
}

func (v *productVariant) ContextFor(state TaskState, turn *Turn, prev map[string]any) []ContextEntry {
	switch state {
	case StateFirstTurn:
		return []ContextEntry{
			{"All products", collectionJSON(v.deps.Store.Products)},
		}
	case StateOptimize:
		product := v.deps.Store.Products.FindByID(firstReplacement(prev))
		return []ContextEntry{
			{"Product being optimized", mustJSON(product)},
		}
	default:
		return nil
	}
}

func (v *productVariant) Reshape(entry map[string]any, _ string) map[string]any {
	products := v.deps.Store.Products
	draftsList := listOf(entry["drafts"])
	statsList := listOf(entry["stats"])

	if len(draftsList) > 0 {
		first, _ := draftsList[0].(map[string]any)
		replacementOf, _ := first["replacement_of"].(string)
		delete(first, "replacement_of")
		delete(first, "draft_id")
		for k, v := range first {
			entry[k] = v
		}
		if replacementOf != "" {
			entry[products.IDKey()] = replacementOf
		} else {
			entry[products.IDKey()] = products.NewID()
		}
	} else {
		entry[products.IDKey()] = products.NewID()
	}

	if len(statsList) > 0 {
		entry["stats"] = statsList[0]
	} else {
		entry["stats"] = []any{}
	}
	entry["status"] = "running"
	delete(entry, "drafts")
	return entry
}
