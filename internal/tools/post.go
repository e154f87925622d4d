package tools

import "github.com/craftwise/craftwise/backend/pkg/models"

// NewPostTool builds the social-media-post draft tool.
func NewPostTool(deps *Deps) *DraftTool {
	return &DraftTool{
		name:        "handle_post_creation",
		description: "Use to create or edit a social media post, caption, or image.",
		collection:  deps.Store.Posts,
		deps:        deps,
		variant:     &postVariant{deps: deps},
	}
}

type postVariant struct {
	deps *Deps
}

func (v *postVariant) DraftSample() any { return models.PostDraft{} }

func (v *postVariant) PromptFor(state TaskState) string {
	switch state {
	case StateFirstTurn:
		return `You are an expert assistant for social media post creation and optimization.

- Analyze the user's message and context to determine if they want to create a new post or optimize an existing one.
- If the user wants to optimize an existing post, identify which post (if possible) and set the 'replacement_of' field to the post_id of the post being optimized. Retain any fields from the original draft that are not being changed.
- If the user wants to create a new post, automatically detect which product the post is for, based on their message and context.
- Present your detected product or post to the user and ask for confirmation before proceeding.
- If you are unsure, make your best guess and ask the user to confirm or correct it.
- Once confirmed, proceed with the appropriate action (creation or optimization).

Be concise, clear, and ensure all required fields are filled.
`
	case StateOptimize:
		return `You are an expert assistant for social media post optimization.
- The user wants to optimize an existing post.
- Set the 'replacement_of' field to the post_id of the post being optimized.
- Retain any fields from the original draft that you are not changing.
- All drafts should have the same 'replacement_of' value.
- Your output will fully replace the original post.
- You can also analyze post performance and suggest improvements.
Be concise, clear, and ensure all required fields are filled.
`
	default:
		return `You are an expert assistant for social media post creation.
- Create a new post for the specified product (see the 'product_id' field).
- Only create one post at a time. The 'drafts' list is for localizations (e.g., different languages or regions) of the same post.
- You can also analyze post performance and suggest improvements.
Be concise, clear, and ensure all required fields are filled.
`
	}
}

func (v *postVariant) ContextFor(state TaskState, turn *Turn, prev map[string]any) []ContextEntry {
	switch state {
	case StateFirstTurn:
		return []ContextEntry{
			{"All products", collectionJSON(v.deps.Store.Products)},
			{"All posts", collectionJSON(v.deps.Store.Posts)},
		}
	case StateOptimize:
		post := v.deps.Store.Posts.FindByID(firstReplacement(prev))
		product := ""
		if post != nil {
			id, _ := post["product_id"].(string)
			product = mustJSON(v.deps.Store.Products.FindByID(id))
		}
		return []ContextEntry{
			{"Post being optimized", mustJSON(post)},
			{"Product this post is for", product},
		}
	default:
		id := prevString(prev, "product_id")
		return []ContextEntry{
			{"Product this post is for", mustJSON(v.deps.Store.Products.FindByID(id))},
		}
	}
}

func (v *postVariant) Reshape(entry map[string]any, productID string) map[string]any {
	return reshapeLocalizations(v.deps.Store.Posts, entry, productID, "")
}
