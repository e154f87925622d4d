package tools

// Registry holds the assistant's tool set. Lookup by an unknown name falls
// back to general conversation, so a hallucinated tool name from the router
// degrades to a chat reply instead of an error.
type Registry struct {
	order    []Tool
	byName   map[string]Tool
	fallback Tool
}

// NewRegistry wires the full tool set against one shared dependency bundle.
func NewRegistry(deps *Deps) *Registry {
	conversation := NewConversationTool(deps)
	all := []Tool{
		NewPostTool(deps),
		NewAdTool(deps),
		NewChatTool(deps),
		NewProductTool(deps),
		NewResearchTool(deps),
		conversation,
	}

	byName := make(map[string]Tool, len(all))
	for _, t := range all {
		byName[t.Name()] = t
	}
	return &Registry{order: all, byName: byName, fallback: conversation}
}

// Get returns the tool for name, or the conversation fallback.
func (r *Registry) Get(name string) Tool {
	if t, ok := r.byName[name]; ok {
		return t
	}
	return r.fallback
}

// Definitions lists name/description pairs for the routing prompt, in
// registration order.
func (r *Registry) Definitions() []map[string]string {
	defs := make([]map[string]string, 0, len(r.order))
	for _, t := range r.order {
		defs = append(defs, map[string]string{
			"name":        t.Name(),
			"description": t.Description(),
		})
	}
	return defs
}
