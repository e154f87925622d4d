package assistant

import (
	"encoding/json"
	"reflect"
	"strings"

	"github.com/craftwise/craftwise/backend/internal/tools"
)

// Summarize builds the human-readable record of the user's turn that goes
// into the history as the turn's content. Answered selections are resolved
// to their prompt and option labels via the previous assistant response;
// draft edits are noted once. An empty summary means the turn carried
// nothing worth recording.
func Summarize(turn *tools.Turn, prev map[string]any) string {
	var actions []string

	prompts := selectionPrompts(prev)
	for _, sel := range turn.Selections {
		if sel.PromptID == "" || len(sel.SelectedOptionIDs) == 0 {
			continue
		}

		promptLabel := sel.PromptID
		var labels []string
		if p, ok := prompts[sel.PromptID]; ok {
			if text, _ := p["prompt"].(string); text != "" {
				promptLabel = text
			}
			options := optionLabels(p)
			for _, id := range sel.SelectedOptionIDs {
				if label, ok := options[id]; ok {
					labels = append(labels, label)
				} else {
					labels = append(labels, id)
				}
			}
		} else {
			labels = sel.SelectedOptionIDs
		}

		if sel.SelectionType == "multi" {
			actions = append(actions, "Answered: '"+promptLabel+"' with options: "+strings.Join(labels, ", "))
		} else {
			first := ""
			if len(labels) > 0 {
				first = labels[0]
			}
			actions = append(actions, "Answered: '"+promptLabel+"' with: "+first)
		}
	}

	if draftsEdited(turn, prev) {
		actions = append(actions, "edited draft")
	}

	if len(actions) == 0 {
		return turn.Message
	}
	var b strings.Builder
	if turn.Message != "" {
		b.WriteString(turn.Message)
		b.WriteString("\n\n")
	}
	b.WriteString("**Actions:**\n- ")
	b.WriteString(strings.Join(actions, "\n- "))
	return b.String()
}

// draftsEdited reports whether any user-submitted draft differs from the
// assistant's version of the same draft_id.
func draftsEdited(turn *tools.Turn, prev map[string]any) bool {
	if len(turn.Drafts) == 0 || prev == nil {
		return false
	}
	prevByID := map[string]map[string]any{}
	if items, ok := prev["drafts"].([]any); ok {
		for _, item := range items {
			if m, ok := item.(map[string]any); ok {
				if id, _ := m["draft_id"].(string); id != "" {
					prevByID[id] = m
				}
			}
		}
	}
	if len(prevByID) == 0 {
		return false
	}
	for _, d := range turn.Drafts {
		id, _ := d["draft_id"].(string)
		if !reflect.DeepEqual(d, prevByID[id]) {
			return true
		}
	}
	return false
}

func selectionPrompts(prev map[string]any) map[string]map[string]any {
	out := map[string]map[string]any{}
	if prev == nil {
		return out
	}
	items, _ := prev["selections"].([]any)
	for _, item := range items {
		if m, ok := item.(map[string]any); ok {
			if id, _ := m["prompt_id"].(string); id != "" {
				out[id] = m
			}
		}
	}
	return out
}

func optionLabels(prompt map[string]any) map[string]string {
	out := map[string]string{}
	items, _ := prompt["options"].([]any)
	for _, item := range items {
		m, ok := item.(map[string]any)
		if !ok {
			continue
		}
		id, _ := m["id"].(string)
		label, _ := m["label"].(string)
		if id != "" {
			out[id] = label
		}
	}
	return out
}

func stringAt(m map[string]any, key string) string {
	if m == nil {
		return ""
	}
	s, _ := m[key].(string)
	return s
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "null"
	}
	return string(data)
}
