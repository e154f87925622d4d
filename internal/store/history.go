package store

import (
	"encoding/json"
	"fmt"
	"os"
)

// History loads the turn history file: a flat array alternating user and
// assistant turn objects. Missing or unparsable files yield an empty history.
func (s *Store) History() []map[string]any {
	data, err := os.ReadFile(s.historyPath)
	if err != nil {
		return nil
	}
	var history []map[string]any
	if err := json.Unmarshal(data, &history); err != nil {
		return nil
	}
	return history
}

// LastTurn returns the final history entry — the previous assistant
// response. All multi-turn memory lives inside that one entry; deeper
// history is display-only.
func (s *Store) LastTurn() map[string]any {
	history := s.History()
	if len(history) < 2 {
		return nil
	}
	return history[len(history)-1]
}

// SaveHistory rewrites the full turn history file.
func (s *Store) SaveHistory(history []map[string]any) error {
	if history == nil {
		history = []map[string]any{}
	}
	data, err := json.MarshalIndent(history, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal history: %w", err)
	}
	if err := os.WriteFile(s.historyPath, data, 0o644); err != nil {
		return fmt.Errorf("write history: %w", err)
	}
	return nil
}

// ClearHistory resets the turn history to an empty array.
func (s *Store) ClearHistory() error {
	return s.SaveHistory(nil)
}
