// Package handlers implements the HTTP handlers for the Craftwise assistant
// backend: the unified chat endpoint, the chat history endpoints, and the
// per-collection dashboard reads.
package handlers

import (
	"encoding/json"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/craftwise/craftwise/backend/internal/ai"
	"github.com/craftwise/craftwise/backend/internal/assistant"
	"github.com/craftwise/craftwise/backend/internal/record"
	"github.com/craftwise/craftwise/backend/internal/store"
	"github.com/craftwise/craftwise/backend/internal/tools"
	"github.com/craftwise/craftwise/backend/pkg/models"
)

const maxUploadBytes = 32 << 20

// Handlers holds all handler dependencies.
type Handlers struct {
	Store     *store.Store
	Assistant *assistant.Assistant
	DataDir   string

	// chatMu serializes assistant turns. The whole pipeline — store,
	// history, fallback image — assumes one turn at a time; the lock makes
	// that assumption explicit at the only entry point that mutates state.
	chatMu sync.Mutex
}

// New creates a new Handlers instance.
func New(st *store.Store, a *assistant.Assistant, dataDir string) *Handlers {
	return &Handlers{Store: st, Assistant: a, DataDir: dataDir}
}

// ── Chat ─────────────────────────────────────────────────────

// Chat is the unified assistant endpoint. The frontend posts a multipart
// form (message, selections, drafts, optional image) and receives either
// the full updated history or, for a no-op turn, the previous assistant
// response.
func (h *Handlers) Chat(w http.ResponseWriter, r *http.Request) {
	h.chatMu.Lock()
	defer h.chatMu.Unlock()

	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		respondFailure(w, http.StatusBadRequest, "Invalid multipart form", "INVALID_FORM")
		return
	}

	selections, err := parseSelections(r.FormValue("selections"))
	if err != nil {
		respondFailure(w, http.StatusBadRequest, "Invalid selections JSON format", "INVALID_JSON")
		return
	}

	var drafts []map[string]any
	if raw := r.FormValue("drafts"); raw != "" {
		if err := json.Unmarshal([]byte(raw), &drafts); err != nil {
			respondFailure(w, http.StatusBadRequest, "Invalid drafts JSON format", "INVALID_JSON")
			return
		}
	}

	image, imageURL, err := h.saveUpload(r)
	if err != nil {
		log.Error().Err(err).Msg("Upload failed")
		respondFailure(w, http.StatusInternalServerError, "Failed to store uploaded image", "UPLOAD_FAILED")
		return
	}

	turn := &tools.Turn{
		Message:    r.FormValue("message"),
		Selections: selections,
		Drafts:     drafts,
		Image:      image,
		ImageURL:   imageURL,
	}

	result, err := h.Assistant.ProcessTurn(r.Context(), turn)
	if err != nil {
		log.Error().Err(err).Msg("Turn failed")
		respondFailure(w, http.StatusInternalServerError, err.Error(), "TURN_FAILED")
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// parseSelections decodes the selections form field. The frontend sends
// "[{}]" when nothing is selected; lenient decoding turns that into a
// single zero selection, which the summarizer then ignores.
func parseSelections(raw string) ([]models.ResponseSelection, error) {
	if raw == "" {
		raw = "[{}]"
	}
	var items []any
	if err := json.Unmarshal([]byte(raw), &items); err != nil {
		return nil, err
	}
	return record.SliceAs[models.ResponseSelection](items)
}

// saveUpload stores an uploaded image under the data dir with a fresh
// uuid name and returns it as bytes plus its static URL.
func (h *Handlers) saveUpload(r *http.Request) (*ai.Image, string, error) {
	file, header, err := r.FormFile("image")
	if err != nil {
		if err == http.ErrMissingFile {
			return nil, "", nil
		}
		return nil, "", err
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		return nil, "", err
	}

	name := uuid.New().String() + filepath.Ext(header.Filename)
	if err := os.WriteFile(filepath.Join(h.DataDir, "uploads", name), data, 0o644); err != nil {
		return nil, "", err
	}

	image := &ai.Image{MIMEType: header.Header.Get("Content-Type"), Data: data}
	return image, "/static/uploads/" + name, nil
}

// ── History ──────────────────────────────────────────────────

func (h *Handlers) GetHistory(w http.ResponseWriter, r *http.Request) {
	history := h.Store.History()
	if history == nil {
		history = []map[string]any{}
	}
	respondSuccess(w, history, "Success")
}

func (h *Handlers) ClearHistory(w http.ResponseWriter, r *http.Request) {
	h.chatMu.Lock()
	defer h.chatMu.Unlock()

	if err := h.Store.ClearHistory(); err != nil {
		respondFailure(w, http.StatusInternalServerError, "Failed to clear chat history", "INTERNAL_ERROR")
		return
	}
	respondSuccess(w, map[string]any{}, "Chat history cleared successfully")
}

// ── Dashboards ───────────────────────────────────────────────

// Dashboard returns a read handler for one collection.
func (h *Handlers) Dashboard(name string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c := h.Store.ByName(name)
		if c == nil {
			respondFailure(w, http.StatusNotFound, "Unknown collection", "NOT_FOUND")
			return
		}
		records := c.Records()
		if records == nil {
			records = []map[string]any{}
		}
		respondSuccess(w, records, "Success")
	}
}

// ── Response helpers ─────────────────────────────────────────

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondSuccess(w http.ResponseWriter, data any, message string) {
	respondJSON(w, http.StatusOK, map[string]any{
		"success": true,
		"message": message,
		"data":    data,
	})
}

func respondFailure(w http.ResponseWriter, status int, message, code string) {
	respondJSON(w, status, map[string]any{
		"success":    false,
		"error_code": code,
		"message":    message,
	})
}
