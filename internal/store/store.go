// Package store holds the persistent collections (products, ads, posts,
// chats) behind the Craftwise assistant. Each collection is one JSON array
// file, loaded entirely into memory at startup and rewritten in full on
// every mutation. There is no locking here: the assistant processes one
// turn at a time (the chat handler serializes requests), so the in-memory
// slices are never touched concurrently.
package store

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Collection is one ordered, file-backed list of records. Records are kept
// as raw maps; shape consistency is maintained by normalizing every new
// record against the collection's reference record on merge.
type Collection struct {
	Name     string // plural, also the file stem: "posts" → posts.json
	Singular string // identifier prefix: "post" → post_id
	path     string
	records  []map[string]any
}

// Store bundles the four collections plus the conversation history file.
type Store struct {
	Products *Collection
	Ads      *Collection
	Posts    *Collection
	Chats    *Collection

	historyPath string
}

// Open loads all collections from dataDir. A missing or unreadable file is
// logged and treated as an empty collection; startup never fails on bad data.
func Open(dataDir string) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(dataDir, "uploads"), 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	s := &Store{
		Products:    openCollection(dataDir, "products"),
		Ads:         openCollection(dataDir, "ads"),
		Posts:       openCollection(dataDir, "posts"),
		Chats:       openCollection(dataDir, "chats"),
		historyPath: filepath.Join(dataDir, "chat_history.json"),
	}

	log.Info().
		Int("products", len(s.Products.records)).
		Int("ads", len(s.Ads.records)).
		Int("posts", len(s.Posts.records)).
		Int("chats", len(s.Chats.records)).
		Str("dir", dataDir).
		Msg("Collections loaded")

	return s, nil
}

func openCollection(dataDir, name string) *Collection {
	c := &Collection{
		Name:     name,
		Singular: strings.TrimSuffix(name, "s"),
		path:     filepath.Join(dataDir, name+".json"),
	}
	data, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Warn().Err(err).Str("collection", name).Msg("Cannot read collection file, starting empty")
		}
		return c
	}
	if err := json.Unmarshal(data, &c.records); err != nil {
		log.Warn().Err(err).Str("collection", name).Msg("Cannot parse collection file, starting empty")
		c.records = nil
	}
	return c
}

// IDKey is the record identifier field, e.g. "post_id".
func (c *Collection) IDKey() string {
	return c.Singular + "_id"
}

// NewID generates a fresh record identifier.
func (c *Collection) NewID() string {
	return c.Singular + "_" + uuid.New().String()
}

// Records returns the live record slice. Callers that mutate records in
// place (the chat finalizer appends conversation turns) must follow up
// with Save.
func (c *Collection) Records() []map[string]any {
	return c.records
}

// Len returns the number of records.
func (c *Collection) Len() int {
	return len(c.records)
}

// Reference returns the collection's reference record — the first entry —
// used for schema normalization and as the AI's few-shot example. Nil when
// the collection is empty.
func (c *Collection) Reference() map[string]any {
	if len(c.records) == 0 {
		return nil
	}
	return c.records[0]
}

// FindByID returns the record whose identifier field matches id, or nil.
func (c *Collection) FindByID(id string) map[string]any {
	if id == "" {
		return nil
	}
	for _, rec := range c.records {
		if rec[c.IDKey()] == id {
			return rec
		}
	}
	return nil
}

// Upsert merges a record into the collection and rewrites the file.
//
// The record gets a generated identifier only when the identifier field is
// present but empty; an existing identifier (carried over from
// replacement_of) is kept, turning the merge into an update-in-place. The
// record is normalized against the reference record first, so every entry
// in the file shares one shape even though model output is free-form.
func (c *Collection) Upsert(rec map[string]any) error {
	idKey := c.IDKey()
	if v, ok := rec[idKey]; ok && (v == nil || v == "") {
		rec[idKey] = c.NewID()
	}
	if ref := c.Reference(); ref != nil {
		rec = Normalize(rec, ref)
	}

	id, _ := rec[idKey].(string)
	replaced := false
	if id != "" {
		for i, existing := range c.records {
			if existing[idKey] == id {
				c.records[i] = rec
				replaced = true
				break
			}
		}
	}
	if !replaced {
		c.records = append(c.records, rec)
	}

	log.Info().Str("collection", c.Name).Str("id", id).Bool("replaced", replaced).Msg("Record merged")
	return c.Save()
}

// Save rewrites the whole collection file, pretty-printed.
func (c *Collection) Save() error {
	if c.records == nil {
		c.records = []map[string]any{}
	}
	data, err := json.MarshalIndent(c.records, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", c.Name, err)
	}
	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", c.Name, err)
	}
	return nil
}

// Normalize reshapes candidate against the reference record: keys absent
// from the reference are dropped, keys present in the reference but missing
// from the candidate are filled with a type-appropriate empty default.
// Pure — neither input is mutated.
func Normalize(candidate, reference map[string]any) map[string]any {
	out := make(map[string]any, len(reference))
	for key, val := range candidate {
		if _, ok := reference[key]; ok {
			out[key] = val
		}
	}
	for key, refVal := range reference {
		if _, ok := out[key]; ok {
			continue
		}
		switch refVal.(type) {
		case string:
			out[key] = ""
		case []any:
			out[key] = []any{}
		case map[string]any:
			out[key] = map[string]any{}
		default:
			out[key] = nil
		}
	}
	return out
}

// ByName returns the collection with the given plural name, or nil.
func (s *Store) ByName(name string) *Collection {
	switch name {
	case "products":
		return s.Products
	case "ads":
		return s.Ads
	case "posts":
		return s.Posts
	case "chats":
		return s.Chats
	}
	return nil
}
