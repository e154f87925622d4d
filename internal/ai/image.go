package ai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// Image generation is blocking by design: prompts within a turn are
// resolved one at a time, and a slow provider job stalls the whole turn.

// DummyImageClient returns a fixed URL without calling any provider.
// Used in local development (IMAGE_USE_DUMMY) and when no API key is set.
type DummyImageClient struct {
	URL string
}

func (d *DummyImageClient) GenerateImage(context.Context, string, []string) []string {
	return []string{d.URL}
}

// ── Gemini image provider ───────────────────────────────────

// GeminiImageClient generates images with a Gemini image-preview model.
type GeminiImageClient struct {
	client    *genai.Client
	modelName string
	dataDir   string
}

// NewGeminiImageClient reuses an existing Gemini client for image calls.
func NewGeminiImageClient(g *GeminiClient, modelName, dataDir string) *GeminiImageClient {
	return &GeminiImageClient{client: g.client, modelName: modelName, dataDir: dataDir}
}

// GenerateImage makes up to 3 attempts with a fixed 2-second backoff.
// Only the first candidate's inline image is kept.
func (c *GeminiImageClient) GenerateImage(ctx context.Context, prompt string, referenceImages []string) []string {
	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	for _, ref := range referenceImages {
		part, err := loadReferenceImage(c.dataDir, ref)
		if err != nil {
			log.Warn().Err(err).Str("ref", ref).Msg("Cannot load reference image")
			continue
		}
		parts = append(parts, part)
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	var paths []string
	operation := func() error {
		resp, err := c.client.Models.GenerateContent(ctx, c.modelName, contents, &genai.GenerateContentConfig{
			ResponseModalities: []string{"TEXT", "IMAGE"},
		})
		if err != nil {
			return err
		}
		paths = nil
		if len(resp.Candidates) > 0 && resp.Candidates[0].Content != nil {
			for _, part := range resp.Candidates[0].Content.Parts {
				if part == nil || part.InlineData == nil || len(part.InlineData.Data) == 0 {
					continue
				}
				path, err := saveUpload(c.dataDir, "gemini", part.InlineData.Data)
				if err != nil {
					return err
				}
				paths = append(paths, path)
			}
		}
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(2*time.Second), 2)
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		log.Warn().Err(err).Msg("Gemini image generation failed after retries")
		return nil
	}
	return paths
}

// ── Freepik image provider ──────────────────────────────────

// FreepikImageClient drives Freepik's asynchronous image job API: start a
// task, wait 10 s, then poll up to 24 times at 5-second intervals.
type FreepikImageClient struct {
	apiKey  string
	baseURL string
	dataDir string
	client  *http.Client

	// poll timing, overridable in tests
	initialWait  time.Duration
	pollInterval time.Duration
	maxPolls     int
}

func NewFreepikImageClient(apiKey, baseURL, dataDir string) *FreepikImageClient {
	return &FreepikImageClient{
		apiKey:       apiKey,
		baseURL:      baseURL,
		dataDir:      dataDir,
		client:       &http.Client{Timeout: 30 * time.Second},
		initialWait:  10 * time.Second,
		pollInterval: 5 * time.Second,
		maxPolls:     24,
	}
}

type freepikTask struct {
	Data struct {
		TaskID    string   `json:"task_id"`
		Status    string   `json:"status"`
		Generated []string `json:"generated"`
	} `json:"data"`
	Error string `json:"error"`
}

func (c *FreepikImageClient) GenerateImage(ctx context.Context, prompt string, referenceImages []string) []string {
	payload := map[string]any{"prompt": prompt}
	if len(referenceImages) > 0 {
		var encoded []string
		for _, ref := range referenceImages {
			data, err := os.ReadFile(refPath(c.dataDir, ref))
			if err != nil {
				log.Warn().Err(err).Str("ref", ref).Msg("Cannot load reference image")
				continue
			}
			encoded = append(encoded, base64.StdEncoding.EncodeToString(data))
		}
		payload["reference_images"] = encoded
	}

	task, err := c.postJSON(ctx, c.baseURL, payload)
	if err != nil {
		log.Warn().Err(err).Msg("Freepik task start failed")
		return nil
	}
	if task.Data.TaskID == "" {
		log.Warn().Msg("Freepik API did not return a task ID")
		return nil
	}

	statusURL := c.baseURL + "/" + task.Data.TaskID
	if !sleepCtx(ctx, c.initialWait) {
		return nil
	}
	for i := 0; i < c.maxPolls; i++ {
		status, err := c.getJSON(ctx, statusURL)
		if err != nil {
			log.Warn().Err(err).Msg("Freepik poll failed")
			return nil
		}
		switch status.Data.Status {
		case "COMPLETED":
			if len(status.Data.Generated) == 0 {
				log.Warn().Msg("Freepik job completed but returned no image")
				return nil
			}
			// only the first result is kept
			path, err := c.download(ctx, status.Data.Generated[0])
			if err != nil {
				log.Warn().Err(err).Msg("Failed to download Freepik image")
				return nil
			}
			return []string{path}
		case "FAILED":
			log.Warn().Str("reason", status.Error).Msg("Freepik job failed")
			return nil
		}
		if !sleepCtx(ctx, c.pollInterval) {
			return nil
		}
	}
	log.Warn().Msg("Freepik job timed out")
	return nil
}

func (c *FreepikImageClient) postJSON(ctx context.Context, url string, payload map[string]any) (*freepikTask, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-freepik-api-key", c.apiKey)
	return c.do(req)
}

func (c *FreepikImageClient) getJSON(ctx context.Context, url string) (*freepikTask, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("x-freepik-api-key", c.apiKey)
	return c.do(req)
}

func (c *FreepikImageClient) do(req *http.Request) (*freepikTask, error) {
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("freepik: status %d: %s", resp.StatusCode, string(body))
	}
	var task freepikTask
	if err := json.NewDecoder(resp.Body).Decode(&task); err != nil {
		return nil, fmt.Errorf("freepik: decode response: %w", err)
	}
	return &task, nil
}

func (c *FreepikImageClient) download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("freepik: image download status %d", resp.StatusCode)
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}
	return saveUpload(c.dataDir, "freepik", data)
}

// ── Shared helpers ──────────────────────────────────────────

// saveUpload writes generated image bytes under dataDir/uploads and returns
// the URL path the frontend can load it from.
func saveUpload(dataDir, prefix string, data []byte) (string, error) {
	name := prefix + "_" + strings.ReplaceAll(uuid.New().String(), "-", "") + ".png"
	if err := os.WriteFile(filepath.Join(dataDir, "uploads", name), data, 0o644); err != nil {
		return "", fmt.Errorf("save generated image: %w", err)
	}
	return "/static/uploads/" + name, nil
}

// refPath maps a reference image URL path back to its file on disk.
func refPath(dataDir, ref string) string {
	if rest, ok := strings.CutPrefix(ref, "/static/"); ok {
		return filepath.Join(dataDir, rest)
	}
	return ref
}

func loadReferenceImage(dataDir, ref string) (*genai.Part, error) {
	data, err := os.ReadFile(refPath(dataDir, ref))
	if err != nil {
		return nil, err
	}
	return genai.NewPartFromBytes(data, "image/png"), nil
}

func sleepCtx(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
