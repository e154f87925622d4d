package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"

	"github.com/craftwise/craftwise/backend/pkg/models"
)

// GeminiClient implements Generator and Researcher on top of the Gemini API.
type GeminiClient struct {
	client    *genai.Client
	modelName string
}

// NewGeminiClient creates a Gemini-backed client. modelName defaults to
// gemini-2.5-flash when empty.
func NewGeminiClient(ctx context.Context, apiKey, modelName string) (*GeminiClient, error) {
	cl, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("gemini client: %w", err)
	}
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}
	return &GeminiClient{client: cl, modelName: modelName}, nil
}

// Generate sends one JSON-mode generation call. When shape is non-nil it is
// appended to the prompt as a strict-output instruction; the model's reply
// is fence-stripped and parsed. Every failure path degrades instead of
// erroring.
func (g *GeminiClient) Generate(ctx context.Context, prompt string, shape map[string]any, image *Image) map[string]any {
	fullPrompt := prompt
	if shape != nil {
		shapeJSON, err := json.MarshalIndent(shape, "", "  ")
		if err != nil {
			return Degraded(err)
		}
		fullPrompt += "\n\nReturn ONLY valid JSON strictly matching this schema. " +
			"No explanations, no extra text. No trailing commas.\n" + string(shapeJSON)
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.modelName, promptContents(fullPrompt, image), &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		log.Error().Err(err).Msg("Gemini generation failed")
		return Degraded(err)
	}

	cleaned := strings.TrimSpace(responseText(resp))
	cleaned = strings.ReplaceAll(cleaned, "```json", "")
	cleaned = strings.ReplaceAll(cleaned, "```", "")

	var out map[string]any
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		log.Error().Err(err).Str("raw", cleaned).Msg("Model output is not valid JSON")
		return Degraded(err)
	}
	return out
}

// GroundedSummary runs a Google-search-grounded call and collects the
// grounding chunks as sources. On any failure the caller gets an empty
// summary and no citations; research degrades, the turn does not fail.
func (g *GeminiClient) GroundedSummary(ctx context.Context, query string, image *Image) (string, []models.Source) {
	prompt := "As a business analyst, provide a concise summary of the market for '" + query +
		"'. Include key trends and major competitors."

	resp, err := g.client.Models.GenerateContent(ctx, g.modelName, promptContents(prompt, image), &genai.GenerateContentConfig{
		Tools: []*genai.Tool{{GoogleSearch: &genai.GoogleSearch{}}},
	})
	if err != nil {
		log.Warn().Err(err).Msg("Grounded research call failed")
		return "", nil
	}

	var sources []models.Source
	if len(resp.Candidates) > 0 && resp.Candidates[0].GroundingMetadata != nil {
		for _, chunk := range resp.Candidates[0].GroundingMetadata.GroundingChunks {
			if chunk.Web == nil || chunk.Web.URI == "" {
				continue
			}
			title := chunk.Web.Title
			if title == "" {
				title = chunk.Web.URI
			}
			sources = append(sources, models.Source{Title: title, URL: chunk.Web.URI})
		}
	}
	return strings.TrimSpace(responseText(resp)), sources
}

// promptContents builds the user content for one call: the prompt text plus
// the uploaded image, when present.
func promptContents(prompt string, image *Image) []*genai.Content {
	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	if image != nil && len(image.Data) > 0 {
		parts = append(parts, genai.NewPartFromBytes(image.Data, image.MIMEType))
	}
	return []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return ""
	}
	var b strings.Builder
	for _, p := range resp.Candidates[0].Content.Parts {
		if p != nil {
			b.WriteString(p.Text)
		}
	}
	return b.String()
}
