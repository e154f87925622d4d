// Package ai wraps the generative-model collaborators behind small
// interfaces: structured text generation, grounded research, and image
// generation. The structured-generation contract is soft-failure only —
// callers always get a JSON-shaped map back, degraded with an apology and
// an "error" key when the underlying call or JSON parse fails.
package ai

import (
	"context"

	"github.com/craftwise/craftwise/backend/pkg/models"
)

// Image is an uploaded image passed through to multimodal calls.
type Image struct {
	MIMEType string
	Data     []byte
}

// Generator produces structured JSON from a prompt, optionally constrained
// by a shape template and accompanied by an image.
type Generator interface {
	// Generate never returns an error: any failure is converted into a
	// degraded payload (see Degraded) that flows to the user as-is.
	Generate(ctx context.Context, prompt string, shape map[string]any, image *Image) map[string]any
}

// Researcher runs a web-search-grounded summary call. Failures are logged
// and reported as an empty summary with no citations — the caller falls
// through to synthesis without grounding.
type Researcher interface {
	GroundedSummary(ctx context.Context, query string, image *Image) (string, []models.Source)
}

// ImageGenerator turns a prompt (plus optional reference image paths) into
// zero or one locally stored image path. An empty slice signals failure and
// is consumed by the caller's fallback-image policy.
type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string, referenceImages []string) []string
}

// Degraded builds the fixed soft-failure payload.
func Degraded(err error) map[string]any {
	return map[string]any{
		"assistant_message": "Sorry, I encountered an issue. Please try again.",
		"error":             err.Error(),
	}
}

// IsDegraded reports whether a generation result is the soft-failure shape.
func IsDegraded(result map[string]any) bool {
	_, ok := result["error"]
	return ok
}
