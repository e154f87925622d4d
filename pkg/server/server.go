// Package server is the public entry point for assembling the Craftwise
// assistant backend: configuration, telemetry, the JSON-file store, the
// Gemini clients, and the HTTP router.
//
// Usage:
//
//	srv, err := server.New(ctx)
//	http.ListenAndServe(fmt.Sprintf(":%d", srv.Port), srv.Handler)
package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/craftwise/craftwise/backend/internal/ai"
	"github.com/craftwise/craftwise/backend/internal/api"
	"github.com/craftwise/craftwise/backend/internal/api/handlers"
	"github.com/craftwise/craftwise/backend/internal/assistant"
	"github.com/craftwise/craftwise/backend/internal/config"
	"github.com/craftwise/craftwise/backend/internal/store"
	"github.com/craftwise/craftwise/backend/internal/telemetry"
)

// Server holds the initialized Craftwise backend.
type Server struct {
	// Handler is the HTTP handler with all routes and middleware.
	Handler http.Handler

	// Store is the JSON-file data store.
	Store *store.Store

	// Port is the port the server should listen on.
	Port int

	// ShutdownFunc should be called on graceful shutdown: it flushes
	// telemetry.
	ShutdownFunc func(context.Context) error
}

// New initializes all components from environment configuration.
func New(ctx context.Context) (*Server, error) {
	return NewWithConfig(ctx, config.Load())
}

// NewWithConfig initializes the backend with an explicit configuration.
func NewWithConfig(ctx context.Context, cfg *config.Config) (*Server, error) {
	flushTraces, err := telemetry.Init(cfg.Telemetry, cfg.Version)
	if err != nil {
		return nil, fmt.Errorf("init telemetry: %w", err)
	}

	st, err := store.Open(cfg.DataDir)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	gemini, err := ai.NewGeminiClient(ctx, cfg.AI.GeminiAPIKey, cfg.AI.Model)
	if err != nil {
		return nil, fmt.Errorf("init gemini: %w", err)
	}

	images := newImageClient(cfg, gemini)
	a := assistant.New(st, gemini, gemini, images, cfg.NativeLanguage, cfg.Image.FallbackURL)

	h := handlers.New(st, a, cfg.DataDir)
	router := api.NewRouter(cfg, h)

	return &Server{
		Handler:      router,
		Store:        st,
		Port:         cfg.Port,
		ShutdownFunc: flushTraces,
	}, nil
}

// newImageClient picks the image backend. Dummy mode (and a missing Freepik
// key) short-circuits to the fixed fallback URL so local development never
// burns image quota.
func newImageClient(cfg *config.Config, gemini *ai.GeminiClient) ai.ImageGenerator {
	if cfg.Image.UseDummy {
		log.Info().Msg("Image generation in dummy mode")
		return &ai.DummyImageClient{URL: cfg.Image.FallbackURL}
	}
	switch cfg.Image.Provider {
	case "freepik":
		if cfg.Image.FreepikAPIKey == "" {
			log.Warn().Msg("FREEPIK_API_KEY not set, falling back to dummy images")
			return &ai.DummyImageClient{URL: cfg.Image.FallbackURL}
		}
		return ai.NewFreepikImageClient(cfg.Image.FreepikAPIKey, cfg.Image.FreepikURL, cfg.DataDir)
	default:
		return ai.NewGeminiImageClient(gemini, cfg.Image.Model, cfg.DataDir)
	}
}
