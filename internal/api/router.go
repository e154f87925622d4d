package api

import (
	"encoding/json"
	"net/http"

	"github.com/craftwise/craftwise/backend/internal/api/handlers"
	"github.com/craftwise/craftwise/backend/internal/api/middleware"
	"github.com/craftwise/craftwise/backend/internal/config"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates the HTTP router with all API routes.
func NewRouter(cfg *config.Config, h *handlers.Handlers) http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(chimw.Compress(5))
	r.Use(middleware.Logger)
	r.Use(middleware.Telemetry)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Health & info
	r.Get("/health", healthHandler)
	r.Get("/version", versionHandler(cfg))

	// Assistant
	r.Route("/assistant", func(r chi.Router) {
		r.Post("/chat", h.Chat)
		r.Get("/history", h.GetHistory)
		r.Delete("/history", h.ClearHistory)
	})

	// Dashboards
	r.Route("/dashboard", func(r chi.Router) {
		r.Get("/products", h.Dashboard("products"))
		r.Get("/ads", h.Dashboard("ads"))
		r.Get("/posts", h.Dashboard("posts"))
		r.Get("/chats", h.Dashboard("chats"))
	})

	// Uploaded and generated images
	r.Handle("/static/*", http.StripPrefix("/static/", http.FileServer(http.Dir(cfg.DataDir))))

	return r
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]string{
		"status":  "healthy",
		"service": "craftwise-backend",
	})
}

func versionHandler(cfg *config.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{
			"version": cfg.Version,
			"service": "craftwise-backend",
		})
	}
}
