package config

import (
	"os"
	"strconv"
)

// Config holds all configuration for the Craftwise assistant backend.
type Config struct {
	Port      int
	Version   string
	DataDir   string
	AI        AIConfig
	Image     ImageConfig
	Telemetry TelemetryConfig

	// NativeLanguage is the user's native language; drafts in other
	// languages get a translation field filled by the model.
	NativeLanguage string
}

type AIConfig struct {
	GeminiAPIKey string
	Model        string
}

type ImageConfig struct {
	// Provider selects the image backend: "gemini" or "freepik".
	Provider      string
	Model         string
	FreepikAPIKey string
	FreepikURL    string

	// UseDummy short-circuits generation and returns FallbackURL,
	// for local development without image quota.
	UseDummy    bool
	FallbackURL string
}

type TelemetryConfig struct {
	Enabled      bool
	OTLPEndpoint string
	ServiceName  string
}

// Load reads configuration from environment variables with sensible defaults.
func Load() *Config {
	return &Config{
		Port:    envInt("CRAFTWISE_PORT", 8000),
		Version: envStr("CRAFTWISE_VERSION", "0.2.0"),
		DataDir: envStr("CRAFTWISE_DATA_DIR", "data"),
		AI: AIConfig{
			GeminiAPIKey: envStr("GEMINI_API_KEY", ""),
			Model:        envStr("GEMINI_MODEL", "gemini-2.5-flash"),
		},
		Image: ImageConfig{
			Provider:      envStr("IMAGE_PROVIDER", "gemini"),
			Model:         envStr("IMAGE_MODEL", "gemini-2.5-flash-image-preview"),
			FreepikAPIKey: envStr("FREEPIK_API_KEY", ""),
			FreepikURL:    envStr("FREEPIK_URL", "https://api.freepik.com/v1/ai/gemini-2-5-flash-image-preview"),
			UseDummy:      envBool("IMAGE_USE_DUMMY", true),
			FallbackURL:   envStr("IMAGE_FALLBACK_URL", "https://images.pexels.com/photos/16653303/pexels-photo-16653303/free-photo-of-a-woman-in-a-sari-standing-in-a-field.jpeg"),
		},
		Telemetry: TelemetryConfig{
			Enabled:      envBool("OTEL_ENABLED", false),
			OTLPEndpoint: envStr("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
			ServiceName:  envStr("OTEL_SERVICE_NAME", "craftwise-backend"),
		},
		NativeLanguage: envStr("CRAFTWISE_NATIVE_LANGUAGE", "en"),
	}
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
