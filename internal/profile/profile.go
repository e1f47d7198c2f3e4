package profile

import (
	"log/slog"
	"os"
	"strconv"

	"github.com/pkg/errors"
)

// Profile is configuration to start the main server.
type Profile struct {
	// Model classifier configuration (OpenAI-compatible protocol)
	ModelProvider string // Provider identifier: openai, deepseek, siliconflow
	ModelAPIKey   string // API key; empty disables the model classifier
	ModelBaseURL  string // Base URL (optional, has default per provider)
	ModelName     string // Model name: gpt-4o-mini, deepseek-chat, etc.
	ModelTimeout  int    // Request timeout in seconds (default: 5)

	// Cache backend configuration
	RedisAddr     string // host:port; empty keeps the in-memory cache
	RedisPassword string
	RedisDB       int

	// Geo gazetteer configuration
	GeoDBPath string // sqlite database path; empty uses the static tables

	// Server configuration
	Mode    string // prod, dev, demo
	Addr    string
	Port    int
	Version string
}

// Provider default configurations for the model classifier.
var modelProviderDefaults = map[string]struct {
	BaseURL string
	Model   string
}{
	"openai": {
		BaseURL: "https://api.openai.com/v1",
		Model:   "gpt-4o-mini",
	},
	"deepseek": {
		BaseURL: "https://api.deepseek.com",
		Model:   "deepseek-chat",
	},
	"siliconflow": {
		BaseURL: "https://api.siliconflow.cn/v1",
		Model:   "Qwen/Qwen2.5-7B-Instruct",
	},
}

func (p *Profile) IsDev() bool {
	return p.Mode != "prod"
}

// IsModelEnabled returns true if the model classifier has an API key.
func (p *Profile) IsModelEnabled() bool {
	return p.ModelAPIKey != ""
}

// getEnvOrDefault returns environment variable value or default value.
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvOrDefaultInt returns environment variable value as int or default value.
func getEnvOrDefaultInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// FromEnv loads configuration from environment variables.
func (p *Profile) FromEnv() {
	p.ModelProvider = getEnvOrDefault("CITYPULSE_MODEL_PROVIDER", "openai")
	p.ModelAPIKey = getEnvOrDefault("CITYPULSE_MODEL_API_KEY", "")
	p.ModelBaseURL = getEnvOrDefault("CITYPULSE_MODEL_BASE_URL", "")
	p.ModelName = getEnvOrDefault("CITYPULSE_MODEL_NAME", "")
	p.ModelTimeout = getEnvOrDefaultInt("CITYPULSE_MODEL_TIMEOUT_SECONDS", 5)

	if p.ModelProvider != "" {
		if _, ok := modelProviderDefaults[p.ModelProvider]; !ok {
			slog.Warn("unknown model provider, using default: openai", "provider", p.ModelProvider)
			p.ModelProvider = "openai"
		}
	}
	if defaults, ok := modelProviderDefaults[p.ModelProvider]; ok {
		if p.ModelBaseURL == "" {
			p.ModelBaseURL = defaults.BaseURL
		}
		if p.ModelName == "" {
			p.ModelName = defaults.Model
		}
	}

	p.RedisAddr = getEnvOrDefault("CITYPULSE_REDIS_ADDR", "")
	p.RedisPassword = getEnvOrDefault("CITYPULSE_REDIS_PASSWORD", "")
	p.RedisDB = getEnvOrDefaultInt("CITYPULSE_REDIS_DB", 0)

	p.GeoDBPath = getEnvOrDefault("CITYPULSE_GEO_DB", "")
}

// Validate normalizes the profile and rejects unusable combinations.
func (p *Profile) Validate() error {
	if p.Mode != "demo" && p.Mode != "dev" && p.Mode != "prod" {
		p.Mode = "demo"
	}
	if p.Port < 0 || p.Port > 65535 {
		return errors.Errorf("invalid port %d", p.Port)
	}
	if p.ModelTimeout <= 0 {
		p.ModelTimeout = 5
	}
	if p.IsModelEnabled() && p.ModelBaseURL == "" {
		return errors.New("model classifier enabled but no base URL resolved")
	}
	return nil
}
