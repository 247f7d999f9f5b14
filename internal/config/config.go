// Package config provides application configuration management.
// It loads configuration from environment variables with sensible defaults.
package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all configuration for the application
type Config struct {
	// Server settings
	Port string
	Env  string

	// Public base URL used to build checkout redirect URLs
	PublicBaseURL string

	// Redis settings. Empty selects the in-memory stores.
	RedisURL string

	// Billing provider (Stripe)
	StripeSecretKey      string
	StripeProPriceID     string
	StripePremiumPriceID string

	// Text generation provider
	GeminiAPIKey  string
	GeminiBaseURL string
	ModelSummary  string

	// Client reference token key (hex-encoded, 32 bytes)
	ClientRefKey string

	// CORS
	CORSOrigins []string

	// Free tier: summaries per 30-day window. 0 disables free access.
	FreeTierLimit int

	// Rate limiting
	RateLimit  int
	RateWindow time.Duration

	// Summary cache TTL
	CacheTTL time.Duration
}

// Load returns a new Config struct populated from environment variables.
// A .env file in the working directory is loaded first when present.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:                 getEnv("PORT", "3000"),
		Env:                  getEnv("ENV", "development"),
		PublicBaseURL:        getEnv("PUBLIC_BASE_URL", "http://localhost:3000"),
		RedisURL:             getEnv("REDIS_URL", ""),
		StripeSecretKey:      getEnv("STRIPE_SECRET_KEY", ""),
		StripeProPriceID:     getEnv("STRIPE_PRO_PRICE_ID", ""),
		StripePremiumPriceID: getEnv("STRIPE_PREMIUM_PRICE_ID", ""),
		GeminiAPIKey:         getEnv("GEMINI_API_KEY", ""),
		GeminiBaseURL:        getEnv("GEMINI_BASE_URL", "https://generativelanguage.googleapis.com/v1beta/openai"),
		ModelSummary:         getEnv("MODEL_SUMMARY", "gemini-2.0-flash"),
		ClientRefKey:         getEnv("CLIENT_REF_KEY", ""),
		CORSOrigins:          getEnvSlice("CORS_ORIGINS", []string{"*"}),
		FreeTierLimit:        getEnvInt("FREE_TIER_LIMIT", 0),
		RateLimit:            getEnvInt("RATE_LIMIT", 15),
		RateWindow:           getEnvDuration("RATE_WINDOW", time.Minute),
		CacheTTL:             getEnvDuration("CACHE_TTL", 24*time.Hour),
	}
}

// IsDevelopment returns true if running in development mode
func (c *Config) IsDevelopment() bool {
	return c.Env == "development"
}

// IsProduction returns true if running in production mode
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration retrieves a duration environment variable or returns a default value.
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue
	}
	return parsed
}

// getEnvSlice retrieves a comma-separated environment variable as a slice.
func getEnvSlice(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	if len(result) == 0 {
		return defaultValue
	}
	return result
}
