package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Storage backends
const (
	BackendMemory   = "memory"
	BackendPostgres = "postgres"
	BackendSQLite   = "sqlite"
)

// minSessionSecret is the minimum HS256 key length in bytes
const minSessionSecret = 32

// Config holds the service configuration
type Config struct {
	// Server
	Port               int
	CORSAllowedOrigins []string

	// Identity provider
	WorldAppID           string
	WorldAuthAction      string
	VerifyBaseURL        string
	VerifyTimeout        time.Duration
	MinVerificationLevel string

	// Storage
	StorageBackend string // memory, postgres or sqlite
	PostgresDSN    string
	SQLitePath     string

	// Sessions
	SessionSecret string
	SessionTTL    time.Duration

	// Rate limiting
	RateLimitEnabled bool
	RateLimitRPS     float64
	RateLimitBurst   int
}

// Load loads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:                 getEnvInt("PORT", 8080),
		CORSAllowedOrigins:   getEnvList("CORS_ALLOWED_ORIGINS", []string{"*"}),
		WorldAppID:           getEnv("WORLD_APP_ID", ""),
		WorldAuthAction:      getEnv("WORLD_AUTH_ACTION", "wallet-authentication"),
		VerifyBaseURL:        getEnv("VERIFY_BASE_URL", "https://developer.worldcoin.org"),
		VerifyTimeout:        getEnvDuration("VERIFY_TIMEOUT", 10*time.Second),
		MinVerificationLevel: getEnv("MIN_VERIFICATION_LEVEL", "device"),
		StorageBackend:       getEnv("STORAGE_BACKEND", BackendMemory),
		PostgresDSN:          getEnv("POSTGRES_DSN", ""),
		SQLitePath:           getEnv("SQLITE_PATH", ""),
		SessionSecret:        getEnv("SESSION_SECRET", ""),
		SessionTTL:           getEnvDuration("SESSION_TTL", 24*time.Hour),
		RateLimitEnabled:     getEnvBool("RATE_LIMIT_ENABLED", true),
		RateLimitRPS:         getEnvFloat("RATE_LIMIT_RPS", 10),
		RateLimitBurst:       getEnvInt("RATE_LIMIT_BURST", 20),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("PORT must be between 1 and 65535, got: %d", c.Port)
	}

	if c.WorldAppID == "" {
		return fmt.Errorf("WORLD_APP_ID is required")
	}
	if !strings.HasPrefix(c.WorldAppID, "app_") {
		return fmt.Errorf("WORLD_APP_ID must start with 'app_', got: %s", c.WorldAppID)
	}
	if c.WorldAuthAction == "" {
		return fmt.Errorf("WORLD_AUTH_ACTION must not be empty")
	}

	u, err := url.Parse(c.VerifyBaseURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("VERIFY_BASE_URL must be an http(s) URL, got: %s", c.VerifyBaseURL)
	}
	if c.VerifyTimeout <= 0 {
		return fmt.Errorf("VERIFY_TIMEOUT must be positive")
	}

	if c.MinVerificationLevel != "device" && c.MinVerificationLevel != "orb" {
		return fmt.Errorf("MIN_VERIFICATION_LEVEL must be 'device' or 'orb', got: %s", c.MinVerificationLevel)
	}

	switch c.StorageBackend {
	case BackendMemory:
	case BackendPostgres:
		if c.PostgresDSN == "" {
			return fmt.Errorf("POSTGRES_DSN is required when STORAGE_BACKEND is 'postgres'")
		}
	case BackendSQLite:
		if c.SQLitePath == "" {
			return fmt.Errorf("SQLITE_PATH is required when STORAGE_BACKEND is 'sqlite'")
		}
	default:
		return fmt.Errorf("STORAGE_BACKEND must be 'memory', 'postgres' or 'sqlite', got: %s", c.StorageBackend)
	}

	if len(c.SessionSecret) < minSessionSecret {
		return fmt.Errorf("SESSION_SECRET must be at least %d bytes", minSessionSecret)
	}
	if c.SessionTTL <= 0 {
		return fmt.Errorf("SESSION_TTL must be positive")
	}

	if c.RateLimitEnabled && (c.RateLimitRPS <= 0 || c.RateLimitBurst <= 0) {
		return fmt.Errorf("RATE_LIMIT_RPS and RATE_LIMIT_BURST must be positive when rate limiting is enabled")
	}

	return nil
}

// getEnv gets an environment variable with a default value
func getEnv(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// getEnvInt gets an integer environment variable with a default value
func getEnvInt(key string, defaultValue int) int {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

func getEnvFloat(key string, defaultValue float64) float64 {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.ParseFloat(valueStr, 64)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvDuration parses values like "10s" or "24h"
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	value, err := time.ParseDuration(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}

// getEnvList splits a comma-separated variable, dropping blank entries
func getEnvList(key string, defaultValue []string) []string {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	var out []string
	for _, v := range strings.Split(valueStr, ",") {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

// getEnvBool gets a boolean environment variable with a default value
func getEnvBool(key string, defaultValue bool) bool {
	valueStr := os.Getenv(key)
	if valueStr == "" {
		return defaultValue
	}
	valueStr = strings.ToLower(valueStr)
	return valueStr == "true" || valueStr == "1" || valueStr == "yes"
}
