// Package config centralizes environment-based configuration for the gateway.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	"github.com/NKPetkov/Secure-Market-Insights-Gateway/pkg/logging"
)

// Config aggregates all gateway settings.
type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	Provider  ProviderConfig
	Cache     CacheConfig
	RateLimit RateLimitConfig
	Redis     RedisConfig
	Logging   logging.Config
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// AuthConfig holds the bearer-token gate settings.
type AuthConfig struct {
	APIToken string
}

// ProviderConfig holds upstream provider settings.
type ProviderConfig struct {
	BaseURL           string
	APIKey            string
	Timeout           time.Duration
	MaxAttempts       int
	RequestsPerSecond float64
}

// CacheConfig holds cache settings.
type CacheConfig struct {
	TTL time.Duration
}

// RateLimitConfig holds sliding-window admission settings.
type RateLimitConfig struct {
	Requests int
	Window   time.Duration
}

// RedisConfig holds Redis connection settings.
type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

// Addr returns the host:port address for the Redis client.
func (c RedisConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Load reads configuration from the environment. A .env file in the
// working directory is loaded first when present; real environment
// variables take precedence over it.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Server: ServerConfig{
			Port:         getEnv("PORT", "8080"),
			ReadTimeout:  getEnvDuration("SERVER_READ_TIMEOUT_SECONDS", 30*time.Second),
			WriteTimeout: getEnvDuration("SERVER_WRITE_TIMEOUT_SECONDS", 30*time.Second),
		},
		Auth: AuthConfig{
			APIToken: getEnv("API_TOKEN", "dev-token-change-in-production"),
		},
		Provider: ProviderConfig{
			BaseURL:           getEnv("PROVIDER_BASE_URL", "https://pro-api.coinmarketcap.com/v2"),
			APIKey:            getEnv("PROVIDER_API_KEY", ""),
			Timeout:           getEnvDuration("PROVIDER_TIMEOUT_SECONDS", 10*time.Second),
			MaxAttempts:       getEnvInt("PROVIDER_MAX_ATTEMPTS", 3),
			RequestsPerSecond: getEnvFloat("PROVIDER_REQUESTS_PER_SECOND", 10),
		},
		Cache: CacheConfig{
			TTL: getEnvDuration("CACHE_TTL_SECONDS", 600*time.Second),
		},
		RateLimit: RateLimitConfig{
			Requests: getEnvInt("RATE_LIMIT_REQUESTS", 10),
			Window:   getEnvDuration("RATE_LIMIT_WINDOW_SECONDS", 60*time.Second),
		},
		Redis: RedisConfig{
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvInt("REDIS_DB", 0),
		},
		Logging: logging.Config{
			Level:  logging.LogLevel(getEnv("LOG_LEVEL", "info")),
			Pretty: getEnvBool("LOG_PRETTY", false),
			Output: os.Stderr,
		},
	}

	if cfg.Auth.APIToken == "" {
		return Config{}, fmt.Errorf("API_TOKEN must not be empty")
	}
	if cfg.RateLimit.Requests <= 0 || cfg.RateLimit.Window <= 0 {
		return Config{}, fmt.Errorf("rate limit requests and window must be positive")
	}
	if cfg.Provider.MaxAttempts < 1 {
		return Config{}, fmt.Errorf("PROVIDER_MAX_ATTEMPTS must be at least 1")
	}

	return cfg, nil
}

func getEnv(key, fallback string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvFloat(key string, fallback float64) float64 {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseFloat(value, 64); err == nil {
			return parsed
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return fallback
}

// getEnvDuration reads a whole-seconds env var into a time.Duration.
func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil && parsed > 0 {
			return time.Duration(parsed) * time.Second
		}
	}
	return fallback
}
