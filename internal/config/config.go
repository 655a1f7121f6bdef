// Copyright 2026 The OpenTrusty Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	Server        ServerConfig
	Database      DatabaseConfig
	Redis         RedisConfig
	Auth          AuthConfig
	Tenancy       TenancyConfig
	LLM           LLMConfig
	Assistant     AssistantConfig
	Versioning    VersioningConfig
	Observability ObservabilityConfig
	Security      SecurityConfig
	RateLimit     RateLimitConfig
	CORS          CORSConfig
	Bootstrap     BootstrapConfig
}

// RateLimitConfig holds rate limiting configuration
type RateLimitConfig struct {
	RequestsPerSecond float64
	Burst             int
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string
	Port         string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	IdleTimeout  time.Duration
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Host            string
	Port            string
	User            string
	Password        string
	Database        string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds the optional tenant cache connection. An empty URL disables caching.
type RedisConfig struct {
	URL       string
	TenantTTL time.Duration
}

// AuthConfig holds bearer token configuration
type AuthConfig struct {
	JWTSecret string
	Issuer    string
	TokenTTL  time.Duration
}

// TenancyConfig controls how a request is mapped to a municipality
type TenancyConfig struct {
	BaseDomain string
	SlugHeader string
}

// LLMConfig holds the language model endpoint configuration
type LLMConfig struct {
	Provider string // ollama, openai
	BaseURL  string
	Model    string
	Token    string
	Timeout  time.Duration
}

// AssistantConfig tunes the citizen question pipeline
type AssistantConfig struct {
	ClassifyTemperature float64
	AnswerTemperature   float64
	MaxRowsPerCategory  int
	MaxHistoryTurns     int
	DefaultLocale       string
	LogTimeout          time.Duration
}

// VersioningConfig holds software rollout settings
type VersioningConfig struct {
	RollbackCheckTTL time.Duration
}

// ObservabilityConfig holds logging and tracing configuration
type ObservabilityConfig struct {
	LogLevel       string
	LogFormat      string
	OTELEnabled    bool
	ServiceName    string
	ServiceVersion string
	MetricsPrefix  string
}

// SecurityConfig holds security-related configuration
type SecurityConfig struct {
	Argon2Memory       uint32
	Argon2Iterations   uint32
	Argon2Parallelism  uint8
	Argon2SaltLength   uint32
	Argon2KeyLength    uint32
	LockoutMaxAttempts int
	LockoutDuration    time.Duration
}

// CORSConfig lists the browser origins allowed to call the API
type CORSConfig struct {
	AllowedOrigins []string
}

// BootstrapConfig seeds the first platform superadmin
type BootstrapConfig struct {
	AdminEmail    string
	AdminPassword string
	AdminName     string
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first when present.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		Server: ServerConfig{
			Host:         getEnv("SERVER_HOST", "0.0.0.0"),
			Port:         getEnv("SERVER_PORT", "8080"),
			ReadTimeout:  parseDuration("SERVER_READ_TIMEOUT", "15s"),
			WriteTimeout: parseDuration("SERVER_WRITE_TIMEOUT", "30s"),
			IdleTimeout:  parseDuration("SERVER_IDLE_TIMEOUT", "60s"),
		},
		Database: DatabaseConfig{
			Host:            getEnv("DB_HOST", "localhost"),
			Port:            getEnv("DB_PORT", "5432"),
			User:            getEnv("DB_USER", "transparencia"),
			Password:        getEnv("DB_PASSWORD", ""),
			Database:        getEnv("DB_NAME", "transparencia"),
			SSLMode:         getEnv("DB_SSLMODE", "disable"),
			MaxOpenConns:    parseInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    parseInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: parseDuration("DB_CONN_MAX_LIFETIME", "5m"),
		},
		Redis: RedisConfig{
			URL:       getEnv("REDIS_URL", ""),
			TenantTTL: parseDuration("REDIS_TENANT_TTL", "5m"),
		},
		Auth: AuthConfig{
			JWTSecret: getEnv("AUTH_JWT_SECRET", ""),
			Issuer:    getEnv("AUTH_ISSUER", "transparencia"),
			TokenTTL:  parseDuration("AUTH_TOKEN_TTL", "12h"),
		},
		Tenancy: TenancyConfig{
			BaseDomain: getEnv("TENANT_BASE_DOMAIN", "transparencia.cl"),
			SlugHeader: getEnv("TENANT_SLUG_HEADER", "X-Tenant-Slug"),
		},
		LLM: LLMConfig{
			Provider: getEnv("LLM_PROVIDER", "ollama"),
			BaseURL:  getEnv("LLM_BASE_URL", "http://localhost:11434"),
			Model:    getEnv("LLM_MODEL", "llama3.1"),
			Token:    getEnv("LLM_API_KEY", ""),
			Timeout:  parseDuration("LLM_TIMEOUT", "120s"),
		},
		Assistant: AssistantConfig{
			ClassifyTemperature: parseFloat("ASSISTANT_CLASSIFY_TEMPERATURE", 0.1),
			AnswerTemperature:   parseFloat("ASSISTANT_ANSWER_TEMPERATURE", 0.3),
			MaxRowsPerCategory:  parseInt("ASSISTANT_MAX_ROWS_PER_CATEGORY", 100),
			MaxHistoryTurns:     parseInt("ASSISTANT_MAX_HISTORY_TURNS", 6),
			DefaultLocale:       getEnv("ASSISTANT_DEFAULT_LOCALE", "es-CL"),
			LogTimeout:          parseDuration("ASSISTANT_LOG_TIMEOUT", "10s"),
		},
		Versioning: VersioningConfig{
			RollbackCheckTTL: parseDuration("VERSION_ROLLBACK_CHECK_TTL", "30m"),
		},
		Observability: ObservabilityConfig{
			LogLevel:       getEnv("LOG_LEVEL", "info"),
			LogFormat:      getEnv("LOG_FORMAT", "json"),
			OTELEnabled:    parseBool("OTEL_ENABLED", false),
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "transparencia"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "0.1.0"),
			MetricsPrefix:  getEnv("METRICS_PREFIX", "transparencia"),
		},
		Security: SecurityConfig{
			Argon2Memory:       uint32(parseInt("ARGON2_MEMORY", 65536)),
			Argon2Iterations:   uint32(parseInt("ARGON2_ITERATIONS", 3)),
			Argon2Parallelism:  uint8(parseInt("ARGON2_PARALLELISM", 4)),
			Argon2SaltLength:   uint32(parseInt("ARGON2_SALT_LENGTH", 16)),
			Argon2KeyLength:    uint32(parseInt("ARGON2_KEY_LENGTH", 32)),
			LockoutMaxAttempts: parseInt("SECURITY_LOCKOUT_MAX_ATTEMPTS", 5),
			LockoutDuration:    parseDuration("SECURITY_LOCKOUT_DURATION", "15m"),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: parseFloat("RATELIMIT_RPS", 10),
			Burst:             parseInt("RATELIMIT_BURST", 20),
		},
		CORS: CORSConfig{
			AllowedOrigins: parseList("CORS_ALLOWED_ORIGINS", "http://localhost:5173"),
		},
		Bootstrap: BootstrapConfig{
			AdminEmail:    getEnv("SUPERADMIN_EMAIL", ""),
			AdminPassword: getEnv("SUPERADMIN_PASSWORD", ""),
			AdminName:     getEnv("SUPERADMIN_NAME", "Superadmin"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Database.Password == "" {
		return fmt.Errorf("DB_PASSWORD is required")
	}
	if len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("AUTH_JWT_SECRET must be at least 32 characters")
	}
	switch c.LLM.Provider {
	case "ollama", "openai":
	default:
		return fmt.Errorf("LLM_PROVIDER must be ollama or openai, got %q", c.LLM.Provider)
	}
	if c.Assistant.MaxRowsPerCategory <= 0 {
		return fmt.Errorf("ASSISTANT_MAX_ROWS_PER_CATEGORY must be positive")
	}
	if c.Assistant.ClassifyTemperature < 0 || c.Assistant.ClassifyTemperature > 2 {
		return fmt.Errorf("ASSISTANT_CLASSIFY_TEMPERATURE must be between 0 and 2")
	}
	return nil
}

// Helper functions
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func parseInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func parseFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func parseBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func parseDuration(key string, defaultValue string) time.Duration {
	value := getEnv(key, defaultValue)
	d, err := time.ParseDuration(value)
	if err != nil {
		// Fallback to default
		d, _ = time.ParseDuration(defaultValue)
	}
	return d
}

func parseList(key, defaultValue string) []string {
	var out []string
	for _, item := range strings.Split(getEnv(key, defaultValue), ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
