package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// DevelopmentSecret is the signing key used when SECRET_KEY is unset. It is
// refused outside development.
const DevelopmentSecret = "plateai-development-secret"

// Config holds the application configuration. It is built once at startup
// and passed by value or pointer into constructors; nothing below main reads
// the environment.
type Config struct {
	Environment        string
	ServerPort         int
	LogLevel           string
	CORSAllowedOrigins []string

	Database DatabaseConfig
	Auth     AuthConfig
	LLM      LLMConfig

	OTLPEndpoint string
}

// DatabaseConfig holds PostgreSQL connection settings
type DatabaseConfig struct {
	Host            string
	Port            int
	User            string
	Password        string
	Name            string
	SSLMode         string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
	// ConnectAttempts bounds how often startup retries the first connection
	ConnectAttempts int
}

// AuthConfig holds token signing settings
type AuthConfig struct {
	SecretKey   string
	Algorithm   string
	TokenExpiry time.Duration
}

// LLMConfig holds nutrition estimator settings. An empty APIKey disables the
// analyze endpoint.
type LLMConfig struct {
	APIKey          string
	Model           string
	Timeout         time.Duration
	BreakerFailures int
	BreakerCooldown time.Duration
}

// Load reads configuration from environment variables, after merging in a
// .env file from the working directory when one exists.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the process environment only
func FromEnv() (*Config, error) {
	port, err := getInt("SERVER_PORT", 8000)
	if err != nil {
		return nil, err
	}

	dbPort, err := getInt("DATABASE_PORT", 5432)
	if err != nil {
		return nil, err
	}

	maxOpen, err := getInt("DB_MAX_OPEN_CONNS", 25)
	if err != nil {
		return nil, err
	}

	maxIdle, err := getInt("DB_MAX_IDLE_CONNS", 5)
	if err != nil {
		return nil, err
	}

	connLifetime, err := getInt("DB_CONN_MAX_LIFETIME_MINUTES", 5)
	if err != nil {
		return nil, err
	}

	connectAttempts, err := getInt("DB_CONNECT_ATTEMPTS", 5)
	if err != nil {
		return nil, err
	}
	if connectAttempts == 0 {
		connectAttempts = 1
	}

	expiry, err := getInt("ACCESS_TOKEN_EXPIRE_MINUTES", 30)
	if err != nil {
		return nil, err
	}
	if expiry <= 0 {
		return nil, fmt.Errorf("invalid ACCESS_TOKEN_EXPIRE_MINUTES: must be positive")
	}

	llmTimeout, err := getInt("LLM_TIMEOUT_SECONDS", 30)
	if err != nil {
		return nil, err
	}

	breakerFailures, err := getInt("LLM_BREAKER_FAILURES", 5)
	if err != nil {
		return nil, err
	}

	breakerCooldown, err := getInt("LLM_BREAKER_COOLDOWN_SECONDS", 30)
	if err != nil {
		return nil, err
	}

	algorithm := strings.ToUpper(getEnv("ALGORITHM", "HS256"))
	switch algorithm {
	case "HS256", "HS384", "HS512":
	default:
		return nil, fmt.Errorf("invalid ALGORITHM %q: only HS256, HS384 and HS512 are supported", algorithm)
	}

	cfg := &Config{
		Environment:        getEnv("ENVIRONMENT", "development"),
		ServerPort:         port,
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		CORSAllowedOrigins: parseCSVEnv("CORS_ALLOWED_ORIGINS", []string{"*"}),
		Database: DatabaseConfig{
			Host:            getEnv("DATABASE_HOST", "localhost"),
			Port:            dbPort,
			User:            getEnv("DATABASE_USER", "plateai"),
			Password:        getEnv("DATABASE_PASSWORD", "dev"),
			Name:            getEnv("DATABASE_NAME", "plateai"),
			SSLMode:         getEnv("DATABASE_SSLMODE", "disable"),
			MaxOpenConns:    maxOpen,
			MaxIdleConns:    maxIdle,
			ConnMaxLifetime: time.Duration(connLifetime) * time.Minute,
			ConnectAttempts: connectAttempts,
		},
		Auth: AuthConfig{
			SecretKey:   getEnv("SECRET_KEY", DevelopmentSecret),
			Algorithm:   algorithm,
			TokenExpiry: time.Duration(expiry) * time.Minute,
		},
		LLM: LLMConfig{
			APIKey:          os.Getenv("GOOGLE_API_KEY"),
			Model:           getEnv("LLM_MODEL", "gemini-2.5-flash"),
			Timeout:         time.Duration(llmTimeout) * time.Second,
			BreakerFailures: breakerFailures,
			BreakerCooldown: time.Duration(breakerCooldown) * time.Second,
		},
		OTLPEndpoint: os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"),
	}

	if cfg.IsProduction() && cfg.Auth.SecretKey == DevelopmentSecret {
		return nil, fmt.Errorf("SECRET_KEY must be set in production")
	}

	return cfg, nil
}

// IsProduction reports whether the service runs in production mode
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

// EstimatorEnabled reports whether an LLM API key is configured
func (c *Config) EstimatorEnabled() bool {
	return c.LLM.APIKey != ""
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getInt(key string, defaultValue int) (int, error) {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue, nil
	}
	v, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	if v < 0 {
		return 0, fmt.Errorf("invalid %s: must not be negative", key)
	}
	return v, nil
}

func parseCSVEnv(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		parts := strings.Split(value, ",")
		out := make([]string, 0, len(parts))
		for _, p := range parts {
			trimmed := strings.TrimSpace(p)
			if trimmed != "" {
				out = append(out, trimmed)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
