// Package config loads application configuration from STELAE_* environment
// variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/stelae/stelae/pkg/cache"
	"github.com/stelae/stelae/pkg/observability"
	"github.com/stelae/stelae/pkg/store/postgres"
)

// Config holds all application configuration.
type Config struct {
	Server        ServerConfig
	Database      postgres.ConnectionConfig
	Cache         CacheConfig
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// CacheConfig selects and sizes the default object access permission cache.
type CacheConfig struct {
	// Backend is "memory" or "redis".
	Backend    string
	MaxEntries int
	TTL        time.Duration

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string
}

// ObservabilityConfig holds logging, metrics and tracing settings.
type ObservabilityConfig struct {
	LogLevel       observability.LogLevel
	MetricsEnabled bool

	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool
}

// LoadConfig loads configuration from environment variables.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Database:      loadDatabaseConfig(),
		Cache:         loadCacheConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("STELAE_HOST", "0.0.0.0"),
		Port:            getEnv("STELAE_PORT", "8080"),
		ReadTimeout:     getEnvDuration("STELAE_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("STELAE_WRITE_TIMEOUT", 15*time.Second),
		IdleTimeout:     getEnvDuration("STELAE_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("STELAE_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("STELAE_HEALTH_PORT", "9090"),
	}
}

func loadDatabaseConfig() postgres.ConnectionConfig {
	return postgres.ConnectionConfig{
		URL:         getEnv("STELAE_POSTGRES_URL", ""),
		MaxConns:    getEnvInt("STELAE_POSTGRES_MAX_CONNS", 25),
		MinConns:    getEnvInt("STELAE_POSTGRES_MIN_CONNS", 5),
		Timeout:     getEnvDuration("STELAE_POSTGRES_TIMEOUT", 10*time.Second),
		MaxLifetime: getEnvDuration("STELAE_POSTGRES_MAX_LIFETIME", 30*time.Minute),
		MaxIdleTime: getEnvDuration("STELAE_POSTGRES_MAX_IDLE_TIME", 5*time.Minute),
	}
}

func loadCacheConfig() CacheConfig {
	defaults := cache.DefaultConfig()
	return CacheConfig{
		Backend:       getEnv("STELAE_CACHE_BACKEND", "memory"),
		MaxEntries:    getEnvInt("STELAE_CACHE_MAX_ENTRIES", defaults.MaxEntries),
		TTL:           getEnvDuration("STELAE_CACHE_TTL", defaults.TTL),
		RedisAddr:     getEnv("STELAE_REDIS_ADDR", "localhost:6379"),
		RedisPassword: getEnv("STELAE_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("STELAE_REDIS_DB", 0),
		RedisPrefix:   getEnv("STELAE_REDIS_PREFIX", "stelae:doap"),
	}
}

func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           observability.ParseLogLevel(getEnv("STELAE_LOG_LEVEL", "info")),
		MetricsEnabled:     getEnvBool("STELAE_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("STELAE_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("STELAE_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("STELAE_OTEL_SERVICE_NAME", "stelae-permissions"),
		OTelServiceVersion: getEnv("STELAE_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("STELAE_OTEL_INSECURE", true),
	}
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	if c.Database.URL == "" {
		return fmt.Errorf("postgres URL is required (STELAE_POSTGRES_URL)")
	}

	switch c.Cache.Backend {
	case "memory":
	case "redis":
		if c.Cache.RedisAddr == "" {
			return fmt.Errorf("redis address is required for the redis cache backend")
		}
	default:
		return fmt.Errorf("invalid cache backend: %s (must be memory or redis)", c.Cache.Backend)
	}

	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
