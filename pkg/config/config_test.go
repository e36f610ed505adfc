package config

import (
	"os"
	"testing"
	"time"

	"github.com/stelae/stelae/pkg/observability"
)

// TestGetEnv tests the getEnv helper function
func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
	}{
		{
			name:         "returns env value when set",
			key:          "TEST_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
		},
		{
			name:         "returns default when env not set",
			key:          "TEST_VAR_NOT_SET",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.envValue != "" {
				os.Setenv(tt.key, tt.envValue)
				defer os.Unsetenv(tt.key)
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestGetEnvDuration tests the getEnvDuration helper function
func TestGetEnvDuration(t *testing.T) {
	os.Setenv("TEST_DURATION", "45s")
	defer os.Unsetenv("TEST_DURATION")

	if got := getEnvDuration("TEST_DURATION", time.Minute); got != 45*time.Second {
		t.Errorf("getEnvDuration() = %v, want 45s", got)
	}
	if got := getEnvDuration("TEST_DURATION_NOT_SET", time.Minute); got != time.Minute {
		t.Errorf("getEnvDuration() default = %v, want 1m", got)
	}
}

// TestLoadConfigDefaults tests that LoadConfig applies sane defaults
func TestLoadConfigDefaults(t *testing.T) {
	os.Setenv("STELAE_POSTGRES_URL", "postgres://localhost:5432/stelae?sslmode=disable")
	defer os.Unsetenv("STELAE_POSTGRES_URL")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if cfg.Server.Port != "8080" {
		t.Errorf("Server.Port = %v, want 8080", cfg.Server.Port)
	}
	if cfg.Server.HealthPort != "9090" {
		t.Errorf("Server.HealthPort = %v, want 9090", cfg.Server.HealthPort)
	}
	if cfg.Cache.Backend != "memory" {
		t.Errorf("Cache.Backend = %v, want memory", cfg.Cache.Backend)
	}
	if cfg.Observability.LogLevel != observability.InfoLevel {
		t.Errorf("LogLevel = %v, want info", cfg.Observability.LogLevel)
	}
}

// TestLoadConfigValidation tests validation failures
func TestLoadConfigValidation(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{
			name: "missing postgres URL",
			env:  map[string]string{},
		},
		{
			name: "same ports",
			env: map[string]string{
				"STELAE_POSTGRES_URL": "postgres://localhost/stelae",
				"STELAE_PORT":         "8080",
				"STELAE_HEALTH_PORT":  "8080",
			},
		},
		{
			name: "bad cache backend",
			env: map[string]string{
				"STELAE_POSTGRES_URL":  "postgres://localhost/stelae",
				"STELAE_CACHE_BACKEND": "memcached",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				os.Setenv(k, v)
			}
			defer func() {
				for k := range tt.env {
					os.Unsetenv(k)
				}
			}()

			if _, err := LoadConfig(); err == nil {
				t.Error("LoadConfig() expected validation error, got nil")
			}
		})
	}
}
