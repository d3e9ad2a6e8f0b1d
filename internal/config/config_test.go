package config

import (
	"os"
	"testing"
	"time"
)

var configEnvVars = []string{
	"APP_ENV", "HTTP_ADDR", "METRICS_ADDR", "DB_DSN", "ENV", "STORE_TYPE",
	"SEED_FILE", "SDK_KEY", "SDK_KEY_HASH", "ADMIN_API_KEY",
	"HEARTBEAT_INTERVAL", "LOG_LEVEL", "OTLP_ENDPOINT",
}

func clearConfigEnv(t *testing.T) {
	t.Helper()
	for _, key := range configEnvVars {
		os.Unsetenv(key)
	}
}

func TestLoad_DefaultValues(t *testing.T) {
	clearConfigEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.AppEnv != "dev" {
		t.Errorf("Expected AppEnv='dev', got '%s'", cfg.AppEnv)
	}
	if cfg.HTTPAddr != ":8080" {
		t.Errorf("Expected HTTPAddr=':8080', got '%s'", cfg.HTTPAddr)
	}
	if cfg.MetricsAddr != ":9090" {
		t.Errorf("Expected MetricsAddr=':9090', got '%s'", cfg.MetricsAddr)
	}
	if cfg.Env != "production" {
		t.Errorf("Expected Env='production', got '%s'", cfg.Env)
	}
	if cfg.StoreType != "memory" {
		t.Errorf("Expected StoreType='memory', got '%s'", cfg.StoreType)
	}
	if cfg.HeartbeatInterval != 15*time.Second {
		t.Errorf("Expected HeartbeatInterval=15s, got %v", cfg.HeartbeatInterval)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("Expected LogLevel='info', got '%s'", cfg.LogLevel)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	clearConfigEnv(t)
	t.Setenv("APP_ENV", "test")
	t.Setenv("HTTP_ADDR", ":9999")
	t.Setenv("ENV", "staging")
	t.Setenv("STORE_TYPE", "postgres")
	t.Setenv("SDK_KEY", "fdk_dGVzdA")
	t.Setenv("HEARTBEAT_INTERVAL", "5s")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.AppEnv != "test" {
		t.Errorf("Expected AppEnv='test', got '%s'", cfg.AppEnv)
	}
	if cfg.HTTPAddr != ":9999" {
		t.Errorf("Expected HTTPAddr=':9999', got '%s'", cfg.HTTPAddr)
	}
	if cfg.Env != "staging" {
		t.Errorf("Expected Env='staging', got '%s'", cfg.Env)
	}
	if cfg.StoreType != "postgres" {
		t.Errorf("Expected StoreType='postgres', got '%s'", cfg.StoreType)
	}
	if cfg.SDKKey != "fdk_dGVzdA" {
		t.Errorf("Expected SDKKey='fdk_dGVzdA', got '%s'", cfg.SDKKey)
	}
	if cfg.HeartbeatInterval != 5*time.Second {
		t.Errorf("Expected HeartbeatInterval=5s, got %v", cfg.HeartbeatInterval)
	}
}

func validConfig() *Config {
	return &Config{
		AppEnv:            "dev",
		HTTPAddr:          ":8080",
		MetricsAddr:       ":9090",
		Env:               "production",
		StoreType:         "memory",
		AdminAPIKey:       "admin-123",
		HeartbeatInterval: 15 * time.Second,
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid dev config", func(c *Config) {}, ""},
		{"bad store type", func(c *Config) { c.StoreType = "cassandra" }, "STORE_TYPE"},
		{"postgres without dsn", func(c *Config) { c.StoreType = "postgres"; c.DatabaseDSN = "" }, "DB_DSN"},
		{"empty http addr", func(c *Config) { c.HTTPAddr = "" }, "HTTP_ADDR"},
		{"empty metrics addr", func(c *Config) { c.MetricsAddr = "" }, "METRICS_ADDR"},
		{"empty env", func(c *Config) { c.Env = "" }, "ENV"},
		{"zero heartbeat", func(c *Config) { c.HeartbeatInterval = 0 }, "HEARTBEAT_INTERVAL"},
		{"prod with default admin key", func(c *Config) { c.AppEnv = "prod"; c.SDKKey = "fdk_x" }, "ADMIN_API_KEY"},
		{"prod without sdk key", func(c *Config) { c.AppEnv = "prod"; c.AdminAPIKey = "secret" }, "SDK_KEY"},
		{"prod fully configured", func(c *Config) {
			c.AppEnv = "prod"
			c.AdminAPIKey = "secret"
			c.SDKKeyHash = "$2a$12$abcdefghijklmnopqrstuv"
		}, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Validate() failed: %v", err)
				}
				return
			}
			verr, ok := err.(ValidationError)
			if !ok {
				t.Fatalf("Expected ValidationError for %s, got %v", tt.wantErr, err)
			}
			if verr.Field != tt.wantErr {
				t.Errorf("Expected failure on %s, got %s", tt.wantErr, verr.Field)
			}
		})
	}
}
