// Package cli holds the shared pieces of the flagdeck command line
// tool: profile configuration, the admin API client and output
// formatting.
package cli

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config is the CLI profile file, one entry per named environment.
type Config struct {
	DefaultEnv   string               `yaml:"default_env"`
	Environments map[string]EnvConfig `yaml:"environments"`
}

// EnvConfig is the connection profile for one environment.
type EnvConfig struct {
	BaseURL  string `yaml:"base_url"`
	AdminKey string `yaml:"admin_key"`
	SDKKey   string `yaml:"sdk_key,omitempty"`
}

// ConfigPath returns the profile file location.
func ConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get home directory: %w", err)
	}
	return filepath.Join(home, ".flagdeck", "config.yaml"), nil
}

// LoadConfig reads the profile file. A missing file yields an empty
// config rather than an error.
func LoadConfig() (*Config, error) {
	path, err := ConfigPath()
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Config{
				DefaultEnv:   "production",
				Environments: make(map[string]EnvConfig),
			}, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if cfg.Environments == nil {
		cfg.Environments = make(map[string]EnvConfig)
	}
	return &cfg, nil
}

// SaveConfig writes the profile file, creating its directory as needed.
func SaveConfig(cfg *Config) error {
	path, err := ConfigPath()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// GetEnvConfig resolves the effective profile: command-line overrides
// beat the named profile, which beats the default environment. At
// minimum a base URL must come from somewhere.
func GetEnvConfig(env, baseURL, adminKey string) (EnvConfig, string, error) {
	cfg, err := LoadConfig()
	if err != nil {
		return EnvConfig{}, "", err
	}

	effectiveEnv := env
	if effectiveEnv == "" {
		effectiveEnv = cfg.DefaultEnv
	}

	envCfg := cfg.Environments[effectiveEnv]
	if baseURL != "" {
		envCfg.BaseURL = baseURL
	}
	if adminKey != "" {
		envCfg.AdminKey = adminKey
	}

	if envCfg.BaseURL == "" {
		return EnvConfig{}, "", fmt.Errorf("no base URL configured for environment %q (use --base-url or flagdeck config set)", effectiveEnv)
	}
	return envCfg, effectiveEnv, nil
}
