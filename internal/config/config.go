package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/creasty/defaults"
	"gopkg.in/yaml.v3"
)

const (
	configDirName = "scout-pulse"
	defaultConfig = ".config"
)

var configFiles = []string{
	"config.yaml",
	"config.yml",
}

// Config represents the structure of the configuration file used by the
// application. Environment variables SCOUT_PULSE_API_KEY,
// SCOUT_PULSE_BASE_URL, SCOUT_PULSE_MODEL and SCOUT_PULSE_LOG_LEVEL
// override the file.
type Config struct {
	APIKey          string       `yaml:"api_key"`
	BaseURL         string       `yaml:"base_url" default:"https://api.scoutpulse.io"`
	Model           string       `yaml:"model" default:"pulse-1"`
	MinDigestLength int          `yaml:"min_digest_length" default:"200"`
	LogLevel        string       `yaml:"log_level" default:"warn"`
	Render          RenderConfig `yaml:"render"`
}

// RenderConfig controls terminal output. Format "plain" disables markdown
// rendering.
type RenderConfig struct {
	Format string `yaml:"format"`
}

// configResult is a struct used to return the configuration and any error
// that occurs during loading.
type configResult struct {
	config *Config
	err    error
}

// newDefaultConfig creates a configuration carrying the struct defaults.
func newDefaultConfig() (*Config, error) {
	cfg := &Config{}
	if err := defaults.Set(cfg); err != nil {
		return nil, fmt.Errorf("failed to apply config defaults: %w", err)
	}
	return cfg, nil
}

// getConfigPath retrieves the path to the configuration directory based on
// the XDG_CONFIG_HOME environment variable.
func getConfigPath() (string, error) {
	configHome := os.Getenv("XDG_CONFIG_HOME")
	if configHome == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get user home directory: %w", err)
		}
		configHome = filepath.Join(home, defaultConfig)
	}

	return filepath.Join(configHome, configDirName), nil
}

// tryLoadConfig attempts to load a configuration file from the specified
// path.
func tryLoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg, err := newDefaultConfig()
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// LoadConfig loads the configuration from the user's config directory,
// with a timeout, and applies environment overrides last.
func LoadConfig(ctx context.Context) (*Config, error) {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	result := make(chan configResult, 1)

	go func() {
		cfg, err := loadConfigFiles(ctx)
		result <- configResult{config: cfg, err: err}
	}()

	done := ctx.Done()
	select {
	case <-done:
		return nil, ctx.Err()
	case r := <-result:
		if r.err != nil {
			return nil, r.err
		}
		applyEnvOverrides(r.config)
		return r.config, nil
	}
}

// loadConfigFiles loads configuration files from the user's config
// directory.
func loadConfigFiles(ctx context.Context) (*Config, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context error before loading config: %w", err)
	}

	configDir, err := getConfigPath()
	if err != nil {
		return nil, fmt.Errorf("failed to get config path: %w", err)
	}

	// Return default config early if directory doesn't exist
	if _, err := os.Stat(configDir); os.IsNotExist(err) {
		return newDefaultConfig()
	}

	for _, filename := range configFiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		cfg, err := tryLoadConfig(filepath.Join(configDir, filename))
		if err == nil {
			return cfg, nil
		}
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config from %s: %w", filename, err)
		}
	}

	return newDefaultConfig()
}

// applyEnvOverrides lets the environment win over the file.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("SCOUT_PULSE_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("SCOUT_PULSE_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("SCOUT_PULSE_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("SCOUT_PULSE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SCOUT_PULSE_MIN_DIGEST_LENGTH"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MinDigestLength = n
		}
	}
}
