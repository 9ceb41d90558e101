package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/use-agent/pagepipe/models"
)

// LoadDotEnv loads KEY=VALUE pairs from the given files (".env" when none)
// into the process environment. Variables already set are not overwritten
// and a missing file is not an error.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}
	for _, p := range paths {
		if err := godotenv.Load(p); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				slog.Debug("no dotenv file", "path", p)
				continue
			}
			return models.NewScrapeError(models.ErrCodeInvalidConfig, fmt.Sprintf("cannot load %s", p), err)
		}
	}
	return nil
}

// LoadFile overlays the YAML file at path onto cfg. Keys absent from the
// file keep their current values.
func LoadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.NewScrapeError(models.ErrCodeInvalidConfig, fmt.Sprintf("cannot read config file %s", path), err)
	}
	prevKeyEnv := cfg.LLM.APIKeyEnv
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return models.NewScrapeError(models.ErrCodeInvalidConfig, fmt.Sprintf("cannot parse config file %s", path), err)
	}
	if cfg.LLM.APIKeyEnv != prevKeyEnv {
		cfg.LLM.APIKey = models.Secret(os.Getenv(cfg.LLM.APIKeyEnv))
	}
	return nil
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	if _, err := c.Scraper.Policy(); err != nil {
		return err
	}
	switch c.LLM.ContentMode {
	case "", "raw", "readability", "pruning":
	default:
		return models.NewScrapeError(models.ErrCodeInvalidConfig,
			fmt.Sprintf("unknown llm content mode %q", c.LLM.ContentMode), nil)
	}
	if c.LLM.Timeout < 0 || c.LLM.MaxInputTokens < 0 {
		return models.NewScrapeError(models.ErrCodeInvalidConfig, "llm timeout and token budget must not be negative", nil)
	}
	if c.Server.MaxConcurrentRuns < 1 {
		return models.NewScrapeError(models.ErrCodeInvalidConfig, "server max_concurrent_runs must be at least 1", nil)
	}
	if c.Auth.Enabled && len(c.Auth.APIKeys) == 0 {
		return models.NewScrapeError(models.ErrCodeInvalidConfig, "auth is enabled but no api keys are configured", nil)
	}
	switch c.Log.Format {
	case "", "json", "text":
	default:
		return models.NewScrapeError(models.ErrCodeInvalidConfig, fmt.Sprintf("unknown log format %q", c.Log.Format), nil)
	}
	return nil
}

// Resolve builds the effective configuration: .env, then environment, then
// the optional YAML file at path, then validation.
func Resolve(path string) (*Config, error) {
	if err := LoadDotEnv(); err != nil {
		return nil, err
	}
	cfg := Load()
	if path != "" {
		if err := LoadFile(path, cfg); err != nil {
			return nil, err
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
