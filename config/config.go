package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/use-agent/pagepipe/models"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Browser   BrowserConfig   `yaml:"browser"`
	Scraper   ScraperConfig   `yaml:"scraper"`
	LLM       LLMConfig       `yaml:"llm"`
	Auth      AuthConfig      `yaml:"auth"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Log       LogConfig       `yaml:"log"`
}

// ServerConfig controls the HTTP server.
type ServerConfig struct {
	Host string `yaml:"host"` // default: "0.0.0.0"
	Port int    `yaml:"port"` // default: 8080
	Mode string `yaml:"mode"` // "debug", "release", "test"; default: "release"

	// MaxConcurrentRuns bounds how many pipeline runs (and so browsers)
	// may be alive at once.
	MaxConcurrentRuns int `yaml:"max_concurrent_runs"` // default: 4
}

// BrowserConfig controls the Rod browser instance.
type BrowserConfig struct {
	// Headless controls whether the browser runs headless.
	Headless bool `yaml:"headless"` // default: true

	// Verbose turns on rod action tracing and browser lifecycle logs.
	Verbose bool `yaml:"verbose"`

	// DefaultProxy is the proxy URL for all browser traffic.
	DefaultProxy string `yaml:"proxy"`

	// NoSandbox disables Chrome's sandbox (needed in Docker).
	NoSandbox bool `yaml:"no_sandbox"` // default: false

	// BrowserBin overrides the Chromium binary path.
	BrowserBin string `yaml:"browser_bin"`
}

// ScraperConfig is the default page load policy.
type ScraperConfig struct {
	// WaitUntil is the quiescence condition: networkidle, domcontentloaded or load.
	WaitUntil string `yaml:"wait_until"` // default: "networkidle"

	// SettleDelay is waited after quiescence and after any injected script.
	SettleDelay time.Duration `yaml:"settle_delay"` // default: 2s

	// IdleWindow is how long the network must stay quiet for networkidle.
	IdleWindow time.Duration `yaml:"idle_window"` // default: 500ms

	// NavigationTimeout bounds the whole page load including script and settle delay.
	NavigationTimeout time.Duration `yaml:"navigation_timeout"` // default: 30s

	Stealth bool `yaml:"stealth"`

	// BlockedResourceTypes lists resource types to block, e.g. ["Image", "Font"].
	BlockedResourceTypes []string `yaml:"blocked_resource_types"`

	ExtraHeaders map[string]string `yaml:"extra_headers"`
}

// LLMConfig controls the OpenAI-compatible model used for structured extraction.
type LLMConfig struct {
	// APIKey is read from the environment variable named by APIKeyEnv.
	APIKey    models.Secret `yaml:"-"`
	APIKeyEnv string        `yaml:"api_key_env"` // default: "GEMINI_API_KEY"

	// BaseURL is the OpenAI-compatible endpoint. Default: Gemini's.
	BaseURL string `yaml:"base_url"`
	Model   string `yaml:"model"` // default: "gemini-2.5-flash"

	// Timeout bounds a single completion call.
	Timeout time.Duration `yaml:"timeout"` // default: 60s

	// MaxInputTokens truncates page content before it is sent.
	MaxInputTokens int `yaml:"max_input_tokens"` // default: 100000

	// ContentMode is raw, readability or pruning.
	ContentMode string `yaml:"content_mode"` // default: "raw"
}

// AuthConfig controls API key authentication for the server.
type AuthConfig struct {
	// Enabled toggles API key authentication.
	Enabled bool `yaml:"enabled"` // default: false

	APIKeys []string `yaml:"api_keys"`
}

// RateLimitConfig controls per-key request admission for the server.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate per API key.
	RequestsPerSecond float64 `yaml:"requests_per_second"` // default: 2

	// Burst is the maximum burst size per API key.
	Burst int `yaml:"burst"` // default: 4
}

// LogConfig controls structured logging.
type LogConfig struct {
	Level  string `yaml:"level"`  // default: "info"
	Format string `yaml:"format"` // "json" or "text"; default: "text"
}

const (
	DefaultLLMBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai/"
	DefaultLLMModel   = "gemini-2.5-flash"
	DefaultAPIKeyEnv  = "GEMINI_API_KEY"
)

// Load reads configuration from environment variables with sane defaults.
// Call LoadDotEnv first so values from .env are visible here.
func Load() *Config {
	keyEnv := envOr("PAGEPIPE_LLM_API_KEY_ENV", DefaultAPIKeyEnv)
	return &Config{
		Server: ServerConfig{
			Host:              envOr("PAGEPIPE_HOST", "0.0.0.0"),
			Port:              envIntOr("PAGEPIPE_PORT", 8080),
			Mode:              envOr("PAGEPIPE_MODE", "release"),
			MaxConcurrentRuns: envIntOr("PAGEPIPE_MAX_RUNS", 4),
		},
		Browser: BrowserConfig{
			Headless:     envBoolOr("PAGEPIPE_HEADLESS", true),
			Verbose:      envBoolOr("PAGEPIPE_VERBOSE", false),
			DefaultProxy: os.Getenv("PAGEPIPE_PROXY"),
			NoSandbox:    envBoolOr("PAGEPIPE_NO_SANDBOX", false),
			BrowserBin:   os.Getenv("PAGEPIPE_BROWSER_BIN"),
		},
		Scraper: ScraperConfig{
			WaitUntil:            envOr("PAGEPIPE_WAIT_UNTIL", string(models.NetworkIdle)),
			SettleDelay:          envDurationOr("PAGEPIPE_SETTLE_DELAY", 2*time.Second),
			IdleWindow:           envDurationOr("PAGEPIPE_IDLE_WINDOW", models.DefaultQuiescenceWindow),
			NavigationTimeout:    envDurationOr("PAGEPIPE_NAV_TIMEOUT", models.DefaultNavigationTimeout),
			Stealth:              envBoolOr("PAGEPIPE_STEALTH", false),
			BlockedResourceTypes: envSliceOr("PAGEPIPE_BLOCKED_RESOURCES", nil),
		},
		LLM: LLMConfig{
			APIKey:         models.Secret(os.Getenv(keyEnv)),
			APIKeyEnv:      keyEnv,
			BaseURL:        envOr("PAGEPIPE_LLM_BASE_URL", DefaultLLMBaseURL),
			Model:          envOr("PAGEPIPE_LLM_MODEL", DefaultLLMModel),
			Timeout:        envDurationOr("PAGEPIPE_LLM_TIMEOUT", 60*time.Second),
			MaxInputTokens: envIntOr("PAGEPIPE_LLM_MAX_INPUT_TOKENS", 100000),
			ContentMode:    envOr("PAGEPIPE_LLM_CONTENT_MODE", "raw"),
		},
		Auth: AuthConfig{
			Enabled: envBoolOr("PAGEPIPE_AUTH_ENABLED", false),
			APIKeys: envSliceOr("PAGEPIPE_API_KEYS", nil),
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: envFloatOr("PAGEPIPE_RATE_RPS", 2.0),
			Burst:             envIntOr("PAGEPIPE_RATE_BURST", 4),
		},
		Log: LogConfig{
			Level:  envOr("PAGEPIPE_LOG_LEVEL", "info"),
			Format: envOr("PAGEPIPE_LOG_FORMAT", "text"),
		},
	}
}

// Policy converts the scraper defaults into a page load policy.
func (c ScraperConfig) Policy() (models.PageLoadPolicy, error) {
	q, err := models.ParseQuiescence(c.WaitUntil)
	if err != nil {
		return models.PageLoadPolicy{}, err
	}
	p := models.PageLoadPolicy{
		Quiescence:           q,
		SettleDelay:          c.SettleDelay,
		QuiescenceWindow:     c.IdleWindow,
		NavigationTimeout:    c.NavigationTimeout,
		Stealth:              c.Stealth,
		ExtraHeaders:         c.ExtraHeaders,
		BlockedResourceTypes: c.BlockedResourceTypes,
	}
	p.Defaults()
	return p, p.Validate()
}

// --- helper functions ---

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envIntOr(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func envBoolOr(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func envFloatOr(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envDurationOr(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func envSliceOr(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		return result
	}
	return fallback
}
