package extract

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/use-agent/pagepipe/cleaner"
	"github.com/use-agent/pagepipe/config"
	"github.com/use-agent/pagepipe/llm"
	"github.com/use-agent/pagepipe/models"
)

const (
	defaultLLMTimeout     = 60 * time.Second
	defaultMaxInputTokens = 100000
)

// SchemaGuidedLLM asks a chat model to pull records matching Schema out of
// the page. Model output that cannot be parsed degrades the result to the
// page markdown instead of failing the run.
type SchemaGuidedLLM struct {
	Schema      models.RecordSchema
	Instruction string
	Model       string
	Credential  models.Secret
	BaseURL     string

	ContentMode      cleaner.Mode
	CSSSelector      string
	ExcludeSelectors []string

	// MaxInputTokens caps the content sent to the model (0 uses the default).
	MaxInputTokens int
	// Timeout bounds the completion call (0 uses the default).
	Timeout time.Duration

	// Client overrides the client built from Credential and BaseURL.
	Client llm.ChatClient
}

func (s *SchemaGuidedLLM) Name() string { return "schema_llm" }

func (s *SchemaGuidedLLM) Format() models.OutputFormat { return models.FormatJSON }

// Preflight checks everything that can be checked without a page, so a
// misconfigured run never starts a browser.
func (s *SchemaGuidedLLM) Preflight() error {
	if s.Credential.Empty() {
		return models.NewScrapeError(models.ErrCodeCredentialMissing, "no LLM credential configured", nil)
	}
	if err := s.Schema.Validate(); err != nil {
		return err
	}
	if _, err := cleaner.ParseMode(string(s.ContentMode)); err != nil {
		return models.NewScrapeError(models.ErrCodeInvalidConfig, err.Error(), nil)
	}
	if s.CSSSelector != "" {
		if err := cleaner.ValidateSelector(s.CSSSelector); err != nil {
			return models.NewScrapeError(models.ErrCodeInvalidConfig,
				fmt.Sprintf("invalid css selector %q", s.CSSSelector), err)
		}
	}
	for _, sel := range s.ExcludeSelectors {
		if err := cleaner.ValidateSelector(sel); err != nil {
			return models.NewScrapeError(models.ErrCodeInvalidConfig,
				fmt.Sprintf("invalid exclude selector %q", sel), err)
		}
	}
	return nil
}

// Extract runs one completion over the page content.
//
// Flow:
//  1. Preflight (credential, schema, selector).
//  2. Build model input: selector → content mode → markdown → token cap.
//  3. Call the model once.
//  4. Normalize the reply into ordered records, or degrade to page markdown.
func (s *SchemaGuidedLLM) Extract(ctx context.Context, page *models.LoadedPage) (*models.PipelineResult, error) {
	// ── 1. Preflight ────────────────────────────────────────────────
	if err := s.Preflight(); err != nil {
		return nil, err
	}
	log := slog.With("url", page.FinalURL, "strategy", s.Name())

	// ── 2. Model input ──────────────────────────────────────────────
	pageMarkdown := sharedCleaner.Markdown(page.HTML, page.FinalURL, cleaner.Options{Mode: cleaner.ModeRaw})
	input := pageMarkdown
	if s.narrowed() {
		mode, _ := cleaner.ParseMode(string(s.ContentMode))
		input = sharedCleaner.Markdown(page.HTML, page.FinalURL, cleaner.Options{
			Mode:     mode,
			Selector: s.CSSSelector,
			Exclude:  s.ExcludeSelectors,
		})
	}
	input, truncated := cleaner.TruncateToTokens(input, s.maxInputTokens())
	if truncated {
		log.Warn("page content truncated for model input", "max_tokens", s.maxInputTokens())
	}

	// ── 3. Completion ───────────────────────────────────────────────
	callCtx, cancel := context.WithTimeout(ctx, s.timeout())
	defer cancel()

	start := time.Now()
	res, err := llm.Extract(callCtx, s.client(), input, llm.ExtractParams{
		Model:       s.model(),
		Instruction: s.Instruction,
		Schema:      s.Schema.ListSchema(),
	})
	if err != nil {
		return nil, err
	}
	log.Debug("model replied", "duration", time.Since(start), "total_tokens", res.Usage.TotalTokens)

	// ── 4. Normalize ────────────────────────────────────────────────
	records, err := llm.NormalizeRecords(res.Content, s.Schema)
	if err != nil {
		log.Warn("model output unusable, keeping page markdown", "error", err)
		result := models.DegradedResult(page, pageMarkdown, err)
		result.Usage = res.Usage
		return result, nil
	}

	result := models.RecordsResult(page, records)
	result.Usage = res.Usage
	return result, nil
}

func (s *SchemaGuidedLLM) narrowed() bool {
	return (s.ContentMode != "" && s.ContentMode != cleaner.ModeRaw) ||
		s.CSSSelector != "" || len(s.ExcludeSelectors) > 0
}

func (s *SchemaGuidedLLM) client() llm.ChatClient {
	if s.Client != nil {
		return s.Client
	}
	baseURL := s.BaseURL
	if baseURL == "" {
		baseURL = config.DefaultLLMBaseURL
	}
	return llm.NewClient(s.Credential, baseURL, nil)
}

func (s *SchemaGuidedLLM) model() string {
	if s.Model == "" {
		return config.DefaultLLMModel
	}
	return s.Model
}

func (s *SchemaGuidedLLM) timeout() time.Duration {
	if s.Timeout <= 0 {
		return defaultLLMTimeout
	}
	return s.Timeout
}

func (s *SchemaGuidedLLM) maxInputTokens() int {
	if s.MaxInputTokens <= 0 {
		return defaultMaxInputTokens
	}
	return s.MaxInputTokens
}
