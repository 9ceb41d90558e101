package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"

	"github.com/invopop/jsonschema"
	openai "github.com/sashabaranov/go-openai"

	"github.com/use-agent/pagepipe/models"
)

// ChatClient is the subset of the go-openai client used for extraction.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// NewClient returns an OpenAI-compatible client for baseURL (any provider
// exposing /chat/completions, e.g. Gemini's OpenAI endpoint). A nil
// httpClient uses the library default.
func NewClient(apiKey models.Secret, baseURL string, httpClient *http.Client) *openai.Client {
	cfg := openai.DefaultConfig(apiKey.Reveal())
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	if httpClient != nil {
		cfg.HTTPClient = httpClient
	}
	return openai.NewClientWithConfig(cfg)
}

// ExtractParams holds per-request model configuration.
type ExtractParams struct {
	Model       string
	Instruction string
	Schema      *jsonschema.Schema
}

// ExtractResult is the raw model output plus usage.
type ExtractResult struct {
	Content string
	Usage   *models.LLMUsage
}

// Extract sends content with the instruction and schema to the model and
// returns its reply unparsed. Transport and API failures are classified into
// LLM_* codes; a reply that is not valid JSON is the caller's concern.
func Extract(ctx context.Context, client ChatClient, content string, params ExtractParams) (*ExtractResult, error) {
	systemPrompt, err := buildSystemPrompt(params.Instruction, params.Schema)
	if err != nil {
		return nil, models.NewScrapeError(models.ErrCodeInternal, "cannot render record schema", err)
	}

	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: params.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: systemPrompt},
			{Role: openai.ChatMessageRoleUser, Content: content},
		},
		// go-openai drops a zero temperature from the request body.
		Temperature: math.SmallestNonzeroFloat32,
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return nil, classifyLLMError(ctx, err)
	}
	if len(resp.Choices) == 0 {
		return nil, models.NewScrapeError(models.ErrCodeLLMFailure, "LLM returned no choices", nil)
	}

	return &ExtractResult{
		Content: resp.Choices[0].Message.Content,
		Usage: &models.LLMUsage{
			PromptTokens:     resp.Usage.PromptTokens,
			CompletionTokens: resp.Usage.CompletionTokens,
			TotalTokens:      resp.Usage.TotalTokens,
		},
	}, nil
}

// buildSystemPrompt creates the system prompt for structured extraction.
func buildSystemPrompt(instruction string, schema *jsonschema.Schema) (string, error) {
	rendered := "{}"
	if schema != nil {
		raw, err := json.MarshalIndent(schema, "", "  ")
		if err != nil {
			return "", err
		}
		rendered = string(raw)
	}
	if strings.TrimSpace(instruction) == "" {
		instruction = "Extract every matching item from the page content."
	}
	return fmt.Sprintf(`You are a structured data extraction assistant.

%s

Return the result as JSON matching this schema:
%s

Rules:
- Return ONLY valid JSON, no markdown fences or explanation.
- Wrap the items in an object under the key "%s".
- If a field cannot be found in the content, use null.`, strings.TrimSpace(instruction), rendered, models.RecordsKey), nil
}

// classifyLLMError maps go-openai errors to error codes.
func classifyLLMError(ctx context.Context, err error) *models.ScrapeError {
	if ctx.Err() != nil {
		if errors.Is(ctx.Err(), context.Canceled) {
			return models.NewScrapeError(models.ErrCodeCanceled, "LLM request canceled", err)
		}
		return models.NewScrapeError(models.ErrCodeLLMFailure, "LLM request timed out", err)
	}

	status, msg := 0, err.Error()
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status, msg = apiErr.HTTPStatusCode, apiErr.Message
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return models.NewScrapeError(models.ErrCodeLLMAuthFailure, msg, err)
	case http.StatusTooManyRequests:
		return models.NewScrapeError(models.ErrCodeLLMRateLimited, msg, err)
	case 0:
		return models.NewScrapeError(models.ErrCodeLLMFailure, "LLM request failed", err)
	default:
		return models.NewScrapeError(models.ErrCodeLLMFailure, fmt.Sprintf("LLM API returned %d: %s", status, msg), err)
	}
}
