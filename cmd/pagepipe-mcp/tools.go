package main

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/use-agent/pagepipe/api/handler"
	"github.com/use-agent/pagepipe/cleaner"
	"github.com/use-agent/pagepipe/config"
	"github.com/use-agent/pagepipe/extract"
	"github.com/use-agent/pagepipe/models"
)

// tools runs pipeline requests arriving as MCP tool calls.
type tools struct {
	runs *handler.Runs
	base models.PageLoadPolicy
	llm  config.LLMConfig
}

// register adds every tool to s.
func (t *tools) register(s *server.MCPServer) {
	scrape := []mcp.ToolOption{
		mcp.WithDescription("Render a web page in a headless browser and return it as markdown. Waits for the page to go quiet, optionally runs a script, then waits a settle delay."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Absolute http(s) URL of the page"),
		),
	}
	s.AddTool(mcp.NewTool("scrape_markdown", append(scrape, loadOptions()...)...), t.scrapeMarkdown)

	records := []mcp.ToolOption{
		mcp.WithDescription("Render a web page and extract a list of records matching a schema with an LLM. Returns {\"posts\": [...]} with fields in schema order."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("Absolute http(s) URL of the page"),
		),
		mcp.WithString("schema",
			mcp.Required(),
			mcp.Description(`Record schema as JSON, e.g. {"fields":[{"name":"title","required":true},{"name":"author"}]}`),
		),
		mcp.WithString("instruction",
			mcp.Required(),
			mcp.Description("What to extract from the page"),
		),
		mcp.WithString("content_mode",
			mcp.Description("What the model sees: 'raw' (default, whole page), 'readability' (main article) or 'pruning'"),
			mcp.Enum("raw", "readability", "pruning"),
		),
		mcp.WithString("css_selector",
			mcp.Description("Only send elements matching this selector to the model"),
		),
		mcp.WithString("exclude_selectors",
			mcp.Description("Comma-separated CSS selectors to remove before extraction, e.g. 'nav, .sidebar'"),
		),
		mcp.WithString("llm_model",
			mcp.Description("Model override (default from configuration)"),
		),
	}
	s.AddTool(mcp.NewTool("extract_records", append(records, loadOptions()...)...), t.extractRecords)
}

func loadOptions() []mcp.ToolOption {
	return []mcp.ToolOption{
		mcp.WithString("wait_until",
			mcp.Description("Quiescence condition: 'networkidle' (default), 'domcontentloaded' or 'load'"),
			mcp.Enum("networkidle", "domcontentloaded", "load"),
		),
		mcp.WithNumber("settle_delay_ms",
			mcp.Description("Extra wait after quiescence and after the script, in milliseconds"),
		),
		mcp.WithString("script",
			mcp.Description("JavaScript function body run once the page is quiet, e.g. to scroll"),
		),
	}
}

// policy layers the call's load options over the configured policy.
func (t *tools) policy(request mcp.CallToolRequest, targetURL string) (models.PageLoadPolicy, error) {
	req := models.ScrapeRequest{
		URL:       targetURL,
		WaitUntil: request.GetString("wait_until", ""),
		Script:    request.GetString("script", ""),
	}
	if _, set := request.GetArguments()["settle_delay_ms"]; set {
		delay := request.GetInt("settle_delay_ms", 0)
		if delay < 0 {
			return models.PageLoadPolicy{}, models.NewScrapeError(models.ErrCodeInvalidInput, "settle_delay_ms must not be negative", nil)
		}
		req.SettleDelayMs = &delay
	}
	p := req.Policy(t.base)
	return p, p.Validate()
}

func (t *tools) scrapeMarkdown(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	targetURL, err := request.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError("url is required"), nil
	}
	policy, err := t.policy(request, targetURL)
	if err != nil {
		return toolError(err), nil
	}

	rep, data, err := t.runs.Run(ctx, models.ExtractionRequest{
		TargetURL: targetURL,
		Strategy:  extract.NewRawMarkdown(),
	}, policy)
	if err != nil {
		return toolError(err), nil
	}

	page := rep.Result.Page
	header := fmt.Sprintf("Title: %s\nSource: %s\n\n", page.Title, page.FinalURL)
	return mcp.NewToolResultText(header + string(data)), nil
}

func (t *tools) extractRecords(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	targetURL, err := request.RequireString("url")
	if err != nil {
		return mcp.NewToolResultError("url is required"), nil
	}
	rawSchema, err := request.RequireString("schema")
	if err != nil {
		return mcp.NewToolResultError("schema is required"), nil
	}
	instruction, err := request.RequireString("instruction")
	if err != nil {
		return mcp.NewToolResultError("instruction is required"), nil
	}

	var schema models.RecordSchema
	if err := json.Unmarshal([]byte(rawSchema), &schema); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("schema must be valid JSON: %v", err)), nil
	}
	policy, err := t.policy(request, targetURL)
	if err != nil {
		return toolError(err), nil
	}

	strategy := &extract.SchemaGuidedLLM{
		Schema:           schema,
		Instruction:      instruction,
		Model:            request.GetString("llm_model", t.llm.Model),
		Credential:       t.llm.APIKey,
		BaseURL:          t.llm.BaseURL,
		ContentMode:      cleaner.Mode(request.GetString("content_mode", t.llm.ContentMode)),
		CSSSelector:      request.GetString("css_selector", ""),
		ExcludeSelectors: splitSelectors(request.GetString("exclude_selectors", "")),
		MaxInputTokens:   t.llm.MaxInputTokens,
		Timeout:          t.llm.Timeout,
		Client:           t.runs.ChatClient(),
	}

	rep, data, err := t.runs.Run(ctx, models.ExtractionRequest{TargetURL: targetURL, Strategy: strategy}, policy)
	if err != nil {
		return toolError(err), nil
	}

	page := rep.Result.Page
	header := fmt.Sprintf("Source: %s\nTitle: %s\n", page.FinalURL, page.Title)
	if rep.Degraded() {
		header += fmt.Sprintf("Extraction degraded: %v\n", rep.Result.Degraded)
	}
	return mcp.NewToolResultText(header + "\n" + string(data)), nil
}

// splitSelectors splits a selector list on commas that sit outside
// brackets and parentheses, so "a[href*=',']" stays whole.
func splitSelectors(list string) []string {
	var (
		out   []string
		depth int
		start int
	)
	flush := func(end int) {
		if sel := strings.TrimSpace(list[start:end]); sel != "" {
			out = append(out, sel)
		}
	}
	for i, r := range list {
		switch r {
		case '[', '(':
			depth++
		case ']', ')':
			depth--
		case ',':
			if depth == 0 {
				flush(i)
				start = i + 1
			}
		}
	}
	flush(len(list))
	return out
}

func toolError(err error) *mcp.CallToolResult {
	se := models.AsScrapeError(err, models.ErrCodeInternal)
	return mcp.NewToolResultError(fmt.Sprintf("[%s] %s", se.Code, se.Message))
}
