package models

// ExtractRequest is the payload for POST /api/v1/extract.
// It wraps a scrape with schema-guided LLM extraction.
type ExtractRequest struct {
	ScrapeRequest

	// Schema declares the fields of each record. Required.
	Schema RecordSchema `json:"schema" binding:"required"`

	// Instruction tells the model what to pull out of the page. Required.
	Instruction string `json:"instruction" binding:"required"`

	// LLMAPIKey overrides the server's configured credential (BYOK).
	LLMAPIKey Secret `json:"llm_api_key,omitempty"`

	// LLMModel overrides the configured model.
	LLMModel string `json:"llm_model,omitempty"`

	// LLMBaseURL overrides the configured OpenAI-compatible endpoint.
	LLMBaseURL string `json:"llm_base_url,omitempty"`

	// ContentMode selects what the model sees.
	// "raw" (default): the whole page; "readability": main article only;
	// "pruning": boilerplate-scored body.
	ContentMode string `json:"content_mode,omitempty" binding:"omitempty,oneof=raw readability pruning"`

	// CSSSelector narrows the page before conversion.
	CSSSelector string `json:"css_selector,omitempty"`

	// ExcludeSelectors removes matching elements before conversion,
	// e.g. ["nav", ".sidebar"].
	ExcludeSelectors []string `json:"exclude_selectors,omitempty"`
}

// ExtractResponse is the response for POST /api/v1/extract.
type ExtractResponse struct {
	Success bool   `json:"success"`
	RunID   string `json:"run_id"`

	// Records are the extracted items in schema field order.
	Records []Record `json:"posts"`

	// ExtractionError is set when the model output could not be parsed;
	// RawMarkdown then carries the page so nothing is lost.
	ExtractionError *ErrorDetail `json:"extraction_error,omitempty"`
	RawMarkdown     string       `json:"raw_markdown,omitempty"`

	Page     PageInfo   `json:"page"`
	Timing   TimingInfo `json:"timing"`
	LLMUsage *LLMUsage  `json:"llm_usage,omitempty"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}
