package models

// OutputFormat is the on-disk shape of a persisted result.
type OutputFormat string

const (
	FormatText OutputFormat = "text"
	FormatJSON OutputFormat = "json"
)

// Extension returns the default file extension for the format.
func (f OutputFormat) Extension() string {
	if f == FormatJSON {
		return ".json"
	}
	return ".md"
}

// OutputDestination is where and how a result is persisted.
type OutputDestination struct {
	Path   string
	Format OutputFormat
}

// LLMUsage reports token consumption from the LLM call.
type LLMUsage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// PipelineResult is the outcome of one extraction.
//
// When Succeeded is true exactly one of RawMarkdown and ExtractedRecords is
// non-nil. A degraded structured extraction carries RawMarkdown together with
// the parse error in Degraded.
type PipelineResult struct {
	Succeeded        bool
	ErrorDetail      string
	RawMarkdown      *string
	ExtractedRecords []Record
	Degraded         error
	Page             PageInfo
	Usage            *LLMUsage
}

// MarkdownResult builds a successful text result.
func MarkdownResult(page *LoadedPage, markdown string) *PipelineResult {
	return &PipelineResult{Succeeded: true, RawMarkdown: &markdown, Page: page.Info()}
}

// RecordsResult builds a successful structured result. A nil slice is
// normalized to an empty one so zero records still count as "records".
func RecordsResult(page *LoadedPage, records []Record) *PipelineResult {
	if records == nil {
		records = []Record{}
	}
	return &PipelineResult{Succeeded: true, ExtractedRecords: records, Page: page.Info()}
}

// DegradedResult builds a structured result whose records could not be
// parsed; the page markdown is kept so the output is not lost.
func DegradedResult(page *LoadedPage, markdown string, cause error) *PipelineResult {
	return &PipelineResult{Succeeded: true, RawMarkdown: &markdown, Degraded: cause, Page: page.Info()}
}

// FailedResult records a run that produced no output.
func FailedResult(err error) *PipelineResult {
	r := &PipelineResult{Succeeded: false}
	if err != nil {
		r.ErrorDetail = err.Error()
	}
	return r
}

// Markdown returns the raw markdown or "".
func (r *PipelineResult) Markdown() string {
	if r == nil || r.RawMarkdown == nil {
		return ""
	}
	return *r.RawMarkdown
}

// Check verifies the payload invariant.
func (r *PipelineResult) Check() error {
	if r == nil {
		return NewScrapeError(ErrCodeInternal, "strategy returned no result", nil)
	}
	if !r.Succeeded {
		if r.RawMarkdown != nil || r.ExtractedRecords != nil {
			return NewScrapeError(ErrCodeInternal, "failed result must not carry a payload", nil)
		}
		return nil
	}
	hasText, hasRecords := r.RawMarkdown != nil, r.ExtractedRecords != nil
	if hasText == hasRecords {
		return NewScrapeError(ErrCodeInternal, "result must carry exactly one of markdown or records", nil)
	}
	if r.Degraded != nil && !hasText {
		return NewScrapeError(ErrCodeInternal, "degraded result must carry the page markdown", nil)
	}
	return nil
}
