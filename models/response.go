package models

// ScrapeResponse is the response for POST /api/v1/scrape.
type ScrapeResponse struct {
	// Success indicates whether the run reached Done.
	Success bool `json:"success"`

	// RunID identifies the run in logs.
	RunID string `json:"run_id"`

	// StatusCode is the HTTP status code from the scraped page.
	StatusCode int `json:"status_code"`

	// FinalURL is the URL after following all redirects.
	FinalURL string `json:"final_url"`

	Title string `json:"title"`

	// Content is the page rendered as markdown.
	Content string `json:"content"`

	Tokens TokenInfo  `json:"tokens"`
	Timing TimingInfo `json:"timing"`

	// Error is populated only when Success is false.
	Error *ErrorDetail `json:"error,omitempty"`
}

// TokenInfo estimates how much model context the content would use.
type TokenInfo struct {
	ContentEstimate int `json:"content_estimate"`
}

// TimingInfo breaks down the time spent in each pipeline stage.
type TimingInfo struct {
	TotalMs      int64 `json:"total_ms"`
	LaunchMs     int64 `json:"launch_ms"`
	NavigationMs int64 `json:"navigation_ms"`
	PageLoadMs   int64 `json:"page_load_ms"`
	ExtractionMs int64 `json:"extraction_ms"`
}

// HealthResponse is the response for GET /api/v1/health.
type HealthResponse struct {
	Status  string   `json:"status"` // "healthy" or "saturated"
	Uptime  string   `json:"uptime"`
	Runs    RunStats `json:"runs"`
	Version string   `json:"version"`
}

// RunStats reports how many pipeline runs are in flight.
type RunStats struct {
	MaxConcurrent int   `json:"max_concurrent"`
	Active        int64 `json:"active"`
}
