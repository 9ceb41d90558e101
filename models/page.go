package models

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// ExtractionRequest pairs a target page with the strategy that turns it into
// output. It is immutable for the duration of a run.
type ExtractionRequest struct {
	TargetURL string
	Strategy  Strategy
}

// Validate checks the request before any browser work happens.
func (r ExtractionRequest) Validate() error {
	if _, err := ValidateTargetURL(r.TargetURL); err != nil {
		return err
	}
	if r.Strategy == nil {
		return NewScrapeError(ErrCodeInvalidInput, "extraction strategy is required", nil)
	}
	return nil
}

// ValidateTargetURL parses raw and requires an absolute http(s) URL with a host.
func ValidateTargetURL(raw string) (*url.URL, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return nil, NewScrapeError(ErrCodeInvalidURL, fmt.Sprintf("cannot parse target url %q", raw), err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, NewScrapeError(ErrCodeInvalidURL, fmt.Sprintf("target url %q must use http or https", raw), nil)
	}
	if u.Host == "" {
		return nil, NewScrapeError(ErrCodeInvalidURL, fmt.Sprintf("target url %q has no host", raw), nil)
	}
	return u, nil
}

// LoadedPage is the DOM snapshot taken once the load policy is satisfied.
type LoadedPage struct {
	RequestedURL string
	FinalURL     string
	Title        string
	HTML         string
	StatusCode   int
	LoadDuration time.Duration
}

// Info returns the page facts carried into a PipelineResult.
func (p *LoadedPage) Info() PageInfo {
	if p == nil {
		return PageInfo{}
	}
	return PageInfo{
		URL:        p.RequestedURL,
		FinalURL:   p.FinalURL,
		Title:      p.Title,
		StatusCode: p.StatusCode,
		LoadMs:     p.LoadDuration.Milliseconds(),
	}
}

// PageInfo describes the page a result was extracted from.
type PageInfo struct {
	URL        string `json:"url"`
	FinalURL   string `json:"final_url"`
	Title      string `json:"title"`
	StatusCode int    `json:"status_code"`

	// LoadMs is the time from navigation start to the end of the settle delay.
	LoadMs int64 `json:"load_ms"`
}
