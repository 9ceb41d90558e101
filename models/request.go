package models

import "time"

// ScrapeRequest is the payload for POST /api/v1/scrape.
type ScrapeRequest struct {
	// URL is the target page to scrape. Required.
	URL string `json:"url" binding:"required,url"`

	// WaitUntil selects the quiescence condition.
	// Allowed: "networkidle" (default), "domcontentloaded", "load".
	WaitUntil string `json:"wait_until,omitempty" binding:"omitempty,oneof=networkidle domcontentloaded load"`

	// SettleDelayMs is an extra fixed wait after quiescence and after Script.
	// Unset keeps the configured delay; 0 disables it.
	SettleDelayMs *int `json:"settle_delay_ms,omitempty" binding:"omitempty,min=0,max=30000"`

	// Script is a JS function body run in the page once it is quiescent,
	// e.g. to scroll lazy-loaded content into view.
	Script string `json:"script,omitempty"`

	// Timeout is the navigation ceiling in seconds.
	// Default: 30. Max: 120.
	Timeout int `json:"timeout,omitempty" binding:"omitempty,min=1,max=120"`

	// Stealth enables anti-bot-detection evasions (e.g. navigator.webdriver masking).
	Stealth bool `json:"stealth,omitempty"`

	// Headers are sent with every request the page makes.
	Headers map[string]string `json:"headers,omitempty"`
}

// Defaults applies default values to unset fields.
func (r *ScrapeRequest) Defaults() {
	if r.WaitUntil == "" {
		r.WaitUntil = string(NetworkIdle)
	}
	if r.Timeout == 0 {
		r.Timeout = 30
	}
}

// Policy layers the request's options over base.
func (r *ScrapeRequest) Policy(base PageLoadPolicy) PageLoadPolicy {
	p := base
	if r.WaitUntil != "" {
		p.Quiescence = QuiescenceCondition(r.WaitUntil)
	}
	if r.SettleDelayMs != nil {
		p.SettleDelay = time.Duration(*r.SettleDelayMs) * time.Millisecond
	}
	if r.Script != "" {
		p.InjectedScript = r.Script
	}
	if r.Timeout > 0 {
		p.NavigationTimeout = time.Duration(r.Timeout) * time.Second
	}
	p.Stealth = p.Stealth || r.Stealth
	if len(r.Headers) > 0 {
		p.ExtraHeaders = r.Headers
	}
	p.Defaults()
	return p
}
