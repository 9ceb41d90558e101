package models

import (
	"fmt"
	"strings"
	"time"
)

// QuiescenceCondition names the page event that counts as "loaded enough".
type QuiescenceCondition string

const (
	NetworkIdle      QuiescenceCondition = "networkidle"
	DOMContentLoaded QuiescenceCondition = "domcontentloaded"
	Load             QuiescenceCondition = "load"
)

// ParseQuiescence maps a user-supplied name onto a QuiescenceCondition.
func ParseQuiescence(s string) (QuiescenceCondition, error) {
	switch QuiescenceCondition(strings.ToLower(strings.TrimSpace(s))) {
	case NetworkIdle:
		return NetworkIdle, nil
	case DOMContentLoaded:
		return DOMContentLoaded, nil
	case Load:
		return Load, nil
	}
	return "", NewScrapeError(ErrCodeInvalidConfig,
		fmt.Sprintf("unknown wait condition %q (want networkidle, domcontentloaded or load)", s), nil)
}

const (
	DefaultQuiescenceWindow  = 500 * time.Millisecond
	DefaultNavigationTimeout = 30 * time.Second
)

// PageLoadPolicy describes how a page is loaded before its content is read.
//
// The settle delay always runs after the quiescence condition is met and after
// the injected script has finished. NavigationTimeout bounds the whole
// sequence, so it must leave room for the script and the settle delay.
type PageLoadPolicy struct {
	Quiescence  QuiescenceCondition
	SettleDelay time.Duration

	// InjectedScript is a function body evaluated in the page after
	// quiescence. It may use top-level await.
	InjectedScript string

	// QuiescenceWindow is how long the network must stay idle for NetworkIdle.
	QuiescenceWindow  time.Duration
	NavigationTimeout time.Duration

	Stealth              bool
	ExtraHeaders         map[string]string
	BlockedResourceTypes []string
}

// DefaultPolicy returns a network-idle policy with no settle delay.
func DefaultPolicy() PageLoadPolicy {
	return PageLoadPolicy{
		Quiescence:        NetworkIdle,
		QuiescenceWindow:  DefaultQuiescenceWindow,
		NavigationTimeout: DefaultNavigationTimeout,
	}
}

// Defaults fills unset fields.
func (p *PageLoadPolicy) Defaults() {
	if p.Quiescence == "" {
		p.Quiescence = NetworkIdle
	}
	if p.QuiescenceWindow <= 0 {
		p.QuiescenceWindow = DefaultQuiescenceWindow
	}
	if p.NavigationTimeout <= 0 {
		p.NavigationTimeout = DefaultNavigationTimeout
	}
}

// Validate rejects policies that cannot be executed.
func (p PageLoadPolicy) Validate() error {
	if _, err := ParseQuiescence(string(p.Quiescence)); err != nil {
		return err
	}
	if p.SettleDelay < 0 {
		return NewScrapeError(ErrCodeInvalidConfig, "settle delay must not be negative", nil)
	}
	if p.QuiescenceWindow < 0 || p.NavigationTimeout < 0 {
		return NewScrapeError(ErrCodeInvalidConfig, "timeouts must not be negative", nil)
	}
	if p.NavigationTimeout > 0 && p.SettleDelay >= p.NavigationTimeout {
		return NewScrapeError(ErrCodeInvalidConfig,
			fmt.Sprintf("settle delay %s leaves no time inside navigation timeout %s", p.SettleDelay, p.NavigationTimeout), nil)
	}
	return nil
}
