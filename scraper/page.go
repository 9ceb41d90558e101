package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"
	"github.com/go-rod/stealth"
	"github.com/ysmood/gson"

	"github.com/use-agent/pagepipe/models"
)

// Navigate loads targetURL and returns the DOM once policy is satisfied.
//
// Lifecycle (numbered steps match the inline comments):
//
//  1. Timeout guard      – policy.NavigationTimeout bounds every step below
//  2. Stealth injection  – mask navigator.webdriver etc. (before navigation!)
//  3. Extra headers
//  4. Hijack mount       – block configured resource types (before navigation!)
//  5. Arm waiter         – MUST be registered before Navigate to see all requests
//  6. Navigate
//  7. Wait               – the quiescence condition
//  8. Injected script    – best-effort; failures are logged
//  9. Settle delay
//  10. Capture           – HTML, title, final URL, status code
func (s *Session) Navigate(ctx context.Context, targetURL string, policy models.PageLoadPolicy) (*models.LoadedPage, error) {
	if _, err := models.ValidateTargetURL(targetURL); err != nil {
		return nil, err
	}
	policy.Defaults()
	if err := policy.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()

	// ── 1. Timeout guard ──────────────────────────────────────────────
	ctx, cancel := context.WithTimeout(ctx, policy.NavigationTimeout)
	defer cancel()

	// ── 2. Stealth injection ──────────────────────────────────────────
	if policy.Stealth {
		if _, err := s.page.EvalOnNewDocument(stealth.JS); err != nil {
			slog.Warn("stealth injection failed, proceeding without stealth", "error", err)
		}
	}

	// ── 3. Extra headers ──────────────────────────────────────────────
	if len(policy.ExtraHeaders) > 0 {
		if err := (proto.NetworkSetExtraHTTPHeaders{Headers: toHeadersMap(policy.ExtraHeaders)}).Call(s.page); err != nil {
			slog.Warn("failed to set extra headers", "error", err)
		}
	}

	// ── 4. Mount hijack router ────────────────────────────────────────
	router := setupHijack(s.page, policy.BlockedResourceTypes)
	if router != nil {
		defer func() { _ = router.Stop() }()
	}

	p := s.page.Context(ctx)

	// ── 5. Arm the quiescence waiter BEFORE navigation ────────────────
	wait := armWaiter(p, policy, router != nil)

	// ── 6. Navigate ───────────────────────────────────────────────────
	if err := p.Navigate(targetURL); err != nil {
		return nil, categorizeError(ctx, err, "navigation to target URL failed")
	}

	// ── 7. Wait ───────────────────────────────────────────────────────
	wait()
	if err := ctx.Err(); err != nil {
		return nil, categorizeError(ctx, err, fmt.Sprintf("page did not reach %s", policy.Quiescence))
	}

	// ── 8. Injected script ────────────────────────────────────────────
	if strings.TrimSpace(policy.InjectedScript) != "" {
		if err := runScript(p, policy.InjectedScript); err != nil {
			if ctx.Err() != nil {
				return nil, categorizeError(ctx, err, "injected script did not finish")
			}
			slog.Warn("injected script failed, continuing", "url", targetURL, "error", err)
		}
	}

	// ── 9. Settle delay ───────────────────────────────────────────────
	if err := settle(ctx, policy.SettleDelay); err != nil {
		return nil, categorizeError(ctx, err, "settle delay interrupted")
	}

	// ── 10. Capture ───────────────────────────────────────────────────
	rawHTML, err := p.HTML()
	if err != nil {
		return nil, categorizeError(ctx, err, "failed to read page HTML")
	}

	finalURL := evalStringOrEmpty(p, `() => window.location.href`)
	if finalURL == "" {
		finalURL = targetURL
	}

	return &models.LoadedPage{
		RequestedURL: targetURL,
		FinalURL:     finalURL,
		Title:        evalStringOrEmpty(p, `() => document.title`),
		HTML:         rawHTML,
		StatusCode:   navigationStatus(p),
		LoadDuration: time.Since(start),
	}, nil
}

// armWaiter registers the listener for policy.Quiescence and returns the
// function that blocks until it fires.
//
// WaitRequestIdle uses the Fetch domain, which conflicts with HijackRequests
// on Chromium 145+, so a hijacked page waits for the networkIdle lifecycle
// event instead.
func armWaiter(p *rod.Page, policy models.PageLoadPolicy, hijacked bool) func() {
	switch policy.Quiescence {
	case models.DOMContentLoaded:
		return p.WaitNavigation(proto.PageLifecycleEventNameDOMContentLoaded)
	case models.Load:
		return p.WaitNavigation(proto.PageLifecycleEventNameLoad)
	default:
		if hijacked {
			return p.WaitNavigation(proto.PageLifecycleEventNameNetworkIdle)
		}
		return p.WaitRequestIdle(policy.QuiescenceWindow, nil, nil, nil)
	}
}

// navigationStatus reads the main document's HTTP status from the
// Navigation Timing API; 0 when unavailable.
func navigationStatus(p *rod.Page) int {
	res, err := p.Eval(`() => {
		try {
			const entries = performance.getEntriesByType("navigation");
			if (entries.length > 0) return entries[0].responseStatus || 0;
		} catch(e) {}
		return 0;
	}`)
	if err != nil {
		return 0
	}
	return res.Value.Int()
}

// evalStringOrEmpty evaluates a JS function and returns its string result,
// swallowing any errors.
func evalStringOrEmpty(page *rod.Page, js string) string {
	res, err := page.Eval(js)
	if err != nil {
		return ""
	}
	return res.Value.Str()
}

// toHeadersMap converts a plain string map to proto.NetworkHeaders.
func toHeadersMap(headers map[string]string) proto.NetworkHeaders {
	m := make(proto.NetworkHeaders, len(headers))
	for k, v := range headers {
		m[k] = gson.New(v)
	}
	return m
}
