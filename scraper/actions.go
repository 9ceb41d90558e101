package scraper

import (
	"context"
	"errors"
	"time"

	"github.com/go-rod/rod"

	"github.com/use-agent/pagepipe/models"
)

// runScript evaluates a function body in the page and waits for it,
// including any promise it returns.
func runScript(p *rod.Page, body string) error {
	_, err := p.Eval(wrapScript(body))
	return err
}

// wrapScript turns a function body into an async function expression so the
// body may use top-level await.
func wrapScript(body string) string {
	return "async () => {\n" + body + "\n}"
}

// settle waits d unless ctx ends first.
func settle(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// categorizeError wraps rod and context errors into typed ScrapeErrors.
// ctx is the navigation context; its state decides between timeout and
// cancellation when err itself does not say.
func categorizeError(ctx context.Context, err error, msg string) *models.ScrapeError {
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded):
		return models.NewScrapeError(models.ErrCodeTimeout, msg, err)
	case errors.Is(err, context.Canceled) || errors.Is(ctx.Err(), context.Canceled):
		return models.NewScrapeError(models.ErrCodeCanceled, "navigation canceled", err)
	}

	var navErr *rod.NavigationError
	if errors.As(err, &navErr) {
		return models.NewScrapeError(models.ErrCodeNavigation, msg+": "+navErr.Reason, err)
	}
	return models.NewScrapeError(models.ErrCodeNavigation, msg, err)
}
