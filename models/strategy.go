package models

import "context"

// BrowserOptions controls how a browser session is started.
type BrowserOptions struct {
	Headless bool
	Verbose  bool
}

// BrowserSession is one running browser with one page. Release must be safe
// to call more than once.
type BrowserSession interface {
	Navigate(ctx context.Context, targetURL string, policy PageLoadPolicy) (*LoadedPage, error)
	Release() error
}

// Strategy converts a loaded page into a PipelineResult.
type Strategy interface {
	Name() string
	Format() OutputFormat
	Extract(ctx context.Context, page *LoadedPage) (*PipelineResult, error)
}

// Preflighter is implemented by strategies that can detect misconfiguration
// before a browser is launched.
type Preflighter interface {
	Preflight() error
}
