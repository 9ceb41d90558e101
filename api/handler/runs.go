package handler

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/semaphore"

	"github.com/use-agent/pagepipe/config"
	"github.com/use-agent/pagepipe/llm"
	"github.com/use-agent/pagepipe/metrics"
	"github.com/use-agent/pagepipe/models"
	"github.com/use-agent/pagepipe/pipeline"
	"github.com/use-agent/pagepipe/sink"
)

// Runs admits pipeline runs for the HTTP handlers. Every admitted request
// gets its own browser session; at most MaxConcurrentRuns are alive at once.
type Runs struct {
	launcher pipeline.Launcher
	cfg      *config.Config
	metrics  *metrics.Metrics

	// chat replaces the per-request LLM client when set.
	chat llm.ChatClient

	sem    *semaphore.Weighted
	limit  int
	active atomic.Int64
}

// NewRuns returns a Runs bounded by cfg.Server.MaxConcurrentRuns.
// m may be nil.
func NewRuns(launcher pipeline.Launcher, cfg *config.Config, m *metrics.Metrics) *Runs {
	limit := cfg.Server.MaxConcurrentRuns
	if limit <= 0 {
		limit = 1
	}
	return &Runs{
		launcher: launcher,
		cfg:      cfg,
		metrics:  m,
		sem:      semaphore.NewWeighted(int64(limit)),
		limit:    limit,
	}
}

// WithChatClient makes extract runs use client instead of dialing the
// configured endpoint.
func (r *Runs) WithChatClient(client llm.ChatClient) *Runs {
	r.chat = client
	return r
}

// ChatClient returns the client set by WithChatClient, or nil.
func (r *Runs) ChatClient() llm.ChatClient { return r.chat }

// Stats reports the concurrency bound and current load.
func (r *Runs) Stats() models.RunStats {
	return models.RunStats{MaxConcurrent: r.limit, Active: r.active.Load()}
}

// Run waits for a slot, then runs req to completion and returns the report
// with the encoded result.
func (r *Runs) Run(ctx context.Context, req models.ExtractionRequest, policy models.PageLoadPolicy) (*pipeline.Report, []byte, error) {
	if err := r.sem.Acquire(ctx, 1); err != nil {
		return nil, nil, models.NewScrapeError(models.ErrCodeCanceled, "request ended while waiting for a free browser", err)
	}
	defer r.sem.Release(1)

	r.active.Add(1)
	defer r.active.Add(-1)

	mem := sink.NewMemorySink()
	runner := &pipeline.Runner{
		Launcher: r.launcher,
		Sink:     mem,
		Policy:   policy,
		Browser: models.BrowserOptions{
			Headless: r.cfg.Browser.Headless,
			Verbose:  r.cfg.Browser.Verbose,
		},
	}
	if r.metrics != nil {
		defer r.metrics.Track()()
		runner.Observer = r.metrics.Observer(nil)
	}

	rep, err := runner.Run(ctx, req, models.OutputDestination{Path: "response"})
	if err != nil {
		return rep, nil, err
	}
	_, data := mem.Last()
	return rep, data, nil
}
