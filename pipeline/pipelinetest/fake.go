// Package pipelinetest provides in-memory launchers, sessions and sinks for
// exercising the pipeline without a browser.
package pipelinetest

import (
	"context"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/use-agent/pagepipe/models"
)

// FakeSession serves a canned page.
type FakeSession struct {
	Page        *models.LoadedPage
	NavigateErr error
	ReleaseErr  error

	// OnNavigate runs before the page is returned; tests use it to cancel
	// the run mid-flight.
	OnNavigate func()

	mu         sync.Mutex
	navigated  int
	released   int
	lastURL    string
	lastPolicy models.PageLoadPolicy
}

func (s *FakeSession) Navigate(ctx context.Context, targetURL string, policy models.PageLoadPolicy) (*models.LoadedPage, error) {
	s.mu.Lock()
	s.navigated++
	s.lastURL = targetURL
	s.lastPolicy = policy
	s.mu.Unlock()

	if s.OnNavigate != nil {
		s.OnNavigate()
	}
	if s.NavigateErr != nil {
		return nil, s.NavigateErr
	}
	page := *s.Page
	if page.RequestedURL == "" {
		page.RequestedURL = targetURL
	}
	if page.FinalURL == "" {
		page.FinalURL = targetURL
	}
	return &page, nil
}

func (s *FakeSession) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.released++
	return s.ReleaseErr
}

// Navigated returns how many times Navigate was called.
func (s *FakeSession) Navigated() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.navigated
}

// Released returns how many times Release was called.
func (s *FakeSession) Released() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// LastURL returns the target of the last Navigate call.
func (s *FakeSession) LastURL() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastURL
}

// LastPolicy returns the policy passed to the last Navigate call.
func (s *FakeSession) LastPolicy() models.PageLoadPolicy {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastPolicy
}

// FakeLauncher hands out Session on every Acquire.
type FakeLauncher struct {
	Session    *FakeSession
	AcquireErr error

	mu       sync.Mutex
	acquired int
	lastOpts models.BrowserOptions
}

// NewFakeLauncher returns a launcher whose session serves html with status 200.
func NewFakeLauncher(html string) *FakeLauncher {
	return &FakeLauncher{Session: &FakeSession{Page: &models.LoadedPage{HTML: html, StatusCode: 200}}}
}

func (l *FakeLauncher) Acquire(ctx context.Context, opts models.BrowserOptions) (models.BrowserSession, error) {
	l.mu.Lock()
	l.acquired++
	l.lastOpts = opts
	l.mu.Unlock()

	if l.AcquireErr != nil {
		return nil, l.AcquireErr
	}
	return l.Session, nil
}

// Acquired returns how many times Acquire was called.
func (l *FakeLauncher) Acquired() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.acquired
}

// LastOptions returns the options passed to the last Acquire call.
func (l *FakeLauncher) LastOptions() models.BrowserOptions {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastOpts
}

// FakeSink records persisted results.
type FakeSink struct {
	Err error

	mu      sync.Mutex
	results []*models.PipelineResult
	dests   []models.OutputDestination
}

func (s *FakeSink) Persist(result *models.PipelineResult, dest models.OutputDestination) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.results = append(s.results, result)
	s.dests = append(s.dests, dest)
	return nil
}

// Persisted returns how many results were written.
func (s *FakeSink) Persisted() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.results)
}

// LastDestination returns the destination of the last write.
func (s *FakeSink) LastDestination() models.OutputDestination {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.dests) == 0 {
		return models.OutputDestination{}
	}
	return s.dests[len(s.dests)-1]
}

// FakeChat is a chat completion client that always returns Reply or Err.
type FakeChat struct {
	Reply string
	Err   error

	mu    sync.Mutex
	calls int
	last  openai.ChatCompletionRequest
}

func (c *FakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls++
	c.last = req
	if c.Err != nil {
		return openai.ChatCompletionResponse{}, c.Err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: c.Reply}}},
		Usage:   openai.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15},
	}, nil
}

// Calls returns how many completions were requested.
func (c *FakeChat) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// LastRequest returns the last completion request.
func (c *FakeChat) LastRequest() openai.ChatCompletionRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.last
}

// FakeStrategy returns Result or Err from Extract.
type FakeStrategy struct {
	Result *models.PipelineResult
	Err    error
	Fmt    models.OutputFormat
}

func (s *FakeStrategy) Name() string { return "fake" }

func (s *FakeStrategy) Format() models.OutputFormat {
	if s.Fmt == "" {
		return models.FormatText
	}
	return s.Fmt
}

func (s *FakeStrategy) Extract(ctx context.Context, page *models.LoadedPage) (*models.PipelineResult, error) {
	if s.Err != nil {
		return nil, s.Err
	}
	if s.Result != nil {
		return s.Result, nil
	}
	return models.MarkdownResult(page, page.HTML), nil
}
