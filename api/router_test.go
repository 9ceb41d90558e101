package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/pagepipe/api/handler"
	"github.com/use-agent/pagepipe/config"
	"github.com/use-agent/pagepipe/metrics"
	"github.com/use-agent/pagepipe/models"
	"github.com/use-agent/pagepipe/pipeline/pipelinetest"
)

const examplePage = `<html><head><title>Example Domain</title></head><body>
<h1>Example Domain</h1><p>This domain is for use in examples.</p></body></html>`

type testServer struct {
	handler  http.Handler
	launcher *pipelinetest.FakeLauncher
	chat     *pipelinetest.FakeChat
	registry *prometheus.Registry
}

func newTestServer(t *testing.T, mutate func(*config.Config)) *testServer {
	t.Helper()
	cfg := &config.Config{
		Server:    config.ServerConfig{Mode: "test", MaxConcurrentRuns: 2},
		Browser:   config.BrowserConfig{Headless: true},
		Scraper:   config.ScraperConfig{WaitUntil: string(models.NetworkIdle)},
		RateLimit: config.RateLimitConfig{RequestsPerSecond: 1000, Burst: 1000},
		LLM:       config.LLMConfig{APIKey: "server-key", Model: "gemini-2.5-flash"},
	}
	if mutate != nil {
		mutate(cfg)
	}
	base, err := cfg.Scraper.Policy()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	reg := prometheus.NewRegistry()
	launcher := pipelinetest.NewFakeLauncher(examplePage)
	chat := &pipelinetest.FakeChat{}
	runs := handler.NewRuns(launcher, cfg, metrics.New(reg)).WithChatClient(chat)

	return &testServer{
		handler:  NewRouter(ctx, runs, cfg, base, reg, time.Now()),
		launcher: launcher,
		chat:     chat,
		registry: reg,
	}
}

func (s *testServer) do(method, path, body string, headers ...string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &v), rr.Body.String())
	return v
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, nil)

	rr := s.do(http.MethodGet, "/api/v1/health", "")
	require.Equal(t, http.StatusOK, rr.Code)

	resp := decode[models.HealthResponse](t, rr)
	assert.Equal(t, "healthy", resp.Status)
	assert.Equal(t, 2, resp.Runs.MaxConcurrent)
	assert.Zero(t, resp.Runs.Active)
}

func TestScrapeReturnsMarkdown(t *testing.T) {
	s := newTestServer(t, nil)
	s.launcher.Session.Page.LoadDuration = 1500 * time.Millisecond

	rr := s.do(http.MethodPost, "/api/v1/scrape", `{"url":"https://example.com","settle_delay_ms":100}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	resp := decode[models.ScrapeResponse](t, rr)
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, 200, resp.StatusCode)
	assert.Equal(t, "https://example.com", resp.FinalURL)
	assert.Contains(t, resp.Content, "This domain is for use in examples.")
	assert.Positive(t, resp.Tokens.ContentEstimate)
	assert.Equal(t, int64(1500), resp.Timing.PageLoadMs)

	policy := s.launcher.Session.LastPolicy()
	assert.Equal(t, 100*time.Millisecond, policy.SettleDelay)
	assert.Equal(t, models.NetworkIdle, policy.Quiescence)
	assert.Equal(t, 1, s.launcher.Session.Released())
}

func TestScrapeZeroSettleDelayOverridesDefault(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.Scraper.SettleDelay = 2 * time.Second })

	rr := s.do(http.MethodPost, "/api/v1/scrape", `{"url":"https://example.com","settle_delay_ms":0}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Zero(t, s.launcher.Session.LastPolicy().SettleDelay)

	rr = s.do(http.MethodPost, "/api/v1/scrape", `{"url":"https://example.com"}`)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, 2*time.Second, s.launcher.Session.LastPolicy().SettleDelay)
}

func TestScrapeRejectsBadInputWithoutLaunching(t *testing.T) {
	s := newTestServer(t, nil)

	for _, body := range []string{
		`{"url":"/relative/path"}`,
		`{"url":"ftp://example.com/file"}`,
		`{"url":"https://example.com","wait_until":"whenever"}`,
		`not json`,
	} {
		rr := s.do(http.MethodPost, "/api/v1/scrape", body)
		assert.Equal(t, http.StatusBadRequest, rr.Code, body)

		resp := decode[models.ScrapeResponse](t, rr)
		assert.False(t, resp.Success)
		require.NotNil(t, resp.Error, body)
	}
	assert.Zero(t, s.launcher.Acquired())
}

func TestScrapeNavigationTimeout(t *testing.T) {
	s := newTestServer(t, nil)
	s.launcher.Session.NavigateErr = models.NewScrapeError(models.ErrCodeTimeout, "navigation timed out", nil)

	rr := s.do(http.MethodPost, "/api/v1/scrape", `{"url":"https://example.com"}`)
	assert.Equal(t, http.StatusGatewayTimeout, rr.Code)

	resp := decode[models.ScrapeResponse](t, rr)
	assert.Equal(t, models.ErrCodeTimeout, resp.Error.Code)
	assert.NotEmpty(t, resp.RunID)
	assert.Equal(t, 1, s.launcher.Session.Released())
}

const extractBody = `{
	"url": "https://www.reddit.com/r/internships/new/",
	"instruction": "Extract every post.",
	"schema": {"fields": [{"name": "title", "required": true}, {"name": "author", "required": true}]}
}`

func TestExtractReturnsOrderedRecords(t *testing.T) {
	s := newTestServer(t, nil)
	s.chat.Reply = `[{"author":"u/alice","title":"Summer SWE intern"}]`

	rr := s.do(http.MethodPost, "/api/v1/extract", extractBody)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	body := rr.Body.String()
	assert.Less(t, strings.Index(body, `"title"`), strings.Index(body, `"author"`))

	var resp struct {
		Success bool             `json:"success"`
		Posts   []map[string]any `json:"posts"`
		Usage   *models.LLMUsage `json:"llm_usage"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	require.Len(t, resp.Posts, 1)
	assert.Equal(t, "u/alice", resp.Posts[0]["author"])
	require.NotNil(t, resp.Usage)
	assert.Equal(t, 15, resp.Usage.TotalTokens)
	assert.Equal(t, "gemini-2.5-flash", s.chat.LastRequest().Model)
}

func TestExtractDegradedStillSucceeds(t *testing.T) {
	s := newTestServer(t, nil)
	s.chat.Reply = "not json at all"

	rr := s.do(http.MethodPost, "/api/v1/extract", extractBody)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	resp := decode[models.ExtractResponse](t, rr)
	assert.True(t, resp.Success)
	assert.Empty(t, resp.Records)
	require.NotNil(t, resp.ExtractionError)
	assert.Equal(t, models.ErrCodeExtractionParse, resp.ExtractionError.Code)
	assert.Contains(t, resp.RawMarkdown, "Example Domain")
}

func TestExtractMissingCredential(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.LLM.APIKey = "" })

	rr := s.do(http.MethodPost, "/api/v1/extract", extractBody)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	resp := decode[models.ExtractResponse](t, rr)
	assert.Equal(t, models.ErrCodeCredentialMissing, resp.Error.Code)
	assert.Zero(t, s.launcher.Acquired())
	assert.Zero(t, s.chat.Calls())
}

func TestExtractCallerCredential(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) { c.LLM.APIKey = "" })
	s.chat.Reply = `{"posts":[]}`

	body := strings.Replace(extractBody, `"url"`, `"llm_api_key": "caller-key", "url"`, 1)
	rr := s.do(http.MethodPost, "/api/v1/extract", body)
	assert.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, 1, s.chat.Calls())
}

func TestExtractExcludeSelectors(t *testing.T) {
	s := newTestServer(t, nil)
	s.chat.Reply = `[]`

	body := strings.Replace(extractBody, `"url"`, `"exclude_selectors": ["p"], "url"`, 1)
	rr := s.do(http.MethodPost, "/api/v1/extract", body)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	msgs := s.chat.LastRequest().Messages
	user := msgs[len(msgs)-1].Content
	assert.Contains(t, user, "Example Domain")
	assert.NotContains(t, user, "This domain is for use in examples.")
}

func TestExtractRejectsEmptySchema(t *testing.T) {
	s := newTestServer(t, nil)

	rr := s.do(http.MethodPost, "/api/v1/extract",
		`{"url":"https://example.com","instruction":"x","schema":{"fields":[]}}`)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Zero(t, s.launcher.Acquired())
}

func TestAuth(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) {
		c.Auth = config.AuthConfig{Enabled: true, APIKeys: []string{"secret-1", "secret-2"}}
	})

	rr := s.do(http.MethodPost, "/api/v1/scrape", `{"url":"https://example.com"}`)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = s.do(http.MethodPost, "/api/v1/scrape", `{"url":"https://example.com"}`, "X-API-Key", "wrong")
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = s.do(http.MethodPost, "/api/v1/scrape", `{"url":"https://example.com"}`, "Authorization", "Bearer secret-2")
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = s.do(http.MethodGet, "/api/v1/health", "")
	assert.Equal(t, http.StatusOK, rr.Code, "health is public")
}

func TestRateLimit(t *testing.T) {
	s := newTestServer(t, func(c *config.Config) {
		c.RateLimit = config.RateLimitConfig{RequestsPerSecond: 0.001, Burst: 1}
	})

	rr := s.do(http.MethodPost, "/api/v1/scrape", `{"url":"https://example.com"}`)
	assert.Equal(t, http.StatusOK, rr.Code)

	rr = s.do(http.MethodPost, "/api/v1/scrape", `{"url":"https://example.com"}`)
	assert.Equal(t, http.StatusTooManyRequests, rr.Code)
	assert.Equal(t, 1, s.launcher.Acquired())
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/v1/scrape", `{"url":"https://example.com"}`).Code)

	rr := s.do(http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `pagepipe_runs_total{outcome="ok",strategy="raw_markdown"} 1`)
	assert.Contains(t, rr.Body.String(), `pagepipe_stage_duration_seconds_bucket{stage="navigated"`)
}
