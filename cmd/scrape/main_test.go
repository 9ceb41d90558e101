package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/pagepipe/models"
	"github.com/use-agent/pagepipe/pipeline"
	"github.com/use-agent/pagepipe/pipeline/pipelinetest"
)

const examplePage = `<html><head><title>Example Domain</title></head><body>
<h1>Example Domain</h1><p>This domain is for use in examples.</p></body></html>`

func runScrape(t *testing.T, launcher pipeline.Launcher, args ...string) (int, string) {
	t.Helper()
	t.Chdir(t.TempDir())
	var stdout, stderr bytes.Buffer
	code := run(context.Background(), args, &stdout, &stderr, launcher)
	return code, stdout.String()
}

func TestMissingURLPrintsUsage(t *testing.T) {
	launcher := pipelinetest.NewFakeLauncher(examplePage)

	code, out := runScrape(t, launcher)

	assert.Equal(t, pipeline.ExitUsage, code)
	assert.Contains(t, out, "Usage: scrape <url> [output_file]")
	assert.Contains(t, out, "Example: scrape https://example.com output.md")
	assert.Zero(t, launcher.Acquired())
}

func TestTooManyArgs(t *testing.T) {
	launcher := pipelinetest.NewFakeLauncher(examplePage)

	code, out := runScrape(t, launcher, "https://example.com", "a.md", "extra")

	assert.Equal(t, pipeline.ExitUsage, code)
	assert.Contains(t, out, "Usage:")
	assert.Zero(t, launcher.Acquired())
}

func TestScrapeDefaultFilename(t *testing.T) {
	launcher := pipelinetest.NewFakeLauncher(examplePage)

	code, out := runScrape(t, launcher, "https://example.com")

	require.Equal(t, pipeline.ExitOK, code, out)
	assert.Contains(t, out, "Scraping: https://example.com\n")
	assert.Contains(t, out, "Success! Saved to example_com.md\n")
	assert.Regexp(t, `Content length: \d+ characters`, out)

	got, err := os.ReadFile("example_com.md")
	require.NoError(t, err)
	assert.Contains(t, string(got), "This domain is for use in examples.")
	assert.Equal(t, 1, launcher.Session.Released())
}

func TestScrapeExplicitOutput(t *testing.T) {
	launcher := pipelinetest.NewFakeLauncher(examplePage)

	code, out := runScrape(t, launcher, "https://example.com", "page.md")

	require.Equal(t, pipeline.ExitOK, code, out)
	assert.Contains(t, out, "Success! Saved to page.md")
	assert.FileExists(t, "page.md")
	assert.NoFileExists(t, "example_com.md")
}

func TestScrapeFlagsReachPolicy(t *testing.T) {
	launcher := pipelinetest.NewFakeLauncher(examplePage)

	code, out := runScrape(t, launcher,
		"--wait-until", "load", "--delay", "500ms", "--timeout", "10s", "--headless=false",
		"https://example.com")
	require.Equal(t, pipeline.ExitOK, code, out)

	policy := launcher.Session.LastPolicy()
	assert.Equal(t, models.Load, policy.Quiescence)
	assert.Equal(t, 500*time.Millisecond, policy.SettleDelay)
	assert.Equal(t, 10*time.Second, policy.NavigationTimeout)
	assert.False(t, launcher.LastOptions().Headless)
}

func TestScrapeBadWaitUntil(t *testing.T) {
	launcher := pipelinetest.NewFakeLauncher(examplePage)

	code, out := runScrape(t, launcher, "--wait-until", "whenever", "https://example.com")

	assert.Equal(t, pipeline.ExitUsage, code)
	assert.Contains(t, out, "Failed:")
	assert.Zero(t, launcher.Acquired())
}

func TestScrapeInvalidURL(t *testing.T) {
	launcher := pipelinetest.NewFakeLauncher(examplePage)

	code, out := runScrape(t, launcher, "/relative/path")

	assert.Equal(t, pipeline.ExitUsage, code)
	assert.Contains(t, out, "Failed:")
	assert.Contains(t, out, models.ErrCodeInvalidURL)
	assert.Zero(t, launcher.Acquired())
}

func TestScrapeNavigationFailure(t *testing.T) {
	launcher := pipelinetest.NewFakeLauncher(examplePage)
	launcher.Session.NavigateErr = models.NewScrapeError(models.ErrCodeNavigation, "net::ERR_NAME_NOT_RESOLVED", nil)

	code, out := runScrape(t, launcher, "https://no-such-host.invalid")

	assert.Equal(t, pipeline.ExitScrapeError, code)
	assert.Contains(t, out, "Scraping: https://no-such-host.invalid")
	assert.Contains(t, out, "Failed: NAVIGATION_NETWORK")
	assert.NoFileExists(t, "no-such-host_invalid.md")
	assert.Equal(t, 1, launcher.Session.Released())
}

func TestScrapeWriteFailure(t *testing.T) {
	launcher := pipelinetest.NewFakeLauncher(examplePage)

	code, out := runScrape(t, launcher, "https://example.com", filepath.Join("missing", "dir", "out.md"))

	assert.Equal(t, pipeline.ExitWriteError, code)
	assert.Contains(t, out, "Failed: IO_WRITE_FAILED")
	assert.Equal(t, 1, launcher.Session.Released())
}
