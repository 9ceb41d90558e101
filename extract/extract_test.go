package extract

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"testing"

	openai "github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/use-agent/pagepipe/cleaner"
	"github.com/use-agent/pagepipe/models"
)

type fakeChat struct {
	mu    sync.Mutex
	calls int
	last  openai.ChatCompletionRequest
	reply string
	err   error
}

func (f *fakeChat) CreateChatCompletion(_ context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.last = req
	if f.err != nil {
		return openai.ChatCompletionResponse{}, f.err
	}
	return openai.ChatCompletionResponse{
		Choices: []openai.ChatCompletionChoice{{Message: openai.ChatCompletionMessage{Content: f.reply}}},
	}, nil
}

func (f *fakeChat) userMessage() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.last.Messages[len(f.last.Messages)-1].Content
}

var listingPage = &models.LoadedPage{
	RequestedURL: "https://www.reddit.com/r/internships/new/",
	FinalURL:     "https://www.reddit.com/r/internships/new/",
	Title:        "r/internships",
	StatusCode:   200,
	HTML: `<html><body><header>reddit</header>
<div class="posts"><h2>Summer SWE intern</h2><p>by u/alice</p></div>
<footer>legal</footer></body></html>`,
}

func postStrategy(client *fakeChat) *SchemaGuidedLLM {
	return &SchemaGuidedLLM{
		Schema: models.RecordSchema{Fields: []models.FieldSpec{
			{Name: "title", Required: true},
			{Name: "author", Required: true},
			{Name: "upvotes"},
		}},
		Instruction: "Extract every post.",
		Credential:  "test-key",
		Client:      client,
	}
}

func TestRawMarkdownEmptyPage(t *testing.T) {
	s := NewRawMarkdown()
	assert.Equal(t, models.FormatText, s.Format())

	for _, html := range []string{"", "<html><body></body></html>"} {
		res, err := s.Extract(context.Background(), &models.LoadedPage{FinalURL: "https://example.com", HTML: html})
		require.NoError(t, err)
		require.NoError(t, res.Check())
		require.NotNil(t, res.RawMarkdown)
		assert.Equal(t, "", *res.RawMarkdown)
	}
}

func TestRawMarkdownConvertsPage(t *testing.T) {
	res, err := NewRawMarkdown().Extract(context.Background(), listingPage)
	require.NoError(t, err)

	assert.True(t, res.Succeeded)
	assert.Contains(t, res.Markdown(), "## Summer SWE intern")
	assert.Nil(t, res.ExtractedRecords)
	assert.Equal(t, "r/internships", res.Page.Title)
}

func TestSchemaGuidedLLMMissingCredential(t *testing.T) {
	client := &fakeChat{reply: `[]`}
	s := postStrategy(client)
	s.Credential = ""

	assert.ErrorIs(t, s.Preflight(), models.ErrCredentialMissing)

	_, err := s.Extract(context.Background(), listingPage)
	assert.ErrorIs(t, err, models.ErrCredentialMissing)
	assert.Zero(t, client.calls)
}

func TestSchemaGuidedLLMPreflightRejectsBadConfig(t *testing.T) {
	s := postStrategy(&fakeChat{})
	s.CSSSelector = "[["
	assert.ErrorIs(t, s.Preflight(), models.ErrInvalidConfig)

	s = postStrategy(&fakeChat{})
	s.ExcludeSelectors = []string{"nav", "[["}
	assert.ErrorIs(t, s.Preflight(), models.ErrInvalidConfig)

	s = postStrategy(&fakeChat{})
	s.Schema = models.RecordSchema{}
	assert.ErrorIs(t, s.Preflight(), models.ErrInvalidConfig)
}

func TestSchemaGuidedLLMRecords(t *testing.T) {
	client := &fakeChat{reply: `{"posts":[{"author":"u/alice","title":"Summer SWE intern","flair":"Hiring"}]}`}
	s := postStrategy(client)
	assert.Equal(t, models.FormatJSON, s.Format())

	res, err := s.Extract(context.Background(), listingPage)
	require.NoError(t, err)
	require.NoError(t, res.Check())

	assert.True(t, res.Succeeded)
	assert.Nil(t, res.RawMarkdown)
	assert.NoError(t, res.Degraded)
	require.Len(t, res.ExtractedRecords, 1)

	raw, err := json.Marshal(res.ExtractedRecords[0])
	require.NoError(t, err)
	assert.Equal(t, `{"title":"Summer SWE intern","author":"u/alice","flair":"Hiring"}`, string(raw))

	assert.Equal(t, 1, client.calls)
	assert.Equal(t, "gemini-2.5-flash", client.last.Model)
	assert.Contains(t, client.userMessage(), "Summer SWE intern")
}

func TestSchemaGuidedLLMZeroRecords(t *testing.T) {
	res, err := postStrategy(&fakeChat{reply: `{"message":"nothing found"}`}).Extract(context.Background(), listingPage)
	require.NoError(t, err)

	require.NotNil(t, res.ExtractedRecords)
	assert.Empty(t, res.ExtractedRecords)
	assert.Nil(t, res.RawMarkdown)
}

func TestSchemaGuidedLLMMalformedOutputDegrades(t *testing.T) {
	res, err := postStrategy(&fakeChat{reply: `{"posts": [{"title": "Summer`}).Extract(context.Background(), listingPage)
	require.NoError(t, err)
	require.NoError(t, res.Check())

	assert.True(t, res.Succeeded)
	assert.ErrorIs(t, res.Degraded, models.ErrExtractionParse)
	assert.Nil(t, res.ExtractedRecords)
	assert.Contains(t, res.Markdown(), "Summer SWE intern")
}

func TestSchemaGuidedLLMEmptyOutputDegrades(t *testing.T) {
	res, err := postStrategy(&fakeChat{reply: ""}).Extract(context.Background(), listingPage)
	require.NoError(t, err)

	assert.ErrorIs(t, res.Degraded, models.ErrNoContent)
	assert.Contains(t, res.Markdown(), "Summer SWE intern")
}

func TestSchemaGuidedLLMTransportFailureIsFatal(t *testing.T) {
	client := &fakeChat{err: &openai.APIError{HTTPStatusCode: http.StatusUnauthorized, Message: "API key not valid"}}

	res, err := postStrategy(client).Extract(context.Background(), listingPage)
	assert.Nil(t, res)
	assert.ErrorIs(t, err, models.ErrLLMAuthFailure)
}

func TestSchemaGuidedLLMNarrowsInput(t *testing.T) {
	client := &fakeChat{reply: `[]`}
	s := postStrategy(client)
	s.CSSSelector = "div.posts"

	_, err := s.Extract(context.Background(), listingPage)
	require.NoError(t, err)

	msg := client.userMessage()
	assert.Contains(t, msg, "Summer SWE intern")
	assert.NotContains(t, msg, "legal")
}

func TestSchemaGuidedLLMExcludesSelectors(t *testing.T) {
	client := &fakeChat{reply: `[]`}
	s := postStrategy(client)
	s.ExcludeSelectors = []string{"header", "footer"}

	_, err := s.Extract(context.Background(), listingPage)
	require.NoError(t, err)

	msg := client.userMessage()
	assert.Contains(t, msg, "Summer SWE intern")
	assert.NotContains(t, msg, "legal")
	assert.NotContains(t, msg, "reddit")
}

func TestSchemaGuidedLLMTruncatesInput(t *testing.T) {
	client := &fakeChat{reply: `[]`}
	s := postStrategy(client)
	s.MaxInputTokens = 3

	_, err := s.Extract(context.Background(), listingPage)
	require.NoError(t, err)
	assert.LessOrEqual(t, cleaner.EstimateTokens(client.userMessage()), 3)
}
