package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScrapeErrorIsMatchesByCode(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	err := fmt.Errorf("navigate: %w", NewScrapeError(ErrCodeNavigation, "navigation failed", cause))

	assert.ErrorIs(t, err, ErrNavigationNetwork)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrNavigationTimeout)
	assert.Equal(t, NavigationNetworkFailure, NavigationKind(err))
}

func TestNavigationKind(t *testing.T) {
	tests := []struct {
		err  error
		want NavigationFailure
	}{
		{NewScrapeError(ErrCodeTimeout, "slow", nil), NavigationTimeout},
		{NewScrapeError(ErrCodeInvalidURL, "bad", nil), NavigationInvalidURL},
		{NewScrapeError(ErrCodeIOWrite, "disk", nil), ""},
		{errors.New("plain"), ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NavigationKind(tt.err), tt.err.Error())
	}
}

func TestAsScrapeErrorWrapsPlainErrors(t *testing.T) {
	se := AsScrapeError(errors.New("boom"), ErrCodeInternal)
	require.NotNil(t, se)
	assert.Equal(t, ErrCodeInternal, se.Code)

	orig := NewScrapeError(ErrCodeIOWrite, "disk full", nil)
	assert.Same(t, orig, AsScrapeError(fmt.Errorf("wrapped: %w", orig), ErrCodeInternal))
	assert.Nil(t, AsScrapeError(nil, ErrCodeInternal))
}

func TestValidateTargetURL(t *testing.T) {
	tests := []struct {
		raw string
		ok  bool
	}{
		{"https://example.com", true},
		{"http://example.com:8080/path?q=1", true},
		{"  https://www.reddit.com/r/internships/new/  ", true},
		{"/relative/path", false},
		{"example.com", false},
		{"ftp://example.com/file", false},
		{"https://", false},
		{"", false},
	}
	for _, tt := range tests {
		_, err := ValidateTargetURL(tt.raw)
		if tt.ok {
			assert.NoError(t, err, tt.raw)
			continue
		}
		assert.ErrorIs(t, err, ErrInvalidURL, tt.raw)
	}
}

func TestExtractionRequestRequiresStrategy(t *testing.T) {
	err := ExtractionRequest{TargetURL: "https://example.com"}.Validate()
	var se *ScrapeError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, ErrCodeInvalidInput, se.Code)
}

func TestParseQuiescence(t *testing.T) {
	for in, want := range map[string]QuiescenceCondition{
		"networkidle":      NetworkIdle,
		"NetworkIdle":      NetworkIdle,
		"domcontentloaded": DOMContentLoaded,
		" load ":           Load,
	} {
		got, err := ParseQuiescence(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got)
	}

	_, err := ParseQuiescence("whenever")
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestPageLoadPolicyValidate(t *testing.T) {
	p := DefaultPolicy()
	p.SettleDelay = 5 * time.Second
	require.NoError(t, p.Validate())

	neg := DefaultPolicy()
	neg.SettleDelay = -time.Second
	assert.ErrorIs(t, neg.Validate(), ErrInvalidConfig)

	unknown := DefaultPolicy()
	unknown.Quiescence = "eventually"
	assert.ErrorIs(t, unknown.Validate(), ErrInvalidConfig)

	tooLong := DefaultPolicy()
	tooLong.SettleDelay = tooLong.NavigationTimeout
	assert.ErrorIs(t, tooLong.Validate(), ErrInvalidConfig)
}

func TestPageLoadPolicyDefaults(t *testing.T) {
	var p PageLoadPolicy
	p.Defaults()
	assert.Equal(t, NetworkIdle, p.Quiescence)
	assert.Equal(t, DefaultQuiescenceWindow, p.QuiescenceWindow)
	assert.Equal(t, DefaultNavigationTimeout, p.NavigationTimeout)
	assert.Zero(t, p.SettleDelay)
}

func TestScrapeRequestPolicy(t *testing.T) {
	delay := 1500
	req := ScrapeRequest{URL: "https://example.com", WaitUntil: "load", SettleDelayMs: &delay, Timeout: 45}
	p := req.Policy(DefaultPolicy())
	assert.Equal(t, Load, p.Quiescence)
	assert.Equal(t, 1500*time.Millisecond, p.SettleDelay)
	assert.Equal(t, 45*time.Second, p.NavigationTimeout)
	assert.Equal(t, DefaultQuiescenceWindow, p.QuiescenceWindow)
}

func TestScrapeRequestSettleDelayOverride(t *testing.T) {
	base := DefaultPolicy()
	base.SettleDelay = 2 * time.Second

	unset := ScrapeRequest{URL: "https://example.com"}
	assert.Equal(t, 2*time.Second, unset.Policy(base).SettleDelay)

	zero := 0
	disabled := ScrapeRequest{URL: "https://example.com", SettleDelayMs: &zero}
	assert.Zero(t, disabled.Policy(base).SettleDelay)
}

func redditSchema() RecordSchema {
	return RecordSchema{
		Name: "post",
		Fields: []FieldSpec{
			{Name: "title", Type: FieldString, Required: true},
			{Name: "author", Type: FieldString, Required: true},
			{Name: "upvotes", Type: FieldString},
		},
	}
}

func TestRecordSchemaValidate(t *testing.T) {
	require.NoError(t, redditSchema().Validate())

	assert.ErrorIs(t, RecordSchema{}.Validate(), ErrInvalidConfig)

	dup := redditSchema()
	dup.Fields = append(dup.Fields, FieldSpec{Name: "title"})
	assert.ErrorIs(t, dup.Validate(), ErrInvalidConfig)

	bad := redditSchema()
	bad.Fields[0].Type = "date"
	assert.ErrorIs(t, bad.Validate(), ErrInvalidConfig)
}

func TestJSONSchemaKeepsDeclarationOrder(t *testing.T) {
	raw, err := json.Marshal(redditSchema().ListSchema())
	require.NoError(t, err)

	s := string(raw)
	assert.Contains(t, s, `"posts"`)
	assert.Contains(t, s, `"required":["title","author"]`)
	assert.Less(t, strings.Index(s, `"title"`), strings.Index(s, `"author"`))
	assert.Less(t, strings.Index(s, `"author"`), strings.Index(s, `"upvotes"`))
}

func TestOrderRecord(t *testing.T) {
	src := NewRecord()
	src.Set("flair", "Hiring")
	src.Set("author", "u/alice")
	src.Set("title", "Summer internship")

	got := OrderRecord(redditSchema(), src)

	raw, err := json.Marshal(got)
	require.NoError(t, err)
	assert.Equal(t, `{"title":"Summer internship","author":"u/alice","flair":"Hiring"}`, string(raw))

	_, hasUpvotes := got.Get("upvotes")
	assert.False(t, hasUpvotes, "missing declared fields are not invented")
}

func TestPipelineResultCheck(t *testing.T) {
	page := &LoadedPage{RequestedURL: "https://example.com"}

	assert.NoError(t, MarkdownResult(page, "").Check())
	assert.NoError(t, RecordsResult(page, nil).Check())
	assert.NoError(t, DegradedResult(page, "# page", NewScrapeError(ErrCodeExtractionParse, "bad json", nil)).Check())
	assert.NoError(t, FailedResult(errors.New("boom")).Check())

	md := "x"
	both := &PipelineResult{Succeeded: true, RawMarkdown: &md, ExtractedRecords: []Record{}}
	assert.Error(t, both.Check())

	neither := &PipelineResult{Succeeded: true}
	assert.Error(t, neither.Check())

	var nilResult *PipelineResult
	assert.Error(t, nilResult.Check())
}

func TestSecretNeverPrints(t *testing.T) {
	s := Secret("sk-very-secret")

	assert.NotContains(t, fmt.Sprintf("%v %s %#v", s, s, s), "sk-very-secret")
	assert.Equal(t, "sk-very-secret", s.Reveal())
	assert.False(t, s.Empty())
	assert.True(t, Secret("  ").Empty())

	var buf strings.Builder
	slog.New(slog.NewTextHandler(&buf, nil)).Info("calling model", "key", s)
	assert.NotContains(t, buf.String(), "sk-very-secret")
}
