package cleaner

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const articlePage = `<html><head><title>Jobs</title><script>track()</script></head><body>
<nav class="menu"><a href="/a">Home</a> <a href="/b">About</a></nav>
<article class="post"><h1>Summer Internship</h1>
<p>We are hiring interns for the summer. Apply with a resume and a short cover letter describing your projects.</p>
<p><a href="/apply">Apply here</a></p></article>
<footer>Copyright</footer>
</body></html>`

func TestMarkdownEmptyDocument(t *testing.T) {
	c := NewCleaner()
	for _, in := range []string{"", "   \n\t", "<html><head></head><body></body></html>"} {
		assert.Equal(t, "", c.Markdown(in, "https://example.com", Options{}), "%q", in)
	}
}

func TestMarkdownRawKeepsWholePage(t *testing.T) {
	md := NewCleaner().Markdown(articlePage, "https://example.com/jobs", Options{Mode: ModeRaw})

	assert.Contains(t, md, "# Summer Internship")
	assert.Contains(t, md, "Home")
	assert.Contains(t, md, "Copyright")
	assert.Contains(t, md, "(https://example.com/apply)", "relative links are resolved")
	assert.NotContains(t, md, "track()")
}

func TestMarkdownSelectorAndExclude(t *testing.T) {
	c := NewCleaner()

	md := c.Markdown(articlePage, "https://example.com", Options{Selector: "article"})
	assert.Contains(t, md, "Summer Internship")
	assert.NotContains(t, md, "Copyright")

	md = c.Markdown(articlePage, "https://example.com", Options{Exclude: []string{"nav", "footer"}})
	assert.NotContains(t, md, "About")
	assert.NotContains(t, md, "Copyright")
	assert.Contains(t, md, "Summer Internship")
}

func TestMarkdownPruningDropsBoilerplate(t *testing.T) {
	md := NewCleaner().Markdown(articlePage, "https://example.com", Options{Mode: ModePruning})

	assert.Contains(t, md, "Summer Internship")
	assert.NotContains(t, md, "Copyright")
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]Mode{"": ModeRaw, "RAW": ModeRaw, "readability": ModeReadability, "pruning": ModePruning} {
		got, err := ParseMode(in)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}
	_, err := ParseMode("auto")
	assert.Error(t, err)
}

func TestApplyCSSSelector(t *testing.T) {
	out, err := ApplyCSSSelector(articlePage, "h1")
	require.NoError(t, err)
	assert.Equal(t, "<h1>Summer Internship</h1>", out)

	out, err = ApplyCSSSelector(articlePage, ".missing")
	require.NoError(t, err)
	assert.Equal(t, articlePage, out)

	_, err = ApplyCSSSelector(articlePage, "[[")
	assert.Error(t, err)
	assert.Error(t, ValidateSelector("[["))
	assert.NoError(t, ValidateSelector("div.post > p"))
}

func TestEstimateTokens(t *testing.T) {
	assert.Equal(t, 0, EstimateTokens(""))
	assert.Equal(t, 1, EstimateTokens("ab"))
	assert.Equal(t, 3, EstimateTokens("abcdefghi"))
	assert.Equal(t, 1, EstimateTokens("日本語"))
}

func TestTruncateToTokens(t *testing.T) {
	text := strings.Repeat("héllo ", 100)

	out, cut := TruncateToTokens(text, 10)
	assert.True(t, cut)
	assert.LessOrEqual(t, EstimateTokens(out), 10)
	assert.True(t, strings.HasPrefix(text, out))

	out, cut = TruncateToTokens(text, 0)
	assert.False(t, cut)
	assert.Equal(t, text, out)

	out, cut = TruncateToTokens("short", 100)
	assert.False(t, cut)
	assert.Equal(t, "short", out)
}
