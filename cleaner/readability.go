package cleaner

import (
	"log/slog"
	nurl "net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// minContentLength is the shortest article text (in characters) accepted
// from readability. Shorter output means it missed the main content.
const minContentLength = 50

// MainContent runs the Mozilla Readability algorithm on rawHTML and returns
// the article HTML. When the URL does not parse, readability fails, or the
// article is too short, rawHTML is returned unchanged with ok=false.
func MainContent(rawHTML string, sourceURL string) (content string, ok bool) {
	parsedURL, err := nurl.Parse(sourceURL)
	if err != nil {
		slog.Debug("readability: invalid source URL, keeping whole page", "url", sourceURL, "error", err)
		return rawHTML, false
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil {
		slog.Debug("readability: extraction failed, keeping whole page", "url", sourceURL, "error", err)
		return rawHTML, false
	}

	if n := len(strings.TrimSpace(article.TextContent)); n < minContentLength {
		slog.Debug("readability: article too short, keeping whole page", "url", sourceURL, "length", n)
		return rawHTML, false
	}

	return article.Content, true
}
