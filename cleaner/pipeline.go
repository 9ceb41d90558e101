package cleaner

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/PuerkitoBio/goquery"
)

// Mode selects which part of the page is converted.
type Mode string

const (
	// ModeRaw converts the whole rendered document.
	ModeRaw Mode = "raw"
	// ModeReadability keeps only the main article found by go-readability.
	ModeReadability Mode = "readability"
	// ModePruning keeps body blocks that score as content.
	ModePruning Mode = "pruning"
)

// ParseMode maps a config or request string onto a Mode. Empty means raw.
func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(s))) {
	case "", ModeRaw:
		return ModeRaw, nil
	case ModeReadability:
		return ModeReadability, nil
	case ModePruning:
		return ModePruning, nil
	}
	return "", fmt.Errorf("unknown content mode %q", s)
}

// Options narrows the document before conversion.
type Options struct {
	Mode Mode

	// Selector keeps only the matched elements.
	Selector string

	// Exclude removes matched elements first.
	Exclude []string
}

// Cleaner turns rendered HTML into markdown. The converter is created once
// and is safe for concurrent use.
type Cleaner struct {
	mdConverter *converter.Converter
}

// NewCleaner initialises the Cleaner with a pre-configured Markdown converter.
func NewCleaner() *Cleaner {
	return &Cleaner{
		mdConverter: newMarkdownConverter(),
	}
}

// Markdown converts rawHTML according to opts. It never fails: an empty
// document yields "" and a conversion error degrades to the visible text.
//
// Flow:
//  1. Drop excluded elements.
//  2. Apply the CSS selector (no match keeps the whole document).
//  3. Narrow by mode.
//  4. Convert to markdown, resolving relative links against sourceURL.
func (c *Cleaner) Markdown(rawHTML, sourceURL string, opts Options) string {
	if strings.TrimSpace(rawHTML) == "" {
		return ""
	}

	// ── 1. Exclusions ───────────────────────────────────────────────
	content := RemoveSelectors(rawHTML, opts.Exclude)

	// ── 2. Selector ─────────────────────────────────────────────────
	if opts.Selector != "" {
		selected, err := ApplyCSSSelector(content, opts.Selector)
		if err != nil {
			slog.Warn("css selector failed, converting whole page",
				"url", sourceURL, "selector", opts.Selector, "error", err,
			)
		} else {
			content = selected
		}
	}

	// ── 3. Mode ─────────────────────────────────────────────────────
	switch opts.Mode {
	case ModeReadability:
		content, _ = MainContent(content, sourceURL)
	case ModePruning:
		pruned, err := PruneContent(content)
		if err != nil {
			slog.Warn("pruning failed, converting unpruned page", "url", sourceURL, "error", err)
		} else {
			content = pruned
		}
	}

	// ── 4. Convert ──────────────────────────────────────────────────
	md, err := ToMarkdown(c.mdConverter, content, sourceURL)
	if err != nil {
		slog.Warn("markdown conversion failed, using plain text", "url", sourceURL, "error", err)
		return stripTags(content)
	}
	return strings.TrimSpace(md)
}

// stripTags extracts visible text from an HTML fragment.
func stripTags(html string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	return strings.TrimSpace(doc.Text())
}
