package sink

import (
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/use-agent/pagepipe/models"
)

const (
	previewRunes     = 100
	rawPreviewRunes  = 1000
	missingFieldText = "N/A"
)

// Field selects one record key for the console summary.
type Field struct {
	Key   string
	Label string

	// Preview fields are cut to previewRunes and skipped when empty.
	Preview bool
}

// Summarize prints the human-readable report of a persisted result.
//
// Text results report the path and the markdown length in characters.
// Record results list every record; fields picks the keys to show, in
// order, and defaults to each record's own keys. Degraded results show the
// parse error and the start of the page markdown.
func Summarize(w io.Writer, result *models.PipelineResult, dest models.OutputDestination, fields ...Field) {
	switch {
	case result.ExtractedRecords != nil:
		summarizeRecords(w, result.ExtractedRecords, dest, fields)
	case result.Degraded != nil:
		fmt.Fprintf(w, "Error parsing extracted content: %v\n", result.Degraded)
		fmt.Fprintf(w, "Raw content (first %d chars):\n%s\n", rawPreviewRunes, cutRunes(result.Markdown(), rawPreviewRunes))
		fmt.Fprintf(w, "Fallback saved to %s\n", dest.Path)
	default:
		fmt.Fprintf(w, "Success! Saved to %s\n", dest.Path)
		fmt.Fprintf(w, "Content length: %d characters\n", utf8.RuneCountInString(result.Markdown()))
	}
}

func summarizeRecords(w io.Writer, records []models.Record, dest models.OutputDestination, fields []Field) {
	fmt.Fprintf(w, "\nExtracted %d posts:\n\n", len(records))
	for i, rec := range records {
		fmt.Fprintf(w, "--- Post %d ---\n", i+1)
		shown := fields
		if len(shown) == 0 {
			for pair := rec.Oldest(); pair != nil; pair = pair.Next() {
				shown = append(shown, Field{Key: pair.Key, Label: label(pair.Key)})
			}
		}
		for _, f := range shown {
			v, ok := rec.Get(f.Key)
			if f.Preview {
				text := formatValue(v, ok)
				if !ok || v == nil || strings.TrimSpace(text) == "" {
					continue
				}
				fmt.Fprintf(w, "%s: %s...\n", f.Label, cutRunes(text, previewRunes))
				continue
			}
			fmt.Fprintf(w, "%s: %s\n", f.Label, formatValue(v, ok))
		}
		fmt.Fprintln(w)
	}
	fmt.Fprintf(w, "Data saved to %s\n", dest.Path)
}

// label turns "comments_count" into "Comments count".
func label(key string) string {
	s := strings.ReplaceAll(key, "_", " ")
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return strings.ToUpper(string(r)) + s[size:]
}

func formatValue(v any, present bool) string {
	if !present || v == nil {
		return missingFieldText
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

func cutRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}
