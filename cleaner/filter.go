package cleaner

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// RemoveSelectors deletes every element matching any of selectors and
// returns the remaining document. Invalid selectors match nothing; a parse
// failure returns the input unchanged.
func RemoveSelectors(html string, selectors []string) string {
	if len(selectors) == 0 {
		return html
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return html
	}
	for _, selector := range selectors {
		doc.Find(selector).Remove()
	}

	result, err := doc.Html()
	if err != nil {
		return html
	}
	return result
}
