package cleaner

import (
	"math"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Weights of each block signal in the pruning score. A block is kept when
// its weighted sum is above zero.
const (
	wTextDensity   = 3.0
	wLinkDensity   = -2.0
	wTagWeight     = 1.5
	wClassIDWeight = 1.0
	wTextLength    = 0.5
)

var (
	contentHints     = []string{"content", "article", "post", "entry", "body", "main", "text"}
	boilerplateHints = []string{
		"sidebar", "ad", "widget", "nav", "menu", "footer", "header", "banner",
		"popup", "modal", "cookie", "social", "share", "related", "recommend", "promo",
	}
)

// PruneContent keeps the top-level <body> blocks that score as content and
// drops the rest. When nothing scores, the whole body is returned.
func PruneContent(rawHTML string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return rawHTML, err
	}

	body := doc.Find("body")
	if body.Length() == 0 {
		return rawHTML, nil
	}

	var kept []string
	body.Children().Each(func(_ int, el *goquery.Selection) {
		if measure(el).score() <= 0 {
			return
		}
		if html, err := goquery.OuterHtml(el); err == nil {
			kept = append(kept, html)
		}
	})

	if len(kept) == 0 {
		html, err := body.Html()
		if err != nil {
			return rawHTML, nil
		}
		return html, nil
	}
	return strings.Join(kept, "\n"), nil
}

// blockSignals are the measurements behind a block's pruning score.
type blockSignals struct {
	textDensity float64 // visible text / outer HTML length
	linkDensity float64 // anchor text / visible text
	tag         float64
	classID     float64
	textLength  float64 // log10 of visible text length
}

func (s blockSignals) score() float64 {
	return s.textDensity*wTextDensity +
		s.linkDensity*wLinkDensity +
		s.tag*wTagWeight +
		s.classID*wClassIDWeight +
		s.textLength*wTextLength
}

func measure(el *goquery.Selection) blockSignals {
	outer, err := goquery.OuterHtml(el)
	if err != nil || outer == "" {
		return blockSignals{}
	}
	text := strings.TrimSpace(el.Text())

	linkText := 0
	el.Find("a").Each(func(_ int, a *goquery.Selection) {
		linkText += len(strings.TrimSpace(a.Text()))
	})

	s := blockSignals{
		textDensity: float64(len(text)) / float64(len(outer)),
		tag:         tagWeight(goquery.NodeName(el)),
		classID:     classIDWeight(el),
		textLength:  math.Log10(float64(len(text)) + 1),
	}
	if len(text) > 0 {
		s.linkDensity = float64(linkText) / float64(len(text))
	}
	return s
}

func tagWeight(tag string) float64 {
	switch tag {
	case "article", "main", "section":
		return 5.0
	case "nav", "footer", "aside", "header":
		return -5.0
	default:
		return 0.0
	}
}

// classIDWeight counts at most one content hint and one boilerplate hint.
func classIDWeight(el *goquery.Selection) float64 {
	class, _ := el.Attr("class")
	id, _ := el.Attr("id")
	combined := strings.ToLower(class + " " + id)

	score := 0.0
	if containsAny(combined, contentHints) {
		score += 3.0
	}
	if containsAny(combined, boilerplateHints) {
		score -= 3.0
	}
	return score
}

func containsAny(s string, subs []string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
