package cleaner

import "unicode/utf8"

// charsPerToken is the rune/token ratio used by the estimates below. English
// averages ~4, CJK ~1.5; 3 over-counts slightly for mixed content.
const charsPerToken = 3

// EstimateTokens returns a fast token count estimate for text.
func EstimateTokens(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	est := n / charsPerToken
	if est < 1 {
		return 1
	}
	return est
}

// TruncateToTokens cuts text so that EstimateTokens(result) <= maxTokens.
// maxTokens <= 0 disables truncation. The cut never splits a rune.
func TruncateToTokens(text string, maxTokens int) (string, bool) {
	if maxTokens <= 0 || EstimateTokens(text) <= maxTokens {
		return text, false
	}
	limit := maxTokens*charsPerToken + charsPerToken - 1
	runes := 0
	for i := range text {
		if runes == limit {
			return text[:i], true
		}
		runes++
	}
	return text, false
}
