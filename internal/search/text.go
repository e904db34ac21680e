package search

import (
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"
)

// TruncatedMarker is appended to text cut by Truncate.
const TruncatedMarker = "[... truncated]"

var wordPattern = regexp.MustCompile(`\b[a-z_][a-z0-9_]{2,}\b`)

var stopwords = map[string]bool{}

func init() {
	for _, w := range strings.Fields(`the a an is are was were be been being have has had do does did
		will would could should may might must shall can need dare ought used to of in for on with at by
		from as into through during before after above below between under again further then once here
		there when where why how all each few more most other some such no nor not only own same so than
		too very just and but if or because until while it this that these those i we you he she they what
		which who whom am`) {
		stopwords[w] = true
	}
}

// Keywords returns up to n search terms from text, most frequent first.
// Ties keep first-occurrence order, so the result is deterministic.
func Keywords(text string, n int) []string {
	counts := map[string]int{}
	var order []string
	for _, w := range wordPattern.FindAllString(strings.ToLower(text), -1) {
		if stopwords[w] {
			continue
		}
		if counts[w] == 0 {
			order = append(order, w)
		}
		counts[w]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if n >= 0 && len(order) > n {
		order = order[:n]
	}
	return order
}

// EstimateTokens approximates token count at four bytes per token.
func EstimateTokens(text string) int {
	return len(text) / 4
}

// Truncate cuts text to roughly maxTokens, preferring a paragraph or
// sentence boundary in the last fifth, and appends TruncatedMarker.
func Truncate(text string, maxTokens int) string {
	maxChars := maxTokens * 4
	if len(text) <= maxChars {
		return text
	}
	cut := text[:runeBoundary(text, maxChars)]
	floor := maxChars * 4 / 5
	if i := strings.LastIndex(cut, "\n\n"); i > floor {
		return cut[:i] + "\n\n" + TruncatedMarker
	}
	if i := strings.LastIndex(cut, ". "); i > floor {
		return cut[:i+1] + "\n\n" + TruncatedMarker
	}
	return cut + "\n\n" + TruncatedMarker
}

// runeBoundary steps n back to the start of a rune so text[:n] stays valid
// UTF-8.
func runeBoundary(text string, n int) int {
	for n > 0 && n < len(text) && !utf8.RuneStart(text[n]) {
		n--
	}
	return n
}
