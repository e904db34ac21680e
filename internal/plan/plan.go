// Package plan holds the deterministic parts of a fix plan: branch naming,
// implementation steps pulled from a briefing, test commands and risk notes.
package plan

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
)

// MaxBranchLen caps generated branch names.
const MaxBranchLen = 50

// Step is one implementation step found in a briefing.
type Step struct {
	ID   string `json:"id"`
	Line int    `json:"line"`
	Text string `json:"text"`
}

// Slug lowercases title, drops everything but letters, digits and spaces,
// and joins the first n words with hyphens.
func Slug(title string, n int) string {
	var b strings.Builder
	for _, r := range strings.ToLower(title) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == ' ' {
			b.WriteRune(r)
		}
	}
	words := strings.Fields(b.String())
	if n > 0 && len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, "-")
}

// BranchName returns "fix/<number>-<slug>" limited to MaxBranchLen
// characters.
func BranchName(number int, title string) string {
	name := fmt.Sprintf("fix/%d", number)
	if slug := Slug(title, 5); slug != "" {
		name += "-" + slug
	}
	if r := []rune(name); len(r) > MaxBranchLen {
		name = string(r[:MaxBranchLen])
	}
	return strings.TrimRight(name, "-")
}

var (
	headingPattern  = regexp.MustCompile(`^#{1,6}\s+(.+)`)
	numberedPattern = regexp.MustCompile(`^\d+[\.\)]\s+(.+)`)
	dashPattern     = regexp.MustCompile(`^[-*]\s+(.+)`)
)

// InferSteps extracts numbered or bulleted items from the briefing's
// implementation plan section. When no such section exists, numbered items
// anywhere in the document are used.
func InferSteps(markdown string) []Step {
	lines := strings.Split(markdown, "\n")

	start, end := -1, len(lines)
	for i, line := range lines {
		m := headingPattern.FindStringSubmatch(strings.TrimSpace(line))
		if m == nil {
			continue
		}
		if start >= 0 {
			end = i
			break
		}
		if strings.Contains(strings.ToLower(m[1]), "implementation plan") {
			start = i + 1
		}
	}

	bullets := true
	if start < 0 {
		start, end, bullets = 0, len(lines), false
	}

	var steps []Step
	inFence := false
	for i := start; i < end; i++ {
		trimmed := strings.TrimSpace(lines[i])
		if strings.HasPrefix(trimmed, "```") {
			inFence = !inFence
			continue
		}
		if inFence || trimmed == "" {
			continue
		}
		var text string
		if m := numberedPattern.FindStringSubmatch(trimmed); m != nil {
			text = m[1]
		} else if m := dashPattern.FindStringSubmatch(trimmed); bullets && m != nil {
			text = m[1]
		} else {
			continue
		}
		steps = append(steps, Step{
			ID:   fmt.Sprintf("S-%03d", len(steps)+1),
			Line: i + 1,
			Text: strings.TrimSpace(text),
		})
	}
	return steps
}

// testCommands maps a language to its usual test invocations.
var testCommands = []struct {
	langs []string
	cmds  []string
}{
	{[]string{"Python"}, []string{"pytest", "pytest -v", "python -m pytest tests/"}},
	{[]string{"JavaScript", "TypeScript"}, []string{"npm test", "npm run test", "yarn test"}},
	{[]string{"Go"}, []string{"go test ./..."}},
	{[]string{"Rust"}, []string{"cargo test"}},
	{[]string{"Java"}, []string{"mvn test", "gradle test"}},
}

// FallbackTestCommand is returned when no known language is present.
const FallbackTestCommand = "# Check project README for test commands"

// TestCommands suggests up to five test commands for the given languages.
// primary is matched case-insensitively in addition to languages.
func TestCommands(languages []string, primary string) []string {
	has := map[string]bool{}
	for _, l := range languages {
		has[strings.ToLower(l)] = true
	}
	if primary != "" {
		has[strings.ToLower(primary)] = true
	}

	var out []string
	for _, tc := range testCommands {
		for _, l := range tc.langs {
			if has[strings.ToLower(l)] {
				out = append(out, tc.cmds...)
				break
			}
		}
	}
	if len(out) == 0 {
		return []string{FallbackTestCommand}
	}
	return out[:min(len(out), 5)]
}

var riskRules = []struct {
	keywords []string
	note     string
}{
	{[]string{"breaking", "deprecate", "migration"}, "May involve breaking changes - coordinate with maintainers"},
	{[]string{"security", "auth", "password", "token"}, "Security-sensitive area - extra review recommended"},
	{[]string{"database", "schema", "migration"}, "Database changes may need migration scripts"},
}

const (
	lowConfidenceNote = "Low confidence in code location - double-check with maintainers"
	noRiskNote        = "No major risks identified - proceed with standard care"
)

// RiskNotes lists cautions for an issue based on keywords in text. A low
// confidence code location adds its own note. The result is never empty.
func RiskNotes(text string, lowConfidence bool) []string {
	var notes []string
	if lowConfidence {
		notes = append(notes, lowConfidenceNote)
	}
	lower := strings.ToLower(text)
	for _, r := range riskRules {
		for _, kw := range r.keywords {
			if strings.Contains(lower, kw) {
				notes = append(notes, r.note)
				break
			}
		}
	}
	if len(notes) == 0 {
		notes = append(notes, noRiskNote)
	}
	return notes
}
