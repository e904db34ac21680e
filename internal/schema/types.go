package schema

import "strings"

// TriageReasons is the triage agent's answer.
type TriageReasons struct {
	Reasons []string `json:"reasons"`
}

// SearchQueries is the locator's list of search terms.
type SearchQueries struct {
	Queries []string `json:"queries"`
}

// Confidence rates how sure the locator is about its findings.
type Confidence string

const (
	ConfidenceHigh   Confidence = "High"
	ConfidenceMedium Confidence = "Medium"
	ConfidenceLow    Confidence = "Low"
)

// Valid reports whether c is one of the three known levels.
func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	}
	return false
}

// Normalize maps case variants ("high", "LOW") onto the canonical values.
// Unknown values are returned unchanged.
func (c Confidence) Normalize() Confidence {
	for _, v := range []Confidence{ConfidenceHigh, ConfidenceMedium, ConfidenceLow} {
		if strings.EqualFold(strings.TrimSpace(string(c)), string(v)) {
			return v
		}
	}
	return c
}

// HitNote explains why one file matters.
type HitNote struct {
	Path        string `json:"path"`
	WhyRelevant string `json:"why_relevant"`
}

// LocatorAnalysis is the locator's review of its search hits.
type LocatorAnalysis struct {
	EnhancedHits  []HitNote  `json:"enhanced_hits"`
	CallTraceHint []string   `json:"call_trace_hint"`
	Confidence    Confidence `json:"confidence"`
	NextFiles     []string   `json:"next_files"`
}

// PRDraft is the planner's pull request text.
type PRDraft struct {
	CommitMessage string `json:"commit_message"`
	PRTitle       string `json:"pr_title"`
	PRBody        string `json:"pr_body"`
}
