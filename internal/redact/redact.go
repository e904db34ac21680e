// Package redact masks credentials in issue text and code snippets before
// they are sent to a model or written to a report.
package redact

import (
	"regexp"

	"github.com/dshills/issuescout/internal/triage"
)

// Placeholder replaces every match.
const Placeholder = "[REDACTED]"

var patterns []*regexp.Regexp

func init() {
	raw := []string{
		// GitHub personal, OAuth, app and fine-grained tokens
		`\b(?:ghp|gho|ghu|ghs|ghr)_[A-Za-z0-9]{20,}\b`,
		`\bgithub_pat_[A-Za-z0-9_]{22,}\b`,
		// Groq, OpenAI and Anthropic API keys
		`\bgsk_[A-Za-z0-9]{20,}\b`,
		`\bsk-ant-[A-Za-z0-9_\-]{20,}`,
		`\bsk-(?:proj-)?[A-Za-z0-9_\-]{20,}`,
		// AWS access key IDs
		`AKIA[0-9A-Z]{16}`,
		`(?i)(aws_secret_access_key|aws_secret)\s*[:=]\s*[A-Za-z0-9/+=]{40}`,
		// Private key blocks
		`-----BEGIN [A-Z ]+PRIVATE KEY-----[\s\S]*?-----END [A-Z ]+PRIVATE KEY-----`,
		`Bearer\s+[A-Za-z0-9\-._~+/]+=*`,
		// Generic key/secret/token/password assignments
		`(?i)(api[_-]?key|api[_-]?secret|secret[_-]?key|token|password|passwd|credentials)\s*[:=]\s*\S+`,
	}
	for _, r := range raw {
		patterns = append(patterns, regexp.MustCompile(r))
	}
}

// Redact replaces secret patterns in text with [REDACTED].
func Redact(text string) string {
	for _, p := range patterns {
		text = p.ReplaceAllString(text, Placeholder)
	}
	return text
}

// Record returns a copy of r with title and body redacted. Labels and
// metadata are left alone so scores stay comparable.
func Record(r triage.Record) triage.Record {
	r.Title = Redact(r.Title)
	r.Body = Redact(r.Body)
	return r
}

// Lines redacts each line in place and returns the slice.
func Lines(lines []string) []string {
	for i := range lines {
		lines[i] = Redact(lines[i])
	}
	return lines
}
