package llm

import "strings"

// ExtractJSON pulls a JSON object or array out of a model reply. It strips
// Markdown code fences, leading prose and reasoning blocks such as
// <think>...</think>. If no JSON delimiter is found the trimmed input is
// returned unchanged.
func ExtractJSON(s string) string {
	s = strings.TrimSpace(s)

	if end := strings.LastIndex(s, "</think>"); end >= 0 {
		s = strings.TrimSpace(s[end+len("</think>"):])
	}

	if start := strings.Index(s, "```"); start >= 0 {
		rest := s[start+3:]
		if nl := strings.IndexByte(rest, '\n'); nl >= 0 && !strings.ContainsAny(rest[:nl], "{[") {
			rest = rest[nl+1:]
		}
		if end := strings.Index(rest, "```"); end >= 0 {
			rest = rest[:end]
		}
		s = strings.TrimSpace(rest)
	}

	open := strings.IndexAny(s, "{[")
	if open < 0 {
		return s
	}
	closer := byte('}')
	if s[open] == '[' {
		closer = ']'
	}
	end := strings.LastIndexByte(s, closer)
	if end < open {
		return s
	}
	return s[open : end+1]
}
