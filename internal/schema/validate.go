// Package schema defines the JSON answers expected from each agent and
// validates them after decoding.
package schema

import (
	"fmt"
	"strings"
)

// ValidationError describes a single schema violation.
type ValidationError struct {
	Path    string
	Message string
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Path, v.Message)
}

// MaxCommitSubject caps the first line of a commit message.
const MaxCommitSubject = 100

// ValidateTriageReasons requires at least one non-blank reason.
func ValidateTriageReasons(r *TriageReasons) []ValidationError {
	var errs []ValidationError
	if len(r.Reasons) == 0 {
		errs = append(errs, ValidationError{"reasons", "at least one reason required"})
	}
	errs = append(errs, blankItems("reasons", r.Reasons)...)
	return errs
}

// ValidateSearchQueries requires at least one non-blank query.
func ValidateSearchQueries(q *SearchQueries) []ValidationError {
	var errs []ValidationError
	if len(q.Queries) == 0 {
		errs = append(errs, ValidationError{"queries", "at least one query required"})
	}
	errs = append(errs, blankItems("queries", q.Queries)...)
	return errs
}

// ValidateLocatorAnalysis checks confidence and hit paths. When known is
// non-nil, every enhanced hit must name one of its paths.
func ValidateLocatorAnalysis(a *LocatorAnalysis, known map[string]bool) []ValidationError {
	var errs []ValidationError
	if !a.Confidence.Valid() {
		errs = append(errs, ValidationError{"confidence", fmt.Sprintf("invalid: %q (want High, Medium or Low)", a.Confidence)})
	}
	for i, h := range a.EnhancedHits {
		prefix := fmt.Sprintf("enhanced_hits[%d]", i)
		switch {
		case strings.TrimSpace(h.Path) == "":
			errs = append(errs, ValidationError{prefix + ".path", "required"})
		case known != nil && !known[h.Path]:
			errs = append(errs, ValidationError{prefix + ".path", fmt.Sprintf("not among the search hits: %q", h.Path)})
		}
		if strings.TrimSpace(h.WhyRelevant) == "" {
			errs = append(errs, ValidationError{prefix + ".why_relevant", "required"})
		}
	}
	errs = append(errs, blankItems("call_trace_hint", a.CallTraceHint)...)
	errs = append(errs, blankItems("next_files", a.NextFiles)...)
	return errs
}

// ValidatePRDraft requires all three fields and a short commit subject.
func ValidatePRDraft(d *PRDraft) []ValidationError {
	var errs []ValidationError
	if strings.TrimSpace(d.CommitMessage) == "" {
		errs = append(errs, ValidationError{"commit_message", "required"})
	} else if subj, _, _ := strings.Cut(d.CommitMessage, "\n"); len(subj) > MaxCommitSubject {
		errs = append(errs, ValidationError{"commit_message", fmt.Sprintf("subject longer than %d characters", MaxCommitSubject)})
	}
	if strings.TrimSpace(d.PRTitle) == "" {
		errs = append(errs, ValidationError{"pr_title", "required"})
	}
	if strings.TrimSpace(d.PRBody) == "" {
		errs = append(errs, ValidationError{"pr_body", "required"})
	}
	return errs
}

func blankItems(path string, items []string) []ValidationError {
	var errs []ValidationError
	for i, s := range items {
		if strings.TrimSpace(s) == "" {
			errs = append(errs, ValidationError{fmt.Sprintf("%s[%d]", path, i), "must not be blank"})
		}
	}
	return errs
}
