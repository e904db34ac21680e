package agent

import (
	"github.com/dshills/issuescout/internal/github"
	"github.com/dshills/issuescout/internal/plan"
	"github.com/dshills/issuescout/internal/schema"
	"github.com/dshills/issuescout/internal/triage"
)

// RankedIssue is a ranked record with reader-facing reasons.
type RankedIssue struct {
	triage.Ranked
	Why []string `json:"why"`
}

// TriageOutput is the result of the triage stage.
type TriageOutput struct {
	Repo     *github.Repo   `json:"repo,omitempty"`
	Ranked   []RankedIssue  `json:"ranked_issues"`
	Selected int            `json:"selected_issue_number"`
	Summary  triage.Summary `json:"summary"`
}

// SelectedIssue returns the issue chosen for the next stages, or false when
// nothing was ranked.
func (t *TriageOutput) SelectedIssue() (RankedIssue, bool) {
	for _, r := range t.Ranked {
		if r.Record.Number == t.Selected {
			return r, true
		}
	}
	return RankedIssue{}, false
}

// CodeHit is one file that likely needs changes.
type CodeHit struct {
	Path        string   `json:"path"`
	Lines       []int    `json:"lines"`
	Symbols     []string `json:"symbols,omitempty"`
	Snippet     string   `json:"snippet,omitempty"`
	WhyRelevant string   `json:"why_relevant"`
}

// LocatorOutput is the result of the code location stage.
type LocatorOutput struct {
	IssueNumber   int               `json:"issue_number"`
	Keywords      []string          `json:"keywords"`
	Queries       []string          `json:"search_strategy"`
	Hits          []CodeHit         `json:"hits"`
	CallTraceHint []string          `json:"call_trace_hint,omitempty"`
	Confidence    schema.Confidence `json:"confidence"`
	NextFiles     []string          `json:"next_files_to_check,omitempty"`
	// Unverified lists hit paths dropped because they are not in the tree.
	Unverified []string `json:"unverified,omitempty"`
}

// PRDraft is the proposed branch, commit and pull request text.
type PRDraft struct {
	BranchName    string `json:"branch_name"`
	CommitMessage string `json:"commit_message"`
	PRTitle       string `json:"pr_title"`
	PRBody        string `json:"pr_body"`
}

// PlannerOutput is the result of the planning stage.
type PlannerOutput struct {
	BriefingMarkdown string      `json:"briefing_markdown"`
	Steps            []plan.Step `json:"steps,omitempty"`
	PRDraft          PRDraft     `json:"pr_draft"`
	TestCommands     []string    `json:"test_commands"`
	RiskNotes        []string    `json:"risk_notes"`
}
