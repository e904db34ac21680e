// Package prompt builds the prompts sent to each agent's model. Issue text
// and code snippets are redacted before they are embedded.
package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dshills/issuescout/internal/profile"
	"github.com/dshills/issuescout/internal/redact"
	"github.com/dshills/issuescout/internal/schema"
	"github.com/dshills/issuescout/internal/search"
	"github.com/dshills/issuescout/internal/triage"
)

// System prompts for the three agents.
const (
	TriageSystem = `You are the Triage agent, an expert at evaluating GitHub issues for beginner contributors.
Judge clarity of requirements, scope, available guidance and learning value.
Be encouraging but honest about difficulty. Answer with JSON only.`

	LocatorSystem = `You are the Locator agent, an expert at navigating unfamiliar codebases.
Find the files, functions and types an issue touches and trace how they connect.
Prefer precision over recall. When unsure, lower your confidence instead of guessing. Answer with JSON only.`

	PlannerSystem = `You are the Planner agent, a senior developer mentoring a first-time contributor.
Turn the issue analysis and code locations into a concrete, step-by-step plan.
Name real file paths and functions from the context. Write clearly for a beginner.`
)

const noDescription = "No description provided"

// AnalysisSnippetBudget caps the estimated tokens spent on snippets in the
// analysis prompt. Later hits keep their path and symbols only.
const AnalysisSnippetBudget = 250

func body(r triage.Record, maxTokens int) string {
	if strings.TrimSpace(r.Body) == "" {
		return noDescription
	}
	return search.Truncate(r.Body, maxTokens)
}

func labels(r triage.Record) string {
	if len(r.Labels) == 0 {
		return "None"
	}
	return strings.Join(r.Labels, ", ")
}

// Triage asks for three or four one-sentence reasons why r suits a beginner.
// p, when non-nil, is included so the model sees how scores were computed.
func Triage(r triage.Record, b triage.Breakdown, p *profile.Profile) string {
	r = redact.Record(r)
	var sb strings.Builder
	sb.WriteString("Given this GitHub issue, give 3-4 concise reasons why it suits a beginner contributor.\n\n")
	fmt.Fprintf(&sb, "Issue #%d: %s\n\nDescription:\n%s\n\nLabels: %s\n\n", r.Number, r.Title, body(r, 250), labels(r))
	fmt.Fprintf(&sb, "Score: %d/100 (labels %d, clarity %d, activity %d, size %d, risk %d)\n\n",
		b.Total, b.Labels, b.Clarity, b.Activity, b.Size, b.Risk)
	if len(b.Reasons) > 0 {
		sb.WriteString("Scoring notes:\n")
		for _, reason := range b.Reasons {
			fmt.Fprintf(&sb, "- %s\n", reason)
		}
		sb.WriteString("\n")
	}
	if p != nil {
		sb.WriteString(profile.FormatForPrompt(p))
		sb.WriteString("\n")
	}
	sb.WriteString(`Respond with a JSON object containing a "reasons" array of 3-4 short, specific sentences.
Focus on actionability.

Example: {"reasons": ["Clear scope: a single file change", "Reproduction steps are included", "A maintainer replied recently"]}
`)
	return sb.String()
}

// Queries asks for search terms that would locate the code behind r.
func Queries(r triage.Record, keywords, tree []string) string {
	r = redact.Record(r)
	var sb strings.Builder
	sb.WriteString("Given this GitHub issue and repository layout, suggest 5-8 specific search queries to find the relevant code.\n\n")
	fmt.Fprintf(&sb, "Issue #%d: %s\n\nDescription:\n%s\n\n", r.Number, r.Title, body(r, 200))
	fmt.Fprintf(&sb, "Keywords extracted: %s\n\n", strings.Join(keywords, ", "))
	sb.WriteString("Sample files in repo:\n")
	for _, f := range tree[:min(len(tree), 30)] {
		sb.WriteString(f)
		sb.WriteString("\n")
	}
	sb.WriteString(`
Respond with a JSON object containing a "queries" array. Include function or type names mentioned or implied,
error messages, identifiers and file names.

Example: {"queries": ["handleSubmit", "ValidationError", "user_input", "form.py"]}
`)
	return sb.String()
}

// FileHit summarizes one searched file for the analysis prompt.
type FileHit struct {
	Path    string
	Symbols []string
	Snippet string
}

// Analysis asks the model to explain the hits, sketch a call trace and rate
// its confidence.
func Analysis(r triage.Record, hits []FileHit) string {
	r = redact.Record(r)
	var sb strings.Builder
	fmt.Fprintf(&sb, "Analyze these code search results for issue #%d: %q\n\n", r.Number, r.Title)
	fmt.Fprintf(&sb, "Issue description:\n%s\n\nCode locations found:\n", body(r, 150))
	spent := 0
	for i, h := range hits[:min(len(hits), 5)] {
		fmt.Fprintf(&sb, "\n%d. %s\n", i+1, h.Path)
		fmt.Fprintf(&sb, "   Symbols: %s\n", strings.Join(h.Symbols[:min(len(h.Symbols), 5)], ", "))
		snippet := search.Truncate(redact.Redact(h.Snippet), 75)
		if cost := search.EstimateTokens(snippet); spent+cost <= AnalysisSnippetBudget {
			spent += cost
			fmt.Fprintf(&sb, "   Snippet:\n```\n%s\n```\n", snippet)
		} else {
			sb.WriteString("   Snippet: omitted\n")
		}
	}
	sb.WriteString(`
Provide:
1. For each file, why it is relevant (be specific). Use only the paths listed above.
2. A call trace if one can be inferred (A calls B calls C).
3. Your confidence: High (clear match), Medium (likely relevant) or Low (uncertain).
4. Two or three additional files worth checking.

Respond with JSON matching this structure:
{
  "enhanced_hits": [{"path": "...", "why_relevant": "..."}],
  "call_trace_hint": ["functionA", "functionB"],
  "confidence": "High|Medium|Low",
  "next_files": ["file1", "file2"]
}
`)
	return sb.String()
}

// BriefingInput is the context serialized into the briefing prompt.
type BriefingInput struct {
	Repo  BriefingRepo  `json:"repo"`
	Issue BriefingIssue `json:"issue"`
	Code  BriefingCode  `json:"code_analysis"`
}

type BriefingRepo struct {
	Name          string   `json:"name"`
	URL           string   `json:"url"`
	Description   string   `json:"description,omitempty"`
	DefaultBranch string   `json:"default_branch"`
	Languages     []string `json:"languages,omitempty"`
}

type BriefingIssue struct {
	Number int      `json:"number"`
	Title  string   `json:"title"`
	Body   string   `json:"body"`
	URL    string   `json:"url,omitempty"`
	Labels []string `json:"labels,omitempty"`
	Score  int      `json:"score"`
	Why    []string `json:"why_selected,omitempty"`
}

type BriefingCode struct {
	Keywords   []string       `json:"keywords,omitempty"`
	Confidence string         `json:"confidence"`
	Files      []BriefingFile `json:"files,omitempty"`
	CallTrace  []string       `json:"call_trace,omitempty"`
	NextFiles  []string       `json:"additional_files,omitempty"`
}

type BriefingFile struct {
	Path    string   `json:"path"`
	Symbols []string `json:"symbols,omitempty"`
	Why     string   `json:"why"`
	Snippet string   `json:"snippet,omitempty"`
}

// BriefingSections are the headings every briefing must contain, in order.
var BriefingSections = []string{
	"Overview",
	"Repository Setup",
	"Issue Analysis",
	"Code Location",
	"Implementation Plan",
	"Testing Strategy",
	"PR Preparation",
	"Notes & Risks",
}

// Briefing asks for the contributor briefing in Markdown.
func Briefing(in BriefingInput) string {
	in.Issue.Title = redact.Redact(in.Issue.Title)
	in.Issue.Body = search.Truncate(redact.Redact(in.Issue.Body), 500)
	for i := range in.Code.Files {
		in.Code.Files[i].Snippet = search.Truncate(redact.Redact(in.Code.Files[i].Snippet), 125)
	}
	ctx, _ := json.MarshalIndent(in, "", "  ")

	var sb strings.Builder
	sb.WriteString("Create a Contributor Briefing document for this GitHub issue.\n\nCONTEXT:\n")
	sb.Write(ctx)
	fmt.Fprintf(&sb, "\n\nWrite Markdown that starts with \"# Contributor Briefing: %s\" and has these sections as \"##\" headings:\n\n", in.Issue.Title)
	hints := []string{
		"repository, issue link, difficulty rating",
		"clone command, prerequisites, install steps, how to run tests",
		"what the issue asks for, why it was selected, expected outcome",
		"files to examine, key functions, call trace hints, confidence",
		"a numbered step-by-step fix plan with code hints and edge cases",
		"what to test, test commands, how to verify the fix",
		"branch name, commit message, PR checklist",
		"pitfalls and questions to ask maintainers",
	}
	for i, s := range BriefingSections {
		fmt.Fprintf(&sb, "- %s: %s\n", s, hints[i])
	}
	sb.WriteString("\nBe specific and encouraging. Use code blocks where helpful. Write the complete document now.\n")
	return sb.String()
}

// PRDraft asks for a commit message, PR title and PR body.
func PRDraft(r triage.Record, files []string) string {
	r = redact.Record(r)
	var sb strings.Builder
	sb.WriteString("Generate a pull request draft for this issue.\n\n")
	fmt.Fprintf(&sb, "Issue #%d: %s\nDescription: %s\n", r.Number, r.Title, body(r, 125))
	fmt.Fprintf(&sb, "Files likely modified: %s\n\n", strings.Join(files[:min(len(files), 3)], ", "))
	sb.WriteString(`Respond with JSON:
{
  "commit_message": "Short commit message in conventional commits format",
  "pr_title": "PR title",
  "pr_body": "PR description with context, changes and testing notes"
}
`)
	return sb.String()
}

// BuildRepair constructs a follow-up prompt to fix schema validation errors.
func BuildRepair(originalOutput string, errors []schema.ValidationError) string {
	var b strings.Builder
	b.WriteString("The JSON output you returned has validation errors. Fix ONLY the errors listed below and return the corrected JSON.\n\n")
	b.WriteString("## Validation Errors\n\n")
	for _, e := range errors {
		fmt.Fprintf(&b, "- %s: %s\n", e.Path, e.Message)
	}
	b.WriteString("\n## Original Output\n\n```json\n")
	b.WriteString(originalOutput)
	b.WriteString("\n```\n\nReturn ONLY the corrected JSON. No prose.\n")
	return b.String()
}
