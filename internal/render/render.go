// Package render produces Markdown, JSON and terminal output from a run.
package render

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/dshills/issuescout/internal/agent"
	"github.com/dshills/issuescout/internal/pipeline"
)

// Markdown renders a full run as a Markdown report.
func Markdown(r *pipeline.Report) string {
	var b strings.Builder

	b.WriteString("# IssueScout Report\n\n")
	if r.Repo != nil {
		fmt.Fprintf(&b, "**Repository:** %s/%s\n", r.Repo.Owner, r.Repo.Name)
	}
	if r.RunID != "" {
		fmt.Fprintf(&b, "**Run:** %s\n", r.RunID)
	}
	b.WriteString("\n")

	if r.Triage != nil {
		writeRanking(&b, r.Triage)
	}

	if issue, ok := r.Selected(); ok {
		fmt.Fprintf(&b, "## Selected Issue\n\n#%d %s\n\n", issue.Record.Number, issue.Record.Title)
		if issue.Record.URL != "" {
			fmt.Fprintf(&b, "%s\n\n", issue.Record.URL)
		}
	}

	if r.Locator != nil {
		writeLocator(&b, r.Locator)
	}

	if r.Planner != nil {
		d := r.Planner.PRDraft
		b.WriteString("## Next Steps\n\n")
		fmt.Fprintf(&b, "- Branch: `%s`\n", d.BranchName)
		fmt.Fprintf(&b, "- Commit: %s\n", firstLine(d.CommitMessage))
		fmt.Fprintf(&b, "- PR title: %s\n", d.PRTitle)
		for _, cmd := range r.Planner.TestCommands {
			fmt.Fprintf(&b, "- Test: `%s`\n", cmd)
		}
		b.WriteString("\n")
		if len(r.Planner.RiskNotes) > 0 {
			b.WriteString("### Risks\n\n")
			for _, n := range r.Planner.RiskNotes {
				fmt.Fprintf(&b, "- %s\n", n)
			}
			b.WriteString("\n")
		}
	}

	return b.String()
}

// Ranking renders only the triage stage.
func Ranking(t *agent.TriageOutput) string {
	var b strings.Builder
	b.WriteString("# Issue Ranking\n\n")
	if t.Repo != nil {
		fmt.Fprintf(&b, "**Repository:** %s/%s\n\n", t.Repo.Owner, t.Repo.Name)
	}
	writeRanking(&b, t)
	return b.String()
}

func writeRanking(b *strings.Builder, t *agent.TriageOutput) {
	s := t.Summary
	fmt.Fprintf(b, "**Ranked:** %d issues, best %d / 100 (%s), mean %.1f\n\n", s.Count, s.Best, s.Band, s.Mean)

	if len(t.Ranked) == 0 {
		b.WriteString("No matching open issues.\n\n")
		return
	}

	b.WriteString("## Ranked Issues\n\n")
	for _, r := range t.Ranked {
		bd := r.Breakdown
		fmt.Fprintf(b, "### %d. #%d %s [%d / 100]\n\n", r.Rank, r.Record.Number, r.Record.Title, bd.Total)
		fmt.Fprintf(b, "Labels %d · Clarity %d · Activity %d · Size %d · Risk %d\n\n",
			bd.Labels, bd.Clarity, bd.Activity, bd.Size, bd.Risk)
		for _, w := range r.Why {
			fmt.Fprintf(b, "- %s\n", w)
		}
		if len(r.Why) > 0 {
			b.WriteString("\n")
		}
	}
}

func writeLocator(b *strings.Builder, l *agent.LocatorOutput) {
	fmt.Fprintf(b, "## Code Location [%s confidence]\n\n", strings.ToLower(string(l.Confidence)))
	if len(l.Hits) == 0 {
		b.WriteString("No relevant files found.\n\n")
	}
	for _, h := range l.Hits {
		fmt.Fprintf(b, "- `%s`", h.Path)
		if len(h.Lines) > 0 {
			fmt.Fprintf(b, " (L%d)", h.Lines[0])
		}
		if h.WhyRelevant != "" {
			fmt.Fprintf(b, ": %s", h.WhyRelevant)
		}
		b.WriteString("\n")
	}
	if len(l.Hits) > 0 {
		b.WriteString("\n")
	}
	if len(l.CallTraceHint) > 0 {
		fmt.Fprintf(b, "**Call trace:** %s\n\n", strings.Join(l.CallTraceHint, " → "))
	}
	if len(l.NextFiles) > 0 {
		b.WriteString("**Also check:**\n")
		for _, f := range l.NextFiles {
			fmt.Fprintf(b, "- `%s`\n", f)
		}
		b.WriteString("\n")
	}
}

// Briefing returns the contributor briefing with a trailing newline.
func Briefing(p *agent.PlannerOutput) string {
	md := strings.TrimSpace(p.BriefingMarkdown)
	if md == "" {
		return ""
	}
	return md + "\n"
}

// PRDraft renders the pull request draft as Markdown.
func PRDraft(d agent.PRDraft) string {
	if d.PRTitle == "" && d.CommitMessage == "" {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", d.PRTitle)
	fmt.Fprintf(&b, "**Branch:** `%s`\n\n", d.BranchName)
	b.WriteString("## Commit Message\n\n```\n")
	b.WriteString(strings.TrimRight(d.CommitMessage, "\n"))
	b.WriteString("\n```\n\n")
	b.WriteString("## Description\n\n")
	b.WriteString(strings.TrimSpace(d.PRBody))
	b.WriteString("\n")
	return b.String()
}

// JSON encodes v with two-space indentation and a trailing newline.
func JSON(v any) ([]byte, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("render.JSON: %w", err)
	}
	return append(data, '\n'), nil
}

func firstLine(s string) string {
	s, _, _ = strings.Cut(strings.TrimSpace(s), "\n")
	return s
}
