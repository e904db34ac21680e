package agent

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/dshills/issuescout/internal/github"
	"github.com/dshills/issuescout/internal/plan"
	"github.com/dshills/issuescout/internal/prompt"
	"github.com/dshills/issuescout/internal/schema"
)

// Planner writes the contributor briefing and pull request draft.
type Planner struct {
	Model Model
	Log   *log.Logger
}

// Run builds the plan for issue using what the locator found. loc may be
// nil when no checkout was available.
func (p *Planner) Run(ctx context.Context, repo *github.Repo, issue RankedIssue, loc *LocatorOutput) (*PlannerOutput, error) {
	logger := orDiscard(p.Log)
	if loc == nil {
		loc = &LocatorOutput{IssueNumber: issue.Record.Number, Confidence: schema.ConfidenceLow}
	}
	logger.Info("planning fix", "issue", issue.Record.Number)

	langs := topLanguages(repo, 5)
	primary := ""
	if repo != nil {
		primary = repo.Language
	}

	out := &PlannerOutput{
		TestCommands: plan.TestCommands(langs, primary),
		RiskNotes:    plan.RiskNotes(issue.Record.Title+" "+issue.Record.Body, loc.Confidence == schema.ConfidenceLow),
	}
	out.PRDraft = p.prDraft(ctx, logger, issue, loc)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	in := briefingInput(repo, langs, issue, loc)
	out.BriefingMarkdown = p.briefing(ctx, logger, in, out)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	out.Steps = plan.InferSteps(out.BriefingMarkdown)
	return out, nil
}

func (p *Planner) briefing(ctx context.Context, logger *log.Logger, in prompt.BriefingInput, out *PlannerOutput) string {
	if p.Model.Provider != nil {
		s := p.Model.settings(prompt.PlannerSystem, 4096, false)
		md, err := p.Model.Provider.Generate(ctx, prompt.Briefing(in), s)
		if err == nil && strings.TrimSpace(md) != "" {
			return strings.TrimSpace(md) + "\n"
		}
		if ctx.Err() == nil {
			logger.Warn("briefing generation failed, using template", "issue", in.Issue.Number, "err", err)
		}
	}
	return FallbackBriefing(in, out)
}

func (p *Planner) prDraft(ctx context.Context, logger *log.Logger, issue RankedIssue, loc *LocatorOutput) PRDraft {
	r := issue.Record
	draft := PRDraft{
		BranchName:    plan.BranchName(r.Number, r.Title),
		CommitMessage: fmt.Sprintf("fix: resolve issue #%d", r.Number),
		PRTitle:       "Fix: " + r.Title,
		PRBody:        fmt.Sprintf("## Description\nResolves #%d\n\n## Changes\n\n## Testing\n", r.Number),
	}
	if p.Model.Provider == nil {
		return draft
	}

	var files []string
	for _, h := range loc.Hits {
		files = append(files, h.Path)
	}
	s := p.Model.settings(prompt.PlannerSystem, 800, true)
	got, err := generateJSON(ctx, p.Model.Provider, prompt.PRDraft(r, files), s, schema.ValidatePRDraft)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("PR draft generation failed, using template", "issue", r.Number, "err", err)
		}
		return draft
	}
	draft.CommitMessage = strings.TrimSpace(got.CommitMessage)
	draft.PRTitle = strings.TrimSpace(got.PRTitle)
	draft.PRBody = strings.TrimSpace(got.PRBody)
	return draft
}

// topLanguages returns up to n repository languages, largest first.
func topLanguages(repo *github.Repo, n int) []string {
	if repo == nil {
		return nil
	}
	langs := make([]string, 0, len(repo.Languages))
	for l := range repo.Languages {
		langs = append(langs, l)
	}
	sort.Slice(langs, func(i, j int) bool {
		bi, bj := repo.Languages[langs[i]], repo.Languages[langs[j]]
		if bi != bj {
			return bi > bj
		}
		return langs[i] < langs[j]
	})
	return langs[:min(len(langs), n)]
}

func briefingInput(repo *github.Repo, langs []string, issue RankedIssue, loc *LocatorOutput) prompt.BriefingInput {
	r := issue.Record
	in := prompt.BriefingInput{
		Issue: prompt.BriefingIssue{
			Number: r.Number,
			Title:  r.Title,
			Body:   r.Body,
			URL:    r.URL,
			Labels: r.Labels,
			Score:  issue.Breakdown.Total,
			Why:    issue.Why,
		},
		Code: prompt.BriefingCode{
			Keywords:   loc.Keywords,
			Confidence: string(loc.Confidence),
			CallTrace:  loc.CallTraceHint,
			NextFiles:  loc.NextFiles,
		},
	}
	if repo != nil {
		in.Repo = prompt.BriefingRepo{
			Name:          repo.FullName,
			URL:           repo.HTMLURL,
			Description:   repo.Description,
			DefaultBranch: repo.DefaultBranch,
			Languages:     langs,
		}
	}
	for _, h := range loc.Hits[:min(len(loc.Hits), 5)] {
		in.Code.Files = append(in.Code.Files, prompt.BriefingFile{
			Path:    h.Path,
			Symbols: h.Symbols,
			Why:     h.WhyRelevant,
			Snippet: h.Snippet,
		})
	}
	return in
}
