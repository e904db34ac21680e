package agent

import (
	"context"
	"slices"
	"strings"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/errgroup"

	"github.com/dshills/issuescout/internal/github"
	"github.com/dshills/issuescout/internal/profile"
	"github.com/dshills/issuescout/internal/prompt"
	"github.com/dshills/issuescout/internal/schema"
	"github.com/dshills/issuescout/internal/triage"
)

// MaxReasons caps the reasons kept per issue.
const MaxReasons = 4

// Triage turns scorer reasons into short reader-facing explanations.
type Triage struct {
	Model   Model
	Profile *profile.Profile
	Log     *log.Logger
}

// Run explains each ranked issue and selects the first. Model failures fall
// back to the scorer's own reasons; only cancellation is an error.
func (t *Triage) Run(ctx context.Context, repo *github.Repo, ranked []triage.Ranked) (*TriageOutput, error) {
	logger := orDiscard(t.Log)
	out := &TriageOutput{
		Repo:    repo,
		Ranked:  make([]RankedIssue, len(ranked)),
		Summary: triage.Summarize(ranked),
	}

	g, gctx := errgroup.WithContext(ctx)
	for i, r := range ranked {
		out.Ranked[i] = RankedIssue{Ranked: r}
		g.Go(func() error {
			out.Ranked[i].Why = t.reasons(gctx, logger, r)
			return gctx.Err()
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	if len(out.Ranked) > 0 {
		out.Selected = out.Ranked[0].Record.Number
		logger.Info("selected issue", "number", out.Selected, "score", out.Ranked[0].Breakdown.Total)
	}
	return out, nil
}

func (t *Triage) reasons(ctx context.Context, logger *log.Logger, r triage.Ranked) []string {
	base := slices.Clone(r.Breakdown.Reasons[:min(len(r.Breakdown.Reasons), MaxReasons)])
	if t.Model.Provider == nil {
		return base
	}

	s := t.Model.settings(prompt.TriageSystem, 500, true)
	got, err := generateJSON(ctx, t.Model.Provider, prompt.Triage(r.Record, r.Breakdown, t.Profile), s, schema.ValidateTriageReasons)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("reason polishing failed, using scorer reasons", "issue", r.Record.ID, "err", err)
		}
		return base
	}

	var why []string
	for _, reason := range got.Reasons {
		why = append(why, strings.TrimSpace(reason))
	}
	return why[:min(len(why), MaxReasons)]
}
