package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dshills/issuescout/internal/export"
	"github.com/dshills/issuescout/internal/github"
	"github.com/dshills/issuescout/internal/gitrepo"
	"github.com/dshills/issuescout/internal/pipeline"
	"github.com/dshills/issuescout/internal/render"
)

type scoutFlags struct {
	format    string
	out       string
	outDir    string
	topK      int
	maxIssues int
	allLabels bool
	refresh   bool
	noStore   bool
	llm       llmOptions

	// Injected by tests.
	source pipeline.IssueSource
	cloner pipeline.Cloner
}

func newScoutCmd(g *globalFlags) *cobra.Command {
	f := &scoutFlags{}

	cmd := &cobra.Command{
		Use:   "scout <repo>",
		Short: "Rank issues, locate the code for the best one and write a contributor briefing",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScout(cmd.Context(), args[0], g, f, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.format, "format", "md", "Output format: md or json")
	flags.StringVar(&f.out, "out", "", "Report file path (default: stdout)")
	flags.StringVar(&f.outDir, "out-dir", "", "Write briefing.md and pr_draft.md into this directory")
	flags.BoolVar(&f.refresh, "refresh", false, "Pull the latest commit into a cached checkout")
	flags.BoolVar(&f.noStore, "no-store", false, "Do not record the run in the run log")
	addFetchFlags(cmd, &f.topK, &f.maxIssues, &f.allLabels)
	addLLMFlags(cmd, &f.llm)
	return cmd
}

func runScout(ctx context.Context, repo string, g *globalFlags, f *scoutFlags, out io.Writer) error {
	if err := checkFormat(f.format, "md", "json"); err != nil {
		return err
	}
	if _, _, err := github.ParseRepoURL(repo); err != nil {
		return exitError(3, "%v", err)
	}

	e, err := setup(g, fetchOverrides(f.topK, f.maxIssues, f.allLabels), out)
	if err != nil {
		return err
	}
	tr, loc, pl, err := e.agents(f.llm)
	if err != nil {
		return err
	}

	p := &pipeline.Pipeline{
		GitHub:  f.source,
		Cloner:  f.cloner,
		Weights: e.prof.Weights,
		TopK:    e.cfg.Scoring.TopK,
		List:    e.listOptions(),
		Triage:  tr,
		Locator: loc,
		Planner: pl,
		Log:     e.log,
	}
	if p.GitHub == nil {
		p.GitHub = e.githubClient()
	}
	if p.Cloner == nil {
		p.Cloner = &gitrepo.Cloner{CacheDir: e.cfg.Cache.Dir, Refresh: f.refresh, Log: e.log}
	}
	if !f.noStore {
		st, err := e.openStore()
		if err != nil {
			return err
		}
		defer st.Close()
		p.Store = st
	}

	rep, err := p.Run(ctx, repo)
	if err != nil {
		return classify(err)
	}

	if f.outDir != "" {
		written, err := export.WriteAll(rep.Planner, f.outDir)
		if err != nil {
			return fmt.Errorf("failed to export briefing: %w", err)
		}
		for _, path := range written {
			e.log.Info("exported", "path", path)
		}
	}

	if f.format == "json" {
		data, err := render.JSON(rep)
		if err != nil {
			return err
		}
		return e.write(string(data), f.out, false)
	}

	md := render.Markdown(rep)
	if f.outDir == "" && rep.Planner != nil {
		md += "\n---\n\n" + render.Briefing(rep.Planner)
	}
	return e.write(md, f.out, true)
}
