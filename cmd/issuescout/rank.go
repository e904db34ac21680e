package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/dshills/issuescout/internal/github"
	"github.com/dshills/issuescout/internal/pipeline"
	"github.com/dshills/issuescout/internal/render"
)

type rankFlags struct {
	format    string
	out       string
	topK      int
	maxIssues int
	allLabels bool
	llm       llmOptions

	// source replaces the GitHub client, used by tests.
	source pipeline.IssueSource
}

func newRankCmd(g *globalFlags) *cobra.Command {
	f := &rankFlags{}

	cmd := &cobra.Command{
		Use:   "rank <repo>",
		Short: "Fetch open issues and rank them for a first contribution",
		Long: "Fetch open issues from a GitHub repository (URL or owner/name), score each\n" +
			"one deterministically and print the top candidates.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRank(cmd.Context(), args[0], g, f, cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.format, "format", "table", "Output format: table, md or json")
	flags.StringVar(&f.out, "out", "", "Output file path (default: stdout)")
	addFetchFlags(cmd, &f.topK, &f.maxIssues, &f.allLabels)
	addLLMFlags(cmd, &f.llm)
	return cmd
}

func addFetchFlags(cmd *cobra.Command, topK, maxIssues *int, allLabels *bool) {
	flags := cmd.Flags()
	flags.IntVarP(topK, "top-k", "k", 0, "Number of issues to keep (default from config, 3)")
	flags.IntVar(maxIssues, "max-issues", 0, "Maximum issues to fetch (default from config, 30)")
	flags.BoolVar(allLabels, "all-labels", false, "Consider all open issues, not only beginner-labeled ones")
}

func addLLMFlags(cmd *cobra.Command, o *llmOptions) {
	flags := cmd.Flags()
	flags.StringVar(&o.model, "model", "", "Model ID for every agent (e.g. claude-sonnet-4-20250514, gpt-4o, groq:llama-3.3-70b-versatile)")
	flags.BoolVar(&o.noLLM, "no-llm", false, "Skip model calls and use deterministic fallbacks")
}

func fetchOverrides(topK, maxIssues int, allLabels bool) map[string]any {
	o := map[string]any{}
	if topK > 0 {
		o["scoring.top_k"] = topK
	}
	if maxIssues > 0 {
		o["github.max_issues"] = maxIssues
	}
	if allLabels {
		o["github.beginner_only"] = false
	}
	return o
}

func runRank(ctx context.Context, repo string, g *globalFlags, f *rankFlags, out io.Writer) error {
	if err := checkFormat(f.format, "table", "md", "json"); err != nil {
		return err
	}
	if _, _, err := github.ParseRepoURL(repo); err != nil {
		return exitError(3, "%v", err)
	}

	e, err := setup(g, fetchOverrides(f.topK, f.maxIssues, f.allLabels), out)
	if err != nil {
		return err
	}
	tr, _, _, err := e.agents(f.llm)
	if err != nil {
		return err
	}

	p := &pipeline.Pipeline{
		GitHub:  f.source,
		Weights: e.prof.Weights,
		TopK:    e.cfg.Scoring.TopK,
		List:    e.listOptions(),
		Triage:  tr,
		Log:     e.log,
	}
	if p.GitHub == nil {
		p.GitHub = e.githubClient()
	}

	result, err := p.RankIssues(ctx, repo)
	if err != nil {
		return classify(err)
	}

	switch f.format {
	case "json":
		data, err := render.JSON(result)
		if err != nil {
			return err
		}
		return e.write(string(data), f.out, false)
	case "md":
		return e.write(render.Ranking(result), f.out, true)
	}
	if len(result.Ranked) == 0 {
		return e.write("No matching open issues.\n", f.out, false)
	}
	body := render.Table(result.Ranked)
	if sel, ok := result.SelectedIssue(); ok {
		body += fmt.Sprintf("\nSelected #%d: %s\n", sel.Record.Number, sel.Record.URL)
		for _, w := range sel.Why {
			body += "  - " + w + "\n"
		}
	}
	return e.write(body, f.out, false)
}
