package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/issuescout/internal/agent"
	"github.com/dshills/issuescout/internal/render"
	"github.com/dshills/issuescout/internal/triage"
)

type scoreFlags struct {
	format string
	out    string
	topK   int
	now    string
}

func newScoreCmd(g *globalFlags) *cobra.Command {
	f := &scoreFlags{}

	cmd := &cobra.Command{
		Use:   "score <issues.json>",
		Short: "Score and rank issue records from a JSON file without network access",
		Long: "Score a JSON array of issue records (id, number, title, body, labels,\n" +
			"comments, created_at, updated_at). Use \"-\" to read from stdin.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScore(cmd.Context(), args[0], g, f, cmd.InOrStdin(), cmd.OutOrStdout())
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&f.format, "format", "table", "Output format: table, md or json")
	flags.StringVar(&f.out, "out", "", "Output file path (default: stdout)")
	flags.IntVarP(&f.topK, "top-k", "k", 0, "Number of issues to keep (default from config, 3)")
	flags.StringVar(&f.now, "now", "", "Reference time for activity scoring, RFC 3339 (default: current time)")
	return cmd
}

func runScore(ctx context.Context, path string, g *globalFlags, f *scoreFlags, in io.Reader, out io.Writer) error {
	if err := checkFormat(f.format, "table", "md", "json"); err != nil {
		return err
	}

	now := time.Now()
	if f.now != "" {
		t, err := time.Parse(time.RFC3339, f.now)
		if err != nil {
			return exitError(3, "invalid --now: %v", err)
		}
		now = t
	}

	records, err := readRecords(path, in)
	if err != nil {
		return exitError(3, "failed to read issues: %v", err)
	}

	overrides := map[string]any{}
	if f.topK > 0 {
		overrides["scoring.top_k"] = f.topK
	}
	e, err := setup(g, overrides, out)
	if err != nil {
		return err
	}

	scorer, err := triage.NewScorer(e.prof.Weights, now)
	if err != nil {
		return exitError(3, "invalid weights: %v", err)
	}
	ranked, err := triage.Rank(ctx, scorer, records, e.cfg.Scoring.TopK)
	if err != nil {
		return classify(err)
	}
	// Without a model the triage stage only attaches scorer reasons.
	result, err := (&agent.Triage{Log: e.log}).Run(ctx, nil, ranked)
	if err != nil {
		return err
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
		return e.write("No issues to rank.\n", f.out, false)
	}
	return e.write(render.Table(result.Ranked), f.out, false)
}

func readRecords(path string, in io.Reader) ([]triage.Record, error) {
	var data []byte
	var err error
	if path == "-" {
		data, err = io.ReadAll(in)
	} else {
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	var records []triage.Record
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return records, nil
}
