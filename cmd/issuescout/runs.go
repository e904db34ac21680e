package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/issuescout/internal/gitrepo"
	"github.com/dshills/issuescout/internal/pipeline"
	"github.com/dshills/issuescout/internal/render"
	"github.com/dshills/issuescout/internal/store"
)

type runsFlags struct {
	format     string
	showFormat string
	repo       string
	limit      int
	olderThan  time.Duration
}

func newRunsCmd(g *globalFlags) *cobra.Command {
	f := &runsFlags{}

	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded scouting runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRunsList(cmd.Context(), g, f, cmd.OutOrStdout())
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&f.format, "format", "table", "Output format: table or json")
	flags.StringVar(&f.repo, "repo", "", "Only runs for owner/name")
	flags.IntVarP(&f.limit, "limit", "n", 20, "Maximum runs to list")

	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Print a recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRunsShow(cmd.Context(), args[0], g, f, cmd.OutOrStdout())
		},
	}
	show.Flags().StringVar(&f.showFormat, "format", "md", "Output format: md or json")

	prune := &cobra.Command{
		Use:   "prune",
		Short: "Delete old runs and stale repository checkouts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRunsPrune(cmd.Context(), g, f, cmd.OutOrStdout())
		},
	}
	prune.Flags().DurationVar(&f.olderThan, "older-than", 30*24*time.Hour, "Delete runs started before this age")

	cmd.AddCommand(show, prune)
	return cmd
}

func runRunsList(ctx context.Context, g *globalFlags, f *runsFlags, out io.Writer) error {
	if err := checkFormat(f.format, "table", "json"); err != nil {
		return err
	}
	e, err := setup(g, nil, out)
	if err != nil {
		return err
	}
	st, err := e.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	runs, err := st.Recent(ctx, f.repo, f.limit)
	if err != nil {
		return err
	}
	if f.format == "json" {
		data, err := render.JSON(runs)
		if err != nil {
			return err
		}
		return e.write(string(data), "", false)
	}
	if len(runs) == 0 {
		return e.write("No runs recorded.\n", "", false)
	}
	return e.write(render.RunsTable(runs), "", false)
}

func runRunsShow(ctx context.Context, id string, g *globalFlags, f *runsFlags, out io.Writer) error {
	if err := checkFormat(f.showFormat, "md", "json"); err != nil {
		return err
	}
	e, err := setup(g, nil, out)
	if err != nil {
		return err
	}
	st, err := e.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	run, err := st.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return exitError(3, "no run with id %s", id)
	}
	if err != nil {
		return err
	}

	if f.showFormat == "json" {
		var buf bytes.Buffer
		if err := json.Indent(&buf, run.Payload, "", "  "); err != nil {
			return fmt.Errorf("run %s has a malformed payload: %w", id, err)
		}
		buf.WriteByte('\n')
		return e.write(buf.String(), "", false)
	}

	var rep pipeline.Report
	if err := json.Unmarshal(run.Payload, &rep); err != nil {
		return fmt.Errorf("run %s has a malformed payload: %w", id, err)
	}
	md := render.Markdown(&rep)
	if run.Status == store.StatusFailed {
		md += fmt.Sprintf("\n**Run failed:** %s\n", run.Error)
	}
	return e.write(md, "", true)
}

func runRunsPrune(ctx context.Context, g *globalFlags, f *runsFlags, out io.Writer) error {
	e, err := setup(g, nil, out)
	if err != nil {
		return err
	}
	st, err := e.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	now := time.Now()
	runs, err := st.Prune(ctx, now.Add(-f.olderThan))
	if err != nil {
		return err
	}
	cl := &gitrepo.Cloner{CacheDir: e.cfg.Cache.Dir, Log: e.log}
	clones, err := cl.Prune(e.cfg.Cache.MaxAge, now)
	if err != nil {
		return err
	}
	return e.write(fmt.Sprintf("Removed %d runs and %d cached checkouts.\n", runs, clones), "", false)
}
