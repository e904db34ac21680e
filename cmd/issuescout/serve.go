package main

import (
	"context"
	"io"

	"github.com/spf13/cobra"

	"github.com/dshills/issuescout/internal/pipeline"
	"github.com/dshills/issuescout/internal/server"
)

type serveFlags struct {
	addr string
	llm  llmOptions
}

func newServeCmd(g *globalFlags) *cobra.Command {
	f := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ranking API and run log over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd.Context(), g, f, cmd.OutOrStdout())
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&f.addr, "addr", "", "Listen address (default from config, 127.0.0.1:8787)")
	addLLMFlags(cmd, &f.llm)
	return cmd
}

func runServe(ctx context.Context, g *globalFlags, f *serveFlags, out io.Writer) error {
	e, err := setup(g, nil, out)
	if err != nil {
		return err
	}
	tr, _, _, err := e.agents(f.llm)
	if err != nil {
		return err
	}
	st, err := e.openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	srv := &server.Server{
		Profile: e.prof.Name,
		Weights: e.prof.Weights,
		TopK:    e.cfg.Scoring.TopK,
		Runs:    st,
		Ranker: &pipeline.Pipeline{
			GitHub:  e.githubClient(),
			Weights: e.prof.Weights,
			TopK:    e.cfg.Scoring.TopK,
			List:    e.listOptions(),
			Triage:  tr,
			Log:     e.log,
		},
		Log: e.log,
	}
	return srv.ListenAndServe(ctx, firstNonEmpty(f.addr, e.cfg.Server.Addr))
}
