package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	g := &globalFlags{}
	root := &cobra.Command{
		Use:           "issuescout",
		Short:         "Find, rank and plan beginner-friendly GitHub issues",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
	}

	pf := root.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "Config file (default: $XDG_CONFIG_HOME/issuescout/config.yaml)")
	pf.BoolVarP(&g.verbose, "verbose", "v", false, "Log debug output to stderr")
	pf.StringVar(&g.profile, "profile", "", "Scoring profile: default, strict or docs")
	pf.StringVar(&g.weightsFile, "weights", "", "Custom scoring weights YAML file")

	root.AddCommand(
		newRankCmd(g),
		newScoutCmd(g),
		newScoreCmd(g),
		newRunsCmd(g),
		newWeightsCmd(g),
		newServeCmd(g),
		newVersionCmd(),
	)

	err := root.ExecuteContext(ctx)
	stop()
	if err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			fmt.Fprintln(os.Stderr, ee.msg)
			os.Exit(ee.code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "issuescout %s\n", version)
		},
	}
}
