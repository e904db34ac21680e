package main

import (
	"io"
	"strings"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/dshills/issuescout/internal/profile"
	"github.com/dshills/issuescout/internal/render"
)

type weightsFlags struct {
	format string
	list   bool
}

func newWeightsCmd(g *globalFlags) *cobra.Command {
	f := &weightsFlags{}

	cmd := &cobra.Command{
		Use:   "weights",
		Short: "Print the effective scoring weights",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWeights(g, f, cmd.OutOrStdout())
		},
	}
	flags := cmd.Flags()
	flags.StringVar(&f.format, "format", "yaml", "Output format: yaml or json")
	flags.BoolVar(&f.list, "list", false, "List built-in profiles")
	return cmd
}

func runWeights(g *globalFlags, f *weightsFlags, out io.Writer) error {
	if f.list {
		names, err := profile.List()
		if err != nil {
			return err
		}
		_, err = io.WriteString(out, strings.Join(names, "\n")+"\n")
		return err
	}
	if err := checkFormat(f.format, "yaml", "json"); err != nil {
		return err
	}

	e, err := setup(g, nil, out)
	if err != nil {
		return err
	}
	if f.format == "json" {
		data, err := render.JSON(e.prof)
		if err != nil {
			return err
		}
		return e.write(string(data), "", false)
	}
	data, err := yaml.Marshal(e.prof)
	if err != nil {
		return err
	}
	return e.write(string(data), "", false)
}
