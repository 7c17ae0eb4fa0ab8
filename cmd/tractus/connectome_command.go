package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"tractus/internal/connectome"
	"tractus/internal/layout"
)

func newConnectomeCommand(ctx *commandContext) *cobra.Command {
	var (
		subject  string
		jsonMode bool
	)

	cmd := &cobra.Command{
		Use:   "connectome",
		Short: "Assemble the connectivity matrix and graph metrics",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			dirs, err := layout.Subject(cfg.Paths.OutputDir, subject)
			if err != nil {
				return err
			}

			result, err := connectome.Process(cmd.Context(), dirs, cfg.Connectome, logger)
			if err != nil {
				return err
			}

			if jsonMode {
				return writeJSON(cmd, result.Metrics)
			}

			m := result.Metrics
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Metric", "Value"},
				[][]string{
					{"nodes", fmt.Sprintf("%d", m.Nodes)},
					{"edges", fmt.Sprintf("%d", m.Edges)},
					{"density", fmt.Sprintf("%.4f", m.Density)},
					{"mean clustering", fmt.Sprintf("%.4f", m.MeanClustering)},
					{"char path length", fmt.Sprintf("%.4f", m.CharPathLength)},
					{"global efficiency", fmt.Sprintf("%.4f", m.GlobalEfficiency)},
				},
				[]columnAlignment{alignLeft, alignRight},
			))

			names := make([]string, 0, len(result.Outputs))
			for name := range result.Outputs {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				fmt.Fprintf(out, "  %s: %s\n", name, result.Outputs[name])
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Subject identifier for the output layout")
	cmd.Flags().BoolVar(&jsonMode, "json", false, "Emit metrics as JSON")
	_ = cmd.MarkFlagRequired("subject")

	return cmd
}
