package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tractus/internal/deps"
	"tractus/internal/tools"
)

func newDepsCommand(ctx *commandContext) *cobra.Command {
	var (
		jsonMode bool
		versions bool
	)

	cmd := &cobra.Command{
		Use:   "deps",
		Short: "Check required FSL and FreeSurfer binaries",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			requirements := deps.Requirements(cfg)
			statuses := deps.CheckBinaries(requirements)
			if versions {
				statuses = deps.ProbeVersions(cmd.Context(), tools.NewExecutor(), requirements, statuses)
			}

			if jsonMode {
				return writeJSON(cmd, statuses)
			}

			colorize := shouldColorize(cmd.OutOrStdout())
			rows := make([][]string, 0, len(statuses))
			missingRequired := 0
			for _, status := range statuses {
				state := passFailLabel(status.Available, colorize)
				if !status.Available && status.Optional {
					state = "optional"
				}
				if !status.Available && !status.Optional {
					missingRequired++
				}
				detail := status.Detail
				if status.Version != "" {
					detail = status.Version
				}
				rows = append(rows, []string{status.Name, status.Command, state, detail})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Tool", "Command", "State", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft, alignLeft},
			))
			if missingRequired > 0 {
				return fmt.Errorf("%d required binaries missing", missingRequired)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonMode, "json", false, "Emit results as JSON")
	cmd.Flags().BoolVar(&versions, "versions", false, "Probe version banners for available tools")

	return cmd
}
