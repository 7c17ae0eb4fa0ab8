package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tractus/internal/preflight"
)

func newPreflightCommand(ctx *commandContext) *cobra.Command {
	var jsonMode bool

	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "Run pre-batch environment checks",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}

			results := preflight.RunAll(cmd.Context(), cfg)
			if jsonMode {
				return writeJSON(cmd, results)
			}

			colorize := shouldColorize(cmd.OutOrStdout())
			rows := make([][]string, 0, len(results))
			failed := 0
			for _, result := range results {
				if !result.Passed {
					failed++
				}
				rows = append(rows, []string{
					result.Name,
					passFailLabel(result.Passed, colorize),
					result.Detail,
				})
			}
			fmt.Fprintln(cmd.OutOrStdout(), renderTable(
				[]string{"Check", "State", "Detail"},
				rows,
				[]columnAlignment{alignLeft, alignLeft, alignLeft},
			))
			if failed > 0 {
				return fmt.Errorf("%d preflight checks failed", failed)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&jsonMode, "json", false, "Emit results as JSON")

	return cmd
}
