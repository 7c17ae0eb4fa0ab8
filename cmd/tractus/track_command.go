package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tractus/internal/fsl"
	"tractus/internal/layout"
	"tractus/internal/tract"
)

func newTrackCommand(ctx *commandContext) *cobra.Command {
	var (
		subject     string
		bedpostxDir string
		network     bool
	)

	cmd := &cobra.Command{
		Use:   "track",
		Short: "Run probtrackx2 tractography over the subject's seed set",
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
			fslClient, err := fsl.New(cfg, fsl.WithLogger(logger))
			if err != nil {
				return err
			}

			if !cmd.Flags().Changed("network") {
				network = cfg.Tract.Network
			}
			runner := tract.NewRunner(cfg, fslClient, logger)
			result, err := runner.Run(cmd.Context(), tract.Options{
				BedpostxDir: bedpostxDir,
				Dirs:        dirs,
				Network:     network,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Tracking complete for %s\n", subject)
			fmt.Fprintf(out, "  outputs: %s\n", result.OutDir)
			if len(result.Waytotals) > 0 {
				fmt.Fprintf(out, "  seeds tracked: %d\n", len(result.Waytotals))
			}
			if result.NetworkMatrix != "" {
				fmt.Fprintf(out, "  network matrix: %s\n", result.NetworkMatrix)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Subject identifier for the output layout")
	cmd.Flags().StringVar(&bedpostxDir, "bedpostx", "", "Subject bedpostx output directory")
	cmd.Flags().BoolVar(&network, "network", false, "Run in network matrix mode (defaults to the configured value)")
	_ = cmd.MarkFlagRequired("subject")
	_ = cmd.MarkFlagRequired("bedpostx")

	return cmd
}
