package main

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"tractus/internal/freesurfer"
	"tractus/internal/fsl"
	"tractus/internal/logging"
	"tractus/internal/preflight"
	"tractus/internal/queue"
	"tractus/internal/workflow"
)

func newRunCommand(ctx *commandContext) *cobra.Command {
	var (
		once          bool
		skipPreflight bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Process queued subjects through the pipeline",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}

			if !skipPreflight {
				var failed []string
				for _, result := range preflight.RunAll(cmd.Context(), cfg) {
					if !result.Passed {
						failed = append(failed, fmt.Sprintf("%s: %s", result.Name, result.Detail))
					}
				}
				if len(failed) > 0 {
					for _, line := range failed {
						fmt.Fprintln(cmd.ErrOrStderr(), line)
					}
					return fmt.Errorf("%d preflight checks failed (use --skip-preflight to override)", len(failed))
				}
			}

			fslClient, err := fsl.New(cfg, fsl.WithLogger(logger))
			if err != nil {
				return err
			}
			fsClient, err := freesurfer.New(cfg, freesurfer.WithLogger(logger))
			if err != nil {
				return err
			}

			store, err := queue.Open(cfg)
			if err != nil {
				return err
			}
			defer store.Close()

			logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, logging.RetentionTarget{
				Dir:     cfg.Paths.LogDir,
				Pattern: "*.log",
			})

			handlers := workflow.Handlers(workflow.StageDeps{
				Config:     cfg,
				FSL:        fslClient,
				FreeSurfer: fsClient,
				Logger:     logger,
			})
			runner := workflow.NewRunner(cfg, store, logger, workflow.Bindings(handlers))

			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			if once {
				processed, err := runner.RunOnce(signalCtx)
				if err != nil {
					return err
				}
				if !processed {
					fmt.Fprintln(cmd.OutOrStdout(), "Queue is idle")
				}
				return nil
			}
			return runner.Start(signalCtx)
		},
	}

	cmd.Flags().BoolVar(&once, "once", false, "Process at most one stage step and exit")
	cmd.Flags().BoolVar(&skipPreflight, "skip-preflight", false, "Skip environment checks before starting")

	return cmd
}
