package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tractus/internal/freesurfer"
	"tractus/internal/fsl"
	"tractus/internal/layout"
	"tractus/internal/preproc"
	"tractus/internal/stage"
)

func newPreprocCommand(ctx *commandContext) *cobra.Command {
	var (
		subject   string
		anat      string
		ref       string
		extras    []string
		useBBR    bool
		fsSubject string
	)

	cmd := &cobra.Command{
		Use:   "preproc",
		Short: "Run anatomical preprocessing and registration for one subject",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			logger, err := ctx.ensureLogger()
			if err != nil {
				return err
			}
			if err := stage.RequirePaths("preproc", map[string]string{
				"anatomical volume":   anat,
				"diffusion reference": ref,
			}); err != nil {
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
			var fsClient *freesurfer.Client
			if useBBR {
				fsClient, err = freesurfer.New(cfg, freesurfer.WithLogger(logger))
				if err != nil {
					return err
				}
			}

			runner := preproc.NewRunner(cfg, fslClient, fsClient, logger)
			result, err := runner.Run(cmd.Context(), dirs, preproc.Options{
				Anat:      anat,
				DiffRef:   ref,
				Extras:    extras,
				Steps:     cfg.Preproc,
				UseBBR:    useBBR,
				FSSubject: fsSubject,
			})
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Preprocessing complete for %s\n", subject)
			for step, path := range result.Outputs {
				fmt.Fprintf(out, "  %s: %s\n", step, path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Subject identifier for the output layout")
	cmd.Flags().StringVar(&anat, "anat", "", "T1 anatomical volume")
	cmd.Flags().StringVar(&ref, "ref", "", "Diffusion-space reference volume")
	cmd.Flags().StringArrayVar(&extras, "extra", nil, "Additional anatomical volumes to carry into diffusion space (repeatable)")
	cmd.Flags().BoolVar(&useBBR, "bbr", false, "Use FreeSurfer bbregister for the affine step")
	cmd.Flags().StringVar(&fsSubject, "fs-subject", "", "FreeSurfer recon-all subject name (required with --bbr)")
	_ = cmd.MarkFlagRequired("subject")
	_ = cmd.MarkFlagRequired("anat")
	_ = cmd.MarkFlagRequired("ref")

	return cmd
}
