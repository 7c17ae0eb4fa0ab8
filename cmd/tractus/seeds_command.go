package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"tractus/internal/layout"
	"tractus/internal/seeds"
	"tractus/internal/stage"
)

func newSeedsCommand(ctx *commandContext) *cobra.Command {
	var (
		subject string
		parc    string
		ref     string
		labels  []int
	)

	cmd := &cobra.Command{
		Use:   "seeds",
		Short: "Translate a parcellation into diffusion-space seed files",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			dirs, err := layout.Subject(cfg.Paths.OutputDir, subject)
			if err != nil {
				return err
			}
			if err := stage.RequirePaths("seeds", map[string]string{
				"parcellation volume": parc,
				"diffusion reference": ref,
				"registration matrix": dirs.AffineMat(),
			}); err != nil {
				return err
			}
			if err := dirs.Ensure(); err != nil {
				return err
			}

			result, err := seeds.Build(seeds.Options{
				Parcellation: parc,
				AnatToDiff:   dirs.AffineMat(),
				DiffRef:      ref,
				Labels:       labels,
				Dirs:         dirs,
			})
			if err != nil {
				return err
			}
			if err := seeds.WriteReport(dirs.SeedReport(), result); err != nil {
				return err
			}

			rows := make([][]string, 0, len(result.Regions))
			for _, region := range result.Regions {
				rows = append(rows, []string{
					fmt.Sprintf("%d", region.Label),
					fmt.Sprintf("%d", region.AnatVoxels),
					fmt.Sprintf("%d", region.DiffVoxels),
					fmt.Sprintf("%d", region.Dropped),
					region.File,
				})
			}
			out := cmd.OutOrStdout()
			fmt.Fprintln(out, renderTable(
				[]string{"Label", "Anat Voxels", "Diff Voxels", "Dropped", "File"},
				rows,
				[]columnAlignment{alignRight, alignRight, alignRight, alignRight, alignLeft},
			))
			fmt.Fprintf(out, "Seed list: %s\n", result.SeedList)
			return nil
		},
	}

	cmd.Flags().StringVar(&subject, "subject", "", "Subject identifier for the output layout")
	cmd.Flags().StringVar(&parc, "parc", "", "Anatomical-space parcellation volume")
	cmd.Flags().StringVar(&ref, "ref", "", "Diffusion-space reference volume")
	cmd.Flags().IntSliceVar(&labels, "label", nil, "Restrict to the listed region labels (repeatable)")
	_ = cmd.MarkFlagRequired("subject")
	_ = cmd.MarkFlagRequired("parc")
	_ = cmd.MarkFlagRequired("ref")

	return cmd
}
