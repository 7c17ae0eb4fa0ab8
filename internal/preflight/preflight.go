package preflight

import (
	"context"

	"tractus/internal/config"
	"tractus/internal/deps"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name   string
	Passed bool
	Detail string
}

// RunAll executes all applicable preflight checks for the given config.
// Optional directories are only checked when configured.
func RunAll(ctx context.Context, cfg *config.Config) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result

	results = append(results, CheckDirectoryAccess("Output directory", cfg.Paths.OutputDir, true))
	results = append(results, CheckDirectoryAccess("Log directory", cfg.Paths.LogDir, true))

	if cfg.Paths.FSLDir != "" {
		results = append(results, CheckDirectoryAccess("FSL installation", cfg.Paths.FSLDir, false))
	}
	if cfg.Paths.FreeSurferHome != "" {
		results = append(results, CheckDirectoryAccess("FreeSurfer installation", cfg.Paths.FreeSurferHome, false))
	}

	results = append(results, CheckFreeSpace("Output free space", cfg.Paths.OutputDir, cfg.Workflow.MinFreeGiB))

	for _, status := range CheckSystemDeps(ctx, cfg) {
		detail := status.Command
		if !status.Available {
			detail = status.Detail
		}
		results = append(results, Result{
			Name:   status.Name,
			Passed: status.Available || status.Optional,
			Detail: detail,
		})
	}
	return results
}

// CheckSystemDeps evaluates every wrapped binary for the given config. Both
// the batch runner and the CLI preflight command use this to avoid
// duplicating the requirements list.
func CheckSystemDeps(_ context.Context, cfg *config.Config) []deps.Status {
	return deps.CheckBinaries(deps.Requirements(cfg))
}
