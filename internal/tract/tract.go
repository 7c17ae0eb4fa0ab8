// Package tract runs probtrackx2 over a subject's seed set and collects the
// resulting path-count outputs.
package tract

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"tractus/internal/config"
	"tractus/internal/deps"
	"tractus/internal/fsl"
	"tractus/internal/layout"
	"tractus/internal/logging"
	"tractus/internal/runlog"
	"tractus/internal/services"
)

// Options drives one tracking run.
type Options struct {
	// BedpostxDir is the subject's bedpostx output directory.
	BedpostxDir string
	// Dirs is the subject output layout; the seed list and tract outputs
	// live under it.
	Dirs layout.SubjectDirs
	// Network selects a single --network invocation over the seed list.
	// When off, probtrackx2 runs once per seed file into its own output
	// directory and the per-run waytotals are collected into one file.
	Network bool
}

// Result reports what the run produced.
type Result struct {
	// Waytotals holds the per-seed valid sample counts, in seed order.
	Waytotals []float64
	// NetworkMatrix is the path to fdt_network_matrix when Network was set;
	// empty in per-seed mode.
	NetworkMatrix string
	// OutDir is where probtrackx2 wrote its outputs.
	OutDir string
}

// Runner orchestrates the tracking stage for one subject.
type Runner struct {
	cfg    *config.Config
	client *fsl.Client
	logger *slog.Logger
}

// NewRunner builds a Runner around an existing FSL client.
func NewRunner(cfg *config.Config, client *fsl.Client, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{cfg: cfg, client: client, logger: logger}
}

// Run validates the bedpostx inputs, invokes probtrackx2, and reads back the
// waytotal file. A run log report lands in the subject's logs directory.
func (r *Runner) Run(ctx context.Context, opts Options) (Result, error) {
	report := runlog.New("probtrackx2")
	report.AdoptRunID(ctx)
	result, err := r.run(ctx, opts, report)
	report.Finish(err)
	if werr := report.Write(runlog.Path(opts.Dirs.Logs, "track")); werr != nil {
		r.logger.Warn("run log write failed", logging.Error(werr))
	}
	return result, err
}

func (r *Runner) run(ctx context.Context, opts Options, report *runlog.Report) (Result, error) {
	ctx = services.WithStage(ctx, "track")

	bpx, err := fsl.ValidateBedpostx(opts.BedpostxDir)
	if err != nil {
		return Result{}, services.Wrap(services.ErrValidation, "track", "bedpostx", "diffusion model inputs incomplete", err)
	}
	seedList := opts.Dirs.SeedList()
	seedFiles, err := ReadSeedList(seedList)
	if err != nil {
		return Result{}, services.Wrap(services.ErrValidation, "track", "seeds", "seed list missing or empty; run the seeds stage first", err)
	}

	report.AddInput("samples_base", bpx.SamplesBase)
	report.AddInput("mask", bpx.BrainMask)
	report.AddInput("seed", seedList)
	if v := deps.ToolVersion(ctx, r.client.Executor(), r.cfg, "probtrackx2"); v != "" {
		report.SetToolVersion(v)
	}

	r.logger.Info("tracking started",
		logging.String(logging.FieldStage, "track"),
		logging.Bool("network", opts.Network),
		logging.Int("seed_files", len(seedFiles)),
		logging.Int("nsamples", r.cfg.Tract.Samples))

	var result Result
	if opts.Network {
		result, err = r.runNetwork(ctx, bpx, seedList, opts, report)
	} else {
		result, err = r.runPerSeed(ctx, bpx, seedFiles, opts, report)
	}
	if err != nil {
		return Result{}, err
	}

	r.logger.Info("tracking completed",
		logging.String(logging.FieldStage, "track"),
		logging.Int("seeds", len(result.Waytotals)))
	return result, nil
}

// runNetwork performs one probtrackx2 --network invocation over the whole
// seed list; FSL writes the pairwise matrix itself.
func (r *Runner) runNetwork(ctx context.Context, bpx fsl.Bedpostx, seedList string, opts Options, report *runlog.Report) (Result, error) {
	req := fsl.TrackRequest{
		SamplesBase: bpx.SamplesBase,
		Mask:        bpx.BrainMask,
		Seed:        seedList,
		OutDir:      opts.Dirs.Tract,
		Network:     true,
		Params:      r.cfg.Tract,
	}
	if err := r.client.Track(ctx, req); err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "track", "probtrackx2", "tractography failed", err)
	}

	result := Result{OutDir: opts.Dirs.Tract}
	waytotals, err := ReadWaytotal(opts.Dirs.Waytotal())
	if err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "track", "waytotal", "probtrackx2 produced no waytotal", err)
	}
	result.Waytotals = waytotals
	report.AddOutput("waytotal", opts.Dirs.Waytotal())

	matrix := opts.Dirs.NetworkMatrix()
	if _, err := os.Stat(matrix); err != nil {
		return Result{}, services.Wrap(services.ErrExternalTool, "track", "network matrix", "probtrackx2 produced no network matrix", err)
	}
	result.NetworkMatrix = matrix
	report.AddOutput("network_matrix", matrix)
	return result, nil
}

// runPerSeed invokes probtrackx2 once per seed file, each run into its own
// directory under tract/, and collects the per-run waytotals into the
// subject's combined waytotal file. The connectome stage assembles the
// pairwise matrix from the per-seed path-count volumes afterwards.
func (r *Runner) runPerSeed(ctx context.Context, bpx fsl.Bedpostx, seedFiles []string, opts Options, report *runlog.Report) (Result, error) {
	waytotals := make([]float64, 0, len(seedFiles))
	for _, seedFile := range seedFiles {
		name := SeedName(seedFile)
		outDir := opts.Dirs.SeedTractDir(name)
		if err := os.MkdirAll(outDir, 0o755); err != nil {
			return Result{}, services.Wrap(services.ErrTransient, "track", "seed output", "seed output directory creation failed", err)
		}
		req := fsl.TrackRequest{
			SamplesBase: bpx.SamplesBase,
			Mask:        bpx.BrainMask,
			Seed:        seedFile,
			OutDir:      outDir,
			Params:      r.cfg.Tract,
		}
		r.logger.Info("tracking seed",
			logging.String(logging.FieldStage, "track"),
			logging.String("seed", name))
		if err := r.client.Track(ctx, req); err != nil {
			return Result{}, services.Wrap(services.ErrExternalTool, "track", "probtrackx2", fmt.Sprintf("tractography failed for seed %s", name), err)
		}
		totals, err := ReadWaytotal(filepath.Join(outDir, "waytotal"))
		if err != nil {
			return Result{}, services.Wrap(services.ErrExternalTool, "track", "waytotal", fmt.Sprintf("probtrackx2 produced no waytotal for seed %s", name), err)
		}
		var sum float64
		for _, t := range totals {
			sum += t
		}
		waytotals = append(waytotals, sum)
	}

	if err := writeWaytotals(opts.Dirs.Waytotal(), waytotals); err != nil {
		return Result{}, services.Wrap(services.ErrTransient, "track", "waytotal", "combined waytotal write failed", err)
	}
	report.AddOutput("waytotal", opts.Dirs.Waytotal())
	report.AddOutput("seed_runs", opts.Dirs.Tract)
	return Result{Waytotals: waytotals, OutDir: opts.Dirs.Tract}, nil
}

// ReadSeedList parses the seeds stage's seed list: one seed coordinate file
// path per line, blank lines skipped. An empty list is an error.
func ReadSeedList(path string) ([]string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("seed list %s: %w", path, err)
	}
	defer file.Close()

	var files []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		files = append(files, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("seed list %s: %w", path, err)
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("seed list %s is empty", path)
	}
	return files, nil
}

// SeedName derives a region name from a seed coordinate file path; it keys
// the per-seed output directory under tract/.
func SeedName(seedFile string) string {
	return strings.TrimSuffix(filepath.Base(seedFile), ".txt")
}

// writeWaytotals persists one count per line in seed order, matching the
// shape of the file probtrackx2 writes in network mode.
func writeWaytotals(path string, totals []float64) error {
	var builder strings.Builder
	for _, t := range totals {
		fmt.Fprintf(&builder, "%g\n", t)
	}
	if err := os.WriteFile(path, []byte(builder.String()), 0o644); err != nil {
		return fmt.Errorf("waytotal %s: %w", path, err)
	}
	return nil
}

// ReadWaytotal parses probtrackx2's waytotal file: one valid-sample count per
// seed, whitespace separated.
func ReadWaytotal(path string) ([]float64, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("waytotal %s: %w", path, err)
	}
	defer file.Close()

	var totals []float64
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		for _, field := range strings.Fields(scanner.Text()) {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("waytotal %s: bad value %q: %w", path, field, err)
			}
			if v < 0 {
				return nil, fmt.Errorf("waytotal %s: negative count %g", path, v)
			}
			totals = append(totals, v)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("waytotal %s: %w", path, err)
	}
	if len(totals) == 0 {
		return nil, fmt.Errorf("waytotal %s is empty", path)
	}
	return totals, nil
}
