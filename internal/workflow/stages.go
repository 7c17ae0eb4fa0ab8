package workflow

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"tractus/internal/config"
	"tractus/internal/connectome"
	"tractus/internal/deps"
	"tractus/internal/fileutil"
	"tractus/internal/freesurfer"
	"tractus/internal/fsl"
	"tractus/internal/layout"
	"tractus/internal/preproc"
	"tractus/internal/queue"
	"tractus/internal/seeds"
	"tractus/internal/services"
	"tractus/internal/stage"
	"tractus/internal/tract"
)

// StageDeps carries the shared clients the stage handlers need.
type StageDeps struct {
	Config     *config.Config
	FSL        *fsl.Client
	FreeSurfer *freesurfer.Client
	Logger     *slog.Logger
}

// Handlers builds the full pipeline handler set keyed by stage name,
// ready for Bindings.
func Handlers(d StageDeps) map[string]stage.Handler {
	return map[string]stage.Handler{
		"preproc":    &preprocStage{deps: d},
		"seeds":      &seedsStage{deps: d},
		"track":      &trackStage{deps: d},
		"connectome": &connectomeStage{deps: d},
	}
}

func subjectDirs(cfg *config.Config, item *queue.Item) (layout.SubjectDirs, error) {
	dirs, err := layout.Subject(cfg.Paths.OutputDir, item.SubjectID)
	if err != nil {
		return layout.SubjectDirs{}, services.Wrap(services.ErrValidation, "layout", "subject_dirs", "invalid subject output layout", err)
	}
	return dirs, nil
}

func diffReference(item *queue.Item) string {
	return filepath.Join(item.BedpostxDir, "nodif_brain_mask.nii.gz")
}

// binariesHealth probes the configured commands for the named tools and
// reports the stage unhealthy when a required one is missing.
func binariesHealth(cfg *config.Config, stageName string, toolNames ...string) stage.Health {
	wanted := make(map[string]bool, len(toolNames))
	for _, name := range toolNames {
		wanted[name] = true
	}
	var selected []deps.Requirement
	for _, req := range deps.Requirements(cfg) {
		if wanted[req.Name] {
			selected = append(selected, req)
		}
	}
	var missing []string
	for _, status := range deps.CheckBinaries(selected) {
		if !status.Available && !status.Optional {
			missing = append(missing, status.Name)
		}
	}
	if len(missing) > 0 {
		return stage.Unhealthy(stageName, "missing binaries: "+strings.Join(missing, ", "))
	}
	return stage.Healthy(stageName)
}

type preprocStage struct {
	deps StageDeps
}

func (s *preprocStage) Prepare(_ context.Context, item *queue.Item) error {
	return stage.RequirePaths("preproc", map[string]string{
		"anatomical volume":   item.AnatPath,
		"bedpostx directory":  item.BedpostxDir,
		"diffusion reference": diffReference(item),
	})
}

func (s *preprocStage) Execute(ctx context.Context, item *queue.Item) error {
	dirs, err := subjectDirs(s.deps.Config, item)
	if err != nil {
		return err
	}
	runner := preproc.NewRunner(s.deps.Config, s.deps.FSL, s.deps.FreeSurfer, s.deps.Logger)
	_, err = runner.Run(ctx, dirs, preproc.Options{
		Anat:    item.AnatPath,
		DiffRef: diffReference(item),
		Steps:   s.deps.Config.Preproc,
	})
	return err
}

func (s *preprocStage) HealthCheck(context.Context) stage.Health {
	return binariesHealth(s.deps.Config, "preproc", "bet2", "fast", "flirt", "fnirt", "fslroi", "fslstats", "applywarp")
}

type seedsStage struct {
	deps StageDeps
}

// stagedParcellation is the verified local copy the seed builder reads,
// insulating the run from changes to the source file after enqueue.
func stagedParcellation(dirs layout.SubjectDirs, item *queue.Item) string {
	return filepath.Join(dirs.Seeds, filepath.Base(item.Parcellation))
}

func (s *seedsStage) Prepare(_ context.Context, item *queue.Item) error {
	dirs, err := subjectDirs(s.deps.Config, item)
	if err != nil {
		return err
	}
	if err := stage.RequirePaths("seeds", map[string]string{
		"parcellation volume": item.Parcellation,
		"registration matrix": dirs.AffineMat(),
	}); err != nil {
		return err
	}
	if err := dirs.Ensure(); err != nil {
		return services.Wrap(services.ErrConfiguration, "seeds", "ensure_dirs", "creating subject directories", err)
	}
	if err := fileutil.CopyFileVerified(item.Parcellation, stagedParcellation(dirs, item)); err != nil {
		return services.Wrap(services.ErrTransient, "seeds", "stage_parcellation", "copying parcellation into subject layout", err)
	}
	return nil
}

func (s *seedsStage) Execute(_ context.Context, item *queue.Item) error {
	dirs, err := subjectDirs(s.deps.Config, item)
	if err != nil {
		return err
	}
	result, err := seeds.Build(seeds.Options{
		Parcellation: stagedParcellation(dirs, item),
		AnatToDiff:   dirs.AffineMat(),
		DiffRef:      diffReference(item),
		Dirs:         dirs,
	})
	if err != nil {
		return services.Wrap(services.ErrValidation, "seeds", "build", "generating seed files", err)
	}
	return seeds.WriteReport(dirs.SeedReport(), result)
}

func (s *seedsStage) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("seeds")
}

type trackStage struct {
	deps StageDeps
}

func (s *trackStage) Prepare(_ context.Context, item *queue.Item) error {
	dirs, err := subjectDirs(s.deps.Config, item)
	if err != nil {
		return err
	}
	return stage.RequirePaths("track", map[string]string{
		"bedpostx directory": item.BedpostxDir,
		"seed list":          dirs.SeedList(),
	})
}

func (s *trackStage) Execute(ctx context.Context, item *queue.Item) error {
	dirs, err := subjectDirs(s.deps.Config, item)
	if err != nil {
		return err
	}
	runner := tract.NewRunner(s.deps.Config, s.deps.FSL, s.deps.Logger)
	_, err = runner.Run(ctx, tract.Options{
		BedpostxDir: item.BedpostxDir,
		Dirs:        dirs,
		Network:     s.deps.Config.Tract.Network,
	})
	return err
}

func (s *trackStage) HealthCheck(context.Context) stage.Health {
	return binariesHealth(s.deps.Config, "track", "probtrackx2")
}

type connectomeStage struct {
	deps StageDeps
}

func (s *connectomeStage) Prepare(_ context.Context, item *queue.Item) error {
	dirs, err := subjectDirs(s.deps.Config, item)
	if err != nil {
		return err
	}
	// Network mode leaves fdt_network_matrix behind; per-seed mode is
	// recognized by the seed list plus the combined waytotal file.
	if _, err := os.Stat(dirs.NetworkMatrix()); err == nil {
		return nil
	}
	return stage.RequirePaths("connectome", map[string]string{
		"seed list": dirs.SeedList(),
		"waytotal":  dirs.Waytotal(),
	})
}

func (s *connectomeStage) Execute(ctx context.Context, item *queue.Item) error {
	dirs, err := subjectDirs(s.deps.Config, item)
	if err != nil {
		return err
	}
	_, err = connectome.Process(ctx, dirs, s.deps.Config.Connectome, s.deps.Logger)
	return err
}

func (s *connectomeStage) HealthCheck(context.Context) stage.Health {
	return stage.Healthy("connectome")
}
