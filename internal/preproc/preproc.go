// Package preproc sequences the anatomical preprocessing pipeline: crop,
// brain extraction, tissue segmentation, affine and nonlinear registration
// into diffusion space, bounding box capture, and carrying extra volumes
// through the computed transforms.
package preproc

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"

	"tractus/internal/affine"
	"tractus/internal/config"
	"tractus/internal/deps"
	"tractus/internal/freesurfer"
	"tractus/internal/fsl"
	"tractus/internal/layout"
	"tractus/internal/logging"
	"tractus/internal/runlog"
	"tractus/internal/services"
	"tractus/internal/snap"
)

// Options drives one preprocessing run.
type Options struct {
	// Anat is the subject's T1 anatomical volume.
	Anat string
	// DiffRef is a diffusion-space reference volume registration targets.
	DiffRef string
	// Extras are additional anatomical-space volumes carried into diffusion
	// space with the computed transforms.
	Extras []string
	// Steps toggles pipeline steps and carries tool parameters.
	Steps config.Preproc
	// UseBBR switches the affine step from flirt to FreeSurfer's
	// bbregister; FSSubject names the recon-all subject it needs.
	UseBBR    bool
	FSSubject string
}

// Result lists what the run produced.
type Result struct {
	// Outputs maps step names to produced file paths.
	Outputs map[string]string
	// BBox is the robust bounding box of the registered volume when the
	// bbox step ran.
	BBox *fsl.BBox
}

// Runner orchestrates preprocessing for one subject.
type Runner struct {
	cfg    *config.Config
	fsl    *fsl.Client
	fs     *freesurfer.Client
	logger *slog.Logger
}

// NewRunner builds a Runner. The FreeSurfer client may be nil when bbregister
// is never requested.
func NewRunner(cfg *config.Config, fslClient *fsl.Client, fsClient *freesurfer.Client, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Runner{cfg: cfg, fsl: fslClient, fs: fsClient, logger: logger}
}

// Run executes the enabled steps in their fixed order. Each external tool
// failure aborts the run; a run log report always lands under logs/.
func (r *Runner) Run(ctx context.Context, dirs layout.SubjectDirs, opts Options) (Result, error) {
	report := runlog.New("preproc")
	report.AdoptRunID(ctx)
	report.AddInput("anat", opts.Anat)
	report.AddInput("diff_ref", opts.DiffRef)
	// The registration tool's banner doubles as the FSL or FreeSurfer
	// release marker for the whole step.
	regTool := "flirt"
	if opts.UseBBR {
		regTool = "bbregister"
	}
	if v := deps.ToolVersion(ctx, r.fsl.Executor(), r.cfg, regTool); v != "" {
		report.SetToolVersion(v)
	}
	result, err := r.run(ctx, dirs, opts, report)
	report.Finish(err)
	if werr := report.Write(runlog.Path(dirs.Logs, "preproc")); werr != nil {
		r.logger.Warn("run log write failed", logging.Error(werr))
	}
	return result, err
}

func (r *Runner) run(ctx context.Context, dirs layout.SubjectDirs, opts Options, report *runlog.Report) (Result, error) {
	ctx = services.WithStage(ctx, "preproc")
	result := Result{Outputs: map[string]string{}}

	if err := dirs.Ensure(); err != nil {
		return result, services.Wrap(services.ErrConfiguration, "preproc", "layout", "cannot create subject output tree", err)
	}

	current := opts.Anat

	if opts.Steps.Crop {
		box, err := r.fsl.RobustBBox(ctx, current)
		if err != nil {
			return result, services.Wrap(services.ErrExternalTool, "preproc", "fslstats", "robust bounding box failed", err)
		}
		if err := r.fsl.Crop(ctx, current, dirs.CroppedT1(), box); err != nil {
			return result, services.Wrap(services.ErrExternalTool, "preproc", "fslroi", "crop failed", err)
		}
		current = dirs.CroppedT1()
		result.Outputs["crop"] = current
		report.AddOutput("crop", current)
		r.stepDone("crop", current)
	}

	if opts.Steps.Bet {
		if err := r.fsl.BrainExtract(ctx, current, dirs.Brain(), opts.Steps.BetFraction, true); err != nil {
			return result, services.Wrap(services.ErrExternalTool, "preproc", "bet2", "brain extraction failed", err)
		}
		current = dirs.Brain()
		result.Outputs["bet"] = current
		report.AddOutput("bet", current)
		r.stepDone("bet", current)
	}

	if opts.Steps.Fast {
		if err := r.fsl.Segment(ctx, current, dirs.FastBase(), opts.Steps.FastClasses); err != nil {
			return result, services.Wrap(services.ErrExternalTool, "preproc", "fast", "tissue segmentation failed", err)
		}
		result.Outputs["fast"] = dirs.FastBase()
		report.AddOutput("fast", dirs.FastBase())
		r.stepDone("fast", dirs.FastBase())
	}

	if opts.Steps.Flirt {
		if err := r.affineStep(ctx, dirs, opts, current); err != nil {
			return result, err
		}
		result.Outputs["flirt"] = dirs.AffineMat()
		report.AddOutput("affine_mat", dirs.AffineMat())
		r.stepDone("flirt", dirs.AffineMat())
	}

	if opts.Steps.Fnirt {
		if err := r.fsl.NonlinearRegister(ctx, current, opts.DiffRef, dirs.AffineMat(), dirs.WarpCoef(), dirs.WarpedOut(), opts.Steps.FnirtConfig); err != nil {
			return result, services.Wrap(services.ErrExternalTool, "preproc", "fnirt", "nonlinear registration failed", err)
		}
		result.Outputs["fnirt"] = dirs.WarpedOut()
		report.AddOutput("fnirt", dirs.WarpedOut())
		r.stepDone("fnirt", dirs.WarpedOut())
	}

	if opts.Steps.BBox {
		target := registeredOutput(dirs, opts.Steps)
		box, err := r.fsl.RobustBBox(ctx, target)
		if err != nil {
			return result, services.Wrap(services.ErrExternalTool, "preproc", "fslstats", "bounding box of registered volume failed", err)
		}
		if err := writeBBox(dirs.BBoxFile(), box); err != nil {
			return result, services.Wrap(services.ErrTransient, "preproc", "bbox", "bounding box write failed", err)
		}
		result.BBox = &box
		result.Outputs["bbox"] = dirs.BBoxFile()
		report.AddOutput("bbox", dirs.BBoxFile())
		r.stepDone("bbox", dirs.BBoxFile())
	}

	for _, extra := range opts.Extras {
		out := dirs.ExtraOut(extra)
		var err error
		if opts.Steps.Fnirt {
			err = r.fsl.ApplyWarp(ctx, extra, opts.DiffRef, dirs.WarpCoef(), out)
		} else {
			err = r.fsl.ApplyXFM(ctx, extra, opts.DiffRef, dirs.AffineMat(), out)
		}
		if err != nil {
			return result, services.Wrap(services.ErrExternalTool, "preproc", "apply transform", fmt.Sprintf("carrying %s into diffusion space failed", extra), err)
		}
		result.Outputs[extra] = out
		report.AddOutput("extra", out)
		r.stepDone("extra", out)
	}

	if opts.Steps.Snap {
		target := registeredOutput(dirs, opts.Steps)
		if err := snap.Render(target, dirs.SnapMosaic(), snap.Options{}); err != nil {
			return result, services.Wrap(services.ErrTransient, "preproc", "snap", "QC mosaic rendering failed", err)
		}
		result.Outputs["snap"] = dirs.SnapMosaic()
		report.AddOutput("snap", dirs.SnapMosaic())
		r.stepDone("snap", dirs.SnapMosaic())
	}

	return result, nil
}

// affineStep produces the anatomical-to-diffusion FLIRT matrix, either with
// flirt directly or through bbregister. bbregister registers the diffusion
// reference onto the FreeSurfer anatomy, so its matrix is inverted before it
// lands in the canonical anat2diff location.
func (r *Runner) affineStep(ctx context.Context, dirs layout.SubjectDirs, opts Options, current string) error {
	if !opts.UseBBR {
		if err := r.fsl.AffineRegister(ctx, current, opts.DiffRef, dirs.AffineMat(), dirs.AffineOut(), opts.Steps.FlirtDOF, opts.Steps.FlirtCost); err != nil {
			return services.Wrap(services.ErrExternalTool, "preproc", "flirt", "affine registration failed", err)
		}
		return nil
	}

	if r.fs == nil {
		return services.Wrap(services.ErrConfiguration, "preproc", "bbregister", "FreeSurfer client unavailable", nil)
	}
	if opts.FSSubject == "" {
		return services.Wrap(services.ErrValidation, "preproc", "bbregister", "FreeSurfer subject name required", nil)
	}
	regOut := dirs.BBRMat() + ".dat"
	if err := r.fs.BBRegister(ctx, opts.FSSubject, opts.DiffRef, regOut, dirs.BBRMat()); err != nil {
		return services.Wrap(services.ErrExternalTool, "preproc", "bbregister", "boundary-based registration failed", err)
	}
	diff2anat, err := affine.ReadFlirtMat(dirs.BBRMat())
	if err != nil {
		return services.Wrap(services.ErrExternalTool, "preproc", "bbregister", "registration matrix unreadable", err)
	}
	anat2diff, err := affine.Invert(diff2anat)
	if err != nil {
		return services.Wrap(services.ErrValidation, "preproc", "bbregister", "registration matrix is singular", err)
	}
	if err := affine.WriteFlirtMat(dirs.AffineMat(), anat2diff); err != nil {
		return services.Wrap(services.ErrTransient, "preproc", "bbregister", "matrix write failed", err)
	}
	// Downstream steps inspect the registered volume, which flirt would have
	// produced itself; here mri_vol2vol resamples it from the bbregister
	// transform instead.
	if err := r.fs.Vol2Vol(ctx, current, opts.DiffRef, regOut, dirs.AffineOut()); err != nil {
		return services.Wrap(services.ErrExternalTool, "preproc", "mri_vol2vol", "resampling into diffusion space failed", err)
	}
	return nil
}

func (r *Runner) stepDone(step, output string) {
	r.logger.Info("step completed",
		logging.String(logging.FieldStage, "preproc"),
		logging.String("step", step),
		logging.String("output", output))
}

// registeredOutput picks the diffusion-space volume downstream steps should
// inspect: the warped output when fnirt ran, otherwise the affine output.
func registeredOutput(dirs layout.SubjectDirs, steps config.Preproc) string {
	if steps.Fnirt {
		return dirs.WarpedOut()
	}
	return dirs.AffineOut()
}

func writeBBox(path string, box fsl.BBox) error {
	data, err := json.MarshalIndent(box, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
