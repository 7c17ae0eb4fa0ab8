package layout

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// SubjectDirs holds the per-subject output tree. Every pipeline step writes
// into its own directory so partial reruns never clobber unrelated outputs.
type SubjectDirs struct {
	Root       string
	Bet        string
	Fast       string
	Flirt      string
	Fnirt      string
	BBox       string
	Seeds      string
	Tract      string
	Connectome string
	Logs       string
	Snap       string
}

// Subject returns the directory layout for a subject under root. The subject
// identifier must be a plain name, not a path.
func Subject(root, id string) (SubjectDirs, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return SubjectDirs{}, fmt.Errorf("subject id required")
	}
	if id != filepath.Base(id) || id == "." || id == ".." {
		return SubjectDirs{}, fmt.Errorf("subject id %q must not contain path separators", id)
	}
	base := filepath.Join(root, id)
	return SubjectDirs{
		Root:       base,
		Bet:        filepath.Join(base, "bet"),
		Fast:       filepath.Join(base, "fast"),
		Flirt:      filepath.Join(base, "flirt"),
		Fnirt:      filepath.Join(base, "fnirt"),
		BBox:       filepath.Join(base, "bbox"),
		Seeds:      filepath.Join(base, "seeds"),
		Tract:      filepath.Join(base, "tract"),
		Connectome: filepath.Join(base, "connectome"),
		Logs:       filepath.Join(base, "logs"),
		Snap:       filepath.Join(base, "snap"),
	}, nil
}

// Ensure creates every directory in the layout.
func (d SubjectDirs) Ensure() error {
	for _, dir := range d.All() {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return nil
}

// All lists the layout directories, root first.
func (d SubjectDirs) All() []string {
	return []string{
		d.Root, d.Bet, d.Fast, d.Flirt, d.Fnirt, d.BBox,
		d.Seeds, d.Tract, d.Connectome, d.Logs, d.Snap,
	}
}

// Subject file naming helpers. Keeping these in one place means the seeds,
// tract, and connectome steps agree on where upstream outputs live.

func (d SubjectDirs) CroppedT1() string  { return filepath.Join(d.Bet, "t1_cropped.nii.gz") }
func (d SubjectDirs) Brain() string      { return filepath.Join(d.Bet, "t1_brain.nii.gz") }
func (d SubjectDirs) BrainMask() string  { return filepath.Join(d.Bet, "t1_brain_mask.nii.gz") }
func (d SubjectDirs) FastBase() string   { return filepath.Join(d.Fast, "t1") }
func (d SubjectDirs) AffineMat() string  { return filepath.Join(d.Flirt, "anat2diff.mat") }
func (d SubjectDirs) AffineOut() string  { return filepath.Join(d.Flirt, "t1_in_diff.nii.gz") }
func (d SubjectDirs) WarpCoef() string   { return filepath.Join(d.Fnirt, "anat2diff_warpcoef.nii.gz") }
func (d SubjectDirs) WarpedOut() string  { return filepath.Join(d.Fnirt, "t1_in_diff_warped.nii.gz") }
func (d SubjectDirs) BBoxFile() string   { return filepath.Join(d.BBox, "bbox.json") }
func (d SubjectDirs) SeedList() string   { return filepath.Join(d.Seeds, "seed_files.txt") }
func (d SubjectDirs) SeedReport() string { return filepath.Join(d.Seeds, "seeds.json") }

func (d SubjectDirs) SeedCoords(label int) string {
	return filepath.Join(d.Seeds, fmt.Sprintf("label_%04d.txt", label))
}

func (d SubjectDirs) NetworkMatrix() string {
	return filepath.Join(d.Tract, "fdt_network_matrix")
}

// SeedTractDir is the per-seed probtrackx2 output directory used when
// network mode is off.
func (d SubjectDirs) SeedTractDir(name string) string {
	return filepath.Join(d.Tract, name)
}

// SeedPathsVolume is the fdt_paths visit-count volume a per-seed run writes.
func (d SubjectDirs) SeedPathsVolume(name string) string {
	return filepath.Join(d.Tract, name, "fdt_paths.nii.gz")
}

func (d SubjectDirs) Waytotal() string {
	return filepath.Join(d.Tract, "waytotal")
}

func (d SubjectDirs) ConnectomeCSV() string {
	return filepath.Join(d.Connectome, "connectome.csv")
}

func (d SubjectDirs) ConnectomeNpy() string {
	return filepath.Join(d.Connectome, "connectome.npy")
}

func (d SubjectDirs) MetricsCSV() string {
	return filepath.Join(d.Connectome, "metrics.csv")
}

func (d SubjectDirs) BBRMat() string {
	return filepath.Join(d.Flirt, "diff2anat_bbr.mat")
}

func (d SubjectDirs) SnapMosaic() string {
	return filepath.Join(d.Snap, "t1_in_diff.png")
}

// ExtraOut names the diffusion-space output for an extra input volume.
func (d SubjectDirs) ExtraOut(src string) string {
	base := filepath.Base(src)
	base = strings.TrimSuffix(base, ".gz")
	base = strings.TrimSuffix(base, ".nii")
	return filepath.Join(d.Flirt, base+"_in_diff.nii.gz")
}
