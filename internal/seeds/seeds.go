// Package seeds converts a parcellation volume into probtrackx2 seed files.
// Label voxels are carried from anatomical into diffusion space through the
// FLIRT affine, which acts on scaled-voxel coordinates: the full chain is
// inv(S_diff) * M * S_anat applied to voxel indices, where S holds the voxel
// sizes of each grid.
package seeds

import (
	"fmt"
	"math"
	"sort"

	"github.com/gonum/matrix/mat64"

	"tractus/internal/affine"
	"tractus/internal/layout"
	"tractus/internal/volume"
)

// Options configures seed generation for one subject.
type Options struct {
	// Parcellation is the anatomical-space label volume.
	Parcellation string
	// AnatToDiff is the FLIRT matrix produced by the preprocessing stage.
	AnatToDiff string
	// DiffRef is a diffusion-space reference volume (typically the nodif
	// brain mask) providing the target grid.
	DiffRef string
	// Labels restricts generation to the listed region labels. Empty means
	// every non-zero label in the parcellation.
	Labels []int
	// Dirs is the subject output layout receiving seed files.
	Dirs layout.SubjectDirs
}

// Region summarizes one parcellation label after transformation.
type Region struct {
	Label      int    `json:"label"`
	AnatVoxels int    `json:"anat_voxels"`
	DiffVoxels int    `json:"diff_voxels"`
	Dropped    int    `json:"dropped"`
	File       string `json:"file"`
}

// Result reports the generated seed set.
type Result struct {
	Regions  []Region `json:"regions"`
	SeedList string   `json:"seed_list"`
}

// Build reads the parcellation, transforms every requested label into
// diffusion voxel space, and writes one coordinate file per region plus the
// seed list consumed by probtrackx2.
func Build(opts Options) (Result, error) {
	parc, err := volume.Load(opts.Parcellation)
	if err != nil {
		return Result{}, fmt.Errorf("parcellation: %w", err)
	}
	ref, err := volume.Load(opts.DiffRef)
	if err != nil {
		return Result{}, fmt.Errorf("diffusion reference: %w", err)
	}
	anat2diff, err := affine.ReadFlirtMat(opts.AnatToDiff)
	if err != nil {
		return Result{}, err
	}

	transform, err := voxelTransform(parc, ref, anat2diff)
	if err != nil {
		return Result{}, err
	}

	labels := opts.Labels
	if len(labels) == 0 {
		labels = parc.Labels()
	} else {
		labels = append([]int(nil), labels...)
		sort.Ints(labels)
	}
	if len(labels) == 0 {
		return Result{}, fmt.Errorf("parcellation %s carries no labels", opts.Parcellation)
	}

	result := Result{SeedList: opts.Dirs.SeedList()}
	for _, label := range labels {
		anatVoxels := parc.LabelVoxels(label)
		if len(anatVoxels) == 0 {
			return Result{}, fmt.Errorf("label %d absent from parcellation", label)
		}
		diffVoxels, dropped := transformVoxels(anatVoxels, transform, ref)
		if len(diffVoxels) == 0 {
			return Result{}, fmt.Errorf("label %d maps entirely outside the diffusion grid", label)
		}
		path := opts.Dirs.SeedCoords(label)
		if err := writeCoords(path, diffVoxels); err != nil {
			return Result{}, err
		}
		result.Regions = append(result.Regions, Region{
			Label:      label,
			AnatVoxels: len(anatVoxels),
			DiffVoxels: len(diffVoxels),
			Dropped:    dropped,
			File:       path,
		})
	}

	files := make([]string, 0, len(result.Regions))
	for _, region := range result.Regions {
		files = append(files, region.File)
	}
	if err := writeSeedList(result.SeedList, files); err != nil {
		return Result{}, err
	}
	return result, nil
}

// voxelTransform composes the anatomical-voxel to diffusion-voxel transform.
func voxelTransform(parc, ref *volume.Volume, anat2diff *mat64.Dense) (*mat64.Dense, error) {
	ax, ay, az := parc.PixDims()
	dx, dy, dz := ref.PixDims()
	if ax <= 0 || ay <= 0 || az <= 0 || dx <= 0 || dy <= 0 || dz <= 0 {
		return nil, fmt.Errorf("non-positive voxel sizes: anat (%g,%g,%g), diff (%g,%g,%g)", ax, ay, az, dx, dy, dz)
	}
	diffInv, err := affine.Invert(affine.Scaling(dx, dy, dz))
	if err != nil {
		return nil, err
	}
	return affine.Compose(diffInv, anat2diff, affine.Scaling(ax, ay, az)), nil
}

func transformVoxels(coords []volume.Coord, m *mat64.Dense, ref *volume.Volume) ([]volume.Coord, int) {
	seen := make(map[volume.Coord]struct{}, len(coords))
	out := make([]volume.Coord, 0, len(coords))
	dropped := 0
	for _, c := range coords {
		fx, fy, fz := affine.Apply(m, float64(c.X), float64(c.Y), float64(c.Z))
		d := volume.Coord{
			X: int(math.Round(fx)),
			Y: int(math.Round(fy)),
			Z: int(math.Round(fz)),
		}
		if !ref.InBounds(d.X, d.Y, d.Z) {
			dropped++
			continue
		}
		if _, dup := seen[d]; dup {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	return out, dropped
}
