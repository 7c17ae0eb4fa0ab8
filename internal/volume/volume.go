package volume

import (
	"fmt"
	"math"
	"os"
	"sort"

	"github.com/henghuang/nifti"
)

// Volume wraps a loaded NIfTI image. The NIfTI and bedpostx formats are
// external standards; this wrapper only exposes the header fields and voxel
// access the seeding and QC steps need.
type Volume struct {
	Path string

	img nifti.Nifti1Image
	hdr nifti.Nifti1Header
}

// Load reads a .nii or .nii.gz volume with its data block.
func Load(path string) (*Volume, error) {
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("volume %s: %w", path, err)
	}
	v := &Volume{Path: path}
	v.img.LoadImage(path, true)
	v.hdr.LoadHeader(path)
	x, y, z, _ := v.Dims()
	if x <= 0 || y <= 0 || z <= 0 {
		return nil, fmt.Errorf("volume %s: empty dimensions", path)
	}
	return v, nil
}

// Dims returns the spatial and time dimensions.
func (v *Volume) Dims() (int, int, int, int) {
	dims := v.img.GetDims()
	return dims[0], dims[1], dims[2], dims[3]
}

// PixDims returns the voxel edge lengths in millimetres.
func (v *Volume) PixDims() (float64, float64, float64) {
	return float64(v.hdr.Pixdim[1]), float64(v.hdr.Pixdim[2]), float64(v.hdr.Pixdim[3])
}

// At returns the voxel intensity at the given indices for time point t.
func (v *Volume) At(x, y, z, t int) float64 {
	return float64(v.img.GetAt(x, y, z, t))
}

// InBounds reports whether the given spatial index lies inside the grid.
func (v *Volume) InBounds(x, y, z int) bool {
	dx, dy, dz, _ := v.Dims()
	return x >= 0 && y >= 0 && z >= 0 && x < dx && y < dy && z < dz
}

// Coord is a voxel index triple.
type Coord struct {
	X, Y, Z int
}

// Labels scans the first time point and returns the distinct non-zero integer
// intensities in ascending order. Parcellation volumes store region labels as
// whole numbers; anything fractional is rounded to the nearest label.
func (v *Volume) Labels() []int {
	counts := v.LabelCounts()
	labels := make([]int, 0, len(counts))
	for label := range counts {
		labels = append(labels, label)
	}
	sort.Ints(labels)
	return labels
}

// LabelCounts maps each non-zero label to its voxel count.
func (v *Volume) LabelCounts() map[int]int {
	dx, dy, dz, _ := v.Dims()
	counts := make(map[int]int)
	for z := 0; z < dz; z++ {
		for y := 0; y < dy; y++ {
			for x := 0; x < dx; x++ {
				label := int(math.Round(v.At(x, y, z, 0)))
				if label == 0 {
					continue
				}
				counts[label]++
			}
		}
	}
	return counts
}

// LabelVoxels returns the voxel indices carrying the given label.
func (v *Volume) LabelVoxels(label int) []Coord {
	dx, dy, dz, _ := v.Dims()
	var coords []Coord
	for z := 0; z < dz; z++ {
		for y := 0; y < dy; y++ {
			for x := 0; x < dx; x++ {
				if int(math.Round(v.At(x, y, z, 0))) == label {
					coords = append(coords, Coord{X: x, Y: y, Z: z})
				}
			}
		}
	}
	return coords
}
