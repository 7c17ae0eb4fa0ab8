package seeds

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"tractus/internal/affine"
	"tractus/internal/layout"
	"tractus/internal/testsupport"
)

// buildFixtures writes a parcellation with two labels, a diffusion reference
// twice as coarse, and an identity FLIRT matrix. With matching scaled-voxel
// grids, an anatomical voxel (x,y,z) at 1mm lands on diffusion voxel
// (x/2, y/2, z/2) at 2mm.
func buildFixtures(t *testing.T) (Options, layout.SubjectDirs) {
	t.Helper()
	base := t.TempDir()
	dirs, err := layout.Subject(base, "sub-001")
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	if err := dirs.Ensure(); err != nil {
		t.Fatalf("ensure: %v", err)
	}

	// 8x8x8 anatomical grid at 1mm isotropic.
	values := make([]uint8, 8*8*8)
	idx := func(x, y, z int) int { return x + y*8 + z*64 }
	// Label 1: a 2x2x2 block at the origin collapsing onto diffusion voxel (0,0,0)
	// and neighbours.
	for z := 0; z < 2; z++ {
		for y := 0; y < 2; y++ {
			for x := 0; x < 2; x++ {
				values[idx(x, y, z)] = 1
			}
		}
	}
	// Label 5: single voxel at (4,4,4) -> diffusion (2,2,2).
	values[idx(4, 4, 4)] = 5
	parcPath := filepath.Join(base, "parc.nii")
	testsupport.WriteNifti(t, parcPath, 8, 8, 8, [3]float32{1, 1, 1}, values)

	// 4x4x4 diffusion grid at 2mm isotropic.
	refPath := filepath.Join(base, "nodif.nii")
	testsupport.WriteNifti(t, refPath, 4, 4, 4, [3]float32{2, 2, 2}, make([]uint8, 4*4*4))

	matPath := dirs.AffineMat()
	if err := affine.WriteFlirtMat(matPath, affine.Identity()); err != nil {
		t.Fatalf("write mat: %v", err)
	}

	return Options{
		Parcellation: parcPath,
		AnatToDiff:   matPath,
		DiffRef:      refPath,
		Dirs:         dirs,
	}, dirs
}

func TestBuildTransformsAndDeduplicates(t *testing.T) {
	opts, dirs := buildFixtures(t)
	result, err := Build(opts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(result.Regions) != 2 {
		t.Fatalf("expected 2 regions, got %d", len(result.Regions))
	}

	r1 := result.Regions[0]
	if r1.Label != 1 || r1.AnatVoxels != 8 {
		t.Fatalf("unexpected region %+v", r1)
	}
	// The 2x2x2 1mm block spans half-voxel offsets on the 2mm grid; rounding
	// keeps it within bounds and dedupes collisions.
	if r1.DiffVoxels == 0 || r1.DiffVoxels > 8 {
		t.Fatalf("unexpected diffusion voxel count %d", r1.DiffVoxels)
	}

	r5 := result.Regions[1]
	if r5.Label != 5 || r5.DiffVoxels != 1 {
		t.Fatalf("unexpected region %+v", r5)
	}
	data, err := os.ReadFile(r5.File)
	if err != nil {
		t.Fatalf("read seed file: %v", err)
	}
	if strings.TrimSpace(string(data)) != "2 2 2" {
		t.Fatalf("unexpected seed coords %q", data)
	}

	list, err := os.ReadFile(result.SeedList)
	if err != nil {
		t.Fatalf("read seed list: %v", err)
	}
	lines := strings.Split(strings.TrimSpace(string(list)), "\n")
	if len(lines) != 2 || lines[0] != dirs.SeedCoords(1) || lines[1] != dirs.SeedCoords(5) {
		t.Fatalf("unexpected seed list %q", list)
	}
}

func TestBuildLabelAllowlist(t *testing.T) {
	opts, _ := buildFixtures(t)
	opts.Labels = []int{5}
	result, err := Build(opts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if len(result.Regions) != 1 || result.Regions[0].Label != 5 {
		t.Fatalf("allowlist not honoured: %+v", result.Regions)
	}
}

func TestBuildRejectsUnknownLabel(t *testing.T) {
	opts, _ := buildFixtures(t)
	opts.Labels = []int{99}
	if _, err := Build(opts); err == nil || !strings.Contains(err.Error(), "label 99") {
		t.Fatalf("expected unknown label error, got %v", err)
	}
}

func TestWriteReport(t *testing.T) {
	opts, dirs := buildFixtures(t)
	result, err := Build(opts)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := WriteReport(dirs.SeedReport(), result); err != nil {
		t.Fatalf("WriteReport: %v", err)
	}
	data, err := os.ReadFile(dirs.SeedReport())
	if err != nil {
		t.Fatalf("read report: %v", err)
	}
	var decoded Result
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("decode report: %v", err)
	}
	if len(decoded.Regions) != 2 {
		t.Fatalf("unexpected decoded report %+v", decoded)
	}
}
