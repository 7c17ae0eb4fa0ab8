package snap

import (
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"tractus/internal/testsupport"
)

func writeGradientVolume(t *testing.T, nx, ny, nz int) string {
	t.Helper()
	values := make([]uint8, nx*ny*nz)
	for z := 0; z < nz; z++ {
		for y := 0; y < ny; y++ {
			for x := 0; x < nx; x++ {
				values[x+y*nx+z*nx*ny] = uint8((x + y + z) * 10 % 200)
			}
		}
	}
	path := filepath.Join(t.TempDir(), "t1.nii")
	testsupport.WriteNifti(t, path, nx, ny, nz, [3]float32{1, 1, 1}, values)
	return path
}

func TestRenderMosaicDimensions(t *testing.T) {
	in := writeGradientVolume(t, 8, 6, 10)
	out := filepath.Join(t.TempDir(), "mosaic.png")

	if err := Render(in, out, Options{Every: 2, Columns: 3, Workers: 2}); err != nil {
		t.Fatalf("Render: %v", err)
	}

	file, err := os.Open(out)
	if err != nil {
		t.Fatalf("open mosaic: %v", err)
	}
	defer file.Close()
	img, err := png.Decode(file)
	if err != nil {
		t.Fatalf("decode mosaic: %v", err)
	}
	// 5 slices at columns=3 gives a 3x2 tile grid of 8x6 slices.
	bounds := img.Bounds()
	if bounds.Dx() != 24 || bounds.Dy() != 12 {
		t.Fatalf("mosaic size %dx%d, want 24x12", bounds.Dx(), bounds.Dy())
	}
}

func TestRenderDefaults(t *testing.T) {
	in := writeGradientVolume(t, 4, 4, 4)
	out := filepath.Join(t.TempDir(), "snap", "mosaic.png")

	if err := Render(in, out, Options{}); err != nil {
		t.Fatalf("Render: %v", err)
	}
	if _, err := os.Stat(out); err != nil {
		t.Fatalf("mosaic missing: %v", err)
	}
}

func TestRenderMissingVolume(t *testing.T) {
	out := filepath.Join(t.TempDir(), "mosaic.png")
	if err := Render(filepath.Join(t.TempDir(), "absent.nii"), out, Options{}); err == nil {
		t.Fatal("expected load error")
	}
}
