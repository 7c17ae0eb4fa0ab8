package affine

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/gonum/matrix/mat64"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestApplyTranslation(t *testing.T) {
	m := mat64.NewDense(4, 4, []float64{
		1, 0, 0, 10,
		0, 1, 0, -2,
		0, 0, 1, 5,
		0, 0, 0, 1,
	})
	x, y, z := Apply(m, 1, 2, 3)
	if !almostEqual(x, 11) || !almostEqual(y, 0) || !almostEqual(z, 8) {
		t.Fatalf("unexpected result (%v, %v, %v)", x, y, z)
	}
}

func TestComposeOrder(t *testing.T) {
	scale := Scaling(2, 2, 2)
	translate := mat64.NewDense(4, 4, []float64{
		1, 0, 0, 1,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
	// Compose(T, S) applies S first: (1,0,0) -> (2,0,0) -> (3,0,0).
	m := Compose(translate, scale)
	x, _, _ := Apply(m, 1, 0, 0)
	if !almostEqual(x, 3) {
		t.Fatalf("unexpected composed x %v", x)
	}
}

func TestInvertRoundTrip(t *testing.T) {
	m := Compose(Scaling(2, 3, 4), mat64.NewDense(4, 4, []float64{
		1, 0, 0, 7,
		0, 1, 0, -1,
		0, 0, 1, 2,
		0, 0, 0, 1,
	}))
	inv, err := Invert(m)
	if err != nil {
		t.Fatalf("Invert: %v", err)
	}
	x, y, z := Apply(m, 5, 6, 7)
	bx, by, bz := Apply(inv, x, y, z)
	if !almostEqual(bx, 5) || !almostEqual(by, 6) || !almostEqual(bz, 7) {
		t.Fatalf("round trip failed: (%v, %v, %v)", bx, by, bz)
	}
}

func TestInvertSingular(t *testing.T) {
	if _, err := Invert(mat64.NewDense(4, 4, nil)); err == nil {
		t.Fatal("expected error for singular matrix")
	}
}

func TestFlirtMatRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "anat2diff.mat")
	m := mat64.NewDense(4, 4, []float64{
		0.99, 0.01, 0, 3.5,
		-0.01, 0.98, 0.02, -7.25,
		0, -0.02, 1.01, 0.125,
		0, 0, 0, 1,
	})
	if err := WriteFlirtMat(path, m); err != nil {
		t.Fatalf("WriteFlirtMat: %v", err)
	}
	back, err := ReadFlirtMat(path)
	if err != nil {
		t.Fatalf("ReadFlirtMat: %v", err)
	}
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			if math.Abs(m.At(row, col)-back.At(row, col)) > 1e-8 {
				t.Fatalf("value (%d,%d) drifted: %v vs %v", row, col, m.At(row, col), back.At(row, col))
			}
		}
	}
}

func TestReadFlirtMatRejectsBadInput(t *testing.T) {
	dir := t.TempDir()
	short := filepath.Join(dir, "short.mat")
	if err := os.WriteFile(short, []byte("1 0 0\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadFlirtMat(short); err == nil {
		t.Fatal("expected error for truncated matrix")
	}
	garbled := filepath.Join(dir, "garbled.mat")
	if err := os.WriteFile(garbled, []byte("1 0 0 abc\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadFlirtMat(garbled); err == nil {
		t.Fatal("expected error for non-numeric value")
	}
	if _, err := ReadFlirtMat(filepath.Join(dir, "missing.mat")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
