package connectome

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gonum/matrix/mat64"

	"tractus/internal/config"
	"tractus/internal/layout"
	"tractus/internal/testsupport"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestReadNetworkMatrix(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "fdt_network_matrix")
	if err := os.WriteFile(path, []byte("0 10 2\n8 0 4\n2 6 0\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	m, err := ReadNetworkMatrix(path)
	if err != nil {
		t.Fatalf("ReadNetworkMatrix: %v", err)
	}
	if r, c := m.Dims(); r != 3 || c != 3 {
		t.Fatalf("dims = %dx%d", r, c)
	}
	if m.At(0, 1) != 10 || m.At(2, 1) != 6 {
		t.Fatalf("unexpected values: %v", mat64.Formatted(m))
	}
}

func TestReadNetworkMatrixRejectsRagged(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ragged")
	if err := os.WriteFile(path, []byte("0 1\n1 0 2\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := ReadNetworkMatrix(path); err == nil || !strings.Contains(err.Error(), "columns") {
		t.Fatalf("expected ragged row error, got %v", err)
	}
}

func TestBuildSymmetrizesAndNormalizes(t *testing.T) {
	raw := mat64.NewDense(2, 2, []float64{
		5, 10,
		30, 7,
	})
	m, err := Build(raw, Options{
		Normalize: NormalizeWaytotal,
		Waytotals: []float64{100, 200},
	})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// Row 0 scaled by 1/100, row 1 by 1/200, then averaged across the
	// diagonal: (10/100 + 30/200) / 2 = 0.125.
	if !almostEqual(m.At(0, 1), 0.125) || !almostEqual(m.At(1, 0), 0.125) {
		t.Fatalf("unexpected normalized weight %g", m.At(0, 1))
	}
	if m.At(0, 0) != 0 || m.At(1, 1) != 0 {
		t.Fatal("diagonal not zeroed")
	}
	// Input untouched.
	if raw.At(0, 0) != 5 {
		t.Fatal("Build modified its input")
	}
}

func TestBuildThreshold(t *testing.T) {
	raw := mat64.NewDense(3, 3, []float64{
		0, 9, 1,
		9, 0, 5,
		1, 5, 0,
	})
	m, err := Build(raw, Options{ThresholdProportion: 0.5})
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	// Three edges, keep the strongest floor(3*0.5)=1.
	if m.At(0, 1) != 9 || m.At(1, 0) != 9 {
		t.Fatal("strongest edge dropped")
	}
	if m.At(1, 2) != 0 || m.At(0, 2) != 0 {
		t.Fatalf("weak edges survived: %v", mat64.Formatted(m))
	}
}

func TestBuildRejectsBadInput(t *testing.T) {
	raw := mat64.NewDense(2, 2, []float64{0, 1, 1, 0})
	if _, err := Build(raw, Options{Normalize: NormalizeWaytotal, Waytotals: []float64{1}}); err == nil {
		t.Fatal("expected waytotal length error")
	}
	if _, err := Build(raw, Options{Normalize: NormalizeWaytotal, Waytotals: []float64{0, 1}}); err == nil {
		t.Fatal("expected non-positive waytotal error")
	}
	if _, err := Build(raw, Options{Normalize: "median"}); err == nil {
		t.Fatal("expected unknown mode error")
	}
	if _, err := Build(raw, Options{ThresholdProportion: 1.5}); err == nil {
		t.Fatal("expected threshold range error")
	}
}

func TestComputeMetricsTriangle(t *testing.T) {
	// Fully connected 3-node graph with unit weights.
	m := mat64.NewDense(3, 3, []float64{
		0, 1, 1,
		1, 0, 1,
		1, 1, 0,
	})
	metrics := ComputeMetrics(m)
	if metrics.Edges != 3 || !almostEqual(metrics.Density, 1) {
		t.Fatalf("unexpected edges/density: %+v", metrics)
	}
	for i := 0; i < 3; i++ {
		if metrics.Degree[i] != 2 || !almostEqual(metrics.Strength[i], 2) {
			t.Fatalf("node %d degree/strength wrong: %+v", i, metrics)
		}
		if !almostEqual(metrics.Clustering[i], 1) {
			t.Fatalf("node %d clustering = %g", i, metrics.Clustering[i])
		}
	}
	// All shortest paths are direct with length 1/weight = 1.
	if !almostEqual(metrics.CharPathLength, 1) || !almostEqual(metrics.GlobalEfficiency, 1) {
		t.Fatalf("path measures wrong: %+v", metrics)
	}
}

func TestComputeMetricsDisconnected(t *testing.T) {
	m := mat64.NewDense(3, 3, []float64{
		0, 2, 0,
		2, 0, 0,
		0, 0, 0,
	})
	metrics := ComputeMetrics(m)
	if metrics.Degree[2] != 0 {
		t.Fatalf("isolated node has degree %d", metrics.Degree[2])
	}
	// The only finite pair distance is 1/2 each way.
	if !almostEqual(metrics.CharPathLength, 0.5) {
		t.Fatalf("char path length = %g", metrics.CharPathLength)
	}
	// Efficiency averages over all 6 ordered pairs: 2 pairs at 1/0.5 = 2.
	if !almostEqual(metrics.GlobalEfficiency, 4.0/6.0) {
		t.Fatalf("global efficiency = %g", metrics.GlobalEfficiency)
	}
}

func TestComputeMetricsIndirectPath(t *testing.T) {
	// Chain 0-1-2 with unit weights: distance 0->2 is 2.
	m := mat64.NewDense(3, 3, []float64{
		0, 1, 0,
		1, 0, 1,
		0, 1, 0,
	})
	metrics := ComputeMetrics(m)
	want := (1.0 + 1.0 + 2.0 + 1.0 + 1.0 + 2.0) / 6.0
	if !almostEqual(metrics.CharPathLength, want) {
		t.Fatalf("char path length = %g, want %g", metrics.CharPathLength, want)
	}
}

// writeSeedRunFixtures lays out two seed regions with fabricated per-seed
// fdt_paths volumes on a 4x4x4 grid. Seed one's streamlines deposit 5 visits
// in region two; seed two's deposit 3+4 visits in region one.
func writeSeedRunFixtures(t *testing.T, dirs layout.SubjectDirs) {
	t.Helper()
	seedA := dirs.SeedCoords(1)
	seedB := dirs.SeedCoords(2)
	if err := os.WriteFile(seedA, []byte("1 1 1\n2 1 1\n9 9 9\n"), 0o644); err != nil {
		t.Fatalf("seed coords: %v", err)
	}
	if err := os.WriteFile(seedB, []byte("3 3 3\n"), 0o644); err != nil {
		t.Fatalf("seed coords: %v", err)
	}
	if err := os.WriteFile(dirs.SeedList(), []byte(seedA+"\n"+seedB+"\n"), 0o644); err != nil {
		t.Fatalf("seed list: %v", err)
	}
	for _, name := range []string{"label_0001", "label_0002"} {
		if err := os.MkdirAll(dirs.SeedTractDir(name), 0o755); err != nil {
			t.Fatalf("seed tract dir: %v", err)
		}
	}
	volA := make([]uint8, 64)
	volA[3+3*4+3*16] = 5 // region two's voxel
	volB := make([]uint8, 64)
	volB[1+1*4+1*16] = 3 // region one's voxels
	volB[2+1*4+1*16] = 4
	testsupport.WriteNifti(t, dirs.SeedPathsVolume("label_0001"), 4, 4, 4, [3]float32{1, 1, 1}, volA)
	testsupport.WriteNifti(t, dirs.SeedPathsVolume("label_0002"), 4, 4, 4, [3]float32{1, 1, 1}, volB)
}

func TestAssembleFromSeedRuns(t *testing.T) {
	dirs, err := layout.Subject(t.TempDir(), "sub-001")
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	if err := dirs.Ensure(); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	writeSeedRunFixtures(t, dirs)

	m, err := AssembleFromSeedRuns(dirs)
	if err != nil {
		t.Fatalf("AssembleFromSeedRuns: %v", err)
	}
	if got := m.At(0, 1); got != 5 {
		t.Fatalf("m[0][1] = %g, want 5", got)
	}
	if got := m.At(1, 0); got != 7 {
		t.Fatalf("m[1][0] = %g, want 7", got)
	}
	if m.At(0, 0) != 0 || m.At(1, 1) != 0 {
		t.Fatal("diagonal should stay zero in the raw assembly")
	}
}

func TestAssembleFromSeedRunsRejectsMissingVolume(t *testing.T) {
	dirs, err := layout.Subject(t.TempDir(), "sub-001")
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	if err := dirs.Ensure(); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	writeSeedRunFixtures(t, dirs)
	if err := os.Remove(dirs.SeedPathsVolume("label_0002")); err != nil {
		t.Fatalf("remove volume: %v", err)
	}

	if _, err := AssembleFromSeedRuns(dirs); err == nil {
		t.Fatal("expected error for missing path-count volume")
	}
}

func TestProcessAssemblesFromSeedRuns(t *testing.T) {
	dirs, err := layout.Subject(t.TempDir(), "sub-001")
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	if err := dirs.Ensure(); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	writeSeedRunFixtures(t, dirs)
	if err := os.WriteFile(dirs.Waytotal(), []byte("100\n200\n"), 0o644); err != nil {
		t.Fatalf("waytotal: %v", err)
	}

	cfg := config.Connectome{
		Normalize: NormalizeWaytotal,
		ExportCSV: true,
	}
	result, err := Process(context.Background(), dirs, cfg, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	// (5/100 + 7/200) / 2 = 0.0425 after symmetrization.
	if got := result.Matrix.At(0, 1); !almostEqual(got, 0.0425) {
		t.Fatalf("normalized weight = %g, want 0.0425", got)
	}
	if _, err := os.Stat(dirs.ConnectomeCSV()); err != nil {
		t.Fatalf("matrix export missing: %v", err)
	}
}

func TestProcessWritesExports(t *testing.T) {
	dirs, err := layout.Subject(t.TempDir(), "sub-001")
	if err != nil {
		t.Fatalf("layout: %v", err)
	}
	if err := dirs.Ensure(); err != nil {
		t.Fatalf("ensure: %v", err)
	}
	if err := os.WriteFile(dirs.NetworkMatrix(), []byte("0 10\n8 0\n"), 0o644); err != nil {
		t.Fatalf("matrix: %v", err)
	}
	if err := os.WriteFile(dirs.Waytotal(), []byte("100\n200\n"), 0o644); err != nil {
		t.Fatalf("waytotal: %v", err)
	}

	cfg := config.Connectome{
		Normalize: NormalizeWaytotal,
		ExportCSV: true,
		ExportNpy: true,
	}
	result, err := Process(context.Background(), dirs, cfg, nil)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	for _, path := range []string{dirs.ConnectomeCSV(), dirs.ConnectomeNpy(), dirs.MetricsCSV()} {
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("export missing: %v", err)
		}
	}
	if result.Metrics.Nodes != 2 {
		t.Fatalf("unexpected metrics %+v", result.Metrics)
	}

	data, err := os.ReadFile(dirs.ConnectomeCSV())
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	// (10/100 + 8/200) / 2 = 0.07 after symmetrization.
	if !strings.Contains(string(data), "0.07") {
		t.Fatalf("normalized weight absent from csv: %q", data)
	}
}
