// Package connectome assembles a region-by-region connectivity matrix from
// probtrackx2 outputs and computes graph metrics over it.
package connectome

import (
	"bufio"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/gonum/matrix/mat64"
)

// NormalizeWaytotal divides each seed row by that seed's valid sample count
// before symmetrization. NormalizeNone leaves raw streamline counts.
const (
	NormalizeWaytotal = "waytotal"
	NormalizeNone     = "none"
)

// Options controls matrix assembly.
type Options struct {
	// Normalize is one of NormalizeWaytotal or NormalizeNone.
	Normalize string
	// Waytotals holds per-seed valid sample counts, required for waytotal
	// normalization. Length must match the matrix dimension.
	Waytotals []float64
	// ThresholdProportion keeps only the strongest proportion of
	// off-diagonal edges. Zero disables thresholding.
	ThresholdProportion float64
}

// ReadNetworkMatrix parses probtrackx2's fdt_network_matrix text output: one
// row per seed, whitespace-separated streamline counts.
func ReadNetworkMatrix(path string) (*mat64.Dense, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("network matrix %s: %w", path, err)
	}
	defer file.Close()

	var rows [][]float64
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		row := make([]float64, 0, len(fields))
		for _, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return nil, fmt.Errorf("network matrix %s: bad value %q: %w", path, f, err)
			}
			row = append(row, v)
		}
		rows = append(rows, row)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("network matrix %s: %w", path, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("network matrix %s is empty", path)
	}
	n := len(rows)
	for i, row := range rows {
		if len(row) != n {
			return nil, fmt.Errorf("network matrix %s: row %d has %d columns, expected %d", path, i, len(row), n)
		}
	}

	m := mat64.NewDense(n, n, nil)
	for i, row := range rows {
		m.SetRow(i, row)
	}
	return m, nil
}

// Build runs the assembly pipeline: normalization, symmetrization, diagonal
// removal, and proportional thresholding. The input matrix is not modified.
func Build(raw *mat64.Dense, opts Options) (*mat64.Dense, error) {
	n, c := raw.Dims()
	if n != c {
		return nil, fmt.Errorf("connectivity matrix must be square, got %dx%d", n, c)
	}

	m := mat64.DenseCopyOf(raw)
	switch opts.Normalize {
	case NormalizeWaytotal:
		if len(opts.Waytotals) != n {
			return nil, fmt.Errorf("waytotal normalization needs %d counts, got %d", n, len(opts.Waytotals))
		}
		for i := 0; i < n; i++ {
			total := opts.Waytotals[i]
			if total <= 0 {
				return nil, fmt.Errorf("seed %d has non-positive waytotal %g", i, total)
			}
			for j := 0; j < n; j++ {
				m.Set(i, j, m.At(i, j)/total)
			}
		}
	case NormalizeNone, "":
	default:
		return nil, fmt.Errorf("unknown normalization mode %q", opts.Normalize)
	}

	symmetrize(m)
	for i := 0; i < n; i++ {
		m.Set(i, i, 0)
	}
	if opts.ThresholdProportion > 0 {
		if opts.ThresholdProportion >= 1 {
			return nil, fmt.Errorf("threshold proportion %g out of range [0,1)", opts.ThresholdProportion)
		}
		threshold(m, opts.ThresholdProportion)
	}
	return m, nil
}

// symmetrize replaces m with (m + m^T) / 2 in place.
func symmetrize(m *mat64.Dense) {
	n, _ := m.Dims()
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			avg := (m.At(i, j) + m.At(j, i)) / 2
			m.Set(i, j, avg)
			m.Set(j, i, avg)
		}
	}
}

// threshold keeps the strongest proportion of off-diagonal edges and zeroes
// the rest, preserving symmetry by ranking the upper triangle.
func threshold(m *mat64.Dense, proportion float64) {
	n, _ := m.Dims()
	type edge struct {
		i, j int
		w    float64
	}
	edges := make([]edge, 0, n*(n-1)/2)
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if w := m.At(i, j); w > 0 {
				edges = append(edges, edge{i, j, w})
			}
		}
	}
	sort.Slice(edges, func(a, b int) bool { return edges[a].w > edges[b].w })

	keep := int(float64(len(edges)) * proportion)
	for _, e := range edges[keep:] {
		m.Set(e.i, e.j, 0)
		m.Set(e.j, e.i, 0)
	}
}
