package connectome

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	"github.com/gonum/matrix/mat64"
	"github.com/kshedden/gonpy"
)

// WriteMatrixCSV writes the connectivity matrix as plain CSV, one row per
// region.
func WriteMatrixCSV(path string, m *mat64.Dense) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create matrix csv %s: %w", path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	rows, cols := m.Dims()
	record := make([]string, cols)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			record[j] = strconv.FormatFloat(m.At(i, j), 'g', -1, 64)
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write matrix csv %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush matrix csv %s: %w", path, err)
	}
	return file.Close()
}

// WriteMatrixNpy writes the matrix as a NumPy .npy array for downstream
// analysis scripts.
func WriteMatrixNpy(path string, m *mat64.Dense) error {
	w, err := gonpy.NewFileWriter(path)
	if err != nil {
		return fmt.Errorf("create npy %s: %w", path, err)
	}
	rows, cols := m.Dims()
	w.Shape = []int{rows, cols}
	data := make([]float64, 0, rows*cols)
	for i := 0; i < rows; i++ {
		data = append(data, m.RawRowView(i)...)
	}
	if err := w.WriteFloat64(data); err != nil {
		return fmt.Errorf("write npy %s: %w", path, err)
	}
	return nil
}

// WriteMetricsCSV writes per-node metrics as rows plus a trailing summary
// section.
func WriteMetricsCSV(path string, metrics Metrics) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create metrics csv %s: %w", path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write([]string{"node", "degree", "strength", "clustering"}); err != nil {
		return fmt.Errorf("write metrics csv %s: %w", path, err)
	}
	for i := 0; i < metrics.Nodes; i++ {
		record := []string{
			strconv.Itoa(i),
			strconv.Itoa(metrics.Degree[i]),
			strconv.FormatFloat(metrics.Strength[i], 'g', -1, 64),
			strconv.FormatFloat(metrics.Clustering[i], 'g', -1, 64),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write metrics csv %s: %w", path, err)
		}
	}
	summary := [][]string{
		{"density", strconv.FormatFloat(metrics.Density, 'g', -1, 64)},
		{"mean_clustering", strconv.FormatFloat(metrics.MeanClustering, 'g', -1, 64)},
		{"char_path_length", strconv.FormatFloat(metrics.CharPathLength, 'g', -1, 64)},
		{"global_efficiency", strconv.FormatFloat(metrics.GlobalEfficiency, 'g', -1, 64)},
	}
	for _, record := range summary {
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write metrics csv %s: %w", path, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush metrics csv %s: %w", path, err)
	}
	return file.Close()
}
