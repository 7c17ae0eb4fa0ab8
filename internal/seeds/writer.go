package seeds

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"tractus/internal/volume"
)

// writeCoords writes one voxel coordinate per line in the text format
// probtrackx2 accepts for seed files.
func writeCoords(path string, coords []volume.Coord) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("ensure seeds dir: %w", err)
	}
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create seed file %s: %w", path, err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	for _, c := range coords {
		if _, err := fmt.Fprintf(w, "%d %d %d\n", c.X, c.Y, c.Z); err != nil {
			return fmt.Errorf("write seed file %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush seed file %s: %w", path, err)
	}
	return file.Close()
}

// writeSeedList writes the per-region file list handed to probtrackx2 in
// network mode.
func writeSeedList(path string, files []string) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create seed list %s: %w", path, err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	for _, f := range files {
		if _, err := fmt.Fprintln(w, f); err != nil {
			return fmt.Errorf("write seed list %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush seed list %s: %w", path, err)
	}
	return file.Close()
}

// WriteReport serializes the seed summary to the subject's seeds.json.
func WriteReport(path string, result Result) error {
	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return fmt.Errorf("encode seed report: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write seed report: %w", err)
	}
	return nil
}
