package affine

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gonum/matrix/mat64"
)

// ReadFlirtMat parses a FLIRT transform file: four rows of four
// whitespace-separated floats. FLIRT matrices act on scaled-voxel
// coordinates, not world millimetres; callers compose them with Scaling.
func ReadFlirtMat(path string) (*mat64.Dense, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open transform %s: %w", path, err)
	}
	defer file.Close()

	values := make([]float64, 0, 16)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		for _, field := range strings.Fields(scanner.Text()) {
			v, err := strconv.ParseFloat(field, 64)
			if err != nil {
				return nil, fmt.Errorf("parse transform %s: bad value %q", path, field)
			}
			values = append(values, v)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("read transform %s: %w", path, err)
	}
	if len(values) != 16 {
		return nil, fmt.Errorf("parse transform %s: expected 16 values, got %d", path, len(values))
	}
	return mat64.NewDense(4, 4, values), nil
}

// WriteFlirtMat writes m in FLIRT's text format.
func WriteFlirtMat(path string, m *mat64.Dense) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create transform %s: %w", path, err)
	}
	defer file.Close()

	w := bufio.NewWriter(file)
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			if col > 0 {
				if _, err := w.WriteString("  "); err != nil {
					return err
				}
			}
			if _, err := fmt.Fprintf(w, "%.10f", m.At(row, col)); err != nil {
				return err
			}
		}
		if err := w.WriteByte('\n'); err != nil {
			return err
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("write transform %s: %w", path, err)
	}
	return file.Close()
}
