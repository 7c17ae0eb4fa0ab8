package connectome

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/gonum/matrix/mat64"

	"tractus/internal/layout"
	"tractus/internal/tract"
	"tractus/internal/volume"
)

// AssembleFromSeedRuns builds the raw connectivity matrix from per-seed
// tracking outputs. Entry (i, j) sums seed i's fdt_paths visit counts over
// seed j's voxel coordinates, so a cell counts how often streamlines seeded
// in region i passed through region j. The diagonal is left for Build to
// zero along with symmetrization and normalization.
func AssembleFromSeedRuns(dirs layout.SubjectDirs) (*mat64.Dense, error) {
	seedFiles, err := tract.ReadSeedList(dirs.SeedList())
	if err != nil {
		return nil, err
	}

	coords := make([][]volume.Coord, len(seedFiles))
	for j, seedFile := range seedFiles {
		c, err := readSeedCoords(seedFile)
		if err != nil {
			return nil, err
		}
		coords[j] = c
	}

	n := len(seedFiles)
	m := mat64.NewDense(n, n, nil)
	for i, seedFile := range seedFiles {
		name := tract.SeedName(seedFile)
		vol, err := volume.Load(dirs.SeedPathsVolume(name))
		if err != nil {
			return nil, fmt.Errorf("seed %s path counts: %w", name, err)
		}
		for j := range seedFiles {
			if j == i {
				continue
			}
			var sum float64
			for _, c := range coords[j] {
				if vol.InBounds(c.X, c.Y, c.Z) {
					sum += vol.At(c.X, c.Y, c.Z, 0)
				}
			}
			m.Set(i, j, sum)
		}
	}
	return m, nil
}

// readSeedCoords parses a seed coordinate file: one "x y z" voxel index
// triple per line.
func readSeedCoords(path string) ([]volume.Coord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("seed coordinates %s: %w", path, err)
	}
	defer file.Close()

	var coords []volume.Coord
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		if len(fields) != 3 {
			return nil, fmt.Errorf("seed coordinates %s: %d fields on line %q", path, len(fields), scanner.Text())
		}
		var c volume.Coord
		for k, dst := range []*int{&c.X, &c.Y, &c.Z} {
			v, err := strconv.Atoi(fields[k])
			if err != nil {
				return nil, fmt.Errorf("seed coordinates %s: bad index %q: %w", path, fields[k], err)
			}
			*dst = v
		}
		coords = append(coords, c)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("seed coordinates %s: %w", path, err)
	}
	if len(coords) == 0 {
		return nil, fmt.Errorf("seed coordinates %s is empty", path)
	}
	return coords, nil
}
