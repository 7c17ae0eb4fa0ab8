// Package snap renders quick-look QC mosaics of NIfTI volumes: every Nth
// axial slice, intensity-windowed and tiled into a single PNG.
package snap

import (
	"fmt"
	"image"
	"image/png"
	"math"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"sync"

	"tractus/internal/volume"
)

// Options controls mosaic rendering.
type Options struct {
	// Every selects each Nth axial slice. Defaults to 2.
	Every int
	// Columns is the mosaic grid width in tiles. Defaults to 6.
	Columns int
	// Workers bounds slice rendering concurrency. Defaults to GOMAXPROCS.
	Workers int
}

func (o *Options) defaults() {
	if o.Every < 1 {
		o.Every = 2
	}
	if o.Columns < 1 {
		o.Columns = 6
	}
	if o.Workers < 1 {
		o.Workers = runtime.GOMAXPROCS(0)
	}
}

// Render loads the volume at inPath and writes an axial mosaic PNG to
// outPath.
func Render(inPath, outPath string, opts Options) error {
	opts.defaults()

	vol, err := volume.Load(inPath)
	if err != nil {
		return err
	}
	dx, dy, dz, _ := vol.Dims()

	low, high := window(vol)
	if high <= low {
		high = low + 1
	}

	var slices []int
	for z := 0; z < dz; z += opts.Every {
		slices = append(slices, z)
	}
	cols := opts.Columns
	if len(slices) < cols {
		cols = len(slices)
	}
	rows := (len(slices) + cols - 1) / cols

	mosaic := image.NewGray(image.Rect(0, 0, cols*dx, rows*dy))

	// Each tile writes a disjoint region of the mosaic, so slices render
	// concurrently without locking.
	jobs := make(chan int)
	var wg sync.WaitGroup
	for w := 0; w < opts.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				renderTile(mosaic, vol, slices[idx], idx%cols*dx, idx/cols*dy, low, high)
			}
		}()
	}
	for idx := range slices {
		jobs <- idx
	}
	close(jobs)
	wg.Wait()

	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("ensure snap dir: %w", err)
	}
	file, err := os.Create(outPath)
	if err != nil {
		return fmt.Errorf("create mosaic %s: %w", outPath, err)
	}
	defer file.Close()
	if err := png.Encode(file, mosaic); err != nil {
		return fmt.Errorf("encode mosaic %s: %w", outPath, err)
	}
	return file.Close()
}

// renderTile draws one axial slice at the given mosaic offset, flipping the
// row order so the anterior edge renders at the top.
func renderTile(dst *image.Gray, vol *volume.Volume, z, offX, offY int, low, high float64) {
	dx, dy, _, _ := vol.Dims()
	scale := 255 / (high - low)
	for y := 0; y < dy; y++ {
		row := dst.Pix[(offY+dy-1-y)*dst.Stride+offX:]
		for x := 0; x < dx; x++ {
			v := (vol.At(x, y, z, 0) - low) * scale
			row[x] = uint8(math.Max(0, math.Min(255, v)))
		}
	}
}

// window computes a robust display range from the 2nd and 98th intensity
// percentiles, ignoring the zero background.
func window(vol *volume.Volume) (float64, float64) {
	dx, dy, dz, _ := vol.Dims()
	values := make([]float64, 0, dx*dy*dz)
	for z := 0; z < dz; z++ {
		for y := 0; y < dy; y++ {
			for x := 0; x < dx; x++ {
				if v := vol.At(x, y, z, 0); v != 0 {
					values = append(values, v)
				}
			}
		}
	}
	if len(values) == 0 {
		return 0, 1
	}
	sort.Float64s(values)
	return percentile(values, 0.02), percentile(values, 0.98)
}

func percentile(sorted []float64, p float64) float64 {
	idx := int(float64(len(sorted)-1) * p)
	return sorted[idx]
}
