package fsl

import (
	"fmt"
	"os"
	"path/filepath"
)

// Bedpostx describes a validated bedpostx directory. The layout is FSL's
// on-disk format for diffusion-model parameters and is consumed opaquely.
type Bedpostx struct {
	Dir         string
	SamplesBase string
	BrainMask   string
}

// bedpostxSampleNames are the per-fibre parameter volumes a first-order
// bedpostx run always produces.
var bedpostxSampleNames = []string{
	"merged_th1samples.nii.gz",
	"merged_ph1samples.nii.gz",
	"merged_f1samples.nii.gz",
}

// ValidateBedpostx checks that dir carries the volumes probtrackx2 needs and
// returns the resolved samples base and brain mask paths.
func ValidateBedpostx(dir string) (Bedpostx, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return Bedpostx{}, fmt.Errorf("bedpostx directory %s: %w", dir, err)
	}
	if !info.IsDir() {
		return Bedpostx{}, fmt.Errorf("bedpostx path %s is not a directory", dir)
	}
	for _, name := range bedpostxSampleNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err != nil {
			return Bedpostx{}, fmt.Errorf("bedpostx directory %s missing %s: %w", dir, name, err)
		}
	}
	mask := filepath.Join(dir, "nodif_brain_mask.nii.gz")
	if _, err := os.Stat(mask); err != nil {
		return Bedpostx{}, fmt.Errorf("bedpostx directory %s missing nodif_brain_mask.nii.gz: %w", dir, err)
	}
	return Bedpostx{
		Dir:         dir,
		SamplesBase: filepath.Join(dir, "merged"),
		BrainMask:   mask,
	}, nil
}
