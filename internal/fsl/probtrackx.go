package fsl

import (
	"context"
	"fmt"
	"strconv"

	"tractus/internal/config"
	"tractus/internal/tools"
)

// TrackRequest describes a probtrackx2 invocation.
type TrackRequest struct {
	// SamplesBase is the bedpostx merged-samples prefix (<dir>/merged).
	SamplesBase string
	// Mask is the diffusion-space brain mask.
	Mask string
	// Seed is either a single coordinate/mask file or, in network mode, a
	// text file listing one seed file per line.
	Seed string
	// OutDir receives fdt_paths, waytotal, and the network matrix.
	OutDir string
	// Network enables --network mode over the seed list.
	Network bool

	Params config.Tract
}

// Track runs probtrackx2. Outputs land in req.OutDir; in network mode FSL
// writes fdt_network_matrix there as well.
func (c *Client) Track(ctx context.Context, req TrackRequest) error {
	if err := requireFiles(req.Mask, req.Seed); err != nil {
		return err
	}
	if req.SamplesBase == "" {
		return fmt.Errorf("probtrackx2: samples base required")
	}
	if req.OutDir == "" {
		return fmt.Errorf("probtrackx2: output directory required")
	}

	args := []string{
		"--samples=" + req.SamplesBase,
		"--mask=" + req.Mask,
		"--seed=" + req.Seed,
		"--dir=" + req.OutDir,
		"--forcedir",
		"--opd",
		"--nsamples=" + strconv.Itoa(req.Params.Samples),
		"--nsteps=" + strconv.Itoa(req.Params.Steps),
		"--steplength=" + strconv.FormatFloat(req.Params.StepLength, 'f', -1, 64),
		"--cthr=" + strconv.FormatFloat(req.Params.Curvature, 'f', -1, 64),
	}
	if req.Params.Loopcheck {
		args = append(args, "--loopcheck")
	}
	if req.Network {
		args = append(args, "--network")
	}

	return c.run(ctx, "probtrackx2", tools.Invocation{
		Binary:  c.cfg.ProbtrackxBinary(),
		Args:    args,
		Timeout: c.tractTimeout(),
	})
}
