package fsl

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"tractus/internal/tools"
)

// BBox is a voxel-index bounding box in fslstats -w order.
type BBox struct {
	XMin, XSize int
	YMin, YSize int
	ZMin, ZSize int
}

func (b BBox) args() []string {
	return []string{
		strconv.Itoa(b.XMin), strconv.Itoa(b.XSize),
		strconv.Itoa(b.YMin), strconv.Itoa(b.YSize),
		strconv.Itoa(b.ZMin), strconv.Itoa(b.ZSize),
	}
}

// Crop extracts the bounding box from in into out using fslroi.
func (c *Client) Crop(ctx context.Context, in, out string, box BBox) error {
	if err := requireFiles(in); err != nil {
		return err
	}
	if box.XSize <= 0 || box.YSize <= 0 || box.ZSize <= 0 {
		return fmt.Errorf("crop: bounding box has empty extent: %+v", box)
	}
	args := append([]string{in, out}, box.args()...)
	return c.run(ctx, "fslroi", tools.Invocation{
		Binary:  c.cfg.FslroiBinary(),
		Args:    args,
		Timeout: c.regTimeout(),
	})
}

// BrainExtract runs bet2, producing <out> and optionally a binary mask
// alongside it.
func (c *Client) BrainExtract(ctx context.Context, in, out string, fraction float64, mask bool) error {
	if err := requireFiles(in); err != nil {
		return err
	}
	args := []string{in, stripNiftiExt(out), "-f", strconv.FormatFloat(fraction, 'f', -1, 64)}
	if mask {
		args = append(args, "-m")
	}
	return c.run(ctx, "bet2", tools.Invocation{
		Binary:  c.cfg.BetBinary(),
		Args:    args,
		Timeout: c.regTimeout(),
	})
}

// Segment runs fast tissue segmentation on a brain-extracted T1.
func (c *Client) Segment(ctx context.Context, in, outBase string, classes int) error {
	if err := requireFiles(in); err != nil {
		return err
	}
	args := []string{
		"-t", "1",
		"-n", strconv.Itoa(classes),
		"-o", outBase,
		in,
	}
	return c.run(ctx, "fast", tools.Invocation{
		Binary:  c.cfg.FastBinary(),
		Args:    args,
		Timeout: c.regTimeout(),
	})
}

// AffineRegister runs flirt, writing the transform matrix to omat and the
// resampled volume to out.
func (c *Client) AffineRegister(ctx context.Context, in, ref, omat, out string, dof int, cost string) error {
	if err := requireFiles(in, ref); err != nil {
		return err
	}
	args := []string{
		"-in", in,
		"-ref", ref,
		"-omat", omat,
		"-out", out,
		"-dof", strconv.Itoa(dof),
		"-cost", cost,
	}
	return c.run(ctx, "flirt", tools.Invocation{
		Binary:  c.cfg.FlirtBinary(),
		Args:    args,
		Timeout: c.regTimeout(),
	})
}

// NonlinearRegister runs fnirt seeded by an affine transform, writing the
// warp coefficient field to cout and the warped volume to iout.
func (c *Client) NonlinearRegister(ctx context.Context, in, ref, aff, cout, iout, configName string) error {
	if err := requireFiles(in, ref, aff); err != nil {
		return err
	}
	args := []string{
		"--in=" + in,
		"--ref=" + ref,
		"--aff=" + aff,
		"--cout=" + cout,
		"--iout=" + iout,
	}
	if strings.TrimSpace(configName) != "" {
		args = append(args, "--config="+configName)
	}
	return c.run(ctx, "fnirt", tools.Invocation{
		Binary:  c.cfg.FnirtBinary(),
		Args:    args,
		Timeout: c.regTimeout(),
	})
}

// RobustBBox asks fslstats for the smallest box containing all non-zero
// voxels.
func (c *Client) RobustBBox(ctx context.Context, in string) (BBox, error) {
	if err := requireFiles(in); err != nil {
		return BBox{}, err
	}
	out, err := tools.Capture(ctx, c.exec, tools.Invocation{
		Binary:  c.cfg.FslstatsBinary(),
		Args:    []string{in, "-w"},
		Timeout: c.regTimeout(),
	})
	if err != nil {
		return BBox{}, fmt.Errorf("fslstats: %w", err)
	}
	return parseBBox(out)
}

// parseBBox reads fslstats -w output: xmin xsize ymin ysize zmin zsize
// tmin tsize.
func parseBBox(out string) (BBox, error) {
	fields := strings.Fields(out)
	if len(fields) < 6 {
		return BBox{}, fmt.Errorf("fslstats -w: expected at least 6 fields, got %q", strings.TrimSpace(out))
	}
	values := make([]int, 6)
	for i := 0; i < 6; i++ {
		v, err := strconv.ParseFloat(fields[i], 64)
		if err != nil {
			return BBox{}, fmt.Errorf("fslstats -w: bad field %q", fields[i])
		}
		values[i] = int(v)
	}
	return BBox{
		XMin: values[0], XSize: values[1],
		YMin: values[2], YSize: values[3],
		ZMin: values[4], ZSize: values[5],
	}, nil
}

// ApplyWarp carries a non-linear warp onto an extra volume.
func (c *Client) ApplyWarp(ctx context.Context, in, ref, warp, out string) error {
	if err := requireFiles(in, ref, warp); err != nil {
		return err
	}
	args := []string{
		"--in=" + in,
		"--ref=" + ref,
		"--warp=" + warp,
		"--out=" + out,
	}
	return c.run(ctx, "applywarp", tools.Invocation{
		Binary:  c.cfg.ApplyWarpBinary(),
		Args:    args,
		Timeout: c.regTimeout(),
	})
}

// ApplyXFM resamples an extra volume through an existing affine matrix.
func (c *Client) ApplyXFM(ctx context.Context, in, ref, mat, out string) error {
	if err := requireFiles(in, ref, mat); err != nil {
		return err
	}
	args := []string{
		"-in", in,
		"-ref", ref,
		"-applyxfm",
		"-init", mat,
		"-out", out,
	}
	return c.run(ctx, "flirt", tools.Invocation{
		Binary:  c.cfg.FlirtBinary(),
		Args:    args,
		Timeout: c.regTimeout(),
	})
}
