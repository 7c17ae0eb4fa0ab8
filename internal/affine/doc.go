// Package affine implements the 4x4 homogeneous transforms the seeding step
// uses to carry parcellation voxels from anatomical into diffusion space,
// including FLIRT's text matrix format and its scaled-voxel convention.
package affine
