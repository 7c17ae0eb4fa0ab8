package affine

import (
	"fmt"

	"github.com/gonum/matrix/mat64"
)

// Identity returns the 4x4 identity transform.
func Identity() *mat64.Dense {
	return mat64.NewDense(4, 4, []float64{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	})
}

// Scaling returns the diagonal voxel-size transform FSL uses to move between
// voxel indices and scaled-millimetre coordinates.
func Scaling(dx, dy, dz float64) *mat64.Dense {
	return mat64.NewDense(4, 4, []float64{
		dx, 0, 0, 0,
		0, dy, 0, 0,
		0, 0, dz, 0,
		0, 0, 0, 1,
	})
}

// Compose multiplies the provided transforms left to right, so
// Compose(A, B, C) applies C first and A last.
func Compose(ms ...*mat64.Dense) *mat64.Dense {
	out := Identity()
	for _, m := range ms {
		next := mat64.NewDense(4, 4, nil)
		next.Mul(out, m)
		out = next
	}
	return out
}

// Invert returns the inverse transform, failing on singular matrices.
func Invert(m *mat64.Dense) (*mat64.Dense, error) {
	inv := mat64.NewDense(4, 4, nil)
	if err := inv.Inverse(m); err != nil {
		return nil, fmt.Errorf("invert affine: %w", err)
	}
	return inv, nil
}

// Apply transforms a coordinate triple through m using homogeneous
// multiplication.
func Apply(m *mat64.Dense, x, y, z float64) (float64, float64, float64) {
	in := []float64{x, y, z, 1}
	var out [3]float64
	for row := 0; row < 3; row++ {
		var acc float64
		for col := 0; col < 4; col++ {
			acc += m.At(row, col) * in[col]
		}
		out[row] = acc
	}
	return out[0], out[1], out[2]
}
