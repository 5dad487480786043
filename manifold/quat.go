package manifold

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"
)

// Quat is a unit quaternion in (x, y, z, w) order, matching the wire order
// of the states CSV file (qx, qy, qz, qw). Every constructor normalizes on
// write per the numeric semantics in spec.md §4.1.
type Quat struct {
	X, Y, Z, W float64
}

// NewQuat builds a quaternion from its four components and returns it
// normalized to unit norm, whatever the input's norm; it rejects nothing.
func NewQuat(x, y, z, w float64) Quat {
	q := Quat{x, y, z, w}
	return q.Normalized()
}

// Norm returns ‖q‖.
func (q Quat) Norm() float64 {
	return math.Sqrt(q.X*q.X + q.Y*q.Y + q.Z*q.Z + q.W*q.W)
}

// Normalized returns q scaled to unit norm.
func (q Quat) Normalized() Quat {
	n := q.Norm()
	if n == 0 {
		return Quat{0, 0, 0, 1}
	}
	return Quat{q.X / n, q.Y / n, q.Z / n, q.W / n}
}

// Negated returns -q, the antipodal quaternion representing the same
// rotation (double cover of SO(3)).
func (q Quat) Negated() Quat {
	return Quat{-q.X, -q.Y, -q.Z, -q.W}
}

// Dot returns the quaternion dot product, used to detect and resolve the
// double-cover sign flip before SLERP.
func (q Quat) Dot(o Quat) float64 {
	return q.X*o.X + q.Y*o.Y + q.Z*o.Z + q.W*o.W
}

// NearestTo returns q or its negation, whichever has the smaller angular
// distance to ref — the "pick the near quaternion" step the interpolator's
// SLERP needs to avoid the double-cover flip. Feeding -ref instead of ref
// for one endpoint therefore yields an identical interpolation.
func (q Quat) NearestTo(ref Quat) Quat {
	if q.Dot(ref) < 0 {
		return q.Negated()
	}
	return q
}

// ToRotation converts q to its 3×3 rotation matrix.
func (q Quat) ToRotation() *mat.Dense {
	x, y, z, w := q.X, q.Y, q.Z, q.W
	return mat.NewDense(3, 3, []float64{
		1 - 2*(y*y+z*z), 2 * (x*y - z*w), 2 * (x*z + y*w),
		2 * (x*y + z*w), 1 - 2*(x*x+z*z), 2 * (y*z - x*w),
		2 * (x*z - y*w), 2 * (y*z + x*w), 1 - 2*(x*x+y*y),
	})
}

// QuatFromRotation converts a rotation matrix to a unit quaternion using
// Shepperd's method (numerically stable across all rotation angles).
func QuatFromRotation(R mat.Matrix) Quat {
	m00, m11, m22 := R.At(0, 0), R.At(1, 1), R.At(2, 2)
	tr := m00 + m11 + m22

	var x, y, z, w float64
	switch {
	case tr > 0:
		s := 0.5 / math.Sqrt(tr+1)
		w = 0.25 / s
		x = (R.At(2, 1) - R.At(1, 2)) * s
		y = (R.At(0, 2) - R.At(2, 0)) * s
		z = (R.At(1, 0) - R.At(0, 1)) * s
	case m00 > m11 && m00 > m22:
		s := 2 * math.Sqrt(1+m00-m11-m22)
		w = (R.At(2, 1) - R.At(1, 2)) / s
		x = 0.25 * s
		y = (R.At(0, 1) + R.At(1, 0)) / s
		z = (R.At(0, 2) + R.At(2, 0)) / s
	case m11 > m22:
		s := 2 * math.Sqrt(1+m11-m00-m22)
		w = (R.At(0, 2) - R.At(2, 0)) / s
		x = (R.At(0, 1) + R.At(1, 0)) / s
		y = 0.25 * s
		z = (R.At(1, 2) + R.At(2, 1)) / s
	default:
		s := 2 * math.Sqrt(1+m22-m00-m11)
		w = (R.At(1, 0) - R.At(0, 1)) / s
		x = (R.At(0, 2) + R.At(2, 0)) / s
		y = (R.At(1, 2) + R.At(2, 1)) / s
		z = 0.25 * s
	}
	return NewQuat(x, y, z, w)
}

func (q Quat) String() string {
	return fmt.Sprintf("Quat{x=%.9f y=%.9f z=%.9f w=%.9f}", q.X, q.Y, q.Z, q.W)
}
