package manifold

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// smallAngle is the threshold below which Exp/Log/RightJacobian fall back
// to their Taylor expansions to avoid a 0/0 in the Rodrigues closed form.
const smallAngle = 1e-7

// Hat returns the skew-symmetric cross-product matrix of a 3-vector, i.e.
// the matrix [v]× such that [v]×·x == v×x for all x.
func Hat(v *mat.VecDense) *mat.Dense {
	x, y, z := v.AtVec(0), v.AtVec(1), v.AtVec(2)
	return mat.NewDense(3, 3, []float64{
		0, -z, y,
		z, 0, -x,
		-y, x, 0,
	})
}

// Vee is the inverse of Hat: it extracts the 3-vector from a skew-
// symmetric matrix, averaging the two off-diagonal copies to absorb
// round-off asymmetry.
func Vee(m mat.Matrix) *mat.VecDense {
	return mat.NewVecDense(3, []float64{
		0.5 * (m.At(2, 1) - m.At(1, 2)),
		0.5 * (m.At(0, 2) - m.At(2, 0)),
		0.5 * (m.At(1, 0) - m.At(0, 1)),
	})
}

// Exp is the SO(3) exponential map: it returns the rotation matrix
// corresponding to a rotation vector φ via the Rodrigues formula, falling
// back to the second-order Taylor expansion for ‖φ‖ < 1e-7 to avoid
// dividing by a near-zero angle.
func Exp(phi *mat.VecDense) *mat.Dense {
	theta := mat.Norm(phi, 2)
	K := Hat(phi)
	var K2 mat.Dense
	K2.Mul(K, K)

	I := Identity(3)
	R := mat.NewDense(3, 3, nil)

	if theta < smallAngle {
		// R ≈ I + K + 1/2 K²
		R.Add(I, K)
		R.Add(R, scaleDense(&K2, 0.5))
		return R
	}

	sinT, cosT := math.Sin(theta), math.Cos(theta)
	a := sinT / theta
	b := (1 - cosT) / (theta * theta)

	R.Add(I, scaleDense(K, a))
	R.Add(R, scaleDense(&K2, b))
	return R
}

// Log is the SO(3) logarithm: the inverse of Exp, returning the rotation
// vector φ such that Exp(φ) == R, using the principal branch (‖φ‖ ≤ π).
func Log(R mat.Matrix) *mat.VecDense {
	tr := R.At(0, 0) + R.At(1, 1) + R.At(2, 2)
	cosTheta := clamp((tr-1)/2, -1, 1)
	theta := math.Acos(cosTheta)

	var skew mat.Dense
	skew.Sub(R, R.T())

	if theta < smallAngle {
		// Log ≈ Vee((R - Rᵀ)/2), the first-order approximation.
		v := Vee(&skew)
		v.ScaleVec(0.5, v)
		return v
	}

	v := Vee(&skew)
	v.ScaleVec(theta/(2*math.Sin(theta)), v)
	return v
}

// RightJacobian returns Jᵣ(φ), the linearization of Exp about φ that maps
// a tangent-space perturbation δφ through the exponential map:
// Exp(φ+δφ) ≈ Exp(φ)·Exp(Jᵣ(φ)·δφ).
func RightJacobian(phi *mat.VecDense) *mat.Dense {
	theta := mat.Norm(phi, 2)
	K := Hat(phi)
	var K2 mat.Dense
	K2.Mul(K, K)

	I := Identity(3)
	J := mat.NewDense(3, 3, nil)

	if theta < smallAngle {
		// Jᵣ ≈ I - 1/2 K
		J.Sub(I, scaleDense(K, 0.5))
		return J
	}

	a := (1 - math.Cos(theta)) / (theta * theta)
	b := (theta - math.Sin(theta)) / (theta * theta * theta)

	J.Sub(I, scaleDense(K, a))
	J.Add(J, scaleDense(&K2, b))
	return J
}

// RightJacobianInv returns Jᵣ(φ)⁻¹, used to map a rotation delta back into
// a tangent-space perturbation (e.g. when propagating covariance through
// Log at the interpolator, or forming the IMU factor's rotation residual
// Jacobian).
func RightJacobianInv(phi *mat.VecDense) *mat.Dense {
	theta := mat.Norm(phi, 2)
	K := Hat(phi)
	var K2 mat.Dense
	K2.Mul(K, K)

	I := Identity(3)
	Jinv := mat.NewDense(3, 3, nil)

	if theta < smallAngle {
		// Jᵣ⁻¹ ≈ I + 1/2 K
		Jinv.Add(I, scaleDense(K, 0.5))
		return Jinv
	}

	cotHalf := 1 / math.Tan(theta/2)
	c := (1.0 / (theta * theta)) * (1 - 0.5*theta*cotHalf)

	Jinv.Add(I, scaleDense(K, 0.5))
	Jinv.Add(Jinv, scaleDense(&K2, c))
	return Jinv
}

func scaleDense(m mat.Matrix, s float64) *mat.Dense {
	var out mat.Dense
	out.Scale(s, m)
	return &out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
