// Package manifold collects the SO(3)/S² operations shared by the
// propagator, interpolator and solver: exponential/logarithm maps, the
// right Jacobian, quaternion bookkeeping, and the two-chart gravity
// parameterization on the sphere. Nothing in this package owns state; it
// is pure math over gonum matrices.
package manifold

import (
	"fmt"

	"gonum.org/v1/gonum/mat"
)

// DimensionAgreement mirrors the teacher's dimension-check vocabulary:
// which pair of dimensions two matrices must agree on.
type DimensionAgreement uint8

const (
	dimErrMsg                    = "dimensions must agree: "
	Rows2Cols DimensionAgreement = iota + 1
	Cols2Rows
	Cols2Cols
	Rows2Rows
	RowsAndCols
)

// CheckDims checks two matrices' dimensions against the given agreement
// and returns a descriptive error if they disagree. The buffers' Feed
// methods, Preintegrate, the solver's initialization and the Retracted
// methods call this before touching caller-supplied matrices, so a wiring
// mistake there surfaces immediately instead of panicking deep inside a
// BLAS call.
func CheckDims(m1, m2 mat.Matrix, name1, name2 string, method DimensionAgreement) error {
	r1, c1 := m1.Dims()
	r2, c2 := m2.Dims()
	switch method {
	case Rows2Cols:
		if r1 != c2 {
			return fmt.Errorf("%s%s(%dx...) %s(...x%d)", dimErrMsg, name1, r1, name2, c2)
		}
	case Cols2Rows:
		if c1 != r2 {
			return fmt.Errorf("%s%s(...x%d) %s(%dx...)", dimErrMsg, name1, c1, name2, r2)
		}
	case Cols2Cols:
		if c1 != c2 {
			return fmt.Errorf("%s%s(...x%d) %s(...x%d)", dimErrMsg, name1, c1, name2, c2)
		}
	case Rows2Rows:
		if r1 != r2 {
			return fmt.Errorf("%s%s(%dx...) %s(%dx...)", dimErrMsg, name1, r1, name2, r2)
		}
	case RowsAndCols:
		if c1 != c2 || r1 != r2 {
			return fmt.Errorf("%s%s(%dx%d) %s(%dx%d)", dimErrMsg, name1, r1, c1, name2, r2, c2)
		}
	}
	return nil
}

// Identity returns the n×n identity as a dense matrix.
func Identity(n int) *mat.Dense {
	d := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		d.Set(i, i, 1)
	}
	return d
}

// Symmetrize returns (m + mᵀ)/2, used to clean up round-off asymmetry
// before a covariance is exported or fed to a Cholesky factorization.
func Symmetrize(m *mat.Dense) *mat.SymDense {
	r, c := m.Dims()
	if r != c {
		panic("manifold: Symmetrize requires a square matrix")
	}
	sym := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < c; j++ {
			v := 0.5 * (m.At(i, j) + m.At(j, i))
			sym.SetSym(i, j, v)
		}
	}
	return sym
}

// IsSPD reports whether m is symmetric positive definite, by attempting a
// Cholesky factorization.
func IsSPD(m mat.Symmetric) bool {
	var chol mat.Cholesky
	return chol.Factorize(m)
}
