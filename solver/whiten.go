package solver

import (
	"github.com/SamDSchofield/vicon2gt/estimerr"
	"gonum.org/v1/gonum/mat"
)

// whitener factors a measurement covariance once per factor evaluation so
// both the residual and every Jacobian block it owns can be left-multiplied
// by the same Σ^{-1/2} before they enter the normal equations.
type whitener struct {
	Linv *mat.Dense
}

func newWhitener(sigma mat.Symmetric) (*whitener, error) {
	var chol mat.Cholesky
	if ok := chol.Factorize(sigma); !ok {
		return nil, &estimerr.NumericalFailure{Reason: "factor covariance is not positive definite"}
	}
	var L mat.TriDense
	chol.LTo(&L)
	Linv := mat.DenseCopyOf(&L)
	if err := Linv.Inverse(Linv); err != nil {
		return nil, &estimerr.NumericalFailure{Reason: "factor covariance Cholesky factor is singular"}
	}
	return &whitener{Linv: Linv}, nil
}

func (w *whitener) vec(v *mat.VecDense) *mat.VecDense {
	out := mat.NewVecDense(v.Len(), nil)
	out.MulVec(w.Linv, v)
	return out
}

func (w *whitener) mat(m *mat.Dense) *mat.Dense {
	if m == nil {
		return nil
	}
	r, _ := w.Linv.Dims()
	_, cols := m.Dims()
	out := mat.NewDense(r, cols, nil)
	out.Mul(w.Linv, m)
	return out
}
