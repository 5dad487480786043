package solver

import (
	"github.com/SamDSchofield/vicon2gt/estimerr"
	"github.com/SamDSchofield/vicon2gt/manifold"
	"gonum.org/v1/gonum/mat"
)

// Covariances inverts the final information matrix once and caches the
// per-node and calibration marginal blocks, the way the teacher's
// information filter caches its own Covariance() call: most callers
// (the export package, in particular) only want the diagonal blocks of
// an otherwise dense D x D inverse, and nobody wants to pay for that
// inverse twice.
func (r *Result) Covariances() ([]*mat.SymDense, *mat.SymDense, error) {
	r.covOnce.Do(func() {
		if r.finalInfo == nil {
			r.covErr = &estimerr.NumericalFailure{Reason: "no information matrix available"}
			return
		}
		d, _ := r.finalInfo.Dims()
		inv := mat.NewDense(d, d, nil)
		if err := inv.Inverse(r.finalInfo); err != nil {
			r.covErr = &estimerr.NumericalFailure{Reason: "information matrix is singular at the reported solution"}
			return
		}
		full := manifold.Symmetrize(inv)

		n := len(r.Nodes)
		r.nodeCov = make([]*mat.SymDense, n)
		for k := 0; k < n; k++ {
			off := k * stateTangentDim
			r.nodeCov[k] = subSym(full, off, stateTangentDim)
		}
		if d := r.Calib.TangentDim(); d > 0 {
			off := n * stateTangentDim
			r.calibCov = subSym(full, off, d)
		}
	})
	return r.nodeCov, r.calibCov, r.covErr
}

func subSym(full *mat.SymDense, offset, n int) *mat.SymDense {
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out.SetSym(i, j, full.At(offset+i, offset+j))
		}
	}
	return out
}
