package solver

import (
	"runtime"

	"github.com/SamDSchofield/vicon2gt/estimerr"
	"github.com/SamDSchofield/vicon2gt/manifold"
	"gonum.org/v1/gonum/mat"
)

// solveNormalEquations solves (JᵗJ scaled by (1+λ) on its diagonal)·δ = -Jᵗr
// via dense Cholesky, per SPEC_FULL.md's block-banded-Cholesky note. The
// Marquardt diagonal scaling (rather than a flat λI) keeps damping scale
// invariant across node and calibration blocks whose natural units differ
// by orders of magnitude (rad vs m vs m/s).
func solveNormalEquations(JtJ *mat.Dense, Jtr *mat.VecDense, lambda float64) (*mat.VecDense, error) {
	d, _ := JtJ.Dims()
	damped := mat.NewDense(d, d, nil)
	damped.CloneFrom(JtJ)
	for i := 0; i < d; i++ {
		damped.Set(i, i, damped.At(i, i)*(1+lambda))
	}
	sym := manifold.Symmetrize(damped)

	var chol mat.Cholesky
	if ok := chol.Factorize(sym); !ok {
		return nil, &estimerr.NumericalFailure{Reason: "damped information matrix is not positive definite"}
	}

	negJtr := mat.NewVecDense(d, nil)
	negJtr.ScaleVec(-1, Jtr)
	delta := mat.NewVecDense(d, nil)
	if err := chol.SolveVecTo(delta, negJtr); err != nil {
		return nil, &estimerr.NumericalFailure{Reason: "Cholesky solve failed: " + err.Error()}
	}
	return delta, nil
}

// retractAll applies a full-length delta to every node and to the
// calibration block, per the layout's fixed ordering.
func retractAll(nodes []*StateNode, calib *Calibration, delta *mat.VecDense, lay layout) ([]*StateNode, *Calibration) {
	out := make([]*StateNode, len(nodes))
	for k, node := range nodes {
		out[k] = node.Retracted(sliceVec(delta, lay.nodeOffset(k), stateTangentDim))
	}
	if lay.calibDim > 0 {
		return out, calib.Retracted(sliceVec(delta, lay.calibOffset(), lay.calibDim))
	}
	return out, calib.Clone()
}

func defaultGOMAXPROCS() int { return runtime.GOMAXPROCS(0) }
