// Package solver builds the factor graph of spec.md §4.3: one state node
// per reference timestamp, bound by IMU preintegration and bias
// random-walk factors to its successor and by a Vicon factor to the
// interpolated pose, plus calibration unknowns shared across every node.
// It runs Levenberg-Marquardt on the manifold to a MAP trajectory and
// exposes marginal covariances.
package solver

import (
	"fmt"

	"github.com/SamDSchofield/vicon2gt/manifold"
	"gonum.org/v1/gonum/mat"
)

// stateTangentDim is the per-node local tangent dimension: [δφ, δp, δv,
// δbg, δba].
const stateTangentDim = 15

// StateNode is the manifold unknown materialized per reference timestamp.
// The solver is its exclusive owner: it is created when the graph is
// built and mutated only by LM retraction steps.
type StateNode struct {
	T  float64
	R  *mat.Dense    // orientation, SO(3)
	P  *mat.VecDense // position
	V  *mat.VecDense // velocity
	Bg *mat.VecDense // gyro bias
	Ba *mat.VecDense // accel bias
}

// Clone returns a deep copy, used to hold the best-found state across LM
// trial steps without mutating the node the caller may still be reading.
func (s *StateNode) Clone() *StateNode {
	return &StateNode{
		T:  s.T,
		R:  mat.DenseCopyOf(s.R),
		P:  mat.VecDenseCopyOf(s.P),
		V:  mat.VecDenseCopyOf(s.V),
		Bg: mat.VecDenseCopyOf(s.Bg),
		Ba: mat.VecDenseCopyOf(s.Ba),
	}
}

// Retracted returns a new node obtained by applying a 15-dim tangent
// delta via the node's right-multiplicative retraction: R ← R·Exp(δφ),
// and ordinary vector addition for p, v, bg, ba.
func (s *StateNode) Retracted(delta *mat.VecDense) *StateNode {
	if err := manifold.CheckDims(delta, mat.NewVecDense(stateTangentDim, nil), "delta", "stateTangent", manifold.RowsAndCols); err != nil {
		panic("solver: " + err.Error())
	}
	dphi := mat.NewVecDense(3, []float64{delta.AtVec(0), delta.AtVec(1), delta.AtVec(2)})
	out := s.Clone()
	var R mat.Dense
	R.Mul(s.R, manifold.Exp(dphi))
	out.R = &R
	out.P.AddScaledVec(s.P, 1, sliceVec(delta, 3, 3))
	out.V.AddScaledVec(s.V, 1, sliceVec(delta, 6, 3))
	out.Bg.AddScaledVec(s.Bg, 1, sliceVec(delta, 9, 3))
	out.Ba.AddScaledVec(s.Ba, 1, sliceVec(delta, 12, 3))
	return out
}

func sliceVec(v *mat.VecDense, offset, n int) *mat.VecDense {
	out := mat.NewVecDense(n, nil)
	for i := 0; i < n; i++ {
		out.SetVec(i, v.AtVec(offset+i))
	}
	return out
}

func (s *StateNode) String() string {
	return fmt.Sprintf("StateNode{t=%.6f p=%v v=%v bg=%v ba=%v}", s.T, mat.Formatted(s.P.T()), mat.Formatted(s.V.T()), mat.Formatted(s.Bg.T()), mat.Formatted(s.Ba.T()))
}
