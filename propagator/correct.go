package propagator

import (
	"github.com/SamDSchofield/vicon2gt/manifold"
	"gonum.org/v1/gonum/mat"
)

// Corrected is a PreintMeas's relative motion adjusted to a new bias
// estimate by a first-order Taylor expansion about the measurement's
// linearization point, using the stored bias Jacobians — the solver calls
// this every iteration instead of re-preintegrating, and only asks the
// Propagator to redo the full recursion once NeedsRelinearization trips.
type Corrected struct {
	DR *mat.Dense
	Dv *mat.VecDense
	Dp *mat.VecDense
}

// Correct applies the first-order bias correction δ(Δ) = J_b · [δbg; δba]
// to p's linearization point, where δbg = bg - p.BgLin, δba = ba - p.BaLin.
func (p *PreintMeas) Correct(bg, ba *mat.VecDense) Corrected {
	delta := mat.NewVecDense(6, nil)
	for i := 0; i < 3; i++ {
		delta.SetVec(i, bg.AtVec(i)-p.BgLin.AtVec(i))
		delta.SetVec(i+3, ba.AtVec(i)-p.BaLin.AtVec(i))
	}

	var correction mat.VecDense
	correction.MulVec(p.Jb, delta)

	dTheta := mat.NewVecDense(3, []float64{correction.AtVec(0), correction.AtVec(1), correction.AtVec(2)})
	dv := mat.NewVecDense(3, []float64{correction.AtVec(3), correction.AtVec(4), correction.AtVec(5)})
	dp := mat.NewVecDense(3, []float64{correction.AtVec(6), correction.AtVec(7), correction.AtVec(8)})

	var correctedDR mat.Dense
	correctedDR.Mul(p.DR, manifold.Exp(dTheta))

	correctedDv := mat.NewVecDense(3, nil)
	correctedDv.AddVec(p.Dv, dv)

	correctedDp := mat.NewVecDense(3, nil)
	correctedDp.AddVec(p.Dp, dp)

	return Corrected{DR: &correctedDR, Dv: correctedDv, Dp: correctedDp}
}
