package vicontruth

import (
	"github.com/SamDSchofield/vicon2gt/estimerr"
	"gonum.org/v1/gonum/mat"
)

// NEES computes the normalized estimation error squared of one error
// vector against its reported covariance, eᵗΣ⁻¹e, the same statistic the
// teacher's chisquare.go accumulates across Monte Carlo runs. It is
// exposed here as a single-sample primitive so a scenario test can
// average it across runs itself, rather than this package owning a
// Monte Carlo loop the way the teacher's NewChiSquare does — our error
// vectors live on a manifold, and the caller is in the best position to
// form them correctly for whichever node or calibration block it's
// checking.
func NEES(errVec *mat.VecDense, cov *mat.SymDense) (float64, error) {
	var inv mat.Dense
	if err := inv.Inverse(cov); err != nil {
		return 0, &estimerr.NumericalFailure{Reason: "covariance is singular: " + err.Error()}
	}
	var tmp mat.VecDense
	tmp.MulVec(&inv, errVec)
	return mat.Dot(errVec, &tmp), nil
}
