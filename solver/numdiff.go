package solver

import "gonum.org/v1/gonum/mat"

// numdiffStep is the central-difference step used for every factor's
// local Jacobian. Factors depend on at most three small manifold blocks, so
// this stays cheap even though it is not analytic: each factor's
// Evaluate only has to differentiate its own residual, never the whole
// graph.
const numdiffStep = 1e-6

// localJacobian computes the Dim(residual) x dim central-difference
// Jacobian of residualAt with respect to a local tangent perturbation,
// evaluated at the zero delta. residualAt must apply delta via the
// relevant node's or calibration's own Retracted method and return the
// resulting residual, or nil if the perturbed point is not evaluable
// (e.g. an interpolation query falls out of range).
func localJacobian(dim, outDim int, residualAt func(delta *mat.VecDense) *mat.VecDense) *mat.Dense {
	J := mat.NewDense(outDim, dim, nil)
	delta := mat.NewVecDense(dim, nil)
	for j := 0; j < dim; j++ {
		delta.SetVec(j, numdiffStep)
		plus := residualAt(delta)
		delta.SetVec(j, -numdiffStep)
		minus := residualAt(delta)
		delta.SetVec(j, 0)
		if plus == nil || minus == nil {
			continue
		}
		for i := 0; i < outDim; i++ {
			J.Set(i, j, (plus.AtVec(i)-minus.AtVec(i))/(2*numdiffStep))
		}
	}
	return J
}
