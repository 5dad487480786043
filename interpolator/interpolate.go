package interpolator

import (
	"github.com/SamDSchofield/vicon2gt/manifold"
	"gonum.org/v1/gonum/mat"
)

// Pose is an interpolated SE(3) pose with its 6x6 covariance (rotation
// block then position block), returned by Interpolate.
type Pose struct {
	R      *mat.Dense
	P      *mat.VecDense
	SigmaR *mat.SymDense
	SigmaP *mat.SymDense
}

// Cov6 assembles the block-diagonal 6x6 covariance [Σ_R 0; 0 Σ_p] the
// solver's Vicon factor weights its residual by.
func (p Pose) Cov6() *mat.SymDense {
	cov := mat.NewSymDense(6, nil)
	for i := 0; i < 3; i++ {
		for j := i; j < 3; j++ {
			cov.SetSym(i, j, p.SigmaR.At(i, j))
			cov.SetSym(i+3, j+3, p.SigmaP.At(i, j))
		}
	}
	return cov
}

// Interpolate returns the pose at t and its propagated covariance, per
// spec.md §4.2. It fails with OutOfRange if t lies strictly outside the
// buffer's extent — no extrapolation is performed.
func (b *Buffer) Interpolate(t float64) (Pose, error) {
	a, err := b.bracket(t)
	if err != nil {
		return Pose{}, err
	}
	sa, sb := b.samples[a], b.samples[a+1]
	lambda := 0.0
	if sb.T != sa.T {
		lambda = (t - sa.T) / (sb.T - sa.T)
	}
	return interpolateBetween(sa, sb, lambda), nil
}

// Velocity returns the constant angular velocity (rad/s, in the Vicon
// body frame) and linear velocity (m/s) of the spline segment bracketing
// t. The solver's observability guard uses the angular rate to measure
// rotational excitation; the Vicon factor's time-offset Jacobian does not
// use it (it is formed by numerical differencing of Interpolate).
func (b *Buffer) Velocity(t float64) (omega, v *mat.VecDense, err error) {
	a, err := b.bracket(t)
	if err != nil {
		return nil, nil, err
	}
	sa, sb := b.samples[a], b.samples[a+1]
	dt := sb.T - sa.T

	qb := sb.Q.NearestTo(sa.Q)
	Ra, Rb := sa.Q.ToRotation(), qb.ToRotation()
	var RaT mat.Dense
	RaT.CloneFrom(Ra.T())
	var relative mat.Dense
	relative.Mul(&RaT, Rb)
	phi := manifold.Log(&relative)
	omega = mat.NewVecDense(3, nil)
	omega.ScaleVec(1/dt, phi)

	v = mat.NewVecDense(3, nil)
	v.SubVec(sb.P, sa.P)
	v.ScaleVec(1/dt, v)
	return omega, v, nil
}

// interpCorrelation is the assumed correlation coefficient between the
// position uncertainty at the two bracketing samples, used by the bilinear
// coupling term in the position covariance blend. Vicon samples are
// treated as independent observations, so it defaults to zero; it is kept
// as a named constant (rather than folded into the formula) so a future
// adapter feeding temporally-correlated poses has somewhere to plug in a
// nonzero value.
const interpCorrelation = 0.0

func interpolateBetween(sa, sb Sample, lambda float64) Pose {
	qb := sb.Q.NearestTo(sa.Q)
	Ra := sa.Q.ToRotation()
	Rb := qb.ToRotation()

	var RaT mat.Dense
	RaT.CloneFrom(Ra.T())
	var relative mat.Dense
	relative.Mul(&RaT, Rb)
	phi := manifold.Log(&relative)

	scaledPhi := mat.NewVecDense(3, nil)
	scaledPhi.ScaleVec(lambda, phi)
	var R mat.Dense
	R.Mul(Ra, manifold.Exp(scaledPhi))

	p := mat.NewVecDense(3, nil)
	p.AddScaledVec(p, 1-lambda, sa.P)
	p.AddScaledVec(p, lambda, sb.P)

	sigmaR := interpRotationCov(sa.SigmaR, sb.SigmaR, phi, lambda)
	sigmaP := interpPositionCov(sa.SigmaP, sb.SigmaP, lambda)

	return Pose{R: &R, P: p, SigmaR: sigmaR, SigmaP: sigmaP}
}

// interpRotationCov propagates the endpoint rotation covariances through
// R(t) = Ra·Exp(λ·Log(Raᵗ·Rb)) using the right Jacobian of Log at the
// interpolation tangent, per spec.md §4.2.
func interpRotationCov(sigmaA, sigmaB *mat.SymDense, phi *mat.VecDense, lambda float64) *mat.SymDense {
	scaledPhi := mat.NewVecDense(3, nil)
	scaledPhi.ScaleVec(lambda, phi)
	JrLambda := manifold.RightJacobian(scaledPhi)
	JrInv := manifold.RightJacobianInv(phi)

	var Jb mat.Dense
	Jb.Mul(JrLambda, JrInv)
	Jb.Scale(lambda, &Jb)

	var termB mat.Dense
	termB.Mul(&Jb, sigmaB)
	termB.Mul(&termB, Jb.T())

	out := mat.NewDense(3, 3, nil)
	out.Add(scaledCov(sigmaA, (1-lambda)*(1-lambda)), &termB)
	return manifold.Symmetrize(out)
}

// interpPositionCov blends the endpoint position covariances convexly and
// adds the bilinear coupling term spec.md §4.2 calls for.
func interpPositionCov(sigmaA, sigmaB *mat.SymDense, lambda float64) *mat.SymDense {
	out := mat.NewDense(3, 3, nil)
	out.Add(scaledCov(sigmaA, (1-lambda)*(1-lambda)), scaledCov(sigmaB, lambda*lambda))
	coupling := 2 * lambda * (1 - lambda) * interpCorrelation
	if coupling != 0 {
		couplingTerm := mat.NewDense(3, 3, nil)
		couplingTerm.Add(sigmaA, sigmaB)
		couplingTerm.Scale(coupling, couplingTerm)
		out.Add(out, couplingTerm)
	}
	return manifold.Symmetrize(out)
}

func scaledCov(m *mat.SymDense, s float64) *mat.Dense {
	var out mat.Dense
	out.Scale(s, m)
	return &out
}
