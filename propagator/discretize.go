package propagator

import (
	"gonum.org/v1/gonum/mat"
)

// vanLoanDiscretize turns a continuous-time linear error-state system
// (A, Γ, W) — dx/dt = A·x + Γ·w, w ~ N(0, W) — into its discrete-time
// equivalent (F, Q) over a step of length dt, by exponentiating the
// augmented block matrix
//
//	M = [ -A   Γ·W·Γᵗ ]·dt
//	    [  0      Aᵗ   ]
//
// and reading F and F⁻¹Q off the diagonal/off-diagonal blocks of exp(M).
// This is the same construction the teacher uses to turn a continuous
// linear system into the (F, Q) pair a discrete Kalman filter needs; here
// it discretizes the 15-dimensional preintegration error state instead of
// a textbook 2-state kinematic system.
func vanLoanDiscretize(A, Gamma, W *mat.Dense, dt float64) (F *mat.Dense, Q *mat.SymDense) {
	rA, cA := A.Dims()

	var GammaW, GammaWGammaT mat.Dense
	GammaW.Mul(Gamma, W)
	GammaWGammaT.Mul(&GammaW, Gamma.T())
	GammaWGammaT.Scale(dt, &GammaWGammaT)

	var Ascaled mat.Dense
	Ascaled.Scale(dt, A)

	n := rA + cA
	M := mat.NewDense(n, n, nil)
	for i := 0; i < rA; i++ {
		for j := 0; j < cA; j++ {
			M.Set(i, j, -Ascaled.At(i, j))
			M.Set(i+rA, j+cA, Ascaled.T().At(i, j))
		}
	}
	for i := 0; i < rA; i++ {
		for j := 0; j < cA; j++ {
			M.Set(i, j+cA, GammaWGammaT.At(i, j))
		}
	}

	var expM mat.Dense
	expM.Exp(M)
	reM, ceM := expM.Dims()

	Finv1Q := mat.NewDense(rA, cA, nil)
	Fraw := mat.NewDense(rA, cA, nil)
	for i := 0; i < rA; i++ {
		for j := 0; j < cA; j++ {
			Finv1Q.Set(i, j, expM.At(i, ceM-cA+j))
			Fraw.Set(i, j, expM.At(reM-rA+i, ceM-cA+j))
		}
	}
	F = mat.NewDense(rA, cA, nil)
	F.CloneFrom(Fraw.T())

	var Qraw mat.Dense
	Qraw.Mul(F, Finv1Q)
	Q = manifoldSymmetrize(&Qraw)
	return F, Q
}

func manifoldSymmetrize(m *mat.Dense) *mat.SymDense {
	r, _ := m.Dims()
	sym := mat.NewSymDense(r, nil)
	for i := 0; i < r; i++ {
		for j := i; j < r; j++ {
			sym.SetSym(i, j, 0.5*(m.At(i, j)+m.At(j, i)))
		}
	}
	return sym
}
