package manifold

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestExpLogRoundTrip(t *testing.T) {
	cases := []*mat.VecDense{
		mat.NewVecDense(3, []float64{0, 0, 0}),
		mat.NewVecDense(3, []float64{1e-9, -2e-9, 3e-9}),
		mat.NewVecDense(3, []float64{0.1, -0.2, 0.05}),
		mat.NewVecDense(3, []float64{0, 0, math.Pi / 2}),
	}
	for _, phi := range cases {
		R := Exp(phi)
		back := Log(R)
		if !mat.EqualApprox(phi, back, 1e-8) {
			t.Fatalf("Log(Exp(%v)) = %v, want %v", phi, back, phi)
		}
	}
}

func TestExpIsOrthonormal(t *testing.T) {
	phi := mat.NewVecDense(3, []float64{0.3, -0.4, 0.2})
	R := Exp(phi)
	var RtR mat.Dense
	RtR.Mul(R.T(), R)
	if !mat.EqualApprox(&RtR, Identity(3), 1e-10) {
		t.Fatalf("Exp(phi) is not orthonormal: RtR=%v", mat.Formatted(&RtR))
	}
	if det := mat.Det(R); math.Abs(det-1) > 1e-10 {
		t.Fatalf("det(Exp(phi)) = %f, want 1", det)
	}
}

func TestRightJacobianInverse(t *testing.T) {
	cases := []*mat.VecDense{
		mat.NewVecDense(3, []float64{1e-9, 0, 0}),
		mat.NewVecDense(3, []float64{0.2, 0.1, -0.3}),
	}
	for _, phi := range cases {
		Jr := RightJacobian(phi)
		JrInv := RightJacobianInv(phi)
		var prod mat.Dense
		prod.Mul(Jr, JrInv)
		if !mat.EqualApprox(&prod, Identity(3), 1e-8) {
			t.Fatalf("Jr(%v)*Jr^-1(%v) != I, got %v", phi, phi, mat.Formatted(&prod))
		}
	}
}

func TestHatVeeRoundTrip(t *testing.T) {
	v := mat.NewVecDense(3, []float64{1, 2, 3})
	back := Vee(Hat(v))
	if !mat.EqualApprox(v, back, 1e-12) {
		t.Fatalf("Vee(Hat(v)) = %v, want %v", back, v)
	}
}
