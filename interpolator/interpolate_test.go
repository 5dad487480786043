package interpolator

import (
	"math"
	"testing"

	"github.com/SamDSchofield/vicon2gt/manifold"
	"gonum.org/v1/gonum/mat"
)

func identitySigma() *mat.SymDense {
	return mat.NewSymDense(3, []float64{1e-4, 0, 0, 0, 1e-4, 0, 0, 0, 1e-4})
}

func TestFeedRejectsNonMonotone(t *testing.T) {
	b := NewBuffer()
	q := manifold.NewQuat(0, 0, 0, 1)
	p := mat.NewVecDense(3, nil)
	if err := b.Feed(0, q, p, identitySigma(), identitySigma()); err != nil {
		t.Fatalf("first feed should succeed: %v", err)
	}
	if err := b.Feed(0, q, p, identitySigma(), identitySigma()); err == nil {
		t.Fatal("duplicate timestamp should be rejected")
	}
	if got := b.Len(); got != 1 {
		t.Fatalf("buffer size = %d, want 1", got)
	}
}

func TestInterpolateOutOfRange(t *testing.T) {
	b := NewBuffer()
	q := manifold.NewQuat(0, 0, 0, 1)
	_ = b.Feed(0, q, mat.NewVecDense(3, nil), identitySigma(), identitySigma())
	_ = b.Feed(1, q, mat.NewVecDense(3, nil), identitySigma(), identitySigma())
	if _, err := b.Interpolate(2.0); err == nil {
		t.Fatal("expected OutOfRange when querying beyond buffer extent")
	}
}

func TestInterpolateEndpointIdentity(t *testing.T) {
	b := NewBuffer()
	qa := manifold.NewQuat(0, 0, 0, 1)
	qb := manifold.NewQuat(0, 0, math.Sin(0.3), math.Cos(0.3))
	pa := mat.NewVecDense(3, []float64{1, 2, 3})
	pb := mat.NewVecDense(3, []float64{4, 5, 6})
	_ = b.Feed(0, qa, pa, identitySigma(), identitySigma())
	_ = b.Feed(1, qb, pb, identitySigma(), identitySigma())

	at0, err := b.Interpolate(0)
	if err != nil {
		t.Fatalf("Interpolate(0) failed: %v", err)
	}
	if !mat.EqualApprox(at0.R, qa.ToRotation(), 1e-12) {
		t.Fatalf("R(t_a) mismatch")
	}
	if !mat.EqualApprox(at0.P, pa, 1e-12) {
		t.Fatalf("p(t_a) mismatch")
	}

	at1, err := b.Interpolate(1)
	if err != nil {
		t.Fatalf("Interpolate(1) failed: %v", err)
	}
	if !mat.EqualApprox(at1.R, qb.ToRotation(), 1e-9) {
		t.Fatalf("R(t_b) mismatch: got %v want %v", mat.Formatted(at1.R), mat.Formatted(qb.ToRotation()))
	}
	if !mat.EqualApprox(at1.P, pb, 1e-12) {
		t.Fatalf("p(t_b) mismatch")
	}
}

func TestInterpolateMidpoint(t *testing.T) {
	b := NewBuffer()
	theta := 0.6
	qa := manifold.NewQuat(0, 0, 0, 1)
	qb := manifold.QuatFromRotation(manifold.Exp(mat.NewVecDense(3, []float64{0, 0, theta})))
	_ = b.Feed(0, qa, mat.NewVecDense(3, nil), identitySigma(), identitySigma())
	_ = b.Feed(1, qb, mat.NewVecDense(3, nil), identitySigma(), identitySigma())

	mid, err := b.Interpolate(0.5)
	if err != nil {
		t.Fatalf("Interpolate(0.5) failed: %v", err)
	}
	want := manifold.Exp(mat.NewVecDense(3, []float64{0, 0, theta / 2}))
	if !mat.EqualApprox(mid.R, want, 1e-9) {
		t.Fatalf("midpoint rotation = %v, want %v", mat.Formatted(mid.R), mat.Formatted(want))
	}
}

func TestSlerpShortestArc(t *testing.T) {
	b1 := NewBuffer()
	b2 := NewBuffer()
	qa := manifold.NewQuat(0.1, 0.2, 0.3, 0.9).Normalized()
	qb := manifold.NewQuat(-0.2, 0.4, 0.1, 0.85).Normalized()

	_ = b1.Feed(0, qa, mat.NewVecDense(3, nil), identitySigma(), identitySigma())
	_ = b1.Feed(1, qb, mat.NewVecDense(3, nil), identitySigma(), identitySigma())

	_ = b2.Feed(0, qa, mat.NewVecDense(3, nil), identitySigma(), identitySigma())
	_ = b2.Feed(1, qb.Negated(), mat.NewVecDense(3, nil), identitySigma(), identitySigma())

	for _, tt := range []float64{0.0, 0.25, 0.5, 0.75, 1.0} {
		p1, err := b1.Interpolate(tt)
		if err != nil {
			t.Fatalf("Interpolate(%f) on b1 failed: %v", tt, err)
		}
		p2, err := b2.Interpolate(tt)
		if err != nil {
			t.Fatalf("Interpolate(%f) on b2 failed: %v", tt, err)
		}
		if !mat.EqualApprox(p1.R, p2.R, 1e-9) {
			t.Fatalf("at t=%f: flipped-sign quaternion gave a different rotation: %v vs %v", tt, mat.Formatted(p1.R), mat.Formatted(p2.R))
		}
	}
}

func TestCovarianceSymmetricAndPositive(t *testing.T) {
	b := NewBuffer()
	qa := manifold.NewQuat(0, 0, 0, 1)
	qb := manifold.NewQuat(0, 0, 0.3, 0.95).Normalized()
	_ = b.Feed(0, qa, mat.NewVecDense(3, []float64{0, 0, 0}), identitySigma(), identitySigma())
	_ = b.Feed(1, qb, mat.NewVecDense(3, []float64{1, 0, 0}), identitySigma(), identitySigma())

	pose, err := b.Interpolate(0.3)
	if err != nil {
		t.Fatalf("Interpolate failed: %v", err)
	}
	cov := pose.Cov6()
	for i := 0; i < 6; i++ {
		for j := 0; j < 6; j++ {
			if math.Abs(cov.At(i, j)-cov.At(j, i)) > 1e-12 {
				t.Fatalf("Cov6 not symmetric at (%d,%d)", i, j)
			}
		}
	}
	if !manifold.IsSPD(cov) {
		t.Fatal("Cov6 is not SPD")
	}
}
