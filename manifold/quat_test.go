package manifold

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestQuatRotationRoundTrip(t *testing.T) {
	phi := mat.NewVecDense(3, []float64{0.1, -0.2, 0.3})
	R := Exp(phi)
	q := QuatFromRotation(R)
	back := q.ToRotation()
	if !mat.EqualApprox(R, back, 1e-9) {
		t.Fatalf("quaternion round trip mismatch: got %v want %v", mat.Formatted(back), mat.Formatted(R))
	}
}

func TestQuatAlwaysUnitNorm(t *testing.T) {
	q := NewQuat(3, 4, 0, 0)
	if math.Abs(q.Norm()-1) > 1e-12 {
		t.Fatalf("NewQuat did not normalize: norm=%f", q.Norm())
	}
}

func TestNearestToResolvesDoubleCover(t *testing.T) {
	q := NewQuat(0.1, 0.2, 0.3, 0.9)
	flipped := q.Negated()
	ref := NewQuat(0, 0, 0, 1)
	if q.NearestTo(ref) != flipped.NearestTo(ref) {
		t.Fatal("NearestTo should pick the same representative for q and -q")
	}
}
