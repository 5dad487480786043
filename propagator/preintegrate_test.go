package propagator

import (
	"math"
	"testing"

	"github.com/SamDSchofield/vicon2gt/manifold"
	"gonum.org/v1/gonum/mat"
)

func defaultNoise() NoiseDensities {
	return NoiseDensities{
		GyroNoise:       1.6968e-4,
		AccelNoise:      2.0e-3,
		GyroRandomWalk:  1.9393e-5,
		AccelRandomWalk: 3.0e-3,
	}
}

func feedConstant(b *Buffer, hz float64, duration float64, omega, accel *mat.VecDense) {
	for i := 0; float64(i)/hz <= duration+1e-9; i++ {
		t := float64(i) / hz
		_ = b.Feed(t, mat.VecDenseCopyOf(omega), mat.VecDenseCopyOf(accel))
	}
}

// TestZeroMotionPreintegration preintegrates a stationary interval where
// the measured rate and specific force exactly equal the linearization
// bias, so the corrected measurements ω̂, â are identically zero and the
// preintegrated mean must stay at its identity/zero starting point.
func TestZeroMotionPreintegration(t *testing.T) {
	bg := mat.NewVecDense(3, []float64{0.01, -0.02, 0.03})
	ba := mat.NewVecDense(3, []float64{0.1, -0.1, 0.2})

	b := NewBuffer()
	feedConstant(b, 200, 1.0, bg, ba)

	meas, err := b.Preintegrate(0, 1.0, bg, ba, defaultNoise())
	if err != nil {
		t.Fatalf("Preintegrate failed: %v", err)
	}
	if !mat.EqualApprox(meas.DR, manifold.Identity(3), 1e-9) {
		t.Fatalf("ΔR = %v, want identity", mat.Formatted(meas.DR))
	}
	if mat.Norm(meas.Dv, 2) > 1e-9 {
		t.Fatalf("Δv = %v, want zero", meas.Dv)
	}
	if mat.Norm(meas.Dp, 2) > 1e-9 {
		t.Fatalf("Δp = %v, want zero", meas.Dp)
	}
}

// TestCovarianceGrowsLinearlyWithZeroMotion checks that the rotation block
// of Σ grows approximately linearly in Δt for a stationary interval, per
// spec.md §8 property 2.
func TestCovarianceGrowsLinearlyWithZeroMotion(t *testing.T) {
	bg := mat.NewVecDense(3, []float64{0, 0, 0})
	ba := mat.NewVecDense(3, []float64{0, 0, 0})

	b := NewBuffer()
	feedConstant(b, 200, 2.0, bg, ba)

	m1, err := b.Preintegrate(0, 1.0, bg, ba, defaultNoise())
	if err != nil {
		t.Fatalf("Preintegrate(0,1) failed: %v", err)
	}
	m2, err := b.Preintegrate(0, 2.0, bg, ba, defaultNoise())
	if err != nil {
		t.Fatalf("Preintegrate(0,2) failed: %v", err)
	}

	ratio := m2.Cov.At(0, 0) / m1.Cov.At(0, 0)
	if math.Abs(ratio-2) > 0.05 {
		t.Fatalf("Σ_θθ(2s)/Σ_θθ(1s) = %f, want ≈2 (linear growth)", ratio)
	}
}

// TestPreintegrationComposition checks that preintegrating [t1,t3] in one
// call matches composing the [t1,t2] and [t2,t3] preintegrations, per
// spec.md §8 property 3.
func TestPreintegrationComposition(t *testing.T) {
	bg := mat.NewVecDense(3, []float64{0, 0, 0.05})
	ba := mat.NewVecDense(3, []float64{0, 0, 0})

	b := NewBuffer()
	// Smooth sinusoidal-ish excitation so midpoint integration over
	// different sub-splits still agrees to high precision.
	hz, duration := 400.0, 1.0
	for i := 0; float64(i)/hz <= duration+1e-9; i++ {
		tt := float64(i) / hz
		om := mat.NewVecDense(3, []float64{0.02 * math.Sin(2*math.Pi*0.5*tt), 0, 0.05})
		ac := mat.NewVecDense(3, []float64{0, 0, 0})
		_ = b.Feed(tt, om, ac)
	}

	whole, err := b.Preintegrate(0, 1.0, bg, ba, defaultNoise())
	if err != nil {
		t.Fatalf("whole-interval preintegration failed: %v", err)
	}
	ab, err := b.Preintegrate(0, 0.4, bg, ba, defaultNoise())
	if err != nil {
		t.Fatalf("first half preintegration failed: %v", err)
	}
	bc, err := b.Preintegrate(0.4, 1.0, bg, ba, defaultNoise())
	if err != nil {
		t.Fatalf("second half preintegration failed: %v", err)
	}
	composed := ComposePreint(ab, bc)

	if !mat.EqualApprox(whole.DR, composed.DR, 1e-6) {
		t.Fatalf("ΔR mismatch: whole=%v composed=%v", mat.Formatted(whole.DR), mat.Formatted(composed.DR))
	}
	if !mat.EqualApprox(whole.Dv, composed.Dv, 1e-6) {
		t.Fatalf("Δv mismatch: whole=%v composed=%v", whole.Dv, composed.Dv)
	}
	if !mat.EqualApprox(whole.Dp, composed.Dp, 1e-6) {
		t.Fatalf("Δp mismatch: whole=%v composed=%v", whole.Dp, composed.Dp)
	}
}

func TestPreintegrateInsufficientData(t *testing.T) {
	b := NewBuffer()
	_ = b.Feed(0, mat.NewVecDense(3, nil), mat.NewVecDense(3, nil))
	_, err := b.Preintegrate(0, 1, mat.NewVecDense(3, nil), mat.NewVecDense(3, nil), defaultNoise())
	if err == nil {
		t.Fatal("expected InsufficientData with a single buffered sample")
	}
}
