package solver

import (
	"testing"

	"github.com/SamDSchofield/vicon2gt/estconfig"
	"github.com/SamDSchofield/vicon2gt/interpolator"
	"github.com/SamDSchofield/vicon2gt/manifold"
	"github.com/SamDSchofield/vicon2gt/propagator"
	"gonum.org/v1/gonum/mat"
)

func smallSigma() *mat.SymDense {
	return mat.NewSymDense(3, []float64{1e-6, 0, 0, 0, 1e-6, 0, 0, 0, 1e-6})
}

// buildStationaryGraph feeds a perfectly stationary, gravity-only IMU
// stream and a matching static Vicon stream over seven reference nodes.
func buildStationaryGraph(t *testing.T) (*GraphSolver, []float64) {
	t.Helper()
	imuBuf := propagator.NewBuffer()
	accel := mat.NewVecDense(3, []float64{0, 0, manifold.GravityNorm})
	omega := mat.NewVecDense(3, nil)
	for i := 0; i <= 60; i++ {
		tt := float64(i) / 100
		if err := imuBuf.Feed(tt, omega, accel); err != nil {
			t.Fatalf("imu feed failed: %v", err)
		}
	}

	viconBuf := interpolator.NewBuffer()
	identity := manifold.NewQuat(0, 0, 0, 1)
	for i := 0; i <= 6; i++ {
		tt := float64(i) / 10
		if err := viconBuf.Feed(tt, identity, mat.NewVecDense(3, nil), smallSigma(), smallSigma()); err != nil {
			t.Fatalf("vicon feed failed: %v", err)
		}
	}

	cfg := estconfig.Default()
	cfg.SolverWorkers = 1
	cfg.MaxIterations = 30

	refTimes := make([]float64, 7)
	for i := range refTimes {
		refTimes[i] = float64(i) / 10
	}

	g := New(cfg, imuBuf, viconBuf)
	if err := g.SetReferenceTimes(refTimes); err != nil {
		t.Fatalf("SetReferenceTimes failed: %v", err)
	}
	return g, refTimes
}

func TestStationaryGraphConverges(t *testing.T) {
	g, _ := buildStationaryGraph(t)
	result, err := g.BuildAndSolve()
	if err != nil {
		t.Fatalf("BuildAndSolve failed: %v", err)
	}
	if !result.Converged {
		t.Fatalf("expected convergence, got %d iterations, cost=%f", result.Iterations, result.Cost)
	}
	if result.Cost > 1e-6 {
		t.Fatalf("residual cost too large for a noise-free stationary scenario: %f", result.Cost)
	}
	for _, node := range result.Nodes {
		if mat.Norm(node.P, 2) > 1e-3 {
			t.Fatalf("position drifted from zero: %v", mat.Formatted(node.P.T()))
		}
	}
}

func TestStationaryGraphHoldsCalibrationFixed(t *testing.T) {
	g, _ := buildStationaryGraph(t)
	result, err := g.BuildAndSolve()
	if err != nil {
		t.Fatalf("BuildAndSolve failed: %v", err)
	}
	if result.CalibrationObservable {
		t.Fatal("a perfectly stationary scenario has zero rotation excitation and should hold calibration fixed")
	}
}

func TestReferenceTimesRejectOutOfRange(t *testing.T) {
	imuBuf := propagator.NewBuffer()
	_ = imuBuf.Feed(0, mat.NewVecDense(3, nil), mat.NewVecDense(3, []float64{0, 0, manifold.GravityNorm}))
	_ = imuBuf.Feed(1, mat.NewVecDense(3, nil), mat.NewVecDense(3, []float64{0, 0, manifold.GravityNorm}))
	viconBuf := interpolator.NewBuffer()

	g := New(estconfig.Default(), imuBuf, viconBuf)
	if err := g.SetReferenceTimes([]float64{0, 5}); err == nil {
		t.Fatal("expected OutOfRange when reference times exceed the IMU buffer's extent")
	}
}
