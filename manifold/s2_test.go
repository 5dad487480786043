package manifold

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/mat"
)

func TestGravityChartRoundTrip(t *testing.T) {
	chart := NewGravityChart(poleZ())
	g := mat.NewVecDense(3, []float64{0.3, -0.1, -0.94})
	g.ScaleVec(GravityNorm/mat.Norm(g, 2), g)
	u, v := chart.ToTangent(g)
	back := chart.FromTangent(u, v)
	if !mat.EqualApprox(g, back, 1e-8) {
		t.Fatalf("chart round trip mismatch: got %v want %v", back, g)
	}
}

func TestGravityChartPoleIsOrigin(t *testing.T) {
	chart := NewGravityChart(poleZ())
	u, v := chart.ToTangent(scaleVec(poleZ(), GravityNorm))
	if math.Abs(u) > 1e-12 || math.Abs(v) > 1e-12 {
		t.Fatalf("pole should map to origin, got (%f, %f)", u, v)
	}
}

func TestGravityChartNeedsSwapBeyondThreshold(t *testing.T) {
	chart := NewGravityChart(poleZ())
	equatorial := mat.NewVecDense(3, []float64{1, 0, 0})
	if !chart.NeedsSwap(equatorial) {
		t.Fatal("90 degrees from pole should require a chart swap")
	}
	nearPole := mat.NewVecDense(3, []float64{0.05, 0, -0.999})
	if chart.NeedsSwap(nearPole) {
		t.Fatal("near-pole direction should not require a chart swap")
	}
}

func TestGravityChartSwapTogglesPole(t *testing.T) {
	chart := NewGravityChart(poleZ())
	chart.Swap()
	if !sameDirection(chart.Pole, poleX()) {
		t.Fatal("Swap from the z-pole chart should select the x-pole chart")
	}
}
