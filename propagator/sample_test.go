package propagator

import (
	"testing"

	"gonum.org/v1/gonum/mat"
)

func zeroVec() *mat.VecDense { return mat.NewVecDense(3, nil) }

func TestFeedRejectsNonMonotone(t *testing.T) {
	b := NewBuffer()
	if err := b.Feed(0.0, zeroVec(), zeroVec()); err != nil {
		t.Fatalf("first feed should succeed: %v", err)
	}
	if err := b.Feed(1.0, zeroVec(), zeroVec()); err != nil {
		t.Fatalf("monotone feed should succeed: %v", err)
	}
	if err := b.Feed(0.5, zeroVec(), zeroVec()); err == nil {
		t.Fatal("non-monotone feed should be rejected")
	}
	if err := b.Feed(1.0, zeroVec(), zeroVec()); err == nil {
		t.Fatal("duplicate timestamp should be rejected, collapsing to the earlier insertion")
	}
	if got := b.Len(); got != 2 {
		t.Fatalf("buffer size = %d, want 2", got)
	}
}

func TestFeedAcceptsAllOfAMonotoneSequence(t *testing.T) {
	b := NewBuffer()
	ts := []float64{0, 0.01, 0.02, 0.03, 0.04}
	for _, t0 := range ts {
		if err := b.Feed(t0, zeroVec(), zeroVec()); err != nil {
			t.Fatalf("feed(%f) failed: %v", t0, err)
		}
	}
	if got := b.Len(); got != len(ts) {
		t.Fatalf("buffer size = %d, want %d", got, len(ts))
	}
}
