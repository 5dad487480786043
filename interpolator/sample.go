package interpolator

import (
	"fmt"

	"github.com/SamDSchofield/vicon2gt/estimerr"
	"github.com/SamDSchofield/vicon2gt/manifold"
	"gonum.org/v1/gonum/mat"
)

// quatNormTolerance is the slack within which a non-unit quaternion is
// silently renormalized on Feed; beyond it the sample is rejected.
const quatNormTolerance = 1e-6

// Sample is one Vicon pose observation with its per-axis covariances,
// immutable once ingested.
type Sample struct {
	T      float64
	Q      manifold.Quat
	P      *mat.VecDense
	SigmaR *mat.SymDense // 3x3, orientation covariance
	SigmaP *mat.SymDense // 3x3, position covariance
}

func (s Sample) String() string {
	return fmt.Sprintf("Pose{t=%.9f q=%v p=%v}", s.T, s.Q, mat.Formatted(s.P.T()))
}

// Buffer owns an ordered, strictly-monotone set of Vicon pose samples.
type Buffer struct {
	samples []Sample
}

// NewBuffer returns an empty pose buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Feed appends a sample. It rejects (and drops) the sample if t does not
// strictly follow the previous accepted timestamp, or if q is further
// than 1e-6 from unit norm (within that tolerance it is renormalized
// silently, per spec.md §4.2).
func (b *Buffer) Feed(t float64, q manifold.Quat, p *mat.VecDense, sigmaR, sigmaP *mat.SymDense) error {
	if err := manifold.CheckDims(p, sigmaR, "p", "sigmaR", manifold.Rows2Cols); err != nil {
		return fmt.Errorf("interpolator: %w", err)
	}
	if err := manifold.CheckDims(p, sigmaP, "p", "sigmaP", manifold.Rows2Cols); err != nil {
		return fmt.Errorf("interpolator: %w", err)
	}
	if len(b.samples) > 0 && t <= b.samples[len(b.samples)-1].T {
		return &estimerr.IngestionOrderError{Got: t, Last: b.samples[len(b.samples)-1].T}
	}
	n := q.Norm()
	if n < 1-quatNormTolerance || n > 1+quatNormTolerance {
		return fmt.Errorf("interpolator: quaternion norm %.9f outside renormalization tolerance", n)
	}
	b.samples = append(b.samples, Sample{T: t, Q: q.Normalized(), P: p, SigmaR: sigmaR, SigmaP: sigmaP})
	return nil
}

// Len returns the number of accepted samples.
func (b *Buffer) Len() int { return len(b.samples) }

// Samples returns the buffer's accepted samples in ingestion order. The
// returned slice aliases the buffer's backing array and must not be
// mutated by the caller.
func (b *Buffer) Samples() []Sample { return b.samples }

// Bounds returns [t_min, t_max] of the buffer. Callers must check
// Len() > 0 first.
func (b *Buffer) Bounds() (tMin, tMax float64) {
	return b.samples[0].T, b.samples[len(b.samples)-1].T
}

// bracket returns the index a such that samples[a].T <= t <= samples[a+1].T,
// via binary search over the strictly-monotone buffer.
func (b *Buffer) bracket(t float64) (int, error) {
	if len(b.samples) < 2 {
		return 0, &estimerr.InsufficientData{Reason: "pose buffer has fewer than two samples"}
	}
	tMin, tMax := b.Bounds()
	if t < tMin || t > tMax {
		return 0, &estimerr.OutOfRange{T: t, TMin: tMin, TMax: tMax}
	}
	lo, hi := 0, len(b.samples)-1
	for hi-lo > 1 {
		mid := (lo + hi) / 2
		if b.samples[mid].T <= t {
			lo = mid
		} else {
			hi = mid
		}
	}
	return lo, nil
}
