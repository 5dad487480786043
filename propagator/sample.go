package propagator

import (
	"fmt"

	"github.com/SamDSchofield/vicon2gt/estimerr"
	"github.com/SamDSchofield/vicon2gt/manifold"
	"gonum.org/v1/gonum/mat"
)

// Sample is one raw IMU reading: angular velocity ω (rad/s) and specific
// force a (m/s²) at time t (seconds), immutable once ingested.
type Sample struct {
	T     float64
	Omega *mat.VecDense
	Accel *mat.VecDense
}

func (s Sample) String() string {
	return fmt.Sprintf("IMU{t=%.9f ω=%v a=%v}", s.T, mat.Formatted(s.Omega.T()), mat.Formatted(s.Accel.T()))
}

func lerpVec(a, b *mat.VecDense, lambda float64) *mat.VecDense {
	out := mat.NewVecDense(a.Len(), nil)
	out.AddScaledVec(out, 1-lambda, a)
	out.AddScaledVec(out, lambda, b)
	return out
}

// Buffer owns an ordered, strictly-monotone set of IMU samples. It is the
// exclusive writer of its slice; the solver only ever borrows read-only
// slices of it via Preintegrate.
type Buffer struct {
	samples []Sample
}

// NewBuffer returns an empty IMU buffer.
func NewBuffer() *Buffer {
	return &Buffer{}
}

// Feed appends a sample, rejecting (and dropping) it if t does not
// strictly follow the previously accepted timestamp.
func (b *Buffer) Feed(t float64, omega, accel *mat.VecDense) error {
	if err := manifold.CheckDims(omega, accel, "omega", "accel", manifold.RowsAndCols); err != nil {
		return fmt.Errorf("propagator: %w", err)
	}
	if len(b.samples) > 0 && t <= b.samples[len(b.samples)-1].T {
		return &estimerr.IngestionOrderError{Got: t, Last: b.samples[len(b.samples)-1].T}
	}
	b.samples = append(b.samples, Sample{T: t, Omega: omega, Accel: accel})
	return nil
}

// Len returns the number of accepted samples.
func (b *Buffer) Len() int { return len(b.samples) }

// Samples returns the buffer's accepted samples in ingestion order. The
// returned slice aliases the buffer's backing array and must not be
// mutated by the caller.
func (b *Buffer) Samples() []Sample { return b.samples }

// Bounds returns the timestamp of the first and last accepted sample.
// Callers must check Len() > 0 first.
func (b *Buffer) Bounds() (tMin, tMax float64) {
	return b.samples[0].T, b.samples[len(b.samples)-1].T
}

// sliceWithBoundaries returns the samples covering [t1, t2] inclusive,
// synthesizing linearly-interpolated boundary samples at exactly t1 and t2
// when those timestamps fall strictly between two buffered samples — the
// interpolation is of the raw ω/a, never of bias-corrected values, per
// the propagator's numeric contract.
func (b *Buffer) sliceWithBoundaries(t1, t2 float64) ([]Sample, error) {
	if len(b.samples) < 2 {
		return nil, &estimerr.InsufficientData{Reason: "IMU buffer has fewer than two samples"}
	}
	tMin, tMax := b.Bounds()
	if t1 < tMin || t2 > tMax {
		return nil, &estimerr.InsufficientData{Reason: fmt.Sprintf("interval [%f, %f] not straddled by buffer [%f, %f]", t1, t2, tMin, tMax)}
	}

	var out []Sample
	n := len(b.samples)
	for i := 0; i < n; i++ {
		s := b.samples[i]
		if s.T < t1 {
			continue
		}
		if s.T > t2 {
			break
		}
		out = append(out, s)
	}

	if len(out) == 0 || out[0].T != t1 {
		idx := upperBound(b.samples, t1)
		boundary := interpAt(b.samples[idx-1], b.samples[idx], t1)
		out = append([]Sample{boundary}, out...)
	}
	if out[len(out)-1].T != t2 {
		idx := upperBound(b.samples, t2)
		boundary := interpAt(b.samples[idx-1], b.samples[idx], t2)
		out = append(out, boundary)
	}

	if len(out) < 2 {
		return nil, &estimerr.InsufficientData{Reason: "fewer than two samples fall within the requested interval"}
	}
	return out, nil
}

// MeanAccel returns the sample mean of the raw specific-force readings in
// [t1, t2], used by the solver only to seed its initial gravity-direction
// guess before the first LM iteration.
func (b *Buffer) MeanAccel(t1, t2 float64) (*mat.VecDense, error) {
	samples, err := b.sliceWithBoundaries(t1, t2)
	if err != nil {
		return nil, err
	}
	sum := mat.NewVecDense(3, nil)
	for _, s := range samples {
		sum.AddVec(sum, s.Accel)
	}
	sum.ScaleVec(1/float64(len(samples)), sum)
	return sum, nil
}

// upperBound returns the index of the first sample whose T is >= t.
func upperBound(samples []Sample, t float64) int {
	lo, hi := 0, len(samples)
	for lo < hi {
		mid := (lo + hi) / 2
		if samples[mid].T < t {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}

func interpAt(a, b Sample, t float64) Sample {
	if a.T == t {
		return a
	}
	if b.T == t {
		return b
	}
	lambda := (t - a.T) / (b.T - a.T)
	return Sample{T: t, Omega: lerpVec(a.Omega, b.Omega, lambda), Accel: lerpVec(a.Accel, b.Accel, lambda)}
}
