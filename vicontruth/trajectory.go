// Package vicontruth generates synthetic IMU/Vicon streams from a known
// ground-truth trajectory, for the scenario tests of spec.md §8. It is
// this repository's analogue of the teacher's truth.go/montecarlo.go:
// where those built ground truth around a discrete-time Kalman filter's
// Estimate interface, this package builds it around continuous-time
// trajectories that get resampled at whatever rate a Propagator or
// Interpolator buffer needs.
package vicontruth

import (
	"math"

	"github.com/SamDSchofield/vicon2gt/manifold"
	"gonum.org/v1/gonum/mat"
)

// Trajectory is a closed-form ground-truth motion: orientation, position,
// velocity and world-frame acceleration as functions of time, from which a
// Generator derives the IMU and Vicon measurements a real sensor pair
// would have produced.
type Trajectory interface {
	PoseAt(t float64) (R *mat.Dense, p *mat.VecDense)
	VelocityAt(t float64) *mat.VecDense
	AccelAt(t float64) *mat.VecDense
	BodyRateAt(t float64) *mat.VecDense
}

// Stationary is motionless at the origin with identity orientation —
// scenario S1.
type Stationary struct{}

func (Stationary) PoseAt(t float64) (*mat.Dense, *mat.VecDense) {
	return manifold.Identity(3), mat.NewVecDense(3, nil)
}
func (Stationary) VelocityAt(t float64) *mat.VecDense { return mat.NewVecDense(3, nil) }
func (Stationary) AccelAt(t float64) *mat.VecDense    { return mat.NewVecDense(3, nil) }
func (Stationary) BodyRateAt(t float64) *mat.VecDense { return mat.NewVecDense(3, nil) }

// ConstantAngularRate spins about a fixed body axis at a constant rate
// while staying at the origin — scenario S2. Because the axis is fixed,
// the body-frame angular rate equals the world-frame one at every t.
type ConstantAngularRate struct {
	Axis *mat.VecDense // unit vector
	Rate float64       // rad/s
}

func (c ConstantAngularRate) PoseAt(t float64) (*mat.Dense, *mat.VecDense) {
	phi := mat.NewVecDense(3, nil)
	phi.ScaleVec(c.Rate*t, c.Axis)
	return manifold.Exp(phi), mat.NewVecDense(3, nil)
}
func (ConstantAngularRate) VelocityAt(t float64) *mat.VecDense { return mat.NewVecDense(3, nil) }
func (ConstantAngularRate) AccelAt(t float64) *mat.VecDense    { return mat.NewVecDense(3, nil) }
func (c ConstantAngularRate) BodyRateAt(t float64) *mat.VecDense {
	out := mat.NewVecDense(3, nil)
	out.ScaleVec(c.Rate, c.Axis)
	return out
}

// SinusoidalAccel holds a fixed orientation and oscillates along a fixed
// world-frame axis — scenario S3.
type SinusoidalAccel struct {
	Axis      *mat.VecDense // unit vector
	Amplitude float64       // m
	Freq      float64       // rad/s
}

func (s SinusoidalAccel) PoseAt(t float64) (*mat.Dense, *mat.VecDense) {
	p := mat.NewVecDense(3, nil)
	p.ScaleVec(s.Amplitude*math.Sin(s.Freq*t), s.Axis)
	return manifold.Identity(3), p
}
func (s SinusoidalAccel) VelocityAt(t float64) *mat.VecDense {
	v := mat.NewVecDense(3, nil)
	v.ScaleVec(s.Amplitude*s.Freq*math.Cos(s.Freq*t), s.Axis)
	return v
}
func (s SinusoidalAccel) AccelAt(t float64) *mat.VecDense {
	a := mat.NewVecDense(3, nil)
	a.ScaleVec(-s.Amplitude*s.Freq*s.Freq*math.Sin(s.Freq*t), s.Axis)
	return a
}
func (SinusoidalAccel) BodyRateAt(t float64) *mat.VecDense { return mat.NewVecDense(3, nil) }
