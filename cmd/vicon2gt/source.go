package main

import (
	"github.com/SamDSchofield/vicon2gt/interpolator"
	"github.com/SamDSchofield/vicon2gt/propagator"
)

// Source is the thin adapter contract spec.md §1 calls out as an external
// collaborator: data ingestion from whatever container the IMU, pose and
// reference-time streams arrive in is out of the estimator's scope. A
// Source's only job is to hand this command the raw samples it reads, in
// timestamp order; feeding them into a propagator.Buffer or
// interpolator.Buffer is this command's job, not the Source's.
type Source interface {
	ReadIMU() ([]propagator.Sample, error)
	ReadPoses() ([]interpolator.Sample, error)
	ReadReferenceTimes() ([]float64, error)
}
