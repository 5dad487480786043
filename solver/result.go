package solver

import (
	"sync"

	"gonum.org/v1/gonum/mat"
)

// Result is the output of BuildAndSolve: the MAP trajectory, the
// calibration estimate (or the fixed prior, if the observability guard
// held it), and enough bookkeeping to report how the optimization went.
// Marginal covariances are computed lazily on first request and cached,
// mirroring the teacher's lazy/cached Covariance() on its information
// filter.
type Result struct {
	Nodes      []*StateNode
	Calib      *Calibration
	Cost       float64
	Iterations int
	Converged  bool

	// CalibrationObservable is false when the guard of spec.md §4.3 held
	// calibration fixed for lack of excitation or data.
	CalibrationObservable bool

	// InputIMUSamples/InputPoseSamples/InputReferenceTimes are the
	// per-stream counts spec.md §6's info artifact reports alongside the
	// solved state, carried through from the buffers BuildAndSolve ran
	// against rather than re-derived by a caller after the fact.
	InputIMUSamples     int
	InputPoseSamples    int
	InputReferenceTimes int

	// finalInfo is the undamped JᵗJ at the accepted solution, kept around
	// only so Covariances() can invert it on demand.
	finalInfo *mat.Dense

	covOnce  sync.Once
	nodeCov  []*mat.SymDense
	calibCov *mat.SymDense
	covErr   error
}
