// Package estimerr defines the error kinds shared by the propagator,
// interpolator and solver packages. Structural problems (bad ordering,
// missing data) surface as one of these immediately; numerical hiccups
// inside the optimizer are recovered locally by escalating damping and
// reach the caller only as NumericalFailure, once that recovery has
// failed repeatedly.
package estimerr

import "fmt"

// IngestionOrderError is returned by a buffer's feed method when the
// supplied timestamp does not strictly follow the previously accepted one.
// The sample is dropped; the buffer is left unchanged.
type IngestionOrderError struct {
	Got, Last float64
}

func (e *IngestionOrderError) Error() string {
	return fmt.Sprintf("estimerr: non-monotonic timestamp: got t=%f, last accepted t=%f", e.Got, e.Last)
}

// OutOfRange is returned when a query timestamp falls outside a buffer's
// [tMin, tMax] extent. No extrapolation is performed.
type OutOfRange struct {
	T, TMin, TMax float64
}

func (e *OutOfRange) Error() string {
	return fmt.Sprintf("estimerr: t=%f outside buffer range [%f, %f]", e.T, e.TMin, e.TMax)
}

// InsufficientData is returned when a requested interval is not straddled
// by at least two buffered samples, or when an input stream is empty.
type InsufficientData struct {
	Reason string
}

func (e *InsufficientData) Error() string {
	return "estimerr: insufficient data: " + e.Reason
}

// NumericalFailure is returned when an intermediate information matrix is
// not SPD or a Cholesky factorization fails. The solver recovers from this
// locally by escalating LM damping; it is only surfaced after five
// consecutive escalations fail to produce a usable step.
type NumericalFailure struct {
	Reason string
}

func (e *NumericalFailure) Error() string {
	return "estimerr: numerical failure: " + e.Reason
}

// ConvergenceFailure indicates the optimizer stopped without satisfying
// the relative cost tolerance: it hit its iteration cap, no damped step
// lowered the cost, or the caller's should-stop callback ended the run.
// It is non-fatal: the best state found is still returned, flagged
// accordingly.
type ConvergenceFailure struct {
	Iterations int
}

func (e *ConvergenceFailure) Error() string {
	return fmt.Sprintf("estimerr: convergence not reached after %d iterations", e.Iterations)
}
