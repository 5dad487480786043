package solver

import (
	"fmt"
	"math"

	"github.com/SamDSchofield/vicon2gt/estconfig"
	"github.com/SamDSchofield/vicon2gt/estimerr"
	"github.com/SamDSchofield/vicon2gt/interpolator"
	"github.com/SamDSchofield/vicon2gt/propagator"
	"gonum.org/v1/gonum/mat"
)

// GraphSolver owns one batch MAP problem: a chain of state nodes at the
// caller's reference timestamps, tied together by IMU and bias factors
// and tied to the Vicon stream by per-node Vicon factors, plus the shared
// calibration unknowns. It holds no state across calls to BuildAndSolve
// beyond what SetReferenceTimes/SetShouldStop configure.
type GraphSolver struct {
	cfg   estconfig.Config
	imu   *propagator.Buffer
	vicon *interpolator.Buffer

	refTimes   []float64
	shouldStop func() bool
	rivPrior   *mat.Dense
}

// New builds a GraphSolver over the given, already-fed IMU and Vicon
// buffers.
func New(cfg estconfig.Config, imu *propagator.Buffer, vicon *interpolator.Buffer) *GraphSolver {
	return &GraphSolver{cfg: cfg, imu: imu, vicon: vicon}
}

// SetReferenceTimes fixes the state-node timestamps. They must be
// strictly increasing and must lie within both buffers' extents.
func (g *GraphSolver) SetReferenceTimes(times []float64) error {
	if len(times) < 2 {
		return &estimerr.InsufficientData{Reason: "need at least two reference timestamps"}
	}
	for i := 1; i < len(times); i++ {
		if times[i] <= times[i-1] {
			return &estimerr.IngestionOrderError{Got: times[i], Last: times[i-1]}
		}
	}
	var extents [][2]float64
	if g.imu.Len() > 0 {
		tMin, tMax := g.imu.Bounds()
		extents = append(extents, [2]float64{tMin, tMax})
	}
	if g.vicon.Len() > 0 {
		tMin, tMax := g.vicon.Bounds()
		extents = append(extents, [2]float64{tMin, tMax})
	}
	last := times[len(times)-1]
	for _, e := range extents {
		if times[0] < e[0] {
			return &estimerr.OutOfRange{T: times[0], TMin: e[0], TMax: e[1]}
		}
		if last > e[1] {
			return &estimerr.OutOfRange{T: last, TMin: e[0], TMax: e[1]}
		}
	}
	g.refTimes = times
	return nil
}

// SetShouldStop installs a cooperative-cancellation callback, polled once
// per LM iteration.
func (g *GraphSolver) SetShouldStop(fn func() bool) { g.shouldStop = fn }

// SetRIVPrior overrides the default identity prior for R_IV.
func (g *GraphSolver) SetRIVPrior(r *mat.Dense) { g.rivPrior = r }

// lambdaInit/lambdaUp/lambdaDown/maxInnerTrials are the Levenberg-Marquardt
// damping schedule of spec.md §4.3.
const (
	lambdaInit     = 1e-4
	lambdaUp       = 10.0
	lambdaDown     = 10.0
	maxInnerTrials = 12

	// maxConsecutiveNumericalFailures is the number of consecutive outer
	// iterations in which every inner trial's normal-equations solve
	// failed (non-SPD information matrix or a singular Cholesky factor)
	// that BuildAndSolve tolerates before surfacing *estimerr.NumericalFailure
	// instead of silently treating the run as merely non-convergent.
	maxConsecutiveNumericalFailures = 5
)

// BuildAndSolve initializes the trajectory and calibration, builds the
// factor graph, and runs Levenberg-Marquardt until the relative cost
// change falls below tolerance, the iteration cap is reached, no damped
// step lowers the cost, or the should-stop callback fires. Every stop
// other than convergence returns a *estimerr.ConvergenceFailure alongside
// a still-valid Result holding the best state found — the caller decides
// whether that is acceptable.
func (g *GraphSolver) BuildAndSolve() (*Result, error) {
	if len(g.refTimes) < 2 {
		return nil, &estimerr.InsufficientData{Reason: "no reference timestamps set"}
	}

	nodes, calib, err := g.initialize()
	if err != nil {
		return nil, err
	}
	n := len(nodes)

	imuFactors, biasFactors, viconFactors, err := g.buildFactors(nodes)
	if err != nil {
		return nil, err
	}

	workers := g.cfg.SolverWorkers
	if workers <= 0 {
		workers = defaultWorkers()
	}

	lay := newLayout(n, calib.TangentDim())
	cost, info := g.evaluateGraph(nodes, calib, imuFactors, biasFactors, viconFactors, lay, workers)

	lambda := lambdaInit
	converged := false
	consecutiveNumericalFailures := 0
	iter := 0
	for ; iter < g.cfg.MaxIterations; iter++ {
		if g.shouldStop != nil && g.shouldStop() {
			break
		}

		accepted := false
		solveFailures := 0
		var nextNodes []*StateNode
		var nextCalib *Calibration
		var nextCost float64
		var nextInfo *graphInfo

		for trial := 0; trial < maxInnerTrials; trial++ {
			delta, err := solveNormalEquations(info.JtJ, info.Jtr, lambda)
			if err != nil {
				solveFailures++
				lambda *= lambdaUp
				continue
			}
			trialNodes, trialCalib := retractAll(nodes, calib, delta, lay)
			trialCost, trialInfo := g.evaluateGraph(trialNodes, trialCalib, imuFactors, biasFactors, viconFactors, lay, workers)
			if trialCost < cost {
				nextNodes, nextCalib, nextCost, nextInfo = trialNodes, trialCalib, trialCost, trialInfo
				lambda /= lambdaDown
				accepted = true
				break
			}
			lambda *= lambdaUp
		}

		if !accepted {
			if solveFailures == maxInnerTrials {
				consecutiveNumericalFailures++
				if consecutiveNumericalFailures >= maxConsecutiveNumericalFailures {
					result := g.buildResult(nodes, calib, cost, iter, converged, info)
					return result, &estimerr.NumericalFailure{Reason: fmt.Sprintf(
						"information matrix not SPD through %d consecutive damping escalations", consecutiveNumericalFailures)}
				}
				continue
			}
			break
		}
		consecutiveNumericalFailures = 0

		relChange := math.Abs(cost-nextCost) / math.Max(cost, 1e-12)
		nodes, calib, cost, info = nextNodes, nextCalib, nextCost, nextInfo

		relinearized, err := g.relinearizeFactors(nodes, imuFactors)
		if err != nil {
			return g.buildResult(nodes, calib, cost, iter, converged, info), err
		}
		if relinearized {
			cost, info = g.evaluateGraph(nodes, calib, imuFactors, biasFactors, viconFactors, lay, workers)
		}

		if relChange < g.cfg.RelativeTol {
			converged = true
			iter++
			break
		}
	}

	result := g.buildResult(nodes, calib, cost, iter, converged, info)
	if !converged {
		return result, &estimerr.ConvergenceFailure{Iterations: iter}
	}
	return result, nil
}

func (g *GraphSolver) buildResult(nodes []*StateNode, calib *Calibration, cost float64, iter int, converged bool, info *graphInfo) *Result {
	return &Result{
		Nodes:                 nodes,
		Calib:                 calib,
		Cost:                  cost,
		Iterations:            iter,
		Converged:             converged,
		CalibrationObservable: calib.EstimateRIV || calib.EstimateG || calib.EstimateTOff || calib.EstimatePositionArm,
		InputIMUSamples:       g.imu.Len(),
		InputPoseSamples:      g.vicon.Len(),
		InputReferenceTimes:   len(g.refTimes),
		finalInfo:             info.JtJ,
	}
}

func defaultWorkers() int {
	n := defaultGOMAXPROCS()
	if n < 1 {
		return 1
	}
	return n
}
