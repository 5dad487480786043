package solver

import (
	"fmt"

	"github.com/SamDSchofield/vicon2gt/manifold"
	"github.com/SamDSchofield/vicon2gt/propagator"
	"gonum.org/v1/gonum/mat"
)

// initialize seeds the trajectory directly from the Vicon interpolator
// (orientation and position) with velocity from finite differences, zero
// biases, and a coarse accelerometer-average gravity direction — the
// batch linear pass spec.md §4.3 describes as the starting point for LM,
// grounded on the teacher's batch.go accumulation style but over a
// fixed-form initial guess rather than a least-squares solve, since the
// unknowns here are on a manifold a single linear batch can't retract
// onto directly.
func (g *GraphSolver) initialize() ([]*StateNode, *Calibration, error) {
	n := len(g.refTimes)
	nodes := make([]*StateNode, n)

	for k, t := range g.refTimes {
		pose, err := g.vicon.Interpolate(t)
		if err != nil {
			return nil, nil, err
		}
		if err := manifold.CheckDims(pose.P, pose.R, "pose.P", "pose.R", manifold.Rows2Cols); err != nil {
			return nil, nil, fmt.Errorf("solver: %w", err)
		}
		nodes[k] = &StateNode{
			T:  t,
			R:  mat.DenseCopyOf(pose.R),
			P:  mat.VecDenseCopyOf(pose.P),
			V:  mat.NewVecDense(3, nil),
			Bg: mat.NewVecDense(3, nil),
			Ba: mat.NewVecDense(3, nil),
		}
	}

	for k := 0; k < n; k++ {
		var lo, hi int
		switch {
		case k == 0:
			lo, hi = 0, 1
		case k == n-1:
			lo, hi = n - 2, n - 1
		default:
			lo, hi = k-1, k+1
		}
		dt := nodes[hi].T - nodes[lo].T
		v := mat.NewVecDense(3, nil)
		v.SubVec(nodes[hi].P, nodes[lo].P)
		v.ScaleVec(1/dt, v)
		nodes[k].V = v
	}

	gravity := g.estimateInitialGravity(nodes[0])
	riv := g.initialRIV()
	if err := manifold.CheckDims(gravity, riv, "gravity", "R_IV", manifold.Rows2Cols); err != nil {
		return nil, nil, fmt.Errorf("solver: %w", err)
	}
	calib := &Calibration{
		RIV:   riv,
		Chart: manifold.NewGravityChart(gravity),
		TOff:  0,
	}
	calib.U, calib.V = calib.Chart.ToTangent(gravity)

	excitation := g.rotationExcitation()
	observable := n >= g.cfg.MinObservableNodes && excitation >= g.cfg.MinRotationExcitation

	calib.EstimateRIV = g.cfg.EstimateRIV && observable
	calib.EstimateG = g.cfg.EstimateGravity && observable
	calib.EstimateTOff = g.cfg.EstimateTimeOffset && observable
	calib.EstimatePositionArm = g.cfg.EstimatePositionArm && observable
	if calib.EstimatePositionArm {
		calib.PositionArm = mat.NewVecDense(3, nil)
	}

	return nodes, calib, nil
}

func (g *GraphSolver) initialRIV() *mat.Dense {
	if g.rivPrior != nil {
		return mat.DenseCopyOf(g.rivPrior)
	}
	return manifold.Identity(3)
}

// estimateInitialGravity rotates the mean raw specific force over the
// whole reference span into the world frame via the first node's
// orientation; while stationary or slowly accelerating this points
// opposite gravity, per f_body = -Rᵗg.
func (g *GraphSolver) estimateInitialGravity(node0 *StateNode) *mat.VecDense {
	fallback := mat.NewVecDense(3, []float64{0, 0, -manifold.GravityNorm})
	if g.imu.Len() == 0 {
		return fallback
	}
	mean, err := g.imu.MeanAccel(g.refTimes[0], g.refTimes[len(g.refTimes)-1])
	if err != nil {
		return fallback
	}
	var worldAccel mat.VecDense
	worldAccel.MulVec(node0.R, mean)
	n := mat.Norm(&worldAccel, 2)
	if n < 1e-6 {
		return fallback
	}
	g0 := mat.NewVecDense(3, nil)
	g0.ScaleVec(-manifold.GravityNorm/n, &worldAccel)
	return g0
}

// rotationExcitation integrates ‖ω‖ over the reference span from the
// Vicon stream's own segment-wise angular rate, the observability guard
// input of spec.md §4.3.
func (g *GraphSolver) rotationExcitation() float64 {
	total := 0.0
	for k := 0; k+1 < len(g.refTimes); k++ {
		omega, _, err := g.vicon.Velocity(g.refTimes[k])
		if err != nil {
			continue
		}
		total += mat.Norm(omega, 2) * (g.refTimes[k+1] - g.refTimes[k])
	}
	return total
}

// noiseDensities reads the four continuous-time noise parameters spec.md
// §6 configures out of cfg, in the form Preintegrate expects.
func (g *GraphSolver) noiseDensities() propagator.NoiseDensities {
	return propagator.NoiseDensities{
		GyroNoise:       g.cfg.GyroscopeNoiseDensity,
		AccelNoise:      g.cfg.AccelerometerNoiseDensity,
		GyroRandomWalk:  g.cfg.GyroscopeRandomWalk,
		AccelRandomWalk: g.cfg.AccelerometerRandomWalk,
	}
}

// relinearizeThreshold reads the L∞ bias-drift thresholds spec.md §4.1
// configures out of cfg, in the form PreintMeas.NeedsRelinearization
// expects.
func (g *GraphSolver) relinearizeThreshold() propagator.RelinearizeThreshold {
	return propagator.RelinearizeThreshold{
		GyroLInf:  g.cfg.GyroRelinThreshold,
		AccelLInf: g.cfg.AccelRelinThreshold,
	}
}

// buildFactors preintegrates one IMU factor and one bias factor per
// consecutive node pair, and one Vicon factor per node.
func (g *GraphSolver) buildFactors(nodes []*StateNode) ([]*IMUFactor, []*BiasFactor, []*ViconFactor, error) {
	noise := g.noiseDensities()

	n := len(nodes)
	imuFactors := make([]*IMUFactor, 0, n-1)
	biasFactors := make([]*BiasFactor, 0, n-1)
	viconFactors := make([]*ViconFactor, 0, n)

	for k := 0; k < n-1; k++ {
		meas, err := g.imu.Preintegrate(g.refTimes[k], g.refTimes[k+1], nodes[k].Bg, nodes[k].Ba, noise)
		if err != nil {
			return nil, nil, nil, err
		}
		imuFactors = append(imuFactors, &IMUFactor{K: k, K1: k + 1, Meas: meas})
		biasFactors = append(biasFactors, &BiasFactor{K: k, K1: k + 1, Dt: meas.Dt, Noise: noise})
	}
	for k := 0; k < n; k++ {
		viconFactors = append(viconFactors, &ViconFactor{K: k, RefTime: g.refTimes[k], Interp: g.vicon})
	}
	return imuFactors, biasFactors, viconFactors, nil
}

// relinearizeFactors re-preintegrates any IMU factor whose node-k bias
// estimate has drifted from its linearization point by more than
// relinearizeThreshold, per spec.md §4.1/§9: a first-order Correct is
// only valid near the point it was linearized at, and silently reusing
// it past the configured L∞ threshold would feed the optimizer stale
// Jacobians. Called after an accepted LM step, never mid-trial.
func (g *GraphSolver) relinearizeFactors(nodes []*StateNode, imuFactors []*IMUFactor) (bool, error) {
	th := g.relinearizeThreshold()
	noise := g.noiseDensities()
	changed := false
	for _, f := range imuFactors {
		nodeK := nodes[f.K]
		if !f.Meas.NeedsRelinearization(nodeK.Bg, nodeK.Ba, th) {
			continue
		}
		meas, err := g.imu.Preintegrate(nodes[f.K].T, nodes[f.K1].T, nodeK.Bg, nodeK.Ba, noise)
		if err != nil {
			return changed, err
		}
		f.Meas = meas
		changed = true
	}
	return changed, nil
}
