package export

import (
	"fmt"
	"math"
	"os"
	"time"

	"github.com/SamDSchofield/vicon2gt/manifold"
	"github.com/SamDSchofield/vicon2gt/solver"
)

// WriteInfo writes the human-readable calibration summary spec.md §6
// asks for: the solved calibration, its marginal standard deviations
// where observable, and the optimizer's own bookkeeping.
func WriteInfo(path string, result *solver.Result) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	fmt.Fprintf(f, "# Creation date (UTC): %s\n\n", time.Now().UTC())
	fmt.Fprintf(f, "IMU samples: %d\n", result.InputIMUSamples)
	fmt.Fprintf(f, "Vicon pose samples: %d\n", result.InputPoseSamples)
	fmt.Fprintf(f, "reference times: %d\n", result.InputReferenceTimes)
	fmt.Fprintf(f, "iterations: %d\n", result.Iterations)
	fmt.Fprintf(f, "converged: %t\n", result.Converged)
	fmt.Fprintf(f, "final cost: %.9f\n", result.Cost)
	fmt.Fprintf(f, "state nodes: %d\n", len(result.Nodes))
	fmt.Fprintf(f, "calibration observable: %t\n\n", result.CalibrationObservable)

	calib := result.Calib
	q := manifold.QuatFromRotation(calib.RIV)
	fmt.Fprintf(f, "R_IV (quaternion xyzw): %.6f %.6f %.6f %.6f\n", q.X, q.Y, q.Z, q.W)
	fmt.Fprintf(f, "R_IV (rotation matrix):\n")
	for i := 0; i < 3; i++ {
		fmt.Fprintf(f, "  %.6f %.6f %.6f\n", calib.RIV.At(i, 0), calib.RIV.At(i, 1), calib.RIV.At(i, 2))
	}
	g := calib.Gravity()
	fmt.Fprintf(f, "g_V: %.6f %.6f %.6f\n", g.AtVec(0), g.AtVec(1), g.AtVec(2))
	fmt.Fprintf(f, "t_off: %.9f s\n", calib.TOff)
	if calib.PositionArm != nil {
		arm := calib.Arm()
		fmt.Fprintf(f, "t_IV: %.6f %.6f %.6f\n", arm.AtVec(0), arm.AtVec(1), arm.AtVec(2))
	}

	_, calibCov, covErr := result.Covariances()
	if covErr != nil {
		fmt.Fprintf(f, "\nmarginal covariance unavailable: %v\n", covErr)
		return nil
	}
	if calibCov == nil {
		fmt.Fprintf(f, "\ncalibration held fixed; no marginal covariance to report\n")
		return nil
	}
	fmt.Fprintf(f, "\ncalibration marginal std-devs (fixed-block order R_IV, g, t_off, t_IV):\n")
	n, _ := calibCov.Dims()
	for i := 0; i < n; i++ {
		fmt.Fprintf(f, "  [%d] %.9f\n", i, math.Sqrt(calibCov.At(i, i)))
	}
	return nil
}
