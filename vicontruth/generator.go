package vicontruth

import (
	"github.com/SamDSchofield/vicon2gt/estconfig"
	"github.com/SamDSchofield/vicon2gt/interpolator"
	"github.com/SamDSchofield/vicon2gt/manifold"
	"github.com/SamDSchofield/vicon2gt/propagator"
	"gonum.org/v1/gonum/mat"
)

// Config bundles the sampling parameters a Generator needs that aren't
// intrinsic to the Trajectory itself.
type Config struct {
	Duration  float64 // s
	ImuRate   float64 // Hz
	ViconRate float64 // Hz
	Gravity   *mat.VecDense

	// TimeOffset is added to every Vicon sample's timestamp, simulating a
	// Vicon clock that reads TimeOffset seconds ahead of the IMU clock —
	// exactly the t_off the solver's ViconFactor is built to recover.
	TimeOffset float64

	// GyroBiasTrue/AccelBiasTrue are constant true sensor biases added to
	// every measurement whenever they are non-nil, before any AWGN that
	// Noisy adds.
	GyroBiasTrue, AccelBiasTrue *mat.VecDense

	// RIVTrue/PositionArmTrue are the true calibration the Vicon stream
	// is generated with: the Vicon marker frame is RIVTrue further
	// rotated from the trajectory's (IMU) body frame, offset by
	// PositionArmTrue expressed in that body frame. nil means identity/
	// zero, matching solver.Calibration's own defaults.
	RIVTrue         *mat.Dense
	PositionArmTrue *mat.VecDense

	Noisy bool
	Noise estconfig.Config
	Seed  int64
}

// Generate samples traj at Config's IMU and Vicon rates and feeds the
// resulting measurements into fresh buffers, ready for a GraphSolver.
func Generate(traj Trajectory, cfg Config) (*propagator.Buffer, *interpolator.Buffer) {
	imuBuf := propagator.NewBuffer()
	viconBuf := interpolator.NewBuffer()

	var gyroNoise, accelNoise *awgn
	if cfg.Noisy {
		gyroNoise = newAWGN([3]float64{cfg.Noise.GyroscopeNoiseDensity, cfg.Noise.GyroscopeNoiseDensity, cfg.Noise.GyroscopeNoiseDensity}, cfg.Seed)
		accelNoise = newAWGN([3]float64{cfg.Noise.AccelerometerNoiseDensity, cfg.Noise.AccelerometerNoiseDensity, cfg.Noise.AccelerometerNoiseDensity}, cfg.Seed+1)
	}

	for i := 0; float64(i)/cfg.ImuRate <= cfg.Duration+1e-9; i++ {
		t := float64(i) / cfg.ImuRate
		R, _ := traj.PoseAt(t)
		omega := traj.BodyRateAt(t)
		aWorld := traj.AccelAt(t)

		specificForceWorld := mat.NewVecDense(3, nil)
		specificForceWorld.SubVec(aWorld, cfg.Gravity)
		var specificForceBody mat.VecDense
		var RT mat.Dense
		RT.CloneFrom(R.T())
		specificForceBody.MulVec(&RT, specificForceWorld)

		omegaMeas := mat.VecDenseCopyOf(omega)
		accelMeas := mat.VecDenseCopyOf(&specificForceBody)
		if cfg.GyroBiasTrue != nil {
			omegaMeas.AddVec(omegaMeas, cfg.GyroBiasTrue)
		}
		if cfg.AccelBiasTrue != nil {
			accelMeas.AddVec(accelMeas, cfg.AccelBiasTrue)
		}
		if cfg.Noisy {
			omegaMeas.AddVec(omegaMeas, gyroNoise.sample())
			accelMeas.AddVec(accelMeas, accelNoise.sample())
		}
		_ = imuBuf.Feed(t, omegaMeas, accelMeas)
	}

	sigmaR := manualSigma(cfg.Noise.ViconSigmas[0:3])
	sigmaP := manualSigma(cfg.Noise.ViconSigmas[3:6])
	for i := 0; float64(i)/cfg.ViconRate <= cfg.Duration+1e-9; i++ {
		t := float64(i) / cfg.ViconRate
		R, p := traj.PoseAt(t)
		viconR := R
		if cfg.RIVTrue != nil {
			viconR = mat.NewDense(3, 3, nil)
			viconR.Mul(R, cfg.RIVTrue)
		}
		viconP := mat.VecDenseCopyOf(p)
		if cfg.PositionArmTrue != nil {
			var armWorld mat.VecDense
			armWorld.MulVec(R, cfg.PositionArmTrue)
			viconP.AddVec(viconP, &armWorld)
		}
		q := manifold.QuatFromRotation(viconR)
		_ = viconBuf.Feed(t+cfg.TimeOffset, q, viconP, sigmaR, sigmaP)
	}

	return imuBuf, viconBuf
}

func manualSigma(s []float64) *mat.SymDense {
	cov := mat.NewSymDense(3, nil)
	for i, v := range s {
		cov.SetSym(i, i, v*v)
	}
	return cov
}
