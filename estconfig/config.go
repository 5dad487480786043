// Package estconfig defines the configuration struct of recognized
// options (spec.md §6) with their documented defaults. Every
// noise/scale/limit parameter used anywhere in propagator, interpolator
// or solver flows through this struct — none of those packages reads an
// environment variable, a flag, or any other process-wide singleton.
package estconfig

// Config holds every option spec.md §6 recognizes. YAML tags let
// cmd/vicon2gt load it from a file; flag overrides are applied on top by
// the adapter, never inside this struct.
type Config struct {
	GyroscopeNoiseDensity     float64 `yaml:"gyroscope_noise_density"`
	AccelerometerNoiseDensity float64 `yaml:"accelerometer_noise_density"`
	GyroscopeRandomWalk       float64 `yaml:"gyroscope_random_walk"`
	AccelerometerRandomWalk   float64 `yaml:"accelerometer_random_walk"`

	// ViconSigmas is (σ_rx, σ_ry, σ_rz, σ_x, σ_y, σ_z), applied when a
	// Vicon sample arrives without its own covariance, or whenever
	// UseManualSigmas overrides the sample's own covariance.
	ViconSigmas     [6]float64 `yaml:"vicon_sigmas"`
	UseManualSigmas bool       `yaml:"use_manual_sigmas"`

	EstimateTimeOffset bool `yaml:"estimate_toff"`
	EstimateRIV        bool `yaml:"estimate_RIV"`
	EstimateGravity    bool `yaml:"estimate_gravity"`

	// EstimatePositionArm controls whether the IMU-to-Vicon position arm
	// t_IV (spec.md §9 Open Question (b)) is included as an unknown.
	// Default false: t_IV is assumed zero and not estimated.
	EstimatePositionArm bool `yaml:"estimate_position_arm"`

	MaxIterations int     `yaml:"max_iterations"`
	RelativeTol   float64 `yaml:"relative_tol"`

	// GyroRelinThreshold/AccelRelinThreshold are the L∞ bias-drift
	// thresholds (rad/s, m/s²) that trigger Propagator re-linearization
	// instead of a first-order bias correction, per spec.md §4.1.
	GyroRelinThreshold  float64 `yaml:"gyro_relin_threshold"`
	AccelRelinThreshold float64 `yaml:"accel_relin_threshold"`

	// SolverWorkers bounds the goroutine pool used to fan out per-factor
	// residual/Jacobian evaluation inside one LM iteration. Zero means
	// "pick GOMAXPROCS at construction time".
	SolverWorkers int `yaml:"solver_workers"`

	// MinObservableNodes/MinRotationExcitation gate the observability
	// guard of spec.md §4.3: below either threshold, calibration unknowns
	// are held fixed and only the trajectory is optimized.
	MinObservableNodes    int     `yaml:"min_observable_nodes"`
	MinRotationExcitation float64 `yaml:"min_rotation_excitation"`
}

// Default returns the configuration populated from spec.md §6's table.
func Default() Config {
	return Config{
		GyroscopeNoiseDensity:     1.6968e-4,
		AccelerometerNoiseDensity: 2.0e-3,
		GyroscopeRandomWalk:       1.9393e-5,
		AccelerometerRandomWalk:   3.0e-3,

		ViconSigmas:     [6]float64{1e-3, 1e-3, 1e-3, 1e-3, 1e-3, 1e-3},
		UseManualSigmas: false,

		EstimateTimeOffset: true,
		EstimateRIV:        true,
		EstimateGravity:    true,

		EstimatePositionArm: false,

		MaxIterations: 100,
		RelativeTol:   1e-6,

		GyroRelinThreshold:  0.03,
		AccelRelinThreshold: 0.1,

		SolverWorkers: 0,

		MinObservableNodes:    5,
		MinRotationExcitation: 0.5,
	}
}
