// Command vicon2gt is the thin adapter spec.md §1 leaves out of the
// estimator's scope: it loads configuration, reads the three input
// streams through a Source, drives propagator.Buffer/interpolator.Buffer
// ingestion, runs the graph solver, and writes the two output artifacts
// spec.md §6 fixes. None of the estimation math lives here.
package main

import (
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/SamDSchofield/vicon2gt/estimerr"
	"github.com/SamDSchofield/vicon2gt/export"
	"github.com/SamDSchofield/vicon2gt/interpolator"
	"github.com/SamDSchofield/vicon2gt/propagator"
	"github.com/SamDSchofield/vicon2gt/solver"
)

// Exit codes per spec.md §6.
const (
	exitSuccess           = 0
	exitInsufficientData  = 1
	exitOutOfRange        = 2
	exitOptimizerDiverged = 3
	exitConfigError       = 4
)

func main() {
	os.Exit(run())
}

func run() int {
	configPath := flag.String("config", "", "path to a YAML run configuration")
	logLevel := flag.String("log-level", "", "override the configured log level (debug|info|warn|error|fatal)")
	logFile := flag.String("log-file", "", "override the configured log file path")
	flag.Parse()

	if *configPath == "" {
		fmt.Fprintln(os.Stderr, "vicon2gt: -config is required")
		return exitConfigError
	}

	cfg, err := LoadRunConfig(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "vicon2gt: %v\n", err)
		return exitConfigError
	}
	if *logLevel != "" {
		cfg.LogLevel = *logLevel
	}
	if *logFile != "" {
		cfg.LogFile = *logFile
	}
	log := InitLogger(parseLogLevel(cfg.LogLevel), cfg.LogFile)
	defer log.Close()

	if cfg.IMUPath == "" || cfg.PosesPath == "" || cfg.ReferenceTimesPath == "" {
		log.Error("config must set imu_path, poses_path and reference_times_path")
		return exitConfigError
	}

	var src Source = newCSVSource(cfg.IMUPath, cfg.PosesPath, cfg.ReferenceTimesPath, cfg.Estimator)

	imuSamples, err := src.ReadIMU()
	if err != nil {
		log.Error("reading IMU stream: %v", err)
		return exitInsufficientData
	}
	imuBuf := propagator.NewBuffer()
	for _, s := range imuSamples {
		if err := imuBuf.Feed(s.T, s.Omega, s.Accel); err != nil {
			log.Warn("dropping IMU sample at t=%.9f: %v", s.T, err)
		}
	}

	poseSamples, err := src.ReadPoses()
	if err != nil {
		log.Error("reading pose stream: %v", err)
		return exitInsufficientData
	}
	viconBuf := interpolator.NewBuffer()
	for _, s := range poseSamples {
		if err := viconBuf.Feed(s.T, s.Q, s.P, s.SigmaR, s.SigmaP); err != nil {
			log.Warn("dropping pose sample at t=%.9f: %v", s.T, err)
		}
	}

	refTimes, err := src.ReadReferenceTimes()
	if err != nil {
		log.Error("reading reference timestamps: %v", err)
		return exitInsufficientData
	}
	if imuBuf.Len() == 0 || viconBuf.Len() == 0 || len(refTimes) == 0 {
		log.Error("empty stream: %d IMU samples, %d pose samples, %d reference times", imuBuf.Len(), viconBuf.Len(), len(refTimes))
		return exitInsufficientData
	}
	log.Info("loaded %d IMU samples, %d pose samples, %d reference timestamps", imuBuf.Len(), viconBuf.Len(), len(refTimes))

	g := solver.New(cfg.Estimator, imuBuf, viconBuf)
	if err := g.SetReferenceTimes(refTimes); err != nil {
		return exitCodeForSetupError(log, err)
	}

	result, err := g.BuildAndSolve()
	if err != nil {
		var convErr *estimerr.ConvergenceFailure
		if errors.As(err, &convErr) {
			log.Warn("solver did not converge within %d iterations; writing best state found", convErr.Iterations)
		} else {
			return exitCodeForSetupError(log, err)
		}
	}
	if result == nil {
		log.Error("solver returned no result")
		return exitOptimizerDiverged
	}

	log.Info("solved %d nodes in %d iterations, final cost %.9f, calibration observable=%t",
		len(result.Nodes), result.Iterations, result.Cost, result.CalibrationObservable)

	statesWriter, err := export.NewStatesWriter(cfg.StatesOutPath)
	if err != nil {
		log.Error("opening states output %s: %v", cfg.StatesOutPath, err)
		return exitConfigError
	}
	if err := statesWriter.WriteAll(result.Nodes); err != nil {
		log.Error("writing states output: %v", err)
		return exitConfigError
	}
	if err := statesWriter.Close(); err != nil {
		log.Error("closing states output: %v", err)
		return exitConfigError
	}

	if err := export.WriteInfo(cfg.InfoOutPath, result); err != nil {
		log.Error("writing info output %s: %v", cfg.InfoOutPath, err)
		return exitConfigError
	}

	return exitSuccess
}

// exitCodeForSetupError maps the structural error kinds estimerr defines
// to spec.md §6's exit codes; anything else is treated as a diverged
// optimizer, since it can only originate from the LM loop itself.
func exitCodeForSetupError(log *Logger, err error) int {
	var insufficient *estimerr.InsufficientData
	var outOfRange *estimerr.OutOfRange
	var ordering *estimerr.IngestionOrderError
	switch {
	case errors.As(err, &insufficient):
		log.Error("insufficient data: %v", err)
		return exitInsufficientData
	case errors.As(err, &outOfRange):
		log.Error("out of range: %v", err)
		return exitOutOfRange
	case errors.As(err, &ordering):
		log.Error("reference timestamps not strictly increasing: %v", err)
		return exitInsufficientData
	default:
		log.Error("optimizer failed: %v", err)
		return exitOptimizerDiverged
	}
}
