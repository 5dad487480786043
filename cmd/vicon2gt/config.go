package main

import (
	"fmt"
	"os"

	"github.com/SamDSchofield/vicon2gt/estconfig"
	"gopkg.in/yaml.v3"
)

// RunConfig is the on-disk shape this command loads: file-system inputs
// and logging options alongside the estimator's own recognized options
// (spec.md §6). It exists only at this boundary — estconfig.Config never
// grows fields for paths or logging.
type RunConfig struct {
	IMUPath            string `yaml:"imu_path"`
	PosesPath          string `yaml:"poses_path"`
	ReferenceTimesPath string `yaml:"reference_times_path"`

	StatesOutPath string `yaml:"states_out_path"`
	InfoOutPath   string `yaml:"info_out_path"`

	LogLevel string `yaml:"log_level"`
	LogFile  string `yaml:"log_file"`

	Estimator estconfig.Config `yaml:"estimator"`
}

// defaultRunConfig seeds paths/logging with sane values and the
// estimator block with spec.md §6's documented defaults, the same way the
// teacher's config loaders pair a typed struct with a Default/zero value
// before YAML overrides are unmarshaled on top.
func defaultRunConfig() RunConfig {
	return RunConfig{
		StatesOutPath: "states.csv",
		InfoOutPath:   "info.txt",
		LogLevel:      "info",
		Estimator:     estconfig.Default(),
	}
}

// LoadRunConfig reads path and unmarshals it over defaultRunConfig(), so
// a YAML file only needs to specify the options it wants to override.
func LoadRunConfig(path string) (RunConfig, error) {
	cfg := defaultRunConfig()
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, nil
}

func parseLogLevel(s string) LogLevel {
	switch s {
	case "debug":
		return LevelDebug
	case "warn":
		return LevelWarn
	case "error":
		return LevelError
	case "fatal":
		return LevelFatal
	default:
		return LevelInfo
	}
}
