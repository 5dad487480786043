package main

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/SamDSchofield/vicon2gt/estconfig"
	"github.com/SamDSchofield/vicon2gt/interpolator"
	"github.com/SamDSchofield/vicon2gt/manifold"
	"github.com/SamDSchofield/vicon2gt/propagator"
	"gonum.org/v1/gonum/mat"
)

// csvSource is the concrete Source this command ships: every stream is a
// plain CSV file, one sample per row, a `#`-prefixed comment line
// tolerated anywhere (the same convention export writes its own files
// in). It is the adapter the spec leaves as an external collaborator;
// nothing in propagator, interpolator or solver knows this type exists.
type csvSource struct {
	imuPath, posesPath, refTimesPath string
	cfg                              estconfig.Config
}

// newCSVSource builds a Source reading from the three configured paths.
// cfg supplies vicon_sigmas/use_manual_sigmas for poses files that omit
// covariance columns.
func newCSVSource(imuPath, posesPath, refTimesPath string, cfg estconfig.Config) *csvSource {
	return &csvSource{imuPath: imuPath, posesPath: posesPath, refTimesPath: refTimesPath, cfg: cfg}
}

func openCSVReader(path string) (*csv.Reader, *os.File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	r := csv.NewReader(f)
	r.Comment = '#'
	r.TrimLeadingSpace = true
	return r, f, nil
}

func parseFloats(record []string) ([]float64, error) {
	out := make([]float64, len(record))
	for i, s := range record {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("field %d %q: %w", i, s, err)
		}
		out[i] = v
	}
	return out, nil
}

// ReadIMU expects rows `t,wx,wy,wz,ax,ay,az`.
func (s *csvSource) ReadIMU() ([]propagator.Sample, error) {
	r, f, err := openCSVReader(s.imuPath)
	if err != nil {
		return nil, fmt.Errorf("opening IMU file %s: %w", s.imuPath, err)
	}
	defer f.Close()

	var samples []propagator.Sample
	for {
		record, err := r.Read()
		if err == io.EOF {
			return samples, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading IMU file %s: %w", s.imuPath, err)
		}
		if len(record) != 7 {
			return nil, fmt.Errorf("IMU row has %d fields, want 7: %v", len(record), record)
		}
		vals, err := parseFloats(record)
		if err != nil {
			return nil, fmt.Errorf("IMU file %s: %w", s.imuPath, err)
		}
		samples = append(samples, propagator.Sample{
			T:     vals[0],
			Omega: mat.NewVecDense(3, vals[1:4]),
			Accel: mat.NewVecDense(3, vals[4:7]),
		})
	}
}

// ReadPoses expects rows `t,qx,qy,qz,qw,px,py,pz[,sRxx,sRyy,sRzz,sPxx,sPyy,sPzz]`.
// Rows without the trailing six covariance fields fall back to
// cfg.ViconSigmas; UseManualSigmas forces that fallback even when a row
// supplies its own.
func (s *csvSource) ReadPoses() ([]interpolator.Sample, error) {
	r, f, err := openCSVReader(s.posesPath)
	if err != nil {
		return nil, fmt.Errorf("opening poses file %s: %w", s.posesPath, err)
	}
	defer f.Close()

	var samples []interpolator.Sample
	for {
		record, err := r.Read()
		if err == io.EOF {
			return samples, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading poses file %s: %w", s.posesPath, err)
		}
		if len(record) != 8 && len(record) != 14 {
			return nil, fmt.Errorf("pose row has %d fields, want 8 or 14: %v", len(record), record)
		}
		vals, err := parseFloats(record)
		if err != nil {
			return nil, fmt.Errorf("poses file %s: %w", s.posesPath, err)
		}
		q := manifold.NewQuat(vals[1], vals[2], vals[3], vals[4])
		p := mat.NewVecDense(3, vals[5:8])

		var sigmaR, sigmaP *mat.SymDense
		if len(vals) == 14 && !s.cfg.UseManualSigmas {
			sigmaR = mat.NewSymDense(3, []float64{vals[8], 0, 0, 0, vals[9], 0, 0, 0, vals[10]})
			sigmaP = mat.NewSymDense(3, []float64{vals[11], 0, 0, 0, vals[12], 0, 0, 0, vals[13]})
		} else {
			// cfg.ViconSigmas holds standard deviations, not variances
			// (spec.md §6); square before placing on the diagonal, same
			// convention as vicontruth.manualSigma.
			sig := s.cfg.ViconSigmas
			sigmaR = mat.NewSymDense(3, []float64{sig[0] * sig[0], 0, 0, 0, sig[1] * sig[1], 0, 0, 0, sig[2] * sig[2]})
			sigmaP = mat.NewSymDense(3, []float64{sig[3] * sig[3], 0, 0, 0, sig[4] * sig[4], 0, 0, 0, sig[5] * sig[5]})
		}
		samples = append(samples, interpolator.Sample{T: vals[0], Q: q, P: p, SigmaR: sigmaR, SigmaP: sigmaP})
	}
}

// ReadReferenceTimes expects one timestamp per row, column 0.
func (s *csvSource) ReadReferenceTimes() ([]float64, error) {
	r, f, err := openCSVReader(s.refTimesPath)
	if err != nil {
		return nil, fmt.Errorf("opening reference times file %s: %w", s.refTimesPath, err)
	}
	defer f.Close()

	var times []float64
	for {
		record, err := r.Read()
		if err == io.EOF {
			return times, nil
		}
		if err != nil {
			return nil, fmt.Errorf("reading reference times file %s: %w", s.refTimesPath, err)
		}
		v, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, fmt.Errorf("reference times file %s: %w", s.refTimesPath, err)
		}
		times = append(times, v)
	}
}
