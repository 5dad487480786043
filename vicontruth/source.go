package vicontruth

import (
	"github.com/SamDSchofield/vicon2gt/interpolator"
	"github.com/SamDSchofield/vicon2gt/propagator"
)

// Source is the synthetic backing for end-to-end scenario tests that want
// to exercise a cmd/vicon2gt-shaped Source rather than reaching into a
// solver.GraphSolver directly: it samples a Trajectory at construction
// time and replays the same measurements csvsource would have parsed from
// disk.
type Source struct {
	imu   []propagator.Sample
	poses []interpolator.Sample
	refs  []float64
}

// NewSource samples traj under cfg and returns a Source exposing the
// resulting measurements. refTimes is returned verbatim by
// ReadReferenceTimes.
func NewSource(traj Trajectory, cfg Config, refTimes []float64) *Source {
	imuBuf, viconBuf := Generate(traj, cfg)
	return &Source{imu: imuBuf.Samples(), poses: viconBuf.Samples(), refs: refTimes}
}

func (s *Source) ReadIMU() ([]propagator.Sample, error) { return s.imu, nil }

func (s *Source) ReadPoses() ([]interpolator.Sample, error) { return s.poses, nil }

func (s *Source) ReadReferenceTimes() ([]float64, error) { return s.refs, nil }
