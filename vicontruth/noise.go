package vicontruth

import (
	"golang.org/x/exp/rand"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distmv"
)

// awgn draws zero-mean, independent-axis Gaussian noise per sample, the
// same role the teacher's AWGN plays for its Kalman filter tests, adapted
// to the modern gonum.org/v1/gonum/stat/distmv import path and to
// per-axis continuous-time noise densities rather than a fixed process
// covariance.
type awgn struct {
	dist *distmv.Normal
}

func newAWGN(sigma [3]float64, seed int64) *awgn {
	cov := mat.NewSymDense(3, nil)
	for i, s := range sigma {
		cov.SetSym(i, i, s*s)
	}
	dist, ok := distmv.NewNormal(make([]float64, 3), cov, rand.New(rand.NewSource(uint64(seed))))
	if !ok {
		panic("vicontruth: invalid noise covariance")
	}
	return &awgn{dist: dist}
}

func (n *awgn) sample() *mat.VecDense {
	return mat.NewVecDense(3, n.dist.Rand(nil))
}
