package solver

import (
	"github.com/SamDSchofield/vicon2gt/interpolator"
	"github.com/SamDSchofield/vicon2gt/manifold"
	"github.com/SamDSchofield/vicon2gt/propagator"
	"gonum.org/v1/gonum/mat"
)

// eval is what every factor kind returns: its whitened residual, the
// whitened local Jacobian with respect to each variable block it
// touches (nil for a block that wasn't estimated), and whether the
// factor could be evaluated at all.
type eval struct {
	r      *mat.VecDense
	jNodeK, jNodeK1 *mat.Dense
	jCalib *mat.Dense
	ok     bool
}

func symSub(m *mat.SymDense, n int) *mat.SymDense {
	out := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			out.SetSym(i, j, m.At(i, j))
		}
	}
	return out
}

// IMUFactor ties two consecutive state nodes together through one
// preintegrated IMU measurement, per spec.md §4.3's IMU factor.
type IMUFactor struct {
	K, K1 int
	Meas  *propagator.PreintMeas
}

func (f *IMUFactor) rawResidual(nodeK, nodeK1 *StateNode, g *mat.VecDense) *mat.VecDense {
	corr := f.Meas.Correct(nodeK.Bg, nodeK.Ba)
	dt := f.Meas.Dt

	var RkT mat.Dense
	RkT.CloneFrom(nodeK.R.T())
	var relR mat.Dense
	relR.Mul(&RkT, nodeK1.R)
	var drT mat.Dense
	drT.CloneFrom(corr.DR.T())
	var rotErr mat.Dense
	rotErr.Mul(&drT, &relR)
	rPhi := manifold.Log(&rotErr)

	dv := mat.NewVecDense(3, nil)
	dv.SubVec(nodeK1.V, nodeK.V)
	dv.AddScaledVec(dv, -dt, g)
	var rv mat.VecDense
	rv.MulVec(&RkT, dv)
	rv.SubVec(&rv, corr.Dv)

	dp := mat.NewVecDense(3, nil)
	dp.SubVec(nodeK1.P, nodeK.P)
	dp.AddScaledVec(dp, -dt, nodeK.V)
	dp.AddScaledVec(dp, -0.5*dt*dt, g)
	var rp mat.VecDense
	rp.MulVec(&RkT, dp)
	rp.SubVec(&rp, corr.Dp)

	out := mat.NewVecDense(9, nil)
	for i := 0; i < 3; i++ {
		out.SetVec(i, rPhi.AtVec(i))
		out.SetVec(3+i, rv.AtVec(i))
		out.SetVec(6+i, rp.AtVec(i))
	}
	return out
}

// Evaluate computes the whitened residual and whitened local Jacobians
// with respect to nodeK, nodeK1 and, if free, the gravity component of
// calib.
func (f *IMUFactor) Evaluate(nodeK, nodeK1 *StateNode, calib *Calibration) (eval, error) {
	g := calib.Gravity()
	r0 := f.rawResidual(nodeK, nodeK1, g)

	w, err := newWhitener(symSub(f.Meas.Cov, 9))
	if err != nil {
		return eval{}, err
	}

	jk := localJacobian(stateTangentDim, 9, func(delta *mat.VecDense) *mat.VecDense {
		return f.rawResidual(nodeK.Retracted(delta), nodeK1, g)
	})
	jk1 := localJacobian(stateTangentDim, 9, func(delta *mat.VecDense) *mat.VecDense {
		return f.rawResidual(nodeK, nodeK1.Retracted(delta), g)
	})

	var jc *mat.Dense
	if d := calib.TangentDim(); d > 0 {
		jc = localJacobian(d, 9, func(delta *mat.VecDense) *mat.VecDense {
			c2 := calib.Retracted(delta)
			return f.rawResidual(nodeK, nodeK1, c2.Gravity())
		})
	}

	return eval{
		r:       w.vec(r0),
		jNodeK:  w.mat(jk),
		jNodeK1: w.mat(jk1),
		jCalib:  w.mat(jc),
		ok:      true,
	}, nil
}

// BiasFactor penalizes departure from a random-walk bias model between
// consecutive nodes, per spec.md §4.3's bias factor. It is exactly
// linear, so unlike IMUFactor and ViconFactor its Jacobian is written
// out directly instead of taken numerically.
type BiasFactor struct {
	K, K1 int
	Dt    float64
	Noise propagator.NoiseDensities
}

func (f *BiasFactor) Evaluate(nodeK, nodeK1 *StateNode) (eval, error) {
	r0 := mat.NewVecDense(6, nil)
	for i := 0; i < 3; i++ {
		r0.SetVec(i, nodeK1.Bg.AtVec(i)-nodeK.Bg.AtVec(i))
		r0.SetVec(3+i, nodeK1.Ba.AtVec(i)-nodeK.Ba.AtVec(i))
	}

	cov := mat.NewSymDense(6, nil)
	gyroVar := f.Noise.GyroRandomWalk * f.Noise.GyroRandomWalk * f.Dt
	accelVar := f.Noise.AccelRandomWalk * f.Noise.AccelRandomWalk * f.Dt
	for i := 0; i < 3; i++ {
		cov.SetSym(i, i, gyroVar)
		cov.SetSym(3+i, 3+i, accelVar)
	}
	w, err := newWhitener(cov)
	if err != nil {
		return eval{}, err
	}

	jk := mat.NewDense(6, stateTangentDim, nil)
	jk1 := mat.NewDense(6, stateTangentDim, nil)
	for i := 0; i < 6; i++ {
		jk.Set(i, 9+i, -1)
		jk1.Set(i, 9+i, 1)
	}

	return eval{
		r:       w.vec(r0),
		jNodeK:  w.mat(jk),
		jNodeK1: w.mat(jk1),
		ok:      true,
	}, nil
}

// ViconFactor ties one state node to the Vicon pose interpolated at the
// node's reference timestamp shifted by the calibration's time offset,
// per spec.md §4.2 and §4.3. Querying the interpolator at t_k + t_off
// directly (rather than pre-computing a static pose and an analytic
// time-derivative) means the same finite-difference machinery that
// differentiates against R_IV and t_IV also differentiates correctly
// against t_off, using the interpolator's own slope.
type ViconFactor struct {
	K       int
	RefTime float64
	Interp  *interpolator.Buffer
}

func (f *ViconFactor) rawResidual(nodeK *StateNode, calib *Calibration) (*mat.VecDense, *mat.SymDense, bool) {
	pose, err := f.Interp.Interpolate(f.RefTime + calib.TOff)
	if err != nil {
		return nil, nil, false
	}

	var Rexp mat.Dense
	Rexp.Mul(nodeK.R, calib.RIV)
	var RexpT mat.Dense
	RexpT.CloneFrom(Rexp.T())
	var rel mat.Dense
	rel.Mul(&RexpT, pose.R)
	rPhi := manifold.Log(&rel)

	var armWorld mat.VecDense
	armWorld.MulVec(nodeK.R, calib.Arm())
	pexp := mat.NewVecDense(3, nil)
	pexp.AddVec(nodeK.P, &armWorld)
	rp := mat.NewVecDense(3, nil)
	rp.SubVec(pexp, pose.P)

	out := mat.NewVecDense(6, nil)
	for i := 0; i < 3; i++ {
		out.SetVec(i, rPhi.AtVec(i))
		out.SetVec(3+i, rp.AtVec(i))
	}
	return out, pose.Cov6(), true
}

// Evaluate returns ok=false, with no error, when the time-shifted query
// falls outside the interpolator's buffered extent — the factor simply
// drops out of this LM iteration rather than failing it.
func (f *ViconFactor) Evaluate(nodeK *StateNode, calib *Calibration) (eval, error) {
	r0, cov, ok := f.rawResidual(nodeK, calib)
	if !ok {
		return eval{}, nil
	}
	w, err := newWhitener(cov)
	if err != nil {
		return eval{}, err
	}

	jk := localJacobian(stateTangentDim, 6, func(delta *mat.VecDense) *mat.VecDense {
		r, _, ok := f.rawResidual(nodeK.Retracted(delta), calib)
		if !ok {
			return nil
		}
		return r
	})

	var jc *mat.Dense
	if d := calib.TangentDim(); d > 0 {
		jc = localJacobian(d, 6, func(delta *mat.VecDense) *mat.VecDense {
			r, _, ok := f.rawResidual(nodeK, calib.Retracted(delta))
			if !ok {
				return nil
			}
			return r
		})
	}

	return eval{
		r:      w.vec(r0),
		jNodeK: w.mat(jk),
		jCalib: w.mat(jc),
		ok:     true,
	}, nil
}
