package solver

import (
	"github.com/SamDSchofield/vicon2gt/manifold"
	"gonum.org/v1/gonum/mat"
)

// calibTangentDim is the local tangent dimension of the calibration block
// when every unknown is free: [δφ_IV (3), δ(u,v) gravity chart (2),
// δtoff (1), δt_IV (3)].
const calibTangentDim = 9

// Calibration holds the calibration unknowns of spec.md §3 and §9 Open
// Question (b): the IMU-to-Vicon rotation R_IV, gravity expressed in the
// world frame g_V (parameterized on the two-chart S² of
// manifold.GravityChart so the solver never has to optimize a raw,
// norm-constrained 3-vector directly), the fixed time offset t_off
// between the two streams, and the optional IMU-to-Vicon position arm
// t_IV. PositionArm is nil unless EstimatePositionArm is set; when nil it
// is treated as the zero vector everywhere a factor would otherwise read
// it.
type Calibration struct {
	RIV   *mat.Dense
	Chart *manifold.GravityChart
	U, V  float64
	TOff  float64

	PositionArm *mat.VecDense

	// The Estimate* flags mirror estconfig's per-unknown flags, narrowed by the
	// observability guard: a flag can ask to estimate something the guard
	// refuses because the data can't support it.
	EstimateRIV         bool
	EstimateG           bool
	EstimateTOff        bool
	EstimatePositionArm bool
}

// Gravity returns g_V in Cartesian coordinates.
func (c *Calibration) Gravity() *mat.VecDense {
	return c.Chart.FromTangent(c.U, c.V)
}

// Arm returns the position arm t_IV, or the zero vector if it is not part
// of this calibration.
func (c *Calibration) Arm() *mat.VecDense {
	if c.PositionArm == nil {
		return mat.NewVecDense(3, nil)
	}
	return c.PositionArm
}

// Clone returns a deep copy.
func (c *Calibration) Clone() *Calibration {
	chart := *c.Chart
	out := &Calibration{
		RIV:                 mat.DenseCopyOf(c.RIV),
		Chart:               &chart,
		U:                   c.U,
		V:                   c.V,
		TOff:                c.TOff,
		EstimateRIV:         c.EstimateRIV,
		EstimateG:           c.EstimateG,
		EstimateTOff:        c.EstimateTOff,
		EstimatePositionArm: c.EstimatePositionArm,
	}
	if c.PositionArm != nil {
		out.PositionArm = mat.VecDenseCopyOf(c.PositionArm)
	}
	return out
}

// TangentDim returns how many of the 9 calibration coordinates are
// actually free, in the fixed order [RIV(3), gravity(2), toff(1), arm(3)].
func (c *Calibration) TangentDim() int {
	d := 0
	if c.EstimateRIV {
		d += 3
	}
	if c.EstimateG {
		d += 2
	}
	if c.EstimateTOff {
		d++
	}
	if c.EstimatePositionArm {
		d += 3
	}
	return d
}

// Retracted applies a delta of length TangentDim(), in the same fixed
// order, and re-selects the gravity chart if the update pushed (u,v) past
// the swap threshold.
func (c *Calibration) Retracted(delta *mat.VecDense) *Calibration {
	if err := manifold.CheckDims(delta, mat.NewVecDense(c.TangentDim(), nil), "delta", "calibTangent", manifold.RowsAndCols); err != nil {
		panic("solver: " + err.Error())
	}
	out := c.Clone()
	i := 0
	if c.EstimateRIV {
		dphi := mat.NewVecDense(3, []float64{delta.AtVec(i), delta.AtVec(i + 1), delta.AtVec(i + 2)})
		var R mat.Dense
		R.Mul(c.RIV, manifold.Exp(dphi))
		out.RIV = &R
		i += 3
	}
	if c.EstimateG {
		out.U = c.U + delta.AtVec(i)
		out.V = c.V + delta.AtVec(i+1)
		i += 2
		g := out.Chart.FromTangent(out.U, out.V)
		if out.Chart.NeedsSwap(g) {
			out.Chart.Swap()
			out.U, out.V = out.Chart.ToTangent(g)
		}
	}
	if c.EstimateTOff {
		out.TOff = c.TOff + delta.AtVec(i)
		i++
	}
	if c.EstimatePositionArm {
		arm := out.Arm()
		next := mat.NewVecDense(3, nil)
		next.AddScaledVec(arm, 1, mat.NewVecDense(3, []float64{delta.AtVec(i), delta.AtVec(i + 1), delta.AtVec(i + 2)}))
		out.PositionArm = next
		i += 3
	}
	return out
}
