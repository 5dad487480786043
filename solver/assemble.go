package solver

import "gonum.org/v1/gonum/mat"

// graphInfo is the normal-equations system JᵗJ, Jᵗr assembled from every
// factor's whitened local Jacobian and residual, at one trial state.
type graphInfo struct {
	JtJ *mat.Dense
	Jtr *mat.VecDense
}

type factorBlock struct {
	offset int
	J      *mat.Dense
}

// evaluateGraph evaluates every factor at (nodes, calib), fans the
// evaluation itself out across workers (spec.md §5's bounded pool), and
// serially assembles the dense information matrix and cost — the
// assembly step is inherently serial since every factor writes into the
// same shared JᵗJ.
func (g *GraphSolver) evaluateGraph(nodes []*StateNode, calib *Calibration, imuFactors []*IMUFactor, biasFactors []*BiasFactor, viconFactors []*ViconFactor, lay layout, workers int) (float64, *graphInfo) {
	nImu, nBias, nVicon := len(imuFactors), len(biasFactors), len(viconFactors)
	total := nImu + nBias + nVicon
	evals := make([]eval, total)

	parallelFor(total, workers, func(i int) {
		switch {
		case i < nImu:
			f := imuFactors[i]
			e, err := f.Evaluate(nodes[f.K], nodes[f.K1], calib)
			if err != nil {
				e = eval{}
			}
			evals[i] = e
		case i < nImu+nBias:
			f := biasFactors[i-nImu]
			e, err := f.Evaluate(nodes[f.K], nodes[f.K1])
			if err != nil {
				e = eval{}
			}
			evals[i] = e
		default:
			f := viconFactors[i-nImu-nBias]
			e, err := f.Evaluate(nodes[f.K], calib)
			if err != nil {
				e = eval{}
			}
			evals[i] = e
		}
	})

	D := lay.dim()
	JtJ := mat.NewDense(D, D, nil)
	Jtr := mat.NewVecDense(D, nil)
	cost := 0.0

	for i, e := range evals {
		if !e.ok || e.r == nil {
			continue
		}
		var blocks []factorBlock
		switch {
		case i < nImu:
			f := imuFactors[i]
			blocks = append(blocks, factorBlock{lay.nodeOffset(f.K), e.jNodeK}, factorBlock{lay.nodeOffset(f.K1), e.jNodeK1})
			if e.jCalib != nil {
				blocks = append(blocks, factorBlock{lay.calibOffset(), e.jCalib})
			}
		case i < nImu+nBias:
			f := biasFactors[i-nImu]
			blocks = append(blocks, factorBlock{lay.nodeOffset(f.K), e.jNodeK}, factorBlock{lay.nodeOffset(f.K1), e.jNodeK1})
		default:
			f := viconFactors[i-nImu-nBias]
			blocks = append(blocks, factorBlock{lay.nodeOffset(f.K), e.jNodeK})
			if e.jCalib != nil {
				blocks = append(blocks, factorBlock{lay.calibOffset(), e.jCalib})
			}
		}
		accumulate(JtJ, Jtr, e.r, blocks)
		cost += 0.5 * mat.Dot(e.r, e.r)
	}

	return cost, &graphInfo{JtJ: JtJ, Jtr: Jtr}
}

func accumulate(JtJ *mat.Dense, Jtr *mat.VecDense, r *mat.VecDense, blocks []factorBlock) {
	for _, bi := range blocks {
		if bi.J == nil {
			continue
		}
		var grad mat.VecDense
		grad.MulVec(bi.J.T(), r)
		addVecInto(Jtr, bi.offset, &grad)

		for _, bj := range blocks {
			if bj.J == nil {
				continue
			}
			var cross mat.Dense
			cross.Mul(bi.J.T(), bj.J)
			addBlockInto(JtJ, bi.offset, bj.offset, &cross)
		}
	}
}

func addVecInto(dst *mat.VecDense, offset int, src *mat.VecDense) {
	for i := 0; i < src.Len(); i++ {
		dst.SetVec(offset+i, dst.AtVec(offset+i)+src.AtVec(i))
	}
}

func addBlockInto(dst *mat.Dense, rowOff, colOff int, src *mat.Dense) {
	r, c := src.Dims()
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			dst.Set(rowOff+i, colOff+j, dst.At(rowOff+i, colOff+j)+src.At(i, j))
		}
	}
}
