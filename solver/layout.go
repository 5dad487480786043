package solver

// layout maps the flat unknown vector used by one LM iteration: N state
// nodes of stateTangentDim each, in timestamp order, followed by the
// calibration block. Ordering nodes by timestamp keeps the assembled
// information matrix block-banded (IMU/bias factors only couple adjacent
// nodes) even though it is stored densely — see SPEC_FULL.md's note on
// why no sparse Cholesky library is available in this stack.
type layout struct {
	N        int
	calibDim int
}

func newLayout(n, calibDim int) layout {
	return layout{N: n, calibDim: calibDim}
}

func (l layout) dim() int { return l.N*stateTangentDim + l.calibDim }

func (l layout) nodeOffset(k int) int { return k * stateTangentDim }

func (l layout) calibOffset() int { return l.N * stateTangentDim }
