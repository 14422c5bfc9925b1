package transform

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/golp/ir"
)

// degenerateLast reports whether rv is a bunch of scalars along its last
// axis — a size-1 simplex has nothing to transform and passes through
// unchanged.
func degenerateLast(rv *ir.Node) bool {
	if rv == nil {
		return false
	}
	sh := rv.Shape()
	return len(sh) > 0 && sh[len(sh)-1] == 1
}

// staticLastDim resolves the size of value's last axis, which the simplex
// Jacobians need as a compile-time constant.
func staticLastDim(value *ir.Node) (int, error) {
	sh := value.Shape()
	if len(sh) == 0 {
		return 0, fmt.Errorf("staticLastDim: %v is a scalar", value)
	}
	if last := sh[len(sh)-1]; last != ir.UnknownDim {
		return last, nil
	}
	return 0, fmt.Errorf("staticLastDim: last axis of %v is not statically "+
		"known", value)
}

// logSumExpLast computes log Σ exp over the last axis, shifted by the
// axis maximum for stability.
func logSumExpLast(x *ir.Node, keepDims bool) (*ir.Node, error) {
	m, err := ir.MaxLast(x, true)
	if err != nil {
		return nil, err
	}
	d, err := ir.Sub(x, m)
	if err != nil {
		return nil, err
	}
	e, err := ir.Exp(d)
	if err != nil {
		return nil, err
	}
	s, err := ir.SumLast(e, keepDims)
	if err != nil {
		return nil, err
	}
	l, err := ir.Log(s)
	if err != nil {
		return nil, err
	}
	if !keepDims {
		m, err = ir.SumLast(m, false)
		if err != nil {
			return nil, err
		}
	}
	return ir.Add(m, l)
}

// Ordered maps a strictly increasing vector to an unconstrained one: the
// first coordinate passes through and each later coordinate becomes the
// log of its increment over the previous coordinate.
type Ordered struct{}

func (Ordered) Name() string { return "ordered" }

func (Ordered) Forward(_, value *ir.Node) (*ir.Node, error) {
	first, err := ir.SliceLast(value, 0, 1)
	if err != nil {
		return nil, err
	}
	hi, err := ir.SliceLast(value, 1, ir.SliceEnd)
	if err != nil {
		return nil, err
	}
	lo, err := ir.SliceLast(value, 0, -1)
	if err != nil {
		return nil, err
	}
	incr, err := ir.Sub(hi, lo)
	if err != nil {
		return nil, err
	}
	lincr, err := ir.Log(incr)
	if err != nil {
		return nil, err
	}
	return ir.ConcatLast(first, lincr)
}

func (Ordered) Backward(_, value *ir.Node) (*ir.Node, error) {
	first, err := ir.SliceLast(value, 0, 1)
	if err != nil {
		return nil, err
	}
	rest, err := ir.SliceLast(value, 1, ir.SliceEnd)
	if err != nil {
		return nil, err
	}
	incr, err := ir.Exp(rest)
	if err != nil {
		return nil, err
	}
	steps, err := ir.ConcatLast(first, incr)
	if err != nil {
		return nil, err
	}
	return ir.CumsumLast(steps)
}

func (Ordered) JacobianLogDet(_, value *ir.Node) (*ir.Node, error) {
	rest, err := ir.SliceLast(value, 1, ir.SliceEnd)
	if err != nil {
		return nil, err
	}
	return ir.SumLast(rest, false)
}

// SumTo1 maps a K-simplex (non-negative coordinates summing to one) to
// its first K-1 free coordinates; the dropped coordinate is recovered as
// one minus the rest. Operates on the last axis.
type SumTo1 struct{}

func (SumTo1) Name() string { return "sumto1" }

func (SumTo1) Forward(rv, value *ir.Node) (*ir.Node, error) {
	if degenerateLast(rv) {
		return value, nil
	}
	return ir.SliceLast(value, 0, -1)
}

func (SumTo1) Backward(rv, value *ir.Node) (*ir.Node, error) {
	if degenerateLast(rv) {
		return value, nil
	}
	s, err := ir.SumLast(value, true)
	if err != nil {
		return nil, err
	}
	remaining, err := ir.Sub(ir.F64(1), s)
	if err != nil {
		return nil, err
	}
	return ir.ConcatLast(value, remaining)
}

func (SumTo1) JacobianLogDet(rv, value *ir.Node) (*ir.Node, error) {
	if degenerateLast(rv) {
		return zerosLike(value)
	}
	z, err := zerosLike(value)
	if err != nil {
		return nil, err
	}
	return ir.SumLast(z, false)
}

// StickBreaking maps a K-simplex to K-1 unconstrained reals through a
// variant of the isometric log-ratio transformation. Operates on the last
// axis.
type StickBreaking struct{}

func (StickBreaking) Name() string { return "stickbreaking" }

func (StickBreaking) Forward(rv, value *ir.Node) (*ir.Node, error) {
	if degenerateLast(rv) {
		return value, nil
	}
	k, err := staticLastDim(value)
	if err != nil {
		return nil, fmt.Errorf("stickbreaking forward: %v", err)
	}

	lx, err := ir.Log(value)
	if err != nil {
		return nil, err
	}
	s, err := ir.SumLast(lx, true)
	if err != nil {
		return nil, err
	}
	shift, err := ir.Div(s, ir.F64(float64(k)))
	if err != nil {
		return nil, err
	}
	head, err := ir.SliceLast(lx, 0, -1)
	if err != nil {
		return nil, err
	}
	return ir.Sub(head, shift)
}

func (StickBreaking) Backward(rv, value *ir.Node) (*ir.Node, error) {
	if degenerateLast(rv) {
		return value, nil
	}
	s, err := ir.SumLast(value, true)
	if err != nil {
		return nil, err
	}
	last, err := ir.Neg(s)
	if err != nil {
		return nil, err
	}
	y, err := ir.ConcatLast(value, last)
	if err != nil {
		return nil, err
	}

	// Softmax over the last axis.
	m, err := ir.MaxLast(y, true)
	if err != nil {
		return nil, err
	}
	d, err := ir.Sub(y, m)
	if err != nil {
		return nil, err
	}
	e, err := ir.Exp(d)
	if err != nil {
		return nil, err
	}
	tot, err := ir.SumLast(e, true)
	if err != nil {
		return nil, err
	}
	return ir.Div(e, tot)
}

func (StickBreaking) JacobianLogDet(rv, value *ir.Node) (*ir.Node, error) {
	if degenerateLast(rv) {
		return zerosLike(value)
	}
	km1, err := staticLastDim(value)
	if err != nil {
		return nil, fmt.Errorf("stickbreaking jacobian: %v", err)
	}
	k := ir.F64(float64(km1 + 1))

	sy, err := ir.SumLast(value, true)
	if err != nil {
		return nil, err
	}
	shifted, err := ir.Add(value, sy)
	if err != nil {
		return nil, err
	}
	zero, err := zerosLike(sy)
	if err != nil {
		return nil, err
	}
	r, err := ir.ConcatLast(shifted, zero)
	if err != nil {
		return nil, err
	}
	sr, err := logSumExpLast(r, true)
	if err != nil {
		return nil, err
	}

	ksy, err := ir.Mul(k, sy)
	if err != nil {
		return nil, err
	}
	ksr, err := ir.Mul(k, sr)
	if err != nil {
		return nil, err
	}
	d, err := ir.Add(ir.F64(math.Log(float64(km1)+1)), ksy)
	if err != nil {
		return nil, err
	}
	d, err = ir.Sub(d, ksr)
	if err != nil {
		return nil, err
	}
	return ir.SumLast(d, false)
}

// CholeskyCovPacked maps the packed lower triangle of an N×N Cholesky
// factor by taking the log of its diagonal entries, leaving the
// off-diagonal entries untouched.
type CholeskyCovPacked struct {
	diagIdxs []int
}

// NewCholeskyCovPacked returns the packed-Cholesky transform for an n×n
// factor.
func NewCholeskyCovPacked(n int) *CholeskyCovPacked {
	idxs := make([]int, n)
	next := 0
	for i := range idxs {
		next += i + 1
		idxs[i] = next - 1
	}
	return &CholeskyCovPacked{diagIdxs: idxs}
}

func (*CholeskyCovPacked) Name() string { return "cholesky-cov-packed" }

func (c *CholeskyCovPacked) Forward(_, value *ir.Node) (*ir.Node, error) {
	diag, err := ir.TakeLast(value, c.diagIdxs...)
	if err != nil {
		return nil, err
	}
	ld, err := ir.Log(diag)
	if err != nil {
		return nil, err
	}
	return ir.PutLast(value, ld, c.diagIdxs...)
}

func (c *CholeskyCovPacked) Backward(_, value *ir.Node) (*ir.Node, error) {
	diag, err := ir.TakeLast(value, c.diagIdxs...)
	if err != nil {
		return nil, err
	}
	ed, err := ir.Exp(diag)
	if err != nil {
		return nil, err
	}
	return ir.PutLast(value, ed, c.diagIdxs...)
}

func (c *CholeskyCovPacked) JacobianLogDet(_, value *ir.Node) (*ir.Node,
	error) {
	diag, err := ir.TakeLast(value, c.diagIdxs...)
	if err != nil {
		return nil, err
	}
	return ir.SumLast(diag, false)
}
