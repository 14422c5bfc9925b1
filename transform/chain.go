package transform

import (
	"fmt"
	"strings"

	"github.com/samuelfneumann/golp/ir"
)

// Chain composes an ordered sequence of transforms. Forward threads the
// value through the children left to right; Backward threads it right to
// left. The Jacobian log-determinant is the sum of each child's
// contribution, evaluated at that child's own input (recovered by
// repeated backward application), with higher-rank contributions summed
// over their trailing axes down to the smallest rank seen across the
// chain.
type Chain struct {
	transforms []Transform
	name       string
}

// NewChain composes the given transforms, applied in Forward order.
func NewChain(transforms ...Transform) *Chain {
	names := make([]string, len(transforms))
	for i, t := range transforms {
		names[i] = t.Name()
	}
	return &Chain{
		transforms: append([]Transform(nil), transforms...),
		name:       strings.Join(names, "+"),
	}
}

func (c *Chain) Name() string { return c.name }

func (c *Chain) Forward(rv, value *ir.Node) (*ir.Node, error) {
	y := value
	var err error
	for _, t := range c.transforms {
		if y, err = t.Forward(rv, y); err != nil {
			return nil, fmt.Errorf("chain forward: %v: %v", t.Name(), err)
		}
	}
	return y, nil
}

func (c *Chain) Backward(rv, value *ir.Node) (*ir.Node, error) {
	x := value
	var err error
	for i := len(c.transforms) - 1; i >= 0; i-- {
		t := c.transforms[i]
		if x, err = t.Backward(rv, x); err != nil {
			return nil, fmt.Errorf("chain backward: %v: %v", t.Name(), err)
		}
	}
	return x, nil
}

func (c *Chain) JacobianLogDet(rv, value *ir.Node) (*ir.Node, error) {
	y := value
	dets := make([]*ir.Node, 0, len(c.transforms))
	minDims := y.Dims()

	for i := len(c.transforms) - 1; i >= 0; i-- {
		t := c.transforms[i]
		det, err := t.JacobianLogDet(rv, y)
		if err != nil {
			return nil, fmt.Errorf("chain jacobian: %v: %v", t.Name(), err)
		}
		dets = append(dets, det)
		if det.Dims() < minDims {
			minDims = det.Dims()
		}
		if y, err = t.Backward(rv, y); err != nil {
			return nil, fmt.Errorf("chain jacobian: %v: %v", t.Name(), err)
		}
	}

	// Align every contribution to the smallest rank before summing, so a
	// child whose Jacobian reduces over the last axis broadcasts against
	// full-rank element-wise children.
	total := ir.F64(0)
	for _, det := range dets {
		var err error
		for det.Dims() > minDims {
			if det, err = ir.SumLast(det, false); err != nil {
				return nil, fmt.Errorf("chain jacobian: %v", err)
			}
		}
		if total, err = ir.Add(total, det); err != nil {
			return nil, fmt.Errorf("chain jacobian: %v", err)
		}
	}
	return total, nil
}
