// Package transform implements invertible reparameterizations of random
// variables as pure graph-to-graph value objects. Each transform maps a
// constrained value into unconstrained space (Forward), back again
// (Backward), and supplies the change-of-variable correction
// log|d Backward(v)/dv| (JacobianLogDet). Transforms compose through
// Chain.
package transform

import (
	"fmt"

	"github.com/samuelfneumann/golp/ir"
)

// Transform maps values between a variable's constrained space and an
// unconstrained parameterization. All three methods are pure functions
// from value graphs to value graphs; rv is the variable node the value
// belongs to, consulted by transforms whose bounds depend on the
// variable's parameters and ignored by the rest.
//
// By construction, Forward and Backward are mutually inverse and
// JacobianLogDet(rv, v) equals log|d Backward(rv, v)/dv|.
type Transform interface {
	Name() string
	Forward(rv, value *ir.Node) (*ir.Node, error)
	Backward(rv, value *ir.Node) (*ir.Node, error)
	JacobianLogDet(rv, value *ir.Node) (*ir.Node, error)
}

// AutoJacobian derives a scalar transform's Jacobian log-determinant
// symbolically, by differentiating the backward graph with respect to the
// value it was built from. Element-wise transforms without a cheaper
// closed form use it as their JacobianLogDet.
func AutoJacobian(t Transform, rv, value *ir.Node) (*ir.Node, error) {
	back, err := t.Backward(rv, value)
	if err != nil {
		return nil, fmt.Errorf("autoJacobian: %v", err)
	}
	g, err := ir.Grad(back, value)
	if err != nil {
		return nil, fmt.Errorf("autoJacobian: %v", err)
	}
	a, err := ir.Abs(g)
	if err != nil {
		return nil, fmt.Errorf("autoJacobian: %v", err)
	}
	return ir.Log(a)
}

// zerosLike builds a zero graph with the shape of value.
func zerosLike(value *ir.Node) (*ir.Node, error) {
	return ir.Mul(value, ir.F64(0))
}

// Log maps a positive value to its logarithm.
type Log struct{}

func (Log) Name() string { return "log" }

func (Log) Forward(_, value *ir.Node) (*ir.Node, error) {
	return ir.Log(value)
}

func (Log) Backward(_, value *ir.Node) (*ir.Node, error) {
	return ir.Exp(value)
}

func (Log) JacobianLogDet(_, value *ir.Node) (*ir.Node, error) {
	return value, nil
}

// LogExpM1 maps a positive value through the inverse of softplus. Unlike
// Log it is asymptotically linear, which keeps large values from
// overflowing the backward map.
type LogExpM1 struct{}

func (LogExpM1) Name() string { return "log_exp_m1" }

func (LogExpM1) Forward(_, value *ir.Node) (*ir.Node, error) {
	// log(exp(x) - 1) = x + log(1 - exp(-x))
	n, err := ir.Neg(value)
	if err != nil {
		return nil, err
	}
	l, err := ir.Log1mExp(n)
	if err != nil {
		return nil, err
	}
	return ir.Add(value, l)
}

func (LogExpM1) Backward(_, value *ir.Node) (*ir.Node, error) {
	return ir.Softplus(value)
}

func (LogExpM1) JacobianLogDet(_, value *ir.Node) (*ir.Node, error) {
	// d softplus(v)/dv = sigmoid(v), so the log-Jacobian is
	// log sigmoid(v) = -softplus(-v).
	n, err := ir.Neg(value)
	if err != nil {
		return nil, err
	}
	s, err := ir.Softplus(n)
	if err != nil {
		return nil, err
	}
	return ir.Neg(s)
}

// LogOdds maps a (0, 1) value to the real line through the logit
// function.
type LogOdds struct{}

func (LogOdds) Name() string { return "logodds" }

func (l LogOdds) Forward(_, value *ir.Node) (*ir.Node, error) {
	om, err := ir.Sub(ir.F64(1), value)
	if err != nil {
		return nil, err
	}
	r, err := ir.Div(value, om)
	if err != nil {
		return nil, err
	}
	return ir.Log(r)
}

func (LogOdds) Backward(_, value *ir.Node) (*ir.Node, error) {
	return ir.Sigmoid(value)
}

func (l LogOdds) JacobianLogDet(rv, value *ir.Node) (*ir.Node, error) {
	return AutoJacobian(l, rv, value)
}

// Interval maps a bounded value to the real line. Bounds supplies the
// bound graphs for the transformed variable; a nil bound leaves that side
// unbounded. One-sided intervals degenerate to a shifted log map and a
// fully unbounded interval to the identity.
type Interval struct {
	Bounds func(rv *ir.Node) (lower, upper *ir.Node)
}

func (Interval) Name() string { return "interval" }

func (i Interval) Forward(rv, value *ir.Node) (*ir.Node, error) {
	lower, upper := i.Bounds(rv)
	switch {
	case lower != nil && upper != nil:
		num, err := ir.Sub(value, lower)
		if err != nil {
			return nil, err
		}
		den, err := ir.Sub(upper, value)
		if err != nil {
			return nil, err
		}
		r, err := ir.Div(num, den)
		if err != nil {
			return nil, err
		}
		return ir.Log(r)
	case lower != nil:
		d, err := ir.Sub(value, lower)
		if err != nil {
			return nil, err
		}
		return ir.Log(d)
	case upper != nil:
		d, err := ir.Sub(upper, value)
		if err != nil {
			return nil, err
		}
		return ir.Log(d)
	default:
		return value, nil
	}
}

func (i Interval) Backward(rv, value *ir.Node) (*ir.Node, error) {
	lower, upper := i.Bounds(rv)
	switch {
	case lower != nil && upper != nil:
		w, err := ir.Sub(upper, lower)
		if err != nil {
			return nil, err
		}
		s, err := ir.Sigmoid(value)
		if err != nil {
			return nil, err
		}
		scaled, err := ir.Mul(w, s)
		if err != nil {
			return nil, err
		}
		return ir.Add(lower, scaled)
	case lower != nil:
		e, err := ir.Exp(value)
		if err != nil {
			return nil, err
		}
		return ir.Add(lower, e)
	case upper != nil:
		e, err := ir.Exp(value)
		if err != nil {
			return nil, err
		}
		return ir.Sub(upper, e)
	default:
		return value, nil
	}
}

func (i Interval) JacobianLogDet(rv, value *ir.Node) (*ir.Node, error) {
	lower, upper := i.Bounds(rv)
	switch {
	case lower != nil && upper != nil:
		// The backward map is a + (b-a)·sigmoid(v), whose log-derivative
		// is log(b-a) - 2·softplus(-v) - v.
		w, err := ir.Sub(upper, lower)
		if err != nil {
			return nil, err
		}
		lw, err := ir.Log(w)
		if err != nil {
			return nil, err
		}
		n, err := ir.Neg(value)
		if err != nil {
			return nil, err
		}
		s, err := ir.Softplus(n)
		if err != nil {
			return nil, err
		}
		s2, err := ir.Mul(ir.F64(2), s)
		if err != nil {
			return nil, err
		}
		r, err := ir.Sub(lw, s2)
		if err != nil {
			return nil, err
		}
		return ir.Sub(r, value)
	case lower != nil, upper != nil:
		return value, nil
	default:
		return zerosLike(value)
	}
}

// Circular wraps a real value into (-π, π].
type Circular struct{}

func (Circular) Name() string { return "circular" }

func (Circular) Forward(_, value *ir.Node) (*ir.Node, error) {
	return value, nil
}

func (Circular) Backward(_, value *ir.Node) (*ir.Node, error) {
	s, err := ir.Sin(value)
	if err != nil {
		return nil, err
	}
	c, err := ir.Cos(value)
	if err != nil {
		return nil, err
	}
	return ir.Atan2(s, c)
}

func (Circular) JacobianLogDet(_, value *ir.Node) (*ir.Node, error) {
	return zerosLike(value)
}
