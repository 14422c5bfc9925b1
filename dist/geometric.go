package dist

import (
	"fmt"

	"github.com/samuelfneumann/golp"
	"github.com/samuelfneumann/golp/ir"
	"gorgonia.org/tensor"
)

// Geometric constructs a batch of geometric draws counting the number of
// Bernoulli(p) trials up to and including the first success; the support
// is {1, 2, ...}.
func Geometric(p *ir.Node, size ...int) (*ir.Node, error) {
	rv, err := ir.Rand(GeometricName, tensor.Int, 0, size, p)
	if err != nil {
		return nil, fmt.Errorf("geometric: %v", err)
	}
	return rv, nil
}

// GeometricLogProb builds the log-mass of a geometric draw at an integral
// value: log(p) + (value - 1)*log(1 - p).
func GeometricLogProb(rv, value *ir.Node) (*ir.Node, error) {
	p := rv.Input(0)

	body := ir.Must(ir.Add(
		ir.Must(ir.Log(p)),
		ir.Must(ir.Mul(
			ir.Must(ir.Sub(value, ir.F64(1))),
			ir.Must(ir.Log1p(ir.Must(ir.Neg(p)))),
		)),
	))
	lp := ir.Must(ir.Switch(ir.Must(ir.Ge(value, ir.F64(1))), body, ninf()))

	cond := ir.Must(ir.And(
		ir.Must(ir.Gt(p, ir.F64(0))),
		ir.Must(ir.Le(p, ir.F64(1))),
	))
	return golp.WithCheckParam(lp, cond, "geometric: p must be in (0, 1]")
}

// GeometricLogCdf builds the log-CDF of a geometric draw at an integral
// value, as log1mexp(value*log(1 - p)).
func GeometricLogCdf(rv, value *ir.Node) (*ir.Node, error) {
	p := rv.Input(0)

	body := ir.Must(ir.Log1mExp(
		ir.Must(ir.Mul(value, ir.Must(ir.Log1p(ir.Must(ir.Neg(p)))))),
	))
	lc := ir.Must(ir.Switch(ir.Must(ir.Ge(value, ir.F64(1))), body, ninf()))

	cond := ir.Must(ir.And(
		ir.Must(ir.Gt(p, ir.F64(0))),
		ir.Must(ir.Le(p, ir.F64(1))),
	))
	return golp.WithCheckParam(lc, cond, "geometric: p must be in (0, 1]")
}
