package dist

import (
	"fmt"

	"github.com/samuelfneumann/golp"
	"github.com/samuelfneumann/golp/ir"
	"gorgonia.org/tensor"
)

// Exponential constructs a batch of exponential draws with rate lam.
func Exponential(lam *ir.Node, size ...int) (*ir.Node, error) {
	rv, err := ir.Rand(ExponentialName, tensor.Float64, 0, size, lam)
	if err != nil {
		return nil, fmt.Errorf("exponential: %v", err)
	}
	return rv, nil
}

// ExponentialLogProb builds the log-density of an exponential draw at
// value: log(lam) - lam*value on the non-negative reals.
func ExponentialLogProb(rv, value *ir.Node) (*ir.Node, error) {
	lam := rv.Input(0)

	body := ir.Must(ir.Sub(
		ir.Must(ir.Log(lam)),
		ir.Must(ir.Mul(lam, value)),
	))
	lp := ir.Must(ir.Switch(ir.Must(ir.Ge(value, ir.F64(0))), body, ninf()))

	return golp.WithCheckParam(lp, ir.Must(ir.Gt(lam, ir.F64(0))),
		"exponential: lam must be positive")
}

// ExponentialLogCdf builds the log-CDF of an exponential draw at value,
// as log1mexp(-lam*value).
func ExponentialLogCdf(rv, value *ir.Node) (*ir.Node, error) {
	lam := rv.Input(0)

	body := ir.Must(ir.Log1mExp(
		ir.Must(ir.Neg(ir.Must(ir.Mul(lam, value)))),
	))
	lc := ir.Must(ir.Switch(ir.Must(ir.Ge(value, ir.F64(0))), body, ninf()))

	return golp.WithCheckParam(lc, ir.Must(ir.Gt(lam, ir.F64(0))),
		"exponential: lam must be positive")
}
