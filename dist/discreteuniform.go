package dist

import (
	"fmt"

	"github.com/samuelfneumann/golp"
	"github.com/samuelfneumann/golp/ir"
	"gorgonia.org/tensor"
)

// DiscreteUniform constructs a batch of integer draws uniform over
// {lower, ..., upper} inclusive.
func DiscreteUniform(lower, upper *ir.Node, size ...int) (*ir.Node, error) {
	rv, err := ir.Rand(DiscreteUniformName, tensor.Int, 0, size, lower,
		upper)
	if err != nil {
		return nil, fmt.Errorf("discreteUniform: %v", err)
	}
	return rv, nil
}

// DiscreteUniformLogProb builds the log-mass of a discrete uniform draw
// at value: -log(upper - lower + 1) on the support. Values are assumed
// integral.
func DiscreteUniformLogProb(rv, value *ir.Node) (*ir.Node, error) {
	lower, upper := rv.Input(0), rv.Input(1)

	count := ir.Must(ir.Add(ir.Must(ir.Sub(upper, lower)), ir.F64(1)))
	inside := ir.Must(ir.And(
		ir.Must(ir.Ge(value, lower)),
		ir.Must(ir.Le(value, upper)),
	))
	lp := ir.Must(ir.Switch(inside,
		ir.Must(ir.Neg(ir.Must(ir.Log(count)))), ninf()))

	return golp.WithCheckParam(lp, ir.Must(ir.Ge(upper, lower)),
		"discreteUniform: upper must be at least lower")
}

// DiscreteUniformLogCdf builds the log-CDF of a discrete uniform draw at
// an integral value: log((value - lower + 1) / (upper - lower + 1)),
// clamped to -Inf below the support and 0 above it.
func DiscreteUniformLogCdf(rv, value *ir.Node) (*ir.Node, error) {
	lower, upper := rv.Input(0), rv.Input(1)

	count := ir.Must(ir.Add(ir.Must(ir.Sub(upper, lower)), ir.F64(1)))
	upto := ir.Must(ir.Add(ir.Must(ir.Sub(value, lower)), ir.F64(1)))
	body := ir.Must(ir.Log(ir.Must(ir.Div(upto, count))))

	lc := ir.Must(ir.Switch(ir.Must(ir.Ge(value, upper)), ir.F64(0), body))
	lc = ir.Must(ir.Switch(ir.Must(ir.Lt(value, lower)), ninf(), lc))

	return golp.WithCheckParam(lc, ir.Must(ir.Ge(upper, lower)),
		"discreteUniform: upper must be at least lower")
}
