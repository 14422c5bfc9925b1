package dist

import (
	"fmt"

	"github.com/samuelfneumann/golp"
	"github.com/samuelfneumann/golp/ir"
	"gorgonia.org/tensor"
)

// Uniform constructs a batch of continuous uniform draws on [low, high]
// with the given batch shape.
func Uniform(low, high *ir.Node, size ...int) (*ir.Node, error) {
	rv, err := ir.Rand(UniformName, tensor.Float64, 0, size, low, high)
	if err != nil {
		return nil, fmt.Errorf("uniform: %v", err)
	}
	return rv, nil
}

// UniformLogProb builds the log-density of a uniform draw at value:
// -log(high - low) on the support and -Inf outside it.
func UniformLogProb(rv, value *ir.Node) (*ir.Node, error) {
	low, high := rv.Input(0), rv.Input(1)

	width := ir.Must(ir.Sub(high, low))
	inside := ir.Must(ir.And(
		ir.Must(ir.Ge(value, low)),
		ir.Must(ir.Le(value, high)),
	))
	lp := ir.Must(ir.Switch(inside,
		ir.Must(ir.Neg(ir.Must(ir.Log(width)))), ninf()))

	return golp.WithCheckParam(lp, ir.Must(ir.Gt(high, low)),
		"uniform: high must exceed low")
}

// UniformLogCdf builds the log-CDF of a uniform draw at value.
func UniformLogCdf(rv, value *ir.Node) (*ir.Node, error) {
	low, high := rv.Input(0), rv.Input(1)

	frac := ir.Must(ir.Div(
		ir.Must(ir.Sub(value, low)),
		ir.Must(ir.Sub(high, low)),
	))
	body := ir.Must(ir.Switch(ir.Must(ir.Ge(value, high)),
		ir.F64(0), ir.Must(ir.Log(frac))))
	lc := ir.Must(ir.Switch(ir.Must(ir.Lt(value, low)), ninf(), body))

	return golp.WithCheckParam(lc, ir.Must(ir.Gt(high, low)),
		"uniform: high must exceed low")
}
