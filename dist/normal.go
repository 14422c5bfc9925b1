package dist

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/golp"
	"github.com/samuelfneumann/golp/ir"
	"gorgonia.org/tensor"
)

// Normal constructs a batch of normal draws with mean mu and standard
// deviation sigma.
func Normal(mu, sigma *ir.Node, size ...int) (*ir.Node, error) {
	rv, err := ir.Rand(NormalName, tensor.Float64, 0, size, mu, sigma)
	if err != nil {
		return nil, fmt.Errorf("normal: %v", err)
	}
	return rv, nil
}

// NormalLogProb builds the log-density of a normal draw at value.
func NormalLogProb(rv, value *ir.Node) (*ir.Node, error) {
	mu, sigma := rv.Input(0), rv.Input(1)

	z := ir.Must(ir.Div(ir.Must(ir.Sub(value, mu)), sigma))
	z2 := ir.Must(ir.Mul(z, z))
	lp := ir.Must(ir.Sub(
		ir.F64(-0.5*math.Log(2*math.Pi)),
		ir.Must(ir.Add(
			ir.Must(ir.Mul(ir.F64(0.5), z2)),
			ir.Must(ir.Log(sigma)),
		)),
	))

	return golp.WithCheckParam(lp, ir.Must(ir.Gt(sigma, ir.F64(0))),
		"normal: sigma must be positive")
}

// NormalLogCdf builds the log-CDF of a normal draw at value, as
// log(1/2) + log1p(erf(z/sqrt(2))).
func NormalLogCdf(rv, value *ir.Node) (*ir.Node, error) {
	mu, sigma := rv.Input(0), rv.Input(1)

	z := ir.Must(ir.Div(ir.Must(ir.Sub(value, mu)), sigma))
	scaled := ir.Must(ir.Mul(z, ir.F64(1/math.Sqrt2)))
	lc := ir.Must(ir.Add(
		ir.F64(math.Log(0.5)),
		ir.Must(ir.Log1p(ir.Must(ir.Erf(scaled)))),
	))

	return golp.WithCheckParam(lc, ir.Must(ir.Gt(sigma, ir.F64(0))),
		"normal: sigma must be positive")
}
