// Package dist supplies symbolic log-probability and log-CDF builders for
// a bank of primitive univariate distributions, together with
// constructors for draws from them. The builders produce graphs in terms
// of a draw's parameter nodes and a value node; nothing here samples
// numerically.
//
// Parameter-validity conditions (e.g. a positive scale) are guarded
// inside the builders themselves: evaluating a density graph with an
// invalid parameter fails with a parameter value error, and support
// violations of the value yield a log-probability of -Inf.
package dist

import (
	"math"

	"github.com/samuelfneumann/golp"
	"github.com/samuelfneumann/golp/ir"
)

// Distribution names as recorded on random-variable nodes.
const (
	UniformName         = "uniform"
	NormalName          = "normal"
	ExponentialName     = "exponential"
	DiscreteUniformName = "discrete_uniform"
	GeometricName       = "geometric"
)

// RegisterAll installs every distribution's log-probability and log-CDF
// service on reg.
func RegisterAll(reg *golp.Registry) {
	reg.RegisterLogProb(UniformName, UniformLogProb)
	reg.RegisterLogCdf(UniformName, UniformLogCdf)
	reg.RegisterLogProb(NormalName, NormalLogProb)
	reg.RegisterLogCdf(NormalName, NormalLogCdf)
	reg.RegisterLogProb(ExponentialName, ExponentialLogProb)
	reg.RegisterLogCdf(ExponentialName, ExponentialLogCdf)
	reg.RegisterLogProb(DiscreteUniformName, DiscreteUniformLogProb)
	reg.RegisterLogCdf(DiscreteUniformName, DiscreteUniformLogCdf)
	reg.RegisterLogProb(GeometricName, GeometricLogProb)
	reg.RegisterLogCdf(GeometricName, GeometricLogCdf)
}

func ninf() *ir.Node { return ir.F64(math.Inf(-1)) }
