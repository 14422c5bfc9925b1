// Package golp symbolically derives log-probability expressions from
// random-variable graphs. Given a graph describing how a random quantity
// is produced — including derived quantities such as the maximum of
// i.i.d. draws or monotonic reparameterizations — it rewrites recognized
// sub-graphs into opaque measurable markers and supplies a closed-form
// log-density graph for each marker, suitable for compilation and
// gradient-based inference.
package golp

import (
	"fmt"

	"github.com/samuelfneumann/golp/ir"
)

// DensityRule derives the log-density graph of a measurable marker node.
// It receives the marker op, the observed value and the marker's inputs
// (the base random variable graph first).
type DensityRule func(reg *Registry, op ir.Op, value *ir.Node,
	inputs ...*ir.Node) (*ir.Node, error)

// DistLogProbFn builds the symbolic log-density (or log-mass) of one
// primitive distribution at a value. rv is the random-variable node whose
// inputs hold the distribution parameters.
type DistLogProbFn func(rv, value *ir.Node) (*ir.Node, error)

// Registry owns the set of measurable operation kinds, the density rules
// dispatched on them, and the log-probability and log-CDF services of the
// primitive distributions. A Registry is passed explicitly into each
// derivation session rather than living in ambient package state.
//
// Registrations are additive for the lifetime of the registry. A registry
// may be read from concurrent derivation sessions as long as nothing
// registers concurrently with use; registration is expected to happen at
// program start-up.
type Registry struct {
	measurable map[string]bool
	density    map[string]DensityRule
	logProb    map[string]DistLogProbFn
	logCdf     map[string]DistLogProbFn
}

// NewRegistry returns a registry pre-loaded with the order-statistic
// markers and their density rules. Distribution plugins add their
// log-probability and log-CDF services on top, and further recognizer
// modules may add their own markers.
func NewRegistry() *Registry {
	r := &Registry{
		measurable: make(map[string]bool),
		density:    make(map[string]DensityRule),
		logProb:    make(map[string]DistLogProbFn),
		logCdf:     make(map[string]DistLogProbFn),
	}

	// Raw random draws are measurable by definition.
	r.RegisterMeasurable("RandomVariable")

	registerOrderStatistics(r)
	return r
}

// RegisterMeasurable marks an op name as measurable: opaque to further
// generic rewriting and eligible for density dispatch. There is no removal
// operation.
func (r *Registry) RegisterMeasurable(opName string) {
	r.measurable[opName] = true
}

// RegisterDensity associates a density-derivation rule with a marker op
// name, marking the op measurable as a side effect.
func (r *Registry) RegisterDensity(opName string, rule DensityRule) error {
	if rule == nil {
		return fmt.Errorf("registerDensity: nil rule for %v", opName)
	}
	if _, ok := r.density[opName]; ok {
		return fmt.Errorf("registerDensity: %v already has a density rule",
			opName)
	}
	r.measurable[opName] = true
	r.density[opName] = rule
	return nil
}

// RegisterLogProb installs the log-probability service of a primitive
// distribution.
func (r *Registry) RegisterLogProb(dist string, fn DistLogProbFn) {
	r.logProb[dist] = fn
}

// RegisterLogCdf installs the log-CDF service of a primitive distribution.
func (r *Registry) RegisterLogCdf(dist string, fn DistLogProbFn) {
	r.logCdf[dist] = fn
}

// IsMeasurableOp reports whether op is a measurable kind.
func (r *Registry) IsMeasurableOp(op ir.Op) bool {
	return op != nil && r.measurable[op.Name()]
}

// IsMeasurable reports whether n was produced by a measurable op.
func (r *Registry) IsMeasurable(n *ir.Node) bool {
	return r.IsMeasurableOp(n.Op())
}

// densityRule returns the density rule registered for op, if any.
func (r *Registry) densityRule(op ir.Op) (DensityRule, bool) {
	rule, ok := r.density[op.Name()]
	return rule, ok
}

// LogProbOf builds the log-density graph of a primitive random variable
// at a value, dispatching on the draw's distribution.
func (r *Registry) LogProbOf(rv, value *ir.Node) (*ir.Node, error) {
	op, ok := ir.AsRandomVariable(rv)
	if !ok {
		return nil, fmt.Errorf("logProbOf: %v is not a random variable", rv)
	}
	fn, ok := r.logProb[op.Dist]
	if !ok {
		return nil, fmt.Errorf("logProbOf: no logprob registered for "+
			"distribution %q", op.Dist)
	}
	return fn(rv, value)
}

// LogCdfOf builds the log-CDF graph of a primitive random variable at a
// value, dispatching on the draw's distribution.
func (r *Registry) LogCdfOf(rv, value *ir.Node) (*ir.Node, error) {
	op, ok := ir.AsRandomVariable(rv)
	if !ok {
		return nil, fmt.Errorf("logCdfOf: %v is not a random variable", rv)
	}
	fn, ok := r.logCdf[op.Dist]
	if !ok {
		return nil, fmt.Errorf("logCdfOf: no logcdf registered for "+
			"distribution %q", op.Dist)
	}
	return fn(rv, value)
}
