package golp

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/golp/ir"
	"gorgonia.org/tensor"
)

// The order-statistic markers replace a recognized full-reduction maximum
// over i.i.d. draws. Each marker is a tagged variant of the ordinary Max
// reduction, distinguished only by type identity, whose sole input is the
// base random-variable graph. The Neg variants absorb an element-wise
// negation of the base variable into the marker's semantics (capturing
// min(x) = -max(-x)); the negation itself is not materialized in the
// graph, so evaluating a Neg marker directly is an error.

// MeasurableMax marks the maximum of i.i.d. continuous draws.
type MeasurableMax struct{ ir.Max }

func (m *MeasurableMax) Name() string { return "MeasurableMax" }

func (m *MeasurableMax) String() string {
	return fmt.Sprintf("MeasurableMax{axes=%v}", m.Axes)
}

// MeasurableMaxDiscrete marks the maximum of i.i.d. discrete draws.
type MeasurableMaxDiscrete struct{ ir.Max }

func (m *MeasurableMaxDiscrete) Name() string {
	return "MeasurableMaxDiscrete"
}

func (m *MeasurableMaxDiscrete) String() string {
	return fmt.Sprintf("MeasurableMaxDiscrete{axes=%v}", m.Axes)
}

// MeasurableMaxNeg marks the maximum of negated i.i.d. continuous draws,
// i.e. the negated minimum of the draws.
type MeasurableMaxNeg struct{ ir.Max }

func (m *MeasurableMaxNeg) Name() string { return "MeasurableMaxNeg" }

func (m *MeasurableMaxNeg) String() string {
	return fmt.Sprintf("MeasurableMaxNeg{axes=%v}", m.Axes)
}

func (m *MeasurableMaxNeg) Do(...*tensor.Dense) (*tensor.Dense, error) {
	return nil, fmt.Errorf("measurableMaxNeg: the absorbed negation makes " +
		"this marker symbolic-only")
}

// MeasurableDiscreteMaxNeg marks the maximum of negated i.i.d. discrete
// draws.
type MeasurableDiscreteMaxNeg struct{ ir.Max }

func (m *MeasurableDiscreteMaxNeg) Name() string {
	return "MeasurableDiscreteMaxNeg"
}

func (m *MeasurableDiscreteMaxNeg) String() string {
	return fmt.Sprintf("MeasurableDiscreteMaxNeg{axes=%v}", m.Axes)
}

func (m *MeasurableDiscreteMaxNeg) Do(...*tensor.Dense) (*tensor.Dense,
	error) {
	return nil, fmt.Errorf("measurableDiscreteMaxNeg: the absorbed " +
		"negation makes this marker symbolic-only")
}

// measurableBase checks the conditions under which a maximum over base is
// a recognizable order statistic: base must be a primitive draw with
// scalar support, every distribution parameter must have rank 0 (the
// i.i.d. condition) and the reduction must cover every dimension of base.
//
// The rank-0 parameter test is a deliberately fluid definition of i.i.d.:
// it rejects per-element-varying parameters but not deeper stochastic
// ancestor divergence. That narrower check matches established behavior
// and is a known soundness gap.
func measurableBase(maxOp *ir.Max, base *ir.Node) (*ir.RandomVariable,
	bool) {
	rv, ok := ir.AsRandomVariable(base)
	if !ok || rv.NdimSupp != 0 {
		return nil, false
	}
	for _, param := range base.Inputs() {
		if param.Dims() != 0 {
			return nil, false
		}
	}
	if !maxOp.CoversAll(base.Dims()) {
		return nil, false
	}
	return rv, true
}

// FindMeasurableMax recognizes a full-reduction maximum over univariate
// i.i.d. draws and replaces it with the appropriate measurable marker.
// It declines on anything else; declining is the dominant path.
func FindMeasurableMax(ctx *ir.RewriteContext,
	node *ir.Node) ([]*ir.Node, bool) {
	f, ok := ctx.Feature(ValuedRVsFeature)
	if !ok {
		return nil, false
	}
	valued := f.(*ValuedRVs)

	// Marker types are not *ir.Max, so this also rejects already-rewritten
	// nodes: the rule is non-recursive.
	maxOp, ok := node.Op().(*ir.Max)
	if !ok {
		return nil, false
	}

	base := node.Input(0)
	if base.Op() == nil {
		return nil, false
	}

	if !valued.RequestMeasurable(node.Inputs()) {
		return nil, false
	}

	rv, ok := measurableBase(maxOp, base)
	if !ok {
		return nil, false
	}

	axes := append([]int(nil), maxOp.Axes...)
	var marker ir.Op
	if rv.Dtype == tensor.Int {
		marker = &MeasurableMaxDiscrete{ir.Max{Axes: axes}}
	} else {
		marker = &MeasurableMax{ir.Max{Axes: axes}}
	}

	out, err := ir.Apply(marker, base)
	if err != nil {
		return nil, false
	}
	return []*ir.Node{out}, true
}

// FindMeasurableMaxNeg recognizes a full-reduction maximum over the
// element-wise negation of univariate i.i.d. draws — the inner graph of a
// minimum — and replaces it with a negated-maximum marker wrapping the
// un-negated base variable.
func FindMeasurableMaxNeg(ctx *ir.RewriteContext,
	node *ir.Node) ([]*ir.Node, bool) {
	f, ok := ctx.Feature(ValuedRVsFeature)
	if !ok {
		return nil, false
	}
	valued := f.(*ValuedRVs)

	maxOp, ok := node.Op().(*ir.Max)
	if !ok {
		return nil, false
	}

	negVar := node.Input(0)
	if negVar.Op() == nil {
		return nil, false
	}

	baseRV := FindNegatedVar(negVar)
	if baseRV == nil || baseRV.Op() == nil {
		return nil, false
	}

	rv, ok := measurableBase(maxOp, baseRV)
	if !ok {
		return nil, false
	}

	// It is the un-negated base that becomes measurable, so it is the
	// base, not the negation node, that must be claimable.
	if !valued.RequestMeasurable([]*ir.Node{baseRV}) {
		return nil, false
	}

	axes := append([]int(nil), maxOp.Axes...)
	var marker ir.Op
	if rv.Dtype == tensor.Int {
		marker = &MeasurableDiscreteMaxNeg{ir.Max{Axes: axes}}
	} else {
		marker = &MeasurableMaxNeg{ir.Max{Axes: axes}}
	}

	out, err := ir.Apply(marker, baseRV)
	if err != nil {
		return nil, false
	}
	return []*ir.Node{out}, true
}

// RegisterOrderRewrites registers the order-statistic recognizers into a
// rewrite database under the basic canonicalization group.
func RegisterOrderRewrites(db *ir.RewriteDB) error {
	err := db.Register(ir.Rewrite{
		Name:   "FindMeasurableMax",
		Tracks: []string{"Max"},
		Fn:     FindMeasurableMax,
	}, "basic", "max")
	if err != nil {
		return fmt.Errorf("registerOrderRewrites: %v", err)
	}

	err = db.Register(ir.Rewrite{
		Name:   "FindMeasurableMaxNeg",
		Tracks: []string{"Max"},
		Fn:     FindMeasurableMaxNeg,
	}, "basic", "min")
	if err != nil {
		return fmt.Errorf("registerOrderRewrites: %v", err)
	}
	return nil
}

func registerOrderStatistics(r *Registry) {
	// NewRegistry controls these names, so the registrations cannot
	// collide.
	_ = r.RegisterDensity("MeasurableMax", maxLogProb)
	_ = r.RegisterDensity("MeasurableMaxDiscrete", maxLogProbDiscrete)
	_ = r.RegisterDensity("MeasurableMaxNeg", maxNegLogProb)
	_ = r.RegisterDensity("MeasurableDiscreteMaxNeg", discreteMaxNegLogProb)
}

// drawCount folds the base variable's size to the compile-time draw count
// n. The order-statistic formulas need a concrete integer count for their
// power terms; a data-dependent size is a hard failure.
func drawCount(base *ir.Node) (float64, error) {
	n, err := ir.FoldSize(base)
	if err != nil {
		return 0, err
	}
	return float64(n), nil
}

// maxLogProb derives the log-density of the maximum of n i.i.d.
// continuous draws:
//
//	log f_(n)(x) = log(n) + (n-1)·logF(x) + log f(x)
func maxLogProb(reg *Registry, _ ir.Op, value *ir.Node,
	inputs ...*ir.Node) (*ir.Node, error) {
	base := inputs[0]

	logp, err := reg.LogProbOf(base, value)
	if err != nil {
		return nil, fmt.Errorf("maxLogProb: %v", err)
	}
	logcdf, err := reg.LogCdfOf(base, value)
	if err != nil {
		return nil, fmt.Errorf("maxLogProb: %v", err)
	}
	n, err := drawCount(base)
	if err != nil {
		return nil, fmt.Errorf("maxLogProb: %v", err)
	}

	res := ir.Must(ir.Mul(ir.F64(n-1), logcdf))
	res = ir.Must(ir.Add(res, logp))
	return ir.Add(res, ir.F64(math.Log(n)))
}

// maxLogProbDiscrete derives the log-mass of the maximum of n i.i.d.
// discrete draws:
//
//	log P_(n)(x) = log(F(x)^n − F(x−1)^n)
//
// computed in log space throughout.
func maxLogProbDiscrete(reg *Registry, _ ir.Op, value *ir.Node,
	inputs ...*ir.Node) (*ir.Node, error) {
	base := inputs[0]

	logcdf, err := reg.LogCdfOf(base, value)
	if err != nil {
		return nil, fmt.Errorf("maxLogProbDiscrete: %v", err)
	}
	prev := ir.Must(ir.Sub(value, ir.F64(1)))
	logcdfPrev, err := reg.LogCdfOf(base, prev)
	if err != nil {
		return nil, fmt.Errorf("maxLogProbDiscrete: %v", err)
	}
	n, err := drawCount(base)
	if err != nil {
		return nil, fmt.Errorf("maxLogProbDiscrete: %v", err)
	}

	return LogDiffExp(
		ir.Must(ir.Mul(ir.F64(n), logcdf)),
		ir.Must(ir.Mul(ir.F64(n), logcdfPrev)),
	)
}

// maxNegLogProb derives the log-density of the minimum of n i.i.d.
// continuous draws, seen as the negated maximum of the negated variable:
//
//	log f_(n)(x) = log(n) + (n-1)·log(1 − F(-x)) + log f(-x)
//
// with the survival term computed through Log1mExp.
func maxNegLogProb(reg *Registry, _ ir.Op, value *ir.Node,
	inputs ...*ir.Node) (*ir.Node, error) {
	base := inputs[0]
	negValue := ir.Must(ir.Neg(value))

	logp, err := reg.LogProbOf(base, negValue)
	if err != nil {
		return nil, fmt.Errorf("maxNegLogProb: %v", err)
	}
	logcdf, err := reg.LogCdfOf(base, negValue)
	if err != nil {
		return nil, fmt.Errorf("maxNegLogProb: %v", err)
	}
	n, err := drawCount(base)
	if err != nil {
		return nil, fmt.Errorf("maxNegLogProb: %v", err)
	}

	logsurv := ir.Must(ir.Log1mExp(logcdf))
	res := ir.Must(ir.Mul(ir.F64(n-1), logsurv))
	res = ir.Must(ir.Add(res, logp))
	return ir.Add(res, ir.F64(math.Log(n)))
}

// discreteMaxNegLogProb derives the log-mass of the minimum of n i.i.d.
// discrete draws:
//
//	log P_(n)(x) = log((1 − F(x−1))^n − (1 − F(x))^n)
//
// The CDF of a negated variable is the survival function at the negated
// value. When both survival probabilities underflow to exactly zero the
// result is −∞ directly; subtracting the two −∞ log terms would yield
// NaN.
func discreteMaxNegLogProb(reg *Registry, _ ir.Op, value *ir.Node,
	inputs ...*ir.Node) (*ir.Node, error) {
	base := inputs[0]

	negValue := ir.Must(ir.Neg(value))
	cdfAt, err := reg.LogCdfOf(base, negValue)
	if err != nil {
		return nil, fmt.Errorf("discreteMaxNegLogProb: %v", err)
	}
	negNext := ir.Must(ir.Neg(ir.Must(ir.Add(value, ir.F64(1)))))
	cdfNext, err := reg.LogCdfOf(base, negNext)
	if err != nil {
		return nil, fmt.Errorf("discreteMaxNegLogProb: %v", err)
	}
	n, err := drawCount(base)
	if err != nil {
		return nil, fmt.Errorf("discreteMaxNegLogProb: %v", err)
	}

	logcdf := ir.Must(ir.Log1mExp(cdfAt))
	logcdfPrev := ir.Must(ir.Log1mExp(cdfNext))

	diff, err := LogDiffExp(
		ir.Must(ir.Mul(ir.F64(n), logcdfPrev)),
		ir.Must(ir.Mul(ir.F64(n), logcdf)),
	)
	if err != nil {
		return nil, fmt.Errorf("discreteMaxNegLogProb: %v", err)
	}

	ninf := ir.F64(math.Inf(-1))
	bothZero := ir.Must(ir.And(
		ir.Must(ir.Eq(logcdf, ninf)),
		ir.Must(ir.Eq(logcdfPrev, ninf)),
	))
	return ir.Switch(bothZero, ninf, diff)
}
