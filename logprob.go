package golp

import (
	"fmt"

	"github.com/samuelfneumann/golp/ir"
)

// NoDensityError reports that a node survived canonicalization without
// being recognized as measurable, so no density rule applies to it.
// Unrecognized constructs fail loudly; there is no silent fallback.
type NoDensityError struct {
	Node *ir.Node
}

func (e *NoDensityError) Error() string {
	if e.Node == nil || e.Node.Op() == nil {
		return "no density rule available for a free variable"
	}
	return fmt.Sprintf("no density rule available for operation %v",
		e.Node.Op())
}

// DefaultRewriteDB returns a rewrite database loaded with the measurable
// canonicalization rules.
func DefaultRewriteDB() *ir.RewriteDB {
	db := ir.NewRewriteDB()

	// The rule names are controlled here, so registration cannot fail.
	_ = RegisterOrderRewrites(db)
	return db
}

// ConditionalLogp canonicalizes the graphs of every valued variable and
// derives the log-probability graph of each, conditional on the values of
// the others. The result maps each value placeholder to its variable's
// log-probability graph. Pass a nil db to use DefaultRewriteDB.
//
// valued is both consumed and followed: rewriting moves its bindings onto
// replacement nodes, so the table reflects the canonicalized graphs
// afterwards.
func ConditionalLogp(reg *Registry, db *ir.RewriteDB,
	valued *ValuedRVs) (map[*ir.Node]*ir.Node, error) {
	if db == nil {
		db = DefaultRewriteDB()
	}

	ctx := ir.NewRewriteContext()
	ctx.SetFeature(ValuedRVsFeature, valued)
	if _, err := db.Rewrite(ctx, valued.RVs()); err != nil {
		return nil, fmt.Errorf("conditionalLogp: %v", err)
	}

	logps := make(map[*ir.Node]*ir.Node, len(valued.RVs()))
	for _, rv := range valued.RVs() {
		value, _ := valued.Value(rv)

		lp, err := nodeLogp(reg, rv, value, valued)
		if err != nil {
			return nil, fmt.Errorf("conditionalLogp: %w", err)
		}

		// Distribution parameters that are themselves valued variables
		// enter the density graph as their values.
		outs, err := ReplaceRVsByValues([]*ir.Node{lp}, valued)
		if err != nil {
			return nil, fmt.Errorf("conditionalLogp: %v", err)
		}
		logps[value] = outs[0]
	}
	return logps, nil
}

// Logp derives the log-probability graph of a single variable at a value
// placeholder, canonicalizing the variable's graph first.
func Logp(reg *Registry, rv, value *ir.Node) (*ir.Node, error) {
	valued := NewValuedRVs()
	valued.SetValue(rv, value)

	logps, err := ConditionalLogp(reg, nil, valued)
	if err != nil {
		return nil, fmt.Errorf("logp: %w", err)
	}
	return logps[value], nil
}

// nodeLogp derives the log-probability of one canonicalized valued node.
// A transform assigned to the node means its value placeholder lives in
// the transformed space: density is taken at the back-transformed value
// and the Jacobian correction added.
func nodeLogp(reg *Registry, rv, value *ir.Node,
	valued *ValuedRVs) (*ir.Node, error) {
	t, ok := valued.Transform(rv)
	if !ok {
		return dispatchLogp(reg, rv, value)
	}

	back, err := t.Backward(rv, value)
	if err != nil {
		return nil, fmt.Errorf("nodeLogp: transform %v backward: %v",
			t.Name(), err)
	}
	lp, err := dispatchLogp(reg, rv, back)
	if err != nil {
		return nil, err
	}
	jac, err := t.JacobianLogDet(rv, value)
	if err != nil {
		return nil, fmt.Errorf("nodeLogp: transform %v jacobian: %v",
			t.Name(), err)
	}
	return ir.Add(lp, jac)
}

// dispatchLogp routes a measurable node to its density source: primitive
// draws go to the distribution's logprob service, markers to their
// registered density rule. A node that is the element-wise negation of a
// negated-order marker is the user-facing minimum; its density is the
// marker's at the negated value (a unit-Jacobian change of sign).
func dispatchLogp(reg *Registry, rv, value *ir.Node) (*ir.Node, error) {
	op := rv.Op()
	if op == nil {
		return nil, &NoDensityError{Node: rv}
	}

	if _, ok := ir.AsRandomVariable(rv); ok {
		return reg.LogProbOf(rv, value)
	}
	if rule, ok := reg.densityRule(op); ok {
		return rule(reg, op, value, rv.Inputs()...)
	}

	if inner := FindNegatedVar(rv); inner != nil && inner.Op() != nil {
		if rule, ok := reg.densityRule(inner.Op()); ok {
			negValue, err := ir.Neg(value)
			if err != nil {
				return nil, fmt.Errorf("dispatchLogp: %v", err)
			}
			return rule(reg, inner.Op(), negValue, inner.Inputs()...)
		}
	}

	return nil, &NoDensityError{Node: rv}
}
