package golp

import (
	"fmt"
	"math"

	"github.com/samuelfneumann/golp/ir"
	"gorgonia.org/tensor"
)

// FindNegatedVar recognizes node as the element-wise negation of another
// node and returns the un-negated variable. Negation is either Neg(x) or
// multiplication by a constant -1.
func FindNegatedVar(node *ir.Node) *ir.Node {
	e, ok := node.Op().(*ir.Elemwise)
	if !ok {
		return nil
	}

	switch e.Kind {
	case ir.NegKind:
		return node.Input(0)
	case ir.MulKind:
		a, b := node.Input(0), node.Input(1)
		if v, ok := ir.ScalarConst(a); ok && v == -1 {
			return b
		}
		if v, ok := ir.ScalarConst(b); ok && v == -1 {
			return a
		}
	}
	return nil
}

// CheckPotentialMeasurability reports whether walking backward from any of
// the candidate inputs can reach a measurable node that is not yet
// committed to a value. Nodes that are markers or already valued act as
// opaque barriers: the walk does not look inside them. A true result
// means a prospective rewrite over inputs would capture randomness that
// is still unresolved.
func CheckPotentialMeasurability(reg *Registry, inputs []*ir.Node,
	valued map[*ir.Node]bool) bool {
	expand := func(n *ir.Node) []*ir.Node {
		if n.Op() == nil || reg.IsMeasurable(n) || valued[n] {
			return nil
		}
		next := make([]*ir.Node, 0, len(n.Inputs()))
		for i := len(n.Inputs()) - 1; i >= 0; i-- {
			next = append(next, n.Input(i))
		}
		return next
	}

	found := false
	ir.Walk(inputs, expand, func(n *ir.Node) bool {
		if reg.IsMeasurable(n) && !valued[n] {
			found = true
			return false
		}
		return true
	})
	return found
}

// RVsInGraph returns every node in the graphs rooted at roots that was
// produced by a random draw or a measurable marker, in traversal order.
func RVsInGraph(reg *Registry, roots ...*ir.Node) []*ir.Node {
	var rvs []*ir.Node
	ir.Walk(roots, nil, func(n *ir.Node) bool {
		if reg.IsMeasurable(n) {
			rvs = append(rvs, n)
		}
		return true
	})
	return rvs
}

// ReplaceRVsByValues clones the given graphs with every valued random
// variable replaced by its value placeholder. When a transform is
// assigned to a valued variable, uses of the variable are replaced by the
// back-transformation of its value.
func ReplaceRVsByValues(graphs []*ir.Node,
	valued *ValuedRVs) ([]*ir.Node, error) {
	repl := make(map[*ir.Node]*ir.Node)
	var walkErr error

	ir.Walk(graphs, nil, func(n *ir.Node) bool {
		value, ok := valued.Value(n)
		if !ok {
			return true
		}
		if t, ok := valued.Transform(n); ok {
			back, err := t.Backward(n, value)
			if err != nil {
				walkErr = fmt.Errorf("replaceRVsByValues: could not "+
					"back-transform value of %v: %v", n, err)
				return false
			}
			value = back
		}
		repl[n] = value
		return true
	})
	if walkErr != nil {
		return nil, walkErr
	}

	return ir.CloneReplace(graphs, repl)
}

// ParameterValueError reports an invalid parameter value encountered while
// evaluating a log-probability graph.
type ParameterValueError struct {
	Msg string
}

func (e *ParameterValueError) Error() string {
	return fmt.Sprintf("parameter value error: %v", e.Msg)
}

// CheckParam guards a log-probability expression with a parameter-validity
// condition. Its first input is the guarded expression and its second a
// condition graph; evaluating the node fails with a ParameterValueError
// when the condition does not hold everywhere. CheckParamToNinfSwitch
// rewrites the guard into a switch to negative infinity for targets that
// prefer propagation over failure.
type CheckParam struct {
	Msg string
}

func (c *CheckParam) Name() string { return "CheckParam" }

func (c *CheckParam) Arity() int { return 2 }

func (c *CheckParam) String() string {
	return fmt.Sprintf("CheckParam{%v}", c.Msg)
}

func (c *CheckParam) Infer(inputs ...*ir.Node) (tensor.Dtype, tensor.Shape,
	error) {
	return inputs[0].Dtype(), inputs[0].Shape().Clone(), nil
}

func (c *CheckParam) Do(inputs ...*tensor.Dense) (*tensor.Dense, error) {
	switch data := inputs[1].Data().(type) {
	case float64:
		if data == 0 {
			return nil, &ParameterValueError{Msg: c.Msg}
		}
	case []float64:
		for _, v := range data {
			if v == 0 {
				return nil, &ParameterValueError{Msg: c.Msg}
			}
		}
	default:
		return nil, fmt.Errorf("checkParam: expected a float64 condition "+
			"but got %T", data)
	}
	return inputs[0], nil
}

// WithCheckParam wraps expr so that evaluation fails with a
// ParameterValueError unless cond holds everywhere.
func WithCheckParam(expr, cond *ir.Node, msg string) (*ir.Node, error) {
	return ir.Apply(&CheckParam{Msg: msg}, expr, cond)
}

// CheckParamToNinfSwitch is a rewrite that replaces parameter guards with
// a switch to negative infinity, the behavior wanted when a compiled
// log-probability should propagate impossibility instead of failing.
var CheckParamToNinfSwitch = ir.Rewrite{
	Name:   "CheckParamToNinfSwitch",
	Tracks: []string{"CheckParam"},
	Fn: func(_ *ir.RewriteContext, n *ir.Node) ([]*ir.Node, bool) {
		out, err := ir.Switch(n.Input(1), n.Input(0), ir.F64(math.Inf(-1)))
		if err != nil {
			return nil, false
		}
		return []*ir.Node{out}, true
	},
}
