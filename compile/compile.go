// Package compile lowers symbolic value graphs onto Gorgonia expression
// graphs, so that derived log-density expressions can be evaluated on a
// tape machine and differentiated for gradient-based inference.
//
// The supported surface is the one density graphs are made of: scalars
// and same-shaped tensors through the element-wise operations, full-axis
// reductions, and the stable probability kernels (erf, log1mexp, switch),
// the latter supplied as custom ops. Structural last-axis operations,
// random draws and parameter guards do not lower; guards are expected to
// be rewritten into switches first.
package compile

import (
	"fmt"

	"github.com/samuelfneumann/golp/ir"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// Compiled is a Gorgonia expression graph lowered from value graphs,
// together with the mapping from the original leaves to their Gorgonia
// counterparts.
type Compiled struct {
	graph   *G.ExprGraph
	inputs  map[*ir.Node]*G.Node
	outputs []*G.Node
}

// Compile lowers the graphs rooted at outputs onto a fresh expression
// graph.
func Compile(outputs ...*ir.Node) (*Compiled, error) {
	c := &Compiled{
		graph:  G.NewGraph(),
		inputs: make(map[*ir.Node]*G.Node),
	}

	lowered := make(map[*ir.Node]*G.Node)
	nConst := 0
	for _, n := range ir.Toposort(outputs) {
		gn, err := c.lower(n, lowered, &nConst)
		if err != nil {
			return nil, fmt.Errorf("compile: %v", err)
		}
		lowered[n] = gn
	}

	c.outputs = make([]*G.Node, len(outputs))
	for i, out := range outputs {
		c.outputs[i] = lowered[out]
	}
	return c, nil
}

// Graph returns the underlying expression graph.
func (c *Compiled) Graph() *G.ExprGraph { return c.graph }

// Input returns the Gorgonia node lowered from the leaf variable n.
func (c *Compiled) Input(n *ir.Node) (*G.Node, bool) {
	gn, ok := c.inputs[n]
	return gn, ok
}

// Output returns the i-th lowered output node.
func (c *Compiled) Output(i int) *G.Node { return c.outputs[i] }

// Run binds the given leaf values, evaluates the graph on a tape machine
// and returns the output values.
func (c *Compiled) Run(feed map[*ir.Node]interface{}) ([]G.Value, error) {
	for n, v := range feed {
		gn, ok := c.inputs[n]
		if !ok {
			return nil, fmt.Errorf("run: %v is not an input of the "+
				"compiled graph", n)
		}
		if err := G.Let(gn, v); err != nil {
			return nil, fmt.Errorf("run: could not bind %v: %v", n, err)
		}
	}

	vm := G.NewTapeMachine(c.graph)
	defer vm.Close()
	if err := vm.RunAll(); err != nil {
		return nil, fmt.Errorf("run: %v", err)
	}

	out := make([]G.Value, len(c.outputs))
	for i, o := range c.outputs {
		out[i] = o.Value()
	}
	return out, nil
}

func (c *Compiled) lower(n *ir.Node, lowered map[*ir.Node]*G.Node,
	nConst *int) (*G.Node, error) {
	if n.IsVar() {
		gn, err := c.lowerVar(n)
		if err != nil {
			return nil, err
		}
		c.inputs[n] = gn
		return gn, nil
	}

	ins := make([]*G.Node, len(n.Inputs()))
	for i, in := range n.Inputs() {
		ins[i] = lowered[in]
	}

	switch op := n.Op().(type) {
	case *ir.Const:
		return c.lowerConst(n, nConst)
	case *ir.Elemwise:
		return lowerElemwise(op.Kind, ins)
	case *ir.Max:
		if op.KeepDims {
			return nil, fmt.Errorf("kept reduction dimensions do not lower")
		}
		return G.Max(ins[0], op.Axes...)
	case *ir.Sum:
		if op.KeepDims {
			return nil, fmt.Errorf("kept reduction dimensions do not lower")
		}
		return G.Sum(ins[0], op.Axes...)
	default:
		return nil, fmt.Errorf("operation %v does not lower", n.Op())
	}
}

func (c *Compiled) lowerVar(n *ir.Node) (*G.Node, error) {
	if n.Dtype() != tensor.Float64 {
		return nil, fmt.Errorf("variable %v: only float64 graphs lower",
			n)
	}

	shape := n.Shape()
	for _, d := range shape {
		if d == ir.UnknownDim {
			return nil, fmt.Errorf("variable %v has an unknown dimension",
				n)
		}
	}

	switch len(shape) {
	case 0:
		return G.NewScalar(c.graph, G.Float64, G.WithName(n.Name())), nil
	case 1:
		return G.NewVector(c.graph, G.Float64, G.WithShape(shape...),
			G.WithName(n.Name())), nil
	default:
		return G.NewTensor(c.graph, G.Float64, len(shape),
			G.WithShape(shape...), G.WithName(n.Name())), nil
	}
}

func (c *Compiled) lowerConst(n *ir.Node, nConst *int) (*G.Node, error) {
	v, ok := ir.ConstValue(n)
	if !ok {
		return nil, fmt.Errorf("constant %v has no value", n)
	}
	name := fmt.Sprintf("const_%d", *nConst)
	*nConst++

	if s, ok := ir.ScalarConst(n); ok {
		return G.NewScalar(c.graph, G.Float64, G.WithValue(s),
			G.WithName(name)), nil
	}
	if len(v.Shape()) != 1 {
		return nil, fmt.Errorf("constant %v: only scalar and vector "+
			"constants lower", n)
	}
	return G.NewVector(c.graph, G.Float64, G.WithShape(v.Shape()...),
		G.WithValue(v), G.WithName(name)), nil
}

// mulNodes multiplies two nodes, element-wise for equal-shaped tensors.
func mulNodes(a, b *G.Node) (*G.Node, error) {
	if a.IsScalar() || b.IsScalar() {
		return G.Mul(a, b)
	}
	return G.HadamardProd(a, b)
}

func divNodes(a, b *G.Node) (*G.Node, error) {
	if a.IsScalar() || b.IsScalar() {
		return G.Div(a, b)
	}
	return G.HadamardDiv(a, b)
}

func lowerElemwise(kind ir.ElemKind, ins []*G.Node) (*G.Node, error) {
	switch kind {
	case ir.NegKind:
		return G.Neg(ins[0])
	case ir.ExpKind:
		return G.Exp(ins[0])
	case ir.LogKind:
		return G.Log(ins[0])
	case ir.Log1pKind:
		return G.Log1p(ins[0])
	case ir.Log1mExpKind:
		return G.ApplyOp(&log1mExpOp{}, ins[0])
	case ir.SigmoidKind:
		return G.Sigmoid(ins[0])
	case ir.SoftplusKind:
		return G.Softplus(ins[0])
	case ir.ErfKind:
		return G.ApplyOp(&erfOp{}, ins[0])
	case ir.AbsKind:
		return G.Abs(ins[0])
	case ir.SinKind:
		return G.Sin(ins[0])
	case ir.CosKind:
		return G.Cos(ins[0])
	case ir.AddKind:
		return G.Add(ins[0], ins[1])
	case ir.SubKind:
		return G.Sub(ins[0], ins[1])
	case ir.MulKind:
		return mulNodes(ins[0], ins[1])
	case ir.DivKind:
		return divNodes(ins[0], ins[1])
	case ir.PowKind:
		return G.Pow(ins[0], ins[1])
	case ir.EqKind:
		return G.Eq(ins[0], ins[1], true)
	case ir.LtKind:
		return G.Lt(ins[0], ins[1], true)
	case ir.LeKind:
		return G.Lte(ins[0], ins[1], true)
	case ir.GtKind:
		return G.Gt(ins[0], ins[1], true)
	case ir.GeKind:
		return G.Gte(ins[0], ins[1], true)
	case ir.AndKind:
		return mulNodes(ins[0], ins[1])
	case ir.SwitchKind:
		return G.ApplyOp(&switchOp{}, ins[0], ins[1], ins[2])
	default:
		return nil, fmt.Errorf("element-wise kind %d does not lower", kind)
	}
}
