// Package ir provides a small symbolic tensor expression graph. Expressions
// are immutable single-output nodes; each node is either a leaf (a named
// input variable or a constant) or the output of an Op applied to other
// nodes. Graphs are persistent: rewriting never mutates a node in place,
// it builds replacement nodes and re-clones the consumers.
package ir

import (
	"fmt"
	"reflect"

	"gorgonia.org/tensor"
)

// Op is a graph operation. Name is the bare operation name used to track
// nodes in rewrite rules, while String also carries the structural
// parameters (axes, bounds, ...) and is what structural equality compares.
type Op interface {
	Name() string
	Arity() int // -1 means variadic
	Infer(inputs ...*Node) (tensor.Dtype, tensor.Shape, error)
	String() string
}

// Doer is implemented by ops that can be evaluated numerically on dense
// float64 tensors. Ops without a Do (random draws, measurable markers)
// can only exist in symbolic graphs.
type Doer interface {
	Do(inputs ...*tensor.Dense) (*tensor.Dense, error)
}

// Node is a single value in an expression graph. A node with a nil Op is a
// free variable (or a constant, whose owner is the Const op). Shapes are
// static; a dimension of UnknownDim marks a size that is not known at
// graph-construction time.
type Node struct {
	op     Op
	inputs []*Node
	dtype  tensor.Dtype
	shape  tensor.Shape
	name   string
}

// UnknownDim marks a statically unknown dimension in a node's shape.
const UnknownDim = -1

// Op returns the operation that produced the node, or nil for a free
// variable.
func (n *Node) Op() Op { return n.op }

// Inputs returns the inputs of the node's producing operation. The returned
// slice must not be modified.
func (n *Node) Inputs() []*Node { return n.inputs }

// Input returns the i-th input of the node's producing operation.
func (n *Node) Input(i int) *Node { return n.inputs[i] }

// Dtype returns the element type of the node.
func (n *Node) Dtype() tensor.Dtype { return n.dtype }

// Shape returns the static shape of the node. The returned slice must not
// be modified.
func (n *Node) Shape() tensor.Shape { return n.shape }

// Dims returns the number of dimensions of the node.
func (n *Node) Dims() int { return len(n.shape) }

// Name returns the node's name. Derived nodes are unnamed.
func (n *Node) Name() string { return n.name }

// IsVar returns whether the node is a free variable.
func (n *Node) IsVar() bool { return n.op == nil }

func (n *Node) String() string {
	if n.op == nil {
		return fmt.Sprintf("%v%v", n.name, n.shape)
	}
	return fmt.Sprintf("%v%v", n.op, n.shape)
}

// NewVar returns a free variable with the given element type and shape.
func NewVar(name string, dt tensor.Dtype, shape ...int) *Node {
	return &Node{
		dtype: dt,
		shape: tensor.Shape(shape).Clone(),
		name:  name,
	}
}

// Scalar returns a float64 scalar free variable.
func Scalar(name string) *Node {
	return NewVar(name, tensor.Float64)
}

// Vector returns a float64 vector free variable of the given length.
func Vector(name string, n int) *Node {
	return NewVar(name, tensor.Float64, n)
}

// Apply constructs the node produced by applying op to the inputs. The op's
// arity is checked and its result type and shape are inferred; Apply is the
// only way operation nodes enter a graph.
func Apply(op Op, inputs ...*Node) (*Node, error) {
	if op.Arity() >= 0 && len(inputs) != op.Arity() {
		return nil, fmt.Errorf("apply: %v has an arity of %d. Got %d "+
			"instead", op, op.Arity(), len(inputs))
	}
	for i, in := range inputs {
		if in == nil {
			return nil, fmt.Errorf("apply: %v: input %d is nil", op, i)
		}
	}

	dt, shape, err := op.Infer(inputs...)
	if err != nil {
		return nil, fmt.Errorf("apply: %v: %v", op, err)
	}

	return &Node{
		op:     op,
		inputs: append([]*Node(nil), inputs...),
		dtype:  dt,
		shape:  shape,
	}, nil
}

// Must unwraps the (node, error) pair of a graph constructor, panicking on
// error. Use only where the inputs are known to be well formed.
func Must(n *Node, err error) *Node {
	if err != nil {
		panic(err)
	}
	return n
}

// Const is the owner op of constant nodes.
type Const struct {
	Value *tensor.Dense
}

func (c *Const) Name() string { return "Const" }

func (c *Const) Arity() int { return 0 }

func (c *Const) Infer(...*Node) (tensor.Dtype, tensor.Shape, error) {
	return c.Value.Dtype(), c.Value.Shape().Clone(), nil
}

func (c *Const) String() string { return fmt.Sprintf("Const{%v}", c.Value) }

func (c *Const) Do(...*tensor.Dense) (*tensor.Dense, error) {
	return c.Value, nil
}

// NewConst returns a constant node holding v.
func NewConst(v *tensor.Dense) *Node {
	return Must(Apply(&Const{Value: v}))
}

// F64 returns a scalar float64 constant node.
func F64(v float64) *Node {
	return NewConst(tensor.New(tensor.FromScalar(v)))
}

// F64s returns a float64 vector constant node.
func F64s(vs ...float64) *Node {
	return NewConst(tensor.New(
		tensor.WithShape(len(vs)),
		tensor.WithBacking(append([]float64(nil), vs...)),
	))
}

// ConstValue returns the dense value of a constant node, or false if the
// node is not a constant.
func ConstValue(n *Node) (*tensor.Dense, bool) {
	c, ok := n.Op().(*Const)
	if !ok {
		return nil, false
	}
	return c.Value, true
}

// ScalarConst returns the float64 value of a scalar constant node.
func ScalarConst(n *Node) (float64, bool) {
	v, ok := ConstValue(n)
	if !ok || v.Size() != 1 {
		return 0, false
	}
	switch data := v.Data().(type) {
	case float64:
		return data, true
	case []float64:
		return data[0], true
	}
	return 0, false
}

// FoldSize resolves the total number of elements of a node to a
// compile-time constant. It fails if any dimension of the node's static
// shape is unknown.
func FoldSize(n *Node) (int, error) {
	size := 1
	for _, d := range n.Shape() {
		if d < 0 {
			return 0, fmt.Errorf("foldSize: size of %v is not statically "+
				"determinable: shape %v has unknown dimensions", n, n.Shape())
		}
		size *= d
	}
	return size, nil
}

// Equal reports structural equality of two expression graphs. Free
// variables compare by identity, constants by value, and operation nodes
// by op (including structural parameters) and inputs.
func Equal(a, b *Node) bool {
	if a == b {
		return true
	}
	if a == nil || b == nil {
		return false
	}
	if a.IsVar() || b.IsVar() {
		return false // distinct free variables
	}
	ca, aConst := ConstValue(a)
	cb, bConst := ConstValue(b)
	if aConst || bConst {
		if !aConst || !bConst {
			return false
		}
		return ca.Shape().Eq(cb.Shape()) &&
			reflect.DeepEqual(ca.Data(), cb.Data())
	}
	if a.op.String() != b.op.String() || len(a.inputs) != len(b.inputs) {
		return false
	}
	for i := range a.inputs {
		if !Equal(a.inputs[i], b.inputs[i]) {
			return false
		}
	}
	return true
}
