package ir

import (
	"fmt"
	"math"

	"gorgonia.org/tensor"
)

// ElemKind enumerates the scalar operations an Elemwise node can apply.
type ElemKind int

const (
	NegKind ElemKind = iota
	ExpKind
	LogKind
	Log1pKind
	Log1mExpKind
	SigmoidKind
	SoftplusKind
	ErfKind
	AbsKind
	FloorKind
	SinKind
	CosKind
	AddKind
	SubKind
	MulKind
	DivKind
	PowKind
	Atan2Kind
	EqKind
	LtKind
	LeKind
	GtKind
	GeKind
	AndKind
	SwitchKind
)

type elemInfo struct {
	name   string
	arity  int
	kernel func(args ...float64) float64
}

var elemTable = map[ElemKind]elemInfo{
	NegKind: {"Neg", 1, func(a ...float64) float64 { return -a[0] }},
	ExpKind: {"Exp", 1, func(a ...float64) float64 { return math.Exp(a[0]) }},
	LogKind: {"Log", 1, func(a ...float64) float64 { return math.Log(a[0]) }},
	Log1pKind: {"Log1p", 1,
		func(a ...float64) float64 { return math.Log1p(a[0]) }},
	Log1mExpKind: {"Log1mExp", 1,
		func(a ...float64) float64 { return log1mexp(a[0]) }},
	SigmoidKind: {"Sigmoid", 1,
		func(a ...float64) float64 { return 1 / (1 + math.Exp(-a[0])) }},
	SoftplusKind: {"Softplus", 1,
		func(a ...float64) float64 { return softplus(a[0]) }},
	ErfKind: {"Erf", 1, func(a ...float64) float64 { return math.Erf(a[0]) }},
	AbsKind: {"Abs", 1, func(a ...float64) float64 { return math.Abs(a[0]) }},
	FloorKind: {"Floor", 1,
		func(a ...float64) float64 { return math.Floor(a[0]) }},
	SinKind: {"Sin", 1, func(a ...float64) float64 { return math.Sin(a[0]) }},
	CosKind: {"Cos", 1, func(a ...float64) float64 { return math.Cos(a[0]) }},
	AddKind: {"Add", 2, func(a ...float64) float64 { return a[0] + a[1] }},
	SubKind: {"Sub", 2, func(a ...float64) float64 { return a[0] - a[1] }},
	MulKind: {"Mul", 2, func(a ...float64) float64 { return a[0] * a[1] }},
	DivKind: {"Div", 2, func(a ...float64) float64 { return a[0] / a[1] }},
	PowKind: {"Pow", 2,
		func(a ...float64) float64 { return math.Pow(a[0], a[1]) }},
	Atan2Kind: {"Atan2", 2,
		func(a ...float64) float64 { return math.Atan2(a[0], a[1]) }},
	EqKind: {"Eq", 2, func(a ...float64) float64 { return b2f(a[0] == a[1]) }},
	LtKind: {"Lt", 2, func(a ...float64) float64 { return b2f(a[0] < a[1]) }},
	LeKind: {"Le", 2, func(a ...float64) float64 { return b2f(a[0] <= a[1]) }},
	GtKind: {"Gt", 2, func(a ...float64) float64 { return b2f(a[0] > a[1]) }},
	GeKind: {"Ge", 2, func(a ...float64) float64 { return b2f(a[0] >= a[1]) }},
	AndKind: {"And", 2,
		func(a ...float64) float64 { return b2f(a[0] != 0 && a[1] != 0) }},
	SwitchKind: {"Switch", 3, func(a ...float64) float64 {
		if a[0] != 0 {
			return a[1]
		}
		return a[2]
	}},
}

func b2f(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

func softplus(x float64) float64 {
	if x > 30 {
		return x
	}
	return math.Log1p(math.Exp(x))
}

// log1mexp computes log(1 - exp(x)) for x <= 0 without catastrophic
// cancellation. Inputs of exactly 0 yield -Inf.
func log1mexp(x float64) float64 {
	if x > -math.Ln2 {
		return math.Log(-math.Expm1(x))
	}
	return math.Log1p(-math.Exp(x))
}

// Elemwise applies a scalar operation element-wise over its inputs, with
// standard right-aligned shape broadcasting.
type Elemwise struct {
	Kind ElemKind
}

func (e *Elemwise) Name() string { return elemTable[e.Kind].name }

func (e *Elemwise) Arity() int { return elemTable[e.Kind].arity }

func (e *Elemwise) String() string { return e.Name() }

func (e *Elemwise) Infer(inputs ...*Node) (tensor.Dtype, tensor.Shape,
	error) {
	shape := inputs[0].Shape()
	var err error
	for _, in := range inputs[1:] {
		shape, err = BroadcastShapes(shape, in.Shape())
		if err != nil {
			return tensor.Float64, nil, err
		}
	}
	return tensor.Float64, shape, nil
}

func (e *Elemwise) Do(inputs ...*tensor.Dense) (*tensor.Dense, error) {
	return broadcastEval(elemTable[e.Kind].kernel, inputs...)
}

// BroadcastShapes returns the shape that results from broadcasting a
// against b, aligning trailing dimensions. A known dimension broadcasts
// against 1; an unknown dimension stays unknown.
func BroadcastShapes(a, b tensor.Shape) (tensor.Shape, error) {
	if len(b) > len(a) {
		a, b = b, a
	}
	out := a.Clone()
	off := len(a) - len(b)
	for i, db := range b {
		da := a[off+i]
		switch {
		case da == db:
		case db == 1:
		case da == 1:
			out[off+i] = db
		case da == UnknownDim || db == UnknownDim:
			out[off+i] = UnknownDim
		default:
			return nil, fmt.Errorf("broadcastShapes: cannot broadcast %v "+
				"with %v", a, b)
		}
	}
	return out, nil
}

func elemwise(kind ElemKind, inputs ...*Node) (*Node, error) {
	return Apply(&Elemwise{Kind: kind}, inputs...)
}

// Neg negates x element-wise.
func Neg(x *Node) (*Node, error) { return elemwise(NegKind, x) }

// Exp computes the element-wise exponential of x.
func Exp(x *Node) (*Node, error) { return elemwise(ExpKind, x) }

// Log computes the element-wise natural logarithm of x.
func Log(x *Node) (*Node, error) { return elemwise(LogKind, x) }

// Log1p computes log(1 + x) element-wise.
func Log1p(x *Node) (*Node, error) { return elemwise(Log1pKind, x) }

// Log1mExp computes log(1 - exp(x)) element-wise, stably, for x <= 0.
func Log1mExp(x *Node) (*Node, error) { return elemwise(Log1mExpKind, x) }

// Sigmoid computes the element-wise logistic function of x.
func Sigmoid(x *Node) (*Node, error) { return elemwise(SigmoidKind, x) }

// Softplus computes log(1 + exp(x)) element-wise.
func Softplus(x *Node) (*Node, error) { return elemwise(SoftplusKind, x) }

// Erf computes the element-wise error function of x.
func Erf(x *Node) (*Node, error) { return elemwise(ErfKind, x) }

// Abs computes the element-wise absolute value of x.
func Abs(x *Node) (*Node, error) { return elemwise(AbsKind, x) }

// Floor computes the element-wise floor of x.
func Floor(x *Node) (*Node, error) { return elemwise(FloorKind, x) }

// Sin computes the element-wise sine of x.
func Sin(x *Node) (*Node, error) { return elemwise(SinKind, x) }

// Cos computes the element-wise cosine of x.
func Cos(x *Node) (*Node, error) { return elemwise(CosKind, x) }

// Add computes a + b with broadcasting.
func Add(a, b *Node) (*Node, error) { return elemwise(AddKind, a, b) }

// Sub computes a - b with broadcasting.
func Sub(a, b *Node) (*Node, error) { return elemwise(SubKind, a, b) }

// Mul computes a * b element-wise with broadcasting.
func Mul(a, b *Node) (*Node, error) { return elemwise(MulKind, a, b) }

// Div computes a / b element-wise with broadcasting.
func Div(a, b *Node) (*Node, error) { return elemwise(DivKind, a, b) }

// Pow computes a ** b element-wise with broadcasting.
func Pow(a, b *Node) (*Node, error) { return elemwise(PowKind, a, b) }

// Atan2 computes atan2(y, x) element-wise with broadcasting.
func Atan2(y, x *Node) (*Node, error) { return elemwise(Atan2Kind, y, x) }

// Eq compares a == b element-wise, returning 1.0 or 0.0.
func Eq(a, b *Node) (*Node, error) { return elemwise(EqKind, a, b) }

// Lt compares a < b element-wise, returning 1.0 or 0.0.
func Lt(a, b *Node) (*Node, error) { return elemwise(LtKind, a, b) }

// Le compares a <= b element-wise, returning 1.0 or 0.0.
func Le(a, b *Node) (*Node, error) { return elemwise(LeKind, a, b) }

// Gt compares a > b element-wise, returning 1.0 or 0.0.
func Gt(a, b *Node) (*Node, error) { return elemwise(GtKind, a, b) }

// Ge compares a >= b element-wise, returning 1.0 or 0.0.
func Ge(a, b *Node) (*Node, error) { return elemwise(GeKind, a, b) }

// And computes the element-wise logical conjunction of a and b.
func And(a, b *Node) (*Node, error) { return elemwise(AndKind, a, b) }

// Switch selects t where cond is nonzero and f elsewhere, element-wise.
func Switch(cond, t, f *Node) (*Node, error) {
	return elemwise(SwitchKind, cond, t, f)
}
