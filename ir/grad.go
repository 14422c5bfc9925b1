package ir

import (
	"fmt"
	"math"
)

// Grad symbolically differentiates an element-wise expression y with
// respect to the variable x, returning the graph of dy/dx. Only chains of
// element-wise operations are supported; reductions, slicing and other
// structural ops have no element-wise derivative and produce an error.
func Grad(y, x *Node) (*Node, error) {
	memo := make(map[*Node]*Node)
	return deriv(y, x, memo)
}

func deriv(n, x *Node, memo map[*Node]*Node) (*Node, error) {
	if d, ok := memo[n]; ok {
		return d, nil
	}

	d, err := derivUncached(n, x, memo)
	if err != nil {
		return nil, err
	}
	memo[n] = d
	return d, nil
}

func derivUncached(n, x *Node, memo map[*Node]*Node) (*Node, error) {
	if n == x {
		return F64(1), nil
	}
	if n.IsVar() || len(n.Inputs()) == 0 {
		return F64(0), nil
	}

	e, ok := n.Op().(*Elemwise)
	if !ok {
		return nil, fmt.Errorf("grad: op %v is not "+
			"element-wise differentiable", n.Op())
	}

	in := n.Inputs()
	din := make([]*Node, len(in))
	for i := range in {
		var err error
		din[i], err = deriv(in[i], x, memo)
		if err != nil {
			return nil, err
		}
	}

	switch e.Kind {
	case NegKind:
		return gneg(din[0])
	case ExpKind:
		return gmul(n, din[0])
	case LogKind:
		return gdiv(din[0], in[0])
	case Log1pKind:
		return gdiv(din[0], Must(Add(F64(1), in[0])))
	case Log1mExpKind:
		// d/da log(1-e^a) = -e^a / (1-e^a) = -e^(a - log1mexp(a))
		ratio := Must(Exp(Must(Sub(in[0], n))))
		return gmul(Must(Neg(ratio)), din[0])
	case SigmoidKind:
		return gmul(n, Must(gmul(Must(gsub(F64(1), n)), din[0])))
	case SoftplusKind:
		return gmul(Must(Sigmoid(in[0])), din[0])
	case ErfKind:
		scale := F64(2 / math.Sqrt(math.Pi))
		gauss := Must(Exp(Must(Neg(Must(Mul(in[0], in[0]))))))
		return gmul(Must(gmul(scale, gauss)), din[0])
	case AbsKind:
		sign := Must(Switch(Must(Ge(in[0], F64(0))), F64(1), F64(-1)))
		return gmul(sign, din[0])
	case FloorKind, EqKind, LtKind, LeKind, GtKind, GeKind, AndKind:
		return F64(0), nil
	case SinKind:
		return gmul(Must(Cos(in[0])), din[0])
	case CosKind:
		return gneg(Must(gmul(Must(Sin(in[0])), din[0])))
	case AddKind:
		return gadd(din[0], din[1])
	case SubKind:
		return gsub(din[0], din[1])
	case MulKind:
		return gadd(Must(gmul(din[0], in[1])), Must(gmul(in[0], din[1])))
	case DivKind:
		num, err := gsub(Must(gmul(din[0], in[1])),
			Must(gmul(in[0], din[1])))
		if err != nil {
			return nil, err
		}
		return gdiv(num, Must(Mul(in[1], in[1])))
	case PowKind:
		return powDeriv(n, in[0], in[1], din[0], din[1])
	case Atan2Kind:
		num, err := gsub(Must(gmul(in[1], din[0])),
			Must(gmul(in[0], din[1])))
		if err != nil {
			return nil, err
		}
		denom := Must(Add(Must(Mul(in[0], in[0])), Must(Mul(in[1], in[1]))))
		return gdiv(num, denom)
	case SwitchKind:
		return Switch(in[0], din[1], din[2])
	default:
		return nil, fmt.Errorf("grad: no derivative rule for %v", e)
	}
}

// powDeriv differentiates a**b, skipping the log(a) term whenever the
// exponent does not depend on x so that constant exponents stay defined
// for non-positive bases.
func powDeriv(n, a, b, da, db *Node) (*Node, error) {
	var terms *Node = F64(0)
	var err error

	if !isZeroConst(da) {
		t := Must(Mul(Must(Mul(b, Must(Pow(a, Must(Sub(b, F64(1))))))), da))
		terms, err = gadd(terms, t)
		if err != nil {
			return nil, err
		}
	}
	if !isZeroConst(db) {
		t := Must(Mul(Must(Mul(n, Must(Log(a)))), db))
		terms, err = gadd(terms, t)
		if err != nil {
			return nil, err
		}
	}
	return terms, nil
}

func isZeroConst(n *Node) bool {
	v, ok := ScalarConst(n)
	return ok && v == 0
}

func isOneConst(n *Node) bool {
	v, ok := ScalarConst(n)
	return ok && v == 1
}

// The g* constructors fold the zero and one constants the chain rule
// produces in bulk, keeping derivative graphs small.

func gadd(a, b *Node) (*Node, error) {
	if isZeroConst(a) {
		return b, nil
	}
	if isZeroConst(b) {
		return a, nil
	}
	return Add(a, b)
}

func gsub(a, b *Node) (*Node, error) {
	if isZeroConst(b) {
		return a, nil
	}
	if isZeroConst(a) {
		return Neg(b)
	}
	return Sub(a, b)
}

func gmul(a, b *Node) (*Node, error) {
	if isZeroConst(a) || isZeroConst(b) {
		return F64(0), nil
	}
	if isOneConst(a) {
		return b, nil
	}
	if isOneConst(b) {
		return a, nil
	}
	return Mul(a, b)
}

func gdiv(a, b *Node) (*Node, error) {
	if isZeroConst(a) {
		return F64(0), nil
	}
	if isOneConst(b) {
		return a, nil
	}
	return Div(a, b)
}

func gneg(a *Node) (*Node, error) {
	if isZeroConst(a) {
		return a, nil
	}
	return Neg(a)
}

