package compile

import (
	"fmt"
	"hash"
	"math"

	"github.com/chewxy/hm"
	"github.com/chewxy/math32"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// log1mExp computes log(1 - exp(x)) for x <= 0 without catastrophic
// cancellation. Inputs of exactly 0 yield -Inf.
func log1mExp(x float64) float64 {
	if x > -math.Ln2 {
		return math.Log(-math.Expm1(x))
	}
	return math.Log1p(-math.Exp(x))
}

func f32Log1mExp(x float32) float32 {
	if x > -math32.Ln2 {
		return math32.Log(-math32.Expm1(x))
	}
	return math32.Log1p(-math32.Exp(x))
}

// log1mExpOp is the element-wise stable log(1 - exp(x)).
type log1mExpOp struct{}

func (l *log1mExpOp) Arity() int { return 1 }

func (l *log1mExpOp) Type() hm.Type {
	a := hm.TypeVariable('a')
	return hm.NewFnType(a, a)
}

func (l *log1mExpOp) Do(values ...G.Value) (G.Value, error) {
	if err := checkArity(l, len(values)); err != nil {
		return nil, fmt.Errorf("do: %v", err)
	}
	if values[0] == nil {
		return nil, fmt.Errorf("do: no input")
	}

	return applyUnary(values[0], log1mExp, f32Log1mExp)
}

func (l *log1mExpOp) ReturnsPtr() bool { return false }

func (l *log1mExpOp) CallsExtern() bool { return false }

func (l *log1mExpOp) OverwritesInput() int { return -1 }

func (l *log1mExpOp) String() string { return "Log1mExp" }

func (l *log1mExpOp) InferShape(inputs ...G.DimSizer) (tensor.Shape,
	error) {
	if err := checkArity(l, len(inputs)); err != nil {
		return nil, fmt.Errorf("inferShape: %v", err)
	}
	if inputs[0] == nil {
		return nil, fmt.Errorf("inferShape: nil input")
	}

	return inputs[0].(tensor.Shape), nil
}

func (l *log1mExpOp) WriteHash(h hash.Hash) { fmt.Fprintf(h, "Log1mExp()") }

func (l *log1mExpOp) Hashcode() uint32 { return simpleHash(l) }

func (l *log1mExpOp) SymDiff(inputs G.Nodes, output,
	grad *G.Node) (G.Nodes, error) {
	if err := checkArity(l, len(inputs)); err != nil {
		return nil, fmt.Errorf("symDiff: %v", err)
	}

	nodes := make(G.Nodes, 1)
	var err error
	nodes[0], err = G.ApplyOp(&log1mExpDiffOp{}, inputs[0], grad)

	return nodes, err
}

func (l *log1mExpOp) DiffWRT(inputs int) []bool { return []bool{true} }

// log1mExpDiffOp scales an incoming gradient by the derivative of
// log(1 - exp(x)), which is -exp(x - log(1 - exp(x))).
type log1mExpDiffOp struct{}

func (l *log1mExpDiffOp) Arity() int { return 2 }

func (l *log1mExpDiffOp) Type() hm.Type {
	a := hm.TypeVariable('a')
	return hm.NewFnType(a, a, a)
}

func (l *log1mExpDiffOp) Do(values ...G.Value) (G.Value, error) {
	if err := checkArity(l, len(values)); err != nil {
		return nil, fmt.Errorf("do: %v", err)
	}

	return applyBinary(values[0], values[1],
		func(x, g float64) float64 {
			return -g * math.Exp(x-log1mExp(x))
		},
		func(x, g float32) float32 {
			return -g * math32.Exp(x-f32Log1mExp(x))
		})
}

func (l *log1mExpDiffOp) ReturnsPtr() bool { return false }

func (l *log1mExpDiffOp) CallsExtern() bool { return false }

func (l *log1mExpDiffOp) OverwritesInput() int { return -1 }

func (l *log1mExpDiffOp) String() string { return "Log1mExpDiff()" }

func (l *log1mExpDiffOp) InferShape(inputs ...G.DimSizer) (tensor.Shape,
	error) {
	if err := checkArity(l, len(inputs)); err != nil {
		return nil, fmt.Errorf("inferShape: %v", err)
	}
	if inputs[0] == nil {
		return nil, fmt.Errorf("inferShape: nil input")
	}

	return inputs[0].(tensor.Shape), nil
}

func (l *log1mExpDiffOp) WriteHash(h hash.Hash) {
	fmt.Fprint(h, l.String())
}

func (l *log1mExpDiffOp) Hashcode() uint32 { return simpleHash(l) }
