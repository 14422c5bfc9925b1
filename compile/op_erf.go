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

// erfOp is the element-wise error function.
type erfOp struct{}

func (e *erfOp) Arity() int { return 1 }

func (e *erfOp) Type() hm.Type {
	// All pointwise unary operations have this type:
	// op :: (Arithable a) => a -> a
	a := hm.TypeVariable('a')
	return hm.NewFnType(a, a)
}

func (e *erfOp) Do(values ...G.Value) (G.Value, error) {
	if err := checkArity(e, len(values)); err != nil {
		return nil, fmt.Errorf("do: %v", err)
	}
	if values[0] == nil {
		return nil, fmt.Errorf("do: no input")
	}

	return applyUnary(values[0], math.Erf, math32.Erf)
}

func (e *erfOp) ReturnsPtr() bool { return false }

func (e *erfOp) CallsExtern() bool { return false }

func (e *erfOp) OverwritesInput() int { return -1 }

func (e *erfOp) String() string { return "Erf" }

func (e *erfOp) InferShape(inputs ...G.DimSizer) (tensor.Shape, error) {
	if err := checkArity(e, len(inputs)); err != nil {
		return nil, fmt.Errorf("inferShape: %v", err)
	}
	if inputs[0] == nil {
		return nil, fmt.Errorf("inferShape: nil input")
	}

	return inputs[0].(tensor.Shape), nil
}

func (e *erfOp) WriteHash(h hash.Hash) { fmt.Fprintf(h, "Erf()") }

func (e *erfOp) Hashcode() uint32 { return simpleHash(e) }

func (e *erfOp) SymDiff(inputs G.Nodes, output,
	grad *G.Node) (G.Nodes, error) {
	if err := checkArity(e, len(inputs)); err != nil {
		return nil, fmt.Errorf("symDiff: %v", err)
	}

	nodes := make(G.Nodes, 1)
	var err error
	nodes[0], err = G.ApplyOp(&erfDiffOp{}, inputs[0], grad)

	return nodes, err
}

func (e *erfOp) DiffWRT(inputs int) []bool { return []bool{true} }

// erfDiffOp scales an incoming gradient by the derivative of erf,
// 2/sqrt(pi)·exp(-x²).
type erfDiffOp struct{}

func (e *erfDiffOp) Arity() int { return 2 }

func (e *erfDiffOp) Type() hm.Type {
	a := hm.TypeVariable('a')
	return hm.NewFnType(a, a, a)
}

func (e *erfDiffOp) Do(values ...G.Value) (G.Value, error) {
	if err := checkArity(e, len(values)); err != nil {
		return nil, fmt.Errorf("do: %v", err)
	}

	scale := 2 / math.Sqrt(math.Pi)
	return applyBinary(values[0], values[1],
		func(x, g float64) float64 {
			return g * scale * math.Exp(-x*x)
		},
		func(x, g float32) float32 {
			return g * float32(scale) * math32.Exp(-x*x)
		})
}

func (e *erfDiffOp) ReturnsPtr() bool { return false }

func (e *erfDiffOp) CallsExtern() bool { return false }

func (e *erfDiffOp) OverwritesInput() int { return -1 }

func (e *erfDiffOp) String() string { return "ErfDiff()" }

func (e *erfDiffOp) InferShape(inputs ...G.DimSizer) (tensor.Shape, error) {
	if err := checkArity(e, len(inputs)); err != nil {
		return nil, fmt.Errorf("inferShape: %v", err)
	}
	if inputs[0] == nil {
		return nil, fmt.Errorf("inferShape: nil input")
	}

	return inputs[0].(tensor.Shape), nil
}

func (e *erfDiffOp) WriteHash(h hash.Hash) { fmt.Fprint(h, e.String()) }

func (e *erfDiffOp) Hashcode() uint32 { return simpleHash(e) }
