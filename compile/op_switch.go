package compile

import (
	"fmt"
	"hash"

	"github.com/chewxy/hm"
	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// switchOp selects element-wise between its second and third inputs by
// whether the first is nonzero. Unlike a masked arithmetic encoding, the
// unselected branch's value never enters the result, so a -Inf or NaN in
// the dead branch cannot poison it.
type switchOp struct{}

func (s *switchOp) Arity() int { return 3 }

func (s *switchOp) Type() hm.Type {
	a := hm.TypeVariable('a')
	return hm.NewFnType(a, a, a, a)
}

func (s *switchOp) Do(values ...G.Value) (G.Value, error) {
	if err := checkArity(s, len(values)); err != nil {
		return nil, fmt.Errorf("do: %v", err)
	}

	sel, err := applyBinary(values[0], values[1],
		func(c, t float64) float64 {
			if c != 0 {
				return t
			}
			return 0
		},
		func(c, t float32) float32 {
			if c != 0 {
				return t
			}
			return 0
		})
	if err != nil {
		return nil, fmt.Errorf("do: %v", err)
	}
	return applyBinary3(values[0], sel, values[2])
}

// applyBinary3 completes a switch: where cond is zero, take f, otherwise
// keep the already-selected t values.
func applyBinary3(cond, sel, f G.Value) (G.Value, error) {
	out, err := applyBinary(cond, f,
		func(c, fv float64) float64 {
			if c == 0 {
				return fv
			}
			return 0
		},
		func(c, fv float32) float32 {
			if c == 0 {
				return fv
			}
			return 0
		})
	if err != nil {
		return nil, err
	}
	return applyBinary(out, sel,
		func(a, b float64) float64 { return a + b },
		func(a, b float32) float32 { return a + b })
}

func (s *switchOp) ReturnsPtr() bool { return false }

func (s *switchOp) CallsExtern() bool { return false }

func (s *switchOp) OverwritesInput() int { return -1 }

func (s *switchOp) String() string { return "Switch" }

func (s *switchOp) InferShape(inputs ...G.DimSizer) (tensor.Shape, error) {
	if err := checkArity(s, len(inputs)); err != nil {
		return nil, fmt.Errorf("inferShape: %v", err)
	}
	if inputs[0] == nil {
		return nil, fmt.Errorf("inferShape: nil input")
	}

	return inputs[0].(tensor.Shape), nil
}

func (s *switchOp) WriteHash(h hash.Hash) { fmt.Fprintf(h, "Switch()") }

func (s *switchOp) Hashcode() uint32 { return simpleHash(s) }

func (s *switchOp) SymDiff(inputs G.Nodes, output,
	grad *G.Node) (G.Nodes, error) {
	if err := checkArity(s, len(inputs)); err != nil {
		return nil, fmt.Errorf("symDiff: %v", err)
	}

	// The condition is not differentiable; each branch receives the
	// incoming gradient masked to the elements it produced.
	nodes := make(G.Nodes, 3)
	var err error
	nodes[1], err = G.ApplyOp(&switchDiffOp{takeTrue: true}, inputs[0],
		grad)
	if err != nil {
		return nil, fmt.Errorf("symDiff: %v", err)
	}
	nodes[2], err = G.ApplyOp(&switchDiffOp{takeTrue: false}, inputs[0],
		grad)
	if err != nil {
		return nil, fmt.Errorf("symDiff: %v", err)
	}

	return nodes, nil
}

func (s *switchOp) DiffWRT(inputs int) []bool {
	return []bool{false, true, true}
}

// switchDiffOp masks an incoming gradient to the elements where its
// branch of a switch was selected.
type switchDiffOp struct {
	takeTrue bool
}

func (s *switchDiffOp) Arity() int { return 2 }

func (s *switchDiffOp) Type() hm.Type {
	a := hm.TypeVariable('a')
	return hm.NewFnType(a, a, a)
}

func (s *switchDiffOp) Do(values ...G.Value) (G.Value, error) {
	if err := checkArity(s, len(values)); err != nil {
		return nil, fmt.Errorf("do: %v", err)
	}

	takeTrue := s.takeTrue
	return applyBinary(values[0], values[1],
		func(c, g float64) float64 {
			if (c != 0) == takeTrue {
				return g
			}
			return 0
		},
		func(c, g float32) float32 {
			if (c != 0) == takeTrue {
				return g
			}
			return 0
		})
}

func (s *switchDiffOp) ReturnsPtr() bool { return false }

func (s *switchDiffOp) CallsExtern() bool { return false }

func (s *switchDiffOp) OverwritesInput() int { return -1 }

func (s *switchDiffOp) String() string {
	return fmt.Sprintf("SwitchDiff(%v)", s.takeTrue)
}

func (s *switchDiffOp) InferShape(inputs ...G.DimSizer) (tensor.Shape,
	error) {
	if err := checkArity(s, len(inputs)); err != nil {
		return nil, fmt.Errorf("inferShape: %v", err)
	}
	if inputs[0] == nil {
		return nil, fmt.Errorf("inferShape: nil input")
	}

	return inputs[0].(tensor.Shape), nil
}

func (s *switchDiffOp) WriteHash(h hash.Hash) { fmt.Fprint(h, s.String()) }

func (s *switchDiffOp) Hashcode() uint32 { return simpleHash(s) }
