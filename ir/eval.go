package ir

import (
	"fmt"

	"gorgonia.org/tensor"
)

// Eval numerically evaluates the graphs rooted at outputs, reading values
// for free variables from feed. Every op reachable from outputs must be
// evaluable (implement Doer); random draws and measurable markers are not,
// by design, and must be rewritten away or conditioned on a value first.
//
// All numeric work happens on dense float64 tensors; integer-typed nodes
// (discrete draws and their values) are carried as float64s holding
// integral values.
func Eval(feed map[*Node]*tensor.Dense,
	outputs ...*Node) ([]*tensor.Dense, error) {
	values := make(map[*Node]*tensor.Dense)

	for _, n := range Toposort(outputs) {
		if n.IsVar() {
			v, ok := feed[n]
			if !ok {
				return nil, fmt.Errorf("eval: no value fed for variable %v",
					n)
			}
			values[n] = v
			continue
		}

		doer, ok := n.Op().(Doer)
		if !ok {
			return nil, fmt.Errorf("eval: op %v cannot be evaluated "+
				"numerically", n.Op())
		}

		args := make([]*tensor.Dense, len(n.Inputs()))
		for i, in := range n.Inputs() {
			args[i] = values[in]
		}

		v, err := doer.Do(args...)
		if err != nil {
			return nil, fmt.Errorf("eval: %v: %w", n.Op(), err)
		}
		values[n] = v
	}

	out := make([]*tensor.Dense, len(outputs))
	for i, o := range outputs {
		out[i] = values[o]
	}
	return out, nil
}

// EvalScalar evaluates a single scalar-valued graph.
func EvalScalar(feed map[*Node]*tensor.Dense, output *Node) (float64,
	error) {
	vals, err := Eval(feed, output)
	if err != nil {
		return 0, err
	}
	data, _, err := denseFloats(vals[0])
	if err != nil {
		return 0, fmt.Errorf("evalScalar: %v", err)
	}
	if len(data) != 1 {
		return 0, fmt.Errorf("evalScalar: expected a single element but "+
			"got shape %v", vals[0].Shape())
	}
	return data[0], nil
}

// denseFloats views a dense tensor as a flat float64 slice plus its shape.
// Integer-backed tensors are converted.
func denseFloats(t *tensor.Dense) ([]float64, tensor.Shape, error) {
	shape := t.Shape().Clone()
	switch data := t.Data().(type) {
	case float64:
		return []float64{data}, tensor.Shape{}, nil
	case []float64:
		return data, shape, nil
	case int:
		return []float64{float64(data)}, tensor.Shape{}, nil
	case []int:
		out := make([]float64, len(data))
		for i, v := range data {
			out[i] = float64(v)
		}
		return out, shape, nil
	default:
		return nil, nil, fmt.Errorf("expected a float64 tensor but got %T",
			data)
	}
}

// newDense wraps a flat float64 slice as a dense tensor of the given
// shape. An empty shape yields a scalar tensor.
func newDense(shape tensor.Shape, backing []float64) *tensor.Dense {
	if len(shape) == 0 {
		return tensor.New(tensor.FromScalar(backing[0]))
	}
	return tensor.New(
		tensor.WithShape([]int(shape)...),
		tensor.WithBacking(backing),
	)
}

func prodInts(shape tensor.Shape) int {
	p := 1
	for _, d := range shape {
		p *= d
	}
	return p
}

// flatIndex converts row-major coordinates into a flat index.
func flatIndex(shape tensor.Shape, coords []int) int {
	idx := 0
	for d, c := range coords {
		idx = idx*shape[d] + c
	}
	return idx
}

// stepCoords advances row-major coordinates by one element.
func stepCoords(coords []int, shape tensor.Shape) {
	for d := len(coords) - 1; d >= 0; d-- {
		coords[d]++
		if coords[d] < shape[d] {
			return
		}
		coords[d] = 0
	}
}

// broadcastEval applies a scalar kernel over the inputs with right-aligned
// shape broadcasting.
func broadcastEval(kernel func(...float64) float64,
	inputs ...*tensor.Dense) (*tensor.Dense, error) {
	datas := make([][]float64, len(inputs))
	shapes := make([]tensor.Shape, len(inputs))
	var err error
	for i, in := range inputs {
		datas[i], shapes[i], err = denseFloats(in)
		if err != nil {
			return nil, fmt.Errorf("broadcastEval: input %d: %v", i, err)
		}
	}

	outShape := shapes[0]
	for _, s := range shapes[1:] {
		outShape, err = BroadcastShapes(outShape, s)
		if err != nil {
			return nil, fmt.Errorf("broadcastEval: %v", err)
		}
	}

	// Per-input strides relative to the output shape; broadcast (and
	// missing leading) dimensions get stride 0.
	strides := make([][]int, len(inputs))
	for i, s := range shapes {
		own := make([]int, len(s))
		acc := 1
		for d := len(s) - 1; d >= 0; d-- {
			own[d] = acc
			acc *= s[d]
		}
		strides[i] = make([]int, len(outShape))
		off := len(outShape) - len(s)
		for d := range outShape {
			if d < off || s[d-off] == 1 {
				continue
			}
			strides[i][d] = own[d-off]
		}
	}

	out := make([]float64, prodInts(outShape))
	coords := make([]int, len(outShape))
	args := make([]float64, len(inputs))
	for j := range out {
		for i := range inputs {
			idx := 0
			for d, c := range coords {
				idx += c * strides[i][d]
			}
			args[i] = datas[i][idx]
		}
		out[j] = kernel(args...)
		stepCoords(coords, outShape)
	}

	return newDense(outShape, out), nil
}
