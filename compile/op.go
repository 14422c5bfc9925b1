package compile

import (
	"fmt"
	"hash/fnv"

	G "gorgonia.org/gorgonia"
	"gorgonia.org/tensor"
)

// simpleHash constructs the 32-bit FNV-1a hash of a Gorgonia Op.
// Taken from Gorgonia.
func simpleHash(op G.Op) uint32 {
	h := fnv.New32a()
	op.WriteHash(h)
	return h.Sum32()
}

func checkArity(op G.Op, inputs int) error {
	if inputs != op.Arity() && op.Arity() >= 0 {
		return fmt.Errorf("%v has an arity of %d. Got %d instead", op,
			op.Arity(), inputs)
	}
	return nil
}

// applyUnary maps a scalar function over a value, producing a new value
// of the same shape and dtype.
func applyUnary(v G.Value, f64 func(float64) float64,
	f32 func(float32) float32) (G.Value, error) {
	switch val := v.(type) {
	case *G.F64:
		return G.NewF64(f64(float64(*val))), nil

	case *G.F32:
		return G.NewF32(f32(float32(*val))), nil

	case tensor.Tensor:
		ret := tensor.New(
			tensor.WithShape(val.Shape().Clone()...),
			tensor.Of(val.Dtype()),
		)
		switch data := val.Data().(type) {
		case []float64:
			out := ret.Data().([]float64)
			for i, x := range data {
				out[i] = f64(x)
			}
		case []float32:
			out := ret.Data().([]float32)
			for i, x := range data {
				out[i] = f32(x)
			}
		case float64:
			return tensor.New(tensor.FromScalar(f64(data))), nil
		case float32:
			return tensor.New(tensor.FromScalar(f32(data))), nil
		default:
			return nil, fmt.Errorf("applyUnary: unsupported data type %T",
				data)
		}
		return ret, nil

	default:
		return nil, fmt.Errorf("applyUnary: unsupported value type %T", v)
	}
}

// applyBinary maps a two-argument scalar function over equal-shaped
// values.
func applyBinary(a, b G.Value, f64 func(x, y float64) float64,
	f32 func(x, y float32) float32) (G.Value, error) {
	switch av := a.(type) {
	case *G.F64:
		bv, ok := b.(*G.F64)
		if !ok {
			return nil, fmt.Errorf("applyBinary: mismatched value types "+
				"%T and %T", a, b)
		}
		return G.NewF64(f64(float64(*av), float64(*bv))), nil

	case *G.F32:
		bv, ok := b.(*G.F32)
		if !ok {
			return nil, fmt.Errorf("applyBinary: mismatched value types "+
				"%T and %T", a, b)
		}
		return G.NewF32(f32(float32(*av), float32(*bv))), nil

	case tensor.Tensor:
		bv, ok := b.(tensor.Tensor)
		if !ok || !av.Shape().Eq(bv.Shape()) {
			return nil, fmt.Errorf("applyBinary: mismatched operands %v "+
				"and %v", a, b)
		}
		ret := tensor.New(
			tensor.WithShape(av.Shape().Clone()...),
			tensor.Of(av.Dtype()),
		)
		switch ad := av.Data().(type) {
		case []float64:
			bd := bv.Data().([]float64)
			out := ret.Data().([]float64)
			for i, x := range ad {
				out[i] = f64(x, bd[i])
			}
		case []float32:
			bd := bv.Data().([]float32)
			out := ret.Data().([]float32)
			for i, x := range ad {
				out[i] = f32(x, bd[i])
			}
		default:
			return nil, fmt.Errorf("applyBinary: unsupported data type %T",
				ad)
		}
		return ret, nil

	default:
		return nil, fmt.Errorf("applyBinary: unsupported value type %T", a)
	}
}
