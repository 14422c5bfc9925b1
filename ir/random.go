package ir

import (
	"fmt"

	"gorgonia.org/tensor"
)

// RandomVariable is a primitive random draw. The op records the identity
// of the distribution, the element type of a draw, the dimensionality of a
// single draw's support (0 for univariate distributions) and the shape of
// the batch of draws. Its inputs are the distribution parameters.
//
// The op deliberately has no Do: this package manipulates random draws
// symbolically and never executes numeric sampling. A random variable
// becomes numerically meaningful only once it is conditioned on a value.
type RandomVariable struct {
	Dist     string
	Dtype    tensor.Dtype
	NdimSupp int
	Size     tensor.Shape
}

func (r *RandomVariable) Name() string { return "RandomVariable" }

func (r *RandomVariable) Arity() int { return -1 }

func (r *RandomVariable) String() string {
	return fmt.Sprintf("%v_rv{size=%v}", r.Dist, r.Size)
}

func (r *RandomVariable) Infer(...*Node) (tensor.Dtype, tensor.Shape,
	error) {
	return r.Dtype, r.Size.Clone(), nil
}

// Rand constructs a batch of draws from the named distribution. size is
// the shape of the batch; params are the distribution parameters in the
// distribution's conventional order.
func Rand(dist string, dt tensor.Dtype, ndimSupp int, size []int,
	params ...*Node) (*Node, error) {
	if dist == "" {
		return nil, fmt.Errorf("rand: empty distribution name")
	}
	op := &RandomVariable{
		Dist:     dist,
		Dtype:    dt,
		NdimSupp: ndimSupp,
		Size:     tensor.Shape(size).Clone(),
	}
	return Apply(op, params...)
}

// AsRandomVariable returns the RandomVariable op owning n, if any.
func AsRandomVariable(n *Node) (*RandomVariable, bool) {
	rv, ok := n.Op().(*RandomVariable)
	return rv, ok
}
