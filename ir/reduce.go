package ir

import (
	"fmt"
	"math"
	"sort"

	"gorgonia.org/tensor"
)

// Max is a maximum reduction over a set of axes.
type Max struct {
	Axes     []int
	KeepDims bool
}

func (m *Max) Name() string { return "Max" }

func (m *Max) Arity() int { return 1 }

func (m *Max) String() string {
	return fmt.Sprintf("Max{axes=%v, keep=%v}", m.Axes, m.KeepDims)
}

func (m *Max) Infer(inputs ...*Node) (tensor.Dtype, tensor.Shape, error) {
	shape, err := reduceShape(inputs[0].Shape(), m.Axes, m.KeepDims)
	return inputs[0].Dtype(), shape, err
}

func (m *Max) Do(inputs ...*tensor.Dense) (*tensor.Dense, error) {
	return reduceEval(inputs[0], m.Axes, m.KeepDims, math.Inf(-1),
		math.Max)
}

// CoversAll returns whether the reduction axes cover every dimension of an
// ndim-dimensional operand.
func (m *Max) CoversAll(ndim int) bool {
	if len(m.Axes) != ndim {
		return false
	}
	seen := make(map[int]bool, len(m.Axes))
	for _, a := range m.Axes {
		seen[a] = true
	}
	for d := 0; d < ndim; d++ {
		if !seen[d] {
			return false
		}
	}
	return true
}

// Sum is a summation reduction over a set of axes.
type Sum struct {
	Axes     []int
	KeepDims bool
}

func (s *Sum) Name() string { return "Sum" }

func (s *Sum) Arity() int { return 1 }

func (s *Sum) String() string {
	return fmt.Sprintf("Sum{axes=%v, keep=%v}", s.Axes, s.KeepDims)
}

func (s *Sum) Infer(inputs ...*Node) (tensor.Dtype, tensor.Shape, error) {
	shape, err := reduceShape(inputs[0].Shape(), s.Axes, s.KeepDims)
	return tensor.Float64, shape, err
}

func (s *Sum) Do(inputs ...*tensor.Dense) (*tensor.Dense, error) {
	return reduceEval(inputs[0], s.Axes, s.KeepDims, 0,
		func(a, b float64) float64 { return a + b })
}

// normAxes normalizes reduction axes for an operand with ndim dimensions:
// an empty axis list means all axes, and the result is sorted and
// deduplicated.
func normAxes(axes []int, ndim int) []int {
	if len(axes) == 0 {
		all := make([]int, ndim)
		for i := range all {
			all[i] = i
		}
		return all
	}
	out := append([]int(nil), axes...)
	sort.Ints(out)
	return out
}

// ReduceMax reduces x by maximum over the given axes. No axes means a full
// reduction over every dimension.
func ReduceMax(x *Node, axes ...int) (*Node, error) {
	return Apply(&Max{Axes: normAxes(axes, x.Dims())}, x)
}

// ReduceSum reduces x by summation over the given axes. No axes means a
// full reduction over every dimension.
func ReduceSum(x *Node, axes ...int) (*Node, error) {
	return Apply(&Sum{Axes: normAxes(axes, x.Dims())}, x)
}

// SumLast sums x over its last axis, optionally keeping the reduced axis
// as a broadcastable dimension of size 1.
func SumLast(x *Node, keepDims bool) (*Node, error) {
	if x.Dims() == 0 {
		return x, nil
	}
	return Apply(&Sum{Axes: []int{x.Dims() - 1}, KeepDims: keepDims}, x)
}

// MaxLast takes the maximum of x over its last axis.
func MaxLast(x *Node, keepDims bool) (*Node, error) {
	if x.Dims() == 0 {
		return x, nil
	}
	return Apply(&Max{Axes: []int{x.Dims() - 1}, KeepDims: keepDims}, x)
}

func reduceShape(in tensor.Shape, axes []int, keepDims bool) (tensor.Shape,
	error) {
	drop := make(map[int]bool, len(axes))
	for _, a := range axes {
		if a < 0 || a >= len(in) {
			return nil, fmt.Errorf("reduceShape: axis %d out of range for "+
				"shape %v", a, in)
		}
		drop[a] = true
	}
	out := make(tensor.Shape, 0, len(in))
	for d, size := range in {
		if drop[d] {
			if keepDims {
				out = append(out, 1)
			}
			continue
		}
		out = append(out, size)
	}
	return out, nil
}

func reduceEval(in *tensor.Dense, axes []int, keepDims bool, init float64,
	combine func(a, b float64) float64) (*tensor.Dense, error) {
	data, inShape, err := denseFloats(in)
	if err != nil {
		return nil, fmt.Errorf("reduceEval: %v", err)
	}

	outShape, err := reduceShape(inShape, axes, keepDims)
	if err != nil {
		return nil, fmt.Errorf("reduceEval: %v", err)
	}

	drop := make(map[int]bool, len(axes))
	for _, a := range axes {
		drop[a] = true
	}

	out := make([]float64, prodInts(outShape))
	for i := range out {
		out[i] = init
	}

	coords := make([]int, len(inShape))
	outCoords := make([]int, 0, len(outShape))
	for _, v := range data {
		outCoords = outCoords[:0]
		for d, c := range coords {
			if drop[d] {
				if keepDims {
					outCoords = append(outCoords, 0)
				}
				continue
			}
			outCoords = append(outCoords, c)
		}
		j := flatIndex(outShape, outCoords)
		out[j] = combine(out[j], v)
		stepCoords(coords, inShape)
	}

	return newDense(outShape, out), nil
}

// SliceEnd marks "through the end of the axis" in a last-axis slice.
const SliceEnd = int(^uint(0) >> 1)

// LastSlice slices a range out of the last axis of its input. Negative
// bounds index from the end of the axis.
type LastSlice struct {
	Start, Stop int
}

func (s *LastSlice) Name() string { return "LastSlice" }

func (s *LastSlice) Arity() int { return 1 }

func (s *LastSlice) String() string {
	if s.Stop == SliceEnd {
		return fmt.Sprintf("LastSlice{%d:}", s.Start)
	}
	return fmt.Sprintf("LastSlice{%d:%d}", s.Start, s.Stop)
}

func (s *LastSlice) resolve(axis int) (start, stop int, err error) {
	start, stop = s.Start, s.Stop
	if start < 0 {
		start += axis
	}
	if stop == SliceEnd {
		stop = axis
	} else if stop < 0 {
		stop += axis
	}
	if start < 0 || stop > axis || start > stop {
		return 0, 0, fmt.Errorf("bounds [%d:%d) out of range for axis of "+
			"size %d", start, stop, axis)
	}
	return start, stop, nil
}

func (s *LastSlice) Infer(inputs ...*Node) (tensor.Dtype, tensor.Shape,
	error) {
	in := inputs[0].Shape()
	if len(in) == 0 {
		return tensor.Float64, nil, fmt.Errorf("cannot slice a scalar")
	}
	out := in.Clone()
	last := in[len(in)-1]
	if last == UnknownDim {
		out[len(out)-1] = UnknownDim
		return inputs[0].Dtype(), out, nil
	}
	start, stop, err := s.resolve(last)
	if err != nil {
		return tensor.Float64, nil, err
	}
	out[len(out)-1] = stop - start
	return inputs[0].Dtype(), out, nil
}

func (s *LastSlice) Do(inputs ...*tensor.Dense) (*tensor.Dense, error) {
	data, shape, err := denseFloats(inputs[0])
	if err != nil {
		return nil, fmt.Errorf("lastSlice: %v", err)
	}
	last := shape[len(shape)-1]
	start, stop, err := s.resolve(last)
	if err != nil {
		return nil, fmt.Errorf("lastSlice: %v", err)
	}

	outShape := shape.Clone()
	outShape[len(outShape)-1] = stop - start
	out := make([]float64, 0, prodInts(outShape))
	for row := 0; row < len(data)/last; row++ {
		out = append(out, data[row*last+start:row*last+stop]...)
	}
	return newDense(outShape, out), nil
}

// SliceLast returns x[..., start:stop]. Pass SliceEnd as stop to slice
// through the end of the axis.
func SliceLast(x *Node, start, stop int) (*Node, error) {
	return Apply(&LastSlice{Start: start, Stop: stop}, x)
}

// LastConcat concatenates two inputs along their last axis.
type LastConcat struct{}

func (c *LastConcat) Name() string { return "LastConcat" }

func (c *LastConcat) Arity() int { return 2 }

func (c *LastConcat) String() string { return "LastConcat" }

func (c *LastConcat) Infer(inputs ...*Node) (tensor.Dtype, tensor.Shape,
	error) {
	a, b := inputs[0].Shape(), inputs[1].Shape()
	if len(a) == 0 || len(a) != len(b) {
		return tensor.Float64, nil, fmt.Errorf("cannot concatenate shapes "+
			"%v and %v", a, b)
	}
	for d := 0; d < len(a)-1; d++ {
		if a[d] != b[d] && a[d] != UnknownDim && b[d] != UnknownDim {
			return tensor.Float64, nil, fmt.Errorf("leading dimensions of "+
				"%v and %v differ", a, b)
		}
	}
	out := a.Clone()
	la, lb := a[len(a)-1], b[len(b)-1]
	if la == UnknownDim || lb == UnknownDim {
		out[len(out)-1] = UnknownDim
	} else {
		out[len(out)-1] = la + lb
	}
	return tensor.Float64, out, nil
}

func (c *LastConcat) Do(inputs ...*tensor.Dense) (*tensor.Dense, error) {
	a, aShape, err := denseFloats(inputs[0])
	if err != nil {
		return nil, fmt.Errorf("lastConcat: %v", err)
	}
	b, bShape, err := denseFloats(inputs[1])
	if err != nil {
		return nil, fmt.Errorf("lastConcat: %v", err)
	}

	la := aShape[len(aShape)-1]
	lb := bShape[len(bShape)-1]
	outShape := aShape.Clone()
	outShape[len(outShape)-1] = la + lb

	out := make([]float64, 0, prodInts(outShape))
	for row := 0; row < len(a)/la; row++ {
		out = append(out, a[row*la:(row+1)*la]...)
		out = append(out, b[row*lb:(row+1)*lb]...)
	}
	return newDense(outShape, out), nil
}

// ConcatLast concatenates a and b along the last axis.
func ConcatLast(a, b *Node) (*Node, error) {
	return Apply(&LastConcat{}, a, b)
}

// LastCumsum is a running sum along the last axis of its input.
type LastCumsum struct{}

func (c *LastCumsum) Name() string { return "LastCumsum" }

func (c *LastCumsum) Arity() int { return 1 }

func (c *LastCumsum) String() string { return "LastCumsum" }

func (c *LastCumsum) Infer(inputs ...*Node) (tensor.Dtype, tensor.Shape,
	error) {
	if inputs[0].Dims() == 0 {
		return tensor.Float64, nil, fmt.Errorf("cannot cumsum a scalar")
	}
	return tensor.Float64, inputs[0].Shape().Clone(), nil
}

func (c *LastCumsum) Do(inputs ...*tensor.Dense) (*tensor.Dense, error) {
	data, shape, err := denseFloats(inputs[0])
	if err != nil {
		return nil, fmt.Errorf("lastCumsum: %v", err)
	}
	last := shape[len(shape)-1]
	out := make([]float64, len(data))
	for row := 0; row < len(data)/last; row++ {
		acc := 0.0
		for i := 0; i < last; i++ {
			acc += data[row*last+i]
			out[row*last+i] = acc
		}
	}
	return newDense(shape.Clone(), out), nil
}

// CumsumLast computes the running sum of x along its last axis.
func CumsumLast(x *Node) (*Node, error) {
	return Apply(&LastCumsum{}, x)
}

// LastTake gathers a fixed index list from the last axis of its input.
type LastTake struct {
	Idxs []int
}

func (t *LastTake) Name() string { return "LastTake" }

func (t *LastTake) Arity() int { return 1 }

func (t *LastTake) String() string {
	return fmt.Sprintf("LastTake{%v}", t.Idxs)
}

func (t *LastTake) Infer(inputs ...*Node) (tensor.Dtype, tensor.Shape,
	error) {
	in := inputs[0].Shape()
	if len(in) == 0 {
		return tensor.Float64, nil, fmt.Errorf("cannot index a scalar")
	}
	out := in.Clone()
	out[len(out)-1] = len(t.Idxs)
	return inputs[0].Dtype(), out, nil
}

func (t *LastTake) Do(inputs ...*tensor.Dense) (*tensor.Dense, error) {
	data, shape, err := denseFloats(inputs[0])
	if err != nil {
		return nil, fmt.Errorf("lastTake: %v", err)
	}
	last := shape[len(shape)-1]
	outShape := shape.Clone()
	outShape[len(outShape)-1] = len(t.Idxs)
	out := make([]float64, 0, prodInts(outShape))
	for row := 0; row < len(data)/last; row++ {
		for _, i := range t.Idxs {
			if i < 0 || i >= last {
				return nil, fmt.Errorf("lastTake: index %d out of range "+
					"for axis of size %d", i, last)
			}
			out = append(out, data[row*last+i])
		}
	}
	return newDense(outShape, out), nil
}

// TakeLast gathers x[..., idxs].
func TakeLast(x *Node, idxs ...int) (*Node, error) {
	return Apply(&LastTake{Idxs: append([]int(nil), idxs...)}, x)
}

// LastPut scatters replacement values onto a fixed index list of the last
// axis of its first input. The second input supplies the values and must
// have last-axis size len(Idxs).
type LastPut struct {
	Idxs []int
}

func (p *LastPut) Name() string { return "LastPut" }

func (p *LastPut) Arity() int { return 2 }

func (p *LastPut) String() string { return fmt.Sprintf("LastPut{%v}", p.Idxs) }

func (p *LastPut) Infer(inputs ...*Node) (tensor.Dtype, tensor.Shape,
	error) {
	in := inputs[0].Shape()
	vals := inputs[1].Shape()
	if len(in) == 0 {
		return tensor.Float64, nil, fmt.Errorf("cannot index a scalar")
	}
	if lv := vals[len(vals)-1]; lv != UnknownDim && lv != len(p.Idxs) {
		return tensor.Float64, nil, fmt.Errorf("expected %d replacement "+
			"values but got last-axis size %d", len(p.Idxs), lv)
	}
	return inputs[0].Dtype(), in.Clone(), nil
}

func (p *LastPut) Do(inputs ...*tensor.Dense) (*tensor.Dense, error) {
	data, shape, err := denseFloats(inputs[0])
	if err != nil {
		return nil, fmt.Errorf("lastPut: %v", err)
	}
	vals, _, err := denseFloats(inputs[1])
	if err != nil {
		return nil, fmt.Errorf("lastPut: %v", err)
	}

	last := shape[len(shape)-1]
	out := append([]float64(nil), data...)
	for row := 0; row < len(data)/last; row++ {
		for j, i := range p.Idxs {
			if i < 0 || i >= last {
				return nil, fmt.Errorf("lastPut: index %d out of range "+
					"for axis of size %d", i, last)
			}
			out[row*last+i] = vals[row*len(p.Idxs)+j]
		}
	}
	return newDense(shape.Clone(), out), nil
}

// PutLast returns a copy of x with x[..., idxs] replaced by vals.
func PutLast(x, vals *Node, idxs ...int) (*Node, error) {
	return Apply(&LastPut{Idxs: append([]int(nil), idxs...)}, x, vals)
}
