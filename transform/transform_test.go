package transform

import (
	"math"
	"testing"

	"github.com/samuelfneumann/golp/ir"
	"golang.org/x/exp/rand"
	"gorgonia.org/tensor"
)

const threshold float64 = 0.00001 // Threshold at which floats are equal
const tests int = 30

func scalarDense(v float64) *tensor.Dense {
	return tensor.New(tensor.FromScalar(v))
}

func evalScalarAt(t *testing.T, graph, in *ir.Node, v float64) float64 {
	t.Helper()
	out, err := ir.EvalScalar(map[*ir.Node]*tensor.Dense{
		in: scalarDense(v),
	}, graph)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func unitInterval() Interval {
	return Interval{Bounds: func(*ir.Node) (*ir.Node, *ir.Node) {
		return ir.F64(0), ir.F64(1)
	}}
}

func positiveHalfLine() Interval {
	return Interval{Bounds: func(*ir.Node) (*ir.Node, *ir.Node) {
		return ir.F64(0), nil
	}}
}

func TestScalarRoundTrips(t *testing.T) {
	cases := []struct {
		tr   Transform
		draw func(rng *rand.Rand) float64
	}{
		{Log{}, func(rng *rand.Rand) float64 {
			return rng.Float64()*5 + 0.01
		}},
		{LogExpM1{}, func(rng *rand.Rand) float64 {
			return rng.Float64()*5 + 0.01
		}},
		{LogOdds{}, func(rng *rand.Rand) float64 {
			return rng.Float64()*0.98 + 0.01
		}},
		{unitInterval(), func(rng *rand.Rand) float64 {
			return rng.Float64()*0.98 + 0.01
		}},
		{positiveHalfLine(), func(rng *rand.Rand) float64 {
			return rng.Float64()*5 + 0.01
		}},
		{Circular{}, func(rng *rand.Rand) float64 {
			return rng.Float64()*2*math.Pi - math.Pi
		}},
	}

	rng := rand.New(rand.NewSource(3))
	for _, c := range cases {
		x := ir.Scalar("x")
		fwd, err := c.tr.Forward(nil, x)
		if err != nil {
			t.Fatalf("%v: %v", c.tr.Name(), err)
		}
		round, err := c.tr.Backward(nil, fwd)
		if err != nil {
			t.Fatalf("%v: %v", c.tr.Name(), err)
		}

		for i := 0; i < tests; i++ {
			v := c.draw(rng)
			got := evalScalarAt(t, round, x, v)
			if math.Abs(got-v) > threshold {
				t.Errorf("%v: round trip of %v gave %v", c.tr.Name(), v,
					got)
			}
		}
	}
}

// Every scalar Jacobian must agree with log|d Backward(v)/dv| measured by
// finite differences on the backward map.
func TestScalarJacobians(t *testing.T) {
	cases := []struct {
		tr   Transform
		draw func(rng *rand.Rand) float64
	}{
		{Log{}, func(rng *rand.Rand) float64 {
			return rng.Float64()*4 - 2
		}},
		{LogExpM1{}, func(rng *rand.Rand) float64 {
			return rng.Float64()*4 - 2
		}},
		{LogOdds{}, func(rng *rand.Rand) float64 {
			return rng.Float64()*6 - 3
		}},
		{unitInterval(), func(rng *rand.Rand) float64 {
			return rng.Float64()*6 - 3
		}},
		{positiveHalfLine(), func(rng *rand.Rand) float64 {
			return rng.Float64()*4 - 2
		}},
	}

	rng := rand.New(rand.NewSource(5))
	for _, c := range cases {
		v := ir.Scalar("v")
		back, err := c.tr.Backward(nil, v)
		if err != nil {
			t.Fatalf("%v: %v", c.tr.Name(), err)
		}
		jac, err := c.tr.JacobianLogDet(nil, v)
		if err != nil {
			t.Fatalf("%v: %v", c.tr.Name(), err)
		}

		const h = 1e-6
		for i := 0; i < tests; i++ {
			y := c.draw(rng)
			hi := evalScalarAt(t, back, v, y+h)
			lo := evalScalarAt(t, back, v, y-h)
			want := math.Log(math.Abs((hi - lo) / (2 * h)))

			got := evalScalarAt(t, jac, v, y)
			if math.Abs(got-want) > 1e-4 {
				t.Errorf("%v at %v: expected %v but got %v", c.tr.Name(),
					y, want, got)
			}
		}
	}
}

func TestIntervalUnbounded(t *testing.T) {
	free := Interval{Bounds: func(*ir.Node) (*ir.Node, *ir.Node) {
		return nil, nil
	}}

	x := ir.Scalar("x")
	fwd, err := free.Forward(nil, x)
	if err != nil {
		t.Fatal(err)
	}
	if fwd != x {
		t.Error("expected an unbounded interval to pass values through")
	}
	jac, err := free.JacobianLogDet(nil, x)
	if err != nil {
		t.Fatal(err)
	}
	if got := evalScalarAt(t, jac, x, 1.7); got != 0 {
		t.Errorf("expected 0 but got %v", got)
	}
}
