package transform

import (
	"math"
	"testing"

	"github.com/samuelfneumann/golp/ir"
	"gorgonia.org/tensor"
)

func vecDense(vs ...float64) *tensor.Dense {
	return tensor.New(
		tensor.WithShape(len(vs)),
		tensor.WithBacking(vs),
	)
}

func evalVecAt(t *testing.T, graph, in *ir.Node, vs ...float64) []float64 {
	t.Helper()
	out, err := ir.Eval(map[*ir.Node]*tensor.Dense{
		in: vecDense(vs...),
	}, graph)
	if err != nil {
		t.Fatal(err)
	}
	return out[0].Data().([]float64)
}

func checkClose(t *testing.T, name string, got, want []float64) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("%v: expected %d elements but got %d", name, len(want),
			len(got))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > threshold {
			t.Errorf("%v element %d: expected %v but got %v", name, i,
				want[i], got[i])
		}
	}
}

func TestOrderedRoundTrip(t *testing.T) {
	x := ir.Vector("x", 4)
	fwd, err := Ordered{}.Forward(nil, x)
	if err != nil {
		t.Fatal(err)
	}
	round, err := Ordered{}.Backward(nil, fwd)
	if err != nil {
		t.Fatal(err)
	}

	in := []float64{-1.5, -0.2, 0.3, 2.7}
	checkClose(t, "ordered", evalVecAt(t, round, x, in...), in)
}

// The backward map of Ordered is lower triangular, so its log-determinant
// can be checked against a finite-difference Jacobian matrix.
func TestOrderedJacobian(t *testing.T) {
	y := ir.Vector("y", 3)
	back, err := Ordered{}.Backward(nil, y)
	if err != nil {
		t.Fatal(err)
	}
	jac, err := Ordered{}.JacobianLogDet(nil, y)
	if err != nil {
		t.Fatal(err)
	}

	in := []float64{0.4, -1.1, 0.6}

	const h = 1e-6
	var m [3][3]float64
	for j := 0; j < 3; j++ {
		hi := append([]float64(nil), in...)
		lo := append([]float64(nil), in...)
		hi[j] += h
		lo[j] -= h
		up := evalVecAt(t, back, y, hi...)
		down := evalVecAt(t, back, y, lo...)
		for i := 0; i < 3; i++ {
			m[i][j] = (up[i] - down[i]) / (2 * h)
		}
	}
	det := m[0][0]*(m[1][1]*m[2][2]-m[1][2]*m[2][1]) -
		m[0][1]*(m[1][0]*m[2][2]-m[1][2]*m[2][0]) +
		m[0][2]*(m[1][0]*m[2][1]-m[1][1]*m[2][0])
	want := math.Log(math.Abs(det))

	out, err := ir.EvalScalar(map[*ir.Node]*tensor.Dense{
		y: vecDense(in...),
	}, jac)
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(out-want) > 1e-4 {
		t.Errorf("expected %v but got %v", want, out)
	}
}

func TestSumTo1RoundTrip(t *testing.T) {
	rv := ir.Vector("rv", 3)
	x := ir.Vector("x", 3)

	fwd, err := SumTo1{}.Forward(rv, x)
	if err != nil {
		t.Fatal(err)
	}
	round, err := SumTo1{}.Backward(rv, fwd)
	if err != nil {
		t.Fatal(err)
	}

	in := []float64{0.2, 0.5, 0.3}
	checkClose(t, "sumto1", evalVecAt(t, round, x, in...), in)
}

func TestSumTo1Degenerate(t *testing.T) {
	rv := ir.Vector("rv", 1)
	x := ir.Vector("x", 1)

	fwd, err := SumTo1{}.Forward(rv, x)
	if err != nil {
		t.Fatal(err)
	}
	if fwd != x {
		t.Error("expected a size-1 simplex to pass through unchanged")
	}
	back, err := SumTo1{}.Backward(rv, x)
	if err != nil {
		t.Fatal(err)
	}
	if back != x {
		t.Error("expected a size-1 simplex to pass through unchanged")
	}
}

func TestStickBreakingRoundTrip(t *testing.T) {
	rv := ir.Vector("rv", 4)
	x := ir.Vector("x", 4)

	fwd, err := StickBreaking{}.Forward(rv, x)
	if err != nil {
		t.Fatal(err)
	}
	round, err := StickBreaking{}.Backward(rv, fwd)
	if err != nil {
		t.Fatal(err)
	}

	in := []float64{0.1, 0.35, 0.15, 0.4}
	checkClose(t, "stickbreaking", evalVecAt(t, round, x, in...), in)

	// The other direction, starting from unconstrained space.
	y := ir.Vector("y", 3)
	back, err := StickBreaking{}.Backward(rv, y)
	if err != nil {
		t.Fatal(err)
	}
	fwd2, err := StickBreaking{}.Forward(rv, back)
	if err != nil {
		t.Fatal(err)
	}
	free := []float64{0.7, -1.2, 0.4}
	checkClose(t, "stickbreaking free", evalVecAt(t, fwd2, y, free...),
		free)
}

// For a 2-simplex the free coordinate is x = sigmoid(2y), so the Jacobian
// log-determinant has the closed form log(2) + log(x) + log(1-x).
func TestStickBreakingJacobian(t *testing.T) {
	rv := ir.Vector("rv", 2)
	y := ir.Vector("y", 1)
	jac, err := StickBreaking{}.JacobianLogDet(rv, y)
	if err != nil {
		t.Fatal(err)
	}

	for _, v := range []float64{-2, -0.5, 0, 0.8, 1.9} {
		out, err := ir.EvalScalar(map[*ir.Node]*tensor.Dense{
			y: vecDense(v),
		}, jac)
		if err != nil {
			t.Fatal(err)
		}
		x := 1 / (1 + math.Exp(-2*v))
		want := math.Log(2) + math.Log(x) + math.Log(1-x)
		if math.Abs(out-want) > threshold {
			t.Errorf("at %v: expected %v but got %v", v, want, out)
		}
	}
}

func TestCholeskyCovPacked(t *testing.T) {
	c := NewCholeskyCovPacked(3)
	x := ir.Vector("x", 6)

	fwd, err := c.Forward(nil, x)
	if err != nil {
		t.Fatal(err)
	}
	round, err := c.Backward(nil, fwd)
	if err != nil {
		t.Fatal(err)
	}

	// Packed row-major lower triangle; diagonal entries sit at 0, 2, 5.
	in := []float64{1.2, -0.3, 0.8, 0.1, -0.5, 2.1}
	checkClose(t, "cholesky", evalVecAt(t, round, x, in...), in)

	jac, err := c.JacobianLogDet(nil, x)
	if err != nil {
		t.Fatal(err)
	}
	out, err := ir.EvalScalar(map[*ir.Node]*tensor.Dense{
		x: vecDense(in...),
	}, jac)
	if err != nil {
		t.Fatal(err)
	}
	want := in[0] + in[2] + in[5]
	if math.Abs(out-want) > threshold {
		t.Errorf("expected %v but got %v", want, out)
	}
}
