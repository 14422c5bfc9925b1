package golp_test

import (
	"errors"
	"math"
	"testing"

	"github.com/samuelfneumann/golp"
	"github.com/samuelfneumann/golp/dist"
	"github.com/samuelfneumann/golp/ir"
	"gorgonia.org/tensor"
)

const threshold float64 = 0.00001 // Threshold at which floats are equal

func newRegistry(t *testing.T) *golp.Registry {
	t.Helper()
	reg := golp.NewRegistry()
	dist.RegisterAll(reg)
	return reg
}

func scalarDense(v float64) *tensor.Dense {
	return tensor.New(tensor.FromScalar(v))
}

// logpAt evaluates a log-probability graph at a scalar value.
func logpAt(t *testing.T, lp, value *ir.Node, v float64) float64 {
	t.Helper()
	out, err := ir.EvalScalar(map[*ir.Node]*tensor.Dense{
		value: scalarDense(v),
	}, lp)
	if err != nil {
		t.Fatal(err)
	}
	return out
}

func TestMaxLogProbUniform(t *testing.T) {
	reg := newRegistry(t)

	u, err := dist.Uniform(ir.F64(0), ir.F64(1), 3)
	if err != nil {
		t.Fatal(err)
	}
	max := ir.Must(ir.ReduceMax(u))
	value := ir.Scalar("value")

	lp, err := golp.Logp(reg, max, value)
	if err != nil {
		t.Fatal(err)
	}

	// max of 3 i.i.d. U(0,1) draws: log(3) + 2 log(x).
	got := logpAt(t, lp, value, 0.85)
	want := math.Log(3) + 2*math.Log(0.85)
	if math.Abs(got-want) > threshold {
		t.Errorf("expected %v but got %v", want, got)
	}

	// Outside the support the density vanishes.
	if got := logpAt(t, lp, value, 1.3); !math.IsInf(got, -1) {
		t.Errorf("expected -Inf but got %v", got)
	}
}

func TestMaxLogProbNormalization(t *testing.T) {
	reg := newRegistry(t)

	u, err := dist.Uniform(ir.F64(0), ir.F64(1), 3)
	if err != nil {
		t.Fatal(err)
	}
	max := ir.Must(ir.ReduceMax(u))
	value := ir.Scalar("value")

	lp, err := golp.Logp(reg, max, value)
	if err != nil {
		t.Fatal(err)
	}

	// Trapezoid rule over the support.
	const steps = 2000
	h := 1.0 / steps
	total := 0.0
	for i := 0; i <= steps; i++ {
		d := math.Exp(logpAt(t, lp, value, float64(i)*h))
		if i == 0 || i == steps {
			d /= 2
		}
		total += d * h
	}
	if math.Abs(total-1) > 1e-4 {
		t.Errorf("expected the density to integrate to 1 but got %v", total)
	}
}

func TestMaxLogProbDiscreteUniform(t *testing.T) {
	reg := newRegistry(t)

	d, err := dist.DiscreteUniform(ir.F64(0), ir.F64(4), 3)
	if err != nil {
		t.Fatal(err)
	}
	max := ir.Must(ir.ReduceMax(d))
	value := ir.Scalar("value")

	lp, err := golp.Logp(reg, max, value)
	if err != nil {
		t.Fatal(err)
	}

	// max of 3 i.i.d. draws over {0..4}: P(max = 2) = 0.6^3 - 0.4^3.
	got := logpAt(t, lp, value, 2)
	want := math.Log(math.Pow(0.6, 3) - math.Pow(0.4, 3))
	if math.Abs(got-want) > threshold {
		t.Errorf("expected %v but got %v", want, got)
	}

	// The mass function sums to one over the support.
	total := 0.0
	for v := 0.0; v <= 4; v++ {
		total += math.Exp(logpAt(t, lp, value, v))
	}
	if math.Abs(total-1) > threshold {
		t.Errorf("expected the mass to sum to 1 but got %v", total)
	}
}

func TestMinLogProbUniform(t *testing.T) {
	reg := newRegistry(t)

	u, err := dist.Uniform(ir.F64(0), ir.F64(1), 3)
	if err != nil {
		t.Fatal(err)
	}
	min := ir.Must(ir.Neg(ir.Must(ir.ReduceMax(ir.Must(ir.Neg(u))))))
	value := ir.Scalar("value")

	lp, err := golp.Logp(reg, min, value)
	if err != nil {
		t.Fatal(err)
	}

	// min of 3 i.i.d. U(0,1) draws: log(3) + 2 log(1-x).
	got := logpAt(t, lp, value, 0.3)
	want := math.Log(3) + 2*math.Log(0.7)
	if math.Abs(got-want) > threshold {
		t.Errorf("expected %v but got %v", want, got)
	}
}

// The minimum of draws from D and the maximum of draws from the negated
// distribution are the same variable up to sign.
func TestMinMaxDuality(t *testing.T) {
	reg := newRegistry(t)

	u, err := dist.Uniform(ir.F64(0), ir.F64(1), 3)
	if err != nil {
		t.Fatal(err)
	}
	min := ir.Must(ir.Neg(ir.Must(ir.ReduceMax(ir.Must(ir.Neg(u))))))
	minValue := ir.Scalar("minValue")
	minLogp, err := golp.Logp(reg, min, minValue)
	if err != nil {
		t.Fatal(err)
	}

	negU, err := dist.Uniform(ir.F64(-1), ir.F64(0), 3)
	if err != nil {
		t.Fatal(err)
	}
	max := ir.Must(ir.ReduceMax(negU))
	maxValue := ir.Scalar("maxValue")
	maxLogp, err := golp.Logp(reg, max, maxValue)
	if err != nil {
		t.Fatal(err)
	}

	for _, v := range []float64{0.05, 0.3, 0.5, 0.77, 0.95} {
		gotMin := logpAt(t, minLogp, minValue, v)
		gotMax := logpAt(t, maxLogp, maxValue, -v)
		if math.Abs(gotMin-gotMax) > threshold {
			t.Errorf("at %v: min gave %v but negated max gave %v", v,
				gotMin, gotMax)
		}
	}
}

func TestMinLogProbDiscreteUniform(t *testing.T) {
	reg := newRegistry(t)

	d, err := dist.DiscreteUniform(ir.F64(0), ir.F64(4), 3)
	if err != nil {
		t.Fatal(err)
	}
	min := ir.Must(ir.Neg(ir.Must(ir.ReduceMax(ir.Must(ir.Neg(d))))))
	value := ir.Scalar("value")

	lp, err := golp.Logp(reg, min, value)
	if err != nil {
		t.Fatal(err)
	}

	// P(min = 0) = 1 - (4/5)^3.
	got := logpAt(t, lp, value, 0)
	want := math.Log(1 - math.Pow(0.8, 3))
	if math.Abs(got-want) > threshold {
		t.Errorf("expected %v but got %v", want, got)
	}

	total := 0.0
	for v := 0.0; v <= 4; v++ {
		total += math.Exp(logpAt(t, lp, value, v))
	}
	if math.Abs(total-1) > threshold {
		t.Errorf("expected the mass to sum to 1 but got %v", total)
	}

	// Past the support both survival terms vanish; the result must be
	// -Inf, not the NaN a naive log-space subtraction would produce.
	if got := logpAt(t, lp, value, 7); !math.IsInf(got, -1) {
		t.Errorf("expected -Inf but got %v", got)
	}
}

func TestRecognizerRejections(t *testing.T) {
	reg := newRegistry(t)

	u3 := func() *ir.Node {
		u, err := dist.Uniform(ir.F64(0), ir.F64(1), 3)
		if err != nil {
			t.Fatal(err)
		}
		return u
	}

	cases := []struct {
		name  string
		build func() *ir.Node
	}{
		{
			// The reduced operand must be a draw, not a derived quantity.
			"non-random operand",
			func() *ir.Node {
				shifted := ir.Must(ir.Add(u3(), ir.F64(1)))
				return ir.Must(ir.ReduceMax(shifted))
			},
		},
		{
			// A per-element parameter breaks the i.i.d. condition.
			"vector parameter",
			func() *ir.Node {
				low := ir.Vector("low", 3)
				u, err := dist.Uniform(low, ir.F64(1), 3)
				if err != nil {
					t.Fatal(err)
				}
				return ir.Must(ir.ReduceMax(u))
			},
		},
		{
			// Multivariate supports have no scalar order statistics.
			"non-scalar support",
			func() *ir.Node {
				mv, err := ir.Rand("mvdraw", tensor.Float64, 1,
					[]int{4, 2}, ir.Scalar("loc"))
				if err != nil {
					t.Fatal(err)
				}
				return ir.Must(ir.ReduceMax(mv))
			},
		},
		{
			// A partial reduction is a batch of maxima, not one maximum.
			"partial-axis reduction",
			func() *ir.Node {
				u, err := dist.Uniform(ir.F64(0), ir.F64(1), 2, 3)
				if err != nil {
					t.Fatal(err)
				}
				return ir.Must(ir.ReduceMax(u, 1))
			},
		},
	}

	for _, c := range cases {
		rv := c.build()
		value := ir.NewVar("value", tensor.Float64, rv.Shape()...)

		_, err := golp.Logp(reg, rv, value)
		var nde *golp.NoDensityError
		if !errors.As(err, &nde) {
			t.Errorf("%v: expected a no-density error but got %v", c.name,
				err)
		}
	}
}

// A base draw that already carries its own value cannot be re-wrapped as
// the operand of a measurable maximum.
func TestRecognizerRejectsValuedBase(t *testing.T) {
	reg := newRegistry(t)

	u, err := dist.Uniform(ir.F64(0), ir.F64(1), 3)
	if err != nil {
		t.Fatal(err)
	}
	max := ir.Must(ir.ReduceMax(u))

	valued := golp.NewValuedRVs()
	valued.SetValue(u, ir.Vector("uValue", 3))
	valued.SetValue(max, ir.Scalar("maxValue"))

	_, err = golp.ConditionalLogp(reg, nil, valued)
	var nde *golp.NoDensityError
	if !errors.As(err, &nde) {
		t.Errorf("expected a no-density error but got %v", err)
	}
}
