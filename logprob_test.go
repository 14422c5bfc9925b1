package golp_test

import (
	"math"
	"testing"

	"github.com/samuelfneumann/golp"
	"github.com/samuelfneumann/golp/dist"
	"github.com/samuelfneumann/golp/ir"
	"github.com/samuelfneumann/golp/transform"
	"gorgonia.org/tensor"
)

func TestLogpNormal(t *testing.T) {
	reg := newRegistry(t)

	x, err := dist.Normal(ir.F64(1), ir.F64(2))
	if err != nil {
		t.Fatal(err)
	}
	value := ir.Scalar("value")
	lp, err := golp.Logp(reg, x, value)
	if err != nil {
		t.Fatal(err)
	}

	got := logpAt(t, lp, value, 0.5)
	z := (0.5 - 1.0) / 2.0
	want := -0.5*math.Log(2*math.Pi) - 0.5*z*z - math.Log(2)
	if math.Abs(got-want) > threshold {
		t.Errorf("expected %v but got %v", want, got)
	}
}

// A transform on a valued variable moves its value placeholder into the
// transformed space: density at the back-transformed value plus the
// Jacobian correction.
func TestLogpTransformed(t *testing.T) {
	reg := newRegistry(t)

	const lam = 1.5
	e, err := dist.Exponential(ir.F64(lam))
	if err != nil {
		t.Fatal(err)
	}
	value := ir.Scalar("value")

	valued := golp.NewValuedRVs()
	valued.SetValue(e, value)
	valued.SetTransform(e, transform.Log{})

	logps, err := golp.ConditionalLogp(reg, nil, valued)
	if err != nil {
		t.Fatal(err)
	}
	lp := logps[value]

	for _, y := range []float64{-1.2, 0, 0.4, 2} {
		got := logpAt(t, lp, value, y)
		want := math.Log(lam) - lam*math.Exp(y) + y
		if math.Abs(got-want) > threshold {
			t.Errorf("at %v: expected %v but got %v", y, want, got)
		}
	}
}

// In a hierarchy, a parameter that is itself a valued variable enters the
// dependent density through its value placeholder.
func TestConditionalLogpHierarchy(t *testing.T) {
	reg := newRegistry(t)

	mu, err := dist.Normal(ir.F64(0), ir.F64(1))
	if err != nil {
		t.Fatal(err)
	}
	x, err := dist.Normal(mu, ir.F64(1))
	if err != nil {
		t.Fatal(err)
	}

	muValue := ir.Scalar("muValue")
	xValue := ir.Scalar("xValue")
	valued := golp.NewValuedRVs()
	valued.SetValue(mu, muValue)
	valued.SetValue(x, xValue)

	logps, err := golp.ConditionalLogp(reg, nil, valued)
	if err != nil {
		t.Fatal(err)
	}

	feed := map[*ir.Node]*tensor.Dense{
		muValue: scalarDense(0.2),
		xValue:  scalarDense(0.7),
	}
	got, err := ir.EvalScalar(feed, logps[xValue])
	if err != nil {
		t.Fatal(err)
	}
	z := 0.7 - 0.2
	want := -0.5*math.Log(2*math.Pi) - 0.5*z*z
	if math.Abs(got-want) > threshold {
		t.Errorf("expected %v but got %v", want, got)
	}

	got, err = ir.EvalScalar(feed, logps[muValue])
	if err != nil {
		t.Fatal(err)
	}
	want = -0.5*math.Log(2*math.Pi) - 0.5*0.2*0.2
	if math.Abs(got-want) > threshold {
		t.Errorf("expected %v but got %v", want, got)
	}
}

// Valued variables survive canonicalization: the max marker replaces the
// reduction node and the value binding follows it.
func TestConditionalLogpFollowsRewrite(t *testing.T) {
	reg := newRegistry(t)

	u, err := dist.Uniform(ir.F64(0), ir.F64(1), 3)
	if err != nil {
		t.Fatal(err)
	}
	min := ir.Must(ir.Neg(ir.Must(ir.ReduceMax(ir.Must(ir.Neg(u))))))
	value := ir.Scalar("value")

	valued := golp.NewValuedRVs()
	valued.SetValue(min, value)

	logps, err := golp.ConditionalLogp(reg, nil, valued)
	if err != nil {
		t.Fatal(err)
	}
	got := logpAt(t, logps[value], value, 0.25)
	want := math.Log(3) + 2*math.Log(0.75)
	if math.Abs(got-want) > threshold {
		t.Errorf("expected %v but got %v", want, got)
	}

	// The table now holds the rewritten node, not the original graph.
	rvs := valued.RVs()
	if len(rvs) != 1 {
		t.Fatalf("expected 1 valued variable but got %d", len(rvs))
	}
	if rvs[0] == min {
		t.Error("expected the binding to move off the original node")
	}
}
