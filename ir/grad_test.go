package ir

import (
	"math"
	"testing"

	"golang.org/x/exp/rand"
	"gorgonia.org/tensor"
)

const gradThreshold float64 = 1e-5 // Threshold at which floats are equal
const gradTests int = 30

// numDeriv computes a central finite difference of f at v.
func numDeriv(t *testing.T, y, x *Node, v float64) float64 {
	t.Helper()
	const h = 1e-6
	hi, err := EvalScalar(map[*Node]*tensor.Dense{x: scalarDense(v + h)}, y)
	if err != nil {
		t.Fatal(err)
	}
	lo, err := EvalScalar(map[*Node]*tensor.Dense{x: scalarDense(v - h)}, y)
	if err != nil {
		t.Fatal(err)
	}
	return (hi - lo) / (2 * h)
}

func TestGrad(t *testing.T) {
	cases := []struct {
		name  string
		build func(x *Node) (*Node, error)
		draw  func(rng *rand.Rand) float64
	}{
		{
			"exp", func(x *Node) (*Node, error) { return Exp(x) },
			func(rng *rand.Rand) float64 { return rng.Float64()*4 - 2 },
		},
		{
			"log", func(x *Node) (*Node, error) { return Log(x) },
			func(rng *rand.Rand) float64 { return rng.Float64()*3 + 0.1 },
		},
		{
			"sigmoid", func(x *Node) (*Node, error) { return Sigmoid(x) },
			func(rng *rand.Rand) float64 { return rng.Float64()*8 - 4 },
		},
		{
			"softplus", func(x *Node) (*Node, error) { return Softplus(x) },
			func(rng *rand.Rand) float64 { return rng.Float64()*8 - 4 },
		},
		{
			"log1mexp", func(x *Node) (*Node, error) { return Log1mExp(x) },
			func(rng *rand.Rand) float64 { return -rng.Float64()*3 - 0.1 },
		},
		{
			"erf", func(x *Node) (*Node, error) { return Erf(x) },
			func(rng *rand.Rand) float64 { return rng.Float64()*4 - 2 },
		},
		{
			"logistic", func(x *Node) (*Node, error) {
				// log(x / (1-x))
				return Log(Must(Div(x, Must(Sub(F64(1), x)))))
			},
			func(rng *rand.Rand) float64 { return rng.Float64()*0.9 + 0.05 },
		},
		{
			"pow", func(x *Node) (*Node, error) { return Pow(x, F64(3)) },
			func(rng *rand.Rand) float64 { return rng.Float64()*2 + 0.1 },
		},
	}

	rng := rand.New(rand.NewSource(42))
	for _, c := range cases {
		x := Scalar("x")
		y, err := c.build(x)
		if err != nil {
			t.Fatal(err)
		}
		dy, err := Grad(y, x)
		if err != nil {
			t.Fatalf("%v: %v", c.name, err)
		}

		for i := 0; i < gradTests; i++ {
			v := c.draw(rng)
			got, err := EvalScalar(
				map[*Node]*tensor.Dense{x: scalarDense(v)}, dy)
			if err != nil {
				t.Fatal(err)
			}
			want := numDeriv(t, y, x, v)
			if math.Abs(got-want) > gradThreshold {
				t.Errorf("%v at %v: expected %v but got %v", c.name, v,
					want, got)
			}
		}
	}
}

func TestGradUnrelated(t *testing.T) {
	x := Scalar("x")
	z := Scalar("z")
	y := Must(Exp(z))

	dy, err := Grad(y, x)
	if err != nil {
		t.Fatal(err)
	}
	got, err := EvalScalar(map[*Node]*tensor.Dense{
		x: scalarDense(1),
		z: scalarDense(1),
	}, dy)
	if err != nil {
		t.Fatal(err)
	}
	if got != 0 {
		t.Errorf("expected 0 but got %v", got)
	}
}
