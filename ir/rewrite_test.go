package ir

import (
	"testing"

	"gorgonia.org/tensor"
)

// expLogRule collapses Exp(Log(x)) to x.
func expLogRule() Rewrite {
	return Rewrite{
		Name:   "local_exp_log",
		Tracks: []string{"Exp"},
		Fn: func(ctx *RewriteContext, n *Node) ([]*Node, bool) {
			in := n.Input(0)
			if in.Op() == nil || in.Op().Name() != "Log" {
				return nil, false
			}
			return []*Node{in.Input(0)}, true
		},
	}
}

func TestCloneReplace(t *testing.T) {
	x := Scalar("x")
	y := Scalar("y")
	sum := Must(Add(x, y))
	out := Must(Mul(sum, sum))

	repl, err := CloneReplace([]*Node{out}, map[*Node]*Node{y: F64(2)})
	if err != nil {
		t.Fatal(err)
	}
	got, err := EvalScalar(map[*Node]*tensor.Dense{x: scalarDense(3)},
		repl[0])
	if err != nil {
		t.Fatal(err)
	}
	if got != 25 {
		t.Errorf("expected 25 but got %v", got)
	}
	// The original graph is untouched.
	if out.Input(0).Input(1) != y {
		t.Error("expected the source graph to keep its inputs")
	}
}

func TestRewriteFixedPoint(t *testing.T) {
	db := NewRewriteDB()
	if err := db.Register(expLogRule(), "basic"); err != nil {
		t.Fatal(err)
	}

	// exp(log(exp(log(x)))) needs two firings to reach x.
	x := Scalar("x")
	g := Must(Exp(Must(Log(Must(Exp(Must(Log(x))))))))

	out, err := db.Rewrite(NewRewriteContext(), []*Node{g})
	if err != nil {
		t.Fatal(err)
	}
	if out[0] != x {
		t.Errorf("expected the graph to collapse to x but got %v", out[0])
	}
}

func TestRewriteDuplicateName(t *testing.T) {
	db := NewRewriteDB()
	if err := db.Register(expLogRule(), "basic"); err != nil {
		t.Fatal(err)
	}
	if err := db.Register(expLogRule(), "basic"); err == nil {
		t.Error("expected a duplicate registration to fail")
	}
}

type replacementLog struct {
	pairs map[*Node]*Node
}

func (l *replacementLog) OnReplace(old, new *Node) {
	l.pairs[old] = new
}

func TestRewriteNotifiesObservers(t *testing.T) {
	db := NewRewriteDB()
	if err := db.Register(expLogRule(), "basic"); err != nil {
		t.Fatal(err)
	}

	x := Scalar("x")
	inner := Must(Exp(Must(Log(x))))
	outer := Must(Neg(inner))

	log := &replacementLog{pairs: make(map[*Node]*Node)}
	ctx := NewRewriteContext()
	ctx.SetFeature("log", log)

	out, err := db.Rewrite(ctx, []*Node{outer})
	if err != nil {
		t.Fatal(err)
	}

	// Both the matched node and its rebuilt consumer are reported.
	if log.pairs[inner] != x {
		t.Errorf("expected inner to map to x but got %v", log.pairs[inner])
	}
	if log.pairs[outer] != out[0] {
		t.Errorf("expected outer to map to the new root but got %v",
			log.pairs[outer])
	}
}
