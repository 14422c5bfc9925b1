package golp

import (
	"fmt"

	"github.com/samuelfneumann/golp/ir"
)

// LogDiffExp builds log(exp(a) − exp(b)) without leaving log space,
// as a + log1mexp(b − a). The result is only meaningful where a ≥ b
// element-wise; callers guard the degenerate a = b = −∞ case themselves.
func LogDiffExp(a, b *ir.Node) (*ir.Node, error) {
	d, err := ir.Sub(b, a)
	if err != nil {
		return nil, fmt.Errorf("logDiffExp: %v", err)
	}
	l, err := ir.Log1mExp(d)
	if err != nil {
		return nil, fmt.Errorf("logDiffExp: %v", err)
	}
	return ir.Add(a, l)
}
