package golp

import (
	"github.com/samuelfneumann/golp/ir"
	"github.com/samuelfneumann/golp/transform"
)

// ValuedRVsFeature is the rewrite-context key under which a ValuedRVs
// table travels through a rewrite session. Recognizer rules that find the
// feature absent decline on every node.
const ValuedRVsFeature = "valuedRVs"

// ValuedRVs is the side table associating random-variable nodes with the
// value placeholders holding their observed (or to-be-inferred) values,
// and optionally with the transform under which a value is parameterized.
// The table owns the association; neither graph node refers to the other.
//
// Attached to a rewrite session, the table also arbitrates which nodes a
// recognizer may claim as about-to-become measurable, and follows marker
// substitutions so that a valued node's entry moves onto its replacement.
type ValuedRVs struct {
	values     map[*ir.Node]*ir.Node
	transforms map[*ir.Node]transform.Transform
	order      []*ir.Node

	// claimed records nodes promoted via RequestMeasurable, so competing
	// recognizers in the same session cannot wrap one another's bases.
	claimed map[*ir.Node]bool
}

// NewValuedRVs returns an empty valued-variable table.
func NewValuedRVs() *ValuedRVs {
	return &ValuedRVs{
		values:     make(map[*ir.Node]*ir.Node),
		transforms: make(map[*ir.Node]transform.Transform),
		claimed:    make(map[*ir.Node]bool),
	}
}

// SetValue binds a random-variable node to its value placeholder.
func (v *ValuedRVs) SetValue(rv, value *ir.Node) {
	if _, ok := v.values[rv]; !ok {
		v.order = append(v.order, rv)
	}
	v.values[rv] = value
}

// Value returns the value placeholder bound to rv, if any.
func (v *ValuedRVs) Value(rv *ir.Node) (*ir.Node, bool) {
	val, ok := v.values[rv]
	return val, ok
}

// SetTransform assigns the transform under which rv's value is
// parameterized.
func (v *ValuedRVs) SetTransform(rv *ir.Node, t transform.Transform) {
	v.transforms[rv] = t
}

// Transform returns the transform assigned to rv, if any.
func (v *ValuedRVs) Transform(rv *ir.Node) (transform.Transform, bool) {
	t, ok := v.transforms[rv]
	return t, ok
}

// RVs returns the valued nodes in the order they were bound.
func (v *ValuedRVs) RVs() []*ir.Node {
	return append([]*ir.Node(nil), v.order...)
}

// Contains reports whether rv is bound to a value.
func (v *ValuedRVs) Contains(rv *ir.Node) bool {
	_, ok := v.values[rv]
	return ok
}

// RequestMeasurable asks whether the given nodes may be claimed as "about
// to become measurable" by a rewrite. A node already committed to a value
// cannot be re-wrapped. On success every input is recorded as claimed and
// true is returned; claims are idempotent, so a rule retrying across
// rewrite passes is not blocked by its own earlier claim.
func (v *ValuedRVs) RequestMeasurable(inputs []*ir.Node) bool {
	for _, in := range inputs {
		if v.Contains(in) {
			return false
		}
	}
	for _, in := range inputs {
		v.claimed[in] = true
	}
	return true
}

// OnReplace follows a rewrite substitution: a valued node replaced by a
// marker carries its value binding (and transform) over to the marker.
func (v *ValuedRVs) OnReplace(old, new *ir.Node) {
	val, ok := v.values[old]
	if !ok {
		return
	}
	delete(v.values, old)
	v.values[new] = val
	for i, rv := range v.order {
		if rv == old {
			v.order[i] = new
		}
	}
	if t, ok := v.transforms[old]; ok {
		delete(v.transforms, old)
		v.transforms[new] = t
	}
}
