package ir

import "fmt"

// Walk traverses the graphs rooted at roots depth-first. expand returns
// the nodes to visit after a given node; pass nil to expand into a node's
// inputs in reverse declaration order. visit is called once per reached
// node and may return false to stop the walk early.
func Walk(roots []*Node, expand func(*Node) []*Node,
	visit func(*Node) bool) {
	if expand == nil {
		expand = func(n *Node) []*Node {
			next := make([]*Node, 0, len(n.Inputs()))
			for i := len(n.Inputs()) - 1; i >= 0; i-- {
				next = append(next, n.Input(i))
			}
			return next
		}
	}

	stack := make([]*Node, len(roots))
	for i, r := range roots {
		stack[len(roots)-1-i] = r
	}
	seen := make(map[*Node]bool, len(roots))

	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[n] {
			continue
		}
		seen[n] = true

		if !visit(n) {
			return
		}

		next := expand(n)
		for i := len(next) - 1; i >= 0; i-- {
			if !seen[next[i]] {
				stack = append(stack, next[i])
			}
		}
	}
}

// Toposort returns every node reachable from outputs in dependency order:
// each node appears after all of its inputs. The order is deterministic in
// the structure of the graph.
func Toposort(outputs []*Node) []*Node {
	var order []*Node
	seen := make(map[*Node]bool)

	var visit func(n *Node)
	visit = func(n *Node) {
		if seen[n] {
			return
		}
		seen[n] = true
		for _, in := range n.Inputs() {
			visit(in)
		}
		order = append(order, n)
	}

	for _, out := range outputs {
		visit(out)
	}
	return order
}

// CloneReplace rebuilds the graphs rooted at outputs with the given node
// substitutions applied. Nodes outside the substituted sub-graphs are
// shared, not copied; a consumer of a replaced node is rebuilt via Apply
// so its inferred shape stays consistent.
func CloneReplace(outputs []*Node, repl map[*Node]*Node) ([]*Node, error) {
	out, _, err := CloneReplaceTrace(outputs, repl)
	return out, err
}

// CloneReplaceTrace is CloneReplace with an account of its work: the
// returned map holds every node that ended up substituted or rebuilt,
// keyed by the original. Callers tracking per-node state (such as value
// bindings) use it to follow their keys through the rebuild.
func CloneReplaceTrace(outputs []*Node,
	repl map[*Node]*Node) ([]*Node, map[*Node]*Node, error) {
	memo := make(map[*Node]*Node, len(repl))

	var clone func(n *Node) (*Node, error)
	clone = func(n *Node) (*Node, error) {
		if m, ok := memo[n]; ok {
			return m, nil
		}
		if r, ok := repl[n]; ok {
			memo[n] = r
			return r, nil
		}
		if n.IsVar() || len(n.Inputs()) == 0 {
			memo[n] = n
			return n, nil
		}

		changed := false
		newInputs := make([]*Node, len(n.Inputs()))
		for i, in := range n.Inputs() {
			c, err := clone(in)
			if err != nil {
				return nil, err
			}
			newInputs[i] = c
			changed = changed || c != in
		}
		if !changed {
			memo[n] = n
			return n, nil
		}

		rebuilt, err := Apply(n.Op(), newInputs...)
		if err != nil {
			return nil, fmt.Errorf("cloneReplace: could not rebuild %v: %v",
				n, err)
		}
		memo[n] = rebuilt
		return rebuilt, nil
	}

	out := make([]*Node, len(outputs))
	for i, o := range outputs {
		c, err := clone(o)
		if err != nil {
			return nil, nil, err
		}
		out[i] = c
	}

	changed := make(map[*Node]*Node)
	for old, new := range memo {
		if old != new {
			changed[old] = new
		}
	}
	return out, changed, nil
}
