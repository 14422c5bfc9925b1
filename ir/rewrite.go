package ir

import "fmt"

// Rewrite is a single node-rewrite rule. Fn inspects one node and either
// returns replacement outputs for it or declines; declining is the
// dominant path and is not an error. Tracks restricts the rule to nodes
// whose op has one of the listed names.
type Rewrite struct {
	Name   string
	Tracks []string
	Fn     func(ctx *RewriteContext, n *Node) ([]*Node, bool)
}

func (r Rewrite) tracks(n *Node) bool {
	if n.Op() == nil {
		return false
	}
	if len(r.Tracks) == 0 {
		return true
	}
	for _, name := range r.Tracks {
		if n.Op().Name() == name {
			return true
		}
	}
	return false
}

// RewriteContext carries named features through a rewrite session. A
// feature is arbitrary session state a rule may consult (for instance a
// valued-variable mapping); a rule that requires an absent feature should
// decline rather than fail.
type RewriteContext struct {
	features map[string]interface{}
}

// NewRewriteContext returns an empty rewrite context.
func NewRewriteContext() *RewriteContext {
	return &RewriteContext{features: make(map[string]interface{})}
}

// SetFeature attaches a named feature to the context.
func (c *RewriteContext) SetFeature(name string, f interface{}) {
	c.features[name] = f
}

// Feature returns the named feature, if attached.
func (c *RewriteContext) Feature(name string) (interface{}, bool) {
	f, ok := c.features[name]
	return f, ok
}

// ReplacementObserver is implemented by features that must track node
// substitutions, e.g. to move a mapping keyed on a replaced node over to
// its replacement.
type ReplacementObserver interface {
	OnReplace(old, new *Node)
}

type dbEntry struct {
	rewrite Rewrite
	group   string
	tags    []string
}

// RewriteDB is an ordered collection of rewrite rules. Registrations are
// additive for the lifetime of the database; rules are applied in
// registration order. A database may be read from concurrent rewrite
// sessions provided no registration happens concurrently with use.
type RewriteDB struct {
	entries []dbEntry
	byName  map[string]bool
}

// NewRewriteDB returns an empty rewrite database.
func NewRewriteDB() *RewriteDB {
	return &RewriteDB{byName: make(map[string]bool)}
}

// Register adds a rule under a priority group with optional tags. Rule
// names must be unique within a database.
func (db *RewriteDB) Register(r Rewrite, group string,
	tags ...string) error {
	if r.Name == "" {
		return fmt.Errorf("register: rewrite has no name")
	}
	if db.byName[r.Name] {
		return fmt.Errorf("register: rewrite %q already registered", r.Name)
	}
	if r.Fn == nil {
		return fmt.Errorf("register: rewrite %q has no function", r.Name)
	}
	db.byName[r.Name] = true
	db.entries = append(db.entries, dbEntry{
		rewrite: r,
		group:   group,
		tags:    append([]string(nil), tags...),
	})
	return nil
}

// maxRewritePasses bounds the fixed-point iteration. Rules are expected to
// be non-recursive (a rule must decline on its own output), so the bound
// only guards against misbehaving rules.
const maxRewritePasses = 1000

// Rewrite applies the database's rules to the graphs rooted at outputs
// until no rule fires, and returns the rewritten outputs. Features on ctx
// that implement ReplacementObserver are notified of every substitution.
func (db *RewriteDB) Rewrite(ctx *RewriteContext,
	outputs []*Node) ([]*Node, error) {
	if ctx == nil {
		ctx = NewRewriteContext()
	}

	for pass := 0; pass < maxRewritePasses; pass++ {
		fired, next, err := db.applyOnce(ctx, outputs)
		if err != nil {
			return nil, fmt.Errorf("rewrite: %v", err)
		}
		outputs = next
		if !fired {
			return outputs, nil
		}
	}
	return nil, fmt.Errorf("rewrite: no fixed point after %d passes",
		maxRewritePasses)
}

// applyOnce finds the first rule that fires on the graph, substitutes its
// replacement and returns. Node order is topological and rule order is
// registration order, so the result is deterministic.
func (db *RewriteDB) applyOnce(ctx *RewriteContext,
	outputs []*Node) (bool, []*Node, error) {
	for _, n := range Toposort(outputs) {
		for _, e := range db.entries {
			if !e.rewrite.tracks(n) {
				continue
			}

			repl, ok := e.rewrite.Fn(ctx, n)
			if !ok {
				continue
			}
			if len(repl) != 1 || repl[0] == nil {
				return false, nil, fmt.Errorf("rule %q returned %d "+
					"replacements for single-output node %v", e.rewrite.Name,
					len(repl), n)
			}
			if repl[0] == n {
				continue
			}

			next, changed, err := CloneReplaceTrace(outputs,
				map[*Node]*Node{n: repl[0]})
			if err != nil {
				return false, nil, fmt.Errorf("rule %q: %v", e.rewrite.Name,
					err)
			}
			// Consumers of the replaced node are rebuilt too; state keyed
			// on any of them must follow.
			for _, f := range ctx.features {
				obs, ok := f.(ReplacementObserver)
				if !ok {
					continue
				}
				for old, new := range changed {
					obs.OnReplace(old, new)
				}
			}
			return true, next, nil
		}
	}
	return false, outputs, nil
}
