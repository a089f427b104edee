package canon

import (
	"hintgraph/tree"
)

// mapStatements rewrites every statement list (module and block bodies)
// bottom-up.
func mapStatements(n *tree.Node, fn func([]*tree.Node) []*tree.Node) *tree.Node {
	return tree.Transform(n, func(x *tree.Node) *tree.Node {
		if x.Type != tree.Module && x.Type != tree.Block {
			return x
		}
		out := fn(x.Children)
		if sameNodes(out, x.Children) {
			return x
		}
		return x.With(out...)
	})
}

func sameNodes(a, b []*tree.Node) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

type clause struct {
	cond *tree.Node
	body *tree.Node
}

// splitIf returns the guarded clauses of an if statement and its else body
// (nil when absent).
func splitIf(n *tree.Node) ([]clause, *tree.Node) {
	clauses := []clause{{n.Child(0), n.Child(1)}}
	var els *tree.Node
	for _, c := range n.Children[2:] {
		switch c.Type {
		case tree.Elif:
			clauses = append(clauses, clause{c.Child(0), c.Child(1)})
		case tree.Else:
			els = c.Child(0)
		}
	}
	return clauses, els
}

// joinIf is the inverse of splitIf. With no clauses left the else body's
// statements replace the whole statement.
func joinIf(clauses []clause, els *tree.Node) []*tree.Node {
	if len(clauses) == 0 {
		if els == nil {
			return nil
		}
		return els.Children
	}
	children := []*tree.Node{clauses[0].cond, clauses[0].body}
	for _, c := range clauses[1:] {
		children = append(children, tree.New(tree.Elif, "", c.cond, c.body))
	}
	if els != nil {
		children = append(children, tree.New(tree.Else, "", els))
	}
	return []*tree.Node{tree.New(tree.If, "", children...)}
}

func emptyBody(b *tree.Node) bool {
	for _, s := range b.Children {
		if s.Type != tree.Pass {
			return false
		}
	}
	return true
}

// RemoveConditionals drops constant, duplicate and empty branches and
// collapses conditionals whose branches are all identical.
func RemoveConditionals(n *tree.Node) *tree.Node {
	return mapStatements(n, func(stmts []*tree.Node) []*tree.Node {
		var out []*tree.Node
		for _, s := range stmts {
			if s.Type != tree.If {
				out = append(out, s)
				continue
			}
			repl := removeConditional(s)
			if len(repl) == 1 && repl[0].Equal(s) {
				out = append(out, s)
				continue
			}
			out = append(out, repl...)
		}
		return out
	})
}

func removeConditional(n *tree.Node) []*tree.Node {
	clauses, els := splitIf(n)

	var kept []clause
	var seen []*tree.Node
	priorPure := true
	for _, c := range clauses {
		if isFalse(c.cond) {
			continue
		}
		if isTrue(c.cond) {
			els = c.body
			break
		}
		if priorPure && containsNode(seen, c.cond) {
			continue
		}
		if !tree.Pure(c.cond) {
			priorPure = false
		}
		seen = append(seen, c.cond)
		kept = append(kept, c)
	}

	if els != nil && emptyBody(els) {
		els = nil
	}
	for els == nil && len(kept) > 0 {
		last := kept[len(kept)-1]
		if !emptyBody(last.body) || !tree.Pure(last.cond) {
			break
		}
		kept = kept[:len(kept)-1]
	}
	if els != nil && len(kept) > 0 {
		identical := true
		for _, c := range kept {
			if !c.body.Equal(els) || !tree.Pure(c.cond) {
				identical = false
				break
			}
		}
		if identical {
			kept = nil
		}
	}
	return joinIf(kept, els)
}

func containsNode(list []*tree.Node, n *tree.Node) bool {
	for _, x := range list {
		if x.Equal(n) {
			return true
		}
	}
	return false
}

// MergeConditionals merges a lone nested if into its parent's condition and
// turns "else: if" into "elif".
func MergeConditionals(n *tree.Node) *tree.Node {
	return tree.Transform(n, mergeConditional)
}

func loneIf(body *tree.Node) *tree.Node {
	if body == nil || len(body.Children) != 1 || body.Child(0).Type != tree.If {
		return nil
	}
	return body.Child(0)
}

func mergeConditional(n *tree.Node) *tree.Node {
	if n.Type != tree.If {
		return n
	}
	if len(n.Children) == 2 {
		if inner := loneIf(n.Child(1)); inner != nil && len(inner.Children) == 2 {
			return n.With(tree.New(tree.BoolOp, "and", n.Child(0), inner.Child(0)), inner.Child(1))
		}
	}
	last := n.Child(len(n.Children) - 1)
	if last.Type != tree.Else {
		return n
	}
	inner := loneIf(last.Child(0))
	if inner == nil {
		return n
	}
	children := append([]*tree.Node{}, n.Children[:len(n.Children)-1]...)
	children = append(children, tree.New(tree.Elif, "", inner.Child(0), inner.Child(1)))
	children = append(children, inner.Children[2:]...)
	return n.With(children...)
}

// PropagateCopies replaces uses of a variable assigned an identifier or a
// literal by that atom in the following statements of the same block, up to
// the first statement that rebinds either side.
func PropagateCopies(n *tree.Node) *tree.Node {
	return mapStatements(n, propagateCopies)
}

func propagateCopies(stmts []*tree.Node) []*tree.Node {
	out := append([]*tree.Node{}, stmts...)
	for i, s := range out {
		if s.Type != tree.Assign {
			continue
		}
		x, y := s.Child(0), s.Child(1)
		if x.Type != tree.Identifier || !tree.IsAtom(y) {
			continue
		}
		if y.Type == tree.Identifier && y.Value == x.Value {
			continue
		}
		for j := i + 1; j < len(out); j++ {
			t := out[j]
			if copyBarrier(t) || binds(t, x.Value) {
				break
			}
			if y.Type == tree.Identifier && binds(t, y.Value) {
				break
			}
			if y.Type != tree.Identifier && usedAsPrimary(t, x.Value) {
				break
			}
			out[j] = substitute(t, x.Value, y)
		}
	}
	return out
}

// copyBarrier reports statements copy propagation never crosses: nested
// scopes, scope declarations and opaque fragments.
func copyBarrier(n *tree.Node) bool {
	barrier := false
	tree.Walk(n, func(x *tree.Node) bool {
		switch x.Type {
		case tree.FuncDef, tree.Global, tree.Nonlocal, tree.Raw:
			barrier = true
		}
		return !barrier
	})
	return barrier
}

// binds reports whether n assigns, deletes or loops over name anywhere,
// including comprehension targets, lambda parameters and as-targets.
func binds(n *tree.Node, name string) bool {
	found := false
	tree.Walk(n, func(x *tree.Node) bool {
		if found {
			return false
		}
		switch x.Type {
		case tree.Assign, tree.AnnAssign, tree.AugAssign, tree.For, tree.ForIn, tree.Lambda:
			if tree.Uses(x.Child(0), name) {
				found = true
			}
		case tree.WithItem, tree.ExceptClause:
			if len(x.Children) > 1 && x.Child(1).Type != tree.Block && tree.Uses(x.Child(1), name) {
				found = true
			}
		case tree.Delete:
			if tree.Uses(x, name) {
				found = true
			}
		}
		return !found
	})
	return found
}

// usedAsPrimary reports whether name is the object of an attribute, call or
// subscript, where a literal could not be substituted textually.
func usedAsPrimary(n *tree.Node, name string) bool {
	found := false
	tree.Walk(n, func(x *tree.Node) bool {
		switch x.Type {
		case tree.Attribute, tree.Call, tree.Subscript:
			if c := x.Child(0); c.Type == tree.Identifier && c.Value == name {
				found = true
			}
		}
		return !found
	})
	return found
}

func substitute(n *tree.Node, name string, with *tree.Node) *tree.Node {
	return tree.Transform(n, func(x *tree.Node) *tree.Node {
		if x.Type == tree.Identifier && x.Value == name {
			return with
		}
		return x
	})
}

func isTerminator(n *tree.Node) bool {
	switch n.Type {
	case tree.Return, tree.Break, tree.Continue, tree.Raise:
		return true
	}
	return false
}

// EliminateDeadCode removes unreachable statements, pass statements and
// pure assignments to function locals that are never read.
func EliminateDeadCode(n *tree.Node) *tree.Node {
	n = mapStatements(n, func(stmts []*tree.Node) []*tree.Node {
		var out []*tree.Node
		for _, s := range stmts {
			if s.Type == tree.Pass {
				continue
			}
			out = append(out, s)
			if isTerminator(s) {
				break
			}
		}
		return out
	})
	return tree.Transform(n, func(x *tree.Node) *tree.Node {
		if x.Type != tree.FuncDef {
			return x
		}
		return removeUnusedLocals(x)
	})
}

func removeUnusedLocals(fn *tree.Node) *tree.Node {
	counts := make(map[string]int)
	opaque := false
	tree.Walk(fn, func(x *tree.Node) bool {
		switch x.Type {
		case tree.Identifier:
			counts[x.Value]++
		case tree.Raw:
			opaque = true
		}
		return true
	})
	if opaque {
		return fn
	}

	bodyIdx := len(fn.Children) - 1
	body := mapStatements(fn.Child(bodyIdx), func(stmts []*tree.Node) []*tree.Node {
		var out []*tree.Node
		for _, s := range stmts {
			if s.Type == tree.Assign && s.Child(0).Type == tree.Identifier &&
				s.Child(1).Type != tree.Assign &&
				counts[s.Child(0).Value] == 1 && tree.Pure(s.Child(1)) {
				continue
			}
			out = append(out, s)
		}
		return out
	})
	if body == fn.Child(bodyIdx) {
		return fn
	}
	children := append([]*tree.Node{}, fn.Children...)
	children[bodyIdx] = body
	return fn.With(children...)
}
