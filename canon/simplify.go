package canon

import (
	"hintgraph/tree"
)

func isTrue(n *tree.Node) bool  { return n != nil && n.Type == tree.True }
func isFalse(n *tree.Node) bool { return n != nil && n.Type == tree.False }

func isInt(n *tree.Node, v string) bool {
	return n != nil && n.Type == tree.Integer && n.Value == v
}

func isNumber(n *tree.Node) bool {
	return n != nil && (n.Type == tree.Integer || n.Type == tree.Float)
}

// singleCompare returns the operator of a two-operand comparison.
func singleCompare(n *tree.Node) (string, bool) {
	if n == nil || n.Type != tree.Compare || len(n.Children) != 2 {
		return "", false
	}
	ops := tree.CompareOps(n)
	if len(ops) != 1 {
		return "", false
	}
	return ops[0], true
}

// CleanOperators removes comparisons against boolean literals, boolean
// operators with a literal side, arithmetic identities and parentheses.
// The tree carries precedence, so the renderer restores any parentheses
// that are needed.
func CleanOperators(n *tree.Node) *tree.Node {
	return tree.Transform(n, cleanOperator)
}

func cleanOperator(n *tree.Node) *tree.Node {
	switch n.Type {
	case tree.Paren:
		return n.Child(0)
	case tree.Compare:
		op, ok := singleCompare(n)
		if !ok {
			return n
		}
		l, r := n.Child(0), n.Child(1)
		if isTrue(l) || isFalse(l) {
			l, r = r, l
		}
		switch {
		case (op == "==" && isTrue(r)) || (op == "!=" && isFalse(r)):
			return l
		case (op == "==" && isFalse(r)) || (op == "!=" && isTrue(r)):
			return tree.New(tree.NotOp, "", l)
		}
	case tree.BoolOp:
		l, r := n.Child(0), n.Child(1)
		if n.Value == "and" {
			switch {
			case isTrue(l):
				return r
			case isTrue(r):
				return l
			case isFalse(l):
				return l
			case isFalse(r) && tree.Pure(l):
				return r
			}
		} else {
			switch {
			case isFalse(l):
				return r
			case isFalse(r):
				return l
			case isTrue(l):
				return l
			case isTrue(r) && tree.Pure(l):
				return r
			}
		}
	case tree.NotOp:
		switch {
		case isTrue(n.Child(0)):
			return tree.Leaf(tree.False, "")
		case isFalse(n.Child(0)):
			return tree.Leaf(tree.True, "")
		}
	case tree.BinaryOp:
		l, r := n.Child(0), n.Child(1)
		switch n.Value {
		case "+":
			if isInt(r, "0") {
				return l
			}
			if isInt(l, "0") {
				return r
			}
		case "-":
			if isInt(r, "0") {
				return l
			}
		case "*":
			if isInt(r, "1") {
				return l
			}
			if isInt(l, "1") {
				return r
			}
		case "**":
			if isInt(r, "1") {
				return l
			}
		}
	}
	return n
}

// CleanRanges drops default range bounds and slice parts, and strips type
// annotations from parameters, return types and valued assignments.
func CleanRanges(n *tree.Node) *tree.Node {
	return tree.Transform(n, cleanRange)
}

func isCallTo(n *tree.Node, name string) bool {
	return n != nil && n.Type == tree.Call &&
		n.Child(0).Type == tree.Identifier && n.Child(0).Value == name
}

func omitted() *tree.Node { return tree.Leaf(tree.Omitted, "") }

func cleanRange(n *tree.Node) *tree.Node {
	switch n.Type {
	case tree.Call:
		if !isCallTo(n, "range") {
			return n
		}
		args := n.Child(1)
		switch len(args.Children) {
		case 2:
			if isInt(args.Child(0), "0") {
				return n.With(n.Child(0), args.With(args.Child(1)))
			}
		case 3:
			if isInt(args.Child(2), "1") {
				return n.With(n.Child(0), args.With(args.Child(0), args.Child(1)))
			}
		}
	case tree.Subscript:
		if len(n.Children) != 2 || n.Child(1).Type != tree.Slice {
			return n
		}
		seq, sl := n.Child(0), n.Child(1)
		start, stop, step := sl.Child(0), sl.Child(1), sl.Child(2)
		changed := false
		if isInt(start, "0") {
			start, changed = omitted(), true
		}
		if isInt(step, "1") {
			step, changed = omitted(), true
		}
		if isCallTo(stop, "len") && len(stop.Child(1).Children) == 1 &&
			stop.Child(1).Child(0).Equal(seq) && tree.Pure(seq) {
			stop, changed = omitted(), true
		}
		if changed {
			return n.With(seq, sl.With(start, stop, step))
		}
	case tree.TypedParam:
		return n.Child(0)
	case tree.TypedDefault:
		return tree.New(tree.DefaultParam, "", n.Child(0), n.Child(2))
	case tree.FuncDef:
		if rt := n.Child(2); rt != nil && rt.Type == tree.ReturnType {
			return n.With(n.Child(0), n.Child(1), n.Child(3))
		}
	case tree.AnnAssign:
		if v := n.Child(2); v != nil {
			return tree.New(tree.Assign, "", n.Child(0), v)
		}
	}
	return n
}

var inverseCompare = map[string]string{
	"==": "!=", "!=": "==",
	"<": ">=", ">=": "<",
	">": "<=", "<=": ">",
	"in": "not in", "not in": "in",
	"is": "is not", "is not": "is",
}

// CleanNegation removes double negation and pushes not into a single
// comparison by inverting its operator.
func CleanNegation(n *tree.Node) *tree.Node {
	return tree.Transform(n, cleanNegation)
}

func cleanNegation(n *tree.Node) *tree.Node {
	switch n.Type {
	case tree.NotOp:
		inner := n.Child(0)
		if inner.Type == tree.NotOp {
			return inner.Child(0)
		}
		if op, ok := singleCompare(inner); ok {
			if inv, ok := inverseCompare[op]; ok {
				return inner.WithValue(inv)
			}
		}
	case tree.UnaryOp:
		inner := n.Child(0)
		if n.Value == "-" && inner.Type == tree.UnaryOp && inner.Value == "-" {
			return inner.Child(0)
		}
	}
	return n
}

// DeMorgan rewrites "not a or not b" to "not (a and b)" and the dual. Only
// the direction that removes a node is applied.
func DeMorgan(n *tree.Node) *tree.Node {
	return tree.Transform(n, deMorgan)
}

func deMorgan(n *tree.Node) *tree.Node {
	if n.Type != tree.BoolOp {
		return n
	}
	l, r := n.Child(0), n.Child(1)
	if l.Type != tree.NotOp || r.Type != tree.NotOp {
		return n
	}
	dual := "and"
	if n.Value == "and" {
		dual = "or"
	}
	return tree.New(tree.NotOp, "", tree.New(tree.BoolOp, dual, l.Child(0), r.Child(0)))
}

var flippedCompare = map[string]string{">": "<", ">=": "<="}

// OrderOperands sorts the operands of commutative operators by their
// canonical serialization and turns > and >= into < and <=. Operands with
// calls keep their evaluation order.
func OrderOperands(n *tree.Node) *tree.Node {
	return tree.Transform(n, orderOperands)
}

func outOfOrder(l, r *tree.Node) bool {
	return tree.Pure(l) && tree.Pure(r) && l.String() > r.String()
}

func orderOperands(n *tree.Node) *tree.Node {
	switch n.Type {
	case tree.BinaryOp:
		l, r := n.Child(0), n.Child(1)
		switch n.Value {
		case "*", "&", "|", "^":
		case "+":
			if !isNumber(l) && !isNumber(r) {
				return n
			}
		default:
			return n
		}
		if outOfOrder(l, r) {
			return n.With(r, l)
		}
	case tree.BoolOp:
		if outOfOrder(n.Child(0), n.Child(1)) {
			return n.With(n.Child(1), n.Child(0))
		}
	case tree.Compare:
		op, ok := singleCompare(n)
		if !ok {
			return n
		}
		l, r := n.Child(0), n.Child(1)
		if flip, ok := flippedCompare[op]; ok && tree.Pure(l) && tree.Pure(r) {
			return tree.New(tree.Compare, flip, r, l)
		}
		if (op == "==" || op == "!=") && outOfOrder(l, r) {
			return n.With(r, l)
		}
	}
	return n
}
