package canon

import (
	"math/big"
	"strings"

	"hintgraph/tree"
)

// Limits keeping folded literals small.
const (
	maxFoldExponent = 64
	maxFoldBits     = 256
	maxFoldString   = 64
)

// FoldConstants evaluates integer arithmetic, literal string concatenation
// and repetition, comparisons of literals and unary signs on literals.
// Float arithmetic and true division are left alone.
func FoldConstants(n *tree.Node) *tree.Node {
	return tree.Transform(n, foldNode)
}

func foldNode(n *tree.Node) *tree.Node {
	switch n.Type {
	case tree.BinaryOp:
		l, r := n.Child(0), n.Child(1)
		if a, ok := intValue(l); ok {
			if b, ok := intValue(r); ok {
				if v, ok := foldInt(n.Value, a, b); ok {
					return intLeaf(v)
				}
				return n
			}
		}
		if s, ok := foldString(n.Value, l, r); ok {
			return s
		}
	case tree.UnaryOp:
		if a, ok := intValue(n.Child(0)); ok {
			switch n.Value {
			case "-":
				return intLeaf(new(big.Int).Neg(a))
			case "+":
				return intLeaf(a)
			case "~":
				return intLeaf(new(big.Int).Not(a))
			}
		}
	case tree.Compare:
		if len(n.Children) != 2 {
			return n
		}
		if res, ok := foldCompare(tree.CompareOps(n)[0], n.Child(0), n.Child(1)); ok {
			if res {
				return tree.Leaf(tree.True, "")
			}
			return tree.Leaf(tree.False, "")
		}
	}
	return n
}

func intValue(n *tree.Node) (*big.Int, bool) {
	if n == nil || n.Type != tree.Integer {
		return nil, false
	}
	v, ok := new(big.Int).SetString(n.Value, 0)
	return v, ok
}

func intLeaf(v *big.Int) *tree.Node {
	return tree.Leaf(tree.Integer, v.String())
}

func foldInt(op string, a, b *big.Int) (*big.Int, bool) {
	var v *big.Int
	switch op {
	case "+":
		v = new(big.Int).Add(a, b)
	case "-":
		v = new(big.Int).Sub(a, b)
	case "*":
		v = new(big.Int).Mul(a, b)
	case "//", "%":
		if b.Sign() == 0 {
			return nil, false
		}
		q, m := new(big.Int).QuoRem(a, b, new(big.Int))
		// floor semantics: remainder takes the divisor's sign
		if m.Sign() != 0 && m.Sign() != b.Sign() {
			q.Sub(q, big.NewInt(1))
			m.Add(m, b)
		}
		if op == "//" {
			v = q
		} else {
			v = m
		}
	case "**":
		if b.Sign() < 0 || !b.IsInt64() || b.Int64() > maxFoldExponent {
			return nil, false
		}
		v = new(big.Int).Exp(a, b, nil)
	case "&":
		v = new(big.Int).And(a, b)
	case "|":
		v = new(big.Int).Or(a, b)
	case "^":
		v = new(big.Int).Xor(a, b)
	default:
		return nil, false
	}
	if v.BitLen() > maxFoldBits {
		return nil, false
	}
	return v, true
}

// simpleString returns the quote and body of a plain single-line literal
// without prefixes or escapes.
func simpleString(n *tree.Node) (quote byte, body string, ok bool) {
	if n == nil || n.Type != tree.String {
		return 0, "", false
	}
	v := n.Value
	if len(v) < 2 || strings.ContainsAny(v, "\\\n") {
		return 0, "", false
	}
	q := v[0]
	if (q != '\'' && q != '"') || v[len(v)-1] != q {
		return 0, "", false
	}
	if strings.HasPrefix(v, `"""`) || strings.HasPrefix(v, "'''") {
		return 0, "", false
	}
	body = v[1 : len(v)-1]
	if strings.IndexByte(body, q) >= 0 {
		return 0, "", false
	}
	return q, body, true
}

func foldString(op string, l, r *tree.Node) (*tree.Node, bool) {
	switch op {
	case "+":
		q, a, ok := simpleString(l)
		if !ok {
			return nil, false
		}
		_, b, ok := simpleString(r)
		if !ok || strings.IndexByte(b, q) >= 0 || len(a)+len(b) > maxFoldString {
			return nil, false
		}
		return tree.Leaf(tree.String, string(q)+a+b+string(q)), true
	case "*":
		s, count := l, r
		if s.Type == tree.Integer {
			s, count = r, l
		}
		q, body, ok := simpleString(s)
		if !ok {
			return nil, false
		}
		k, ok := intValue(count)
		if !ok || !k.IsInt64() {
			return nil, false
		}
		times := int(k.Int64())
		if times < 0 {
			times = 0
		}
		if len(body)*times > maxFoldString {
			return nil, false
		}
		return tree.Leaf(tree.String, string(q)+strings.Repeat(body, times)+string(q)), true
	}
	return nil, false
}

func foldCompare(op string, l, r *tree.Node) (bool, bool) {
	if a, ok := intValue(l); ok {
		if b, ok := intValue(r); ok {
			c := a.Cmp(b)
			switch op {
			case "<":
				return c < 0, true
			case "<=":
				return c <= 0, true
			case ">":
				return c > 0, true
			case ">=":
				return c >= 0, true
			case "==":
				return c == 0, true
			case "!=":
				return c != 0, true
			}
		}
		return false, false
	}
	_, a, ok := simpleString(l)
	if !ok {
		return false, false
	}
	_, b, ok := simpleString(r)
	if !ok {
		return false, false
	}
	switch op {
	case "==":
		return a == b, true
	case "!=":
		return a != b, true
	}
	return false, false
}
