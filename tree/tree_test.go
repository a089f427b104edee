package tree

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func bin(op string, l, r *Node) *Node { return New(BinaryOp, op, l, r) }

func TestSizeAndEqual(t *testing.T) {
	a := New(Module, "", New(ExprStmt, "", bin("+", Name("x"), Int(1))))
	b := New(Module, "", New(ExprStmt, "", bin("+", Name("x"), Int(1))))
	if a.Size() != 5 {
		t.Errorf("Size() = %d, want 5", a.Size())
	}
	if !a.Equal(b) {
		t.Errorf("structurally equal trees compare unequal")
	}
	if a.Equal(Replace(b, Path{0, 0, 1}, Int(2))) {
		t.Errorf("trees with different literals compare equal")
	}
	if EmptyModule().Size() != 1 {
		t.Errorf("EmptyModule().Size() = %d, want 1", EmptyModule().Size())
	}
}

func TestTransformSharesUntouchedSubtrees(t *testing.T) {
	left := New(ExprStmt, "", Name("a"))
	right := New(ExprStmt, "", Int(3))
	root := New(Module, "", left, right)

	out := Transform(root, func(n *Node) *Node {
		if n.Type == Integer {
			return Int(4)
		}
		return n
	})
	if out.Child(0) != left {
		t.Errorf("untouched subtree was copied")
	}
	if out.Child(1) == right || out.Child(1).Child(0).Value != "4" {
		t.Errorf("rewritten subtree = %s", out.Child(1))
	}
	if root.Child(1).Child(0).Value != "3" {
		t.Errorf("input tree was mutated")
	}
}

func TestIdentifiers(t *testing.T) {
	n := New(Module, "",
		New(Assign, "", Name("b"), bin("+", Name("a"), Name("b"))),
		New(ExprStmt, "", Name("a")))
	if diff := cmp.Diff([]string{"b", "a"}, Identifiers(n)); diff != "" {
		t.Errorf("Identifiers mismatch (-want +got):\n%s", diff)
	}
	if !Uses(n, "a") || Uses(n, "c") {
		t.Errorf("Uses reported wrong membership")
	}
}

func TestPath(t *testing.T) {
	p := Path{}.Append(2).Append(0)
	if p.Key() != "/2/0" {
		t.Errorf("Key() = %q, want /2/0", p.Key())
	}
	back, err := ParsePath(p.Key())
	if err != nil {
		t.Fatalf("ParsePath failed: %v", err)
	}
	if !back.Equal(p) {
		t.Errorf("ParsePath(%q) = %v", p.Key(), back)
	}
	parent, idx := p.Parent()
	if !parent.Equal(Path{2}) || idx != 0 {
		t.Errorf("Parent() = %v, %d", parent, idx)
	}
	if !p.HasPrefix(Path{2}) || p.HasPrefix(Path{1}) || (Path{2}).HasPrefix(p) {
		t.Errorf("HasPrefix reported wrong ancestry")
	}
	if _, err := ParsePath("/x"); err == nil {
		t.Errorf("ParsePath accepted a non-numeric path")
	}
	if root, _ := ParsePath("/"); len(root) != 0 {
		t.Errorf("ParsePath(/) = %v, want root", root)
	}
}

func TestAtAndReplace(t *testing.T) {
	n := New(Module, "", New(ExprStmt, "", Name("x")), New(Pass, ""))
	if got := At(n, Path{0, 0}); got == nil || got.Value != "x" {
		t.Errorf("At(/0/0) = %v", got)
	}
	if At(n, Path{5}) != nil {
		t.Errorf("At returned a node for a missing path")
	}
	out := Replace(n, Path{0, 0}, Name("y"))
	if At(out, Path{0, 0}).Value != "y" || At(n, Path{0, 0}).Value != "x" {
		t.Errorf("Replace changed the wrong tree")
	}
	if out.Child(1) != n.Child(1) {
		t.Errorf("Replace copied a sibling off the spine")
	}
}

func TestExprPrecedence(t *testing.T) {
	a, b, c := Name("a"), Name("b"), Name("c")
	tests := []struct {
		n    *Node
		want string
	}{
		{bin("*", bin("+", a, b), c), "(a + b) * c"},
		{bin("+", a, bin("*", b, c)), "a + b * c"},
		{bin("-", a, bin("-", b, c)), "a - (b - c)"},
		{bin("-", bin("-", a, b), c), "a - b - c"},
		{bin("**", a, bin("**", b, c)), "a ** b ** c"},
		{bin("**", bin("**", a, b), c), "(a ** b) ** c"},
		{bin("**", Int(-2), Int(2)), "(-2) ** 2"},
	}
	for _, tt := range tests {
		if got := Expr(tt.n); got != tt.want {
			t.Errorf("Expr(%s) = %q, want %q", tt.n, got, tt.want)
		}
	}
}
