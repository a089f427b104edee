package diff

import (
	"context"

	"hintgraph/tree"
)

// Engine computes structural distances and edit scripts between trees.
// Implementations must be deterministic: identical inputs give identical
// results.
type Engine interface {
	Distance(ctx context.Context, a, b *tree.Node) (int, error)
	EditScript(ctx context.Context, a, b *tree.Node) (Script, error)
}

// Builtin is the in-process engine: a top-down tree diff in which nodes of
// the same type (or two leaves) may be matched, a label change costs 1 and
// inserting or deleting a subtree costs its size. Child lists are aligned
// by dynamic programming. Identical deleted and inserted subtrees are
// reported as one move.
type Builtin struct{}

// NewBuiltin creates the in-process engine.
func NewBuiltin() *Builtin {
	return &Builtin{}
}

// Distance returns the cost of the edit script from a to b.
func (e *Builtin) Distance(ctx context.Context, a, b *tree.Node) (int, error) {
	s, err := e.EditScript(ctx, a, b)
	if err != nil {
		return 0, err
	}
	return s.Cost(), nil
}

// EditScript returns an edit script turning a into b.
func (e *Builtin) EditScript(ctx context.Context, a, b *tree.Node) (Script, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if !matchable(a, b) {
		return Script{{Op: OpUpdate, Path: tree.Path{}, Node: b}}, nil
	}
	d := &differ{
		memo:  make(map[[2]*tree.Node]int),
		sizes: make(map[*tree.Node]int),
	}
	var s Script
	d.emit(a, b, tree.Path{}, &s)
	return pairMoves(s), nil
}

func matchable(a, b *tree.Node) bool {
	return a.Type == b.Type || (a.IsLeaf() && b.IsLeaf())
}

type differ struct {
	memo  map[[2]*tree.Node]int
	sizes map[*tree.Node]int
}

func (d *differ) size(n *tree.Node) int {
	if s, ok := d.sizes[n]; ok {
		return s
	}
	s := n.Size()
	d.sizes[n] = s
	return s
}

// dist is the cost of transforming matchable nodes a into b.
func (d *differ) dist(a, b *tree.Node) int {
	if a == b {
		return 0
	}
	key := [2]*tree.Node{a, b}
	if c, ok := d.memo[key]; ok {
		return c
	}
	c := 0
	if a.Type != b.Type || a.Value != b.Value {
		c = 1
	}
	table := d.align(a.Children, b.Children)
	c += table[0][0]
	d.memo[key] = c
	return c
}

// align fills the suffix cost table: t[i][j] is the cheapest alignment of
// as[i:] with bs[j:].
func (d *differ) align(as, bs []*tree.Node) [][]int {
	m, n := len(as), len(bs)
	t := make([][]int, m+1)
	for i := range t {
		t[i] = make([]int, n+1)
	}
	for i := m - 1; i >= 0; i-- {
		t[i][n] = t[i+1][n] + d.size(as[i])
	}
	for j := n - 1; j >= 0; j-- {
		t[m][j] = t[m][j+1] + d.size(bs[j])
	}
	for i := m - 1; i >= 0; i-- {
		for j := n - 1; j >= 0; j-- {
			best := d.size(as[i]) + t[i+1][j]
			if ins := d.size(bs[j]) + t[i][j+1]; ins < best {
				best = ins
			}
			if matchable(as[i], bs[j]) {
				if match := d.dist(as[i], bs[j]) + t[i+1][j+1]; match < best {
					best = match
				}
			}
			t[i][j] = best
		}
	}
	return t
}

// emit appends the edits turning a into b, both matchable, at path p.
func (d *differ) emit(a, b *tree.Node, p tree.Path, s *Script) {
	if a.Equal(b) {
		return
	}
	if a.Type != b.Type || a.Value != b.Value {
		*s = append(*s, Edit{Op: OpUpdate, Path: p, Type: b.Type, Value: b.Value})
	}
	as, bs := a.Children, b.Children
	t := d.align(as, bs)
	i, j := 0, 0
	for i < len(as) || j < len(bs) {
		switch {
		case i < len(as) && j < len(bs) && matchable(as[i], bs[j]) &&
			t[i][j] == d.dist(as[i], bs[j])+t[i+1][j+1]:
			d.emit(as[i], bs[j], p.Append(i), s)
			i++
			j++
		case i < len(as) && t[i][j] == d.size(as[i])+t[i+1][j]:
			*s = append(*s, Edit{Op: OpDelete, Path: p.Append(i), Node: as[i]})
			i++
		default:
			*s = append(*s, Edit{Op: OpInsert, Path: p, Index: i, Node: bs[j]})
			j++
		}
	}
}

// pairMoves turns a deletion and an insertion of identical subtrees into a
// move, placed where the insertion was so sibling order is kept.
func pairMoves(s Script) Script {
	used := make([]bool, len(s))
	moveAt := make(map[int]Edit)
	for di, del := range s {
		if del.Op != OpDelete {
			continue
		}
		for ii, ins := range s {
			if used[ii] || ins.Op != OpInsert || !ins.Node.Equal(del.Node) {
				continue
			}
			used[ii], used[di] = true, true
			moveAt[ii] = Edit{Op: OpMove, Path: del.Path, To: ins.Path, Index: ins.Index, Node: del.Node}
			break
		}
	}
	if len(moveAt) == 0 {
		return s
	}
	out := make(Script, 0, len(s)-len(moveAt))
	for i, e := range s {
		if mv, ok := moveAt[i]; ok {
			out = append(out, mv)
			continue
		}
		if used[i] {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Measure returns the distance from a to b and, when the engine reports
// one in the same invocation, the edit script. An external tool that prints
// only a distance yields a nil script.
func Measure(ctx context.Context, e Engine, a, b *tree.Node) (int, Script, error) {
	if m, ok := e.(interface {
		measure(context.Context, *tree.Node, *tree.Node) (int, Script, error)
	}); ok {
		return m.measure(ctx, a, b)
	}
	s, err := e.EditScript(ctx, a, b)
	if err != nil {
		return 0, nil, err
	}
	return s.Cost(), s, nil
}
