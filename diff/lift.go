package diff

import (
	"fmt"
	"sort"

	"hintgraph/tree"
)

// Rename rewrites identifiers inside the subtrees and labels a script
// introduces. Scripts computed on from (the user's anonymized tree) align
// target names with user names: an identifier the script keeps pairs a
// name with itself, one it updates pairs the new name with the old. An
// aligned name takes the user's name for its partner. Other names take, in
// order of preference, their entry in primary (the user's renaming table),
// their entry in secondary (the target variant's table) when the user never
// wrote it, the same entry when the hint no longer uses it, or stay as they
// are. No two names resolve to the same user-visible name.
func Rename(s Script, from *tree.Node, primary, secondary map[string]string) Script {
	align := alignNames(s, from, primary, secondary)

	user := make(map[string]bool, len(primary))
	for _, v := range primary {
		user[v] = true
	}
	names := make([]string, 0, len(primary)+len(secondary))
	for k := range primary {
		names = append(names, k)
	}
	for k := range secondary {
		if _, ok := primary[k]; !ok {
			names = append(names, k)
		}
	}
	sort.Strings(names)

	table := make(map[string]string, len(names))
	used := make(map[string]bool, len(names))
	assign := func(name, to string) {
		table[name] = to
		used[to] = true
	}
	for _, name := range names {
		if u, ok := align[name]; ok {
			assign(name, primary[u])
		}
	}
	for _, name := range names {
		if _, done := table[name]; done {
			continue
		}
		if v, ok := primary[name]; ok && !used[v] {
			assign(name, v)
		}
	}
	for _, pass := range []func(string) bool{
		func(v string) bool { return !user[v] && !used[v] },
		func(v string) bool { return !used[v] },
	} {
		for _, name := range names {
			if _, done := table[name]; done {
				continue
			}
			if v, ok := secondary[name]; ok && pass(v) {
				assign(name, v)
			}
		}
	}
	resolve := func(name string) string {
		if v, ok := table[name]; ok {
			return v
		}
		return name
	}

	renameTree := func(n *tree.Node) *tree.Node {
		if n == nil {
			return nil
		}
		return tree.Transform(n, func(x *tree.Node) *tree.Node {
			if x.Type != tree.Identifier {
				return x
			}
			if v := resolve(x.Value); v != x.Value {
				return x.WithValue(v)
			}
			return x
		})
	}

	out := make(Script, len(s))
	for i, e := range s {
		e.Node = renameTree(e.Node)
		if e.Op == OpUpdate && e.Type == tree.Identifier {
			e.Value = resolve(e.Value)
		}
		out[i] = e
	}
	return out
}

// alignNames pairs target names with the user names of the identifiers
// the script keeps or relabels. Kept identifiers take precedence over
// relabelled ones, and each name is paired at most once on either side.
func alignNames(s Script, from *tree.Node, primary, secondary map[string]string) map[string]string {
	gone := make(map[string]bool)
	relabel := make(map[string]string)
	for _, e := range s {
		switch e.Op {
		case OpDelete:
			gone[e.Path.Key()] = true
		case OpUpdate:
			if e.Replaces() || e.Type != tree.Identifier {
				gone[e.Path.Key()] = true
				continue
			}
			relabel[e.Path.Key()] = e.Value
		}
	}

	align := make(map[string]string)
	used := make(map[string]bool)
	pair := func(t, u string) {
		if _, ok := align[t]; ok || used[u] {
			return
		}
		if _, ok := primary[u]; !ok {
			return
		}
		if _, ok := secondary[t]; !ok {
			return
		}
		align[t] = u
		used[u] = true
	}

	var relabelled [][2]string
	var walk func(n *tree.Node, p tree.Path)
	walk = func(n *tree.Node, p tree.Path) {
		key := p.Key()
		if gone[key] {
			return
		}
		if n.Type == tree.Identifier {
			if t, ok := relabel[key]; ok {
				relabelled = append(relabelled, [2]string{t, n.Value})
			} else {
				pair(n.Value, n.Value)
			}
		}
		for i, c := range n.Children {
			walk(c, p.Append(i))
		}
	}
	if from != nil {
		walk(from, tree.Path{})
	}
	for _, r := range relabelled {
		pair(r[0], r[1])
	}
	return align
}

// Lift re-targets a script computed on from (a canonical tree) onto
// original, the unmodified tree from was derived from. Subtrees of from are
// matched to original positionally; edits whose targets cannot be matched
// escalate to the nearest matched ancestor, which is then replaced
// wholesale by its edited canonical counterpart.
func Lift(s Script, from, original *tree.Node) (Script, error) {
	if len(s) == 0 {
		return Script{}, nil
	}
	m := newMapping(from, original)

	// Pass 1: find regions that need wholesale replacement.
	var roots []tree.Path
	for _, e := range s {
		if r, ok := m.escalation(e); !ok {
			roots = append(roots, r)
		}
	}
	roots = m.settle(roots, s)

	// Pass 2: group edits under regions, translate the rest.
	grouped := make([]Script, len(roots))
	var out Script
	for _, e := range s {
		if i := regionOf(roots, e); i >= 0 {
			grouped[i] = append(grouped[i], rebase(e, roots[i]))
			continue
		}
		le, err := m.translate(e)
		if err != nil {
			return nil, err
		}
		out = append(out, le)
	}
	for i, r := range roots {
		sub, err := Apply(tree.At(from, r), grouped[i])
		if err != nil {
			return nil, fmt.Errorf("lifting region %s: %w", r, err)
		}
		out = append(out, Edit{Op: OpUpdate, Path: m.fwd[r.Key()], Node: sub})
	}
	return out, nil
}

// mapping pairs paths of the canonical tree with paths of the original.
type mapping struct {
	from, original *tree.Node
	fwd            map[string]tree.Path
}

func newMapping(from, original *tree.Node) *mapping {
	m := &mapping{from: from, original: original, fwd: make(map[string]tree.Path)}
	if from.Type == original.Type {
		m.match(from, original, tree.Path{}, tree.Path{})
	}
	return m
}

// match records a pair and aligns the children by a weighted longest
// common subsequence: equal subtrees score 2, same type scores 1.
func (m *mapping) match(a, b *tree.Node, pa, pb tree.Path) {
	m.fwd[pa.Key()] = pb
	as, bs := a.Children, b.Children
	score := func(x, y *tree.Node) int {
		switch {
		case x.Equal(y):
			return 2
		case x.Type == y.Type:
			return 1
		}
		return 0
	}
	t := make([][]int, len(as)+1)
	for i := range t {
		t[i] = make([]int, len(bs)+1)
	}
	for i := len(as) - 1; i >= 0; i-- {
		for j := len(bs) - 1; j >= 0; j-- {
			best := t[i+1][j]
			if t[i][j+1] > best {
				best = t[i][j+1]
			}
			if sc := score(as[i], bs[j]); sc > 0 && sc+t[i+1][j+1] > best {
				best = sc + t[i+1][j+1]
			}
			t[i][j] = best
		}
	}
	i, j := 0, 0
	for i < len(as) && j < len(bs) {
		sc := score(as[i], bs[j])
		switch {
		case sc > 0 && t[i][j] == sc+t[i+1][j+1]:
			m.match(as[i], bs[j], pa.Append(i), pb.Append(j))
			i++
			j++
		case t[i][j] == t[i+1][j]:
			i++
		default:
			j++
		}
	}
}

func (m *mapping) lookup(p tree.Path) (tree.Path, bool) {
	q, ok := m.fwd[p.Key()]
	return q, ok
}

// index maps an insertion index under the canonical parent p to one under
// its original counterpart.
func (m *mapping) index(p tree.Path, i int) (int, bool) {
	parent := tree.At(m.from, p)
	op, ok := m.lookup(p)
	if parent == nil || !ok {
		return 0, false
	}
	if i >= len(parent.Children) {
		return len(tree.At(m.original, op).Children), true
	}
	q, ok := m.lookup(p.Append(i))
	if !ok {
		return 0, false
	}
	qp, qi := q.Parent()
	if !qp.Equal(op) {
		return 0, false
	}
	return qi, true
}

// nearest returns the closest mapped ancestor of p, p included.
func (m *mapping) nearest(p tree.Path) tree.Path {
	for {
		if _, ok := m.lookup(p); ok {
			return p
		}
		if len(p) == 0 {
			return p
		}
		p, _ = p.Parent()
	}
}

// escalation reports whether e can be translated directly. When it cannot,
// the returned path is the canonical subtree to replace instead.
func (m *mapping) escalation(e Edit) (tree.Path, bool) {
	switch e.Op {
	case OpInsert:
		if _, ok := m.index(e.Path, e.Index); ok {
			return nil, true
		}
		return m.nearest(e.Path), false
	case OpDelete:
		if _, ok := m.lookup(e.Path); ok {
			return nil, true
		}
		parent, _ := e.Path.Parent()
		return m.nearest(parent), false
	case OpMove:
		_, srcOK := m.lookup(e.Path)
		_, dstOK := m.index(e.To, e.Index)
		if srcOK && dstOK {
			return nil, true
		}
		parent, _ := e.Path.Parent()
		return m.nearest(commonPrefix(parent, e.To)), false
	default:
		q, ok := m.lookup(e.Path)
		if !ok {
			return m.nearest(e.Path), false
		}
		if e.Replaces() {
			return nil, true
		}
		src, dst := tree.At(m.from, e.Path), tree.At(m.original, q)
		if src.Type == dst.Type && src.Value == dst.Value {
			return nil, true
		}
		return e.Path, false
	}
}

// settle removes nested regions and widens regions until every absorbed
// edit lies wholly inside one: a region that an edit deletes or moves is
// lifted to its parent, and a region holding only one end of a move grows
// to the common ancestor of both ends. Every step shortens a region, so the
// loop terminates.
func (m *mapping) settle(roots []tree.Path, s Script) []tree.Path {
	for {
		roots = outermost(roots)
		changed := false
		for i := range roots {
			for _, e := range s {
				r := roots[i]
				switch {
				case (e.Op == OpDelete || e.Op == OpMove) && e.Path.Equal(r):
					parent, _ := r.Parent()
					roots[i] = m.nearest(parent)
					changed = true
				case e.Op == OpMove && e.Path.HasPrefix(r) != e.To.HasPrefix(r):
					roots[i] = m.nearest(commonPrefix(commonPrefix(r, e.Path), e.To))
					changed = true
				}
			}
		}
		if !changed {
			return roots
		}
	}
}

func outermost(roots []tree.Path) []tree.Path {
	sort.Slice(roots, func(i, j int) bool {
		if len(roots[i]) != len(roots[j]) {
			return len(roots[i]) < len(roots[j])
		}
		return roots[i].Key() < roots[j].Key()
	})
	var out []tree.Path
	for _, r := range roots {
		covered := false
		for _, o := range out {
			if r.HasPrefix(o) {
				covered = true
				break
			}
		}
		if !covered {
			out = append(out, r)
		}
	}
	return out
}

func commonPrefix(a, b tree.Path) tree.Path {
	n := 0
	for n < len(a) && n < len(b) && a[n] == b[n] {
		n++
	}
	return append(tree.Path{}, a[:n]...)
}

// regionOf returns the index of the region containing every path e
// touches, or -1.
func regionOf(roots []tree.Path, e Edit) int {
	for i, r := range roots {
		if !e.Path.HasPrefix(r) {
			continue
		}
		if e.Op == OpMove && !e.To.HasPrefix(r) {
			continue
		}
		return i
	}
	return -1
}

func rebase(e Edit, root tree.Path) Edit {
	e.Path = append(tree.Path{}, e.Path[len(root):]...)
	if e.Op == OpMove {
		e.To = append(tree.Path{}, e.To[len(root):]...)
	}
	return e
}

// translate maps a directly liftable edit onto original paths.
func (m *mapping) translate(e Edit) (Edit, error) {
	out := e
	switch e.Op {
	case OpInsert:
		q, _ := m.lookup(e.Path)
		idx, ok := m.index(e.Path, e.Index)
		if !ok {
			return Edit{}, fmt.Errorf("%w: unmapped insert at %s", ErrBadScript, e.Path)
		}
		out.Path, out.Index = q, idx
	case OpMove:
		src, _ := m.lookup(e.Path)
		dst, _ := m.lookup(e.To)
		idx, ok := m.index(e.To, e.Index)
		if !ok {
			return Edit{}, fmt.Errorf("%w: unmapped move to %s", ErrBadScript, e.To)
		}
		out.Path, out.To, out.Index = src, dst, idx
	default:
		q, ok := m.lookup(e.Path)
		if !ok {
			return Edit{}, fmt.Errorf("%w: unmapped %s at %s", ErrBadScript, e.Op, e.Path)
		}
		out.Path = q
		if e.Op == OpDelete {
			out.Node = tree.At(m.original, q)
		}
	}
	return out, nil
}
