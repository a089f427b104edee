package diff

import (
	"fmt"

	"hintgraph/tree"
)

// Apply applies a script computed on src and returns the resulting tree.
// src is not modified.
func Apply(src *tree.Node, s Script) (*tree.Node, error) {
	a := &applier{
		src:     src,
		removed: make(map[string]bool),
		updates: make(map[string]Edit),
		inserts: make(map[string]map[int][]Edit),
	}
	for _, e := range s {
		if err := a.add(e); err != nil {
			return nil, err
		}
	}
	return a.build(src, tree.Path{}), nil
}

type applier struct {
	src     *tree.Node
	removed map[string]bool
	updates map[string]Edit
	inserts map[string]map[int][]Edit
}

func (a *applier) add(e Edit) error {
	switch e.Op {
	case OpDelete, OpMove:
		if len(e.Path) == 0 || tree.At(a.src, e.Path) == nil {
			return fmt.Errorf("%w: %s of %s", ErrBadScript, e.Op, e.Path)
		}
		a.removed[e.Path.Key()] = true
		if e.Op == OpDelete {
			return nil
		}
		if e.To.HasPrefix(e.Path) {
			return fmt.Errorf("%w: move of %s into itself", ErrBadScript, e.Path)
		}
		return a.addInsert(e, e.To)
	case OpInsert:
		if e.Node == nil {
			return fmt.Errorf("%w: insert without node at %s", ErrBadScript, e.Path)
		}
		return a.addInsert(e, e.Path)
	case OpUpdate:
		if tree.At(a.src, e.Path) == nil {
			return fmt.Errorf("%w: update of %s", ErrBadScript, e.Path)
		}
		a.updates[e.Path.Key()] = e
		return nil
	}
	return fmt.Errorf("%w: unknown op %q", ErrBadScript, e.Op)
}

func (a *applier) addInsert(e Edit, parent tree.Path) error {
	p := tree.At(a.src, parent)
	if p == nil || e.Index < 0 || e.Index > len(p.Children) {
		return fmt.Errorf("%w: %s at %s[%d]", ErrBadScript, e.Op, parent, e.Index)
	}
	k := parent.Key()
	if a.inserts[k] == nil {
		a.inserts[k] = make(map[int][]Edit)
	}
	a.inserts[k][e.Index] = append(a.inserts[k][e.Index], e)
	return nil
}

func (a *applier) build(n *tree.Node, p tree.Path) *tree.Node {
	k := p.Key()
	typ, val := n.Type, n.Value
	if u, ok := a.updates[k]; ok {
		if u.Replaces() {
			return u.Node
		}
		if u.Type != "" {
			typ = u.Type
		}
		val = u.Value
	}

	pending := a.inserts[k]
	var children []*tree.Node
	for i := 0; i <= len(n.Children); i++ {
		for _, e := range pending[i] {
			if e.Op == OpMove {
				children = append(children, a.build(tree.At(a.src, e.Path), e.Path))
				continue
			}
			children = append(children, e.Node)
		}
		if i == len(n.Children) {
			break
		}
		cp := p.Append(i)
		if a.removed[cp.Key()] {
			continue
		}
		children = append(children, a.build(n.Children[i], cp))
	}
	return &tree.Node{Type: typ, Value: val, Children: children}
}
