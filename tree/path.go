package tree

import (
	"strconv"
	"strings"
)

// Path addresses a node by the child indices leading to it from the root.
// The empty path is the root.
type Path []int

// Append returns a new path extended with i.
func (p Path) Append(i int) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = i
	return out
}

// Parent returns the path of the parent and the index of p within it.
// The root has no parent and returns (nil, -1).
func (p Path) Parent() (Path, int) {
	if len(p) == 0 {
		return nil, -1
	}
	return p[: len(p)-1 : len(p)-1], p[len(p)-1]
}

// HasPrefix reports whether q is an ancestor of p or p itself.
func (p Path) HasPrefix(q Path) bool {
	if len(q) > len(p) {
		return false
	}
	for i := range q {
		if p[i] != q[i] {
			return false
		}
	}
	return true
}

// Equal reports whether both paths address the same node.
func (p Path) Equal(q Path) bool {
	return len(p) == len(q) && p.HasPrefix(q)
}

// Key is a map-friendly form of the path.
func (p Path) Key() string {
	if len(p) == 0 {
		return "/"
	}
	var sb strings.Builder
	for _, i := range p {
		sb.WriteByte('/')
		sb.WriteString(strconv.Itoa(i))
	}
	return sb.String()
}

func (p Path) String() string {
	return p.Key()
}

// ParsePath is the inverse of Path.Key.
func ParsePath(s string) (Path, error) {
	if s == "/" || s == "" {
		return Path{}, nil
	}
	parts := strings.Split(strings.TrimPrefix(s, "/"), "/")
	p := make(Path, len(parts))
	for i, part := range parts {
		n, err := strconv.Atoi(part)
		if err != nil {
			return nil, err
		}
		p[i] = n
	}
	return p, nil
}

// At returns the node at path p under n, or nil if p does not exist.
func At(n *Node, p Path) *Node {
	cur := n
	for _, i := range p {
		cur = cur.Child(i)
		if cur == nil {
			return nil
		}
	}
	return cur
}

// Replace returns a copy of n in which the node at p is replaced by repl.
// Only the spine from the root to p is copied.
func Replace(n *Node, p Path, repl *Node) *Node {
	if len(p) == 0 {
		return repl
	}
	child := n.Child(p[0])
	if child == nil {
		return n
	}
	children := make([]*Node, len(n.Children))
	copy(children, n.Children)
	children[p[0]] = Replace(child, p[1:], repl)
	return n.With(children...)
}
