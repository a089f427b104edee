// Package diff provides structural tree diffs: edit distance, edit scripts
// and their application and re-targeting onto original program trees.
package diff

import (
	"errors"

	"hintgraph/tree"
)

// Op represents the kind of one tree edit.
type Op string

const (
	OpInsert Op = "insert"
	OpDelete Op = "delete"
	OpUpdate Op = "update"
	OpMove   Op = "move"
)

// ErrBadScript is returned when a script does not fit the tree it is
// applied to.
var ErrBadScript = errors.New("edit script does not match tree")

// Edit is one operation of an edit script. Paths address nodes of the
// source tree the script was computed on.
//
//   - insert: Node is inserted as a child of Path, before the source child
//     at Index (Index == len(children) appends).
//   - delete: the subtree at Path (kept in Node) is removed.
//   - update: the node at Path takes Type and Value; when Node is set the
//     whole subtree at Path is replaced by Node instead.
//   - move: the subtree at Path is removed and inserted under To before the
//     source child at Index.
type Edit struct {
	Op    Op         `json:"op"`
	Path  tree.Path  `json:"path"`
	Index int        `json:"index,omitempty"`
	To    tree.Path  `json:"to,omitempty"`
	Type  string     `json:"type,omitempty"`
	Value string     `json:"value,omitempty"`
	Node  *tree.Node `json:"node,omitempty"`
}

// Replaces reports whether e is a whole-subtree replacement.
func (e Edit) Replaces() bool {
	return e.Op == OpUpdate && e.Node != nil
}

// Cost is the contribution of e to the edit distance.
func (e Edit) Cost() int {
	switch e.Op {
	case OpInsert, OpDelete:
		return e.Node.Size()
	case OpUpdate:
		if e.Node != nil {
			return e.Node.Size()
		}
		return 1
	default:
		return 1
	}
}

// Script is an ordered list of edits.
type Script []Edit

// Cost is the edit distance the script represents.
func (s Script) Cost() int {
	total := 0
	for _, e := range s {
		total += e.Cost()
	}
	return total
}

// Deletions is the fraction of edits that are deletions. An empty script
// has no deletions.
func (s Script) Deletions() float64 {
	if len(s) == 0 {
		return 0
	}
	n := 0
	for _, e := range s {
		if e.Op == OpDelete {
			n++
		}
	}
	return float64(n) / float64(len(s))
}

// Summary provides aggregate statistics.
type Summary struct {
	Inserted int `json:"inserted"`
	Deleted  int `json:"deleted"`
	Updated  int `json:"updated"`
	Moved    int `json:"moved"`
}

// Summary counts the edits of each kind.
func (s Script) Summary() Summary {
	var sum Summary
	for _, e := range s {
		switch e.Op {
		case OpInsert:
			sum.Inserted++
		case OpDelete:
			sum.Deleted++
		case OpUpdate:
			sum.Updated++
		case OpMove:
			sum.Moved++
		}
	}
	return sum
}
