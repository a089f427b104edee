// Package canon reduces program trees to comparable normal forms.
//
// Canonicalize applies a fixed sequence of semantics-preserving rewrites
// until a full pass leaves the tree unchanged. Anonymize renames local
// identifiers by first occurrence. Prepare combines both into the vertex key
// used by the solution graph.
package canon

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"hintgraph/cas"
	"hintgraph/tree"
)

// DefaultMaxPasses bounds the fixpoint loop.
const DefaultMaxPasses = 64

// ErrNonTermination is returned when the rewrite set does not reach a
// fixpoint within the configured number of passes. It indicates a bug in a
// rewrite, not bad input.
var ErrNonTermination = errors.New("canonicalization did not converge")

// Rewrite is one named tree rewrite. Fn must be total and must never
// return a tree larger than its input.
type Rewrite struct {
	Name string
	Fn   func(*tree.Node) *tree.Node
}

// DefaultRewrites returns the rewrite set in application order.
func DefaultRewrites() []Rewrite {
	return []Rewrite{
		{"fold-constants", FoldConstants},
		{"clean-operators", CleanOperators},
		{"clean-ranges", CleanRanges},
		{"clean-negation", CleanNegation},
		{"remove-conditionals", RemoveConditionals},
		{"merge-conditionals", MergeConditionals},
		{"propagate-copies", PropagateCopies},
		{"de-morgan", DeMorgan},
		{"order-operands", OrderOperands},
		{"eliminate-dead-code", EliminateDeadCode},
	}
}

// Options configures a Canonicalizer.
type Options struct {
	MaxPasses   int
	Rewrites    []Rewrite
	GivenNames  []string // names fixed by the exercise, never anonymized
	ImportNames []string // library names, never anonymized
	Logger      *zap.Logger
}

// Canonicalizer is safe for concurrent use.
type Canonicalizer struct {
	maxPasses int
	rewrites  []Rewrite
	given     map[string]bool
	imports   map[string]bool
	log       *zap.Logger
}

// New creates a Canonicalizer. Zero options select the defaults.
func New(opts Options) *Canonicalizer {
	c := &Canonicalizer{
		maxPasses: opts.MaxPasses,
		rewrites:  opts.Rewrites,
		given:     toSet(opts.GivenNames),
		imports:   toSet(opts.ImportNames),
		log:       opts.Logger,
	}
	if c.maxPasses <= 0 {
		c.maxPasses = DefaultMaxPasses
	}
	if c.rewrites == nil {
		c.rewrites = DefaultRewrites()
	}
	if c.log == nil {
		c.log = zap.NewNop()
	}
	return c
}

func toSet(names []string) map[string]bool {
	m := make(map[string]bool, len(names))
	for _, n := range names {
		m[n] = true
	}
	return m
}

// Canonicalize rewrites n to its fixpoint.
func (c *Canonicalizer) Canonicalize(n *tree.Node) (*tree.Node, error) {
	cur := n
	for pass := 0; pass < c.maxPasses; pass++ {
		next := cur
		for _, rw := range c.rewrites {
			out := rw.Fn(next)
			if out.Size() > next.Size() {
				c.log.Warn("rewrite increased tree size, result discarded",
					zap.String("rewrite", rw.Name),
					zap.Int("before", next.Size()),
					zap.Int("after", out.Size()))
				continue
			}
			next = out
		}
		if next.Equal(cur) {
			return next, nil
		}
		cur = next
	}
	return nil, fmt.Errorf("%w after %d passes", ErrNonTermination, c.maxPasses)
}

// Form is a canonical tree with its structural key.
type Form struct {
	Tree *tree.Node
	Key  string
}

// Prepared holds every representation of one snapshot the graph and the
// path finder need.
type Prepared struct {
	Original  *tree.Node        // parsed tree, untouched
	Canonical *tree.Node        // Canonicalize(Original), user names kept
	Anon      *tree.Node        // anonymized Canonical
	Names     map[string]string // name in Anon -> user name
	Form      Form              // canonical anonymized tree and vertex key
}

// Size is the node count of the canonical anonymized tree.
func (p *Prepared) Size() int {
	return p.Form.Tree.Size()
}

// maxAnonRounds bounds the anonymize/canonicalize alternation in Prepare.
const maxAnonRounds = 8

// Prepare computes the canonical, anonymized and keyed forms of a tree.
func (c *Canonicalizer) Prepare(original *tree.Node) (*Prepared, error) {
	canonical, err := c.Canonicalize(original)
	if err != nil {
		return nil, err
	}

	anon := c.Anonymize(canonical)
	key, err := c.Canonicalize(anon.Tree)
	if err != nil {
		return nil, err
	}

	// Operand ordering may move a first occurrence; renumber until stable.
	for i := 0; i < maxAnonRounds; i++ {
		again := c.Anonymize(key).Tree
		if again.Equal(key) {
			break
		}
		if key, err = c.Canonicalize(again); err != nil {
			return nil, err
		}
	}

	return &Prepared{
		Original:  original,
		Canonical: canonical,
		Anon:      anon.Tree,
		Names:     anon.Names,
		Form:      Form{Tree: key, Key: cas.Key(key)},
	}, nil
}

// Key returns the structural key of a tree.
func (c *Canonicalizer) Key(n *tree.Node) (string, error) {
	p, err := c.Prepare(n)
	if err != nil {
		return "", err
	}
	return p.Form.Key, nil
}

// preserved reports whether name must survive anonymization.
func (c *Canonicalizer) preserved(name string, imported map[string]bool) bool {
	return c.given[name] || c.imports[name] || imported[name] || builtins[name]
}
