// Package tree provides the immutable program tree shared by the parser,
// canonicalizer, structural differ and solution graph.
package tree

import (
	"strconv"
	"strings"
)

// Node types produced by the parser. Most mirror the tree-sitter Python
// grammar; a few (Property, Keyword, Omitted, FString, FStringText, Raw) are
// local to this package.
const (
	Module          = "module"
	Block           = "block"
	ExprStmt        = "expression_statement"
	Assign          = "assignment"
	AnnAssign       = "annotated_assignment"
	AugAssign       = "augmented_assignment"
	If              = "if_statement"
	Elif            = "elif_clause"
	Else            = "else_clause"
	For             = "for_statement"
	While           = "while_statement"
	FuncDef         = "function_definition"
	With            = "with_statement"
	WithItem        = "with_item"
	Try             = "try_statement"
	ExceptClause    = "except_clause"
	Finally         = "finally_clause"
	Parameters      = "parameters"
	TypedParam      = "typed_parameter"
	DefaultParam    = "default_parameter"
	TypedDefault    = "typed_default_parameter"
	ListSplatParam  = "list_splat_pattern"
	DictSplatParam  = "dictionary_splat_pattern"
	ReturnType      = "return_type"
	TypeAnnotation  = "type"
	Return          = "return_statement"
	Pass            = "pass_statement"
	Break           = "break_statement"
	Continue        = "continue_statement"
	Raise           = "raise_statement"
	Assert          = "assert_statement"
	Global          = "global_statement"
	Nonlocal        = "nonlocal_statement"
	Delete          = "delete_statement"
	Import          = "import_statement"
	ImportFrom      = "import_from_statement"
	DottedName      = "dotted_name"
	AliasedImport   = "aliased_import"
	WildcardImport  = "wildcard_import"
	Identifier      = "identifier"
	Property        = "property"
	Keyword         = "keyword"
	Integer         = "integer"
	Float           = "float"
	String          = "string"
	True            = "true"
	False           = "false"
	None            = "none"
	BinaryOp        = "binary_operator"
	UnaryOp         = "unary_operator"
	NotOp           = "not_operator"
	BoolOp          = "boolean_operator"
	Compare         = "comparison_operator"
	Paren           = "parenthesized_expression"
	Conditional     = "conditional_expression"
	Call            = "call"
	ArgumentList    = "argument_list"
	KeywordArgument = "keyword_argument"
	ListSplat       = "list_splat"
	DictSplat       = "dictionary_splat"
	Attribute       = "attribute"
	Subscript       = "subscript"
	Slice           = "slice"
	Omitted         = "omitted"
	List            = "list"
	Tuple           = "tuple"
	Set             = "set"
	Dict            = "dictionary"
	Pair            = "pair"
	ListComp        = "list_comprehension"
	SetComp         = "set_comprehension"
	DictComp        = "dictionary_comprehension"
	GenExp          = "generator_expression"
	ForIn           = "for_in_clause"
	IfClause        = "if_clause"
	Lambda          = "lambda"
	FString         = "fstring"
	FStringText     = "fstring_text"
	Interpolation   = "interpolation"
	Raw             = "raw"
)

// Node is one vertex of a program tree. Nodes are never mutated after
// construction; rewrites build new nodes and share untouched subtrees.
type Node struct {
	Type     string  `json:"t"`
	Value    string  `json:"v,omitempty"`
	Children []*Node `json:"c,omitempty"`
}

// New builds a node.
func New(typ, value string, children ...*Node) *Node {
	return &Node{Type: typ, Value: value, Children: children}
}

// Leaf builds a node without children.
func Leaf(typ, value string) *Node {
	return &Node{Type: typ, Value: value}
}

// Name builds an identifier.
func Name(name string) *Node {
	return Leaf(Identifier, name)
}

// Int builds an integer literal.
func Int(v int) *Node {
	return Leaf(Integer, strconv.Itoa(v))
}

// EmptyModule is the tree of a program with no statements.
func EmptyModule() *Node {
	return &Node{Type: Module}
}

// IsLeaf reports whether n has no children.
func (n *Node) IsLeaf() bool {
	return len(n.Children) == 0
}

// With returns a copy of n with the given children.
func (n *Node) With(children ...*Node) *Node {
	return &Node{Type: n.Type, Value: n.Value, Children: children}
}

// WithValue returns a copy of n with a different value.
func (n *Node) WithValue(v string) *Node {
	return &Node{Type: n.Type, Value: v, Children: n.Children}
}

// Child returns the i-th child or nil.
func (n *Node) Child(i int) *Node {
	if n == nil || i < 0 || i >= len(n.Children) {
		return nil
	}
	return n.Children[i]
}

// Size is the number of nodes in the subtree rooted at n. It is the
// complexity metric that no canonicalizing rewrite may increase.
func (n *Node) Size() int {
	if n == nil {
		return 0
	}
	size := 1
	for _, c := range n.Children {
		size += c.Size()
	}
	return size
}

// Equal reports structural equality.
func (n *Node) Equal(o *Node) bool {
	if n == o {
		return true
	}
	if n == nil || o == nil {
		return false
	}
	if n.Type != o.Type || n.Value != o.Value || len(n.Children) != len(o.Children) {
		return false
	}
	for i := range n.Children {
		if !n.Children[i].Equal(o.Children[i]) {
			return false
		}
	}
	return true
}

// Clone returns a deep copy.
func (n *Node) Clone() *Node {
	if n == nil {
		return nil
	}
	out := &Node{Type: n.Type, Value: n.Value}
	if len(n.Children) > 0 {
		out.Children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			out.Children[i] = c.Clone()
		}
	}
	return out
}

// String returns the canonical serialization of the subtree: an
// s-expression that is stable across processes and used for hashing and
// ordering.
func (n *Node) String() string {
	var sb strings.Builder
	n.writeSexp(&sb)
	return sb.String()
}

func (n *Node) writeSexp(sb *strings.Builder) {
	if n == nil {
		sb.WriteString("()")
		return
	}
	sb.WriteByte('(')
	sb.WriteString(n.Type)
	if n.Value != "" {
		sb.WriteByte(' ')
		sb.WriteString(strconv.Quote(n.Value))
	}
	for _, c := range n.Children {
		sb.WriteByte(' ')
		c.writeSexp(sb)
	}
	sb.WriteByte(')')
}

// Walk visits every node in pre-order. Returning false from fn skips the
// node's children.
func Walk(n *Node, fn func(*Node) bool) {
	if n == nil {
		return
	}
	if !fn(n) {
		return
	}
	for _, c := range n.Children {
		Walk(c, fn)
	}
}

// Transform rebuilds the tree bottom-up, calling fn on every node after its
// children have been transformed. Untouched subtrees are shared.
func Transform(n *Node, fn func(*Node) *Node) *Node {
	if n == nil {
		return nil
	}
	var children []*Node
	changed := false
	if len(n.Children) > 0 {
		children = make([]*Node, len(n.Children))
		for i, c := range n.Children {
			children[i] = Transform(c, fn)
			if children[i] != c {
				changed = true
			}
		}
	}
	cur := n
	if changed {
		cur = &Node{Type: n.Type, Value: n.Value, Children: children}
	}
	return fn(cur)
}

// Identifiers returns the identifier names in first-occurrence order.
func Identifiers(n *Node) []string {
	var names []string
	seen := make(map[string]bool)
	Walk(n, func(x *Node) bool {
		if x.Type == Identifier && !seen[x.Value] {
			seen[x.Value] = true
			names = append(names, x.Value)
		}
		return true
	})
	return names
}

// Uses reports whether identifier name occurs anywhere under n.
func Uses(n *Node, name string) bool {
	found := false
	Walk(n, func(x *Node) bool {
		if found {
			return false
		}
		if x.Type == Identifier && x.Value == name {
			found = true
		}
		return true
	})
	return found
}

// IsStatement reports whether a node type appears in statement position.
func IsStatement(typ string) bool {
	switch typ {
	case ExprStmt, Assign, AnnAssign, AugAssign, If, For, While, FuncDef,
		With, Try, Return, Pass, Break, Continue, Raise, Assert, Global, Nonlocal,
		Delete, Import, ImportFrom:
		return true
	}
	return false
}

// IsLiteral reports whether n is a constant atom.
func IsLiteral(n *Node) bool {
	if n == nil {
		return false
	}
	switch n.Type {
	case Integer, Float, String, True, False, None:
		return true
	}
	return false
}

// IsAtom reports whether n is an identifier or a literal.
func IsAtom(n *Node) bool {
	return n != nil && (n.Type == Identifier || IsLiteral(n))
}

// Pure reports whether evaluating n cannot have side effects we care
// about: no calls, no raw fragments.
func Pure(n *Node) bool {
	pure := true
	Walk(n, func(x *Node) bool {
		if !pure {
			return false
		}
		switch x.Type {
		case Call, Raw:
			pure = false
		}
		return pure
	})
	return pure
}
