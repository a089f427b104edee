// Package parse provides Tree-sitter based parsing of Python student programs
// into immutable program trees.
package parse

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"hintgraph/tree"
)

// ErrParse is matched by every *ParseError.
var ErrParse = errors.New("parse error")

// ParseError reports a snapshot that cannot be parsed. Ingestion drops such
// snapshots instead of aborting the batch.
type ParseError struct {
	Range Range
	Near  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("syntax error at line %d, column %d near %q",
		e.Range.Start[0]+1, e.Range.Start[1]+1, e.Near)
}

// Is makes errors.Is(err, ErrParse) work.
func (e *ParseError) Is(target error) bool {
	return target == ErrParse
}

// Range represents a source code range (0-based line and column).
type Range struct {
	Start [2]int `json:"start"` // [line, col]
	End   [2]int `json:"end"`   // [line, col]
}

// Program is one parsed code snapshot: the ProgramTree of the system.
type Program struct {
	Root *tree.Node
}

// Parser wraps Tree-sitter Python parsers. It is safe for concurrent use;
// each call borrows a parser from a pool since sitter parsers are not.
type Parser struct {
	pool sync.Pool
}

// NewParser creates a new Python parser.
func NewParser() *Parser {
	p := &Parser{}
	p.pool.New = func() any {
		sp := sitter.NewParser()
		sp.SetLanguage(python.GetLanguage())
		return sp
	}
	return p
}

// Parse parses Python source into a Program.
func (p *Parser) Parse(content []byte) (*Program, error) {
	return p.ParseCtx(context.Background(), content)
}

// ParseCtx is Parse with a context for cancellation.
func (p *Parser) ParseCtx(ctx context.Context, content []byte) (*Program, error) {
	sp := p.pool.Get().(*sitter.Parser)
	defer p.pool.Put(sp)

	parsed, err := sp.ParseCtx(ctx, nil, content)
	if err != nil {
		return nil, fmt.Errorf("parsing failed: %w", err)
	}

	root := parsed.RootNode()
	if root.HasError() {
		return nil, syntaxError(root, content)
	}

	c := &converter{src: content}
	return &Program{Root: c.module(root)}, nil
}

// ParseString is a convenience wrapper for tests and callers holding text.
func (p *Parser) ParseString(src string) (*Program, error) {
	return p.Parse([]byte(src))
}

func syntaxError(root *sitter.Node, content []byte) *ParseError {
	iter := sitter.NewIterator(root, sitter.DFSMode)
	for {
		n, err := iter.Next()
		if err != nil || n == nil {
			break
		}
		if n.Type() == "ERROR" || n.IsMissing() {
			near := n.Content(content)
			if len(near) > 40 {
				near = near[:40]
			}
			return &ParseError{Range: nodeRange(n), Near: near}
		}
	}
	return &ParseError{Range: nodeRange(root)}
}

func nodeRange(node *sitter.Node) Range {
	startPoint := node.StartPoint()
	endPoint := node.EndPoint()

	return Range{
		Start: [2]int{int(startPoint.Row), int(startPoint.Column)},
		End:   [2]int{int(endPoint.Row), int(endPoint.Column)},
	}
}

// converter turns a concrete syntax tree into a tree.Node. Constructs the
// program tree does not model are kept verbatim as raw nodes, so conversion
// is total on any error-free input.
type converter struct {
	src []byte
}

func (c *converter) text(n *sitter.Node) string {
	return n.Content(c.src)
}

// named returns the named children of n, skipping comments.
func named(n *sitter.Node) []*sitter.Node {
	var out []*sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		ch := n.NamedChild(i)
		if ch.Type() == "comment" {
			continue
		}
		out = append(out, ch)
	}
	return out
}

func (c *converter) module(n *sitter.Node) *tree.Node {
	return tree.New(tree.Module, "", c.stmts(n)...)
}

func (c *converter) stmts(n *sitter.Node) []*tree.Node {
	var out []*tree.Node
	for _, ch := range named(n) {
		if s := c.stmt(ch); s != nil {
			out = append(out, s)
		}
	}
	return out
}

func (c *converter) block(n *sitter.Node) *tree.Node {
	if n == nil {
		return tree.New(tree.Block, "")
	}
	return tree.New(tree.Block, "", c.stmts(n)...)
}

// raw keeps a construct verbatim, dedenting continuation lines so the text
// can be re-indented at any depth.
func (c *converter) raw(n *sitter.Node) *tree.Node {
	text := c.text(n)
	col := int(n.StartPoint().Column)
	lines := strings.Split(text, "\n")
	for i := 1; i < len(lines); i++ {
		line := lines[i]
		cut := 0
		for cut < col && cut < len(line) && (line[cut] == ' ' || line[cut] == '\t') {
			cut++
		}
		lines[i] = line[cut:]
	}
	return tree.Leaf(tree.Raw, strings.Join(lines, "\n"))
}

func (c *converter) stmt(n *sitter.Node) *tree.Node {
	switch n.Type() {
	case "expression_statement":
		kids := named(n)
		if len(kids) == 1 {
			switch kids[0].Type() {
			case "assignment":
				return c.assignment(kids[0])
			case "augmented_assignment":
				return c.augmented(kids[0])
			}
			return tree.New(tree.ExprStmt, "", c.expr(kids[0]))
		}
		return tree.New(tree.ExprStmt, "", tree.New(tree.Tuple, "", c.exprs(kids)...))

	case "if_statement":
		children := []*tree.Node{
			c.expr(n.ChildByFieldName("condition")),
			c.block(n.ChildByFieldName("consequence")),
		}
		for _, ch := range named(n) {
			switch ch.Type() {
			case "elif_clause":
				children = append(children, tree.New(tree.Elif, "",
					c.expr(ch.ChildByFieldName("condition")),
					c.block(ch.ChildByFieldName("consequence"))))
			case "else_clause":
				children = append(children, c.elseClause(ch))
			}
		}
		return tree.New(tree.If, "", children...)

	case "for_statement":
		if n.Child(0) != nil && n.Child(0).Type() == "async" {
			return c.raw(n)
		}
		children := []*tree.Node{
			c.expr(n.ChildByFieldName("left")),
			c.expr(n.ChildByFieldName("right")),
			c.block(n.ChildByFieldName("body")),
		}
		if alt := n.ChildByFieldName("alternative"); alt != nil {
			children = append(children, c.elseClause(alt))
		}
		return tree.New(tree.For, "", children...)

	case "while_statement":
		children := []*tree.Node{
			c.expr(n.ChildByFieldName("condition")),
			c.block(n.ChildByFieldName("body")),
		}
		if alt := n.ChildByFieldName("alternative"); alt != nil {
			children = append(children, c.elseClause(alt))
		}
		return tree.New(tree.While, "", children...)

	case "function_definition":
		if n.Child(0) != nil && n.Child(0).Type() == "async" {
			return c.raw(n)
		}
		children := []*tree.Node{
			tree.Name(c.text(n.ChildByFieldName("name"))),
			c.parameters(n.ChildByFieldName("parameters")),
		}
		if rt := n.ChildByFieldName("return_type"); rt != nil {
			children = append(children, tree.New(tree.ReturnType, "", c.typeExpr(rt)))
		}
		children = append(children, c.block(n.ChildByFieldName("body")))
		return tree.New(tree.FuncDef, "", children...)

	case "with_statement":
		if n.Child(0) != nil && n.Child(0).Type() == "async" {
			return c.raw(n)
		}
		var children []*tree.Node
		for _, ch := range named(n) {
			if ch.Type() != "with_clause" {
				continue
			}
			for _, it := range named(ch) {
				item := c.withItem(it)
				if item == nil {
					return c.raw(n)
				}
				children = append(children, item)
			}
		}
		if len(children) == 0 {
			return c.raw(n)
		}
		children = append(children, c.block(n.ChildByFieldName("body")))
		return tree.New(tree.With, "", children...)

	case "try_statement":
		children := []*tree.Node{c.block(n.ChildByFieldName("body"))}
		for _, ch := range named(n) {
			switch ch.Type() {
			case "block":
			case "except_clause":
				clause := c.exceptClause(ch)
				if clause == nil {
					return c.raw(n)
				}
				children = append(children, clause)
			case "else_clause":
				children = append(children, c.elseClause(ch))
			case "finally_clause":
				var body *sitter.Node
				for _, k := range named(ch) {
					if k.Type() == "block" {
						body = k
					}
				}
				children = append(children, tree.New(tree.Finally, "", c.block(body)))
			default:
				return c.raw(n)
			}
		}
		return tree.New(tree.Try, "", children...)

	case "return_statement":
		kids := named(n)
		if len(kids) == 0 {
			return tree.New(tree.Return, "")
		}
		return tree.New(tree.Return, "", c.expr(kids[0]))

	case "pass_statement":
		return tree.New(tree.Pass, "")
	case "break_statement":
		return tree.New(tree.Break, "")
	case "continue_statement":
		return tree.New(tree.Continue, "")

	case "raise_statement":
		return tree.New(tree.Raise, "", c.exprs(named(n))...)

	case "assert_statement":
		return tree.New(tree.Assert, "", c.exprs(named(n))...)

	case "global_statement":
		return tree.New(tree.Global, "", c.exprs(named(n))...)
	case "nonlocal_statement":
		return tree.New(tree.Nonlocal, "", c.exprs(named(n))...)

	case "delete_statement":
		var targets []*tree.Node
		for _, ch := range named(n) {
			if ch.Type() == "expression_list" {
				targets = append(targets, c.exprs(named(ch))...)
				continue
			}
			targets = append(targets, c.expr(ch))
		}
		return tree.New(tree.Delete, "", targets...)

	case "import_statement":
		var names []*tree.Node
		for _, ch := range named(n) {
			names = append(names, c.importName(ch))
		}
		return tree.New(tree.Import, "", names...)

	case "import_from_statement":
		mod := n.ChildByFieldName("module_name")
		children := []*tree.Node{tree.Leaf(tree.DottedName, c.text(mod))}
		for _, ch := range named(n) {
			if ch.StartByte() == mod.StartByte() && ch.EndByte() == mod.EndByte() {
				continue
			}
			if ch.Type() == "wildcard_import" {
				children = append(children, tree.Leaf(tree.WildcardImport, "*"))
				continue
			}
			children = append(children, c.importName(ch))
		}
		return tree.New(tree.ImportFrom, "", children...)
	}
	return c.raw(n)
}

func (c *converter) elseClause(n *sitter.Node) *tree.Node {
	return tree.New(tree.Else, "", c.block(n.ChildByFieldName("body")))
}

// withItem converts one context manager and its optional target.
func (c *converter) withItem(n *sitter.Node) *tree.Node {
	if n.Type() != "with_item" {
		return nil
	}
	v := n.ChildByFieldName("value")
	if v == nil {
		kids := named(n)
		if len(kids) == 0 {
			return nil
		}
		v = kids[0]
	}
	if alias := n.ChildByFieldName("alias"); alias != nil {
		return tree.New(tree.WithItem, "", c.expr(v), c.expr(alias))
	}
	if v.Type() == "as_pattern" {
		value, target, ok := c.asPattern(v)
		if !ok {
			return nil
		}
		return tree.New(tree.WithItem, "", value, target)
	}
	return tree.New(tree.WithItem, "", c.expr(v))
}

// exceptClause converts an except clause to [type [name]] body.
func (c *converter) exceptClause(n *sitter.Node) *tree.Node {
	kids := named(n)
	if len(kids) == 0 || kids[len(kids)-1].Type() != "block" {
		return nil
	}
	var children []*tree.Node
	heads := kids[:len(kids)-1]
	switch {
	case len(heads) == 1 && heads[0].Type() == "as_pattern":
		value, target, ok := c.asPattern(heads[0])
		if !ok {
			return nil
		}
		children = append(children, value, target)
	case len(heads) <= 2:
		children = c.exprs(heads)
	default:
		return nil
	}
	children = append(children, c.block(kids[len(kids)-1]))
	return tree.New(tree.ExceptClause, "", children...)
}

// asPattern splits "value as target".
func (c *converter) asPattern(n *sitter.Node) (*tree.Node, *tree.Node, bool) {
	kids := named(n)
	if len(kids) != 2 {
		return nil, nil, false
	}
	target := kids[1]
	if target.Type() == "as_pattern_target" {
		inner := named(target)
		if len(inner) != 1 {
			return nil, nil, false
		}
		target = inner[0]
	}
	return c.expr(kids[0]), c.expr(target), true
}

func (c *converter) importName(n *sitter.Node) *tree.Node {
	if n.Type() == "aliased_import" {
		return tree.New(tree.AliasedImport, "",
			tree.Leaf(tree.DottedName, c.text(n.ChildByFieldName("name"))),
			tree.Leaf(tree.DottedName, c.text(n.ChildByFieldName("alias"))))
	}
	return tree.Leaf(tree.DottedName, c.text(n))
}

func (c *converter) assignment(n *sitter.Node) *tree.Node {
	left := c.expr(n.ChildByFieldName("left"))
	right := n.ChildByFieldName("right")
	if typ := n.ChildByFieldName("type"); typ != nil {
		children := []*tree.Node{left, tree.New(tree.TypeAnnotation, "", c.typeExpr(typ))}
		if right != nil {
			children = append(children, c.rhs(right))
		}
		return tree.New(tree.AnnAssign, "", children...)
	}
	if right == nil {
		return c.raw(n)
	}
	return tree.New(tree.Assign, "", left, c.rhs(right))
}

func (c *converter) rhs(n *sitter.Node) *tree.Node {
	if n.Type() == "assignment" {
		return c.assignment(n)
	}
	return c.expr(n)
}

func (c *converter) augmented(n *sitter.Node) *tree.Node {
	op := n.ChildByFieldName("operator")
	return tree.New(tree.AugAssign, op.Type(),
		c.expr(n.ChildByFieldName("left")),
		c.expr(n.ChildByFieldName("right")))
}

// typeExpr unwraps the grammar's "type" node around an annotation.
func (c *converter) typeExpr(n *sitter.Node) *tree.Node {
	if n.Type() == "type" {
		if kids := named(n); len(kids) == 1 {
			return c.expr(kids[0])
		}
	}
	return c.expr(n)
}

func (c *converter) parameters(n *sitter.Node) *tree.Node {
	if n == nil {
		return tree.New(tree.Parameters, "")
	}
	var params []*tree.Node
	for _, ch := range named(n) {
		params = append(params, c.parameter(ch))
	}
	return tree.New(tree.Parameters, "", params...)
}

func (c *converter) parameter(n *sitter.Node) *tree.Node {
	switch n.Type() {
	case "identifier":
		return tree.Name(c.text(n))
	case "typed_parameter":
		kids := named(n)
		if len(kids) > 0 && kids[0].Type() == "identifier" {
			if typ := n.ChildByFieldName("type"); typ != nil {
				return tree.New(tree.TypedParam, "", tree.Name(c.text(kids[0])),
					tree.New(tree.TypeAnnotation, "", c.typeExpr(typ)))
			}
		}
	case "default_parameter":
		return tree.New(tree.DefaultParam, "",
			tree.Name(c.text(n.ChildByFieldName("name"))),
			c.expr(n.ChildByFieldName("value")))
	case "typed_default_parameter":
		return tree.New(tree.TypedDefault, "",
			tree.Name(c.text(n.ChildByFieldName("name"))),
			tree.New(tree.TypeAnnotation, "", c.typeExpr(n.ChildByFieldName("type"))),
			c.expr(n.ChildByFieldName("value")))
	case "list_splat_pattern", "dictionary_splat_pattern":
		kids := named(n)
		if len(kids) == 1 && kids[0].Type() == "identifier" {
			typ := tree.ListSplatParam
			if n.Type() == "dictionary_splat_pattern" {
				typ = tree.DictSplatParam
			}
			return tree.New(typ, "", tree.Name(c.text(kids[0])))
		}
	}
	return tree.Leaf(tree.Raw, c.text(n))
}

func (c *converter) exprs(ns []*sitter.Node) []*tree.Node {
	out := make([]*tree.Node, 0, len(ns))
	for _, n := range ns {
		out = append(out, c.expr(n))
	}
	return out
}

func (c *converter) expr(n *sitter.Node) *tree.Node {
	if n == nil {
		return tree.Leaf(tree.Omitted, "")
	}
	switch n.Type() {
	case "identifier":
		return tree.Name(c.text(n))
	case "integer":
		return tree.Leaf(tree.Integer, c.text(n))
	case "float":
		return tree.Leaf(tree.Float, c.text(n))
	case "string":
		if f := c.fstring(n); f != nil {
			return f
		}
		return tree.Leaf(tree.String, c.text(n))
	case "concatenated_string":
		return tree.Leaf(tree.String, c.text(n))
	case "true":
		return tree.Leaf(tree.True, "")
	case "false":
		return tree.Leaf(tree.False, "")
	case "none":
		return tree.Leaf(tree.None, "")

	case "binary_operator":
		return tree.New(tree.BinaryOp, n.ChildByFieldName("operator").Type(),
			c.expr(n.ChildByFieldName("left")),
			c.expr(n.ChildByFieldName("right")))
	case "boolean_operator":
		return tree.New(tree.BoolOp, n.ChildByFieldName("operator").Type(),
			c.expr(n.ChildByFieldName("left")),
			c.expr(n.ChildByFieldName("right")))
	case "unary_operator":
		return tree.New(tree.UnaryOp, n.ChildByFieldName("operator").Type(),
			c.expr(n.ChildByFieldName("argument")))
	case "not_operator":
		return tree.New(tree.NotOp, "", c.expr(n.ChildByFieldName("argument")))
	case "comparison_operator":
		var ops []string
		var operands []*tree.Node
		for i := 0; i < int(n.ChildCount()); i++ {
			ch := n.Child(i)
			if ch.Type() == "comment" {
				continue
			}
			if ch.IsNamed() {
				operands = append(operands, c.expr(ch))
				continue
			}
			ops = append(ops, strings.Join(strings.Fields(ch.Type()), " "))
		}
		return tree.New(tree.Compare, strings.Join(ops, ","), operands...)

	case "parenthesized_expression":
		kids := named(n)
		if len(kids) == 1 {
			return tree.New(tree.Paren, "", c.expr(kids[0]))
		}
	case "conditional_expression":
		kids := named(n)
		if len(kids) == 3 {
			return tree.New(tree.Conditional, "", c.exprs(kids)...)
		}

	case "call":
		args := n.ChildByFieldName("arguments")
		var argList *tree.Node
		if args != nil && args.Type() == "argument_list" {
			argList = tree.New(tree.ArgumentList, "", c.arguments(args)...)
		} else if args != nil && args.Type() == "generator_expression" {
			argList = tree.New(tree.ArgumentList, "", c.expr(args))
		} else if args != nil {
			argList = tree.New(tree.ArgumentList, "", c.raw(args))
		} else {
			argList = tree.New(tree.ArgumentList, "")
		}
		return tree.New(tree.Call, "", c.expr(n.ChildByFieldName("function")), argList)

	case "attribute":
		return tree.New(tree.Attribute, "",
			c.expr(n.ChildByFieldName("object")),
			tree.Leaf(tree.Property, c.text(n.ChildByFieldName("attribute"))))

	case "subscript":
		children := []*tree.Node{c.expr(n.ChildByFieldName("value"))}
		for i := 0; i < int(n.ChildCount()); i++ {
			if n.FieldNameForChild(i) == "subscript" {
				children = append(children, c.expr(n.Child(i)))
			}
		}
		return tree.New(tree.Subscript, "", children...)

	case "slice":
		parts := [3]*tree.Node{}
		idx := 0
		for i := 0; i < int(n.ChildCount()); i++ {
			ch := n.Child(i)
			if ch.Type() == ":" {
				idx++
				continue
			}
			if ch.IsNamed() && ch.Type() != "comment" && idx < 3 {
				parts[idx] = c.expr(ch)
			}
		}
		for i := range parts {
			if parts[i] == nil {
				parts[i] = tree.Leaf(tree.Omitted, "")
			}
		}
		return tree.New(tree.Slice, "", parts[:]...)

	case "list", "list_pattern":
		return tree.New(tree.List, "", c.exprs(named(n))...)
	case "tuple", "expression_list", "pattern_list", "tuple_pattern":
		return tree.New(tree.Tuple, "", c.exprs(named(n))...)
	case "set":
		return tree.New(tree.Set, "", c.exprs(named(n))...)
	case "dictionary":
		var pairs []*tree.Node
		for _, ch := range named(n) {
			switch ch.Type() {
			case "pair":
				pairs = append(pairs, tree.New(tree.Pair, "",
					c.expr(ch.ChildByFieldName("key")),
					c.expr(ch.ChildByFieldName("value"))))
			case "dictionary_splat":
				pairs = append(pairs, c.expr(ch))
			default:
				return c.raw(n)
			}
		}
		return tree.New(tree.Dict, "", pairs...)

	case "list_splat", "dictionary_splat":
		kids := named(n)
		if len(kids) == 1 {
			typ := tree.ListSplat
			if n.Type() == "dictionary_splat" {
				typ = tree.DictSplat
			}
			return tree.New(typ, "", c.expr(kids[0]))
		}
	case "list_comprehension", "set_comprehension", "dictionary_comprehension", "generator_expression":
		if comp := c.comprehension(n); comp != nil {
			return comp
		}
	case "lambda":
		return tree.New(tree.Lambda, "",
			c.parameters(n.ChildByFieldName("parameters")),
			c.expr(n.ChildByFieldName("body")))

	case "type":
		return c.typeExpr(n)
	}
	return c.raw(n)
}

var comprehensionTypes = map[string]string{
	"list_comprehension":       tree.ListComp,
	"set_comprehension":        tree.SetComp,
	"dictionary_comprehension": tree.DictComp,
	"generator_expression":     tree.GenExp,
}

// comprehension converts a comprehension into its body followed by its for
// and if clauses. It returns nil for shapes kept verbatim.
func (c *converter) comprehension(n *sitter.Node) *tree.Node {
	kids := named(n)
	if len(kids) < 2 {
		return nil
	}
	var body *tree.Node
	if n.Type() == "dictionary_comprehension" {
		if kids[0].Type() != "pair" {
			return nil
		}
		body = tree.New(tree.Pair, "",
			c.expr(kids[0].ChildByFieldName("key")),
			c.expr(kids[0].ChildByFieldName("value")))
	} else {
		body = c.expr(kids[0])
	}

	children := []*tree.Node{body}
	for _, ch := range kids[1:] {
		switch ch.Type() {
		case "for_in_clause":
			var right []*sitter.Node
			for i := 0; i < int(ch.ChildCount()); i++ {
				if ch.FieldNameForChild(i) == "right" {
					right = append(right, ch.Child(i))
				}
			}
			if len(right) != 1 {
				return nil
			}
			value := ""
			if ch.ChildCount() > 0 && ch.Child(0).Type() == "async" {
				value = "async"
			}
			children = append(children, tree.New(tree.ForIn, value,
				c.expr(ch.ChildByFieldName("left")), c.expr(right[0])))
		case "if_clause":
			cond := named(ch)
			if len(cond) != 1 {
				return nil
			}
			children = append(children, tree.New(tree.IfClause, "", c.expr(cond[0])))
		default:
			return nil
		}
	}
	return tree.New(comprehensionTypes[n.Type()], "", children...)
}

// fstring splits a formatted string literal into literal text and
// interpolations so the names it reads are part of the tree. Strings
// without interpolations stay plain string leaves.
func (c *converter) fstring(n *sitter.Node) *tree.Node {
	var start, end *sitter.Node
	var interps []*sitter.Node
	for i := 0; i < int(n.ChildCount()); i++ {
		ch := n.Child(i)
		switch ch.Type() {
		case "string_start":
			start = ch
		case "string_end":
			end = ch
		case "interpolation":
			interps = append(interps, ch)
		}
	}
	if start == nil || end == nil || len(interps) == 0 {
		return nil
	}
	prefix := c.text(start)
	if !strings.ContainsAny(strings.TrimRight(prefix, `'"`), "fF") {
		return nil
	}

	var parts []*tree.Node
	pos := start.EndByte()
	for _, in := range interps {
		if in.StartByte() > pos {
			parts = append(parts, tree.Leaf(tree.FStringText, string(c.src[pos:in.StartByte()])))
		}
		expr := in.ChildByFieldName("expression")
		if expr == nil {
			kids := named(in)
			if len(kids) == 0 {
				return nil
			}
			expr = kids[0]
		}
		suffix := string(c.src[expr.EndByte() : in.EndByte()-1])
		parts = append(parts, tree.New(tree.Interpolation, suffix, c.expr(expr)))
		pos = in.EndByte()
	}
	if end.StartByte() > pos {
		parts = append(parts, tree.Leaf(tree.FStringText, string(c.src[pos:end.StartByte()])))
	}
	return tree.New(tree.FString, prefix, parts...)
}

func (c *converter) arguments(n *sitter.Node) []*tree.Node {
	var args []*tree.Node
	for _, ch := range named(n) {
		if ch.Type() == "keyword_argument" {
			args = append(args, tree.New(tree.KeywordArgument, "",
				tree.Leaf(tree.Keyword, c.text(ch.ChildByFieldName("name"))),
				c.expr(ch.ChildByFieldName("value"))))
			continue
		}
		args = append(args, c.expr(ch))
	}
	return args
}
