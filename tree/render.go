package tree

import (
	"strings"
)

const indentUnit = "    "

// Operator precedence levels, lowest binding first.
const (
	precLambda = iota
	precConditional
	precOr
	precAnd
	precNot
	precCompare
	precBitOr
	precBitXor
	precBitAnd
	precShift
	precAdd
	precMul
	precUnary
	precPower
	precAwait
	precPrimary
	precAtom
)

var binaryPrec = map[string]int{
	"|": precBitOr, "^": precBitXor, "&": precBitAnd,
	"<<": precShift, ">>": precShift,
	"+": precAdd, "-": precAdd,
	"*": precMul, "/": precMul, "//": precMul, "%": precMul, "@": precMul,
	"**": precPower,
}

// Render regenerates Python source for a tree. The output is normalised:
// four-space indentation, one statement per line, parentheses only where
// precedence requires them or where the tree carries them explicitly.
func Render(n *Node) string {
	if n == nil {
		return ""
	}
	var sb strings.Builder
	switch {
	case n.Type == Module || n.Type == Block:
		for _, s := range n.Children {
			renderStmt(&sb, s, 0)
		}
	case IsStatement(n.Type) || n.Type == Raw:
		renderStmt(&sb, n, 0)
	default:
		sb.WriteString(Expr(n))
	}
	return sb.String()
}

func writeIndent(sb *strings.Builder, depth int) {
	for i := 0; i < depth; i++ {
		sb.WriteString(indentUnit)
	}
}

func renderBlock(sb *strings.Builder, b *Node, depth int) {
	if b == nil || len(b.Children) == 0 {
		writeIndent(sb, depth)
		sb.WriteString("pass\n")
		return
	}
	for _, s := range b.Children {
		renderStmt(sb, s, depth)
	}
}

func renderStmt(sb *strings.Builder, n *Node, depth int) {
	switch n.Type {
	case If:
		writeIndent(sb, depth)
		sb.WriteString("if " + Expr(n.Child(0)) + ":\n")
		renderBlock(sb, n.Child(1), depth+1)
		for _, alt := range n.Children[2:] {
			renderClause(sb, alt, depth)
		}
		return
	case For:
		writeIndent(sb, depth)
		sb.WriteString("for " + Expr(n.Child(0)) + " in " + Expr(n.Child(1)) + ":\n")
		renderBlock(sb, n.Child(2), depth+1)
		for _, alt := range n.Children[3:] {
			renderClause(sb, alt, depth)
		}
		return
	case While:
		writeIndent(sb, depth)
		sb.WriteString("while " + Expr(n.Child(0)) + ":\n")
		renderBlock(sb, n.Child(1), depth+1)
		for _, alt := range n.Children[2:] {
			renderClause(sb, alt, depth)
		}
		return
	case FuncDef:
		writeIndent(sb, depth)
		sb.WriteString("def " + n.Child(0).Value + "(" + renderParams(n.Child(1)) + ")")
		body := n.Child(2)
		if body != nil && body.Type == ReturnType {
			sb.WriteString(" -> " + Expr(body.Child(0)))
			body = n.Child(3)
		}
		sb.WriteString(":\n")
		renderBlock(sb, body, depth+1)
		return
	case With:
		items := make([]string, 0, len(n.Children))
		for _, it := range n.Children[:len(n.Children)-1] {
			item := Expr(it.Child(0))
			if t := it.Child(1); t != nil {
				item += " as " + Expr(t)
			}
			items = append(items, item)
		}
		writeIndent(sb, depth)
		sb.WriteString("with " + strings.Join(items, ", ") + ":\n")
		renderBlock(sb, n.Child(len(n.Children)-1), depth+1)
		return
	case Try:
		writeIndent(sb, depth)
		sb.WriteString("try:\n")
		renderBlock(sb, n.Child(0), depth+1)
		for _, alt := range n.Children[1:] {
			renderClause(sb, alt, depth)
		}
		return
	case Raw:
		for _, line := range strings.Split(strings.TrimRight(n.Value, "\n"), "\n") {
			writeIndent(sb, depth)
			sb.WriteString(line)
			sb.WriteByte('\n')
		}
		return
	}
	writeIndent(sb, depth)
	sb.WriteString(simpleStmt(n))
	sb.WriteByte('\n')
}

func renderClause(sb *strings.Builder, n *Node, depth int) {
	writeIndent(sb, depth)
	switch n.Type {
	case Elif:
		sb.WriteString("elif " + Expr(n.Child(0)) + ":\n")
		renderBlock(sb, n.Child(1), depth+1)
	case ExceptClause:
		last := len(n.Children) - 1
		sb.WriteString("except")
		if last > 0 {
			sb.WriteString(" " + Expr(n.Child(0)))
		}
		if last > 1 {
			sb.WriteString(" as " + Expr(n.Child(1)))
		}
		sb.WriteString(":\n")
		renderBlock(sb, n.Child(last), depth+1)
	case Finally:
		sb.WriteString("finally:\n")
		renderBlock(sb, n.Child(0), depth+1)
	default:
		sb.WriteString("else:\n")
		renderBlock(sb, n.Child(0), depth+1)
	}
}

func simpleStmt(n *Node) string {
	switch n.Type {
	case ExprStmt:
		return Expr(n.Child(0))
	case Assign:
		return Expr(n.Child(0)) + " = " + assignValue(n.Child(1))
	case AnnAssign:
		s := Expr(n.Child(0)) + ": " + Expr(n.Child(1).Child(0))
		if v := n.Child(2); v != nil {
			s += " = " + assignValue(v)
		}
		return s
	case AugAssign:
		return Expr(n.Child(0)) + " " + n.Value + " " + Expr(n.Child(1))
	case Return:
		if len(n.Children) == 0 {
			return "return"
		}
		return "return " + Expr(n.Child(0))
	case Pass:
		return "pass"
	case Break:
		return "break"
	case Continue:
		return "continue"
	case Raise:
		switch len(n.Children) {
		case 0:
			return "raise"
		case 1:
			return "raise " + Expr(n.Child(0))
		default:
			return "raise " + Expr(n.Child(0)) + " from " + Expr(n.Child(1))
		}
	case Assert:
		s := "assert " + Expr(n.Child(0))
		if m := n.Child(1); m != nil {
			s += ", " + Expr(m)
		}
		return s
	case Global, Nonlocal:
		kw := "global "
		if n.Type == Nonlocal {
			kw = "nonlocal "
		}
		return kw + joinExprs(n.Children, precLambda)
	case Delete:
		return "del " + joinExprs(n.Children, precLambda)
	case Import:
		return "import " + joinExprs(n.Children, precLambda)
	case ImportFrom:
		return "from " + n.Child(0).Value + " import " + joinExprs(n.Children[1:], precLambda)
	}
	return Expr(n)
}

// assignValue renders the right-hand side of an assignment, flattening
// chained targets (a = b = 1).
func assignValue(v *Node) string {
	if v != nil && v.Type == Assign {
		return Expr(v.Child(0)) + " = " + assignValue(v.Child(1))
	}
	return Expr(v)
}

func renderParams(p *Node) string {
	if p == nil {
		return ""
	}
	parts := make([]string, 0, len(p.Children))
	for _, c := range p.Children {
		switch c.Type {
		case TypedParam:
			parts = append(parts, c.Child(0).Value+": "+Expr(c.Child(1).Child(0)))
		case DefaultParam:
			parts = append(parts, c.Child(0).Value+"="+Expr(c.Child(1)))
		case TypedDefault:
			parts = append(parts, c.Child(0).Value+": "+Expr(c.Child(1).Child(0))+" = "+Expr(c.Child(2)))
		case ListSplatParam:
			parts = append(parts, "*"+Expr(c.Child(0)))
		case DictSplatParam:
			parts = append(parts, "**"+Expr(c.Child(0)))
		default:
			parts = append(parts, Expr(c))
		}
	}
	return strings.Join(parts, ", ")
}

func precedence(n *Node) int {
	if n == nil {
		return precAtom
	}
	switch n.Type {
	case Lambda:
		return precLambda
	case Conditional:
		return precConditional
	case BoolOp:
		if n.Value == "and" {
			return precAnd
		}
		return precOr
	case NotOp:
		return precNot
	case Compare:
		return precCompare
	case BinaryOp:
		if p, ok := binaryPrec[n.Value]; ok {
			return p
		}
		return precMul
	case UnaryOp:
		return precUnary
	case Integer, Float:
		if strings.HasPrefix(n.Value, "-") {
			return precUnary
		}
		return precAtom
	case Call, Attribute, Subscript:
		return precPrimary
	}
	return precAtom
}

func exprMin(n *Node, min int) string {
	s := Expr(n)
	if precedence(n) < min {
		return "(" + s + ")"
	}
	return s
}

func joinExprs(nodes []*Node, min int) string {
	parts := make([]string, len(nodes))
	for i, c := range nodes {
		parts[i] = exprMin(c, min)
	}
	return strings.Join(parts, ", ")
}

// Expr renders an expression node.
func Expr(n *Node) string {
	if n == nil {
		return ""
	}
	switch n.Type {
	case BinaryOp:
		p := precedence(n)
		if n.Value == "**" {
			return exprMin(n.Child(0), p+1) + " ** " + exprMin(n.Child(1), precUnary)
		}
		return exprMin(n.Child(0), p) + " " + n.Value + " " + exprMin(n.Child(1), p+1)
	case BoolOp:
		p := precedence(n)
		return exprMin(n.Child(0), p) + " " + n.Value + " " + exprMin(n.Child(1), p+1)
	case NotOp:
		return "not " + exprMin(n.Child(0), precNot)
	case UnaryOp:
		return n.Value + exprMin(n.Child(0), precUnary)
	case Compare:
		ops := CompareOps(n)
		var sb strings.Builder
		for i, c := range n.Children {
			if i > 0 && i-1 < len(ops) {
				sb.WriteString(" " + ops[i-1] + " ")
			}
			sb.WriteString(exprMin(c, precCompare+1))
		}
		return sb.String()
	case Conditional:
		return exprMin(n.Child(0), precOr) + " if " + exprMin(n.Child(1), precOr) + " else " + exprMin(n.Child(2), precConditional)
	case Call:
		args := ""
		if a := n.Child(1); a != nil {
			if len(a.Children) == 1 && a.Child(0).Type == GenExp {
				args = comprehension(a.Child(0))
			} else {
				args = joinArgs(a.Children)
			}
		}
		return exprMin(n.Child(0), precPrimary) + "(" + args + ")"
	case Attribute:
		return exprMin(n.Child(0), precPrimary) + "." + n.Child(1).Value
	case Subscript:
		return exprMin(n.Child(0), precPrimary) + "[" + joinExprs(n.Children[1:], precLambda) + "]"
	case Slice:
		s := Expr(n.Child(0)) + ":" + Expr(n.Child(1))
		if step := n.Child(2); step != nil && step.Type != Omitted {
			s += ":" + Expr(step)
		}
		return s
	case Paren:
		return "(" + Expr(n.Child(0)) + ")"
	case List:
		return "[" + joinExprs(n.Children, precLambda) + "]"
	case Set:
		return "{" + joinExprs(n.Children, precLambda) + "}"
	case Tuple:
		if len(n.Children) == 1 {
			return "(" + exprMin(n.Child(0), precLambda) + ",)"
		}
		return "(" + joinExprs(n.Children, precLambda) + ")"
	case Dict:
		parts := make([]string, len(n.Children))
		for i, p := range n.Children {
			if p.Type == DictSplat {
				parts[i] = "**" + exprMin(p.Child(0), precBitOr)
				continue
			}
			parts[i] = Expr(p.Child(0)) + ": " + Expr(p.Child(1))
		}
		return "{" + strings.Join(parts, ", ") + "}"
	case ListComp:
		return "[" + comprehension(n) + "]"
	case SetComp, DictComp:
		return "{" + comprehension(n) + "}"
	case GenExp:
		return "(" + comprehension(n) + ")"
	case Lambda:
		params := renderParams(n.Child(0))
		if params != "" {
			params = " " + params
		}
		return "lambda" + params + ": " + Expr(n.Child(1))
	case FString:
		return renderFString(n)
	case KeywordArgument:
		return n.Child(0).Value + "=" + Expr(n.Child(1))
	case ListSplat:
		return "*" + exprMin(n.Child(0), precBitOr)
	case DictSplat:
		return "**" + exprMin(n.Child(0), precBitOr)
	case AliasedImport:
		return n.Child(0).Value + " as " + n.Child(1).Value
	case WildcardImport:
		return "*"
	case TypeAnnotation, ReturnType:
		return Expr(n.Child(0))
	case Omitted:
		return ""
	case True:
		return "True"
	case False:
		return "False"
	case None:
		return "None"
	}
	if IsStatement(n.Type) {
		return simpleStmt(n)
	}
	return n.Value
}

// comprehension renders the inside of a comprehension's brackets.
func comprehension(n *Node) string {
	var sb strings.Builder
	if body := n.Child(0); body != nil && body.Type == Pair {
		sb.WriteString(Expr(body.Child(0)) + ": " + Expr(body.Child(1)))
	} else {
		sb.WriteString(exprMin(body, precConditional))
	}
	for _, c := range n.Children[1:] {
		switch c.Type {
		case ForIn:
			sb.WriteString(" ")
			if c.Value != "" {
				sb.WriteString(c.Value + " ")
			}
			sb.WriteString("for " + Expr(c.Child(0)) + " in " + exprMin(c.Child(1), precOr))
		case IfClause:
			sb.WriteString(" if " + exprMin(c.Child(0), precOr))
		}
	}
	return sb.String()
}

func renderFString(n *Node) string {
	var sb strings.Builder
	sb.WriteString(n.Value)
	for _, part := range n.Children {
		if part.Type != Interpolation {
			sb.WriteString(part.Value)
			continue
		}
		e := Expr(part.Child(0))
		sb.WriteString("{")
		if strings.HasPrefix(e, "{") {
			sb.WriteString(" ")
		}
		sb.WriteString(e + part.Value + "}")
	}
	sb.WriteString(strings.TrimLeft(n.Value, "bBfFrRuU"))
	return sb.String()
}

func joinArgs(args []*Node) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = Expr(a)
	}
	return strings.Join(parts, ", ")
}

// CompareOps splits the operator list stored in a comparison node.
func CompareOps(n *Node) []string {
	if n.Value == "" {
		return nil
	}
	return strings.Split(n.Value, ",")
}
