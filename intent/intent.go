// Package intent generates intent sentences describing a hint's edits.
package intent

import (
	"strings"

	"hintgraph/diff"
	"hintgraph/tree"
)

// ChangeCategory classifies one edit.
type ChangeCategory string

const (
	FunctionAdded    ChangeCategory = "FUNCTION_ADDED"
	FunctionRemoved  ChangeCategory = "FUNCTION_REMOVED"
	ConditionChanged ChangeCategory = "CONDITION_CHANGED"
	LoopChanged      ChangeCategory = "LOOP_CHANGED"
	ConstantUpdated  ChangeCategory = "CONSTANT_UPDATED"
	CallChanged      ChangeCategory = "CALL_CHANGED"
	ReturnChanged    ChangeCategory = "RETURN_CHANGED"
	StatementAdded   ChangeCategory = "STATEMENT_ADDED"
	StatementRemoved ChangeCategory = "STATEMENT_REMOVED"
	StatementMoved   ChangeCategory = "STATEMENT_MOVED"
	ExpressionEdited ChangeCategory = "EXPRESSION_EDITED"
)

// Change is one classified edit with the function it occurs in.
type Change struct {
	Category ChangeCategory
	Function string // enclosing function, empty at top level
	Name     string // function name for FunctionAdded/FunctionRemoved
}

// GenerateIntent generates an intent sentence for a script applied to src.
func GenerateIntent(s diff.Script, src *tree.Node) string {
	if len(s) == 0 {
		return "No change needed"
	}
	return Describe(Classify(s, src))
}

// Describe builds the sentence for classified changes.
func Describe(changes []Change) string {
	if len(changes) == 0 {
		return "No change needed"
	}
	verb, object := determineVerb(changes)

	if names := extractFunctionNames(changes); len(names) > 0 {
		return verb + " " + formatFunctionNames(names)
	}
	return verb + " " + object + " " + determineArea(changes)
}

// Classify maps each edit to a change category.
func Classify(s diff.Script, src *tree.Node) []Change {
	out := make([]Change, 0, len(s))
	for _, e := range s {
		c := Change{Function: enclosingFunction(src, e.Path)}
		c.Category, c.Name = categorize(e, src)
		out = append(out, c)
	}
	return out
}

func categorize(e diff.Edit, src *tree.Node) (ChangeCategory, string) {
	switch e.Op {
	case diff.OpInsert:
		if e.Node != nil && e.Node.Type == tree.FuncDef {
			return FunctionAdded, e.Node.Child(0).Value
		}
		if e.Node != nil && tree.IsStatement(e.Node.Type) {
			return statementCategory(e.Node, StatementAdded), ""
		}
	case diff.OpDelete:
		n := tree.At(src, e.Path)
		if n != nil && n.Type == tree.FuncDef {
			return FunctionRemoved, n.Child(0).Value
		}
		if n != nil && tree.IsStatement(n.Type) {
			return statementCategory(n, StatementRemoved), ""
		}
	case diff.OpMove:
		if n := tree.At(src, e.Path); n != nil && tree.IsStatement(n.Type) {
			return StatementMoved, ""
		}
	case diff.OpUpdate:
		n := tree.At(src, e.Path)
		if n != nil && !e.Replaces() && tree.IsLiteral(n) {
			return ConstantUpdated, ""
		}
	}
	return contextCategory(src, e.Path), ""
}

// statementCategory refines a whole statement change by its kind.
func statementCategory(n *tree.Node, fallback ChangeCategory) ChangeCategory {
	switch n.Type {
	case tree.If:
		return ConditionChanged
	case tree.For, tree.While:
		return LoopChanged
	case tree.Return:
		return ReturnChanged
	}
	return fallback
}

// contextCategory classifies an edit by the closest construct around it.
func contextCategory(src *tree.Node, p tree.Path) ChangeCategory {
	cat := ExpressionEdited
	n := src
	for _, i := range p {
		if n == nil {
			break
		}
		switch n.Type {
		case tree.If, tree.Elif, tree.While:
			if i == 0 {
				cat = ConditionChanged
			}
		case tree.For:
			if i <= 1 {
				cat = LoopChanged
			}
		case tree.Return:
			cat = ReturnChanged
		case tree.Call:
			cat = CallChanged
		}
		n = n.Child(i)
	}
	if n != nil && n.Type == tree.Call {
		cat = CallChanged
	}
	return cat
}

// enclosingFunction returns the name of the innermost function definition
// on the path, or "".
func enclosingFunction(src *tree.Node, p tree.Path) string {
	name := ""
	n := src
	for _, i := range p {
		if n == nil {
			break
		}
		if n.Type == tree.FuncDef && i > 0 {
			name = n.Child(0).Value
		}
		n = n.Child(i)
	}
	return name
}

// extractFunctionNames extracts names of added or removed functions.
func extractFunctionNames(changes []Change) []string {
	var names []string
	seen := make(map[string]bool)
	for _, c := range changes {
		if c.Category == FunctionAdded || c.Category == FunctionRemoved {
			if c.Name != "" && !seen[c.Name] {
				seen[c.Name] = true
				names = append(names, c.Name)
			}
		}
	}
	return names
}

// formatFunctionNames formats a list of function names for display.
func formatFunctionNames(names []string) string {
	if len(names) == 0 {
		return ""
	}
	if len(names) == 1 {
		return "function " + names[0]
	}
	if len(names) == 2 {
		return "functions " + names[0] + " and " + names[1]
	}
	return "functions " + strings.Join(names[:2], ", ") + " and others"
}

// determineVerb determines the verb and its object from the categories
// present, in priority order.
func determineVerb(changes []Change) (string, string) {
	has := make(map[ChangeCategory]bool)
	for _, c := range changes {
		has[c.Category] = true
	}

	switch {
	case has[FunctionAdded] && has[FunctionRemoved]:
		return "Refactor", "functions"
	case has[FunctionAdded]:
		return "Add", "a function"
	case has[FunctionRemoved]:
		return "Remove", "a function"
	case has[ConditionChanged]:
		return "Modify", "the condition"
	case has[LoopChanged]:
		return "Modify", "the loop"
	case has[ReturnChanged]:
		return "Update", "the return value"
	case has[CallChanged]:
		return "Update", "a call"
	case has[ConstantUpdated]:
		return "Update", "a constant"
	case has[StatementAdded] && has[StatementRemoved]:
		return "Rewrite", "statements"
	case has[StatementAdded]:
		return "Add", "a statement"
	case has[StatementRemoved]:
		return "Remove", "a statement"
	case has[StatementMoved]:
		return "Reorder", "statements"
	}
	return "Change", "an expression"
}

// determineArea names where the changes happen.
func determineArea(changes []Change) string {
	area := ""
	for i, c := range changes {
		if i == 0 {
			area = c.Function
			continue
		}
		if c.Function != area {
			return "across the program"
		}
	}
	if area == "" {
		return "at top level"
	}
	return "in " + area
}
