package canon

import (
	"strconv"

	"hintgraph/parse"
	"hintgraph/tree"
)

// Anonymized is a tree whose local identifiers were renamed to v0, v1, ...
type Anonymized struct {
	Tree  *tree.Node
	Names map[string]string // anonymized name -> original name
}

// Anonymize renames every identifier that is not a builtin, an imported
// name, a configured import name or a given name. Names are assigned by
// first occurrence in pre-order. Attribute and keyword names have their own
// node types and are never touched.
func (c *Canonicalizer) Anonymize(n *tree.Node) *Anonymized {
	imported := parse.ImportedNames(n)

	rename := make(map[string]string)
	names := make(map[string]string)
	next := 0
	for _, id := range tree.Identifiers(n) {
		if c.preserved(id, imported) {
			continue
		}
		var anon string
		for {
			anon = "v" + strconv.Itoa(next)
			next++
			if !c.preserved(anon, imported) {
				break
			}
		}
		rename[id] = anon
		names[anon] = id
	}

	out := tree.Transform(n, func(x *tree.Node) *tree.Node {
		if x.Type != tree.Identifier {
			return x
		}
		if to, ok := rename[x.Value]; ok && to != x.Value {
			return x.WithValue(to)
		}
		return x
	})
	return &Anonymized{Tree: out, Names: names}
}

// builtins are Python names resolved outside the program.
var builtins = toSet([]string{
	"abs", "all", "any", "ascii", "bin", "bool", "bytearray", "bytes",
	"callable", "chr", "classmethod", "compile", "complex", "delattr", "dict",
	"dir", "divmod", "enumerate", "eval", "exec", "exit", "filter", "float",
	"format", "frozenset", "getattr", "globals", "hasattr", "hash", "help",
	"hex", "id", "input", "int", "isinstance", "issubclass", "iter", "len",
	"list", "locals", "map", "max", "min", "next", "object", "oct", "open",
	"ord", "pow", "print", "property", "quit", "range", "repr", "reversed",
	"round", "set", "setattr", "slice", "sorted", "staticmethod", "str",
	"sum", "super", "tuple", "type", "vars", "zip", "__name__", "__main__",
	"Exception", "ArithmeticError", "AssertionError", "AttributeError",
	"EOFError", "IndexError", "KeyError", "KeyboardInterrupt", "NameError",
	"NotImplementedError", "OverflowError", "RuntimeError", "StopIteration",
	"TypeError", "ValueError", "ZeroDivisionError", "NotImplemented",
})
