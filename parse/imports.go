package parse

import (
	"strings"

	"hintgraph/tree"
)

// Import represents one import statement of a program.
type Import struct {
	Source string            `json:"source"` // Module path (e.g., "math", "os.path")
	Named  map[string]string `json:"named"`  // Bound names {local: imported}
	Star   bool              `json:"star"`   // from m import *
}

// ExtractImports collects the import statements of a program tree,
// including ones nested in function bodies.
func ExtractImports(root *tree.Node) []*Import {
	var imports []*Import
	tree.Walk(root, func(n *tree.Node) bool {
		switch n.Type {
		case tree.Import:
			for _, c := range n.Children {
				imp := &Import{Named: make(map[string]string)}
				switch c.Type {
				case tree.AliasedImport:
					imp.Source = c.Child(0).Value
					imp.Named[c.Child(1).Value] = c.Child(0).Value
				default:
					imp.Source = c.Value
					// import os.path binds "os"
					top := strings.SplitN(c.Value, ".", 2)[0]
					imp.Named[top] = top
				}
				imports = append(imports, imp)
			}
			return false
		case tree.ImportFrom:
			imp := &Import{Source: n.Child(0).Value, Named: make(map[string]string)}
			for _, c := range n.Children[1:] {
				switch c.Type {
				case tree.WildcardImport:
					imp.Star = true
				case tree.AliasedImport:
					imp.Named[c.Child(1).Value] = c.Child(0).Value
				default:
					imp.Named[c.Value] = c.Value
				}
			}
			imports = append(imports, imp)
			return false
		}
		return true
	})
	return imports
}

// ImportedNames returns every local name bound by an import statement.
// The anonymizer never renames these.
func ImportedNames(root *tree.Node) map[string]bool {
	names := make(map[string]bool)
	for _, imp := range ExtractImports(root) {
		for local := range imp.Named {
			names[local] = true
		}
	}
	return names
}
