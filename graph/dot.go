package graph

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// WriteDOT writes the graph in Graphviz DOT form: one labeled node per
// vertex and one labeled directed edge per transition.
func (g *Graph) WriteDOT(w io.Writer) error {
	bw := bufio.NewWriter(w)
	name := g.Exercise
	if name == "" {
		name = "solutions"
	}
	fmt.Fprintf(bw, "digraph %s {\n", strconv.Quote(name))
	bw.WriteString("  node [shape=box, fontname=\"monospace\"];\n")

	for _, v := range g.vertices {
		var attrs string
		switch v.ID {
		case StartID:
			attrs = `label="start", shape=circle`
		case EndID:
			attrs = `label="end", shape=doublecircle`
		default:
			attrs = "label=" + strconv.Quote(vertexLabel(v))
			if v.Goal {
				attrs += ", peripheries=2"
			}
		}
		fmt.Fprintf(bw, "  v%d [%s];\n", v.ID, attrs)
	}
	for _, v := range g.vertices {
		for _, e := range v.Out {
			fmt.Fprintf(bw, "  v%d -> v%d [label=\"%d\"];\n", v.ID, e.To, e.Count)
		}
	}
	bw.WriteString("}\n")
	return bw.Flush()
}

func vertexLabel(v *Vertex) string {
	label := fmt.Sprintf("#%d n=%d size=%d", v.ID, v.Population(), v.Size)
	if len(v.Variants) > 0 && v.Variants[0].Source != "" {
		src := v.Variants[0].Source
		lines := strings.Split(strings.TrimRight(src, "\n"), "\n")
		if len(lines) > 6 {
			lines = append(lines[:6], "...")
		}
		label += "\n" + strings.Join(lines, "\n")
	}
	return label
}
