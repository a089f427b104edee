package graph

import (
	"fmt"

	"go.uber.org/zap"

	"hintgraph/cas"
	"hintgraph/proto"
)

// Export returns the self-contained payload of the graph.
func (g *Graph) Export() *proto.GraphPayload {
	p := &proto.GraphPayload{
		Version:   proto.SchemaVersion,
		Exercise:  g.Exercise,
		CreatedAt: cas.NowMs(),
		Vertices:  make([]proto.VertexPayload, 0, len(g.vertices)),
	}
	for _, v := range g.vertices {
		vp := proto.VertexPayload{ID: v.ID, Key: v.Key, Tree: v.Tree, Goal: v.Goal}
		for _, va := range v.Variants {
			vp.Variants = append(vp.Variants, proto.VariantPayload{
				Key:        va.Key,
				Source:     va.Source,
				Anon:       va.Anon,
				Names:      va.Names,
				Count:      va.Count,
				Provenance: va.Provenance,
			})
		}
		p.Vertices = append(p.Vertices, vp)
		for _, e := range v.Out {
			p.Edges = append(p.Edges, proto.EdgePayload{From: v.ID, To: e.To, Count: e.Count})
		}
	}
	return p
}

// Import restores a graph from its payload. The arena is rebuilt as
// stored, so vertices created afterwards continue at Len(). Any
// inconsistency yields ErrCorrupt.
func Import(p *proto.GraphPayload, logger *zap.Logger) (*Graph, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: no payload", ErrCorrupt)
	}
	if p.Version != proto.SchemaVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrCorrupt, p.Version)
	}
	if len(p.Vertices) < 3 {
		return nil, fmt.Errorf("%w: %d vertices", ErrCorrupt, len(p.Vertices))
	}

	g := newArena(p.Exercise, logger)
	for i, vp := range p.Vertices {
		if vp.ID != i {
			return nil, fmt.Errorf("%w: vertex %d stored at %d", ErrCorrupt, vp.ID, i)
		}
		if _, dup := g.byKey[vp.Key]; dup {
			return nil, fmt.Errorf("%w: duplicate key at vertex %d", ErrCorrupt, i)
		}
		v := &Vertex{ID: vp.ID, Key: vp.Key, Tree: vp.Tree, Goal: vp.Goal}
		if i != StartID && i != EndID {
			if vp.Tree == nil {
				return nil, fmt.Errorf("%w: vertex %d has no tree", ErrCorrupt, i)
			}
			v.Size = vp.Tree.Size()
		}
		for _, va := range vp.Variants {
			if va.Anon == nil {
				return nil, fmt.Errorf("%w: variant of vertex %d has no tree", ErrCorrupt, i)
			}
			v.Variants = append(v.Variants, &Variant{
				Key:        va.Key,
				Source:     va.Source,
				Anon:       va.Anon,
				Names:      va.Names,
				Size:       va.Anon.Size(),
				Count:      va.Count,
				Provenance: va.Provenance,
			})
		}
		g.vertices = append(g.vertices, v)
		g.index(v)
	}

	for _, e := range p.Edges {
		if e.From < 0 || e.From >= len(g.vertices) || e.To < 0 || e.To >= len(g.vertices) {
			return nil, fmt.Errorf("%w: edge %d -> %d out of range", ErrCorrupt, e.From, e.To)
		}
		if g.vertices[e.From].edgeTo(e.To) >= 0 {
			return nil, fmt.Errorf("%w: duplicate edge %d -> %d", ErrCorrupt, e.From, e.To)
		}
		g.link(e.From, e.To, e.Count)
	}

	start := g.vertices[StartID]
	if len(start.Out) != 1 || start.Out[0].To != EmptyID {
		return nil, fmt.Errorf("%w: start must lead to the empty program only", ErrCorrupt)
	}
	if err := g.Check(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return g, nil
}
