// Package graph provides the solution graph: a DAG of distinct observed
// program states for one exercise, from the empty program to a solved sink.
//
// Vertices live in an arena; a vertex ID is its index. Index 0 is the
// synthetic start, 1 the empty program and 2 the end sink every full
// solution points to.
package graph

import (
	"errors"
	"fmt"
	"sort"
	"sync"

	"go.uber.org/zap"

	"hintgraph/canon"
	"hintgraph/cas"
	"hintgraph/proto"
	"hintgraph/tree"
)

// Distinguished vertex IDs.
const (
	StartID = 0
	EmptyID = 1
	EndID   = 2
)

var (
	// ErrInvariant reports a structural invariant violation. It indicates a
	// bug, not bad input.
	ErrInvariant = errors.New("solution graph invariant violated")

	// ErrCorrupt reports a persisted graph that cannot be restored.
	ErrCorrupt = errors.New("corrupt solution graph")

	// ErrFrozen is returned when inserting into a frozen graph.
	ErrFrozen = errors.New("solution graph is frozen")
)

// Variant is one surface form of a vertex's program state.
type Variant struct {
	Key        string            // structural key of Anon
	Source     string            // source text of the first observation
	Anon       *tree.Node        // anonymized canonical tree, used for diffs
	Names      map[string]string // anonymized name -> observed name
	Size       int
	Count      int
	Provenance []proto.Provenance
}

// Edge is an observed transition.
type Edge struct {
	To    int
	Count int
}

// Vertex is one distinct program state.
type Vertex struct {
	ID       int
	Key      string
	Tree     *tree.Node // canonical anonymized tree
	Size     int
	Goal     bool // observed as a full solution
	Variants []*Variant
	Out      []Edge
	In       []int
}

// Population is the number of observations of this state.
func (v *Vertex) Population() int {
	n := 0
	for _, va := range v.Variants {
		n += va.Count
	}
	return n
}

// CorrectRate is the mean correctness rate over observations with a known
// score.
func (v *Vertex) CorrectRate() (float64, bool) {
	sum, n := 0.0, 0
	for _, va := range v.Variants {
		for _, p := range va.Provenance {
			if r, ok := p.Score.Rate(); ok {
				sum += r
				n++
			}
		}
	}
	if n == 0 {
		return 0, false
	}
	return sum / float64(n), true
}

// MeanAge is the mean age bucket over observations that report one.
func (v *Vertex) MeanAge() (float64, bool) {
	return v.mean(func(p proto.Provenance) *int { return p.AgeBucket })
}

// MeanExperience is the mean experience bucket over observations that
// report one.
func (v *Vertex) MeanExperience() (float64, bool) {
	return v.mean(func(p proto.Provenance) *int { return p.ExperienceBucket })
}

func (v *Vertex) mean(field func(proto.Provenance) *int) (float64, bool) {
	sum, n := 0, 0
	for _, va := range v.Variants {
		for _, p := range va.Provenance {
			if b := field(p); b != nil {
				sum += *b
				n++
			}
		}
	}
	if n == 0 {
		return 0, false
	}
	return float64(sum) / float64(n), true
}

func (v *Vertex) edgeTo(id int) int {
	for i, e := range v.Out {
		if e.To == id {
			return i
		}
	}
	return -1
}

// Snapshot is one prepared program state of a session chain.
type Snapshot struct {
	Prepared     *canon.Prepared
	Provenance   proto.Provenance
	FullSolution bool
}

// Graph is the solution graph of one exercise. InsertChain is serialized by
// an internal lock; readers must not run concurrently with insertion.
// Freeze the graph once built to serve it.
type Graph struct {
	Exercise string

	mu       sync.Mutex
	frozen   bool
	vertices []*Vertex
	byKey    map[string]int
	buckets  map[int][]int // node count -> vertex IDs
	minSize  int
	maxSize  int
	log      *zap.Logger
}

// New creates a graph holding only start, empty and end.
func New(exercise string, logger *zap.Logger) *Graph {
	g := newArena(exercise, logger)
	empty := tree.EmptyModule()
	g.vertices = []*Vertex{
		{ID: StartID, Key: cas.StartKey},
		{ID: EmptyID, Key: cas.EmptyKey(), Tree: empty, Size: empty.Size(),
			Variants: []*Variant{{Key: cas.EmptyKey(), Anon: empty, Size: empty.Size()}}},
		{ID: EndID, Key: cas.EndKey},
	}
	for _, v := range g.vertices {
		g.index(v)
	}
	g.link(StartID, EmptyID, 0)
	return g
}

func newArena(exercise string, logger *zap.Logger) *Graph {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Graph{
		Exercise: exercise,
		byKey:    make(map[string]int),
		buckets:  make(map[int][]int),
		log:      logger,
	}
}

// index registers v in the key map and, unless synthetic, in the node
// count buckets.
func (g *Graph) index(v *Vertex) {
	g.byKey[v.Key] = v.ID
	if v.ID == StartID || v.ID == EndID {
		return
	}
	if len(g.buckets) == 0 || v.Size < g.minSize {
		g.minSize = v.Size
	}
	if len(g.buckets) == 0 || v.Size > g.maxSize {
		g.maxSize = v.Size
	}
	g.buckets[v.Size] = append(g.buckets[v.Size], v.ID)
}

func (g *Graph) link(from, to, count int) {
	fv := g.vertices[from]
	if i := fv.edgeTo(to); i >= 0 {
		fv.Out[i].Count += count
		return
	}
	fv.Out = append(fv.Out, Edge{To: to, Count: count})
	g.vertices[to].In = append(g.vertices[to].In, from)
}

// Freeze makes the graph read-only.
func (g *Graph) Freeze() {
	g.mu.Lock()
	g.frozen = true
	g.mu.Unlock()
}

// Len returns the number of vertices including start and end.
func (g *Graph) Len() int {
	return len(g.vertices)
}

// Vertex returns the vertex with the given ID, or nil.
func (g *Graph) Vertex(id int) *Vertex {
	if id < 0 || id >= len(g.vertices) {
		return nil
	}
	return g.vertices[id]
}

// Start returns the synthetic start vertex.
func (g *Graph) Start() *Vertex { return g.vertices[StartID] }

// Empty returns the empty-program vertex.
func (g *Graph) Empty() *Vertex { return g.vertices[EmptyID] }

// End returns the solved sink.
func (g *Graph) End() *Vertex { return g.vertices[EndID] }

// FindVertex looks a vertex up by structural key.
func (g *Graph) FindVertex(key string) (*Vertex, bool) {
	id, ok := g.byKey[key]
	if !ok {
		return nil, false
	}
	return g.vertices[id], true
}

type chainItem struct {
	key   string
	snaps []*Snapshot
}

// InsertChain adds one session's snapshots, in order. Consecutive equal
// states are merged, rollbacks are collapsed (everything strictly between
// two occurrences of a state is discarded), and each remaining state gets
// an edge to the next. The chain implicitly begins at the empty program.
// An edge that would close a cycle across sessions is skipped.
func (g *Graph) InsertChain(chain []Snapshot) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.frozen {
		return ErrFrozen
	}

	items := collapse(chain)

	prev := EmptyID
	g.vertices[StartID].Out[0].Count++
	for _, it := range items {
		id := EmptyID
		if it.key != g.vertices[EmptyID].Key {
			id = g.findOrCreate(it.key, it.snaps[0])
		}
		v := g.vertices[id]
		goal := false
		for _, s := range it.snaps {
			g.addVariant(v, s)
			goal = goal || s.FullSolution
		}
		if id != prev {
			g.addEdge(prev, id)
		}
		if goal {
			v.Goal = true
			g.link(id, EndID, 1)
		}
		prev = id
	}
	return nil
}

// collapse prepends the empty state, merges consecutive duplicates and
// collapses loops. The empty state is dropped from the result unless it was
// observed.
func collapse(chain []Snapshot) []chainItem {
	emptyKey := cas.EmptyKey()
	items := []chainItem{{key: emptyKey}}
	for i := range chain {
		s := &chain[i]
		items = append(items, chainItem{key: s.Prepared.Form.Key, snaps: []*Snapshot{s}})
	}

	last := make(map[string]int, len(items))
	for i, it := range items {
		last[it.key] = i
	}

	var out []chainItem
	for i := 0; i < len(items); {
		it := items[i]
		j := last[it.key]
		for k := i + 1; k <= j; k++ {
			if items[k].key == it.key {
				it.snaps = append(it.snaps, items[k].snaps...)
			}
		}
		out = append(out, it)
		i = j + 1
	}

	if len(out) > 0 && len(out[0].snaps) == 0 {
		out = out[1:]
	}
	return out
}

func (g *Graph) findOrCreate(key string, s *Snapshot) int {
	if id, ok := g.byKey[key]; ok {
		return id
	}
	form := s.Prepared.Form
	v := &Vertex{ID: len(g.vertices), Key: key, Tree: form.Tree, Size: form.Tree.Size()}
	g.vertices = append(g.vertices, v)
	g.index(v)
	g.log.Debug("new vertex", zap.Int("id", v.ID), zap.Int("size", v.Size))
	return v.ID
}

func (g *Graph) addVariant(v *Vertex, s *Snapshot) {
	p := s.Prepared
	key := cas.Key(p.Anon)
	for _, va := range v.Variants {
		if va.Key == key {
			va.Count++
			va.Provenance = append(va.Provenance, s.Provenance)
			return
		}
	}
	v.Variants = append(v.Variants, &Variant{
		Key:        key,
		Source:     tree.Render(p.Original),
		Anon:       p.Anon,
		Names:      p.Names,
		Size:       p.Anon.Size(),
		Count:      1,
		Provenance: []proto.Provenance{s.Provenance},
	})
}

func (g *Graph) addEdge(from, to int) {
	if i := g.vertices[from].edgeTo(to); i >= 0 {
		g.vertices[from].Out[i].Count++
		return
	}
	if g.reachable(to, from) {
		g.log.Warn("skipping edge that would close a cycle",
			zap.String("exercise", g.Exercise),
			zap.Int("from", from),
			zap.Int("to", to))
		return
	}
	g.link(from, to, 1)
}

// reachable reports whether dst can be reached from src.
func (g *Graph) reachable(src, dst int) bool {
	seen := make([]bool, len(g.vertices))
	stack := []int{src}
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if id == dst {
			return true
		}
		if seen[id] {
			continue
		}
		seen[id] = true
		for _, e := range g.vertices[id].Out {
			stack = append(stack, e.To)
		}
	}
	return false
}

// CandidatesByNodeCount returns up to topN vertices whose node count is
// closest to target, widening the radius one node at a time until topN are
// collected or the graph's size range is exhausted. allowBelow and
// allowAbove select whether smaller and larger vertices qualify. Start and
// end are never returned. topN <= 0 means no limit.
func (g *Graph) CandidatesByNodeCount(target, topN int, allowBelow, allowAbove bool) []*Vertex {
	var out []*Vertex
	full := func() bool { return topN > 0 && len(out) >= topN }
	add := func(size int) {
		for _, id := range g.buckets[size] {
			if full() {
				return
			}
			out = append(out, g.vertices[id])
		}
	}

	add(target)
	for r := 1; !full(); r++ {
		below := allowBelow && target-r >= g.minSize
		above := allowAbove && target+r <= g.maxSize
		if !below && !above {
			break
		}
		if below {
			add(target - r)
		}
		if above {
			add(target + r)
		}
	}
	return out
}

// Traverse returns every vertex reachable from start, breadth-first.
func (g *Graph) Traverse() []*Vertex {
	seen := make([]bool, len(g.vertices))
	seen[StartID] = true
	queue := []int{StartID}
	var out []*Vertex
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		out = append(out, g.vertices[id])
		for _, e := range g.vertices[id].Out {
			if !seen[e.To] {
				seen[e.To] = true
				queue = append(queue, e.To)
			}
		}
	}
	return out
}

// Goals returns the parents of end, ordered by ID.
func (g *Graph) Goals() []*Vertex {
	ids := append([]int{}, g.vertices[EndID].In...)
	sort.Ints(ids)
	out := make([]*Vertex, len(ids))
	for i, id := range ids {
		out[i] = g.vertices[id]
	}
	return out
}

// Successors returns the children of v other than end.
func (g *Graph) Successors(v *Vertex) []*Vertex {
	var out []*Vertex
	for _, e := range v.Out {
		if e.To != EndID {
			out = append(out, g.vertices[e.To])
		}
	}
	return out
}

// Stats summarizes a graph.
type Stats struct {
	Vertices     int `json:"vertices"` // excluding start and end
	Edges        int `json:"edges"`
	Goals        int `json:"goals"`
	Variants     int `json:"variants"`
	Observations int `json:"observations"`
	MinSize      int `json:"minSize"`
	MaxSize      int `json:"maxSize"`
}

// Stats computes summary statistics.
func (g *Graph) Stats() Stats {
	s := Stats{
		Vertices: len(g.vertices) - 2,
		Goals:    len(g.vertices[EndID].In),
		MinSize:  g.minSize,
		MaxSize:  g.maxSize,
	}
	for _, v := range g.vertices {
		s.Edges += len(v.Out)
		s.Variants += len(v.Variants)
		s.Observations += v.Population()
	}
	return s
}

// Check verifies the structural invariants: dense IDs, distinguished
// vertices in place, one vertex per key, consistent adjacency, no cycles,
// reachability from start and an end edge for every goal.
func (g *Graph) Check() error {
	if len(g.vertices) < 3 {
		return fmt.Errorf("%w: missing distinguished vertices", ErrInvariant)
	}
	if g.vertices[StartID].Key != cas.StartKey || g.vertices[EndID].Key != cas.EndKey ||
		g.vertices[EmptyID].Key != cas.EmptyKey() {
		return fmt.Errorf("%w: distinguished vertices out of place", ErrInvariant)
	}

	keys := make(map[string]int, len(g.vertices))
	for i, v := range g.vertices {
		if v.ID != i {
			return fmt.Errorf("%w: vertex at %d has ID %d", ErrInvariant, i, v.ID)
		}
		if prev, ok := keys[v.Key]; ok {
			return fmt.Errorf("%w: vertices %d and %d share a key", ErrInvariant, prev, i)
		}
		keys[v.Key] = i
		if i != StartID && i != EndID && len(v.Variants) == 0 {
			return fmt.Errorf("%w: vertex %d has no variants", ErrInvariant, i)
		}
		if v.Goal && v.edgeTo(EndID) < 0 {
			return fmt.Errorf("%w: goal %d has no edge to end", ErrInvariant, i)
		}
		for _, e := range v.Out {
			if e.To < 0 || e.To >= len(g.vertices) {
				return fmt.Errorf("%w: edge %d -> %d out of range", ErrInvariant, i, e.To)
			}
			if !containsInt(g.vertices[e.To].In, i) {
				return fmt.Errorf("%w: edge %d -> %d missing reverse link", ErrInvariant, i, e.To)
			}
		}
	}

	if cyc := g.findCycle(); cyc >= 0 {
		return fmt.Errorf("%w: cycle through vertex %d", ErrInvariant, cyc)
	}

	reached := make(map[int]bool)
	for _, v := range g.Traverse() {
		reached[v.ID] = true
	}
	for _, v := range g.vertices {
		if v.ID == EndID && len(v.In) == 0 {
			continue
		}
		if !reached[v.ID] {
			return fmt.Errorf("%w: vertex %d unreachable from start", ErrInvariant, v.ID)
		}
	}
	return nil
}

func containsInt(xs []int, x int) bool {
	for _, y := range xs {
		if y == x {
			return true
		}
	}
	return false
}

// findCycle returns a vertex on a cycle, or -1 (Kahn's algorithm).
func (g *Graph) findCycle() int {
	indeg := make([]int, len(g.vertices))
	for _, v := range g.vertices {
		for _, e := range v.Out {
			indeg[e.To]++
		}
	}
	var queue []int
	for id, d := range indeg {
		if d == 0 {
			queue = append(queue, id)
		}
	}
	done := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		done++
		for _, e := range g.vertices[id].Out {
			indeg[e.To]--
			if indeg[e.To] == 0 {
				queue = append(queue, e.To)
			}
		}
	}
	if done == len(g.vertices) {
		return -1
	}
	for id, d := range indeg {
		if d > 0 {
			return id
		}
	}
	return -1
}
