// Package pathfind selects hint targets in a solution graph and turns them
// into concrete next program states.
package pathfind

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"hintgraph/canon"
	"hintgraph/diff"
	"hintgraph/graph"
	"hintgraph/intent"
	"hintgraph/proto"
	"hintgraph/tree"
)

var (
	// ErrNoGoal is returned when nobody has solved the exercise yet.
	ErrNoGoal = errors.New("no goal available")

	// ErrNoCandidate is returned when no vertex qualifies as a target.
	ErrNoCandidate = errors.New("no candidate available")

	// ErrDiffUnavailable is returned when every structural comparison a
	// decision depends on failed.
	ErrDiffUnavailable = errors.New("structural diff unavailable")
)

// Defaults for Options.
const (
	DefaultTopN      = 10
	DefaultThreshold = 0.2
	DefaultK         = 1.0
)

// Options configures a Finder.
type Options struct {
	Engine        diff.Engine          // defaults to the builtin engine
	Canonicalizer *canon.Canonicalizer // must match the one the graph was built with
	Scorer        Scorer               // defaults to the weighted scorer

	TopN       int // candidates compared per request
	AllowBelow bool
	AllowAbove bool

	// Threshold is the remaining share of the way from the empty program
	// to the goal below which the goal is recommended directly.
	Threshold float64
	// K bounds how far the chosen vertex may be, as a multiple of the
	// distance to the goal.
	K float64

	Logger *zap.Logger
}

// Finder serves hints from a built graph. It is safe for concurrent use
// once the graph is no longer being modified.
type Finder struct {
	graph     *graph.Graph
	engine    diff.Engine
	canon     *canon.Canonicalizer
	scorer    Scorer
	topN      int
	below     bool
	above     bool
	threshold float64
	k         float64
	log       *zap.Logger
}

// New creates a Finder over g.
func New(g *graph.Graph, opts Options) *Finder {
	f := &Finder{
		graph:     g,
		engine:    opts.Engine,
		canon:     opts.Canonicalizer,
		scorer:    opts.Scorer,
		topN:      opts.TopN,
		below:     opts.AllowBelow,
		above:     opts.AllowAbove,
		threshold: opts.Threshold,
		k:         opts.K,
		log:       opts.Logger,
	}
	if f.engine == nil {
		f.engine = diff.NewBuiltin()
	}
	if f.canon == nil {
		f.canon = canon.New(canon.Options{Logger: opts.Logger})
	}
	if f.scorer == nil {
		f.scorer = &Weighted{W: DefaultWeights()}
	}
	if f.topN <= 0 {
		f.topN = DefaultTopN
	}
	if f.k <= 0 {
		f.k = DefaultK
	}
	if f.log == nil {
		f.log = zap.NewNop()
	}
	return f
}

// Request is one hint request.
type Request struct {
	Tree       *tree.Node // the user's program as parsed
	Provenance proto.Provenance
}

// Kind tells which routing branch produced a hint.
type Kind string

const (
	KindGoal   Kind = "goal"
	KindVertex Kind = "vertex"
)

// Hint is a proposed next program state.
type Hint struct {
	RequestID   string      `json:"requestId"`
	Kind        Kind        `json:"kind"`
	SameTree    bool        `json:"sameTree"` // the user's state is already a vertex
	Target      int         `json:"target"`
	Distance    int         `json:"distance"`
	Script      diff.Script `json:"script"` // edits on the user's tree
	Source      string      `json:"source"`
	Patch       string      `json:"patch"`
	Explanation string      `json:"explanation"`
}

type scored struct {
	v     *graph.Vertex
	dist  int
	score float64
}

// FindHint selects a target for the user's program and materializes it.
func (f *Finder) FindHint(ctx context.Context, req Request) (*Hint, error) {
	hint := &Hint{RequestID: uuid.NewString()}
	log := f.log.With(zap.String("request", hint.RequestID))

	user, err := f.canon.Prepare(req.Tree)
	if err != nil {
		return nil, fmt.Errorf("preparing request: %w", err)
	}

	goals := f.graph.Goals()
	if len(goals) == 0 {
		return nil, ErrNoGoal
	}
	goal, err := f.closest(ctx, log, user, req.Provenance, goals)
	if err != nil {
		return nil, fmt.Errorf("choosing goal: %w", err)
	}

	var candidates []*graph.Vertex
	if v, ok := f.graph.FindVertex(user.Form.Key); ok {
		hint.SameTree = true
		candidates = f.graph.Successors(v)
	} else {
		candidates = f.graph.CandidatesByNodeCount(user.Size(), f.topN, f.below, f.above)
	}
	candidates = usable(candidates, user.Form.Key)

	vertex, err := f.closest(ctx, log, user, req.Provenance, candidates)
	switch {
	case err == nil:
	case errors.Is(err, ErrNoCandidate), errors.Is(err, ErrDiffUnavailable):
		log.Debug("no graph vertex", zap.Error(err))
		vertex = nil
	default:
		return nil, err
	}

	target, kind, err := f.route(ctx, user, goal, vertex)
	if err != nil {
		return nil, err
	}
	hint.Kind = kind
	hint.Target = target.v.ID
	hint.Distance = target.dist

	script, out, err := f.materialize(ctx, log, user, target.v)
	if err != nil {
		return nil, fmt.Errorf("materializing vertex %d: %w", target.v.ID, err)
	}
	before := tree.Render(user.Original)
	hint.Script = script
	hint.Source = tree.Render(out)
	hint.Patch = linePatch(before, hint.Source)
	hint.Explanation = intent.GenerateIntent(script, user.Original)

	log.Info("hint",
		zap.String("kind", string(kind)),
		zap.Bool("sameTree", hint.SameTree),
		zap.Int("target", hint.Target),
		zap.Int("distance", hint.Distance))
	return hint, nil
}

// usable drops the empty program and the user's own state.
func usable(vs []*graph.Vertex, userKey string) []*graph.Vertex {
	out := vs[:0:0]
	for _, v := range vs {
		if v.ID == graph.EmptyID || v.Key == userKey {
			continue
		}
		out = append(out, v)
	}
	return out
}

// closest scores every vertex and returns the minimum. Ties go to the
// larger population, then to the lower ID.
func (f *Finder) closest(ctx context.Context, log *zap.Logger, user *canon.Prepared, prov proto.Provenance, vs []*graph.Vertex) (*scored, error) {
	if len(vs) == 0 {
		return nil, ErrNoCandidate
	}
	var best *scored
	var lastErr error
	for _, v := range vs {
		dist, script, err := diff.Measure(ctx, f.engine, user.Form.Tree, v.Tree)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			log.Warn("comparison failed", zap.Int("vertex", v.ID), zap.Error(err))
			lastErr = err
			continue
		}
		m := metrics(v, prov, dist, script)
		c := &scored{v: v, dist: dist, score: f.scorer.Score(m)}
		if best == nil || better(c, best) {
			best = c
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: %w", ErrDiffUnavailable, lastErr)
	}
	return best, nil
}

func better(a, b *scored) bool {
	if a.score != b.score {
		return a.score < b.score
	}
	if pa, pb := a.v.Population(), b.v.Population(); pa != pb {
		return pa > pb
	}
	return a.v.ID < b.v.ID
}

func metrics(v *graph.Vertex, prov proto.Provenance, dist int, script diff.Script) Metrics {
	m := Metrics{Distance: dist, Population: v.Population()}
	if script != nil {
		m.Deletions = script.Deletions()
	}
	if ur, ok := prov.Score.Rate(); ok {
		if vr, ok := v.CorrectRate(); ok {
			m.RateDiff, m.RateKnown = math.Abs(ur-vr), true
		}
	}
	if prov.AgeBucket != nil {
		if mean, ok := v.MeanAge(); ok {
			m.AgeDiff, m.AgeKnown = math.Abs(float64(*prov.AgeBucket)-mean), true
		}
	}
	if prov.ExperienceBucket != nil {
		if mean, ok := v.MeanExperience(); ok {
			m.ExperienceDiff, m.ExperienceKnown = math.Abs(float64(*prov.ExperienceBucket)-mean), true
		}
	}
	return m
}

// route decides between the goal and the graph vertex. Close to the goal,
// or far from the graph, the goal wins.
func (f *Finder) route(ctx context.Context, user *canon.Prepared, goal, vertex *scored) (*scored, Kind, error) {
	d0, err := f.engine.Distance(ctx, tree.EmptyModule(), user.Form.Tree)
	if err != nil {
		if ctx.Err() != nil {
			return nil, "", ctx.Err()
		}
		return nil, "", fmt.Errorf("%w: measuring progress: %w", ErrDiffUnavailable, err)
	}
	d1 := goal.dist
	switch {
	case d0+d1 == 0, float64(d0)/float64(d0+d1) >= 1-f.threshold:
		return goal, KindGoal, nil
	case vertex == nil, float64(vertex.dist) > f.k*float64(d1):
		return goal, KindGoal, nil
	}
	return vertex, KindVertex, nil
}

// materialize picks the cheapest variant of v, expresses its script in the
// user's names and applies it to the user's original tree.
func (f *Finder) materialize(ctx context.Context, log *zap.Logger, user *canon.Prepared, v *graph.Vertex) (diff.Script, *tree.Node, error) {
	var (
		best    diff.Script
		variant *graph.Variant
		lastErr error
	)
	for _, va := range v.Variants {
		s, err := f.engine.EditScript(ctx, user.Anon, va.Anon)
		if err != nil {
			if ctx.Err() != nil {
				return nil, nil, ctx.Err()
			}
			log.Warn("variant comparison failed", zap.Int("vertex", v.ID), zap.Error(err))
			lastErr = err
			continue
		}
		if variant == nil || s.Cost() < best.Cost() {
			best, variant = s, va
		}
	}
	switch {
	case variant == nil && lastErr != nil:
		return nil, nil, fmt.Errorf("%w: %w", ErrDiffUnavailable, lastErr)
	case variant == nil:
		return nil, nil, ErrNoCandidate
	}

	renamed := diff.Rename(best, user.Anon, user.Names, variant.Names)
	lifted, err := diff.Lift(renamed, user.Canonical, user.Original)
	if err != nil {
		return nil, nil, err
	}
	out, err := diff.Apply(user.Original, lifted)
	if err != nil {
		return nil, nil, err
	}
	return lifted, out, nil
}
