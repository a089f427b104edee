package pathfind

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"hintgraph/canon"
	"hintgraph/diff"
	"hintgraph/graph"
	"hintgraph/parse"
	"hintgraph/proto"
	"hintgraph/tree"
)

const (
	readN   = "n = int(input())\n"
	initSum = readN + "total = 0\n"
	loopSum = initSum + "for i in range(n):\n    total = total + i\n"
	solved  = loopSum + "print(total)\n"
)

var parser = parse.NewParser()

func parseTree(t *testing.T, src string) *tree.Node {
	t.Helper()
	prog, err := parser.ParseString(src)
	if err != nil {
		t.Fatalf("ParseString(%q) failed: %v", src, err)
	}
	return prog.Root
}

// buildGraph inserts one session per chain; the last snapshot of each is a
// full solution.
func buildGraph(t *testing.T, chains ...[]string) *graph.Graph {
	t.Helper()
	c := canon.New(canon.Options{})
	g := graph.New("sum", nil)
	for _, srcs := range chains {
		var chain []graph.Snapshot
		for i, src := range srcs {
			p, err := c.Prepare(parseTree(t, src))
			if err != nil {
				t.Fatalf("Prepare(%q) failed: %v", src, err)
			}
			score := proto.ScoreOf(0)
			if i == len(srcs)-1 {
				score = proto.ScoreOf(1)
			}
			chain = append(chain, graph.Snapshot{
				Prepared:     p,
				Provenance:   proto.Provenance{SubmitterID: "s", Score: score},
				FullSolution: score.FullSolution(),
			})
		}
		if err := g.InsertChain(chain); err != nil {
			t.Fatalf("InsertChain failed: %v", err)
		}
	}
	if err := g.Check(); err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	g.Freeze()
	return g
}

func vertexOf(t *testing.T, g *graph.Graph, src string) *graph.Vertex {
	t.Helper()
	key, err := canon.New(canon.Options{}).Key(parseTree(t, src))
	if err != nil {
		t.Fatalf("Key failed: %v", err)
	}
	v, ok := g.FindVertex(key)
	if !ok {
		t.Fatalf("no vertex for %q", src)
	}
	return v
}

func TestFindHint_SameTreeUsesSuccessors(t *testing.T) {
	g := buildGraph(t, []string{readN, initSum, loopSum, solved})
	f := New(g, Options{Threshold: 0, K: 100, AllowBelow: true, AllowAbove: true})

	hint, err := f.FindHint(context.Background(), Request{Tree: parseTree(t, "m = int(input())\ns = 0\n")})
	if err != nil {
		t.Fatalf("FindHint failed: %v", err)
	}
	if !hint.SameTree {
		t.Errorf("SameTree = false, want true")
	}
	if hint.Kind != KindVertex {
		t.Errorf("Kind = %q, want %q", hint.Kind, KindVertex)
	}
	if want := vertexOf(t, g, loopSum).ID; hint.Target != want {
		t.Errorf("Target = %d, want %d", hint.Target, want)
	}
	want := "m = int(input())\ns = 0\nfor i in range(m):\n    s = s + i\n"
	if diff := cmp.Diff(want, hint.Source); diff != "" {
		t.Errorf("Source mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(hint.Patch, "+for i in range(m):") {
		t.Errorf("Patch missing added loop:\n%s", hint.Patch)
	}
	if hint.RequestID == "" {
		t.Errorf("RequestID is empty")
	}
	if hint.Explanation != "Modify the loop at top level" {
		t.Errorf("Explanation = %q", hint.Explanation)
	}
}

func TestFindHint_NearGoalRecommendsGoal(t *testing.T) {
	g := buildGraph(t, []string{readN, initSum, loopSum, solved})
	f := New(g, Options{Threshold: 0.5, K: 100, AllowBelow: true, AllowAbove: true})

	hint, err := f.FindHint(context.Background(), Request{Tree: parseTree(t, loopSum+"print(0)\n")})
	if err != nil {
		t.Fatalf("FindHint failed: %v", err)
	}
	if hint.Kind != KindGoal {
		t.Errorf("Kind = %q, want %q", hint.Kind, KindGoal)
	}
	if want := vertexOf(t, g, solved).ID; hint.Target != want {
		t.Errorf("Target = %d, want %d", hint.Target, want)
	}
	if diff := cmp.Diff(solved, hint.Source); diff != "" {
		t.Errorf("Source mismatch (-want +got):\n%s", diff)
	}
	if hint.Distance != 1 {
		t.Errorf("Distance = %d, want 1", hint.Distance)
	}
}

func TestFindHint_AtGoal(t *testing.T) {
	g := buildGraph(t, []string{readN, solved})
	f := New(g, Options{AllowBelow: true, AllowAbove: true})

	hint, err := f.FindHint(context.Background(), Request{Tree: parseTree(t, solved)})
	if err != nil {
		t.Fatalf("FindHint failed: %v", err)
	}
	if !hint.SameTree || hint.Kind != KindGoal || hint.Distance != 0 {
		t.Errorf("hint = %+v, want same tree goal at distance 0", hint)
	}
	if hint.Source != solved || len(hint.Script) != 0 || hint.Patch != "" {
		t.Errorf("expected no change, got script %v and source %q", hint.Script, hint.Source)
	}
	if hint.Explanation != "No change needed" {
		t.Errorf("Explanation = %q", hint.Explanation)
	}
}

func TestFindHint_Route(t *testing.T) {
	g := buildGraph(t, []string{readN, initSum, loopSum, solved})
	user := "m = int(input())\ns = 0\n"

	tests := []struct {
		name   string
		k      float64
		kind   Kind
		target string
		source string
	}{
		{"nearby vertex", 100, KindVertex, loopSum, user + "for i in range(m):\n    s = s + i\n"},
		{"vertex too far for small k", 0.01, KindGoal, solved, user + "for i in range(m):\n    s = s + i\nprint(s)\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := New(g, Options{K: tt.k, AllowBelow: true, AllowAbove: true})
			hint, err := f.FindHint(context.Background(), Request{Tree: parseTree(t, user)})
			if err != nil {
				t.Fatalf("FindHint failed: %v", err)
			}
			if hint.Kind != tt.kind {
				t.Errorf("Kind = %q, want %q", hint.Kind, tt.kind)
			}
			if want := vertexOf(t, g, tt.target).ID; hint.Target != want {
				t.Errorf("Target = %d, want %d", hint.Target, want)
			}
			if diff := cmp.Diff(tt.source, hint.Source); diff != "" {
				t.Errorf("Source mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFindHint_UnseenStateUsesNearbySizes(t *testing.T) {
	g := buildGraph(t, []string{readN, initSum, loopSum, solved})
	f := New(g, Options{AllowBelow: true, AllowAbove: true})

	user := "m = int(input())\ns = 0\nfor i in range(m):\n    s = s - i\n"
	hint, err := f.FindHint(context.Background(), Request{Tree: parseTree(t, user)})
	if err != nil {
		t.Fatalf("FindHint failed: %v", err)
	}
	if hint.SameTree {
		t.Errorf("SameTree = true for a state missing from the graph")
	}
	if hint.Kind != KindVertex {
		t.Errorf("Kind = %q, want %q", hint.Kind, KindVertex)
	}
	if want := vertexOf(t, g, loopSum).ID; hint.Target != want {
		t.Errorf("Target = %d, want %d", hint.Target, want)
	}
	if hint.Distance != 1 {
		t.Errorf("Distance = %d, want 1", hint.Distance)
	}
	want := "m = int(input())\ns = 0\nfor i in range(m):\n    s = s + i\n"
	if diff := cmp.Diff(want, hint.Source); diff != "" {
		t.Errorf("Source mismatch (-want +got):\n%s", diff)
	}
}

func TestFindHint_MoveOutOfRewrittenBlock(t *testing.T) {
	target := "if x > 2:\n    print(2)\nprint(3)\nprint(1)\n"
	g := buildGraph(t, []string{target})
	f := New(g, Options{AllowBelow: true, AllowAbove: true})

	// The condition is rewritten by canonicalization, so edits inside the
	// if statement cannot be placed on the original tree directly.
	user := "if not not x > 1:\n    print(1)\n    print(2)\nprint(3)\n"
	hint, err := f.FindHint(context.Background(), Request{Tree: parseTree(t, user)})
	if err != nil {
		t.Fatalf("FindHint failed: %v", err)
	}
	v := vertexOf(t, g, target)
	if hint.Target != v.ID {
		t.Errorf("Target = %d, want %d", hint.Target, v.ID)
	}
	key, err := canon.New(canon.Options{}).Key(parseTree(t, hint.Source))
	if err != nil {
		t.Fatalf("Key(%q) failed: %v", hint.Source, err)
	}
	if key != v.Key {
		t.Errorf("hint %q does not reach the target state %q", hint.Source, target)
	}
}

func TestFindHint_KeepsNamesOfRelabelledVariables(t *testing.T) {
	g := buildGraph(t, []string{readN, solved})
	f := New(g, Options{AllowBelow: true, AllowAbove: true})

	hint, err := f.FindHint(context.Background(), Request{Tree: parseTree(t, "total = 0\nn = int(input())\n")})
	if err != nil {
		t.Fatalf("FindHint failed: %v", err)
	}
	if strings.Contains(hint.Source, "total = int(input())") {
		t.Errorf("hint renamed the input variable:\n%s", hint.Source)
	}
}

func TestFindHint_NoGoal(t *testing.T) {
	g := graph.New("sum", nil)
	f := New(g, Options{})
	_, err := f.FindHint(context.Background(), Request{Tree: parseTree(t, readN)})
	if !errors.Is(err, ErrNoGoal) {
		t.Fatalf("FindHint error = %v, want ErrNoGoal", err)
	}
}

type failingEngine struct{}

func (failingEngine) Distance(context.Context, *tree.Node, *tree.Node) (int, error) {
	return 0, &diff.ToolError{Command: "gumtree", ExitCode: 2, Stderr: "boom"}
}

func (failingEngine) EditScript(context.Context, *tree.Node, *tree.Node) (diff.Script, error) {
	return nil, &diff.ToolError{Command: "gumtree", ExitCode: 2, Stderr: "boom"}
}

func TestFindHint_DiffUnavailable(t *testing.T) {
	g := buildGraph(t, []string{readN, solved})
	f := New(g, Options{Engine: failingEngine{}})

	_, err := f.FindHint(context.Background(), Request{Tree: parseTree(t, initSum)})
	if !errors.Is(err, ErrDiffUnavailable) {
		t.Fatalf("FindHint error = %v, want ErrDiffUnavailable", err)
	}
	var toolErr *diff.ToolError
	if !errors.As(err, &toolErr) || toolErr.ExitCode != 2 {
		t.Errorf("error does not carry the tool failure: %v", err)
	}
}

func TestFindHint_Cancelled(t *testing.T) {
	g := buildGraph(t, []string{readN, solved})
	f := New(g, Options{})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.FindHint(ctx, Request{Tree: parseTree(t, initSum)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("FindHint error = %v, want context.Canceled", err)
	}
}

func TestBetter(t *testing.T) {
	g := buildGraph(t, []string{readN, solved}, []string{solved})
	rare, common := vertexOf(t, g, readN), vertexOf(t, g, solved)

	a := &scored{v: rare, score: 1}
	b := &scored{v: common, score: 1}
	if !better(b, a) || better(a, b) {
		t.Errorf("tie not broken by population")
	}
	c := &scored{v: rare, score: 0.5}
	if !better(c, b) {
		t.Errorf("lower score did not win")
	}
}
