package ingest

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"go.uber.org/goleak"

	"hintgraph/canon"
	"hintgraph/exercisematch"
	"hintgraph/proto"
	"hintgraph/tree"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const corpus = `{"exercise":"sum","session":"a","source":"x = 1\n","score":0.5,"submitterId":"u1","timestamp":20}
{"exercise":"sum","session":"b","source":"y = 2\n","score":1,"submitterId":"u2","timestamp":5}
{"exercise":"sum","session":"a","source":"","score":null,"submitterId":"u1","timestamp":10}
not json
{"exercise":"sum","source":"z = 3\n","timestamp":1}
{"exercise":"sum","session":"a","source":"x = 1\nprint(x)\n","score":1,"submitterId":"u1","timestamp":30}
`

func TestReadJSONL(t *testing.T) {
	var r Reader
	sessions, err := r.ReadJSONL(strings.NewReader(corpus), "corpus.jsonl")
	if err != nil {
		t.Fatalf("ReadJSONL failed: %v", err)
	}
	if r.Skipped() != 2 {
		t.Errorf("Skipped() = %d, want 2", r.Skipped())
	}

	type summary struct {
		ID         string
		Timestamps []int64
	}
	var got []summary
	for _, s := range sessions {
		sum := summary{ID: s.ID}
		for _, rec := range s.Records {
			sum.Timestamps = append(sum.Timestamps, rec.Timestamp)
		}
		got = append(got, sum)
	}
	want := []summary{
		{ID: "a", Timestamps: []int64{10, 20, 30}},
		{ID: "b", Timestamps: []int64{5}},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("sessions mismatch (-want +got):\n%s", diff)
	}
	if sessions[0].Records[0].Score.Known {
		t.Errorf("null score should be unknown")
	}
}

func TestReadJSONL_MatcherAssignsExercise(t *testing.T) {
	r := Reader{Matcher: exercisematch.NewMatcher([]exercisematch.ExerciseRule{
		{Name: "fizzbuzz", Paths: []string{"fizz/**"}},
	})}
	in := `{"session":"s","source":"print(1)\n","timestamp":1}` + "\n"
	sessions, err := r.ReadJSONL(strings.NewReader(in), "fizz/week1.jsonl")
	if err != nil {
		t.Fatalf("ReadJSONL failed: %v", err)
	}
	if len(sessions) != 1 || sessions[0].Exercise != "fizzbuzz" {
		t.Fatalf("sessions = %+v, want one fizzbuzz session", sessions)
	}
}

func TestGroupSessions_StableOnEqualTimestamps(t *testing.T) {
	recs := []proto.SnapshotRecord{
		{Exercise: "e", Session: "s", Source: "first", Timestamp: 1},
		{Exercise: "e", Session: "s", Source: "second", Timestamp: 1},
		{Exercise: "f", Session: "s", Source: "other", Timestamp: 0},
	}
	sessions := GroupSessions(recs)
	if len(sessions) != 2 {
		t.Fatalf("got %d sessions, want 2", len(sessions))
	}
	if sessions[0].Records[0].Source != "first" || sessions[0].Records[1].Source != "second" {
		t.Errorf("equal timestamps reordered: %+v", sessions[0].Records)
	}
	byEx, names := ByExercise(sessions)
	if diff := cmp.Diff([]string{"e", "f"}, names); diff != "" {
		t.Errorf("ByExercise names mismatch (-want +got):\n%s", diff)
	}
	if len(byEx["f"]) != 1 {
		t.Errorf("exercise f has %d sessions, want 1", len(byEx["f"]))
	}
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"b.jsonl", "sub/a.jsonl", "notes.txt"} {
		path := filepath.Join(root, filepath.FromSlash(name))
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(corpus), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	paths, err := Discover(root, "")
	if err != nil {
		t.Fatalf("Discover failed: %v", err)
	}
	want := []string{filepath.Join(root, "b.jsonl"), filepath.Join(root, "sub", "a.jsonl")}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Errorf("Discover mismatch (-want +got):\n%s", diff)
	}

	var r Reader
	sessions, err := r.ReadFiles(paths)
	if err != nil {
		t.Fatalf("ReadFiles failed: %v", err)
	}
	if len(sessions) != 2 || len(sessions[0].Records) != 6 {
		t.Errorf("ReadFiles grouped %d sessions, want 2 with 6 records in the first", len(sessions))
	}
}

func readCorpus(t *testing.T) []*Session {
	t.Helper()
	var r Reader
	sessions, err := r.ReadJSONL(strings.NewReader(corpus), "corpus.jsonl")
	if err != nil {
		t.Fatalf("ReadJSONL failed: %v", err)
	}
	return sessions
}

func TestBuild(t *testing.T) {
	b := &Builder{Workers: 2}
	g, stats, err := b.Build(context.Background(), "sum", readCorpus(t))
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if err := g.Check(); err != nil {
		t.Fatalf("Check failed: %v", err)
	}
	if stats.Sessions != 2 || stats.Snapshots != 4 || stats.Skipped != 0 {
		t.Errorf("stats = %+v", stats)
	}
	if stats.RunID == "" {
		t.Errorf("RunID is empty")
	}
	if got := len(g.Goals()); got != 2 {
		t.Errorf("got %d goals, want 2", got)
	}
	if got := g.Empty().Population(); got != 1 {
		t.Errorf("empty population = %d, want 1", got)
	}
}

func TestBuild_SkipsUnparseable(t *testing.T) {
	sessions := []*Session{{
		Exercise: "e",
		ID:       "s",
		Records: []proto.SnapshotRecord{
			{Exercise: "e", Session: "s", Source: "def (:\n", Timestamp: 1},
			{Exercise: "e", Session: "s", Source: "x = 1\n", Timestamp: 2, Score: proto.ScoreOf(1)},
		},
	}}
	var b Builder
	g, stats, err := b.Build(context.Background(), "e", sessions)
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	if stats.Skipped != 1 {
		t.Errorf("Skipped = %d, want 1", stats.Skipped)
	}
	if g.Len() != 4 {
		t.Errorf("Len() = %d, want 4", g.Len())
	}
}

func TestBuild_Deterministic(t *testing.T) {
	sessions := readCorpus(t)
	build := func(workers int) *proto.GraphPayload {
		b := &Builder{Workers: workers}
		g, _, err := b.Build(context.Background(), "sum", sessions)
		if err != nil {
			t.Fatalf("Build(workers=%d) failed: %v", workers, err)
		}
		return g.Export()
	}
	ignore := cmpopts.IgnoreFields(proto.GraphPayload{}, "CreatedAt")
	if diff := cmp.Diff(build(1), build(8), ignore); diff != "" {
		t.Errorf("graph depends on worker count (-1 +8):\n%s", diff)
	}
}

func TestBuild_WrongExercise(t *testing.T) {
	var b Builder
	_, _, err := b.Build(context.Background(), "other", readCorpus(t))
	if err == nil {
		t.Fatalf("Build accepted sessions of another exercise")
	}
}

func TestBuild_NonTerminationAborts(t *testing.T) {
	// Toggles the root value forever without growing the tree.
	flip := canon.Rewrite{Name: "flip", Fn: func(n *tree.Node) *tree.Node {
		if n.Value == "" {
			return n.WithValue("x")
		}
		return n.WithValue("")
	}}
	b := &Builder{Canon: canon.New(canon.Options{MaxPasses: 4, Rewrites: []canon.Rewrite{flip}})}
	_, _, err := b.Build(context.Background(), "sum", readCorpus(t))
	if !errors.Is(err, canon.ErrNonTermination) {
		t.Fatalf("err = %v, want ErrNonTermination", err)
	}
}

func TestBuild_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var b Builder
	_, _, err := b.Build(ctx, "sum", readCorpus(t))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}
