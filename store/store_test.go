package store

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/klauspost/compress/zstd"

	"hintgraph/canon"
	"hintgraph/cas"
	"hintgraph/graph"
	"hintgraph/parse"
	"hintgraph/proto"
)

var cmpOpts = []cmp.Option{
	cmpopts.EquateEmpty(),
	cmpopts.SortSlices(func(a, b int) bool { return a < b }),
}

var parser = parse.NewParser()

func prepare(t *testing.T, src string) *canon.Prepared {
	t.Helper()
	prog, err := parser.ParseString(src)
	if err != nil {
		t.Fatalf("ParseString(%q) failed: %v", src, err)
	}
	prep, err := canon.New(canon.Options{}).Prepare(prog.Root)
	if err != nil {
		t.Fatalf("Prepare(%q) failed: %v", src, err)
	}
	return prep
}

func buildGraph(t *testing.T, exercise string, chains ...[]string) *graph.Graph {
	t.Helper()
	g := graph.New(exercise, nil)
	age := 3
	for s, srcs := range chains {
		var chain []graph.Snapshot
		for i, src := range srcs {
			score := proto.IncorrectScore()
			if i == len(srcs)-1 {
				score = proto.ScoreOf(1)
			}
			prov := proto.Provenance{SubmitterID: "u", Session: string(rune('a' + s)), Timestamp: int64(1000 + i), Score: score}
			if s == 0 {
				prov.AgeBucket = &age
			}
			chain = append(chain, graph.Snapshot{Prepared: prepare(t, src), Provenance: prov, FullSolution: score.FullSolution()})
		}
		if err := g.InsertChain(chain); err != nil {
			t.Fatalf("InsertChain failed: %v", err)
		}
	}
	return g
}

func sampleGraph(t *testing.T) *graph.Graph {
	return buildGraph(t, "sum",
		[]string{"x = 1\n", "x = 1\nprint(x)\n"},
		[]string{"y = 2\n", "print(3)\n"},
		[]string{"x = 1\n", "x = 1\nprint(x)\n"},
	)
}

func assertSameGraph(t *testing.T, want, got *graph.Graph) {
	t.Helper()
	if want.Len() != got.Len() {
		t.Fatalf("Len() = %d, want %d", got.Len(), want.Len())
	}
	for id := 0; id < want.Len(); id++ {
		if diff := cmp.Diff(want.Vertex(id), got.Vertex(id), cmpOpts...); diff != "" {
			t.Errorf("vertex %d mismatch (-want +got):\n%s", id, diff)
		}
	}
	if err := got.Check(); err != nil {
		t.Errorf("Check failed: %v", err)
	}
}

func openTestDB(t *testing.T) *DB {
	t.Helper()
	db, err := OpenDataDB(t.TempDir(), nil)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

func TestOpenDataDB(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "data")
	db, err := OpenDataDB(dir, nil)
	if err != nil {
		t.Fatalf("failed to open db: %v", err)
	}
	defer db.Close()

	expectedPath := filepath.Join(dir, "hintgraph.db")
	if _, err := os.Stat(expectedPath); os.IsNotExist(err) {
		t.Errorf("expected database file at %s", expectedPath)
	}
	if db.Path() != expectedPath {
		t.Errorf("Path() = %q, want %q", db.Path(), expectedPath)
	}
}

func TestSaveLoadGraph(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	g := sampleGraph(t)

	if err := db.SaveGraph(ctx, g); err != nil {
		t.Fatalf("SaveGraph failed: %v", err)
	}
	loaded, err := db.LoadGraph(ctx, "sum")
	if err != nil {
		t.Fatalf("LoadGraph failed: %v", err)
	}
	assertSameGraph(t, g, loaded)

	// Vertices created after loading do not collide with stored IDs.
	n := loaded.Len()
	prep := prepare(t, "z = [1]\n")
	if err := loaded.InsertChain([]graph.Snapshot{{Prepared: prep}}); err != nil {
		t.Fatalf("InsertChain failed: %v", err)
	}
	if got, ok := loaded.FindVertex(prep.Form.Key); !ok || got.ID != n {
		t.Errorf("new vertex not appended at %d", n)
	}
}

func TestSaveGraph_Replaces(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)

	if err := db.SaveGraph(ctx, buildGraph(t, "sum", []string{"x = 1\n"})); err != nil {
		t.Fatalf("SaveGraph failed: %v", err)
	}
	g := sampleGraph(t)
	if err := db.SaveGraph(ctx, g); err != nil {
		t.Fatalf("SaveGraph failed: %v", err)
	}

	infos, err := db.ListGraphs(ctx)
	if err != nil {
		t.Fatalf("ListGraphs failed: %v", err)
	}
	if len(infos) != 1 || infos[0].Exercise != "sum" || infos[0].Vertices != g.Len() {
		t.Fatalf("ListGraphs = %+v, want one graph with %d vertices", infos, g.Len())
	}
	loaded, err := db.LoadGraph(ctx, "sum")
	if err != nil {
		t.Fatalf("LoadGraph failed: %v", err)
	}
	assertSameGraph(t, g, loaded)
}

func TestLoadGraph_NotFound(t *testing.T) {
	db := openTestDB(t)
	_, err := db.LoadGraph(context.Background(), "missing")
	if !errors.Is(err, ErrGraphNotFound) {
		t.Errorf("expected ErrGraphNotFound, got %v", err)
	}
}

func TestLoadGraph_Corrupt(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	if err := db.SaveGraph(ctx, sampleGraph(t)); err != nil {
		t.Fatalf("SaveGraph failed: %v", err)
	}
	if _, err := db.conn.Exec(`UPDATE edges SET count = count + 5 WHERE src = 1`); err != nil {
		t.Fatalf("tampering failed: %v", err)
	}

	_, err := db.LoadGraph(ctx, "sum")
	if !errors.Is(err, ErrCorrupt) || !errors.Is(err, graph.ErrCorrupt) {
		t.Errorf("expected ErrCorrupt, got %v", err)
	}
}

func TestDeleteGraph(t *testing.T) {
	ctx := context.Background()
	db := openTestDB(t)
	if err := db.SaveGraph(ctx, sampleGraph(t)); err != nil {
		t.Fatalf("SaveGraph failed: %v", err)
	}
	if err := db.DeleteGraph(ctx, "sum"); err != nil {
		t.Fatalf("DeleteGraph failed: %v", err)
	}
	if _, err := db.LoadGraph(ctx, "sum"); !errors.Is(err, ErrGraphNotFound) {
		t.Errorf("expected ErrGraphNotFound after delete, got %v", err)
	}
	if err := db.DeleteGraph(ctx, "sum"); !errors.Is(err, ErrGraphNotFound) {
		t.Errorf("expected ErrGraphNotFound on second delete, got %v", err)
	}
}

func TestPackRoundTrip(t *testing.T) {
	g := sampleGraph(t)
	var buf bytes.Buffer
	if err := WritePack(&buf, g); err != nil {
		t.Fatalf("WritePack failed: %v", err)
	}

	header, _, err := ReadPackHeader(bytes.NewReader(buf.Bytes()))
	if err != nil {
		t.Fatalf("ReadPackHeader failed: %v", err)
	}
	if header.Exercise != "sum" || header.Vertices != g.Len() || header.Version != proto.SchemaVersion {
		t.Errorf("unexpected header %+v", header)
	}

	loaded, err := ReadPack(&buf, nil)
	if err != nil {
		t.Fatalf("ReadPack failed: %v", err)
	}
	assertSameGraph(t, g, loaded)
}

// rawPack compresses a pack from explicit parts.
func rawPack(t *testing.T, header PackHeader, body []byte) []byte {
	t.Helper()
	h, err := json.Marshal(header)
	if err != nil {
		t.Fatalf("marshal header: %v", err)
	}
	var plain bytes.Buffer
	var lenBuf [HeaderLengthSize]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(h)))
	plain.Write(lenBuf[:])
	plain.Write(h)
	plain.Write(body)

	enc, err := zstd.NewWriter(nil)
	if err != nil {
		t.Fatalf("zstd writer: %v", err)
	}
	defer enc.Close()
	return enc.EncodeAll(plain.Bytes(), nil)
}

func TestReadPack_Corrupt(t *testing.T) {
	g := sampleGraph(t)
	body, err := json.Marshal(g.Export())
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	good := PackHeader{Version: proto.SchemaVersion, Exercise: "sum", Vertices: g.Len()}

	tests := []struct {
		name string
		data []byte
	}{
		{"not zstd", []byte("definitely not a pack")},
		{"bad checksum", rawPack(t, PackHeader{Version: proto.SchemaVersion, Checksum: "00"}, body)},
		{"bad version", rawPack(t, PackHeader{Version: 42}, body)},
		{"bad counts", rawPack(t, func() PackHeader {
			h := good
			h.Checksum = cas.Blake3HashHex(body)
			h.Edges = 999
			return h
		}(), body)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ReadPack(bytes.NewReader(tt.data), nil); !errors.Is(err, ErrCorrupt) {
				t.Errorf("expected ErrCorrupt, got %v", err)
			}
		})
	}
}
