// Package store persists solution graphs: a SQLite database holding every
// exercise's graph, and zstd-compressed pack files holding one.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"hintgraph/cas"
	"hintgraph/graph"
	"hintgraph/proto"
	"hintgraph/tree"
)

//go:embed schema.sql
var schemaSQL string

//go:embed pragmas.sql
var pragmasSQL string

var (
	ErrGraphNotFound = errors.New("graph not found")

	// ErrCorrupt is graph.ErrCorrupt, so either sentinel matches.
	ErrCorrupt = graph.ErrCorrupt
)

// DB wraps a SQLite connection holding solution graphs.
type DB struct {
	conn *sql.DB
	mu   sync.RWMutex
	path string
	log  *zap.Logger
}

// OpenDataDB opens or creates the database under a data directory.
func OpenDataDB(dataDir string, logger *zap.Logger) (*DB, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}
	return Open(filepath.Join(dataDir, "hintgraph.db"), logger)
}

// Open opens a database at the given path.
func Open(dbPath string, logger *zap.Logger) (*DB, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	conn, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite: %w", err)
	}

	db := &DB{conn: conn, path: dbPath, log: logger}

	for _, pragma := range strings.Split(pragmasSQL, "\n") {
		pragma = strings.TrimSpace(pragma)
		if pragma == "" || strings.HasPrefix(pragma, "--") {
			continue
		}
		if _, err := conn.Exec(pragma); err != nil {
			conn.Close()
			return nil, fmt.Errorf("applying pragma %q: %w", pragma, err)
		}
	}

	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

// Path returns the database file path.
func (db *DB) Path() string {
	return db.path
}

// GraphInfo describes a stored graph.
type GraphInfo struct {
	Exercise  string
	Version   int
	CreatedAt int64
	SavedAt   int64
	Checksum  string
	Vertices  int
}

// ----- Save -----

// SaveGraph replaces the stored graph of g's exercise.
func (db *DB) SaveGraph(ctx context.Context, g *graph.Graph) error {
	p := g.Export()
	sum, err := cas.Checksum(p)
	if err != nil {
		return fmt.Errorf("computing checksum: %w", err)
	}

	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if err := deleteGraph(ctx, tx, p.Exercise); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO graphs (exercise, version, created_at, saved_at, checksum) VALUES (?, ?, ?, ?, ?)`,
		p.Exercise, p.Version, p.CreatedAt, cas.NowMs(), sum,
	); err != nil {
		return fmt.Errorf("inserting graph: %w", err)
	}

	for _, v := range p.Vertices {
		if err := insertVertex(ctx, tx, p.Exercise, v); err != nil {
			return err
		}
	}

	ord := make(map[int]int)
	for _, e := range p.Edges {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO edges (exercise, src, ord, dst, count) VALUES (?, ?, ?, ?, ?)`,
			p.Exercise, e.From, ord[e.From], e.To, e.Count,
		); err != nil {
			return fmt.Errorf("inserting edge %d -> %d: %w", e.From, e.To, err)
		}
		ord[e.From]++
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing: %w", err)
	}
	db.log.Info("saved graph",
		zap.String("exercise", p.Exercise),
		zap.Int("vertices", len(p.Vertices)),
		zap.Int("edges", len(p.Edges)))
	return nil
}

func deleteGraph(ctx context.Context, tx *sql.Tx, exercise string) error {
	for _, table := range []string{"graphs", "vertices", "variants", "provenance", "edges"} {
		if _, err := tx.ExecContext(ctx, `DELETE FROM `+table+` WHERE exercise = ?`, exercise); err != nil {
			return fmt.Errorf("clearing %s: %w", table, err)
		}
	}
	return nil
}

func insertVertex(ctx context.Context, tx *sql.Tx, exercise string, v proto.VertexPayload) error {
	treeJSON, err := json.Marshal(v.Tree)
	if err != nil {
		return fmt.Errorf("marshaling vertex %d: %w", v.ID, err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO vertices (exercise, id, key, tree, goal) VALUES (?, ?, ?, ?, ?)`,
		exercise, v.ID, v.Key, string(treeJSON), v.Goal,
	); err != nil {
		return fmt.Errorf("inserting vertex %d: %w", v.ID, err)
	}

	for i, va := range v.Variants {
		anon, err := json.Marshal(va.Anon)
		if err != nil {
			return fmt.Errorf("marshaling variant: %w", err)
		}
		names, err := json.Marshal(va.Names)
		if err != nil {
			return fmt.Errorf("marshaling names: %w", err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO variants (exercise, vertex, ord, key, source, anon, names, count) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			exercise, v.ID, i, va.Key, va.Source, string(anon), string(names), va.Count,
		); err != nil {
			return fmt.Errorf("inserting variant of vertex %d: %w", v.ID, err)
		}

		for seq, pr := range va.Provenance {
			score, err := json.Marshal(pr.Score)
			if err != nil {
				return fmt.Errorf("marshaling score: %w", err)
			}
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO provenance (exercise, vertex, variant, seq, submitter, session, ts, age, experience, score)
				 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
				exercise, v.ID, i, seq, pr.SubmitterID, pr.Session, pr.Timestamp,
				nullInt(pr.AgeBucket), nullInt(pr.ExperienceBucket), string(score),
			); err != nil {
				return fmt.Errorf("inserting provenance: %w", err)
			}
		}
	}
	return nil
}

func nullInt(p *int) sql.NullInt64 {
	if p == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*p), Valid: true}
}

func intPtr(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

// ----- Load -----

// LoadGraph restores the stored graph of an exercise. The stored checksum
// is verified before the graph is rebuilt.
func (db *DB) LoadGraph(ctx context.Context, exercise string) (*graph.Graph, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	p := &proto.GraphPayload{Exercise: exercise}
	var sum string
	err := db.conn.QueryRowContext(ctx,
		`SELECT version, created_at, checksum FROM graphs WHERE exercise = ?`, exercise,
	).Scan(&p.Version, &p.CreatedAt, &sum)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: %s", ErrGraphNotFound, exercise)
	}
	if err != nil {
		return nil, fmt.Errorf("querying graph: %w", err)
	}

	if p.Vertices, err = db.loadVertices(ctx, exercise); err != nil {
		return nil, err
	}
	if p.Edges, err = db.loadEdges(ctx, exercise); err != nil {
		return nil, err
	}

	got, err := cas.Checksum(p)
	if err != nil {
		return nil, fmt.Errorf("computing checksum: %w", err)
	}
	if got != sum {
		return nil, fmt.Errorf("%w: checksum mismatch for %s", ErrCorrupt, exercise)
	}
	return graph.Import(p, db.log)
}

func (db *DB) loadVertices(ctx context.Context, exercise string) ([]proto.VertexPayload, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT id, key, tree, goal FROM vertices WHERE exercise = ? ORDER BY id`, exercise)
	if err != nil {
		return nil, fmt.Errorf("querying vertices: %w", err)
	}
	defer rows.Close()

	var out []proto.VertexPayload
	for rows.Next() {
		var v proto.VertexPayload
		var treeJSON string
		if err := rows.Scan(&v.ID, &v.Key, &treeJSON, &v.Goal); err != nil {
			return nil, fmt.Errorf("scanning vertex: %w", err)
		}
		if v.Tree, err = decodeTree(treeJSON); err != nil {
			return nil, fmt.Errorf("%w: vertex %d: %v", ErrCorrupt, v.ID, err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	variants, err := db.loadVariants(ctx, exercise)
	if err != nil {
		return nil, err
	}
	for i := range out {
		out[i].Variants = variants[out[i].ID]
	}
	return out, nil
}

func (db *DB) loadVariants(ctx context.Context, exercise string) (map[int][]proto.VariantPayload, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT vertex, ord, key, source, anon, names, count FROM variants
		 WHERE exercise = ? ORDER BY vertex, ord`, exercise)
	if err != nil {
		return nil, fmt.Errorf("querying variants: %w", err)
	}
	defer rows.Close()

	out := make(map[int][]proto.VariantPayload)
	for rows.Next() {
		var (
			vertex, ord       int
			va                proto.VariantPayload
			anonJSON, namesJS string
		)
		if err := rows.Scan(&vertex, &ord, &va.Key, &va.Source, &anonJSON, &namesJS, &va.Count); err != nil {
			return nil, fmt.Errorf("scanning variant: %w", err)
		}
		if ord != len(out[vertex]) {
			return nil, fmt.Errorf("%w: variant %d of vertex %d out of order", ErrCorrupt, ord, vertex)
		}
		if va.Anon, err = decodeTree(anonJSON); err != nil {
			return nil, fmt.Errorf("%w: variant of vertex %d: %v", ErrCorrupt, vertex, err)
		}
		if err := json.Unmarshal([]byte(namesJS), &va.Names); err != nil {
			return nil, fmt.Errorf("%w: names of vertex %d: %v", ErrCorrupt, vertex, err)
		}
		out[vertex] = append(out[vertex], va)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	prov, err := db.loadProvenance(ctx, exercise)
	if err != nil {
		return nil, err
	}
	for vertex, vs := range out {
		for i := range vs {
			vs[i].Provenance = prov[[2]int{vertex, i}]
		}
	}
	return out, nil
}

func (db *DB) loadProvenance(ctx context.Context, exercise string) (map[[2]int][]proto.Provenance, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT vertex, variant, submitter, session, ts, age, experience, score FROM provenance
		 WHERE exercise = ? ORDER BY vertex, variant, seq`, exercise)
	if err != nil {
		return nil, fmt.Errorf("querying provenance: %w", err)
	}
	defer rows.Close()

	out := make(map[[2]int][]proto.Provenance)
	for rows.Next() {
		var (
			vertex, variant int
			p               proto.Provenance
			age, exp        sql.NullInt64
			score           string
		)
		if err := rows.Scan(&vertex, &variant, &p.SubmitterID, &p.Session, &p.Timestamp, &age, &exp, &score); err != nil {
			return nil, fmt.Errorf("scanning provenance: %w", err)
		}
		p.AgeBucket, p.ExperienceBucket = intPtr(age), intPtr(exp)
		if err := json.Unmarshal([]byte(score), &p.Score); err != nil {
			return nil, fmt.Errorf("%w: score: %v", ErrCorrupt, err)
		}
		key := [2]int{vertex, variant}
		out[key] = append(out[key], p)
	}
	return out, rows.Err()
}

func (db *DB) loadEdges(ctx context.Context, exercise string) ([]proto.EdgePayload, error) {
	rows, err := db.conn.QueryContext(ctx,
		`SELECT src, dst, count FROM edges WHERE exercise = ? ORDER BY src, ord`, exercise)
	if err != nil {
		return nil, fmt.Errorf("querying edges: %w", err)
	}
	defer rows.Close()

	var out []proto.EdgePayload
	for rows.Next() {
		var e proto.EdgePayload
		if err := rows.Scan(&e.From, &e.To, &e.Count); err != nil {
			return nil, fmt.Errorf("scanning edge: %w", err)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func decodeTree(s string) (*tree.Node, error) {
	var n *tree.Node
	if err := json.Unmarshal([]byte(s), &n); err != nil {
		return nil, err
	}
	return n, nil
}

// ----- Listing -----

// ListGraphs describes every stored graph, ordered by exercise.
func (db *DB) ListGraphs(ctx context.Context) ([]GraphInfo, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	rows, err := db.conn.QueryContext(ctx, `
		SELECT g.exercise, g.version, g.created_at, g.saved_at, g.checksum,
		       (SELECT COUNT(*) FROM vertices v WHERE v.exercise = g.exercise)
		FROM graphs g ORDER BY g.exercise`)
	if err != nil {
		return nil, fmt.Errorf("querying graphs: %w", err)
	}
	defer rows.Close()

	var out []GraphInfo
	for rows.Next() {
		var gi GraphInfo
		if err := rows.Scan(&gi.Exercise, &gi.Version, &gi.CreatedAt, &gi.SavedAt, &gi.Checksum, &gi.Vertices); err != nil {
			return nil, fmt.Errorf("scanning graph: %w", err)
		}
		out = append(out, gi)
	}
	return out, rows.Err()
}

// DeleteGraph removes a stored graph.
func (db *DB) DeleteGraph(ctx context.Context, exercise string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM graphs WHERE exercise = ?`, exercise)
	if err != nil {
		return fmt.Errorf("deleting graph: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrGraphNotFound, exercise)
	}
	if err := deleteGraph(ctx, tx, exercise); err != nil {
		return err
	}
	return tx.Commit()
}
