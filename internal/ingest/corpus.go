// Package ingest reads student session corpora and builds solution graphs
// from them.
package ingest

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"go.uber.org/zap"

	"hintgraph/exercisematch"
	"hintgraph/proto"
)

// DefaultPattern selects corpus files under a root directory.
const DefaultPattern = "**/*.jsonl"

// maxLine bounds one JSONL record.
const maxLine = 16 << 20

// Session is one student's editing session, ordered by timestamp.
type Session struct {
	Exercise string
	ID       string
	Records  []proto.SnapshotRecord
}

// Reader reads JSONL corpus files. Malformed lines are skipped and logged.
type Reader struct {
	// Matcher assigns an exercise to records that carry none, by file path.
	Matcher *exercisematch.Matcher
	Logger  *zap.Logger

	skipped int
}

// Skipped returns how many lines were dropped so far.
func (r *Reader) Skipped() int {
	return r.skipped
}

func (r *Reader) log() *zap.Logger {
	if r.Logger == nil {
		return zap.NewNop()
	}
	return r.Logger
}

// Discover returns the files under root matching a doublestar pattern,
// sorted.
func Discover(root, pattern string) ([]string, error) {
	if pattern == "" {
		pattern = DefaultPattern
	}
	matches, err := doublestar.Glob(os.DirFS(root), pattern, doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("matching %q under %s: %w", pattern, root, err)
	}
	sort.Strings(matches)
	out := make([]string, len(matches))
	for i, m := range matches {
		out[i] = filepath.Join(root, filepath.FromSlash(m))
	}
	return out, nil
}

// ReadFiles reads every file and groups records into sessions.
func (r *Reader) ReadFiles(paths []string) ([]*Session, error) {
	var records []proto.SnapshotRecord
	for _, path := range paths {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening corpus file: %w", err)
		}
		recs, err := r.read(f, path)
		f.Close()
		if err != nil {
			return nil, err
		}
		records = append(records, recs...)
	}
	return GroupSessions(records), nil
}

// ReadJSONL reads one JSONL stream and groups its records into sessions.
// name is used for exercise matching and log messages.
func (r *Reader) ReadJSONL(in io.Reader, name string) ([]*Session, error) {
	recs, err := r.read(in, name)
	if err != nil {
		return nil, err
	}
	return GroupSessions(recs), nil
}

func (r *Reader) read(in io.Reader, name string) ([]proto.SnapshotRecord, error) {
	exercise := ""
	if r.Matcher != nil {
		exercise, _ = r.Matcher.Match(name)
	}

	var out []proto.SnapshotRecord
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 64*1024), maxLine)
	line := 0
	for sc.Scan() {
		line++
		data := sc.Bytes()
		if len(data) == 0 {
			continue
		}
		var rec proto.SnapshotRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			r.skipped++
			r.log().Warn("skipping malformed record",
				zap.String("file", name), zap.Int("line", line), zap.Error(err))
			continue
		}
		if rec.Exercise == "" {
			rec.Exercise = exercise
		}
		if rec.Exercise == "" || rec.Session == "" {
			r.skipped++
			r.log().Warn("skipping record without exercise or session",
				zap.String("file", name), zap.Int("line", line))
			continue
		}
		out = append(out, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", name, err)
	}
	return out, nil
}

// GroupSessions groups records by exercise and session in order of first
// appearance and sorts each session by timestamp, keeping input order for
// equal timestamps.
func GroupSessions(records []proto.SnapshotRecord) []*Session {
	type key struct{ exercise, session string }
	index := make(map[key]*Session)
	var out []*Session
	for _, rec := range records {
		k := key{rec.Exercise, rec.Session}
		s, ok := index[k]
		if !ok {
			s = &Session{Exercise: rec.Exercise, ID: rec.Session}
			index[k] = s
			out = append(out, s)
		}
		s.Records = append(s.Records, rec)
	}
	for _, s := range out {
		sort.SliceStable(s.Records, func(i, j int) bool {
			return s.Records[i].Timestamp < s.Records[j].Timestamp
		})
	}
	return out
}

// ByExercise splits sessions per exercise and returns the sorted exercise
// names.
func ByExercise(sessions []*Session) (map[string][]*Session, []string) {
	m := make(map[string][]*Session)
	for _, s := range sessions {
		m[s.Exercise] = append(m[s.Exercise], s)
	}
	names := make([]string, 0, len(m))
	for n := range m {
		names = append(names, n)
	}
	sort.Strings(names)
	return m, names
}
