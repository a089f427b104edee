// Package proto provides shared type definitions and wire schemas for the
// corpus ingestion boundary and persisted solution graphs.
package proto

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"

	"hintgraph/tree"
)

// SchemaVersion is the version of GraphPayload written by this package.
const SchemaVersion = 1

// incorrect is the score literal for snapshots that failed their tests.
const incorrect = "incorrect"

// Score is a correctness score: a number in [0, 1], the literal
// "incorrect", or unknown (JSON null or absent).
type Score struct {
	Value     float64
	Incorrect bool
	Known     bool
}

// ScoreOf returns a known numeric score.
func ScoreOf(v float64) Score {
	return Score{Value: v, Known: true}
}

// IncorrectScore returns the "incorrect" score.
func IncorrectScore() Score {
	return Score{Incorrect: true, Known: true}
}

// FullSolution reports whether the score marks a complete solution.
func (s Score) FullSolution() bool {
	return s.Known && !s.Incorrect && s.Value >= 1.0
}

// Rate returns the score as a correctness rate; "incorrect" counts as 0.
func (s Score) Rate() (float64, bool) {
	if !s.Known {
		return 0, false
	}
	if s.Incorrect {
		return 0, true
	}
	return s.Value, true
}

func (s Score) String() string {
	switch {
	case !s.Known:
		return "unknown"
	case s.Incorrect:
		return incorrect
	default:
		return strconv.FormatFloat(s.Value, 'g', -1, 64)
	}
}

// MarshalJSON implements json.Marshaler.
func (s Score) MarshalJSON() ([]byte, error) {
	switch {
	case !s.Known:
		return []byte("null"), nil
	case s.Incorrect:
		return json.Marshal(incorrect)
	default:
		return json.Marshal(s.Value)
	}
}

// UnmarshalJSON implements json.Unmarshaler.
func (s *Score) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*s = Score{}
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var lit string
		if err := json.Unmarshal(data, &lit); err != nil {
			return err
		}
		if lit != incorrect {
			return fmt.Errorf("invalid score %q", lit)
		}
		*s = IncorrectScore()
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err != nil {
		return fmt.Errorf("invalid score: %w", err)
	}
	*s = ScoreOf(v)
	return nil
}

// SnapshotRecord is one program snapshot of a student session, as supplied
// by the corpus (one JSON object per line).
type SnapshotRecord struct {
	Exercise         string `json:"exercise"`
	Session          string `json:"session"`
	Source           string `json:"source"`
	Score            Score  `json:"score"`
	SubmitterID      string `json:"submitterId"`
	Timestamp        int64  `json:"timestamp"` // Unix milliseconds
	AgeBucket        *int   `json:"ageBucket,omitempty"`
	ExperienceBucket *int   `json:"experienceBucket,omitempty"`
}

// Provenance returns the provenance part of the record.
func (r *SnapshotRecord) Provenance() Provenance {
	return Provenance{
		SubmitterID:      r.SubmitterID,
		Session:          r.Session,
		Timestamp:        r.Timestamp,
		AgeBucket:        r.AgeBucket,
		ExperienceBucket: r.ExperienceBucket,
		Score:            r.Score,
	}
}

// Provenance records who produced an observed program state and when.
type Provenance struct {
	SubmitterID      string `json:"submitterId"`
	Session          string `json:"session,omitempty"`
	Timestamp        int64  `json:"timestamp"`
	AgeBucket        *int   `json:"ageBucket,omitempty"`
	ExperienceBucket *int   `json:"experienceBucket,omitempty"`
	Score            Score  `json:"score"`
}

// GraphPayload is the self-contained serialized form of a solution graph.
// Vertex IDs are arena indices; they are dense and start at 0.
type GraphPayload struct {
	Version   int             `json:"version"`
	Exercise  string          `json:"exercise"`
	CreatedAt int64           `json:"createdAt"` // Unix milliseconds
	Vertices  []VertexPayload `json:"vertices"`
	Edges     []EdgePayload   `json:"edges"`
}

// VertexPayload represents one persisted vertex.
type VertexPayload struct {
	ID       int              `json:"id"`
	Key      string           `json:"key"`
	Tree     *tree.Node       `json:"tree,omitempty"`
	Goal     bool             `json:"goal,omitempty"`
	Variants []VariantPayload `json:"variants,omitempty"`
}

// VariantPayload represents one persisted surface variant of a vertex.
type VariantPayload struct {
	Key        string            `json:"key"`
	Source     string            `json:"source"`
	Anon       *tree.Node        `json:"anon"`
	Names      map[string]string `json:"names,omitempty"`
	Count      int               `json:"count"`
	Provenance []Provenance      `json:"provenance,omitempty"`
}

// EdgePayload represents one persisted edge.
type EdgePayload struct {
	From  int `json:"from"`
	To    int `json:"to"`
	Count int `json:"count"`
}
