package ingest

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"hintgraph/canon"
	"hintgraph/graph"
	"hintgraph/parse"
)

// Builder turns sessions into solution graph chains. Sessions are parsed
// and canonicalized in parallel, then inserted one at a time in input
// order, so vertex IDs do not depend on scheduling.
type Builder struct {
	Parser  *parse.Parser
	Canon   *canon.Canonicalizer
	Workers int
	Logger  *zap.Logger
}

// BuildStats summarizes one build run.
type BuildStats struct {
	RunID     string `json:"runId"`
	Exercise  string `json:"exercise"`
	Sessions  int    `json:"sessions"`
	Snapshots int    `json:"snapshots"`
	Skipped   int    `json:"skipped"` // snapshots that did not parse
	Vertices  int    `json:"vertices"`
}

func (b *Builder) defaults() (*parse.Parser, *canon.Canonicalizer, int, *zap.Logger) {
	p, c, w, log := b.Parser, b.Canon, b.Workers, b.Logger
	if log == nil {
		log = zap.NewNop()
	}
	if p == nil {
		p = parse.NewParser()
	}
	if c == nil {
		c = canon.New(canon.Options{Logger: log})
	}
	if w <= 0 {
		w = runtime.NumCPU()
	}
	return p, c, w, log
}

// Build creates the graph of one exercise from its sessions.
func (b *Builder) Build(ctx context.Context, exercise string, sessions []*Session) (*graph.Graph, BuildStats, error) {
	g := graph.New(exercise, b.Logger)
	stats, err := b.Insert(ctx, g, sessions)
	if err != nil {
		return nil, stats, err
	}
	return g, stats, nil
}

// Insert adds sessions to an existing graph. Snapshots that fail to parse
// are skipped and logged; a canonicalization failure aborts the run.
func (b *Builder) Insert(ctx context.Context, g *graph.Graph, sessions []*Session) (BuildStats, error) {
	parser, canonicalizer, workers, log := b.defaults()
	stats := BuildStats{RunID: uuid.NewString(), Exercise: g.Exercise, Sessions: len(sessions)}
	log = log.With(zap.String("run", stats.RunID), zap.String("exercise", g.Exercise))

	chains := make([][]graph.Snapshot, len(sessions))
	var skipped atomic.Int64

	for _, s := range sessions {
		if s.Exercise != g.Exercise {
			return stats, fmt.Errorf("session %s belongs to exercise %q, not %q", s.ID, s.Exercise, g.Exercise)
		}
		stats.Snapshots += len(s.Records)
	}

	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(workers)
	for i, s := range sessions {
		i, s := i, s
		eg.Go(func() error {
			chain := make([]graph.Snapshot, 0, len(s.Records))
			for _, rec := range s.Records {
				if err := egCtx.Err(); err != nil {
					return err
				}
				prog, err := parser.ParseCtx(egCtx, []byte(rec.Source))
				if errors.Is(err, parse.ErrParse) {
					skipped.Add(1)
					log.Warn("skipping unparseable snapshot",
						zap.String("session", s.ID),
						zap.Int64("timestamp", rec.Timestamp),
						zap.Error(err))
					continue
				}
				if err != nil {
					return fmt.Errorf("parsing session %s: %w", s.ID, err)
				}
				prep, err := canonicalizer.Prepare(prog.Root)
				if err != nil {
					return fmt.Errorf("canonicalizing session %s at %d: %w", s.ID, rec.Timestamp, err)
				}
				chain = append(chain, graph.Snapshot{
					Prepared:     prep,
					Provenance:   rec.Provenance(),
					FullSolution: rec.Score.FullSolution(),
				})
			}
			chains[i] = chain
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return stats, err
	}
	stats.Skipped = int(skipped.Load())

	for i, chain := range chains {
		if len(chain) == 0 {
			continue
		}
		if err := g.InsertChain(chain); err != nil {
			return stats, fmt.Errorf("inserting session %s: %w", sessions[i].ID, err)
		}
	}
	stats.Vertices = g.Len()

	log.Info("built graph",
		zap.Int("sessions", stats.Sessions),
		zap.Int("snapshots", stats.Snapshots),
		zap.Int("skipped", stats.Skipped),
		zap.Int("vertices", stats.Vertices))
	return stats, nil
}
