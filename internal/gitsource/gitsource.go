// Package gitsource reads student sessions out of Git history using go-git.
// Every commit that touches the tracked file becomes one snapshot; commits
// are grouped into sessions by author.
package gitsource

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"go.uber.org/zap"

	"hintgraph/internal/ingest"
	"hintgraph/proto"
)

// ScoreTrailer is the commit message trailer carrying a snapshot score,
// e.g. "Score: 1" or "Score: incorrect".
const ScoreTrailer = "Score:"

// Repository wraps a go-git repository.
type Repository struct {
	repo *git.Repository
	path string
	log  *zap.Logger
}

// Open opens an existing Git repository.
func Open(repoPath string, logger *zap.Logger) (*Repository, error) {
	repo, err := git.PlainOpen(repoPath)
	if err != nil {
		return nil, fmt.Errorf("opening repository: %w", err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Repository{repo: repo, path: repoPath, log: logger}, nil
}

// ResolveRef resolves a branch name, tag or commit hash to a commit. An
// empty ref means HEAD.
func (r *Repository) ResolveRef(refName string) (*object.Commit, error) {
	if refName == "" {
		head, err := r.repo.Head()
		if err != nil {
			return nil, fmt.Errorf("resolving HEAD: %w", err)
		}
		return r.repo.CommitObject(head.Hash())
	}
	for _, name := range []plumbing.ReferenceName{
		plumbing.NewBranchReferenceName(refName),
		plumbing.NewTagReferenceName(refName),
	} {
		if ref, err := r.repo.Reference(name, true); err == nil {
			commit, err := r.repo.CommitObject(ref.Hash())
			if err != nil {
				return nil, fmt.Errorf("getting commit: %w", err)
			}
			return commit, nil
		}
	}
	commit, err := r.repo.CommitObject(plumbing.NewHash(refName))
	if err != nil {
		return nil, fmt.Errorf("resolving ref %q: not a branch, tag, or commit hash", refName)
	}
	return commit, nil
}

// Sessions walks the history reachable from ref and returns one session
// per commit author, holding the content of file at every commit that
// changed it. Commits where the file is absent are skipped.
func (r *Repository) Sessions(ctx context.Context, ref, exercise, file string) ([]*ingest.Session, error) {
	from, err := r.ResolveRef(ref)
	if err != nil {
		return nil, err
	}
	iter, err := r.repo.Log(&git.LogOptions{
		From:     from.Hash,
		FileName: &file,
		Order:    git.LogOrderCommitterTime,
	})
	if err != nil {
		return nil, fmt.Errorf("walking history: %w", err)
	}
	defer iter.Close()

	var records []proto.SnapshotRecord
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		c, err := iter.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("walking history: %w", err)
		}
		src, ok, err := fileAt(c, file)
		if err != nil {
			return nil, err
		}
		if !ok {
			r.log.Debug("file absent at commit", zap.String("commit", c.Hash.String()), zap.String("file", file))
			continue
		}
		author := c.Author.Email
		if author == "" {
			author = c.Author.Name
		}
		records = append(records, proto.SnapshotRecord{
			Exercise:    exercise,
			Session:     author,
			Source:      src,
			Score:       scoreOf(c.Message),
			SubmitterID: author,
			Timestamp:   c.Author.When.UnixMilli(),
		})
	}

	// The log is newest first; grouping sorts each session by time.
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	sessions := ingest.GroupSessions(records)
	r.log.Info("read git history",
		zap.String("repo", r.path),
		zap.String("file", file),
		zap.Int("commits", len(records)),
		zap.Int("sessions", len(sessions)))
	return sessions, nil
}

func fileAt(c *object.Commit, path string) (string, bool, error) {
	f, err := c.File(path)
	if errors.Is(err, object.ErrFileNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, fmt.Errorf("getting file %s at %s: %w", path, c.Hash, err)
	}
	content, err := f.Contents()
	if err != nil {
		return "", false, fmt.Errorf("reading file %s at %s: %w", path, c.Hash, err)
	}
	return content, true, nil
}

// scoreOf reads the last score trailer of a commit message.
func scoreOf(message string) proto.Score {
	var score proto.Score
	for _, line := range strings.Split(message, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, ScoreTrailer) {
			continue
		}
		value := strings.TrimSpace(strings.TrimPrefix(line, ScoreTrailer))
		if value == "incorrect" {
			score = proto.IncorrectScore()
			continue
		}
		if v, err := strconv.ParseFloat(value, 64); err == nil {
			score = proto.ScoreOf(v)
		}
	}
	return score
}
