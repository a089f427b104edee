package gitsource

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/google/go-cmp/cmp"

	"hintgraph/proto"
)

type commit struct {
	author  string
	content string // "" removes the file
	other   bool   // touch an unrelated file instead
	message string
}

func initRepo(t *testing.T, commits []commit) string {
	t.Helper()
	dir := t.TempDir()
	repo, err := git.PlainInit(dir, false)
	if err != nil {
		t.Fatalf("PlainInit failed: %v", err)
	}
	wt, err := repo.Worktree()
	if err != nil {
		t.Fatalf("Worktree failed: %v", err)
	}
	base := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	for i, c := range commits {
		name := "solution.py"
		if c.other {
			name = "README"
		}
		path := filepath.Join(dir, name)
		if c.content == "" && !c.other {
			if _, err := wt.Remove(name); err != nil {
				t.Fatalf("Remove failed: %v", err)
			}
		} else {
			if err := os.WriteFile(path, []byte(c.content), 0o644); err != nil {
				t.Fatal(err)
			}
			if _, err := wt.Add(name); err != nil {
				t.Fatalf("Add failed: %v", err)
			}
		}
		sig := &object.Signature{Name: c.author, Email: c.author + "@example.com", When: base.Add(time.Duration(i) * time.Minute)}
		msg := c.message
		if msg == "" {
			msg = "snapshot"
		}
		if _, err := wt.Commit(msg, &git.CommitOptions{Author: sig, Committer: sig}); err != nil {
			t.Fatalf("Commit failed: %v", err)
		}
	}
	return dir
}

func TestSessions(t *testing.T) {
	dir := initRepo(t, []commit{
		{author: "ann", content: "x = 1\n"},
		{author: "bob", content: "y = 2\n"},
		{author: "ann", other: true, content: "notes\n"},
		{author: "ann", content: "x = 1\nprint(x)\n", message: "done\n\nScore: 1\n"},
		{author: "bob", content: "", message: "start over"},
		{author: "bob", content: "print(2)\n", message: "Score: incorrect"},
	})
	repo, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	sessions, err := repo.Sessions(context.Background(), "", "sum", "solution.py")
	if err != nil {
		t.Fatalf("Sessions failed: %v", err)
	}

	type snap struct {
		Source string
		Score  proto.Score
	}
	got := map[string][]snap{}
	for _, s := range sessions {
		if s.Exercise != "sum" {
			t.Errorf("session %s has exercise %q", s.ID, s.Exercise)
		}
		for _, rec := range s.Records {
			got[s.ID] = append(got[s.ID], snap{rec.Source, rec.Score})
		}
	}
	want := map[string][]snap{
		"ann@example.com": {
			{Source: "x = 1\n"},
			{Source: "x = 1\nprint(x)\n", Score: proto.ScoreOf(1)},
		},
		"bob@example.com": {
			{Source: "y = 2\n"},
			{Source: "print(2)\n", Score: proto.IncorrectScore()},
		},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("sessions mismatch (-want +got):\n%s", diff)
	}
}

func TestResolveRef(t *testing.T) {
	dir := initRepo(t, []commit{{author: "ann", content: "x = 1\n"}})
	repo, err := Open(dir, nil)
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	head, err := repo.ResolveRef("")
	if err != nil {
		t.Fatalf("ResolveRef(HEAD) failed: %v", err)
	}
	byHash, err := repo.ResolveRef(head.Hash.String())
	if err != nil {
		t.Fatalf("ResolveRef(hash) failed: %v", err)
	}
	if byHash.Hash != head.Hash {
		t.Errorf("hash resolved to %s, want %s", byHash.Hash, head.Hash)
	}
	if _, err := repo.ResolveRef("no-such-branch"); err == nil {
		t.Errorf("ResolveRef accepted an unknown ref")
	}
}

func TestScoreOf(t *testing.T) {
	tests := []struct {
		message string
		want    proto.Score
	}{
		{"wip", proto.Score{}},
		{"done\n\nScore: 0.75", proto.ScoreOf(0.75)},
		{"Score: incorrect", proto.IncorrectScore()},
		{"Score: bogus", proto.Score{}},
	}
	for _, tt := range tests {
		if diff := cmp.Diff(tt.want, scoreOf(tt.message)); diff != "" {
			t.Errorf("scoreOf(%q) mismatch (-want +got):\n%s", tt.message, diff)
		}
	}
}
