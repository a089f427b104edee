package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hintgraph/exercisematch"
	"hintgraph/graph"
	"hintgraph/internal/gitsource"
	"hintgraph/internal/ingest"
	"hintgraph/store"
)

var buildCmd = &cobra.Command{
	Use:   "build [paths...]",
	Short: "Build solution graphs from recorded sessions",
	Long: `Build solution graphs from recorded student sessions and store them.

Corpus Files:
  hintgraph build corpus/                  # Every **/*.jsonl under corpus/
  hintgraph build a.jsonl b.jsonl          # Explicit files
  hintgraph build corpus/ --exercise sum   # Only one exercise

Git History:
  hintgraph build --git ./student-repo --exercise sum --file solution.py

Each JSONL line is one snapshot. Records without an exercise are assigned
one by the exercise rules file. With --append the sessions are added to the
stored graph instead of replacing it.`,
	GroupID: groupGraph,
	RunE:    runBuild,
}

var (
	buildPattern  string
	buildExercise string
	buildGitRepo  string
	buildGitRef   string
	buildGitFile  string
	buildPackDir  string
	buildAppend   bool
)

func init() {
	buildCmd.Flags().StringVar(&buildPattern, "pattern", ingest.DefaultPattern, "Glob selecting corpus files inside directories")
	buildCmd.Flags().StringVar(&buildExercise, "exercise", "", "Build only this exercise")
	buildCmd.Flags().StringVar(&buildGitRepo, "git", "", "Read sessions from the history of a Git repository")
	buildCmd.Flags().StringVar(&buildGitRef, "ref", "", "Git ref to walk from (default HEAD)")
	buildCmd.Flags().StringVar(&buildGitFile, "file", "", "Tracked solution file inside the Git repository")
	buildCmd.Flags().StringVar(&buildPackDir, "pack", "", "Also write a pack file per exercise into this directory")
	buildCmd.Flags().BoolVar(&buildAppend, "append", false, "Add to the stored graph instead of replacing it")
	rootCmd.AddCommand(buildCmd)
}

func runBuild(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	rules, err := loadRules()
	if err != nil {
		return err
	}

	var sessions []*ingest.Session
	if buildGitRepo != "" {
		if buildExercise == "" || buildGitFile == "" {
			return errors.New("--git requires --exercise and --file")
		}
		repo, err := gitsource.Open(buildGitRepo, logger)
		if err != nil {
			return err
		}
		if sessions, err = repo.Sessions(ctx, buildGitRef, buildExercise, buildGitFile); err != nil {
			return err
		}
	} else {
		if len(args) == 0 {
			return errors.New("no corpus given: pass files or directories, or --git")
		}
		paths, err := corpusFiles(args)
		if err != nil {
			return err
		}
		reader := &ingest.Reader{Matcher: rules, Logger: logger}
		if sessions, err = reader.ReadFiles(paths); err != nil {
			return err
		}
		if reader.Skipped() > 0 {
			fmt.Fprintf(os.Stderr, "Skipped %d malformed records\n", reader.Skipped())
		}
	}

	byExercise, names := ingest.ByExercise(sessions)
	if buildExercise != "" {
		if _, ok := byExercise[buildExercise]; !ok {
			return fmt.Errorf("no sessions for exercise %q", buildExercise)
		}
		names = []string{buildExercise}
	}
	if len(names) == 0 {
		return errors.New("corpus holds no sessions")
	}

	db, err := openDB()
	if err != nil {
		return err
	}
	defer db.Close()

	for _, name := range names {
		g, stats, err := buildExerciseGraph(ctx, db, rules, name, byExercise[name])
		if err != nil {
			return fmt.Errorf("building %s: %w", name, err)
		}
		if err := db.SaveGraph(ctx, g); err != nil {
			return err
		}
		if buildPackDir != "" {
			if err := writePackFile(filepath.Join(buildPackDir, name+packExt), g); err != nil {
				return err
			}
		}
		fmt.Printf("%-20s %4d sessions %6d snapshots %5d skipped %6d vertices\n",
			name, stats.Sessions, stats.Snapshots, stats.Skipped, g.Stats().Vertices)
	}
	return nil
}

func buildExerciseGraph(ctx context.Context, db *store.DB, rules *exercisematch.Matcher, name string, sessions []*ingest.Session) (*graph.Graph, ingest.BuildStats, error) {
	b := &ingest.Builder{
		Canon:   newCanonicalizer(rules, name),
		Workers: cfg.Workers,
		Logger:  logger,
	}
	if !buildAppend {
		return b.Build(ctx, name, sessions)
	}

	g, err := db.LoadGraph(ctx, name)
	if errors.Is(err, store.ErrGraphNotFound) {
		logger.Info("no stored graph, starting a new one", zap.String("exercise", name))
		return b.Build(ctx, name, sessions)
	}
	if err != nil {
		return nil, ingest.BuildStats{}, err
	}
	stats, err := b.Insert(ctx, g, sessions)
	if err != nil {
		return nil, stats, err
	}
	return g, stats, nil
}

// corpusFiles expands directories into the corpus files they hold.
func corpusFiles(args []string) ([]string, error) {
	var out []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, fmt.Errorf("corpus path: %w", err)
		}
		if !info.IsDir() {
			out = append(out, arg)
			continue
		}
		found, err := ingest.Discover(arg, buildPattern)
		if err != nil {
			return nil, err
		}
		out = append(out, found...)
	}
	return out, nil
}
