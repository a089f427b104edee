// Package main provides the hintgraph CLI.
package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"hintgraph/canon"
	"hintgraph/diff"
	"hintgraph/exercisematch"
	"hintgraph/graph"
	"hintgraph/internal/config"
	"hintgraph/internal/logging"
	"hintgraph/pathfind"
	"hintgraph/store"
)

const rulesFile = "exercises.yaml"

// Version is the current hintgraph CLI version
var Version = "0.3.0"

var rootCmd = &cobra.Command{
	Use:               "hintgraph",
	Short:             "hintgraph - data-driven next-step hints for programming exercises",
	Long:              `hintgraph builds solution graphs from recorded student sessions and proposes the next code state for a partial program.`,
	Version:           Version,
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

// Command groups for organized help output
const (
	groupGraph = "graph"
	groupHint  = "hint"
	groupAdmin = "admin"
)

var (
	configPath string
	dataDir    string
	logLevel   string
	debugFlag  bool

	cfg    *config.Config
	logger *zap.Logger
)

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", os.Getenv("HINTGRAPH_CONFIG"), "Path to a YAML config file")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data", "", "Data directory (overrides config)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: debug, info, warn, error")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "Enable debug logging")

	rootCmd.AddGroup(
		&cobra.Group{ID: groupGraph, Title: "Graph Commands:"},
		&cobra.Group{ID: groupHint, Title: "Hint Commands:"},
		&cobra.Group{ID: groupAdmin, Title: "Administration:"},
	)
}

func setup(cmd *cobra.Command, args []string) error {
	var err error
	cfg, err = config.Load(configPath)
	if err != nil {
		return err
	}
	if dataDir != "" {
		cfg.DataDir = dataDir
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	logger, err = logging.New(cfg.LogLevel, cfg.Debug || debugFlag)
	return err
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openDB opens the graph database named by the config.
func openDB() (*store.DB, error) {
	if cfg.DBPath == "" {
		return store.OpenDataDB(cfg.DataDir, logger)
	}
	if err := os.MkdirAll(filepath.Dir(cfg.DBPath), 0755); err != nil {
		return nil, fmt.Errorf("creating db directory: %w", err)
	}
	return store.Open(cfg.DBPath, logger)
}

// rulesPath returns the exercise rules file location.
func rulesPath() string {
	if cfg.ExercisesFile != "" {
		return cfg.ExercisesFile
	}
	return filepath.Join(cfg.DataDir, rulesFile)
}

func loadRules() (*exercisematch.Matcher, error) {
	return exercisematch.LoadRulesOrEmpty(rulesPath())
}

// newCanonicalizer merges the configured names with those fixed by the
// exercise's rule. Building and serving must agree on these names.
func newCanonicalizer(rules *exercisematch.Matcher, exercise string) *canon.Canonicalizer {
	opts := canon.Options{
		MaxPasses:   cfg.MaxPasses,
		GivenNames:  cfg.GivenNames,
		ImportNames: cfg.ImportNames,
		Logger:      logger,
	}
	if r := rules.Rule(exercise); r != nil {
		opts.GivenNames = append(append([]string{}, opts.GivenNames...), r.GivenNames...)
		opts.ImportNames = append(append([]string{}, opts.ImportNames...), r.ImportNames...)
	}
	return canon.New(opts)
}

func newEngine() diff.Engine {
	if cfg.Diff.Engine == config.EngineExternal {
		return diff.NewExternalEngine(cfg.Diff.Command, cfg.Diff.Timeout, logger)
	}
	return diff.NewBuiltin()
}

func newFinder(g *graph.Graph, c *canon.Canonicalizer, scorerName string) (*pathfind.Finder, error) {
	if scorerName == "" {
		scorerName = cfg.Hint.Scorer
	}
	scorer, err := pathfind.NewScorer(scorerName, cfg.Hint.Weights)
	if err != nil {
		return nil, err
	}
	return pathfind.New(g, pathfind.Options{
		Engine:        newEngine(),
		Canonicalizer: c,
		Scorer:        scorer,
		TopN:          cfg.Hint.TopN,
		AllowBelow:    cfg.Hint.AllowBelow,
		AllowAbove:    cfg.Hint.AllowAbove,
		Threshold:     cfg.Hint.Threshold,
		K:             cfg.Hint.K,
		Logger:        logger,
	}), nil
}

// readSource reads a program from a file, or stdin for "-".
func readSource(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}
