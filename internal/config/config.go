// Package config provides configuration for hintgraph.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"hintgraph/pathfind"
)

// Diff engines.
const (
	EngineBuiltin  = "builtin"
	EngineExternal = "external"
)

// Config holds the tool configuration.
type Config struct {
	// DataDir is the root directory for the graph database.
	DataDir string `yaml:"dataDir"`
	// DBPath overrides the database location inside DataDir.
	DBPath string `yaml:"dbPath,omitempty"`
	// ExercisesFile holds the exercise rules (see package exercisematch).
	ExercisesFile string `yaml:"exercisesFile,omitempty"`
	// Workers bounds parallel canonicalization during ingestion.
	Workers int `yaml:"workers"`
	// MaxPasses bounds the canonicalizer fixpoint loop.
	MaxPasses int `yaml:"maxPasses"`

	GivenNames  []string `yaml:"givenNames,omitempty"`
	ImportNames []string `yaml:"importNames,omitempty"`

	Diff DiffConfig `yaml:"diff"`
	Hint HintConfig `yaml:"hint"`

	LogLevel string `yaml:"logLevel"`
	Debug    bool   `yaml:"debug"`
}

// DiffConfig selects the structural diff engine.
type DiffConfig struct {
	Engine  string        `yaml:"engine"`
	Command []string      `yaml:"command,omitempty"`
	Timeout time.Duration `yaml:"timeout"`
}

// HintConfig tunes hint selection.
type HintConfig struct {
	TopN       int              `yaml:"topN"`
	AllowBelow bool             `yaml:"allowBelow"`
	AllowAbove bool             `yaml:"allowAbove"`
	Threshold  float64          `yaml:"threshold"`
	K          float64          `yaml:"k"`
	Scorer     string           `yaml:"scorer"`
	Weights    pathfind.Weights `yaml:"weights"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		DataDir:   "./data",
		Workers:   runtime.NumCPU(),
		MaxPasses: 64,
		Diff: DiffConfig{
			Engine:  EngineBuiltin,
			Timeout: 10 * time.Second,
		},
		Hint: HintConfig{
			TopN:       pathfind.DefaultTopN,
			AllowBelow: true,
			AllowAbove: true,
			Threshold:  pathfind.DefaultThreshold,
			K:          pathfind.DefaultK,
			Scorer:     pathfind.DefaultScorer,
			Weights:    pathfind.DefaultWeights(),
		},
		LogLevel: "info",
	}
}

// Load reads the YAML file at path over the defaults, then applies
// environment overrides. An empty path skips the file; a missing file is
// an error.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// FromEnv creates a Config from the defaults and environment variables.
func FromEnv() *Config {
	cfg := Default()
	cfg.applyEnv()
	return cfg
}

func (c *Config) applyEnv() {
	c.DataDir = getEnv("HINTGRAPH_DATA", c.DataDir)
	c.DBPath = getEnv("HINTGRAPH_DB", c.DBPath)
	c.ExercisesFile = getEnv("HINTGRAPH_EXERCISES", c.ExercisesFile)
	c.Workers = getEnvInt("HINTGRAPH_WORKERS", c.Workers)
	c.MaxPasses = getEnvInt("HINTGRAPH_MAX_PASSES", c.MaxPasses)
	c.Diff.Engine = getEnv("HINTGRAPH_DIFF_ENGINE", c.Diff.Engine)
	if cmd := os.Getenv("HINTGRAPH_DIFF_COMMAND"); cmd != "" {
		c.Diff.Command = strings.Fields(cmd)
	}
	c.Diff.Timeout = getEnvDuration("HINTGRAPH_DIFF_TIMEOUT", c.Diff.Timeout)
	c.Hint.TopN = getEnvInt("HINTGRAPH_TOP_N", c.Hint.TopN)
	c.Hint.Threshold = getEnvFloat("HINTGRAPH_THRESHOLD", c.Hint.Threshold)
	c.Hint.K = getEnvFloat("HINTGRAPH_K", c.Hint.K)
	c.Hint.Scorer = getEnv("HINTGRAPH_SCORER", c.Hint.Scorer)
	c.LogLevel = getEnv("HINTGRAPH_LOG_LEVEL", c.LogLevel)
	c.Debug = getEnvBool("HINTGRAPH_DEBUG", c.Debug)
}

// Validate checks value ranges and cross-field constraints.
func (c *Config) Validate() error {
	var errs []error
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.MaxPasses <= 0 {
		errs = append(errs, fmt.Errorf("maxPasses must be positive, got %d", c.MaxPasses))
	}
	switch c.Diff.Engine {
	case EngineBuiltin:
	case EngineExternal:
		if len(c.Diff.Command) == 0 {
			errs = append(errs, errors.New("diff.command is required for the external engine"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown diff engine %q", c.Diff.Engine))
	}
	if c.Hint.Threshold < 0 || c.Hint.Threshold > 1 {
		errs = append(errs, fmt.Errorf("hint.threshold must be in [0, 1], got %v", c.Hint.Threshold))
	}
	if c.Hint.K <= 0 {
		errs = append(errs, fmt.Errorf("hint.k must be positive, got %v", c.Hint.K))
	}
	if _, err := pathfind.NewScorer(c.Hint.Scorer, c.Hint.Weights); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// DatabasePath returns where the graph database lives.
func (c *Config) DatabasePath() string {
	if c.DBPath != "" {
		return c.DBPath
	}
	return filepath.Join(c.DataDir, "hintgraph.db")
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	}
	return defaultVal
}
