// Package exercisematch maps corpus file paths to exercises via glob rules.
package exercisematch

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"gopkg.in/yaml.v3"
)

// ExerciseRule defines an exercise with its path patterns and the names its
// statement fixes.
type ExerciseRule struct {
	Name        string   `yaml:"name"`
	Paths       []string `yaml:"paths"`
	GivenNames  []string `yaml:"givenNames,omitempty"`
	ImportNames []string `yaml:"importNames,omitempty"`
}

// RulesConfig holds the exercises file.
type RulesConfig struct {
	Exercises []ExerciseRule `yaml:"exercises"`
}

// Matcher matches file paths to exercises. The first matching rule wins.
type Matcher struct {
	exercises []ExerciseRule
}

// NewMatcher creates a matcher from a list of rules.
func NewMatcher(exercises []ExerciseRule) *Matcher {
	return &Matcher{exercises: exercises}
}

// LoadRules loads rules from a YAML file. Every pattern is validated.
func LoadRules(path string) (*Matcher, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading exercises file: %w", err)
	}
	return parseRules(data)
}

// LoadRulesOrEmpty loads rules from file, or returns an empty matcher if
// the file doesn't exist.
func LoadRulesOrEmpty(path string) (*Matcher, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &Matcher{}, nil
		}
		return nil, fmt.Errorf("reading exercises file: %w", err)
	}
	return parseRules(data)
}

func parseRules(data []byte) (*Matcher, error) {
	var config RulesConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("parsing exercises file: %w", err)
	}
	for _, ex := range config.Exercises {
		if ex.Name == "" {
			return nil, fmt.Errorf("exercise rule without a name")
		}
		for _, pattern := range ex.Paths {
			if !doublestar.ValidatePattern(pattern) {
				return nil, fmt.Errorf("exercise %s: invalid pattern %q", ex.Name, pattern)
			}
		}
	}
	return &Matcher{exercises: config.Exercises}, nil
}

// Match returns the exercise the path belongs to.
func (m *Matcher) Match(path string) (string, bool) {
	path = filepath.ToSlash(path)
	for _, ex := range m.exercises {
		for _, pattern := range ex.Paths {
			match, err := doublestar.Match(pattern, path)
			if err != nil {
				continue
			}
			if match {
				return ex.Name, true
			}
		}
	}
	return "", false
}

// MatchPaths groups paths by exercise. Unmatched paths are left out.
func (m *Matcher) MatchPaths(paths []string) map[string][]string {
	result := make(map[string][]string)
	for _, path := range paths {
		if name, ok := m.Match(path); ok {
			result[name] = append(result[name], path)
		}
	}
	return result
}

// Rule returns an exercise rule by name.
func (m *Matcher) Rule(name string) *ExerciseRule {
	for i := range m.exercises {
		if m.exercises[i].Name == name {
			return &m.exercises[i]
		}
	}
	return nil
}

// Exercises returns the sorted exercise names.
func (m *Matcher) Exercises() []string {
	names := make([]string, 0, len(m.exercises))
	for _, ex := range m.exercises {
		names = append(names, ex.Name)
	}
	sort.Strings(names)
	return names
}

// AddExercise adds or updates an exercise's path patterns.
func (m *Matcher) AddExercise(name string, paths []string) {
	for i := range m.exercises {
		if m.exercises[i].Name == name {
			m.exercises[i].Paths = paths
			return
		}
	}
	m.exercises = append(m.exercises, ExerciseRule{Name: name, Paths: paths})
}

// RemoveExercise removes an exercise by name.
func (m *Matcher) RemoveExercise(name string) bool {
	for i := range m.exercises {
		if m.exercises[i].Name == name {
			m.exercises = append(m.exercises[:i], m.exercises[i+1:]...)
			return true
		}
	}
	return false
}

// SaveRules saves the rules to a YAML file.
func (m *Matcher) SaveRules(path string) error {
	config := RulesConfig{Exercises: m.exercises}
	data, err := yaml.Marshal(&config)
	if err != nil {
		return fmt.Errorf("marshaling exercises: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("creating directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("writing exercises file: %w", err)
	}
	return nil
}
