package pathfind

import (
	"errors"
	"fmt"
	"sort"
)

// Metrics describes one candidate vertex relative to the user's program.
// Fields marked by a Known flag are only meaningful when it is set.
type Metrics struct {
	Distance   int
	Deletions  float64 // fraction of the edits that delete
	Population int

	RateDiff  float64
	RateKnown bool

	AgeDiff  float64
	AgeKnown bool

	ExperienceDiff  float64
	ExperienceKnown bool
}

// Scorer ranks candidates; lower is better.
type Scorer interface {
	Name() string
	Score(m Metrics) float64
}

// Weights are the coefficients of the weighted scorer.
type Weights struct {
	Distance    float64 `yaml:"distance"`
	Population  float64 `yaml:"population"`
	Rate        float64 `yaml:"rate"`
	Deletions   float64 `yaml:"deletions"`
	Demographic float64 `yaml:"demographic"`
}

// DefaultWeights returns the weights used when none are configured.
func DefaultWeights() Weights {
	return Weights{
		Distance:    1,
		Population:  2,
		Rate:        2,
		Deletions:   4,
		Demographic: 0.5,
	}
}

// Weighted sums the edit distance, a penalty for rarely observed states,
// the correctness-rate gap, the share of deletions (rollbacks) and, when
// both sides report them, the demographic gaps.
type Weighted struct {
	W Weights
}

func (s *Weighted) Name() string { return "weighted" }

func (s *Weighted) Score(m Metrics) float64 {
	w := s.W
	score := w.Distance*float64(m.Distance) +
		w.Population/float64(1+m.Population) +
		w.Deletions*m.Deletions
	if m.RateKnown {
		score += w.Rate * m.RateDiff
	}
	if m.AgeKnown {
		score += w.Demographic * m.AgeDiff
	}
	if m.ExperienceKnown {
		score += w.Demographic * m.ExperienceDiff
	}
	return score
}

// DistanceOnly ranks by edit distance alone.
type DistanceOnly struct{}

func (DistanceOnly) Name() string { return "distance" }

func (DistanceOnly) Score(m Metrics) float64 { return float64(m.Distance) }

// DefaultScorer is the scorer selected by an empty name.
const DefaultScorer = "weighted"

// ErrUnknownScorer is returned for a name missing from the registry.
var ErrUnknownScorer = errors.New("unknown scorer")

var scorers = map[string]func(Weights) Scorer{
	"weighted": func(w Weights) Scorer { return &Weighted{W: w} },
	"distance": func(Weights) Scorer { return DistanceOnly{} },
}

// NewScorer returns the named scorer.
func NewScorer(name string, w Weights) (Scorer, error) {
	if name == "" {
		name = DefaultScorer
	}
	f, ok := scorers[name]
	if !ok {
		return nil, fmt.Errorf("%w %q (have %v)", ErrUnknownScorer, name, ScorerNames())
	}
	return f(w), nil
}

// ScorerNames lists the registered scorers.
func ScorerNames() []string {
	names := make([]string, 0, len(scorers))
	for n := range scorers {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
