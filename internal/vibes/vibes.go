// package vibes defines the built-in threshold rule sets used to filter tracks
// by audio features.
package vibes

import (
	"fmt"

	"github.com/nkoorts/vibesort/internal/models"
)

// ErrUnknownVibe is returned by [Lookup] for names outside the registry.
var ErrUnknownVibe = fmt.Errorf("unknown vibe")

// Metric names one dimension of a [models.FeatureVector].
type Metric string

const (
	Energy           Metric = "energy"
	Valence          Metric = "valence"
	Danceability     Metric = "danceability"
	Tempo            Metric = "tempo"
	Acousticness     Metric = "acousticness"
	Instrumentalness Metric = "instrumentalness"
)

// Bound selects which side of a threshold a rule checks.
type Bound int

const (
	Min Bound = iota // value must be >= threshold
	Max              // value must be <= threshold
)

func (b Bound) String() string {
	if b == Min {
		return "min"
	}
	return "max"
}

// Rule is a single threshold check against one metric.
type Rule struct {
	Metric    Metric  `json:"metric"`
	Bound     Bound   `json:"bound"`
	Threshold float64 `json:"threshold"`
}

func (r Rule) validate() error {
	switch r.Metric {
	case Energy, Valence, Danceability, Tempo, Acousticness, Instrumentalness:
	default:
		return fmt.Errorf("rule references unknown metric %q", r.Metric)
	}
	if r.Bound != Min && r.Bound != Max {
		return fmt.Errorf("rule on %q has invalid bound %d", r.Metric, r.Bound)
	}
	return nil
}

// passes reports whether the metric value satisfies the rule.
func (r Rule) passes(value float64) bool {
	if r.Bound == Min {
		return value >= r.Threshold
	}
	return value <= r.Threshold
}

func (r Rule) String() string {
	op := "≥"
	if r.Bound == Max {
		op = "≤"
	}
	return fmt.Sprintf("%s %s %.2f", r.Metric, op, r.Threshold)
}

// Vibe is a named rule set. A track matches a vibe iff it has a feature vector
// and every rule passes.
type Vibe struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Rules       []Rule `json:"rules"`
}

// Matches evaluates the vibe against a track's feature vector. A nil vector
// never matches. Evaluation short-circuits on the first failing rule.
func (v Vibe) Matches(f *models.FeatureVector) bool {
	if f == nil {
		return false
	}
	for _, rule := range v.Rules {
		value, ok := metricValue(f, rule.Metric)
		if !ok || !rule.passes(value) {
			return false
		}
	}
	return true
}

func metricValue(f *models.FeatureVector, m Metric) (float64, bool) {
	switch m {
	case Energy:
		return f.Energy, true
	case Valence:
		return f.Valence, true
	case Danceability:
		return f.Danceability, true
	case Tempo:
		return f.Tempo, true
	case Acousticness:
		return f.Acousticness, true
	case Instrumentalness:
		return f.Instrumentalness, true
	default:
		return 0, false
	}
}

// registry holds the built-in presets in display order. The rule sets are fixed
// at compile time; threshold values follow the commonly cited valence/energy
// ranges for each mood.
var registry = []Vibe{
	{
		Name:        "depressy",
		Description: "Sad, melancholic tracks",
		Rules: []Rule{
			{Metric: Valence, Bound: Max, Threshold: 0.35},
			{Metric: Energy, Bound: Max, Threshold: 0.5},
			{Metric: Danceability, Bound: Max, Threshold: 0.55},
		},
	},
	{
		Name:        "chill",
		Description: "Relaxed, low intensity tracks",
		Rules: []Rule{
			{Metric: Energy, Bound: Max, Threshold: 0.5},
			{Metric: Valence, Bound: Min, Threshold: 0.3},
			{Metric: Valence, Bound: Max, Threshold: 0.7},
			{Metric: Danceability, Bound: Max, Threshold: 0.6},
		},
	},
	{
		Name:        "party",
		Description: "High energy, danceable, euphoric tracks",
		Rules: []Rule{
			{Metric: Energy, Bound: Min, Threshold: 0.7},
			{Metric: Danceability, Bound: Min, Threshold: 0.6},
			{Metric: Valence, Bound: Min, Threshold: 0.6},
		},
	},
	{
		Name:        "intense",
		Description: "Very high energy with a darker mood",
		Rules: []Rule{
			{Metric: Energy, Bound: Min, Threshold: 0.75},
			{Metric: Valence, Bound: Max, Threshold: 0.5},
		},
	},
}

func init() {
	for _, vibe := range registry {
		if vibe.Name == "" || len(vibe.Rules) == 0 {
			panic(fmt.Sprintf("invalid vibe preset %q", vibe.Name))
		}
		for _, rule := range vibe.Rules {
			if err := rule.validate(); err != nil {
				panic(fmt.Sprintf("invalid vibe preset %q: %v", vibe.Name, err))
			}
		}
	}
}

// Lookup returns the preset with the given name, or [ErrUnknownVibe].
func Lookup(name string) (Vibe, error) {
	for _, vibe := range registry {
		if vibe.Name == name {
			return vibe, nil
		}
	}
	return Vibe{}, fmt.Errorf("%w: %s", ErrUnknownVibe, name)
}

// All returns the built-in presets in display order.
func All() []Vibe {
	out := make([]Vibe, len(registry))
	copy(out, registry)
	return out
}

// Names returns the preset names in display order.
func Names() []string {
	names := make([]string, len(registry))
	for i, vibe := range registry {
		names[i] = vibe.Name
	}
	return names
}
