// Package authority holds the static per-source confidence weights used by
// consensus. Weights are configuration, never computed from the data.
package authority

import (
	"path/filepath"
	"sort"

	"github.com/agentstation/racesync/pkg/errors"
	"github.com/agentstation/racesync/pkg/provenance"
	"github.com/agentstation/racesync/pkg/sources"
)

// DefaultWeight applies to sources missing from the table.
const DefaultWeight = 0.5

// Authority resolves the confidence weight of a source for a field
type Authority interface {
	// Weight returns the weight of source for the field in scope
	Weight(source sources.ID, scope provenance.Scope, field string) float64

	// List returns the base weight of every configured source, heaviest first
	List() []Source
}

// Source is a base weight for every field a source reports
type Source struct {
	ID     sources.ID `json:"id" yaml:"id"`
	Weight float64    `json:"weight" yaml:"weight"`
}

// Field overrides a source's weight for a field path pattern such as
// "variant.fee", "variant.*" or "*.event_date".
type Field struct {
	Path   string     `json:"path" yaml:"path"`
	Source sources.ID `json:"source" yaml:"source"`
	Weight float64    `json:"weight" yaml:"weight"`
}

type authorities struct {
	base      map[sources.ID]float64
	overrides []Field
	fallback  float64
}

// Option configures an Authority.
type Option func(*authorities) error

// WithWeights replaces or adds base source weights.
func WithWeights(weights map[string]float64) Option {
	return func(a *authorities) error {
		for id, w := range weights {
			if err := validWeight(id, w); err != nil {
				return err
			}
			a.base[sources.ID(id)] = w
		}
		return nil
	}
}

// WithOverrides adds field-level overrides.
func WithOverrides(fields ...Field) Option {
	return func(a *authorities) error {
		for _, f := range fields {
			if err := validWeight(f.Path, f.Weight); err != nil {
				return err
			}
			if f.Path == "" || f.Source == "" {
				return errors.NewValidationError("overrides", f, "path and source are required")
			}
		}
		a.overrides = append(a.overrides, fields...)
		return nil
	}
}

// WithDefaultWeight sets the weight for unknown sources.
func WithDefaultWeight(w float64) Option {
	return func(a *authorities) error {
		if err := validWeight("default", w); err != nil {
			return err
		}
		a.fallback = w
		return nil
	}
}

func validWeight(name string, w float64) error {
	if w < 0 || w > 1 {
		return errors.NewValidationError(name, w, "weight must be within [0, 1]")
	}
	return nil
}

// New creates an Authority seeded with the default source table.
func New(opts ...Option) (Authority, error) {
	a := &authorities{
		base:     defaultWeights(),
		fallback: DefaultWeight,
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// Default returns an Authority with the default table.
func Default() Authority {
	a, _ := New()
	return a
}

func (a *authorities) Weight(source sources.ID, scope provenance.Scope, field string) float64 {
	path := string(scope) + "." + field
	if f := ByField(path, source, a.overrides); f != nil {
		return f.Weight
	}
	if w, ok := a.base[source]; ok {
		return w
	}
	return a.fallback
}

func (a *authorities) List() []Source {
	out := make([]Source, 0, len(a.base))
	for id, w := range a.base {
		out = append(out, Source{ID: id, Weight: w})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Weight != out[j].Weight {
			return out[i].Weight > out[j].Weight
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ByField returns the most specific override for source matching path.
// Longer patterns are more specific; earlier entries win ties.
func ByField(path string, source sources.ID, fields []Field) *Field {
	var best *Field
	bestLength := -1
	for i, f := range fields {
		if f.Source != source || !MatchesPattern(path, f.Path) {
			continue
		}
		if len(f.Path) > bestLength {
			best = &fields[i]
			bestLength = len(f.Path)
		}
	}
	return best
}

// MatchesPattern checks if a field path matches a pattern (supports * wildcards)
func MatchesPattern(path, pattern string) bool {
	if path == pattern {
		return true
	}
	if len(pattern) > 0 && pattern[len(pattern)-1] == '*' {
		prefix := pattern[:len(pattern)-1]
		if len(path) >= len(prefix) && path[:len(prefix)] == prefix {
			return true
		}
	}
	matched, err := filepath.Match(pattern, path)
	return err == nil && matched
}

func defaultWeights() map[sources.ID]float64 {
	return map[sources.ID]float64{
		sources.OfficialWebsite:      1.0,
		sources.RegistrationPlatform: 0.95,
		sources.PrimaryScrape:        0.95,
		sources.WechatOfficial:       0.90,
		sources.MarathonMedia:        0.85,
		sources.AISearch:             0.70,
		sources.Inference:            0.60,
	}
}
