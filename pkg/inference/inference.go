// Package inference fills fields that no source reported, using domain
// heuristics on names and on sibling values. Inferred values carry a fixed
// confidence and stay overwritable by any later observation.
package inference

import (
	"regexp"

	"github.com/agentstation/racesync/internal/matcher"
	"github.com/agentstation/racesync/pkg/normalize"
	"github.com/agentstation/racesync/pkg/provenance"
	"github.com/agentstation/racesync/pkg/races"
)

// DefaultConfidence is the confidence given to inferred values.
const DefaultConfidence = 0.60

// Proposal is an inferred value for one field.
type Proposal struct {
	Value      races.Value
	Confidence float64
	Rule       string
}

// Rule infers one field of an event or a variant.
type Rule interface {
	// Name identifies the rule in decisions and logs.
	Name() string

	// Scope is the entity the rule fills.
	Scope() provenance.Scope

	// Field is the field the rule fills.
	Field() string

	// Infer returns a value for the field. v is nil for event rules.
	Infer(rec *races.Record, v *races.Variant) (races.Value, bool)
}

// Engine applies inference rules.
type Engine struct {
	rules      []Rule
	confidence float64
}

// Option configures an Engine.
type Option func(*Engine)

// WithConfidence sets the confidence of inferred values.
func WithConfidence(c float64) Option {
	return func(e *Engine) {
		if c > 0 && c <= 1 {
			e.confidence = c
		}
	}
}

// WithRules replaces the rule set.
func WithRules(rules ...Rule) Option {
	return func(e *Engine) {
		e.rules = rules
	}
}

// New creates an engine with the default rules.
func New(opts ...Option) *Engine {
	e := &Engine{
		rules:      DefaultRules(),
		confidence: DefaultConfidence,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// DefaultRules returns the built-in rules.
func DefaultRules() []Rule {
	return []Rule{
		DistanceRule{Matcher: matcher.Default},
		FeeRule{Matcher: matcher.Default},
		ScaleRule{},
		TypeRule{},
	}
}

// Confidence returns the confidence assigned to inferred values.
func (e *Engine) Confidence() float64 { return e.confidence }

// Eligible reports whether a field may be inferred: it must be absent or
// hold a value that was itself inferred.
func Eligible(present bool, inferred provenance.Set, field string) bool {
	return !present || inferred.Has(field)
}

// Event proposes a value for an event field.
func (e *Engine) Event(rec *races.Record, field string) (Proposal, bool) {
	return e.propose(provenance.ScopeEvent, field, rec, nil)
}

// Variant proposes a value for a variant field.
func (e *Engine) Variant(rec *races.Record, v *races.Variant, field string) (Proposal, bool) {
	if v == nil {
		return Proposal{}, false
	}
	return e.propose(provenance.ScopeVariant, field, rec, v)
}

func (e *Engine) propose(scope provenance.Scope, field string, rec *races.Record, v *races.Variant) (Proposal, bool) {
	for _, r := range e.rules {
		if r.Scope() != scope || r.Field() != field {
			continue
		}
		if val, ok := r.Infer(rec, v); ok {
			return Proposal{Value: val, Confidence: e.confidence, Rule: r.Name()}, true
		}
	}
	return Proposal{}, false
}

// Standard distances for keyword categories, in kilometers.
var categoryDistance = map[string]float64{
	"full": 42.195,
	"half": 21.0975,
	"mini": 5,
	"fun":  3,
}

var distanceInName = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:公里|千米|km|k)`)

// DistanceRule infers a variant's distance from its name.
type DistanceRule struct {
	Matcher matcher.Matcher
}

func (DistanceRule) Name() string { return "distance_from_name" }
func (DistanceRule) Scope() provenance.Scope { return provenance.ScopeVariant }
func (DistanceRule) Field() string { return races.FieldDistance }

// Infer checks the marathon keywords, then a number with a unit, then the
// remaining category keywords.
func (r DistanceRule) Infer(_ *races.Record, v *races.Variant) (races.Value, bool) {
	if v == nil {
		return races.Value{}, false
	}
	if km, ok := distanceFromName(r.Matcher, v.DisplayName()); ok {
		return races.Number(races.KindDistance, km), true
	}
	return races.Value{}, false
}

func distanceFromName(m matcher.Matcher, name string) (float64, bool) {
	if m == nil {
		m = matcher.Default
	}
	cat, hasCat := m.Category(name)
	if hasCat && (cat == "full" || cat == "half") {
		return categoryDistance[cat], true
	}
	if sub := distanceInName.FindStringSubmatch(normalize.Fold(name)); sub != nil {
		if km, ok := normalize.Distance(sub[0]); ok {
			return km, true
		}
	}
	if km, ok := categoryDistance[cat]; hasCat && ok {
		return km, true
	}
	return 0, false
}

// Typical fee ranges in CNY. The inferred fee is the midpoint.
var categoryFee = map[string][2]float64{
	"full": {100, 180},
	"half": {80, 150},
	"mini": {50, 80},
}

var distanceFee = map[float64][2]float64{
	10: {60, 100},
	5:  {50, 80},
}

// FeeRule infers a variant's fee from typical ranges for its category.
type FeeRule struct {
	Matcher matcher.Matcher
}

func (FeeRule) Name() string { return "fee_from_category" }
func (FeeRule) Scope() provenance.Scope { return provenance.ScopeVariant }
func (FeeRule) Field() string { return races.FieldFee }

// Infer uses the category keyword first, then a 10 km or 5 km distance.
func (r FeeRule) Infer(_ *races.Record, v *races.Variant) (races.Value, bool) {
	if v == nil {
		return races.Value{}, false
	}
	m := r.Matcher
	if m == nil {
		m = matcher.Default
	}
	if cat, ok := m.Category(v.DisplayName()); ok {
		if rng, ok := categoryFee[cat]; ok {
			return races.Number(races.KindFee, midpoint(rng)), true
		}
	}
	km, ok := 0.0, false
	if sub := distanceInName.FindStringSubmatch(normalize.Fold(v.DisplayName())); sub != nil {
		km, ok = normalize.Distance(sub[0])
	}
	if !ok && v.Distance != nil {
		km, ok = *v.Distance, true
	}
	if ok {
		if rng, found := distanceFee[km]; found {
			return races.Number(races.KindFee, midpoint(rng)), true
		}
	}
	return races.Value{}, false
}

func midpoint(r [2]float64) float64 {
	return (r[0] + r[1]) / 2
}

// ScaleRule infers an event's total scale as the sum of variant quotas.
type ScaleRule struct{}

func (ScaleRule) Name() string { return "scale_from_quotas" }
func (ScaleRule) Scope() provenance.Scope { return provenance.ScopeEvent }
func (ScaleRule) Field() string { return races.FieldTotalScale }

// Infer sums the known quotas.
func (ScaleRule) Infer(rec *races.Record, _ *races.Variant) (races.Value, bool) {
	if rec == nil {
		return races.Value{}, false
	}
	total := 0
	for _, v := range rec.Variants {
		if v.Quota != nil && *v.Quota > 0 {
			total += *v.Quota
		}
	}
	if total == 0 {
		return races.Value{}, false
	}
	return races.Number(races.KindCount, float64(total)), true
}

// TypeRule infers an event's type from its name and description.
type TypeRule struct{}

func (TypeRule) Name() string { return "type_from_keywords" }
func (TypeRule) Scope() provenance.Scope { return provenance.ScopeEvent }
func (TypeRule) Field() string { return races.FieldEventType }

// Infer runs keyword detection.
func (TypeRule) Infer(rec *races.Record, _ *races.Variant) (races.Value, bool) {
	if rec == nil {
		return races.Value{}, false
	}
	var name, desc string
	if rec.Event.Name != nil {
		name = *rec.Event.Name
	}
	if rec.Event.Description != nil {
		desc = *rec.Event.Description
	}
	label, ok := normalize.DetectType(name, desc)
	if !ok {
		return races.Value{}, false
	}
	return races.Text(races.KindText, label), true
}
