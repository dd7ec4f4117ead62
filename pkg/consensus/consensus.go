// Package consensus turns weighted observations of one field from several
// sources into a single value with a confidence score.
//
// Numeric fields are sanity-filtered, then resolved statistically: values that
// agree within a relative tolerance of their median are averaged by weight,
// anything else falls back to the median with a confidence penalty for the
// spread. Categorical fields are resolved by the highest source weight.
package consensus

import (
	"math"
	"slices"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/agentstation/racesync/pkg/races"
)

// DefaultTolerance is the relative distance from the median within which
// numeric observations are considered in agreement.
const DefaultTolerance = 0.05

// Method records how a value was chosen.
type Method string

// Resolution methods.
const (
	MethodSingle        Method = "single"
	MethodWeightedMean  Method = "weighted_mean"
	MethodMedian        Method = "median"
	MethodHighestWeight Method = "highest_weight"
	MethodInference     Method = "inference"
	MethodManual        Method = "manual"
)

// Observation is one source's normalized value for one field.
type Observation struct {
	Field  string
	Value  races.Value
	Source string
	Weight float64
}

// Result is the consensus for one field.
type Result struct {
	Value      races.Value
	Confidence float64
	Sources    []string
	Method     Method
}

// Resolver resolves observations into a value.
type Resolver interface {
	// Resolve returns false when no observation survives the sanity filter.
	Resolve(field races.Field, obs []Observation) (Result, bool)

	// Tolerance returns the agreement tolerance in use.
	Tolerance() float64
}

type resolver struct {
	tolerance float64
	bounds    Bounds
}

// New creates a resolver.
func New(opts ...Option) Resolver {
	r := &resolver{
		tolerance: DefaultTolerance,
		bounds:    DefaultBounds(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Resolve resolves with a default resolver.
func Resolve(field races.Field, obs []Observation) (Result, bool) {
	return defaultResolver.Resolve(field, obs)
}

var defaultResolver = New()

// Tolerance implements Resolver.
func (r *resolver) Tolerance() float64 { return r.tolerance }

// Resolve implements Resolver.
func (r *resolver) Resolve(field races.Field, obs []Observation) (Result, bool) {
	// Filter before dedupe so an implausible first value does not shadow a
	// valid later one from the same source.
	if field.Kind.Numeric() {
		obs = r.bounds.Filter(field.Name, obs)
	}
	obs = dedupe(obs)
	if len(obs) == 0 {
		return Result{}, false
	}

	var res Result
	if field.Kind.Numeric() {
		res = r.numeric(obs)
		res.Value.Num = round(field.Kind, res.Value.Num)
	} else {
		res = categorical(obs)
	}
	res.Value.Kind = field.Kind
	return res, true
}

// dedupe keeps the first surviving observation per source.
func dedupe(obs []Observation) []Observation {
	seen := make(map[string]bool, len(obs))
	out := make([]Observation, 0, len(obs))
	for _, o := range obs {
		if seen[o.Source] {
			continue
		}
		seen[o.Source] = true
		out = append(out, o)
	}
	return out
}

func (r *resolver) numeric(obs []Observation) Result {
	sources := sourcesOf(obs)
	if len(obs) == 1 {
		return Result{
			Value:      obs[0].Value,
			Confidence: obs[0].Weight,
			Sources:    sources,
			Method:     MethodSingle,
		}
	}

	values := make([]float64, len(obs))
	var sumW, meanW float64
	for i, o := range obs {
		values[i] = o.Value.Num
		sumW += o.Weight
	}
	meanW = sumW / float64(len(obs))
	med := Median(values)

	var sumDev float64
	agree := true
	for _, v := range values {
		dev := relativeDeviation(v, med)
		sumDev += dev
		if dev > r.tolerance {
			agree = false
		}
	}

	if agree {
		var weighted float64
		for _, o := range obs {
			weighted += o.Value.Num * o.Weight
		}
		mean := med
		if sumW > 0 {
			mean = weighted / sumW
		}
		return Result{
			Value:      races.Number(obs[0].Value.Kind, mean),
			Confidence: meanW,
			Sources:    sources,
			Method:     MethodWeightedMean,
		}
	}

	conf := meanW * (1 - sumDev/float64(len(values)))
	return Result{
		Value:      races.Number(obs[0].Value.Kind, med),
		Confidence: math.Max(conf, 0),
		Sources:    sources,
		Method:     MethodMedian,
	}
}

// categorical picks the value with the highest weight; ties go to the first
// observation seen.
func categorical(obs []Observation) Result {
	best := 0
	for i, o := range obs[1:] {
		if o.Weight > obs[best].Weight {
			best = i + 1
		}
	}
	winner := obs[best]

	var sources []string
	for _, o := range obs {
		if o.Value.Equal(winner.Value) {
			sources = append(sources, o.Source)
		}
	}
	return Result{
		Value:      winner.Value,
		Confidence: winner.Weight,
		Sources:    sources,
		Method:     MethodHighestWeight,
	}
}

func sourcesOf(obs []Observation) []string {
	out := make([]string, len(obs))
	for i, o := range obs {
		out[i] = o.Source
	}
	return out
}

// Median returns the median of values, averaging the middle pair when the
// count is even.
func Median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	s := slices.Clone(values)
	sort.Float64s(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

func relativeDeviation(v, med float64) float64 {
	if med == 0 {
		if v == 0 {
			return 0
		}
		return 1
	}
	return math.Abs(v-med) / math.Abs(med)
}

// Decimal places kept per numeric kind.
var precision = map[races.Kind]int32{
	races.KindFee:      2,
	races.KindDistance: 4,
	races.KindCount:    0,
}

func round(kind races.Kind, v float64) float64 {
	places, ok := precision[kind]
	if !ok {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}
