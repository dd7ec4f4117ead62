package consensus

import "github.com/agentstation/racesync/pkg/races"

// Range is a closed or half-open interval of plausible values.
type Range struct {
	Min          float64
	Max          float64
	ExclusiveMin bool
	ExclusiveMax bool
}

// Contains reports whether v lies inside the range.
func (r Range) Contains(v float64) bool {
	if v < r.Min || (r.ExclusiveMin && v == r.Min) {
		return false
	}
	if v > r.Max || (r.ExclusiveMax && v == r.Max) {
		return false
	}
	return true
}

// Bounds maps field names to their plausible range. Fields without an
// entry are not filtered.
type Bounds map[string]Range

// DefaultBounds returns the sanity bounds for numeric race fields.
func DefaultBounds() Bounds {
	fee := Range{Min: 0, Max: 1000, ExclusiveMin: true, ExclusiveMax: true}
	return Bounds{
		races.FieldFee:        fee,
		races.FieldEarlyFee:   fee,
		races.FieldQuota:      {Min: 10, Max: 50000},
		races.FieldRegistered: {Min: 0, Max: 100000},
		races.FieldTotalScale: {Min: 100, Max: 100000},
		races.FieldDistance:   {Min: 0, Max: 400, ExclusiveMin: true},
	}
}

// Filter drops observations outside the field's range.
func (b Bounds) Filter(field string, obs []Observation) []Observation {
	r, ok := b[field]
	if !ok {
		return obs
	}
	out := obs[:0:0]
	for _, o := range obs {
		if r.Contains(o.Value.Num) {
			out = append(out, o)
		}
	}
	return out
}
