package consensus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/racesync/pkg/races"
)

var (
	feeField    = races.Field{Name: races.FieldFee, Kind: races.KindFee}
	quotaField  = races.Field{Name: races.FieldQuota, Kind: races.KindCount}
	distField   = races.Field{Name: races.FieldDistance, Kind: races.KindDistance}
	statusField = races.Field{Name: races.FieldStatus, Kind: races.KindStatus}
)

func fee(source string, w, v float64) Observation {
	return Observation{Field: races.FieldFee, Source: source, Weight: w, Value: races.Number(races.KindFee, v)}
}

func TestResolveAgreementWeightedMean(t *testing.T) {
	res, ok := Resolve(feeField, []Observation{fee("a", 0.9, 100), fee("b", 0.7, 100)})
	require.True(t, ok)
	assert.Equal(t, MethodWeightedMean, res.Method)
	assert.InDelta(t, 100, res.Value.Num, 1e-9)
	assert.InDelta(t, 0.8, res.Confidence, 1e-9)
	assert.Equal(t, []string{"a", "b"}, res.Sources)
}

func TestResolveOutlierFallsBackToMedian(t *testing.T) {
	obs := []Observation{fee("a", 0.9, 100), fee("b", 0.85, 100), fee("c", 0.7, 500)}
	res, ok := Resolve(feeField, obs)
	require.True(t, ok)
	assert.Equal(t, MethodMedian, res.Method)
	assert.Equal(t, 100.0, res.Value.Num)

	meanW := (0.9 + 0.85 + 0.7) / 3
	assert.Less(t, res.Confidence, meanW)
	assert.GreaterOrEqual(t, res.Confidence, 0.0)
}

func TestResolveDisagreementUsesMedian(t *testing.T) {
	obs := []Observation{fee("a", 1.0, 100), fee("b", 0.9, 100), fee("c", 0.5, 500)}
	res, ok := Resolve(feeField, obs)
	require.True(t, ok)
	assert.Equal(t, MethodMedian, res.Method)
	assert.Equal(t, 100.0, res.Value.Num)
	assert.Less(t, res.Confidence, (1.0+0.9+0.5)/3)
	// mean deviation 4/3 floors the confidence at 0
	assert.Equal(t, 0.0, res.Confidence)
}

func TestResolveBoundsBeforeDedupe(t *testing.T) {
	res, ok := Resolve(feeField, []Observation{fee("a", 0.9, 0), fee("a", 0.9, 120)})
	require.True(t, ok)
	assert.Equal(t, MethodSingle, res.Method)
	assert.Equal(t, 120.0, res.Value.Num)
	assert.Equal(t, []string{"a"}, res.Sources)
}

func TestResolveMedianConfidencePenalty(t *testing.T) {
	res, ok := Resolve(feeField, []Observation{fee("a", 1, 100), fee("b", 1, 110), fee("c", 1, 120)})
	require.True(t, ok)
	assert.Equal(t, MethodMedian, res.Method)
	assert.Equal(t, 110.0, res.Value.Num)
	// deviations 10/110, 0, 10/110
	assert.InDelta(t, 1-(20.0/110)/3, res.Confidence, 1e-9)
}

func TestResolveWithinTolerance(t *testing.T) {
	res, ok := Resolve(feeField, []Observation{fee("a", 1, 100), fee("b", 0.5, 103)})
	require.True(t, ok)
	assert.Equal(t, MethodWeightedMean, res.Method)
	assert.InDelta(t, (100+103*0.5)/1.5, res.Value.Num, 1e-9)
}

func TestResolveSingle(t *testing.T) {
	res, ok := Resolve(feeField, []Observation{fee("a", 0.85, 120)})
	require.True(t, ok)
	assert.Equal(t, MethodSingle, res.Method)
	assert.Equal(t, 0.85, res.Confidence)
}

func TestResolveSanityBounds(t *testing.T) {
	tests := []struct {
		name  string
		field races.Field
		value float64
		keep  bool
	}{
		{"zero fee", feeField, 0, false},
		{"fee 1000", feeField, 1000, false},
		{"fee 999", feeField, 999, true},
		{"quota 9", quotaField, 9, false},
		{"quota 10", quotaField, 10, true},
		{"quota 50000", quotaField, 50000, true},
		{"quota 50001", quotaField, 50001, false},
		{"distance 0", distField, 0, false},
		{"distance 400", distField, 400, true},
		{"distance 401", distField, 401, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			obs := []Observation{{Field: tt.field.Name, Source: "a", Weight: 1, Value: races.Number(tt.field.Kind, tt.value)}}
			_, ok := Resolve(tt.field, obs)
			assert.Equal(t, tt.keep, ok)
		})
	}
}

func TestResolveOnePerSource(t *testing.T) {
	res, ok := Resolve(feeField, []Observation{fee("a", 0.9, 100), fee("a", 0.9, 300), fee("b", 0.9, 100)})
	require.True(t, ok)
	assert.Equal(t, MethodWeightedMean, res.Method)
	assert.Equal(t, 100.0, res.Value.Num)
	assert.Len(t, res.Sources, 2)
}

func TestResolveCountsRound(t *testing.T) {
	obs := []Observation{
		{Source: "a", Weight: 1, Value: races.Number(races.KindCount, 1000)},
		{Source: "b", Weight: 0.5, Value: races.Number(races.KindCount, 1001)},
	}
	res, ok := Resolve(quotaField, obs)
	require.True(t, ok)
	assert.Equal(t, 1000.0, res.Value.Num)
}

func TestResolveCategorical(t *testing.T) {
	open := races.Text(races.KindStatus, string(races.StatusOpen))
	closed := races.Text(races.KindStatus, string(races.StatusClosed))

	res, ok := Resolve(statusField, []Observation{
		{Source: "media", Weight: 0.85, Value: open},
		{Source: "official", Weight: 1.0, Value: closed},
		{Source: "ai", Weight: 0.7, Value: closed},
	})
	require.True(t, ok)
	assert.Equal(t, closed, res.Value)
	assert.Equal(t, 1.0, res.Confidence)
	assert.Equal(t, []string{"official", "ai"}, res.Sources)

	tie, ok := Resolve(statusField, []Observation{
		{Source: "x", Weight: 0.9, Value: open},
		{Source: "y", Weight: 0.9, Value: closed},
	})
	require.True(t, ok)
	assert.Equal(t, open, tie.Value)
}

func TestResolveEmpty(t *testing.T) {
	_, ok := Resolve(feeField, nil)
	assert.False(t, ok)
}

func TestOptions(t *testing.T) {
	r := New(WithTolerance(0.5))
	assert.Equal(t, 0.5, r.Tolerance())
	res, ok := r.Resolve(feeField, []Observation{fee("a", 1, 100), fee("b", 1, 140)})
	require.True(t, ok)
	assert.Equal(t, MethodWeightedMean, res.Method)

	loose := New(WithBound(races.FieldFee, Range{Min: 0, Max: 5000}))
	_, ok = loose.Resolve(feeField, []Observation{fee("a", 1, 2000)})
	assert.True(t, ok)

	assert.Equal(t, DefaultTolerance, New(WithTolerance(-1)).Tolerance())
}

func TestMedian(t *testing.T) {
	assert.Equal(t, 0.0, Median(nil))
	assert.Equal(t, 2.0, Median([]float64{3, 1, 2}))
	assert.Equal(t, 2.5, Median([]float64{4, 1, 3, 2}))
}
