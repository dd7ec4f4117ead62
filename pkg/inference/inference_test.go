package inference

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/racesync/internal/utils/ptr"
	"github.com/agentstation/racesync/pkg/provenance"
	"github.com/agentstation/racesync/pkg/races"
)

func TestDistanceFromName(t *testing.T) {
	tests := []struct {
		name string
		want float64
		ok   bool
	}{
		{"全程马拉松", 42.195, true},
		{"半程马拉松", 21.0975, true},
		{"半马", 21.0975, true},
		{"10公里", 10, true},
		{"15公里迷你跑", 15, true},
		{"迷你马拉松", 5, true},
		{"家庭健康跑", 3, true},
		{"10K Run", 10, true},
		{"精英组", 0, false},
	}
	e := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &races.Variant{Name: ptr.String(tt.name)}
			p, ok := e.Variant(&races.Record{}, v, races.FieldDistance)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.InDelta(t, tt.want, p.Value.Num, 1e-9)
				assert.Equal(t, DefaultConfidence, p.Confidence)
				assert.Equal(t, "distance_from_name", p.Rule)
			}
		})
	}
}

func TestFeeFromCategory(t *testing.T) {
	tests := []struct {
		name     string
		distance *float64
		want     float64
		ok       bool
	}{
		{"全程马拉松", nil, 140, true},
		{"半程马拉松", nil, 115, true},
		{"10公里", nil, 80, true},
		{"5公里", nil, 65, true},
		{"迷你跑", nil, 65, true},
		{"精英组", ptr.Float64(10), 80, true},
		{"精英组", nil, 0, false},
	}
	e := New()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := &races.Variant{Name: ptr.String(tt.name), Distance: tt.distance}
			p, ok := e.Variant(&races.Record{}, v, races.FieldFee)
			require.Equal(t, tt.ok, ok)
			if ok {
				assert.Equal(t, tt.want, p.Value.Num)
			}
		})
	}
}

func TestScaleFromQuotas(t *testing.T) {
	rec := &races.Record{Variants: []races.Variant{
		{Name: ptr.String("全程"), Quota: ptr.Int(8000)},
		{Name: ptr.String("半程"), Quota: ptr.Int(12000)},
		{Name: ptr.String("迷你")},
	}}
	p, ok := New().Event(rec, races.FieldTotalScale)
	require.True(t, ok)
	assert.Equal(t, 20000, p.Value.Int())

	_, ok = New().Event(&races.Record{}, races.FieldTotalScale)
	assert.False(t, ok)
}

func TestTypeFromKeywords(t *testing.T) {
	rec := &races.Record{Event: races.Event{Name: ptr.String("2025 山地越野挑战赛")}}
	p, ok := New().Event(rec, races.FieldEventType)
	require.True(t, ok)
	assert.Equal(t, "越野赛", p.Value.Text)
}

func TestNoRuleForField(t *testing.T) {
	_, ok := New().Event(&races.Record{}, races.FieldOrganizer)
	assert.False(t, ok)
	_, ok = New().Variant(&races.Record{}, nil, races.FieldFee)
	assert.False(t, ok)
}

func TestEligible(t *testing.T) {
	inferred := provenance.NewSet(races.FieldFee)
	assert.True(t, Eligible(false, nil, races.FieldFee))
	assert.True(t, Eligible(true, inferred, races.FieldFee))
	assert.False(t, Eligible(true, inferred, races.FieldDistance))
}

func TestOptions(t *testing.T) {
	e := New(WithConfidence(0.4), WithRules(ScaleRule{}))
	assert.Equal(t, 0.4, e.Confidence())
	_, ok := e.Variant(&races.Record{}, &races.Variant{Name: ptr.String("全程马拉松")}, races.FieldDistance)
	assert.False(t, ok)
	assert.Equal(t, DefaultConfidence, New(WithConfidence(2)).Confidence())
}
