package table

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/racesync/internal/utils/ptr"
	"github.com/agentstation/racesync/pkg/consensus"
	"github.com/agentstation/racesync/pkg/edits"
	"github.com/agentstation/racesync/pkg/provenance"
	"github.com/agentstation/racesync/pkg/races"
	"github.com/agentstation/racesync/pkg/reconciler"
)

func sample() *races.Record {
	rec := races.NewRecord("e1")
	rec.Event.Name = ptr.String("Lakeside Marathon")
	rec.Event.Organizer = ptr.String("Sports Bureau")
	rec.Event.ManualFields = provenance.NewSet(races.FieldOrganizer)
	rec.Event.Type = ptr.String("马拉松")
	rec.Event.Inferred = provenance.NewSet(races.FieldEventType)
	rec.Event.Confidence = map[string]float64{races.FieldName: 0.95, races.FieldEventType: 0.6}
	rec.Variants = []races.Variant{{
		ID:           "v1",
		Name:         ptr.String("半程马拉松"),
		Distance:     ptr.Float64(21.0975),
		Fee:          ptr.Float64(100),
		UnitPrice:    ptr.Float64(4.74),
		ManualFields: provenance.NewSet(races.FieldFee),
	}}
	return rec
}

func TestEventToTableData(t *testing.T) {
	data := EventToTableData(sample(), false)
	assert.Equal(t, []string{"Field", "Value", "Source"}, data.Headers)

	rows := map[string][]string{}
	for _, row := range data.Rows {
		require.Len(t, row, 3)
		rows[row[0]] = row
	}
	assert.Equal(t, []string{"Name", "Lakeside Marathon", "95%"}, rows["Name"])
	assert.Equal(t, []string{"Organizer", "Sports Bureau", "manual"}, rows["Organizer"])
	assert.Equal(t, []string{"Event Type", "马拉松", "inferred 60%"}, rows["Event Type"])
	assert.NotContains(t, rows, "Contact Phone")

	all := EventToTableData(sample(), true)
	assert.Greater(t, all.Len(), data.Len())
}

func TestVariantsToTableData(t *testing.T) {
	data := VariantsToTableData(sample(), false)
	require.Len(t, data.Rows, 1)
	assert.Equal(t, []string{"半程马拉松", "21.0975 km", "100", "4.74", "-", "-"}, data.Rows[0])
	assert.Len(t, data.ColumnAlignment, len(data.Headers))

	wide := VariantsToTableData(sample(), true)
	assert.Len(t, wide.Rows[0], len(wide.Headers))
	assert.Len(t, wide.ColumnAlignment, len(wide.Headers))
	assert.Equal(t, "fee", wide.Rows[0][10])
}

func TestProtectionsToTableData(t *testing.T) {
	data := ProtectionsToTableData(sample())
	assert.Equal(t, [][]string{
		{"event", "e1", "organizer"},
		{"variant", "半程马拉松", "fee"},
	}, data.Rows)
}

func TestDecisionsToTableData(t *testing.T) {
	decisions := []reconciler.Decision{
		{Scope: provenance.ScopeVariant, Owner: "半程马拉松", Field: races.FieldFee, Protected: true},
		{Scope: provenance.ScopeEvent, Owner: "e1", Field: races.FieldName, Value: races.Text(races.KindText, "x"),
			Confidence: 1, Method: consensus.MethodHighestWeight, Sources: []string{"official_website"}, Changed: true},
		{Scope: provenance.ScopeEvent, Owner: "e1", Field: races.FieldOrganizer},
	}
	data := DecisionsToTableData(decisions, false)
	require.Len(t, data.Rows, 2)
	assert.Equal(t, []string{"variant", "半程马拉松", "fee", "(kept)", "manual", "-", ""}, data.Rows[0])
	assert.Equal(t, []string{"event", "e1", "name", "x", "highest_weight", "100%", "official_website"}, data.Rows[1])

	assert.Len(t, DecisionsToTableData(decisions, true).Rows, 3)
}

func TestEditReportToTableData(t *testing.T) {
	report := &edits.Report{
		Applied:  []edits.Edit{{EventID: "e1", Field: "name", Value: "x"}},
		Rejected: []edits.Rejection{{Edit: edits.Edit{EventID: "e2", Variant: "半马", Field: "fee", Value: "?"}, Err: errors.New("bad fee")}},
	}
	data := EditReportToTableData(report)
	assert.Equal(t, [][]string{
		{"e1", "-", "name", "x", "applied", ""},
		{"e2", "半马", "fee", "?", "rejected", "bad fee"},
	}, data.Rows)
}

func TestFormatHelpers(t *testing.T) {
	assert.Equal(t, "-", FormatFloat(nil, " km"))
	assert.Equal(t, "42.195 km", FormatFloat(ptr.Float64(42.195), " km"))
	assert.Equal(t, "-", FormatInt(nil))
	assert.Equal(t, "80%", FormatConfidence(0.8))
}
