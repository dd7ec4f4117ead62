package table

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/agentstation/racesync/pkg/edits"
	"github.com/agentstation/racesync/pkg/provenance"
	"github.com/agentstation/racesync/pkg/races"
	"github.com/agentstation/racesync/pkg/reconciler"
)

var titleCaser = cases.Title(language.English)

// ProtectionsToTableData lists every manually fixed field of a record,
// event first, then variants in stored order.
func ProtectionsToTableData(rec *races.Record) Data {
	ps := provenance.NewStore()
	ps.Load(provenance.ScopeEvent, rec.Event.ExternalID, rec.Event.ManualFields)
	names := make(map[string]string, len(rec.Variants))
	for i := range rec.Variants {
		v := &rec.Variants[i]
		ps.Load(provenance.ScopeVariant, v.ID, v.ManualFields)
		names[v.ID] = v.DisplayName()
	}

	var rows [][]string
	for _, o := range ps.Report().Owners {
		owner := o.ID
		if o.Scope == provenance.ScopeVariant {
			owner = names[o.ID]
		}
		rows = append(rows, []string{string(o.Scope), owner, strings.Join(o.Fields, ", ")})
	}
	return Data{
		Headers: []string{"Scope", "Owner", "Manual Fields"},
		Rows:    rows,
	}
}

// DecisionsToTableData converts the field decisions of a pass. Unless all is
// true only written and protected fields are shown.
func DecisionsToTableData(decisions []reconciler.Decision, all bool) Data {
	var rows [][]string
	for _, d := range decisions {
		if !all && !d.Changed && !d.Protected {
			continue
		}
		value, method := d.Value.String(), string(d.Method)
		confidence := FormatConfidence(d.Confidence)
		if d.Protected {
			value, method, confidence = "(kept)", "manual", "-"
		}
		rows = append(rows, []string{
			string(d.Scope),
			d.Owner,
			d.Field,
			value,
			method,
			confidence,
			strings.Join(d.Sources, ","),
		})
	}
	return Data{
		Headers:         []string{"Scope", "Owner", "Field", "Value", "Method", "Confidence", "Sources"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignLeft, AlignLeft, AlignLeft, AlignLeft, AlignRight, AlignLeft},
	}
}

// EditReportToTableData lists the outcome of every edit in a report.
func EditReportToTableData(report *edits.Report) Data {
	rows := make([][]string, 0, report.Total())
	for _, e := range report.Applied {
		rows = append(rows, editRow(e, "applied", ""))
	}
	for _, e := range report.Unchanged {
		rows = append(rows, editRow(e, "unchanged", ""))
	}
	for _, r := range report.Rejected {
		rows = append(rows, editRow(r.Edit, "rejected", r.Err.Error()))
	}
	return Data{
		Headers: []string{"Event", "Variant", "Field", "Value", "Result", "Reason"},
		Rows:    rows,
	}
}

func editRow(e edits.Edit, result, reason string) []string {
	variant := e.Variant
	if variant == "" {
		variant = "-"
	}
	return []string{e.EventID, variant, e.Field, e.Value, result, reason}
}
