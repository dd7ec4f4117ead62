// Package output provides common output formatting utilities for CLI commands.
package output

import (
	"io"

	"github.com/agentstation/racesync/internal/cmd/table"
	"github.com/agentstation/racesync/pkg/edits"
	"github.com/agentstation/racesync/pkg/races"
	"github.com/agentstation/racesync/pkg/reconciler"
)

// ResultView is the serialized form of a reconciliation result.
type ResultView struct {
	PassID    string                      `json:"pass_id" yaml:"pass_id"`
	EventID   string                      `json:"event_id" yaml:"event_id"`
	Summary   string                      `json:"summary" yaml:"summary"`
	Saved     bool                        `json:"saved" yaml:"saved"`
	DryRun    bool                        `json:"dry_run" yaml:"dry_run"`
	Sources   []string                    `json:"sources,omitempty" yaml:"sources,omitempty"`
	Failed    []string                    `json:"failed_sources,omitempty" yaml:"failed_sources,omitempty"`
	Stats     reconciler.ResultStatistics `json:"stats" yaml:"stats"`
	Decisions []string                    `json:"decisions,omitempty" yaml:"decisions,omitempty"`
	Warnings  []string                    `json:"warnings,omitempty" yaml:"warnings,omitempty"`
}

// NewResultView flattens a result for JSON and YAML output.
func NewResultView(r *reconciler.Result) ResultView {
	view := ResultView{
		PassID:  r.PassID,
		EventID: r.EventID,
		Summary: r.Summary(),
		Saved:   r.WasSaved(),
		DryRun:  r.Metadata.DryRun,
		Sources: r.Metadata.Sources,
		Stats:   r.Metadata.Stats,
	}
	if r.Collection != nil {
		for _, f := range r.Collection.Failures {
			view.Failed = append(view.Failed, f.Source)
		}
	}
	for _, d := range r.Decisions {
		if d.Changed || d.Protected {
			view.Decisions = append(view.Decisions, d.String())
		}
	}
	for _, w := range r.Warnings {
		view.Warnings = append(view.Warnings, w.Error())
	}
	return view
}

// FormatRecord writes a stored record: its event fields, its variants and
// the manual protections when there are any.
func FormatRecord(w io.Writer, rec *races.Record, format Format) error {
	if !isTable(format) {
		return NewFormatter(format).Format(w, rec)
	}
	wide := format == FormatWide
	tables := []Data{
		table.EventToTableData(rec, wide),
		table.VariantsToTableData(rec, wide),
	}
	if protections := table.ProtectionsToTableData(rec); protections.Len() > 0 {
		tables = append(tables, protections)
	}
	return NewFormatter(format).Format(w, tables)
}

// FormatRecords writes a listing of stored records.
func FormatRecords(w io.Writer, records []*races.Record, format Format) error {
	if !isTable(format) {
		return NewFormatter(format).Format(w, records)
	}
	return NewFormatter(format).Format(w, table.EventsToTableData(records))
}

// FormatResults writes the outcome of one or more passes.
func FormatResults(w io.Writer, results []*reconciler.Result, format Format) error {
	if !isTable(format) {
		views := make([]ResultView, 0, len(results))
		for _, r := range results {
			if r != nil {
				views = append(views, NewResultView(r))
			}
		}
		return NewFormatter(format).Format(w, views)
	}

	for _, r := range results {
		if r == nil {
			continue
		}
		if _, err := io.WriteString(w, r.EventID+": "+r.Summary()+"\n"); err != nil {
			return err
		}
		decisions := table.DecisionsToTableData(r.Decisions, format == FormatWide)
		if decisions.Len() == 0 {
			continue
		}
		if err := NewFormatter(format).Format(w, decisions); err != nil {
			return err
		}
	}
	return nil
}

// FormatEditReport writes the outcome of an edit import.
func FormatEditReport(w io.Writer, report *edits.Report, format Format) error {
	if !isTable(format) {
		return NewFormatter(format).Format(w, report)
	}
	if err := NewFormatter(format).Format(w, table.EditReportToTableData(report)); err != nil {
		return err
	}
	_, err := io.WriteString(w, report.String()+"\n")
	return err
}

func isTable(format Format) bool {
	return format == FormatTable || format == FormatWide || format == ""
}
