// Package table provides common table formatting utilities for CLI commands.
package table

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/agentstation/utc"

	"github.com/agentstation/racesync/pkg/races"
)

// Align represents column alignment in tables.
type Align int

const (
	// AlignDefault uses the default alignment (skip).
	AlignDefault Align = iota
	// AlignLeft aligns content to the left.
	AlignLeft
	// AlignCenter centers content.
	AlignCenter
	// AlignRight aligns content to the right.
	AlignRight
)

// Data represents table formatting data to avoid import cycles.
type Data struct {
	Headers         []string
	Rows            [][]string
	ColumnAlignment []Align // Optional: column alignment
}

// Len returns the number of rows.
func (d Data) Len() int {
	return len(d.Rows)
}

// EventToTableData renders the event fields of a record as property/value rows.
// Unset fields are skipped unless all is true.
func EventToTableData(rec *races.Record, all bool) Data {
	rows := [][]string{{"External ID", rec.Event.ExternalID}}
	for _, f := range races.EventFields {
		v, ok := rec.Event.Get(f.Name)
		if !ok && !all {
			continue
		}
		rows = append(rows, []string{
			label(f.Name),
			valueOrDash(v, ok),
			flags(f.Name, rec.Event.ManualFields.Has(f.Name), rec.Event.Inferred.Has(f.Name), rec.Event.Confidence),
		})
	}
	rows = append(rows,
		[]string{"Created", FormatTime(rec.Event.CreatedAt), ""},
		[]string{"Updated", FormatTime(rec.Event.UpdatedAt), ""},
	)
	if rec.Event.ManualUpdatedAt != nil {
		rows = append(rows, []string{"Manual Update", FormatTime(*rec.Event.ManualUpdatedAt), ""})
	}
	for i := range rows {
		if len(rows[i]) == 2 {
			rows[i] = append(rows[i], "")
		}
	}

	return Data{
		Headers:         []string{"Field", "Value", "Source"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignLeft, AlignLeft},
	}
}

// VariantsToTableData renders one row per variant. Wide output adds the
// schedule and registration columns.
func VariantsToTableData(rec *races.Record, wide bool) Data {
	headers := []string{"Name", "Distance", "Fee", "Price/km", "Quota", "Status"}
	align := []Align{AlignLeft, AlignRight, AlignRight, AlignRight, AlignRight, AlignLeft}
	if wide {
		headers = append(headers, "Early Fee", "Start", "Cutoff", "Registered", "Manual", "Inferred", "ID")
		align = append(align, AlignRight, AlignLeft, AlignLeft, AlignRight, AlignLeft, AlignLeft, AlignLeft)
	}

	rows := make([][]string, 0, len(rec.Variants))
	for i := range rec.Variants {
		v := &rec.Variants[i]
		row := []string{
			v.DisplayName(),
			FormatFloat(v.Distance, " km"),
			FormatFloat(v.Fee, ""),
			FormatFloat(v.UnitPrice, ""),
			FormatInt(v.Quota),
			field(v, races.FieldRegistrationStatus),
		}
		if wide {
			row = append(row,
				FormatFloat(v.EarlyFee, ""),
				field(v, races.FieldStartTime),
				field(v, races.FieldCutoffTime),
				FormatInt(v.Registered),
				joinOrDash(v.ManualFields),
				joinOrDash(v.Inferred),
				v.ID,
			)
		}
		rows = append(rows, row)
	}

	return Data{
		Headers:         headers,
		Rows:            rows,
		ColumnAlignment: align,
	}
}

// EventsToTableData converts loaded records to a listing.
func EventsToTableData(records []*races.Record) Data {
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			rec.Event.ExternalID,
			textOrDash(rec.Event.Name),
			textOrDash(rec.Event.Date),
			strconv.Itoa(len(rec.Variants)),
			strconv.Itoa(rec.Event.ManualFields.Len() + manualVariantFields(rec)),
			FormatTime(rec.Event.UpdatedAt),
		})
	}
	return Data{
		Headers:         []string{"ID", "Name", "Date", "Variants", "Manual", "Updated"},
		Rows:            rows,
		ColumnAlignment: []Align{AlignLeft, AlignLeft, AlignLeft, AlignRight, AlignRight, AlignLeft},
	}
}

func manualVariantFields(rec *races.Record) int {
	n := 0
	for i := range rec.Variants {
		n += rec.Variants[i].ManualFields.Len()
	}
	return n
}

// FormatFloat renders an optional number in its shortest form.
func FormatFloat(f *float64, unit string) string {
	if f == nil {
		return "-"
	}
	return strconv.FormatFloat(*f, 'f', -1, 64) + unit
}

// FormatInt renders an optional count.
func FormatInt(i *int) string {
	if i == nil {
		return "-"
	}
	return strconv.Itoa(*i)
}

// FormatTime renders a timestamp to the minute, or a dash when unset.
func FormatTime(t utc.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Format("2006-01-02 15:04")
}

// FormatConfidence renders a confidence as a percentage.
func FormatConfidence(c float64) string {
	return fmt.Sprintf("%.0f%%", c*100)
}

func field(v *races.Variant, name string) string {
	val, ok := v.Get(name)
	return valueOrDash(val, ok)
}

func flags(name string, manual, inferred bool, confidence map[string]float64) string {
	switch {
	case manual:
		return "manual"
	case inferred:
		return "inferred " + FormatConfidence(confidence[name])
	default:
		if c, ok := confidence[name]; ok {
			return FormatConfidence(c)
		}
		return ""
	}
}

func label(name string) string {
	return titleCaser.String(strings.ReplaceAll(name, "_", " "))
}

func valueOrDash(v races.Value, ok bool) string {
	if !ok {
		return "-"
	}
	return v.String()
}

func textOrDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func joinOrDash(fields []string) string {
	if len(fields) == 0 {
		return "-"
	}
	return strings.Join(fields, ",")
}
