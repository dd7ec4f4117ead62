package edits

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/agentstation/racesync/pkg/errors"
	"github.com/agentstation/racesync/pkg/races"
)

// Column names shared by both layouts.
const (
	ColumnEventID = "event_id"
	ColumnVariant = "variant"
	ColumnField   = "field"
	ColumnValue   = "value"
)

// ReadCSV parses edits from a CSV table with a header row.
//
// The long layout has the columns event_id, variant, field and value, one
// edit per row. The wide layout has event_id, an optional variant column,
// and one column per field name; every non-empty cell is an edit.
func ReadCSV(r io.Reader) ([]Edit, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true
	cr.Comment = '#'

	header, err := cr.Read()
	if err == io.EOF {
		return nil, nil
	}
	if err != nil {
		return nil, errors.NewValidationError("header", nil, err.Error())
	}
	cols := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		header[i] = h
		cols[h] = i
	}
	if _, ok := cols[ColumnEventID]; !ok {
		return nil, errors.NewValidationError("header", header, "missing event_id column")
	}

	_, hasField := cols[ColumnField]
	_, hasValue := cols[ColumnValue]
	if hasField && hasValue {
		return readLong(cr, cols)
	}
	return readWide(cr, header, cols)
}

// ReadCSVFile reads edits from a CSV file on disk.
func ReadCSVFile(path string) ([]Edit, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.WrapIO("open", path, err)
	}
	defer func() { _ = f.Close() }()
	return ReadCSV(f)
}

func cell(row []string, cols map[string]int, name string) string {
	i, ok := cols[name]
	if !ok || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

func readLong(cr *csv.Reader, cols map[string]int) ([]Edit, error) {
	var out []Edit
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, errors.NewValidationError("row", line, err.Error())
		}
		e := Edit{
			EventID: cell(row, cols, ColumnEventID),
			Variant: cell(row, cols, ColumnVariant),
			Field:   cell(row, cols, ColumnField),
			Value:   cell(row, cols, ColumnValue),
		}
		if e.EventID == "" && e.Field == "" && e.Value == "" {
			continue
		}
		out = append(out, e)
	}
}

func readWide(cr *csv.Reader, header []string, cols map[string]int) ([]Edit, error) {
	_, scoped := cols[ColumnVariant]
	var fields []string
	for _, h := range header {
		if h == ColumnEventID || h == ColumnVariant || h == "" {
			continue
		}
		_, event := races.EventField(h)
		_, variant := races.VariantField(h)
		if !event && !variant && h != races.FieldUnitPrice {
			return nil, errors.NewValidationError("header", h, fmt.Sprintf("unknown field column %q", h))
		}
		fields = append(fields, h)
	}

	var out []Edit
	for line := 2; ; line++ {
		row, err := cr.Read()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, errors.NewValidationError("row", line, err.Error())
		}
		eventID := cell(row, cols, ColumnEventID)
		var variant string
		if scoped {
			variant = cell(row, cols, ColumnVariant)
		}
		for _, f := range fields {
			v := cell(row, cols, f)
			if v == "" {
				continue
			}
			out = append(out, Edit{EventID: eventID, Variant: variant, Field: f, Value: v})
		}
	}
}
