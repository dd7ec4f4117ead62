package races

import (
	"math"
	"strconv"
	"strings"
)

// Location is a hierarchical place with a domestic flag.
type Location struct {
	Region      string `json:"region,omitempty" yaml:"region,omitempty"`
	Locality    string `json:"locality,omitempty" yaml:"locality,omitempty"`
	SubLocality string `json:"sub_locality,omitempty" yaml:"sub_locality,omitempty"`
	Domestic    bool   `json:"domestic" yaml:"domestic"`
}

// String joins the non-empty levels with "-".
func (l Location) String() string {
	var parts []string
	for _, p := range []string{l.Region, l.Locality, l.SubLocality} {
		if p != "" {
			parts = append(parts, p)
		}
	}
	s := strings.Join(parts, "-")
	if !l.Domestic {
		s = "境外-" + s
	}
	return strings.TrimSuffix(s, "-")
}

// Value is a normalized field value. Numeric kinds use Num, location uses
// Location, every other kind uses Text.
type Value struct {
	Kind     Kind
	Num      float64
	Text     string
	Location Location
}

// Number builds a numeric value.
func Number(kind Kind, n float64) Value {
	return Value{Kind: kind, Num: n}
}

// Text builds a textual value of the given kind.
func Text(kind Kind, s string) Value {
	return Value{Kind: kind, Text: s}
}

// Place builds a location value.
func Place(loc Location) Value {
	return Value{Kind: KindLocation, Location: loc}
}

// Int returns Num rounded to the nearest integer.
func (v Value) Int() int {
	return int(math.Round(v.Num))
}

// Key identifies the value for equality and categorical voting.
func (v Value) Key() string {
	switch {
	case v.Kind == KindLocation:
		return v.Location.String() + "|" + strconv.FormatBool(v.Location.Domestic)
	case v.Kind.Numeric():
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	default:
		return v.Text
	}
}

// Equal reports whether two values are identical.
func (v Value) Equal(other Value) bool {
	return v.Kind == other.Kind && v.Key() == other.Key()
}

// String renders the value for logs and tables.
func (v Value) String() string {
	switch {
	case v.Kind == KindLocation:
		return v.Location.String()
	case v.Kind == KindCount:
		return strconv.Itoa(v.Int())
	case v.Kind.Numeric():
		return strconv.FormatFloat(v.Num, 'f', -1, 64)
	default:
		return v.Text
	}
}
