package provenance

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// Set is an ordered, duplicate-free list of field names.
//
// As a provenance set it only grows. The same type backs the inferred-field
// sets on entities, which are allowed to shrink through Remove.
type Set []string

// NewSet builds a set from the given names, dropping blanks and repeats.
func NewSet(fields ...string) Set {
	var s Set
	s.Add(fields...)
	return s
}

// Has reports whether field is in the set.
func (s Set) Has(field string) bool {
	for _, f := range s {
		if f == field {
			return true
		}
	}
	return false
}

// Add appends fields not already present and returns the ones it added.
func (s *Set) Add(fields ...string) []string {
	var added []string
	for _, f := range fields {
		f = strings.TrimSpace(f)
		if f == "" || s.Has(f) {
			continue
		}
		*s = append(*s, f)
		added = append(added, f)
	}
	return added
}

// Remove deletes field, keeping the order of the rest.
func (s *Set) Remove(field string) bool {
	for i, f := range *s {
		if f == field {
			*s = append((*s)[:i:i], (*s)[i+1:]...)
			return true
		}
	}
	return false
}

// Len returns the number of fields.
func (s Set) Len() int { return len(s) }

// Clone returns an independent copy.
func (s Set) Clone() Set {
	if s == nil {
		return nil
	}
	out := make(Set, len(s))
	copy(out, s)
	return out
}

// Equal reports whether both sets hold the same names, ignoring order.
func (s Set) Equal(other Set) bool {
	if len(s) != len(other) {
		return false
	}
	for _, f := range s {
		if !other.Has(f) {
			return false
		}
	}
	return true
}

// String renders the set as a comma separated list.
func (s Set) String() string {
	return strings.Join(s, ",")
}

// Value stores the set as a JSON array of strings.
func (s Set) Value() (driver.Value, error) {
	if s == nil {
		return "[]", nil
	}
	data, err := json.Marshal([]string(s))
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan reads a JSON array column. NULL and empty text yield an empty set.
func (s *Set) Scan(src any) error {
	var data []byte
	switch v := src.(type) {
	case nil:
		*s = nil
		return nil
	case string:
		data = []byte(v)
	case []byte:
		data = v
	default:
		return fmt.Errorf("provenance: cannot scan %T into Set", src)
	}
	if strings.TrimSpace(string(data)) == "" {
		*s = nil
		return nil
	}
	var fields []string
	if err := json.Unmarshal(data, &fields); err != nil {
		return fmt.Errorf("provenance: invalid field list %q: %w", data, err)
	}
	*s = NewSet(fields...)
	return nil
}
