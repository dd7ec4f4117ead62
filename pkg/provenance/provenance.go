// Package provenance tracks which fields of an event or variant were fixed
// by a human. A protected field is never overwritten by an automated pass;
// only the manual-edit entry point adds protections.
package provenance

import (
	"fmt"
	"sort"
	"strings"
)

// Scope separates the event and variant provenance namespaces.
type Scope string

// Provenance scopes.
const (
	ScopeEvent   Scope = "event"
	ScopeVariant Scope = "variant"
)

// Store gates writes by provenance for the owners loaded into it.
type Store interface {
	// IsProtected reports whether field was manually fixed on the owner.
	IsProtected(scope Scope, ownerID, field string) bool

	// MarkManual unions fields into the owner's set and returns the newly added names.
	MarkManual(scope Scope, ownerID string, fields ...string) []string

	// Load seeds the owner's set from persisted state, replacing what was there.
	Load(scope Scope, ownerID string, fields Set)

	// Fields returns a copy of the owner's set.
	Fields(scope Scope, ownerID string) Set

	// Report summarizes every owner with at least one protected field.
	Report() *Report
}

type owner struct {
	scope Scope
	id    string
}

// store is the default implementation.
type store struct {
	sets  map[owner]Set
	order []owner
}

// NewStore creates an empty provenance store.
func NewStore() Store {
	return &store{sets: make(map[owner]Set)}
}

func (s *store) IsProtected(scope Scope, ownerID, field string) bool {
	if ownerID == "" {
		return false
	}
	return s.sets[owner{scope, ownerID}].Has(field)
}

func (s *store) MarkManual(scope Scope, ownerID string, fields ...string) []string {
	if ownerID == "" {
		return nil
	}
	key := owner{scope, ownerID}
	set, ok := s.sets[key]
	if !ok {
		s.order = append(s.order, key)
	}
	added := set.Add(fields...)
	s.sets[key] = set
	return added
}

func (s *store) Load(scope Scope, ownerID string, fields Set) {
	if ownerID == "" {
		return
	}
	key := owner{scope, ownerID}
	if _, ok := s.sets[key]; !ok {
		s.order = append(s.order, key)
	}
	s.sets[key] = NewSet(fields...)
}

func (s *store) Fields(scope Scope, ownerID string) Set {
	return s.sets[owner{scope, ownerID}].Clone()
}

// Report lists protections grouped by owner, events first.
type Report struct {
	Owners []OwnerFields
}

// OwnerFields is one row of a Report.
type OwnerFields struct {
	Scope  Scope
	ID     string
	Fields Set
}

func (s *store) Report() *Report {
	report := &Report{}
	for _, key := range s.order {
		set := s.sets[key]
		if set.Len() == 0 {
			continue
		}
		report.Owners = append(report.Owners, OwnerFields{Scope: key.scope, ID: key.id, Fields: set.Clone()})
	}
	sort.SliceStable(report.Owners, func(i, j int) bool {
		return report.Owners[i].Scope == ScopeEvent && report.Owners[j].Scope != ScopeEvent
	})
	return report
}

// String renders the report for terminals.
func (r *Report) String() string {
	var sb strings.Builder
	sb.WriteString("Manually fixed fields\n")
	sb.WriteString("=====================\n")
	if len(r.Owners) == 0 {
		sb.WriteString("(none)\n")
		return sb.String()
	}
	for _, o := range r.Owners {
		sb.WriteString(fmt.Sprintf("%-8s %s: %s\n", o.Scope, o.ID, strings.Join(o.Fields, ", ")))
	}
	return sb.String()
}
