package reconciler

import (
	"fmt"
	"time"

	"github.com/agentstation/racesync/pkg/consensus"
	"github.com/agentstation/racesync/pkg/differ"
	"github.com/agentstation/racesync/pkg/provenance"
	"github.com/agentstation/racesync/pkg/races"
	"github.com/agentstation/racesync/pkg/sources"
)

// Result represents the outcome of a reconciliation pass.
type Result struct {
	// Core data
	PassID    string
	EventID   string
	Record    *races.Record
	Changeset *differ.Changeset
	Decisions []Decision

	// Collection report, set by Sync
	Collection *sources.Report

	// Metadata
	Metadata ResultMetadata

	// Issues that did not fail the pass: parse failures and ambiguous matches
	Warnings []error
}

// ResultMetadata contains metadata about the reconciliation process.
type ResultMetadata struct {
	StartTime time.Time
	EndTime   time.Time
	Duration  time.Duration

	// Sources that contributed candidates, in candidate order
	Sources []string

	// DryRun indicates if this was a dry-run
	DryRun bool

	// Saved is true when the record was handed to the store
	Saved bool

	// Statistics about the reconciliation
	Stats ResultStatistics
}

// ResultStatistics contains statistics about the reconciliation.
type ResultStatistics struct {
	Candidates       int
	Observations     int
	ParseFailures    int
	ProtectedSkips   int
	VariantsMatched  int
	VariantsCreated  int
	AmbiguousMatches int
	FieldsInferred   int
}

// Decision records what happened to one field in a pass.
type Decision struct {
	Scope      provenance.Scope
	Owner      string // event external ID or variant name
	Field      string
	Value      races.Value
	Confidence float64
	Method     consensus.Method
	Sources    []string
	Protected  bool
	Changed    bool
}

// String renders the decision on one line.
func (d Decision) String() string {
	switch {
	case d.Protected:
		return fmt.Sprintf("%s %s.%s: kept (manual)", d.Scope, d.Owner, d.Field)
	case d.Changed:
		return fmt.Sprintf("%s %s.%s = %s (%s, %.2f)", d.Scope, d.Owner, d.Field, d.Value, d.Method, d.Confidence)
	default:
		return fmt.Sprintf("%s %s.%s unchanged", d.Scope, d.Owner, d.Field)
	}
}

// HasChanges returns true if any changes were detected.
func (r *Result) HasChanges() bool {
	return r.Changeset != nil && r.Changeset.HasChanges()
}

// WasSaved returns true if changes were written.
func (r *Result) WasSaved() bool {
	return r.Metadata.Saved
}

// Decision returns the decision for one field, if the pass made one.
func (r *Result) Decision(scope provenance.Scope, owner, field string) (Decision, bool) {
	for _, d := range r.Decisions {
		if d.Scope == scope && d.Owner == owner && d.Field == field {
			return d, true
		}
	}
	return Decision{}, false
}

// Summary returns a human-readable summary of the result.
func (r *Result) Summary() string {
	if r.Metadata.DryRun {
		if r.HasChanges() {
			return fmt.Sprintf("Dry run completed. %s", r.Changeset.String())
		}
		return "Dry run completed. No changes detected."
	}

	if r.WasSaved() {
		return fmt.Sprintf("Reconciliation successful. %s", r.Changeset.String())
	}

	return "Reconciliation completed. No changes detected."
}
