// Package differ provides functionality for comparing race records and detecting changes.
package differ

import (
	"fmt"
	"io"
	"strings"

	"github.com/agentstation/racesync/pkg/provenance"
	"github.com/agentstation/racesync/pkg/races"
)

// ChangeType represents the type of change.
type ChangeType string

const (
	// ChangeTypeAdd indicates a value was set where none existed.
	ChangeTypeAdd ChangeType = "add"
	// ChangeTypeUpdate indicates a value was replaced.
	ChangeTypeUpdate ChangeType = "update"
	// ChangeTypeRemove indicates a value was cleared.
	ChangeTypeRemove ChangeType = "remove"
)

// FieldChange represents a change to a specific field.
type FieldChange struct {
	Scope    provenance.Scope // Entity kind
	Owner    string           // Event external ID or variant name
	Path     string           // Field name, or "confidence.<field>", "inferred", "manual"
	OldValue string           // Previous value (string representation)
	NewValue string           // New value (string representation)
	Type     ChangeType       // Type of change
}

// String renders the change on one line.
func (c FieldChange) String() string {
	return fmt.Sprintf("%s %s.%s: %s → %s", c.Scope, c.Owner, c.Path, display(c.OldValue), display(c.NewValue))
}

// VariantUpdate represents an update to an existing variant.
type VariantUpdate struct {
	ID      string        // Stable variant ID
	Name    string        // Display name
	Changes []FieldChange // Detailed list of field changes
}

// Changeset represents all changes between two versions of a record.
type Changeset struct {
	EventID         string
	Created         bool             // No stored record existed
	Event           []FieldChange    // Event field changes
	VariantsAdded   []races.Variant  // New variants
	VariantsUpdated []VariantUpdate  // Updated variants
	VariantsRemoved []races.Variant  // Variants missing from the new record
	Summary         ChangesetSummary // Summary statistics
}

// ChangesetSummary provides summary statistics for a changeset.
type ChangesetSummary struct {
	EventFields     int
	VariantsAdded   int
	VariantsUpdated int
	VariantsRemoved int
	VariantFields   int
	TotalChanges    int
}

// HasChanges returns true if the changeset contains any changes.
func (c *Changeset) HasChanges() bool {
	return c.Summary.TotalChanges > 0
}

// IsEmpty returns true if the changeset contains no changes.
func (c *Changeset) IsEmpty() bool {
	return c.Summary.TotalChanges == 0
}

// Changes returns every field change, event first.
func (c *Changeset) Changes() []FieldChange {
	out := append([]FieldChange(nil), c.Event...)
	for _, u := range c.VariantsUpdated {
		out = append(out, u.Changes...)
	}
	return out
}

// calculateSummary computes the summary for a changeset.
func calculateSummary(c *Changeset) ChangesetSummary {
	variantFields := 0
	for _, u := range c.VariantsUpdated {
		variantFields += len(u.Changes)
	}
	s := ChangesetSummary{
		EventFields:     len(c.Event),
		VariantsAdded:   len(c.VariantsAdded),
		VariantsUpdated: len(c.VariantsUpdated),
		VariantsRemoved: len(c.VariantsRemoved),
		VariantFields:   variantFields,
	}
	s.TotalChanges = s.EventFields + s.VariantsAdded + s.VariantFields + s.VariantsRemoved
	return s
}

// String returns a human-readable summary of the changeset.
func (c *Changeset) String() string {
	if c.IsEmpty() {
		return "No changes detected"
	}

	var parts []string
	if c.Created {
		parts = append(parts, "new event")
	}
	if len(c.Event) > 0 {
		parts = append(parts, fmt.Sprintf("Event: %d fields", len(c.Event)))
	}
	var variantParts []string
	if n := len(c.VariantsAdded); n > 0 {
		variantParts = append(variantParts, fmt.Sprintf("%d added", n))
	}
	if n := len(c.VariantsUpdated); n > 0 {
		variantParts = append(variantParts, fmt.Sprintf("%d updated", n))
	}
	if n := len(c.VariantsRemoved); n > 0 {
		variantParts = append(variantParts, fmt.Sprintf("%d removed", n))
	}
	if len(variantParts) > 0 {
		parts = append(parts, fmt.Sprintf("Variants: %s", strings.Join(variantParts, ", ")))
	}

	return fmt.Sprintf("Changeset %s: %s (Total: %d changes)", c.EventID, strings.Join(parts, "; "), c.Summary.TotalChanges)
}

// Print writes a detailed, human-readable view of the changeset.
func (c *Changeset) Print(w io.Writer) {
	fmt.Fprintln(w, c.String())
	if c.IsEmpty() {
		return
	}
	fmt.Fprintln(w, strings.Repeat("─", 60))

	if len(c.Event) > 0 {
		fmt.Fprintf(w, "\n🔄 Event %s:\n", c.EventID)
		for _, change := range c.Event {
			fmt.Fprintf(w, "    - %s: %s → %s\n", change.Path, display(change.OldValue), display(change.NewValue))
		}
	}

	if len(c.VariantsAdded) > 0 {
		fmt.Fprintf(w, "\n➕ Added Variants (%d):\n", len(c.VariantsAdded))
		for _, v := range c.VariantsAdded {
			fmt.Fprintf(w, "  • %s", v.DisplayName())
			if v.Distance != nil {
				fmt.Fprintf(w, " (%s km)", races.Number(races.KindDistance, *v.Distance))
			}
			fmt.Fprintln(w)
		}
	}

	if len(c.VariantsUpdated) > 0 {
		fmt.Fprintf(w, "\n🔄 Updated Variants (%d):\n", len(c.VariantsUpdated))
		for _, update := range c.VariantsUpdated {
			fmt.Fprintf(w, "  • %s:\n", update.Name)
			for _, change := range update.Changes {
				fmt.Fprintf(w, "    - %s: %s → %s\n", change.Path, display(change.OldValue), display(change.NewValue))
			}
		}
	}

	if len(c.VariantsRemoved) > 0 {
		fmt.Fprintf(w, "\n⚠️  Removed Variants (%d):\n", len(c.VariantsRemoved))
		for _, v := range c.VariantsRemoved {
			fmt.Fprintf(w, "  • %s\n", v.DisplayName())
		}
	}
}

func display(s string) string {
	if s == "" {
		return "∅"
	}
	return s
}
