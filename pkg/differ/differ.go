package differ

import (
	"math"
	"sort"
	"strconv"

	"github.com/agentstation/racesync/pkg/provenance"
	"github.com/agentstation/racesync/pkg/races"
)

// Differ handles change detection between records.
type Differ interface {
	// Records compares a stored record with its updated version. A nil
	// existing record means the event is new.
	Records(existing, updated *races.Record) *Changeset

	// Events compares the event-level fields.
	Events(existing, updated *races.Event) []FieldChange

	// Variants compares two variants of the same identity.
	Variants(existing, updated *races.Variant) []FieldChange
}

// differ is the default implementation of Differ.
type differ struct {
	ignoreFields map[string]bool
	metadata     bool
	epsilon      float64
}

// New creates a Differ with default settings.
func New(opts ...Option) Differ {
	d := &differ{
		ignoreFields: make(map[string]bool),
		epsilon:      1e-9,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Records compares two records.
func (diff *differ) Records(existing, updated *races.Record) *Changeset {
	cs := &Changeset{}
	if updated == nil {
		return cs
	}
	cs.EventID = updated.Event.ExternalID

	if existing == nil {
		cs.Created = true
		existing = &races.Record{Event: races.Event{ExternalID: updated.Event.ExternalID}}
	}

	cs.Event = diff.Events(&existing.Event, &updated.Event)

	existingByID := make(map[string]*races.Variant, len(existing.Variants))
	for i := range existing.Variants {
		if id := existing.Variants[i].ID; id != "" {
			existingByID[id] = &existing.Variants[i]
		}
	}

	seen := make(map[string]bool, len(updated.Variants))
	for i := range updated.Variants {
		v := &updated.Variants[i]
		old, ok := existingByID[v.ID]
		if v.ID == "" || !ok {
			cs.VariantsAdded = append(cs.VariantsAdded, v.Clone())
			continue
		}
		seen[v.ID] = true
		if changes := diff.Variants(old, v); len(changes) > 0 {
			cs.VariantsUpdated = append(cs.VariantsUpdated, VariantUpdate{
				ID:      v.ID,
				Name:    v.DisplayName(),
				Changes: changes,
			})
		}
	}

	for i := range existing.Variants {
		v := &existing.Variants[i]
		if v.ID != "" && !seen[v.ID] {
			cs.VariantsRemoved = append(cs.VariantsRemoved, v.Clone())
		}
	}

	sort.SliceStable(cs.VariantsUpdated, func(i, j int) bool {
		return cs.VariantsUpdated[i].Name < cs.VariantsUpdated[j].Name
	})

	cs.Summary = calculateSummary(cs)
	return cs
}

// Events compares event fields in table order.
func (diff *differ) Events(existing, updated *races.Event) []FieldChange {
	owner := updated.ExternalID
	var changes []FieldChange
	for _, f := range races.EventFields {
		if diff.ignoreFields[f.Name] {
			continue
		}
		oldV, oldOK := existing.Get(f.Name)
		newV, newOK := updated.Get(f.Name)
		if c, changed := compare(provenance.ScopeEvent, owner, f.Name, oldV, oldOK, newV, newOK); changed {
			changes = append(changes, c)
		}
	}
	if diff.metadata {
		changes = append(changes, diff.meta(provenance.ScopeEvent, owner,
			existing.Confidence, updated.Confidence,
			existing.Inferred, updated.Inferred,
			existing.ManualFields, updated.ManualFields)...)
	}
	return changes
}

// Variants compares variant fields in table order, including the unit price.
func (diff *differ) Variants(existing, updated *races.Variant) []FieldChange {
	owner := updated.DisplayName()
	fields := append(append([]races.Field(nil), races.VariantFields...), races.Field{Name: races.FieldUnitPrice, Kind: races.KindFee})

	var changes []FieldChange
	for _, f := range fields {
		if diff.ignoreFields[f.Name] {
			continue
		}
		oldV, oldOK := existing.Get(f.Name)
		newV, newOK := updated.Get(f.Name)
		if c, changed := compare(provenance.ScopeVariant, owner, f.Name, oldV, oldOK, newV, newOK); changed {
			changes = append(changes, c)
		}
	}
	if diff.metadata {
		changes = append(changes, diff.meta(provenance.ScopeVariant, owner,
			existing.Confidence, updated.Confidence,
			existing.Inferred, updated.Inferred,
			existing.ManualFields, updated.ManualFields)...)
	}
	return changes
}

func compare(scope provenance.Scope, owner, field string, oldV races.Value, oldOK bool, newV races.Value, newOK bool) (FieldChange, bool) {
	c := FieldChange{Scope: scope, Owner: owner, Path: field}
	switch {
	case !oldOK && !newOK:
		return c, false
	case !oldOK:
		c.Type = ChangeTypeAdd
		c.NewValue = newV.String()
	case !newOK:
		c.Type = ChangeTypeRemove
		c.OldValue = oldV.String()
	case oldV.Equal(newV):
		return c, false
	default:
		c.Type = ChangeTypeUpdate
		c.OldValue = oldV.String()
		c.NewValue = newV.String()
	}
	return c, true
}

func (diff *differ) meta(scope provenance.Scope, owner string,
	oldConf, newConf map[string]float64,
	oldInferred, newInferred provenance.Set,
	oldManual, newManual provenance.Set,
) []FieldChange {
	var changes []FieldChange

	keys := make([]string, 0, len(newConf)+len(oldConf))
	for k := range oldConf {
		keys = append(keys, k)
	}
	for k := range newConf {
		if _, ok := oldConf[k]; !ok {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	for _, k := range keys {
		if diff.ignoreFields[k] {
			continue
		}
		o, hadOld := oldConf[k]
		n, hasNew := newConf[k]
		if hadOld == hasNew && math.Abs(o-n) <= diff.epsilon {
			continue
		}
		c := FieldChange{Scope: scope, Owner: owner, Path: "confidence." + k, Type: ChangeTypeUpdate}
		if hadOld {
			c.OldValue = strconv.FormatFloat(o, 'f', 2, 64)
		} else {
			c.Type = ChangeTypeAdd
		}
		if hasNew {
			c.NewValue = strconv.FormatFloat(n, 'f', 2, 64)
		} else {
			c.Type = ChangeTypeRemove
		}
		changes = append(changes, c)
	}

	if !oldInferred.Equal(newInferred) {
		changes = append(changes, FieldChange{Scope: scope, Owner: owner, Path: "inferred",
			OldValue: oldInferred.String(), NewValue: newInferred.String(), Type: ChangeTypeUpdate})
	}
	if !oldManual.Equal(newManual) {
		changes = append(changes, FieldChange{Scope: scope, Owner: owner, Path: "manual",
			OldValue: oldManual.String(), NewValue: newManual.String(), Type: ChangeTypeUpdate})
	}
	return changes
}
