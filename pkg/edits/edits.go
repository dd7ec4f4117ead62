// Package edits is the manual-edit entry point. Every field it writes is
// added to the owner's provenance set, which protects it from automated
// passes from then on.
package edits

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/agentstation/utc"

	"github.com/agentstation/racesync/internal/matcher"
	"github.com/agentstation/racesync/internal/utils/ptr"
	"github.com/agentstation/racesync/pkg/errors"
	"github.com/agentstation/racesync/pkg/logging"
	"github.com/agentstation/racesync/pkg/normalize"
	"github.com/agentstation/racesync/pkg/provenance"
	"github.com/agentstation/racesync/pkg/races"
	"github.com/agentstation/racesync/pkg/store"
)

// ManualConfidence is the confidence recorded for manually written fields.
const ManualConfidence = 1.0

// Edit is one human-supplied field value. An empty Variant targets the event.
type Edit struct {
	EventID string `json:"event_id" yaml:"event_id"`
	Variant string `json:"variant,omitempty" yaml:"variant,omitempty"`
	Field   string `json:"field" yaml:"field"`
	Value   string `json:"value" yaml:"value"`
}

// Scope returns the provenance scope the edit writes to.
func (e Edit) Scope() provenance.Scope {
	if strings.TrimSpace(e.Variant) == "" {
		return provenance.ScopeEvent
	}
	return provenance.ScopeVariant
}

// String renders the edit as event[/variant].field=value.
func (e Edit) String() string {
	if e.Scope() == provenance.ScopeVariant {
		return fmt.Sprintf("%s/%s.%s=%s", e.EventID, e.Variant, e.Field, e.Value)
	}
	return fmt.Sprintf("%s.%s=%s", e.EventID, e.Field, e.Value)
}

// Rejection is an edit that was not applied.
type Rejection struct {
	Edit Edit
	Err  error
}

type rejectionView struct {
	Edit   Edit   `json:"edit" yaml:"edit"`
	Reason string `json:"reason" yaml:"reason"`
}

func (r Rejection) view() rejectionView {
	v := rejectionView{Edit: r.Edit}
	if r.Err != nil {
		v.Reason = r.Err.Error()
	}
	return v
}

// MarshalJSON renders the error as its message.
func (r Rejection) MarshalJSON() ([]byte, error) {
	return json.Marshal(r.view())
}

// MarshalYAML renders the error as its message.
func (r Rejection) MarshalYAML() (any, error) {
	return r.view(), nil
}

// Report summarizes an Apply call.
type Report struct {
	// Applied edits changed a value.
	Applied []Edit `json:"applied,omitempty" yaml:"applied,omitempty"`
	// Unchanged edits matched the stored value. They still protect the field.
	Unchanged []Edit      `json:"unchanged,omitempty" yaml:"unchanged,omitempty"`
	Rejected  []Rejection `json:"rejected,omitempty" yaml:"rejected,omitempty"`
	// Saved lists the event IDs written, in first-seen order.
	Saved []string `json:"saved,omitempty" yaml:"saved,omitempty"`
	// Created counts variants created because no stored variant matched.
	Created int `json:"created" yaml:"created"`
}

// Total returns the number of edits processed.
func (r *Report) Total() int {
	return len(r.Applied) + len(r.Unchanged) + len(r.Rejected)
}

// String returns a one-line summary.
func (r *Report) String() string {
	return fmt.Sprintf("%d applied, %d unchanged, %d rejected, %d events saved",
		len(r.Applied), len(r.Unchanged), len(r.Rejected), len(r.Saved))
}

type options struct {
	matcher matcher.Matcher
}

// Option configures Apply.
type Option func(*options)

// WithMatcher sets the matcher used to resolve variant names.
func WithMatcher(m matcher.Matcher) Option {
	return func(o *options) {
		if m != nil {
			o.matcher = m
		}
	}
}

// Apply writes edits grouped by event, one Save per event. A missing event
// rejects all of its edits. A variant name that matches no stored variant
// creates a new one. Only a persistence failure stops the call.
func Apply(ctx context.Context, s store.Store, edits []Edit, opts ...Option) (*Report, error) {
	o := &options{matcher: matcher.Default}
	for _, opt := range opts {
		opt(o)
	}

	report := &Report{}
	order, groups := group(edits)

	for _, eventID := range order {
		if err := ctx.Err(); err != nil {
			return report, fmt.Errorf("%w: %w", errors.ErrCanceled, err)
		}
		if err := applyEvent(ctx, s, o, eventID, groups[eventID], report); err != nil {
			return report, err
		}
	}
	return report, nil
}

func group(edits []Edit) ([]string, map[string][]Edit) {
	var order []string
	groups := make(map[string][]Edit)
	for _, e := range edits {
		e.EventID = strings.TrimSpace(e.EventID)
		e.Variant = strings.TrimSpace(e.Variant)
		e.Field = strings.ToLower(strings.TrimSpace(e.Field))
		if _, ok := groups[e.EventID]; !ok {
			order = append(order, e.EventID)
		}
		groups[e.EventID] = append(groups[e.EventID], e)
	}
	return order, groups
}

func applyEvent(ctx context.Context, s store.Store, o *options, eventID string, edits []Edit, report *Report) error {
	logger := logging.FromContext(logging.WithOperation(logging.WithEvent(ctx, eventID), "manual_edit"))

	reject := func(e Edit, err error) {
		report.Rejected = append(report.Rejected, Rejection{Edit: e, Err: err})
		logger.Warn().Err(err).Str("edit", e.String()).Msg("edit rejected")
	}

	if eventID == "" {
		for _, e := range edits {
			reject(e, errors.NewValidationError("event_id", "", "cannot be empty"))
		}
		return nil
	}

	rec, err := s.Load(ctx, eventID)
	if errors.IsNotFound(err) {
		logger.Warn().Int("edits", len(edits)).Msg("event not found, skipping edits")
		for _, e := range edits {
			report.Rejected = append(report.Rejected, Rejection{Edit: e, Err: errors.NewNotFoundError("event", eventID)})
		}
		return nil
	}
	if err != nil {
		return errors.NewPersistenceError("load", eventID, err)
	}

	ps := provenance.NewStore()
	ps.Load(provenance.ScopeEvent, rec.Event.ExternalID, rec.Event.ManualFields)
	for i := range rec.Variants {
		ps.Load(provenance.ScopeVariant, rec.Variants[i].ID, rec.Variants[i].ManualFields)
	}

	dirty := false
	for _, e := range edits {
		changed, marked, err := applyOne(rec, ps, o, e, report)
		if err != nil {
			reject(e, err)
			continue
		}
		if changed {
			report.Applied = append(report.Applied, e)
		} else {
			report.Unchanged = append(report.Unchanged, e)
		}
		dirty = dirty || changed || marked
	}

	if !dirty {
		return nil
	}

	rec.Event.ManualFields = ps.Fields(provenance.ScopeEvent, rec.Event.ExternalID)
	for i := range rec.Variants {
		rec.Variants[i].ManualFields = ps.Fields(provenance.ScopeVariant, rec.Variants[i].ID)
		rec.Variants[i].RecomputeUnitPrice()
	}
	rec.Event.ManualUpdatedAt = ptr.To(utc.Now())

	if err := s.Save(ctx, rec); err != nil {
		return errors.NewPersistenceError("save", eventID, err)
	}
	report.Saved = append(report.Saved, eventID)
	logger.Info().Int("edits", len(edits)).Msg("manual edits saved")
	return nil
}

// applyOne writes a single edit and marks the field manual. It reports
// whether the value changed and whether the provenance set grew.
func applyOne(rec *races.Record, ps provenance.Store, o *options, e Edit, report *Report) (changed, marked bool, err error) {
	if e.Field == races.FieldUnitPrice {
		return false, false, &errors.ValidationError{Field: e.Field, Value: e.Value, Message: errors.ErrDerivedField.Error()}
	}

	scope := e.Scope()
	var field races.Field
	var ok bool
	if scope == provenance.ScopeEvent {
		field, ok = races.EventField(e.Field)
	} else {
		field, ok = races.VariantField(e.Field)
	}
	if !ok {
		return false, false, errors.NewValidationError(e.Field, e.Value, fmt.Sprintf("unknown %s field", scope))
	}

	if normalize.IsNull(e.Value) {
		return false, false, errors.NewValidationError(e.Field, e.Value, "empty value")
	}
	value, ok := normalize.Normalize(field.Kind, e.Value)
	if !ok {
		return false, false, errors.NewParseError(e.Field, "manual", field.Kind.String(), e.Value)
	}

	var (
		target interface {
			Get(string) (races.Value, bool)
			Set(string, races.Value) error
		}
		ownerID    string
		inferred   *provenance.Set
		confidence *map[string]float64
	)
	if scope == provenance.ScopeEvent {
		target, ownerID = &rec.Event, rec.Event.ExternalID
		inferred, confidence = &rec.Event.Inferred, &rec.Event.Confidence
	} else {
		v := resolveVariant(rec, o.matcher, e.Variant, report)
		target, ownerID = v, v.ID
		inferred, confidence = &v.Inferred, &v.Confidence
	}

	current, present := target.Get(field.Name)
	if !present || !current.Equal(value) {
		if err := target.Set(field.Name, value); err != nil {
			return false, false, err
		}
		changed = true
	}
	marked = len(ps.MarkManual(scope, ownerID, field.Name)) > 0

	if inferred.Remove(field.Name) {
		changed = true
	}
	if *confidence == nil {
		*confidence = make(map[string]float64)
	}
	(*confidence)[field.Name] = ManualConfidence
	return changed, marked, nil
}

// resolveVariant finds the stored variant for name, creating it when
// nothing matches.
func resolveVariant(rec *races.Record, m matcher.Matcher, name string, report *Report) *races.Variant {
	if res := m.Best(name, rec.VariantNames()); res.Index >= 0 {
		return &rec.Variants[res.Index]
	}
	rec.Variants = append(rec.Variants, races.Variant{Name: ptr.String(normalize.Clean(name))})
	store.AssignIDs(rec)
	report.Created++
	return &rec.Variants[len(rec.Variants)-1]
}
