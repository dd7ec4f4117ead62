// Package races defines the event and variant records that racesync
// reconciles, the candidate records sources produce, and the field table
// shared by provenance sets, edits and observations.
package races

import (
	"github.com/agentstation/utc"

	"github.com/agentstation/racesync/internal/utils/ptr"
	"github.com/agentstation/racesync/pkg/errors"
	"github.com/agentstation/racesync/pkg/provenance"
)

// Event field names.
const (
	FieldName                 = "name"
	FieldEventDate            = "event_date"
	FieldEventType            = "event_type"
	FieldEventLevel           = "event_level"
	FieldLocation             = "location"
	FieldDetailedAddress      = "detailed_address"
	FieldOrganizer            = "organizer"
	FieldContactPhone         = "contact_phone"
	FieldContactEmail         = "contact_email"
	FieldContactPerson        = "contact_person"
	FieldDescription          = "description"
	FieldEventURL             = "event_url"
	FieldRegistrationDeadline = "registration_deadline"
	FieldTotalScale           = "total_scale"
	FieldStatus               = "status"
)

// Field pairs a field name with its kind.
type Field struct {
	Name string
	Kind Kind
}

// EventFields lists every reconciled event field in display order.
var EventFields = []Field{
	{FieldName, KindText},
	{FieldEventDate, KindDate},
	{FieldEventType, KindText},
	{FieldEventLevel, KindLevel},
	{FieldLocation, KindLocation},
	{FieldDetailedAddress, KindText},
	{FieldOrganizer, KindText},
	{FieldContactPhone, KindText},
	{FieldContactEmail, KindText},
	{FieldContactPerson, KindText},
	{FieldDescription, KindText},
	{FieldEventURL, KindText},
	{FieldRegistrationDeadline, KindDate},
	{FieldTotalScale, KindCount},
	{FieldStatus, KindStatus},
}

// EventField looks up an event field by name.
func EventField(name string) (Field, bool) {
	return lookup(EventFields, name)
}

func lookup(fields []Field, name string) (Field, bool) {
	for _, f := range fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// Event is one real-world race occurrence.
type Event struct {
	// ExternalID is the natural key. It never changes once assigned.
	ExternalID string `json:"external_id" yaml:"external_id"`

	Name                 *string   `json:"name,omitempty" yaml:"name,omitempty"`
	Date                 *string   `json:"event_date,omitempty" yaml:"event_date,omitempty"` // YYYY-MM-DD
	Type                 *string   `json:"event_type,omitempty" yaml:"event_type,omitempty"`
	Level                *string   `json:"event_level,omitempty" yaml:"event_level,omitempty"`
	Location             *Location `json:"location,omitempty" yaml:"location,omitempty"`
	DetailedAddress      *string   `json:"detailed_address,omitempty" yaml:"detailed_address,omitempty"`
	Organizer            *string   `json:"organizer,omitempty" yaml:"organizer,omitempty"`
	ContactPhone         *string   `json:"contact_phone,omitempty" yaml:"contact_phone,omitempty"`
	ContactEmail         *string   `json:"contact_email,omitempty" yaml:"contact_email,omitempty"`
	ContactPerson        *string   `json:"contact_person,omitempty" yaml:"contact_person,omitempty"`
	Description          *string   `json:"description,omitempty" yaml:"description,omitempty"`
	URL                  *string   `json:"event_url,omitempty" yaml:"event_url,omitempty"`
	RegistrationDeadline *string   `json:"registration_deadline,omitempty" yaml:"registration_deadline,omitempty"`
	TotalScale           *int      `json:"total_scale,omitempty" yaml:"total_scale,omitempty"`
	Status               *Status   `json:"status,omitempty" yaml:"status,omitempty"`

	// Provenance and bookkeeping
	ManualFields    provenance.Set     `json:"manually_modified_fields,omitempty" yaml:"manually_modified_fields,omitempty"`
	Inferred        provenance.Set     `json:"inferred_fields,omitempty" yaml:"inferred_fields,omitempty"`
	Confidence      map[string]float64 `json:"confidence,omitempty" yaml:"confidence,omitempty"`
	CreatedAt       utc.Time           `json:"created_at" yaml:"created_at"`
	UpdatedAt       utc.Time           `json:"updated_at" yaml:"updated_at"`
	ManualUpdatedAt *utc.Time          `json:"manual_updated_at,omitempty" yaml:"manual_updated_at,omitempty"`
}

// Get returns the current value of field, or false when it is unset.
func (e *Event) Get(field string) (Value, bool) {
	f, ok := EventField(field)
	if !ok {
		return Value{}, false
	}
	switch field {
	case FieldLocation:
		if e.Location == nil {
			return Value{}, false
		}
		return Place(*e.Location), true
	case FieldTotalScale:
		if e.TotalScale == nil {
			return Value{}, false
		}
		return Number(KindCount, float64(*e.TotalScale)), true
	case FieldStatus:
		if e.Status == nil {
			return Value{}, false
		}
		return Text(KindStatus, string(*e.Status)), true
	}
	s := e.text(field)
	if s == nil || *s == "" {
		return Value{}, false
	}
	return Text(f.Kind, *s), true
}

// Set writes value into field.
func (e *Event) Set(field string, v Value) error {
	if _, ok := EventField(field); !ok {
		return errors.NewValidationError(field, v.String(), "unknown event field")
	}
	switch field {
	case FieldLocation:
		e.Location = ptr.To(v.Location)
	case FieldTotalScale:
		e.TotalScale = ptr.Int(v.Int())
	case FieldStatus:
		e.Status = ptr.To(Status(v.Text))
	default:
		*e.textRef(field) = ptr.String(v.Text)
	}
	return nil
}

func (e *Event) text(field string) *string {
	if ref := e.textRef(field); ref != nil {
		return *ref
	}
	return nil
}

func (e *Event) textRef(field string) **string {
	switch field {
	case FieldName:
		return &e.Name
	case FieldEventDate:
		return &e.Date
	case FieldEventType:
		return &e.Type
	case FieldEventLevel:
		return &e.Level
	case FieldDetailedAddress:
		return &e.DetailedAddress
	case FieldOrganizer:
		return &e.Organizer
	case FieldContactPhone:
		return &e.ContactPhone
	case FieldContactEmail:
		return &e.ContactEmail
	case FieldContactPerson:
		return &e.ContactPerson
	case FieldDescription:
		return &e.Description
	case FieldEventURL:
		return &e.URL
	case FieldRegistrationDeadline:
		return &e.RegistrationDeadline
	}
	return nil
}

// Clone returns a deep copy.
func (e Event) Clone() Event {
	out := e
	for _, f := range EventFields {
		if ref := out.textRef(f.Name); ref != nil {
			*ref = ptr.Clone(*ref)
		}
	}
	out.Location = ptr.Clone(e.Location)
	out.TotalScale = ptr.Clone(e.TotalScale)
	out.Status = ptr.Clone(e.Status)
	out.ManualFields = e.ManualFields.Clone()
	out.Inferred = e.Inferred.Clone()
	out.Confidence = cloneConfidence(e.Confidence)
	out.ManualUpdatedAt = ptr.Clone(e.ManualUpdatedAt)
	return out
}

func cloneConfidence(m map[string]float64) map[string]float64 {
	if m == nil {
		return nil
	}
	out := make(map[string]float64, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
