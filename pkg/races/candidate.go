package races

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Raw is an unnormalized scalar as a source reported it.
type Raw struct {
	Text  string
	Valid bool
}

// RawOf wraps any scalar. nil yields an invalid Raw.
func RawOf(v any) Raw {
	switch t := v.(type) {
	case nil:
		return Raw{}
	case Raw:
		return t
	case string:
		return Raw{Text: t, Valid: true}
	default:
		return Raw{Text: fmt.Sprint(t), Valid: true}
	}
}

// IsZero reports whether the source said nothing for this field.
func (r Raw) IsZero() bool {
	return !r.Valid || strings.TrimSpace(r.Text) == ""
}

// String returns the raw text.
func (r Raw) String() string { return r.Text }

// UnmarshalYAML accepts any scalar node.
func (r *Raw) UnmarshalYAML(unmarshal func(any) error) error {
	var v any
	if err := unmarshal(&v); err != nil {
		return err
	}
	*r = RawOf(v)
	return nil
}

// MarshalYAML writes the raw text back as a string.
func (r Raw) MarshalYAML() (any, error) {
	if !r.Valid {
		return nil, nil
	}
	return r.Text, nil
}

// UnmarshalJSON accepts any JSON scalar.
func (r *Raw) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	*r = RawOf(v)
	return nil
}

// MarshalJSON writes the raw text as a JSON string, or null.
func (r Raw) MarshalJSON() ([]byte, error) {
	if !r.Valid {
		return []byte("null"), nil
	}
	return json.Marshal(r.Text)
}

// RawField is one non-empty field of a candidate.
type RawField struct {
	Field string
	Raw   Raw
}

// Candidate is one source's view of one event.
type Candidate struct {
	Source   string             `json:"source" yaml:"source"`
	EventID  string             `json:"event_id" yaml:"event_id"`
	Event    CandidateEvent     `json:"event" yaml:"event"`
	Variants []CandidateVariant `json:"variants,omitempty" yaml:"variants,omitempty"`
}

// CandidateEvent carries raw event fields.
type CandidateEvent struct {
	Name                 Raw `json:"name" yaml:"name,omitempty"`
	Date                 Raw `json:"event_date" yaml:"event_date,omitempty"`
	Type                 Raw `json:"event_type" yaml:"event_type,omitempty"`
	Level                Raw `json:"event_level" yaml:"event_level,omitempty"`
	Location             Raw `json:"location" yaml:"location,omitempty"`
	DetailedAddress      Raw `json:"detailed_address" yaml:"detailed_address,omitempty"`
	Organizer            Raw `json:"organizer" yaml:"organizer,omitempty"`
	ContactPhone         Raw `json:"contact_phone" yaml:"contact_phone,omitempty"`
	ContactEmail         Raw `json:"contact_email" yaml:"contact_email,omitempty"`
	ContactPerson        Raw `json:"contact_person" yaml:"contact_person,omitempty"`
	Description          Raw `json:"description" yaml:"description,omitempty"`
	URL                  Raw `json:"event_url" yaml:"event_url,omitempty"`
	RegistrationDeadline Raw `json:"registration_deadline" yaml:"registration_deadline,omitempty"`
	TotalScale           Raw `json:"total_scale" yaml:"total_scale,omitempty"`
	Status               Raw `json:"status" yaml:"status,omitempty"`
}

// Fields returns the fields the source filled in, in EventFields order.
func (c CandidateEvent) Fields() []RawField {
	return nonEmpty([]RawField{
		{FieldName, c.Name},
		{FieldEventDate, c.Date},
		{FieldEventType, c.Type},
		{FieldEventLevel, c.Level},
		{FieldLocation, c.Location},
		{FieldDetailedAddress, c.DetailedAddress},
		{FieldOrganizer, c.Organizer},
		{FieldContactPhone, c.ContactPhone},
		{FieldContactEmail, c.ContactEmail},
		{FieldContactPerson, c.ContactPerson},
		{FieldDescription, c.Description},
		{FieldEventURL, c.URL},
		{FieldRegistrationDeadline, c.RegistrationDeadline},
		{FieldTotalScale, c.TotalScale},
		{FieldStatus, c.Status},
	})
}

// CandidateVariant carries raw variant fields. It has no unit price field
// since the unit price is always derived.
type CandidateVariant struct {
	Name               Raw `json:"name" yaml:"name,omitempty"`
	Distance           Raw `json:"distance" yaml:"distance,omitempty"`
	Fee                Raw `json:"fee" yaml:"fee,omitempty"`
	EarlyFee           Raw `json:"early_fee" yaml:"early_fee,omitempty"`
	Quota              Raw `json:"total_quota" yaml:"total_quota,omitempty"`
	Registered         Raw `json:"registered_count" yaml:"registered_count,omitempty"`
	StartTime          Raw `json:"start_time" yaml:"start_time,omitempty"`
	CutoffTime         Raw `json:"cutoff_time" yaml:"cutoff_time,omitempty"`
	RegistrationStatus Raw `json:"registration_status" yaml:"registration_status,omitempty"`
	RegistrationURL    Raw `json:"registration_url" yaml:"registration_url,omitempty"`
}

// Fields returns the fields the source filled in, in VariantFields order.
func (c CandidateVariant) Fields() []RawField {
	return nonEmpty([]RawField{
		{FieldName, c.Name},
		{FieldDistance, c.Distance},
		{FieldFee, c.Fee},
		{FieldEarlyFee, c.EarlyFee},
		{FieldQuota, c.Quota},
		{FieldRegistered, c.Registered},
		{FieldStartTime, c.StartTime},
		{FieldCutoffTime, c.CutoffTime},
		{FieldRegistrationStatus, c.RegistrationStatus},
		{FieldRegistrationURL, c.RegistrationURL},
	})
}

func nonEmpty(fields []RawField) []RawField {
	out := fields[:0]
	for _, f := range fields {
		if !f.Raw.IsZero() {
			out = append(out, f)
		}
	}
	return out
}
