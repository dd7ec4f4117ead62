package races

import (
	"github.com/agentstation/racesync/internal/utils/ptr"
	"github.com/agentstation/racesync/pkg/errors"
	"github.com/agentstation/racesync/pkg/provenance"
)

// Variant field names. FieldName is shared with events.
const (
	FieldDistance           = "distance"
	FieldFee                = "fee"
	FieldEarlyFee           = "early_fee"
	FieldQuota              = "total_quota"
	FieldRegistered         = "registered_count"
	FieldStartTime          = "start_time"
	FieldCutoffTime         = "cutoff_time"
	FieldRegistrationStatus = "registration_status"
	FieldRegistrationURL    = "registration_url"
	FieldUnitPrice          = "price_per_km"
)

// VariantFields lists every sourced variant field. The derived unit price
// is not listed: it is never accepted from sources or edits.
var VariantFields = []Field{
	{FieldName, KindText},
	{FieldDistance, KindDistance},
	{FieldFee, KindFee},
	{FieldEarlyFee, KindFee},
	{FieldQuota, KindCount},
	{FieldRegistered, KindCount},
	{FieldStartTime, KindText},
	{FieldCutoffTime, KindText},
	{FieldRegistrationStatus, KindRegistrationStatus},
	{FieldRegistrationURL, KindText},
}

// VariantField looks up a variant field by name.
func VariantField(name string) (Field, bool) {
	return lookup(VariantFields, name)
}

// Variant is one distance category of an event.
type Variant struct {
	// ID is event scoped and assigned on first persistence.
	ID string `json:"id,omitempty" yaml:"id,omitempty"`

	Name               *string             `json:"name,omitempty" yaml:"name,omitempty"`
	Distance           *float64            `json:"distance,omitempty" yaml:"distance,omitempty"` // kilometers
	Fee                *float64            `json:"fee,omitempty" yaml:"fee,omitempty"`
	EarlyFee           *float64            `json:"early_fee,omitempty" yaml:"early_fee,omitempty"`
	Quota              *int                `json:"total_quota,omitempty" yaml:"total_quota,omitempty"`
	Registered         *int                `json:"registered_count,omitempty" yaml:"registered_count,omitempty"`
	StartTime          *string             `json:"start_time,omitempty" yaml:"start_time,omitempty"`
	CutoffTime         *string             `json:"cutoff_time,omitempty" yaml:"cutoff_time,omitempty"`
	UnitPrice          *float64            `json:"price_per_km,omitempty" yaml:"price_per_km,omitempty"`
	RegistrationStatus *RegistrationStatus `json:"registration_status,omitempty" yaml:"registration_status,omitempty"`
	RegistrationURL    *string             `json:"registration_url,omitempty" yaml:"registration_url,omitempty"`

	ManualFields provenance.Set     `json:"manually_modified_fields,omitempty" yaml:"manually_modified_fields,omitempty"`
	Inferred     provenance.Set     `json:"inferred_fields,omitempty" yaml:"inferred_fields,omitempty"`
	Confidence   map[string]float64 `json:"confidence,omitempty" yaml:"confidence,omitempty"`
}

// DisplayName returns the variant name or an empty string.
func (v *Variant) DisplayName() string {
	return ptr.Deref(v.Name)
}

// Get returns the current value of field, or false when it is unset.
// The derived unit price can be read but not written.
func (v *Variant) Get(field string) (Value, bool) {
	switch field {
	case FieldDistance:
		return numberOf(KindDistance, v.Distance)
	case FieldFee:
		return numberOf(KindFee, v.Fee)
	case FieldEarlyFee:
		return numberOf(KindFee, v.EarlyFee)
	case FieldUnitPrice:
		return numberOf(KindFee, v.UnitPrice)
	case FieldQuota:
		return countOf(v.Quota)
	case FieldRegistered:
		return countOf(v.Registered)
	case FieldRegistrationStatus:
		if v.RegistrationStatus == nil {
			return Value{}, false
		}
		return Text(KindRegistrationStatus, string(*v.RegistrationStatus)), true
	}
	if ref := v.textRef(field); ref != nil && *ref != nil && **ref != "" {
		return Text(KindText, **ref), true
	}
	return Value{}, false
}

// Set writes value into field and recomputes the unit price when an
// operand changes.
func (v *Variant) Set(field string, val Value) error {
	if field == FieldUnitPrice {
		return &errors.ValidationError{Field: field, Value: val.String(), Message: errors.ErrDerivedField.Error()}
	}
	if _, ok := VariantField(field); !ok {
		return errors.NewValidationError(field, val.String(), "unknown variant field")
	}
	switch field {
	case FieldDistance:
		v.Distance = ptr.Float64(val.Num)
		v.RecomputeUnitPrice()
	case FieldFee:
		v.Fee = ptr.Float64(val.Num)
		v.RecomputeUnitPrice()
	case FieldEarlyFee:
		v.EarlyFee = ptr.Float64(val.Num)
	case FieldQuota:
		v.Quota = ptr.Int(val.Int())
	case FieldRegistered:
		v.Registered = ptr.Int(val.Int())
	case FieldRegistrationStatus:
		v.RegistrationStatus = ptr.To(RegistrationStatus(val.Text))
	default:
		*v.textRef(field) = ptr.String(val.Text)
	}
	return nil
}

// RecomputeUnitPrice derives the unit price from fee and distance.
func (v *Variant) RecomputeUnitPrice() {
	v.UnitPrice = UnitPrice(v.Fee, v.Distance)
}

func (v *Variant) textRef(field string) **string {
	switch field {
	case FieldName:
		return &v.Name
	case FieldStartTime:
		return &v.StartTime
	case FieldCutoffTime:
		return &v.CutoffTime
	case FieldRegistrationURL:
		return &v.RegistrationURL
	}
	return nil
}

// Clone returns a deep copy.
func (v Variant) Clone() Variant {
	out := v
	out.Name = ptr.Clone(v.Name)
	out.Distance = ptr.Clone(v.Distance)
	out.Fee = ptr.Clone(v.Fee)
	out.EarlyFee = ptr.Clone(v.EarlyFee)
	out.Quota = ptr.Clone(v.Quota)
	out.Registered = ptr.Clone(v.Registered)
	out.StartTime = ptr.Clone(v.StartTime)
	out.CutoffTime = ptr.Clone(v.CutoffTime)
	out.UnitPrice = ptr.Clone(v.UnitPrice)
	out.RegistrationStatus = ptr.Clone(v.RegistrationStatus)
	out.RegistrationURL = ptr.Clone(v.RegistrationURL)
	out.ManualFields = v.ManualFields.Clone()
	out.Inferred = v.Inferred.Clone()
	out.Confidence = cloneConfidence(v.Confidence)
	return out
}

func numberOf(kind Kind, f *float64) (Value, bool) {
	if f == nil {
		return Value{}, false
	}
	return Number(kind, *f), true
}

func countOf(i *int) (Value, bool) {
	if i == nil {
		return Value{}, false
	}
	return Number(KindCount, float64(*i)), true
}
