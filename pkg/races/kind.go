package races

// Kind is the semantic kind of a field. It selects the normalizer,
// the consensus policy and the sanity bounds applied to a value.
type Kind int

// Field kinds.
const (
	KindText Kind = iota
	KindDate
	KindLocation
	KindStatus
	KindRegistrationStatus
	KindLevel
	KindDistance
	KindFee
	KindCount
)

var kindNames = map[Kind]string{
	KindText:               "text",
	KindDate:               "date",
	KindLocation:           "location",
	KindStatus:             "status",
	KindRegistrationStatus: "registration_status",
	KindLevel:              "level",
	KindDistance:           "distance",
	KindFee:                "fee",
	KindCount:              "count",
}

// String returns the kind name.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return "unknown"
}

// Numeric reports whether values of this kind are resolved statistically.
func (k Kind) Numeric() bool {
	return k == KindDistance || k == KindFee || k == KindCount
}

// Status is the lifecycle state of an event.
type Status string

// Event statuses.
const (
	StatusOpen      Status = "open"
	StatusClosed    Status = "closed"
	StatusEnded     Status = "ended"
	StatusCancelled Status = "cancelled"
	StatusUnknown   Status = "unknown"
)

// RegistrationStatus is the registration state of a variant.
type RegistrationStatus string

// Registration statuses.
const (
	RegistrationOpen    RegistrationStatus = "open"
	RegistrationClosed  RegistrationStatus = "closed"
	RegistrationUnknown RegistrationStatus = "unknown"
)
