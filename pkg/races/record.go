package races

// Record is one stored event with its ordered variants.
type Record struct {
	Event    Event     `json:"event" yaml:"event"`
	Variants []Variant `json:"variants" yaml:"variants"`
}

// NewRecord creates an empty record for a first sighting.
func NewRecord(externalID string) *Record {
	return &Record{Event: Event{ExternalID: externalID}}
}

// Clone returns a deep copy.
func (r *Record) Clone() *Record {
	if r == nil {
		return nil
	}
	out := &Record{Event: r.Event.Clone()}
	if r.Variants != nil {
		out.Variants = make([]Variant, len(r.Variants))
		for i := range r.Variants {
			out.Variants[i] = r.Variants[i].Clone()
		}
	}
	return out
}

// VariantNames returns variant names in persisted order.
func (r *Record) VariantNames() []string {
	names := make([]string, len(r.Variants))
	for i := range r.Variants {
		names[i] = r.Variants[i].DisplayName()
	}
	return names
}

// VariantByID returns the variant with the given ID, or nil.
func (r *Record) VariantByID(id string) *Variant {
	for i := range r.Variants {
		if r.Variants[i].ID == id {
			return &r.Variants[i]
		}
	}
	return nil
}
