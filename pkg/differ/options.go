package differ

// Option is a functional option for configuring Differ
type Option func(*differ)

// WithIgnoredFields sets fields to ignore during comparison
func WithIgnoredFields(fields ...string) Option {
	return func(d *differ) {
		for _, field := range fields {
			d.ignoreFields[field] = true
		}
	}
}

// WithMetadata enables comparison of confidence scores and the inferred and
// manual field sets in addition to values
func WithMetadata(enabled bool) Option {
	return func(d *differ) {
		d.metadata = enabled
	}
}

// WithConfidenceEpsilon sets the smallest confidence delta reported as a change
func WithConfidenceEpsilon(eps float64) Option {
	return func(d *differ) {
		if eps >= 0 {
			d.epsilon = eps
		}
	}
}
