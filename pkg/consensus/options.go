package consensus

// Option configures a Resolver.
type Option func(*resolver)

// WithTolerance sets the relative agreement tolerance. Non-positive values
// are ignored.
func WithTolerance(tol float64) Option {
	return func(r *resolver) {
		if tol > 0 {
			r.tolerance = tol
		}
	}
}

// WithBounds replaces the sanity bounds.
func WithBounds(b Bounds) Option {
	return func(r *resolver) {
		if b != nil {
			r.bounds = b
		}
	}
}

// WithBound overrides the range of one field.
func WithBound(field string, rng Range) Option {
	return func(r *resolver) {
		merged := make(Bounds, len(r.bounds)+1)
		for k, v := range r.bounds {
			merged[k] = v
		}
		merged[field] = rng
		r.bounds = merged
	}
}
