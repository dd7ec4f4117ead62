package reconciler

import (
	"github.com/agentstation/racesync/internal/matcher"
	"github.com/agentstation/racesync/internal/metrics"
	"github.com/agentstation/racesync/pkg/authority"
	"github.com/agentstation/racesync/pkg/consensus"
	"github.com/agentstation/racesync/pkg/errors"
	"github.com/agentstation/racesync/pkg/inference"
	"github.com/agentstation/racesync/pkg/sources"
	"github.com/agentstation/racesync/pkg/store"
)

// Options configures a reconciler.
type options struct {
	store       store.Store
	authorities authority.Authority
	resolver    consensus.Resolver
	inference   *inference.Engine
	matcher     matcher.Matcher
	metrics     *metrics.Metrics
	collect     []sources.Option
	dryRun      bool
}

func defaultOptions() *options {
	return &options{
		authorities: authority.Default(),
		resolver:    consensus.New(),
		inference:   inference.New(),
		matcher:     matcher.Default,
	}
}

// Option is a function that configures a Reconciler.
type Option func(*options) error

func (options *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(options); err != nil {
			return nil, err
		}
	}
	return options, nil
}

// newOptions returns reconciler options with default values.
func newOptions(opts ...Option) (*options, error) {
	o, err := defaultOptions().apply(opts...)
	if err != nil {
		return nil, err
	}
	if o.store == nil {
		return nil, &errors.ValidationError{
			Field:   "store",
			Message: "a store is required",
		}
	}
	return o, nil
}

// WithStore sets the persistence collaborator.
func WithStore(s store.Store) Option {
	return func(o *options) error {
		if s == nil {
			return &errors.ValidationError{
				Field:   "store",
				Message: "cannot be nil",
			}
		}
		o.store = s
		return nil
	}
}

// WithAuthorities sets the source weight table.
func WithAuthorities(authorities authority.Authority) Option {
	return func(o *options) error {
		if authorities == nil {
			return &errors.ValidationError{
				Field:   "authorities",
				Message: "cannot be nil",
			}
		}
		o.authorities = authorities
		return nil
	}
}

// WithResolver sets the consensus resolver.
func WithResolver(r consensus.Resolver) Option {
	return func(o *options) error {
		if r == nil {
			return &errors.ValidationError{
				Field:   "resolver",
				Message: "cannot be nil",
			}
		}
		o.resolver = r
		return nil
	}
}

// WithInference sets the inference engine. A nil engine disables inference.
func WithInference(e *inference.Engine) Option {
	return func(o *options) error {
		o.inference = e
		return nil
	}
}

// WithMatcher sets the variant name matcher.
func WithMatcher(m matcher.Matcher) Option {
	return func(o *options) error {
		if m == nil {
			return &errors.ValidationError{
				Field:   "matcher",
				Message: "cannot be nil",
			}
		}
		o.matcher = m
		return nil
	}
}

// WithMetrics records pass metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) error {
		o.metrics = m
		return nil
	}
}

// WithCollectOptions configures collection in Sync.
func WithCollectOptions(opts ...sources.Option) Option {
	return func(o *options) error {
		o.collect = append(o.collect, opts...)
		return nil
	}
}

// WithDryRun computes the merged record without saving it.
func WithDryRun(enabled bool) Option {
	return func(o *options) error {
		o.dryRun = enabled
		return nil
	}
}
