package racesync

import (
	"time"

	"github.com/agentstation/racesync/internal/metrics"
	"github.com/agentstation/racesync/pkg/authority"
	"github.com/agentstation/racesync/pkg/consensus"
	"github.com/agentstation/racesync/pkg/errors"
	"github.com/agentstation/racesync/pkg/sources"
	"github.com/agentstation/racesync/pkg/store"
)

// options holds the client configuration.
type options struct {
	store       store.Store
	storeConfig *store.Config
	collectors  []sources.Collector
	authorities authority.Authority
	metrics     *metrics.Metrics

	concurrency   int
	sourceTimeout time.Duration
	tolerance     float64
	inference     bool
	dryRun        bool
}

// Option is a function that configures a Client
type Option func(*options) error

func defaults() *options {
	return &options{
		authorities:   authority.Default(),
		concurrency:   sources.DefaultConcurrency,
		sourceTimeout: sources.DefaultTimeout,
		tolerance:     consensus.DefaultTolerance,
		inference:     true,
	}
}

func (o *options) apply(opts ...Option) (*options, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// WithStore sets the persistence collaborator. The client does not close
// a store it was given.
func WithStore(s store.Store) Option {
	return func(o *options) error {
		if s == nil {
			return errors.NewValidationError("store", nil, "cannot be nil")
		}
		o.store = s
		return nil
	}
}

// WithStoreConfig opens a store from configuration when the client is
// created. The client closes it on Close.
func WithStoreConfig(cfg store.Config) Option {
	return func(o *options) error {
		o.storeConfig = &cfg
		return nil
	}
}

// WithCollectors sets the sources Sync collects from.
func WithCollectors(collectors ...sources.Collector) Option {
	return func(o *options) error {
		for _, c := range collectors {
			if c == nil {
				return errors.NewValidationError("collectors", nil, "collector cannot be nil")
			}
		}
		o.collectors = append(o.collectors, collectors...)
		return nil
	}
}

// WithAuthorities sets the source weight table.
func WithAuthorities(a authority.Authority) Option {
	return func(o *options) error {
		if a == nil {
			return errors.NewValidationError("authorities", nil, "cannot be nil")
		}
		o.authorities = a
		return nil
	}
}

// WithMetrics records pass, field and source metrics.
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) error {
		o.metrics = m
		return nil
	}
}

// WithConcurrency bounds parallel collection and multi-event syncs.
func WithConcurrency(n int) Option {
	return func(o *options) error {
		if n < 1 {
			return errors.NewValidationError("concurrency", n, "must be at least 1")
		}
		o.concurrency = n
		return nil
	}
}

// WithSourceTimeout sets the per-source collection timeout.
func WithSourceTimeout(d time.Duration) Option {
	return func(o *options) error {
		if d <= 0 {
			return errors.NewValidationError("source_timeout", d, "must be positive")
		}
		o.sourceTimeout = d
		return nil
	}
}

// WithTolerance sets the relative agreement tolerance for numeric consensus.
func WithTolerance(t float64) Option {
	return func(o *options) error {
		if t <= 0 || t >= 1 {
			return errors.NewValidationError("tolerance", t, "must be between 0 and 1")
		}
		o.tolerance = t
		return nil
	}
}

// WithInference toggles the inference fallback.
func WithInference(enabled bool) Option {
	return func(o *options) error {
		o.inference = enabled
		return nil
	}
}

// WithDryRun computes merged records without saving them.
func WithDryRun(enabled bool) Option {
	return func(o *options) error {
		o.dryRun = enabled
		return nil
	}
}
