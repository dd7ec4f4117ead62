package sources

import (
	"time"

	"github.com/agentstation/racesync/pkg/errors"
)

// Collection defaults.
const (
	DefaultConcurrency = 4
	DefaultTimeout     = 30 * time.Second
)

// Options configures a collection pass.
type Options struct {
	Concurrency int
	Timeout     time.Duration
}

// Option is a function that configures Options.
type Option func(*Options) error

// Defaults returns the default collection options.
func Defaults() *Options {
	return &Options{
		Concurrency: DefaultConcurrency,
		Timeout:     DefaultTimeout,
	}
}

// Apply applies options in order.
func (o *Options) Apply(opts ...Option) (*Options, error) {
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, err
		}
	}
	return o, nil
}

// WithConcurrency bounds the number of collectors running at once.
func WithConcurrency(n int) Option {
	return func(o *Options) error {
		if n < 1 {
			return errors.NewValidationError("concurrency", n, "must be at least 1")
		}
		o.Concurrency = n
		return nil
	}
}

// WithTimeout sets the per-collector timeout.
func WithTimeout(d time.Duration) Option {
	return func(o *Options) error {
		if d <= 0 {
			return errors.NewValidationError("timeout", d, "must be positive")
		}
		o.Timeout = d
		return nil
	}
}
