package transform

import (
	"log/slog"
	"time"
)

// DefaultMatchTimeout bounds a single substitution call, across all of its
// matches.
const DefaultMatchTimeout = 250 * time.Millisecond

type options struct {
	matchTimeout time.Duration
	concurrency  int
	logger       *slog.Logger
}

// Option configures Compile and EvaluateAndSelect.
type Option func(*options)

// WithMatchTimeout sets the budget for one substitution. Zero or negative
// values keep the default.
func WithMatchTimeout(d time.Duration) Option {
	return func(o *options) {
		if d > 0 {
			o.matchTimeout = d
		}
	}
}

// WithConcurrency evaluates up to n candidates at once. Selection is the
// same as sequential evaluation.
func WithConcurrency(n int) Option {
	return func(o *options) {
		if n > 0 {
			o.concurrency = n
		}
	}
}

// WithLogger sets the logger used for skip, timeout and selection events.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{
		matchTimeout: DefaultMatchTimeout,
		concurrency:  1,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
