package postgres

import "time"

type options struct {
	now func() time.Time
}

// Option configures a repository.
type Option func(*options)

// WithClock replaces the wall clock used for claim eligibility, timestamps
// and backoff.
func WithClock(now func() time.Time) Option {
	return func(o *options) { o.now = now }
}

func buildOptions(opts []Option) options {
	o := options{now: func() time.Time { return time.Now().UTC() }}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
