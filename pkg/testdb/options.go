// SPDX-License-Identifier: Apache-2.0

package testdb

type Option func(*Rewriter)

// WithMaxLength sets the maximum database name length, in characters.
func WithMaxLength(n int) Option {
	return func(r *Rewriter) {
		r.maxLength = n
	}
}

// WithStrictLength truncates only the candidate name, so that generated names
// never exceed the maximum length (as long as it leaves room for the suffix).
func WithStrictLength() Option {
	return func(r *Rewriter) {
		r.strict = true
	}
}

// WithSink sets where the generated connection string is reported. A nil sink
// disables reporting.
func WithSink(s Sink) Option {
	return func(r *Rewriter) {
		r.sink = s
	}
}

// WithSuffixGenerator replaces the random suffix source. The generator must be
// safe for concurrent use.
func WithSuffixGenerator(fn func() string) Option {
	return func(r *Rewriter) {
		if fn != nil {
			r.newSuffix = fn
		}
	}
}
