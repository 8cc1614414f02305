package nestconf

import "log/slog"

// DefaultSeparator delimits hierarchy levels unless WithSeparator says otherwise.
const DefaultSeparator = "."

// Option configures a root Scope.
type Option func(*options)

type options struct {
	sep      string
	registry *Registry
	logger   *slog.Logger
}

// WithSeparator sets the string that splits keys into groups. The setting is
// fixed for the root and every child derived from it. An empty string keeps
// DefaultSeparator.
func WithSeparator(sep string) Option {
	return func(o *options) {
		if sep != "" {
			o.sep = sep
		}
	}
}

// WithRegistry sets the converter registry used by values of this scope tree.
func WithRegistry(r *Registry) Option {
	return func(o *options) {
		if r != nil {
			o.registry = r
		}
	}
}

// WithLogger sets the logger used for debug output about group derivation.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

func buildOptions(opts []Option) options {
	o := options{sep: DefaultSeparator}
	for _, opt := range opts {
		opt(&o)
	}
	if o.registry == nil {
		o.registry = NewRegistry()
	}
	if o.logger == nil {
		o.logger = slog.New(slog.DiscardHandler)
	}
	return o
}
