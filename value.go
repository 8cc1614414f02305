package nestconf

import "reflect"

// Value is a leaf setting. It holds the raw string and converts it only when
// the caller names a target type.
type Value struct {
	raw      string
	registry *Registry
}

// NewValue wraps raw for conversion through r. A nil r uses a fresh NewRegistry.
func NewValue(raw string, r *Registry) Value {
	if r == nil {
		r = NewRegistry()
	}
	return Value{raw: raw, registry: r}
}

func (Value) node() {}

// Raw returns the stored string unchanged.
func (v Value) Raw() string { return v.raw }

// String returns the raw string, so a Value prints as its setting.
func (v Value) String() string { return v.raw }

// Convert parses the value into type t.
func (v Value) Convert(t reflect.Type) (any, error) {
	r := v.registry
	if r == nil {
		r = NewRegistry()
	}
	return r.Convert(v.raw, t)
}

// As converts v to T.
//
//	port, err := nestconf.As[int](v)
func As[T any](v Value) (T, error) {
	var zero T
	out, err := v.Convert(reflect.TypeFor[T]())
	if err != nil {
		return zero, err
	}
	return out.(T), nil
}
