package nestconf

import (
	"encoding"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"sync"
)

// ParseFunc takes the raw string and returns the parsed value or an error.
type ParseFunc func(raw string) (any, error)

// FormatFunc renders a value back to its string form.
type FormatFunc func(v any) (string, error)

// Converter is the pair of functions registered for one type.
// Format is optional; without it the type is read-only.
type Converter struct {
	Parse  ParseFunc
	Format FormatFunc
}

// Factory generates a converter for a given type, or returns nil if it does not apply.
type Factory func(t reflect.Type) *Converter

var (
	stringType          = reflect.TypeFor[string]()
	textUnmarshalerType = reflect.TypeFor[encoding.TextUnmarshaler]()
	textMarshalerType   = reflect.TypeFor[encoding.TextMarshaler]()
)

// Registry maps target types to converters. Lookups check explicitly
// registered converters first, then factories in registration order, then
// fall back to kind-based parsing of primitives (which also covers named
// types such as `type Port int`).
//
// A Registry is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	converters map[reflect.Type]Converter
	factories  []Factory
}

// NewRegistry returns a registry with the built-in converters installed.
func NewRegistry() *Registry {
	r := &Registry{converters: make(map[reflect.Type]Converter)}
	r.RegisterFactory(textFactory)
	registerBuiltins(r)
	return r
}

// Register associates t with c, replacing any built-in or earlier converter for t.
func (r *Registry) Register(t reflect.Type, c Converter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.converters[t] = c
}

// RegisterFactory appends a factory. Factories are consulted after explicit converters.
func (r *Registry) RegisterFactory(f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories = append(r.factories, f)
}

// RegisterFunc registers typed parse and format functions for T.
// format may be nil, in which case Format on a T fails with ErrSerializationUnsupported.
func RegisterFunc[T any](r *Registry, parse func(raw string) (T, error), format func(v T) string) {
	c := Converter{
		Parse: func(raw string) (any, error) {
			return parse(raw)
		},
	}
	if format != nil {
		c.Format = func(v any) (string, error) {
			tv, ok := v.(T)
			if !ok {
				return "", fmt.Errorf("got %T, want %v", v, reflect.TypeFor[T]())
			}
			return format(tv), nil
		}
	}
	r.Register(reflect.TypeFor[T](), c)
}

// Resolve returns the converter used for t. The boolean is false when no
// conversion is available for t.
func (r *Registry) Resolve(t reflect.Type) (Converter, bool) {
	if t == nil {
		return Converter{}, false
	}
	r.mu.RLock()
	c, ok := r.converters[t]
	factories := r.factories
	r.mu.RUnlock()
	if ok {
		return c, true
	}

	for _, factory := range factories {
		if fc := factory(t); fc != nil {
			return *fc, true
		}
	}

	return kindConverter(t)
}

// Convert parses raw into a value of type t. The string type is the identity
// conversion and always succeeds. Failures are *ConversionError values whose
// kind is ErrConversionUnsupported or ErrConversionMalformed.
//
// A nil t is ErrConversionUnsupported. A converter that panics is reported as
// ErrConversionMalformed.
func (r *Registry) Convert(raw string, t reflect.Type) (v any, err error) {
	if t == stringType {
		return raw, nil
	}

	c, ok := r.Resolve(t)
	if !ok || c.Parse == nil {
		return nil, conversionError("parse", raw, t, ErrConversionUnsupported, nil)
	}

	defer func() {
		if p := recover(); p != nil {
			v = nil
			err = conversionError("parse", raw, t, ErrConversionMalformed, fmt.Errorf("converter panicked: %v", p))
		}
	}()

	out, err := c.Parse(raw)
	if err != nil {
		return nil, conversionError("parse", raw, t, ErrConversionMalformed, err)
	}
	out, err = coerce(out, t)
	if err != nil {
		return nil, conversionError("parse", raw, t, ErrConversionMalformed, err)
	}
	return out, nil
}

// Format converts v back to its string form using the converter for v's type.
func (r *Registry) Format(v any) (string, error) {
	if s, ok := v.(string); ok {
		return s, nil
	}
	if v == nil {
		return "", conversionError("format", "", nil, ErrConversionUnsupported, nil)
	}

	t := reflect.TypeOf(v)
	c, ok := r.Resolve(t)
	if !ok {
		return "", conversionError("format", "", t, ErrConversionUnsupported, nil)
	}
	if c.Format == nil {
		return "", conversionError("format", "", t, ErrSerializationUnsupported, nil)
	}
	s, err := c.Format(v)
	if err != nil {
		return "", conversionError("format", "", t, ErrConversionMalformed, err)
	}
	return s, nil
}

// coerce makes sure a converter result has exactly type t.
func coerce(out any, t reflect.Type) (any, error) {
	if out == nil {
		return nil, errors.New("converter returned nil")
	}
	rv := reflect.ValueOf(out)
	switch {
	case rv.Type() == t:
		return out, nil
	case t.Kind() == reflect.Interface && rv.Type().Implements(t):
		return out, nil
	case rv.Kind() == t.Kind() && rv.Type().ConvertibleTo(t):
		return rv.Convert(t).Interface(), nil
	default:
		return nil, fmt.Errorf("converter returned %T, want %v", out, t)
	}
}

// textFactory handles any type implementing encoding.TextUnmarshaler, and
// formats through encoding.TextMarshaler when the type has it.
func textFactory(t reflect.Type) *Converter {
	target := t
	if t.Kind() == reflect.Pointer {
		target = t.Elem()
	}
	if target.Kind() == reflect.Interface || !reflect.PointerTo(target).Implements(textUnmarshalerType) {
		return nil
	}

	c := &Converter{
		Parse: func(raw string) (any, error) {
			v := reflect.New(target)
			if err := v.Interface().(encoding.TextUnmarshaler).UnmarshalText([]byte(raw)); err != nil {
				return nil, fmt.Errorf("failed to unmarshal text: %w", err)
			}
			if t.Kind() == reflect.Pointer {
				return v.Interface(), nil
			}
			return v.Elem().Interface(), nil
		},
	}
	if reflect.PointerTo(target).Implements(textMarshalerType) {
		c.Format = func(v any) (string, error) {
			rv := reflect.ValueOf(v)
			if rv.Kind() != reflect.Pointer {
				p := reflect.New(rv.Type())
				p.Elem().Set(rv)
				rv = p
			} else if rv.IsNil() {
				return "", errors.New("nil pointer")
			}
			b, err := rv.Interface().(encoding.TextMarshaler).MarshalText()
			return string(b), err
		}
	}
	return c
}

// kindConverter parses primitives by reflect.Kind.
func kindConverter(t reflect.Type) (Converter, bool) {
	var parse func(raw string) (reflect.Value, error)
	switch t.Kind() {
	case reflect.String:
		parse = func(raw string) (reflect.Value, error) {
			return reflect.ValueOf(raw), nil
		}
	case reflect.Bool:
		parse = func(raw string) (reflect.Value, error) {
			b, err := strconv.ParseBool(raw)
			return reflect.ValueOf(b), err
		}
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		parse = func(raw string) (reflect.Value, error) {
			n, err := strconv.ParseInt(raw, 10, t.Bits())
			return reflect.ValueOf(n), err
		}
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		parse = func(raw string) (reflect.Value, error) {
			n, err := strconv.ParseUint(raw, 10, t.Bits())
			return reflect.ValueOf(n), err
		}
	case reflect.Float32, reflect.Float64:
		parse = func(raw string) (reflect.Value, error) {
			f, err := strconv.ParseFloat(raw, t.Bits())
			return reflect.ValueOf(f), err
		}
	default:
		return Converter{}, false
	}

	return Converter{
		Parse: func(raw string) (any, error) {
			v, err := parse(raw)
			if err != nil {
				return nil, err
			}
			return v.Convert(t).Interface(), nil
		},
		Format: func(v any) (string, error) {
			return formatScalar(reflect.ValueOf(v))
		},
	}, true
}

func formatScalar(rv reflect.Value) (string, error) {
	switch rv.Kind() {
	case reflect.String:
		return rv.String(), nil
	case reflect.Bool:
		return strconv.FormatBool(rv.Bool()), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32, reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'g', -1, rv.Type().Bits()), nil
	default:
		return "", fmt.Errorf("unsupported scalar kind %s", rv.Kind())
	}
}
