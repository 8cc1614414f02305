package nestconf

import (
	"errors"
	"fmt"
	"reflect"
)

var (
	// ErrConversionUnsupported means no converter is registered for the requested type.
	ErrConversionUnsupported = errors.New("no converter registered")

	// ErrConversionMalformed means a converter exists but rejected the raw string.
	ErrConversionMalformed = errors.New("malformed value")

	// ErrSerializationUnsupported means the type's converter has no Format function.
	ErrSerializationUnsupported = errors.New("no formatter registered")

	// ErrNotValue means a path resolved to a group where a leaf was expected.
	ErrNotValue = errors.New("setting is a group, not a value")

	// ErrRequired is returned by Bind when a required field has neither a value nor a default.
	ErrRequired = errors.New("required setting missing")

	// ErrInvalidTarget is returned by Bind when the target is not a non-nil pointer to a struct.
	ErrInvalidTarget = errors.New("target must be a non-nil pointer to struct")
)

// ConversionError describes a failed parse or format. Kind is one of the
// ErrConversion*/ErrSerialization* sentinels, so callers can tell an
// unregistered type from bad input with errors.Is.
type ConversionError struct {
	Op   string // "parse" or "format"
	Raw  string // offending input (parse only)
	Type reflect.Type
	Kind error
	Err  error // underlying converter error, may be nil
}

func (e *ConversionError) Error() string {
	var msg string
	if e.Op == "format" {
		msg = fmt.Sprintf("nestconf: cannot format %v", e.Type)
	} else {
		msg = fmt.Sprintf("nestconf: cannot parse %q as %v", e.Raw, e.Type)
	}
	msg += ": " + e.Kind.Error()
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Is reports whether target is the error's kind sentinel.
func (e *ConversionError) Is(target error) bool {
	return target == e.Kind
}

// Unwrap returns the underlying converter error, or nil.
func (e *ConversionError) Unwrap() error {
	return e.Err
}

func conversionError(op, raw string, t reflect.Type, kind, err error) error {
	return &ConversionError{Op: op, Raw: raw, Type: t, Kind: kind, Err: err}
}
