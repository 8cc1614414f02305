package nestconf

import (
	"encoding/json"
	"fmt"
	"net/url"
	"reflect"
	"strings"
)

// mask returns a masked version of the secret string.
// It keeps the first 3 characters visible and replaces the rest with asterisks.
// For strings with 3 or fewer characters, all characters are replaced with asterisks.
//
// Examples:
//   - mask("") returns ""
//   - mask("a") returns "*"
//   - mask("abc") returns "***"
//   - mask("secret123") returns "sec*****"
func mask(secret string) string {
	const keep = 3
	n := len(secret)
	if n <= keep {
		return strings.Repeat("*", n)
	}
	return secret[:keep] + strings.Repeat("*", n-keep)
}

// PrettyString returns a JSON rendering of a bound struct with secrets masked,
// suitable for logging. Keys are the setting names Bind uses; `secret` fields
// are masked with mask and URL passwords are replaced with "***".
//
// Example:
//
//	type Config struct {
//	    Port   int    `key:"Port"`
//	    APIKey string `secret:"ApiKey"`
//	}
//	fmt.Println(PrettyString(&Config{Port: 8080, APIKey: "secret123"}))
//	// {"ApiKey": "sec******", "Port": 8080}
func PrettyString(c any) string {
	rv := reflect.ValueOf(c)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return fmt.Sprintf("%T is not a struct", c)
	}

	b, err := json.MarshalIndent(buildSafeMap(rv), "", "  ")
	if err != nil {
		return fmt.Sprintf("error pretty-printing config: %v", err)
	}
	return string(b)
}

// buildSafeMap recursively builds a map of the struct with secret fields masked.
// encoding/json sorts map keys, so output is deterministic.
func buildSafeMap(val reflect.Value) map[string]any {
	typ := val.Type()
	out := make(map[string]any, typ.NumField())

	for i := 0; i < typ.NumField(); i++ {
		sf := typ.Field(i)
		fv := val.Field(i)

		if !fv.CanInterface() {
			continue
		}
		key := fieldKey(sf)

		switch {
		case sf.Tag.Get("secret") != "":
			out[key] = maskSecret(fv)
		case fv.Kind() == reflect.Slice && !isLeafSlice(fv.Type()):
			slice := make([]any, fv.Len())
			for j := range slice {
				slice[j] = safeValue(fv.Index(j))
			}
			out[key] = slice
		default:
			out[key] = safeValue(fv)
		}
	}
	return out
}

func safeValue(fv reflect.Value) any {
	switch v := fv.Interface().(type) {
	case url.URL:
		return maskURL(&v)
	case *url.URL:
		if v == nil {
			return nil
		}
		return maskURL(v)
	}

	switch {
	case fv.Kind() == reflect.Struct && !isLeafStruct(fv.Type()):
		return buildSafeMap(fv)
	case fv.Kind() == reflect.Pointer && fv.Type().Elem().Kind() == reflect.Struct && !isLeafStruct(fv.Type().Elem()):
		if fv.IsNil() {
			return nil
		}
		return buildSafeMap(fv.Elem())
	default:
		return fv.Interface()
	}
}

// isLeafStruct reports whether a struct type renders as a single JSON value.
func isLeafStruct(t reflect.Type) bool {
	return reflect.PointerTo(t).Implements(textMarshalerType) ||
		reflect.PointerTo(t).Implements(reflect.TypeFor[json.Marshaler]())
}

// isLeafSlice reports whether a slice type such as []byte or net.IP renders as a single JSON value.
func isLeafSlice(t reflect.Type) bool {
	return t == reflect.TypeFor[[]byte]() || t.Implements(textMarshalerType)
}

func maskSecret(fv reflect.Value) any {
	if fv.Kind() == reflect.Slice {
		slice := make([]any, fv.Len())
		for i := range slice {
			if s, ok := fv.Index(i).Interface().(string); ok {
				slice[i] = mask(s)
			} else {
				slice[i] = "***"
			}
		}
		return slice
	}
	if s, ok := fv.Interface().(string); ok {
		return mask(s)
	}
	return "***"
}

// maskURL masks the password in a URL for safe logging
func maskURL(u *url.URL) string {
	if u.User != nil {
		if _, hasPassword := u.User.Password(); hasPassword {
			masked := *u
			masked.User = url.UserPassword(u.User.Username(), "***")
			return masked.String()
		}
	}
	return u.String()
}
