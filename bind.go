package nestconf

import (
	"fmt"
	"reflect"
	"strings"
)

// Bind populates the struct pointed to by target from s.
//
// Struct tags control binding:
//   - `key:"name"`: setting name at the current level (defaults to the field name)
//   - `secret:"name"`: same as key, and PrettyString masks the value
//   - `default:"value"`: used when the setting is absent and the field is zero
//   - `required:"true"`: fails with ErrRequired if absent and no default
//
// A nested struct, or pointer to struct, that the registry cannot convert is
// bound against the group of the same name. Slices without their own
// converter are read as comma-separated lists.
//
// Example:
//
//	type Config struct {
//	    Server struct {
//	        Host string `key:"Host" default:"localhost"`
//	        Port int    `key:"Port" default:"8080"`
//	    }
//	    APIKey string `secret:"ApiKey" required:"true"`
//	}
//
//	var cfg Config
//	if err := nestconf.Bind(scope, &cfg); err != nil {
//	    log.Fatal(err)
//	}
func Bind(s *Scope, target any) error {
	rv := reflect.ValueOf(target)
	if rv.Kind() != reflect.Pointer || rv.IsNil() || rv.Elem().Kind() != reflect.Struct {
		return fmt.Errorf("%w, got %T", ErrInvalidTarget, target)
	}
	return bindStruct(s, rv.Elem(), make(map[reflect.Type]bool))
}

// bindStruct fills val from s. visiting holds the struct types on the current
// path so that self-referencing pointer fields stop where the settings do.
func bindStruct(s *Scope, val reflect.Value, visiting map[reflect.Type]bool) error {
	typ := val.Type()
	r := s.Registry()
	visiting[typ] = true
	defer delete(visiting, typ)

	for i := 0; i < typ.NumField(); i++ {
		sf := typ.Field(i)
		fv := val.Field(i)

		// Skip unexported fields
		if !fv.CanSet() {
			continue
		}

		key := fieldKey(sf)

		if isGroup(r, fv.Type()) {
			// group, not Scope: an exact key named like the group must not hide it.
			child := s.group(key)
			ok := child != nil
			if !ok {
				child = newScope(nil, s.join(key), s.opts)
			}
			target := fv
			if fv.Kind() == reflect.Pointer {
				if fv.IsNil() {
					if !ok && visiting[fv.Type().Elem()] {
						continue
					}
					fv.Set(reflect.New(fv.Type().Elem()))
				}
				target = fv.Elem()
			}
			if err := bindStruct(child, target, visiting); err != nil {
				return err
			}
			continue
		}

		path := s.join(key)

		raw, found := "", false
		if v, ok := s.Value(key); ok {
			raw, found = v.Raw(), true
		}
		if !found {
			// Only use the default if the field currently has a zero value
			if !fv.IsZero() {
				continue
			}
			raw = sf.Tag.Get("default")
		}
		if raw == "" && strings.EqualFold(sf.Tag.Get("required"), "true") {
			return fmt.Errorf("%w: %s", ErrRequired, path)
		}
		if raw == "" {
			continue
		}

		if fv.Kind() == reflect.Slice && !hasConverter(r, fv.Type()) {
			slice, err := parseList(r, raw, fv.Type())
			if err != nil {
				return fmt.Errorf("field %s: %w", path, err)
			}
			fv.Set(slice)
			continue
		}

		parsed, err := r.Convert(raw, fv.Type())
		if err != nil {
			return fmt.Errorf("field %s: %w", path, err)
		}
		fv.Set(reflect.ValueOf(parsed))
	}

	return nil
}

// parseList splits raw on commas and converts each non-empty element.
func parseList(r *Registry, raw string, t reflect.Type) (reflect.Value, error) {
	slice := reflect.MakeSlice(t, 0, 0)
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		parsed, err := r.Convert(part, t.Elem())
		if err != nil {
			return reflect.Value{}, err
		}
		slice = reflect.Append(slice, reflect.ValueOf(parsed))
	}
	return slice, nil
}

func fieldKey(sf reflect.StructField) string {
	if key := sf.Tag.Get("key"); key != "" {
		return key
	}
	if key := sf.Tag.Get("secret"); key != "" {
		return key
	}
	return sf.Name
}

func hasConverter(r *Registry, t reflect.Type) bool {
	_, ok := r.Resolve(t)
	return ok
}

// isGroup reports whether a field of type t binds to a group rather than a value.
func isGroup(r *Registry, t reflect.Type) bool {
	switch {
	case t.Kind() == reflect.Struct:
		return !hasConverter(r, t)
	case t.Kind() == reflect.Pointer && t.Elem().Kind() == reflect.Struct:
		return !hasConverter(r, t)
	default:
		return false
	}
}

// FieldSetting represents metadata about a bindable field
type FieldSetting struct {
	Path      string            // Separator-joined setting path (e.g., "Server.Port")
	FieldName string            // Struct field name
	Type      string            // Go type name
	Default   string            // Default value from tag
	Required  bool              // Whether field is required
	Secret    bool              // Whether field is marked as secret
	Tags      map[string]string // All struct tags
}

// Fields returns metadata about all settings Bind would read for the struct
// type of target, using the separator and registry from opts.
func Fields(target any, opts ...Option) []FieldSetting {
	rv := reflect.ValueOf(target)
	if rv.Kind() == reflect.Pointer {
		rv = rv.Elem()
	}
	if !rv.IsValid() || rv.Kind() != reflect.Struct {
		return nil
	}

	o := buildOptions(opts)
	var fields []FieldSetting
	collectFields(rv.Type(), "", o, make(map[reflect.Type]bool), &fields)
	return fields
}

// collectFields recursively walks struct fields and collects metadata.
// Recursive struct types are walked once.
func collectFields(typ reflect.Type, prefix string, o options, visiting map[reflect.Type]bool, fields *[]FieldSetting) {
	visiting[typ] = true
	defer delete(visiting, typ)

	for i := 0; i < typ.NumField(); i++ {
		sf := typ.Field(i)
		if !sf.IsExported() {
			continue
		}

		path := fieldKey(sf)
		if prefix != "" {
			path = prefix + o.sep + path
		}

		if isGroup(o.registry, sf.Type) {
			t := sf.Type
			if t.Kind() == reflect.Pointer {
				t = t.Elem()
			}
			if !visiting[t] {
				collectFields(t, path, o, visiting, fields)
			}
			continue
		}

		tags := make(map[string]string)
		for _, name := range []string{"key", "secret", "default", "required", "json", "yaml"} {
			if v := sf.Tag.Get(name); v != "" {
				tags[name] = v
			}
		}

		*fields = append(*fields, FieldSetting{
			Path:      path,
			FieldName: sf.Name,
			Type:      sf.Type.String(),
			Default:   sf.Tag.Get("default"),
			Required:  strings.EqualFold(sf.Tag.Get("required"), "true"),
			Secret:    sf.Tag.Get("secret") != "",
			Tags:      tags,
		})
	}
}

// FilterFields returns settings matching the given predicate function
func FilterFields(fields []FieldSetting, predicate func(FieldSetting) bool) []FieldSetting {
	var filtered []FieldSetting
	for _, f := range fields {
		if predicate(f) {
			filtered = append(filtered, f)
		}
	}
	return filtered
}

// SecretFields returns all fields marked as secrets
func SecretFields(target any, opts ...Option) []FieldSetting {
	return FilterFields(Fields(target, opts...), func(f FieldSetting) bool {
		return f.Secret
	})
}

// RequiredFields returns all required fields
func RequiredFields(target any, opts ...Option) []FieldSetting {
	return FilterFields(Fields(target, opts...), func(f FieldSetting) bool {
		return f.Required
	})
}
