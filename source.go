package nestconf

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
	"github.com/tidwall/gjson"
	"gopkg.in/yaml.v3"
)

// The From* functions materialize a flat key/value map for New. They never
// merge sources; combining them is left to the caller.

// FromEnviron reads environment variables whose name starts with prefix.
// The prefix is stripped and every "__" becomes sep, so with prefix "APP_"
// the variable APP_Server__Port yields the key "Server.Port".
func FromEnviron(prefix, sep string) map[string]string {
	out := make(map[string]string)
	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		name, ok := strings.CutPrefix(k, prefix)
		if !ok || name == "" {
			continue
		}
		out[envKey(name, sep)] = v
	}
	return out
}

// FromDotenv reads a .env file with the same key mapping as FromEnviron. The
// process environment is not modified.
func FromDotenv(path, sep string) (map[string]string, error) {
	env, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("read dotenv %s: %w", path, err)
	}
	out := make(map[string]string, len(env))
	for k, v := range env {
		out[envKey(k, sep)] = v
	}
	return out, nil
}

// FromTOML flattens a TOML document, joining table names with sep.
func FromTOML(data []byte, sep string) (map[string]string, error) {
	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse TOML: %w", err)
	}
	return flatten(doc, sep), nil
}

// FromYAML flattens a YAML mapping document, joining keys with sep.
func FromYAML(data []byte, sep string) (map[string]string, error) {
	var doc map[string]any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse YAML: %w", err)
	}
	return flatten(doc, sep), nil
}

// FromJSON flattens a JSON object, joining keys with sep. Numbers keep their
// literal text.
func FromJSON(data []byte, sep string) (map[string]string, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("parse JSON: invalid document")
	}
	doc := gjson.ParseBytes(data)
	if !doc.IsObject() {
		return nil, fmt.Errorf("parse JSON: top level must be an object, got %s", doc.Type)
	}
	out := make(map[string]string)
	flattenJSON(doc, "", defaultSep(sep), out)
	return out, nil
}

// FromViper flattens every key known to v. Viper lower-cases keys and joins
// them with "."; the dots are replaced by sep.
func FromViper(v *viper.Viper, sep string) map[string]string {
	sep = defaultSep(sep)
	out := make(map[string]string)
	for _, k := range v.AllKeys() {
		out[strings.ReplaceAll(k, ".", sep)] = stringify(v.Get(k))
	}
	return out
}

// FromFile picks the reader by file extension: .toml, .yaml/.yml, .json or .env.
func FromFile(path, sep string) (map[string]string, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == ".env" {
		return FromDotenv(path, sep)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read settings file: %w", err)
	}

	var out map[string]string
	switch ext {
	case ".toml":
		out, err = FromTOML(data, sep)
	case ".yaml", ".yml":
		out, err = FromYAML(data, sep)
	case ".json":
		out, err = FromJSON(data, sep)
	default:
		return nil, fmt.Errorf("unsupported settings file extension %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

func defaultSep(sep string) string {
	if sep == "" {
		return DefaultSeparator
	}
	return sep
}

func envKey(name, sep string) string {
	return strings.ReplaceAll(name, "__", defaultSep(sep))
}

func flatten(doc map[string]any, sep string) map[string]string {
	out := make(map[string]string)
	sep = defaultSep(sep)
	for k, v := range doc {
		walk(k, v, sep, out)
	}
	return out
}

// walk stores scalar leaves under path. Lists of scalars are joined with ","
// to match the comma-separated list form Bind reads; other lists are indexed.
func walk(path string, v any, sep string, out map[string]string) {
	switch t := v.(type) {
	case map[string]any:
		for k, e := range t {
			walk(path+sep+k, e, sep, out)
		}
	case map[any]any:
		for k, e := range t {
			walk(path+sep+fmt.Sprint(k), e, sep, out)
		}
	case []map[string]any:
		for i, e := range t {
			walk(path+sep+strconv.Itoa(i), e, sep, out)
		}
	case []any:
		if scalars(t) {
			parts := make([]string, len(t))
			for i, e := range t {
				parts[i] = stringify(e)
			}
			out[path] = strings.Join(parts, ",")
			return
		}
		for i, e := range t {
			walk(path+sep+strconv.Itoa(i), e, sep, out)
		}
	default:
		out[path] = stringify(t)
	}
}

func scalars(list []any) bool {
	for _, e := range list {
		switch e.(type) {
		case map[string]any, map[any]any, []any, []map[string]any:
			return false
		}
	}
	return true
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return t
	case time.Time:
		return t.Format(time.RFC3339Nano)
	case []any:
		parts := make([]string, len(t))
		for i, e := range t {
			parts[i] = stringify(e)
		}
		return strings.Join(parts, ",")
	case []string:
		return strings.Join(t, ",")
	default:
		return fmt.Sprint(t)
	}
}

func flattenJSON(obj gjson.Result, prefix, sep string, out map[string]string) {
	obj.ForEach(func(k, v gjson.Result) bool {
		path := k.String()
		if prefix != "" {
			path = prefix + sep + path
		}
		walkJSON(path, v, sep, out)
		return true
	})
}

// walkJSON mirrors walk for gjson results: scalar arrays are joined with ",",
// any other array is indexed.
func walkJSON(path string, v gjson.Result, sep string, out map[string]string) {
	switch {
	case v.IsObject():
		flattenJSON(v, path, sep, out)
	case v.IsArray():
		items := v.Array()
		nested := slices.ContainsFunc(items, func(e gjson.Result) bool {
			return e.IsObject() || e.IsArray()
		})
		if !nested {
			parts := make([]string, len(items))
			for i, e := range items {
				parts[i] = jsonScalar(e)
			}
			out[path] = strings.Join(parts, ",")
			return
		}
		for i, e := range items {
			walkJSON(path+sep+strconv.Itoa(i), e, sep, out)
		}
	default:
		out[path] = jsonScalar(v)
	}
}

// jsonScalar keeps number literals as written instead of round-tripping through float64.
func jsonScalar(v gjson.Result) string {
	if v.Type == gjson.Number {
		return v.Raw
	}
	return v.String()
}
