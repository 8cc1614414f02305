// Command nestconf prints settings from a file or the environment as a tree,
// resolving nested keys and converting leaves to a requested type.
//
//	nestconf -f config.toml Server.Port -t int
//	nestconf -e APP_ --json Server
package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net"
	"net/url"
	"os"
	"reflect"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/spf13/pflag"
	"k8s.io/apimachinery/pkg/api/resource"

	"github.com/vivaneiona/nestconf"
)

var types = map[string]reflect.Type{
	"string":   reflect.TypeFor[string](),
	"int":      reflect.TypeFor[int64](),
	"uint":     reflect.TypeFor[uint64](),
	"float":    reflect.TypeFor[float64](),
	"bool":     reflect.TypeFor[bool](),
	"duration": reflect.TypeFor[time.Duration](),
	"time":     reflect.TypeFor[time.Time](),
	"level":    reflect.TypeFor[slog.Level](),
	"decimal":  reflect.TypeFor[decimal.Decimal](),
	"uuid":     reflect.TypeFor[uuid.UUID](),
	"quantity": reflect.TypeFor[resource.Quantity](),
	"ip":       reflect.TypeFor[net.IP](),
	"url":      reflect.TypeFor[url.URL](),
}

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := pflag.NewFlagSet("nestconf", pflag.ContinueOnError)
	fs.SetOutput(stderr)
	file := fs.StringP("file", "f", "", "settings file (.toml, .yaml, .yml, .json, .env)")
	prefix := fs.StringP("env-prefix", "e", "", "read environment variables starting with this prefix")
	sep := fs.StringP("separator", "s", nestconf.DefaultSeparator, "key separator")
	typeName := fs.StringP("type", "t", "string", "convert the value to: "+strings.Join(slices.Sorted(maps.Keys(types)), "|"))
	asJSON := fs.Bool("json", false, "print groups as JSON instead of a key list")
	verbose := fs.BoolP("verbose", "v", false, "enable debug logging")

	var level slog.LevelVar
	log := slog.New(slog.NewTextHandler(stderr, &slog.HandlerOptions{Level: &level}))

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			return 0
		}
		log.Error("invalid arguments", slog.Any("err", err))
		return 2
	}
	if *verbose {
		level.Set(slog.LevelDebug)
	}

	target, ok := types[*typeName]
	if !ok {
		log.Error("unknown type", slog.String("type", *typeName))
		return 2
	}

	entries, err := load(*file, *prefix, *sep)
	if err != nil {
		log.Error("failed to load settings", slog.Any("err", err))
		return 1
	}
	log.Debug("settings loaded", slog.Int("entries", len(entries)))

	root := nestconf.New(entries, nestconf.WithSeparator(*sep), nestconf.WithLogger(log))
	path := fs.Arg(0)

	node, ok := root.Path(path)
	if !ok {
		log.Error("setting not found", slog.String("path", path))
		return 1
	}

	switch n := node.(type) {
	case nestconf.Value:
		out, err := convert(root.Registry(), n, target)
		if err != nil {
			log.Error("conversion failed",
				slog.String("path", path),
				slog.String("type", *typeName),
				slog.Any("err", err))
			return 1
		}
		fmt.Fprintln(stdout, out)
	case *nestconf.Scope:
		if *asJSON {
			b, err := json.MarshalIndent(n.Tree(), "", "  ")
			if err != nil {
				log.Error("failed to encode tree", slog.Any("err", err))
				return 1
			}
			fmt.Fprintln(stdout, string(b))
			return 0
		}
		for _, k := range n.Keys() {
			fmt.Fprintln(stdout, k)
		}
	}
	return 0
}

func load(file, prefix, sep string) (map[string]string, error) {
	if file != "" && prefix != "" {
		return nil, errors.New("--file and --env-prefix are mutually exclusive")
	}
	if file != "" {
		return nestconf.FromFile(file, sep)
	}
	return nestconf.FromEnviron(prefix, sep), nil
}

// convert parses the value and formats it back, so the output is the
// canonical form of the requested type.
func convert(r *nestconf.Registry, v nestconf.Value, t reflect.Type) (string, error) {
	parsed, err := v.Convert(t)
	if err != nil {
		return "", err
	}
	return r.Format(parsed)
}
