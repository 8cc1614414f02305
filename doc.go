// Package nestconf exposes a flat map of string settings as a hierarchy of
// scopes with typed, on-demand conversion.
//
// Keys containing the separator (default ".") form groups. Looking up a
// group derives a child Scope holding the matching keys with the prefix
// stripped; children are cached, so repeated lookups return the same
// instance. Leaves are Values, which keep the raw string until the caller
// asks for a type.
//
// # Lookup
//
//	root := nestconf.New(map[string]string{
//	    "Server.Host":           "0.0.0.0",
//	    "Server.Port":           "8080",
//	    "Server.ReadTimeout":    "5s",
//	    "Database.MaxConns":     "20",
//	    "Database.Primary.Host": "db1.internal",
//	})
//
//	server, _ := root.Scope("Server")
//	v, _ := server.Value("Port")
//	port, err := nestconf.As[int](v)
//
//	timeout, ok, err := nestconf.Lookup[time.Duration](root, "Server.ReadTimeout")
//
// An exact key always wins over a group of the same name. A name that is
// neither a key nor a group head is simply absent: Get returns false, not an
// error.
//
// The separator is chosen per root with WithSeparator and inherited by every
// child:
//
//	root := nestconf.New(map[string]string{"Server/Port": "8080"}, nestconf.WithSeparator("/"))
//
// # Conversion
//
// A Registry maps types to converters. NewRegistry installs converters for
// every primitive kind (including named types such as `type Port int`) and:
//   - time.Duration, time.Time (RFC3339 or Unix seconds), log/slog.Level
//   - math/big.Int, github.com/shopspring/decimal.Decimal
//   - net/url.URL, net.IP, net/mail.Address, github.com/google/uuid.UUID
//   - k8s.io/apimachinery/pkg/api/resource.Quantity
//   - crypto/rsa.PrivateKey and crypto/ecdsa.PrivateKey from PEM (read-only)
//   - *github.com/expr-lang/expr/vm.Program compiled expressions (read-only)
//   - any type implementing encoding.TextUnmarshaler
//
// Custom converters replace built-ins for their type:
//
//	reg := nestconf.NewRegistry()
//	nestconf.RegisterFunc(reg, parsePoint, Point.String)
//	root := nestconf.New(entries, nestconf.WithRegistry(reg))
//
// Conversion failures are *ConversionError values. Use errors.Is with
// ErrConversionUnsupported (no converter for the type),
// ErrConversionMalformed (the converter rejected the input) or
// ErrSerializationUnsupported (Format on a read-only type).
//
// # Binding
//
// Bind fills a struct from a scope using `key`, `secret`, `default` and
// `required` tags; nested structs bind to groups. PrettyString renders a
// bound struct as JSON with secrets masked.
//
// # Sources
//
// FromEnviron, FromDotenv, FromTOML, FromYAML, FromJSON, FromViper and
// FromFile produce the flat map New consumes. Each reads one source; there
// is no merging or precedence between them.
package nestconf
