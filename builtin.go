package nestconf

import (
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"net"
	"net/mail"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"k8s.io/apimachinery/pkg/api/resource"
)

// registerBoth registers T and *T with the same parse and format logic.
func registerBoth[T any](r *Registry, parse func(raw string) (T, error), format func(v T) string) {
	RegisterFunc(r, parse, format)

	var pformat func(p *T) string
	if format != nil {
		pformat = func(p *T) string {
			if p == nil {
				return ""
			}
			return format(*p)
		}
	}
	RegisterFunc(r, func(raw string) (*T, error) {
		v, err := parse(raw)
		if err != nil {
			return nil, err
		}
		return &v, nil
	}, pformat)
}

func registerBuiltins(r *Registry) {
	registerBoth(r, func(raw string) (time.Duration, error) {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return 0, fmt.Errorf("invalid duration %q: %w", raw, err)
		}
		return d, nil
	}, time.Duration.String)

	// RFC3339 first, Unix seconds as fallback
	registerBoth(r, func(raw string) (time.Time, error) {
		if t, err := time.Parse(time.RFC3339, raw); err == nil {
			return t, nil
		}
		if unix, err := strconv.ParseInt(raw, 10, 64); err == nil {
			return time.Unix(unix, 0), nil
		}
		return time.Time{}, fmt.Errorf("invalid time %q: must be RFC3339 format or Unix seconds", raw)
	}, func(t time.Time) string {
		return t.Format(time.RFC3339Nano)
	})

	registerBoth(r, parseLevel, slog.Level.String)

	registerBoth(r, func(raw string) (big.Int, error) {
		bi := new(big.Int)
		if _, ok := bi.SetString(raw, 10); !ok {
			return big.Int{}, fmt.Errorf("invalid big.Int %q: must be base-10 integer", raw)
		}
		return *bi, nil
	}, func(bi big.Int) string {
		return bi.String()
	})

	registerBoth(r, func(raw string) (decimal.Decimal, error) {
		d, err := decimal.NewFromString(raw)
		if err != nil {
			return decimal.Decimal{}, fmt.Errorf("invalid decimal %q: %w", raw, err)
		}
		return d, nil
	}, decimal.Decimal.String)

	registerBoth(r, func(raw string) (url.URL, error) {
		u, err := url.Parse(raw)
		if err != nil {
			return url.URL{}, fmt.Errorf("invalid URL %q: %w", raw, err)
		}
		return *u, nil
	}, func(u url.URL) string {
		return u.String()
	})

	// net.IP is a []byte, so it needs an explicit entry
	registerBoth(r, func(raw string) (net.IP, error) {
		ip := net.ParseIP(raw)
		if ip == nil {
			return nil, fmt.Errorf("invalid IP address %q", raw)
		}
		return ip, nil
	}, net.IP.String)

	registerBoth(r, func(raw string) (mail.Address, error) {
		addr, err := mail.ParseAddress(raw)
		if err != nil {
			return mail.Address{}, fmt.Errorf("invalid email address %q: %w", raw, err)
		}
		return *addr, nil
	}, func(a mail.Address) string {
		return a.String()
	})

	registerBoth(r, func(raw string) (uuid.UUID, error) {
		id, err := uuid.Parse(raw)
		if err != nil {
			return uuid.Nil, fmt.Errorf("invalid UUID %q: %w", raw, err)
		}
		return id, nil
	}, uuid.UUID.String)

	registerBoth(r, func(raw string) (resource.Quantity, error) {
		q, err := resource.ParseQuantity(raw)
		if err != nil {
			return resource.Quantity{}, fmt.Errorf("invalid k8s quantity %q: %w", raw, err)
		}
		return q, nil
	}, func(q resource.Quantity) string {
		return q.String()
	})

	// Private keys and compiled programs are read-only.
	registerBoth(r, parseRSAKey, nil)
	registerBoth(r, parseECDSAKey, nil)

	RegisterFunc(r, func(raw string) (*vm.Program, error) {
		program, err := expr.Compile(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to compile expression %q: %w", raw, err)
		}
		return program, nil
	}, nil)
}

// parseLevel accepts debug|info|warn|warning|error, an integer, or anything
// slog.Level.UnmarshalText understands (e.g. "INFO+2").
func parseLevel(raw string) (slog.Level, error) {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	}
	if level, err := strconv.Atoi(raw); err == nil {
		return slog.Level(level), nil
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(raw)); err != nil {
		return 0, fmt.Errorf("invalid slog level %q: must be debug|info|warn|error or integer", raw)
	}
	return level, nil
}

func parseRSAKey(raw string) (rsa.PrivateKey, error) {
	block, err := decodePEM(raw, "RSA")
	if err != nil {
		return rsa.PrivateKey{}, err
	}

	switch block.Type {
	case "RSA PRIVATE KEY":
		key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
		if err != nil {
			return rsa.PrivateKey{}, fmt.Errorf("failed to parse RSA private key: %w", err)
		}
		return *key, nil
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return rsa.PrivateKey{}, fmt.Errorf("failed to parse PKCS#8 private key: %w", err)
		}
		if rsaKey, ok := key.(*rsa.PrivateKey); ok {
			return *rsaKey, nil
		}
		return rsa.PrivateKey{}, errors.New("PKCS#8 key is not an RSA private key")
	default:
		return rsa.PrivateKey{}, fmt.Errorf("unsupported PEM block type for RSA private key: %s", block.Type)
	}
}

func parseECDSAKey(raw string) (ecdsa.PrivateKey, error) {
	block, err := decodePEM(raw, "ECDSA")
	if err != nil {
		return ecdsa.PrivateKey{}, err
	}

	switch block.Type {
	case "EC PRIVATE KEY":
		key, err := x509.ParseECPrivateKey(block.Bytes)
		if err != nil {
			return ecdsa.PrivateKey{}, fmt.Errorf("failed to parse EC private key: %w", err)
		}
		return *key, nil
	case "PRIVATE KEY":
		key, err := x509.ParsePKCS8PrivateKey(block.Bytes)
		if err != nil {
			return ecdsa.PrivateKey{}, fmt.Errorf("failed to parse PKCS#8 private key: %w", err)
		}
		if ecKey, ok := key.(*ecdsa.PrivateKey); ok {
			return *ecKey, nil
		}
		return ecdsa.PrivateKey{}, errors.New("PKCS#8 key is not an ECDSA private key")
	default:
		return ecdsa.PrivateKey{}, fmt.Errorf("unsupported PEM block type for ECDSA private key: %s", block.Type)
	}
}

func decodePEM(raw, algo string) (*pem.Block, error) {
	block, _ := pem.Decode([]byte(raw))
	if block == nil {
		return nil, fmt.Errorf("invalid PEM format for %s private key", algo)
	}
	return block, nil
}
