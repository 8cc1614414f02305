package nestconf

import (
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"strings"
	"sync"
)

// Node is the result of a lookup: either a Value (leaf) or a *Scope (group).
type Node interface {
	node()
}

// Scope is one level of the settings hierarchy, backed by an immutable flat
// map of keys to raw strings. Keys containing the separator form groups,
// which are derived on first access and cached for the life of the scope.
//
// A Scope is safe for concurrent use. Concurrent lookups of the same new group
// observe the same child instance.
type Scope struct {
	entries map[string]string
	prefix  string
	opts    options

	mu       sync.Mutex
	children map[string]*Scope // nil entry caches a miss
}

// New builds a root scope from a flat key/value map. The map is copied.
func New(entries map[string]string, opts ...Option) *Scope {
	return newScope(maps.Clone(entries), "", buildOptions(opts))
}

func newScope(entries map[string]string, prefix string, o options) *Scope {
	if entries == nil {
		entries = make(map[string]string)
	}
	return &Scope{
		entries:  entries,
		prefix:   prefix,
		opts:     o,
		children: make(map[string]*Scope),
	}
}

func (*Scope) node() {}

// Get resolves name at this level. An exact key wins and yields a Value.
// Otherwise, if any key starts with name followed by the separator, Get
// returns the child scope for that group. The second result is false when
// neither applies.
func (s *Scope) Get(name string) (Node, bool) {
	if name == "" {
		return nil, false
	}
	if raw, ok := s.entries[name]; ok {
		return Value{raw: raw, registry: s.opts.registry}, true
	}
	if child := s.group(name); child != nil {
		return child, true
	}
	return nil, false
}

// Value is Get restricted to leaves.
func (s *Scope) Value(name string) (Value, bool) {
	n, ok := s.Get(name)
	if !ok {
		return Value{}, false
	}
	v, ok := n.(Value)
	return v, ok
}

// Scope is Get restricted to groups.
func (s *Scope) Scope(name string) (*Scope, bool) {
	n, ok := s.Get(name)
	if !ok {
		return nil, false
	}
	child, ok := n.(*Scope)
	return child, ok
}

// Path resolves a separator-joined path such as "Server.MaxConnections".
// At every level an exact key matching the whole remaining path wins;
// otherwise the first segment is followed as a group. An empty path returns s.
func (s *Scope) Path(path string) (Node, bool) {
	if path == "" {
		return s, true
	}

	cur, rest := s, path
	for {
		if raw, ok := cur.entries[rest]; ok {
			return Value{raw: raw, registry: cur.opts.registry}, true
		}
		head, tail, found := strings.Cut(rest, cur.opts.sep)
		if !found {
			return cur.Get(rest)
		}
		if head == "" {
			return nil, false
		}
		next := cur.group(head)
		if next == nil {
			return nil, false
		}
		cur, rest = next, tail
	}
}

// group returns the cached child for name, deriving it on first use.
func (s *Scope) group(name string) *Scope {
	s.mu.Lock()
	defer s.mu.Unlock()

	if child, ok := s.children[name]; ok {
		return child
	}

	prefix := name + s.opts.sep
	var sub map[string]string
	for k, v := range s.entries {
		if rest, ok := strings.CutPrefix(k, prefix); ok {
			if sub == nil {
				sub = make(map[string]string)
			}
			sub[rest] = v
		}
	}

	var child *Scope
	if sub != nil {
		child = newScope(sub, s.join(name), s.opts)
		s.opts.logger.Debug("derived settings group",
			slog.String("prefix", child.prefix),
			slog.Int("entries", len(sub)))
	}
	s.children[name] = child
	return child
}

func (s *Scope) join(name string) string {
	if s.prefix == "" {
		return name
	}
	return s.prefix + s.opts.sep + name
}

// Keys returns the sorted distinct names visible at this level: exact keys
// without a separator and the heads of every group. The empty name is never
// listed since Get cannot resolve it.
func (s *Scope) Keys() []string {
	seen := make(map[string]struct{}, len(s.entries))
	for k := range s.entries {
		head, _, _ := strings.Cut(k, s.opts.sep)
		if head != "" {
			seen[head] = struct{}{}
		}
	}
	return slices.Sorted(maps.Keys(seen))
}

// Len returns the number of flat entries in the scope.
func (s *Scope) Len() int { return len(s.entries) }

// Entries returns a copy of the flat map backing the scope.
func (s *Scope) Entries() map[string]string { return maps.Clone(s.entries) }

// Prefix returns the full path of the scope from its root, or "" for a root.
func (s *Scope) Prefix() string { return s.prefix }

// Separator returns the separator the scope's root was built with.
func (s *Scope) Separator() string { return s.opts.sep }

// Registry returns the registry values of this scope convert through.
func (s *Scope) Registry() *Registry { return s.opts.registry }

// Tree renders the scope as nested maps of raw strings. Where a name is both
// a key and a group head, the key wins, as in Get. Entries with an empty
// segment, from keys such as "A." or "B..C", are rendered under "".
func (s *Scope) Tree() map[string]any {
	out := make(map[string]any)
	for _, name := range s.Keys() {
		switch n, _ := s.Get(name); n := n.(type) {
		case Value:
			out[name] = n.Raw()
		case *Scope:
			out[name] = n.Tree()
		}
	}
	if raw, ok := s.entries[""]; ok {
		out[""] = raw
	} else if child := s.group(""); child != nil {
		out[""] = child.Tree()
	}
	return out
}

// Lookup resolves path and converts the leaf to T. ok is false when nothing
// is found; a group at path is an ErrNotValue error.
func Lookup[T any](s *Scope, path string) (val T, ok bool, err error) {
	n, found := s.Path(path)
	if !found {
		return val, false, nil
	}
	v, isValue := n.(Value)
	if !isValue {
		return val, true, fmt.Errorf("%s: %w", path, ErrNotValue)
	}
	val, err = As[T](v)
	return val, true, err
}
