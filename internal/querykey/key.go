// Package querykey builds the hierarchical keys that address cached values.
// See doc.go for complete package documentation.
package querykey

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Key is an ordered sequence of segments addressing one cached value or,
// used as a prefix, a whole family of them.
//
// The first segment is the resource kind ("spaces", "notifications", ...).
// Keys are values: Extend never mutates its receiver.
type Key []string

// New builds a key from a resource kind and identity parts.
//
// Every part is rendered with Segment, so the same identity always yields a
// structurally equal key regardless of the call site.
//
// Example:
//
//	k := New("spaces", "detail", "sp_1")
//	// Key{"spaces", "detail", "sp_1"}
func New(kind string, parts ...any) Key {
	k := make(Key, 0, 1+len(parts))
	k = append(k, kind)
	for _, p := range parts {
		k = append(k, Segment(p))
	}
	return k
}

// Segment renders one identity part as a key segment.
//
// Strings are kept verbatim, numbers and booleans go through strconv,
// fmt.Stringer values use String, and anything else (filter structs, maps)
// is encoded as JSON. encoding/json sorts map keys and emits struct fields in
// declaration order, which makes the rendering deterministic.
func Segment(p any) string {
	switch v := p.(type) {
	case string:
		return v
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case int32:
		return strconv.FormatInt(int64(v), 10)
	case uint64:
		return strconv.FormatUint(v, 10)
	case uint:
		return strconv.FormatUint(uint64(v), 10)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return "null"
	case fmt.Stringer:
		return v.String()
	}
	b, err := json.Marshal(p)
	if err != nil {
		// Unencodable parts (channels, funcs) still need a stable rendering.
		return fmt.Sprintf("%#v", p)
	}
	return string(b)
}

// Kind returns the resource kind, the first segment of the key.
func (k Key) Kind() string {
	if len(k) == 0 {
		return ""
	}
	return k[0]
}

// Extend returns a new key made of k followed by parts.
func (k Key) Extend(parts ...any) Key {
	out := make(Key, len(k), len(k)+len(parts))
	copy(out, k)
	for _, p := range parts {
		out = append(out, Segment(p))
	}
	return out
}

// Equal reports whether both keys have the same segments in the same order.
func (k Key) Equal(o Key) bool {
	if len(k) != len(o) {
		return false
	}
	for i := range k {
		if k[i] != o[i] {
			return false
		}
	}
	return true
}

// HasPrefix reports whether prefix addresses k or one of its ancestors.
// An empty prefix matches every key.
func (k Key) HasPrefix(prefix Key) bool {
	if len(prefix) > len(k) {
		return false
	}
	for i := range prefix {
		if k[i] != prefix[i] {
			return false
		}
	}
	return true
}

// Hash returns an unambiguous string form of the key, suitable as a map key.
// Segments are JSON-quoted, so separators inside segments cannot collide.
func (k Key) Hash() string {
	b, _ := json.Marshal([]string(k))
	return string(b)
}

// String returns a human readable form, e.g. "spaces/detail/sp_1".
func (k Key) String() string {
	return strings.Join(k, "/")
}

// Parse reverses Hash.
func Parse(hash string) (Key, error) {
	var segs []string
	if err := json.Unmarshal([]byte(hash), &segs); err != nil {
		return nil, fmt.Errorf("parse key %q: %w", hash, err)
	}
	return Key(segs), nil
}
