package querycache

import (
	"sort"
	"strings"
)

// Key identifies a logical query. Parts are ordered (slice name first,
// then identifiers such as the user ID); Params hold optional filter
// values whose order is irrelevant for key equality.
type Key struct {
	Parts  []string          `json:"parts"`
	Params map[string]string `json:"params,omitempty"`
}

// NewKey returns a Key built from the given ordered parts.
func NewKey(parts ...string) Key {
	return Key{Parts: parts}
}

// WithParam returns a copy of the key with the given filter param set.
func (k Key) WithParam(name, value string) Key {
	params := make(map[string]string, len(k.Params)+1)
	for n, v := range k.Params {
		params[n] = v
	}
	params[name] = value

	return Key{Parts: k.Parts, Params: params}
}

// String returns the canonical serialized form of the key. Params are
// sorted by name so that two keys with the same params in different
// insertion order serialize identically.
func (k Key) String() string {
	var sb strings.Builder
	sb.WriteString(strings.Join(k.Parts, "/"))

	if len(k.Params) > 0 {
		names := make([]string, 0, len(k.Params))
		for n := range k.Params {
			names = append(names, n)
		}
		sort.Strings(names)
		for _, n := range names {
			sb.WriteString("?")
			sb.WriteString(n)
			sb.WriteString("=")
			sb.WriteString(k.Params[n])
		}
	}

	return sb.String()
}

// Slice returns the slice name of the key (its first part).
func (k Key) Slice() string {
	if len(k.Parts) == 0 {
		return ""
	}
	return k.Parts[0]
}

// Equal reports whether both keys identify the same query.
func (k Key) Equal(other Key) bool {
	return k.String() == other.String()
}
