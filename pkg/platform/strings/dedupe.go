// Package strings normalizes caller supplied string lists such as consent
// types, roles and token batches.
package strings

import "strings"

// Mode selects how values are compared.
type Mode int

const (
	// Exact compares trimmed values as is. Use for opaque ids.
	Exact Mode = iota
	// Fold lowercases before comparing. Use for enum-like names.
	Fold
)

// Normalize trims every value, drops empties and keeps the first occurrence
// of each distinct value in input order. A nil or empty input returns an
// empty, non-nil slice.
func Normalize(values []string, mode Mode) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = canonical(v, mode)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}

// FirstDuplicate returns the first value that repeats after normalization.
func FirstDuplicate(values []string, mode Mode) (string, bool) {
	seen := make(map[string]struct{}, len(values))
	for _, v := range values {
		v = canonical(v, mode)
		if v == "" {
			continue
		}
		if _, dup := seen[v]; dup {
			return v, true
		}
		seen[v] = struct{}{}
	}
	return "", false
}

func canonical(v string, mode Mode) string {
	v = strings.TrimSpace(v)
	if mode == Fold {
		v = strings.ToLower(v)
	}
	return v
}
