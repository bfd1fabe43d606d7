// Package normalize provides canonical forms for user-entered identity
// fields so lookups and comparisons behave consistently.
package normalize

import "strings"

// Email returns the canonical form of an email address: trimmed and
// lowercased. Empty or whitespace-only input yields "".
func Email(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Name trims surrounding whitespace but preserves case.
func Name(s string) string {
	return strings.TrimSpace(s)
}

// AuthMethod returns the canonical (lowercase, trimmed) auth method name.
func AuthMethod(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Role returns the canonical (lowercase, trimmed) role name. Role
// comparisons throughout the service run on this form; comparing
// un-normalized roles would let "Admin" bypass privilege checks.
func Role(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Roles normalizes a role list, dropping empties and duplicates while
// preserving order.
func Roles(in []string) []string {
	if len(in) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, r := range in {
		n := Role(r)
		if n == "" {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}
