package graph

import "strings"

// ScopeMatcher decides whether a namespace belongs to the analyzed codebase.
//
// Prefixes are resolved once before a scan starts and never change
// afterwards. A matcher with no prefixes matches nothing.
type ScopeMatcher struct {
	prefixes []string
}

// NewScopeMatcher creates a matcher over a copy of prefixes. Blank entries are dropped.
func NewScopeMatcher(prefixes []string) *ScopeMatcher {
	kept := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		if strings.TrimSpace(p) == "" {
			continue
		}
		kept = append(kept, p)
	}
	return &ScopeMatcher{prefixes: kept}
}

// InScope reports whether namespace contains any of the matcher's prefixes.
func (m *ScopeMatcher) InScope(namespace string) bool {
	if m == nil {
		return false
	}
	return IsInScope(namespace, m.prefixes)
}

// Prefixes returns a copy of the configured prefixes.
func (m *ScopeMatcher) Prefixes() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.prefixes))
	copy(out, m.prefixes)
	return out
}

// IsInScope reports whether namespace contains at least one non-blank prefix
// as a substring. An empty prefix list yields false.
//
// Matching is by substring, so "example.com/app" also matches "vendor/example.com/app/x".
func IsInScope(namespace string, prefixes []string) bool {
	for _, p := range prefixes {
		if p == "" {
			continue
		}
		if strings.Contains(namespace, p) {
			return true
		}
	}
	return false
}
