package graph

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUnit_Score(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		unit     Unit
		expected int
	}{
		{"Isolated", Unit{}, 0},
		{"IncomingDominates", Unit{IncomingCount: 5, OutgoingCount: 2}, 5},
		{"OutgoingDominates", Unit{IncomingCount: 1, OutgoingCount: 3}, 3},
		{"Equal", Unit{IncomingCount: 4, OutgoingCount: 4}, 4},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, tt.unit.Score())
		})
	}
}

func TestScopeMatcher(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		prefixes  []string
		namespace string
		expected  bool
	}{
		{"ExactPrefix", []string{"com.acme"}, "com.acme.core", true},
		{"ContainsNotPrefix", []string{"com.acme"}, "org.com.acme.x", true},
		{"NoMatch", []string{"com.acme"}, "org.other", false},
		{"AnyOfMany", []string{"org.x", "com.acme"}, "com.acme", true},
		{"EmptyListFailsClosed", nil, "com.acme", false},
		{"BlankPrefixIgnored", []string{""}, "com.acme", false},
		{"WhitespacePrefixIgnored", []string{"  "}, "com acme", false},
		{"GoImportPath", []string{"github.com/acme/app"}, "github.com/acme/app/internal/db", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, NewScopeMatcher(tt.prefixes).InScope(tt.namespace))
		})
	}
}

func TestIsInScope(t *testing.T) {
	t.Parallel()

	assert.True(t, IsInScope("com.acme.core", []string{"com.acme"}))
	assert.False(t, IsInScope("com.acme.core", nil))
	assert.False(t, IsInScope("com.acme.core", []string{""}))
}

func TestScopeMatcher_Immutable(t *testing.T) {
	t.Parallel()

	prefixes := []string{"com.acme"}
	m := NewScopeMatcher(prefixes)
	prefixes[0] = "org.other"

	assert.True(t, m.InScope("com.acme.core"))

	got := m.Prefixes()
	got[0] = "mutated"
	assert.Equal(t, []string{"com.acme"}, m.Prefixes())
}

func TestScopeMatcher_Nil(t *testing.T) {
	t.Parallel()

	var m *ScopeMatcher
	assert.False(t, m.InScope("anything"))
	assert.Nil(t, m.Prefixes())
}
