// Package graph provides the dependency graph data model for aerial-view.
//
// It defines the code units (graph nodes) and the weighted, directed
// relationships between them that are accumulated while a codebase is
// scanned, plus the bounded view and serializable snapshot derived from a
// finished graph.
package graph

// Unit represents a code unit (a named type) tracked as a graph node.
type Unit struct {
	// ID is the unique identifier for the unit.
	// Format: {import_path}.{TypeName}
	ID string

	// Namespace is the grouping key used for scope matching and view colouring.
	// It is not part of the unit's identity.
	Namespace string

	// IncomingCount is the number of distinct units with a relationship to this one.
	IncomingCount int

	// OutgoingCount is the number of distinct units this one has a relationship to.
	OutgoingCount int

	// OwnerLabel names the module the unit was last observed in. Empty when unknown.
	OwnerLabel string
}

// Score returns the significance of the unit: the larger of its two degrees.
func (u Unit) Score() int {
	return max(u.IncomingCount, u.OutgoingCount)
}

// Relationship represents an aggregated, directed reference between two units.
type Relationship struct {
	// SourceID is the ID of the referencing unit.
	SourceID string

	// TargetID is the ID of the referenced unit.
	TargetID string

	// Weight is the number of times the reference was observed. Always >= 1.
	Weight int
}

// UnitRef identifies one endpoint of an observed reference.
type UnitRef struct {
	// ID is the unit's unique identifier.
	ID string

	// Namespace is the unit's grouping key.
	Namespace string

	// Owner is the module label to attach to the unit. Empty leaves the current label.
	Owner string
}

// ObservationStats counts what happened to the observations fed into a graph.
type ObservationStats struct {
	// Observed is the number of ObserveReference calls.
	Observed int

	// OutOfScope is the number of observations dropped because the target was out of scope.
	OutOfScope int

	// SelfReferences is the number of observations dropped because source and target matched.
	SelfReferences int
}

type relKey struct {
	source string
	target string
}
