package graph

import (
	"sync"
)

// Graph accumulates unit-to-unit reference observations into a weighted,
// directed simple graph.
//
// Units are keyed by ID and relationships by their ordered (source, target)
// pair, so find-or-create is O(1). Insertion order of both is preserved and
// drives every ordered read as well as tie-breaking in Bound.
//
// A Graph is built once per analysis run. All mutations happen behind a
// single mutex; after Freeze the graph is read-only.
type Graph struct {
	mu    sync.RWMutex
	scope *ScopeMatcher

	units     []*Unit
	unitIndex map[string]*Unit

	relationships []*Relationship
	relIndex      map[relKey]*Relationship

	// Adjacency indexes, kept in sync by addRelationship.
	outgoing map[string][]*Relationship
	incoming map[string][]*Relationship

	stats  ObservationStats
	frozen bool
}

// New creates an empty graph that only accepts references into scope.
func New(scope *ScopeMatcher) *Graph {
	return &Graph{
		scope:     scope,
		unitIndex: make(map[string]*Unit),
		relIndex:  make(map[relKey]*Relationship),
		outgoing:  make(map[string][]*Relationship),
		incoming:  make(map[string][]*Relationship),
	}
}

// Scope returns the matcher the graph was created with.
func (g *Graph) Scope() *ScopeMatcher {
	return g.scope
}

// EnsureUnit returns the unit with the given ID, creating it with zero
// counters when absent. An existing unit keeps its namespace.
//
// Creating a unit on a frozen graph returns ErrGraphFrozen; looking up an
// existing one does not.
func (g *Graph) EnsureUnit(id, namespace string) (Unit, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if u, ok := g.unitIndex[id]; ok {
		return *u, nil
	}
	if g.frozen {
		return Unit{}, ErrGraphFrozen
	}
	return *g.ensureUnit(id, namespace), nil
}

// ObserveUnit registers a unit without recording a relationship. Units whose
// namespace is out of scope are ignored. A non-empty Owner replaces the
// unit's current owner label.
func (g *Graph) ObserveUnit(ref UnitRef) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.frozen {
		return ErrGraphFrozen
	}
	if !g.scope.InScope(ref.Namespace) {
		return nil
	}
	g.applyOwner(g.ensureUnit(ref.ID, ref.Namespace), ref.Owner)
	return nil
}

// ObserveReference records that source references target.
//
// The observation is dropped when the target namespace is out of scope or
// when source and target are the same unit. Otherwise both units are
// ensured; a first sighting of the pair creates a relationship of weight 1
// and bumps the source's outgoing and target's incoming counts, and every
// later sighting only increments the weight.
func (g *Graph) ObserveReference(source, target UnitRef) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.frozen {
		return ErrGraphFrozen
	}
	g.stats.Observed++

	if !g.scope.InScope(target.Namespace) {
		g.stats.OutOfScope++
		return nil
	}
	if source.ID == target.ID {
		g.stats.SelfReferences++
		return nil
	}

	src := g.ensureUnit(source.ID, source.Namespace)
	dst := g.ensureUnit(target.ID, target.Namespace)
	g.applyOwner(src, source.Owner)
	g.applyOwner(dst, target.Owner)

	key := relKey{source: src.ID, target: dst.ID}
	if rel, ok := g.relIndex[key]; ok {
		rel.Weight++
		return nil
	}

	g.addRelationship(&Relationship{SourceID: src.ID, TargetID: dst.ID, Weight: 1})
	src.OutgoingCount++
	dst.IncomingCount++
	return nil
}

// Freeze finalizes the graph. Subsequent mutations return ErrGraphFrozen.
// Calling Freeze more than once is harmless.
func (g *Graph) Freeze() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.frozen = true
}

// Frozen reports whether the graph has been finalized.
func (g *Graph) Frozen() bool {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.frozen
}

// UnitCount returns the number of units.
func (g *Graph) UnitCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.units)
}

// RelationshipCount returns the number of relationships.
func (g *Graph) RelationshipCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.relationships)
}

// Stats returns counters describing the observations seen so far.
func (g *Graph) Stats() ObservationStats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.stats
}

// Unit returns a copy of the unit with the given ID.
func (g *Graph) Unit(id string) (Unit, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	u, ok := g.unitIndex[id]
	if !ok {
		return Unit{}, false
	}
	return *u, true
}

// Relationship returns a copy of the relationship from source to target.
func (g *Graph) Relationship(sourceID, targetID string) (Relationship, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	rel, ok := g.relIndex[relKey{source: sourceID, target: targetID}]
	if !ok {
		return Relationship{}, false
	}
	return *rel, true
}

// Units returns copies of all units in insertion order.
func (g *Graph) Units() []Unit {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return copyUnits(g.units)
}

// Relationships returns copies of all relationships in insertion order.
func (g *Graph) Relationships() []Relationship {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return copyRelationships(g.relationships)
}

// Outgoing returns the relationships whose source is the given unit.
func (g *Graph) Outgoing(id string) []Relationship {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return copyRelationships(g.outgoing[id])
}

// Incoming returns the relationships whose target is the given unit.
func (g *Graph) Incoming(id string) []Relationship {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return copyRelationships(g.incoming[id])
}

// ensureUnit must be called with the write lock held.
func (g *Graph) ensureUnit(id, namespace string) *Unit {
	if u, ok := g.unitIndex[id]; ok {
		return u
	}
	u := &Unit{ID: id, Namespace: namespace}
	g.units = append(g.units, u)
	g.unitIndex[id] = u
	return u
}

func (g *Graph) applyOwner(u *Unit, owner string) {
	if owner != "" {
		u.OwnerLabel = owner
	}
}

func (g *Graph) addRelationship(rel *Relationship) {
	g.relationships = append(g.relationships, rel)
	g.relIndex[relKey{source: rel.SourceID, target: rel.TargetID}] = rel
	g.outgoing[rel.SourceID] = append(g.outgoing[rel.SourceID], rel)
	g.incoming[rel.TargetID] = append(g.incoming[rel.TargetID], rel)
}

func copyUnits(units []*Unit) []Unit {
	out := make([]Unit, len(units))
	for i, u := range units {
		out[i] = *u
	}
	return out
}

func copyRelationships(rels []*Relationship) []Relationship {
	out := make([]Relationship, len(rels))
	for i, r := range rels {
		out[i] = *r
	}
	return out
}
