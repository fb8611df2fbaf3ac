package graph

import (
	"cmp"
	"slices"
)

// BoundedGraph is a read-only view of a finalized graph holding at most the
// requested number of units and only the relationships between them.
type BoundedGraph struct {
	units         []Unit
	relationships []Relationship
	truncated     bool
	sourceUnits   int
}

// Bound finalizes g and derives a view of at most maxNodes units.
//
// A nil maxNodes, or one at least the unit count, yields the whole graph in
// insertion order. Otherwise units are ranked by Score, highest first, with
// ties kept in insertion order, and the first maxNodes are retained along
// with every relationship whose endpoints were both retained. Degrees are
// not recomputed. A maxNodes of zero or less yields an empty view.
func Bound(g *Graph, maxNodes *int) *BoundedGraph {
	g.Freeze()

	units := g.Units()
	rels := g.Relationships()
	view := &BoundedGraph{sourceUnits: len(units)}

	if maxNodes == nil || len(units) <= *maxNodes {
		view.units = units
		view.relationships = rels
		return view
	}

	view.truncated = true
	if *maxNodes <= 0 {
		view.units = []Unit{}
		view.relationships = []Relationship{}
		return view
	}

	slices.SortStableFunc(units, func(a, b Unit) int {
		return cmp.Compare(b.Score(), a.Score())
	})
	view.units = units[:*maxNodes:*maxNodes]

	kept := make(map[string]struct{}, len(view.units))
	for _, u := range view.units {
		kept[u.ID] = struct{}{}
	}

	view.relationships = make([]Relationship, 0, len(rels))
	for _, r := range rels {
		_, srcKept := kept[r.SourceID]
		_, dstKept := kept[r.TargetID]
		if srcKept && dstKept {
			view.relationships = append(view.relationships, r)
		}
	}
	return view
}

// Units returns copies of the retained units in view order.
func (b *BoundedGraph) Units() []Unit {
	return slices.Clone(b.units)
}

// Relationships returns copies of the retained relationships in insertion order.
func (b *BoundedGraph) Relationships() []Relationship {
	return slices.Clone(b.relationships)
}

// UnitCount returns the number of retained units.
func (b *BoundedGraph) UnitCount() int {
	return len(b.units)
}

// RelationshipCount returns the number of retained relationships.
func (b *BoundedGraph) RelationshipCount() int {
	return len(b.relationships)
}

// Truncated reports whether units were dropped to honour the bound.
func (b *BoundedGraph) Truncated() bool {
	return b.truncated
}

// SourceUnitCount returns the unit count of the graph the view was derived from.
func (b *BoundedGraph) SourceUnitCount() int {
	return b.sourceUnits
}
