package graph

// SerializableGraph is the exported form of a bounded view, ready for JSON
// encoding. Field order is fixed so repeated encodes are byte-identical.
type SerializableGraph struct {
	Units         []SerializableUnit         `json:"units"`
	Relationships []SerializableRelationship `json:"relationships"`
}

// SerializableUnit is the exported form of a Unit.
type SerializableUnit struct {
	ID            string `json:"id"`
	Namespace     string `json:"namespace"`
	IncomingCount int    `json:"incomingCount"`
	OutgoingCount int    `json:"outgoingCount"`
	OwnerLabel    string `json:"ownerLabel,omitempty"`
}

// SerializableRelationship is the exported form of a Relationship.
type SerializableRelationship struct {
	SourceID string `json:"sourceId"`
	TargetID string `json:"targetId"`
	Weight   int    `json:"weight"`
}

// Export converts a bounded view into its serializable form. Units keep the
// view's order and relationships keep insertion order. Slices are never nil.
func Export(view *BoundedGraph) SerializableGraph {
	out := SerializableGraph{
		Units:         make([]SerializableUnit, 0, len(view.units)),
		Relationships: make([]SerializableRelationship, 0, len(view.relationships)),
	}
	for _, u := range view.units {
		out.Units = append(out.Units, SerializableUnit{
			ID:            u.ID,
			Namespace:     u.Namespace,
			IncomingCount: u.IncomingCount,
			OutgoingCount: u.OutgoingCount,
			OwnerLabel:    u.OwnerLabel,
		})
	}
	for _, r := range view.relationships {
		out.Relationships = append(out.Relationships, SerializableRelationship{
			SourceID: r.SourceID,
			TargetID: r.TargetID,
			Weight:   r.Weight,
		})
	}
	return out
}

// Namespaces returns the distinct unit namespaces in first-seen order.
func (s SerializableGraph) Namespaces() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, u := range s.Units {
		if _, ok := seen[u.Namespace]; ok {
			continue
		}
		seen[u.Namespace] = struct{}{}
		out = append(out, u.Namespace)
	}
	return out
}
