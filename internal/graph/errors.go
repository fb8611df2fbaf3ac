package graph

import "errors"

// ErrGraphFrozen is returned when a mutation is attempted after the graph was finalized.
//
// A graph goes through two phases:
//  1. Accumulating: EnsureUnit, ObserveUnit and ObserveReference mutate it.
//  2. Frozen: Bound or Freeze was called; only reads are allowed.
var ErrGraphFrozen = errors.New("graph is frozen")
