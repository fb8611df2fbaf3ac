// Package parsers extracts unit-to-unit references from type-checked Go packages.
package parsers

import "github.com/Benny93/aerial-view/internal/graph"

// ReferenceKind classifies how a unit refers to another.
type ReferenceKind string

const (
	// RefMethodCall is a call of a method: x.M(...).
	RefMethodCall ReferenceKind = "method_call"
	// RefMemberReference is a method value x.M or method expression T.M.
	RefMemberReference ReferenceKind = "member_reference"
	// RefFieldAccess is a field selection x.f.
	RefFieldAccess ReferenceKind = "field_access"
	// RefConstruction is a composite literal T{...} or new(T).
	RefConstruction ReferenceKind = "construction"
	// RefFunctionCall is a call of a free function attributed to the type it constructs.
	RefFunctionCall ReferenceKind = "function_call"
)

// Reference is one observed use of a unit from inside another unit.
type Reference struct {
	// Source is the unit enclosing the referencing expression.
	Source graph.UnitRef

	// Target is the referenced unit.
	Target graph.UnitRef

	// Kind is the syntactic form of the reference.
	Kind ReferenceKind

	// Position is the file:line of the referencing expression.
	Position string
}

// UnhandledType is a referenced type that does not resolve to a unit.
type UnhandledType struct {
	// Kind is the category of the type (struct, interface, type_param, local).
	Kind string

	// Type is the type as printed by go/types.
	Type string

	// Position is the file:line of the first occurrence.
	Position string
}

// ParseResult contains everything extracted from one package's files.
type ParseResult struct {
	// Package is the import path of the package.
	Package string

	// Files is the number of files traversed.
	Files int

	// Declared lists the package-level named types in declaration order.
	Declared []graph.UnitRef

	// References lists the observed references in traversal order.
	References []Reference

	// Unhandled lists types that could not be mapped to a unit, one per type string.
	Unhandled []UnhandledType
}

// UnitID returns the identifier of the named type name declared in pkgPath.
func UnitID(pkgPath, name string) string {
	return pkgPath + "." + name
}
