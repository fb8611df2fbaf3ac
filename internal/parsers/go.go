package parsers

import (
	"fmt"
	"go/ast"
	"go/token"
	"go/types"

	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/types/typeutil"

	"github.com/Benny93/aerial-view/internal/graph"
)

// GoParser walks the syntax of type-checked Go packages and reports the
// references between named types.
//
// A function body is attributed to its enclosing unit: the receiver type for
// methods, or the first result type declared in the same package for free
// functions (the NewT constructor convention). Bodies with no enclosing unit
// are skipped.
type GoParser struct {
	// owners maps a package path to the module path that owns it.
	owners map[string]string
}

// NewGoParser creates a parser that labels units with the module owning
// their package. owners may be nil.
func NewGoParser(owners map[string]string) *GoParser {
	return &GoParser{owners: owners}
}

// ParseFiles extracts declarations and references from the given files of
// pkg. The files must belong to pkg and carry positions from pkg.Fset.
func (p *GoParser) ParseFiles(pkg *packages.Package, files []*ast.File) *ParseResult {
	result := &ParseResult{
		Package:    pkg.PkgPath,
		Files:      len(files),
		Declared:   []graph.UnitRef{},
		References: []Reference{},
		Unhandled:  []UnhandledType{},
	}
	if pkg.TypesInfo == nil {
		return result
	}

	v := &fileVisitor{
		parser:    p,
		fset:      pkg.Fset,
		info:      pkg.TypesInfo,
		result:    result,
		unhandled: make(map[string]bool),
	}
	for _, file := range files {
		for _, decl := range file.Decls {
			switch d := decl.(type) {
			case *ast.GenDecl:
				v.genDecl(d)
			case *ast.FuncDecl:
				v.funcDecl(d)
			}
		}
	}
	return result
}

func (p *GoParser) unitRef(named *types.Named) graph.UnitRef {
	obj := named.Obj()
	pkgPath := obj.Pkg().Path()
	return graph.UnitRef{
		ID:        UnitID(pkgPath, obj.Name()),
		Namespace: pkgPath,
		Owner:     p.owners[pkgPath],
	}
}

type fileVisitor struct {
	parser    *GoParser
	fset      *token.FileSet
	info      *types.Info
	result    *ParseResult
	unhandled map[string]bool
}

func (v *fileVisitor) genDecl(d *ast.GenDecl) {
	if d.Tok != token.TYPE {
		return
	}
	for _, spec := range d.Specs {
		ts, ok := spec.(*ast.TypeSpec)
		if !ok {
			continue
		}
		obj, ok := v.info.Defs[ts.Name].(*types.TypeName)
		if !ok || obj.IsAlias() {
			continue
		}
		if named, ok := obj.Type().(*types.Named); ok {
			v.result.Declared = append(v.result.Declared, v.parser.unitRef(named))
		}
	}
}

func (v *fileVisitor) funcDecl(d *ast.FuncDecl) {
	if d.Body == nil {
		return
	}
	fn, ok := v.info.Defs[d.Name].(*types.Func)
	if !ok {
		return
	}
	owner, ok := enclosingUnit(fn)
	if !ok {
		return
	}
	source := v.parser.unitRef(owner)

	// Selectors that are the callee of a call expression. ast.Inspect visits
	// the call before its Fun, so the mark is set in time.
	called := make(map[*ast.SelectorExpr]bool)

	ast.Inspect(d.Body, func(n ast.Node) bool {
		switch node := n.(type) {
		case *ast.CallExpr:
			v.call(source, node, called)
		case *ast.SelectorExpr:
			v.selector(source, node, called[node])
		case *ast.CompositeLit:
			v.observeType(source, v.info.TypeOf(node), RefConstruction, node.Pos())
		}
		return true
	})
}

func (v *fileVisitor) call(source graph.UnitRef, call *ast.CallExpr, called map[*ast.SelectorExpr]bool) {
	if sel, ok := ast.Unparen(call.Fun).(*ast.SelectorExpr); ok {
		if s, ok := v.info.Selections[sel]; ok && s.Kind() == types.MethodVal {
			called[sel] = true
			return
		}
	}

	switch callee := typeutil.Callee(v.info, call).(type) {
	case *types.Builtin:
		if callee.Name() == "new" && len(call.Args) == 1 {
			v.observeType(source, v.info.TypeOf(call.Args[0]), RefConstruction, call.Pos())
		}
	case *types.Func:
		if callee.Signature().Recv() != nil {
			return
		}
		if target, ok := enclosingUnit(callee); ok {
			v.observe(source, target, RefFunctionCall, call.Pos())
		}
	}
}

func (v *fileVisitor) selector(source graph.UnitRef, sel *ast.SelectorExpr, isCall bool) {
	s, ok := v.info.Selections[sel]
	if !ok {
		return
	}
	switch s.Kind() {
	case types.MethodVal:
		kind := RefMemberReference
		if isCall {
			kind = RefMethodCall
		}
		v.observeMethod(source, s.Obj(), kind, sel.Pos())
	case types.MethodExpr:
		v.observeMethod(source, s.Obj(), RefMemberReference, sel.Pos())
	case types.FieldVal:
		v.observeType(source, s.Recv(), RefFieldAccess, sel.Pos())
	}
}

func (v *fileVisitor) observeMethod(source graph.UnitRef, obj types.Object, kind ReferenceKind, pos token.Pos) {
	fn, ok := obj.(*types.Func)
	if !ok {
		return
	}
	recv := fn.Signature().Recv()
	if recv == nil {
		return
	}
	v.observeType(source, recv.Type(), kind, pos)
}

func (v *fileVisitor) observeType(source graph.UnitRef, t types.Type, kind ReferenceKind, pos token.Pos) {
	if t == nil {
		return
	}
	named, category := unitType(t)
	if named == nil {
		if category != "" {
			v.reportUnhandled(category, t, pos)
		}
		return
	}
	v.observe(source, named, kind, pos)
}

func (v *fileVisitor) observe(source graph.UnitRef, target *types.Named, kind ReferenceKind, pos token.Pos) {
	v.result.References = append(v.result.References, Reference{
		Source:   source,
		Target:   v.parser.unitRef(target),
		Kind:     kind,
		Position: v.position(pos),
	})
}

func (v *fileVisitor) reportUnhandled(category string, t types.Type, pos token.Pos) {
	typeString := types.TypeString(t, nil)
	if v.unhandled[typeString] {
		return
	}
	v.unhandled[typeString] = true
	v.result.Unhandled = append(v.result.Unhandled, UnhandledType{
		Kind:     category,
		Type:     typeString,
		Position: v.position(pos),
	})
}

func (v *fileVisitor) position(pos token.Pos) string {
	if v.fset == nil || !pos.IsValid() {
		return ""
	}
	p := v.fset.Position(pos)
	return fmt.Sprintf("%s:%d", p.Filename, p.Line)
}

// unitType reduces t to the package-level named type identifying a unit.
// When t has none, category names why it is worth reporting, or is empty
// for types that are never units (basic types, containers, universe types).
func unitType(t types.Type) (named *types.Named, category string) {
	t = types.Unalias(t)
	if ptr, ok := t.(*types.Pointer); ok {
		t = types.Unalias(ptr.Elem())
	}

	switch tt := t.(type) {
	case *types.Named:
		obj := tt.Obj()
		if obj.Pkg() == nil {
			return nil, ""
		}
		if obj.Pkg().Scope().Lookup(obj.Name()) != obj {
			return nil, "local"
		}
		return tt.Origin(), ""
	case *types.Struct:
		return nil, "struct"
	case *types.Interface:
		return nil, "interface"
	case *types.TypeParam:
		return nil, "type_param"
	default:
		return nil, ""
	}
}

// enclosingUnit returns the unit a function's body belongs to.
func enclosingUnit(fn *types.Func) (*types.Named, bool) {
	sig := fn.Signature()
	if recv := sig.Recv(); recv != nil {
		named, _ := unitType(recv.Type())
		return named, named != nil
	}
	if fn.Pkg() == nil {
		return nil, false
	}

	results := sig.Results()
	for i := range results.Len() {
		named, _ := unitType(results.At(i).Type())
		if named != nil && named.Obj().Pkg().Path() == fn.Pkg().Path() {
			return named, true
		}
	}
	return nil, false
}
