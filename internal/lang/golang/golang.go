// Package golang implements the invert-boolean delegate for Go and Gno
// sources on top of go/types.
package golang

import (
	"bytes"
	"context"
	"fmt"
	"go/ast"
	"go/format"
	"go/parser"
	"go/token"
	"go/types"

	"go.uber.org/zap"

	"github.com/gnolang/tinvert/internal/program"
	"github.com/gnolang/tinvert/internal/refactor"
)

const Name = "golang"

// Delegate inverts local variables, parameters, package-level variables and
// functions with a single boolean result.
type Delegate struct {
	cache  cache
	logger *zap.Logger
}

func New(logger *zap.Logger) *Delegate {
	if logger == nil {
		logger = zap.NewNop()
	}
	d := &Delegate{logger: logger}
	d.cache.logger = logger
	return d
}

func (d *Delegate) Name() string { return Name }

func (d *Delegate) Accepts(lang program.Language) bool { return lang.Is(program.LangGo) }

func (d *Delegate) IsVisibleOnElement(e program.Element) bool {
	s, ok := d.lookup(e)
	return ok && candidate(s.object())
}

func (d *Delegate) IsAvailableOnElement(e program.Element) bool {
	s, ok := d.lookup(e)
	if !ok {
		return false
	}
	obj := s.object()
	return candidate(obj) && eligible(obj)
}

func candidate(obj types.Object) bool {
	switch o := obj.(type) {
	case *types.Var:
		return !o.IsField()
	case *types.Func:
		return true
	}
	return false
}

func eligible(obj types.Object) bool {
	switch o := obj.(type) {
	case *types.Var:
		return isBool(o.Type())
	case *types.Func:
		res := o.Type().(*types.Signature).Results()
		return res.Len() == 1 && isBool(res.At(0).Type())
	}
	return false
}

func isBool(t types.Type) bool {
	b, ok := t.Underlying().(*types.Basic)
	return ok && b.Info()&types.IsBoolean != 0
}

// AdjustElement redirects a use to the declaration of its object.
func (d *Delegate) AdjustElement(_ context.Context, e program.Element, prompt refactor.Prompter) (program.Element, error) {
	s, ok := d.lookup(e)
	if !ok {
		return nil, nil
	}
	obj := s.object()
	if obj == nil {
		return nil, nil
	}
	decl, af, ok := s.pkg.declaration(obj)
	if !ok {
		d.logger.Debug("declaration outside of the project", zap.String("name", obj.Name()))
		return nil, nil
	}
	if ast.IsGenerated(af) {
		q := fmt.Sprintf("%s is declared in generated file %s. Invert it anyway?", obj.Name(), decl.Location().File.Path())
		if !prompt.Confirm(q) {
			return nil, nil
		}
	}
	return decl, nil
}

// FindReferences returns the uses of the element's object in every project
// package that can refer to it.
func (d *Delegate) FindReferences(_ context.Context, e program.Element) ([]program.Element, error) {
	s, ok := d.lookup(e)
	if !ok {
		return nil, nil
	}
	obj := s.object()
	if obj == nil {
		return nil, nil
	}
	var out []program.Element
	for _, p := range d.packagesFor(s, obj) {
		for _, id := range p.uses(obj) {
			if el := p.element(id); el != nil {
				out = append(out, el)
			}
		}
	}
	return out, nil
}

// packagesFor returns the packages that may refer to obj. Unexported and
// local objects stay in the package of s.
func (d *Delegate) packagesFor(s *site, obj types.Object) []*pkg {
	if !obj.Exported() || obj.Pkg() == nil {
		return []*pkg{s.pkg}
	}
	if obj.Parent() != obj.Pkg().Scope() && !isMethod(obj) {
		return []*pkg{s.pkg}
	}
	return d.cache.all(s.src.Project())
}

func isMethod(obj types.Object) bool {
	fn, ok := obj.(*types.Func)
	return ok && fn.Type().(*types.Signature).Recv() != nil
}

// IsForeignVisible reports whether a template can name the element: a
// package-level function through a function map, or an exported method
// through the data. Variables never leave Go.
func (d *Delegate) IsForeignVisible(e program.Element) bool {
	s, ok := d.lookup(e)
	if !ok {
		return false
	}
	fn, ok := s.object().(*types.Func)
	if !ok {
		return false
	}
	if isMethod(fn) {
		return fn.Exported()
	}
	return fn.Pkg() != nil && fn.Parent() == fn.Pkg().Scope()
}

func (d *Delegate) ElementToInvert(named, occurrence program.Element) program.Element {
	if named == nil || !named.Language().Is(program.LangGo) {
		return nil
	}
	s, ok := d.lookup(occurrence)
	if !ok {
		return nil
	}
	id := s.ident()
	if id == nil || s.pkg.info.Defs[id] != nil {
		return nil
	}
	if ns, ok := d.lookup(named); !ok || ns.object() == nil || ns.object() != s.pkg.info.Uses[id] {
		return nil
	}
	expr := widen(s.path)
	if expr == nil {
		return nil
	}
	return s.pkg.element(expr)
}

// widen returns the expression whose value has to be negated for the
// identifier at path[0]: the selector or call it heads, an enclosing !, or
// the value assigned to it.
func widen(path []ast.Node) ast.Node {
	n := path[0]
	i := 1
	at := func(i int) ast.Node {
		if i < len(path) {
			return path[i]
		}
		return nil
	}
	if sel, ok := at(i).(*ast.SelectorExpr); ok && sel.Sel == n {
		n, i = sel, i+1
	}
	if call, ok := at(i).(*ast.CallExpr); ok && call.Fun == n {
		n, i = call, i+1
	}
	inner := n
	for {
		paren, ok := at(i).(*ast.ParenExpr)
		if !ok {
			break
		}
		n, i = paren, i+1
	}
	switch p := at(i).(type) {
	case *ast.UnaryExpr:
		if p.Op == token.NOT {
			return p
		}
	case *ast.AssignStmt:
		for j, lhs := range p.Lhs {
			if lhs != n {
				continue
			}
			if len(p.Lhs) != len(p.Rhs) {
				return nil
			}
			return p.Rhs[j]
		}
	case *ast.RangeStmt:
		if p.Key == inner || p.Value == inner {
			return nil
		}
	}
	return n
}

// CollectRefElements returns the results returned by a function and, for a
// parameter, the arguments passed for it.
func (d *Delegate) CollectRefElements(_ context.Context, e program.Element, _ *refactor.RenameRequest) ([]program.Element, error) {
	s, ok := d.lookup(e)
	if !ok {
		return nil, nil
	}
	var nodes []ast.Node
	switch obj := s.object().(type) {
	case *types.Func:
		if fd := funcDecl(s.pkg, obj); fd != nil && fd.Body != nil {
			for _, ret := range returns(fd.Body) {
				if len(ret.Results) == 1 {
					nodes = append(nodes, ret.Results[0])
				}
			}
		}
	case *types.Var:
		nodes = d.arguments(s, obj)
	}

	var out []program.Element
	for _, n := range nodes {
		if el := s.pkg.element(n); el != nil {
			out = append(out, el)
		}
	}
	return out, nil
}

func funcDecl(p *pkg, fn *types.Func) *ast.FuncDecl {
	_, af, ok := p.fileOf(fn.Pos())
	if !ok {
		return nil
	}
	for _, decl := range af.Decls {
		if fd, ok := decl.(*ast.FuncDecl); ok && fd.Name.Pos() == fn.Pos() {
			return fd
		}
	}
	return nil
}

// returns lists the return statements of body outside of nested function
// literals.
func returns(body *ast.BlockStmt) []*ast.ReturnStmt {
	var out []*ast.ReturnStmt
	ast.Inspect(body, func(n ast.Node) bool {
		switch n := n.(type) {
		case *ast.FuncLit:
			return false
		case *ast.ReturnStmt:
			out = append(out, n)
		}
		return true
	})
	return out
}

// arguments returns the argument passed for parameter v in every call of
// its function within the project.
func (d *Delegate) arguments(s *site, v *types.Var) []ast.Node {
	fd, index := paramOf(s.pkg, v)
	if fd == nil {
		return nil
	}
	fn, ok := s.pkg.info.Defs[fd.Name].(*types.Func)
	if !ok {
		return nil
	}
	sig := fn.Type().(*types.Signature)
	if sig.Variadic() && index == sig.Params().Len()-1 {
		return nil
	}

	var out []ast.Node
	for _, p := range d.packagesFor(s, fn) {
		for _, af := range p.files {
			ast.Inspect(af, func(n ast.Node) bool {
				call, ok := n.(*ast.CallExpr)
				if !ok || call.Ellipsis.IsValid() || len(call.Args) != sig.Params().Len() {
					return true
				}
				if calleeOf(p, call) == fn {
					out = append(out, call.Args[index])
				}
				return true
			})
		}
	}
	return out
}

func paramOf(p *pkg, v *types.Var) (*ast.FuncDecl, int) {
	_, af, ok := p.fileOf(v.Pos())
	if !ok {
		return nil, 0
	}
	for _, decl := range af.Decls {
		fd, ok := decl.(*ast.FuncDecl)
		if !ok || fd.Type.Params == nil {
			continue
		}
		i := 0
		for _, field := range fd.Type.Params.List {
			for _, name := range field.Names {
				if name.Pos() == v.Pos() {
					return fd, i
				}
				i++
			}
			if len(field.Names) == 0 {
				i++
			}
		}
	}
	return nil, 0
}

func calleeOf(p *pkg, call *ast.CallExpr) types.Object {
	switch fun := ast.Unparen(call.Fun).(type) {
	case *ast.Ident:
		return p.info.Uses[fun]
	case *ast.SelectorExpr:
		return p.info.Uses[fun.Sel]
	}
	return nil
}

func (d *Delegate) ReplaceWithNegatedExpression(tx *program.Tx, expr program.Element) error {
	loc := expr.Location()
	return tx.Rewrite(loc.File, loc.Span, func(cur []byte) ([]byte, error) {
		return Negate(cur), nil
	})
}

// InvertElementInitializer negates the value a variable is declared with. A
// declaration without a value gets an explicit true.
func (d *Delegate) InvertElementInitializer(tx *program.Tx, e program.Element) error {
	s, ok := d.lookup(e)
	if !ok {
		return nil
	}
	id := s.ident()
	if _, ok := s.object().(*types.Var); !ok || id == nil {
		return nil
	}

	var value ast.Node
	switch decl := s.parent(1).(type) {
	case *ast.ValueSpec:
		idx := indexOf(id, decl.Names)
		switch {
		case idx < 0:
		case len(decl.Values) == len(decl.Names):
			value = decl.Values[idx]
		case len(decl.Values) == 0 && len(decl.Names) == 1 && decl.Type != nil:
			return tx.Insert(s.src, s.pkg.offset(decl.Type.End()), " = true")
		}
	case *ast.AssignStmt:
		if idx := indexOf(id, decl.Lhs); idx >= 0 && len(decl.Lhs) == len(decl.Rhs) {
			value = decl.Rhs[idx]
		}
	}
	if value == nil {
		return nil
	}
	return tx.Rewrite(s.src, s.pkg.span(value), func(cur []byte) ([]byte, error) {
		return Negate(cur), nil
	})
}

func indexOf[T ast.Node](id *ast.Ident, list []T) int {
	for i, n := range list {
		if ast.Node(n) == ast.Node(id) {
			return i
		}
	}
	return -1
}

// Format is the project formatter for Go files.
func Format(path string, src []byte) ([]byte, error) {
	fset := token.NewFileSet()
	f, err := parser.ParseFile(fset, path, src, parser.ParseComments)
	if err != nil {
		return nil, fmt.Errorf("failed to parse file: %w", err)
	}
	var buf bytes.Buffer
	if err := format.Node(&buf, fset, f); err != nil {
		return nil, fmt.Errorf("failed to format file: %w", err)
	}
	return buf.Bytes(), nil
}
