package golang

import (
	"context"
	"go/ast"
	"go/token"
	"go/types"

	"github.com/gnolang/tinvert/internal/program"
	"github.com/gnolang/tinvert/internal/refactor"
)

// FindConflicts reports the Go usages that cannot be negated in place.
func (d *Delegate) FindConflicts(_ context.Context, q refactor.ConflictQuery, conflicts *refactor.Conflicts) {
	s, ok := d.lookup(q.Target)
	if !ok {
		return
	}
	obj := s.object()
	if obj == nil {
		return
	}

	switch obj := obj.(type) {
	case *types.Func:
		funcConflicts(s.pkg, obj, q.Target, conflicts)
	case *types.Var:
		varConflicts(s, obj, q.Target, conflicts)
	}
	if q.Rename != nil {
		renameConflicts(s.pkg, obj, q.Rename.NewName, q.Target, conflicts)
	}
}

func funcConflicts(p *pkg, fn *types.Func, target program.Element, conflicts *refactor.Conflicts) {
	for _, id := range p.uses(fn) {
		path := p.pathTo(id)
		var n ast.Node = id
		i := 1
		if i < len(path) {
			if sel, ok := path[i].(*ast.SelectorExpr); ok && sel.Sel == id {
				n, i = sel, i+1
			}
		}
		if i < len(path) {
			if call, ok := path[i].(*ast.CallExpr); ok && call.Fun == n {
				continue
			}
		}
		conflicts.Addf(p.element(id), "function %s is used as a value", fn.Name())
	}

	sig := fn.Type().(*types.Signature)
	if fd := funcDecl(p, fn); fd != nil && fd.Body != nil && sig.Results().Len() == 1 && sig.Results().At(0).Name() != "" {
		for _, ret := range returns(fd.Body) {
			if len(ret.Results) == 0 {
				conflicts.Addf(p.element(ret), "bare return of named result %s", sig.Results().At(0).Name())
			}
		}
	}

	if recv := sig.Recv(); recv != nil && p.types != nil {
		scope := p.types.Scope()
		for _, name := range scope.Names() {
			tn, ok := scope.Lookup(name).(*types.TypeName)
			if !ok {
				continue
			}
			iface, ok := tn.Type().Underlying().(*types.Interface)
			if !ok || !hasMethod(iface, fn.Name()) {
				continue
			}
			if implements(recv.Type(), iface) {
				conflicts.Addf(target, "method %s implements interface %s", fn.Name(), tn.Name())
			}
		}
	}
}

func hasMethod(iface *types.Interface, name string) bool {
	for i := 0; i < iface.NumMethods(); i++ {
		if iface.Method(i).Name() == name {
			return true
		}
	}
	return false
}

func implements(t types.Type, iface *types.Interface) bool {
	if types.Implements(t, iface) {
		return true
	}
	if _, ok := t.(*types.Pointer); !ok {
		return types.Implements(types.NewPointer(t), iface)
	}
	return false
}

func varConflicts(s *site, v *types.Var, target program.Element, conflicts *refactor.Conflicts) {
	p := s.pkg
	for _, id := range p.uses(v) {
		path := p.pathTo(id)
		if len(path) < 2 {
			continue
		}
		switch parent := path[1].(type) {
		case *ast.UnaryExpr:
			if parent.Op == token.AND {
				conflicts.Addf(p.element(id), "address of %s is taken", v.Name())
			}
		case *ast.AssignStmt:
			if indexOf(id, parent.Lhs) >= 0 && len(parent.Lhs) != len(parent.Rhs) {
				conflicts.Addf(p.element(id), "%s is assigned from a multi-value expression", v.Name())
			}
		case *ast.RangeStmt:
			if parent.Key == id || parent.Value == id {
				conflicts.Addf(p.element(id), "%s is assigned by a range clause", v.Name())
			}
		}
	}

	id := s.ident()
	switch decl := s.parent(1).(type) {
	case *ast.ValueSpec:
		switch {
		case len(decl.Values) > 0 && len(decl.Values) != len(decl.Names):
			conflicts.Addf(target, "%s is declared from a multi-value expression", v.Name())
		case len(decl.Values) == 0 && len(decl.Names) > 1:
			conflicts.Addf(target, "%s is declared together with other names and has no initializer", v.Name())
		}
	case *ast.AssignStmt:
		if indexOf(id, decl.Lhs) >= 0 && len(decl.Lhs) != len(decl.Rhs) {
			conflicts.Addf(target, "%s is declared from a multi-value expression", v.Name())
		}
	case *ast.RangeStmt:
		conflicts.Addf(target, "%s is declared by a range clause", v.Name())
	}
}

func renameConflicts(p *pkg, obj types.Object, newName string, target program.Element, conflicts *refactor.Conflicts) {
	if newName == "" || newName == obj.Name() {
		return
	}
	if scope := obj.Parent(); scope != nil {
		if _, other := scope.LookupParent(newName, token.NoPos); other != nil {
			conflicts.Addf(target, "%s is already declared in this scope", newName)
		}
		return
	}
	fn, ok := obj.(*types.Func)
	if !ok {
		return
	}
	if recv := fn.Type().(*types.Signature).Recv(); recv != nil {
		if other, _, _ := types.LookupFieldOrMethod(recv.Type(), true, p.types, newName); other != nil {
			conflicts.Addf(target, "%s already has a field or method %s", recv.Type(), newName)
		}
	}
}
