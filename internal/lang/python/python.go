// Package python implements the invert-boolean delegate for Python files on
// top of tree-sitter.
//
// Names resolve within one file: module, function, lambda, comprehension and
// class scopes are honored, imports from other modules are not followed.
package python

import (
	"context"

	"go.uber.org/zap"

	"github.com/gnolang/tinvert/internal/program"
	"github.com/gnolang/tinvert/internal/refactor"
)

const Name = "python"

type Delegate struct {
	trees  program.FileCache[*tree]
	logger *zap.Logger
}

func New(logger *zap.Logger) *Delegate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Delegate{logger: logger}
}

func (d *Delegate) Name() string { return Name }

func (d *Delegate) Accepts(lang program.Language) bool { return lang.Is(program.LangPython) }

func (d *Delegate) tree(f *program.File) *tree {
	return d.trees.Get(f, func(f *program.File) *tree {
		t := parseFile(f)
		if t.err != nil {
			d.logger.Debug("python file does not parse", zap.String("file", f.Path()), zap.Error(t.err))
		}
		return t
	})
}

func (d *Delegate) resolve(e program.Element) (*tree, *name) {
	if e == nil {
		return nil, nil
	}
	loc := e.Location()
	if loc.File == nil || !loc.File.Language().Is(program.LangPython) {
		return nil, nil
	}
	t := d.tree(loc.File)
	return t, t.at(loc.Span)
}

// declaration returns the binding e resolves to.
func (d *Delegate) declaration(e program.Element) (*tree, *name) {
	t, n := d.resolve(e)
	if n == nil || n.decl == nil {
		return nil, nil
	}
	return t, n.decl
}

// IsVisibleOnElement accepts names bound in the file outside class bodies.
// Class attributes and methods are reached through attributes, which are
// not followed.
func (d *Delegate) IsVisibleOnElement(e program.Element) bool {
	_, decl := d.declaration(e)
	return decl != nil && !decl.scope.class
}

func (d *Delegate) IsAvailableOnElement(e program.Element) bool {
	_, decl := d.declaration(e)
	if decl == nil {
		return false
	}
	return (decl.kind == kindBind || decl.kind == kindDef) && decl.boolInit
}

func (d *Delegate) AdjustElement(_ context.Context, e program.Element, _ refactor.Prompter) (program.Element, error) {
	_, decl := d.declaration(e)
	if decl == nil {
		return nil, nil
	}
	return program.NewOccurrence(e.Location().File, decl.span), nil
}

// FindReferences returns every other name of the file bound to the same
// variable or function.
func (d *Delegate) FindReferences(_ context.Context, e program.Element) ([]program.Element, error) {
	t, decl := d.declaration(e)
	if decl == nil {
		return nil, nil
	}
	f := e.Location().File
	var out []program.Element
	for _, n := range t.names {
		if n != decl && n.decl == decl {
			out = append(out, program.NewOccurrence(f, n.span))
		}
	}
	return out, nil
}

// CollectRefElements returns the values returned by an inverted function.
func (d *Delegate) CollectRefElements(_ context.Context, e program.Element, _ *refactor.RenameRequest) ([]program.Element, error) {
	t, decl := d.declaration(e)
	if decl == nil || decl.kind != kindDef {
		return nil, nil
	}
	f := e.Location().File
	var out []program.Element
	for _, s := range t.returns[decl] {
		out = append(out, program.NewOccurrence(f, s))
	}
	return out, nil
}

// IsForeignVisible is false: no other supported language names Python
// bindings.
func (d *Delegate) IsForeignVisible(program.Element) bool { return false }

func (d *Delegate) ElementToInvert(named, occurrence program.Element) program.Element {
	if named == nil || !named.Language().Is(program.LangPython) {
		return nil
	}
	_, target := d.declaration(named)
	_, n := d.resolve(occurrence)
	if target == nil || n == nil || n == target || n.decl != target {
		return nil
	}
	f := occurrence.Location().File
	switch {
	case n.conflict != "":
		return program.NewOccurrence(f, n.span)
	case n.kind == kindUse:
		return program.NewOccurrence(f, n.expr)
	case n.kind == kindBind && n.init.Len() > 0:
		return program.NewOccurrence(f, n.init)
	}
	return nil
}

func (d *Delegate) ReplaceWithNegatedExpression(tx *program.Tx, expr program.Element) error {
	loc := expr.Location()
	operand, ok := d.tree(loc.File).operand[loc.Span]
	if !ok {
		operand = true
	}
	return tx.Rewrite(loc.File, loc.Span, func(cur []byte) ([]byte, error) {
		return []byte(Negate(string(cur), operand)), nil
	})
}

func (d *Delegate) InvertElementInitializer(tx *program.Tx, e program.Element) error {
	_, decl := d.declaration(e)
	if decl == nil || decl.kind != kindBind || decl.init.Len() == 0 {
		return nil
	}
	return tx.Rewrite(e.Location().File, decl.init, func(cur []byte) ([]byte, error) {
		return []byte(Negate(string(cur), false)), nil
	})
}

// FindConflicts reports the bindings that are not plain assignments, the
// functions used as values or returning nothing, and name collisions.
func (d *Delegate) FindConflicts(_ context.Context, q refactor.ConflictQuery, conflicts *refactor.Conflicts) {
	if t, decl := d.declaration(q.Target); decl != nil {
		switch {
		case decl.conflict != "":
			conflicts.Addf(q.Target, "%s %s", decl.text, decl.conflict)
		case decl.kind == kindDef && decl.bare:
			conflicts.Addf(q.Target, "function %s returns without a value", decl.text)
		}
		if q.Rename != nil {
			if decl.scope.bindings[q.Rename.NewName] != nil {
				conflicts.Addf(q.Target, "%s is already declared in this scope", q.Rename.NewName)
			}
			for _, n := range t.names {
				if n.decl != decl || n.scope == decl.scope {
					continue
				}
				// a use in a nested scope would be captured by an inner binding
				if other := t.lookup(q.Rename.NewName, n.scope); other != nil && other.scope != decl.scope {
					conflicts.Addf(program.NewOccurrence(q.Target.Location().File, n.span), "%s is already declared in this scope", q.Rename.NewName)
				}
			}
		}
	}

	for _, u := range q.Usages {
		if u.Delegate == nil || u.Delegate.Name() != Name {
			continue
		}
		loc := u.Expr.Location()
		n := d.tree(loc.File).byExpr[loc.Span]
		if n == nil {
			continue
		}
		switch {
		case n.conflict != "":
			conflicts.Addf(u.Expr, "%s %s", n.text, n.conflict)
		case n.kind == kindUse && !n.called && n.decl != nil && n.decl.kind == kindDef:
			conflicts.Addf(u.Expr, "function %s is used as a value", n.text)
		}
	}
}
