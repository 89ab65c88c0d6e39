// Package gotmpl implements the invert-boolean delegate for text/template
// and html/template files.
//
// The delegate owns template variables. For Go names reached from a
// template, such as fields and methods of the data (.Ready) or functions
// (ready), it is the foreign delegate that rewrites the template side.
package gotmpl

import (
	"context"
	"strings"
	"text/template/parse"

	"go.uber.org/zap"

	"github.com/gnolang/tinvert/internal/program"
	"github.com/gnolang/tinvert/internal/refactor"
)

const Name = "gotmpl"

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

func (d *Delegate) Accepts(lang program.Language) bool { return lang.Is(program.LangTemplate) }

func (d *Delegate) tree(f *program.File) *tree {
	return d.trees.Get(f, func(f *program.File) *tree {
		t := parseFile(f)
		if t.err != nil {
			d.logger.Debug("template does not parse", zap.String("file", f.Path()), zap.Error(t.err))
		}
		return t
	})
}

// resolve returns the ref and segment index covering e.
func (d *Delegate) resolve(e program.Element) (*tree, *ref, int) {
	if e == nil {
		return nil, nil, -1
	}
	loc := e.Location()
	if loc.File == nil || !loc.File.Language().Is(program.LangTemplate) {
		return nil, nil, -1
	}
	t := d.tree(loc.File)
	r, i := t.find(loc.Span)
	return t, r, i
}

// variable returns the declaration of the variable covering e.
func (d *Delegate) variable(e program.Element) (*tree, *ref) {
	t, r, i := d.resolve(e)
	if r == nil || !r.isVariable() || i != 0 || r.names[0].name == "" {
		return nil, nil
	}
	return t, r.binding
}

// IsVisibleOnElement accepts any name inside an action. Only variables can
// be inverted from a template; the other names are visible so that the
// bridge routes their occurrences here.
func (d *Delegate) IsVisibleOnElement(e program.Element) bool {
	_, r, _ := d.resolve(e)
	return r != nil
}

func (d *Delegate) IsAvailableOnElement(e program.Element) bool {
	_, decl := d.variable(e)
	return decl != nil && decl.boolInit
}

func (d *Delegate) AdjustElement(_ context.Context, e program.Element, _ refactor.Prompter) (program.Element, error) {
	_, decl := d.variable(e)
	if decl == nil {
		return nil, nil
	}
	return program.NewOccurrence(e.Location().File, decl.names[0].span), nil
}

// FindReferences returns the uses resolving to the declaration of a
// variable.
func (d *Delegate) FindReferences(_ context.Context, e program.Element) ([]program.Element, error) {
	t, decl := d.variable(e)
	if decl == nil {
		return nil, nil
	}
	f := e.Location().File
	var out []program.Element
	for _, r := range t.refs {
		if r == decl || r.binding != decl {
			continue
		}
		out = append(out, program.NewOccurrence(f, r.names[0].span))
	}
	return out, nil
}

// IsForeignVisible is false: template variables never leave their file.
func (d *Delegate) IsForeignVisible(program.Element) bool { return false }

func (d *Delegate) CollectRefElements(context.Context, program.Element, *refactor.RenameRequest) ([]program.Element, error) {
	return nil, nil
}

// ElementToInvert maps an occurrence inside an action to the node naming
// the element. Occurrences in text, comments or strings are not usages.
func (d *Delegate) ElementToInvert(named, occurrence program.Element) program.Element {
	if named == nil {
		return nil
	}
	_, r, i := d.resolve(occurrence)
	if r == nil {
		return nil
	}
	name := strings.TrimLeft(program.TextOf(named), "$")
	if r.names[i].name != name {
		return nil
	}

	if named.Language().Is(program.LangTemplate) {
		if !r.isVariable() || i != 0 || len(r.names) != 1 || r.decl {
			return nil
		}
		if _, decl := d.variable(named); decl == nil || r.binding != decl {
			return nil
		}
	} else {
		if r.isVariable() && i == 0 {
			return nil
		}
		if i != len(r.names)-1 {
			return nil
		}
	}
	return program.NewOccurrence(occurrence.Location().File, r.expr())
}

func (d *Delegate) ReplaceWithNegatedExpression(tx *program.Tx, expr program.Element) error {
	loc := expr.Location()
	operand := true
	if r := d.tree(loc.File).byExpr(loc.Span); r != nil {
		operand = r.operand
	}
	return tx.Rewrite(loc.File, loc.Span, func(cur []byte) ([]byte, error) {
		return []byte(Negate(string(cur), operand)), nil
	})
}

func (d *Delegate) InvertElementInitializer(tx *program.Tx, e program.Element) error {
	_, decl := d.variable(e)
	if decl == nil || decl.init.Len() == 0 {
		return nil
	}
	return tx.Rewrite(e.Location().File, decl.init, func(cur []byte) ([]byte, error) {
		return []byte(Negate(string(cur), false)), nil
	})
}

// FindConflicts reports the template usages whose value is used for more
// than its truth.
func (d *Delegate) FindConflicts(_ context.Context, q refactor.ConflictQuery, conflicts *refactor.Conflicts) {
	for _, u := range q.Usages {
		if u.Delegate == nil || u.Delegate.Name() != Name {
			continue
		}
		loc := u.Expr.Location()
		r := d.tree(loc.File).byExpr(loc.Span)
		if r == nil {
			continue
		}
		name := r.names[len(r.names)-1].name
		switch {
		case r.control == parse.NodeRange:
			conflicts.Addf(u.Expr, "%s is used as a range pipeline", name)
		case r.control == parse.NodeWith:
			conflicts.Addf(u.Expr, "%s is used as a with pipeline", name)
		case r.invoked:
			conflicts.Addf(u.Expr, "%s is called with arguments", name)
		case r.assigned:
			conflicts.Addf(u.Expr, "$%s is reassigned", name)
		}
	}
}
