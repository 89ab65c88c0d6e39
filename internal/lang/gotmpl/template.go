package gotmpl

import (
	"sort"
	"strings"
	"text/template/parse"

	"github.com/gnolang/tinvert/internal/program"
)

const mode = parse.SkipFuncCheck | parse.ParseComments

type segment struct {
	// name has no leading '$'
	name string
	span program.Span
}

// ref is a field, variable or identifier node of a template.
type ref struct {
	kind  parse.NodeType
	span  program.Span
	names []segment

	// negated covers the enclosing `not X` command, parentheses included.
	negated  program.Span
	operand  bool
	control  parse.NodeType
	invoked  bool
	decl     bool
	assigned bool

	// init covers the initializer of a declared variable.
	init     program.Span
	boolInit bool

	// binding is the declaration a variable resolves to, nil when it is
	// undeclared. A declaration binds to itself.
	binding *ref
}

func (r *ref) isVariable() bool { return r.kind == parse.NodeVariable }

// expr returns the span that is negated for r.
func (r *ref) expr() program.Span {
	if r.negated.Len() > 0 {
		return r.negated
	}
	return r.span
}

type tree struct {
	src  string
	refs []*ref
	err  error
}

func parseFile(f *program.File) *tree {
	src := string(f.Content())
	t := &tree{src: src}

	p := parse.New(f.Path())
	p.Mode = mode
	set := make(map[string]*parse.Tree)
	if _, err := p.Parse(src, "", "", set); err != nil {
		t.err = err
		return t
	}
	w := &walker{tree: t}
	for _, name := range sortedNames(set) {
		w.scope = &scope{vars: make(map[string]*ref)}
		w.walk(set[name].Root)
	}
	return t
}

func sortedNames(set map[string]*parse.Tree) []string {
	names := make([]string, 0, len(set))
	for name := range set {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// find returns the ref with a name segment covering span.
func (t *tree) find(span program.Span) (*ref, int) {
	for _, r := range t.refs {
		for i, seg := range r.names {
			if seg.span.Contains(span) {
				return r, i
			}
		}
	}
	return nil, -1
}

// byExpr returns the ref negated through span.
func (t *tree) byExpr(span program.Span) *ref {
	for _, r := range t.refs {
		if r.expr() == span {
			return r
		}
	}
	return nil
}

// scope holds the variables declared in a template or control structure.
type scope struct {
	parent *scope
	vars   map[string]*ref
}

func (s *scope) lookup(name string) *ref {
	for ; s != nil; s = s.parent {
		if r, ok := s.vars[name]; ok {
			return r
		}
	}
	return nil
}

type walker struct {
	tree  *tree
	scope *scope
}

func (w *walker) push() { w.scope = &scope{parent: w.scope, vars: make(map[string]*ref)} }

func (w *walker) pop() { w.scope = w.scope.parent }

func (w *walker) walk(n parse.Node) {
	switch n := n.(type) {
	case *parse.ListNode:
		if n == nil {
			return
		}
		for _, c := range n.Nodes {
			w.walk(c)
		}
	case *parse.ActionNode:
		w.pipe(n.Pipe, 0, false)
	case *parse.IfNode:
		w.branch(&n.BranchNode, parse.NodeIf)
	case *parse.RangeNode:
		w.branch(&n.BranchNode, parse.NodeRange)
	case *parse.WithNode:
		w.branch(&n.BranchNode, parse.NodeWith)
	case *parse.TemplateNode:
		w.pipe(n.Pipe, 0, false)
	}
}

// branch scopes the variables of the pipeline to the whole control
// structure, and those of each list to that list.
func (w *walker) branch(b *parse.BranchNode, ctl parse.NodeType) {
	w.push()
	defer w.pop()
	w.pipe(b.Pipe, ctl, false)
	w.push()
	w.walk(b.List)
	w.pop()
	if b.ElseList != nil {
		w.push()
		w.walk(b.ElseList)
		w.pop()
	}
}

func (w *walker) pipe(p *parse.PipeNode, ctl parse.NodeType, paren bool) {
	if p == nil {
		return
	}
	var decls []*ref
	for _, v := range p.Decl {
		r := w.ref(v)
		r.decl = !p.IsAssign
		r.assigned = p.IsAssign
		if !r.decl {
			continue
		}
		decls = append(decls, r)
		if ctl != parse.NodeRange && ctl != parse.NodeWith {
			r.init = w.initializer(p)
			r.boolInit = boolPipe(p)
		}
	}
	for i, cmd := range p.Cmds {
		w.command(cmd, ctl, i == len(p.Cmds)-1, paren && len(p.Cmds) == 1)
	}
	// declared variables are visible after their pipeline
	for _, r := range decls {
		r.binding = r
		w.scope.vars[r.names[0].name] = r
	}
}

func (w *walker) command(cmd *parse.CommandNode, ctl parse.NodeType, last, paren bool) {
	negated := len(cmd.Args) == 2 && isIdent(cmd.Args[0], "not")
	for i, arg := range cmd.Args {
		switch a := arg.(type) {
		case *parse.FieldNode, *parse.VariableNode, *parse.IdentifierNode:
			if negated && i == 0 {
				continue
			}
			r := w.ref(a)
			value := i == 0 && len(cmd.Args) == 1
			r.invoked = i == 0 && len(cmd.Args) > 1
			r.operand = !(value && last)
			if value && last && (ctl == parse.NodeRange || ctl == parse.NodeWith) {
				r.control = ctl
			}
			if negated {
				r.negated = w.negation(cmd, r, paren)
			}
		case *parse.PipeNode:
			w.pipe(a, 0, true)
		case *parse.ChainNode:
			if p, ok := a.Node.(*parse.PipeNode); ok {
				w.pipe(p, 0, true)
			}
		}
	}
}

func isIdent(n parse.Node, name string) bool {
	id, ok := n.(*parse.IdentifierNode)
	return ok && id.Ident == name
}

var boolFuncs = map[string]bool{
	"not": true, "and": true, "or": true,
	"eq": true, "ne": true, "lt": true, "le": true, "gt": true, "ge": true,
}

func boolPipe(p *parse.PipeNode) bool {
	if len(p.Cmds) != 1 {
		return false
	}
	args := p.Cmds[0].Args
	switch {
	case len(args) == 1:
		_, ok := args[0].(*parse.BoolNode)
		return ok
	case len(args) > 1:
		id, ok := args[0].(*parse.IdentifierNode)
		return ok && boolFuncs[id.Ident]
	}
	return false
}

func (w *walker) ref(n parse.Node) *ref {
	r := &ref{kind: n.Type()}
	src := w.tree.src
	switch n := n.(type) {
	case *parse.FieldNode:
		start := w.locate(int(n.Position()), n.String())
		off := start
		for _, id := range n.Ident {
			off++
			r.names = append(r.names, segment{name: id, span: program.Span{Start: off, End: off + len(id)}})
			off += len(id)
		}
		r.span = program.Span{Start: start, End: off}
	case *parse.VariableNode:
		start := w.locate(int(n.Position()), n.String())
		off := start
		for i, id := range n.Ident {
			if i == 0 {
				r.names = append(r.names, segment{name: strings.TrimPrefix(id, "$"), span: program.Span{Start: off + 1, End: off + len(id)}})
				off += len(id)
				continue
			}
			off++
			r.names = append(r.names, segment{name: id, span: program.Span{Start: off, End: off + len(id)}})
			off += len(id)
		}
		r.span = program.Span{Start: start, End: off}
		r.binding = w.scope.lookup(r.names[0].name)
	case *parse.IdentifierNode:
		start := int(n.Position())
		r.names = []segment{{name: n.Ident, span: program.Span{Start: start, End: start + len(n.Ident)}}}
		r.span = program.Span{Start: start, End: start + len(n.Ident)}
	}
	if r.span.End > len(src) {
		r.span.End = len(src)
	}
	w.tree.refs = append(w.tree.refs, r)
	return r
}

// locate returns the start of text, whose node position may point past the
// first segment of a chain.
func (w *walker) locate(pos int, text string) int {
	end := pos + len(text)
	if end > len(w.tree.src) {
		end = len(w.tree.src)
	}
	if i := strings.LastIndex(w.tree.src[:end], text); i >= 0 {
		return i
	}
	return pos
}

// negation returns the span of `not X` around r, widened to the enclosing
// parentheses of a sole parenthesized command.
func (w *walker) negation(cmd *parse.CommandNode, r *ref, paren bool) program.Span {
	span := program.Span{Start: int(cmd.Args[0].Position()), End: r.span.End}
	if !paren {
		return span
	}
	src := w.tree.src
	open := strings.TrimRight(src[:span.Start], " \t\r\n")
	rest := src[span.End:]
	closing := len(rest) - len(strings.TrimLeft(rest, " \t\r\n"))
	if strings.HasSuffix(open, "(") && strings.HasPrefix(rest[closing:], ")") {
		return program.Span{Start: len(open) - 1, End: span.End + closing + 1}
	}
	return span
}

// initializer returns the span of the value a pipeline declares its
// variables with, up to the closing delimiter of the action.
func (w *walker) initializer(p *parse.PipeNode) program.Span {
	if len(p.Cmds) == 0 {
		return program.Span{}
	}
	src := w.tree.src
	start := int(p.Cmds[0].Position())
	end := strings.Index(src[start:], "}}")
	if end < 0 {
		return program.Span{}
	}
	text := strings.TrimRight(src[start:start+end], " \t\r\n")
	if n := len(text); n >= 2 && text[n-1] == '-' && strings.ContainsAny(text[n-2:n-1], " \t\r\n") {
		text = strings.TrimRight(text[:n-1], " \t\r\n")
	}
	return program.Span{Start: start, End: start + len(text)}
}
