package python

import (
	"context"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"

	"github.com/gnolang/tinvert/internal/program"
)

type kind int

const (
	kindUse kind = iota
	kindBind
	kindDef
	kindParam
	kindOther
)

// name is an identifier of a Python file that names a variable or function.
// Attribute fields and keyword argument names are not names.
type name struct {
	text  string
	span  program.Span
	kind  kind
	scope *scope
	decl  *name

	// expr is the expression negated for this name: the enclosing call or
	// `not` operator of a use, the value of an assignment.
	expr    program.Span
	operand bool
	called  bool

	// conflict completes "<name> ..." when the name cannot be inverted.
	conflict string

	// boolInit is set on assignments of a boolean-looking value and on
	// functions annotated `-> bool`.
	boolInit bool
	init     program.Span
	bare     bool
}

type scope struct {
	parent    *scope
	class     bool
	bindings  map[string]*name
	globals   map[string]bool
	nonlocals map[string]bool
}

func newScope(parent *scope, class bool) *scope {
	return &scope{
		parent:    parent,
		class:     class,
		bindings:  make(map[string]*name),
		globals:   make(map[string]bool),
		nonlocals: make(map[string]bool),
	}
}

type tree struct {
	names   []*name
	module  *scope
	returns map[*name][]program.Span
	// operand records the negated spans and whether they sit in an operand
	// position.
	operand map[program.Span]bool
	byExpr  map[program.Span]*name
	err     error
}

func parseFile(f *program.File) *tree {
	t := &tree{
		module:  newScope(nil, false),
		returns: make(map[*name][]program.Span),
		operand: make(map[program.Span]bool),
		byExpr:  make(map[program.Span]*name),
	}
	src := f.Content()

	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())
	st, err := parser.ParseCtx(context.Background(), nil, src)
	if err != nil {
		t.err = err
		return t
	}
	defer st.Close()

	root := st.RootNode()
	if root == nil || root.HasError() {
		t.err = fmt.Errorf("%s: syntax error", f.Path())
		return t
	}
	w := &walker{src: src, tree: t, sc: t.module}
	w.visit(root)
	t.resolve()
	return t
}

// at returns the name covering span.
func (t *tree) at(span program.Span) *name {
	for _, n := range t.names {
		if n.span.Contains(span) {
			return n
		}
	}
	return nil
}

func (t *tree) resolve() {
	for _, n := range t.names {
		n.decl = t.lookup(n.text, n.scope)
	}
	for _, n := range t.names {
		switch {
		case n.conflict != "":
			t.record(n, n.span, false)
		case n.kind == kindUse:
			t.record(n, n.expr, n.operand)
		case n.kind == kindBind && n.init.Len() > 0:
			t.record(n, n.init, false)
		}
	}
	for _, spans := range t.returns {
		for _, s := range spans {
			t.operand[s] = false
		}
	}
}

func (t *tree) record(n *name, span program.Span, operand bool) {
	if _, ok := t.byExpr[span]; !ok {
		t.byExpr[span] = n
		t.operand[span] = operand
	}
}

// lookup resolves text used in sc. Class bodies are only visible to
// themselves, names declared global or nonlocal skip the local bindings.
func (t *tree) lookup(text string, sc *scope) *name {
	for s := sc; s != nil; s = s.parent {
		if s.class && s != sc {
			continue
		}
		if s.globals[text] {
			return t.module.bindings[text]
		}
		if s.nonlocals[text] {
			continue
		}
		if b := s.bindings[text]; b != nil {
			return b
		}
	}
	return nil
}

type walker struct {
	src  []byte
	tree *tree
	path []*sitter.Node
	sc   *scope
	fn   *name
}

func (w *walker) text(n *sitter.Node) string {
	return string(w.src[n.StartByte():n.EndByte()])
}

func span(n *sitter.Node) program.Span {
	return program.Span{Start: int(n.StartByte()), End: int(n.EndByte())}
}

func same(a, b *sitter.Node) bool {
	return a != nil && b != nil && a.StartByte() == b.StartByte() && a.EndByte() == b.EndByte() && a.Type() == b.Type()
}

func (w *walker) children(n *sitter.Node) {
	w.path = append(w.path, n)
	for i := 0; i < int(n.ChildCount()); i++ {
		w.visit(n.Child(i))
	}
	w.path = w.path[:len(w.path)-1]
}

// within visits the child c of n.
func (w *walker) within(n, c *sitter.Node) {
	if c == nil {
		return
	}
	w.path = append(w.path, n)
	w.visit(c)
	w.path = w.path[:len(w.path)-1]
}

func (w *walker) visit(n *sitter.Node) {
	switch n.Type() {
	case "identifier":
		w.use(n)
	case "attribute":
		w.within(n, n.ChildByFieldName("object"))
	case "keyword_argument":
		w.within(n, n.ChildByFieldName("value"))
	case "function_definition":
		w.function(n)
	case "lambda":
		w.lambda(n)
	case "class_definition":
		w.class(n)
	case "assignment":
		w.assignment(n)
	case "augmented_assignment":
		w.augmented(n)
	case "named_expression":
		w.walrus(n)
	case "for_statement", "for_in_clause":
		w.loop(n)
	case "list_comprehension", "set_comprehension", "dictionary_comprehension", "generator_expression":
		outer := w.sc
		w.sc = newScope(outer, false)
		w.children(n)
		w.sc = outer
	case "import_statement", "import_from_statement":
		w.imports(n)
	case "global_statement", "nonlocal_statement":
		w.rebinding(n)
	case "delete_statement":
		w.deletion(n)
	case "as_pattern_target":
		w.targets(n, "is bound by an as clause")
	case "return_statement":
		w.ret(n)
		w.children(n)
	default:
		w.children(n)
	}
}

func (w *walker) add(n *sitter.Node, k kind) *name {
	nm := &name{text: w.text(n), span: span(n), kind: k, scope: w.sc}
	w.tree.names = append(w.tree.names, nm)
	return nm
}

// declare adds a binding of n to the current scope.
func (w *walker) declare(n *sitter.Node, k kind) *name {
	nm := w.add(n, k)
	if _, ok := w.sc.bindings[nm.text]; !ok {
		w.sc.bindings[nm.text] = nm
	}
	return nm
}

func (w *walker) use(n *sitter.Node) *name {
	nm := w.add(n, kindUse)
	e, i := n, len(w.path)-1
	if i >= 0 && w.path[i].Type() == "call" && same(w.path[i].ChildByFieldName("function"), n) {
		nm.called = true
		e, i = w.path[i], i-1
	}
	k := i
	for k >= 0 && w.path[k].Type() == "parenthesized_expression" {
		k--
	}
	if k >= 0 && w.path[k].Type() == "not_operator" {
		nm.expr = span(w.path[k])
		nm.operand = w.operandAt(k-1, w.path[k])
		return nm
	}
	nm.expr = span(e)
	nm.operand = w.operandAt(i, e)
	return nm
}

// operandAt reports whether a negation of child, whose parent is path[i],
// must be parenthesized.
func (w *walker) operandAt(i int, child *sitter.Node) bool {
	if i < 0 {
		return false
	}
	p := w.path[i]
	switch p.Type() {
	case "comparison_operator", "binary_operator", "unary_operator", "await", "list_splat", "dictionary_splat":
		return true
	case "attribute":
		return same(p.ChildByFieldName("object"), child)
	case "subscript":
		return same(p.ChildByFieldName("value"), child)
	case "call":
		return same(p.ChildByFieldName("function"), child)
	}
	return false
}

func (w *walker) function(n *sitter.Node) {
	w.path = append(w.path, n)
	defer func() { w.path = w.path[:len(w.path)-1] }()

	var fn *name
	if id := n.ChildByFieldName("name"); id != nil {
		fn = w.declare(id, kindDef)
		if rt := n.ChildByFieldName("return_type"); rt != nil {
			fn.boolInit = w.text(rt) == "bool"
			w.visit(rt)
		}
	}
	outer, outerFn := w.sc, w.fn
	inner := newScope(outer, false)
	w.params(n.ChildByFieldName("parameters"), inner)

	w.sc, w.fn = inner, fn
	if body := n.ChildByFieldName("body"); body != nil {
		w.visit(body)
	}
	w.sc, w.fn = outer, outerFn
}

func (w *walker) lambda(n *sitter.Node) {
	w.path = append(w.path, n)
	defer func() { w.path = w.path[:len(w.path)-1] }()

	outer, outerFn := w.sc, w.fn
	inner := newScope(outer, false)
	w.params(n.ChildByFieldName("parameters"), inner)
	w.sc, w.fn = inner, nil
	if body := n.ChildByFieldName("body"); body != nil {
		w.visit(body)
	}
	w.sc, w.fn = outer, outerFn
}

// params binds the parameters of ps in inner. Defaults and annotations
// belong to the enclosing scope.
func (w *walker) params(ps *sitter.Node, inner *scope) {
	if ps == nil {
		return
	}
	w.path = append(w.path, ps)
	defer func() { w.path = w.path[:len(w.path)-1] }()

	bind := func(id *sitter.Node) {
		if id == nil || id.Type() != "identifier" {
			return
		}
		outer := w.sc
		w.sc = inner
		w.declare(id, kindParam)
		w.sc = outer
	}
	for i := 0; i < int(ps.NamedChildCount()); i++ {
		p := ps.NamedChild(i)
		switch p.Type() {
		case "identifier":
			bind(p)
		case "default_parameter", "typed_default_parameter":
			bind(p.ChildByFieldName("name"))
			w.within(p, p.ChildByFieldName("type"))
			w.within(p, p.ChildByFieldName("value"))
		case "typed_parameter":
			for j := 0; j < int(p.NamedChildCount()); j++ {
				c := p.NamedChild(j)
				switch c.Type() {
				case "identifier":
					bind(c)
				case "list_splat_pattern", "dictionary_splat_pattern":
					bind(c.NamedChild(0))
				}
			}
			w.within(p, p.ChildByFieldName("type"))
		case "list_splat_pattern", "dictionary_splat_pattern":
			bind(p.NamedChild(0))
		}
	}
}

func (w *walker) class(n *sitter.Node) {
	w.path = append(w.path, n)
	defer func() { w.path = w.path[:len(w.path)-1] }()

	if id := n.ChildByFieldName("name"); id != nil {
		w.declare(id, kindOther).conflict = "is bound by a class definition"
	}
	if sup := n.ChildByFieldName("superclasses"); sup != nil {
		w.visit(sup)
	}
	outer, outerFn := w.sc, w.fn
	w.sc, w.fn = newScope(outer, true), nil
	if body := n.ChildByFieldName("body"); body != nil {
		w.visit(body)
	}
	w.sc, w.fn = outer, outerFn
}

func (w *walker) assignment(n *sitter.Node) {
	left, right, typ := n.ChildByFieldName("left"), n.ChildByFieldName("right"), n.ChildByFieldName("type")
	w.path = append(w.path, n)
	defer func() { w.path = w.path[:len(w.path)-1] }()

	switch {
	case left == nil:
	case left.Type() == "identifier":
		nm := w.declare(left, kindBind)
		value := right
		for value != nil && value.Type() == "assignment" {
			value = value.ChildByFieldName("right")
		}
		switch {
		case right != nil && right.Type() == "assignment":
			nm.conflict = "is assigned in a chained assignment"
		case right != nil:
			nm.init = span(right)
		}
		nm.boolInit = value != nil && (boolish(w.src, value) || typ != nil && w.text(typ) == "bool")
	case isPattern(left.Type()):
		w.targets(left, "is bound by tuple unpacking")
	default:
		w.visit(left)
	}
	if typ != nil {
		w.visit(typ)
	}
	if right != nil {
		w.visit(right)
	}
}

func (w *walker) augmented(n *sitter.Node) {
	left, right := n.ChildByFieldName("left"), n.ChildByFieldName("right")
	if left != nil && left.Type() == "identifier" {
		w.path = append(w.path, n)
		w.use(left).conflict = "is updated by an augmented assignment"
		w.path = w.path[:len(w.path)-1]
	} else {
		w.within(n, left)
	}
	w.within(n, right)
}

func (w *walker) walrus(n *sitter.Node) {
	id, value := n.ChildByFieldName("name"), n.ChildByFieldName("value")
	if id != nil {
		w.path = append(w.path, n)
		nm := w.declare(id, kindBind)
		w.path = w.path[:len(w.path)-1]
		if value != nil {
			nm.init = span(value)
			nm.boolInit = boolish(w.src, value)
		}
	}
	w.within(n, value)
}

func (w *walker) loop(n *sitter.Node) {
	left := n.ChildByFieldName("left")
	w.path = append(w.path, n)
	for i := 0; i < int(n.ChildCount()); i++ {
		c := n.Child(i)
		if same(c, left) {
			via := "is bound by a for loop"
			if n.Type() == "for_in_clause" {
				via = "is bound by a comprehension"
			}
			w.targets(c, via)
			continue
		}
		w.visit(c)
	}
	w.path = w.path[:len(w.path)-1]
}

func isPattern(typ string) bool {
	switch typ {
	case "pattern_list", "tuple_pattern", "list_pattern", "tuple", "list", "expression_list":
		return true
	}
	return false
}

// targets binds the identifiers of the target n, which are never plain
// assignments.
func (w *walker) targets(n *sitter.Node, via string) {
	switch {
	case n.Type() == "identifier":
		w.declare(n, kindOther).conflict = via
	case isPattern(n.Type()) || n.Type() == "parenthesized_expression" || n.Type() == "as_pattern_target" ||
		n.Type() == "list_splat_pattern" || n.Type() == "list_splat":
		w.path = append(w.path, n)
		for i := 0; i < int(n.NamedChildCount()); i++ {
			w.targets(n.NamedChild(i), via)
		}
		w.path = w.path[:len(w.path)-1]
	default:
		w.visit(n)
	}
}

func (w *walker) imports(n *sitter.Node) {
	mod := n.ChildByFieldName("module_name")
	for i := 0; i < int(n.NamedChildCount()); i++ {
		c := n.NamedChild(i)
		if same(c, mod) {
			continue
		}
		var id *sitter.Node
		switch c.Type() {
		case "dotted_name":
			id = c.NamedChild(0)
		case "aliased_import":
			id = c.ChildByFieldName("alias")
		}
		if id != nil && id.Type() == "identifier" {
			w.declare(id, kindOther).conflict = "is bound by an import"
		}
	}
}

func (w *walker) rebinding(n *sitter.Node) {
	via := "is rebound through a global statement"
	marks := w.sc.globals
	if n.Type() == "nonlocal_statement" {
		via = "is rebound through a nonlocal statement"
		marks = w.sc.nonlocals
	}
	w.path = append(w.path, n)
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if id := n.NamedChild(i); id.Type() == "identifier" {
			marks[w.text(id)] = true
			w.use(id).conflict = via
		}
	}
	w.path = w.path[:len(w.path)-1]
}

func (w *walker) deletion(n *sitter.Node) {
	w.path = append(w.path, n)
	defer func() { w.path = w.path[:len(w.path)-1] }()

	var del func(c *sitter.Node)
	del = func(c *sitter.Node) {
		switch c.Type() {
		case "identifier":
			w.use(c).conflict = "is deleted"
		case "expression_list":
			w.path = append(w.path, c)
			for i := 0; i < int(c.NamedChildCount()); i++ {
				del(c.NamedChild(i))
			}
			w.path = w.path[:len(w.path)-1]
		default:
			w.visit(c)
		}
	}
	for i := 0; i < int(n.NamedChildCount()); i++ {
		del(n.NamedChild(i))
	}
}

func (w *walker) ret(n *sitter.Node) {
	if w.fn == nil {
		return
	}
	var value *sitter.Node
	for i := 0; i < int(n.NamedChildCount()); i++ {
		if c := n.NamedChild(i); c.Type() != "comment" {
			value = c
			break
		}
	}
	if value == nil {
		w.fn.bare = true
		return
	}
	w.tree.returns[w.fn] = append(w.tree.returns[w.fn], span(value))
}

var boolCalls = map[string]bool{
	"bool": true, "isinstance": true, "issubclass": true, "callable": true,
	"hasattr": true, "all": true, "any": true,
}

// boolish reports whether the expression n evidently has a boolean value.
func boolish(src []byte, n *sitter.Node) bool {
	switch n.Type() {
	case "true", "false", "comparison_operator", "not_operator", "boolean_operator":
		return true
	case "parenthesized_expression":
		return n.NamedChildCount() == 1 && boolish(src, n.NamedChild(0))
	case "call":
		fn := n.ChildByFieldName("function")
		return fn != nil && fn.Type() == "identifier" && boolCalls[string(src[fn.StartByte():fn.EndByte()])]
	}
	return false
}
