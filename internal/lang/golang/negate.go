package golang

import (
	"bytes"
	"go/ast"
	"go/parser"
	"go/token"
)

var complement = map[token.Token]token.Token{
	token.EQL: token.NEQ,
	token.NEQ: token.EQL,
	token.LSS: token.GEQ,
	token.GEQ: token.LSS,
	token.GTR: token.LEQ,
	token.LEQ: token.GTR,
}

// Negate returns the negation of the Go expression src:
//
//	!x      => x
//	true    => false
//	a == b  => a != b (and the other comparisons)
//	f(x)    => !f(x)
//	a && b  => !(a && b)
//
// Source that does not parse as an expression is wrapped in !( ).
func Negate(src []byte) []byte {
	text := bytes.TrimSpace(src)
	fset := token.NewFileSet()
	expr, err := parser.ParseExprFrom(fset, "", text, 0)
	if err != nil {
		return wrap(text)
	}
	offset := func(pos token.Pos) int { return fset.Position(pos).Offset }

	switch e := expr.(type) {
	case *ast.UnaryExpr:
		if e.Op == token.NOT {
			return clone(text[offset(e.X.Pos()):offset(e.X.End())])
		}
	case *ast.Ident:
		switch e.Name {
		case "true":
			return []byte("false")
		case "false":
			return []byte("true")
		}
		return append([]byte("!"), text...)
	case *ast.BinaryExpr:
		if op, ok := complement[e.Op]; ok {
			at := offset(e.OpPos)
			var out []byte
			out = append(out, text[:at]...)
			out = append(out, op.String()...)
			out = append(out, text[at+len(e.Op.String()):]...)
			return out
		}
	}
	if primary(expr) {
		return append([]byte("!"), text...)
	}
	return wrap(text)
}

func primary(e ast.Expr) bool {
	switch e.(type) {
	case *ast.Ident, *ast.CallExpr, *ast.SelectorExpr, *ast.ParenExpr,
		*ast.IndexExpr, *ast.IndexListExpr, *ast.TypeAssertExpr, *ast.BasicLit:
		return true
	}
	return false
}

func wrap(text []byte) []byte {
	out := make([]byte, 0, len(text)+3)
	out = append(out, "!("...)
	out = append(out, text...)
	return append(out, ')')
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
