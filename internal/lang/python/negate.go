package python

import (
	"context"
	"strings"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

var complement = map[string]string{
	"==": "!=", "!=": "==",
	"<": ">=", ">=": "<",
	">": "<=", "<=": ">",
	"in": "not in", "not in": "in",
	"is": "is not", "is not": "is",
}

var primary = map[string]bool{
	"identifier": true, "attribute": true, "subscript": true, "call": true,
	"parenthesized_expression": true, "true": true, "false": true, "none": true,
	"integer": true, "float": true, "string": true, "concatenated_string": true,
	"list": true, "dictionary": true, "set": true, "tuple": true,
	"list_comprehension": true, "dictionary_comprehension": true,
	"set_comprehension": true, "generator_expression": true, "ellipsis": true,
}

// Negate returns the negation of a Python expression. operand is set when
// the expression is the operand of an operator binding tighter than `not`.
//
//	not x      => x
//	True       => False
//	a == b     => a != b
//	a is not b => a is b
//	x          => not x, or (not x) as an operand
//	a and b    => not (a and b)
func Negate(src string, operand bool) string {
	out, isPrimary := negate(strings.TrimSpace(src))
	if operand && !isPrimary {
		return "(" + out + ")"
	}
	return out
}

func negate(text string) (string, bool) {
	tree, expr := parseExpr(text)
	if expr == nil {
		return "not (" + text + ")", false
	}
	defer tree.Close()

	content := func(n *sitter.Node) string { return text[n.StartByte():n.EndByte()] }
	switch expr.Type() {
	case "true":
		return "False", true
	case "false":
		return "True", true
	case "not_operator":
		arg := expr.ChildByFieldName("argument")
		if arg == nil {
			break
		}
		if arg.Type() == "parenthesized_expression" && arg.NamedChildCount() == 1 {
			if inner := arg.NamedChild(0); primary[inner.Type()] {
				return content(inner), true
			}
		}
		return content(arg), primary[arg.Type()]
	case "parenthesized_expression":
		if expr.NamedChildCount() == 1 {
			return negate(content(expr.NamedChild(0)))
		}
	case "comparison_operator":
		if out, ok := complemented(expr, text); ok {
			return out, false
		}
	}
	if primary[expr.Type()] {
		return "not " + text, false
	}
	return "not (" + text + ")", false
}

// complemented flips the operator of a comparison of two operands.
func complemented(expr *sitter.Node, text string) (string, bool) {
	var (
		operands int
		first    = -1
		last     = -1
	)
	for i := 0; i < int(expr.ChildCount()); i++ {
		c := expr.Child(i)
		if c.IsNamed() {
			operands++
			continue
		}
		if first < 0 {
			first = int(c.StartByte())
		}
		last = int(c.EndByte())
	}
	if operands != 2 || first < 0 {
		return "", false
	}
	op, ok := complement[strings.Join(strings.Fields(text[first:last]), " ")]
	if !ok {
		return "", false
	}
	return text[:first] + op + text[last:], true
}

// parseExpr parses text as a module made of a single expression statement.
// The caller closes the tree.
func parseExpr(text string) (*sitter.Tree, *sitter.Node) {
	if text == "" {
		return nil, nil
	}
	parser := sitter.NewParser()
	defer parser.Close()
	parser.SetLanguage(python.GetLanguage())
	tree, err := parser.ParseCtx(context.Background(), nil, []byte(text))
	if err != nil {
		return nil, nil
	}
	root := tree.RootNode()
	if root == nil || root.HasError() || root.NamedChildCount() != 1 {
		tree.Close()
		return nil, nil
	}
	stmt := root.NamedChild(0)
	if stmt.Type() != "expression_statement" || stmt.NamedChildCount() != 1 {
		tree.Close()
		return nil, nil
	}
	return tree, stmt.NamedChild(0)
}
