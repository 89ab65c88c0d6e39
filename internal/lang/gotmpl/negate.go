package gotmpl

import (
	"regexp"
	"strconv"
	"strings"
	"text/template/parse"
)

// Negate returns the negation of a template pipeline. operand is set when
// the pipeline is an argument of a command, where a bare `not X` would
// swallow the following arguments.
//
//	not X   => X
//	(not X) => X
//	true    => false
//	.Ready  => not .Ready, or (not .Ready) as an operand
//	eq .A 1 => not (eq .A 1), or (not (eq .A 1)) as an operand
func Negate(src string, operand bool) string {
	text := strings.TrimSpace(src)
	cmds, ok := commands(text)
	if ok && len(cmds) == 1 {
		args := cmds[0].Args
		switch {
		case len(args) == 2 && isIdent(args[0], "not"):
			return strings.TrimSpace(strings.TrimPrefix(text, "not"))
		case len(args) == 1:
			switch a := args[0].(type) {
			case *parse.BoolNode:
				return strconv.FormatBool(!a.True)
			case *parse.PipeNode:
				if strings.HasPrefix(text, "(") && strings.HasSuffix(text, ")") {
					return Negate(text[1:len(text)-1], operand)
				}
			}
			if operand {
				return "(not " + text + ")"
			}
			return "not " + text
		}
	}
	if operand {
		return "(not (" + text + "))"
	}
	return "not (" + text + ")"
}

var variableRe = regexp.MustCompile(`\$[\pL_][\pL\pN_]*`)

// commands parses text as the pipeline of a single action. Variables used
// by text are declared first since the parser rejects undefined ones.
func commands(text string) ([]*parse.CommandNode, bool) {
	if text == "" || strings.Contains(text, "}}") {
		return nil, false
	}
	var b strings.Builder
	seen := make(map[string]bool)
	for _, v := range variableRe.FindAllString(text, -1) {
		if !seen[v] {
			seen[v] = true
			b.WriteString("{{" + v + " := 0}}")
		}
	}
	b.WriteString("{{" + text + "}}")

	p := parse.New("negate")
	p.Mode = mode
	tree, err := p.Parse(b.String(), "", "", make(map[string]*parse.Tree))
	if err != nil || tree.Root == nil || len(tree.Root.Nodes) != len(seen)+1 {
		return nil, false
	}
	action, ok := tree.Root.Nodes[len(seen)].(*parse.ActionNode)
	if !ok || action.Pipe == nil || len(action.Pipe.Decl) > 0 {
		return nil, false
	}
	return action.Pipe.Cmds, true
}
