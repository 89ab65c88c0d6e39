// Package formatter renders inversion reports for a terminal.
package formatter

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"
	"unicode"

	"github.com/fatih/color"

	"github.com/gnolang/tinvert/invert"
)

const tabWidth = 8

// block kinds
const (
	KindElement  = "element"
	KindUsage    = "usage"
	KindConflict = "conflict"
)

var (
	errorStyle      = color.New(color.FgRed, color.Bold)
	warningStyle    = color.New(color.FgHiYellow, color.Bold)
	labelStyle      = color.New(color.FgYellow, color.Bold)
	fileStyle       = color.New(color.FgCyan, color.Bold)
	lineStyle       = color.New(color.FgHiBlue, color.Bold)
	messageStyle    = color.New(color.FgRed, color.Bold)
	suggestionStyle = color.New(color.FgGreen, color.Bold)
	noStyle         = color.New(color.FgWhite)
)

// Sources returns the lines of a project file, or nil when it is not
// available.
type Sources func(path string) []string

const blockTemplate = `{{header .Kind .Label .MaxLineNumWidth .Filename .StartLine .StartColumn}}` +
	`{{snippet .SnippetLines .StartLine .EndLine .MaxLineNumWidth .CommonIndent .Padding}}` +
	`{{underlineAndMessage .Message .Padding .StartLine .EndLine .StartColumn .EndColumn .SnippetLines .CommonIndent}}
`

var blockTmpl = template.Must(template.New("block").Funcs(template.FuncMap{
	"header":              header,
	"snippet":             codeSnippet,
	"underlineAndMessage": underlineAndMessage,
}).Parse(blockTemplate))

type blockData struct {
	Kind            string
	Label           string
	Filename        string
	Padding         string
	StartLine       int
	StartColumn     int
	EndLine         int
	EndColumn       int
	MaxLineNumWidth int
	Message         string
	SnippetLines    []string
	CommonIndent    string
}

// FormatReport renders the element, usages and conflicts of rep, each with
// the source it points at. Snippets are taken from the content before the
// inversion when rep carries it, and from src otherwise.
func FormatReport(rep *invert.Report, src Sources) string {
	lines := linesOf(rep, src)

	var b strings.Builder
	b.WriteString(statusLine(rep))
	if rep.Element != nil {
		b.WriteString(buildBlock(KindElement, rep.Delegate, *rep.Element, elementMessage(rep), lines))
	}
	for _, u := range rep.Usages {
		msg := "negated by " + u.Delegate
		if u.Foreign {
			msg += " (foreign)"
		}
		b.WriteString(buildBlock(KindUsage, u.Text, u.Location, msg, lines))
	}
	for _, c := range rep.Conflicts {
		b.WriteString(buildBlock(KindConflict, c.Text, c.Location, c.Message, lines))
	}
	b.WriteString(summary(rep))
	return b.String()
}

func statusLine(rep *invert.Report) string {
	var s string
	switch rep.Status {
	case invert.StatusSuccess:
		s = suggestionStyle.Sprint(rep.Status + ": ")
	case invert.StatusCancelled:
		s = warningStyle.Sprint(rep.Status + ": ")
	default:
		s = errorStyle.Sprint(rep.Status + ": ")
	}
	s += labelStyle.Sprint("invert boolean")
	if rep.DryRun {
		s += noStyle.Sprint(" (dry run)")
	}
	s += "\n"
	if rep.Reason != "" {
		s += lineStyle.Sprint("= ") + messageStyle.Sprintf("%s\n", rep.Reason)
	}
	return s + "\n"
}

func elementMessage(rep *invert.Report) string {
	switch {
	case !rep.Succeeded():
		return "not inverted"
	case rep.DryRun:
		return "would be inverted"
	default:
		return "inverted"
	}
}

func summary(rep *invert.Report) string {
	return fmt.Sprintf("%s, %s, %s\n",
		plural(len(rep.Usages), "usage", "usages"),
		plural(len(rep.Conflicts), "conflict", "conflicts"),
		plural(len(rep.Changes), "file changed", "files changed"))
}

func plural(n int, one, many string) string {
	if n == 1 {
		return "1 " + one
	}
	return fmt.Sprintf("%d %s", n, many)
}

func linesOf(rep *invert.Report, src Sources) func(string) []string {
	cache := make(map[string][]string)
	for _, c := range rep.Changes {
		cache[c.File] = strings.Split(c.Before, "\n")
	}
	return func(path string) []string {
		if l, ok := cache[path]; ok {
			return l
		}
		var l []string
		if src != nil {
			l = src(path)
		}
		cache[path] = l
		return l
	}
}

func buildBlock(kind, label string, loc invert.Location, message string, lines func(string) []string) string {
	snippet := lines(loc.File)
	maxLineNumWidth := calculateMaxLineNumWidth(loc.EndLine)

	var commonIndent string
	if isValidLineRange(loc.Line, loc.EndLine, snippet) {
		commonIndent = findCommonIndent(snippet[loc.Line-1 : loc.EndLine])
	}

	data := blockData{
		Kind:            kind,
		Label:           label,
		Filename:        loc.File,
		Padding:         strings.Repeat(" ", maxLineNumWidth+1),
		StartLine:       loc.Line,
		StartColumn:     loc.Column,
		EndLine:         loc.EndLine,
		EndColumn:       loc.EndColumn,
		MaxLineNumWidth: maxLineNumWidth,
		Message:         message,
		SnippetLines:    snippet,
		CommonIndent:    commonIndent,
	}

	var buf bytes.Buffer
	if err := blockTmpl.Execute(&buf, data); err != nil {
		return fmt.Sprintf("Error formatting %s: %v\n", kind, err)
	}
	return buf.String()
}

// utils functions used in the text template

func header(kind, label string, maxLineNumWidth int, filename string, startLine, startColumn int) string {
	var s string
	switch kind {
	case KindConflict:
		s = errorStyle.Sprint(kind + ": ")
	case KindUsage:
		s = warningStyle.Sprint(kind + ": ")
	default:
		s = suggestionStyle.Sprint(kind + ": ")
	}
	s += labelStyle.Sprintf("%s\n", label)

	padding := strings.Repeat(" ", maxLineNumWidth)
	s += lineStyle.Sprintf("%s--> ", padding)
	s += fileStyle.Sprintf("%s:%d:%d\n", filename, startLine, startColumn)
	return s
}

func codeSnippet(snippetLines []string, startLine, endLine, maxLineNumWidth int, commonIndent, padding string) string {
	if !isValidLineRange(startLine, endLine, snippetLines) {
		return ""
	}
	s := lineStyle.Sprintf("%s|\n", padding)
	for i := startLine; i <= endLine; i++ {
		line := strings.TrimPrefix(snippetLines[i-1], commonIndent)
		lineNum := fmt.Sprintf("%*d", maxLineNumWidth, i)
		s += lineStyle.Sprintf("%s | ", lineNum) + noStyle.Sprintf("%s\n", line)
	}
	return s
}

func underlineAndMessage(message, padding string, startLine, endLine, startColumn, endColumn int, snippetLines []string, commonIndent string) string {
	if !isValidLineRange(startLine, endLine, snippetLines) {
		return lineStyle.Sprintf("%s= ", padding) + messageStyle.Sprintf("%s\n", message)
	}

	commonIndentWidth := calculateVisualColumn(commonIndent, len(commonIndent)+1)

	underlineStart := calculateVisualColumn(snippetLines[startLine-1], startColumn) - commonIndentWidth
	if underlineStart < 0 {
		underlineStart = 0
	}
	// multi-line spans are underlined up to the end of their first line
	endOfFirst := snippetLines[startLine-1]
	lastColumn := endColumn
	if endLine != startLine {
		lastColumn = len(endOfFirst) + 1
	}
	underlineEnd := calculateVisualColumn(endOfFirst, lastColumn) - commonIndentWidth
	underlineLength := underlineEnd - underlineStart
	if underlineLength < 1 {
		underlineLength = 1
	}

	s := lineStyle.Sprintf("%s| ", padding)
	s += strings.Repeat(" ", underlineStart)
	s += messageStyle.Sprintf("%s\n", strings.Repeat("~", underlineLength))
	s += lineStyle.Sprintf("%s= ", padding)
	s += messageStyle.Sprintf("%s\n", message)
	return s
}

func isValidLineRange(startLine, endLine int, snippetLines []string) bool {
	return startLine > 0 &&
		endLine > 0 &&
		startLine <= endLine &&
		startLine <= len(snippetLines) &&
		endLine <= len(snippetLines)
}

func calculateMaxLineNumWidth(endLine int) int {
	return len(fmt.Sprintf("%d", endLine))
}

// calculateVisualColumn returns the visual width of line before the
// 1-based byte column, expanding tabs.
func calculateVisualColumn(line string, column int) int {
	if column < 0 {
		return 0
	}
	visualColumn := 0
	for i, ch := range line {
		if i+1 == column {
			break
		}
		if ch == '\t' {
			visualColumn += tabWidth - (visualColumn % tabWidth)
		} else {
			visualColumn++
		}
	}
	return visualColumn
}

// findCommonIndent finds the indent shared by the non-empty lines.
func findCommonIndent(lines []string) string {
	var indent []rune
	found := false
	for _, line := range lines {
		trimmed := strings.TrimLeftFunc(line, unicode.IsSpace)
		if trimmed == "" {
			continue
		}
		current := []rune(line[:len(line)-len(trimmed)])
		if !found {
			indent, found = current, true
			continue
		}
		indent = commonPrefix(indent, current)
		if len(indent) == 0 {
			break
		}
	}
	return string(indent)
}

func commonPrefix(a, b []rune) []rune {
	n := min(len(a), len(b))
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			return a[:i]
		}
	}
	return a[:n]
}
