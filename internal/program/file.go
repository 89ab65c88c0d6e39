package program

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
)

// Language identifies the language a file or element belongs to.
// It is used for routing decisions only.
type Language string

const (
	LangUnknown  Language = ""
	LangGo       Language = "go"
	LangTemplate Language = "gotmpl"
	LangPython   Language = "python"
)

func (l Language) String() string {
	if l == LangUnknown {
		return "unknown"
	}
	return string(l)
}

// Is reports whether l and other name the same language.
func (l Language) Is(other Language) bool {
	return l != LangUnknown && l == other
}

// DefaultExtensions is the extension table used when no configuration
// overrides it.
var DefaultExtensions = map[string]Language{
	".go":     LangGo,
	".gno":    LangGo,
	".tmpl":   LangTemplate,
	".gotmpl": LangTemplate,
	".py":     LangPython,
}

// Span is a half-open byte range [Start, End) inside a file.
type Span struct {
	Start int
	End   int
}

func (s Span) Len() int { return s.End - s.Start }

// Contains reports whether o lies entirely inside s.
func (s Span) Contains(o Span) bool {
	return s.Start <= o.Start && o.End <= s.End
}

// Overlaps reports whether s and o share at least one byte.
func (s Span) Overlaps(o Span) bool {
	return s.Start < o.End && o.Start < s.End
}

func (s Span) String() string {
	return fmt.Sprintf("[%d,%d)", s.Start, s.End)
}

// File is a single source file of a project. Its content is replaced only
// by a committed write action.
type File struct {
	proj    *Project
	path    string
	lang    Language
	content []byte
}

func (f *File) Path() string       { return f.path }
func (f *File) Language() Language { return f.lang }
func (f *File) Project() *Project  { return f.proj }

// Content returns the committed content of the file. Callers must not
// modify the returned slice.
func (f *File) Content() []byte {
	if f.proj != nil {
		f.proj.mu.RLock()
		defer f.proj.mu.RUnlock()
	}
	return f.content
}

// Text returns the content covered by span, clamped to the file bounds.
func (f *File) Text(span Span) string {
	content := f.Content()
	start, end := clamp(span.Start, len(content)), clamp(span.End, len(content))
	if start > end {
		return ""
	}
	return string(content[start:end])
}

// Position converts a byte offset into a 1-based line and column.
func (f *File) Position(offset int) (line, column int) {
	return PositionIn(f.Content(), offset)
}

// PositionIn converts a byte offset of content into a 1-based line and
// column.
func PositionIn(content []byte, offset int) (line, column int) {
	offset = clamp(offset, len(content))
	before := content[:offset]
	line = bytes.Count(before, []byte{'\n'}) + 1
	column = offset - (bytes.LastIndexByte(before, '\n') + 1) + 1
	return line, column
}

// Offset converts a 1-based line and column into a byte offset.
func (f *File) Offset(line, column int) (int, error) {
	if line < 1 || column < 1 {
		return 0, fmt.Errorf("invalid position %d:%d", line, column)
	}
	content := f.Content()
	offset := 0
	for l := 1; l < line; l++ {
		idx := bytes.IndexByte(content[offset:], '\n')
		if idx < 0 {
			return 0, fmt.Errorf("line %d out of range in %s", line, f.path)
		}
		offset += idx + 1
	}
	lineEnd := bytes.IndexByte(content[offset:], '\n')
	if lineEnd < 0 {
		lineEnd = len(content) - offset
	}
	if column-1 > lineEnd {
		return 0, fmt.Errorf("column %d out of range at %s:%d", column, f.path, line)
	}
	return offset + column - 1, nil
}

// Lines splits the committed content into lines without separators.
func (f *File) Lines() []string {
	return strings.Split(string(f.Content()), "\n")
}

func languageOf(path string, exts map[string]Language) Language {
	if exts == nil {
		exts = DefaultExtensions
	}
	return exts[strings.ToLower(filepath.Ext(path))]
}

func clamp(v, max int) int {
	if v < 0 {
		return 0
	}
	if v > max {
		return max
	}
	return v
}
