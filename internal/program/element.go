package program

import (
	"bytes"
	"fmt"
	"unicode"
	"unicode/utf8"
)

// Element is an opaque handle to a node of some language's program
// representation. Elements are owned by the project and only borrowed by
// the refactoring core.
type Element interface {
	Language() Language
	Location() Location
}

// Location is the file and byte span an element covers.
type Location struct {
	File *File
	Span Span
}

func (l Location) Key() Key {
	if l.File == nil {
		return Key{Start: l.Span.Start, End: l.Span.End}
	}
	return Key{Path: l.File.Path(), Start: l.Span.Start, End: l.Span.End}
}

func (l Location) String() string {
	if l.File == nil {
		return l.Span.String()
	}
	line, col := l.File.Position(l.Span.Start)
	return fmt.Sprintf("%s:%d:%d", l.File.Path(), line, col)
}

// Key is the comparable identity of an element within one revision.
type Key struct {
	Path  string
	Start int
	End   int
}

func (k Key) String() string {
	return fmt.Sprintf("%s%s", k.Path, Span{Start: k.Start, End: k.End})
}

// KeyOf returns the identity key of e.
func KeyOf(e Element) Key {
	return e.Location().Key()
}

// TextOf returns the source text covered by e.
func TextOf(e Element) string {
	loc := e.Location()
	if loc.File == nil {
		return ""
	}
	return loc.File.Text(loc.Span)
}

// Occurrence is a textual hit of an identifier inside a file, before any
// delegate has decided what it refers to.
type Occurrence struct {
	file *File
	span Span
	text string
}

// NewOccurrence builds an occurrence covering span in f.
func NewOccurrence(f *File, span Span) Occurrence {
	return Occurrence{file: f, span: span, text: f.Text(span)}
}

func (o Occurrence) Language() Language { return o.file.Language() }
func (o Occurrence) Location() Location { return Location{File: o.file, Span: o.span} }
func (o Occurrence) File() *File        { return o.file }
func (o Occurrence) Text() string       { return o.text }

func (o Occurrence) String() string {
	return fmt.Sprintf("%q at %s", o.text, o.Location())
}

// OccurrenceAt returns the identifier occurrence covering offset. An offset
// just past the end of an identifier still selects it.
func OccurrenceAt(f *File, offset int) (Occurrence, bool) {
	content := f.Content()
	if offset < 0 || offset > len(content) {
		return Occurrence{}, false
	}
	start := offset
	for start > 0 {
		r, size := utf8.DecodeLastRune(content[:start])
		if !isIdentRune(r) {
			break
		}
		start -= size
	}
	end := offset
	for end < len(content) {
		r, size := utf8.DecodeRune(content[end:])
		if !isIdentRune(r) {
			break
		}
		end += size
	}
	if start == end {
		return Occurrence{}, false
	}
	if r, _ := utf8.DecodeRune(content[start:]); unicode.IsDigit(r) {
		return Occurrence{}, false
	}
	return NewOccurrence(f, Span{Start: start, End: end}), true
}

// FindWord returns every whole-identifier occurrence of word in f, in file
// order.
func FindWord(f *File, word string) []Occurrence {
	if word == "" {
		return nil
	}
	content := f.Content()
	var out []Occurrence
	for i := 0; i+len(word) <= len(content); {
		idx := indexFrom(content, word, i)
		if idx < 0 {
			break
		}
		end := idx + len(word)
		if boundaryBefore(content, idx) && boundaryAfter(content, end) {
			out = append(out, Occurrence{file: f, span: Span{Start: idx, End: end}, text: word})
		}
		i = idx + 1
	}
	return out
}

// IsIdentifier reports whether name is a valid identifier in the languages
// handled here.
func IsIdentifier(name string) bool {
	for i, r := range name {
		if !isIdentRune(r) || (i == 0 && unicode.IsDigit(r)) {
			return false
		}
	}
	return name != ""
}

func indexFrom(content []byte, word string, from int) int {
	idx := bytes.Index(content[from:], []byte(word))
	if idx < 0 {
		return -1
	}
	return from + idx
}

func boundaryBefore(content []byte, idx int) bool {
	if idx == 0 {
		return true
	}
	r, _ := utf8.DecodeLastRune(content[:idx])
	return !isIdentRune(r)
}

func boundaryAfter(content []byte, idx int) bool {
	if idx >= len(content) {
		return true
	}
	r, _ := utf8.DecodeRune(content[idx:])
	return !isIdentRune(r)
}

func isIdentRune(r rune) bool {
	return r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
