package refactor

import (
	"context"
	"errors"
	"strings"

	"github.com/gnolang/tinvert/internal/program"
)

const (
	langOne program.Language = "l1"
	langTwo program.Language = "l2"
)

// fakeDelegate handles a toy language where every occurrence of a word is a
// candidate and negation is textual.
type fakeDelegate struct {
	name    string
	lang    program.Language
	negator string

	decline     bool
	notBoolean  bool
	conflictOn  string
	failOn      string
	embeddedIn  [2]string
	extra       []program.Element
	adjustTo    program.Element
	rewritten   map[program.Key]int
	initialized int
}

func newFake(name string, lang program.Language, negator string) *fakeDelegate {
	return &fakeDelegate{name: name, lang: lang, negator: negator, rewritten: make(map[program.Key]int)}
}

func (d *fakeDelegate) Name() string { return d.name }
func (d *fakeDelegate) Accepts(lang program.Language) bool { return lang.Is(d.lang) }
func (d *fakeDelegate) IsVisibleOnElement(e program.Element) bool { return e.Language().Is(d.lang) }

func (d *fakeDelegate) IsAvailableOnElement(e program.Element) bool {
	return d.IsVisibleOnElement(e) && !d.notBoolean
}

func (d *fakeDelegate) AdjustElement(_ context.Context, e program.Element, prompt Prompter) (program.Element, error) {
	if d.decline || !prompt.Confirm("invert " + program.TextOf(e) + "?") {
		return nil, nil
	}
	if d.adjustTo != nil {
		return d.adjustTo, nil
	}
	return e, nil
}

func (d *fakeDelegate) CollectRefElements(context.Context, program.Element, *RenameRequest) ([]program.Element, error) {
	return d.extra, nil
}

func (d *fakeDelegate) ElementToInvert(named, occ program.Element) program.Element {
	if program.KeyOf(named) == program.KeyOf(occ) {
		return nil
	}
	if d.embeddedIn[0] != "" {
		loc := occ.Location()
		before := string(loc.File.Content()[:loc.Span.Start])
		open := strings.LastIndex(before, d.embeddedIn[0])
		if open < 0 || strings.LastIndex(before, d.embeddedIn[1]) > open {
			return nil
		}
	}
	return occ
}

func (d *fakeDelegate) ReplaceWithNegatedExpression(tx *program.Tx, expr program.Element) error {
	if d.failOn != "" && lineOf(expr) == d.failOn {
		return errFault
	}
	d.rewritten[program.KeyOf(expr)]++
	loc := expr.Location()
	return tx.Rewrite(loc.File, loc.Span, func(cur []byte) ([]byte, error) {
		return []byte(d.negator + string(cur)), nil
	})
}

func (d *fakeDelegate) InvertElementInitializer(tx *program.Tx, e program.Element) error {
	d.initialized++
	loc := e.Location()
	content := string(loc.File.Content())
	idx := strings.Index(content[loc.Span.End:], "true")
	if idx < 0 {
		return nil
	}
	start := loc.Span.End + idx
	return tx.Replace(loc.File, program.Span{Start: start, End: start + 4}, "false")
}

func (d *fakeDelegate) FindConflicts(_ context.Context, q ConflictQuery, conflicts *Conflicts) {
	if d.conflictOn == "" {
		return
	}
	for _, u := range q.Usages {
		if strings.Contains(lineOf(u.Expr), d.conflictOn) {
			conflicts.Add(q.Target, "usage inside "+d.conflictOn+" cannot be inverted")
		}
	}
}

var errFault = errors.New("store fault")

func lineOf(e program.Element) string {
	loc := e.Location()
	content := string(loc.File.Content())
	start := strings.LastIndex(content[:loc.Span.Start], "\n") + 1
	end := strings.Index(content[loc.Span.Start:], "\n")
	if end < 0 {
		return content[start:]
	}
	return content[start : loc.Span.Start+end]
}

// wordSearcher returns every textual occurrence of the element's text.
type wordSearcher struct {
	proj  *program.Project
	calls int
}

func (s *wordSearcher) References(_ context.Context, e program.Element, _ Delegate) ([]program.Element, error) {
	s.calls++
	var out []program.Element
	for _, f := range s.proj.Files() {
		for _, occ := range program.FindWord(f, program.TextOf(e)) {
			if program.KeyOf(occ) != program.KeyOf(e) {
				out = append(out, occ)
			}
		}
	}
	return out, nil
}

type wordRenamer struct {
	searcher *wordSearcher
	refuse   bool
}

func (r *wordRenamer) Rename(ctx context.Context, e program.Element, owner Delegate, newName string) (*RenameRequest, []program.Element, error) {
	if r.refuse {
		return nil, nil, errors.New("declined")
	}
	occs, err := r.searcher.References(ctx, e, owner)
	if err != nil {
		return nil, nil, err
	}
	return &RenameRequest{OldName: program.TextOf(e), NewName: newName, Declaration: e}, occs, nil
}
