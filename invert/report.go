package invert

import (
	"github.com/gnolang/tinvert/internal/program"
	"github.com/gnolang/tinvert/internal/refactor"
)

// Report is the outcome of an inversion.
type Report struct {
	Operation string     `json:"operation"`
	Status    string     `json:"status"`
	Reason    string     `json:"reason,omitempty"`
	Element   *Location  `json:"element,omitempty"`
	Delegate  string     `json:"delegate,omitempty"`
	DryRun    bool       `json:"dry_run"`
	Usages    []Usage    `json:"usages"`
	Conflicts []Conflict `json:"conflicts"`
	Changes   []Change   `json:"changes"`
}

// Location points at source text. Line and Column are 1-based.
type Location struct {
	File      string `json:"file"`
	Line      int    `json:"line"`
	Column    int    `json:"column"`
	EndLine   int    `json:"end_line"`
	EndColumn int    `json:"end_column"`
	Text      string `json:"text"`
}

type Usage struct {
	Location
	Delegate string `json:"delegate"`
	// Foreign is set for usages written in another language than the
	// element.
	Foreign bool `json:"foreign"`
}

type Conflict struct {
	Location
	Message string `json:"message"`
}

type Change struct {
	File   string `json:"file"`
	Before string `json:"before"`
	After  string `json:"after"`
}

const (
	StatusSuccess   = "success"
	StatusCancelled = "cancelled"
	StatusConflict  = "conflict"
)

func (r *Report) Succeeded() bool { return r.Status == StatusSuccess }

func newReport(res *refactor.Result, dryRun bool) *Report {
	r := &Report{
		Operation: res.OperationID,
		Status:    res.Status.String(),
		Reason:    res.Reason,
		DryRun:    dryRun,
		Usages:    []Usage{},
		Conflicts: []Conflict{},
		Changes:   []Change{},
	}
	// spans refer to the content before the inversion
	before := make(map[string][]byte, len(res.Changes))
	for _, c := range res.Changes {
		before[c.Path] = c.Before
	}
	if res.Element != nil {
		loc := locationOf(res.Element, before)
		r.Element = &loc
	}
	if res.Owner != nil {
		r.Delegate = res.Owner.Name()
	}
	for _, u := range res.Usages {
		r.Usages = append(r.Usages, Usage{Location: locationOf(u.Expr, before), Delegate: u.Delegate.Name(), Foreign: u.Foreign})
	}
	for _, c := range res.Conflicts.All() {
		r.Conflicts = append(r.Conflicts, Conflict{Location: locationOf(c.Element, before), Message: c.Message})
	}
	for _, c := range res.Changes {
		r.Changes = append(r.Changes, Change{File: c.Path, Before: string(c.Before), After: string(c.After)})
	}
	return r
}

func locationOf(e program.Element, before map[string][]byte) Location {
	loc := e.Location()
	if loc.File == nil {
		return Location{}
	}
	content, ok := before[loc.File.Path()]
	if !ok {
		content = loc.File.Content()
	}
	start, end := loc.Span.Start, loc.Span.End
	if start < 0 || end > len(content) || start > end {
		return Location{File: loc.File.Path()}
	}
	line, col := program.PositionIn(content, start)
	endLine, endCol := program.PositionIn(content, end)
	return Location{
		File:      loc.File.Path(),
		Line:      line,
		Column:    col,
		EndLine:   endLine,
		EndColumn: endCol,
		Text:      string(content[start:end]),
	}
}
