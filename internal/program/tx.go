package program

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

var (
	ErrOverlappingEdit = errors.New("overlapping edits")
	ErrEditOutOfRange  = errors.New("edit out of range")
	ErrTxClosed        = errors.New("write action already finished")
)

// RewriteFunc computes the replacement of a span from its current text. The
// current text already contains the result of every edit nested inside the
// span.
type RewriteFunc func(current []byte) ([]byte, error)

type edit struct {
	file    *File
	span    Span
	seq     int
	rewrite RewriteFunc
}

// Tx stages the edits of one write action. Nothing is visible to readers of
// the project until the action commits.
type Tx struct {
	proj     *Project
	name     string
	revision uint64
	edits    []edit
	closed   bool
}

// Name returns the name the write action was started with.
func (tx *Tx) Name() string { return tx.name }

// Len returns the number of staged edits.
func (tx *Tx) Len() int { return len(tx.edits) }

// Replace stages the replacement of span with text.
func (tx *Tx) Replace(f *File, span Span, text string) error {
	return tx.Rewrite(f, span, func([]byte) ([]byte, error) { return []byte(text), nil })
}

// Insert stages the insertion of text at offset.
func (tx *Tx) Insert(f *File, offset int, text string) error {
	return tx.Replace(f, Span{Start: offset, End: offset}, text)
}

// Rewrite stages a rewrite of span computed from its current text.
func (tx *Tx) Rewrite(f *File, span Span, fn RewriteFunc) error {
	if tx.closed {
		return ErrTxClosed
	}
	if f == nil || f.proj != tx.proj {
		return fmt.Errorf("%w: file does not belong to the project", ErrFileNotFound)
	}
	if span.Start < 0 || span.Start > span.End || span.End > len(f.content) {
		return fmt.Errorf("%w: %s %s", ErrEditOutOfRange, f.path, span)
	}
	tx.edits = append(tx.edits, edit{file: f, span: span, seq: len(tx.edits), rewrite: fn})
	return nil
}

// Change is the effect of a write action on one file.
type Change struct {
	Path   string
	Before []byte
	After  []byte
}

// WriteAction runs fn and commits every staged edit atomically. Write
// actions are serialized. If fn, a rewrite, a formatter or persistence fails,
// no file changes and the original error is returned.
func (p *Project) WriteAction(ctx context.Context, name string, fn func(tx *Tx) error) ([]Change, error) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	next, changes, err := p.stage(ctx, name, fn)
	if err != nil {
		return nil, err
	}
	if len(next) == 0 {
		return nil, nil
	}

	prev := make(map[*File][]byte, len(next))
	for f := range next {
		prev[f] = f.content
	}
	if err := p.commit(next); err != nil {
		return nil, err
	}
	p.record(name, prev)
	return changes, nil
}

// Preview runs fn like WriteAction but never commits. It returns the changes
// the action would make.
func (p *Project) Preview(ctx context.Context, name string, fn func(tx *Tx) error) ([]Change, error) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	_, changes, err := p.stage(ctx, name, fn)
	return changes, err
}

func (p *Project) stage(ctx context.Context, name string, fn func(tx *Tx) error) (map[*File][]byte, []Change, error) {
	tx := &Tx{proj: p, name: name, revision: p.Revision()}
	defer func() { tx.closed = true }()

	if err := ctx.Err(); err != nil {
		return nil, nil, err
	}
	if err := fn(tx); err != nil {
		return nil, nil, err
	}
	if p.Revision() != tx.revision {
		return nil, nil, ErrStale
	}

	byFile := make(map[*File][]edit)
	var order []*File
	for _, e := range tx.edits {
		if _, ok := byFile[e.file]; !ok {
			order = append(order, e.file)
		}
		byFile[e.file] = append(byFile[e.file], e)
	}
	sort.Slice(order, func(i, j int) bool { return order[i].path < order[j].path })

	next := make(map[*File][]byte, len(order))
	var changes []Change
	for _, f := range order {
		out, err := applyEdits(f.content, byFile[f])
		if err != nil {
			return nil, nil, err
		}
		if format := p.formatterOf(f.lang); format != nil {
			if out, err = format(f.path, out); err != nil {
				return nil, nil, err
			}
		}
		if string(out) == string(f.content) {
			continue
		}
		next[f] = out
		changes = append(changes, Change{Path: f.path, Before: f.content, After: out})
	}
	return next, changes, nil
}

func (p *Project) formatterOf(lang Language) Formatter {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.formatters[lang]
}

type applied struct {
	span  Span
	delta int
}

// applyEdits applies edits innermost first. A span that contains other
// edits is rewritten from the text those edits produced; spans that
// partially overlap are rejected. An insertion at the boundary of a span is
// outside of it.
func applyEdits(src []byte, edits []edit) ([]byte, error) {
	sorted := make([]edit, len(edits))
	copy(sorted, edits)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].span.Len() != sorted[j].span.Len() {
			return sorted[i].span.Len() < sorted[j].span.Len()
		}
		return sorted[i].seq < sorted[j].seq
	})

	for i := range sorted {
		for j := i + 1; j < len(sorted); j++ {
			a, b := sorted[i].span, sorted[j].span
			if a.Overlaps(b) && !b.Contains(a) {
				return nil, fmt.Errorf("%w: %s and %s in %s", ErrOverlappingEdit, a, b, sorted[i].file.path)
			}
		}
	}

	buf := append([]byte(nil), src...)
	var done []applied
	for _, e := range sorted {
		start := shifted(done, e.span, false)
		end := start
		if e.span.Len() > 0 {
			end = shifted(done, e.span, true)
		}
		current := append([]byte(nil), buf[start:end]...)
		repl, err := e.rewrite(current)
		if err != nil {
			return nil, err
		}
		out := make([]byte, 0, len(buf)-len(current)+len(repl))
		out = append(out, buf[:start]...)
		out = append(out, repl...)
		out = append(out, buf[end:]...)
		buf = out
		done = append(done, applied{span: e.span, delta: len(repl) - len(current)})
	}
	return buf, nil
}

// shifted maps the start (or end) of target from the original source into
// the current buffer.
func shifted(done []applied, target Span, isEnd bool) int {
	cur := target.Start
	if isEnd {
		cur = target.End
	}
	for _, a := range done {
		before := a.span.End <= target.Start
		inside := isEnd && !before && target.Contains(a.span) &&
			!(a.span.Len() == 0 && a.span.Start == target.End)
		if before || inside {
			cur += a.delta
		}
	}
	return cur
}
