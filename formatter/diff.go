package formatter

import (
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/sergi/go-diff/diffmatchpatch"

	"github.com/gnolang/tinvert/invert"
)

// contextLines is the number of unchanged lines kept around each change.
const contextLines = 3

var (
	deleteStyle = color.New(color.FgRed)
	insertStyle = color.New(color.FgGreen)
)

type lineOp struct {
	kind     diffmatchpatch.Operation
	text     string
	old, new int
}

// FormatChanges renders every change as a unified line diff.
func FormatChanges(changes []invert.Change) string {
	var b strings.Builder
	for _, c := range changes {
		b.WriteString(FormatChange(c))
	}
	return b.String()
}

// FormatChange renders a unified line diff of c. It is empty when the
// content did not change.
func FormatChange(c invert.Change) string {
	ops := lineDiff(c.Before, c.After)
	hunks := splitHunks(ops)
	if len(hunks) == 0 {
		return ""
	}

	var b strings.Builder
	b.WriteString(fileStyle.Sprintf("--- a/%s\n", c.File))
	b.WriteString(fileStyle.Sprintf("+++ b/%s\n", c.File))
	for _, h := range hunks {
		b.WriteString(hunkHeader(h))
		for _, op := range h {
			switch op.kind {
			case diffmatchpatch.DiffDelete:
				b.WriteString(deleteStyle.Sprintf("-%s\n", op.text))
			case diffmatchpatch.DiffInsert:
				b.WriteString(insertStyle.Sprintf("+%s\n", op.text))
			default:
				b.WriteString(" " + op.text + "\n")
			}
		}
	}
	return b.String()
}

// lineDiff diffs before and after line by line. Every distinct line is
// encoded as one rune so the diff never splits a line, and each changed run
// lists its deletions before its insertions.
func lineDiff(before, after string) []lineOp {
	codes := make(map[string]rune)
	lines := make(map[rune]string)
	encode := func(text string) []rune {
		var out []rune
		for _, line := range splitLines(text) {
			r, ok := codes[line]
			if !ok {
				r = lineRune(len(codes))
				codes[line] = r
				lines[r] = line
			}
			out = append(out, r)
		}
		return out
	}
	a, b := encode(before), encode(after)
	diffs := diffmatchpatch.New().DiffMainRunes(a, b, false)

	var (
		ops               []lineOp
		deleted, inserted []string
		oldN, newN        int
	)
	flush := func() {
		for _, line := range deleted {
			oldN++
			ops = append(ops, lineOp{kind: diffmatchpatch.DiffDelete, text: line, old: oldN, new: newN})
		}
		for _, line := range inserted {
			newN++
			ops = append(ops, lineOp{kind: diffmatchpatch.DiffInsert, text: line, old: oldN, new: newN})
		}
		deleted, inserted = deleted[:0], inserted[:0]
	}
	for _, d := range diffs {
		for _, r := range d.Text {
			line := lines[r]
			switch d.Type {
			case diffmatchpatch.DiffDelete:
				deleted = append(deleted, line)
			case diffmatchpatch.DiffInsert:
				inserted = append(inserted, line)
			default:
				flush()
				oldN++
				newN++
				ops = append(ops, lineOp{kind: diffmatchpatch.DiffEqual, text: line, old: oldN, new: newN})
			}
		}
	}
	flush()
	return ops
}

// lineRune maps the i-th distinct line to a valid rune, skipping the
// surrogate range.
func lineRune(i int) rune {
	r := rune(i + 1)
	if r >= 0xD800 {
		r += 0x800
	}
	return r
}

func splitLines(text string) []string {
	if text == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(text, "\n"), "\n")
}

func splitHunks(ops []lineOp) [][]lineOp {
	var hunks [][]lineOp
	start, end := -1, -1
	for i, op := range ops {
		if op.kind == diffmatchpatch.DiffEqual {
			continue
		}
		lo := max(0, i-contextLines)
		hi := min(len(ops), i+contextLines+1)
		if start >= 0 && lo > end {
			hunks = append(hunks, ops[start:end])
			start = -1
		}
		if start < 0 {
			start = lo
		}
		end = hi
	}
	if start >= 0 {
		hunks = append(hunks, ops[start:end])
	}
	return hunks
}

func hunkHeader(h []lineOp) string {
	oldStart, newStart := -1, -1
	oldCount, newCount := 0, 0
	for _, op := range h {
		if op.kind != diffmatchpatch.DiffInsert {
			oldCount++
			if oldStart < 0 {
				oldStart = op.old
			}
		}
		if op.kind != diffmatchpatch.DiffDelete {
			newCount++
			if newStart < 0 {
				newStart = op.new
			}
		}
	}
	// an empty side starts after the lines it consumed
	if oldStart < 0 {
		oldStart = h[0].old
	}
	if newStart < 0 {
		newStart = h[0].new
	}
	return lineStyle.Sprintf("@@ -%s +%s @@\n", rangeOf(oldStart, oldCount), rangeOf(newStart, newCount))
}

func rangeOf(start, count int) string {
	if count == 1 {
		return fmt.Sprintf("%d", start)
	}
	return fmt.Sprintf("%d,%d", start, count)
}
