package python

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/tinvert/internal/program"
	"github.com/gnolang/tinvert/internal/refactor"
	"github.com/gnolang/tinvert/internal/search"
)

func invert(t *testing.T, src, marker, newName string) (*refactor.Result, string) {
	t.Helper()

	p := program.New(program.Source{Path: "app.py", Content: src})
	f, err := p.File("app.py")
	require.NoError(t, err)
	idx := strings.Index(src, marker)
	require.GreaterOrEqual(t, idx, 0)
	occ, ok := program.OccurrenceAt(f, idx)
	require.True(t, ok)

	reg, err := refactor.NewRegistry(New(nil))
	require.NoError(t, err)
	s := search.New(p, nil)
	res, err := refactor.NewProcessor(p, reg, s, search.NewRenamer(s)).
		Invert(context.Background(), occ, refactor.Options{NewName: newName})
	require.NoError(t, err)
	return res, string(f.Content())
}

func TestInvert(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		src     string
		marker  string
		newName string
		want    string
	}{
		{
			name:   "assignment and uses",
			src:    "flag = True\nif flag:\n    print(not flag)\nwhile flag == other:\n    pass\nresult = [flag]\n",
			marker: "flag =",
			want:   "flag = False\nif not flag:\n    print(flag)\nwhile (not flag) == other:\n    pass\nresult = [not flag]\n",
		},
		{
			name: "function returns",
			src: "def ready(x) -> bool:\n    if x:\n        return x > 1\n    def inner():\n        return 0\n    return False\n\n" +
				"ok = ready(2)\nif not ready(3):\n    pass\n",
			marker: "ready(x)",
			want: "def ready(x) -> bool:\n    if x:\n        return x <= 1\n    def inner():\n        return 0\n    return True\n\n" +
				"ok = not ready(2)\nif ready(3):\n    pass\n",
		},
		{
			name:   "reassignment",
			src:    "flag = x > 0\nflag = y\nprint(flag)\n",
			marker: "flag = x",
			want:   "flag = x <= 0\nflag = not y\nprint(not flag)\n",
		},
		{
			name:   "annotated assignment",
			src:    "flag: bool = compute()\nassert flag\n",
			marker: "flag:",
			want:   "flag: bool = not compute()\nassert not flag\n",
		},
		{
			name:    "selected at a use with rename",
			src:     "enabled = True\ndef run():\n    return enabled\n",
			marker:  "enabled\n",
			newName: "disabled",
			want:    "disabled = False\ndef run():\n    return not disabled\n",
		},
		{
			name:   "shadowed in a nested function",
			src:    "flag = True\ndef f(flag):\n    return flag\nprint(flag)\n",
			marker: "flag =",
			want:   "flag = False\ndef f(flag):\n    return flag\nprint(not flag)\n",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, got := invert(t, tt.src, tt.marker, tt.newName)
			require.Equal(t, refactor.StatusSuccess, res.Status, res.Conflicts.All())
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestConflicts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		src     string
		marker  string
		newName string
		want    string
	}{
		{
			name:   "tuple unpacking",
			src:    "flag = True\nflag, other = pair\n",
			marker: "flag =",
			want:   "flag is bound by tuple unpacking",
		},
		{
			name:   "for loop",
			src:    "flag = True\nfor flag in items:\n    pass\n",
			marker: "flag =",
			want:   "flag is bound by a for loop",
		},
		{
			name:   "global statement",
			src:    "flag = True\ndef f():\n    global flag\n    flag = False\n",
			marker: "flag =",
			want:   "flag is rebound through a global statement",
		},
		{
			name:   "augmented assignment",
			src:    "flag = True\nflag |= other\n",
			marker: "flag =",
			want:   "flag is updated by an augmented assignment",
		},
		{
			name:   "chained assignment",
			src:    "flag = other = True\n",
			marker: "flag =",
			want:   "flag is assigned in a chained assignment",
		},
		{
			name:   "function value",
			src:    "def ok() -> bool:\n    return True\ncallbacks = [ok]\n",
			marker: "ok()",
			want:   "function ok is used as a value",
		},
		{
			name:   "bare return",
			src:    "def ok() -> bool:\n    if x:\n        return\n    return True\n",
			marker: "ok()",
			want:   "function ok returns without a value",
		},
		{
			name:    "rename collision",
			src:     "flag = True\nother = 1\nprint(flag)\n",
			marker:  "flag =",
			newName: "other",
			want:    "other is already declared in this scope",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, got := invert(t, tt.src, tt.marker, tt.newName)
			require.Equal(t, refactor.StatusConflict, res.Status)
			require.NotEmpty(t, res.Conflicts.All())
			assert.Equal(t, tt.want, res.Conflicts.All()[0].Message)
			assert.Equal(t, tt.src, got)
		})
	}
}

func TestCandidacy(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		src    string
		marker string
		reason string
	}{
		{name: "not boolean", src: "count = 1\n", marker: "count", reason: "element is not boolean"},
		{name: "untyped function", src: "def ok():\n    return True\n", marker: "ok", reason: "element is not boolean"},
		{name: "parameter", src: "def f(flag):\n    return flag\n", marker: "flag)", reason: "element is not boolean"},
		{name: "method", src: "class A:\n    def ok(self) -> bool:\n        return True\n", marker: "ok(", reason: "element is not supported"},
		{name: "builtin", src: "print(1)\n", marker: "print", reason: "element is not supported"},
		{name: "syntax error", src: "flag = = True\n", marker: "flag", reason: "element is not supported"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, got := invert(t, tt.src, tt.marker, "")
			assert.Equal(t, refactor.StatusCancelled, res.Status)
			assert.Equal(t, tt.reason, res.Reason)
			assert.Equal(t, tt.src, got)
		})
	}
}

// goName stands for an element declared in Go.
type goName struct{ program.Occurrence }

func (goName) Language() program.Language { return program.LangGo }

func TestElementToInvertRejectsForeignOwners(t *testing.T) {
	t.Parallel()

	p := program.New(program.Source{Path: "app.py", Content: "flag = True\nprint(flag)\n"})
	f, _ := p.File("app.py")
	occs := program.FindWord(f, "flag")
	require.Len(t, occs, 2)

	d := New(nil)
	assert.Nil(t, d.ElementToInvert(goName{occs[0]}, occs[1]))
	require.NotNil(t, d.ElementToInvert(occs[0], occs[1]))
	assert.Nil(t, d.ElementToInvert(occs[0], occs[0]))
}

func TestNegate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		operand bool
		want    string
	}{
		{in: "x", want: "not x"},
		{in: "x", operand: true, want: "(not x)"},
		{in: "f(x)", want: "not f(x)"},
		{in: "not x", want: "x"},
		{in: "not (x)", want: "x"},
		{in: "not (a or b)", want: "(a or b)"},
		{in: "(not x)", operand: true, want: "x"},
		{in: "True", want: "False"},
		{in: "False", operand: true, want: "True"},
		{in: "a == b", want: "a != b"},
		{in: "a < b", want: "a >= b"},
		{in: "a in b", want: "a not in b"},
		{in: "a not in b", want: "a in b"},
		{in: "a is not None", want: "a is None"},
		{in: "a == b", operand: true, want: "(a != b)"},
		{in: "a < b < c", want: "not (a < b < c)"},
		{in: "a and b", want: "not (a and b)"},
		{in: "a and b", operand: true, want: "(not (a and b))"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Negate(tt.in, tt.operand))
		})
	}
}
