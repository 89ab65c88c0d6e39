package gotmpl

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

func invert(t *testing.T, src, marker string, newName string) (*refactor.Result, string) {
	t.Helper()

	p := program.New(program.Source{Path: "page.tmpl", Content: src})
	f, err := p.File("page.tmpl")
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

func TestInvertVariable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		src     string
		marker  string
		newName string
		want    string
	}{
		{
			name:   "command and operand positions",
			src:    `{{$on := true}}{{if $on}}yes{{end}}{{if not $on}}no{{end}}{{template "x" (and $on .B)}}`,
			marker: "on :=",
			want:   `{{$on := false}}{{if not $on}}yes{{end}}{{if $on}}no{{end}}{{template "x" (and (not $on) .B)}}`,
		},
		{
			name:   "selected at a use",
			src:    "{{$on := eq .A 1}}{{if $on}}yes{{end}}",
			marker: "on}}",
			want:   "{{$on := not (eq .A 1)}}{{if not $on}}yes{{end}}",
		},
		{
			name:   "parenthesized negation",
			src:    "{{$on := not .Off -}}\n{{if or (not $on) .B}}x{{end}}",
			marker: "on :=",
			want:   "{{$on := .Off -}}\n{{if or $on .B}}x{{end}}",
		},
		{
			name:    "rename",
			src:     "{{$on := true}}{{if $on}}on{{end}}",
			marker:  "on :=",
			newName: "off",
			want:    "{{$off := false}}{{if not $off}}on{{end}}",
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

func TestInvertVariableScopes(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		src    string
		marker string
		want   string
		usages int
	}{
		{
			name:   "same name in another define",
			src:    `{{define "a"}}{{$ok := true}}{{if $ok}}A{{end}}{{end}}{{define "b"}}{{$ok := 1}}{{if $ok}}B{{end}}{{end}}`,
			marker: "ok := true",
			want:   `{{define "a"}}{{$ok := false}}{{if not $ok}}A{{end}}{{end}}{{define "b"}}{{$ok := 1}}{{if $ok}}B{{end}}{{end}}`,
			usages: 1,
		},
		{
			name:   "shadowed inside if",
			src:    "{{$on := true}}{{if .X}}{{$on := 2}}{{$on}}{{end}}{{if $on}}y{{end}}",
			marker: "on := true",
			want:   "{{$on := false}}{{if .X}}{{$on := 2}}{{$on}}{{end}}{{if not $on}}y{{end}}",
			usages: 1,
		},
		{
			name:   "redeclared later",
			src:    "{{$on := true}}{{if $on}}a{{end}}{{$on := 0}}{{if $on}}b{{end}}",
			marker: "on := true",
			want:   "{{$on := false}}{{if not $on}}a{{end}}{{$on := 0}}{{if $on}}b{{end}}",
			usages: 1,
		},
		{
			name:   "declared in a range body",
			src:    "{{range .Items}}{{$on := true}}{{if $on}}a{{end}}{{else}}{{$on := 3}}{{$on}}{{end}}",
			marker: "on := true",
			want:   "{{range .Items}}{{$on := false}}{{if not $on}}a{{end}}{{else}}{{$on := 3}}{{$on}}{{end}}",
			usages: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, got := invert(t, tt.src, tt.marker, "")
			require.Equal(t, refactor.StatusSuccess, res.Status, res.Conflicts.All())
			assert.Len(t, res.Usages, tt.usages)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInvertVariableConflicts(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		src  string
		want string
	}{
		{
			name: "with pipeline",
			src:  "{{$on := true}}{{with $on}}x{{end}}",
			want: "on is used as a with pipeline",
		},
		{
			name: "reassigned",
			src:  "{{$on := true}}{{$on = false}}",
			want: "$on is reassigned",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			res, got := invert(t, tt.src, "on :=", "")
			assert.Equal(t, refactor.StatusConflict, res.Status)
			require.NotEmpty(t, res.Conflicts.All())
			assert.Equal(t, tt.want, res.Conflicts.All()[0].Message)
			assert.Equal(t, tt.src, got)
		})
	}
}

func TestNotBoolean(t *testing.T) {
	t.Parallel()

	res, _ := invert(t, "{{$n := 1}}{{$n}}", "n :=", "")
	assert.Equal(t, refactor.StatusCancelled, res.Status)
	assert.Equal(t, "element is not boolean", res.Reason)
}

// goName stands for an element declared in Go.
type goName struct{ occ program.Occurrence }

func (g goName) Language() program.Language { return program.LangGo }
func (g goName) Location() program.Location { return g.occ.Location() }

func TestElementToInvertForeign(t *testing.T) {
	t.Parallel()

	src := `{{if .Ready}}a{{end}}{{if not .User.Ready}}b{{end}}{{.Ready.At}} Ready {{/* .Ready */}}{{"Ready"}}{{if ready}}{{end}}{{.Check .Ready}}`
	p := program.New(
		program.Source{Path: "page.tmpl", Content: src},
		program.Source{Path: "page.go", Content: "func Ready() bool"},
	)
	tf, _ := p.File("page.tmpl")
	gf, _ := p.File("page.go")
	named := goName{program.FindWord(gf, "Ready")[0]}
	d := New(nil)

	var got []string
	for _, occ := range program.FindWord(tf, "Ready") {
		if e := d.ElementToInvert(named, occ); e != nil {
			got = append(got, program.TextOf(e))
		}
	}
	assert.Equal(t, []string{".Ready", "not .User.Ready", ".Ready"}, got)

	lower := goName{program.NewOccurrence(tf, program.Span{Start: strings.Index(src, "ready"), End: strings.Index(src, "ready") + 5})}
	occ := program.FindWord(tf, "ready")[0]
	require.NotNil(t, d.ElementToInvert(lower, occ))
	assert.Equal(t, "ready", program.TextOf(d.ElementToInvert(lower, occ)))
}

func TestConflictsOnForeignUsages(t *testing.T) {
	t.Parallel()

	src := "{{range .Ready}}{{end}}{{.Ready 1}}"
	p := program.New(
		program.Source{Path: "page.tmpl", Content: src},
		program.Source{Path: "page.go", Content: "func Ready() bool"},
	)
	tf, _ := p.File("page.tmpl")
	gf, _ := p.File("page.go")
	named := goName{program.FindWord(gf, "Ready")[0]}
	d := New(nil)

	var usages []refactor.Usage
	for _, occ := range program.FindWord(tf, "Ready") {
		if e := d.ElementToInvert(named, occ); e != nil {
			usages = append(usages, refactor.Usage{Expr: e, Delegate: d, Foreign: true})
		}
	}
	require.Len(t, usages, 2)

	conflicts := refactor.NewConflicts()
	d.FindConflicts(context.Background(), refactor.ConflictQuery{Target: named, Usages: usages}, conflicts)
	var msgs []string
	for _, c := range conflicts.All() {
		msgs = append(msgs, c.Message)
	}
	assert.Equal(t, []string{"Ready is used as a range pipeline", "Ready is called with arguments"}, msgs)
}

func TestNegate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in      string
		operand bool
		want    string
	}{
		{in: ".Ready", want: "not .Ready"},
		{in: ".Ready", operand: true, want: "(not .Ready)"},
		{in: "not .Ready", want: ".Ready"},
		{in: "(not .Ready)", operand: true, want: ".Ready"},
		{in: "(.Ready)", operand: true, want: "(not .Ready)"},
		{in: "true", want: "false"},
		{in: "false", operand: true, want: "true"},
		{in: "eq .A 1", want: "not (eq .A 1)"},
		{in: "eq .A 1", operand: true, want: "(not (eq .A 1))"},
		{in: ".A | printf", want: "not (.A | printf)"},
		{in: "$v", want: "not $v"},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Negate(tt.in, tt.operand))
		})
	}
}

func TestUnparsableTemplate(t *testing.T) {
	t.Parallel()

	p := program.New(program.Source{Path: "bad.tmpl", Content: "{{if $on}}"})
	f, _ := p.File("bad.tmpl")
	occ := program.FindWord(f, "on")[0]
	d := New(nil)
	assert.False(t, d.IsVisibleOnElement(occ))
	assert.Nil(t, d.ElementToInvert(occ, occ))
}
