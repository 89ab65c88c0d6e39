package search

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/tinvert/internal/program"
	"github.com/gnolang/tinvert/internal/refactor"
)

// stubOwner is a minimal delegate for language "a".
type stubOwner struct {
	refactor.Delegate
}

func (o *stubOwner) Name() string                       { return "a" }
func (o *stubOwner) Accepts(lang program.Language) bool { return lang == "a" }

// finderOwner resolves references itself and reports only the last hit.
type finderOwner struct{ *stubOwner }

func (o finderOwner) FindReferences(_ context.Context, e program.Element) ([]program.Element, error) {
	f := e.Location().File
	hits := program.FindWord(f, NameOf(e))
	return []program.Element{hits[len(hits)-1]}, nil
}

// localOwner keeps every element out of other languages.
type localOwner struct{ finderOwner }

func (localOwner) IsForeignVisible(program.Element) bool { return false }

func project() *program.Project {
	return program.New(
		program.Source{Path: "one.a", Content: "ready = 1\nuse(ready)\nuse(ready)\n", Language: "a"},
		program.Source{Path: "two.b", Content: "{{ ready }} unready ready_now", Language: "b"},
	)
}

func TestReferences(t *testing.T) {
	t.Parallel()

	proj := project()
	f, err := proj.File("one.a")
	require.NoError(t, err)
	decl, ok := program.OccurrenceAt(f, 0)
	require.True(t, ok)

	s := New(proj, nil)

	refs, err := s.References(context.Background(), decl, &stubOwner{})
	require.NoError(t, err)
	require.Len(t, refs, 3)
	assert.Equal(t, "one.a:2:5", refs[0].Location().String())
	assert.Equal(t, "one.a:3:5", refs[1].Location().String())
	assert.Equal(t, "two.b:1:4", refs[2].Location().String())

	refs, err = s.References(context.Background(), decl, finderOwner{&stubOwner{}})
	require.NoError(t, err)
	require.Len(t, refs, 2)
	assert.Equal(t, "one.a:3:5", refs[0].Location().String())
	assert.Equal(t, program.Language("b"), refs[1].Language())
}

func TestReferencesForeignScope(t *testing.T) {
	t.Parallel()

	proj := project()
	f, _ := proj.File("one.a")
	decl, _ := program.OccurrenceAt(f, 0)
	s := New(proj, nil)

	refs, err := s.References(context.Background(), decl, localOwner{finderOwner{&stubOwner{}}})
	require.NoError(t, err)
	require.Len(t, refs, 1)
	assert.Equal(t, "one.a:3:5", refs[0].Location().String())
}

func TestReferencesContextDone(t *testing.T) {
	t.Parallel()

	proj := project()
	f, _ := proj.File("one.a")
	decl, _ := program.OccurrenceAt(f, 0)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := New(proj, nil).References(ctx, decl, &stubOwner{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRename(t *testing.T) {
	t.Parallel()

	proj := project()
	f, _ := proj.File("one.a")
	decl, _ := program.OccurrenceAt(f, 0)
	r := NewRenamer(New(proj, nil))

	tests := []struct {
		name    string
		newName string
		wantErr bool
		wantReq bool
	}{
		{name: "valid", newName: "done", wantReq: true},
		{name: "unchanged", newName: "ready"},
		{name: "go keyword", newName: "func", wantErr: true},
		{name: "python keyword", newName: "not", wantErr: true},
		{name: "leading digit", newName: "1x", wantErr: true},
		{name: "empty", newName: "", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req, occs, err := r.Rename(context.Background(), decl, &stubOwner{}, tt.newName)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidName)
				return
			}
			require.NoError(t, err)
			assert.Len(t, occs, 3)
			if !tt.wantReq {
				assert.Nil(t, req)
				return
			}
			require.NotNil(t, req)
			assert.Equal(t, "ready", req.OldName)
			assert.Equal(t, tt.newName, req.NewName)
			assert.Equal(t, program.Element(decl), req.Declaration)
		})
	}
}

func TestNameOf(t *testing.T) {
	t.Parallel()

	proj := program.New(program.Source{Path: "x.tmpl", Content: "{{$ok := true}}"})
	f, _ := proj.File("x.tmpl")
	occ := program.NewOccurrence(f, program.Span{Start: 2, End: 5})
	assert.Equal(t, "ok", NameOf(occ))
}
