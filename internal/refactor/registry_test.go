package refactor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gnolang/tinvert/internal/program"
)

func TestRegistryFindOwner(t *testing.T) {
	t.Parallel()

	proj := program.New(
		program.Source{Path: "a.l1", Content: "flag", Language: langOne},
		program.Source{Path: "b.l2", Content: "flag", Language: langTwo},
	)
	a, _ := proj.File("a.l1")
	b, _ := proj.File("b.l2")
	occA, _ := program.OccurrenceAt(a, 0)
	occB, _ := program.OccurrenceAt(b, 0)

	first := newFake("first", langOne, "!")
	shadowed := newFake("shadowed", langOne, "not ")
	second := newFake("second", langTwo, "not ")

	reg, err := NewRegistry(first, shadowed, second)
	require.NoError(t, err)

	tests := []struct {
		name string
		elem program.Element
		want Delegate
	}{
		{name: "first registered wins", elem: occA, want: first},
		{name: "other language", elem: occB, want: second},
		{name: "nil element", elem: nil, want: nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 3; i++ {
				got := reg.FindOwner(tt.elem)
				if tt.want == nil {
					assert.Nil(t, got)
					continue
				}
				assert.Same(t, tt.want, got)
				assert.True(t, got.IsVisibleOnElement(tt.elem))
			}
		})
	}

	assert.Same(t, first, reg.ForLanguage(langOne))
	assert.Nil(t, reg.ForLanguage("l3"))
	assert.Equal(t, []Delegate{first, shadowed, second}, reg.Delegates())
	assert.True(t, reg.IsAvailable(occA))

	first.notBoolean = true
	assert.False(t, reg.IsAvailable(occA))
}

func TestNewRegistryRejectsInvalidDelegates(t *testing.T) {
	t.Parallel()

	_, err := NewRegistry(newFake("x", langOne, "!"), newFake("x", langTwo, "!"))
	assert.ErrorIs(t, err, ErrDuplicateDelegate)

	_, err = NewRegistry(nil)
	assert.Error(t, err)
}

func TestResolveForeign(t *testing.T) {
	t.Parallel()

	proj := program.New(
		program.Source{Path: "a.l1", Content: "flag", Language: langOne},
		program.Source{Path: "b.l2", Content: "<% flag %> flag", Language: langTwo},
		program.Source{Path: "c.l3", Content: "flag", Language: "l3"},
	)
	a, _ := proj.File("a.l1")
	b, _ := proj.File("b.l2")
	c, _ := proj.File("c.l3")
	named, _ := program.OccurrenceAt(a, 0)
	inside := program.FindWord(b, "flag")[0]
	outside := program.FindWord(b, "flag")[1]
	unowned, _ := program.OccurrenceAt(c, 0)

	one := newFake("one", langOne, "!")
	two := newFake("two", langTwo, "not ")
	two.embeddedIn = [2]string{"<%", "%>"}
	reg, err := NewRegistry(one, two)
	require.NoError(t, err)

	expr, d := ResolveForeign(reg, named, inside, langOne)
	assert.Equal(t, program.Element(inside), expr)
	assert.Same(t, two, d)

	expr, d = ResolveForeign(reg, named, outside, langOne)
	assert.Nil(t, expr)
	assert.Nil(t, d)

	expr, _ = ResolveForeign(reg, named, unowned, langOne)
	assert.Nil(t, expr)

	// same language occurrences never go through the bridge
	expr, _ = ResolveForeign(reg, named, named, langOne)
	assert.Nil(t, expr)
}

func TestConflicts(t *testing.T) {
	t.Parallel()

	proj := program.New(program.Source{Path: "a.l1", Content: "a b", Language: langOne})
	f, _ := proj.File("a.l1")
	a := program.FindWord(f, "a")[0]
	b := program.FindWord(f, "b")[0]

	var nilConflicts *Conflicts
	assert.True(t, nilConflicts.IsEmpty())
	assert.Zero(t, nilConflicts.Len())

	c := NewConflicts()
	c.Add(b, "first")
	c.Addf(a, "value %d", 1)
	c.Add(b, "first")
	c.Add(b, "second")

	assert.False(t, c.IsEmpty())
	assert.Equal(t, 3, c.Len())
	assert.Equal(t, []program.Element{b, a}, c.Elements())
	assert.Equal(t, []string{"first", "second"}, c.Messages(b))
	assert.Equal(t, []Conflict{
		{Element: b, Message: "first"},
		{Element: b, Message: "second"},
		{Element: a, Message: "value 1"},
	}, c.All())
}

func TestStateTransitions(t *testing.T) {
	t.Parallel()

	assert.True(t, canTransition(StateValidating, StateRejected))
	assert.False(t, canTransition(StateMutating, StateCancelled))
	assert.False(t, canTransition(StateDone, StateIdle))
	assert.True(t, StateRejected.Terminal())
	assert.Equal(t, "mutating", StateMutating.String())
	assert.Equal(t, "conflict", StatusConflict.String())
}
