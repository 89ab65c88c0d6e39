package refactor

import (
	"context"

	"github.com/gnolang/tinvert/internal/program"
)

// Delegate implements the invert-boolean capability for one or more
// languages.
type Delegate interface {
	// Name identifies the delegate in logs and configuration.
	Name() string

	// Accepts reports whether elements of lang may be handed to the
	// delegate's rewrite operations.
	Accepts(lang program.Language) bool

	// IsVisibleOnElement is a quick check that the element is potentially
	// acceptable, e.g. it is a variable or a function.
	IsVisibleOnElement(e program.Element) bool

	// IsAvailableOnElement reports whether the element is of boolean type.
	IsAvailableOnElement(e program.Element) bool

	// AdjustElement returns the element that should actually be inverted,
	// e.g. the declaration of a referenced variable. A nil element means
	// the user cancelled the operation.
	AdjustElement(ctx context.Context, e program.Element, prompt Prompter) (program.Element, error)

	// CollectRefElements returns the expressions that must be inverted in
	// addition to the references of the element, e.g. the values returned
	// by an inverted function. rename is nil when the name does not change.
	CollectRefElements(ctx context.Context, e program.Element, rename *RenameRequest) ([]program.Element, error)

	// ElementToInvert maps an occurrence of named to the expression that
	// must be negated. It returns nil when the occurrence is not a usage
	// that needs inversion.
	ElementToInvert(named, occurrence program.Element) program.Element

	// ReplaceWithNegatedExpression stages the negation of expr.
	ReplaceWithNegatedExpression(tx *program.Tx, expr program.Element) error

	// InvertElementInitializer stages the inversion of the element's
	// initializer, or synthesizes a negated default when it has none.
	InvertElementInitializer(tx *program.Tx, e program.Element) error
}

// ConflictFinder is implemented by delegates that can detect usages which
// cannot be inverted. Delegates without it report no conflicts.
type ConflictFinder interface {
	FindConflicts(ctx context.Context, q ConflictQuery, conflicts *Conflicts)
}

// ConflictQuery is the complete, cross-language result of a collection.
type ConflictQuery struct {
	Target program.Element
	Usages []Usage
	Rename *RenameRequest
}

// RenameRequest carries a caller-approved name change of the target element.
type RenameRequest struct {
	OldName string
	NewName string
	// Declaration covers the name of the target element.
	Declaration program.Element
	// Occurrences are the accepted occurrences of OldName outside the
	// declaration. They are renamed in the mutation phase.
	Occurrences []program.Element
}

// Prompter asks the user to confirm an adjustment.
type Prompter interface {
	Confirm(question string) bool
}

// PromptFunc adapts a function to the Prompter interface.
type PromptFunc func(question string) bool

func (f PromptFunc) Confirm(question string) bool { return f(question) }

var (
	// AlwaysConfirm accepts every question.
	AlwaysConfirm Prompter = PromptFunc(func(string) bool { return true })
	// NeverConfirm declines every question.
	NeverConfirm Prompter = PromptFunc(func(string) bool { return false })
)
