// Package refactor implements the language-independent core of the Invert
// Boolean refactoring.
//
// Key components:
//
// Registry: the ordered set of per-language delegates. FindOwner returns the
// first delegate whose candidacy check accepts an element.
//
// ResolveForeign: the cross-language bridge. An occurrence found in another
// language is handed to that language's delegate, which decides whether it
// is a usage at all.
//
// Collector: turns the references of an element, optionally through a rename
// step, into a flat list of usages and a conflict report.
//
// Processor: runs Idle -> Adjusting -> Collecting -> Validating -> Mutating
// -> Done. Every negation, rename and initializer change of one inversion is
// staged into a single write action of the program store, so the project
// either sees all of them or none.
//
// Usage:
//
//	reg, _ := refactor.NewRegistry(golang.New(), gotmpl.New())
//	proc := refactor.NewProcessor(project, reg, searcher, renamer)
//	res, err := proc.Invert(ctx, element, refactor.Options{NewName: "disabled"})
//	if err != nil {
//	    // the write action failed, nothing was changed
//	}
//	if res.Status == refactor.StatusConflict {
//	    // res.Conflicts explains why
//	}
package refactor
