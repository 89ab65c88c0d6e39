// Package search finds the raw occurrences of a name across a project.
//
// The owning delegate is asked first for the references it resolves
// semantically. Every file in another language is then scanned textually,
// since only the foreign delegate can tell whether a hit is a usage, unless
// the owner rules out foreign names for the element.
package search

import (
	"context"
	"errors"
	"fmt"
	"go/token"
	"strings"

	"go.uber.org/zap"

	"github.com/gnolang/tinvert/internal/program"
	"github.com/gnolang/tinvert/internal/refactor"
)

var ErrInvalidName = errors.New("invalid identifier")

// ReferenceFinder is implemented by delegates that resolve references in
// their own language.
type ReferenceFinder interface {
	FindReferences(ctx context.Context, e program.Element) ([]program.Element, error)
}

// ForeignScope is implemented by delegates that know when no other
// language can name an element. Files in other languages are not scanned
// for such elements.
type ForeignScope interface {
	IsForeignVisible(e program.Element) bool
}

// Searcher implements refactor.ReferenceSearcher over a project.
type Searcher struct {
	project *program.Project
	logger  *zap.Logger
}

func New(project *program.Project, logger *zap.Logger) *Searcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Searcher{project: project, logger: logger}
}

// References returns every occurrence of the name of e outside of e itself,
// in file order.
func (s *Searcher) References(ctx context.Context, e program.Element, owner refactor.Delegate) ([]program.Element, error) {
	name := NameOf(e)
	if name == "" {
		return nil, nil
	}

	var out []program.Element
	seen := map[program.Key]bool{program.KeyOf(e): true}
	add := func(occ program.Element) {
		if key := program.KeyOf(occ); !seen[key] {
			seen[key] = true
			out = append(out, occ)
		}
	}

	finder, semantic := owner.(ReferenceFinder)
	if semantic {
		refs, err := finder.FindReferences(ctx, e)
		if err != nil {
			return nil, fmt.Errorf("%s references: %w", owner.Name(), err)
		}
		for _, ref := range refs {
			add(ref)
		}
	}

	foreign := true
	if scope, ok := owner.(ForeignScope); ok {
		foreign = scope.IsForeignVisible(e)
	}
	for _, f := range s.project.Files() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		own := owner.Accepts(f.Language())
		if (semantic && own) || (!foreign && !own) {
			continue
		}
		for _, occ := range program.FindWord(f, name) {
			add(occ)
		}
	}

	s.logger.Debug("references",
		zap.String("name", name),
		zap.Bool("semantic", semantic),
		zap.Bool("foreign", foreign),
		zap.Int("count", len(out)))
	return out, nil
}

// NameOf returns the identifier an element is known by. Sigils such as the
// leading '$' of template variables are not part of the name.
func NameOf(e program.Element) string {
	return strings.TrimLeft(program.TextOf(e), "$")
}

// Renamer implements refactor.RenameEngine on top of a Searcher.
type Renamer struct {
	searcher *Searcher
}

func NewRenamer(s *Searcher) *Renamer {
	return &Renamer{searcher: s}
}

// Rename validates newName and returns the occurrences of the old name. No
// request is returned when the name does not change.
func (r *Renamer) Rename(ctx context.Context, e program.Element, owner refactor.Delegate, newName string) (*refactor.RenameRequest, []program.Element, error) {
	if err := ValidateName(newName); err != nil {
		return nil, nil, err
	}
	occs, err := r.searcher.References(ctx, e, owner)
	if err != nil {
		return nil, nil, err
	}
	oldName := NameOf(e)
	if oldName == newName {
		return nil, occs, nil
	}
	return &refactor.RenameRequest{OldName: oldName, NewName: newName, Declaration: e}, occs, nil
}

var pythonKeywords = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "class": true, "def": true,
	"del": true, "elif": true, "except": true, "finally": true, "from": true,
	"global": true, "in": true, "is": true, "lambda": true, "nonlocal": true,
	"not": true, "or": true, "pass": true, "raise": true, "try": true, "while": true, "with": true,
	"yield": true,
}

// ValidateName rejects names that are not identifiers in every supported
// language.
func ValidateName(name string) error {
	if !program.IsIdentifier(name) || token.IsKeyword(name) || pythonKeywords[name] {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	return nil
}
