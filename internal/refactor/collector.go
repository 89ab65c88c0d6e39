package refactor

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/gnolang/tinvert/internal/program"
)

// Usage is an expression that must be negated together with the delegate
// responsible for rewriting it.
type Usage struct {
	Expr     program.Element
	Delegate Delegate
	// Foreign is set when the usage was reached through the bridge.
	Foreign bool
}

// ReferenceSearcher finds the raw references of an element across the
// project, in every language.
type ReferenceSearcher interface {
	References(ctx context.Context, e program.Element, owner Delegate) ([]program.Element, error)
}

// RenameEngine prepares a name change. It returns the request together with
// the raw occurrences of the old name. A failed or declined rename is
// reported as an error.
type RenameEngine interface {
	Rename(ctx context.Context, e program.Element, owner Delegate, newName string) (*RenameRequest, []program.Element, error)
}

// Collection is the outcome of a usage collection.
type Collection struct {
	Usages    []Usage
	Conflicts *Conflicts
	Rename    *RenameRequest
	// Cancelled explains why the rename step could not go on. Empty when
	// the collection is complete.
	Cancelled string
}

// Collector accumulates every location that must be edited.
type Collector struct {
	registry *Registry
	searcher ReferenceSearcher
	renamer  RenameEngine
	logger   *zap.Logger
}

func NewCollector(reg *Registry, searcher ReferenceSearcher, renamer RenameEngine, logger *zap.Logger) *Collector {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Collector{registry: reg, searcher: searcher, renamer: renamer, logger: logger}
}

// Collect gathers the usages of e owned by owner. newName is empty when the
// element keeps its name.
func (c *Collector) Collect(ctx context.Context, owner Delegate, e program.Element, newName string) (Collection, error) {
	var (
		rename *RenameRequest
		raw    []program.Element
		err    error
	)
	switch {
	case newName != "" && c.renamer == nil:
		c.logger.Debug("no rename engine", zap.String("name", newName))
		return Collection{Cancelled: "rename unsupported"}, nil
	case newName != "":
		rename, raw, err = c.renamer.Rename(ctx, e, owner, newName)
		if err != nil {
			c.logger.Debug("rename step declined", zap.String("name", newName), zap.Error(err))
			return Collection{Cancelled: "rename declined"}, nil
		}
	default:
		raw, err = c.searcher.References(ctx, e, owner)
		if err != nil {
			return Collection{}, fmt.Errorf("find references: %w", err)
		}
	}

	var usages []Usage
	seen := make(map[program.Key]bool)
	add := func(expr program.Element, d Delegate, foreign bool) {
		key := program.KeyOf(expr)
		if seen[key] {
			return
		}
		seen[key] = true
		usages = append(usages, Usage{Expr: expr, Delegate: d, Foreign: foreign})
	}

	ownerLang := e.Language()
	for _, occ := range raw {
		if owner.Accepts(occ.Language()) {
			if rename != nil {
				rename.Occurrences = append(rename.Occurrences, occ)
			}
			if expr := owner.ElementToInvert(e, occ); expr != nil {
				add(expr, owner, false)
			}
			continue
		}
		expr, d := ResolveForeign(c.registry, e, occ, ownerLang)
		if expr == nil {
			c.logger.Debug("skipping foreign occurrence", zap.Stringer("at", occ.Location()))
			continue
		}
		if rename != nil {
			rename.Occurrences = append(rename.Occurrences, occ)
		}
		add(expr, d, true)
	}

	extra, err := owner.CollectRefElements(ctx, e, rename)
	if err != nil {
		return Collection{}, fmt.Errorf("collect %s elements: %w", owner.Name(), err)
	}
	for _, expr := range extra {
		add(expr, owner, false)
	}

	conflicts := NewConflicts()
	query := ConflictQuery{Target: e, Usages: usages, Rename: rename}
	for _, d := range responsible(owner, usages) {
		if finder, ok := d.(ConflictFinder); ok {
			finder.FindConflicts(ctx, query, conflicts)
		}
	}

	return Collection{Usages: usages, Conflicts: conflicts, Rename: rename}, nil
}

// responsible returns the distinct delegates of usages, owner first.
func responsible(owner Delegate, usages []Usage) []Delegate {
	out := []Delegate{owner}
	seen := map[string]bool{owner.Name(): true}
	for _, u := range usages {
		if !seen[u.Delegate.Name()] {
			seen[u.Delegate.Name()] = true
			out = append(out, u.Delegate)
		}
	}
	return out
}
