package refactor

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gnolang/tinvert/internal/program"
)

// Options controls a single inversion.
type Options struct {
	// NewName renames the element while inverting it. Empty keeps the name.
	NewName string
	// DryRun computes every change without committing it.
	DryRun bool
}

// Result describes how an inversion ended. Expected outcomes such as a user
// cancel or a conflict are reported here, never as errors.
type Result struct {
	OperationID string
	Status      Status
	// Reason explains a cancellation.
	Reason string
	// Element is the element that was inverted, after adjustment.
	Element   program.Element
	Owner     Delegate
	Usages    []Usage
	Conflicts *Conflicts
	Changes   []program.Change
}

// Processor sequences adjustment, collection, validation and mutation.
// Invocations against overlapping elements must be serialized by the
// caller.
type Processor struct {
	project   *program.Project
	registry  *Registry
	collector *Collector
	prompt    Prompter
	logger    *zap.Logger
	observer  func(State)
}

// ProcessorOption configures a Processor.
type ProcessorOption func(*Processor)

// WithPrompter sets the prompter handed to AdjustElement.
func WithPrompter(p Prompter) ProcessorOption {
	return func(proc *Processor) {
		if p != nil {
			proc.prompt = p
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) ProcessorOption {
	return func(proc *Processor) {
		if l != nil {
			proc.logger = l
		}
	}
}

// WithObserver registers a callback receiving every state transition.
func WithObserver(fn func(State)) ProcessorOption {
	return func(proc *Processor) {
		proc.observer = fn
	}
}

func NewProcessor(project *program.Project, reg *Registry, searcher ReferenceSearcher, renamer RenameEngine, opts ...ProcessorOption) *Processor {
	p := &Processor{
		project:  project,
		registry: reg,
		prompt:   AlwaysConfirm,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.collector = NewCollector(reg, searcher, renamer, p.logger)
	return p
}

// Registry returns the registry the processor dispatches through.
func (p *Processor) Registry() *Registry { return p.registry }

type run struct {
	proc   *Processor
	state  State
	logger *zap.Logger
	result *Result
}

func (r *run) to(next State) {
	if !canTransition(r.state, next) {
		panic(fmt.Sprintf("refactor: illegal transition %s -> %s", r.state, next))
	}
	r.logger.Debug("state", zap.Stringer("from", r.state), zap.Stringer("to", next))
	r.state = next
	if r.proc.observer != nil {
		r.proc.observer(next)
	}
}

func (r *run) cancel(reason string) *Result {
	r.to(StateCancelled)
	r.result.Status = StatusCancelled
	r.result.Reason = reason
	r.logger.Debug("inversion cancelled", zap.String("reason", reason))
	return r.result
}

// Invert inverts the boolean polarity of e. Only a fault of the write
// action is returned as an error, and it is returned unchanged.
func (p *Processor) Invert(ctx context.Context, e program.Element, opts Options) (*Result, error) {
	id := uuid.NewString()
	r := &run{
		proc:   p,
		state:  StateIdle,
		logger: p.logger.With(zap.String("op", id)),
		result: &Result{OperationID: id},
	}

	owner := p.registry.FindOwner(e)
	if owner == nil {
		return r.cancel("element is not supported"), nil
	}
	if !owner.IsAvailableOnElement(e) {
		return r.cancel("element is not boolean"), nil
	}

	r.to(StateAdjusting)
	target, err := owner.AdjustElement(ctx, e, p.prompt)
	if err != nil {
		return nil, fmt.Errorf("adjust element: %w", err)
	}
	if target == nil {
		return r.cancel("adjustment declined"), nil
	}
	// the adjusted element may belong to another delegate
	if owner = p.registry.FindOwner(target); owner == nil {
		return r.cancel("adjusted element is not supported"), nil
	}
	r.result.Element, r.result.Owner = target, owner
	r.logger = r.logger.With(zap.String("delegate", owner.Name()), zap.Stringer("element", target.Location()))

	r.to(StateCollecting)
	col, err := p.collector.Collect(ctx, owner, target, opts.NewName)
	if err != nil {
		return nil, err
	}
	if col.Cancelled != "" {
		return r.cancel(col.Cancelled), nil
	}
	r.result.Usages, r.result.Conflicts = col.Usages, col.Conflicts

	r.to(StateValidating)
	if err := ctx.Err(); err != nil {
		r.cancel("context done")
		return r.result, err
	}
	if !col.Conflicts.IsEmpty() {
		r.to(StateRejected)
		r.result.Status = StatusConflict
		r.logger.Info("inversion rejected", zap.Int("conflicts", col.Conflicts.Len()))
		return r.result, nil
	}

	r.to(StateMutating)
	mutate := func(tx *program.Tx) error {
		if col.Rename != nil {
			// renames come first so negations wrap the new name
			if err := stageRename(tx, col.Rename); err != nil {
				return err
			}
		}
		for _, u := range col.Usages {
			if err := u.Delegate.ReplaceWithNegatedExpression(tx, u.Expr); err != nil {
				return err
			}
		}
		return owner.InvertElementInitializer(tx, target)
	}

	name := "invert boolean"
	// no cancellation once mutation starts
	wctx := context.WithoutCancel(ctx)
	var changes []program.Change
	if opts.DryRun {
		changes, err = p.project.Preview(wctx, name, mutate)
	} else {
		changes, err = p.project.WriteAction(wctx, name, mutate)
	}
	if err != nil {
		r.logger.Error("write action failed", zap.Error(err))
		return r.result, err
	}
	r.result.Changes = changes

	r.to(StateDone)
	r.result.Status = StatusSuccess
	r.logger.Info("inverted boolean",
		zap.Int("usages", len(col.Usages)),
		zap.Int("files", len(changes)),
		zap.Bool("dry-run", opts.DryRun))
	return r.result, nil
}

func stageRename(tx *program.Tx, req *RenameRequest) error {
	targets := append([]program.Element{req.Declaration}, req.Occurrences...)
	seen := make(map[program.Key]bool, len(targets))
	for _, occ := range targets {
		if occ == nil || seen[program.KeyOf(occ)] {
			continue
		}
		seen[program.KeyOf(occ)] = true
		loc := occ.Location()
		if err := tx.Replace(loc.File, loc.Span, req.NewName); err != nil {
			return err
		}
	}
	return nil
}
