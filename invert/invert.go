// Package invert is the entry point of the invert-boolean refactoring: it
// loads a project according to a configuration, resolves targets given as
// file:line:column and runs inversions across every configured language.
package invert

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/gnolang/tinvert/internal/lang"
	"github.com/gnolang/tinvert/internal/program"
	"github.com/gnolang/tinvert/internal/refactor"
	"github.com/gnolang/tinvert/internal/search"
)

var (
	ErrInvalidTarget = errors.New("target must be file:line:column")
	ErrNoIdentifier  = errors.New("no identifier at target")
)

// Options controls one inversion.
type Options struct {
	// NewName renames the element while inverting it.
	NewName string
	// DryRun reports the changes without writing them.
	DryRun bool
}

type Option func(*options)

type options struct {
	logger *zap.Logger
	prompt refactor.Prompter
}

func WithLogger(l *zap.Logger) Option {
	return func(o *options) {
		if l != nil {
			o.logger = l
		}
	}
}

// WithPrompter sets the function asked to confirm adjustments, such as
// inverting a declaration of a generated file. Every question is accepted
// by default.
func WithPrompter(confirm func(question string) bool) Option {
	return func(o *options) {
		if confirm != nil {
			o.prompt = refactor.PromptFunc(confirm)
		}
	}
}

// Engine runs inversions on one project. Inversions are serialized.
type Engine struct {
	mu      sync.Mutex
	project *program.Project
	proc    *refactor.Processor
	logger  *zap.Logger
}

// Open loads the project rooted at root with the languages of cfg.
func Open(ctx context.Context, root string, cfg Config, opts ...Option) (*Engine, error) {
	o := newOptions(opts)
	set, err := lang.Build(cfg.settings(), o.logger)
	if err != nil {
		return nil, fmt.Errorf("configure languages: %w", err)
	}
	project, err := program.Load(ctx, root, program.LoadOptions{Extensions: set.Extensions, Exclude: cfg.Exclude})
	if err != nil {
		return nil, fmt.Errorf("load project: %w", err)
	}
	o.logger.Debug("project loaded", zap.String("root", project.Root()), zap.Int("files", len(project.Files())))
	return newEngine(project, set, o), nil
}

func newOptions(opts []Option) options {
	o := options{logger: zap.NewNop(), prompt: refactor.AlwaysConfirm}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

func newEngine(project *program.Project, set *lang.Set, o options) *Engine {
	set.Install(project)
	s := search.New(project, o.logger)
	proc := refactor.NewProcessor(project, set.Registry, s, search.NewRenamer(s),
		refactor.WithPrompter(o.prompt),
		refactor.WithLogger(o.logger))
	return &Engine{project: project, proc: proc, logger: o.logger}
}

// ResolveTarget returns the identifier at target, written
// path:line:column with 1-based line and byte column. Relative paths are
// relative to the project root.
func (e *Engine) ResolveTarget(target string) (program.Element, error) {
	path, line, col, err := splitTarget(target)
	if err != nil {
		return nil, err
	}
	if filepath.IsAbs(path) && e.project.Root() != "" {
		rel, err := filepath.Rel(e.project.Root(), path)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", target, err)
		}
		path = rel
	}
	f, err := e.project.File(filepath.ToSlash(filepath.Clean(path)))
	if err != nil {
		return nil, err
	}
	offset, err := f.Offset(line, col)
	if err != nil {
		return nil, err
	}
	occ, ok := program.OccurrenceAt(f, offset)
	if !ok {
		return nil, fmt.Errorf("%w %s", ErrNoIdentifier, target)
	}
	return occ, nil
}

func splitTarget(target string) (path string, line, col int, err error) {
	j := strings.LastIndexByte(target, ':')
	if j < 0 {
		return "", 0, 0, fmt.Errorf("%w: %q", ErrInvalidTarget, target)
	}
	i := strings.LastIndexByte(target[:j], ':')
	if i <= 0 {
		return "", 0, 0, fmt.Errorf("%w: %q", ErrInvalidTarget, target)
	}
	line, err = strconv.Atoi(target[i+1 : j])
	if err != nil {
		return "", 0, 0, fmt.Errorf("%w: %q", ErrInvalidTarget, target)
	}
	col, err = strconv.Atoi(target[j+1:])
	if err != nil {
		return "", 0, 0, fmt.Errorf("%w: %q", ErrInvalidTarget, target)
	}
	return target[:i], line, col, nil
}

// Invert inverts the boolean element at target. A cancellation or a
// conflict is reported in the returned report. The report is also returned
// alongside an error when the operation failed after it started.
func (e *Engine) Invert(ctx context.Context, target string, opts Options) (*Report, error) {
	elem, err := e.ResolveTarget(target)
	if err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	res, err := e.proc.Invert(ctx, elem, refactor.Options{NewName: opts.NewName, DryRun: opts.DryRun})
	if res == nil {
		return nil, err
	}
	return newReport(res, opts.DryRun), err
}

// Usages collects the usages and conflicts of an inversion at target and
// previews its changes without writing anything.
func (e *Engine) Usages(ctx context.Context, target string) (*Report, error) {
	return e.Invert(ctx, target, Options{DryRun: true})
}

// Undo reverts the last committed inversion of this engine.
func (e *Engine) Undo() (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.project.Undo()
}
