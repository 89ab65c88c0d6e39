// Package lang assembles the process-wide delegate registry from the
// language configuration.
package lang

import (
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/gnolang/tinvert/internal/lang/golang"
	"github.com/gnolang/tinvert/internal/lang/gotmpl"
	"github.com/gnolang/tinvert/internal/lang/python"
	"github.com/gnolang/tinvert/internal/program"
	"github.com/gnolang/tinvert/internal/refactor"
)

var (
	ErrUnknownLanguage = errors.New("unknown language")
	ErrNoLanguage      = errors.New("no language enabled")
)

// Setting configures one language. The order of the settings is the
// registration order of the delegates.
type Setting struct {
	Name    string
	Enabled bool
	// Extensions overrides the default file extensions of the language.
	Extensions []string
}

type language struct {
	tag    program.Language
	build  func(*zap.Logger) refactor.Delegate
	format program.Formatter
}

var languages = map[string]language{
	golang.Name: {
		tag:    program.LangGo,
		build:  func(l *zap.Logger) refactor.Delegate { return golang.New(l) },
		format: golang.Format,
	},
	gotmpl.Name: {
		tag:   program.LangTemplate,
		build: func(l *zap.Logger) refactor.Delegate { return gotmpl.New(l) },
	},
	python.Name: {
		tag:   program.LangPython,
		build: func(l *zap.Logger) refactor.Delegate { return python.New(l) },
	},
}

// Defaults enables every supported language with its default extensions.
func Defaults() []Setting {
	return []Setting{
		{Name: golang.Name, Enabled: true},
		{Name: gotmpl.Name, Enabled: true},
		{Name: python.Name, Enabled: true},
	}
}

// Names returns the supported language names in default order.
func Names() []string {
	return []string{golang.Name, gotmpl.Name, python.Name}
}

// Set is the outcome of a configuration: the registry, the extensions of the
// enabled languages and their formatters.
type Set struct {
	Registry   *refactor.Registry
	Extensions map[string]program.Language
	formatters map[program.Language]program.Formatter
}

// Build creates the delegates of the enabled settings, in order.
func Build(settings []Setting, logger *zap.Logger) (*Set, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	set := &Set{
		Extensions: make(map[string]program.Language),
		formatters: make(map[program.Language]program.Formatter),
	}
	seen := make(map[string]bool)
	var delegates []refactor.Delegate
	for _, s := range settings {
		l, ok := languages[s.Name]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownLanguage, s.Name)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("language %s configured twice", s.Name)
		}
		seen[s.Name] = true
		if !s.Enabled {
			continue
		}
		exts, err := extensions(s, l.tag)
		if err != nil {
			return nil, err
		}
		for _, ext := range exts {
			if other, ok := set.Extensions[ext]; ok && other != l.tag {
				return nil, fmt.Errorf("extension %s claimed by %s and %s", ext, other, l.tag)
			}
			set.Extensions[ext] = l.tag
		}
		if l.format != nil {
			set.formatters[l.tag] = l.format
		}
		delegates = append(delegates, l.build(logger.Named(s.Name)))
	}
	if len(delegates) == 0 {
		return nil, ErrNoLanguage
	}

	reg, err := refactor.NewRegistry(delegates...)
	if err != nil {
		return nil, err
	}
	set.Registry = reg
	return set, nil
}

func extensions(s Setting, tag program.Language) ([]string, error) {
	if len(s.Extensions) == 0 {
		var out []string
		for ext, l := range program.DefaultExtensions {
			if l == tag {
				out = append(out, ext)
			}
		}
		return out, nil
	}
	out := make([]string, 0, len(s.Extensions))
	for _, ext := range s.Extensions {
		ext = strings.ToLower(strings.TrimSpace(ext))
		if ext == "" || ext == "." {
			return nil, fmt.Errorf("language %s: empty extension", s.Name)
		}
		if !strings.HasPrefix(ext, ".") {
			ext = "." + ext
		}
		out = append(out, ext)
	}
	return out, nil
}

// Install registers the formatters of the enabled languages on p.
func (s *Set) Install(p *program.Project) {
	for tag, f := range s.formatters {
		p.SetFormatter(tag, f)
	}
}
