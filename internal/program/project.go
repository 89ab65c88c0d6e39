package program

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

var (
	ErrFileNotFound  = errors.New("file not found in project")
	ErrStale         = errors.New("project changed while the write action was staged")
	ErrNothingToUndo = errors.New("nothing to undo")
)

const maxHistory = 16

// Formatter rewrites the whole content of a changed file after all edits of
// a write action have been applied.
type Formatter func(path string, src []byte) ([]byte, error)

// Project is an in-memory program-representation store. Reads may happen
// concurrently; committed write actions are serialized.
type Project struct {
	mu      sync.RWMutex
	writeMu sync.Mutex

	root       string
	persist    bool
	files      []*File
	byPath     map[string]*File
	revision   uint64
	formatters map[Language]Formatter
	history    []snapshot

	// writeFile is swapped in tests to inject persistence faults.
	writeFile func(path string, data []byte) error
}

type snapshot struct {
	name     string
	contents map[*File][]byte
}

// Source is the content of one file used to build an in-memory project.
type Source struct {
	Path    string
	Content string
	// Language overrides the language derived from the extension.
	Language Language
}

// New creates an in-memory project from the given sources. Nothing is ever
// written to disk.
func New(sources ...Source) *Project {
	p := newProject("", false)
	for _, src := range sources {
		lang := src.Language
		if lang == LangUnknown {
			lang = languageOf(src.Path, nil)
		}
		p.add(&File{path: filepath.ToSlash(src.Path), lang: lang, content: []byte(src.Content)})
	}
	p.sortFiles()
	return p
}

func newProject(root string, persist bool) *Project {
	return &Project{
		root:       root,
		persist:    persist,
		byPath:     make(map[string]*File),
		formatters: make(map[Language]Formatter),
		writeFile:  writeFileAtomic,
	}
}

func (p *Project) add(f *File) {
	f.proj = p
	p.files = append(p.files, f)
	p.byPath[f.path] = f
}

func (p *Project) sortFiles() {
	sort.Slice(p.files, func(i, j int) bool { return p.files[i].path < p.files[j].path })
}

// Root returns the directory the project was loaded from, or "" for
// in-memory projects.
func (p *Project) Root() string { return p.root }

// Files returns every file in path order.
func (p *Project) Files() []*File {
	out := make([]*File, len(p.files))
	copy(out, p.files)
	return out
}

// FilesOf returns the files of the given language in path order.
func (p *Project) FilesOf(lang Language) []*File {
	var out []*File
	for _, f := range p.files {
		if f.lang.Is(lang) {
			out = append(out, f)
		}
	}
	return out
}

// File looks a file up by its project-relative path.
func (p *Project) File(path string) (*File, error) {
	f, ok := p.byPath[filepath.ToSlash(path)]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrFileNotFound, path)
	}
	return f, nil
}

// Revision is incremented by every committed write action. Delegates use it
// to invalidate cached parse results.
func (p *Project) Revision() uint64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.revision
}

// SetFormatter registers the post-commit formatter of a language.
func (p *Project) SetFormatter(lang Language, f Formatter) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if f == nil {
		delete(p.formatters, lang)
		return
	}
	p.formatters[lang] = f
}

// Undo restores the contents recorded before the last committed write
// action. The restoration is itself an all-or-nothing commit.
func (p *Project) Undo() (string, error) {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	if len(p.history) == 0 {
		return "", ErrNothingToUndo
	}
	last := p.history[len(p.history)-1]
	if err := p.commit(last.contents); err != nil {
		return "", err
	}
	p.history = p.history[:len(p.history)-1]
	return last.name, nil
}

// commit installs the new contents. Disk-backed projects are persisted first
// so a failed write leaves memory and disk untouched.
func (p *Project) commit(next map[*File][]byte) error {
	if p.persist {
		if err := p.persistAll(next); err != nil {
			return err
		}
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	for f, content := range next {
		f.content = content
	}
	p.revision++
	return nil
}

func (p *Project) persistAll(next map[*File][]byte) error {
	files := make([]*File, 0, len(next))
	for f := range next {
		files = append(files, f)
	}
	sort.Slice(files, func(i, j int) bool { return files[i].path < files[j].path })

	var written []*File
	for _, f := range files {
		if err := p.writeFile(p.diskPath(f), next[f]); err != nil {
			for _, w := range written {
				// best effort: the original content is still in memory
				_ = p.writeFile(p.diskPath(w), w.content)
			}
			return err
		}
		written = append(written, f)
	}
	return nil
}

func (p *Project) diskPath(f *File) string {
	return filepath.Join(p.root, filepath.FromSlash(f.path))
}

func (p *Project) record(name string, prev map[*File][]byte) {
	p.history = append(p.history, snapshot{name: name, contents: prev})
	if len(p.history) > maxHistory {
		p.history = p.history[len(p.history)-maxHistory:]
	}
}

func writeFileAtomic(path string, data []byte) error {
	info, err := os.Stat(path)
	mode := os.FileMode(0o644)
	if err == nil {
		mode = info.Mode().Perm()
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tinvert-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), mode); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return nil
}
