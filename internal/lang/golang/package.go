package golang

import (
	"fmt"
	"go/ast"
	"go/importer"
	"go/parser"
	"go/token"
	"go/types"
	"path"
	"sort"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/tools/go/ast/astutil"

	"github.com/gnolang/tinvert/internal/program"
)

// pkg is one type-checked package: the Go files of a directory sharing a
// package clause.
type pkg struct {
	dir   string
	fset  *token.FileSet
	files []*ast.File
	srcs  []*program.File
	// index is shared by every package of a cache.
	index map[*token.File]fileRef
	types *types.Package
	info  *types.Info
}

type fileRef struct {
	pkg *pkg
	i   int
}

// fileOf returns the project file containing pos, in any package of the
// cache. It fails for positions outside of the project.
func (p *pkg) fileOf(pos token.Pos) (*program.File, *ast.File, bool) {
	tf := p.fset.File(pos)
	if tf == nil {
		return nil, nil, false
	}
	ref, ok := p.index[tf]
	if !ok {
		return nil, nil, false
	}
	return ref.pkg.srcs[ref.i], ref.pkg.files[ref.i], true
}

func (p *pkg) offset(pos token.Pos) int {
	return p.fset.File(pos).Offset(pos)
}

func (p *pkg) span(n ast.Node) program.Span {
	return program.Span{Start: p.offset(n.Pos()), End: p.offset(n.End())}
}

// element returns the project element covering n.
func (p *pkg) element(n ast.Node) program.Element {
	src, _, ok := p.fileOf(n.Pos())
	if !ok {
		return nil
	}
	return program.NewOccurrence(src, p.span(n))
}

// declaration returns the element covering the name of obj.
func (p *pkg) declaration(obj types.Object) (program.Element, *ast.File, bool) {
	src, af, ok := p.fileOf(obj.Pos())
	if !ok {
		return nil, nil, false
	}
	start := p.offset(obj.Pos())
	return program.NewOccurrence(src, program.Span{Start: start, End: start + len(obj.Name())}), af, true
}

// site is an element resolved against its package.
type site struct {
	pkg  *pkg
	file *ast.File
	src  *program.File
	path []ast.Node
}

func (s *site) ident() *ast.Ident {
	if len(s.path) == 0 {
		return nil
	}
	id, _ := s.path[0].(*ast.Ident)
	return id
}

func (s *site) object() types.Object {
	id := s.ident()
	if id == nil {
		return nil
	}
	return s.pkg.info.ObjectOf(id)
}

// parent returns the i-th enclosing node, or nil.
func (s *site) parent(i int) ast.Node {
	if i < len(s.path) {
		return s.path[i]
	}
	return nil
}

// cache keeps type-checked packages for one revision of one project.
// Imports between project directories resolve to the packages of the cache,
// so an object keeps its identity in every package using it.
type cache struct {
	mu     sync.Mutex
	proj   *program.Project
	rev    uint64
	fset   *token.FileSet
	imp    types.Importer
	dirs   []string
	index  map[*token.File]fileRef
	byFile map[*program.File]*pkg
	byDir  map[string]*pkg
	loaded map[string]bool
	logger *zap.Logger
}

func (c *cache) reset(proj *program.Project) {
	if c.proj == proj && c.rev == proj.Revision() && c.byFile != nil {
		return
	}
	c.proj = proj
	c.rev = proj.Revision()
	c.fset = token.NewFileSet()
	c.imp = importer.ForCompiler(c.fset, "source", nil)
	c.index = make(map[*token.File]fileRef)
	c.byFile = make(map[*program.File]*pkg)
	c.byDir = make(map[string]*pkg)
	c.loaded = make(map[string]bool)

	c.dirs = c.dirs[:0]
	seen := make(map[string]bool)
	for _, f := range proj.FilesOf(program.LangGo) {
		if dir := path.Dir(f.Path()); !seen[dir] {
			seen[dir] = true
			c.dirs = append(c.dirs, dir)
		}
	}
	sort.Strings(c.dirs)
}

func (c *cache) packageOf(f *program.File, proj *program.Project) *pkg {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reset(proj)
	if p, ok := c.byFile[f]; ok {
		return p
	}
	c.load(path.Dir(f.Path()))
	return c.byFile[f]
}

// all returns every package of the project, in directory order.
func (c *cache) all(proj *program.Project) []*pkg {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.reset(proj)
	var out []*pkg
	seen := make(map[*pkg]bool)
	for _, dir := range c.dirs {
		c.load(dir)
	}
	for _, f := range proj.FilesOf(program.LangGo) {
		if p, ok := c.byFile[f]; ok && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].dir < out[j].dir })
	return out
}

// load type-checks the packages of dir, the importable one first. It must
// be called with mu held.
func (c *cache) load(dir string) {
	if c.loaded[dir] {
		return
	}
	c.loaded[dir] = true

	groups := make(map[string][]*program.File)
	parsed := make(map[*program.File]*ast.File)
	for _, f := range c.proj.FilesOf(program.LangGo) {
		if path.Dir(f.Path()) != dir {
			continue
		}
		af, err := parser.ParseFile(c.fset, f.Path(), f.Content(), parser.ParseComments)
		if af == nil {
			c.logger.Debug("skipping unparsable file", zap.String("file", f.Path()), zap.Error(err))
			continue
		}
		parsed[f] = af
		groups[af.Name.Name] = append(groups[af.Name.Name], f)
	}

	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		ti, tj := strings.HasSuffix(names[i], "_test"), strings.HasSuffix(names[j], "_test")
		if ti != tj {
			return tj
		}
		return names[i] < names[j]
	})
	for _, name := range names {
		p := c.check(name, dir, groups[name], parsed)
		if c.byDir[dir] == nil {
			c.byDir[dir] = p
		}
		for _, src := range groups[name] {
			c.byFile[src] = p
		}
	}
}

func (c *cache) check(name, dir string, srcs []*program.File, parsed map[*program.File]*ast.File) *pkg {
	sort.Slice(srcs, func(i, j int) bool { return srcs[i].Path() < srcs[j].Path() })
	p := &pkg{
		dir:   dir,
		fset:  c.fset,
		srcs:  srcs,
		index: c.index,
		info: &types.Info{
			Defs:  make(map[*ast.Ident]types.Object),
			Uses:  make(map[*ast.Ident]types.Object),
			Types: make(map[ast.Expr]types.TypeAndValue),
		},
	}
	for i, src := range srcs {
		af := parsed[src]
		p.files = append(p.files, af)
		c.index[c.fset.File(af.Pos())] = fileRef{pkg: p, i: i}
	}

	var errs int
	conf := types.Config{
		Importer: projectImporter{c},
		Error:    func(error) { errs++ },
	}
	// type errors leave parts of the info empty, which only narrows what
	// can be inverted
	p.types, _ = conf.Check(path.Join(dir, name), c.fset, p.files, p.info)
	if errs > 0 {
		c.logger.Debug("type errors", zap.String("package", name), zap.String("dir", dir), zap.Int("count", errs))
	}
	return p
}

// dirOf returns the project directory an import path ends with. The root
// directory has no import path of its own.
func (c *cache) dirOf(importPath string) (string, bool) {
	best := ""
	for _, dir := range c.dirs {
		if dir == "." || len(dir) <= len(best) {
			continue
		}
		if importPath == dir || strings.HasSuffix(importPath, "/"+dir) {
			best = dir
		}
	}
	return best, best != ""
}

// projectImporter imports project directories from the cache and every
// other path from source. It runs with the cache mutex held.
type projectImporter struct {
	c *cache
}

func (im projectImporter) Import(importPath string) (*types.Package, error) {
	c := im.c
	dir, ok := c.dirOf(importPath)
	if !ok || isStd(importPath) {
		p, err := c.imp.Import(importPath)
		if err == nil || !ok {
			return p, err
		}
	}
	c.load(dir)
	if p := c.byDir[dir]; p != nil && p.types != nil {
		return p.types, nil
	}
	return nil, fmt.Errorf("import %q: import cycle or no package in %s", importPath, dir)
}

// isStd reports whether an import path names a standard library package.
func isStd(importPath string) bool {
	first, _, _ := strings.Cut(importPath, "/")
	return !strings.Contains(first, ".")
}

// lookup resolves e to the innermost syntax nodes covering it.
func (d *Delegate) lookup(e program.Element) (*site, bool) {
	if e == nil {
		return nil, false
	}
	loc := e.Location()
	if loc.File == nil || !loc.File.Language().Is(program.LangGo) {
		return nil, false
	}
	proj := loc.File.Project()
	p := d.cache.packageOf(loc.File, proj)
	if p == nil {
		return nil, false
	}
	i := sort.Search(len(p.srcs), func(i int) bool { return p.srcs[i].Path() >= loc.File.Path() })
	if i == len(p.srcs) || p.srcs[i] != loc.File {
		return nil, false
	}
	af := p.files[i]
	tf := p.fset.File(af.Pos())
	if loc.Span.End > tf.Size() {
		return nil, false
	}
	start, end := tf.Pos(loc.Span.Start), tf.Pos(loc.Span.End)
	nodes, _ := astutil.PathEnclosingInterval(af, start, end)
	return &site{pkg: p, file: af, src: loc.File, path: nodes}, true
}

// uses returns the identifiers referring to obj, in source order.
func (p *pkg) uses(obj types.Object) []*ast.Ident {
	var out []*ast.Ident
	for id, o := range p.info.Uses {
		if o == obj {
			out = append(out, id)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Pos() < out[j].Pos() })
	return out
}

// pathTo returns the enclosing path of n within its file.
func (p *pkg) pathTo(n ast.Node) []ast.Node {
	_, af, ok := p.fileOf(n.Pos())
	if !ok {
		return nil
	}
	nodes, _ := astutil.PathEnclosingInterval(af, n.Pos(), n.End())
	return nodes
}
