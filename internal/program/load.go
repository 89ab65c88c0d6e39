package program

import (
	"context"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"
)

// LoadOptions controls which files a disk-backed project contains.
type LoadOptions struct {
	// Extensions maps lower-case file extensions to languages. Files with
	// other extensions are skipped. Nil means DefaultExtensions.
	Extensions map[string]Language
	// Exclude holds slash-separated glob patterns matched against the
	// project-relative path and each of its directory prefixes.
	Exclude []string
}

var skippedDirs = map[string]bool{
	".git": true,
	".hg":  true,
	".svn": true,
}

// Load reads every matching file under root. Committed write actions on the
// returned project are persisted back to disk.
func Load(ctx context.Context, root string, opts LoadOptions) (*Project, error) {
	root, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	exts := opts.Extensions
	if exts == nil {
		exts = DefaultExtensions
	}

	var paths []string
	err = filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if rel != "." && (skippedDirs[d.Name()] || excluded(rel, opts.Exclude)) {
				return filepath.SkipDir
			}
			return nil
		}
		if languageOf(rel, exts) == LangUnknown || excluded(rel, opts.Exclude) {
			return nil
		}
		paths = append(paths, rel)
		return nil
	})
	if err != nil {
		return nil, err
	}

	proj := newProject(root, true)
	var mu sync.Mutex
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for _, rel := range paths {
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			content, err := os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
			if err != nil {
				return err
			}
			mu.Lock()
			defer mu.Unlock()
			proj.add(&File{path: rel, lang: languageOf(rel, exts), content: content})
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	proj.sortFiles()
	return proj, nil
}

func excluded(rel string, patterns []string) bool {
	for _, pattern := range patterns {
		pattern = strings.TrimSuffix(filepath.ToSlash(pattern), "/")
		if pattern == "" {
			continue
		}
		for p := rel; p != "." && p != "/"; p = path.Dir(p) {
			if ok, _ := path.Match(pattern, p); ok {
				return true
			}
		}
	}
	return false
}
