package program

import "sync"

// FileCache memoizes a per-file computation, typically a parse tree, for the
// current revision of a project. Entries are dropped as soon as the project
// commits a write action or a file of another project is requested.
type FileCache[T any] struct {
	mu      sync.Mutex
	proj    *Project
	rev     uint64
	entries map[*File]T
}

// Get returns the cached value of f, computing it on a miss.
func (c *FileCache[T]) Get(f *File, compute func(*File) T) T {
	c.mu.Lock()
	defer c.mu.Unlock()

	proj := f.Project()
	rev := uint64(0)
	if proj != nil {
		rev = proj.Revision()
	}
	if c.entries == nil || c.proj != proj || c.rev != rev {
		c.proj, c.rev = proj, rev
		c.entries = make(map[*File]T)
	}
	if v, ok := c.entries[f]; ok {
		return v
	}
	v := compute(f)
	c.entries[f] = v
	return v
}
