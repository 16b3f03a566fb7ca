// Package memfs is an in-memory, flat, fixed-size-file file system with the
// same calling contract as the kernel's file-system layer: it is not
// reentrant, and it counts overlapping calls so tests can prove callers
// serialize access.
package memfs

import (
	"sync/atomic"
	"time"

	"github.com/google/btree"

	"github.com/lunixbochs/trapgate/go/models"
)

// NameMax is the longest file name accepted.
const NameMax = 14

type inode struct {
	name  string
	data  []byte
	opens int
}

func byName(a, b *inode) bool {
	return a.name < b.name
}

type FS struct {
	dir *btree.BTreeG[*inode]

	active    atomic.Int32
	maxActive atomic.Int32
	calls     atomic.Int64

	// Latency is slept inside every call, widening any overlap between
	// unsynchronized callers.
	Latency time.Duration
}

func New() *FS {
	return &FS{dir: btree.NewG[*inode](8, byName)}
}

func (fs *FS) enter() func() {
	n := fs.active.Add(1)
	fs.calls.Add(1)
	for {
		m := fs.maxActive.Load()
		if n <= m || fs.maxActive.CompareAndSwap(m, n) {
			break
		}
	}
	if fs.Latency > 0 {
		time.Sleep(fs.Latency)
	}
	return func() { fs.active.Add(-1) }
}

// MaxConcurrent is the largest number of calls ever active at once.
func (fs *FS) MaxConcurrent() int32 {
	return fs.maxActive.Load()
}

// Calls is the number of calls made so far, including calls on open files.
func (fs *FS) Calls() int64 {
	return fs.calls.Load()
}

func (fs *FS) lookup(name string) (*inode, bool) {
	return fs.dir.Get(&inode{name: name})
}

func (fs *FS) Create(name string, size int64) bool {
	defer fs.enter()()
	if name == "" || len(name) > NameMax || size < 0 {
		return false
	}
	if _, ok := fs.lookup(name); ok {
		return false
	}
	fs.dir.ReplaceOrInsert(&inode{name: name, data: make([]byte, size)})
	return true
}

// Remove unlinks name. Files already open keep working until closed.
func (fs *FS) Remove(name string) bool {
	defer fs.enter()()
	_, ok := fs.dir.Delete(&inode{name: name})
	return ok
}

func (fs *FS) Open(name string) (models.File, bool) {
	defer fs.enter()()
	ino, ok := fs.lookup(name)
	if !ok {
		return nil, false
	}
	ino.opens++
	return &file{fs: fs, ino: ino}, true
}

// Names lists the directory in order.
func (fs *FS) Names() []string {
	defer fs.enter()()
	var names []string
	fs.dir.Ascend(func(ino *inode) bool {
		names = append(names, ino.name)
		return true
	})
	return names
}

// ReadFile returns a copy of name's contents.
func (fs *FS) ReadFile(name string) ([]byte, bool) {
	defer fs.enter()()
	ino, ok := fs.lookup(name)
	if !ok {
		return nil, false
	}
	return append([]byte(nil), ino.data...), true
}

// WriteFile creates or replaces name with data, sized to fit.
func (fs *FS) WriteFile(name string, data []byte) bool {
	defer fs.enter()()
	if name == "" || len(name) > NameMax {
		return false
	}
	fs.dir.ReplaceOrInsert(&inode{name: name, data: append([]byte(nil), data...)})
	return true
}

// OpenCount is the number of open files on name.
func (fs *FS) OpenCount(name string) int {
	defer fs.enter()()
	if ino, ok := fs.lookup(name); ok {
		return ino.opens
	}
	return 0
}

type file struct {
	fs  *FS
	ino *inode
	pos int64
}

func (f *file) Read(p []byte) int {
	defer f.fs.enter()()
	if f.pos >= int64(len(f.ino.data)) {
		return 0
	}
	n := copy(p, f.ino.data[f.pos:])
	f.pos += int64(n)
	return n
}

// Write never grows the file.
func (f *file) Write(p []byte) int {
	defer f.fs.enter()()
	if f.pos >= int64(len(f.ino.data)) {
		return 0
	}
	n := copy(f.ino.data[f.pos:], p)
	f.pos += int64(n)
	return n
}

func (f *file) SeekTo(pos int64) {
	defer f.fs.enter()()
	if pos >= 0 {
		f.pos = pos
	}
}

func (f *file) Tell() int64 {
	defer f.fs.enter()()
	return f.pos
}

func (f *file) Length() int64 {
	defer f.fs.enter()()
	return int64(len(f.ino.data))
}

func (f *file) Close() {
	defer f.fs.enter()()
	f.ino.opens--
}
