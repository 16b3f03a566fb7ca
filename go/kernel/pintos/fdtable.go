package pintos

import (
	"sort"

	co "github.com/lunixbochs/trapgate/go/kernel/common"
	"github.com/lunixbochs/trapgate/go/models"
)

// FdTable maps a process's handles to open files. Handles 0 and 1 name the
// console and are never stored. It belongs to one process and is not locked.
type FdTable struct {
	files map[co.Fd]models.File
}

func NewFdTable() *FdTable {
	return &FdTable{files: make(map[co.Fd]models.File)}
}

// Allocate binds f to the lowest free handle above the console handles.
func (t *FdTable) Allocate(f models.File) co.Fd {
	fd := co.Fd(STDOUT_FILENO + 1)
	for {
		if _, ok := t.files[fd]; !ok {
			break
		}
		fd++
	}
	t.files[fd] = f
	return fd
}

func (t *FdTable) Lookup(fd co.Fd) (models.File, bool) {
	f, ok := t.files[fd]
	return f, ok
}

// Release drops fd. Unknown handles are ignored.
func (t *FdTable) Release(fd co.Fd) {
	delete(t.files, fd)
}

func (t *FdTable) Len() int {
	return len(t.files)
}

// Drain empties the table and returns what was open, in handle order.
func (t *FdTable) Drain() []models.File {
	fds := make([]co.Fd, 0, len(t.files))
	for fd := range t.files {
		fds = append(fds, fd)
	}
	sort.Slice(fds, func(i, j int) bool { return fds[i] < fds[j] })
	out := make([]models.File, len(fds))
	for i, fd := range fds {
		out[i] = t.files[fd]
	}
	t.files = make(map[co.Fd]models.File)
	return out
}
