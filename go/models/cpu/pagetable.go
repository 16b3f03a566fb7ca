package cpu

import (
	"fmt"
	"strings"

	"github.com/google/btree"
)

type MemError struct {
	Addr uint64
	Size int
	Enum int
}

func (m *MemError) Error() string {
	reason := "memory error"
	switch m.Enum {
	case MEM_WRITE_UNMAPPED:
		reason = "unmapped write"
	case MEM_READ_UNMAPPED:
		reason = "unmapped read"
	case MEM_WRITE_PROT:
		reason = "protected write"
	case MEM_READ_PROT:
		reason = "protected read"
	case MEM_OUT_OF_RANGE:
		reason = "out of range"
	}
	return fmt.Sprintf("%s at %#x(%d)", reason, m.Addr, m.Size)
}

// Page is one mapped page of a process address space.
type Page struct {
	Addr uint64
	Prot int
	Desc string
	Data []byte
}

func protString(prot int) string {
	s := []byte("---")
	if prot&PROT_READ != 0 {
		s[0] = 'r'
	}
	if prot&PROT_WRITE != 0 {
		s[1] = 'w'
	}
	if prot&PROT_EXEC != 0 {
		s[2] = 'x'
	}
	return string(s)
}

// Region is a run of adjacent pages sharing a protection and label.
type Region struct {
	Addr, Size uint64
	Prot       int
	Desc       string
}

func (r Region) String() string {
	desc := ""
	if r.Desc != "" {
		desc = fmt.Sprintf(" [%s]", r.Desc)
	}
	return fmt.Sprintf("%#x-%#x %s%s", r.Addr, r.Addr+r.Size, protString(r.Prot), desc)
}

type Regions []Region

func (rs Regions) String() string {
	lines := make([]string, len(rs))
	for i, r := range rs {
		lines[i] = r.String()
	}
	return strings.Join(lines, "\n")
}

// PageTable maps page-aligned addresses to pages, ordered by address. It is
// not safe for concurrent use; each address space belongs to one process.
type PageTable struct {
	pageSize uint64
	pages    *btree.BTreeG[*Page]
}

func NewPageTable(pageSize uint64) *PageTable {
	return &PageTable{
		pageSize: pageSize,
		pages:    btree.NewG[*Page](16, func(a, b *Page) bool { return a.Addr < b.Addr }),
	}
}

func (t *PageTable) base(addr uint64) uint64 {
	return addr &^ (t.pageSize - 1)
}

// Lookup finds the page holding addr.
func (t *PageTable) Lookup(addr uint64) (*Page, bool) {
	return t.pages.Get(&Page{Addr: t.base(addr)})
}

// Map installs zeroed pages over [addr, addr+size), replacing anything there.
// addr and size must be page aligned.
func (t *PageTable) Map(addr, size uint64, prot int, desc string) {
	for a := addr; a-addr < size; a += t.pageSize {
		t.pages.ReplaceOrInsert(&Page{Addr: a, Prot: prot, Desc: desc, Data: make([]byte, t.pageSize)})
	}
}

func (t *PageTable) Unmap(addr, size uint64) {
	for a := addr; a-addr < size; a += t.pageSize {
		t.pages.Delete(&Page{Addr: a})
	}
}

func (t *PageTable) Protect(addr, size uint64, prot int) {
	for a := addr; a-addr < size; a += t.pageSize {
		if pg, ok := t.Lookup(a); ok {
			pg.Prot = prot
		}
	}
}

// Mapped reports whether every page touching [addr, addr+size) is present.
func (t *PageTable) Mapped(addr, size uint64) bool {
	if size == 0 {
		size = 1
	}
	for a := t.base(addr); a < addr+size; a += t.pageSize {
		if _, ok := t.Lookup(a); !ok {
			return false
		}
	}
	return true
}

// Regions lists the mappings, merging neighbors that only differ by page.
func (t *PageTable) Regions() Regions {
	var out Regions
	t.pages.Ascend(func(pg *Page) bool {
		if n := len(out); n > 0 {
			last := &out[n-1]
			if last.Addr+last.Size == pg.Addr && last.Prot == pg.Prot && last.Desc == pg.Desc {
				last.Size += t.pageSize
				return true
			}
		}
		out = append(out, Region{Addr: pg.Addr, Size: t.pageSize, Prot: pg.Prot, Desc: pg.Desc})
		return true
	})
	return out
}

// access copies between p and memory at addr. Every page is checked for
// presence and for the whole prot mask before any byte moves.
func (t *PageTable) access(addr uint64, p []byte, prot int, write bool) error {
	unmapped, denied := MEM_READ_UNMAPPED, MEM_READ_PROT
	if write {
		unmapped, denied = MEM_WRITE_UNMAPPED, MEM_WRITE_PROT
	}
	end := addr + uint64(len(p))
	var pages []*Page
	for a := t.base(addr); a < end; a += t.pageSize {
		pg, ok := t.Lookup(a)
		if !ok {
			return &MemError{Addr: addr, Size: len(p), Enum: unmapped}
		}
		if pg.Prot&prot != prot {
			return &MemError{Addr: addr, Size: len(p), Enum: denied}
		}
		pages = append(pages, pg)
	}
	off := addr - t.base(addr)
	for _, pg := range pages {
		var n int
		if write {
			n = copy(pg.Data[off:], p)
		} else {
			n = copy(p, pg.Data[off:])
		}
		p = p[n:]
		off = 0
	}
	return nil
}

func (t *PageTable) Read(addr uint64, p []byte, prot int) error {
	return t.access(addr, p, prot, false)
}

func (t *PageTable) Write(addr uint64, p []byte, prot int) error {
	return t.access(addr, p, prot, true)
}
