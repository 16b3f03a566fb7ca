package cpu

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// Mem is a paged address space for one user process. It rounds every
// mapping out to page boundaries and answers translation queries.
type Mem struct {
	bits uint
	// methods return an error for addresses that do not fit inside mask
	// calculated by NewMem using ^uint64(0) >> (64 - bits)
	mask     uint64
	pageSize uint64
	pages    *PageTable

	order binary.ByteOrder
}

func NewMem(bits uint, order binary.ByteOrder, pageSize uint64) *Mem {
	if pageSize == 0 || pageSize&(pageSize-1) != 0 {
		panic(errors.Errorf("page size %#x is not a power of two", pageSize))
	}
	return &Mem{
		bits:     bits,
		mask:     ^uint64(0) >> (64 - bits),
		pageSize: pageSize,
		pages:    NewPageTable(pageSize),
		order:    order,
	}
}

func (m *Mem) Bits() uint                  { return m.bits }
func (m *Mem) ByteOrder() binary.ByteOrder { return m.order }
func (m *Mem) PageSize() uint64            { return m.pageSize }

// align rounds [addr, addr+size) out to whole pages.
func (m *Mem) align(addr, size uint64) (uint64, uint64) {
	start := addr &^ (m.pageSize - 1)
	end := (addr + size + m.pageSize - 1) &^ (m.pageSize - 1)
	return start, end - start
}

func (m *Mem) inRange(addr, size uint64) bool {
	end := addr + size
	return end >= addr && (end-1)&m.mask == end-1
}

func (m *Mem) MemMapProt(addr, size uint64, prot int) error {
	return m.MemMapDesc(addr, size, prot, "")
}

// MemMapDesc is MemMapProt with a label shown by Maps().
func (m *Mem) MemMapDesc(addr, size uint64, prot int, desc string) error {
	addr, size = m.align(addr, size)
	if size == 0 || !m.inRange(addr, size) {
		return errors.Errorf("region %#x(%#x) outside memory range", addr, size)
	}
	m.pages.Map(addr, size, prot, desc)
	return nil
}

func (m *Mem) MemProt(addr, size uint64, prot int) error {
	addr, size = m.align(addr, size)
	if !m.pages.Mapped(addr, size) {
		return errors.New("range not mapped")
	}
	m.pages.Protect(addr, size, prot)
	return nil
}

func (m *Mem) MemUnmap(addr, size uint64) error {
	addr, size = m.align(addr, size)
	if !m.pages.Mapped(addr, size) {
		return errors.New("range not mapped")
	}
	m.pages.Unmap(addr, size)
	return nil
}

// Mapped reports whether addr translates to a mapped page.
func (m *Mem) Mapped(addr uint64) bool {
	if addr&m.mask != addr {
		return false
	}
	return m.pages.Mapped(addr, 1)
}

func (m *Mem) Maps() Regions {
	return m.pages.Regions()
}

func (m *Mem) MemReadInto(p []byte, addr uint64) error {
	if !m.inRange(addr, uint64(len(p))) {
		return &MemError{Addr: addr, Size: len(p), Enum: MEM_OUT_OF_RANGE}
	}
	return m.pages.Read(addr, p, 0)
}

func (m *Mem) MemRead(addr, size uint64) ([]byte, error) {
	p := make([]byte, size)
	if err := m.MemReadInto(p, addr); err != nil {
		return nil, err
	}
	return p, nil
}

func (m *Mem) MemWrite(addr uint64, p []byte) error {
	if !m.inRange(addr, uint64(len(p))) {
		return &MemError{Addr: addr, Size: len(p), Enum: MEM_OUT_OF_RANGE}
	}
	return m.pages.Write(addr, p, 0)
}

// ReadProt reads while checking protections.
func (m *Mem) ReadProt(addr, size uint64, prot int) ([]byte, error) {
	p := make([]byte, size)
	if err := m.pages.Read(addr, p, prot); err != nil {
		return nil, err
	}
	return p, nil
}

// WriteProt writes while checking protections.
func (m *Mem) WriteProt(addr uint64, p []byte, prot int) error {
	return m.pages.Write(addr, p, prot)
}

func (m *Mem) ReadUint(addr uint64, size, prot int) (uint64, error) {
	if size > 8 {
		return 0, errors.Errorf("ReadUint size too large: %d > 8", size)
	}
	p, err := m.ReadProt(addr, uint64(size), prot)
	if err != nil {
		return 0, err
	}
	return UnpackUint(m.order, size, p)
}

func (m *Mem) WriteUint(addr uint64, size, prot int, val uint64) error {
	var buf [8]byte
	if size > 8 {
		return errors.Errorf("WriteUint size too large: %d > 8", size)
	}
	if _, err := PackUint(m.order, size, buf[:], val); err != nil {
		return err
	}
	return m.WriteProt(addr, buf[:size], prot)
}
