package common

import (
	"github.com/lunixbochs/trapgate/go/models"
)

// Validator answers whether user addresses are safe for the kernel to touch.
type Validator struct {
	Mem      models.AddressSpace
	PhysBase uint64
	PageSize uint64
}

// Valid reports whether addr is non-null, below the kernel split and mapped.
func (v *Validator) Valid(addr uint64) bool {
	return addr != 0 && addr < v.PhysBase && v.Mem.Mapped(addr)
}

// ValidRange reports whether every byte of [addr, addr+size) is Valid. Mappings
// are page granular, so it is enough to test both ends and each page in
// between. An empty range still requires addr itself to be valid.
func (v *Validator) ValidRange(addr, size uint64) bool {
	if size == 0 {
		return v.Valid(addr)
	}
	end := addr + size - 1
	if end < addr {
		return false
	}
	if !v.Valid(addr) || !v.Valid(end) {
		return false
	}
	for page := (addr &^ (v.PageSize - 1)) + v.PageSize; page < end; page += v.PageSize {
		if !v.Valid(page) {
			return false
		}
	}
	return true
}

func (v *Validator) Check(addr, size uint64, what string) error {
	if !v.ValidRange(addr, size) {
		return &Violation{Addr: addr, Size: size, What: what}
	}
	return nil
}
