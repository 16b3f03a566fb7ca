package common

import (
	"github.com/pkg/errors"
)

type (
	// Buf is a user buffer address. It has not been validated.
	Buf struct {
		Addr uint64
		K    *KernelBase
	}
	// Str is the address of a NUL-terminated user string.
	Str  uint64
	Len  uint64
	Fd   int64
	Ptr  uint64
)

// Check validates [Addr, Addr+size) against the calling process.
func (b Buf) Check(size Len) error {
	return b.K.Validator.Check(b.Addr, uint64(size), "buffer")
}

// ReadInto copies user memory into p. Check must have passed for len(p).
func (b Buf) ReadInto(p []byte) error {
	return errors.Wrap(b.K.Mem.MemReadInto(p, b.Addr), "user buffer read failed")
}

// WriteFrom copies p into user memory. Check must have passed for len(p).
func (b Buf) WriteFrom(p []byte) error {
	return errors.Wrap(b.K.Mem.MemWrite(b.Addr, p), "user buffer write failed")
}
