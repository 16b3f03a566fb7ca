package models

import (
	"encoding/binary"
	"io"

	"github.com/lunixbochs/struc"
)

type StrucStream struct {
	Stream io.ReadWriter
	Order  binary.ByteOrder
}

func (s *StrucStream) Pack(i interface{}) error {
	return struc.PackWithOrder(s.Stream, i, s.Order)
}

func (s *StrucStream) Unpack(i interface{}) error {
	return struc.UnpackWithOrder(s.Stream, i, s.Order)
}

// MemStream reads and writes an address space sequentially from Addr.
// Callers validate the range first; a fault here is a kernel bug.
type MemStream struct {
	Mem  AddressSpace
	Addr uint64
}

func (m *MemStream) Read(p []byte) (int, error) {
	if err := m.Mem.MemReadInto(p, m.Addr); err != nil {
		return 0, err
	}
	m.Addr += uint64(len(p))
	return len(p), nil
}

func (m *MemStream) Write(p []byte) (int, error) {
	if err := m.Mem.MemWrite(m.Addr, p); err != nil {
		return 0, err
	}
	m.Addr += uint64(len(p))
	return len(p), nil
}
