package common

import (
	"github.com/pkg/errors"

	"github.com/lunixbochs/trapgate/go/models"
)

func (k *KernelBase) StrucAt(addr uint64) *models.StrucStream {
	return &models.StrucStream{
		Stream: &models.MemStream{Mem: k.Mem, Addr: addr},
		Order:  k.Order,
	}
}

// ReadArgs returns n words starting at base. The whole span is validated
// before any word is read; on failure nothing is read and a *Violation is
// returned.
func (k *KernelBase) ReadArgs(base uint64, n int, what string) ([]uint64, error) {
	if n == 0 {
		return nil, nil
	}
	if err := k.Check(base, uint64(n)*k.WordSize(), what); err != nil {
		return nil, err
	}
	s := k.StrucAt(base)
	ret := make([]uint64, n)
	for i := 0; i < n; i++ {
		var arg uint64
		var err error
		if k.Bits == 64 {
			err = s.Unpack(&arg)
		} else {
			var arg32 uint32
			err = s.Unpack(&arg32)
			arg = uint64(arg32)
		}
		if err != nil {
			return nil, errors.Wrap(err, "struc.Unpack() failed")
		}
		ret[i] = arg
	}
	return ret, nil
}

// ReadString copies the NUL-terminated string at addr, validating every byte
// before it is read.
func (k *KernelBase) ReadString(addr uint64) (string, error) {
	var out []byte
	start := addr
	for {
		if !k.Valid(addr) {
			return "", &Violation{Addr: start, Size: uint64(len(out)), What: "string"}
		}
		// read up to the end of the current page in one go
		chunk := make([]byte, k.PageSize-addr&(k.PageSize-1))
		if err := k.Mem.MemReadInto(chunk, addr); err != nil {
			return "", errors.Wrap(err, "user string read failed")
		}
		for i, c := range chunk {
			if c == 0 {
				return string(append(out, chunk[:i]...)), nil
			}
		}
		out = append(out, chunk...)
		addr += uint64(len(chunk))
	}
}
