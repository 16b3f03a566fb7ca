package cpu

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

func checkWord(size, have int) error {
	switch size {
	case 1, 2, 4, 8:
	default:
		return errors.Errorf("unsupported word size: %d", size)
	}
	if have < size {
		return errors.Errorf("buffer too small (%d < %d)", have, size)
	}
	return nil
}

// PackUint encodes the low size bytes of n into buf, allocating it if nil.
func PackUint(order binary.ByteOrder, size int, buf []byte, n uint64) ([]byte, error) {
	if buf == nil {
		buf = make([]byte, size)
	}
	if err := checkWord(size, len(buf)); err != nil {
		return nil, err
	}
	buf = buf[:size]
	var tmp [8]byte
	order.PutUint64(tmp[:], n)
	if order == binary.BigEndian {
		copy(buf, tmp[8-size:])
	} else {
		copy(buf, tmp[:size])
	}
	return buf, nil
}

// UnpackUint decodes a size-byte word from the front of buf.
func UnpackUint(order binary.ByteOrder, size int, buf []byte) (uint64, error) {
	if err := checkWord(size, len(buf)); err != nil {
		return 0, err
	}
	var tmp [8]byte
	if order == binary.BigEndian {
		copy(tmp[8-size:], buf[:size])
	} else {
		copy(tmp[:size], buf[:size])
	}
	return order.Uint64(tmp[:]), nil
}
