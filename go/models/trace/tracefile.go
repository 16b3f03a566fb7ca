// Package trace records serviced system calls to a compressed binary file
// and reads them back.
package trace

import (
	"encoding/binary"
	"io"
	"sync"

	"github.com/golang/snappy"
	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"

	"github.com/lunixbochs/trapgate/go/models"
)

var TRACE_MAGIC = "TRAP"

type TraceHeader struct {
	// MAGIC ("TRAP")
	Magic string `struc:"[4]byte" json:"-"`
	// file format version
	Version uint32 `json:"version"`
	// machine word size of the traced system
	Bits uint8 `json:"bits"`
	// Byte Order - 0 for little, 1 for big
	OrderNum  uint8            `json:"-"`
	OrderName string           `struc:"skip" json:"order"`
	Order     binary.ByteOrder `struc:"skip" json:"-"`
}

// TraceWriter is a models.Tracer that appends every event to w. It is safe
// for concurrent use by all processes of a System.
type TraceWriter struct {
	mu    sync.Mutex
	w     io.WriteCloser
	zw    *snappy.Writer
	err   error
	count int
}

func NewWriter(w io.WriteCloser, config *models.Config) (*TraceWriter, error) {
	header := &TraceHeader{
		Magic:   TRACE_MAGIC,
		Version: 1,
		Bits:    uint8(config.Bits),
	}
	if config.BigEndian {
		header.OrderNum = 1
	}
	if err := struc.Pack(w, header); err != nil {
		return nil, errors.Wrap(err, "failed to pack header")
	}
	return &TraceWriter{w: w, zw: snappy.NewBufferedWriter(w)}, nil
}

func (t *TraceWriter) OnSyscall(ev *models.SyscallEvent) {
	t.Pack(FromEvent(ev))
}

// Pack writes one op. After the first failure every call returns that error.
func (t *TraceWriter) Pack(op Op) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.err == nil {
		if t.err = Pack(t.zw, op); t.err == nil {
			t.count++
		}
	}
	return t.err
}

// Count is the number of ops written.
func (t *TraceWriter) Count() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}

func (t *TraceWriter) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	err := t.zw.Close()
	if cerr := t.w.Close(); err == nil {
		err = cerr
	}
	if t.err != nil {
		return t.err
	}
	return err
}

type TraceReader struct {
	r      io.ReadCloser
	zr     *snappy.Reader
	Header TraceHeader
}

func NewReader(r io.ReadCloser) (*TraceReader, error) {
	t := &TraceReader{r: r}
	if err := struc.Unpack(r, &t.Header); err != nil {
		return nil, errors.Wrap(err, "failed to unpack header")
	}
	if t.Header.Magic != TRACE_MAGIC {
		return nil, errors.New("invalid trace file magic")
	}
	switch t.Header.OrderNum {
	case 0:
		t.Header.Order = binary.LittleEndian
		t.Header.OrderName = "little"
	case 1:
		t.Header.Order = binary.BigEndian
		t.Header.OrderName = "big"
	default:
		return nil, errors.Errorf("invalid byte order: %d", t.Header.OrderNum)
	}
	t.zr = snappy.NewReader(r)
	return t, nil
}

// Next returns io.EOF after the last op.
func (t *TraceReader) Next() (Op, error) {
	return Unpack(t.zr)
}

func (t *TraceReader) Close() {
	t.zr.Reset(nil)
	t.r.Close()
}
