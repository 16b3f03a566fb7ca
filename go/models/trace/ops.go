package trace

import (
	"encoding/binary"
	"io"

	"github.com/lunixbochs/struc"
	"github.com/pkg/errors"

	"github.com/lunixbochs/trapgate/go/models"
)

var order = binary.LittleEndian

const (
	OP_NOP     = 0
	OP_SYSCALL = 1
	OP_EXIT    = 2
	OP_FAULT   = 3
	OP_HALT    = 4
)

// Op is one record of a trace file.
type Op interface {
	Code() uint8
}

type OpNop struct{}

func (o *OpNop) Code() uint8 { return OP_NOP }

// OpSyscall is a call that returned to its process.
type OpSyscall struct {
	Pid    int32
	Num    int32
	Nargs  uint8 `struc:"uint8,sizeof=Args"`
	Args   []uint64
	HasRet bool
	Ret    uint64
}

func (o *OpSyscall) Code() uint8 { return OP_SYSCALL }

// OpExit is a call that ended its process normally.
type OpExit struct {
	Pid    int32
	Num    int32
	Status int32
}

func (o *OpExit) Code() uint8 { return OP_EXIT }

// OpFault is a call that killed its process.
type OpFault struct {
	Pid    int32
	Num    int32
	MsgLen uint16 `struc:"uint16,sizeof=Msg"`
	Msg    string
}

func (o *OpFault) Code() uint8 { return OP_FAULT }

type OpHalt struct {
	Pid int32
}

func (o *OpHalt) Code() uint8 { return OP_HALT }

// FromEvent classifies a serviced trap.
func FromEvent(ev *models.SyscallEvent) Op {
	pid, num := int32(ev.Pid), int32(ev.Num)
	var status models.ExitStatus
	switch {
	case ev.Err == nil:
		return &OpSyscall{Pid: pid, Num: num, Args: ev.Args, HasRet: ev.HasRet, Ret: ev.Ret}
	case errors.Is(ev.Err, models.ErrHalted):
		return &OpHalt{Pid: pid}
	case errors.As(ev.Err, &status):
		return &OpExit{Pid: pid, Num: num, Status: int32(status)}
	default:
		return &OpFault{Pid: pid, Num: num, Msg: ev.Err.Error()}
	}
}

func Pack(w io.Writer, op Op) error {
	if _, err := w.Write([]byte{op.Code()}); err != nil {
		return err
	}
	if _, ok := op.(*OpNop); ok {
		return nil
	}
	return struc.PackWithOrder(w, op, order)
}

func Unpack(r io.Reader) (Op, error) {
	var tmp [1]byte
	if _, err := io.ReadFull(r, tmp[:]); err != nil {
		return nil, err
	}
	var op Op
	switch tmp[0] {
	case OP_NOP:
		return &OpNop{}, nil
	case OP_SYSCALL:
		op = &OpSyscall{}
	case OP_EXIT:
		op = &OpExit{}
	case OP_FAULT:
		op = &OpFault{}
	case OP_HALT:
		op = &OpHalt{}
	default:
		return nil, errors.Errorf("Unknown op: %d", tmp[0])
	}
	if err := struc.UnpackWithOrder(r, op, order); err != nil {
		return nil, errors.Wrap(err, "unpacking op")
	}
	return op, nil
}
