package common

import (
	"fmt"
	"strings"

	"github.com/lunixbochs/trapgate/go/models"
)

func hex(a interface{}) string {
	tmp := fmt.Sprintf("0x%x", a)
	if strings.HasPrefix(tmp, "0x-") {
		tmp = "-0x" + tmp[3:]
	}
	return tmp
}

// traceArg never faults: user memory is only shown if it validates.
func (s Syscall) traceArg(args ...interface{}) string {
	k := s.Kernel
	switch arg := args[0].(type) {
	case Buf:
		if len(args) > 1 {
			if length, ok := args[1].(Len); ok && k.ValidRange(arg.Addr, uint64(length)) {
				mem := make([]byte, length)
				if err := k.Mem.MemReadInto(mem, arg.Addr); err == nil {
					return models.Repr(mem, k.Config.Strsize)
				}
			}
		}
		return hex(arg.Addr)
	case Str:
		if str, err := k.ReadString(uint64(arg)); err == nil {
			return models.Repr([]byte(str), k.Config.Strsize)
		}
		return hex(uint64(arg))
	case Ptr:
		if str, err := k.ReadString(uint64(arg)); err == nil {
			return models.Repr([]byte(str), k.Config.Strsize)
		}
		return hex(uint64(arg))
	case Fd:
		return fmt.Sprintf("%d", int64(arg))
	case Len:
		return fmt.Sprintf("%d", uint64(arg))
	case uint64:
		return hex(arg)
	default:
		return fmt.Sprintf("%v", arg)
	}
}

func (s Syscall) traceArgs(regs []uint64) string {
	inRef, err := s.Kernel.Argjoy.Convert(s.In, false, regs)
	if err != nil {
		return err.Error()
	}
	in := make([]interface{}, len(inRef))
	for i, val := range inRef {
		in[i] = val.Interface()
	}
	ret := make([]string, len(in))
	for i := range in {
		ret[i] = s.traceArg(in[i:]...)
	}
	return strings.Join(ret, ", ")
}

func (s Syscall) Trace(regs []uint64) string {
	return fmt.Sprintf("%s(%s)", s.Name, s.traceArgs(regs))
}

// TraceRet formats the outcome of a call traced with Trace.
func (s Syscall) TraceRet(ret uint64, hasRet bool, err error) string {
	switch {
	case err != nil:
		return fmt.Sprintf(" = ? (%v)", err)
	case hasRet:
		return fmt.Sprintf(" = %d", s.Kernel.signed(ret))
	}
	return ""
}
