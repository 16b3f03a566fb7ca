package common

import (
	"github.com/lunixbochs/argjoy"
)

// signed sign-extends a raw argument word.
func (k *KernelBase) signed(reg uint64) int64 {
	if k.Bits == 32 {
		return int64(int32(reg))
	}
	return int64(reg)
}

func (k *KernelBase) commonArgCodec(arg interface{}, vals []interface{}) error {
	if reg, ok := vals[0].(uint64); ok {
		switch v := arg.(type) {
		case *Buf:
			*v = Buf{K: k, Addr: reg}
		case *Str:
			*v = Str(reg)
		case *Len:
			*v = Len(reg)
		case *Fd:
			*v = Fd(k.signed(reg))
		case *Ptr:
			*v = Ptr(reg)
		case *int:
			*v = int(k.signed(reg))
		case *int32:
			*v = int32(k.signed(reg))
		case *uint32:
			*v = uint32(reg)
		case *uint64:
			*v = reg
		default:
			return argjoy.NoMatch
		}
		return nil
	}
	return argjoy.NoMatch
}
