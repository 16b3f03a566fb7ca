package models

// TrapFrame is the register state saved when a user program traps into the
// kernel: the user stack pointer and a single return-value word.
type TrapFrame struct {
	sp     uint64
	ret    uint64
	retSet bool
	mask   uint64
}

func NewTrapFrame(sp uint64, bits uint) *TrapFrame {
	return &TrapFrame{sp: sp, mask: ^uint64(0) >> (64 - bits)}
}

func (f *TrapFrame) SP() uint64 {
	return f.sp
}

// SetReturn stores v, truncated to one machine word, in the return slot.
func (f *TrapFrame) SetReturn(v uint64) {
	f.ret = v & f.mask
	f.retSet = true
}

// Return reports the return slot and whether anything wrote it.
func (f *TrapFrame) Return() (uint64, bool) {
	return f.ret, f.retSet
}

// ReturnInt is the return slot sign-extended from the machine word.
func (f *TrapFrame) ReturnInt() int {
	if f.mask == 0xffffffff {
		return int(int32(f.ret))
	}
	return int(int64(f.ret))
}
