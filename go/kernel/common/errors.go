package common

import "fmt"

// Violation is a protocol violation at the user/kernel boundary: the process
// handed the kernel an address it does not own. The caller is terminated.
type Violation struct {
	Addr uint64
	Size uint64
	What string
}

func (v *Violation) Error() string {
	return fmt.Sprintf("invalid %s at %#x(%d)", v.What, v.Addr, v.Size)
}

// UnknownSyscall is returned for call numbers outside the supported set.
type UnknownSyscall int

func (u UnknownSyscall) Error() string {
	return fmt.Sprintf("not supported system call %d", int(u))
}
