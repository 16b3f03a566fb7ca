package models

// AddressSpace is the address-translation view of one process.
type AddressSpace interface {
	// Mapped reports whether addr translates to a mapped page.
	Mapped(addr uint64) bool
	MemReadInto(p []byte, addr uint64) error
	MemWrite(addr uint64, p []byte) error
}

// Filesys is the non-reentrant file-system layer. Callers must hold the
// filesystem gate for every call, including calls on an open File.
type Filesys interface {
	Create(name string, size int64) bool
	Remove(name string) bool
	Open(name string) (File, bool)
}

type File interface {
	Read(p []byte) int
	Write(p []byte) int
	SeekTo(pos int64)
	Tell() int64
	Length() int64
	Close()
}

type Console interface {
	// Putbuf writes p as a single unsplittable unit.
	Putbuf(p []byte)
	Getc() byte
}

type Power interface {
	Off()
}

// ProcessControl starts and reaps processes on behalf of a parent.
type ProcessControl interface {
	// Exec returns the new pid, or -1 if the process could not start.
	Exec(parent int, cmdline string) int
	// Wait blocks until pid exits and returns its status, or -1 if pid is not
	// a child of parent or was already waited for.
	Wait(parent, pid int) int
}

// SyscallEvent describes one serviced trap.
type SyscallEvent struct {
	Pid    int
	Num    int
	Name   string
	Args   []uint64
	Ret    uint64
	HasRet bool
	// Err is non-nil if the trap terminated the process or halted the machine.
	Err error
}

type Tracer interface {
	OnSyscall(ev *SyscallEvent)
}
