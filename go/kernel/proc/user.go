package proc

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/lunixbochs/trapgate/go/kernel/pintos"
	"github.com/lunixbochs/trapgate/go/models"
	"github.com/lunixbochs/trapgate/go/models/cpu"
)

// terminated unwinds a program once its process is gone.
type terminated struct {
	err error
}

// User is the user-mode side of a process: its memory and a stub that lays
// out arguments on the stack and traps, the way a C library wrapper would.
type User struct {
	Pid int
	Mem *cpu.Mem
	K   *pintos.Kernel

	table  *Table
	config *models.Config
	brk    uint64
	mapEnd uint64

	scratch     uint64
	scratchSize uint64
}

func newUser(t *Table, pid int, name string) (*User, error) {
	c := t.sys.Config
	mem := cpu.NewMem(c.Bits, c.ByteOrder(), c.PageSize)
	stackSize := uint64(c.StackPages) * c.PageSize
	if err := mem.MemMapDesc(c.PhysBase-stackSize, stackSize, cpu.PROT_READ|cpu.PROT_WRITE, "[stack]"); err != nil {
		return nil, err
	}
	k, err := pintos.NewKernel(t.sys, pid, name, mem)
	if err != nil {
		return nil, err
	}
	return &User{
		Pid:    pid,
		Mem:    mem,
		K:      k,
		table:  t,
		config: c,
		brk:    c.DataBase,
		mapEnd: c.DataBase,
	}, nil
}

// Alloc reserves size bytes of the data region, mapping pages as needed.
func (u *User) Alloc(size uint64) uint64 {
	addr := u.brk
	end := addr + size
	if end > u.mapEnd {
		grow := (end - u.mapEnd + u.config.PageSize - 1) &^ (u.config.PageSize - 1)
		if err := u.Mem.MemMapDesc(u.mapEnd, grow, cpu.PROT_READ|cpu.PROT_WRITE, "[data]"); err != nil {
			panic(errors.Wrap(err, "data region exhausted"))
		}
		u.mapEnd += grow
	}
	u.brk = end
	return addr
}

// PushString copies s and its terminator into the data region.
func (u *User) PushString(s string) uint64 {
	addr := u.Alloc(uint64(len(s)) + 1)
	u.poke(addr, append([]byte(s), 0))
	return addr
}

// stage places p in a reusable scratch area for the duration of one call.
func (u *User) stage(p []byte) uint64 {
	if uint64(len(p)) > u.scratchSize || u.scratchSize == 0 {
		u.scratchSize = uint64(len(p)) + 1
		u.scratch = u.Alloc(u.scratchSize)
	}
	u.poke(u.scratch, p)
	return u.scratch
}

func (u *User) poke(addr uint64, p []byte) {
	if err := u.Mem.MemWrite(addr, p); err != nil {
		panic(err)
	}
}

// Trap pushes num and args below the top of the stack and traps.
func (u *User) Trap(num int, args ...uint64) (*models.TrapFrame, error) {
	word := u.config.WordSize()
	sp := u.config.PhysBase - uint64(len(args)+1)*word
	s := u.K.StrucAt(sp)
	for _, w := range append([]uint64{uint64(num)}, args...) {
		var err error
		if word == 8 {
			err = s.Pack(w)
		} else {
			err = s.Pack(uint32(w))
		}
		if err != nil {
			return nil, errors.Wrap(err, "failed to push syscall arguments")
		}
	}
	return u.TrapAt(sp)
}

// TrapAt traps with the stack pointer at sp, whatever it points to.
func (u *User) TrapAt(sp uint64) (*models.TrapFrame, error) {
	f := models.NewTrapFrame(sp, u.config.Bits)
	if err := u.K.Syscall(f); err != nil {
		if errors.Is(err, models.ErrHalted) {
			u.table.Halt()
		}
		return f, err
	}
	return f, nil
}

// call traps and unwinds the program if its process did not survive.
func (u *User) call(num int, args ...uint64) int {
	if u.table.isHalted() {
		panic(terminated{models.ErrHalted})
	}
	f, err := u.Trap(num, args...)
	if err != nil {
		panic(terminated{err})
	}
	return f.ReturnInt()
}

func word(n int) uint64 {
	return uint64(int64(n))
}

func (u *User) Halt() {
	u.call(pintos.SYS_HALT)
}

func (u *User) Exit(status int) {
	u.call(pintos.SYS_EXIT, word(status))
	panic(fmt.Sprintf("pid %d survived exit", u.Pid))
}

func (u *User) Exec(cmdline string) int {
	return u.call(pintos.SYS_EXEC, u.stage(append([]byte(cmdline), 0)))
}

func (u *User) Wait(pid int) int {
	return u.call(pintos.SYS_WAIT, word(pid))
}

func (u *User) Create(name string, size int) bool {
	return u.call(pintos.SYS_CREATE, u.stage(append([]byte(name), 0)), word(size)) != 0
}

func (u *User) Remove(name string) bool {
	return u.call(pintos.SYS_REMOVE, u.stage(append([]byte(name), 0))) != 0
}

func (u *User) Open(name string) int {
	return u.call(pintos.SYS_OPEN, u.stage(append([]byte(name), 0)))
}

func (u *User) Close(fd int) {
	u.call(pintos.SYS_CLOSE, word(fd))
}

// Read reads into p through a user buffer.
func (u *User) Read(fd int, p []byte) int {
	buf := u.stage(make([]byte, len(p)))
	n := u.call(pintos.SYS_READ, word(fd), buf, uint64(len(p)))
	if n > 0 {
		if err := u.Mem.MemReadInto(p[:n], buf); err != nil {
			panic(err)
		}
	}
	return n
}

func (u *User) Write(fd int, p []byte) int {
	return u.call(pintos.SYS_WRITE, word(fd), u.stage(p), uint64(len(p)))
}

func (u *User) Filesize(fd int) int {
	return u.call(pintos.SYS_FILESIZE, word(fd))
}

func (u *User) Seek(fd, pos int) {
	u.call(pintos.SYS_SEEK, word(fd), word(pos))
}

func (u *User) Tell(fd int) int {
	return u.call(pintos.SYS_TELL, word(fd))
}
