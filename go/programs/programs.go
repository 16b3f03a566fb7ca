// Package programs is a small set of user programs for exercising a System
// from the command line.
package programs

import (
	"strconv"
	"strings"

	"github.com/lunixbochs/trapgate/go/kernel/pintos"
	"github.com/lunixbochs/trapgate/go/kernel/proc"
)

var All = map[string]proc.Program{
	"echo":  Echo,
	"cat":   Cat,
	"touch": Touch,
	"rm":    Rm,
	"put":   Put,
	"cp":    Cp,
	"spawn": Spawn,
	"read":  Read,
	"halt":  Halt,
	"bad":   Bad,
}

func Register(t *proc.Table) {
	for name, prog := range All {
		t.Register(name, prog)
	}
}

func puts(u *proc.User, s string) {
	u.Write(pintos.STDOUT_FILENO, []byte(s))
}

// Echo writes its arguments to the console.
func Echo(u *proc.User, args []string) int {
	puts(u, strings.Join(args[1:], " ")+"\n")
	return 0
}

// Cat copies each named file to the console.
func Cat(u *proc.User, args []string) int {
	status := 0
	buf := make([]byte, 64)
	for _, name := range args[1:] {
		fd := u.Open(name)
		if fd < 0 {
			puts(u, "cat: "+name+": not found\n")
			status = 1
			continue
		}
		for {
			n := u.Read(fd, buf)
			if n <= 0 {
				break
			}
			u.Write(pintos.STDOUT_FILENO, buf[:n])
		}
		u.Close(fd)
	}
	return status
}

// Touch creates name with the given size.
func Touch(u *proc.User, args []string) int {
	if len(args) != 3 {
		puts(u, "usage: touch <name> <size>\n")
		return 1
	}
	size, err := strconv.Atoi(args[2])
	if err != nil || !u.Create(args[1], size) {
		return 1
	}
	return 0
}

func Rm(u *proc.User, args []string) int {
	status := 0
	for _, name := range args[1:] {
		if !u.Remove(name) {
			status = 1
		}
	}
	return status
}

// Put creates name holding the rest of its arguments.
func Put(u *proc.User, args []string) int {
	if len(args) < 2 {
		puts(u, "usage: put <name> [text...]\n")
		return 1
	}
	data := []byte(strings.Join(args[2:], " "))
	if !u.Create(args[1], len(data)) {
		return 1
	}
	fd := u.Open(args[1])
	if fd < 0 {
		return 1
	}
	defer u.Close(fd)
	if u.Write(fd, data) != len(data) {
		return 1
	}
	return 0
}

// Cp copies src to a new file dst of the same size.
func Cp(u *proc.User, args []string) int {
	if len(args) != 3 {
		puts(u, "usage: cp <src> <dst>\n")
		return 1
	}
	src := u.Open(args[1])
	if src < 0 {
		return 1
	}
	defer u.Close(src)
	if !u.Create(args[2], u.Filesize(src)) {
		return 1
	}
	dst := u.Open(args[2])
	if dst < 0 {
		return 1
	}
	defer u.Close(dst)
	buf := make([]byte, 64)
	for {
		n := u.Read(src, buf)
		if n <= 0 {
			break
		}
		u.Write(dst, buf[:n])
	}
	if u.Tell(dst) != u.Filesize(dst) {
		return 1
	}
	return 0
}

// Spawn runs the rest of its arguments as a child and exits with its status.
func Spawn(u *proc.User, args []string) int {
	pid := u.Exec(strings.Join(args[1:], " "))
	if pid < 0 {
		return -1
	}
	return u.Wait(pid)
}

// Read echoes n bytes of console input.
func Read(u *proc.User, args []string) int {
	n := 1
	if len(args) > 1 {
		n, _ = strconv.Atoi(args[1])
	}
	buf := make([]byte, n)
	got := u.Read(pintos.STDIN_FILENO, buf)
	u.Write(pintos.STDOUT_FILENO, buf[:got])
	return 0
}

func Halt(u *proc.User, args []string) int {
	u.Halt()
	return 0
}

// Bad passes the kernel a null file name.
func Bad(u *proc.User, args []string) int {
	u.Trap(pintos.SYS_OPEN, 0)
	return 0
}
