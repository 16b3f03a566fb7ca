// Package pintos implements the system call layer of a small teaching
// kernel: thirteen calls covering process control and file I/O, each
// validated against the calling process's address space.
package pintos

import (
	"github.com/sirupsen/logrus"

	co "github.com/lunixbochs/trapgate/go/kernel/common"
	"github.com/lunixbochs/trapgate/go/models"
)

// Kernel is the kernel side of one user process. Its descriptor table and
// exit status are private to that process; everything shared lives in System.
type Kernel struct {
	*co.KernelBase
	sys   *System
	Pid   int
	Name  string
	Files *FdTable

	log    *logrus.Entry
	exited bool
	status int
}

func NewKernel(sys *System, pid int, name string, mem models.AddressSpace) (*Kernel, error) {
	k := &Kernel{
		KernelBase: co.NewKernelBase(sys.Config, mem, SyscallNames),
		sys:        sys,
		Pid:        pid,
		Name:       name,
		Files:      NewFdTable(),
		log:        sys.Log.WithFields(logrus.Fields{"pid": pid, "name": name}),
	}
	if err := co.Init(k); err != nil {
		return nil, err
	}
	return k, nil
}

// Exited reports the exit status once the process has terminated.
func (k *Kernel) Exited() (int, bool) {
	return k.status, k.exited
}

// Log is the process's logger, tagged with its pid and name.
func (k *Kernel) Log() *logrus.Entry {
	return k.log
}
