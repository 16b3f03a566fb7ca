package pintos

import (
	co "github.com/lunixbochs/trapgate/go/kernel/common"
	"github.com/lunixbochs/trapgate/go/models"
)

// Halt syscall
func (k *Kernel) Halt() error {
	k.log.Info("powering off")
	k.sys.Power.Off()
	return models.ErrHalted
}

// Exit syscall
func (k *Kernel) Exit(status int) error {
	return models.ExitStatus(status)
}

// Exec syscall. A bad command line pointer fails the call instead of killing
// the caller.
func (k *Kernel) Exec(cmdline co.Ptr) int {
	line, err := k.ReadString(uint64(cmdline))
	if err != nil {
		k.log.WithError(err).Debug("exec: unreadable command line")
		return -1
	}
	if k.sys.Procs == nil {
		return -1
	}
	return k.sys.Procs.Exec(k.Pid, line)
}

// Wait syscall
func (k *Kernel) Wait(pid int) int {
	if k.sys.Procs == nil {
		return -1
	}
	return k.sys.Procs.Wait(k.Pid, pid)
}
