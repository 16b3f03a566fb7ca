package pintos

import (
	"fmt"

	"github.com/pkg/errors"

	co "github.com/lunixbochs/trapgate/go/kernel/common"
	"github.com/lunixbochs/trapgate/go/models"
)

// Syscall services one trap from this process. It returns nil when the
// process may resume, a models.ExitStatus once the process has terminated, or
// models.ErrHalted after the machine powered off. Protocol violations and
// unknown call numbers terminate the process with status -1.
func (k *Kernel) Syscall(f *models.TrapFrame) error {
	if k.exited {
		return models.ExitStatus(k.status)
	}
	sys, args, err := k.Trap(f)
	k.trace(sys, args, f, err)
	if err == nil {
		return nil
	}
	var (
		status  models.ExitStatus
		v       *co.Violation
		unknown co.UnknownSyscall
	)
	switch {
	case errors.As(err, &status):
		return k.Terminate(int(status))
	case errors.Is(err, models.ErrHalted):
		return err
	case errors.As(err, &v):
		k.log.WithField("addr", fmt.Sprintf("%#x", v.Addr)).Warn(v.Error())
	case errors.As(err, &unknown):
		k.log.Warn(unknown.Error())
	default:
		k.log.WithError(err).Error("system call failed")
	}
	return k.Terminate(-1)
}

// Terminate ends the process: every open handle is closed under the gate, the
// exit status is recorded and the exit line is printed. Later calls return
// the status recorded the first time.
func (k *Kernel) Terminate(status int) error {
	if k.exited {
		return models.ExitStatus(k.status)
	}
	k.exited = true
	k.status = status
	for _, f := range k.Files.Drain() {
		k.sys.Gate.Run(f.Close)
	}
	k.sys.Console.Putbuf([]byte(fmt.Sprintf("%s: exit(%d)\n", k.Name, status)))
	k.log.WithField("status", status).Debug("process exited")
	return models.ExitStatus(status)
}

// trace reports a trap to the strace log and the tracer. A trap that never
// resolved to a handler is reported under the number it carried, or -1 when
// the number itself was unreadable.
func (k *Kernel) trace(sys *co.Syscall, args []uint64, f *models.TrapFrame, err error) {
	ret, hasRet := f.Return()
	num, name := -1, ""
	if sys != nil {
		num, name = sys.Num, sys.Name
	} else {
		var unknown co.UnknownSyscall
		if errors.As(err, &unknown) {
			num = int(unknown)
		}
	}
	if k.Config.TraceSys {
		var line string
		switch {
		case sys == nil:
			line = fmt.Sprintf("syscall(%d) = ? (%v)", num, err)
		case len(args) == len(sys.In):
			line = sys.Trace(args) + sys.TraceRet(ret, hasRet, err)
		default:
			line = sys.Name + "(?)" + sys.TraceRet(ret, hasRet, err)
		}
		k.log.Debug(line)
	}
	if k.sys.Tracer != nil {
		k.sys.Tracer.OnSyscall(&models.SyscallEvent{
			Pid:    k.Pid,
			Num:    num,
			Name:   name,
			Args:   args,
			Ret:    ret,
			HasRet: hasRet,
			Err:    err,
		})
	}
}
