// Package proc runs user programs as processes: each gets its own address
// space, per-process kernel and goroutine, and the table tracks parent/child
// relationships for exec and wait.
package proc

import (
	"strings"
	"sync"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/lunixbochs/trapgate/go/kernel/pintos"
	"github.com/lunixbochs/trapgate/go/models"
)

// HostPid is the parent of processes started from outside the machine.
const HostPid = 0

const orphan = -1

// Program is the body of a user process. Its return value becomes the exit
// status if it never calls exit itself.
type Program func(u *User, args []string) int

type process struct {
	pid    int
	parent int
	name   string
	user   *User

	done   chan struct{}
	status int
	waited bool
}

type Table struct {
	sys *pintos.System

	mu       sync.Mutex
	programs map[string]Program
	procs    map[int]*process
	next     int
	started  int

	halt     chan struct{}
	haltOnce sync.Once
	wg       sync.WaitGroup
}

// NewTable attaches a process table to sys.
func NewTable(sys *pintos.System) *Table {
	t := &Table{
		sys:      sys,
		programs: make(map[string]Program),
		procs:    make(map[int]*process),
		next:     HostPid + 1,
		halt:     make(chan struct{}),
	}
	sys.Procs = t
	return t
}

func (t *Table) Register(name string, prog Program) {
	t.mu.Lock()
	t.programs[name] = prog
	t.mu.Unlock()
}

// Start launches cmdline as a child of the host.
func (t *Table) Start(cmdline string) (int, error) {
	return t.spawn(HostPid, cmdline)
}

func (t *Table) Exec(parent int, cmdline string) int {
	pid, err := t.spawn(parent, cmdline)
	if err != nil {
		t.sys.Log.WithFields(logrus.Fields{"pid": parent, "cmdline": cmdline}).WithError(err).Debug("exec failed")
		return -1
	}
	return pid
}

func (t *Table) spawn(parent int, cmdline string) (int, error) {
	args := strings.Fields(cmdline)
	if len(args) == 0 {
		return -1, errors.New("empty command line")
	}
	t.mu.Lock()
	prog, ok := t.programs[args[0]]
	if !ok {
		t.mu.Unlock()
		return -1, errors.Errorf("no such program: %q", args[0])
	}
	select {
	case <-t.halt:
		t.mu.Unlock()
		return -1, models.ErrHalted
	default:
	}
	pid := t.next
	t.next++
	t.mu.Unlock()

	u, err := newUser(t, pid, args[0])
	if err != nil {
		return -1, errors.Wrap(err, "failed to build process")
	}
	p := &process{
		pid:    pid,
		parent: parent,
		name:   args[0],
		user:   u,
		done:   make(chan struct{}),
	}
	t.mu.Lock()
	t.procs[pid] = p
	t.started++
	t.mu.Unlock()

	t.wg.Add(1)
	go t.run(p, prog, args)
	return pid, nil
}

func (t *Table) run(p *process, prog Program, args []string) {
	defer t.wg.Done()
	status := -1
	defer func() { t.finish(p, status) }()
	defer func() {
		r := recover()
		if r == nil {
			return
		}
		if term, ok := r.(terminated); ok {
			status = statusOf(term.err)
			return
		}
		p.user.K.Log().WithField("panic", r).Error("program crashed")
		status = statusOf(p.user.K.Terminate(-1))
	}()
	ret := prog(p.user, args)
	p.user.Exit(ret)
}

func statusOf(err error) int {
	var status models.ExitStatus
	if errors.As(err, &status) {
		return int(status)
	}
	return -1
}

// finish records p's status, wakes its waiter and forgets children nobody
// can wait for any more.
func (t *Table) finish(p *process, status int) {
	t.mu.Lock()
	defer t.mu.Unlock()
	p.status = status
	for _, c := range t.procs {
		if c.parent != p.pid {
			continue
		}
		select {
		case <-c.done:
			delete(t.procs, c.pid)
		default:
			c.parent = orphan
		}
	}
	if p.parent == orphan {
		delete(t.procs, p.pid)
	}
	close(p.done)
}

// Wait blocks until pid exits. Only pid's parent may wait, and only once.
func (t *Table) Wait(parent, pid int) int {
	t.mu.Lock()
	p, ok := t.procs[pid]
	if !ok || p.parent != parent || p.waited {
		t.mu.Unlock()
		return -1
	}
	p.waited = true
	t.mu.Unlock()

	<-p.done
	t.mu.Lock()
	delete(t.procs, pid)
	t.mu.Unlock()
	return p.status
}

// Halt stops every process at its next trap.
func (t *Table) Halt() {
	t.haltOnce.Do(func() { close(t.halt) })
}

func (t *Table) Halted() <-chan struct{} {
	return t.halt
}

func (t *Table) isHalted() bool {
	select {
	case <-t.halt:
		return true
	default:
		return false
	}
}

// WaitAll blocks until every process has finished.
func (t *Table) WaitAll() {
	t.wg.Wait()
}

// Started is the number of processes ever launched.
func (t *Table) Started() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.started
}

// Live is the number of processes the table still tracks.
func (t *Table) Live() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.procs)
}
