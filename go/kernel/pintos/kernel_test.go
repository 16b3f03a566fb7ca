package pintos

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lunixbochs/trapgate/go/fs/memfs"
	"github.com/lunixbochs/trapgate/go/models"
	"github.com/lunixbochs/trapgate/go/models/cpu"
)

const (
	stackTop = 0xc0000000
	dataBase = 0x08048000
	testSP   = stackTop - 0x100
)

type recConsole struct {
	mu  sync.Mutex
	out [][]byte
	in  []byte
}

func (c *recConsole) Putbuf(p []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.out = append(c.out, append([]byte(nil), p...))
}

func (c *recConsole) Getc() byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	b := c.in[0]
	c.in = c.in[1:]
	return b
}

func (c *recConsole) String() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(bytes.Join(c.out, nil))
}

type fakePower struct{ off bool }

func (p *fakePower) Off() { p.off = true }

type fakeProcs struct {
	execs []string
	waits []int
}

func (p *fakeProcs) Exec(parent int, cmdline string) int {
	p.execs = append(p.execs, cmdline)
	return 42
}

func (p *fakeProcs) Wait(parent, pid int) int {
	p.waits = append(p.waits, pid)
	return 7
}

// gateCheck fails the test if any file-system call runs without the gate.
type gateCheck struct {
	models.Filesys
	t    *testing.T
	gate *models.Gate
}

func (g *gateCheck) held() {
	if g.gate.TryLock() {
		g.gate.Unlock()
		g.t.Error("file system called without the gate")
	}
}

func (g *gateCheck) Create(name string, size int64) bool {
	g.held()
	return g.Filesys.Create(name, size)
}

func (g *gateCheck) Remove(name string) bool {
	g.held()
	return g.Filesys.Remove(name)
}

func (g *gateCheck) Open(name string) (models.File, bool) {
	g.held()
	f, ok := g.Filesys.Open(name)
	if !ok {
		return nil, false
	}
	return &gateFile{File: f, g: g}, true
}

type gateFile struct {
	models.File
	g *gateCheck
}

func (f *gateFile) Read(p []byte) int  { f.g.held(); return f.File.Read(p) }
func (f *gateFile) Write(p []byte) int { f.g.held(); return f.File.Write(p) }
func (f *gateFile) SeekTo(pos int64)   { f.g.held(); f.File.SeekTo(pos) }
func (f *gateFile) Tell() int64        { f.g.held(); return f.File.Tell() }
func (f *gateFile) Length() int64      { f.g.held(); return f.File.Length() }
func (f *gateFile) Close()             { f.g.held(); f.File.Close() }

type env struct {
	t     *testing.T
	sys   *System
	fs    *memfs.FS
	con   *recConsole
	power *fakePower
	mem   *cpu.Mem
	k     *Kernel
	brk   uint64
	sp    uint64
	bits  uint
}

func newEnv(t *testing.T) *env {
	t.Helper()
	return newEnvConfig(t, models.DefaultConfig())
}

// newEnvConfig maps two stack pages below config.PhysBase and two data pages
// at dataBase.
func newEnvConfig(t *testing.T, config *models.Config) *env {
	t.Helper()
	fs := memfs.New()
	con := &recConsole{}
	power := &fakePower{}
	sys := NewSystem(config, nil, con, power)
	sys.Fs = &gateCheck{Filesys: fs, t: t, gate: sys.Gate}
	sys.Log = logrus.New()
	sys.Log.Out = io.Discard

	top := config.PhysBase
	mem := cpu.NewMem(config.Bits, binary.LittleEndian, config.PageSize)
	require.NoError(t, mem.MemMapProt(top-0x2000, 0x2000, cpu.PROT_READ|cpu.PROT_WRITE))
	require.NoError(t, mem.MemMapProt(dataBase, 0x2000, cpu.PROT_READ|cpu.PROT_WRITE))
	k, err := NewKernel(sys, 3, "test", mem)
	require.NoError(t, err)
	return &env{
		t: t, sys: sys, fs: fs, con: con, power: power, mem: mem, k: k,
		brk: dataBase, sp: top - 0x100, bits: config.Bits,
	}
}

func (e *env) put(p []byte) uint64 {
	addr := e.brk
	require.NoError(e.t, e.mem.MemWrite(addr, p))
	e.brk += uint64(len(p))
	return addr
}

func (e *env) str(s string) uint64 {
	return e.put(append([]byte(s), 0))
}

func (e *env) trapAt(sp uint64, words ...uint64) (*models.TrapFrame, error) {
	size := int(e.bits / 8)
	for i, w := range words {
		require.NoError(e.t, e.mem.WriteUint(sp+uint64(i*size), size, 0, w))
	}
	f := models.NewTrapFrame(sp, e.bits)
	return f, e.k.Syscall(f)
}

// call traps and requires the process to survive with a return value.
func (e *env) call(num int, args ...uint64) int {
	e.t.Helper()
	f, err := e.trapAt(e.sp, append([]uint64{uint64(num)}, args...)...)
	require.NoError(e.t, err)
	_, ok := f.Return()
	require.True(e.t, ok, "no return value")
	return f.ReturnInt()
}

// void traps a call that writes no return value.
func (e *env) void(num int, args ...uint64) {
	e.t.Helper()
	f, err := e.trapAt(e.sp, append([]uint64{uint64(num)}, args...)...)
	require.NoError(e.t, err)
	_, ok := f.Return()
	assert.False(e.t, ok, "return slot written")
}

func (e *env) requireKilled(err error, status int) {
	e.t.Helper()
	var exit models.ExitStatus
	require.True(e.t, errors.As(err, &exit), "expected termination, got %v", err)
	assert.Equal(e.t, models.ExitStatus(status), exit)
	got, exited := e.k.Exited()
	assert.True(e.t, exited)
	assert.Equal(e.t, status, got)
}

const neg1 = 0xffffffff

func TestExit(t *testing.T) {
	e := newEnv(t)
	f, err := e.trapAt(testSP, SYS_EXIT, 7)
	e.requireKilled(err, 7)
	_, ok := f.Return()
	assert.False(t, ok, "exit writes no return value")
	assert.Equal(t, "test: exit(7)\n", e.con.String())

	_, err = e.trapAt(testSP, SYS_WRITE, STDOUT_FILENO, e.str("x"), 1)
	e.requireKilled(err, 7)
	assert.Equal(t, "test: exit(7)\n", e.con.String(), "no calls after exit")
}

func TestExitNegative(t *testing.T) {
	e := newEnv(t)
	_, err := e.trapAt(testSP, SYS_EXIT, neg1)
	e.requireKilled(err, -1)
	assert.Equal(t, "test: exit(-1)\n", e.con.String())
}

func TestHalt(t *testing.T) {
	e := newEnv(t)
	_, err := e.trapAt(testSP, SYS_HALT)
	assert.True(t, errors.Is(err, models.ErrHalted))
	assert.True(t, e.power.off)
	_, exited := e.k.Exited()
	assert.False(t, exited)
}

func TestFileRoundTrip(t *testing.T) {
	e := newEnv(t)
	name := e.str("t.txt")
	assert.Equal(t, 1, e.call(SYS_CREATE, name, 100))
	assert.Equal(t, 0, e.call(SYS_CREATE, name, 100), "already exists")

	fd := e.call(SYS_OPEN, name)
	assert.Equal(t, 2, fd)
	assert.Equal(t, 100, e.call(SYS_FILESIZE, uint64(fd)))

	data := e.put([]byte("hello"))
	assert.Equal(t, 5, e.call(SYS_WRITE, uint64(fd), data, 5))
	assert.Equal(t, 5, e.call(SYS_TELL, uint64(fd)))

	f, err := e.trapAt(testSP, SYS_SEEK, uint64(fd), 0)
	require.NoError(t, err)
	_, ok := f.Return()
	assert.False(t, ok, "seek is void")

	buf := e.put(make([]byte, 5))
	assert.Equal(t, 5, e.call(SYS_READ, uint64(fd), buf, 5))
	got, err := e.mem.MemRead(buf, 5)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(got))

	f, err = e.trapAt(testSP, SYS_CLOSE, uint64(fd))
	require.NoError(t, err)
	_, ok = f.Return()
	assert.False(t, ok, "close is void")
	assert.Equal(t, 0, e.k.Files.Len())

	assert.Equal(t, 1, e.call(SYS_REMOVE, name))
	assert.Equal(t, 0, e.call(SYS_REMOVE, name))
	assert.Equal(t, -1, e.call(SYS_OPEN, name))
}

func TestOpenMissing(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, -1, e.call(SYS_OPEN, e.str("nope")))
	assert.Equal(t, 0, e.k.Files.Len())
}

func TestHandlesUnique(t *testing.T) {
	e := newEnv(t)
	name := e.str("f")
	e.call(SYS_CREATE, name, 1)
	seen := make(map[int]bool)
	for i := 0; i < 8; i++ {
		fd := e.call(SYS_OPEN, name)
		assert.GreaterOrEqual(t, fd, 2)
		assert.False(t, seen[fd], "handle %d handed out twice", fd)
		seen[fd] = true
	}
	e.void(SYS_CLOSE, 4)
	assert.Equal(t, 4, e.call(SYS_OPEN, name))
}

func TestClosedHandleIsUnknown(t *testing.T) {
	e := newEnv(t)
	name := e.str("f")
	e.call(SYS_CREATE, name, 4)
	fd := uint64(e.call(SYS_OPEN, name))
	e.void(SYS_CLOSE, fd)
	e.void(SYS_CLOSE, fd)

	buf := e.put(make([]byte, 4))
	assert.Equal(t, 0, e.call(SYS_READ, fd, buf, 4))
	assert.Equal(t, 0, e.call(SYS_WRITE, fd, buf, 4))
	assert.Equal(t, -1, e.call(SYS_FILESIZE, fd))
	assert.Equal(t, -1, e.call(SYS_TELL, fd))
	e.void(SYS_SEEK, fd, 1)
}

func TestWideHandleIsUnknown(t *testing.T) {
	config := models.DefaultConfig()
	config.Bits = 64
	config.PhysBase = 0x800000000000
	e := newEnvConfig(t, config)
	require.True(t, e.fs.WriteFile("f", []byte("data")))
	fd := e.call(SYS_OPEN, e.str("f"))
	require.Equal(t, 2, fd)

	e.con.in = []byte("abcd")
	buf := e.str("LEAK")
	for _, wide := range []uint64{1<<32 | STDIN_FILENO, 1<<32 | STDOUT_FILENO, 1<<32 | uint64(fd), 1 << 63} {
		assert.Equal(t, 0, e.call(SYS_WRITE, wide, buf, 4), "write(%#x)", wide)
		assert.Equal(t, 0, e.call(SYS_READ, wide, buf, 4), "read(%#x)", wide)
		assert.Equal(t, -1, e.call(SYS_FILESIZE, wide), "filesize(%#x)", wide)
		assert.Equal(t, -1, e.call(SYS_TELL, wide), "tell(%#x)", wide)
		e.void(SYS_SEEK, wide, 1)
		e.void(SYS_CLOSE, wide)
	}
	assert.Empty(t, e.con.out)
	assert.Equal(t, []byte("abcd"), e.con.in)
	assert.Equal(t, 0, e.call(SYS_TELL, uint64(fd)))
	data, ok := e.fs.ReadFile("f")
	require.True(t, ok)
	assert.Equal(t, "data", string(data))
	assert.Equal(t, 1, e.k.Files.Len())
}

func TestBadName(t *testing.T) {
	for _, num := range []int{SYS_CREATE, SYS_REMOVE, SYS_OPEN} {
		for _, addr := range []uint64{0, stackTop, stackTop + 0x10, 0x1000} {
			e := newEnv(t)
			_, err := e.trapAt(testSP, uint64(num), addr, 1)
			e.requireKilled(err, -1)
			assert.Empty(t, e.fs.Names())
		}
	}
}

func TestNameRunsOffMapping(t *testing.T) {
	e := newEnv(t)
	end := uint64(dataBase + 0x2000)
	require.NoError(t, e.mem.MemWrite(end-3, []byte("abc")))
	_, err := e.trapAt(testSP, SYS_CREATE, end-3, 1)
	e.requireKilled(err, -1)
	assert.Empty(t, e.fs.Names())
}

func TestReadZeroIgnoresBuffer(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, 0, e.call(SYS_READ, STDIN_FILENO, 0, 0))
	assert.Equal(t, 0, e.call(SYS_READ, 5, stackTop+4, 0))
}

func TestWriteZeroChecksBuffer(t *testing.T) {
	e := newEnv(t)
	assert.Equal(t, 0, e.call(SYS_WRITE, STDOUT_FILENO, e.str(""), 0))
	_, err := e.trapAt(testSP, SYS_WRITE, STDOUT_FILENO, 0, 0)
	e.requireKilled(err, -1)
}

func TestBadBuffer(t *testing.T) {
	cases := []struct {
		name      string
		num       int
		fd        uint64
		addr, len uint64
	}{
		{"read null", SYS_READ, STDIN_FILENO, 0, 4},
		{"read kernel", SYS_READ, STDIN_FILENO, stackTop, 4},
		{"read straddles split", SYS_READ, STDIN_FILENO, stackTop - 2, 4},
		{"read past data", SYS_READ, STDIN_FILENO, dataBase + 0x2000 - 2, 4},
		{"write unmapped", SYS_WRITE, STDOUT_FILENO, 0x1000, 4},
		{"write wraps", SYS_WRITE, STDOUT_FILENO, dataBase, neg1},
		{"write unknown fd", SYS_WRITE, 9, 0x1000, 4},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			e := newEnv(t)
			e.con.in = []byte("abcd")
			_, err := e.trapAt(testSP, uint64(c.num), c.fd, c.addr, c.len)
			e.requireKilled(err, -1)
			assert.Equal(t, []byte("abcd"), e.con.in, "console input untouched")
			assert.Equal(t, "test: exit(-1)\n", e.con.String())
		})
	}
}

func TestConsole(t *testing.T) {
	e := newEnv(t)
	msg := strings.Repeat("x", 300)
	assert.Equal(t, 300, e.call(SYS_WRITE, STDOUT_FILENO, e.str(msg), 300))
	require.Len(t, e.con.out, 1, "one putbuf per write")
	assert.Equal(t, msg, string(e.con.out[0]))

	e.con.in = []byte("hi!")
	buf := e.put(make([]byte, 2))
	assert.Equal(t, 2, e.call(SYS_READ, STDIN_FILENO, buf, 2))
	got, _ := e.mem.MemRead(buf, 2)
	assert.Equal(t, "hi", string(got))
	assert.Equal(t, []byte("!"), e.con.in)
}

func TestConsoleWrongDirection(t *testing.T) {
	e := newEnv(t)
	e.con.in = []byte("abc")
	buf := e.str("abc")
	assert.Equal(t, 0, e.call(SYS_WRITE, STDIN_FILENO, buf, 3))
	assert.Equal(t, 0, e.call(SYS_READ, STDOUT_FILENO, buf, 3))
	assert.Empty(t, e.con.out)
	assert.Equal(t, []byte("abc"), e.con.in)
}

func TestUnknownSyscall(t *testing.T) {
	for _, num := range []uint64{13, 99, neg1} {
		e := newEnv(t)
		f, err := e.trapAt(testSP, num)
		e.requireKilled(err, -1)
		_, ok := f.Return()
		assert.False(t, ok)
	}
}

func TestBadStackPointer(t *testing.T) {
	for _, sp := range []uint64{0, stackTop, stackTop - 2, 0x1000} {
		e := newEnv(t)
		_, err := e.trapAt(sp)
		e.requireKilled(err, -1)
	}
}

func TestArgsPastMapping(t *testing.T) {
	e := newEnv(t)
	// the call number is the last mapped word; both arguments lie above it
	sp := uint64(stackTop - 4)
	require.NoError(t, e.mem.WriteUint(sp, 4, 0, SYS_CREATE))
	f := models.NewTrapFrame(sp, 32)
	err := e.k.Syscall(f)
	e.requireKilled(err, -1)
	assert.Empty(t, e.fs.Names())
}

func TestTerminateClosesFiles(t *testing.T) {
	e := newEnv(t)
	name := e.str("f")
	e.call(SYS_CREATE, name, 1)
	e.call(SYS_OPEN, name)
	e.call(SYS_OPEN, name)
	assert.Equal(t, 2, e.fs.OpenCount("f"))
	_, err := e.trapAt(testSP, 99)
	e.requireKilled(err, -1)
	assert.Equal(t, 0, e.fs.OpenCount("f"))
	assert.Equal(t, 0, e.k.Files.Len())
}

func TestExecWait(t *testing.T) {
	e := newEnv(t)
	procs := &fakeProcs{}
	e.sys.Procs = procs
	assert.Equal(t, 42, e.call(SYS_EXEC, e.str("child arg")))
	assert.Equal(t, []string{"child arg"}, procs.execs)

	assert.Equal(t, -1, e.call(SYS_EXEC, 0), "bad command line fails the call only")
	assert.Equal(t, -1, e.call(SYS_EXEC, stackTop))
	assert.Len(t, procs.execs, 1)
	_, exited := e.k.Exited()
	assert.False(t, exited)

	assert.Equal(t, 7, e.call(SYS_WAIT, 42))
	assert.Equal(t, []int{42}, procs.waits)
}

type recTracer struct {
	events []*models.SyscallEvent
}

func (r *recTracer) OnSyscall(ev *models.SyscallEvent) {
	r.events = append(r.events, ev)
}

func TestTrace(t *testing.T) {
	e := newEnv(t)
	var log bytes.Buffer
	e.sys.Log.Out = &log
	e.sys.Log.SetLevel(logrus.DebugLevel)
	e.sys.Config.TraceSys = true
	tr := &recTracer{}
	e.sys.Tracer = tr

	buf := e.str("hey")
	e.call(SYS_WRITE, STDOUT_FILENO, buf, 3)
	_, err := e.trapAt(testSP, SYS_EXIT, 3)
	e.requireKilled(err, 3)

	require.Len(t, tr.events, 2)
	assert.Equal(t, "write", tr.events[0].Name)
	assert.Equal(t, []uint64{STDOUT_FILENO, buf, 3}, tr.events[0].Args)
	assert.True(t, tr.events[0].HasRet)
	assert.Equal(t, uint64(3), tr.events[0].Ret)
	assert.Equal(t, SYS_EXIT, tr.events[1].Num)
	assert.Error(t, tr.events[1].Err)

	assert.Contains(t, log.String(), `write(1, \"hey\", 3) = 3`)
	assert.Contains(t, log.String(), "pid=3")
}

func TestTraceFailedLookup(t *testing.T) {
	var log bytes.Buffer
	cases := []struct {
		name string
		sp   uint64
		num  int
	}{
		{"unknown number", testSP, 99},
		{"bad stack pointer", stackTop, -1},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			e := newEnv(t)
			log.Reset()
			e.sys.Log.Out = &log
			e.sys.Log.SetLevel(logrus.DebugLevel)
			e.sys.Config.TraceSys = true
			tr := &recTracer{}
			e.sys.Tracer = tr

			words := []uint64{}
			if c.num >= 0 {
				words = append(words, uint64(c.num))
			}
			_, err := e.trapAt(c.sp, words...)
			e.requireKilled(err, -1)

			require.Len(t, tr.events, 1)
			ev := tr.events[0]
			assert.Equal(t, c.num, ev.Num)
			assert.Empty(t, ev.Name)
			assert.False(t, ev.HasRet)
			assert.Error(t, ev.Err)
			assert.Contains(t, log.String(), fmt.Sprintf("syscall(%d) = ?", c.num))
		})
	}
}
