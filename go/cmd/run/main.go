package run

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/subcommands"
	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/lunixbochs/trapgate/go/cmd"
	"github.com/lunixbochs/trapgate/go/dev"
	"github.com/lunixbochs/trapgate/go/fs/memfs"
	"github.com/lunixbochs/trapgate/go/kernel/pintos"
	"github.com/lunixbochs/trapgate/go/kernel/proc"
	"github.com/lunixbochs/trapgate/go/models/trace"
	"github.com/lunixbochs/trapgate/go/programs"
)

// Run implements subcommands.Command for the "run" command.
type Run struct {
	config  string
	trace   string
	verbose bool
	strace  bool
	strsize int
	stdin   string
	files   cmd.StrSlice
	summary bool
	batch   bool
}

func (*Run) Name() string     { return "run" }
func (*Run) Synopsis() string { return "boot a machine and run programs on it" }
func (*Run) Usage() string {
	return `run [flags] <cmdline>...

Each cmdline is started concurrently as its own process, e.g.
  run "put a.txt hello" "spawn cat a.txt"

`
}

func (r *Run) SetFlags(f *flag.FlagSet) {
	f.StringVar(&r.config, "config", "", "config file (default: config.toml in the trapgate config folder)")
	f.StringVar(&r.trace, "trace", "", "binary syscall trace output file")
	f.BoolVar(&r.verbose, "v", false, "debug logging")
	f.BoolVar(&r.strace, "strace", false, "log every syscall")
	f.IntVar(&r.strsize, "strsize", 0, "limit -strace'd strings to length (0 uses the config)")
	f.StringVar(&r.stdin, "stdin", "", "console input")
	f.Var(&r.files, "file", "preload a file as name=contents (repeatable)")
	f.BoolVar(&r.summary, "summary", true, "print a summary on exit")
	f.BoolVar(&r.batch, "batch", false, "write console output from a background goroutine in batches")
}

func (r *Run) Execute(ctx context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() == 0 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	status, err := r.run(ctx, f.Args())
	if err != nil {
		cmd.PrintError(err)
		return subcommands.ExitFailure
	}
	if status != 0 {
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func (r *Run) run(ctx context.Context, cmdlines []string) (int, error) {
	log := cmd.SetupLogging(r.verbose || r.strace)
	config, err := cmd.LoadConfig(r.config)
	if err != nil {
		return 0, err
	}
	if r.strace {
		config.TraceSys = true
	}
	if r.strsize > 0 {
		config.Strsize = r.strsize
	}

	fs := memfs.New()
	for _, kv := range r.files {
		name, data, ok := strings.Cut(kv, "=")
		if !ok || !fs.WriteFile(name, []byte(data)) {
			return 0, errors.Errorf("bad -file %q", kv)
		}
	}
	if r.batch {
		out := dev.NewBatchWriter(config.Output, 25*time.Millisecond)
		defer out.Close()
		config.Output = out
	}
	console := dev.NewConsole(config.Output)
	console.Feed([]byte(r.stdin))
	power := dev.NewPower()
	sys := pintos.NewSystem(config, fs, console, power)
	sys.Log = log

	var tw *trace.TraceWriter
	if r.trace != "" {
		out, err := os.Create(r.trace)
		if err != nil {
			return 0, errors.Wrapf(err, "failed to create tracefile '%s'", r.trace)
		}
		if tw, err = trace.NewWriter(out, config); err != nil {
			out.Close()
			return 0, err
		}
		sys.Tracer = tw
	}

	tab := proc.NewTable(sys)
	programs.Register(tab)

	var (
		mu       sync.Mutex
		statuses = make([]int, len(cmdlines))
	)
	g, ctx := errgroup.WithContext(ctx)
	for i, line := range cmdlines {
		i, line := i, line
		g.Go(func() error {
			pid, err := tab.Start(line)
			if err != nil {
				return errors.Wrapf(err, "failed to start %q", line)
			}
			status := tab.Wait(proc.HostPid, pid)
			mu.Lock()
			statuses[i] = status
			mu.Unlock()
			return nil
		})
	}
	go func() {
		select {
		case <-power.Done():
			log.Info("machine powered off")
			console.Close()
		case <-ctx.Done():
		}
	}()
	err = g.Wait()
	if tw != nil {
		if cerr := tw.Close(); err == nil {
			err = errors.Wrap(cerr, "failed to write trace")
		}
	}
	if err == nil {
		err = console.Err()
	}
	if err != nil {
		return 0, err
	}

	status := 0
	for _, s := range statuses {
		if s != 0 {
			status = s
			break
		}
	}
	if r.summary {
		msg := fmt.Sprintf("%d processes, %s console output, %s file system calls",
			tab.Started(), humanize.Bytes(console.Written()), humanize.Comma(fs.Calls()))
		if tw != nil {
			msg += fmt.Sprintf(", %s syscalls traced", humanize.Comma(int64(tw.Count())))
		}
		if power.IsOff() {
			msg += ", halted"
		}
		fmt.Fprintln(os.Stderr, msg)
	}
	return status, nil
}

func init() { cmd.Register(&Run{}) }
