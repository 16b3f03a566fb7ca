package dump

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/subcommands"
	"github.com/mattn/go-isatty"
	"github.com/mgutz/ansi"
	"github.com/pkg/errors"

	"github.com/lunixbochs/trapgate/go/cmd"
	"github.com/lunixbochs/trapgate/go/kernel/pintos"
	"github.com/lunixbochs/trapgate/go/models/trace"
)

// Dump implements subcommands.Command for the "dump" command.
type Dump struct {
	json  bool
	color string
}

func (*Dump) Name() string     { return "dump" }
func (*Dump) Synopsis() string { return "print a saved syscall trace" }
func (*Dump) Usage() string    { return "dump [flags] <tracefile>\n" }

func (d *Dump) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&d.json, "json", false, "output trace as line-delimited JSON objects")
	f.StringVar(&d.color, "color", "auto", "color output: auto, always or never")
}

func (d *Dump) Execute(_ context.Context, f *flag.FlagSet, args ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}
	fp, err := os.Open(f.Arg(0))
	if err != nil {
		cmd.PrintError(errors.Wrap(err, "failed to open"))
		return subcommands.ExitFailure
	}
	tf, err := trace.NewReader(fp)
	if err != nil {
		fp.Close()
		cmd.PrintError(errors.Wrap(err, "error opening trace file"))
		return subcommands.ExitFailure
	}
	defer tf.Close()
	if d.json {
		err = PrintJson(os.Stdout, tf)
	} else {
		color := d.color == "always" || d.color == "auto" && isatty.IsTerminal(os.Stdout.Fd())
		err = PrintPretty(os.Stdout, tf, color)
	}
	if err != nil {
		cmd.PrintError(err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func PrintJson(w io.Writer, tf *trace.TraceReader) error {
	out, err := json.Marshal(&tf.Header)
	if err != nil {
		return errors.Wrap(err, "error printing header")
	}
	fmt.Fprintf(w, "%s\n", out)
	for {
		op, err := tf.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return errors.Wrap(err, "error reading next trace operation")
		}
		out, _ := json.Marshal(map[string]interface{}{"op": op.Code(), "data": op})
		fmt.Fprintf(w, "%s\n", out)
	}
	return nil
}

func callName(num int32) string {
	if name, ok := pintos.SyscallNames[int(num)]; ok {
		return name
	}
	return fmt.Sprintf("syscall_%d", num)
}

func hexArgs(args []uint64) string {
	tmp := make([]string, len(args))
	for i, a := range args {
		tmp[i] = fmt.Sprintf("0x%x", a)
	}
	return strings.Join(tmp, ", ")
}

// Format renders one op as an strace-style line, and the color it should be
// shown in.
func Format(op trace.Op) (string, string) {
	switch o := op.(type) {
	case *trace.OpSyscall:
		line := fmt.Sprintf("[%d] %s(%s)", o.Pid, callName(o.Num), hexArgs(o.Args))
		if o.HasRet {
			line += fmt.Sprintf(" = %d", int32(o.Ret))
		}
		return line, ""
	case *trace.OpExit:
		return fmt.Sprintf("[%d] %s() exited %d", o.Pid, callName(o.Num), o.Status), "yellow"
	case *trace.OpFault:
		return fmt.Sprintf("[%d] %s() killed: %s", o.Pid, callName(o.Num), o.Msg), "red+b"
	case *trace.OpHalt:
		return fmt.Sprintf("[%d] halt()", o.Pid), "magenta"
	}
	return "", ""
}

func PrintPretty(w io.Writer, tf *trace.TraceReader, color bool) error {
	for {
		op, err := tf.Next()
		if err == io.EOF {
			break
		} else if err != nil {
			return errors.Wrap(err, "error reading next trace operation")
		}
		line, style := Format(op)
		if line == "" {
			continue
		}
		if color && style != "" {
			line = ansi.Color(line, style)
		}
		fmt.Fprintln(w, line)
	}
	return nil
}

func init() { cmd.Register(&Dump{}) }
