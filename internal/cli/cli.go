// Package cli holds cmd/qterc's flag dispatch and disassembly printer as
// an importable package, so internal/testharness can drive the same
// entry point in-process through testscript.RunMain instead of shelling
// out to a built binary (grounded on the teacher's cmd/sentra/main.go
// flat flag/alias table and its --debug-wraps-with-pkg/errors
// convention).
package cli

import (
	"bufio"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"
	pkgerrors "github.com/pkg/errors"

	"qter/internal/compile"
	"qter/internal/intern"
	"qter/internal/ir"
	"qter/internal/puzzle"
)

// puzzleFlags collects repeated `--puzzle name=path` flags into an
// ordered slot list (SPEC_FULL.md's multi-puzzle-program supplement:
// slot binding is a host/CLI concern, not QAT grammar).
type puzzleFlags []string

func (p *puzzleFlags) String() string { return strings.Join(*p, ",") }
func (p *puzzleFlags) Set(v string) error {
	*p = append(*p, v)
	return nil
}

// Main is cmd/qterc's entry point, reading os.Args/os.Stdout/os.Stderr
// directly so it matches the func() int shape testscript.RunMain
// expects for an in-process "exec qterc ..." command.
func Main() int {
	return Run(os.Args[1:], os.Stdout, os.Stderr)
}

// Run executes one qterc invocation against an explicit argument list
// and output streams, returning the process exit code. Main (which
// reads the real os.Args/os.Stdout/os.Stderr) is its only caller;
// internal/testharness's testscript suite reaches it through Main,
// in-process, without spawning a subprocess.
func Run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("qterc", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var (
		debug       bool
		noColor     bool
		stepLimit   int
		noCoalesce  bool
		puzzleSpecs puzzleFlags
	)
	fs.BoolVar(&debug, "debug", false, "print an internal stack trace on a compiler fault")
	fs.BoolVar(&noColor, "no-color", false, "disable the colored disassembly index column even on a tty")
	fs.IntVar(&stepLimit, "script-step-limit", 1_000_000, "scripting bridge step budget (0 disables the limit)")
	fs.BoolVar(&noCoalesce, "no-coalesce", false, "skip consecutive-add coalescing in the finalize pass")
	fs.Var(&puzzleSpecs, "puzzle", "name=path.txt puzzle slot binding, repeatable")
	if err := fs.Parse(args); err != nil {
		return 2
	}

	if fs.NArg() != 1 {
		fmt.Fprintln(stderr, "usage: qterc [flags] source.qat")
		return 2
	}
	entry := fs.Arg(0)

	useColor := !noColor && isTTY(stdout)

	slots, err := loadPuzzleSlots(puzzleSpecs)
	if err != nil {
		return fail(stderr, err, debug)
	}

	opts := compile.DefaultOptions()
	opts.ScriptStepLimit = stepLimit
	opts.Finalize.CoalesceAdds = !noCoalesce

	start := time.Now()
	result, err := compile.Compile(osReader{}, entry, slots, opts)
	if err != nil {
		return fail(stderr, err, debug)
	}
	elapsed := time.Since(start)

	printProgram(stdout, result, useColor)
	for _, w := range result.Program.Warnings {
		fmt.Fprintf(stderr, "warning: %s\n", w)
	}
	fmt.Fprintf(stderr, "compiled %s in %s (%s)\n",
		entry, elapsed.Round(time.Microsecond),
		humanize.Comma(int64(len(result.Program.Instructions)))+" instructions")
	return 0
}

func isTTY(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd())
}

func loadPuzzleSlots(specs puzzleFlags) ([]ir.PuzzleSlot, error) {
	pool := intern.New()
	var slots []ir.PuzzleSlot
	for _, spec := range specs {
		name, path, ok := strings.Cut(spec, "=")
		if !ok {
			return nil, fmt.Errorf("--puzzle expects name=path, got %q", spec)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		pz, err := puzzle.Load(name, string(data), pool)
		if err != nil {
			return nil, err
		}
		slots = append(slots, ir.PuzzleSlot{Name: name, Puzzle: pz})
	}
	return slots, nil
}

func fail(stderr io.Writer, err error, debug bool) int {
	if debug {
		fmt.Fprintf(stderr, "%+v\n", pkgerrors.WithStack(err))
	} else {
		fmt.Fprintln(stderr, err)
	}
	return 1
}

type osReader struct{}

func (osReader) ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func printProgram(w io.Writer, res *compile.Result, color bool) {
	buf := bufio.NewWriter(w)
	defer buf.Flush()

	fmt.Fprintf(buf, "; compile %s\n", res.ID)
	for i, r := range res.Program.Registers {
		fmt.Fprintf(buf, "; register %d: %s (order %d)\n", i, r.Name, r.Order)
	}
	for i, inst := range res.Program.Instructions {
		line := ir.FormatInstruction(inst)
		if color {
			fmt.Fprintf(buf, "\x1b[2m%4d\x1b[0m  %s\n", i, line)
		} else {
			fmt.Fprintf(buf, "%4d  %s\n", i, line)
		}
	}
}
