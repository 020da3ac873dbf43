// Command qterc compiles a QAT source file to the typed IR (spec.md
// §3), printing a disassembly of the result. The flag dispatch and
// compile/print logic live in internal/cli so internal/testharness can
// drive the same entry point in-process.
package main

import (
	"os"

	"qter/internal/cli"
)

func main() {
	os.Exit(cli.Main())
}
