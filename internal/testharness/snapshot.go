// Package testharness is spec.md Component J: "snapshot tests over .qat
// → IR and .qat → execution traces; inline per-program expectations."
// It upgrades the teacher's hand-rolled internal/testing framework
// (TestRunner/TestSuite/TestReporter) with two ecosystem pieces built
// for exactly this shape: golang.org/x/tools/txtar bundles one fixture's
// QAT source, optional puzzle-definition text, and its expected IR dump
// into a single file (replacing the teacher's separate
// suite-plus-fixture-file convention), and rogpeppe/go-internal/testscript
// drives the CLI-level smoke suite in internal/testharness/testharness_test.go.
package testharness

import (
	"fmt"
	"strings"

	"github.com/kr/pretty"
	"golang.org/x/tools/txtar"

	"qter/internal/compile"
	"qter/internal/intern"
	"qter/internal/ir"
	"qter/internal/puzzle"
)

func newPool() *intern.Pool { return intern.New() }

// Case is one snapshot fixture, decoded from a txtar archive.
type Case struct {
	Name       string
	Entry      string            // path of the QAT entry file within Files
	Files      map[string]string // every non-"expected.ir"/"puzzle:*" file, keyed by name
	Puzzles    map[string]string // "puzzle:<slot name>" files, keyed by slot name
	Expect     string            // "expected.ir" file content
	ExpectErr  string            // "expected.err" file content (a substring the error must contain)
}

// ParseCase decodes one txtar archive into a Case. The comment line (the
// archive's free-text header) is used as the fixture's display name.
func ParseCase(data []byte) (*Case, error) {
	arc := txtar.Parse(data)
	c := &Case{
		Name:    strings.TrimSpace(string(arc.Comment)),
		Files:   map[string]string{},
		Puzzles: map[string]string{},
	}
	for _, f := range arc.Files {
		content := string(f.Data)
		switch {
		case f.Name == "expected.ir":
			c.Expect = content
		case f.Name == "expected.err":
			c.ExpectErr = strings.TrimSpace(content)
		case strings.HasPrefix(f.Name, "puzzle:"):
			c.Puzzles[strings.TrimPrefix(f.Name, "puzzle:")] = content
		default:
			c.Files[f.Name] = content
			if c.Entry == "" && strings.HasSuffix(f.Name, ".qat") {
				c.Entry = f.Name
			}
		}
	}
	if c.Entry == "" {
		return nil, fmt.Errorf("txtar fixture %q declares no .qat entry file", c.Name)
	}
	return c, nil
}

// memReader serves Case.Files as internal/compile.FileReader without
// touching a real filesystem (grounded on internal/compile's own
// FileReader seam, added for exactly this kind of fixture-driven test).
type memReader map[string]string

func (m memReader) ReadFile(path string) (string, error) {
	src, ok := m[path]
	if !ok {
		return "", fmt.Errorf("no such fixture file %q", path)
	}
	return src, nil
}

// Compile runs one Case through the full pipeline, loading any
// "puzzle:<slot>" files as puzzle slots in the order they're keyed.
func (c *Case) Compile() (*compile.Result, error) {
	pool := newPool()
	var slots []ir.PuzzleSlot
	for _, name := range sortedKeys(c.Puzzles) {
		pz, err := puzzle.Load(name, c.Puzzles[name], pool)
		if err != nil {
			return nil, err
		}
		slots = append(slots, ir.PuzzleSlot{Name: name, Puzzle: pz})
	}
	return compile.Compile(memReader(c.Files), c.Entry, slots, compile.DefaultOptions())
}

// Diff compiles the case and compares its disassembly against the
// fixture's "expected.ir" file (or, for a fixture carrying
// "expected.err" instead, asserts the compile failed with a matching
// message). Returns "" on a match, otherwise a kr/pretty-rendered
// explanation of the mismatch — the teacher's own reporters.go hand-rolls
// a diff string; kr/pretty is the ecosystem's version of the same idea.
func (c *Case) Diff() string {
	res, err := c.Compile()
	if c.ExpectErr != "" {
		if err == nil {
			return fmt.Sprintf("expected a compile error containing %q, got none", c.ExpectErr)
		}
		if !strings.Contains(err.Error(), c.ExpectErr) {
			return fmt.Sprintf("compile error mismatch:\n%s", strings.Join(pretty.Diff(c.ExpectErr, err.Error()), "\n"))
		}
		return ""
	}
	if err != nil {
		return fmt.Sprintf("unexpected compile error: %v", err)
	}
	got := ir.Disassemble(res.Program)
	want := c.Expect
	if got == want {
		return ""
	}
	return fmt.Sprintf("IR snapshot mismatch for %q:\n%s", c.Name, strings.Join(pretty.Diff(want, got), "\n"))
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	for i := 1; i < len(keys); i++ {
		for j := i; j > 0 && keys[j-1] > keys[j]; j-- {
			keys[j-1], keys[j] = keys[j], keys[j-1]
		}
	}
	return keys
}
