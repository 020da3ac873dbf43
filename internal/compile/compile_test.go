package compile

import (
	"fmt"
	"strings"
	"testing"

	"qter/internal/ir"
	"qter/internal/puzzle"
)

// memReader is an in-memory FileReader (spec.md §9's "tests compile
// from memory, never a real filesystem" convention, grounded on the
// teacher's internal/testutil fake filesystem).
type memReader map[string]string

func (m memReader) ReadFile(path string) (string, error) {
	src, ok := m[path]
	if !ok {
		return "", fmt.Errorf("no such file: %s", path)
	}
	return src, nil
}

const adderPuzzle = `
GENERATORS
R = (0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23, 24, 25, 26, 27, 28, 29)

PRESETS
(30) R
`

func TestCompileSmallAdder(t *testing.T) {
	pz, err := puzzle.Load("p", adderPuzzle, nil)
	if err != nil {
		t.Fatal(err)
	}
	reader := memReader{"main.qat": "" +
		".registers {\n" +
		"    A <- builtin(30)\n" +
		"}\n" +
		"\n" +
		"input \"?\" A\n" +
		"add A 1\n" +
		"halt \"V\" A\n",
	}
	res, err := Compile(reader, "main.qat", []ir.PuzzleSlot{{Name: "p", Puzzle: pz}}, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(res.Program.Registers) != 1 || res.Program.Registers[0].Order != 30 {
		t.Fatalf("expected one order-30 register, got %+v", res.Program.Registers)
	}
	if len(res.Program.Instructions) != 3 {
		t.Fatalf("expected 3 instructions, got %d", len(res.Program.Instructions))
	}
	if _, ok := res.Program.Instructions[0].(ir.Input); !ok {
		t.Fatalf("instruction 0 = %T, want ir.Input", res.Program.Instructions[0])
	}
}

const importPuzzle = `
GENERATORS
R = (0, 1, 2)

PRESETS
(3) R
`

// TestCompileImportSplicesStatements exercises .import: the imported
// file's .registers declaration and code statements become part of the
// entry file's statement stream (spec.md §4.F).
func TestCompileImportSplicesStatements(t *testing.T) {
	pz, err := puzzle.Load("p", importPuzzle, nil)
	if err != nil {
		t.Fatal(err)
	}
	reader := memReader{
		"main.qat": ".import \"regs.qat\"\n" +
			"add A 1\n" +
			"halt \"done\" A\n",
		"regs.qat": ".registers {\n    A <- builtin(3)\n}\n",
	}
	res, err := Compile(reader, "main.qat", []ir.PuzzleSlot{{Name: "p", Puzzle: pz}}, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if got := res.Program.RegisterIndex("A"); got != 0 {
		t.Fatalf("RegisterIndex(A) = %d, want 0", got)
	}
}

// TestCompileImportCycleFails proves a self-importing file is rejected
// rather than recursing forever (spec.md §4.F "import cycles are an
// error").
func TestCompileImportCycleFails(t *testing.T) {
	reader := memReader{
		"a.qat": ".import \"b.qat\"\n",
		"b.qat": ".import \"a.qat\"\n",
	}
	_, err := Compile(reader, "a.qat", nil, DefaultOptions())
	if err == nil {
		t.Fatal("expected an import cycle error")
	}
	if !strings.Contains(err.Error(), "ImportCycle") {
		t.Fatalf("error = %v, want an ImportCycle kind", err)
	}
}

const independenceConflictPuzzle = `
GENERATORS
A = (0, 1, 2)
C = (0, 1, 2)
`

// TestCompileRejectsNonIndependentRegisters exercises spec.md §4.C's
// independence check from a full compile, not just arch.CheckIndependence
// directly.
func TestCompileRejectsNonIndependentRegisters(t *testing.T) {
	pz, err := puzzle.Load("p", independenceConflictPuzzle, nil)
	if err != nil {
		t.Fatal(err)
	}
	reader := memReader{"main.qat": ".registers {\n    X <- custom(A)\n    Y <- custom(C)\n}\n\nhalt \"done\"\n"}
	_, err = Compile(reader, "main.qat", []ir.PuzzleSlot{{Name: "p", Puzzle: pz}}, DefaultOptions())
	if err == nil {
		t.Fatal("expected a RegistersNotIndependent error")
	}
	if !strings.Contains(err.Error(), "RegistersNotIndependent") {
		t.Fatalf("error = %v, want RegistersNotIndependent", err)
	}
}
