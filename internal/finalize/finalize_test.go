package finalize

import (
	"testing"

	"qter/internal/arch"
	"qter/internal/ir"
	"qter/internal/puzzle"
)

func orderRegister(t *testing.T, order int) *arch.Register {
	t.Helper()
	b := puzzle.NewBuilder("finalize-test", order, nil)
	cyc := make([]int, order)
	for i := range cyc {
		cyc[i] = i
	}
	if err := b.AddGenerator("R", [][]int{cyc}); err != nil {
		t.Fatal(err)
	}
	pz, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	r, err := arch.NewCustom("A", pz, "R")
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestFinalizeStripsLabelsAndResolvesTargets(t *testing.T) {
	instrs := []ir.Instruction{
		ir.Add{Reg: 0, Amount: 1},
		ir.Goto{Label: "top", Target: -1},
		ir.Label{Name: "top"},
		ir.Halt{Message: "done"},
	}
	live := []int{0, 0, 0, 0}
	prog, err := Finalize(nil, nil, instrs, live, Options{CoalesceAdds: false})
	if err != nil {
		t.Fatal(err)
	}
	if len(prog.Instructions) != 3 {
		t.Fatalf("expected the Label pseudo-instruction stripped, got %d instructions", len(prog.Instructions))
	}
	g := prog.Instructions[1].(ir.Goto)
	if g.Target != 2 {
		t.Fatalf("Goto.Target = %d, want 2 (the halt, once the label is stripped)", g.Target)
	}
}

func TestFinalizeUnresolvedLabelFails(t *testing.T) {
	instrs := []ir.Instruction{
		ir.Goto{Label: "nowhere", Target: -1},
	}
	_, err := Finalize(nil, nil, instrs, []int{0}, DefaultOptions())
	if err == nil {
		t.Fatal("expected an UnresolvedLabel error")
	}
}

func TestFinalizeDuplicateLabelFails(t *testing.T) {
	instrs := []ir.Instruction{
		ir.Label{Name: "x"},
		ir.Label{Name: "x"},
		ir.Halt{Message: "done"},
	}
	_, err := Finalize(nil, nil, instrs, []int{0, 0, 0}, DefaultOptions())
	if err == nil {
		t.Fatal("expected a DuplicateDefinition error for a label declared twice")
	}
}

func TestFinalizeCoalescesConsecutiveAdds(t *testing.T) {
	// The literal coalescing scenario: add A 13 / add A 22 / add A 1 on an
	// order-30 register collapses to a single Add(A, 6) (13+22+1 mod 30).
	a := orderRegister(t, 30)
	instrs := []ir.Instruction{
		ir.Add{Reg: 0, Amount: 13},
		ir.Add{Reg: 0, Amount: 22},
		ir.Add{Reg: 0, Amount: 1},
		ir.Halt{Message: "V", Reg: 0, HasReg: true},
	}
	live := []int{0, 0, 0, 0}
	prog, err := Finalize(nil, []*arch.Register{a}, instrs, live, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(prog.Instructions) != 2 {
		t.Fatalf("expected the three adds coalesced into one, got %d instructions", len(prog.Instructions))
	}
	add := prog.Instructions[0].(ir.Add)
	if add.Amount != 6 {
		t.Fatalf("Amount = %d, want 6 (13+22+1 = 36, reduced mod the register's order 30)", add.Amount)
	}
}

func TestFinalizeCoalesceWithoutRegisterMetadataLeavesSumUnreduced(t *testing.T) {
	// With no register side table to consult (regs == nil, as a caller
	// that only cares about instruction-count reduction might pass),
	// coalesceAdds still merges the run but cannot reduce it.
	instrs := []ir.Instruction{
		ir.Add{Reg: 0, Amount: 13},
		ir.Add{Reg: 0, Amount: 22},
		ir.Add{Reg: 0, Amount: 1},
		ir.Halt{Message: "V", Reg: 0, HasReg: true},
	}
	live := []int{0, 0, 0, 0}
	prog, err := Finalize(nil, nil, instrs, live, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	add := prog.Instructions[0].(ir.Add)
	if add.Amount != 36 {
		t.Fatalf("Amount = %d, want 36 (no order available to reduce by)", add.Amount)
	}
}

func TestFinalizeCoalesceMergesRunJumpedToAtItsStart(t *testing.T) {
	// The Goto targets the first Add of the Add2/Add3 run, not its
	// interior: finalize.coalesceAdds still merges that run, and the
	// jump must land on the merged Add's index.
	instrs := []ir.Instruction{
		ir.Add{Reg: 0, Amount: 1},
		ir.Goto{Label: "mid", Target: -1},
		ir.Label{Name: "mid"},
		ir.Add{Reg: 0, Amount: 2},
		ir.Add{Reg: 0, Amount: 3},
		ir.Halt{Message: "done"},
	}
	live := []int{0, 0, 0, 0, 0, 0}
	prog, err := Finalize(nil, nil, instrs, live, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	g := prog.Instructions[1].(ir.Goto)
	if g.Target != 2 {
		t.Fatalf("Goto.Target = %d, want 2: the jump lands exactly on the run it must not be coalesced past", g.Target)
	}
	add, ok := prog.Instructions[2].(ir.Add)
	if !ok || add.Amount != 5 {
		t.Fatalf("instructions[2] = %+v, want a coalesced Add of 5 (2+3), since nothing jumps into its middle", prog.Instructions[2])
	}
}

func TestFinalizeCoalesceRemapsTargetsPastAMergedRun(t *testing.T) {
	// add A 1 / add A 2 / goto skip / print "x" / skip: print "y" / halt "d" A.
	// Label resolution (pre-coalesce) gives "skip" absolute index 4 (Print(y),
	// once the Label pseudo-instruction is stripped). Coalescing the leading
	// two adds then shrinks the instruction count by one, so the Goto's
	// already-resolved Target must be decremented to 3 to keep landing on
	// Print(y) instead of sliding onto Halt.
	instrs := []ir.Instruction{
		ir.Add{Reg: 0, Amount: 1},
		ir.Add{Reg: 0, Amount: 2},
		ir.Goto{Label: "skip", Target: -1},
		ir.Print{Message: "x"},
		ir.Label{Name: "skip"},
		ir.Print{Message: "y"},
		ir.Halt{Message: "d", Reg: 0, HasReg: true},
	}
	live := []int{0, 0, 0, 0, 0, 0, 0}
	prog, err := Finalize(nil, nil, instrs, live, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(prog.Instructions) != 5 {
		t.Fatalf("expected 5 instructions (two adds merged, one label stripped), got %d", len(prog.Instructions))
	}
	add, ok := prog.Instructions[0].(ir.Add)
	if !ok || add.Amount != 3 {
		t.Fatalf("instructions[0] = %+v, want a coalesced Add of 3 (1+2)", prog.Instructions[0])
	}
	g, ok := prog.Instructions[1].(ir.Goto)
	if !ok {
		t.Fatalf("instructions[1] = %+v, want the Goto", prog.Instructions[1])
	}
	if g.Target != 3 {
		t.Fatalf("Goto.Target = %d, want 3 (Print(y), remapped after the merge shrank the run by one slot)", g.Target)
	}
	p, ok := prog.Instructions[g.Target].(ir.Print)
	if !ok || p.Message != "y" {
		t.Fatalf("the goto must still land on Print(y), got %+v", prog.Instructions[g.Target])
	}
}

func TestFinalizeReachabilityFlagsDeadCode(t *testing.T) {
	// goto skip / print "dead" / skip: halt "done" — the print is never
	// reached: the only edge into it would be fallthrough from the goto,
	// and a Goto has no fallthrough edge.
	instrs := []ir.Instruction{
		ir.Goto{Label: "skip", Target: -1},
		ir.Print{Message: "dead"},
		ir.Label{Name: "skip"},
		ir.Halt{Message: "done"},
	}
	live := []int{0, 0, 0, 0}
	prog, err := Finalize(nil, nil, instrs, live, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(prog.Warnings) != 1 {
		t.Fatalf("Warnings = %v, want exactly one unreachable-instruction warning", prog.Warnings)
	}
	want := "instruction 1 is unreachable"
	if prog.Warnings[0] != want {
		t.Fatalf("Warnings[0] = %q, want %q", prog.Warnings[0], want)
	}
}

func TestFinalizeReachabilityAllowsSolvedGotoFallthrough(t *testing.T) {
	// solved-goto reaches both its target and the next instruction, since
	// whether it's taken depends on runtime register state.
	instrs := []ir.Instruction{
		ir.SolvedGoto{Reg: 0, Divisor: 1, Target: -1, Label: "done"},
		ir.Print{Message: "not solved yet"},
		ir.Label{Name: "done"},
		ir.Halt{Message: "done"},
	}
	live := []int{0, 0, 0, 0}
	prog, err := Finalize(nil, nil, instrs, live, DefaultOptions())
	if err != nil {
		t.Fatal(err)
	}
	if len(prog.Warnings) != 0 {
		t.Fatalf("Warnings = %v, want none: both the fallthrough print and the solved-goto target are reachable", prog.Warnings)
	}
}
