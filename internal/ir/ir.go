// Package ir defines the typed intermediate representation spec.md §3
// describes: a tagged instruction value plus the side tables (puzzles,
// registers) a compiled program carries. Grounded on the teacher's
// bytecode.Chunk (internal/bytecode in sentra): a flat instruction
// sequence plus a constant pool, the same "immutable vector plus side
// tables" shape — but spelled as a closed interface of small structs
// rather than a byte-oriented opcode stream, since Qter's instructions
// carry algebraic operands (registers, witness sets, algorithms) no
// opcode/operand-byte encoding buys anything for: nothing here ever
// needs to be serialized to a wire format by this package (spec.md §6's
// Q emission is an external collaborator) or interpreted at bytecode
// speed (the interpreter is also an external collaborator).
//
// internal/builtins (spec.md §4.G) produces instructions in this same
// type with jump targets left symbolic (Label set, Target == -1);
// internal/finalize (§4.H) resolves Label to Target and strips the
// pseudo-instruction Label markers, producing the frozen Program this
// package's consumers (an interpreter or a Q emitter) receive.
package ir

import (
	"qter/internal/arch"
	"qter/internal/puzzle"
)

// Instruction is one IR instruction (spec.md §3's "tagged value").
type Instruction interface {
	isInstruction()
}

// Label is a pseudo-instruction marking a jump target declaration. It
// occupies no slot in the finalized program (spec.md §4.H pass 1): the
// label table records the index of the next real instruction, and
// internal/finalize removes every Label from the instruction slice it
// emits.
type Label struct {
	Name string
}

func (Label) isInstruction() {}

// Add is a modular register increment (spec.md §3 "Add(reg, integer)").
// Amount is already reduced into [0, order) by whoever constructs it;
// internal/finalize's consecutive-add coalescing may replace a run of
// these with one Add carrying the summed, re-reduced amount.
type Add struct {
	Reg    int
	Amount int
}

func (Add) isInstruction() {}

// Goto is an unconditional jump. Label is the symbolic target used by
// internal/builtins and internal/macro's public-label rewriting; Target
// is the absolute index internal/finalize fills in. Target is -1 before
// finalize runs.
type Goto struct {
	Label  string
	Target int
}

func (Goto) isInstruction() {}

// SolvedGoto is taken iff every facelet in Witness is fixed (spec.md §3).
// Reg/Divisor are carried alongside the precomputed Witness purely for
// diagnostics and the §9 live-architecture reachability hook;
// evaluation only ever needs Witness.
type SolvedGoto struct {
	Reg     int
	Divisor int
	Witness []int
	Label   string
	Target  int
}

func (SolvedGoto) isInstruction() {}

// Input prompts for a value and stores it into Reg, modularly reduced.
// HasMax/MaxInput carry an optional upper bound on the raw input value
// (spec.md §3 "max_input").
type Input struct {
	Prompt   string
	Reg      int
	HasMax   bool
	MaxInput int
}

func (Input) isInstruction() {}

// Halt stops execution, optionally displaying a register's value via
// the Q emitter's "counting-until" algorithm (spec.md §4.G).
type Halt struct {
	Message string
	Reg     int
	HasReg  bool
}

func (Halt) isInstruction() {}

// Print displays a message, optionally with a register's value, and
// continues execution.
type Print struct {
	Message string
	Reg     int
	HasReg  bool
}

func (Print) isInstruction() {}

// Switch changes the live puzzle slot (spec.md §3; architecture
// switching itself is unimplemented per §9, but the instruction and its
// slot reference are preserved faithfully).
type Switch struct {
	PuzzleSlot int
}

func (Switch) isInstruction() {}

// RepeatUntil is the surface-only "repeat Algorithm until Witness is
// solved" form (spec.md §3: "surface-only; rewritten during H or
// emission"). The core carries it faithfully; internal/finalize does
// not rewrite it into a Goto/SolvedGoto pair by default (that rewrite
// is the §4.H "pattern recognition" hook, explicitly left to emission).
type RepeatUntil struct {
	Reg       int
	Witness   []int
	Algorithm puzzle.Algorithm
}

func (RepeatUntil) isInstruction() {}

// Solve hands the live puzzle to an external solver (spec.md §3);
// the core has no solver of its own (cycle-combination search and
// move-count optimization are out of scope per §1).
type Solve struct {
	PuzzleSlot int
}

func (Solve) isInstruction() {}

// MoveLeft/MoveRight/SwitchTape carry tape semantics faithfully without
// executing or validating tape geometry (spec.md §3, §9 "Tapes are
// present in the surface and IR for future Turing-complete operation").
type MoveLeft struct {
	Tape string
	N    int
}

func (MoveLeft) isInstruction() {}

type MoveRight struct {
	Tape string
	N    int
}

func (MoveRight) isInstruction() {}

type SwitchTape struct {
	Tape string
}

func (SwitchTape) isInstruction() {}

// PuzzleSlot names one puzzle instance a program switches between
// (spec.md §3 "puzzles_in_order"; SPEC_FULL.md's multi-puzzle-program
// supplement).
type PuzzleSlot struct {
	Name   string
	Puzzle *puzzle.Puzzle
}

// Program is the finalized, immutable compiled program (spec.md §3: "A
// compiled program is (puzzles_in_order, instructions)"). Once returned
// from internal/finalize it is never mutated (spec.md §9 "Ownership of
// IR"): every field is handed to consumers by shared reference.
type Program struct {
	Puzzles      []PuzzleSlot
	Registers    []*arch.Register
	Instructions []Instruction

	// LiveArchitecture[i] is the index into Puzzles naming which puzzle
	// slot (and therefore which switchable-register layout) is live at
	// instruction i. This is the representation spec.md §9's Open
	// Question asks for: "the IR expose enough metadata (live-architecture
	// per instruction index) to implement the [cross-switch jump] check
	// later; no particular algorithm is mandated here." No enforcement
	// pass consumes it yet.
	LiveArchitecture []int

	// Warnings holds non-fatal diagnostics produced during finalize —
	// currently just unreachable-instruction notices from the reachability
	// pass (spec.md §4.H's "pattern recognition"/reachability hooks are
	// unimplemented as hard checks, but a best-effort warning is cheap and
	// never rejects a program the spec doesn't call invalid).
	Warnings []string
}

// RegisterIndex returns the index of the register named name in
// Registers, or -1 if none is declared under that name.
func (p *Program) RegisterIndex(name string) int {
	for i, r := range p.Registers {
		if r.Name == name {
			return i
		}
	}
	return -1
}
