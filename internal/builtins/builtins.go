// Package builtins implements spec.md §4.G: lowering of a single,
// fully macro-expanded instruction invocation into typed IR. Each
// built-in parses its own argument list, resolves register/puzzle-slot
// operands against the architecture the compilation already built, and
// emits exactly one ir.Instruction (lowerOne).
//
// Grounded on the teacher's bytecode emitter (internal/bytecode's
// opcode-by-opcode Emit methods in sentra) for the one-function-per-
// primitive shape, generalized from a byte-oriented opcode stream to
// Qter's algebraic IR.
package builtins

import (
	"qter/internal/arch"
	"qter/internal/bignum"
	"qter/internal/errors"
	"qter/internal/ir"
	"qter/internal/parser"
	"qter/internal/puzzle"
)

// names is the fixed set of instruction invocations that are never user
// macros: internal/macro short-circuits straight to Lower for any
// CodeStmt whose Name is in this set instead of searching the macro
// table (spec.md §4.F "built-in macro names short-circuit to 4.G").
var names = map[string]bool{
	"add":          true,
	"goto":         true,
	"solved-goto":  true,
	"input":        true,
	"halt":         true,
	"print":        true,
	"solve":        true,
	"switch":       true,
	"move-left":    true,
	"move-right":   true,
	"switch-tape":  true,
	"repeat-until": true,
}

// IsBuiltin reports whether name is a built-in instruction rather than
// a user macro.
func IsBuiltin(name string) bool { return names[name] }

// Env is the state Lower needs to resolve operands: the declared
// registers (by name), in the fixed order their IR index is assigned,
// and the declared puzzle slots (by name and by switch order).
type Env struct {
	Registers     []*arch.Register
	RegisterIndex map[string]int
	Puzzles       []ir.PuzzleSlot
	PuzzleIndex   map[string]int
}

func NewEnv(regs []*arch.Register, puzzles []ir.PuzzleSlot) *Env {
	e := &Env{Registers: regs, Puzzles: puzzles, RegisterIndex: map[string]int{}, PuzzleIndex: map[string]int{}}
	for i, r := range regs {
		e.RegisterIndex[r.Name] = i
	}
	for i, p := range puzzles {
		e.PuzzleIndex[p.Name] = i
	}
	return e
}

// Lower walks a macro-expanded code stream (labels and built-in
// invocations only) and emits one ir.Instruction per statement, plus a
// parallel LiveArchitecture slot per instruction tracking which puzzle
// is current (spec.md §9's live-architecture hook) — tracked here,
// statically, since `switch` always names its target puzzle slot
// literally.
func Lower(stmts []parser.Stmt, env *Env) (instrs []ir.Instruction, live []int, err error) {
	defer func() {
		if r := recover(); r != nil {
			if ce, ok := r.(*errors.CompileError); ok {
				err = ce
				return
			}
			panic(r)
		}
	}()
	slot := 0
	for _, s := range stmts {
		switch st := s.(type) {
		case *parser.LabelStmt:
			instrs = append(instrs, ir.Label{Name: st.Name})
			live = append(live, slot)
		case *parser.CodeStmt:
			inst, newSlot := lowerOne(st, env, slot)
			slot = newSlot
			instrs = append(instrs, inst)
			live = append(live, slot)
		default:
			panic(errors.Internal("unexpected statement type %T reached builtin lowering", s))
		}
	}
	return instrs, live, nil
}

func lowerOne(st *parser.CodeStmt, env *Env, slot int) (ir.Instruction, int) {
	switch st.Name {
	case "add":
		reg, idx := mustRegister(env, st, 0)
		amount := mustInt(st, 1)
		reduced := bignum.Mod(bignum.FromInt64(int64(amount)), bignum.FromInt64(int64(reg.Order)))
		r, _ := reduced.Int64()
		return ir.Add{Reg: idx, Amount: int(r)}, slot

	case "goto":
		return ir.Goto{Label: mustLabel(st, 0), Target: -1}, slot

	case "solved-goto":
		reg, idx, divisor := mustRegisterOrModulus(env, st, 0)
		witness, err := reg.Witness(divisor)
		if err != nil {
			panic(errorWithSpan(err, st.Sp))
		}
		return ir.SolvedGoto{Reg: idx, Divisor: divisor, Witness: witness, Label: mustLabel(st, 1), Target: -1}, slot

	case "input":
		prompt := mustString(st, 0)
		_, idx := mustRegister(env, st, 1)
		in := ir.Input{Prompt: prompt, Reg: idx}
		if len(st.Args) > 2 {
			in.HasMax = true
			in.MaxInput = mustInt(st, 2)
		}
		return in, slot

	case "halt":
		h := ir.Halt{Message: mustString(st, 0)}
		if len(st.Args) > 1 {
			_, idx := mustRegister(env, st, 1)
			h.HasReg, h.Reg = true, idx
		}
		return h, slot

	case "print":
		p := ir.Print{Message: mustString(st, 0)}
		if len(st.Args) > 1 {
			_, idx := mustRegister(env, st, 1)
			p.HasReg, p.Reg = true, idx
		}
		return p, slot

	case "solve":
		return ir.Solve{PuzzleSlot: slot}, slot

	case "switch":
		name := mustIdentName(st, 0)
		idx, ok := env.PuzzleIndex[name]
		if !ok {
			panic(errors.New(errors.PuzzleMalformed, st.Sp, "no declared puzzle slot named %q", name))
		}
		return ir.Switch{PuzzleSlot: idx}, idx

	case "move-left":
		return ir.MoveLeft{Tape: mustIdentName(st, 0), N: optionalInt(st, 1, 1)}, slot

	case "move-right":
		return ir.MoveRight{Tape: mustIdentName(st, 0), N: optionalInt(st, 1, 1)}, slot

	case "switch-tape":
		return ir.SwitchTape{Tape: mustIdentName(st, 0)}, slot

	case "repeat-until":
		reg, idx, divisor := mustRegisterOrModulus(env, st, 0)
		witness, err := reg.Witness(divisor)
		if err != nil {
			panic(errorWithSpan(err, st.Sp))
		}
		algoText := mustString(st, 1)
		if reg.Puzzle == nil {
			panic(errors.New(errors.TheoreticalRegisterNotEmitted, st.Sp, "repeat-until needs a physical register, not %q", reg.Name))
		}
		algo, perr := puzzle.ParseAlgorithm(algoText, reg.Puzzle)
		if perr != nil {
			panic(perr)
		}
		return ir.RepeatUntil{Reg: idx, Witness: witness, Algorithm: algo}, slot

	default:
		panic(errors.Internal("built-in dispatch missing a case for %q", st.Name))
	}
}

func errorWithSpan(err error, sp errors.Span) error {
	if ce, ok := err.(*errors.CompileError); ok {
		ce.Span = sp
		return ce
	}
	return err
}

func mustRegister(env *Env, st *parser.CodeStmt, argIdx int) (*arch.Register, int) {
	name := mustIdentName(st, argIdx)
	idx, ok := env.RegisterIndex[name]
	if !ok {
		panic(errors.New(errors.UnknownRegister, st.Sp, "%q is not a declared register", name))
	}
	return env.Registers[idx], idx
}

// mustRegisterOrModulus resolves `reg` (bare, divisor == reg's order)
// or `reg%d` (spec.md §4.G) into the register and the divisor to use.
func mustRegisterOrModulus(env *Env, st *parser.CodeStmt, argIdx int) (*arch.Register, int, int) {
	arg := argAt(st, argIdx)
	switch a := arg.(type) {
	case parser.Ident:
		idx, ok := env.RegisterIndex[a.Name]
		if !ok {
			panic(errors.New(errors.UnknownRegister, st.Sp, "%q is not a declared register", a.Name))
		}
		return env.Registers[idx], idx, env.Registers[idx].Order
	case parser.Modulus:
		idx, ok := env.RegisterIndex[a.Register]
		if !ok {
			panic(errors.New(errors.UnknownRegister, st.Sp, "%q is not a declared register", a.Register))
		}
		d := mustIntOperand(a.Divisor, st.Sp)
		return env.Registers[idx], idx, d
	default:
		panic(errors.New(errors.OperandKindMismatch, st.Sp, "expected a register or register%%divisor operand"))
	}
}

func mustLabel(st *parser.CodeStmt, argIdx int) string {
	return mustIdentName(st, argIdx)
}

// argAt bounds-checks an argument access: a malformed invocation (too
// few arguments) is a user-facing OperandKindMismatch, never a bare Go
// index-out-of-range panic escaping the compiler's own recover.
func argAt(st *parser.CodeStmt, argIdx int) parser.Operand {
	if argIdx >= len(st.Args) {
		panic(errors.New(errors.OperandKindMismatch, st.Sp, "%s expects at least %d argument(s), got %d", st.Name, argIdx+1, len(st.Args)))
	}
	return st.Args[argIdx]
}

func mustIdentName(st *parser.CodeStmt, argIdx int) string {
	id, ok := argAt(st, argIdx).(parser.Ident)
	if !ok {
		panic(errors.New(errors.OperandKindMismatch, st.Sp, "%s expects an identifier at position %d", st.Name, argIdx))
	}
	return id.Name
}

func mustString(st *parser.CodeStmt, argIdx int) string {
	s, ok := argAt(st, argIdx).(parser.StringLit)
	if !ok {
		panic(errors.New(errors.OperandKindMismatch, st.Sp, "%s expects a string at position %d", st.Name, argIdx))
	}
	return s.Value
}

func mustInt(st *parser.CodeStmt, argIdx int) int {
	return mustIntOperand(argAt(st, argIdx), st.Sp)
}

func optionalInt(st *parser.CodeStmt, argIdx, dflt int) int {
	if argIdx >= len(st.Args) {
		return dflt
	}
	return mustIntOperand(st.Args[argIdx], st.Sp)
}

func mustIntOperand(op parser.Operand, sp errors.Span) int {
	n, ok := op.(parser.Number)
	if !ok {
		panic(errors.New(errors.OperandKindMismatch, sp, "expected an integer operand"))
	}
	v, ok := bignum.FromString(n.Text)
	if !ok {
		panic(errors.New(errors.OperandKindMismatch, sp, "malformed integer literal %q", n.Text))
	}
	i, ok := v.Int64()
	if !ok {
		panic(errors.New(errors.OperandKindMismatch, sp, "integer literal %q is out of range", n.Text))
	}
	return int(i)
}
