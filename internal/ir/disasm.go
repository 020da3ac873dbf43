package ir

import "fmt"

// Disassemble renders a finalized Program as plain-text, one line per
// instruction, prefixed by its absolute index. internal/testharness's IR
// snapshot tests compare against it; the CLI (internal/cli) lays out its
// own header and index column but renders each instruction through the
// same FormatInstruction, so the two never drift apart.
func Disassemble(prog *Program) string {
	var out string
	for i, r := range prog.Registers {
		out += fmt.Sprintf("; register %d: %s (order %d)\n", i, r.Name, r.Order)
	}
	for i, inst := range prog.Instructions {
		out += fmt.Sprintf("%4d  %s\n", i, FormatInstruction(inst))
	}
	return out
}

// FormatInstruction renders one instruction in the same plain-text form
// Disassemble uses per line, without the leading index — exposed
// separately so a caller (the CLI's colorized column, a future Q
// emitter) can lay out the index itself.
func FormatInstruction(inst Instruction) string {
	switch v := inst.(type) {
	case Add:
		return fmt.Sprintf("add r%d, %d", v.Reg, v.Amount)
	case Goto:
		return fmt.Sprintf("goto %d", v.Target)
	case SolvedGoto:
		return fmt.Sprintf("solved-goto r%d%%%d -> %d", v.Reg, v.Divisor, v.Target)
	case Input:
		return fmt.Sprintf("input %q -> r%d", v.Prompt, v.Reg)
	case Halt:
		if v.HasReg {
			return fmt.Sprintf("halt %q r%d", v.Message, v.Reg)
		}
		return fmt.Sprintf("halt %q", v.Message)
	case Print:
		if v.HasReg {
			return fmt.Sprintf("print %q r%d", v.Message, v.Reg)
		}
		return fmt.Sprintf("print %q", v.Message)
	case Switch:
		return fmt.Sprintf("switch %d", v.PuzzleSlot)
	case Solve:
		return fmt.Sprintf("solve %d", v.PuzzleSlot)
	case MoveLeft:
		return fmt.Sprintf("move-left %s %d", v.Tape, v.N)
	case MoveRight:
		return fmt.Sprintf("move-right %s %d", v.Tape, v.N)
	case SwitchTape:
		return fmt.Sprintf("switch-tape %s", v.Tape)
	case RepeatUntil:
		return fmt.Sprintf("repeat-until r%d", v.Reg)
	default:
		return fmt.Sprintf("%T", inst)
	}
}
