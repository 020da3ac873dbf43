package testharness

import (
	"fmt"

	"qter/internal/ir"
)

// Trace is a minimal, test-only register simulator over a finalized
// ir.Program. It exists solely to let this harness assert spec.md §8's
// execution-trace testable properties (end-to-end scenarios, coalescing
// correctness) without promoting "interpreter execution loop" — named
// out of THE CORE's scope in spec.md §1 — into a shipped package: it
// understands only Add/Goto/SolvedGoto/Input/Halt/Print, treats
// Switch/Solve/tape instructions as no-ops (spec.md §9: tape semantics
// "are carried but not executed by the core"), and is unreachable from
// internal/compile or cmd/qterc.
type Trace struct {
	Registers []int    // current value of each register, parallel to Program.Registers
	Output    []string // one entry per Print/Halt, "message" or "message: value"
	Halted    bool
	Steps     int
}

// maxTraceSteps bounds a runaway program (e.g. an off-by-one loop that
// never reaches its SolvedGoto) so a broken fixture fails fast instead of
// hanging the test binary.
const maxTraceSteps = 1_000_000

// Run simulates prog starting every register at 0, consuming inputs in
// order for each Input instruction encountered.
func Run(prog *ir.Program, inputs []int) (*Trace, error) {
	tr := &Trace{Registers: make([]int, len(prog.Registers))}
	pc := 0
	nextInput := 0
	for pc < len(prog.Instructions) {
		if tr.Steps >= maxTraceSteps {
			return nil, fmt.Errorf("trace exceeded %d steps at pc=%d (likely an infinite loop)", maxTraceSteps, pc)
		}
		tr.Steps++
		switch inst := prog.Instructions[pc].(type) {
		case ir.Add:
			order := prog.Registers[inst.Reg].Order
			tr.Registers[inst.Reg] = mod(tr.Registers[inst.Reg]+inst.Amount, order)
			pc++
		case ir.Goto:
			pc = inst.Target
		case ir.SolvedGoto:
			order := prog.Registers[inst.Reg].Order
			if mod(tr.Registers[inst.Reg], order)%inst.Divisor == 0 {
				pc = inst.Target
			} else {
				pc++
			}
		case ir.Input:
			if nextInput >= len(inputs) {
				return nil, fmt.Errorf("program requested more input than the trace was given (%d values)", len(inputs))
			}
			order := prog.Registers[inst.Reg].Order
			tr.Registers[inst.Reg] = mod(inputs[nextInput], order)
			nextInput++
			pc++
		case ir.Print:
			tr.Output = append(tr.Output, renderMessage(inst.Message, inst.HasReg, tr.Registers, inst.Reg))
			pc++
		case ir.Halt:
			tr.Output = append(tr.Output, renderMessage(inst.Message, inst.HasReg, tr.Registers, inst.Reg))
			tr.Halted = true
			return tr, nil
		case ir.Switch, ir.Solve, ir.MoveLeft, ir.MoveRight, ir.SwitchTape, ir.RepeatUntil:
			pc++
		default:
			return nil, fmt.Errorf("trace: unhandled instruction %T at pc=%d", inst, pc)
		}
	}
	return tr, nil
}

func renderMessage(msg string, hasReg bool, regs []int, reg int) string {
	if !hasReg {
		return msg
	}
	return fmt.Sprintf("%s: %d", msg, regs[reg])
}

func mod(v, n int) int {
	if n == 0 {
		return 0
	}
	m := v % n
	if m < 0 {
		m += n
	}
	return m
}
