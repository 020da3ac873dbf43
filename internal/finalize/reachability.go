package finalize

import (
	"fmt"
	"sort"

	"qter/internal/ir"
)

// reachabilityWarnings implements the best-effort half of spec.md §4.H's
// "unimplemented but specified hook": pattern recognition and
// cross-switch jump rejection are explicitly left to a later pass, but
// nothing stops this one from flagging an instruction index that no
// Goto/SolvedGoto/fallthrough edge can ever reach, starting from
// instruction 0. This is advisory only — the spec never makes
// unreachable code a compile error — so a dead instruction is reported
// as a warning string, never as a panic/CompileError.
//
// Edges: a Goto jumps unconditionally (one outgoing edge, its target);
// a SolvedGoto may or may not be taken, so it has two (its target and
// the next instruction); a Halt terminates its path (no outgoing edge);
// everything else falls through to the next instruction. Target == n
// (one past the end) is the legal "halt" sentinel and contributes no
// further edges.
func reachabilityWarnings(instrs []ir.Instruction) []string {
	n := len(instrs)
	if n == 0 {
		return nil
	}

	reached := make([]bool, n)
	queue := []int{0}
	reached[0] = true

	for len(queue) > 0 {
		i := queue[0]
		queue = queue[1:]

		for _, next := range successors(instrs[i], i, n) {
			if next < 0 || next >= n || reached[next] {
				continue
			}
			reached[next] = true
			queue = append(queue, next)
		}
	}

	var warnings []string
	for i, ok := range reached {
		if !ok {
			warnings = append(warnings, fmt.Sprintf("instruction %d is unreachable", i))
		}
	}
	sort.Strings(warnings)
	return warnings
}

// successors returns the indices reachable directly from instruction i
// in one step.
func successors(inst ir.Instruction, i, n int) []int {
	switch v := inst.(type) {
	case ir.Goto:
		return []int{v.Target}
	case ir.SolvedGoto:
		return []int{v.Target, i + 1}
	case ir.Halt:
		return nil
	default:
		if i+1 < n {
			return []int{i + 1}
		}
		return nil
	}
}
