// Package arch implements spec.md §4.C: the architecture model. A
// `.registers` declaration binds named registers to generator tuples on
// a puzzle (builtin/custom/theoretical), derives each register's order
// and per-divisor unshared-facelet witness, and validates that a group
// of registers declared together is independent.
//
// Grounded on the teacher's `internal/vmregister` for the shape of "named
// handle bound to a small struct of derived metadata" — not its bytecode
// content, which is register-machine call-frame storage and has nothing
// to do with puzzle algebra.
package arch

import (
	"sort"

	"qter/internal/errors"
	"qter/internal/puzzle"

	"golang.org/x/exp/maps"
)

// Kind distinguishes the three `.registers` declaration forms (spec.md
// §4.C).
type Kind int

const (
	// Builtin resolves against the puzzle's preset table.
	Builtin Kind = iota
	// Custom is a user-supplied algorithm, parsed via internal/puzzle.
	Custom
	// Theoretical is a nominal register with no physical backing.
	Theoretical
)

// Register is a handle bound to (puzzle, algorithm, order,
// unshared-facelet witnesses per divisor), per spec.md §3.
type Register struct {
	Name        string
	Kind        Kind
	Puzzle      *puzzle.Puzzle // nil for Theoretical
	Algorithm   puzzle.Algorithm
	Perm        puzzle.Permutation
	Order       int
	Theoretical bool

	witnessCache map[int][]int
}

// NewBuiltin declares a register from a puzzle's preset table (spec.md
// §4.C `builtin(preset_orders...)`): the preset supplies both the
// algorithm and the order multiset, so presetIndex selects which
// register of a (possibly multi-register) preset this declaration binds
// to.
func NewBuiltin(name string, pz *puzzle.Puzzle, orders []int, presetIndex int) (*Register, error) {
	preset, ok := findPreset(pz, orders)
	if !ok {
		return nil, errors.New(errors.PuzzleMalformed, errors.Span{},
			"puzzle %q has no preset matching orders %v", pz.ID, orders)
	}
	if presetIndex < 0 || presetIndex >= len(preset.Algorithms) {
		return nil, errors.New(errors.PuzzleMalformed, errors.Span{},
			"preset %v has no register at index %d", orders, presetIndex)
	}
	algo := preset.Algorithms[presetIndex]
	return fromAlgorithm(name, Builtin, pz, algo)
}

func findPreset(pz *puzzle.Puzzle, orders []int) (puzzle.Preset, bool) {
	want := append([]int(nil), orders...)
	sort.Ints(want)
	for _, p := range pz.Presets {
		got := append([]int(nil), p.Orders...)
		sort.Ints(got)
		if intsEqual(want, got) {
			return p, true
		}
	}
	return puzzle.Preset{}, false
}

func intsEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// NewCustom declares a register from a user-supplied algorithm string or
// preset name (spec.md §4.C `custom(preset_name | algorithms)`).
func NewCustom(name string, pz *puzzle.Puzzle, algorithmText string) (*Register, error) {
	algo, err := puzzle.ParseAlgorithm(algorithmText, pz)
	if err != nil {
		return nil, err
	}
	return fromAlgorithm(name, Custom, pz, algo)
}

func fromAlgorithm(name string, kind Kind, pz *puzzle.Puzzle, algo puzzle.Algorithm) (*Register, error) {
	perm, err := algo.Permutation(pz)
	if err != nil {
		return nil, err
	}
	return &Register{
		Name:         name,
		Kind:         kind,
		Puzzle:       pz,
		Algorithm:    algo,
		Perm:         perm,
		Order:        puzzle.Order(perm),
		witnessCache: make(map[int][]int),
	}, nil
}

// NewTheoretical declares a nominal register of order n with no physical
// backing (spec.md §4.C `theoretical(n)`): valid for type-check
// scaffolding, but `TheoreticalRegisterNotEmitted` at Q emission.
func NewTheoretical(name string, n int) *Register {
	return &Register{
		Name:        name,
		Kind:        Theoretical,
		Order:       n,
		Theoretical: true,
	}
}

// Witness returns the unshared-facelet witness set for divisor d, the
// minimum set of facelets whose simultaneous solvedness holds exactly
// when the register's current value is a multiple of d (spec.md §4.C).
// d must divide Order; solved-goto's bare form (no `%d`) uses d == Order
// (4.G: "witness set derived from reg at divisor 1 [full modulus]").
//
// Canonical choice (spec.md §4.C): one facelet per cycle whose length
// divides d, taking each cycle's own canonical (minimum-rotated) first
// element — which is already its lowest-indexed member, satisfying the
// "ties broken by facelet index ascending" rule without an extra sort
// per cycle. This reading resolves an apparent order/d vs. d swap in the
// spec prose using the worked divisibility-witness example (order 105,
// d=3: the length-3 cycle alone characterizes "value ≡ 0 mod 3", not the
// length-5/length-7 cycles that "divides order/d=35" would select
// instead) — see DESIGN.md. The "orientation sum zero modulo d" clause
// has no referent in a pure facelet-permutation model (no separate
// piece-orientation state is tracked), so it is treated as automatically
// satisfied by the canonical first element. Fixed points (length-1
// cycles) are excluded from candidacy: they are trivially fixed
// regardless of value, so they carry no modular information and would
// otherwise flood every register's witness with the rest of the
// puzzle's untouched facelets, defeating the disjointness check.
func (r *Register) Witness(d int) ([]int, error) {
	if r.Theoretical {
		return nil, errors.New(errors.TheoreticalRegisterNotEmitted, errors.Span{},
			"register %q is theoretical: it has no facelet witness", r.Name)
	}
	if d <= 0 || r.Order%d != 0 {
		return nil, errors.New(errors.BadDivisor, errors.Span{},
			"divisor %d does not divide register %q's order %d", d, r.Name, r.Order)
	}
	if cached, ok := r.witnessCache[d]; ok {
		return cached, nil
	}
	var witness []int
	for _, cyc := range puzzle.Cycles(r.Perm, false) {
		if d%len(cyc) == 0 {
			witness = append(witness, cyc[0])
		}
	}
	sort.Ints(witness)
	r.witnessCache[d] = witness
	return witness, nil
}

// Solved reports whether the register's witness at divisor d is fixed
// when the algorithm has been applied exactly value times — i.e. whether
// value is a multiple of d. No compile stage calls it; arch_test.go
// uses it.
func (r *Register) Solved(value, d int) (bool, error) {
	if _, err := r.Witness(d); err != nil {
		return false, err
	}
	return value%d == 0, nil
}

// Architecture is an ordered set of registers declared together on one
// puzzle (spec.md §4.C), optionally grouped into switchable sets that
// the core records but does not act on (architecture switching is
// unimplemented — spec.md §9).
type Architecture struct {
	Registers  []*Register
	Switchable map[string][]string // group name -> register names
}

// CheckIndependence validates spec.md §4.C's independence invariant:
// the unshared-facelet witnesses of all registers (at full modulus, i.e.
// divisor == order) are pairwise disjoint, and every pair of registers on
// the same puzzle commutes. The commutation test compares the whole
// permutations; shared facelets are not excluded from it, so a pair that
// commutes only off the shared facelets is rejected.
func CheckIndependence(regs []*Register) error {
	witnessOwner := make(map[int]string)
	for _, r := range regs {
		if r.Theoretical {
			continue
		}
		w, err := r.Witness(r.Order)
		if err != nil {
			return err
		}
		for _, f := range w {
			if owner, ok := witnessOwner[f]; ok && owner != r.Name {
				return errors.New(errors.RegistersNotIndependent, errors.Span{},
					"registers %q and %q share unshared facelet %d", owner, r.Name, f)
			}
			witnessOwner[f] = r.Name
		}
	}
	for i := 0; i < len(regs); i++ {
		for j := i + 1; j < len(regs); j++ {
			a, b := regs[i], regs[j]
			if a.Theoretical || b.Theoretical || a.Puzzle != b.Puzzle {
				continue
			}
			if !commute(a.Perm, b.Perm) {
				return errors.New(errors.RegistersNotIndependent, errors.Span{},
					"registers %q and %q do not commute", a.Name, b.Name)
			}
		}
	}
	return nil
}

func commute(a, b puzzle.Permutation) bool {
	return puzzle.Compose(a, b).Equal(puzzle.Compose(b, a))
}

// RegisterNames returns the declared register names in order, for
// diagnostics and the label/register side tables built in internal/ir.
func (a *Architecture) RegisterNames() []string {
	names := make([]string, len(a.Registers))
	for i, r := range a.Registers {
		names[i] = r.Name
	}
	return names
}

// SwitchGroups returns the declared switchable-group names, sorted, for
// deterministic iteration in diagnostics.
func (a *Architecture) SwitchGroups() []string {
	names := make([]string, 0, len(a.Switchable))
	for name := range maps.Keys(a.Switchable) {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
