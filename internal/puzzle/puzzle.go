package puzzle

import (
	"sort"
	"strings"

	"qter/internal/errors"
	"qter/internal/intern"

	"golang.org/x/exp/slices"
)

// Generator is one named primitive permutation, plus its implicitly
// available inverse and square (spec.md §3: "naming rule: name,
// name + \"'\", name + \"2\"").
type Generator struct {
	Name string
	Perm Permutation
}

// Derived is a compound named move: a list of generator references
// (spec.md §3 "derived").
type Derived struct {
	Name string
	Refs []string
}

// Preset is a registered (cycle-order multiset, algorithm list, optional
// shared-piece count) tuple used by .registers' builtin() form.
type Preset struct {
	Orders      []int
	Algorithms  []Algorithm // one per register in a multi-register preset
	SharedCount int         // 0 if not recorded
	HasShared   bool
}

// Puzzle is immutable after load (spec.md §3).
type Puzzle struct {
	ID           string
	FaceletCount int
	Orbits       [][]int // partition of {0..N-1}
	generators   map[string]Permutation
	genOrder     []string // declaration order, base names only
	derived      []Derived
	Presets      []Preset

	pool *intern.Pool
}

// Generators returns the base generator names in declaration order (not
// including synthesized inverse/square variants).
func (pz *Puzzle) Generators() []string {
	return slices.Clone(pz.genOrder)
}

// Generator looks up a generator, derived move, or synthesized
// inverse/square by name. Returns (perm, false) if unknown.
func (pz *Puzzle) Generator(name string) (Permutation, bool) {
	if p, ok := pz.generators[name]; ok {
		return p, true
	}
	if strings.HasSuffix(name, "'") {
		base := strings.TrimSuffix(name, "'")
		if p, ok := pz.generators[base]; ok {
			return Invert(p), true
		}
	}
	if strings.HasSuffix(name, "2") {
		base := strings.TrimSuffix(name, "2")
		if p, ok := pz.generators[base]; ok {
			return Power(p, 2), true
		}
	}
	for _, d := range pz.derived {
		if d.Name == name {
			return pz.derivedPerm(d)
		}
	}
	return Permutation{}, false
}

func (pz *Puzzle) derivedPerm(d Derived) (Permutation, bool) {
	result := Identity(pz.FaceletCount)
	for _, ref := range d.Refs {
		p, ok := pz.Generator(ref)
		if !ok {
			return Permutation{}, false
		}
		result = Compose(p, result)
	}
	return result, true
}

// Builder constructs a Puzzle, validating spec.md §3's invariant that
// every generator is a bijection preserving the orbit partition, and
// rejecting malformed declarations with PuzzleMalformed (spec.md §4.B).
type Builder struct {
	id           string
	faceletCount int
	generators   map[string]Permutation
	genOrder     []string
	derived      []Derived
	presets      []Preset
	pool         *intern.Pool
}

// NewBuilder starts a puzzle declaration with a fixed facelet count.
func NewBuilder(id string, faceletCount int, pool *intern.Pool) *Builder {
	return &Builder{
		id:           id,
		faceletCount: faceletCount,
		generators:   make(map[string]Permutation),
		pool:         pool,
	}
}

// AddGenerator declares a named generator from its cycle notation, as
// parsed from a GENERATORS line (spec.md §6).
func (b *Builder) AddGenerator(name string, cycles [][]int) error {
	if _, exists := b.generators[name]; exists {
		return newMalformed("duplicate generator %q", name)
	}
	for _, cyc := range cycles {
		for _, f := range cyc {
			if f < 0 || f >= b.faceletCount {
				return newMalformed("generator %q references facelet %d out of range [0,%d)", name, f, b.faceletCount)
			}
		}
	}
	perm, err := safeFromCycles(b.faceletCount, cycles)
	if err != nil {
		return newMalformed("generator %q is not a bijection: %v", name, err)
	}
	b.generators[name] = perm
	b.genOrder = append(b.genOrder, name)
	return nil
}

// AddDerived declares a compound named move (spec.md §6 DERIVED).
func (b *Builder) AddDerived(name string, refs []string) error {
	for _, r := range refs {
		if _, ok := b.generators[r]; !ok && !isSynth(b.generators, r) {
			return newMalformed("derived move %q references unknown generator %q", name, r)
		}
	}
	b.derived = append(b.derived, Derived{Name: name, Refs: refs})
	return nil
}

func isSynth(gens map[string]Permutation, name string) bool {
	base := strings.TrimSuffix(strings.TrimSuffix(name, "'"), "2")
	_, ok := gens[base]
	return ok
}

// AddPreset registers a PRESETS line (spec.md §6): orders, one algorithm
// string per register (split on "/"), and an optional shared count.
func (b *Builder) AddPreset(orders []int, algoTexts []string, sharedCount int, hasShared bool) error {
	built := &Puzzle{
		FaceletCount: b.faceletCount,
		generators:   b.generators,
		genOrder:     b.genOrder,
		derived:      b.derived,
		pool:         b.pool,
	}
	algos := make([]Algorithm, 0, len(algoTexts))
	for _, text := range algoTexts {
		algo, err := ParseAlgorithm(text, built)
		if err != nil {
			return err
		}
		algos = append(algos, algo)
	}
	b.presets = append(b.presets, Preset{Orders: orders, Algorithms: algos, SharedCount: sharedCount, HasShared: hasShared})
	return nil
}

// Build finalizes the puzzle: computes orbits by closing single-element
// sets under every generator, and validates that every generator is a
// bijection preserving that partition.
func (b *Builder) Build() (*Puzzle, error) {
	if len(b.generators) == 0 {
		return nil, newMalformed("puzzle %q declares no generators", b.id)
	}
	orbits := computeOrbits(b.faceletCount, b.generators)
	orbitOf := make([]int, b.faceletCount)
	for oi, orb := range orbits {
		for _, f := range orb {
			orbitOf[f] = oi
		}
	}
	for name, perm := range b.generators {
		for i := 0; i < b.faceletCount; i++ {
			if orbitOf[perm.At(i)] != orbitOf[i] {
				return nil, newMalformed("generator %q does not preserve the orbit partition at facelet %d", name, i)
			}
		}
	}
	pz := &Puzzle{
		ID:           b.id,
		FaceletCount: b.faceletCount,
		Orbits:       orbits,
		generators:   b.generators,
		genOrder:     b.genOrder,
		derived:      b.derived,
		Presets:      b.presets,
		pool:         b.pool,
	}
	return pz, nil
}

func computeOrbits(n int, generators map[string]Permutation) [][]int {
	parent := make([]int, n)
	for i := range parent {
		parent[i] = i
	}
	var find func(int) int
	find = func(x int) int {
		for parent[x] != x {
			parent[x] = parent[parent[x]]
			x = parent[x]
		}
		return x
	}
	union := func(a, b int) {
		ra, rb := find(a), find(b)
		if ra != rb {
			parent[ra] = rb
		}
	}
	for _, perm := range generators {
		for i := 0; i < n; i++ {
			union(i, perm.At(i))
		}
	}
	groups := make(map[int][]int)
	for i := 0; i < n; i++ {
		r := find(i)
		groups[r] = append(groups[r], i)
	}
	orbits := make([][]int, 0, len(groups))
	for _, g := range groups {
		sort.Ints(g)
		orbits = append(orbits, g)
	}
	sort.Slice(orbits, func(i, j int) bool { return orbits[i][0] < orbits[j][0] })
	return orbits
}

func newMalformed(format string, args ...interface{}) *errors.CompileError {
	return errors.New(errors.PuzzleMalformed, errors.Span{}, format, args...)
}

// Algorithm is a finite sequence of generator references (spec.md §3).
// Two algorithms are equivalent iff they induce the same permutation;
// the compiler never compares algorithms by their token text.
type Algorithm struct {
	Moves []string
}

// Permutation returns the permutation this algorithm induces on pz: the
// composition of its referenced generators in sequence order.
func (a Algorithm) Permutation(pz *Puzzle) (Permutation, error) {
	result := Identity(pz.FaceletCount)
	for _, m := range a.Moves {
		p, ok := pz.Generator(m)
		if !ok {
			return Permutation{}, errors.New(errors.UnknownMove, errors.Span{}, "unknown move %q", m)
		}
		result = Compose(p, result)
	}
	return result, nil
}

// ParseAlgorithm parses a space-separated move sequence against pz,
// returning UnknownMove if any token does not name a generator, derived
// move, or synthesized inverse/square (spec.md §4.B).
func ParseAlgorithm(text string, pz *Puzzle) (Algorithm, error) {
	fields := strings.Fields(text)
	moves := make([]string, 0, len(fields))
	for _, f := range fields {
		if _, ok := pz.Generator(f); !ok {
			return Algorithm{}, errors.New(errors.UnknownMove, errors.Span{}, "unknown move %q", f)
		}
		moves = append(moves, f)
	}
	return Algorithm{Moves: moves}, nil
}

// PrintAlgorithm renders an algorithm in Singmaster convention: a bare
// name, name+"'" for its inverse, name+"2" for its square (spec.md
// §4.B). Per SPEC_FULL.md's supplemented canonicalization, every maximal
// run of moves on the same base generator is summed mod the generator's
// order and re-emitted by canonicalForm, which may produce several tokens
// (e.g. "R2 R" for a net 3 on an order-105 generator), so printing is
// idempotent under re-parsing.
func PrintAlgorithm(a Algorithm, pz *Puzzle) string {
	var out []string
	i := 0
	for i < len(a.Moves) {
		base, variant := splitVariant(a.Moves[i])
		j := i + 1
		count := variantCount(variant)
		for j < len(a.Moves) {
			b2, v2 := splitVariant(a.Moves[j])
			if b2 != base {
				break
			}
			count += variantCount(v2)
			j++
		}
		if p, ok := pz.Generator(base); ok {
			order := Order(p)
			count = ((count % order) + order) % order
			out = append(out, canonicalForm(base, count, order)...)
		} else {
			out = append(out, a.Moves[i])
		}
		i = j
	}
	return strings.Join(out, " ")
}

func splitVariant(move string) (base string, variant int) {
	switch {
	case strings.HasSuffix(move, "2"):
		return strings.TrimSuffix(move, "2"), 2
	case strings.HasSuffix(move, "'"):
		return strings.TrimSuffix(move, "'"), -1
	default:
		return move, 1
	}
}

func variantCount(v int) int { return v }

// canonicalForm emits tokens for `count` applications of base modulo
// order, preferring whichever of {base, base', base2} realizes it most
// compactly: base2 pairs of count when that side is shorter, base' when
// the complement (order-count) is shorter.
func canonicalForm(base string, count, order int) []string {
	if count == 0 {
		return nil
	}
	if count == order-1 {
		return []string{base + "'"}
	}
	if count <= order-count {
		var toks []string
		remaining := count
		for remaining >= 2 {
			toks = append(toks, base+"2")
			remaining -= 2
		}
		if remaining == 1 {
			toks = append(toks, base)
		}
		return toks
	}
	var toks []string
	for k := 0; k < order-count; k++ {
		toks = append(toks, base+"'")
	}
	return toks
}
