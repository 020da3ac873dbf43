// Package puzzle implements spec.md §4.B: permutation composition,
// inverse, order and cycle decomposition, orbit identification, and
// algorithm parsing/printing in Singmaster-style notation, plus the
// puzzle-definition loader of spec.md §6.
//
// Grounded on the teacher's visitor-free, plain-struct numeric style
// (sentra's bytecode.Chunk: a flat slice plus a handful of pure
// functions over it) rather than its parser/compiler idiom — there is
// no permutation-group code in sentra to adapt, so this is new code
// written in the same "small struct, free functions" register the
// teacher uses for bytecode.Chunk and vm/value.go's Value type.
package puzzle

import (
	"fmt"
	"sort"

	"golang.org/x/exp/slices"
)

// Permutation is an immutable bijection of {0..N-1}, per spec.md §3.
type Permutation struct {
	p []int
}

// Identity returns the identity permutation on n facelets.
func Identity(n int) Permutation {
	p := make([]int, n)
	for i := range p {
		p[i] = i
	}
	return Permutation{p: p}
}

// FromMapping constructs a Permutation from an explicit image array,
// validating that it is a bijection of {0..len(mapping)-1}.
func FromMapping(mapping []int) (Permutation, error) {
	n := len(mapping)
	seen := make([]bool, n)
	for _, v := range mapping {
		if v < 0 || v >= n || seen[v] {
			return Permutation{}, fmt.Errorf("not a bijection of {0..%d}", n-1)
		}
		seen[v] = true
	}
	cp := slices.Clone(mapping)
	return Permutation{p: cp}, nil
}

// Len returns the facelet count this permutation acts on.
func (p Permutation) Len() int { return len(p.p) }

// At returns the image of facelet i.
func (p Permutation) At(i int) int { return p.p[i] }

// Equal compares two permutations by array equality (spec.md §3).
func (p Permutation) Equal(q Permutation) bool {
	return slices.Equal(p.p, q.p)
}

// Compose returns p·q, i.e. (p·q)[i] = p[q[i]], per spec.md §3.
func Compose(p, q Permutation) Permutation {
	if p.Len() != q.Len() {
		panic("puzzle: compose of permutations with different facelet counts")
	}
	out := make([]int, p.Len())
	for i := range out {
		out[i] = p.p[q.p[i]]
	}
	return Permutation{p: out}
}

// Invert returns the inverse permutation.
func Invert(p Permutation) Permutation {
	out := make([]int, p.Len())
	for i, v := range p.p {
		out[v] = i
	}
	return Permutation{p: out}
}

// Power returns p^k for any integer k, negative allowed (spec.md §4.B).
func Power(p Permutation, k int) Permutation {
	if k < 0 {
		return Power(Invert(p), -k)
	}
	result := Identity(p.Len())
	base := p
	for k > 0 {
		if k&1 == 1 {
			result = Compose(result, base)
		}
		base = Compose(base, base)
		k >>= 1
	}
	return result
}

// Order returns the least positive integer k such that p^k is the
// identity: the least common multiple of its cycle lengths.
func Order(p Permutation) int {
	order := 1
	for _, cyc := range Cycles(p, false) {
		order = lcm(order, len(cyc))
	}
	return order
}

func lcm(a, b int) int {
	return a / gcd(a, b) * b
}

func gcd(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// Cycles returns the disjoint cycle decomposition of p. Each cycle is a
// slice of facelets in mapping order, minimum-rotated so it begins with
// its smallest element (spec.md §4.B: "canonical equality"). If
// includeFixed is false, 1-cycles (fixed points) are omitted.
func Cycles(p Permutation, includeFixed bool) [][]int {
	n := p.Len()
	visited := make([]bool, n)
	var cycles [][]int
	for i := 0; i < n; i++ {
		if visited[i] {
			continue
		}
		cyc := []int{i}
		visited[i] = true
		for j := p.At(i); j != i; j = p.At(j) {
			visited[j] = true
			cyc = append(cyc, j)
		}
		if len(cyc) == 1 && !includeFixed {
			continue
		}
		cycles = append(cycles, rotateToMin(cyc))
	}
	sort.Slice(cycles, func(i, j int) bool { return cycles[i][0] < cycles[j][0] })
	return cycles
}

func rotateToMin(cyc []int) []int {
	minIdx := 0
	for i, v := range cyc {
		if v < cyc[minIdx] {
			minIdx = i
		}
	}
	if minIdx == 0 {
		return cyc
	}
	out := make([]int, len(cyc))
	copy(out, cyc[minIdx:])
	copy(out[len(cyc)-minIdx:], cyc[:minIdx])
	return out
}

// FromCycles rebuilds a permutation of size n from a cycle decomposition
// (spec.md §8: "Cycle decomposition round-trip: rebuilding a permutation
// from its cycles reproduces the original").
func FromCycles(n int, cycles [][]int) Permutation {
	out, err := safeFromCycles(n, cycles)
	if err != nil {
		panic("puzzle: " + err.Error())
	}
	return out
}

// safeFromCycles is the error-returning core of FromCycles, used by
// callers parsing untrusted puzzle-definition text (spec.md §6) where a
// generator with overlapping cycles must be rejected as PuzzleMalformed
// rather than panicking.
func safeFromCycles(n int, cycles [][]int) (Permutation, error) {
	p := Identity(n).p
	touched := make([]bool, n)
	for _, cyc := range cycles {
		for _, v := range cyc {
			if touched[v] {
				return Permutation{}, fmt.Errorf("facelet %d appears in more than one cycle", v)
			}
			touched[v] = true
		}
		for i, v := range cyc {
			next := cyc[(i+1)%len(cyc)]
			p[v] = next
		}
	}
	return FromMapping(p)
}

// Parity returns true if p is an odd permutation (an odd number of
// transpositions), derived from its cycle structure: a cycle of length L
// contributes L-1 transpositions.
func Parity(p Permutation) bool {
	odd := false
	for _, cyc := range Cycles(p, false) {
		if (len(cyc)-1)%2 == 1 {
			odd = !odd
		}
	}
	return odd
}
