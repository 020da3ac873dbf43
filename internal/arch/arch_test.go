package arch

import (
	"testing"

	"qter/internal/puzzle"
)

// buildTestPuzzle mirrors puzzle's reducedPuzzleForTest: a synthetic,
// hand-verifiable puzzle rather than a real WCA facelet table, since
// this toolchain can never be run to catch a transcription error in one.
func buildTestPuzzle(t *testing.T) *puzzle.Puzzle {
	t.Helper()
	b := puzzle.NewBuilder("arch-test", 20, nil)
	if err := b.AddGenerator("A", [][]int{{0, 1, 2}, {3, 4, 5, 6, 7}, {8, 9, 10, 11, 12, 13, 14}}); err != nil {
		t.Fatal(err)
	}
	// C shares facelets 0,1,2 with A: same 3-cycle, so any register bound
	// to it collides with A's witness at divisor 3.
	if err := b.AddGenerator("C", [][]int{{0, 1, 2}}); err != nil {
		t.Fatal(err)
	}
	// B lives entirely on facelets 15..19, disjoint from A and C.
	if err := b.AddGenerator("B", [][]int{{15, 16, 17, 18, 19}}); err != nil {
		t.Fatal(err)
	}
	pz, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	return pz
}

func registerFor(t *testing.T, pz *puzzle.Puzzle, name string) *Register {
	t.Helper()
	r, err := NewCustom(name, pz, name)
	if err != nil {
		t.Fatal(err)
	}
	return r
}

func TestRegisterOrderFromCycleLengths(t *testing.T) {
	pz := buildTestPuzzle(t)
	a := registerFor(t, pz, "A")
	if a.Order != 105 {
		t.Fatalf("order = %d, want 105 (lcm(3,5,7))", a.Order)
	}
}

func TestWitnessAtDivisorThreeIsLengthThreeCycle(t *testing.T) {
	pz := buildTestPuzzle(t)
	a := registerFor(t, pz, "A")
	w, err := a.Witness(3)
	if err != nil {
		t.Fatal(err)
	}
	if len(w) != 1 || w[0] != 0 {
		t.Fatalf("witness(3) = %v, want [0] (the length-3 cycle's min facelet)", w)
	}
}

func TestWitnessDivisibility(t *testing.T) {
	pz := buildTestPuzzle(t)
	a := registerFor(t, pz, "A")
	// The literal divisibility-witness scenario: order 105, after 15
	// increments solved-goto A%3 is taken; after 14 it is not.
	solved, err := a.Solved(15, 3)
	if err != nil {
		t.Fatal(err)
	}
	if !solved {
		t.Fatal("expected solved at value=15, divisor=3")
	}
	solved, err = a.Solved(14, 3)
	if err != nil {
		t.Fatal(err)
	}
	if solved {
		t.Fatal("expected not solved at value=14, divisor=3")
	}
}

func TestWitnessRejectsNonDivisor(t *testing.T) {
	pz := buildTestPuzzle(t)
	a := registerFor(t, pz, "A")
	if _, err := a.Witness(4); err == nil {
		t.Fatal("expected BadDivisor for a divisor that does not divide 105")
	}
}

func TestIndependentRegistersPass(t *testing.T) {
	pz := buildTestPuzzle(t)
	a := registerFor(t, pz, "A")
	b := registerFor(t, pz, "B")
	if err := CheckIndependence([]*Register{a, b}); err != nil {
		t.Fatalf("expected independent registers to pass, got %v", err)
	}
}

func TestOverlappingWitnessRejected(t *testing.T) {
	pz := buildTestPuzzle(t)
	a := registerFor(t, pz, "A")
	c := registerFor(t, pz, "C")
	if err := CheckIndependence([]*Register{a, c}); err == nil {
		t.Fatal("expected RegistersNotIndependent: A and C share facelets 0,1,2")
	}
}

func TestTheoreticalRegisterHasNoWitness(t *testing.T) {
	r := NewTheoretical("T", 12)
	if _, err := r.Witness(12); err == nil {
		t.Fatal("expected TheoreticalRegisterNotEmitted")
	}
}

func TestBuiltinResolvesAgainstPreset(t *testing.T) {
	b := puzzle.NewBuilder("preset-test", 15, nil)
	if err := b.AddGenerator("R", [][]int{{0, 1, 2}, {3, 4, 5, 6, 7}, {8, 9, 10, 11, 12, 13, 14}}); err != nil {
		t.Fatal(err)
	}
	if err := b.AddPreset([]int{105}, []string{"R"}, 0, false); err != nil {
		t.Fatal(err)
	}
	pz, err := b.Build()
	if err != nil {
		t.Fatal(err)
	}
	r, err := NewBuiltin("A", pz, []int{105}, 0)
	if err != nil {
		t.Fatal(err)
	}
	if r.Order != 105 {
		t.Fatalf("order = %d, want 105", r.Order)
	}
}
