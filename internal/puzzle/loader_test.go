package puzzle

import "testing"

const samplePuzzleText = `
COLORS
white -> 0
yellow -> 1

GENERATORS
R = (0, 1, 2)
U = (3, 4, 5, 6, 7)
both = (0, 1, 2) (3, 4, 5, 6, 7) (8, 9, 10, 11, 12, 13, 14)

DERIVED
R2move = R R

PRESETS
(105) both
(15) R / U ~ 2
`

func TestLoadParsesAllSections(t *testing.T) {
	pz, err := Load("sample", samplePuzzleText, nil)
	if err != nil {
		t.Fatal(err)
	}
	if pz.FaceletCount != 15 {
		t.Fatalf("facelet count = %d, want 15", pz.FaceletCount)
	}
	if _, ok := pz.Generator("R"); !ok {
		t.Fatal("expected generator R")
	}
	if _, ok := pz.Generator("R2move"); !ok {
		t.Fatal("expected derived move R2move")
	}
	if len(pz.Presets) != 2 {
		t.Fatalf("expected 2 presets, got %d", len(pz.Presets))
	}
	if pz.Presets[0].Orders[0] != 105 {
		t.Fatalf("preset 0 order = %v, want [105]", pz.Presets[0].Orders)
	}
	if !pz.Presets[1].HasShared || pz.Presets[1].SharedCount != 2 {
		t.Fatalf("preset 1 shared count not parsed: %+v", pz.Presets[1])
	}
	if len(pz.Presets[1].Algorithms) != 2 {
		t.Fatalf("preset 1 should have 2 algorithms (R and U), got %d", len(pz.Presets[1].Algorithms))
	}
}

func TestLoadRejectsOutOfRangeFacelet(t *testing.T) {
	bad := "GENERATORS\nR = (0, 1, 999)\n"
	if _, err := Load("bad", bad, nil); err == nil {
		t.Fatal("expected PuzzleMalformed for out-of-range facelet")
	}
}

func TestLoadRejectsNonBijectiveGenerator(t *testing.T) {
	// Facelet 1 appears in both cycles of the same generator, so no
	// single consistent image can be assigned to it.
	bad := "GENERATORS\nbad = (0, 1) (1, 2)\n"
	if _, err := Load("bad", bad, nil); err == nil {
		t.Fatal("expected PuzzleMalformed for a non-bijective generator")
	}
}
