package intern

import (
	"sync"
	"testing"
)

func TestInternDedupes(t *testing.T) {
	p := New()
	a := p.InternString("quarter-turn")
	b := p.InternString("quarter-turn")
	if !a.Equal(b) {
		t.Fatalf("expected identical content to intern to the same handle")
	}
	if a.Hash() != b.Hash() {
		t.Fatalf("expected identical handles to hash the same")
	}
	c := p.InternString("different")
	if a.Equal(c) {
		t.Fatalf("expected different content to intern to different handles")
	}
}

func TestInternConcurrent(t *testing.T) {
	p := New()
	var wg sync.WaitGroup
	handles := make([]Handle, 64)
	for i := 0; i < 64; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			handles[i] = p.InternString("R U R' U'")
		}(i)
	}
	wg.Wait()
	for i := 1; i < len(handles); i++ {
		if !handles[0].Equal(handles[i]) {
			t.Fatalf("concurrent intern of identical content produced distinct handles")
		}
	}
}

func TestHandleBytesImmutable(t *testing.T) {
	p := New()
	h := p.InternString("R")
	if h.String() != "R" {
		t.Fatalf("got %q, want %q", h.String(), "R")
	}
}
