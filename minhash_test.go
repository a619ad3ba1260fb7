package main

import (
	"fmt"
	"math"
	"testing"
)

func shingleSetOf(words ...string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range words {
		set[w] = true
	}
	return set
}

func TestExactJaccardConventions(t *testing.T) {
	empty := map[string]bool{}
	ab := shingleSetOf("a", "b")

	if got := ExactJaccard(empty, empty); got != 1.0 {
		t.Errorf("J(empty, empty) = %v, want 1.0", got)
	}
	if got := ExactJaccard(ab, empty); got != 0.0 {
		t.Errorf("J(nonempty, empty) = %v, want 0.0", got)
	}
	if got := ExactJaccard(ab, ab); got != 1.0 {
		t.Errorf("J(A, A) = %v, want 1.0", got)
	}

	abc := shingleSetOf("a", "b", "c")
	bcd := shingleSetOf("b", "c", "d")
	if got := ExactJaccard(abc, bcd); got != 0.5 {
		t.Errorf("J(abc, bcd) = %v, want 0.5", got)
	}
}

func TestSketchDeterministicAcrossHashers(t *testing.T) {
	set := ShingleSet("the quick brown fox jumps over the lazy dog again and again")

	h1 := newMinHasher(2025)
	h2 := newMinHasher(2025)
	if h1.Sketch(set) != h2.Sketch(set) {
		t.Fatal("same seed and input produced different sketches")
	}

	h3 := newMinHasher(99)
	if h1.Sketch(set) == h3.Sketch(set) {
		t.Fatal("different seeds produced identical sketches")
	}
}

func TestEmptySketchConvention(t *testing.T) {
	h := newMinHasher(2025)
	sk := h.Sketch(map[string]bool{})
	for i, v := range sk {
		if v != math.MaxUint64 {
			t.Fatalf("empty sketch slot %d = %d, want MaxUint64", i, v)
		}
	}
	// Two empty sets estimate as identical, matching the exact value.
	if got := EstimateJaccard(sk, sk); got != 1.0 {
		t.Errorf("estimate for two empty sketches = %v, want 1.0", got)
	}
}

func TestEstimateTracksExactJaccard(t *testing.T) {
	// Build two large overlapping shingle sets and check the sketch
	// estimate lands near the exact similarity.
	a := make(map[string]bool)
	b := make(map[string]bool)
	for i := 0; i < 300; i++ {
		sh := fmt.Sprintf("shingle number %d", i)
		a[sh] = true
		if i >= 100 {
			b[sh] = true
		}
	}
	for i := 300; i < 400; i++ {
		b[fmt.Sprintf("shingle number %d", i)] = true
	}

	exact := ExactJaccard(a, b) // 200 / 400 = 0.5
	h := newMinHasher(2025)
	est := EstimateJaccard(h.Sketch(a), h.Sketch(b))
	if math.Abs(est-exact) > 0.15 {
		t.Errorf("estimate %v too far from exact %v", est, exact)
	}
}

func TestIdenticalTextsEstimateAsOne(t *testing.T) {
	text := "a long enough body of text that produces a healthy number of trigram shingles for sketching"
	h := newMinHasher(2025)
	a := h.Sketch(ShingleSet(text))
	b := h.Sketch(ShingleSet(text))
	if got := EstimateJaccard(a, b); got != 1.0 {
		t.Errorf("identical texts estimate = %v, want 1.0", got)
	}
}
