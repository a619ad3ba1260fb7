package main

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"math"
)

const numPermutations = 128

// minHasher maps shingle sets to fixed-size sketches. Permutation
// parameters are derived from SHA-256 of (seed, slot index), so sketches
// for the same input and seed are bit-identical across runs and
// platforms.
type minHasher struct {
	muls [numPermutations]uint64
	adds [numPermutations]uint64
}

func newMinHasher(seed int64) *minHasher {
	h := &minHasher{}
	for i := 0; i < numPermutations; i++ {
		sum := sha256.Sum256([]byte(fmt.Sprintf("minhash|%d|%d", seed, i)))
		// Odd multiplier keeps the map a bijection on uint64.
		h.muls[i] = binary.BigEndian.Uint64(sum[0:8]) | 1
		h.adds[i] = binary.BigEndian.Uint64(sum[8:16])
	}
	return h
}

// Sketch is a 128-slot MinHash summary of a shingle set.
type Sketch [numPermutations]uint64

// Sketch builds the MinHash sketch of a shingle set. An empty set yields
// the all-max sketch.
func (h *minHasher) Sketch(shingles map[string]bool) Sketch {
	var sk Sketch
	for i := range sk {
		sk[i] = math.MaxUint64
	}
	for sh := range shingles {
		base := shingleHash(sh)
		for i := 0; i < numPermutations; i++ {
			v := h.muls[i]*base + h.adds[i]
			if v < sk[i] {
				sk[i] = v
			}
		}
	}
	return sk
}

// shingleHash maps a shingle to 64 bits via SHA-1, the same base hash
// the sketches were originally specified with.
func shingleHash(s string) uint64 {
	sum := sha1.Sum([]byte(s))
	return binary.BigEndian.Uint64(sum[:8])
}

// EstimateJaccard approximates set similarity as the fraction of
// matching sketch slots.
func EstimateJaccard(a, b Sketch) float64 {
	matches := 0
	for i := range a {
		if a[i] == b[i] {
			matches++
		}
	}
	return float64(matches) / float64(numPermutations)
}

// ExactJaccard computes |A∩B| / |A∪B| with the conventions
// J(∅,∅) = 1 and J(A,∅) = 0 for nonempty A.
func ExactJaccard(a, b map[string]bool) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	small, large := a, b
	if len(small) > len(large) {
		small, large = large, small
	}
	inter := 0
	for sh := range small {
		if large[sh] {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0.0
	}
	return float64(inter) / float64(union)
}

// maxExactJaccard scores a shingle set against every set in others,
// returning the highest exact similarity found.
func maxExactJaccard(set map[string]bool, others []map[string]bool) float64 {
	maxJ := 0.0
	for _, other := range others {
		if j := ExactJaccard(set, other); j > maxJ {
			maxJ = j
		}
	}
	return maxJ
}

func round4(v float64) float64 {
	return math.Round(v*10000) / 10000
}
