package main

import (
	"math"
	"testing"
)

func TestGini(t *testing.T) {
	tests := []struct {
		values []int
		want   float64
	}{
		{[]int{5, 5, 5, 5}, 0.0},
		{[]int{10, 0, 0, 0}, 0.75},
		{[]int{}, 0.0},
		{[]int{7}, 0.0},
	}
	for _, tt := range tests {
		if got := Gini(tt.values); got != tt.want {
			t.Errorf("Gini(%v) = %v, want %v", tt.values, got, tt.want)
		}
	}

	balanced := Gini([]int{6, 5, 5, 6})
	skewed := Gini([]int{20, 1, 1, 1})
	if skewed <= balanced {
		t.Errorf("skewed gini %v should exceed balanced %v", skewed, balanced)
	}
}

func TestEvaluateClusters(t *testing.T) {
	// Seven clusters of three: balanced and all above the minimum size.
	var labels []int
	for c := 0; c < 7; c++ {
		labels = append(labels, c, c, c)
	}
	diverse, report := evaluateClusters(labels)
	if !diverse {
		t.Errorf("balanced clustering flagged: %s", report.Reason)
	}
	if report.Gini != 0.0 {
		t.Errorf("gini = %v, want 0", report.Gini)
	}

	// One undersized cluster fails the minimum size rule.
	labels = append(labels, 7)
	diverse, report = evaluateClusters(labels)
	if diverse {
		t.Error("clustering with a singleton cluster passed")
	}
	if report.MinClusterSize != 1 {
		t.Errorf("min cluster size = %d, want 1", report.MinClusterSize)
	}
	if report.Reason == "" {
		t.Error("failed evaluation carries no reason")
	}
}

func TestShannonDiversity(t *testing.T) {
	var uniform []Item
	for _, arch := range declaredArchetypes {
		for i := 0; i < 10; i++ {
			uniform = append(uniform, Item{Archetype: arch})
		}
	}
	report := ShannonDiversity(uniform)
	if report.NormalizedEntropy != 1.0 {
		t.Errorf("uniform normalized entropy = %v, want 1.0", report.NormalizedEntropy)
	}
	if !report.IsDiverse {
		t.Error("uniform pool not marked diverse")
	}
	if want := round4(math.Log(7)); report.ShannonEntropy != want {
		t.Errorf("entropy = %v, want %v", report.ShannonEntropy, want)
	}

	var single []Item
	for i := 0; i < 70; i++ {
		single = append(single, Item{Archetype: "blog"})
	}
	report = ShannonDiversity(single)
	if report.NormalizedEntropy != 0.0 {
		t.Errorf("single-archetype normalized entropy = %v, want 0", report.NormalizedEntropy)
	}
	if report.IsDiverse {
		t.Error("single-archetype pool marked diverse")
	}
}

func TestDiversityK(t *testing.T) {
	tests := []struct {
		n    int
		want int
	}{
		{70, 8},  // round(sqrt(70)) = 8
		{49, 7},
		{10, 7},  // floor of 7
		{150, 12},
	}
	for _, tt := range tests {
		if got := diversityK(tt.n); got != tt.want {
			t.Errorf("diversityK(%d) = %d, want %d", tt.n, got, tt.want)
		}
	}
}

func TestBuildTFIDFFiltersAndNormalizes(t *testing.T) {
	texts := []string{
		"apple banana cherry apple",
		"apple banana damson",
		"apple elderberry fig",
	}
	v, docs := buildTFIDF(texts)
	if len(docs) != 3 {
		t.Fatalf("docs = %d, want 3", len(docs))
	}
	// "apple" appears in all 3 docs: df = 3 > 0.9*3, filtered out.
	if _, ok := v.vocab["apple"]; ok {
		t.Error("term above the max-df cutoff kept in vocabulary")
	}
	// "banana" appears in 2 docs: kept.
	if _, ok := v.vocab["banana"]; !ok {
		t.Error("term meeting min-df dropped from vocabulary")
	}
	// "cherry" appears once: below min-df, dropped.
	if _, ok := v.vocab["cherry"]; ok {
		t.Error("singleton term kept in vocabulary")
	}
	// Every non-empty vector is l2-normalized.
	for i, doc := range docs {
		if len(doc) == 0 {
			continue
		}
		var norm float64
		for _, w := range doc {
			norm += w * w
		}
		if math.Abs(norm-1.0) > 1e-9 {
			t.Errorf("doc %d has squared norm %v, want 1", i, norm)
		}
	}
}

func TestKmeansDeterministicForSeed(t *testing.T) {
	var docs []sparseVec
	for i := 0; i < 30; i++ {
		docs = append(docs, sparseVec{i % 5: 1.0, 5 + i%3: 0.5})
	}
	a := kmeans(docs, 8, 3, 2025)
	b := kmeans(docs, 8, 3, 2025)
	for i := range a.labels {
		if a.labels[i] != b.labels[i] {
			t.Fatalf("labels diverge at %d: %d vs %d", i, a.labels[i], b.labels[i])
		}
	}
	if a.inertia != b.inertia {
		t.Errorf("inertia diverges: %v vs %v", a.inertia, b.inertia)
	}
}

func TestImproveDiversityPreservesPoolAndBudget(t *testing.T) {
	var pool []Item
	topic := 0
	for _, st := range DeclaredStrata() {
		for rep := 1; rep <= stratumQuota; rep++ {
			pool = append(pool, stratumItem(st.Archetype, st.Complexity, rep, 1, distinctSpec(topic)))
			topic++
		}
	}
	out, report, swaps := ImproveDiversity(pool, pool, 2025, 5)
	if len(out) != len(pool) {
		t.Fatalf("pool size changed: %d -> %d", len(pool), len(out))
	}
	if len(swaps) > 5 {
		t.Errorf("swap budget exceeded: %d swaps", len(swaps))
	}
	// With allValidated identical to the pool there is nothing to swap
	// in, so the pool must come back unchanged item for item.
	for i := range pool {
		if out[i].CandidateID != pool[i].CandidateID {
			t.Fatalf("item %d replaced despite empty candidate pool", i)
		}
	}
	if report.IsDiverse && len(swaps) != 0 {
		t.Errorf("diverse pool still produced %d swaps", len(swaps))
	}
}
