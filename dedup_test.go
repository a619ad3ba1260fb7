package main

import (
	"fmt"
	"strings"
	"testing"
)

func testItem(candidateID, spec string) Item {
	return Item{
		SlotID:      "golden_blogMVPen_replit_rep01_seq001",
		CandidateID: candidateID,
		Archetype:   "blog",
		Complexity:  "MVP",
		Locale:      "en",
		Platform:    Platform{Name: platformName},
		Rep:         1,
		Seq:         1,
		LengthBand:  BandStandard,
		Spec:        spec,
	}
}

// distinctSpec builds a body whose trigram shingles are fully disjoint
// from every other topic's, so cross-topic Jaccard is exactly zero.
func distinctSpec(i int) string {
	var b strings.Builder
	for j := 0; j < 60; j++ {
		fmt.Fprintf(&b, "term%d_%d ", i, j)
	}
	return b.String()
}

func TestResolveDuplicatesKeepsSmallestID(t *testing.T) {
	shared := distinctSpec(1)
	items := []Item{
		testItem("slot__v03", shared),
		testItem("slot__v01", shared),
		testItem("slot__v02", shared),
	}

	kept, report := ResolveDuplicates(items, 0.85, 2025)
	if len(kept) != 1 {
		t.Fatalf("kept %d items, want 1", len(kept))
	}
	if kept[0].CandidateID != "slot__v01" {
		t.Errorf("survivor = %s, want slot__v01 (lexicographically smallest)", kept[0].CandidateID)
	}
	if len(report.Components) != 1 {
		t.Fatalf("components = %d, want 1", len(report.Components))
	}
	if report.Components[0].Kept != "slot__v01" {
		t.Errorf("component kept = %s, want slot__v01", report.Components[0].Kept)
	}
	if len(report.Components[0].Items) != 3 {
		t.Errorf("component size = %d, want 3", len(report.Components[0].Items))
	}
}

func TestResolveDuplicatesLeavesDistinctAlone(t *testing.T) {
	items := []Item{
		testItem("slot__v01", distinctSpec(1)),
		testItem("slot__v02", distinctSpec(2)),
		testItem("slot__v03", distinctSpec(3)),
	}

	kept, report := ResolveDuplicates(items, 0.85, 2025)
	if len(kept) != 3 {
		t.Fatalf("kept %d items, want all 3", len(kept))
	}
	if len(report.Edges) != 0 {
		t.Errorf("edges = %d, want 0", len(report.Edges))
	}
	// Survivors keep their input order.
	for i, want := range []string{"slot__v01", "slot__v02", "slot__v03"} {
		if kept[i].CandidateID != want {
			t.Errorf("kept[%d] = %s, want %s", i, kept[i].CandidateID, want)
		}
	}
}

func TestResolveDuplicatesIdenticalPairReportsJaccardOne(t *testing.T) {
	shared := distinctSpec(7)
	items := []Item{
		testItem("slot__v01", shared),
		testItem("slot__v02", shared),
		testItem("slot__v03", distinctSpec(8)),
	}

	kept, report := ResolveDuplicates(items, 0.85, 2025)
	if len(kept) != 2 {
		t.Fatalf("kept %d items, want 2", len(kept))
	}
	if len(report.Edges) != 1 {
		t.Fatalf("edges = %d, want 1", len(report.Edges))
	}
	if report.Edges[0].Jaccard != 1.0 {
		t.Errorf("edge jaccard = %v, want exact 1.0", report.Edges[0].Jaccard)
	}
}

func TestConnectedComponents(t *testing.T) {
	// 0-1, 1-2 chain plus isolated 3.
	adjacency := [][]int{{1}, {0, 2}, {1}, {}}
	comps := connectedComponents(4, adjacency)
	if len(comps) != 2 {
		t.Fatalf("components = %d, want 2", len(comps))
	}
	if len(comps[0]) != 3 || comps[0][0] != 0 || comps[0][2] != 2 {
		t.Errorf("first component = %v, want [0 1 2]", comps[0])
	}
	if len(comps[1]) != 1 || comps[1][0] != 3 {
		t.Errorf("second component = %v, want [3]", comps[1])
	}
}
