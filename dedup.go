package main

import (
	"log"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"
)

// DedupEdge is one above-threshold pair, reported with the exact
// Jaccard value even though the estimated value selected it.
type DedupEdge struct {
	Source  string  `json:"source"`
	Target  string  `json:"target"`
	Jaccard float64 `json:"jaccard"`
}

// DedupComponent lists one duplicate cluster and the surviving member.
type DedupComponent struct {
	Items []string `json:"items"`
	Kept  string   `json:"kept"`
}

// DedupReport is the persisted artifact of a duplicate-resolution pass.
type DedupReport struct {
	Components []DedupComponent `json:"components"`
	Edges      []DedupEdge      `json:"edges"`
}

// ResolveDuplicates finds near-duplicate clusters over the pool and
// keeps exactly one item per cluster: the one with the lexicographically
// smallest candidate id. Survivors keep their relative input order.
func ResolveDuplicates(items []Item, threshold float64, seed int64) ([]Item, DedupReport) {
	n := len(items)
	shingleSets := make([]map[string]bool, n)
	sketches := make([]Sketch, n)

	// Sketch construction is the quadratic scan's setup cost and is
	// independent per item; results are index-addressed so concurrent
	// execution is byte-identical to sequential.
	hasher := newMinHasher(seed)
	var g errgroup.Group
	g.SetLimit(runtime.NumCPU())
	for i := range items {
		g.Go(func() error {
			shingleSets[i] = ShingleSet(items[i].Spec)
			sketches[i] = hasher.Sketch(shingleSets[i])
			return nil
		})
	}
	_ = g.Wait()

	adjacency := make([][]int, n)
	var edges []DedupEdge
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if EstimateJaccard(sketches[i], sketches[j]) < threshold {
				continue
			}
			edges = append(edges, DedupEdge{
				Source:  items[i].CandidateID,
				Target:  items[j].CandidateID,
				Jaccard: round4(ExactJaccard(shingleSets[i], shingleSets[j])),
			})
			adjacency[i] = append(adjacency[i], j)
			adjacency[j] = append(adjacency[j], i)
		}
	}

	components := connectedComponents(n, adjacency)

	keep := make(map[int]bool, len(components))
	report := DedupReport{Edges: edges}
	for _, comp := range components {
		ids := make([]string, len(comp))
		for k, idx := range comp {
			ids[k] = items[idx].CandidateID
		}
		// Survivor: lexicographically smallest candidate id.
		minIdx := comp[0]
		for _, idx := range comp[1:] {
			if items[idx].CandidateID < items[minIdx].CandidateID {
				minIdx = idx
			}
		}
		sort.Strings(ids)
		keep[minIdx] = true
		report.Components = append(report.Components, DedupComponent{
			Items: ids,
			Kept:  items[minIdx].CandidateID,
		})
	}

	var survivors []Item
	for i, it := range items {
		if keep[i] {
			survivors = append(survivors, it)
		}
	}
	return survivors, report
}

// connectedComponents partitions vertices 0..n-1 by BFS over the
// adjacency lists. Each component comes back index-sorted; the component
// list follows smallest-member order.
func connectedComponents(n int, adjacency [][]int) [][]int {
	visited := make([]bool, n)
	var comps [][]int
	for start := 0; start < n; start++ {
		if visited[start] {
			continue
		}
		queue := []int{start}
		visited[start] = true
		var comp []int
		for qi := 0; qi < len(queue); qi++ {
			u := queue[qi]
			comp = append(comp, u)
			for _, v := range adjacency[u] {
				if !visited[v] {
					visited[v] = true
					queue = append(queue, v)
				}
			}
		}
		sort.Ints(comp)
		comps = append(comps, comp)
	}
	return comps
}

// logDroppedDuplicates prints one tagged line per removed item, the
// format downstream log scrapers key on.
func logDroppedDuplicates(report DedupReport) {
	for _, comp := range report.Components {
		if len(comp.Items) < 2 {
			continue
		}
		for _, id := range comp.Items {
			if id != comp.Kept {
				log.Printf("DEDUP_DROP: %s (kept %s)", id, comp.Kept)
			}
		}
	}
}
