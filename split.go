package main

import (
	"log"
	"sort"
)

var splitOrder = []string{"train", "val", "test"}

// SplitAssignment is the persisted split artifact: slot ids per split,
// counts, and a digest over the canonical assignment form that detects
// any drift on re-runs.
type SplitAssignment struct {
	Splits map[string][]string `json:"splits"`
	Counts map[string]int      `json:"counts"`
	Digest string              `json:"digest"`
}

// SplitPool partitions the final pool into train/val/test under the
// given caps. The function is pure and seed-free: assignment follows
// only stratum, band, and slot-id ordering. Each band keeps its own
// rotating cursor over the splits, so a band's items interleave across
// train, val, and test instead of pooling in whichever split fills
// first. A seed argument is accepted for interface compatibility and
// ignored with a warning.
func SplitPool(items []Item, trainCap, valCap, testCap int, seed *int64) SplitAssignment {
	if seed != nil {
		log.Printf("WARN SPLIT_SEED_IGNORED %d", *seed)
	}

	caps := map[string]int{"train": trainCap, "val": valCap, "test": testCap}
	counts := map[string]int{"train": 0, "val": 0, "test": 0}
	assignments := map[string][]string{"train": {}, "val": {}, "test": {}}
	cursors := map[string]int{}

	groups := GroupByStratum(items)
	for _, key := range SortedStratumKeys(groups) {
		byBand := make(map[string][]Item)
		for _, it := range groups[key] {
			byBand[it.LengthBand] = append(byBand[it.LengthBand], it)
		}
		for _, band := range bandOrder {
			bandItems := byBand[band]
			sort.Slice(bandItems, func(i, j int) bool { return bandItems[i].SlotID < bandItems[j].SlotID })
			for _, it := range bandItems {
				assigned := false
				start := cursors[band]
				for i := 0; i < len(splitOrder); i++ {
					split := splitOrder[(start+i)%len(splitOrder)]
					if counts[split] < caps[split] {
						assignments[split] = append(assignments[split], it.SlotID)
						counts[split]++
						cursors[band] = (start + i + 1) % len(splitOrder)
						assigned = true
						break
					}
				}
				if !assigned {
					// All splits full; last-resort fallback keeps the
					// partition total.
					assignments["train"] = append(assignments["train"], it.SlotID)
					counts["train"]++
				}
			}
		}
	}

	return SplitAssignment{
		Splits: assignments,
		Counts: counts,
		Digest: assignmentDigest(assignments),
	}
}
