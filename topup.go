package main

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"sort"
	"strconv"
	"strings"
)

// TopUpEntry records one decision the top-up loop made about one
// candidate, with the reason tag downstream tooling filters on.
type TopUpEntry struct {
	Stratum     string  `json:"stratum"`
	CandidateID string  `json:"candidate_id,omitempty"`
	MaxJaccard  float64 `json:"max_jaccard,omitempty"`
	Selected    bool    `json:"selected"`
	Reason      string  `json:"reason"`
	Attempt     int     `json:"attempt,omitempty"`
	Message     string  `json:"message,omitempty"`
}

// SeedFor derives the regeneration seed for a stratum attempt from the
// base seed via a stable hash: the first 8 hex digits of
// SHA-256("base|archetype|complexity|attempt") reinterpreted as an
// integer. Stage reordering cannot change the outcome because no
// in-process generator state is involved.
func SeedFor(baseSeed int64, archetype, complexity string, attempt int) int64 {
	return hashSeed(fmt.Sprintf("%d|%s|%s|%d", baseSeed, archetype, complexity, attempt))
}

// VariantSeed derives the per-variant seed used by synthesis.
func VariantSeed(baseSeed int64, slotID string, variant int) int64 {
	return hashSeed(fmt.Sprintf("%d|%s|%d", baseSeed, slotID, variant))
}

func hashSeed(key string) int64 {
	sum := sha256.Sum256([]byte(key))
	prefix := hex.EncodeToString(sum[:])[:8]
	v, _ := strconv.ParseUint(prefix, 16, 64)
	return int64(v)
}

// TopUpPool restores every declared stratum to its quota after
// deduplication. Replacements come first from already-validated unused
// candidates of the same stratum, least-redundant first; when that pool
// runs dry, fresh candidates are synthesized, validated, and admitted
// through another duplicate-resolution pass. A stratum still short after
// the attempt budget is a fatal error.
func TopUpPool(kept, allValidated []Item, cfg Config, synth Synthesizer, validator Validator) ([]Item, []TopUpEntry, error) {
	pool := append([]Item(nil), kept...)
	var trace []TopUpEntry

	allByStratum := GroupByStratum(allValidated)

	for _, st := range DeclaredStrata() {
		key := st.Key()
		current := stratumCount(pool, key)
		if current >= stratumQuota {
			continue
		}

		entries, selected := rankStaticCandidates(pool, allByStratum[key], key, stratumQuota-current)
		trace = append(trace, entries...)
		pool = append(pool, selected...)
		current += len(selected)
		if current >= stratumQuota {
			continue
		}

		trace = append(trace, TopUpEntry{
			Stratum: key,
			Reason:  "pool_empty",
			Message: fmt.Sprintf("Need to regenerate %d items", stratumQuota-current),
		})
		log.Printf("Stratum %s has only %d items, need to regenerate", key, current)

		var err error
		pool, trace, err = regenerateStratum(pool, st, cfg, synth, validator, trace)
		if err != nil {
			return pool, trace, err
		}
	}

	return AssignRepSeq(pool), trace, nil
}

// rankStaticCandidates orders unused same-stratum candidates by
// (max exact Jaccard against kept items ascending, candidate id
// ascending) and selects the first `needed`. Every considered candidate
// lands in the trace, selected or not.
func rankStaticCandidates(pool, stratumItems []Item, key string, needed int) ([]TopUpEntry, []Item) {
	keptIDs := candidateIDSet(pool)
	var keptSets []map[string]bool
	for _, it := range pool {
		if it.StratumKey() == key {
			keptSets = append(keptSets, ShingleSet(it.Spec))
		}
	}

	type scored struct {
		item Item
		maxJ float64
	}
	var candidates []scored
	for _, it := range stratumItems {
		if keptIDs[it.CandidateID] {
			continue
		}
		candidates = append(candidates, scored{
			item: it,
			maxJ: maxExactJaccard(ShingleSet(it.Spec), keptSets),
		})
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].maxJ != candidates[j].maxJ {
			return candidates[i].maxJ < candidates[j].maxJ
		}
		return candidates[i].item.CandidateID < candidates[j].item.CandidateID
	})

	var entries []TopUpEntry
	var selected []Item
	for i, c := range candidates {
		if i < needed {
			entries = append(entries, TopUpEntry{
				Stratum:     key,
				CandidateID: c.item.CandidateID,
				MaxJaccard:  round4(c.maxJ),
				Selected:    true,
				Reason:      "top_up",
			})
			selected = append(selected, c.item)
		} else {
			entries = append(entries, TopUpEntry{
				Stratum:     key,
				CandidateID: c.item.CandidateID,
				MaxJaccard:  round4(c.maxJ),
				Selected:    false,
				Reason:      "not_needed",
			})
		}
	}
	return entries, selected
}

// regenerateStratum synthesizes fresh candidates for one slot of the
// stratum, oversubscribed, then admits only the ones that survive a
// duplicate-resolution pass against the current pool. Bounded by the
// configured attempt budget.
func regenerateStratum(pool []Item, st Stratum, cfg Config, synth Synthesizer, validator Validator, trace []TopUpEntry) ([]Item, []TopUpEntry, error) {
	key := st.Key()
	for attempt := 1; attempt <= cfg.TopUpAttempts; attempt++ {
		seed := SeedFor(cfg.Seed, st.Archetype, st.Complexity, attempt)
		slot := Slot{
			SlotID:     FormatSlotID(st.Archetype, st.Complexity, st.Locale, st.Platform, 1, 1),
			Archetype:  st.Archetype,
			Complexity: st.Complexity,
			Locale:     st.Locale,
			Platform:   st.Platform,
			Rep:        1,
			Seq:        1,
		}
		variants := oversubscribedCount(cfg.OversubFactor, stratumQuota)
		log.Printf("Regenerating stratum=%s attempt=%d seed=%d variants=%d", key, attempt, seed, variants)

		fresh, err := synth.Synthesize(slot, variants, seed)
		if err != nil {
			return pool, trace, fmt.Errorf("synthesize stratum %s attempt %d: %w", key, attempt, err)
		}
		// Intake already used variant numbers 1..n for this slot, so
		// regenerated candidates take an attempt-offset range to keep
		// candidate identifiers unique across the whole run.
		for i := range fresh {
			fresh[i].CandidateID = FormatCandidateID(slot.SlotID, attempt*100+i+1)
		}

		var validated []Item
		for _, it := range fresh {
			ok, corrected, diags := validator.Validate(it)
			if !ok {
				log.Printf("Regenerated candidate %s rejected: %s", it.CandidateID, strings.Join(diags, "; "))
				continue
			}
			validated = append(validated, corrected)
		}

		combined := append(append([]Item(nil), pool...), validated...)
		survivors, _ := ResolveDuplicates(combined, cfg.DedupThreshold, cfg.Seed)

		poolIDs := candidateIDSet(pool)
		var novel []Item
		for _, it := range survivors {
			if !poolIDs[it.CandidateID] {
				novel = append(novel, it)
			}
		}
		sort.Slice(novel, func(i, j int) bool { return novel[i].CandidateID < novel[j].CandidateID })

		admitted := make(map[string]bool)
		for _, it := range novel {
			if stratumCount(pool, key) >= stratumQuota {
				break
			}
			pool = append(pool, it)
			admitted[it.CandidateID] = true
		}
		for _, it := range validated {
			trace = append(trace, TopUpEntry{
				Stratum:     key,
				CandidateID: it.CandidateID,
				Selected:    admitted[it.CandidateID],
				Reason:      "regenerated",
				Attempt:     attempt,
			})
		}

		if stratumCount(pool, key) >= stratumQuota {
			return pool, trace, nil
		}
	}
	return pool, trace, fmt.Errorf("stratum %s still below quota %d after %d regeneration attempts", key, stratumQuota, cfg.TopUpAttempts)
}

func oversubscribedCount(factor float64, base int) int {
	n := int(factor * float64(base))
	if float64(n) < factor*float64(base) {
		n++
	}
	if n < base {
		n = base
	}
	return n
}

func stratumCount(pool []Item, key string) int {
	count := 0
	for _, it := range pool {
		if it.StratumKey() == key {
			count++
		}
	}
	return count
}

// AssignRepSeq re-derives rep/seq numbers and slot ids for the whole
// pool: strata in lexicographic key order, items within a stratum in
// candidate-id order, seq increasing globally. Items that arrived
// through substitution get their provenance stamped.
func AssignRepSeq(pool []Item) []Item {
	groups := GroupByStratum(pool)
	var out []Item
	seq := 1
	for _, key := range SortedStratumKeys(groups) {
		items := groups[key]
		sort.Slice(items, func(i, j int) bool { return items[i].CandidateID < items[j].CandidateID })
		for i, it := range items {
			it.Rep = i + 1
			it.Seq = seq
			it.SlotID = FormatSlotID(it.Archetype, it.Complexity, it.Locale, platformName, it.Rep, it.Seq)
			if it.SourceCandidateID == "" {
				it.SourceCandidateID = it.CandidateID
			}
			out = append(out, it)
			seq++
		}
	}
	return out
}
