package main

import (
	"fmt"
	"sort"
)

// Platform describes the hosting rules a spec was written against.
// Bind is nil for static (non-server) specs.
type Platform struct {
	Name   string  `json:"name"`
	Server bool    `json:"server"`
	Bind   *string `json:"bind"`
}

// Item is the unit of curation: one generated spec plus its stratum and
// band labels. Items are value-like; pipeline stages build new slices
// instead of mutating text in place.
type Item struct {
	SlotID            string   `json:"slot_id"`
	CandidateID       string   `json:"candidate_id,omitempty"`
	SourceCandidateID string   `json:"source_candidate_id,omitempty"`
	Archetype         string   `json:"archetype"`
	Complexity        string   `json:"complexity"`
	Locale            string   `json:"locale"`
	Platform          Platform `json:"platform"`
	Rep               int      `json:"rep"`
	Seq               int      `json:"seq"`
	LengthBand        string   `json:"length_band"`
	Spec              string   `json:"spec"`
}

// StratumKey identifies the archetype/complexity/locale cell an item
// counts against.
func (it Item) StratumKey() string {
	return it.Archetype + "-" + it.Complexity + "-" + it.Locale
}

// Slot is one logical request for a spec: a stratum cell plus rep/seq
// position and the band the variants should target.
type Slot struct {
	SlotID     string `json:"slot_id"`
	Archetype  string `json:"archetype"`
	Complexity string `json:"complexity"`
	Locale     string `json:"locale"`
	Platform   string `json:"platform"`
	Rep        int    `json:"rep"`
	Seq        int    `json:"seq"`
}

func (s Slot) StratumKey() string {
	return s.Archetype + "-" + s.Complexity + "-" + s.Locale
}

// Stratum declares one grid cell and how many items it must end with.
type Stratum struct {
	Archetype  string `json:"archetype"`
	Complexity string `json:"complexity"`
	Locale     string `json:"locale"`
	Count      int    `json:"count"`
	Platform   string `json:"platform"`
}

func (s Stratum) Key() string {
	return s.Archetype + "-" + s.Complexity + "-" + s.Locale
}

const (
	platformName  = "replit"
	stratumQuota  = 5
	slotIDPattern = "golden_%s%s%s_%s_rep%02d_seq%03d"
)

var declaredArchetypes = []string{"blog", "guestbook", "chat", "notes", "dashboard", "store", "gallery"}
var declaredComplexities = []string{"MVP", "Pro"}
var declaredLocales = []string{"en"}

// DeclaredStrata returns the full archetype x complexity x locale grid,
// R=5 each, in declaration order.
func DeclaredStrata() []Stratum {
	var strata []Stratum
	for _, arch := range declaredArchetypes {
		for _, cx := range declaredComplexities {
			for _, loc := range declaredLocales {
				strata = append(strata, Stratum{
					Archetype:  arch,
					Complexity: cx,
					Locale:     loc,
					Count:      stratumQuota,
					Platform:   platformName,
				})
			}
		}
	}
	return strata
}

// ExpandSlots turns strata into individual slots with rep/seq numbers,
// seq increasing across the whole grid.
func ExpandSlots(strata []Stratum) []Slot {
	var slots []Slot
	seq := 1
	for _, st := range strata {
		for rep := 1; rep <= st.Count; rep++ {
			slots = append(slots, Slot{
				SlotID:     FormatSlotID(st.Archetype, st.Complexity, st.Locale, st.Platform, rep, seq),
				Archetype:  st.Archetype,
				Complexity: st.Complexity,
				Locale:     st.Locale,
				Platform:   st.Platform,
				Rep:        rep,
				Seq:        seq,
			})
			seq++
		}
	}
	return slots
}

func FormatSlotID(archetype, complexity, locale, platform string, rep, seq int) string {
	return fmt.Sprintf(slotIDPattern, archetype, complexity, locale, platform, rep, seq)
}

func FormatCandidateID(slotID string, variant int) string {
	return fmt.Sprintf("%s__v%02d", slotID, variant)
}

// GroupByStratum buckets items by stratum key. Relative item order within
// each bucket follows the input order.
func GroupByStratum(items []Item) map[string][]Item {
	groups := make(map[string][]Item)
	for _, it := range items {
		key := it.StratumKey()
		groups[key] = append(groups[key], it)
	}
	return groups
}

// SortedStratumKeys returns the bucket keys in lexicographic order.
func SortedStratumKeys(groups map[string][]Item) []string {
	keys := make([]string, 0, len(groups))
	for key := range groups {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func candidateIDSet(items []Item) map[string]bool {
	set := make(map[string]bool, len(items))
	for _, it := range items {
		set[it.CandidateID] = true
	}
	return set
}
