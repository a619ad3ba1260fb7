package main

import (
	"fmt"
	"sort"
	"strings"
)

const (
	BandShort    = "SHORT"
	BandStandard = "STANDARD"
	BandExtended = "EXTENDED"
)

// bandOrder is the canonical band ordering used everywhere bands are
// iterated: splitter interleaving, per-stratum scheme, reports.
var bandOrder = []string{BandShort, BandStandard, BandExtended}

type bandRange struct {
	Min int `json:"min"`
	Max int `json:"max"`
}

// The STANDARD and EXTENDED ranges overlap on 601-800 as declared.
// DetermineBand resolves the overlap with an explicit tie-break:
// the narrowest matching range wins, so 601-800 is always STANDARD.
var bandRanges = map[string]bandRange{
	BandShort:    {250, 400},
	BandStandard: {401, 800},
	BandExtended: {601, 1500},
}

type bandTarget struct {
	Target    int `json:"target"`
	Tolerance int `json:"tolerance"`
}

// Global band mix target and tolerance, reported-only.
var globalBandTarget = map[string]bandTarget{
	BandShort:    {14, 7},
	BandStandard: {42, 7},
	BandExtended: {14, 7},
}

var aclLabel = "### Access Control"

// CountTokens counts word tokens after stripping H2 headers and the
// access-control label, which are structural markup rather than content.
func CountTokens(text string) int {
	text = h2HeaderRe.ReplaceAllString(text, "")
	text = strings.ReplaceAll(text, aclLabel, "")
	return len(Tokenize(text))
}

// DetermineBand maps a token count to its length band, or "" when the
// count falls outside every range. Candidate bands are checked in order
// of increasing range width so the overlap window resolves to the
// narrower band.
func DetermineBand(tokenCount int) string {
	names := make([]string, 0, len(bandRanges))
	for name := range bandRanges {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		wi := bandRanges[names[i]].Max - bandRanges[names[i]].Min
		wj := bandRanges[names[j]].Max - bandRanges[names[j]].Min
		if wi != wj {
			return wi < wj
		}
		return names[i] < names[j]
	})
	for _, name := range names {
		r := bandRanges[name]
		if tokenCount >= r.Min && tokenCount <= r.Max {
			return name
		}
	}
	return ""
}

// ValidateBand recomputes an item's band from its own text and compares
// it to the declared label. Returns the actual band alongside the error
// so callers can record the correction.
func ValidateBand(it Item) (actual string, err error) {
	count := CountTokens(it.Spec)
	actual = DetermineBand(count)
	if actual == "" {
		return "", fmt.Errorf("token count %d falls into no band", count)
	}
	if actual != it.LengthBand {
		return actual, fmt.Errorf("declared band %s does not match actual band %s (token count %d)", it.LengthBand, actual, count)
	}
	return actual, nil
}

// CountBandDistribution tallies declared bands across the pool.
func CountBandDistribution(items []Item) map[string]int {
	dist := make(map[string]int, len(bandOrder))
	for _, band := range bandOrder {
		dist[band] = 0
	}
	for _, it := range items {
		if _, ok := dist[it.LengthBand]; ok {
			dist[it.LengthBand]++
		}
	}
	return dist
}

// ValidateGlobalMix checks each band count against its target within
// tolerance. Deviation is a warning, never a gate.
func ValidateGlobalMix(dist map[string]int) (bool, []string) {
	var problems []string
	for _, band := range bandOrder {
		tgt := globalBandTarget[band]
		count := dist[band]
		delta := count - tgt.Target
		if delta < 0 {
			delta = -delta
		}
		if delta > tgt.Tolerance {
			problems = append(problems, fmt.Sprintf("%s=%d target=%d tolerance=%d", band, count, tgt.Target, tgt.Tolerance))
		}
	}
	return len(problems) == 0, problems
}

// BandReport is the persisted band artifact: the configured ranges and
// targets, the pool's actual distribution, whether the mix falls inside
// every tolerance window, and suggested adjustments when it does not.
type BandReport struct {
	Ranges       map[string]bandRange  `json:"ranges"`
	Targets      map[string]bandTarget `json:"targets"`
	Distribution map[string]int        `json:"distribution"`
	Valid        bool                  `json:"valid"`
	Problems     []string              `json:"problems"`
	Suggestions  []string              `json:"suggestions"`
}

// BuildBandReport evaluates the pool's band mix against the global
// targets. Deviation never gates the pipeline; the report records it.
func BuildBandReport(items []Item) BandReport {
	dist := CountBandDistribution(items)
	valid, problems := ValidateGlobalMix(dist)
	return BandReport{
		Ranges:       bandRanges,
		Targets:      globalBandTarget,
		Distribution: dist,
		Valid:        valid,
		Problems:     problems,
		Suggestions:  SuggestBandAdjustments(dist),
	}
}

// SuggestBandAdjustments names, per out-of-window band, how many items
// to add or shed to get back inside the tolerance window.
func SuggestBandAdjustments(dist map[string]int) []string {
	var suggestions []string
	for _, band := range bandOrder {
		tgt := globalBandTarget[band]
		count := dist[band]
		lo := tgt.Target - tgt.Tolerance
		hi := tgt.Target + tgt.Tolerance
		switch {
		case count < lo:
			suggestions = append(suggestions, fmt.Sprintf("add %d %s items to reach the window [%d, %d]", lo-count, band, lo, hi))
		case count > hi:
			suggestions = append(suggestions, fmt.Sprintf("shed %d %s items to reach the window [%d, %d]", count-hi, band, lo, hi))
		}
	}
	return suggestions
}

// stratumBandScheme returns the band each of the R slots in a stratum
// should target, positionally: 1 SHORT, 3 STANDARD, 1 EXTENDED.
func stratumBandScheme(position, count int) string {
	switch {
	case position == 0:
		return BandShort
	case position == count-1:
		return BandExtended
	default:
		return BandStandard
	}
}
