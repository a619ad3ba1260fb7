package main

import (
	"fmt"
	"log"
	"math"
	"math/rand"
	"sort"
	"strconv"
)

type sparseVec = map[int]float64

// vectorizer holds the TF-IDF model fitted over one pool snapshot.
// Terms are word 1- and 2-grams of normalized text; terms in fewer than
// 2 documents or more than 90% of them are dropped, which suppresses
// both noise terms and universal boilerplate.
type vectorizer struct {
	vocab map[string]int
	idf   []float64
}

const (
	tfidfMinDF    = 2
	tfidfMaxDFPct = 0.9
)

func docTerms(text string) []string {
	tokens := Tokenize(NormalizeText(text))
	terms := make([]string, 0, 2*len(tokens))
	terms = append(terms, tokens...)
	for i := 0; i+1 < len(tokens); i++ {
		terms = append(terms, tokens[i]+" "+tokens[i+1])
	}
	return terms
}

// buildTFIDF fits the vocabulary over texts and returns l2-normalized
// document vectors. Vocabulary indices are assigned over the sorted term
// list so the vector space is identical run to run.
func buildTFIDF(texts []string) (*vectorizer, []sparseVec) {
	n := len(texts)
	df := make(map[string]int)
	docTermLists := make([][]string, n)
	for i, text := range texts {
		terms := docTerms(text)
		docTermLists[i] = terms
		seen := make(map[string]bool, len(terms))
		for _, t := range terms {
			if !seen[t] {
				seen[t] = true
				df[t]++
			}
		}
	}

	maxDF := int(tfidfMaxDFPct * float64(n))
	var kept []string
	for t, d := range df {
		if d >= tfidfMinDF && d <= maxDF {
			kept = append(kept, t)
		}
	}
	sort.Strings(kept)

	v := &vectorizer{vocab: make(map[string]int, len(kept)), idf: make([]float64, len(kept))}
	for i, t := range kept {
		v.vocab[t] = i
		v.idf[i] = math.Log(float64(n)/float64(df[t])) + 1.0
	}

	docs := make([]sparseVec, n)
	for i, terms := range docTermLists {
		tf := make(map[int]int)
		for _, t := range terms {
			if idx, ok := v.vocab[t]; ok {
				tf[idx]++
			}
		}
		vec := make(sparseVec, len(tf))
		var norm float64
		for idx, count := range tf {
			w := float64(count) * v.idf[idx]
			vec[idx] = w
			norm += w * w
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for idx := range vec {
				vec[idx] /= norm
			}
		}
		docs[i] = vec
	}
	return v, docs
}

// kmeansResult holds labels and dense centroids from the best of the
// restarts.
type kmeansResult struct {
	labels    []int
	centroids [][]float64
	inertia   float64
}

const (
	kmeansRestarts = 10
	kmeansMaxIters = 300
	kmeansTol      = 1e-4
)

// kmeans clusters l2-normalized sparse vectors into k groups with Lloyd
// iterations. All randomness comes from the passed seed; restarts keep
// the lowest-inertia solution so results are reproducible.
func kmeans(docs []sparseVec, dim, k int, seed int64) kmeansResult {
	n := len(docs)
	if k > n {
		k = n
	}
	rng := rand.New(rand.NewSource(seed))

	best := kmeansResult{inertia: math.Inf(1)}
	for restart := 0; restart < kmeansRestarts; restart++ {
		centroids := make([][]float64, k)
		for i, p := range rng.Perm(n)[:k] {
			centroids[i] = denseCopy(docs[p], dim)
		}

		labels := make([]int, n)
		for iter := 0; iter < kmeansMaxIters; iter++ {
			for i, doc := range docs {
				labels[i] = nearestCentroid(doc, centroids)
			}
			shift := 0.0
			counts := make([]int, k)
			sums := make([][]float64, k)
			for c := range sums {
				sums[c] = make([]float64, dim)
			}
			for i, doc := range docs {
				counts[labels[i]]++
				for idx, w := range doc {
					sums[labels[i]][idx] += w
				}
			}
			for c := 0; c < k; c++ {
				if counts[c] == 0 {
					// Reseed an empty cluster with the point farthest
					// from its assigned centroid.
					far := farthestPoint(docs, labels, centroids)
					labels[far] = c
					counts[c] = 1
					copy(sums[c], denseCopy(docs[far], dim))
				}
				for idx := range sums[c] {
					sums[c][idx] /= float64(counts[c])
				}
				shift += euclidean(centroids[c], sums[c])
				centroids[c] = sums[c]
			}
			if shift < kmeansTol {
				break
			}
		}

		inertia := 0.0
		for i, doc := range docs {
			inertia += sqDistToCentroid(doc, centroids[labels[i]])
		}
		if inertia < best.inertia {
			best = kmeansResult{labels: append([]int(nil), labels...), centroids: centroids, inertia: inertia}
		}
	}
	return best
}

func denseCopy(vec sparseVec, dim int) []float64 {
	out := make([]float64, dim)
	for idx, w := range vec {
		out[idx] = w
	}
	return out
}

func sqDistToCentroid(doc sparseVec, centroid []float64) float64 {
	var d float64
	for idx, c := range centroid {
		diff := c - doc[idx]
		d += diff * diff
	}
	// Entries of doc outside the centroid's support are impossible: the
	// centroid is dense over the full vocabulary.
	return d
}

func nearestCentroid(doc sparseVec, centroids [][]float64) int {
	bestIdx, bestDist := 0, math.Inf(1)
	for c, centroid := range centroids {
		if d := sqDistToCentroid(doc, centroid); d < bestDist {
			bestIdx, bestDist = c, d
		}
	}
	return bestIdx
}

func farthestPoint(docs []sparseVec, labels []int, centroids [][]float64) int {
	far, farDist := 0, -1.0
	for i, doc := range docs {
		if d := sqDistToCentroid(doc, centroids[labels[i]]); d > farDist {
			far, farDist = i, d
		}
	}
	return far
}

func euclidean(a, b []float64) float64 {
	var d float64
	for i := range a {
		diff := a[i] - b[i]
		d += diff * diff
	}
	return math.Sqrt(d)
}

// Gini computes the inequality coefficient over cluster sizes,
// rounded to 4 decimals.
func Gini(values []int) float64 {
	sorted := append([]int(nil), values...)
	sort.Ints(sorted)
	n := len(sorted)
	total := 0
	for _, v := range sorted {
		total += v
	}
	if n == 0 || total == 0 {
		return 0.0
	}
	var weighted float64
	for i, v := range sorted {
		weighted += float64(n-i) * float64(v)
	}
	gini := (float64(n+1) - 2.0*weighted/float64(total)) / float64(n)
	return round4(gini)
}

const (
	diversityMinClusterSize = 3
	diversityMaxGini        = 0.40
)

// ClusterReport captures one diversity evaluation over the pool.
type ClusterReport struct {
	ClusterCounts  map[string]int `json:"cluster_counts"`
	Gini           float64        `json:"gini"`
	MinClusterSize int            `json:"min_cluster_size"`
	IsDiverse      bool           `json:"is_diverse"`
	Reason         string         `json:"reason,omitempty"`
}

func evaluateClusters(labels []int) (bool, ClusterReport) {
	counts := make(map[string]int)
	for _, label := range labels {
		counts[strconv.Itoa(label)]++
	}
	var sizes []int
	minSize := 0
	for _, c := range counts {
		sizes = append(sizes, c)
		if minSize == 0 || c < minSize {
			minSize = c
		}
	}
	report := ClusterReport{
		ClusterCounts:  counts,
		Gini:           Gini(sizes),
		MinClusterSize: minSize,
	}
	report.IsDiverse = minSize >= diversityMinClusterSize && report.Gini <= diversityMaxGini
	if minSize < diversityMinClusterSize {
		report.Reason = fmt.Sprintf("Min cluster size %d < required %d", minSize, diversityMinClusterSize)
	} else if report.Gini > diversityMaxGini {
		report.Reason = fmt.Sprintf("Gini %.4f > max %.4f", report.Gini, diversityMaxGini)
	}
	return report.IsDiverse, report
}

// SwapRecord is one corrective replacement in the diversity loop.
type SwapRecord struct {
	SwapIdx    int     `json:"swap_idx"`
	Removed    string  `json:"removed"`
	Added      string  `json:"added"`
	Cluster    int     `json:"cluster"`
	MaxJaccard float64 `json:"max_jaccard"`
}

// ShannonReport is the archetype-entropy health signal, reported only.
type ShannonReport struct {
	ArchetypeCounts   map[string]int `json:"archetype_counts"`
	ShannonEntropy    float64        `json:"shannon_entropy"`
	NormalizedEntropy float64        `json:"normalized_entropy"`
	Threshold         float64        `json:"threshold"`
	IsDiverse         bool           `json:"is_diverse"`
}

const shannonThreshold = 0.97

// ShannonDiversity computes H over archetype frequencies and compares
// H/Hmax to the threshold.
func ShannonDiversity(items []Item) ShannonReport {
	counts := make(map[string]int)
	for _, it := range items {
		counts[it.Archetype]++
	}
	total := float64(len(items))
	var h float64
	for _, c := range counts {
		p := float64(c) / total
		h -= p * math.Log(p)
	}
	var hNorm float64
	if len(counts) > 1 {
		hNorm = h / math.Log(float64(len(counts)))
	}
	return ShannonReport{
		ArchetypeCounts:   counts,
		ShannonEntropy:    round4(h),
		NormalizedEntropy: round4(hNorm),
		Threshold:         shannonThreshold,
		IsDiverse:         hNorm >= shannonThreshold,
	}
}

// DiversityReport is the persisted artifact of the diversity stage.
type DiversityReport struct {
	ClusterDiversity ClusterReport `json:"cluster_diversity"`
	ShannonDiversity ShannonReport `json:"shannon_diversity"`
	Swaps            []SwapRecord  `json:"swaps"`
}

func diversityK(n int) int {
	k := int(math.Round(math.Sqrt(float64(n))))
	if k < 7 {
		k = 7
	}
	return k
}

// ImproveDiversity evaluates cluster diversity and, while the pool is
// not diverse, swaps the most central member of the largest cluster for
// the least-redundant unused candidate of the same stratum and band.
// Bounded by maxSwaps; failure to converge is a warning, not a gate.
func ImproveDiversity(items, allValidated []Item, seed int64, maxSwaps int) ([]Item, ClusterReport, []SwapRecord) {
	pool := append([]Item(nil), items...)

	cluster := func() ([]sparseVec, kmeansResult) {
		texts := make([]string, len(pool))
		for i, it := range pool {
			texts[i] = NormalizeText(it.Spec)
		}
		v, docs := buildTFIDF(texts)
		return docs, kmeans(docs, len(v.idf), diversityK(len(pool)), seed)
	}

	docs, km := cluster()
	diverse, report := evaluateClusters(km.labels)
	if diverse {
		return pool, report, nil
	}

	var swaps []SwapRecord
	for swapIdx := 1; swapIdx <= maxSwaps; swapIdx++ {
		largest := largestCluster(km.labels)
		centralIdx := mostCentralMember(docs, km, largest)
		central := pool[centralIdx]

		replacement, maxJ, ok := pickReplacement(pool, centralIdx, allValidated)
		if !ok {
			log.Printf("No replacement candidates found for %s", central.CandidateID)
			break
		}

		swaps = append(swaps, SwapRecord{
			SwapIdx:    swapIdx,
			Removed:    central.CandidateID,
			Added:      replacement.CandidateID,
			Cluster:    largest,
			MaxJaccard: round4(maxJ),
		})
		pool[centralIdx] = replacement

		docs, km = cluster()
		diverse, report = evaluateClusters(km.labels)
		if diverse {
			break
		}
	}

	if !diverse {
		log.Printf("DIV_C_ERR: Failed to achieve cluster diversity after maximum swaps")
	}
	return pool, report, swaps
}

// largestCluster returns the label with the most members; ties go to
// the smallest label.
func largestCluster(labels []int) int {
	counts := make(map[int]int)
	for _, label := range labels {
		counts[label]++
	}
	best, bestCount := 0, -1
	var keys []int
	for label := range counts {
		keys = append(keys, label)
	}
	sort.Ints(keys)
	for _, label := range keys {
		if counts[label] > bestCount {
			best, bestCount = label, counts[label]
		}
	}
	return best
}

// mostCentralMember finds the member of the cluster with the minimum
// Euclidean distance to the cluster centroid: the most redundant item,
// the cheapest to remove without losing coverage.
func mostCentralMember(docs []sparseVec, km kmeansResult, cluster int) int {
	best, bestDist := -1, math.Inf(1)
	for i, label := range km.labels {
		if label != cluster {
			continue
		}
		if d := sqDistToCentroid(docs[i], km.centroids[cluster]); d < bestDist {
			best, bestDist = i, d
		}
	}
	return best
}

// pickReplacement gathers unused validated candidates matching the
// replaced item's stratum and band, scores each by its maximum exact
// Jaccard against every other kept item, and returns the least
// redundant (ties by candidate id).
func pickReplacement(pool []Item, replaceIdx int, allValidated []Item) (Item, float64, bool) {
	target := pool[replaceIdx]
	poolIDs := candidateIDSet(pool)

	var keptSets []map[string]bool
	for i, it := range pool {
		if i == replaceIdx {
			continue
		}
		keptSets = append(keptSets, ShingleSet(it.Spec))
	}

	type scored struct {
		item Item
		maxJ float64
	}
	var candidates []scored
	for _, it := range allValidated {
		if it.StratumKey() != target.StratumKey() || it.LengthBand != target.LengthBand {
			continue
		}
		if poolIDs[it.CandidateID] {
			continue
		}
		candidates = append(candidates, scored{item: it, maxJ: maxExactJaccard(ShingleSet(it.Spec), keptSets)})
	}
	if len(candidates) == 0 {
		return Item{}, 0, false
	}
	sort.Slice(candidates, func(i, j int) bool {
		if candidates[i].maxJ != candidates[j].maxJ {
			return candidates[i].maxJ < candidates[j].maxJ
		}
		return candidates[i].item.CandidateID < candidates[j].item.CandidateID
	})
	return candidates[0].item, candidates[0].maxJ, true
}
