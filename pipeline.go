package main

import (
	"bufio"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Pipeline stages selectable from the command line. Later stages read
// the artifacts earlier stages wrote, so a re-run can resume from any
// stage boundary.
const (
	stageAll     = "all"
	stageSynth   = "synth"
	stageCurate  = "curate"
	stagePackage = "package"
)

const (
	validatedFile       = "validated.jsonl"
	poolFile            = "pool.jsonl"
	dedupReportFile     = "dedup_report.json"
	topupTraceFile      = "topup_trace.json"
	diversityReportFile = "diversity_report.json"
	bandReportFile      = "band_report.json"
	splitsFile          = "splits.json"
	lockfileName        = "curator.lock.json"
)

// RunSummary is what a pipeline run reports upward: to the log, the
// run catalog, and the Slack channel when configured.
type RunSummary struct {
	RunID             string
	Seed              int64
	ItemCount         int
	DuplicatesDropped int
	Regenerated       int
	DiversitySwaps    int
	Err               error
}

// RunPipeline executes the selected stages and records the run in the
// catalog. The db handle may be nil; catalog writes are best effort and
// never fail the run.
func RunPipeline(cfg Config, db *sql.DB, stage string) RunSummary {
	summary := RunSummary{RunID: uuid.NewString(), Seed: cfg.Seed}

	if db != nil {
		if err := InsertRun(db, summary.RunID, cfg.Seed, cfg.Synthesizer, time.Now()); err != nil {
			log.Printf("run catalog insert error: %v", err)
		}
	}
	log.Printf("Curation run %s started: stage=%s seed=%d synthesizer=%s", summary.RunID, stage, cfg.Seed, cfg.Synthesizer)

	summary.Err = runStages(cfg, db, stage, &summary)

	status := "ok"
	if summary.Err != nil {
		status = "failed"
	}
	if db != nil {
		if err := FinishRun(db, summary.RunID, status, summary.ItemCount); err != nil {
			log.Printf("run catalog finish error: %v", err)
		}
	}
	return summary
}

func runStages(cfg Config, db *sql.DB, stage string, summary *RunSummary) error {
	if err := os.MkdirAll(cfg.OutputDir, 0755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	kits, err := LoadKitTable(cfg.TemplatePath)
	if err != nil {
		return err
	}
	synth, err := buildSynthesizer(cfg, kits)
	if err != nil {
		return err
	}
	validator := NewRuleValidator()

	var validated []Item
	if stage == stageAll || stage == stageSynth {
		validated, err = synthesizeStage(cfg, db, summary.RunID, synth, validator)
		if err != nil {
			return err
		}
	}
	if stage == stageSynth {
		return nil
	}

	var pool []Item
	if stage == stageAll || stage == stageCurate {
		if validated == nil {
			validated, err = ReadItemsJSONL(filepath.Join(cfg.OutputDir, validatedFile))
			if err != nil {
				return fmt.Errorf("load validated candidates: %w", err)
			}
		}
		pool, err = curateStage(cfg, db, summary, validated, synth, validator)
		if err != nil {
			return err
		}
	}
	if stage == stageCurate {
		summary.ItemCount = len(pool)
		return nil
	}

	if pool == nil {
		pool, err = ReadItemsJSONL(filepath.Join(cfg.OutputDir, poolFile))
		if err != nil {
			return fmt.Errorf("load curated pool: %w", err)
		}
	}
	summary.ItemCount = len(pool)
	return packageStage(cfg, db, summary.RunID, pool)
}

func buildSynthesizer(cfg Config, kits KitTable) (Synthesizer, error) {
	switch cfg.Synthesizer {
	case "llm":
		return NewLLMSynthesizer(cfg, kits)
	case "template", "":
		return NewTemplateSynthesizer(kits), nil
	default:
		return nil, fmt.Errorf("unknown synthesizer %q", cfg.Synthesizer)
	}
}

// synthesizeStage writes oversubscribed candidates for every declared
// slot and keeps the ones that validate. The per-stratum surplus is
// spread across slots lowest rep first.
func synthesizeStage(cfg Config, db *sql.DB, runID string, synth Synthesizer, validator Validator) ([]Item, error) {
	slots := ExpandSlots(DeclaredStrata())
	total := oversubscribedCount(cfg.OversubFactor, stratumQuota)
	base := total / stratumQuota
	rem := total % stratumQuota

	var candidates []Item
	for _, slot := range slots {
		variants := base
		if slot.Rep <= rem {
			variants++
		}
		items, err := synth.Synthesize(slot, variants, cfg.Seed)
		if err != nil {
			return nil, fmt.Errorf("synthesize slot %s: %w", slot.SlotID, err)
		}
		candidates = append(candidates, items...)
	}

	var validated, rejected []Item
	details := make(map[string]string)
	for _, it := range candidates {
		ok, corrected, reasons := validator.Validate(it)
		if !ok {
			log.Printf("VALID_REJECT: %s: %s", it.CandidateID, strings.Join(reasons, "; "))
			details[it.CandidateID] = strings.Join(reasons, "; ")
			rejected = append(rejected, it)
			continue
		}
		validated = append(validated, corrected)
	}
	log.Printf("Synthesis complete: %d candidates, %d validated, %d rejected", len(candidates), len(validated), len(rejected))
	recordStage(db, runID, "synthesize", len(slots), len(candidates), "")
	recordStage(db, runID, "validate", len(candidates), len(validated), "")
	recordPool(db, runID, "validated", validated, nil)
	recordPool(db, runID, "rejected", rejected, details)

	if err := WriteItemsJSONL(filepath.Join(cfg.OutputDir, validatedFile), validated); err != nil {
		return nil, err
	}
	return validated, nil
}

// selectInitial picks one candidate per slot, lowest variant first, so
// the pre-dedup pool has exactly one entry per declared slot that
// produced any valid candidate.
func selectInitial(validated []Item) []Item {
	bySlot := make(map[string][]Item)
	for _, it := range validated {
		bySlot[it.SlotID] = append(bySlot[it.SlotID], it)
	}
	slotIDs := make([]string, 0, len(bySlot))
	for id := range bySlot {
		slotIDs = append(slotIDs, id)
	}
	sort.Strings(slotIDs)

	pool := make([]Item, 0, len(slotIDs))
	for _, id := range slotIDs {
		group := bySlot[id]
		sort.Slice(group, func(i, j int) bool { return group[i].CandidateID < group[j].CandidateID })
		pool = append(pool, group[0])
	}
	return pool
}

func curateStage(cfg Config, db *sql.DB, summary *RunSummary, validated []Item, synth Synthesizer, validator Validator) ([]Item, error) {
	runID := summary.RunID

	initial := selectInitial(validated)
	kept, dedupReport := ResolveDuplicates(initial, cfg.DedupThreshold, cfg.Seed)
	logDroppedDuplicates(dedupReport)
	summary.DuplicatesDropped = len(initial) - len(kept)
	recordStage(db, runID, "dedup", len(initial), len(kept), fmt.Sprintf("%d components", len(dedupReport.Components)))
	if err := WriteJSON(filepath.Join(cfg.OutputDir, dedupReportFile), dedupReport); err != nil {
		return nil, err
	}

	pool, trace, topupErr := TopUpPool(kept, validated, cfg, synth, validator)
	// The trace is written even when top-up fails so the partial
	// decision record survives for debugging.
	if err := WriteJSON(filepath.Join(cfg.OutputDir, topupTraceFile), trace); err != nil {
		return nil, err
	}
	for _, entry := range trace {
		if entry.Reason == "regenerated" && entry.Selected {
			summary.Regenerated++
		}
	}
	recordStage(db, runID, "topup", len(kept), len(pool), "")
	if topupErr != nil {
		return nil, fmt.Errorf("TOPUP_ERR: %w", topupErr)
	}

	pool, clusterReport, swaps := ImproveDiversity(pool, validated, cfg.Seed, cfg.DiversitySwaps)
	pool = AssignRepSeq(pool)
	summary.DiversitySwaps = len(swaps)
	divReport := DiversityReport{
		ClusterDiversity: clusterReport,
		ShannonDiversity: ShannonDiversity(pool),
		Swaps:            swaps,
	}
	recordStage(db, runID, "diversity", len(pool), len(pool), fmt.Sprintf("%d swaps", len(swaps)))
	if err := WriteJSON(filepath.Join(cfg.OutputDir, diversityReportFile), divReport); err != nil {
		return nil, err
	}

	bandReport := BuildBandReport(pool)
	if !bandReport.Valid {
		for _, p := range bandReport.Problems {
			log.Printf("BAND_MIX_WARN: %s", p)
		}
	}
	if err := WriteJSON(filepath.Join(cfg.OutputDir, bandReportFile), bandReport); err != nil {
		return nil, err
	}

	recordPool(db, runID, "selected", pool, nil)
	if err := WriteItemsJSONL(filepath.Join(cfg.OutputDir, poolFile), pool); err != nil {
		return nil, err
	}
	return pool, nil
}

// PackagedItem is the release form of an item: keyed by slot id,
// stamped with its split, without the internal candidate id.
type PackagedItem struct {
	ID                string   `json:"id"`
	Split             string   `json:"split"`
	Archetype         string   `json:"archetype"`
	Complexity        string   `json:"complexity"`
	Locale            string   `json:"locale"`
	Platform          Platform `json:"platform"`
	Rep               int      `json:"rep"`
	Seq               int      `json:"seq"`
	LengthBand        string   `json:"length_band"`
	SourceCandidateID string   `json:"source_candidate_id,omitempty"`
	Spec              string   `json:"spec"`
}

func packageStage(cfg Config, db *sql.DB, runID string, pool []Item) error {
	assignment := SplitPool(pool, cfg.TrainCap, cfg.ValCap, cfg.TestCap, cfg.SplitSeed)
	splitsPath := filepath.Join(cfg.OutputDir, splitsFile)
	if err := WriteJSON(splitsPath, assignment); err != nil {
		return err
	}

	splitOf := make(map[string]string)
	for split, ids := range assignment.Splits {
		for _, id := range ids {
			splitOf[id] = split
		}
	}

	packaged := make([]PackagedItem, 0, len(pool))
	for _, it := range pool {
		packaged = append(packaged, PackagedItem{
			ID:                it.SlotID,
			Split:             splitOf[it.SlotID],
			Archetype:         it.Archetype,
			Complexity:        it.Complexity,
			Locale:            it.Locale,
			Platform:          it.Platform,
			Rep:               it.Rep,
			Seq:               it.Seq,
			LengthBand:        it.LengthBand,
			SourceCandidateID: it.SourceCandidateID,
			Spec:              it.Spec,
		})
	}
	sort.Slice(packaged, func(i, j int) bool { return packaged[i].ID < packaged[j].ID })

	var artifacts []string
	for _, split := range splitOrder {
		var subset []PackagedItem
		for _, p := range packaged {
			if p.Split == split {
				subset = append(subset, p)
			}
		}
		path := filepath.Join(cfg.OutputDir, split+".jsonl")
		if err := writePackagedJSONL(path, subset); err != nil {
			return err
		}
		artifacts = append(artifacts, path)
	}
	allPath := filepath.Join(cfg.OutputDir, "all.jsonl")
	if err := writePackagedJSONL(allPath, packaged); err != nil {
		return err
	}
	artifacts = append(artifacts, allPath)
	recordStage(db, runID, "package", len(pool), len(packaged), "")

	reports := []string{
		filepath.Join(cfg.OutputDir, dedupReportFile),
		filepath.Join(cfg.OutputDir, topupTraceFile),
		filepath.Join(cfg.OutputDir, diversityReportFile),
		filepath.Join(cfg.OutputDir, bandReportFile),
	}
	lock, err := BuildLockfile(reports, splitsPath, artifacts)
	if err != nil {
		return fmt.Errorf("build lockfile: %w", err)
	}
	if err := WriteJSON(filepath.Join(cfg.OutputDir, lockfileName), lock); err != nil {
		return err
	}

	if problems := VerifyPoolIntegrity(pool); len(problems) > 0 {
		for _, p := range problems {
			log.Println(p)
		}
		return fmt.Errorf("pool integrity check failed with %d problems", len(problems))
	}
	log.Printf("Packaged %d items: train=%d val=%d test=%d", len(packaged),
		assignment.Counts["train"], assignment.Counts["val"], assignment.Counts["test"])
	return nil
}

func writePackagedJSONL(path string, items []PackagedItem) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	w := bufio.NewWriter(f)
	for _, it := range items {
		line, err := json.Marshal(it)
		if err != nil {
			return err
		}
		if _, err := w.Write(append(line, '\n')); err != nil {
			return err
		}
	}
	return w.Flush()
}

func recordStage(db *sql.DB, runID, stage string, in, out int, detail string) {
	if db == nil {
		return
	}
	if err := RecordStageEvent(db, runID, stage, in, out, detail); err != nil {
		log.Printf("stage event record error: %v", err)
	}
}

func recordPool(db *sql.DB, runID, status string, items []Item, details map[string]string) {
	if db == nil {
		return
	}
	if err := RecordCandidates(db, runID, status, items, details); err != nil {
		log.Printf("candidate record error: %v", err)
	}
}
