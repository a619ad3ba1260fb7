package main

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
)

func pipelineConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	return Config{
		OutputDir:      filepath.Join(dir, "dist"),
		DBPath:         filepath.Join(dir, "curator.db"),
		Seed:           2025,
		DedupThreshold: 0.85,
		OversubFactor:  1.2,
		TopUpAttempts:  2,
		DiversitySwaps: 5,
		TrainCap:       42,
		ValCap:         14,
		TestCap:        14,
		Synthesizer:    "template",
	}
}

func readPackaged(t *testing.T, path string) []PackagedItem {
	t.Helper()
	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open %s: %v", path, err)
	}
	defer f.Close()

	var items []PackagedItem
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 1024*1024), 16*1024*1024)
	for sc.Scan() {
		var it PackagedItem
		if err := json.Unmarshal(sc.Bytes(), &it); err != nil {
			t.Fatalf("parse %s: %v", path, err)
		}
		items = append(items, it)
	}
	return items
}

func TestRunPipelineEndToEnd(t *testing.T) {
	if testing.Short() {
		t.Skip("full pipeline run")
	}
	cfg := pipelineConfig(t)
	db, err := InitDB(cfg.DBPath)
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	defer db.Close()

	summary := RunPipeline(cfg, db, stageAll)
	if summary.Err != nil {
		t.Fatalf("pipeline failed: %v", summary.Err)
	}
	if summary.ItemCount < 70 {
		t.Errorf("item count = %d, want at least 70", summary.ItemCount)
	}

	for _, name := range []string{
		validatedFile, poolFile, dedupReportFile, topupTraceFile,
		diversityReportFile, bandReportFile, splitsFile, lockfileName,
		"train.jsonl", "val.jsonl", "test.jsonl", "all.jsonl",
	} {
		if _, err := os.Stat(filepath.Join(cfg.OutputDir, name)); err != nil {
			t.Errorf("missing artifact %s: %v", name, err)
		}
	}

	all := readPackaged(t, filepath.Join(cfg.OutputDir, "all.jsonl"))
	if len(all) != summary.ItemCount {
		t.Errorf("all.jsonl has %d items, summary says %d", len(all), summary.ItemCount)
	}
	seenSplits := make(map[string]int)
	for _, it := range all {
		if it.ID == "" || it.Split == "" || it.Spec == "" {
			t.Fatalf("packaged item incomplete: %+v", it)
		}
		seenSplits[it.Split]++
	}
	for _, split := range splitOrder {
		if seenSplits[split] == 0 {
			t.Errorf("split %s has no items", split)
		}
		subset := readPackaged(t, filepath.Join(cfg.OutputDir, split+".jsonl"))
		if len(subset) != seenSplits[split] {
			t.Errorf("%s.jsonl has %d items, all.jsonl says %d", split, len(subset), seenSplits[split])
		}
	}

	// The run catalog recorded the pipeline stages.
	events, err := GetStageEvents(db, summary.RunID)
	if err != nil {
		t.Fatalf("GetStageEvents: %v", err)
	}
	for _, stage := range []string{"synthesize", "validate", "dedup", "topup", "diversity", "package"} {
		if _, ok := events[stage]; !ok {
			t.Errorf("stage %s never recorded", stage)
		}
	}
	status, count, err := GetRunStatus(db, summary.RunID)
	if err != nil {
		t.Fatalf("GetRunStatus: %v", err)
	}
	if status != "ok" || count != summary.ItemCount {
		t.Errorf("run recorded as %s/%d, want ok/%d", status, count, summary.ItemCount)
	}
}

func TestRunPipelineIsReproducible(t *testing.T) {
	if testing.Short() {
		t.Skip("full pipeline run")
	}
	cfgA := pipelineConfig(t)
	cfgB := pipelineConfig(t)

	a := RunPipeline(cfgA, nil, stageAll)
	if a.Err != nil {
		t.Fatalf("first run failed: %v", a.Err)
	}
	b := RunPipeline(cfgB, nil, stageAll)
	if b.Err != nil {
		t.Fatalf("second run failed: %v", b.Err)
	}

	var splitsA, splitsB SplitAssignment
	if err := ReadJSON(filepath.Join(cfgA.OutputDir, splitsFile), &splitsA); err != nil {
		t.Fatalf("read splits A: %v", err)
	}
	if err := ReadJSON(filepath.Join(cfgB.OutputDir, splitsFile), &splitsB); err != nil {
		t.Fatalf("read splits B: %v", err)
	}
	if splitsA.Digest != splitsB.Digest {
		t.Errorf("same seed produced different split digests: %s vs %s", splitsA.Digest, splitsB.Digest)
	}

	allA, err := os.ReadFile(filepath.Join(cfgA.OutputDir, "all.jsonl"))
	if err != nil {
		t.Fatalf("read all.jsonl A: %v", err)
	}
	allB, err := os.ReadFile(filepath.Join(cfgB.OutputDir, "all.jsonl"))
	if err != nil {
		t.Fatalf("read all.jsonl B: %v", err)
	}
	if string(allA) != string(allB) {
		t.Error("same seed produced different packaged corpora")
	}
}

func TestRunPipelineStageResume(t *testing.T) {
	if testing.Short() {
		t.Skip("full pipeline run")
	}
	cfg := pipelineConfig(t)

	if s := RunPipeline(cfg, nil, stageSynth); s.Err != nil {
		t.Fatalf("synth stage failed: %v", s.Err)
	}
	if _, err := os.Stat(filepath.Join(cfg.OutputDir, validatedFile)); err != nil {
		t.Fatalf("synth stage left no validated file: %v", err)
	}
	if s := RunPipeline(cfg, nil, stageCurate); s.Err != nil {
		t.Fatalf("curate stage failed: %v", s.Err)
	}
	if s := RunPipeline(cfg, nil, stagePackage); s.Err != nil {
		t.Fatalf("package stage failed: %v", s.Err)
	}
	if _, err := os.Stat(filepath.Join(cfg.OutputDir, lockfileName)); err != nil {
		t.Errorf("package stage left no lockfile: %v", err)
	}
}

func TestSelectInitialPicksLowestVariantPerSlot(t *testing.T) {
	validated := []Item{
		testItem("slot__v02", distinctSpec(1)),
		testItem("slot__v01", distinctSpec(2)),
	}
	pool := selectInitial(validated)
	if len(pool) != 1 {
		t.Fatalf("pool size = %d, want 1", len(pool))
	}
	if pool[0].CandidateID != "slot__v01" {
		t.Errorf("selected %s, want slot__v01", pool[0].CandidateID)
	}
}

func TestBuildSynthesizer(t *testing.T) {
	kits, err := LoadKitTable("")
	if err != nil {
		t.Fatalf("LoadKitTable: %v", err)
	}
	if _, err := buildSynthesizer(Config{Synthesizer: "template"}, kits); err != nil {
		t.Errorf("template synthesizer: %v", err)
	}
	if _, err := buildSynthesizer(Config{Synthesizer: "llm"}, kits); err == nil {
		t.Error("llm synthesizer without api key did not error")
	}
	if _, err := buildSynthesizer(Config{Synthesizer: "bogus"}, kits); err == nil {
		t.Error("unknown synthesizer did not error")
	}
}
