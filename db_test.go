package main

import (
	"path/filepath"
	"testing"
	"time"
)

func testDB(t *testing.T) string {
	t.Helper()
	return filepath.Join(t.TempDir(), "curator_test.db")
}

func TestRunLifecycle(t *testing.T) {
	db, err := InitDB(testDB(t))
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	defer db.Close()

	if err := InsertRun(db, "run-1", 2025, "template", time.Now()); err != nil {
		t.Fatalf("InsertRun: %v", err)
	}
	status, count, err := GetRunStatus(db, "run-1")
	if err != nil {
		t.Fatalf("GetRunStatus: %v", err)
	}
	if status != "running" || count != 0 {
		t.Errorf("fresh run = %s/%d, want running/0", status, count)
	}

	if err := FinishRun(db, "run-1", "ok", 70); err != nil {
		t.Fatalf("FinishRun: %v", err)
	}
	status, count, err = GetRunStatus(db, "run-1")
	if err != nil {
		t.Fatalf("GetRunStatus: %v", err)
	}
	if status != "ok" || count != 70 {
		t.Errorf("finished run = %s/%d, want ok/70", status, count)
	}
}

func TestRecordCandidatesAndCounts(t *testing.T) {
	db, err := InitDB(testDB(t))
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	defer db.Close()

	validated := []Item{
		testItem("slot__v01", "spec one"),
		testItem("slot__v02", "spec two"),
	}
	rejected := []Item{testItem("slot__v03", "spec three")}
	if err := RecordCandidates(db, "run-1", "validated", validated, nil); err != nil {
		t.Fatalf("RecordCandidates validated: %v", err)
	}
	details := map[string]string{"slot__v03": "missing required section"}
	if err := RecordCandidates(db, "run-1", "rejected", rejected, details); err != nil {
		t.Fatalf("RecordCandidates rejected: %v", err)
	}

	counts, err := CountCandidatesByStatus(db, "run-1")
	if err != nil {
		t.Fatalf("CountCandidatesByStatus: %v", err)
	}
	if counts["validated"] != 2 || counts["rejected"] != 1 {
		t.Errorf("counts = %v, want validated=2 rejected=1", counts)
	}

	var detail string
	err = db.QueryRow(`SELECT detail FROM candidates WHERE candidate_id = ?`, "slot__v03").Scan(&detail)
	if err != nil {
		t.Fatalf("detail query: %v", err)
	}
	if detail != "missing required section" {
		t.Errorf("detail = %q", detail)
	}
}

func TestStageEvents(t *testing.T) {
	db, err := InitDB(testDB(t))
	if err != nil {
		t.Fatalf("InitDB: %v", err)
	}
	defer db.Close()

	if err := RecordStageEvent(db, "run-1", "dedup", 70, 68, "1 component"); err != nil {
		t.Fatalf("RecordStageEvent: %v", err)
	}
	if err := RecordStageEvent(db, "run-1", "topup", 68, 70, ""); err != nil {
		t.Fatalf("RecordStageEvent: %v", err)
	}

	events, err := GetStageEvents(db, "run-1")
	if err != nil {
		t.Fatalf("GetStageEvents: %v", err)
	}
	if got := events["dedup"]; got != [2]int{70, 68} {
		t.Errorf("dedup event = %v, want [70 68]", got)
	}
	if got := events["topup"]; got != [2]int{68, 70} {
		t.Errorf("topup event = %v, want [68 70]", got)
	}
}
