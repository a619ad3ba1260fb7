package main

import (
	"database/sql"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

func InitDB(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, err
	}

	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		run_id      TEXT PRIMARY KEY,
		seed        INTEGER NOT NULL,
		synthesizer TEXT NOT NULL,
		status      TEXT NOT NULL DEFAULT 'running',
		item_count  INTEGER DEFAULT 0,
		started_at  DATETIME NOT NULL,
		finished_at DATETIME
	);

	CREATE TABLE IF NOT EXISTS candidates (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id       TEXT NOT NULL,
		candidate_id TEXT NOT NULL,
		slot_id      TEXT NOT NULL,
		stratum      TEXT NOT NULL,
		length_band  TEXT DEFAULT '',
		status       TEXT NOT NULL,
		detail       TEXT DEFAULT '',
		created_at   DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_candidates_run ON candidates(run_id);
	CREATE INDEX IF NOT EXISTS idx_candidates_stratum ON candidates(stratum);

	CREATE TABLE IF NOT EXISTS stage_events (
		id         INTEGER PRIMARY KEY AUTOINCREMENT,
		run_id     TEXT NOT NULL,
		stage      TEXT NOT NULL,
		count_in   INTEGER NOT NULL,
		count_out  INTEGER NOT NULL,
		detail     TEXT DEFAULT '',
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	CREATE INDEX IF NOT EXISTS idx_stage_events_run ON stage_events(run_id);
	`
	_, err = db.Exec(schema)
	if err != nil {
		return nil, err
	}

	return db, nil
}

func InsertRun(db *sql.DB, runID string, seed int64, synthesizer string, startedAt time.Time) error {
	_, err := db.Exec(
		`INSERT INTO runs (run_id, seed, synthesizer, status, started_at) VALUES (?, ?, ?, 'running', ?)`,
		runID, seed, synthesizer, startedAt,
	)
	return err
}

func FinishRun(db *sql.DB, runID, status string, itemCount int) error {
	_, err := db.Exec(
		`UPDATE runs SET status = ?, item_count = ?, finished_at = ? WHERE run_id = ?`,
		status, itemCount, time.Now(), runID,
	)
	return err
}

func GetRunStatus(db *sql.DB, runID string) (string, int, error) {
	var status string
	var count int
	err := db.QueryRow(`SELECT status, item_count FROM runs WHERE run_id = ?`, runID).Scan(&status, &count)
	return status, count, err
}

// RecordCandidates writes one row per candidate with its fate at the
// stage that decided it (validated, rejected, dedup_dropped, selected,
// topped_up, swapped_out).
func RecordCandidates(db *sql.DB, runID, status string, items []Item, details map[string]string) error {
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	stmt, err := tx.Prepare(
		`INSERT INTO candidates (run_id, candidate_id, slot_id, stratum, length_band, status, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, it := range items {
		detail := ""
		if details != nil {
			detail = details[it.CandidateID]
		}
		if _, err := stmt.Exec(runID, it.CandidateID, it.SlotID, it.StratumKey(), it.LengthBand, status, detail); err != nil {
			tx.Rollback()
			return err
		}
	}
	return tx.Commit()
}

func RecordStageEvent(db *sql.DB, runID, stage string, countIn, countOut int, detail string) error {
	_, err := db.Exec(
		`INSERT INTO stage_events (run_id, stage, count_in, count_out, detail) VALUES (?, ?, ?, ?, ?)`,
		runID, stage, countIn, countOut, detail,
	)
	return err
}

func GetStageEvents(db *sql.DB, runID string) (map[string][2]int, error) {
	rows, err := db.Query(`SELECT stage, count_in, count_out FROM stage_events WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	events := make(map[string][2]int)
	for rows.Next() {
		var stage string
		var in, out int
		if err := rows.Scan(&stage, &in, &out); err != nil {
			return nil, err
		}
		events[stage] = [2]int{in, out}
	}
	return events, rows.Err()
}

func CountCandidatesByStatus(db *sql.DB, runID string) (map[string]int, error) {
	rows, err := db.Query(`SELECT status, COUNT(*) FROM candidates WHERE run_id = ? GROUP BY status`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, err
		}
		counts[status] = n
	}
	return counts, rows.Err()
}
