package main

import (
	"database/sql"
	"log"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/slack-go/slack"
)

// StartCurationScheduler runs the full pipeline on a cron schedule and
// posts a summary after each run. The schedule is a standard 5-field
// cron expression (minute hour day-of-month month day-of-week).
// Examples: "0 3 * * *" (daily 3am), "0 3 * * 1" (Mondays 3am).
func StartCurationScheduler(cfg Config, db *sql.DB, api *slack.Client) bool {
	schedule := strings.TrimSpace(cfg.CurateSchedule)
	if schedule == "" {
		return false
	}

	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	sched, err := parser.Parse(schedule)
	if err != nil {
		log.Printf("Invalid curate_schedule '%s': %v, scheduler disabled", schedule, err)
		return false
	}
	log.Printf("Curation scheduled (cron: %s)", schedule)

	go func() {
		for {
			now := time.Now()
			next := sched.Next(now)
			wait := next.Sub(now)
			log.Printf("Next curation run at %s (in %s)", next.Format("Mon Jan 2 15:04"), wait.Round(time.Minute))

			time.Sleep(wait)

			summary := RunPipeline(cfg, db, stageAll)
			if summary.Err != nil {
				log.Printf("Scheduled curation error: %v", summary.Err)
			}
			log.Printf("Scheduled curation complete: %s", FormatRunSummary(summary))
			PostRunSummary(cfg, api, summary)
		}
	}()
	return true
}
