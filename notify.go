package main

import (
	"fmt"
	"log"
	"strings"

	"github.com/slack-go/slack"
)

// FormatRunSummary renders the pipeline outcome as a short message for
// logs and the report channel.
func FormatRunSummary(s RunSummary) string {
	var parts []string
	parts = append(parts, fmt.Sprintf("%d items packaged", s.ItemCount))
	parts = append(parts, fmt.Sprintf("%d duplicates dropped", s.DuplicatesDropped))
	parts = append(parts, fmt.Sprintf("%d regenerated", s.Regenerated))
	parts = append(parts, fmt.Sprintf("%d diversity swaps", s.DiversitySwaps))
	msg := fmt.Sprintf("Curation run %s (seed %d): %s", s.RunID, s.Seed, strings.Join(parts, ", "))
	if s.Err != nil {
		msg += fmt.Sprintf("\nFailed: %v", s.Err)
	}
	return msg
}

// PostRunSummary posts the run outcome to the report channel when
// Slack is configured. Posting failures are logged, never fatal.
func PostRunSummary(cfg Config, api *slack.Client, s RunSummary) {
	if api == nil || cfg.ReportChannelID == "" {
		return
	}
	_, _, err := api.PostMessage(cfg.ReportChannelID, slack.MsgOptionText(FormatRunSummary(s), false))
	if err != nil {
		log.Printf("run summary post error: %v", err)
	}
}
