package main

import (
	"flag"
	"log"

	"github.com/slack-go/slack"
)

func main() {
	stage := flag.String("stage", stageAll, "pipeline stage to run: all, synth, curate, or package")
	seed := flag.Int64("seed", 0, "override the configured base seed")
	splitSeed := flag.Int64("split-seed", 0, "ignored by split assignment; accepted for tooling compatibility")
	flag.Parse()

	cfg := LoadConfig()
	if isFlagSet("seed") {
		cfg.Seed = *seed
	}
	if isFlagSet("split-seed") {
		cfg.SplitSeed = splitSeed
	}
	switch *stage {
	case stageAll, stageSynth, stageCurate, stagePackage:
	default:
		log.Fatalf("Unknown stage %q", *stage)
	}

	db, err := InitDB(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to init database: %v", err)
	}
	defer db.Close()

	var api *slack.Client
	if cfg.SlackConfigured() {
		api = slack.New(cfg.SlackBotToken)
	}

	if StartCurationScheduler(cfg, db, api) {
		log.Println("Starting corpus curator in scheduled mode...")
		select {}
	}

	summary := RunPipeline(cfg, db, *stage)
	log.Println(FormatRunSummary(summary))
	PostRunSummary(cfg, api, summary)
	if summary.Err != nil {
		log.Fatalf("Curation failed: %v", summary.Err)
	}
}

func isFlagSet(name string) bool {
	set := false
	flag.Visit(func(f *flag.Flag) {
		if f.Name == name {
			set = true
		}
	})
	return set
}
