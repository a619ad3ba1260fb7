package main

import (
	"fmt"
	"log"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

type Config struct {
	OutputDir string `yaml:"output_dir"`
	DBPath    string `yaml:"db_path"`

	Seed            int64   `yaml:"seed"`
	DedupThreshold  float64 `yaml:"dedup_threshold"`
	OversubFactor   float64 `yaml:"oversub_factor"`
	TopUpAttempts   int     `yaml:"topup_max_attempts"`
	DiversitySwaps  int     `yaml:"diversity_max_swaps"`
	TrainCap        int     `yaml:"train_cap"`
	ValCap          int     `yaml:"val_cap"`
	TestCap         int     `yaml:"test_cap"`
	Synthesizer     string  `yaml:"synthesizer"` // "template" or "llm"
	TemplatePath    string  `yaml:"template_kits_path"`
	CurateSchedule  string  `yaml:"curate_schedule"`
	AnthropicAPIKey string  `yaml:"anthropic_api_key"`
	LLMModel        string  `yaml:"llm_model"`

	SlackBotToken   string `yaml:"slack_bot_token"`
	ReportChannelID string `yaml:"report_channel_id"`

	// Set from the command line only. The splitter never uses it for
	// assignment; a set value only produces a warning.
	SplitSeed *int64 `yaml:"-"`
}

func LoadConfig() Config {
	var cfg Config

	// Load from config.yaml if it exists
	configPath := "config.yaml"
	if envPath := os.Getenv("CONFIG_PATH"); envPath != "" {
		configPath = envPath
	}
	if data, err := os.ReadFile(configPath); err == nil {
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			log.Fatalf("Error parsing %s: %v", configPath, err)
		}
		log.Printf("Loaded config from %s", configPath)
	}

	// Env vars override YAML values
	envOverride(&cfg.OutputDir, "OUTPUT_DIR")
	envOverride(&cfg.DBPath, "DB_PATH")
	envOverrideInt64(&cfg.Seed, "CURATOR_SEED")
	envOverrideFloat(&cfg.DedupThreshold, "DEDUP_THRESHOLD")
	envOverrideFloat(&cfg.OversubFactor, "OVERSUB_FACTOR")
	envOverrideInt(&cfg.TopUpAttempts, "TOPUP_MAX_ATTEMPTS")
	envOverrideInt(&cfg.DiversitySwaps, "DIVERSITY_MAX_SWAPS")
	envOverride(&cfg.Synthesizer, "SYNTHESIZER")
	envOverride(&cfg.TemplatePath, "TEMPLATE_KITS_PATH")
	envOverride(&cfg.CurateSchedule, "CURATE_SCHEDULE")
	envOverride(&cfg.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	envOverride(&cfg.LLMModel, "LLM_MODEL")
	envOverride(&cfg.SlackBotToken, "SLACK_BOT_TOKEN")
	envOverride(&cfg.ReportChannelID, "REPORT_CHANNEL_ID")

	applyDefaults(&cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.OutputDir == "" {
		cfg.OutputDir = "dist"
	}
	if cfg.DBPath == "" {
		cfg.DBPath = "curator.db"
	}
	if cfg.Seed == 0 {
		cfg.Seed = 2025
	}
	if cfg.DedupThreshold == 0 {
		cfg.DedupThreshold = 0.85
	}
	if cfg.OversubFactor == 0 {
		cfg.OversubFactor = 1.2
	}
	if cfg.TopUpAttempts == 0 {
		cfg.TopUpAttempts = 2
	}
	if cfg.DiversitySwaps == 0 {
		cfg.DiversitySwaps = 5
	}
	if cfg.TrainCap == 0 {
		cfg.TrainCap = 42
	}
	if cfg.ValCap == 0 {
		cfg.ValCap = 14
	}
	if cfg.TestCap == 0 {
		cfg.TestCap = 14
	}
	if cfg.Synthesizer == "" {
		cfg.Synthesizer = "template"
	}
}

func (c Config) SlackConfigured() bool {
	return c.SlackBotToken != "" && c.ReportChannelID != ""
}

func envOverride(field *string, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		*field = val
	}
}

func envOverrideInt(field *int, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.Atoi(val)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func envOverrideInt64(field *int64, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

func envOverrideFloat(field *float64, envKey string) {
	if val := os.Getenv(envKey); val != "" {
		parsed, err := strconv.ParseFloat(val, 64)
		if err != nil {
			log.Fatalf("invalid %s '%s': %v", envKey, val, err)
		}
		*field = parsed
	}
}

// ArchetypeKit declares what the template synthesizer may use for one
// archetype at one complexity: whether the app runs a server, and the
// pages and features the Pages & Routes / Feature Plan sections draw on.
type ArchetypeKit struct {
	Server   bool     `yaml:"server"`
	Pages    []string `yaml:"pages"`
	Features []string `yaml:"features"`
}

// KitTable maps archetype -> complexity -> kit.
type KitTable map[string]map[string]ArchetypeKit

// LoadKitTable returns the built-in kit table, optionally replaced by a
// YAML file. The table is validated for completeness at load: every
// declared archetype x complexity cell must be present and non-empty.
func LoadKitTable(path string) (KitTable, error) {
	table := defaultKitTable()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read template kits: %w", err)
		}
		loaded := KitTable{}
		if err := yaml.Unmarshal(data, &loaded); err != nil {
			return nil, fmt.Errorf("parse template kits yaml: %w", err)
		}
		table = loaded
	}
	if err := table.validate(); err != nil {
		return nil, err
	}
	return table, nil
}

func (t KitTable) validate() error {
	for _, arch := range declaredArchetypes {
		byComplexity, ok := t[arch]
		if !ok {
			return fmt.Errorf("kit table missing archetype %q", arch)
		}
		for _, cx := range declaredComplexities {
			kit, ok := byComplexity[cx]
			if !ok {
				return fmt.Errorf("kit table missing %s/%s", arch, cx)
			}
			if len(kit.Pages) == 0 {
				return fmt.Errorf("kit table %s/%s has no pages", arch, cx)
			}
			if len(kit.Features) == 0 {
				return fmt.Errorf("kit table %s/%s has no features", arch, cx)
			}
		}
	}
	return nil
}
