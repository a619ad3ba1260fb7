package main

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicModel = "claude-sonnet-4-5-20250929"

type LLMUsage struct {
	InputTokens              int64
	OutputTokens             int64
	CacheCreationInputTokens int64
	CacheReadInputTokens     int64
}

func (u LLMUsage) TotalTokens() int64 {
	return u.InputTokens + u.OutputTokens
}

func (u *LLMUsage) Add(other LLMUsage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheCreationInputTokens += other.CacheCreationInputTokens
	u.CacheReadInputTokens += other.CacheReadInputTokens
}

// llmSynthesizer asks an Anthropic model to write spec variants. The
// variant seed is embedded in the prompt so distinct variants do not
// collapse into one phrasing; determinism is best effort only, which is
// why the template synthesizer stays the default.
type llmSynthesizer struct {
	apiKey string
	model  string
	kits   KitTable
	usage  LLMUsage
}

func NewLLMSynthesizer(cfg Config, kits KitTable) (Synthesizer, error) {
	if cfg.AnthropicAPIKey == "" {
		return nil, fmt.Errorf("llm synthesizer requires an Anthropic API key")
	}
	model := cfg.LLMModel
	if model == "" {
		model = defaultAnthropicModel
	}
	return &llmSynthesizer{apiKey: cfg.AnthropicAPIKey, model: model, kits: kits}, nil
}

const synthSystemPrompt = `You write product specification documents for small web applications.
Every document must contain exactly these H2 sections, in order:
## Vision, ## Tech Stack, ## Data Models, ## Pages & Routes, ## Feature Plan, ## NFR & SLOs.
Inside Feature Plan include an "### Access Control" block listing:
- **Member**: ` + "`read:self` `write:self`" + `
- **Admin**: ` + "`read:any` `write:any` `manage`" + `
Never include real email addresses or phone numbers. Use at most 3 fenced code blocks.
Respond with the Markdown document only, no preamble.`

func (ls *llmSynthesizer) Synthesize(slot Slot, variants int, seed int64) ([]Item, error) {
	kit, ok := ls.kits[slot.Archetype][slot.Complexity]
	if !ok {
		return nil, fmt.Errorf("no kit for %s/%s", slot.Archetype, slot.Complexity)
	}
	targetBand := stratumBandScheme(slot.Rep-1, stratumQuota)
	r := bandRanges[targetBand]

	items := make([]Item, 0, variants)
	for v := 1; v <= variants; v++ {
		prompt := ls.buildPrompt(slot, kit, targetBand, r.Min, r.Max, VariantSeed(seed, slot.SlotID, v))
		text, usage, err := callAnthropic(ls.apiKey, ls.model, synthSystemPrompt, prompt)
		ls.usage.Add(usage)
		if err != nil {
			return nil, fmt.Errorf("synthesize %s variant %d: %w", slot.SlotID, v, err)
		}

		var bind *string
		if kit.Server {
			addr := "0.0.0.0"
			bind = &addr
		}
		items = append(items, Item{
			SlotID:      slot.SlotID,
			CandidateID: FormatCandidateID(slot.SlotID, v),
			Archetype:   slot.Archetype,
			Complexity:  slot.Complexity,
			Locale:      slot.Locale,
			Platform:    Platform{Name: slot.Platform, Server: kit.Server, Bind: bind},
			Rep:         slot.Rep,
			Seq:         slot.Seq,
			LengthBand:  targetBand,
			Spec:        strings.TrimSpace(text) + "\n",
		})
	}
	return items, nil
}

func (ls *llmSynthesizer) buildPrompt(slot Slot, kit ArchetypeKit, band string, minTokens, maxTokens int, variantSeed int64) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a %s-complexity specification for a %s application (variant key %d).\n", slot.Complexity, slot.Archetype, variantSeed)
	fmt.Fprintf(&b, "Target length: between %d and %d words of body text (band %s).\n", minTokens, maxTokens, band)
	if kit.Server {
		b.WriteString("The app runs its own backend; the Tech Stack section must state that it binds to 0.0.0.0.\n")
	} else {
		b.WriteString("The app is a static site with no backend. Do not mention servers, ports, hosts, sockets, or listening anywhere.\n")
	}
	fmt.Fprintf(&b, "Pages to cover: %s.\n", strings.Join(kit.Pages, ", "))
	fmt.Fprintf(&b, "Features to cover: %s.\n", strings.Join(kit.Features, "; "))
	return b.String()
}

func callAnthropic(apiKey, model, systemPrompt, userPrompt string) (string, LLMUsage, error) {
	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	message, err := client.Messages.New(context.Background(), anthropic.MessageNewParams{
		Model:     anthropic.Model(model),
		MaxTokens: 4096,
		System: []anthropic.TextBlockParam{
			{Text: systemPrompt, CacheControl: anthropic.NewCacheControlEphemeralParam()},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	})
	if err != nil {
		log.Printf("llm anthropic error: %v", err)
		return "", LLMUsage{}, fmt.Errorf("Anthropic API error: %w", err)
	}
	usage := LLMUsage{
		InputTokens:              message.Usage.InputTokens,
		OutputTokens:             message.Usage.OutputTokens,
		CacheCreationInputTokens: message.Usage.CacheCreationInputTokens,
		CacheReadInputTokens:     message.Usage.CacheReadInputTokens,
	}

	for _, block := range message.Content {
		if block.Type == "text" {
			log.Printf("llm anthropic response size=%d tokens_in=%d tokens_out=%d cache_create=%d cache_read=%d", len(block.Text), usage.InputTokens, usage.OutputTokens, usage.CacheCreationInputTokens, usage.CacheReadInputTokens)
			return block.Text, usage, nil
		}
	}
	return "", usage, fmt.Errorf("no text content in Anthropic response")
}
