package main

import (
	"html"
	"regexp"
	"strings"
)

// Literal substrings removed before similarity comparison. They are
// platform boilerplate that appears in nearly every spec and would
// inflate Jaccard scores between unrelated items.
var noiseLiterals = []string{"replit.toml", "replit.nix", "0.0.0.0"}

var (
	frontmatterRe = regexp.MustCompile(`(?s)\A---\s*\n.*?\n---\s*\n`)
	h2HeaderRe    = regexp.MustCompile(`(?m)^##\s+.*$`)
	fencedCodeRe  = regexp.MustCompile("(?s)```[^`]*```")
	wordTokenRe   = regexp.MustCompile(`[a-z0-9_]+`)
)

// NormalizeText canonicalizes a spec body for similarity comparison.
// Order matters: entities first, then front-matter, H2 headers, noise
// literals, and finally fenced code blocks.
func NormalizeText(text string) string {
	text = html.UnescapeString(text)
	text = frontmatterRe.ReplaceAllString(text, "")
	text = h2HeaderRe.ReplaceAllString(text, "")
	for _, lit := range noiseLiterals {
		text = strings.ReplaceAll(text, lit, "")
	}
	text = fencedCodeRe.ReplaceAllString(text, "")
	return text
}

// Tokenize splits text into lowercase ASCII word tokens.
func Tokenize(text string) []string {
	return wordTokenRe.FindAllString(strings.ToLower(text), -1)
}

// Shingles returns the stride-1 n-token windows over tokens, no
// wraparound: max(0, len(tokens)-n+1) shingles.
func Shingles(tokens []string, n int) []string {
	if len(tokens) < n {
		return nil
	}
	out := make([]string, 0, len(tokens)-n+1)
	for i := 0; i+n <= len(tokens); i++ {
		out = append(out, strings.Join(tokens[i:i+n], " "))
	}
	return out
}

// ShingleSet returns the word-trigram set of normalized text.
func ShingleSet(text string) map[string]bool {
	tokens := Tokenize(NormalizeText(text))
	set := make(map[string]bool)
	for _, sh := range Shingles(tokens, 3) {
		set[sh] = true
	}
	return set
}

var bannedNetworkRes = []*regexp.Regexp{
	regexp.MustCompile(`(?i)\bserverless\b`), // checked first so "serverless" can be excluded
	regexp.MustCompile(`(?i)\bserver\b`),
	regexp.MustCompile(`(?i)\bsockets?\b`),
	regexp.MustCompile(`(?i)\bbind(?:ing)?\s+0\.0\.0\.0\b`),
	regexp.MustCompile(`(?i)\b(?:listen|port)\b`),
	regexp.MustCompile(`(?i)\bhost\b`),
}

var hostingRe = regexp.MustCompile(`(?i)\bhosting\b`)

// ContainsBannedNetworkTerms reports whether text uses network binding
// vocabulary that static (non-server) specs must not mention. "hosting"
// and "serverless" are legitimate and do not count.
func ContainsBannedNetworkTerms(text string) bool {
	text = hostingRe.ReplaceAllString(text, "")
	// Strip "serverless" occurrences before testing the bare "server" rule.
	text = bannedNetworkRes[0].ReplaceAllString(text, "")
	for _, re := range bannedNetworkRes[1:] {
		if re.MatchString(text) {
			return true
		}
	}
	return false
}
