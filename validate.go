package main

import (
	"fmt"
	"regexp"
	"strings"
)

// Validator checks one candidate against the structural, platform,
// band, and hygiene rules. It returns whether the item passed, the
// item with any corrections applied, and the reasons for rejection.
type Validator interface {
	Validate(it Item) (bool, Item, []string)
}

type ruleValidator struct{}

func NewRuleValidator() Validator {
	return &ruleValidator{}
}

var requiredSections = []string{
	"Vision",
	"Tech Stack",
	"Data Models",
	"Pages & Routes",
	"Feature Plan",
	"NFR & SLOs",
}

var (
	sectionHeaderRe = regexp.MustCompile(`(?m)^##\s+(.+?)\s*$`)
	memberPermsRe   = regexp.MustCompile("(?s)\\*\\*Member\\*\\*.*?`read:self`.*?`write:self`")
	adminPermsRe    = regexp.MustCompile("(?s)\\*\\*Admin\\*\\*.*?`read:any`.*?`write:any`.*?`manage`")
	bindMentionRe   = regexp.MustCompile(`0\.0\.0\.0`)

	emailRe = regexp.MustCompile(`\b[A-Za-z0-9._%+-]+@[A-Za-z0-9.-]+\.[A-Za-z]{2,}\b`)
	phoneRe = regexp.MustCompile(`\b(?:\+?1[-.\s]?)?\(?\d{3}\)?[-.\s]\d{3}[-.\s]\d{4}\b`)
)

const (
	maxFencedBlocks = 3
	maxCodeLines    = 40
)

// Validate applies every rule and collects all failures rather than
// stopping at the first, so rejection logs show the full picture.
func (rv *ruleValidator) Validate(it Item) (bool, Item, []string) {
	var reasons []string

	reasons = append(reasons, checkSections(it.Spec)...)
	reasons = append(reasons, checkACL(it.Spec)...)
	reasons = append(reasons, checkPlatform(it)...)
	reasons = append(reasons, checkPII(it.Spec)...)
	reasons = append(reasons, checkCodeStyle(it.Spec)...)

	corrected := it
	actual, err := ValidateBand(it)
	if err != nil {
		// A mismatch rejects the item but the returned copy still
		// carries the recounted band so callers can record the
		// correction.
		reasons = append(reasons, err.Error())
		if actual != "" {
			corrected.LengthBand = actual
		}
	}

	return len(reasons) == 0, corrected, reasons
}

func specSectionTitles(spec string) []string {
	var titles []string
	for _, m := range sectionHeaderRe.FindAllStringSubmatch(spec, -1) {
		titles = append(titles, m[1])
	}
	return titles
}

func checkSections(spec string) []string {
	present := make(map[string]bool)
	for _, title := range specSectionTitles(spec) {
		present[title] = true
	}
	var reasons []string
	for _, want := range requiredSections {
		if !present[want] {
			reasons = append(reasons, fmt.Sprintf("missing required section %q", want))
		}
	}
	for title := range present {
		found := false
		for _, want := range requiredSections {
			if title == want {
				found = true
				break
			}
		}
		if !found {
			reasons = append(reasons, fmt.Sprintf("unexpected section %q", title))
		}
	}
	return reasons
}

func checkACL(spec string) []string {
	var reasons []string
	if !strings.Contains(spec, aclLabel) {
		return append(reasons, "missing access control block")
	}
	if !memberPermsRe.MatchString(spec) {
		reasons = append(reasons, "access control block missing Member permissions")
	}
	if !adminPermsRe.MatchString(spec) {
		reasons = append(reasons, "access control block missing Admin permissions")
	}
	return reasons
}

func checkPlatform(it Item) []string {
	var reasons []string
	if it.Platform.Name != platformName {
		reasons = append(reasons, fmt.Sprintf("platform name %q is not %q", it.Platform.Name, platformName))
	}
	if it.Platform.Server {
		if it.Platform.Bind == nil || *it.Platform.Bind != "0.0.0.0" {
			reasons = append(reasons, "server app must declare bind 0.0.0.0")
		}
		if !bindMentionRe.MatchString(it.Spec) {
			reasons = append(reasons, "server app spec must mention binding to 0.0.0.0")
		}
	} else {
		if it.Platform.Bind != nil {
			reasons = append(reasons, "static app must not declare a bind address")
		}
		if ContainsBannedNetworkTerms(it.Spec) {
			reasons = append(reasons, "static app spec uses network binding vocabulary")
		}
	}
	return reasons
}

func checkPII(spec string) []string {
	// Field name lists in data models legitimately contain the word
	// "email"; only literal addresses and phone numbers are rejected.
	var reasons []string
	if emailRe.MatchString(spec) {
		reasons = append(reasons, "spec contains an email address")
	}
	if phoneRe.MatchString(spec) {
		reasons = append(reasons, "spec contains a phone number")
	}
	return reasons
}

func checkCodeStyle(spec string) []string {
	var reasons []string
	fences := fencedCodeRe.FindAllString(spec, -1)
	if len(fences) > maxFencedBlocks {
		reasons = append(reasons, fmt.Sprintf("spec has %d fenced code blocks, limit %d", len(fences), maxFencedBlocks))
	}
	codeLines := 0
	for _, block := range fences {
		for _, line := range strings.Split(block, "\n") {
			trim := strings.TrimSpace(line)
			if trim == "" || strings.HasPrefix(trim, "```") {
				continue
			}
			codeLines++
		}
	}
	if codeLines > maxCodeLines {
		reasons = append(reasons, fmt.Sprintf("spec has %d lines of fenced code, limit %d", codeLines, maxCodeLines))
	}
	return reasons
}
