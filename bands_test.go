package main

import (
	"strings"
	"testing"
)

func TestDetermineBand(t *testing.T) {
	tests := []struct {
		tokens int
		want   string
	}{
		{250, BandShort},
		{400, BandShort},
		{401, BandStandard},
		{600, BandStandard},
		{800, BandStandard}, // overlap region resolves to the narrower band
		{601, BandStandard},
		{801, BandExtended},
		{1500, BandExtended},
		{249, ""},
		{1501, ""},
		{0, ""},
	}
	for _, tt := range tests {
		if got := DetermineBand(tt.tokens); got != tt.want {
			t.Errorf("DetermineBand(%d) = %q, want %q", tt.tokens, got, tt.want)
		}
	}
}

func TestCountTokensExcludesHeadersAndACLLabel(t *testing.T) {
	spec := "## Vision\n\none two three\n\n" + aclLabel + "\n\nfour five\n"
	// "Vision" and "Access Control" must not count.
	if got := CountTokens(spec); got != 5 {
		t.Errorf("CountTokens = %d, want 5", got)
	}
}

func TestValidateBandOutOfRange(t *testing.T) {
	it := testItem("slot__v01", strings.Repeat("word ", 100))
	if _, err := ValidateBand(it); err == nil {
		t.Error("expected error for 100-token spec outside every band")
	}

	it.Spec = strings.Repeat("word ", 500)
	actual, err := ValidateBand(it)
	if err != nil {
		t.Fatalf("ValidateBand: %v", err)
	}
	if actual != BandStandard {
		t.Errorf("actual band = %q, want %q", actual, BandStandard)
	}
}

func TestStratumBandScheme(t *testing.T) {
	want := []string{BandShort, BandStandard, BandStandard, BandStandard, BandExtended}
	for pos, w := range want {
		if got := stratumBandScheme(pos, stratumQuota); got != w {
			t.Errorf("position %d = %q, want %q", pos, got, w)
		}
	}
}

func TestValidateGlobalMix(t *testing.T) {
	ok, problems := ValidateGlobalMix(map[string]int{
		BandShort: 14, BandStandard: 42, BandExtended: 14,
	})
	if !ok || len(problems) != 0 {
		t.Errorf("exact target mix flagged: %v", problems)
	}

	ok, problems = ValidateGlobalMix(map[string]int{
		BandShort: 30, BandStandard: 30, BandExtended: 10,
	})
	if ok {
		t.Error("badly skewed mix passed")
	}
	if len(problems) == 0 {
		t.Error("skewed mix produced no problem lines")
	}
}

func TestBuildBandReport(t *testing.T) {
	balanced := make([]Item, 0, 70)
	for band, n := range map[string]int{BandShort: 14, BandStandard: 42, BandExtended: 14} {
		for i := 0; i < n; i++ {
			balanced = append(balanced, Item{LengthBand: band})
		}
	}
	report := BuildBandReport(balanced)
	if !report.Valid {
		t.Errorf("balanced pool flagged: %v", report.Problems)
	}
	if len(report.Suggestions) != 0 {
		t.Errorf("balanced pool produced suggestions: %v", report.Suggestions)
	}
	if report.Distribution[BandStandard] != 42 {
		t.Errorf("STANDARD distribution = %d, want 42", report.Distribution[BandStandard])
	}
	if report.Ranges[BandShort].Min != 250 || report.Targets[BandShort].Target != 14 {
		t.Error("report missing ranges or targets")
	}

	skewed := make([]Item, 70)
	for i := range skewed {
		skewed[i] = Item{LengthBand: BandStandard}
	}
	report = BuildBandReport(skewed)
	if report.Valid {
		t.Error("all-STANDARD pool passed")
	}
	if len(report.Suggestions) == 0 {
		t.Fatal("skewed pool produced no suggestions")
	}
	joined := strings.Join(report.Suggestions, "; ")
	if !strings.Contains(joined, "add 7 SHORT") || !strings.Contains(joined, "shed 21 STANDARD") {
		t.Errorf("unexpected suggestions: %v", report.Suggestions)
	}
}
