package identifier

import (
	"strings"
	"testing"
)

const (
	// Wrapped SOL mint, 43 characters.
	wsol = "So11111111111111111111111111111111111111112"
	// A pump.fun style mint, 44 characters.
	pumpMint = "7GCihgDB8fe6KNjn2MYtkzZcRjQy3t9GHdC8uHYmW2hr"
)

func TestValid(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want bool
	}{
		{"wsol", wsol, true},
		{"pump mint", pumpMint, true},
		{"exactly 32", strings.Repeat("a", 32), true},
		{"exactly 44", strings.Repeat("Z", 44), true},
		{"31 chars", strings.Repeat("a", 31), false},
		{"45 chars", strings.Repeat("a", 45), false},
		{"empty", "", false},
		{"underscore", strings.Repeat("a", 31) + "_", false},
		{"space", strings.Repeat("a", 20) + " " + strings.Repeat("a", 15), false},
		{"non ascii letter", strings.Repeat("a", 32) + "é", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Valid(tt.in); got != tt.want {
				t.Errorf("Valid(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestExtract_OverlappingPatternsYieldOnce(t *testing.T) {
	text := "🔥 New call\n💊 " + pumpMint + "\nchart: " + pumpMint

	matches := Extract(text)
	if len(matches) != 1 {
		t.Fatalf("expected 1 match, got %d: %+v", len(matches), matches)
	}
	if matches[0].Candidate != pumpMint {
		t.Errorf("candidate = %s", matches[0].Candidate)
	}
	if matches[0].Pattern != 0 {
		t.Errorf("expected attribution to line-start pattern, got %d", matches[0].Pattern)
	}
}

func TestExtract_OrderAndBroadFallback(t *testing.T) {
	text := "first " + wsol + " then 💹" + pumpMint

	got := Candidates(text)
	if len(got) != 2 {
		t.Fatalf("expected 2 candidates, got %v", got)
	}
	// emoji pattern runs before the broad pattern
	if got[0] != pumpMint || got[1] != wsol {
		t.Errorf("unexpected order: %v", got)
	}
}

func TestExtract_NoCandidates(t *testing.T) {
	if got := Extract("gm frens, nothing here"); len(got) != 0 {
		t.Errorf("expected no matches, got %+v", got)
	}
}

func TestExtract_TooLongRunIgnored(t *testing.T) {
	if got := Extract(strings.Repeat("a", 60)); len(got) != 0 {
		t.Errorf("expected no matches for 60-char run, got %+v", got)
	}
}

func TestClassify(t *testing.T) {
	if s := Classify(pumpMint); !s.Base58 {
		t.Errorf("expected %s to decode as 32 bytes", pumpMint)
	}
	// '0' is outside the base58 alphabet.
	if s := Classify(strings.Repeat("0", 40)); s.LikelyAddress() {
		t.Error("zeros should not classify as an address")
	}
	if s := Classify(wsol); !s.Base58 {
		t.Errorf("expected %s to decode as 32 bytes", wsol)
	}
}
